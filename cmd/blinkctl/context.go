package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"

	"blink/internal/matcher"
	"blink/internal/seed"
	"blink/internal/store"
)

type globalOptions struct {
	sqlitePath string
	rosterPath string
	json       bool
	verbose    bool
}

// commandContext opens the record store lazily so plate commands that never
// touch it stay cheap.
type commandContext struct {
	opts *globalOptions

	openOnce sync.Once
	store    store.RecordStore
	matcher  *matcher.Matcher
	roster   *seed.Roster
	openErr  error
}

func newCommandContext(opts *globalOptions) *commandContext {
	return &commandContext{opts: opts}
}

func (c *commandContext) logger() *slog.Logger {
	level := slog.LevelWarn
	if c.opts.verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

func (c *commandContext) ensureMatcher(ctx context.Context) (*matcher.Matcher, error) {
	c.openOnce.Do(func() {
		logger := c.logger()

		roster, err := seed.LoadRoster(c.opts.rosterPath)
		if err != nil {
			c.openErr = err
			return
		}

		var s store.RecordStore
		if c.opts.sqlitePath != "" {
			db, err := store.OpenSQLite(c.opts.sqlitePath)
			if err != nil {
				c.openErr = err
				return
			}
			s = db
		} else {
			s = store.NewMemory()
		}

		if _, err := seed.NewSeeder(s, roster, logger).Run(ctx); err != nil {
			c.openErr = fmt.Errorf("seed store: %w", err)
			_ = s.Close()
			return
		}

		c.store = s
		c.roster = roster
		c.matcher = matcher.New(s, seed.NewPlateTable(roster), logger)
	})
	return c.matcher, c.openErr
}

func (c *commandContext) recordStore(ctx context.Context) (store.RecordStore, error) {
	if _, err := c.ensureMatcher(ctx); err != nil {
		return nil, err
	}
	return c.store, nil
}

func (c *commandContext) close() {
	if c.store != nil {
		_ = c.store.Close()
	}
}
