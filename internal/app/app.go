// Package app is the top-level application context. It owns the matcher, the
// live-status publisher and the single active journey engine.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"blink/internal/domain"
	"blink/internal/journey"
	"blink/internal/livestatus"
	"blink/internal/matcher"
	"blink/internal/plate"
	"blink/internal/seed"
	"blink/internal/storage"
	"blink/internal/store"
)

var (
	ErrPlateNotRecognized = errors.New("plate not recognized")
	ErrNoActiveJourney    = errors.New("no active journey")
)

type Options struct {
	Journey journey.Options
	// Recorder receives one event per resolved scan. Nil disables it.
	Recorder storage.Recorder
}

// ActiveJourney is the engine's view of the current journey.
type ActiveJourney struct {
	Journey domain.Journey      `json:"journey"`
	State   domain.JourneyState `json:"state"`
	Plan    journey.Plan        `json:"plan"`
}

type App struct {
	store     store.RecordStore
	roster    *seed.Roster
	matcher   *matcher.Matcher
	publisher *livestatus.Publisher
	recorder  storage.Recorder
	opts      journey.Options
	logger    *slog.Logger

	mu        sync.Mutex
	engine    *journey.Engine
	observers []func(domain.ProgressEvent)

	ctx     context.Context
	cancel  context.CancelFunc
	runners sync.WaitGroup
}

func New(s store.RecordStore, roster *seed.Roster, publisher *livestatus.Publisher, opts Options, logger *slog.Logger) *App {
	if opts.Recorder == nil {
		opts.Recorder = storage.Nop{}
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &App{
		store:     s,
		roster:    roster,
		matcher:   matcher.New(s, seed.NewPlateTable(roster), logger),
		publisher: publisher,
		recorder:  opts.Recorder,
		opts:      opts.Journey,
		logger:    logger.With("component", "app"),
		ctx:       ctx,
		cancel:    cancel,
	}
}

func (a *App) Matcher() *matcher.Matcher {
	return a.matcher
}

func (a *App) Publisher() *livestatus.Publisher {
	return a.publisher
}

// Launch seeds an empty store and reconciles live status with the durable
// snapshot. A journey whose live instance survived the restart resumes from
// the time and distance the instance still shows.
func (a *App) Launch(ctx context.Context) error {
	if _, err := seed.NewSeeder(a.store, a.roster, a.logger).Run(ctx); err != nil {
		a.logger.Error("seeding failed, continuing with seed table fallback", "error", err)
	}

	res, err := a.publisher.Reconcile(ctx)
	if err != nil {
		return fmt.Errorf("reconcile live status: %w", err)
	}
	a.logger.Info("live status reconciled",
		"orphaned", res.Orphaned,
		"adopted", res.Adopted,
		"ended", res.Ended,
	)

	if res.Adopted && res.Journey != nil {
		if err := a.resume(*res.Journey); err != nil {
			a.logger.Warn("failed to resume journey", "plate", res.Journey.BusPlateNumber, "error", err)
		}
	}
	return nil
}

func (a *App) resume(j domain.Journey) error {
	if j.EstimatedTimeRemaining <= 0 || j.DistanceRemainingKm <= 0 {
		return a.publisher.End(a.ctx, domain.LiveState{})
	}

	plan := journey.Plan{
		BusPlateNumber: j.BusPlateNumber,
		RouteCode:      j.RouteCode,
		RouteName:      j.RouteName,
		Origin:         j.CurrentLocation,
		Destination:    j.Destination,
		EstimatedTime:  j.EstimatedTimeRemaining,
		DistanceKm:     j.DistanceRemainingKm,
	}
	engine := a.newEngine(plan)
	if err := engine.Resume(j); err != nil {
		return err
	}

	a.mu.Lock()
	a.engine = engine
	a.mu.Unlock()

	a.run(engine)
	return nil
}

// OnProgress registers an observer for every journey this app runs.
// Observers must not call back into the app.
func (a *App) OnProgress(fn func(domain.ProgressEvent)) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.observers = append(a.observers, fn)
}

// ResolvePlate matches a captured plate. An unrecognized plate is reported
// through the result's outcome, not an error.
func (a *App) ResolvePlate(ctx context.Context, raw, source string) matcher.Result {
	res := a.matcher.Resolve(ctx, raw)

	ev := storage.ScanEvent{
		Plate:        res.Plate,
		DisplayPlate: plate.FormatForDisplay(res.Plate),
		Outcome:      res.Outcome.String(),
		Source:       source,
		At:           time.Now(),
	}
	if res.Bus != nil {
		ev.RouteCode = res.Bus.RouteCode
	}
	a.recorder.Record(ev)
	return res
}

// StartJourney resolves rawPlate and starts a journey toward station, or to
// the end of the route when station is empty. Any earlier journey is stopped
// first.
func (a *App) StartJourney(ctx context.Context, rawPlate, station string) (ActiveJourney, error) {
	res := a.ResolvePlate(ctx, rawPlate, "journey")
	if !res.Recognized() {
		return ActiveJourney{}, ErrPlateNotRecognized
	}

	plan, err := journey.PlanDestination(res.Bus, res.Route, station)
	if err != nil {
		return ActiveJourney{}, err
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if prev := a.engine; prev != nil && prev.State() == domain.JourneyOngoing {
		if err := prev.Stop(ctx); err != nil && !errors.Is(err, journey.ErrNotOngoing) {
			a.logger.Warn("failed to stop previous journey", "error", err)
		}
	}

	engine := a.newEngineLocked(plan)
	if err := engine.Start(ctx); err != nil {
		return ActiveJourney{}, fmt.Errorf("start journey: %w", err)
	}
	a.engine = engine
	a.run(engine)

	return snapshotOf(engine), nil
}

// StopJourney ends the active journey early. It returns once the live
// instance and the durable snapshot are gone.
func (a *App) StopJourney(ctx context.Context) (ActiveJourney, error) {
	a.mu.Lock()
	engine := a.engine
	a.mu.Unlock()

	if engine == nil {
		return ActiveJourney{}, ErrNoActiveJourney
	}
	if err := engine.Stop(ctx); err != nil {
		if errors.Is(err, journey.ErrNotOngoing) {
			return snapshotOf(engine), nil
		}
		return snapshotOf(engine), err
	}
	return snapshotOf(engine), nil
}

// Active returns the current journey, including a completed one that has not
// been acknowledged yet.
func (a *App) Active() (ActiveJourney, bool) {
	a.mu.Lock()
	engine := a.engine
	a.mu.Unlock()

	if engine == nil {
		return ActiveJourney{}, false
	}
	return snapshotOf(engine), true
}

// Acknowledge disposes of a completed journey.
func (a *App) Acknowledge() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.engine == nil {
		return ErrNoActiveJourney
	}
	if err := a.engine.Acknowledge(); err != nil {
		return err
	}
	a.engine = nil
	return nil
}

// Shutdown stops journey runners. Live status is left as is so the next
// launch can adopt it.
func (a *App) Shutdown() {
	a.cancel()
	a.runners.Wait()
}

func (a *App) newEngine(plan journey.Plan) *journey.Engine {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.newEngineLocked(plan)
}

func (a *App) newEngineLocked(plan journey.Plan) *journey.Engine {
	engine := journey.NewEngine(plan, a.publisher, a.opts, a.logger)
	observers := append([]func(domain.ProgressEvent){}, a.observers...)
	engine.OnProgress(func(ev domain.ProgressEvent) {
		for _, fn := range observers {
			fn(ev)
		}
	})
	return engine
}

func (a *App) run(engine *journey.Engine) {
	a.runners.Add(1)
	go func() {
		defer a.runners.Done()
		journey.NewRunner(engine, a.logger).Run(a.ctx)
	}()
}

func snapshotOf(e *journey.Engine) ActiveJourney {
	return ActiveJourney{
		Journey: e.Journey(),
		State:   e.State(),
		Plan:    e.Plan(),
	}
}
