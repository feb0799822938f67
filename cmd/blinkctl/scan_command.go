package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"blink/internal/plate"
	"blink/internal/scanner"
)

// frameSource is anything that yields OCR frames: a recorded log or a live
// recognizer.
type frameSource interface {
	Frames(ctx context.Context) <-chan scanner.Frame
}

type scanOptions struct {
	threshold   int
	minInterval time.Duration
	resolve     bool
}

type scanReport struct {
	Frames     int64          `json:"frames"`
	Status     plate.Status   `json:"status"`
	Display    string         `json:"display,omitempty"`
	Confidence map[string]int `json:"confidence"`
	Match      any            `json:"match,omitempty"`
}

// extraScanCommands holds subcommands compiled in behind build tags.
var extraScanCommands []func(*commandContext, *scanOptions) *cobra.Command

func newScanCommand(ctx *commandContext) *cobra.Command {
	opts := &scanOptions{}

	scanCmd := &cobra.Command{
		Use:   "scan",
		Short: "Run the plate stabilizer over recorded or recognized frames",
	}
	scanCmd.PersistentFlags().IntVar(&opts.threshold, "threshold", plate.DefaultThreshold, "Frames needed before a reading is trusted")
	scanCmd.PersistentFlags().DurationVar(&opts.minInterval, "min-interval", scanner.DefaultMinFrameInterval, "Frames closer than this are dropped")
	scanCmd.PersistentFlags().BoolVar(&opts.resolve, "resolve", true, "Resolve the stable plate against the roster")

	var interval time.Duration
	replayCmd := &cobra.Command{
		Use:   "replay [file]",
		Short: "Replay an OCR log, one frame per line with readings separated by '|'",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var r io.Reader = cmd.InOrStdin()
			if len(args) == 1 && args[0] != "-" {
				f, err := os.Open(args[0])
				if err != nil {
					return fmt.Errorf("open replay: %w", err)
				}
				defer f.Close()
				r = f
			}
			return runScan(cmd, ctx, opts, scanner.NewLineSource(r, interval))
		},
	}
	replayCmd.Flags().DurationVar(&interval, "interval", 250*time.Millisecond, "Simulated time between recorded frames")
	scanCmd.AddCommand(replayCmd)

	for _, build := range extraScanCommands {
		scanCmd.AddCommand(build(ctx, opts))
	}

	return scanCmd
}

func runScan(cmd *cobra.Command, ctx *commandContext, opts *scanOptions, src frameSource) error {
	logger := ctx.logger()
	session := scanner.NewSession(scanner.Options{
		MinFrameInterval: opts.minInterval,
		Threshold:        opts.threshold,
	}, logger)

	runCtx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	out := cmd.OutOrStdout()
	var last scanner.Update
	err := session.Run(runCtx, src.Frames(runCtx), func(u scanner.Update) {
		last = u
		if ctx.opts.json {
			return
		}
		reading := "-"
		if u.Candidate != nil {
			reading = u.Candidate.Display()
		}
		state := "searching"
		if u.Status.Stable {
			state = "stable " + u.Status.Display()
		}
		fmt.Fprintf(out, "frame %d\t%s\t%s (%d)\n", u.Frame, reading, state, u.Status.Confidence)
	})
	if err != nil {
		return err
	}

	report := scanReport{
		Frames:     last.Frame,
		Status:     session.Status(),
		Display:    session.Status().Display(),
		Confidence: session.Confidences(),
	}

	if opts.resolve && report.Status.Stable {
		m, err := ctx.ensureMatcher(cmd.Context())
		if err != nil {
			return err
		}
		defer ctx.close()
		res := m.Resolve(cmd.Context(), report.Status.Text)
		report.Match = res
		if !ctx.opts.json {
			if res.Recognized() && res.Bus != nil {
				fmt.Fprintf(out, "%s -> %s (%s)\n", report.Display, res.Bus.RouteCode, res.Outcome)
			} else {
				fmt.Fprintf(out, "%s -> plate not recognized\n", report.Display)
			}
		}
	}

	if ctx.opts.json {
		return writeJSON(cmd, report)
	}
	if !report.Status.Stable {
		fmt.Fprintln(out, "no stable plate")
	}
	return nil
}
