// Package journey simulates a bus ride as a countdown of time and distance
// remaining, driven by a fixed tick.
package journey

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"blink/internal/domain"
)

const (
	DefaultTickInterval = 15 * time.Second
	DefaultTickStep     = time.Minute
)

// distances below this are treated as zero to absorb float drift.
const distanceEpsilon = 1e-9

var (
	ErrAlreadyStarted = errors.New("journey already started")
	ErrNotOngoing     = errors.New("journey not ongoing")
	ErrNotCompleted   = errors.New("journey not completed")
)

// Publisher mirrors the engine onto the live-status surface. End must not
// return before the live instance and its durable record are gone.
type Publisher interface {
	Start(ctx context.Context, attrs domain.LiveAttributes, state domain.LiveState) error
	Update(ctx context.Context, state domain.LiveState)
	End(ctx context.Context, final domain.LiveState) error
}

type Options struct {
	// TickInterval is the wall-clock period between ticks.
	TickInterval time.Duration
	// TickStep is the simulated time consumed by one tick.
	TickStep     time.Duration
	Now          func() time.Time
}

// Engine owns one journey's state machine. All methods are safe to call from
// the ticker goroutine and request handlers; a tick runs to completion,
// including its publish call, before the next transition is applied.
type Engine struct {
	mu        sync.Mutex
	state     domain.JourneyState
	disposed  bool
	plan      Plan
	journey   domain.Journey
	kmPerStep float64
	elapsed   time.Duration
	ticks     int

	opts      Options
	publisher Publisher
	observers []func(domain.ProgressEvent)
	logger    *slog.Logger

	done     chan struct{}
	doneOnce sync.Once
}

func NewEngine(plan Plan, publisher Publisher, opts Options, logger *slog.Logger) *Engine {
	if opts.TickInterval <= 0 {
		opts.TickInterval = DefaultTickInterval
	}
	if opts.TickStep <= 0 {
		opts.TickStep = DefaultTickStep
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	var kmPerStep float64
	if plan.EstimatedTime > 0 {
		kmPerStep = plan.DistanceKm / (float64(plan.EstimatedTime) / float64(opts.TickStep))
	}

	return &Engine{
		plan:      plan,
		kmPerStep: kmPerStep,
		opts:      opts,
		publisher: publisher,
		logger:    logger.With("component", "journey", "plate", plan.BusPlateNumber),
		done:      make(chan struct{}),
	}
}

// OnProgress registers an observer for progress events. Observers run with
// the engine locked and must not call back into it.
func (e *Engine) OnProgress(fn func(domain.ProgressEvent)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.observers = append(e.observers, fn)
}

func (e *Engine) Start(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state != domain.JourneyNotStarted {
		return ErrAlreadyStarted
	}

	now := e.opts.Now()
	e.journey = domain.Journey{
		BusPlateNumber:         e.plan.BusPlateNumber,
		RouteCode:              e.plan.RouteCode,
		RouteName:              e.plan.RouteName,
		StartTime:              now,
		TotalDistanceKm:        e.plan.DistanceKm,
		CurrentLocation:        e.plan.Origin,
		Destination:            e.plan.Destination,
		EstimatedTimeRemaining: e.plan.EstimatedTime,
		DistanceRemainingKm:    e.plan.DistanceKm,
	}
	e.state = domain.JourneyOngoing

	if e.publisher != nil {
		attrs := domain.LiveAttributes{
			BusPlateNumber:  e.journey.BusPlateNumber,
			RouteCode:       e.journey.RouteCode,
			RouteName:       e.journey.RouteName,
			StartTime:       now,
			TotalDistanceKm: e.journey.TotalDistanceKm,
		}
		if err := e.publisher.Start(ctx, attrs, e.liveState()); err != nil {
			e.logger.Warn("live status unavailable, continuing in-process", "error", err)
		}
	}

	e.logger.Info("journey started",
		"route_code", e.plan.RouteCode,
		"destination", e.plan.Destination,
		"estimated", FormatMinutes(e.plan.EstimatedTime),
		"distance_km", e.plan.DistanceKm,
	)
	e.emit()
	return nil
}

// Resume continues a journey recovered after a restart whose live instance is
// still up. The publisher is not restarted; ticks resume from j.
func (e *Engine) Resume(j domain.Journey) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state != domain.JourneyNotStarted {
		return ErrAlreadyStarted
	}
	e.journey = j
	e.state = domain.JourneyOngoing
	e.logger.Info("journey resumed",
		"route_code", j.RouteCode,
		"remaining", FormatMinutes(j.EstimatedTimeRemaining),
		"distance_km", j.DistanceRemainingKm,
	)
	e.emit()
	return nil
}

// Tick applies one simulated step. On completion the final state is published
// and torn down before the engine reports Completed.
func (e *Engine) Tick(ctx context.Context) (domain.ProgressEvent, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.tick(ctx)
}

// Advance feeds d of wall-clock time to the engine, firing one tick per full
// TickInterval. Leftover time carries over to the next call.
func (e *Engine) Advance(ctx context.Context, d time.Duration) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state != domain.JourneyOngoing {
		return ErrNotOngoing
	}

	e.elapsed += d
	for e.elapsed >= e.opts.TickInterval && e.state == domain.JourneyOngoing {
		e.elapsed -= e.opts.TickInterval
		if _, err := e.tick(ctx); err != nil {
			return err
		}
	}
	return nil
}

func (e *Engine) tick(ctx context.Context) (domain.ProgressEvent, error) {
	if e.state != domain.JourneyOngoing {
		return domain.ProgressEvent{}, ErrNotOngoing
	}
	e.ticks++

	j := &e.journey
	j.EstimatedTimeRemaining -= e.opts.TickStep
	if j.EstimatedTimeRemaining < 0 {
		j.EstimatedTimeRemaining = 0
	}
	j.DistanceRemainingKm -= e.kmPerStep
	if j.DistanceRemainingKm < distanceEpsilon {
		j.DistanceRemainingKm = 0
	}

	if j.EstimatedTimeRemaining <= 0 || j.DistanceRemainingKm <= 0 {
		e.finish(ctx, "arrived")
		return e.event(), nil
	}

	j.CurrentLocation = "En route to " + j.Destination
	if e.publisher != nil {
		e.publisher.Update(ctx, e.liveState())
	}
	e.logger.Debug("journey tick",
		"tick", e.ticks,
		"remaining", FormatMinutes(j.EstimatedTimeRemaining),
		"distance_km", j.DistanceRemainingKm,
	)
	return e.emit(), nil
}

// Stop ends an ongoing journey early with the same effects as arrival.
func (e *Engine) Stop(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state != domain.JourneyOngoing {
		return ErrNotOngoing
	}
	e.finish(ctx, "stopped")
	return nil
}

// finish must be called with e.mu held. The done channel closes first so a
// runner blocked on its ticker cannot fire another tick. A failed live-status
// teardown is logged and the journey still completes.
func (e *Engine) finish(ctx context.Context, reason string) {
	e.doneOnce.Do(func() { close(e.done) })

	j := &e.journey
	j.CurrentLocation = j.Destination
	j.EstimatedTimeRemaining = 0
	j.DistanceRemainingKm = 0

	if e.publisher != nil {
		if err := e.publisher.End(ctx, e.liveState()); err != nil {
			e.logger.Error("failed to end live status", "error", err)
		}
	}

	e.state = domain.JourneyCompleted
	e.logger.Info("journey completed", "reason", reason, "ticks", e.ticks)
	e.emit()
}

// Acknowledge disposes of a completed journey.
func (e *Engine) Acknowledge() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state != domain.JourneyCompleted {
		return ErrNotCompleted
	}
	e.disposed = true
	e.observers = nil
	return nil
}

func (e *Engine) State() domain.JourneyState {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

func (e *Engine) Disposed() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.disposed
}

func (e *Engine) Journey() domain.Journey {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.journey
}

func (e *Engine) Plan() Plan {
	return e.plan
}

func (e *Engine) TickInterval() time.Duration {
	return e.opts.TickInterval
}

// Done is closed once the journey has completed.
func (e *Engine) Done() <-chan struct{} {
	return e.done
}

func (e *Engine) liveState() domain.LiveState {
	return domain.LiveState{
		CurrentLocation:        e.journey.CurrentLocation,
		Destination:            e.journey.Destination,
		EstimatedTimeRemaining: e.journey.EstimatedTimeRemaining,
		DistanceRemainingKm:    e.journey.DistanceRemainingKm,
	}
}

func (e *Engine) event() domain.ProgressEvent {
	return domain.ProgressEvent{
		State:                  e.state,
		CurrentLocation:        e.journey.CurrentLocation,
		Destination:            e.journey.Destination,
		EstimatedTimeRemaining: e.journey.EstimatedTimeRemaining,
		DistanceRemainingKm:    e.journey.DistanceRemainingKm,
		At:                     e.opts.Now(),
	}
}

func (e *Engine) emit() domain.ProgressEvent {
	ev := e.event()
	for _, fn := range e.observers {
		fn(ev)
	}
	return ev
}
