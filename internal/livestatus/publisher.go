package livestatus

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"blink/internal/domain"
)

type handle struct {
	id    string
	attrs domain.LiveAttributes
	state domain.LiveState
}

// Publisher enforces at most one active journey across the surface and the
// durable snapshot. It is owned by the application context.
type Publisher struct {
	mu        sync.Mutex
	surface   Surface
	snapshots SnapshotStore
	current   *handle
	logger    *slog.Logger
	now       func() time.Time

	pending sync.WaitGroup
}

func NewPublisher(surface Surface, snapshots SnapshotStore, logger *slog.Logger) *Publisher {
	return &Publisher{
		surface:   surface,
		snapshots: snapshots,
		logger:    logger.With("component", "live_status"),
		now:       time.Now,
	}
}

// Start force-ends every earlier journey, then creates the live instance and
// writes a fresh snapshot. It returns ErrUnauthorized without side effects
// when the surface is disabled.
func (p *Publisher) Start(ctx context.Context, attrs domain.LiveAttributes, state domain.LiveState) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.surface.Authorized(ctx) {
		p.logger.Info("live status disabled, skipping start", "plate", attrs.BusPlateNumber)
		return ErrUnauthorized
	}

	p.forceEndAll(ctx)

	id, err := p.surface.Create(ctx, attrs, state)
	if err != nil {
		return fmt.Errorf("create live activity: %w", err)
	}
	p.current = &handle{id: id, attrs: attrs, state: state}
	p.writeSnapshot(ctx)

	p.logger.Info("live activity started", "activity_id", id, "plate", attrs.BusPlateNumber)
	return nil
}

// Update pushes new content to the active instance and refreshes the
// snapshot's remaining time and distance. It is a no-op when no journey is
// active.
func (p *Publisher) Update(ctx context.Context, state domain.LiveState) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.current == nil {
		return
	}
	if state.Destination == "" {
		state.Destination = p.current.state.Destination
	}
	p.current.state = state
	if err := p.surface.Update(ctx, p.current.id, state); err != nil {
		p.logger.Warn("failed to update live activity", "activity_id", p.current.id, "error", err)
	}
	p.writeSnapshot(ctx)
}

func (p *Publisher) writeSnapshot(ctx context.Context) {
	snap := &Snapshot{
		Version:    SnapshotVersion,
		ActivityID: p.current.id,
		Journey:    journeyFrom(p.current.attrs, p.current.state),
		WrittenAt:  p.now(),
	}
	if err := p.snapshots.Set(ctx, snap); err != nil {
		p.logger.Error("failed to write journey snapshot", "error", err)
	}
}

// End writes the terminal state (no time or distance left, location at the
// destination) to the active instance and tears it down. Only final's
// destination is used, and only when set. The snapshot is removed before the
// instance so an interrupted teardown leaves an orphan instead of a phantom
// journey. It returns once teardown has finished; an instance the surface
// already dismissed counts as ended.
func (p *Publisher) End(ctx context.Context, final domain.LiveState) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.end(ctx, final)
}

// EndAsync is End without waiting. Wait blocks until pending calls finish.
func (p *Publisher) EndAsync(final domain.LiveState) {
	p.pending.Add(1)
	go func() {
		defer p.pending.Done()
		if err := p.End(context.Background(), final); err != nil {
			p.logger.Error("async end failed", "error", err)
		}
	}()
}

func (p *Publisher) Wait() {
	p.pending.Wait()
}

func (p *Publisher) end(ctx context.Context, final domain.LiveState) error {
	if err := p.snapshots.Remove(ctx); err != nil {
		p.logger.Error("failed to clear journey snapshot", "error", err)
	}

	if p.current == nil {
		return nil
	}
	h := p.current
	p.current = nil

	last := h.state
	if final.Destination != "" {
		last.Destination = final.Destination
	}
	err := p.surface.End(ctx, h.id, terminalState(last), DismissImmediate)
	switch {
	case errors.Is(err, ErrActivityNotFound):
		p.logger.Info("live activity already dismissed", "activity_id", h.id, "plate", h.attrs.BusPlateNumber)
		return nil
	case err != nil:
		return fmt.Errorf("end live activity %s: %w", h.id, err)
	}

	p.logger.Info("live activity ended", "activity_id", h.id, "plate", h.attrs.BusPlateNumber)
	return nil
}

// forceEndAll ends the held instance, every discoverable instance, and the
// snapshot. Failures are logged; cleanup continues.
func (p *Publisher) forceEndAll(ctx context.Context) {
	if p.current != nil {
		if err := p.end(ctx, domain.LiveState{}); err != nil {
			p.logger.Warn("failed to end previous activity", "error", err)
		}
	}

	active, err := p.surface.Active(ctx)
	if err != nil {
		p.logger.Warn("failed to enumerate live activities", "error", err)
	}
	for _, a := range active {
		if a.Kind != "" && a.Kind != ActivityKind {
			continue
		}
		if err := p.surface.End(ctx, a.ID, terminalState(a.State), DismissImmediate); err != nil {
			p.logger.Warn("failed to end stray activity", "activity_id", a.ID, "error", err)
			continue
		}
		p.logger.Info("ended stray live activity", "activity_id", a.ID)
	}

	if err := p.snapshots.Remove(ctx); err != nil {
		p.logger.Error("failed to clear journey snapshot", "error", err)
	}
}

// HasActiveJourney reports whether the durable snapshot holds a journey.
func (p *Publisher) HasActiveJourney(ctx context.Context) bool {
	_, ok := p.CurrentJourneySnapshot(ctx)
	return ok
}

func (p *Publisher) CurrentJourneySnapshot(ctx context.Context) (*domain.Journey, bool) {
	snap, err := p.snapshots.Get(ctx)
	if err != nil {
		p.logger.Warn("failed to read journey snapshot", "error", err)
		return nil, false
	}
	if snap == nil {
		return nil, false
	}
	j := snap.Journey
	return &j, true
}

type ReconcileResult struct {
	// Orphaned is true when a snapshot had no live instance and was cleared.
	Orphaned bool `json:"orphaned"`
	// Adopted is true when the snapshot's instance was still live and is now
	// held by this publisher.
	Adopted bool `json:"adopted"`
	// Ended counts live instances torn down because no snapshot claimed them.
	Ended int `json:"ended"`
	// Journey is the adopted journey carrying the instance's current content.
	Journey *domain.Journey `json:"journey,omitempty"`
}

// Reconcile runs at launch. A snapshot without a matching instance is an
// orphan and is cleared; instances the snapshot does not claim are ended.
func (p *Publisher) Reconcile(ctx context.Context) (ReconcileResult, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	var res ReconcileResult

	snap, err := p.snapshots.Get(ctx)
	if err != nil {
		p.logger.Warn("unreadable journey snapshot, treating as orphan", "error", err)
		snap = nil
		res.Orphaned = true
		if rmErr := p.snapshots.Remove(ctx); rmErr != nil {
			p.logger.Error("failed to clear journey snapshot", "error", rmErr)
		}
	}

	active, err := p.surface.Active(ctx)
	if err != nil {
		return res, fmt.Errorf("enumerate live activities: %w", err)
	}

	for _, a := range active {
		if a.Kind != "" && a.Kind != ActivityKind {
			continue
		}
		if snap != nil && a.ID == snap.ActivityID && p.current == nil {
			p.current = &handle{id: a.ID, attrs: a.Attributes, state: a.State}
			if p.current.state.Destination == "" {
				p.current.state.Destination = snap.Journey.Destination
			}
			j := journeyFrom(p.current.attrs, p.current.state)
			res.Adopted = true
			res.Journey = &j
			p.writeSnapshot(ctx)
			continue
		}
		if p.current != nil && a.ID == p.current.id {
			continue
		}
		if err := p.surface.End(ctx, a.ID, terminalState(a.State), DismissImmediate); err != nil {
			p.logger.Warn("failed to end stray activity", "activity_id", a.ID, "error", err)
			continue
		}
		res.Ended++
	}

	if snap != nil && !res.Adopted {
		res.Orphaned = true
		if err := p.snapshots.Remove(ctx); err != nil {
			return res, fmt.Errorf("clear orphaned snapshot: %w", err)
		}
		p.logger.Info("cleared orphaned journey", "plate", snap.Journey.BusPlateNumber)
	}

	return res, nil
}

// ActiveID returns the held instance id, if any.
func (p *Publisher) ActiveID() (string, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.current == nil {
		return "", false
	}
	return p.current.id, true
}

func terminalState(s domain.LiveState) domain.LiveState {
	return domain.LiveState{
		CurrentLocation: s.Destination,
		Destination:     s.Destination,
	}
}

func journeyFrom(attrs domain.LiveAttributes, state domain.LiveState) domain.Journey {
	return domain.Journey{
		BusPlateNumber:         attrs.BusPlateNumber,
		RouteCode:              attrs.RouteCode,
		RouteName:              attrs.RouteName,
		StartTime:              attrs.StartTime,
		TotalDistanceKm:        attrs.TotalDistanceKm,
		CurrentLocation:        state.CurrentLocation,
		Destination:            state.Destination,
		EstimatedTimeRemaining: state.EstimatedTimeRemaining,
		DistanceRemainingKm:    state.DistanceRemainingKm,
	}
}

