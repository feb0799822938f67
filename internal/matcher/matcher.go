// Package matcher resolves scanned plates to bus records, synthesizing rows
// for roster plates that are missing from the store.
package matcher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"blink/internal/domain"
	"blink/internal/plate"
	"blink/internal/seed"
	"blink/internal/store"
)

type Outcome int

const (
	Unrecognized Outcome = iota
	Matched
	Synthesized
)

func (o Outcome) String() string {
	switch o {
	case Matched:
		return "matched"
	case Synthesized:
		return "synthesized"
	default:
		return "unrecognized"
	}
}

func (o Outcome) MarshalText() ([]byte, error) {
	return []byte(o.String()), nil
}

func (o *Outcome) UnmarshalText(text []byte) error {
	switch string(text) {
	case "matched":
		*o = Matched
	case "synthesized":
		*o = Synthesized
	case "unrecognized":
		*o = Unrecognized
	default:
		return fmt.Errorf("unknown match outcome %q", text)
	}
	return nil
}

// Result is the outcome of resolving one plate. Bus is nil only when the
// plate was not recognized; Route is nil when the bus's route is not stored.
type Result struct {
	Outcome Outcome          `json:"outcome"`
	Plate   string           `json:"plate"`
	Bus     *domain.BusInfo  `json:"bus,omitempty"`
	Route   *domain.BusRoute `json:"route,omitempty"`
}

func (r Result) Recognized() bool {
	return r.Outcome != Unrecognized
}

type Matcher struct {
	store  store.RecordStore
	plates *seed.PlateTable
	logger *slog.Logger
	now    func() time.Time

	// synthMu serializes the re-check and insert of synthesized rows.
	synthMu sync.Mutex
}

func New(s store.RecordStore, plates *seed.PlateTable, logger *slog.Logger) *Matcher {
	return &Matcher{
		store:  s,
		plates: plates,
		logger: logger.With("component", "matcher"),
		now:    time.Now,
	}
}

// FindRecord returns the first stored bus whose plate normalizes to the same
// key as raw. Store failures are logged and reported as a miss.
func (m *Matcher) FindRecord(ctx context.Context, raw string) (*domain.BusInfo, bool) {
	key := plate.Normalize(raw)
	if key == "" {
		return nil, false
	}

	buses, err := m.store.BusesByPlate(ctx, key)
	if err != nil {
		m.logger.Error("failed to look up bus", "plate", key, "error", err)
		return nil, false
	}
	if len(buses) == 0 {
		return nil, false
	}
	if len(buses) > 1 {
		m.logger.Debug("duplicate bus records", "plate", key, "count", len(buses))
	}
	return buses[0], true
}

func (m *Matcher) IsKnownSeedPlate(raw string) bool {
	return m.plates.IsKnown(raw)
}

func (m *Matcher) SeedRecordFor(raw string) (seed.SeedRecord, bool) {
	return m.plates.RecordFor(raw)
}

// Resolve matches raw against the store, then against the seed table. A stored
// match has its lastSeen refreshed. A seed-only match is persisted once.
func (m *Matcher) Resolve(ctx context.Context, raw string) Result {
	key := plate.Normalize(raw)
	res := Result{Plate: key}
	if key == "" {
		return res
	}

	if bus, ok := m.FindRecord(ctx, key); ok {
		m.touch(ctx, bus)
		res.Outcome = Matched
		res.Bus = bus
		res.Route = m.route(ctx, bus.RouteCode)
		return res
	}

	rec, ok := m.plates.RecordFor(key)
	if !ok {
		m.logger.Info("plate not recognized", "plate", key)
		return res
	}

	bus, created := m.synthesize(ctx, key, rec)
	res.Bus = bus
	res.Route = m.route(ctx, bus.RouteCode)
	if created {
		res.Outcome = Synthesized
	} else {
		res.Outcome = Matched
	}
	return res
}

func (m *Matcher) synthesize(ctx context.Context, key string, rec seed.SeedRecord) (*domain.BusInfo, bool) {
	m.synthMu.Lock()
	defer m.synthMu.Unlock()

	if bus, ok := m.FindRecord(ctx, key); ok {
		m.logger.Debug("bus inserted concurrently, reusing", "plate", key)
		m.touch(ctx, bus)
		return bus, false
	}

	bus := &domain.BusInfo{
		ID:                   uuid.New().String(),
		PlateNumber:          rec.Plate,
		RouteCode:            rec.RouteCode,
		RouteName:            rec.RouteName,
		LastSeen:             m.now(),
		StartPoint:           rec.StartPoint,
		EndPoint:             rec.EndPoint,
		EstimatedTimeMinutes: domain.DefaultEstimatedTimeMinutes,
		DistanceKm:           domain.DefaultDistanceKm,
	}
	if rec.EstimatedTimeMinutes > 0 {
		bus.EstimatedTimeMinutes = rec.EstimatedTimeMinutes
	}
	if rec.DistanceKm > 0 {
		bus.DistanceKm = rec.DistanceKm
	}
	if route := m.route(ctx, rec.RouteCode); route != nil {
		bus.StartPoint = route.StartPoint
		bus.EndPoint = route.EndPoint
		bus.EstimatedTimeMinutes = route.EstimatedTimeMinutes
		bus.DistanceKm = route.DistanceKm
	}

	if err := m.store.InsertBus(ctx, bus); err != nil {
		m.logger.Error("failed to persist synthesized bus", "plate", key, "error", err)
	} else {
		m.logger.Info("synthesized bus from seed table", "plate", key, "route_code", bus.RouteCode)
	}
	return bus, true
}

func (m *Matcher) touch(ctx context.Context, bus *domain.BusInfo) {
	now := m.now()
	if err := m.store.TouchLastSeen(ctx, bus.ID, now); err != nil {
		m.logger.Warn("failed to update last seen", "plate", bus.PlateNumber, "error", err)
		return
	}
	bus.LastSeen = now
}

func (m *Matcher) route(ctx context.Context, code string) *domain.BusRoute {
	r, err := m.store.RouteByCode(ctx, code)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			m.logger.Error("failed to load route", "route_code", code, "error", err)
		}
		return nil
	}
	return r
}
