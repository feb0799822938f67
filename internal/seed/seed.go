package seed

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/pelletier/go-toml/v2"

	"blink/internal/domain"
	"blink/internal/store"
)

// LoadRoster reads a TOML roster. An empty path returns the built-in roster.
func LoadRoster(path string) (*Roster, error) {
	if path == "" {
		return Default(), nil
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open roster: %w", err)
	}
	defer file.Close()

	var r Roster
	decoder := toml.NewDecoder(file)
	if err := decoder.Decode(&r); err != nil {
		return nil, fmt.Errorf("parse roster: %w", err)
	}
	if err := r.Validate(); err != nil {
		return nil, err
	}
	return &r, nil
}

func (r *Roster) Validate() error {
	if len(r.Routes) == 0 {
		return errors.New("roster: no routes")
	}
	seen := make(map[string]struct{}, len(r.Routes))
	for i, rs := range r.Routes {
		if rs.Code == "" {
			return fmt.Errorf("roster: route %d has no code", i)
		}
		if _, dup := seen[rs.Code]; dup {
			return fmt.Errorf("roster: duplicate route code %q", rs.Code)
		}
		seen[rs.Code] = struct{}{}
		if len(rs.Stations) == 0 {
			return fmt.Errorf("roster: route %s has no stations", rs.Code)
		}
	}
	for i, b := range r.Buses {
		if b.Plate == "" || b.RouteCode == "" {
			return fmt.Errorf("roster: bus %d needs plate and route_code", i)
		}
	}
	return nil
}

// Seeder loads a roster into an empty record store.
type Seeder struct {
	store  store.RecordStore
	roster *Roster
	logger *slog.Logger
	now    func() time.Time
}

func NewSeeder(s store.RecordStore, r *Roster, logger *slog.Logger) *Seeder {
	return &Seeder{
		store:  s,
		roster: r,
		logger: logger.With("component", "seeder"),
		now:    time.Now,
	}
}

// Run seeds the store when it holds no routes. A failed attempt clears the
// store and is retried once; the second failure is returned.
func (s *Seeder) Run(ctx context.Context) (bool, error) {
	count, err := s.store.CountRoutes(ctx)
	if err != nil {
		s.logger.Error("failed to count routes, seeding anyway", "error", err)
	} else if count > 0 {
		s.logger.Debug("store already seeded", "routes", count)
		return false, nil
	}

	start := time.Now()
	if err := s.insertAll(ctx); err != nil {
		s.logger.Warn("seeding failed, clearing and retrying", "error", err)
		if clearErr := s.store.Clear(ctx); clearErr != nil {
			s.logger.Error("failed to clear store", "error", clearErr)
		}
		if err := s.insertAll(ctx); err != nil {
			return false, fmt.Errorf("seed retry: %w", err)
		}
	}

	s.logger.Info("store seeded",
		"routes", len(s.roster.Routes),
		"buses", len(s.roster.Buses),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return true, nil
}

func (s *Seeder) insertAll(ctx context.Context) error {
	now := s.now()

	for _, rs := range s.roster.Routes {
		if err := s.store.InsertRoute(ctx, rs.toRoute()); err != nil {
			return fmt.Errorf("insert route %s: %w", rs.Code, err)
		}
	}
	for _, b := range s.roster.Buses {
		if err := s.store.InsertBus(ctx, BusFromSeed(s.roster, b, now)); err != nil {
			return fmt.Errorf("insert bus %s: %w", b.Plate, err)
		}
	}
	return nil
}

func (rs RouteSpec) toRoute() *domain.BusRoute {
	r := &domain.BusRoute{
		ID:                   uuid.New().String(),
		RouteName:            rs.Name,
		StartPoint:           rs.StartPoint,
		EndPoint:             rs.EndPoint,
		RouteCode:            rs.Code,
		Color:                rs.Color,
		EstimatedTimeMinutes: rs.EstimatedTimeMinutes,
		DistanceKm:           rs.DistanceKm,
		RouteDescription:     rs.Description,
		Stations:             make([]domain.Station, len(rs.Stations)),
	}
	for i, name := range rs.Stations {
		r.Stations[i] = domain.Station{Name: name}
	}
	return r
}

// BusFromSeed builds a bus row, copying route fields from the roster when the
// route is known and falling back to the default time and distance otherwise.
func BusFromSeed(r *Roster, b BusSpec, seen time.Time) *domain.BusInfo {
	bus := &domain.BusInfo{
		ID:                   uuid.New().String(),
		PlateNumber:          b.Plate,
		RouteCode:            b.RouteCode,
		RouteName:            b.RouteName,
		LastSeen:             seen,
		EstimatedTimeMinutes: domain.DefaultEstimatedTimeMinutes,
		DistanceKm:           domain.DefaultDistanceKm,
	}
	if rs, ok := r.Route(b.RouteCode); ok {
		bus.StartPoint = rs.StartPoint
		bus.EndPoint = rs.EndPoint
		if rs.EstimatedTimeMinutes > 0 {
			bus.EstimatedTimeMinutes = rs.EstimatedTimeMinutes
		}
		if rs.DistanceKm > 0 {
			bus.DistanceKm = rs.DistanceKm
		}
		if bus.RouteName == "" {
			bus.RouteName = rs.Name
		}
	}
	return bus
}
