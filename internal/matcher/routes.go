package matcher

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/text/cases"

	"blink/internal/domain"
)

// RouteQuery filters routes for the route finder. Empty fields match all.
type RouteQuery struct {
	// Destination matches the route name, end point or any station name.
	Destination string
	// From matches the route's start point.
	From        string
}

func (m *Matcher) Route(ctx context.Context, code string) (*domain.BusRoute, error) {
	return m.store.RouteByCode(ctx, code)
}

func (m *Matcher) Routes(ctx context.Context) ([]*domain.BusRoute, error) {
	routes, err := m.store.ListRoutes(ctx)
	if err != nil {
		return nil, fmt.Errorf("list routes: %w", err)
	}
	return routes, nil
}

// RoutesServing returns the routes that stop at the named station.
func (m *Matcher) RoutesServing(ctx context.Context, station string) ([]*domain.BusRoute, error) {
	routes, err := m.store.RoutesByStation(ctx, station)
	if err != nil {
		return nil, fmt.Errorf("routes by station: %w", err)
	}
	return routes, nil
}

// FindRoutes applies a case-insensitive substring search over all routes.
func (m *Matcher) FindRoutes(ctx context.Context, q RouteQuery) ([]*domain.BusRoute, error) {
	routes, err := m.Routes(ctx)
	if err != nil {
		return nil, err
	}
	if q.Destination == "" && q.From == "" {
		return routes, nil
	}

	fold := cases.Fold()
	dest := fold.String(q.Destination)
	from := fold.String(q.From)
	contains := func(s, sub string) bool {
		return strings.Contains(fold.String(s), sub)
	}

	var out []*domain.BusRoute
	for _, r := range routes {
		matchesDest := dest == "" || contains(r.RouteName, dest) || contains(r.EndPoint, dest)
		if !matchesDest {
			for _, s := range r.Stations {
				if contains(s.Name, dest) {
					matchesDest = true
					break
				}
			}
		}
		matchesFrom := from == "" || contains(r.StartPoint, from)
		if matchesDest && matchesFrom {
			out = append(out, r)
		}
	}
	return out, nil
}
