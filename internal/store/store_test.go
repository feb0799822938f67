package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"blink/internal/domain"
)

func openStores(t *testing.T) map[string]RecordStore {
	t.Helper()

	db, err := OpenSQLite(filepath.Join(t.TempDir(), "blink.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	return map[string]RecordStore{
		"memory": NewMemory(),
		"sqlite": db,
	}
}

func testRoute(id, code string, stations ...string) *domain.BusRoute {
	r := &domain.BusRoute{
		ID:                   id,
		RouteName:            code + " Loop Line",
		StartPoint:           stations[0],
		EndPoint:             stations[len(stations)-1],
		RouteCode:            code,
		Color:                "green",
		EstimatedTimeMinutes: 65,
		DistanceKm:           6.9,
	}
	for _, s := range stations {
		r.Stations = append(r.Stations, domain.Station{Name: s})
	}
	return r
}

func testBus(id, plateNumber, code string) *domain.BusInfo {
	return &domain.BusInfo{
		ID:                   id,
		PlateNumber:          plateNumber,
		RouteCode:            code,
		RouteName:            code + " Loop Line",
		LastSeen:             time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
		EstimatedTimeMinutes: 65,
		DistanceKm:           6.9,
	}
}

func TestRoutes(t *testing.T) {
	ctx := context.Background()

	for name, s := range openStores(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, s.InsertRoute(ctx, testRoute("r1", "GS", "Greenwich Park", "The Breeze", "AEON Mall 1")))
			require.NoError(t, s.InsertRoute(ctx, testRoute("r2", "BC", "The Breeze", "ICE 1")))

			n, err := s.CountRoutes(ctx)
			require.NoError(t, err)
			assert.Equal(t, 2, n)

			routes, err := s.ListRoutes(ctx)
			require.NoError(t, err)
			require.Len(t, routes, 2)
			assert.Equal(t, "GS", routes[0].RouteCode)
			assert.Equal(t, "BC", routes[1].RouteCode)

			gs, err := s.RouteByCode(ctx, "GS")
			require.NoError(t, err)
			assert.Equal(t, "r1", gs.ID)
			require.Len(t, gs.Stations, 3)
			assert.Equal(t, "The Breeze", gs.Stations[1].Name)

			_, err = s.RouteByCode(ctx, "XX")
			assert.ErrorIs(t, err, ErrNotFound)

			serving, err := s.RoutesByStation(ctx, "The Breeze")
			require.NoError(t, err)
			require.Len(t, serving, 2)
			assert.Equal(t, "GS", serving[0].RouteCode)

			serving, err = s.RoutesByStation(ctx, "ICE 1")
			require.NoError(t, err)
			require.Len(t, serving, 1)
			assert.Equal(t, "BC", serving[0].RouteCode)
		})
	}
}

func TestRouteReadsAreCopies(t *testing.T) {
	ctx := context.Background()
	s := NewMemory()
	require.NoError(t, s.InsertRoute(ctx, testRoute("r1", "GS", "A", "B")))

	r, err := s.RouteByCode(ctx, "GS")
	require.NoError(t, err)
	r.Stations[0].IsCurrentStation = true

	again, err := s.RouteByCode(ctx, "GS")
	require.NoError(t, err)
	assert.False(t, again.Stations[0].IsCurrentStation)
}

func TestBuses(t *testing.T) {
	ctx := context.Background()

	for name, s := range openStores(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, s.InsertBus(ctx, testBus("b1", "B7866PAA", "ID2")))
			require.NoError(t, s.InsertBus(ctx, testBus("b2", "B7266JF", "GS")))
			require.NoError(t, s.InsertBus(ctx, testBus("b3", "B7866PAA", "BC")))

			n, err := s.CountBuses(ctx)
			require.NoError(t, err)
			assert.Equal(t, 3, n)

			dupes, err := s.BusesByPlate(ctx, "b 7866 paa")
			require.NoError(t, err)
			require.Len(t, dupes, 2)
			assert.Equal(t, "ID2", dupes[0].RouteCode)
			assert.Equal(t, "BC", dupes[1].RouteCode)

			seen := time.Date(2026, 5, 6, 7, 8, 9, 0, time.UTC)
			require.NoError(t, s.TouchLastSeen(ctx, "b2", seen))

			buses, err := s.ListBuses(ctx)
			require.NoError(t, err)
			require.Len(t, buses, 3)
			assert.True(t, seen.Equal(buses[1].LastSeen))

			b := buses[1]
			b.RouteCode = "IS"
			require.NoError(t, s.SaveBus(ctx, b))

			require.NoError(t, s.DeleteBus(ctx, "b1"))
			assert.ErrorIs(t, s.DeleteBus(ctx, "b1"), ErrNotFound)
			assert.ErrorIs(t, s.TouchLastSeen(ctx, "missing", seen), ErrNotFound)

			buses, err = s.ListBuses(ctx)
			require.NoError(t, err)
			require.Len(t, buses, 2)
			assert.Equal(t, "b2", buses[0].ID)
			assert.Equal(t, "IS", buses[0].RouteCode)
		})
	}
}

func TestClear(t *testing.T) {
	ctx := context.Background()

	for name, s := range openStores(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, s.InsertRoute(ctx, testRoute("r1", "GS", "A", "B")))
			require.NoError(t, s.InsertBus(ctx, testBus("b1", "B7566PAA", "GS")))

			require.NoError(t, s.Clear(ctx))

			routes, err := s.CountRoutes(ctx)
			require.NoError(t, err)
			buses, err := s.CountBuses(ctx)
			require.NoError(t, err)
			assert.Zero(t, routes)
			assert.Zero(t, buses)

			serving, err := s.RoutesByStation(ctx, "A")
			require.NoError(t, err)
			assert.Empty(t, serving)
		})
	}
}

func TestSQLiteReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "blink.db")

	db, err := OpenSQLite(path)
	require.NoError(t, err)
	require.NoError(t, db.InsertRoute(ctx, testRoute("r1", "GS", "A", "B")))
	require.NoError(t, db.Close())

	db, err = OpenSQLite(path)
	require.NoError(t, err)
	defer db.Close()

	n, err := db.CountRoutes(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}
