package journey

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"blink/internal/domain"
)

func gsRoute() *domain.BusRoute {
	names := []string{"Greenwich Park", "CBD Timur 1", "CBD Selatan", "AEON Mall 1", "AEON Mall 2"}
	r := &domain.BusRoute{
		RouteCode:            "GS",
		StartPoint:           "Greenwich Park",
		EndPoint:             "Halte Sektor 1.3",
		EstimatedTimeMinutes: 65,
		DistanceKm:           6.9,
	}
	for _, n := range names {
		r.Stations = append(r.Stations, domain.Station{Name: n})
	}
	return r
}

func gsBus() *domain.BusInfo {
	return &domain.BusInfo{
		PlateNumber:          "B7566PAA",
		RouteCode:            "GS",
		RouteName:            "Greenwich - Sektor 1.3 Loop Line",
		StartPoint:           "Greenwich Park",
		EndPoint:             "Halte Sektor 1.3",
		EstimatedTimeMinutes: 65,
		DistanceKm:           6.9,
	}
}

func TestPlanDestination(t *testing.T) {
	t.Run("Full route", func(t *testing.T) {
		p, err := PlanDestination(gsBus(), gsRoute(), "")
		require.NoError(t, err)
		assert.Equal(t, "Halte Sektor 1.3", p.Destination)
		assert.Equal(t, 65*time.Minute, p.EstimatedTime)
		assert.InDelta(t, 6.9, p.DistanceKm, 1e-9)
	})

	t.Run("End point is full route", func(t *testing.T) {
		p, err := PlanDestination(gsBus(), gsRoute(), "Halte Sektor 1.3")
		require.NoError(t, err)
		assert.Equal(t, 65*time.Minute, p.EstimatedTime)
	})

	t.Run("Intermediate station", func(t *testing.T) {
		p, err := PlanDestination(gsBus(), gsRoute(), "CBD Selatan")
		require.NoError(t, err)
		assert.Equal(t, "CBD Selatan", p.Destination)
		assert.Equal(t, 39*time.Minute, p.EstimatedTime)
		assert.InDelta(t, 6.9*3/5, p.DistanceKm, 1e-9)
	})

	t.Run("Distance grows with index", func(t *testing.T) {
		route := gsRoute()
		prev := 0.0
		for _, s := range route.Stations {
			p, err := PlanDestination(gsBus(), route, s.Name)
			require.NoError(t, err)
			assert.Greater(t, p.DistanceKm, prev)
			prev = p.DistanceKm
		}
	})

	t.Run("Unknown station", func(t *testing.T) {
		_, err := PlanDestination(gsBus(), gsRoute(), "Airport")
		assert.ErrorIs(t, err, ErrUnknownStation)

		_, err = PlanDestination(gsBus(), nil, "CBD Selatan")
		assert.ErrorIs(t, err, ErrUnknownStation)
	})

	t.Run("Defaults without route data", func(t *testing.T) {
		bus := &domain.BusInfo{PlateNumber: "B1A", EndPoint: "Intermoda"}
		p, err := PlanDestination(bus, nil, "")
		require.NoError(t, err)
		assert.Equal(t, 30*time.Minute, p.EstimatedTime)
		assert.InDelta(t, 0.5, p.DistanceKm, 1e-9)
	})
}

func TestFormat(t *testing.T) {
	tests := []struct {
		in   time.Duration
		want string
	}{
		{0, "0m"},
		{25 * time.Minute, "25m"},
		{65 * time.Minute, "1h 5m"},
		{120*time.Minute + 30*time.Second, "2h 0m"},
		{-time.Minute, "0m"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, FormatMinutes(tt.in))
	}

	assert.Equal(t, "6.9 km", FormatDistance(6.9))
	assert.Equal(t, "0.0 km", FormatDistance(-1))
}
