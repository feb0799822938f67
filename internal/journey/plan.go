package journey

import (
	"errors"
	"fmt"
	"time"

	"blink/internal/domain"
)

var ErrUnknownStation = errors.New("station not on route")

// Plan is everything the engine needs to simulate one journey.
type Plan struct {
	BusPlateNumber string        `json:"busPlateNumber"`
	RouteCode      string        `json:"routeCode"`
	RouteName      string        `json:"routeName"`
	Origin         string        `json:"origin"`
	Destination    string        `json:"destination"`
	EstimatedTime  time.Duration `json:"estimatedTime"`
	DistanceKm     float64       `json:"distanceKm"`
}

// PlanDestination builds the plan for riding bus toward station. An empty
// station, or the route's end point, means the full route. Any other station
// gets a share of the route proportional to its position:
// time and distance scale by (index+1)/len(stations).
func PlanDestination(bus *domain.BusInfo, route *domain.BusRoute, station string) (Plan, error) {
	p := Plan{
		BusPlateNumber: bus.PlateNumber,
		RouteCode:      bus.RouteCode,
		RouteName:      bus.RouteName,
		Origin:         bus.StartPoint,
		Destination:    bus.EndPoint,
		EstimatedTime:  time.Duration(bus.EstimatedTimeMinutes) * time.Minute,
		DistanceKm:     bus.DistanceKm,
	}
	if route != nil {
		if p.Origin == "" {
			p.Origin = route.StartPoint
		}
		if p.Destination == "" {
			p.Destination = route.EndPoint
		}
		if route.EstimatedTimeMinutes > 0 {
			p.EstimatedTime = time.Duration(route.EstimatedTimeMinutes) * time.Minute
		}
		if route.DistanceKm > 0 {
			p.DistanceKm = route.DistanceKm
		}
	}
	if p.EstimatedTime <= 0 {
		p.EstimatedTime = domain.DefaultEstimatedTimeMinutes * time.Minute
	}
	if p.DistanceKm <= 0 {
		p.DistanceKm = domain.DefaultDistanceKm
	}

	if station == "" || station == p.Destination {
		return p, nil
	}
	if route == nil {
		return Plan{}, fmt.Errorf("%w: %q (route %s not loaded)", ErrUnknownStation, station, bus.RouteCode)
	}

	idx := route.StationIndex(station)
	if idx < 0 {
		return Plan{}, fmt.Errorf("%w: %q on %s", ErrUnknownStation, station, route.RouteCode)
	}

	n := len(route.Stations)
	share := float64(idx+1) / float64(n)
	minutes := p.EstimatedTime.Minutes() * share
	p.EstimatedTime = time.Duration(minutes * float64(time.Minute)).Round(time.Minute)
	if p.EstimatedTime < time.Minute {
		p.EstimatedTime = time.Minute
	}
	p.DistanceKm *= share
	p.Destination = station
	return p, nil
}
