package domain

import (
	"fmt"
	"time"
)

// JourneyState is the lifecycle of one simulated journey.
type JourneyState int

const (
	JourneyNotStarted JourneyState = iota
	JourneyOngoing
	JourneyCompleted
)

func (s JourneyState) String() string {
	switch s {
	case JourneyNotStarted:
		return "start"
	case JourneyOngoing:
		return "ongoing"
	case JourneyCompleted:
		return "completed"
	default:
		return "unknown"
	}
}

func (s JourneyState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *JourneyState) UnmarshalText(text []byte) error {
	switch string(text) {
	case "start":
		*s = JourneyNotStarted
	case "ongoing":
		*s = JourneyOngoing
	case "completed":
		*s = JourneyCompleted
	default:
		return fmt.Errorf("unknown journey state %q", text)
	}
	return nil
}

// Journey is the durable view of the single active journey.
type Journey struct {
	BusPlateNumber         string        `json:"busPlateNumber"`
	RouteCode              string        `json:"routeCode"`
	RouteName              string        `json:"routeName"`
	StartTime              time.Time     `json:"startTime"`
	TotalDistanceKm        float64       `json:"totalDistanceKm"`
	CurrentLocation        string        `json:"currentLocation"`
	Destination            string        `json:"destination"`
	EstimatedTimeRemaining time.Duration `json:"estimatedTimeRemaining"`
	DistanceRemainingKm    float64       `json:"distanceRemainingKm"`
}

// LiveAttributes are fixed for the lifetime of a live-status instance.
type LiveAttributes struct {
	BusPlateNumber  string    `json:"busPlateNumber"`
	RouteCode       string    `json:"routeCode"`
	RouteName       string    `json:"routeName"`
	StartTime       time.Time `json:"startTime"`
	TotalDistanceKm float64   `json:"totalDistanceKm"`
}

// LiveState is the mutable content of a live-status instance.
type LiveState struct {
	CurrentLocation        string        `json:"currentLocation"`
	Destination            string        `json:"destination"`
	EstimatedTimeRemaining time.Duration `json:"estimatedTimeRemaining"`
	DistanceRemainingKm    float64       `json:"distanceRemainingKm"`
}

// Progress is the travelled fraction of totalKm, clamped to [0, 1].
func (s LiveState) Progress(totalKm float64) float64 {
	if totalKm <= 0 {
		return 0
	}
	p := (totalKm - s.DistanceRemainingKm) / totalKm
	if p < 0 {
		return 0
	}
	if p > 1 {
		return 1
	}
	return p
}

// ProgressEvent is emitted by the journey engine on every tick.
type ProgressEvent struct {
	State                  JourneyState  `json:"state"`
	CurrentLocation        string        `json:"currentLocation"`
	Destination            string        `json:"destination"`
	EstimatedTimeRemaining time.Duration `json:"estimatedTimeRemaining"`
	DistanceRemainingKm    float64       `json:"distanceRemainingKm"`
	At                     time.Time     `json:"at"`
}
