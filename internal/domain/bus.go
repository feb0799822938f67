package domain

import "time"

const (
	DefaultEstimatedTimeMinutes = 30
	DefaultDistanceKm           = 0.5
)

// Station is a named stop on a route. At most one station per route carries
// each of the current/previous/next flags after a recompute.
type Station struct {
	Name              string     `json:"name"`
	ArrivalTime       *time.Time `json:"arrivalTime,omitempty"`
	IsCurrentStation  bool       `json:"isCurrentStation"`
	IsPreviousStation bool       `json:"isPreviousStation"`
	IsNextStation     bool       `json:"isNextStation"`
}

// BusRoute is a loop of stations. RouteCode is the business key used for lookups.
type BusRoute struct {
	ID                   string    `json:"id"`
	RouteName            string    `json:"routeName"`
	StartPoint           string    `json:"startPoint"`
	EndPoint             string    `json:"endPoint"`
	Stations             []Station `json:"stations"`
	RouteCode            string    `json:"routeCode"`
	Color                string    `json:"color"`
	EstimatedTimeMinutes int       `json:"estimatedTimeMinutes"`
	DistanceKm           float64   `json:"distanceKm"`
	RouteDescription     string    `json:"routeDescription,omitempty"`
}

// StationIndex returns the position of the first station with the given name.
func (r *BusRoute) StationIndex(name string) int {
	for i, s := range r.Stations {
		if s.Name == name {
			return i
		}
	}
	return -1
}

// Clone returns a deep copy so callers can mutate station flags freely.
func (r *BusRoute) Clone() *BusRoute {
	cp := *r
	cp.Stations = make([]Station, len(r.Stations))
	copy(cp.Stations, r.Stations)
	return &cp
}

// BusInfo is a physical vehicle. PlateNumber is stored canonical but the store
// does not enforce uniqueness.
type BusInfo struct {
	ID                   string    `json:"id"`
	PlateNumber          string    `json:"plateNumber"`
	RouteCode            string    `json:"routeCode"`
	RouteName            string    `json:"routeName"`
	LastSeen             time.Time `json:"lastSeen"`
	StartPoint           string    `json:"startPoint"`
	EndPoint             string    `json:"endPoint"`
	EstimatedTimeMinutes int       `json:"estimatedTimeMinutes"`
	DistanceKm           float64   `json:"distanceKm"`
}
