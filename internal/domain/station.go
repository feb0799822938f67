package domain

import "time"

// RecomputeStationStatus marks current/previous/next stations from wall-clock
// time. The bus is assumed to loop the route once per EstimatedTimeMinutes,
// starting at midnight.
func RecomputeStationStatus(route *BusRoute, now time.Time) {
	n := len(route.Stations)
	cycle := route.EstimatedTimeMinutes
	if n == 0 || cycle <= 0 {
		return
	}

	minutesIntoCycle := (now.Hour()*60 + now.Minute()) % cycle
	current := int(float64(minutesIntoCycle)/float64(cycle)*float64(n)) % n
	step := cycle / n

	for i := range route.Stations {
		s := &route.Stations[i]
		s.IsCurrentStation = i == current
		s.IsPreviousStation = i == (current-1+n)%n
		s.IsNextStation = i == (current+1)%n

		arrival := now.Add(time.Duration(((i-current+n)%n)*step) * time.Minute)
		s.ArrivalTime = &arrival
	}
}

// AnnotateArrivals assigns display arrival times base, base+step, ...
func AnnotateArrivals(stations []Station, base time.Time, step time.Duration) []Station {
	out := make([]Station, len(stations))
	for i, s := range stations {
		at := base.Add(time.Duration(i) * step)
		s.ArrivalTime = &at
		out[i] = s
	}
	return out
}
