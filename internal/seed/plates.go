package seed

import "blink/internal/plate"

// SeedRecord is what the plate table knows about a roster plate.
type SeedRecord struct {
	Plate                string  `json:"plate"`
	RouteCode            string  `json:"routeCode"`
	RouteName            string  `json:"routeName"`
	StartPoint           string  `json:"startPoint"`
	EndPoint             string  `json:"endPoint"`
	EstimatedTimeMinutes int     `json:"estimatedTimeMinutes"`
	DistanceKm           float64 `json:"distanceKm"`
}

// PlateTable maps normalized roster plates to their route. When a plate is
// listed more than once the first listing wins.
type PlateTable struct {
	entries map[string]SeedRecord
	order   []string
}

func NewPlateTable(r *Roster) *PlateTable {
	t := &PlateTable{entries: make(map[string]SeedRecord, len(r.Buses))}

	for _, b := range r.Buses {
		key := plate.Normalize(b.Plate)
		if key == "" {
			continue
		}
		if _, dup := t.entries[key]; dup {
			continue
		}

		rec := SeedRecord{Plate: b.Plate, RouteCode: b.RouteCode, RouteName: b.RouteName}
		if rs, ok := r.Route(b.RouteCode); ok {
			rec.StartPoint = rs.StartPoint
			rec.EndPoint = rs.EndPoint
			rec.EstimatedTimeMinutes = rs.EstimatedTimeMinutes
			rec.DistanceKm = rs.DistanceKm
			if rec.RouteName == "" {
				rec.RouteName = rs.Name
			}
		}
		t.entries[key] = rec
		t.order = append(t.order, key)
	}
	return t
}

func (t *PlateTable) IsKnown(raw string) bool {
	_, ok := t.entries[plate.Normalize(raw)]
	return ok
}

func (t *PlateTable) RecordFor(raw string) (SeedRecord, bool) {
	rec, ok := t.entries[plate.Normalize(raw)]
	return rec, ok
}

func (t *PlateTable) Len() int {
	return len(t.entries)
}

// Plates lists the table's plates in roster order.
func (t *PlateTable) Plates() []string {
	out := make([]string, 0, len(t.order))
	for _, key := range t.order {
		out = append(out, t.entries[key].Plate)
	}
	return out
}
