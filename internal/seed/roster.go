// Package seed holds the built-in route and bus roster and loads it into a
// record store on first launch.
package seed

const defaultDistanceKm = 6.9

type RouteSpec struct {
	Code                 string   `toml:"code" json:"code"`
	Name                 string   `toml:"name" json:"name"`
	Description          string   `toml:"description" json:"description,omitempty"`
	Color                string   `toml:"color" json:"color"`
	StartPoint           string   `toml:"start_point" json:"startPoint"`
	EndPoint             string   `toml:"end_point" json:"endPoint"`
	EstimatedTimeMinutes int      `toml:"estimated_time_minutes" json:"estimatedTimeMinutes"`
	DistanceKm           float64  `toml:"distance_km" json:"distanceKm"`
	Stations             []string `toml:"stations" json:"stations"`
}

type BusSpec struct {
	Plate     string `toml:"plate" json:"plate"`
	RouteCode string `toml:"route_code" json:"routeCode"`
	RouteName string `toml:"route_name" json:"routeName"`
}

type Roster struct {
	Routes []RouteSpec `toml:"routes" json:"routes"`
	Buses  []BusSpec   `toml:"buses" json:"buses"`
}

// Route returns the roster entry for code, if present.
func (r *Roster) Route(code string) (RouteSpec, bool) {
	for _, rs := range r.Routes {
		if rs.Code == code {
			return rs, true
		}
	}
	return RouteSpec{}, false
}

var breezeLoop = []string{
	"CBD Timur 1", "CBD Selatan", "AEON Mall 1", "AEON Mall 2", "CDB Utara 3",
	"ICE 1", "ICE 2", "ICE Business Park", "ICE 6", "ICE 5", "CBD Barat 1",
	"CBD Barat 2", "Lobby AEON Mall", "CBD Timur 2", "Navapark 1", "Green cove",
}

func withStart(start string, rest []string) []string {
	return append([]string{start}, rest...)
}

// Default returns the roster shipped with the app. Plate B7866PAA is listed
// twice (ID2 and BC) as in the fleet data.
func Default() *Roster {
	return &Roster{
		Routes: []RouteSpec{
			{
				Code:                 "BC",
				Name:                 "The Breeze - AEON - ICE - The Breeze Loop Line",
				Description:          "The Breeze → AEON → ICE → The Breeze Loop Line",
				Color:                "purple",
				StartPoint:           "The Breeze",
				EndPoint:             "The Breeze",
				EstimatedTimeMinutes: 65,
				DistanceKm:           defaultDistanceKm,
				Stations:             withStart("The Breeze", breezeLoop),
			},
			{
				Code:                 "GS",
				Name:                 "Greenwich - Sektor 1.3 Loop Line",
				Description:          "Greenwich - Sektor 1.3 Loop Line",
				Color:                "green",
				StartPoint:           "Greenwich Park",
				EndPoint:             "Halte Sektor 1.3",
				EstimatedTimeMinutes: 65,
				DistanceKm:           defaultDistanceKm,
				Stations:             withStart("Greenwich Park", breezeLoop),
			},
			{
				Code:                 "IS",
				Name:                 "Intermoda - Halte Sektor 1.3",
				Description:          "Intermoda - Sektor 1.3 Loop Line",
				Color:                "teal",
				StartPoint:           "Intermoda",
				EndPoint:             "Halte Sektor 1.3",
				EstimatedTimeMinutes: 69,
				DistanceKm:           defaultDistanceKm,
				Stations: []string{
					"Intermoda", "Cosmo", "Verdan View", "Eternity", "Simplicity 2",
					"Edutown 1", "Edutown 2", "ICE 1", "ICE 2", "ICE 6", "ICE 5",
					"GOP 1", "SML Plaza", "The Breeze", "CBD Timur 1", "CBD Timur 2",
					"Navapark 1", "SWA 2", "Giant", "Eka Hostpital 1", "Puspita Loka",
					"Polsek Serpong", "Pasmod Timur", "Griyaloka 1", "Halte Sektor 1.3",
				},
			},
			{
				Code:                 "ID1",
				Name:                 "Intermoda - De Park 1",
				Description:          "Intermoda - De Park 1 Loop Line",
				Color:                "lightBlue",
				StartPoint:           "Intermoda",
				EndPoint:             "Intermoda",
				EstimatedTimeMinutes: 47,
				DistanceKm:           defaultDistanceKm,
				Stations: []string{
					"Intermoda", "Edutown 1", "Edutown 2", "ICE 1", "ICE 2", "ICE 6",
					"ICE 5", "Froggy", "Gramedia", "Astra", "Court Mega Store", "QBIG 1",
					"Lulu", "Greenwich Park 1", "Greenwich Park Office", "Jadeite",
					"De Maja", "De Heliconia 2", "De Nara", "Navapark 2", "GOP 1",
					"SML Plaza", "The Breeze", "Casa De Parco 2", "Lobby House of Tiktokers",
					"Digital Hub 1", "Digital Hub 2", "Verdant View", "Eternity", "Intermoda",
				},
			},
			{
				Code:                 "ID2",
				Name:                 "Intermoda - De Park 2",
				Description:          "Intermoda - De Park 2 Loop Line",
				Color:                "pink",
				StartPoint:           "Intermoda",
				EndPoint:             "Intermoda",
				EstimatedTimeMinutes: 50,
				DistanceKm:           defaultDistanceKm,
				Stations: []string{
					"Intermoda", "Icon Ncentro", "Horizon Broadway", "Extreme Park",
					"Saveria", "Casa De Parco 1", "SML Plaza", "The Breeze", "CBD Timur 1",
					"AEON Mall 1", "AEON Mall 2", "CBD Timur 2", "Simpang Foresta",
					"Allenvare", "Fiore", "Studento 1", "Naturale", "Fresco", "Primavera",
					"Foresta 2", "De Park 1", "De Frangipani", "De Heliconia 1", "De Brassia",
					"Jadeite", "Greenwich Park 1", "QBIG 2", "QBIG 3", "BCA", "FBL 2",
					"FBL 1", "ICE 1", "ICE 2", "ICE 6", "ICE 5", "CBD Barat 1",
					"CBD Barat 2", "Simplicity 1", "Intermoda",
				},
			},
			{
				Code:                 "IV",
				Name:                 "Intermoda - Vanya",
				Description:          "Intermoda - Vanya Park Loop Line",
				Color:                "darkgreen",
				StartPoint:           "Intermoda",
				EndPoint:             "Intermoda",
				EstimatedTimeMinutes: 35,
				DistanceKm:           defaultDistanceKm,
				Stations: []string{
					"Intermoda", "Simplicity 2", "Edutown 1", "Edutown 2", "ICE 1",
					"ICE 2", "ICE 6", "Prestigia", "The Mozia 1", "Piazza Mozia",
					"Tabebuya", "Vanya Park", "The Mozia 2", "Illustria", "ICE 2",
					"ICE 6", "ICE 5", "CBD Barat 1", "CBD Barat 2", "Simplicity 1", "Intermoda",
				},
			},
			{
				Code:                 "EC",
				Name:                 "Electric Line",
				Description:          "Electric Line | Intermoda - ICE - QBIG - Ara Rasa - The Breeze - Digital Hub - AEON Mall Loop Line",
				Color:                "navy",
				StartPoint:           "Intermoda",
				EndPoint:             "Intermoda",
				EstimatedTimeMinutes: 53,
				DistanceKm:           defaultDistanceKm,
				Stations: []string{
					"Intermoda", "Simplicity 2", "Edutown 1", "Edutown 2", "ICE 1",
					"ICE 2", "ICE 6", "ICE 5", "Froggy", "Gramedia", "Astra",
					"Court Mega Store", "QBIG 1", "Lulu", "QBIG 2", "QBIG 3", "BCA",
					"FBL 2", "FBL 1", "GOP 1", "SML Plaza", "The Breeze", "Casa De Parco 2",
					"Lobby House of Tiktokers", "Digital Hub 1", "Saveria", "Casa De Parco 1",
					"CBD Timur 1", "Lobby AEON Mall", "CBD Barat 2", "Simplicity 1", "Intermoda",
				},
			},
			{
				Code:                 "BB",
				Name:                 "Big Bus Line",
				Description:          "The Big Bus Electric | INTERMODA - I C E - QBIG - ARA RASA -THE BREEZE - SKY HOUSE / AEON MALL - INTERMODA",
				Color:                "red",
				StartPoint:           "Intermoda",
				EndPoint:             "Intermoda",
				EstimatedTimeMinutes: 53,
				DistanceKm:           defaultDistanceKm,
				Stations: []string{
					"Intermoda", "Simplicity 2", "Edutown 1", "Edutown 2", "ICE 1",
					"ICE 2", "ICE 6", "ICE 5", "Froggy", "Gramedia", "Astra",
					"Court Mega Store", "QBIG 1", "Lulu", "QBIG 2", "QBIG 3", "BCA",
					"FBL 2", "FBL 1", "GOP 1", "SML Plaza", "The Breeze", "CBD Timur 1",
					"AEON Mall / Sky House", "CBD Barat 2", "Simplicity 1", "Intermoda",
				},
			},
		},
		Buses: []BusSpec{
			{Plate: "B7566PAA", RouteCode: "GS", RouteName: "Greenwich - Sektor 1.3 Loop Line"},
			{Plate: "B7266JF", RouteCode: "GS", RouteName: "Greenwich - Sektor 1.3 Loop Line"},
			{Plate: "B7466PAA", RouteCode: "GS", RouteName: "Greenwich - Sektor 1.3 Loop Line"},
			{Plate: "B7366JE", RouteCode: "ID1", RouteName: "Intermoda - De Park 1"},
			{Plate: "B7366PAA", RouteCode: "ID2", RouteName: "Intermoda - De Park 2"},
			{Plate: "B7866PAA", RouteCode: "ID2", RouteName: "Intermoda - De Park 2"},
			{Plate: "B7666PAA", RouteCode: "IS", RouteName: "Intermoda - Halte Sektor 1.3"},
			{Plate: "B7966PAA", RouteCode: "IS", RouteName: "Intermoda - Halte Sektor 1.3"},
			{Plate: "B7002PGX", RouteCode: "EC", RouteName: "Electric Line | Intermoda - ICE - QBIG - Ara Rasa - The Breeze - Digital Hub - AEON Mall Loop Line"},
			{Plate: "B7166PAA", RouteCode: "BC", RouteName: "The Breeze - AEON - ICE - The Breeze Loop Line"},
			{Plate: "B7866PAA", RouteCode: "BC", RouteName: "The Breeze - AEON - ICE - The Breeze Loop Line"},
			{Plate: "B7766PAA", RouteCode: "IV", RouteName: "Intermoda - Vanya"},
		},
	}
}
