package supply

import (
	"github.com/google/uuid"

	"github.com/itinera-ai/itinera/internal/types"
)

// idNamespace scopes deterministic offer IDs to this provider.
var idNamespace = uuid.MustParse("7b5a1f2e-93c4-4d1a-8f60-2f1f6f3f9a11")

// stableID derives a name-based UUID so identical supply records map to
// identical IDs across runs and re-queries.
func stableID(name string) types.ID {
	return types.ID(uuid.NewSHA1(idNamespace, []byte(name)).String())
}

// cityDB returns the built-in city knowledge base. Opening hours are
// minutes since midnight; coordinates are city-center approximations
// used only for reachability estimates.
func cityDB() map[string]CityInfo {
	cities := []CityInfo{
		{
			Name:        "Tokyo",
			BestTime:    "March-May cherry blossoms, October-November foliage",
			CostBand:    "upper-moderate; metro day passes recommended",
			TransitNote: "sights are spread out, chain them along metro lines and avoid rush hours",
			Lat:         35.6762, Lon: 139.6503,
			Sights: []SightSeed{
				{Title: "Senso-ji and Kaminarimon", Theme: "culture", Cost: 0, DurationMinutes: 120, QueueMinutes: 20, OpenMinute: 6 * 60, CloseMinute: 17 * 60, Lat: 35.7148, Lon: 139.7967},
				{Title: "Ueno Park museums", Theme: "museum", Cost: 20, DurationMinutes: 180, QueueMinutes: 25, OpenMinute: 9*60 + 30, CloseMinute: 17 * 60, Lat: 35.7156, Lon: 139.7745},
				{Title: "Shibuya Crossing and Shinjuku views", Theme: "city", Cost: 0, DurationMinutes: 150, OpenMinute: 9 * 60, CloseMinute: 22 * 60, Lat: 35.6595, Lon: 139.7005},
				{Title: "Toyosu market food tour", Theme: "food", Cost: 45, DurationMinutes: 150, QueueMinutes: 30, OpenMinute: 7 * 60, CloseMinute: 14 * 60, Lat: 35.6433, Lon: 139.7714},
				{Title: "Meiji Shrine forest walk", Theme: "nature", Cost: 0, DurationMinutes: 90, OpenMinute: 6 * 60, CloseMinute: 17 * 60, Lat: 35.6764, Lon: 139.6993},
			},
		},
		{
			Name:        "Osaka",
			BestTime:    "March-May and October-November",
			CostBand:    "moderate; food scene is strong value",
			TransitNote: "pairs with Kyoto or Nara day trips; avoid USJ peak days",
			Lat:         34.6937, Lon: 135.5023,
			Sights: []SightSeed{
				{Title: "Osaka Castle park", Theme: "culture", Cost: 8, DurationMinutes: 150, QueueMinutes: 20, OpenMinute: 9 * 60, CloseMinute: 17 * 60, Lat: 34.6873, Lon: 135.5262},
				{Title: "Shinsaibashi and Dotonbori food crawl", Theme: "food", Cost: 35, DurationMinutes: 180, OpenMinute: 11 * 60, CloseMinute: 23 * 60, Lat: 34.6687, Lon: 135.5013},
				{Title: "Kaiyukan aquarium", Theme: "family", Cost: 22, DurationMinutes: 180, QueueMinutes: 35, OpenMinute: 10 * 60, CloseMinute: 20 * 60, Lat: 34.6545, Lon: 135.4290},
				{Title: "Universal Studios Japan", Theme: "theme_park", Cost: 65, DurationMinutes: 420, QueueMinutes: 90, OpenMinute: 9 * 60, CloseMinute: 21 * 60, Lat: 34.6654, Lon: 135.4323},
			},
		},
		{
			Name:        "Paris",
			BestTime:    "April-June and September-October",
			CostBand:    "high; book popular museums ahead",
			TransitNote: "walk plus metro; leave margin for museum queues and security checks",
			Lat:         48.8566, Lon: 2.3522,
			Sights: []SightSeed{
				{Title: "Louvre Museum", Theme: "museum", Cost: 22, DurationMinutes: 240, QueueMinutes: 45, OpenMinute: 9 * 60, CloseMinute: 18 * 60, Lat: 48.8606, Lon: 2.3376},
				{Title: "Eiffel Tower ascent", Theme: "landmark", Cost: 29, DurationMinutes: 150, QueueMinutes: 60, OpenMinute: 9*60 + 30, CloseMinute: 22*60 + 45, Lat: 48.8584, Lon: 2.2945},
				{Title: "Seine left bank stroll", Theme: "city", Cost: 0, DurationMinutes: 120, OpenMinute: 8 * 60, CloseMinute: 22 * 60, Lat: 48.8530, Lon: 2.3499},
				{Title: "Montmartre and Sacre-Coeur", Theme: "culture", Cost: 0, DurationMinutes: 150, QueueMinutes: 15, OpenMinute: 6 * 60, CloseMinute: 22*60 + 30, Lat: 48.8867, Lon: 2.3431},
				{Title: "Marais patisserie tasting", Theme: "food", Cost: 30, DurationMinutes: 90, OpenMinute: 10 * 60, CloseMinute: 19 * 60, Lat: 48.8575, Lon: 2.3622},
			},
		},
	}

	db := make(map[string]CityInfo, len(cities))
	for _, c := range cities {
		db[normalizeCity(c.Name)] = c
	}
	return db
}
