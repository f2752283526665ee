// Package supply defines the offer query interface consumed from
// supply-side collaborators, plus a deterministic in-memory provider
// seeded with a small city knowledge base. The static provider stands in
// for real flight/hotel/POI integrations the same way a deterministic
// stub stands in for an LLM-backed stage: identical inputs produce
// identical offers, which is what anchors the engine's property tests.
package supply

import (
	"context"
	"strings"
	"time"

	"github.com/itinera-ai/itinera/internal/trip"
	"github.com/itinera-ai/itinera/internal/types"
)

// Criteria narrows an offer query.
type Criteria struct {
	Kind        trip.OfferKind
	City        string
	WindowStart time.Time
	WindowEnd   time.Time

	// BudgetSlice is the share of the trip budget available to this
	// category; offers priced above it are still returned (trade-offs are
	// the optimizer's job) but providers may cap tiers against it.
	BudgetSlice float64

	// Exclude lists offer titles rejected on an earlier pass. Used by
	// feedback re-runs to narrow the search.
	Exclude []string
}

// Provider is the supply-side query contract.
type Provider interface {
	Query(ctx context.Context, criteria Criteria) ([]trip.Offer, error)
}

// CityInfo is the static knowledge the provider holds about a city:
// best travel window, must-see sights, a cost band and transit notes.
type CityInfo struct {
	Name        string
	BestTime    string
	CostBand    string
	TransitNote string
	Lat         float64
	Lon         float64
	Sights      []SightSeed
}

// SightSeed is one seed POI used to synthesize activity offers.
type SightSeed struct {
	Title           string
	Theme           string
	Cost            float64
	DurationMinutes int
	QueueMinutes    int
	OpenMinute      int
	CloseMinute     int
	Lat             float64
	Lon             float64
}

// seedConfidence is attached to offers backed by the knowledge base;
// genericConfidence marks template offers for unknown cities, which are
// data gaps surfaced to presentation rather than dropped.
const (
	seedConfidence    = 0.9
	genericConfidence = 0.5
)

// StaticProvider serves deterministic offers from the built-in city
// knowledge base.
type StaticProvider struct {
	cities map[string]CityInfo
}

// NewStaticProvider creates a provider over the built-in city database.
func NewStaticProvider() *StaticProvider {
	return &StaticProvider{cities: cityDB()}
}

// City returns the knowledge-base record for a city, if known.
func (p *StaticProvider) City(name string) (CityInfo, bool) {
	info, ok := p.cities[normalizeCity(name)]
	return info, ok
}

// Query returns offers matching the criteria. Unknown cities yield
// generic template offers with reduced confidence. Offers are returned
// in a fixed order so re-queries are reproducible.
func (p *StaticProvider) Query(ctx context.Context, criteria Criteria) ([]trip.Offer, error) {
	if err := ctx.Err(); err != nil {
		return nil, types.WrapError(types.SUPPLY_QUERY_FAILED, "query aborted", err)
	}
	if criteria.City == "" {
		return nil, types.NewError(types.SUPPLY_QUERY_FAILED, "criteria must name a city")
	}

	info, known := p.City(criteria.City)
	if !known {
		info = genericCity(criteria.City)
	}
	confidence := seedConfidence
	if !known {
		confidence = genericConfidence
	}

	excluded := make(map[string]bool, len(criteria.Exclude))
	for _, title := range criteria.Exclude {
		excluded[strings.ToLower(title)] = true
	}

	var offers []trip.Offer
	switch criteria.Kind {
	case trip.OfferTransport:
		offers = transportOffers(info, criteria, confidence)
	case trip.OfferLodging:
		offers = lodgingOffers(info, criteria, confidence)
	case trip.OfferActivity:
		offers = activityOffers(info, criteria, confidence)
	default:
		return nil, types.NewError(types.SUPPLY_QUERY_FAILED, "unknown offer kind: "+string(criteria.Kind))
	}

	filtered := offers[:0]
	for _, o := range offers {
		if !excluded[strings.ToLower(o.Title)] {
			filtered = append(filtered, o)
		}
	}
	return filtered, nil
}

func transportOffers(info CityInfo, criteria Criteria, confidence float64) []trip.Offer {
	base := trip.Location{Name: info.Name + " Station", Lat: info.Lat, Lon: info.Lon}
	tiers := []struct {
		title string
		price float64
		tier  int
	}{
		{"Economy round trip to " + info.Name, 420, 1},
		{"Standard round trip to " + info.Name, 640, 2},
		{"Flexible round trip to " + info.Name, 980, 3},
	}

	offers := make([]trip.Offer, 0, len(tiers))
	for _, t := range tiers {
		offers = append(offers, trip.Offer{
			ID:           deterministicID(trip.OfferTransport, info.Name, t.title),
			Kind:         trip.OfferTransport,
			Title:        t.title,
			Price:        t.price,
			WindowStart:  criteria.WindowStart,
			WindowEnd:    criteria.WindowEnd,
			Location:     base,
			Inventory:    8,
			Cancellation: trip.CancelPartial,
			Tier:         t.tier,
			Confidence:   confidence,
		})
	}
	return offers
}

func lodgingOffers(info CityInfo, criteria Criteria, confidence float64) []trip.Offer {
	nights := int(criteria.WindowEnd.Sub(criteria.WindowStart).Hours() / 24)
	if nights < 1 {
		nights = 1
	}
	base := trip.Location{Name: info.Name + " city center", Lat: info.Lat, Lon: info.Lon}
	tiers := []struct {
		title        string
		nightly      float64
		tier         int
		cancellation trip.CancellationPolicy
	}{
		{"Budget stay in " + info.Name, 90, 1, trip.CancelNonRefund},
		{"Midrange stay in " + info.Name, 170, 2, trip.CancelPartial},
		{"Boutique stay in " + info.Name, 320, 3, trip.CancelFree},
	}

	offers := make([]trip.Offer, 0, len(tiers))
	for _, t := range tiers {
		offers = append(offers, trip.Offer{
			ID:           deterministicID(trip.OfferLodging, info.Name, t.title),
			Kind:         trip.OfferLodging,
			Title:        t.title,
			Price:        t.nightly * float64(nights),
			WindowStart:  criteria.WindowStart,
			WindowEnd:    criteria.WindowEnd,
			Location:     base,
			Inventory:    5,
			Cancellation: t.cancellation,
			Tier:         t.tier,
			Confidence:   confidence,
		})
	}
	return offers
}

func activityOffers(info CityInfo, criteria Criteria, confidence float64) []trip.Offer {
	offers := make([]trip.Offer, 0, len(info.Sights))
	for _, s := range info.Sights {
		hours := trip.HoursWindow{OpenMinute: s.OpenMinute, CloseMinute: s.CloseMinute}
		offers = append(offers, trip.Offer{
			ID:          deterministicID(trip.OfferActivity, info.Name, s.Title),
			Kind:        trip.OfferActivity,
			Title:       s.Title,
			Price:       s.Cost,
			WindowStart: criteria.WindowStart,
			WindowEnd:   criteria.WindowEnd,
			Location: trip.Location{
				Name:      s.Title,
				Lat:       s.Lat,
				Lon:       s.Lon,
				OpenHours: &hours,
			},
			Inventory:       20,
			Cancellation:    trip.CancelFree,
			Theme:           s.Theme,
			DurationMinutes: s.DurationMinutes,
			QueueMinutes:    s.QueueMinutes,
			Confidence:      confidence,
		})
	}
	return offers
}

// deterministicID derives a stable UUID-shaped ID from the offer's
// identity so that re-queries supersede rather than duplicate.
func deterministicID(kind trip.OfferKind, city, title string) types.ID {
	return stableID(string(kind) + "/" + city + "/" + title)
}

func normalizeCity(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// genericCity synthesizes a template profile for cities absent from the
// knowledge base. The reduced-confidence offers it produces represent a
// data gap, never a silent drop.
func genericCity(name string) CityInfo {
	return CityInfo{
		Name:        name,
		BestTime:    "spring and autumn shoulder seasons",
		CostBand:    "unknown, assume moderate",
		TransitNote: "prefer clustered sights and public transit; reserve popular venues ahead",
		Sights: []SightSeed{
			{Title: name + " old town walk", Theme: "culture", Cost: 0, DurationMinutes: 150, OpenMinute: 8 * 60, CloseMinute: 22 * 60},
			{Title: name + " central museum", Theme: "museum", Cost: 18, DurationMinutes: 150, QueueMinutes: 30, OpenMinute: 9 * 60, CloseMinute: 18 * 60},
			{Title: name + " market street food", Theme: "food", Cost: 25, DurationMinutes: 90, OpenMinute: 10 * 60, CloseMinute: 21 * 60},
			{Title: name + " viewpoint at dusk", Theme: "scenery", Cost: 12, DurationMinutes: 90, OpenMinute: 10 * 60, CloseMinute: 22 * 60},
		},
	}
}
