package trip

import (
	"math"
	"time"

	"github.com/itinera-ai/itinera/internal/types"
)

// OfferKind classifies the supply record.
type OfferKind string

const (
	OfferTransport OfferKind = "transport"
	OfferLodging   OfferKind = "lodging"
	OfferActivity  OfferKind = "activity"
)

// HoursWindow expresses opening hours as minutes since midnight.
type HoursWindow struct {
	OpenMinute  int `json:"open_minute" yaml:"open_minute"`
	CloseMinute int `json:"close_minute" yaml:"close_minute"`
}

// Contains reports whether the [start, end) minute range fits inside the window.
func (h HoursWindow) Contains(startMinute, endMinute int) bool {
	return startMinute >= h.OpenMinute && endMinute <= h.CloseMinute
}

// Location is a named place with optional coordinates and opening hours.
// Nil OpenHours means the hours are unknown (a data gap, not a violation).
type Location struct {
	Name      string       `json:"name" yaml:"name"`
	Lat       float64      `json:"lat,omitempty" yaml:"lat,omitempty"`
	Lon       float64      `json:"lon,omitempty" yaml:"lon,omitempty"`
	OpenHours *HoursWindow `json:"open_hours,omitempty" yaml:"open_hours,omitempty"`
}

// HasCoords reports whether the location carries usable coordinates.
func (l Location) HasCoords() bool {
	return l.Lat != 0 || l.Lon != 0
}

// DistanceKm returns the great-circle distance to another location.
// Returns a negative value when either side lacks coordinates.
func (l Location) DistanceKm(other Location) float64 {
	if !l.HasCoords() || !other.HasCoords() {
		return -1
	}
	const earthRadiusKm = 6371.0
	lat1 := l.Lat * math.Pi / 180
	lat2 := other.Lat * math.Pi / 180
	dLat := (other.Lat - l.Lat) * math.Pi / 180
	dLon := (other.Lon - l.Lon) * math.Pi / 180
	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLon/2)*math.Sin(dLon/2)
	return 2 * earthRadiusKm * math.Asin(math.Sqrt(a))
}

// CancellationPolicy describes the refund terms attached to an offer.
type CancellationPolicy string

const (
	CancelFree      CancellationPolicy = "free"
	CancelPartial   CancellationPolicy = "partial"
	CancelNonRefund CancellationPolicy = "non_refundable"
)

// Offer is a generic external-supply record for transport, lodging or
// activities. Offers are never mutated after creation; re-querying a
// provider supersedes them with new records.
type Offer struct {
	ID           types.ID           `json:"id" yaml:"id"`
	Kind         OfferKind          `json:"kind" yaml:"kind"`
	Title        string             `json:"title" yaml:"title"`
	Price        float64            `json:"price" yaml:"price"`
	WindowStart  time.Time          `json:"window_start" yaml:"window_start"`
	WindowEnd    time.Time          `json:"window_end" yaml:"window_end"`
	Location     Location           `json:"location" yaml:"location"`
	Inventory    int                `json:"inventory" yaml:"inventory"`
	Cancellation CancellationPolicy `json:"cancellation" yaml:"cancellation"`
	Tier         int                `json:"tier,omitempty" yaml:"tier,omitempty"`

	// Theme, DurationMinutes and QueueMinutes carry the metadata itinerary
	// assembly needs to turn the offer into a scheduled item.
	Theme           string `json:"theme,omitempty" yaml:"theme,omitempty"`
	DurationMinutes int    `json:"duration_minutes,omitempty" yaml:"duration_minutes,omitempty"`
	QueueMinutes    int    `json:"queue_minutes,omitempty" yaml:"queue_minutes,omitempty"`

	// Confidence is the provider's confidence in this record, in [0,1].
	// Offers synthesized from fallbacks or stale caches carry low values
	// and are surfaced to presentation rather than silently dropped.
	Confidence float64 `json:"confidence" yaml:"confidence"`
}

// Available reports whether the offer still has bookable inventory.
func (o *Offer) Available() bool {
	return o.Inventory > 0
}
