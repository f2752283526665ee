package trip

import (
	"fmt"
	"math"
	"time"

	"github.com/itinera-ai/itinera/internal/types"
)

// ItemType classifies one entry of an itinerary day.
type ItemType string

const (
	ItemMove ItemType = "move"
	ItemPOI  ItemType = "poi"
	ItemMeal ItemType = "meal"
	ItemStay ItemType = "stay"
)

// Item is a single scheduled entry. Items are value types; a candidate is
// only ever changed by cloning it with a modified item set.
type Item struct {
	Type     ItemType  `json:"type" yaml:"type"`
	Title    string    `json:"title" yaml:"title"`
	Start    time.Time `json:"start" yaml:"start"`
	End      time.Time `json:"end" yaml:"end"`
	Cost     float64   `json:"cost" yaml:"cost"`
	Location Location  `json:"location" yaml:"location"`

	// OfferID links an offer-backed item to its supply record.
	// Zero for synthesized items such as free time or walking legs.
	OfferID types.ID `json:"offer_id,omitempty" yaml:"offer_id,omitempty"`

	Theme        string  `json:"theme,omitempty" yaml:"theme,omitempty"`
	QueueMinutes int     `json:"queue_minutes,omitempty" yaml:"queue_minutes,omitempty"`
	Confidence   float64 `json:"confidence" yaml:"confidence"`
	Note         string  `json:"note,omitempty" yaml:"note,omitempty"`
}

// Duration returns the scheduled length of the item.
func (it Item) Duration() time.Duration {
	return it.End.Sub(it.Start)
}

// Day is an ordered sequence of items for one calendar day.
type Day struct {
	Index int    `json:"index" yaml:"index"`
	Note  string `json:"note,omitempty" yaml:"note,omitempty"`
	Items []Item `json:"items" yaml:"items"`
}

// Metrics is the derived measurement record of a candidate.
// Cost-like dimensions (lower is better): CostTotal, TravelHours,
// QueueHours, FatigueIndex, RiskIndex. Benefit dimension: VarietyIndex.
type Metrics struct {
	CostTotal    float64 `json:"cost_total" yaml:"cost_total"`
	TravelHours  float64 `json:"travel_hours" yaml:"travel_hours"`
	QueueHours   float64 `json:"queue_hours" yaml:"queue_hours"`
	VarietyIndex float64 `json:"variety_index" yaml:"variety_index"`
	FatigueIndex float64 `json:"fatigue_index" yaml:"fatigue_index"`
	RiskIndex    float64 `json:"risk_index" yaml:"risk_index"`
}

// Ledger maps spend categories to amounts. The sum of entries must equal
// Metrics.CostTotal at all times.
type Ledger map[string]float64

// Total returns the sum of all ledger entries.
func (l Ledger) Total() float64 {
	var total float64
	for _, amount := range l {
		total += amount
	}
	return total
}

// Clone returns a deep copy of the ledger.
func (l Ledger) Clone() Ledger {
	out := make(Ledger, len(l))
	for k, v := range l {
		out[k] = v
	}
	return out
}

// CandidateItinerary is one complete plan under evaluation. Candidates are
// immutable after construction: the optimizer's local-search moves produce
// fresh candidates instead of editing a published one, which makes
// concurrent scoring safe without locks.
type CandidateItinerary struct {
	ID        types.ID  `json:"id" yaml:"id"`
	CreatedAt time.Time `json:"created_at" yaml:"created_at"`

	// Seq is the creation order within the run, the final tie-breaker in
	// Top-K selection.
	Seq int `json:"seq" yaml:"seq"`

	Days    []Day   `json:"days" yaml:"days"`
	Metrics Metrics `json:"metrics" yaml:"metrics"`
	Ledger  Ledger  `json:"ledger" yaml:"ledger"`

	Conflicts []ConflictRecord `json:"conflicts,omitempty" yaml:"conflicts,omitempty"`

	// Score is set only after optimizer scoring.
	Score  float64 `json:"score" yaml:"score"`
	Scored bool    `json:"scored" yaml:"scored"`

	// Provenance describes the move that produced this candidate, empty
	// for candidates built directly by assembly.
	Provenance string `json:"provenance,omitempty" yaml:"provenance,omitempty"`
}

// fatigueThresholdHours is the daily activity load above which the
// fatigue index starts accumulating.
const fatigueThresholdHours = 8.0

// NewCandidate builds a candidate from days, deriving metrics and the
// ledger from the item set. seq is the run-local creation counter.
func NewCandidate(seq int, days []Day) *CandidateItinerary {
	c := &CandidateItinerary{
		ID:        types.NewID(),
		CreatedAt: time.Now(),
		Seq:       seq,
		Days:      days,
		Ledger:    Ledger{},
	}
	c.recompute()
	return c
}

// ledgerCategory maps an item type to its spend category.
func ledgerCategory(t ItemType) string {
	switch t {
	case ItemMove:
		return "transport"
	case ItemStay:
		return "lodging"
	case ItemMeal:
		return "meals"
	default:
		return "activities"
	}
}

// recompute derives metrics and the ledger from the item set. Called on
// construction and after every clone-with-move, so the ledger-sum
// invariant holds after every mutation.
func (c *CandidateItinerary) recompute() {
	ledger := Ledger{}
	m := Metrics{}

	themes := map[string]bool{}
	itemCount := 0
	var confidenceSum float64
	var fatigue float64

	for _, day := range c.Days {
		var dayActiveHours float64
		for _, it := range day.Items {
			ledger[ledgerCategory(it.Type)] += it.Cost
			m.CostTotal += it.Cost
			m.QueueHours += float64(it.QueueMinutes) / 60.0

			hours := it.Duration().Hours()
			switch it.Type {
			case ItemMove:
				m.TravelHours += hours
				dayActiveHours += hours
			case ItemPOI, ItemMeal:
				dayActiveHours += hours
			}

			if it.Theme != "" {
				themes[it.Theme] = true
			}
			itemCount++
			confidenceSum += it.Confidence
		}
		if dayActiveHours > fatigueThresholdHours {
			fatigue += dayActiveHours - fatigueThresholdHours
		}
	}

	if itemCount > 0 {
		m.VarietyIndex = float64(len(themes)) / float64(itemCount)
		// Low average confidence reads as risk.
		m.RiskIndex = 1.0 - confidenceSum/float64(itemCount)
		if m.RiskIndex < 0 {
			m.RiskIndex = 0
		}
	}
	m.FatigueIndex = fatigue

	c.Ledger = ledger
	c.Metrics = m
}

// ValidateLedger checks the ledger-sum invariant against the declared
// cost total. Amounts are compared with a small tolerance to absorb
// float accumulation.
func (c *CandidateItinerary) ValidateLedger() error {
	if diff := math.Abs(c.Ledger.Total() - c.Metrics.CostTotal); diff > 0.01 {
		return types.WrapError(types.LEDGER_MISMATCH,
			fmt.Sprintf("ledger total %.2f does not match declared cost total %.2f",
				c.Ledger.Total(), c.Metrics.CostTotal), nil)
	}
	return nil
}

// Feasible reports whether the candidate carries no hard conflicts.
// Risk annotations do not affect feasibility.
func (c *CandidateItinerary) Feasible() bool {
	for _, conflict := range c.Conflicts {
		if conflict.IsHard() {
			return false
		}
	}
	return true
}

// CloneWithDays produces a new unscored candidate with the given item
// set, fresh identity and recomputed metrics. provenance describes the
// move that produced it.
func (c *CandidateItinerary) CloneWithDays(seq int, days []Day, provenance string) *CandidateItinerary {
	next := NewCandidate(seq, days)
	next.Provenance = provenance
	return next
}

// CloneDays returns a deep copy of the day slice, safe to edit before
// passing to CloneWithDays.
func (c *CandidateItinerary) CloneDays() []Day {
	days := make([]Day, len(c.Days))
	for i, day := range c.Days {
		items := make([]Item, len(day.Items))
		copy(items, day.Items)
		days[i] = Day{Index: day.Index, Note: day.Note, Items: items}
	}
	return days
}

// ItemCount returns the total number of items across all days.
func (c *CandidateItinerary) ItemCount() int {
	n := 0
	for _, day := range c.Days {
		n += len(day.Items)
	}
	return n
}
