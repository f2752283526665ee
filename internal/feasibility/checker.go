// Package feasibility validates candidate itineraries against hard
// constraints and emits structured conflict records with repair hints.
//
// Checks run in a fixed order and are independent of each other: all of
// them run on every call, nothing short-circuits, so a candidate can
// carry several simultaneous conflicts and checking the same candidate
// twice yields an identical list.
package feasibility

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/itinera-ai/itinera/internal/trip"
	"github.com/itinera-ai/itinera/internal/types"
)

const (
	// minTransferBuffer is required between consecutive items at
	// different locations when no move item covers the transfer.
	minTransferBuffer = 15 * time.Minute

	// transitSpeedKmh is the assumed door-to-door speed for estimated
	// transit paths, overhead included.
	transitSpeedKmh = 25.0

	// transitOverhead is added to every estimated transit leg.
	transitOverhead = 10 * time.Minute
)

// Checker validates candidates against constraints. The offer index
// backs the inventory check; offers absent from the index count as
// unknown supply rather than as violations.
type Checker struct {
	offers map[types.ID]trip.Offer
}

// NewChecker creates a Checker over the given offer pools.
func NewChecker(offerPools ...[]trip.Offer) *Checker {
	index := make(map[types.ID]trip.Offer)
	for _, pool := range offerPools {
		for _, o := range pool {
			index[o.ID] = o
		}
	}
	return &Checker{offers: index}
}

// AddOffers extends the offer index with re-queried supply.
func (c *Checker) AddOffers(offers []trip.Offer) {
	for _, o := range offers {
		c.offers[o.ID] = o
	}
}

// Check validates one candidate against the constraints and returns the
// full conflict list. The order of checks, and therefore of records, is
// fixed: ledger, budget, time windows, inventory, reachability,
// must-include/must-exclude.
func (c *Checker) Check(candidate *trip.CandidateItinerary, constraints *trip.Constraints) []trip.ConflictRecord {
	var conflicts []trip.ConflictRecord

	conflicts = append(conflicts, c.checkLedger(candidate)...)
	conflicts = append(conflicts, c.checkBudget(candidate, constraints)...)
	conflicts = append(conflicts, c.checkTimeWindows(candidate)...)
	conflicts = append(conflicts, c.checkInventory(candidate)...)
	conflicts = append(conflicts, c.checkReachability(candidate)...)
	conflicts = append(conflicts, c.checkIncludeExclude(candidate, constraints)...)

	return conflicts
}

// checkLedger verifies the ledger-sum invariant against the declared
// cost total.
func (c *Checker) checkLedger(candidate *trip.CandidateItinerary) []trip.ConflictRecord {
	if err := candidate.ValidateLedger(); err != nil {
		return []trip.ConflictRecord{{
			Category:    trip.ConflictLedger,
			Description: err.Error(),
			Severity:    trip.SeverityBlocking,
			DayIndex:    -1,
			ItemIndex:   -1,
			Repair:      trip.RepairHint{Action: trip.RepairNone},
		}}
	}
	return nil
}

// checkBudget compares the ledger total against the budget ceiling.
// Severity scales with the overage ratio.
func (c *Checker) checkBudget(candidate *trip.CandidateItinerary, constraints *trip.Constraints) []trip.ConflictRecord {
	total := candidate.Ledger.Total()
	if total <= constraints.BudgetTotal {
		return nil
	}

	ratio := total / constraints.BudgetTotal
	severity := trip.SeverityMinor
	switch {
	case ratio > 1.25:
		severity = trip.SeverityBlocking
	case ratio > 1.05:
		severity = trip.SeverityMajor
	}

	return []trip.ConflictRecord{{
		Category: trip.ConflictBudget,
		Description: fmt.Sprintf("ledger total %.2f exceeds budget ceiling %.2f (%.0f%% over)",
			total, constraints.BudgetTotal, (ratio-1)*100),
		Severity:  severity,
		DayIndex:  -1,
		ItemIndex: -1,
		Repair: trip.RepairHint{
			Action:     trip.RepairSwapOffer,
			TargetName: priciestOfferItem(candidate),
		},
	}}
}

// checkTimeWindows verifies each item against its location's open hours
// (when known) and each adjacent pair against the transfer buffer. One
// record is emitted per violating pair, referencing both items.
func (c *Checker) checkTimeWindows(candidate *trip.CandidateItinerary) []trip.ConflictRecord {
	var conflicts []trip.ConflictRecord

	for di, day := range candidate.Days {
		for ii, item := range day.Items {
			if hours := item.Location.OpenHours; hours != nil {
				start := minuteOfDay(item.Start)
				end := minuteOfDay(item.End)
				if !hours.Contains(start, end) {
					shift := hours.OpenMinute - start
					conflicts = append(conflicts, trip.ConflictRecord{
						Category: trip.ConflictTimeWindow,
						Description: fmt.Sprintf("%q runs %s-%s outside open hours %02d:%02d-%02d:%02d",
							item.Title, item.Start.Format("15:04"), item.End.Format("15:04"),
							hours.OpenMinute/60, hours.OpenMinute%60, hours.CloseMinute/60, hours.CloseMinute%60),
						Severity:  trip.SeverityMajor,
						DayIndex:  di,
						ItemIndex: ii,
						Repair: trip.RepairHint{
							Action:       trip.RepairShiftStart,
							ShiftMinutes: shift,
							TargetName:   item.Title,
						},
					})
				}
			}

			if ii == 0 {
				continue
			}
			prev := day.Items[ii-1]
			buffer := transferBuffer(prev, item)
			required := prev.End.Add(buffer)
			if item.Start.Before(required) {
				delta := int(required.Sub(item.Start).Minutes())
				conflicts = append(conflicts, trip.ConflictRecord{
					Category: trip.ConflictTimeWindow,
					Description: fmt.Sprintf("%q starts %s before %q can be left (ends %s, buffer %v)",
						item.Title, item.Start.Format("15:04"), prev.Title, prev.End.Format("15:04"), buffer),
					Severity:  trip.SeverityMajor,
					DayIndex:  di,
					ItemIndex: ii,
					Repair: trip.RepairHint{
						Action:       trip.RepairShiftStart,
						ShiftMinutes: delta,
						TargetName:   item.Title,
					},
				})
			}
		}
	}

	return conflicts
}

// transferBuffer derives the required gap between two consecutive items.
// A move item is itself the transfer, so it needs no buffer; items at the
// same location chain directly.
func transferBuffer(prev, next trip.Item) time.Duration {
	if prev.Type == trip.ItemMove || next.Type == trip.ItemMove {
		return 0
	}
	if prev.Location.Name == next.Location.Name {
		return 0
	}
	return minTransferBuffer
}

// checkInventory verifies every offer-backed item still references
// bookable supply.
func (c *Checker) checkInventory(candidate *trip.CandidateItinerary) []trip.ConflictRecord {
	var conflicts []trip.ConflictRecord

	for di, day := range candidate.Days {
		for ii, item := range day.Items {
			if item.OfferID.IsZero() {
				continue
			}
			offer, known := c.offers[item.OfferID]
			if !known {
				continue
			}
			if !offer.Available() {
				conflicts = append(conflicts, trip.ConflictRecord{
					Category:    trip.ConflictInventory,
					Description: fmt.Sprintf("offer %q backing %q has no remaining inventory", offer.Title, item.Title),
					Severity:    trip.SeverityBlocking,
					DayIndex:    di,
					ItemIndex:   ii,
					Repair: trip.RepairHint{
						Action:     trip.RepairSwapOffer,
						TargetName: item.Title,
					},
				})
			}
		}
	}

	return conflicts
}

// checkReachability verifies consecutive items have a transit path that
// fits the gap between them. Unknown paths (missing coordinates) are
// flagged as risks, not hard conflicts.
func (c *Checker) checkReachability(candidate *trip.CandidateItinerary) []trip.ConflictRecord {
	var conflicts []trip.ConflictRecord

	for di, day := range candidate.Days {
		for ii := 1; ii < len(day.Items); ii++ {
			prev := day.Items[ii-1]
			item := day.Items[ii]
			if prev.Type == trip.ItemMove || item.Type == trip.ItemMove {
				continue
			}
			if prev.Location.Name == item.Location.Name {
				continue
			}

			distance := prev.Location.DistanceKm(item.Location)
			if distance < 0 {
				conflicts = append(conflicts, trip.ConflictRecord{
					Category: trip.ConflictReachability,
					Description: fmt.Sprintf("no known transit path from %q to %q",
						prev.Location.Name, item.Location.Name),
					Severity:  trip.SeverityRisk,
					DayIndex:  di,
					ItemIndex: ii,
					Repair:    trip.RepairHint{Action: trip.RepairNone},
				})
				continue
			}

			transit := time.Duration(distance/transitSpeedKmh*60)*time.Minute + transitOverhead
			gap := item.Start.Sub(prev.End)
			if gap < transit {
				shortfall := int(math.Ceil((transit - gap).Minutes()))
				conflicts = append(conflicts, trip.ConflictRecord{
					Category: trip.ConflictReachability,
					Description: fmt.Sprintf("transit from %q to %q needs about %v but only %v is scheduled",
						prev.Location.Name, item.Location.Name, transit.Round(time.Minute), gap.Round(time.Minute)),
					Severity:  trip.SeverityMajor,
					DayIndex:  di,
					ItemIndex: ii,
					Repair: trip.RepairHint{
						Action:       trip.RepairShiftStart,
						ShiftMinutes: shortfall,
						TargetName:   item.Title,
					},
				})
			}
		}
	}

	return conflicts
}

// checkIncludeExclude verifies the constraint item lists by
// case-insensitive title match.
func (c *Checker) checkIncludeExclude(candidate *trip.CandidateItinerary, constraints *trip.Constraints) []trip.ConflictRecord {
	var conflicts []trip.ConflictRecord

	for _, want := range constraints.MustInclude {
		if findItem(candidate, want) == nil {
			conflicts = append(conflicts, trip.ConflictRecord{
				Category:    trip.ConflictMustInclude,
				Description: fmt.Sprintf("required item %q is missing from the itinerary", want),
				Severity:    trip.SeverityMajor,
				DayIndex:    -1,
				ItemIndex:   -1,
				Repair: trip.RepairHint{
					Action:     trip.RepairAddItem,
					TargetName: want,
				},
			})
		}
	}

	for _, avoid := range constraints.MustExclude {
		if item := findItem(candidate, avoid); item != nil {
			conflicts = append(conflicts, trip.ConflictRecord{
				Category:    trip.ConflictMustExclude,
				Description: fmt.Sprintf("excluded item %q is present in the itinerary", item.Title),
				Severity:    trip.SeverityMajor,
				DayIndex:    -1,
				ItemIndex:   -1,
				Repair: trip.RepairHint{
					Action:     trip.RepairDropItem,
					TargetName: item.Title,
				},
			})
		}
	}

	return conflicts
}

func findItem(candidate *trip.CandidateItinerary, name string) *trip.Item {
	needle := strings.ToLower(name)
	for di := range candidate.Days {
		for ii := range candidate.Days[di].Items {
			if strings.Contains(strings.ToLower(candidate.Days[di].Items[ii].Title), needle) {
				return &candidate.Days[di].Items[ii]
			}
		}
	}
	return nil
}

func priciestOfferItem(candidate *trip.CandidateItinerary) string {
	var title string
	var max float64
	for _, day := range candidate.Days {
		for _, item := range day.Items {
			if !item.OfferID.IsZero() && item.Cost > max {
				max = item.Cost
				title = item.Title
			}
		}
	}
	return title
}

func minuteOfDay(t time.Time) int {
	return t.Hour()*60 + t.Minute()
}
