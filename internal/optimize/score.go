// Package optimize turns a pool of candidate itineraries into a ranked,
// conflict-aware result: weighted multi-objective scoring over
// pool-normalized metrics, a Pareto-efficient frontier, and bounded
// local-search refinement that proposes improved candidates.
package optimize

import (
	"time"

	"github.com/itinera-ai/itinera/internal/trip"
)

// dimension indexes the scored metric dimensions.
type dimension int

const (
	dimCost dimension = iota
	dimTravel
	dimQueue
	dimFatigue
	dimRisk
	dimVariety
	dimCount
)

// costLike reports whether lower values are better for the dimension.
func (d dimension) costLike() bool {
	return d != dimVariety
}

// metricValue extracts one dimension from a candidate's metrics.
func metricValue(m trip.Metrics, d dimension) float64 {
	switch d {
	case dimCost:
		return m.CostTotal
	case dimTravel:
		return m.TravelHours
	case dimQueue:
		return m.QueueHours
	case dimFatigue:
		return m.FatigueIndex
	case dimRisk:
		return m.RiskIndex
	default:
		return m.VarietyIndex
	}
}

// dimensionWeights maps the user-facing five-dimension weight vector onto
// the six scored metric dimensions. The time weight covers travel and
// queue hours in equal halves.
func dimensionWeights(w trip.ObjectiveWeights) [dimCount]float64 {
	return [dimCount]float64{
		dimCost:    w.Cost,
		dimTravel:  w.Time / 2,
		dimQueue:   w.Time / 2,
		dimFatigue: w.Comfort,
		dimRisk:    w.Risk,
		dimVariety: w.Interest,
	}
}

// Rule-based score adjustments, applied as additive terms before the
// final clamp.
const (
	mealCoverageBonus = 0.05
	offHoursPenalty   = 0.05
	earliestStartHour = 8
	latestEndMinute   = 22*60 + 30
)

// Score assigns a score in [0,1] to every candidate in the pool.
//
// Each metric dimension is min-max normalized across the pool; a pool of
// one scores its single member at the midpoint 0.5 on every
// scale-dependent dimension, as does any dimension with zero spread.
// Weights are re-normalized to sum to 1 before use. Scoring depends only
// on the pool's metric extremes, so it is deterministic and independent
// of pool iteration order.
func Score(pool []*trip.CandidateItinerary, weights trip.ObjectiveWeights) error {
	if len(pool) == 0 {
		return nil
	}

	normalized, err := weights.Normalized()
	if err != nil {
		return err
	}
	dimWeights := dimensionWeights(normalized)

	var lo, hi [dimCount]float64
	for d := dimension(0); d < dimCount; d++ {
		lo[d] = metricValue(pool[0].Metrics, d)
		hi[d] = lo[d]
	}
	for _, c := range pool[1:] {
		for d := dimension(0); d < dimCount; d++ {
			v := metricValue(c.Metrics, d)
			if v < lo[d] {
				lo[d] = v
			}
			if v > hi[d] {
				hi[d] = v
			}
		}
	}

	for _, c := range pool {
		var score float64
		for d := dimension(0); d < dimCount; d++ {
			norm := 0.5 // midpoint for degenerate ranges and pools of one
			if spread := hi[d] - lo[d]; spread > 0 {
				norm = (metricValue(c.Metrics, d) - lo[d]) / spread
			}
			if d.costLike() {
				score += dimWeights[d] * (1 - norm)
			} else {
				score += dimWeights[d] * norm
			}
		}

		score += ruleAdjustments(c)

		if score < 0 {
			score = 0
		}
		if score > 1 {
			score = 1
		}
		c.Score = score
		c.Scored = true
	}

	return nil
}

// ruleAdjustments returns the additive score terms: a bonus when every
// day carries a meal, a penalty when any activity starts very early or
// runs very late.
func ruleAdjustments(c *trip.CandidateItinerary) float64 {
	var adjustment float64

	mealEveryDay := len(c.Days) > 0
	offHours := false
	for _, day := range c.Days {
		hasMeal := false
		for _, item := range day.Items {
			if item.Type == trip.ItemMeal {
				hasMeal = true
			}
			if item.Type == trip.ItemStay {
				continue
			}
			if item.Start.Hour() < earliestStartHour || minuteOf(item.End) > latestEndMinute {
				offHours = true
			}
		}
		if !hasMeal {
			mealEveryDay = false
		}
	}

	if mealEveryDay {
		adjustment += mealCoverageBonus
	}
	if offHours {
		adjustment -= offHoursPenalty
	}
	return adjustment
}

func minuteOf(t time.Time) int {
	return t.Hour()*60 + t.Minute()
}
