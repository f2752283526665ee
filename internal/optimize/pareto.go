package optimize

import (
	"sort"

	"github.com/itinera-ai/itinera/internal/trip"
)

// dominates reports whether a is no worse than b on every objective
// dimension and strictly better on at least one.
func dominates(a, b *trip.CandidateItinerary) bool {
	strictlyBetter := false
	for d := dimension(0); d < dimCount; d++ {
		av := metricValue(a.Metrics, d)
		bv := metricValue(b.Metrics, d)
		if d.costLike() {
			if av > bv {
				return false
			}
			if av < bv {
				strictlyBetter = true
			}
		} else {
			if av < bv {
				return false
			}
			if av > bv {
				strictlyBetter = true
			}
		}
	}
	return strictlyBetter
}

// Frontier returns the Pareto-efficient subset of the pool: candidates
// not dominated by any other pool member. The frontier is returned in
// creation order for determinism. It is always retained in full, even
// when it exceeds the presentation Top-K, so diverse trade-offs survive.
func Frontier(pool []*trip.CandidateItinerary) []*trip.CandidateItinerary {
	var frontier []*trip.CandidateItinerary
	for _, candidate := range pool {
		dominated := false
		for _, other := range pool {
			if other != candidate && dominates(other, candidate) {
				dominated = true
				break
			}
		}
		if !dominated {
			frontier = append(frontier, candidate)
		}
	}
	sort.SliceStable(frontier, func(i, j int) bool {
		return frontier[i].Seq < frontier[j].Seq
	})
	return frontier
}

// TopK selects the k highest-scoring members of the frontier for
// presentation. Ties break by lowest risk, then lowest cost, then
// candidate creation order, which makes the selection fully
// deterministic.
func TopK(frontier []*trip.CandidateItinerary, k int) []*trip.CandidateItinerary {
	if k <= 0 {
		return nil
	}

	ranked := make([]*trip.CandidateItinerary, len(frontier))
	copy(ranked, frontier)
	sort.SliceStable(ranked, func(i, j int) bool {
		a, b := ranked[i], ranked[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if a.Metrics.RiskIndex != b.Metrics.RiskIndex {
			return a.Metrics.RiskIndex < b.Metrics.RiskIndex
		}
		if a.Metrics.CostTotal != b.Metrics.CostTotal {
			return a.Metrics.CostTotal < b.Metrics.CostTotal
		}
		return a.Seq < b.Seq
	})

	if len(ranked) > k {
		ranked = ranked[:k]
	}
	return ranked
}
