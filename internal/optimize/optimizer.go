package optimize

import (
	"log/slog"

	"github.com/itinera-ai/itinera/internal/trip"
)

// Validator checks a candidate against constraints. Satisfied by
// feasibility.Checker; neighbors produced by local search are validated
// before they are scored and admitted into the pool.
type Validator interface {
	Check(candidate *trip.CandidateItinerary, constraints *trip.Constraints) []trip.ConflictRecord
}

// Defaults for the bounded search knobs. Small on purpose: they are what
// makes the scheduler's feedback termination rule finite work.
const (
	DefaultBeamWidth     = 3
	DefaultMovesPerRound = 5
)

// Ranked is the result of one optimize pass.
type Ranked struct {
	// Pool is the retained candidate set: the full Pareto frontier plus
	// the Top-K scored members. Everything else is retired.
	Pool []*trip.CandidateItinerary

	// Frontier is the Pareto-efficient subset, in creation order.
	Frontier []*trip.CandidateItinerary

	// Top holds the K highest-scoring frontier members in rank order.
	Top []*trip.CandidateItinerary
}

// Best returns the highest-ranked candidate, or nil for an empty pool.
func (r *Ranked) Best() *trip.CandidateItinerary {
	if len(r.Top) == 0 {
		return nil
	}
	return r.Top[0]
}

// Optimizer scores candidate pools, maintains the Pareto frontier, and
// performs bounded local-search refinement.
type Optimizer struct {
	validator     Validator
	constraints   *trip.Constraints
	offers        *offerPool
	beamWidth     int
	movesPerRound int
	logger        *slog.Logger
}

// Option is a functional option for configuring an Optimizer.
type Option func(*Optimizer)

// WithBeamWidth bounds how many top candidates are expanded per round.
func WithBeamWidth(n int) Option {
	return func(o *Optimizer) {
		if n > 0 {
			o.beamWidth = n
		}
	}
}

// WithMovesPerRound bounds how many neighbors one round may generate.
func WithMovesPerRound(n int) Option {
	return func(o *Optimizer) {
		if n > 0 {
			o.movesPerRound = n
		}
	}
}

// WithLogger configures the optimizer to use the specified structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *Optimizer) {
		o.logger = logger
	}
}

// NewOptimizer creates an Optimizer. spareOffers is the supply available
// to insert and retier moves (unused activities, alternative tiers).
func NewOptimizer(validator Validator, constraints *trip.Constraints, spareOffers []trip.Offer, opts ...Option) *Optimizer {
	o := &Optimizer{
		validator:     validator,
		constraints:   constraints,
		offers:        newOfferPool(spareOffers),
		beamWidth:     DefaultBeamWidth,
		movesPerRound: DefaultMovesPerRound,
		logger:        slog.Default(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Optimize scores the pool, computes the Pareto frontier, and selects the
// Top-K for presentation. The returned retained pool is the frontier plus
// the Top-K; candidates outside it are retired.
func (o *Optimizer) Optimize(pool []*trip.CandidateItinerary, weights trip.ObjectiveWeights, topK int) (*Ranked, error) {
	if err := Score(pool, weights); err != nil {
		return nil, err
	}

	frontier := Frontier(pool)
	top := TopK(frontier, topK)

	retained := make([]*trip.CandidateItinerary, 0, len(frontier))
	seen := make(map[int]bool, len(frontier))
	for _, c := range frontier {
		retained = append(retained, c)
		seen[c.Seq] = true
	}
	for _, c := range top {
		if !seen[c.Seq] {
			retained = append(retained, c)
			seen[c.Seq] = true
		}
	}

	o.logger.Debug("optimize pass complete",
		"pool", len(pool),
		"frontier", len(frontier),
		"top", len(top),
		"retained", len(retained),
	)

	return &Ranked{Pool: retained, Frontier: frontier, Top: top}, nil
}

// moveSet is the fixed neighbor-generation order. Keeping it static makes
// refinement reproducible across runs.
var moveSet = []struct {
	name string
	fn   move
}{
	{"swap", swapMove},
	{"insert", insertMove},
	{"remove", removeMove},
	{"retier", retierMove},
}

// Refine performs one bounded local-search round: the beam-width best
// scored candidates are expanded through the move set, every neighbor is
// feasibility-checked, and the grown pool is returned. Total neighbors
// per round never exceed the configured move cap, so a refinement loop
// driven by bounded feedback edges terminates in finite work.
func (o *Optimizer) Refine(pool []*trip.CandidateItinerary, weights trip.ObjectiveWeights) ([]*trip.CandidateItinerary, error) {
	if len(pool) == 0 {
		return pool, nil
	}
	if err := Score(pool, weights); err != nil {
		return nil, err
	}

	beam := TopK(Frontier(pool), o.beamWidth)
	if len(beam) == 0 {
		beam = pool[:1]
	}

	nextSeq := 0
	for _, c := range pool {
		if c.Seq >= nextSeq {
			nextSeq = c.Seq + 1
		}
	}

	grown := pool
	moves := 0
	for _, base := range beam {
		for _, m := range moveSet {
			if moves >= o.movesPerRound {
				break
			}
			neighbor := m.fn(base, nextSeq, o.offers)
			if neighbor == nil {
				continue
			}
			nextSeq++
			moves++

			neighbor.Conflicts = o.validator.Check(neighbor, o.constraints)
			grown = append(grown, neighbor)

			o.logger.Debug("local-search neighbor admitted",
				"move", m.name,
				"provenance", neighbor.Provenance,
				"conflicts", len(neighbor.Conflicts),
			)
		}
	}

	if err := Score(grown, weights); err != nil {
		return nil, err
	}
	return grown, nil
}
