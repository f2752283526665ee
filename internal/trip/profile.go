package trip

import (
	"fmt"
	"time"
)

// Pace describes how densely the traveller wants days packed.
type Pace string

const (
	PaceRelaxed  Pace = "relaxed"
	PaceModerate Pace = "moderate"
	PacePacked   Pace = "packed"
)

// ObjectiveWeights is the weight vector over scoring dimensions.
// The total must be positive; it is re-normalized to sum to 1 before use,
// so callers may express weights on any scale they like.
type ObjectiveWeights struct {
	Cost     float64 `json:"cost" yaml:"cost"`
	Time     float64 `json:"time" yaml:"time"`
	Interest float64 `json:"interest" yaml:"interest"`
	Comfort  float64 `json:"comfort" yaml:"comfort"`
	Risk     float64 `json:"risk" yaml:"risk"`
}

// Total returns the sum of all weights.
func (w ObjectiveWeights) Total() float64 {
	return w.Cost + w.Time + w.Interest + w.Comfort + w.Risk
}

// Normalized returns a copy of the weights scaled to sum to 1.
// Returns an error if the total is not positive.
func (w ObjectiveWeights) Normalized() (ObjectiveWeights, error) {
	total := w.Total()
	if total <= 0 {
		return ObjectiveWeights{}, fmt.Errorf("objective weight total must be positive, got %v", total)
	}
	return ObjectiveWeights{
		Cost:     w.Cost / total,
		Time:     w.Time / total,
		Interest: w.Interest / total,
		Comfort:  w.Comfort / total,
		Risk:     w.Risk / total,
	}, nil
}

// DefaultWeights returns an even weighting across all dimensions.
func DefaultWeights() ObjectiveWeights {
	return ObjectiveWeights{Cost: 1, Time: 1, Interest: 1, Comfort: 1, Risk: 1}
}

// UserProfile captures traveller preferences extracted during clarification.
// Replaceable only by an explicit user correction.
type UserProfile struct {
	ThemeWeights map[string]float64 `json:"theme_weights,omitempty" yaml:"theme_weights,omitempty"`
	Pace         Pace               `json:"pace" yaml:"pace"`
	AvoidList    []string           `json:"avoid_list,omitempty" yaml:"avoid_list,omitempty"`
	MealPrefs    []string           `json:"meal_prefs,omitempty" yaml:"meal_prefs,omitempty"`
	Weights      ObjectiveWeights   `json:"weights" yaml:"weights"`
}

// Validate checks the profile invariants.
func (p *UserProfile) Validate() error {
	if p.Weights.Total() <= 0 {
		return fmt.Errorf("user profile weight vector must have a positive total")
	}
	return nil
}

// PartyComposition describes who is travelling.
type PartyComposition struct {
	Adults   int `json:"adults" yaml:"adults"`
	Children int `json:"children" yaml:"children"`
	Seniors  int `json:"seniors" yaml:"seniors"`
}

// Size returns the total party head count.
func (p PartyComposition) Size() int {
	return p.Adults + p.Children + p.Seniors
}

// Constraints are the hard limits captured during clarification.
// Immutable once the search stages start; changes require a new run.
type Constraints struct {
	BudgetTotal  float64          `json:"budget_total" yaml:"budget_total"`
	Depart       time.Time        `json:"depart" yaml:"depart"`
	Return       time.Time        `json:"return" yaml:"return"`
	Party        PartyComposition `json:"party" yaml:"party"`
	VisaRequired bool             `json:"visa_required,omitempty" yaml:"visa_required,omitempty"`
	MustInclude  []string         `json:"must_include,omitempty" yaml:"must_include,omitempty"`
	MustExclude  []string         `json:"must_exclude,omitempty" yaml:"must_exclude,omitempty"`
}

// Validate checks the constraint invariants: a non-empty date range and a
// positive budget ceiling. Violations are fatal configuration errors and
// must reject the run before the graph starts.
func (c *Constraints) Validate() error {
	if c.BudgetTotal <= 0 {
		return fmt.Errorf("budget ceiling must be positive, got %v", c.BudgetTotal)
	}
	if c.Return.Before(c.Depart) {
		return fmt.Errorf("return date %s is before departure %s",
			c.Return.Format("2006-01-02"), c.Depart.Format("2006-01-02"))
	}
	if c.Party.Size() <= 0 {
		return fmt.Errorf("party must have at least one traveller")
	}
	return nil
}

// Days returns the number of itinerary days covered by the date range,
// counting both endpoints.
func (c *Constraints) Days() int {
	return int(c.Return.Sub(c.Depart).Hours()/24) + 1
}
