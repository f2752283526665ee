// Package export renders an accepted itinerary into the presentation
// plan handed to callers: day-by-day entries grouped into part-of-day
// bands, with totals, trade-off notes and residual risks alongside.
package export

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/itinera-ai/itinera/internal/trip"
)

// PartOfDay buckets a scheduled item by its start time.
type PartOfDay string

const (
	Morning   PartOfDay = "morning"
	Afternoon PartOfDay = "afternoon"
	Evening   PartOfDay = "evening"
	Other     PartOfDay = "other"
)

// bandFor maps a start time to its part-of-day band. Anything from
// 17:00 on is evening, anything before noon is morning; the small hours
// before 05:00 (red-eye arrivals) fall outside the usual bands.
func bandFor(t time.Time) PartOfDay {
	switch h := t.Hour(); {
	case h < 5:
		return Other
	case h < 12:
		return Morning
	case h < 17:
		return Afternoon
	default:
		return Evening
	}
}

// PlanItem is one rendered itinerary entry.
type PlanItem struct {
	Band     PartOfDay `json:"band" yaml:"band"`
	Type     string    `json:"type" yaml:"type"`
	Title    string    `json:"title" yaml:"title"`
	Start    string    `json:"start" yaml:"start"`
	End      string    `json:"end" yaml:"end"`
	Cost     float64   `json:"cost" yaml:"cost"`
	Location string    `json:"location,omitempty" yaml:"location,omitempty"`
	Note     string    `json:"note,omitempty" yaml:"note,omitempty"`

	// LowConfidence flags entries built from degraded or fallback data so
	// the caller can present them as tentative.
	LowConfidence bool `json:"low_confidence,omitempty" yaml:"low_confidence,omitempty"`
}

// DayPlan is one rendered day.
type DayPlan struct {
	Index int        `json:"index" yaml:"index"`
	Date  string     `json:"date,omitempty" yaml:"date,omitempty"`
	Note  string     `json:"note,omitempty" yaml:"note,omitempty"`
	Items []PlanItem `json:"items" yaml:"items"`
}

// Risk is one advisory carried through to presentation.
type Risk struct {
	Category    string `json:"category" yaml:"category"`
	Description string `json:"description" yaml:"description"`
}

// Plan is the presentation form of an accepted (or best-available)
// itinerary. Optional fields are omitted rather than zero-filled so the
// serialized form stays readable when inputs were sparse.
type Plan struct {
	Destination string   `json:"destination" yaml:"destination"`
	Days        int      `json:"days" yaml:"days"`
	Budget      float64  `json:"budget,omitempty" yaml:"budget,omitempty"`
	Preferences []string `json:"preferences,omitempty" yaml:"preferences,omitempty"`

	BestTime    string `json:"best_time,omitempty" yaml:"best_time,omitempty"`
	CostBand    string `json:"cost_band,omitempty" yaml:"cost_band,omitempty"`
	TransitNote string `json:"transit_note,omitempty" yaml:"transit_note,omitempty"`

	Summary   string  `json:"summary" yaml:"summary"`
	CostTotal float64 `json:"cost_total" yaml:"cost_total"`

	Ledger map[string]float64 `json:"ledger,omitempty" yaml:"ledger,omitempty"`
	Tips   []string           `json:"tips,omitempty" yaml:"tips,omitempty"`
	Risks  []Risk             `json:"risks,omitempty" yaml:"risks,omitempty"`

	Itinerary []DayPlan `json:"itinerary" yaml:"itinerary"`

	// Degraded marks a plan assembled from the best-available candidate
	// rather than an explicitly accepted one.
	Degraded bool `json:"degraded,omitempty" yaml:"degraded,omitempty"`
}

// BuildOptions carries the contextual fields the candidate itself does
// not know: where the trip goes and what the traveller asked for.
type BuildOptions struct {
	Destination string
	Budget      float64
	Preferences []string
	BestTime    string
	CostBand    string
	TransitNote string
	Tips        []string
	Degraded    bool
}

const lowConfidenceCutoff = 0.5

// Build renders a candidate into a Plan. Risks come from the candidate's
// advisory conflicts plus any run-level risks the caller passes in.
func Build(candidate *trip.CandidateItinerary, depart time.Time, opts BuildOptions, extraRisks []trip.ConflictRecord) *Plan {
	plan := &Plan{
		Destination: opts.Destination,
		Days:        len(candidate.Days),
		Budget:      opts.Budget,
		Preferences: opts.Preferences,
		BestTime:    opts.BestTime,
		CostBand:    opts.CostBand,
		TransitNote: opts.TransitNote,
		CostTotal:   candidate.Metrics.CostTotal,
		Ledger:      candidate.Ledger.Clone(),
		Tips:        opts.Tips,
		Degraded:    opts.Degraded,
	}

	for _, day := range candidate.Days {
		dp := DayPlan{Index: day.Index, Note: day.Note}
		if !depart.IsZero() {
			dp.Date = depart.AddDate(0, 0, day.Index-1).Format("2006-01-02")
		}
		for _, item := range day.Items {
			dp.Items = append(dp.Items, PlanItem{
				Band:          bandFor(item.Start),
				Type:          string(item.Type),
				Title:         item.Title,
				Start:         item.Start.Format("15:04"),
				End:           item.End.Format("15:04"),
				Cost:          item.Cost,
				Location:      item.Location.Name,
				Note:          item.Note,
				LowConfidence: item.Confidence > 0 && item.Confidence < lowConfidenceCutoff,
			})
		}
		plan.Itinerary = append(plan.Itinerary, dp)
	}

	seen := map[string]bool{}
	appendRisk := func(rec trip.ConflictRecord) {
		key := string(rec.Category) + "|" + rec.Description
		if seen[key] {
			return
		}
		seen[key] = true
		plan.Risks = append(plan.Risks, Risk{
			Category:    string(rec.Category),
			Description: rec.Description,
		})
	}
	for _, rec := range candidate.Conflicts {
		if !rec.IsHard() {
			appendRisk(rec)
		}
	}
	for _, rec := range extraRisks {
		if !rec.IsHard() {
			appendRisk(rec)
		}
	}
	sort.Slice(plan.Risks, func(i, j int) bool {
		if plan.Risks[i].Category != plan.Risks[j].Category {
			return plan.Risks[i].Category < plan.Risks[j].Category
		}
		return plan.Risks[i].Description < plan.Risks[j].Description
	})

	plan.Summary = summarize(plan, candidate)
	return plan
}

func summarize(plan *Plan, candidate *trip.CandidateItinerary) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%d-day plan for %s, %d scheduled entries, total %.0f",
		plan.Days, plan.Destination, candidate.ItemCount(), plan.CostTotal)
	if plan.Budget > 0 {
		fmt.Fprintf(&b, " of %.0f budget", plan.Budget)
	}
	if len(plan.Risks) > 0 {
		fmt.Fprintf(&b, "; %d advisory note(s)", len(plan.Risks))
	}
	if plan.Degraded {
		b.WriteString("; assembled from best available data")
	}
	return b.String()
}

// MarshalYAMLDoc renders the plan as a YAML document.
func (p *Plan) MarshalYAMLDoc() ([]byte, error) {
	return yaml.Marshal(p)
}

// MarshalJSONDoc renders the plan as indented JSON.
func (p *Plan) MarshalJSONDoc() ([]byte, error) {
	return json.MarshalIndent(p, "", "  ")
}
