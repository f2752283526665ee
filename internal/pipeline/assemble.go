package pipeline

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/itinera-ai/itinera/internal/blackboard"
	"github.com/itinera-ai/itinera/internal/stage"
	"github.com/itinera-ai/itinera/internal/trip"
	"github.com/itinera-ai/itinera/internal/types"
)

// Meal placeholders synthesized into every full day. Flat per-party
// estimates; offer-backed dining is out of the provider's scope.
const (
	lunchCost  = 30.0
	dinnerCost = 45.0
)

// Slot anchors, minutes since midnight.
const (
	slotArrival   = 8 * 60
	slotMorning   = 9 * 60
	slotLunch     = 12*60 + 30
	slotAfternoon = 14 * 60
	slotDinner    = 19 * 60
	slotEvening   = 20*60 + 30
)

const defaultActivityMinutes = 120

// AssembleStage turns offer pools into complete candidate itineraries.
// Each invocation produces a small diverse set by pairing transport and
// lodging tiers; activities are allocated across days by preference
// weight. Re-runs triggered by feedback narrow the input via the
// exclude_titles parameter and extend the pool rather than restarting it.
type AssembleStage struct {
	deps Deps
}

func NewAssembleStage(deps Deps) *AssembleStage {
	return &AssembleStage{deps: deps}
}

func (s *AssembleStage) Name() string { return StageAssemble }

func (s *AssembleStage) Invoke(ctx context.Context, snap *blackboard.Snapshot, params stage.Params) (*stage.Outcome, error) {
	constraints, ok := constraintsOf(snap)
	if !ok {
		return stage.FailureOutcome(types.NewError(types.DATA_GAP,
			"no constraints to assemble against")), nil
	}
	profile, _ := profileOf(snap)
	if profile == nil {
		profile = &trip.UserProfile{Pace: trip.PaceModerate, Weights: trip.DefaultWeights()}
	}
	dest, _ := destinationOf(snap)

	transport, lodging, activities := offersOf(snap)
	if len(transport) == 0 && len(lodging) == 0 && len(activities) == 0 {
		return stage.FailureOutcome(types.NewError(types.DATA_GAP,
			"no offers available to assemble")), nil
	}

	excluded := excludeSet(params.StringSlice("exclude_titles"), constraints.MustExclude, profile.AvoidList)
	usable := usableActivities(activities, excluded, constraints.MustInclude, profile.ThemeWeights)

	prior := poolOf(snap)
	pool := make([]*trip.CandidateItinerary, 0, len(prior)+3)
	seq := 0
	for _, c := range prior {
		if c.Seq >= seq {
			seq = c.Seq + 1
		}
		// Candidates already known to be broken are not worth re-ranking.
		if c.Feasible() {
			pool = append(pool, c)
		}
	}

	slots := slotsForPace(profile.Pace)
	for _, combo := range tierCombos(transport, lodging) {
		days := s.buildDays(constraints, dest, combo.transport, combo.lodging, usable, slots)
		if len(days) == 0 {
			continue
		}
		pool = append(pool, trip.NewCandidate(seq, days))
		seq++
	}

	if len(pool) == 0 {
		return stage.FailureOutcome(types.NewError(types.DATA_GAP,
			"assembly produced no candidates")), nil
	}

	s.deps.logger().DebugContext(ctx, "assembled candidate pool",
		"candidates", len(pool),
		"activities_used", len(usable),
	)

	patch := (&blackboard.Patch{}).Add(blackboard.KeyPool, pool, 0.9)
	return stage.PatchOutcome(patch), nil
}

type tierCombo struct {
	transport *trip.Offer
	lodging   *trip.Offer
}

// tierCombos pairs transport and lodging offers tier-by-tier, cheapest
// first, yielding up to three budget bands.
func tierCombos(transport, lodging []trip.Offer) []tierCombo {
	byTier := func(offers []trip.Offer) []trip.Offer {
		out := append([]trip.Offer(nil), offers...)
		sort.Slice(out, func(i, j int) bool {
			if out[i].Tier != out[j].Tier {
				return out[i].Tier < out[j].Tier
			}
			return out[i].Price < out[j].Price
		})
		return out
	}
	t, l := byTier(transport), byTier(lodging)

	n := len(t)
	if len(l) > n {
		n = len(l)
	}
	if n > 3 {
		n = 3
	}
	combos := make([]tierCombo, 0, n)
	for i := 0; i < n; i++ {
		var combo tierCombo
		if len(t) > 0 {
			combo.transport = &t[min(i, len(t)-1)]
		}
		if len(l) > 0 {
			combo.lodging = &l[min(i, len(l)-1)]
		}
		combos = append(combos, combo)
	}
	if len(combos) == 0 {
		combos = append(combos, tierCombo{})
	}
	return combos
}

// itemBuffer is the slack left between consecutive scheduled items. It
// exceeds the minimum transfer buffer the validator enforces, so freshly
// assembled schedules pass the adjacency checks.
const itemBuffer = 15 * time.Minute

func (s *AssembleStage) buildDays(
	constraints *trip.Constraints,
	dest Destination,
	transportOffer, lodgingOffer *trip.Offer,
	activities []trip.Offer,
	slots []int,
) []trip.Day {
	dayCount := constraints.Days()
	if dayCount <= 0 {
		return nil
	}
	anchor := time.Date(
		constraints.Depart.Year(), constraints.Depart.Month(), constraints.Depart.Day(),
		0, 0, 0, 0, constraints.Depart.Location(),
	)
	nights := dayCount - 1
	if nights < 1 {
		nights = 1
	}

	remaining := append([]trip.Offer(nil), activities...)
	days := make([]trip.Day, 0, dayCount)

	for d := 1; d <= dayCount; d++ {
		dayStart := anchor.AddDate(0, 0, d-1)
		day := trip.Day{Index: d}
		var cursor time.Time

		arrivalDay := d == 1
		if arrivalDay && transportOffer != nil {
			dur := transportOffer.DurationMinutes
			if dur <= 0 {
				dur = 180
			}
			move := trip.Item{
				Type:       trip.ItemMove,
				Title:      transportOffer.Title,
				Start:      dayStart.Add(time.Duration(slotArrival) * time.Minute),
				End:        dayStart.Add(time.Duration(slotArrival+dur) * time.Minute),
				Cost:       transportOffer.Price,
				Location:   transportOffer.Location,
				OfferID:    transportOffer.ID,
				Confidence: transportOffer.Confidence,
				Note:       "round trip",
			}
			day.Items = append(day.Items, move)
			cursor = move.End
		}

		for _, minute := range slots {
			if arrivalDay && minute < slotAfternoon {
				continue // still in transit
			}
			if minute > slotLunch && mealCount(day.Items) == 0 {
				cursor = appendMeal(&day, dayStart, cursor, slotLunch, "Lunch", lunchCost)
			}
			if minute >= slotEvening && mealCount(day.Items) < 2 {
				cursor = appendMeal(&day, dayStart, cursor, slotDinner, "Dinner", dinnerCost)
			}

			item, end, ok := scheduleActivity(&remaining, dayStart, cursor, minute)
			if !ok {
				continue
			}
			day.Items = append(day.Items, item)
			cursor = end
		}

		// Any meal slot the activity loop did not pass still gets covered.
		if mealCount(day.Items) == 0 {
			cursor = appendMeal(&day, dayStart, cursor, slotLunch, "Lunch", lunchCost)
		}
		if mealCount(day.Items) < 2 {
			cursor = appendMeal(&day, dayStart, cursor, slotDinner, "Dinner", dinnerCost)
		}

		if lodgingOffer != nil && d <= nights {
			day.Items = append(day.Items, trip.Item{
				Type:       trip.ItemStay,
				Title:      lodgingOffer.Title,
				Start:      dayStart.Add(22 * time.Hour),
				End:        dayStart.Add(23 * time.Hour),
				Cost:       lodgingOffer.Price / float64(nights),
				Location:   lodgingOffer.Location,
				OfferID:    lodgingOffer.ID,
				Confidence: lodgingOffer.Confidence,
			})
		}

		sort.SliceStable(day.Items, func(i, j int) bool {
			return day.Items[i].Start.Before(day.Items[j].Start)
		})
		if dest.Known && d == 1 {
			day.Note = dest.Info.TransitNote
		}
		days = append(days, day)
	}
	return days
}

func mealCount(items []trip.Item) int {
	n := 0
	for _, it := range items {
		if it.Type == trip.ItemMeal {
			n++
		}
	}
	return n
}

func appendMeal(day *trip.Day, dayStart, cursor time.Time, slot int, title string, cost float64) time.Time {
	start := dayStart.Add(time.Duration(slot) * time.Minute)
	if !cursor.IsZero() && start.Before(cursor.Add(itemBuffer)) {
		start = cursor.Add(itemBuffer)
	}
	end := start.Add(time.Hour)
	day.Items = append(day.Items, trip.Item{
		Type:       trip.ItemMeal,
		Title:      title,
		Start:      start,
		End:        end,
		Cost:       cost,
		Confidence: 1,
	})
	return end
}

// scheduleActivity finds the first remaining offer that fits the slot:
// starting no earlier than the slot anchor, the running cursor plus
// buffer, and the venue's opening time, and ending before it closes.
// The chosen offer is removed from the remaining set.
func scheduleActivity(remaining *[]trip.Offer, dayStart, cursor time.Time, slot int) (trip.Item, time.Time, bool) {
	// Leave room before the nightly stay item at 22:00.
	dayEnd := dayStart.Add(21*time.Hour + 45*time.Minute)
	for i, offer := range *remaining {
		dur := offer.DurationMinutes
		if dur <= 0 {
			dur = defaultActivityMinutes
		}

		start := dayStart.Add(time.Duration(slot) * time.Minute)
		if !cursor.IsZero() && start.Before(cursor.Add(itemBuffer)) {
			start = cursor.Add(itemBuffer)
		}
		if hours := offer.Location.OpenHours; hours != nil {
			open := dayStart.Add(time.Duration(hours.OpenMinute) * time.Minute)
			if start.Before(open) {
				start = open
			}
			end := start.Add(time.Duration(dur) * time.Minute)
			if end.After(dayStart.Add(time.Duration(hours.CloseMinute) * time.Minute)) {
				continue // does not fit this venue's hours today
			}
		}
		end := start.Add(time.Duration(dur) * time.Minute)
		if end.After(dayEnd) {
			continue
		}

		item := trip.Item{
			Type:         trip.ItemPOI,
			Title:        offer.Title,
			Start:        start,
			End:          end,
			Cost:         offer.Price,
			Location:     offer.Location,
			OfferID:      offer.ID,
			Theme:        offer.Theme,
			QueueMinutes: offer.QueueMinutes,
			Confidence:   offer.Confidence,
		}
		*remaining = append((*remaining)[:i], (*remaining)[i+1:]...)
		return item, end, true
	}
	return trip.Item{}, time.Time{}, false
}

// slotsForPace returns the activity start minutes per day.
func slotsForPace(pace trip.Pace) []int {
	switch pace {
	case trip.PaceRelaxed:
		return []int{slotAfternoon}
	case trip.PacePacked:
		return []int{slotMorning, slotAfternoon, slotEvening}
	default:
		return []int{slotMorning, slotAfternoon}
	}
}

func excludeSet(groups ...[]string) map[string]bool {
	out := map[string]bool{}
	for _, group := range groups {
		for _, name := range group {
			out[strings.ToLower(name)] = true
		}
	}
	return out
}

// usableActivities filters and orders the activity offers: required
// titles first, then by theme preference, price and title for a
// deterministic allocation.
func usableActivities(offers []trip.Offer, excluded map[string]bool, mustInclude []string, themeWeights map[string]float64) []trip.Offer {
	required := func(title string) bool {
		lower := strings.ToLower(title)
		for _, name := range mustInclude {
			if strings.Contains(lower, strings.ToLower(name)) {
				return true
			}
		}
		return false
	}

	var out []trip.Offer
	for _, offer := range offers {
		if !offer.Available() {
			continue
		}
		if excluded[strings.ToLower(offer.Title)] {
			continue
		}
		out = append(out, offer)
	}
	sort.SliceStable(out, func(i, j int) bool {
		ri, rj := required(out[i].Title), required(out[j].Title)
		if ri != rj {
			return ri
		}
		wi, wj := themeWeights[out[i].Theme], themeWeights[out[j].Theme]
		if wi != wj {
			return wi > wj
		}
		if out[i].Price != out[j].Price {
			return out[i].Price < out[j].Price
		}
		return out[i].Title < out[j].Title
	})
	return out
}
