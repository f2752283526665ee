package optimize

import (
	"fmt"
	"sort"
	"time"

	"github.com/itinera-ai/itinera/internal/trip"
	"github.com/itinera-ai/itinera/internal/types"
)

// moveGap is the scheduling buffer used when a move inserts or reflows
// items within a day.
const moveGap = 30 * time.Minute

// move generates at most one neighbor from a candidate. A nil return
// means the move does not apply.
type move func(c *trip.CandidateItinerary, seq int, pool *offerPool) *trip.CandidateItinerary

// offerPool indexes spare supply for insert and retier moves.
type offerPool struct {
	activities []trip.Offer
	byTier     map[trip.OfferKind][]trip.Offer
}

func newOfferPool(offers []trip.Offer) *offerPool {
	p := &offerPool{byTier: make(map[trip.OfferKind][]trip.Offer)}
	for _, o := range offers {
		switch o.Kind {
		case trip.OfferActivity:
			p.activities = append(p.activities, o)
		case trip.OfferTransport, trip.OfferLodging:
			p.byTier[o.Kind] = append(p.byTier[o.Kind], o)
		}
	}
	// Stable ordering keeps neighbor generation deterministic.
	sort.SliceStable(p.activities, func(i, j int) bool { return p.activities[i].Title < p.activities[j].Title })
	for kind := range p.byTier {
		offers := p.byTier[kind]
		sort.SliceStable(offers, func(i, j int) bool { return offers[i].Tier < offers[j].Tier })
	}
	return p
}

// usedOfferIDs collects the offers a candidate already references.
func usedOfferIDs(c *trip.CandidateItinerary) map[types.ID]bool {
	used := make(map[types.ID]bool)
	for _, day := range c.Days {
		for _, item := range day.Items {
			if !item.OfferID.IsZero() {
				used[item.OfferID] = true
			}
		}
	}
	return used
}

// swapMove exchanges the first swappable POI pair between the two most
// load-imbalanced days.
func swapMove(c *trip.CandidateItinerary, seq int, _ *offerPool) *trip.CandidateItinerary {
	if len(c.Days) < 2 {
		return nil
	}

	heaviest, lightest := -1, -1
	var maxItems, minItems int
	for i, day := range c.Days {
		n := countPOIs(day)
		if heaviest == -1 || n > maxItems {
			heaviest, maxItems = i, n
		}
		if lightest == -1 || n < minItems {
			lightest, minItems = i, n
		}
	}
	if heaviest == lightest || maxItems == 0 || minItems == 0 {
		return nil
	}

	hi := firstPOIIndex(c.Days[heaviest])
	li := firstPOIIndex(c.Days[lightest])
	if hi < 0 || li < 0 {
		return nil
	}

	days := c.CloneDays()
	a := days[heaviest].Items[hi]
	b := days[lightest].Items[li]
	days[heaviest].Items[hi] = reslot(b, a.Start)
	days[lightest].Items[li] = reslot(a, b.Start)

	return c.CloneWithDays(seq, days, fmt.Sprintf("swap %q and %q across days %d/%d", a.Title, b.Title, heaviest, lightest))
}

// insertMove adds the first unused activity offer to the lightest day.
func insertMove(c *trip.CandidateItinerary, seq int, pool *offerPool) *trip.CandidateItinerary {
	if len(c.Days) == 0 {
		return nil
	}
	used := usedOfferIDs(c)

	var offer *trip.Offer
	for i := range pool.activities {
		if !used[pool.activities[i].ID] {
			offer = &pool.activities[i]
			break
		}
	}
	if offer == nil {
		return nil
	}

	lightest := 0
	for i, day := range c.Days {
		if countPOIs(day) < countPOIs(c.Days[lightest]) {
			lightest = i
		}
	}

	days := c.CloneDays()
	day := &days[lightest]
	start := dayAnchor(*day).Add(moveGap)
	if n := len(day.Items); n > 0 {
		start = day.Items[n-1].End.Add(moveGap)
	}
	duration := time.Duration(offer.DurationMinutes) * time.Minute
	if duration == 0 {
		duration = 2 * time.Hour
	}
	day.Items = append(day.Items, trip.Item{
		Type:         trip.ItemPOI,
		Title:        offer.Title,
		Start:        start,
		End:          start.Add(duration),
		Cost:         offer.Price,
		Location:     offer.Location,
		OfferID:      offer.ID,
		Theme:        offer.Theme,
		QueueMinutes: offer.QueueMinutes,
		Confidence:   offer.Confidence,
	})

	return c.CloneWithDays(seq, days, fmt.Sprintf("insert %q into day %d", offer.Title, lightest))
}

// removeMove drops the costliest POI item, trading interest for budget
// and fatigue headroom.
func removeMove(c *trip.CandidateItinerary, seq int, _ *offerPool) *trip.CandidateItinerary {
	di, ii := -1, -1
	var maxCost float64
	pois := 0
	for d, day := range c.Days {
		for i, item := range day.Items {
			if item.Type != trip.ItemPOI {
				continue
			}
			pois++
			if item.Cost >= maxCost {
				maxCost = item.Cost
				di, ii = d, i
			}
		}
	}
	// Keep at least one sight per candidate.
	if di < 0 || pois <= 1 {
		return nil
	}

	days := c.CloneDays()
	title := days[di].Items[ii].Title
	days[di].Items = append(days[di].Items[:ii], days[di].Items[ii+1:]...)

	return c.CloneWithDays(seq, days, fmt.Sprintf("remove %q from day %d", title, di))
}

// retierMove downgrades the first move/stay item that has a cheaper
// offer tier available for the same kind.
func retierMove(c *trip.CandidateItinerary, seq int, pool *offerPool) *trip.CandidateItinerary {
	for di, day := range c.Days {
		for ii, item := range day.Items {
			var kind trip.OfferKind
			switch item.Type {
			case trip.ItemMove:
				kind = trip.OfferTransport
			case trip.ItemStay:
				kind = trip.OfferLodging
			default:
				continue
			}
			if item.OfferID.IsZero() {
				continue
			}
			cheaper := cheaperTier(pool.byTier[kind], item)
			if cheaper == nil {
				continue
			}

			days := c.CloneDays()
			next := days[di].Items[ii]
			next.Title = cheaper.Title
			next.Cost = cheaper.Price
			next.OfferID = cheaper.ID
			next.Confidence = cheaper.Confidence
			days[di].Items[ii] = next

			return c.CloneWithDays(seq, days,
				fmt.Sprintf("retier %q to %q", item.Title, cheaper.Title))
		}
	}
	return nil
}

// cheaperTier finds the most expensive offer still cheaper than the item.
func cheaperTier(offers []trip.Offer, item trip.Item) *trip.Offer {
	var best *trip.Offer
	for i := range offers {
		o := &offers[i]
		if o.ID == item.OfferID || o.Price >= item.Cost {
			continue
		}
		if best == nil || o.Price > best.Price {
			best = o
		}
	}
	return best
}

func countPOIs(day trip.Day) int {
	n := 0
	for _, item := range day.Items {
		if item.Type == trip.ItemPOI {
			n++
		}
	}
	return n
}

func firstPOIIndex(day trip.Day) int {
	for i, item := range day.Items {
		if item.Type == trip.ItemPOI {
			return i
		}
	}
	return -1
}

// reslot keeps an item's duration while moving its start.
func reslot(item trip.Item, start time.Time) trip.Item {
	d := item.Duration()
	item.Start = start
	item.End = start.Add(d)
	return item
}

// dayAnchor returns 09:00 on the day's date, the default slot for an
// otherwise empty day.
func dayAnchor(day trip.Day) time.Time {
	if len(day.Items) > 0 {
		first := day.Items[0].Start
		return time.Date(first.Year(), first.Month(), first.Day(), 9, 0, 0, 0, first.Location())
	}
	return time.Time{}
}
