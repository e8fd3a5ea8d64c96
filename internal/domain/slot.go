package domain

import (
	"strings"
	"time"
)

// DefaultSlotPriceCents is the price of a newly provisioned slot (25.00).
const DefaultSlotPriceCents int64 = 2500

// slotInstantLayout is ISO-8601 in UTC with millisecond precision.
const slotInstantLayout = "2006-01-02T15:04:05.000Z"

// TimeSlot is one bookable game on a court.
type TimeSlot struct {
	ID         string    `json:"id"`
	CourtID    string    `json:"court_id"`
	Start      time.Time `json:"start"`
	End        time.Time `json:"end"`
	Available  bool      `json:"available"`
	Buddies    int       `json:"buddies"`
	PriceCents int64     `json:"price_cents"`
}

// SlotID derives the stable slot identity for a court and start instant:
// "{courtId}_{ISO-8601 start}" with ':' and '.' replaced by '-'.
// Existing stored data relies on this exact format.
func SlotID(courtID string, start time.Time) string {
	iso := start.UTC().Format(slotInstantLayout)
	iso = strings.NewReplacer(":", "-", ".", "-").Replace(iso)
	return courtID + "_" + iso
}

// NewTimeSlot builds an available, unbooked slot at the default price.
func NewTimeSlot(courtID string, start time.Time, duration time.Duration) TimeSlot {
	return TimeSlot{
		ID:         SlotID(courtID, start),
		CourtID:    courtID,
		Start:      start,
		End:        start.Add(duration),
		Available:  true,
		Buddies:    0,
		PriceCents: DefaultSlotPriceCents,
	}
}

// Window is an inclusive time range.
type Window struct {
	From time.Time
	To   time.Time
}

// WindowAround returns [at-span, at+span].
func WindowAround(at time.Time, span time.Duration) Window {
	return Window{From: at.Add(-span), To: at.Add(span)}
}

// Contains reports whether t lies inside the window, bounds included.
func (w Window) Contains(t time.Time) bool {
	return !t.Before(w.From) && !t.After(w.To)
}
