package flashcard

import (
	"sort"
	"time"

	"github.com/vytor/flashstudy/internal/models"
)

// SelectOptions controls SelectDue.
type SelectOptions struct {
	// Limit caps the number of returned ids. Zero or negative means no cap.
	Limit int
	// NewFirst places never-reviewed cards ahead of overdue ones.
	NewFirst bool
}

// IsDue reports whether a card should be studied at now. Never-reviewed cards
// are always due; the boundary is inclusive.
func IsDue(s models.ReviewState, now time.Time) bool {
	if s.DueAt == nil {
		return true
	}
	return !s.DueAt.After(now)
}

// SelectDue returns the ordered ids of the cards due at now.
//
// Reviewed cards are ordered most overdue first with ties broken by id.
// Never-reviewed cards keep insertion order (creation time, then id). The
// result is never nil and does not depend on the order of cards.
func SelectDue(cards []models.Flashcard, now time.Time, opts SelectOptions) []int64 {
	var fresh, overdue []models.Flashcard
	for _, c := range cards {
		if !IsDue(c.ReviewState, now) {
			continue
		}
		if c.DueAt == nil {
			fresh = append(fresh, c)
		} else {
			overdue = append(overdue, c)
		}
	}

	sort.SliceStable(fresh, func(i, j int) bool {
		if !fresh[i].CreatedAt.Equal(fresh[j].CreatedAt) {
			return fresh[i].CreatedAt.Before(fresh[j].CreatedAt)
		}
		return fresh[i].ID < fresh[j].ID
	})
	sort.SliceStable(overdue, func(i, j int) bool {
		if !overdue[i].DueAt.Equal(*overdue[j].DueAt) {
			return overdue[i].DueAt.Before(*overdue[j].DueAt)
		}
		return overdue[i].ID < overdue[j].ID
	})

	first, second := overdue, fresh
	if opts.NewFirst {
		first, second = fresh, overdue
	}

	ids := make([]int64, 0, len(first)+len(second))
	for _, c := range first {
		ids = append(ids, c.ID)
	}
	for _, c := range second {
		ids = append(ids, c.ID)
	}
	if opts.Limit > 0 && len(ids) > opts.Limit {
		ids = ids[:opts.Limit]
	}
	return ids
}

// EndOfDay returns the last representable instant of t's calendar day in
// t's location.
func EndOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 23, 59, 59, int(time.Second-time.Nanosecond), t.Location())
}
