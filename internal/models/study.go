package models

import "time"

// StudySession is the in-memory batch of cards a user is working through.
// It is never persisted.
type StudySession struct {
	ID        string          `json:"id"`
	UserID    int64           `json:"user_id"`
	CardIDs   []int64         `json:"card_ids"`
	Cursor    int             `json:"cursor"`
	Counts    map[Outcome]int `json:"counts"`
	Skipped   int             `json:"skipped"` // passed over without a grade
	StartedAt time.Time       `json:"started_at"`
	// LastActiveAt is bumped on every review; idle sessions expire.
	LastActiveAt time.Time `json:"last_active_at"`
}

// Done reports whether every selected card has been reviewed.
func (s *StudySession) Done() bool {
	return s.Cursor >= len(s.CardIDs)
}

// Current returns the id of the card under the cursor.
func (s *StudySession) Current() (int64, bool) {
	if s.Done() {
		return 0, false
	}
	return s.CardIDs[s.Cursor], true
}

// Remaining is the number of cards not yet reviewed.
func (s *StudySession) Remaining() int {
	if s.Done() {
		return 0
	}
	return len(s.CardIDs) - s.Cursor
}

// SessionProgress is a snapshot of a session returned to callers.
type SessionProgress struct {
	SessionID   string          `json:"session_id"`
	Total       int             `json:"total"`
	Reviewed    int             `json:"reviewed"`
	Skipped     int             `json:"skipped"`
	Remaining   int             `json:"remaining"`
	CurrentCard *int64          `json:"current_card_id,omitempty"`
	Counts      map[Outcome]int `json:"counts"`
	Done        bool            `json:"done"`
}

// Progress copies the session into a SessionProgress.
func (s *StudySession) Progress() SessionProgress {
	counts := make(map[Outcome]int, len(s.Counts))
	for k, v := range s.Counts {
		counts[k] = v
	}
	p := SessionProgress{
		SessionID: s.ID,
		Total:     len(s.CardIDs),
		Reviewed:  s.Cursor - s.Skipped,
		Skipped:   s.Skipped,
		Remaining: s.Remaining(),
		Counts:    counts,
		Done:      s.Done(),
	}
	if id, ok := s.Current(); ok {
		p.CurrentCard = &id
	}
	return p
}

type StudyStats struct {
	DueToday     int     `json:"due_today"`
	Studied      int     `json:"studied"`
	TotalReviews int     `json:"total_reviews"`
	Accuracy     float64 `json:"accuracy"`
}
