package models

import "time"

// Source records how a flashcard came to exist.
type Source string

const (
	SourceAIFull   Source = "ai-full"
	SourceAIEdited Source = "ai-edited"
	SourceManual   Source = "manual"
)

// IsValid reports whether s is one of the known sources.
func (s Source) IsValid() bool {
	switch s {
	case SourceAIFull, SourceAIEdited, SourceManual:
		return true
	}
	return false
}

type Flashcard struct {
	ID           int64     `json:"id"`
	UserID       int64     `json:"user_id"`
	Front        string    `json:"front"`
	Back         string    `json:"back"`
	Source       Source    `json:"source"`
	GenerationID *int64    `json:"generation_id,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
	ReviewState
}

// ReviewState is the scheduling metadata attached to one flashcard.
// A nil LastReviewedAt means the card has never been studied; DueAt is nil
// in that case as well.
type ReviewState struct {
	LastReviewedAt     *time.Time    `json:"last_reviewed_at"`
	DueAt              *time.Time    `json:"due_at"`
	Interval           time.Duration `json:"interval"`
	EaseFactor         float64       `json:"ease_factor"`
	ConsecutiveCorrect int           `json:"consecutive_correct"`
	Version            int64         `json:"version"`
}

// NeverReviewed reports whether the card has no review on record.
func (s ReviewState) NeverReviewed() bool {
	return s.LastReviewedAt == nil
}

// IntervalDays is the interval expressed in (possibly fractional) days.
func (s ReviewState) IntervalDays() float64 {
	return s.Interval.Hours() / 24
}

type FlashcardFilter struct {
	UserID  int64
	Source  Source
	OrderBy string
	Limit   int
	Offset  int
}

type ReviewHistory struct {
	ID          int64         `json:"id"`
	FlashcardID int64         `json:"flashcard_id"`
	UserID      int64         `json:"user_id"`
	Outcome     Outcome       `json:"outcome"`
	Interval    time.Duration `json:"interval"`
	ReviewedAt  time.Time     `json:"reviewed_at"`
}

// Content limits, in characters.
const (
	MaxFrontLength = 200
	MaxBackLength  = 500
)
