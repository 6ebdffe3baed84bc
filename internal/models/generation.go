package models

import "time"

type GenerationStatus string

const (
	GenerationPending   GenerationStatus = "pending"
	GenerationCompleted GenerationStatus = "completed"
	GenerationFailed    GenerationStatus = "failed"
)

// Generation is one request to turn source text into candidate flashcards.
type Generation struct {
	ID                    int64            `json:"id"`
	UserID                int64            `json:"user_id"`
	Model                 string           `json:"model"`
	SourceTextHash        string           `json:"source_text_hash"`
	SourceTextLength      int              `json:"source_text_length"`
	Status                GenerationStatus `json:"status"`
	ErrorMessage          string           `json:"error_message,omitempty"`
	GeneratedCount        int              `json:"generated_count"`
	AcceptedUneditedCount int              `json:"accepted_unedited_count"`
	AcceptedEditedCount   int              `json:"accepted_edited_count"`
	DurationMS            int64            `json:"duration_ms"`
	CreatedAt             time.Time        `json:"created_at"`
	CompletedAt           *time.Time       `json:"completed_at,omitempty"`
}

type CandidateStatus string

const (
	CandidateProposed CandidateStatus = "proposed"
	CandidateAccepted CandidateStatus = "accepted"
	CandidateEdited   CandidateStatus = "edited"
	CandidateRejected CandidateStatus = "rejected"
)

// Terminal reports whether no further transition is allowed.
func (s CandidateStatus) Terminal() bool {
	return s != CandidateProposed
}

// Candidate is an AI-proposed card awaiting the user's decision.
// Candidates are stored apart from flashcards; only an accept creates a card.
type Candidate struct {
	ID           int64           `json:"id"`
	GenerationID int64           `json:"generation_id"`
	Position     int             `json:"position"`
	Front        string          `json:"front"`
	Back         string          `json:"back"`
	Status       CandidateStatus `json:"status"`
	FlashcardID  *int64          `json:"flashcard_id,omitempty"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

type GenerationWithCandidates struct {
	Generation
	Candidates []Candidate `json:"candidates"`
}

// ProposedCard is raw generator output before it is stored.
type ProposedCard struct {
	Front string `json:"front"`
	Back  string `json:"back"`
}

// ItemError describes why one element of a bulk request failed.
type ItemError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ItemResult is the per-element outcome of a bulk operation.
type ItemResult struct {
	Index       int        `json:"index"`
	CandidateID *int64     `json:"candidate_id,omitempty"`
	FlashcardID *int64     `json:"flashcard_id,omitempty"`
	Error       *ItemError `json:"error,omitempty"`
}

// BulkResult groups per-item results with success/failure totals.
type BulkResult struct {
	Succeeded int          `json:"succeeded"`
	Failed    int          `json:"failed"`
	Items     []ItemResult `json:"items"`
}

// Add appends r and updates the totals.
func (b *BulkResult) Add(r ItemResult) {
	if r.Error != nil {
		b.Failed++
	} else {
		b.Succeeded++
	}
	b.Items = append(b.Items, r)
}
