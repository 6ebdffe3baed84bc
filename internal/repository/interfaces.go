package repository

import (
	"context"
	"errors"
	"time"

	"github.com/vytor/flashstudy/internal/models"
)

var (
	// ErrNotFound is returned by writes that target a missing row.
	ErrNotFound = errors.New("record not found")
	// ErrConflict is returned when an optimistic version or status check fails.
	ErrConflict = errors.New("concurrent modification")
)

// UserRepository handles user data access
type UserRepository interface {
	Get(ctx context.Context, id int64) (*models.User, error)
	Upsert(ctx context.Context, username string) (*models.User, error)
}

// FlashcardRepository handles flashcard and review-state data access.
// Get returns nil, nil when the card does not exist.
type FlashcardRepository interface {
	Get(ctx context.Context, id int64) (*models.Flashcard, error)
	List(ctx context.Context, filter models.FlashcardFilter) ([]models.Flashcard, error)
	Count(ctx context.Context, filter models.FlashcardFilter) (int, error)
	ListByUser(ctx context.Context, userID int64) ([]models.Flashcard, error)
	Insert(ctx context.Context, card models.Flashcard) (int64, error)
	InsertBatch(ctx context.Context, cards []models.Flashcard) ([]int64, error)
	UpdateContent(ctx context.Context, card models.Flashcard) error
	Delete(ctx context.Context, id, userID int64) error
	// PutReviewState stores state and appends entry in one transaction when
	// the card still carries expectedVersion. The stored version is bumped.
	PutReviewState(ctx context.Context, id, expectedVersion int64, state models.ReviewState, entry models.ReviewHistory) error
}

// ReviewRepository reads recorded review outcomes
type ReviewRepository interface {
	OutcomeCounts(ctx context.Context, userID int64) (map[models.Outcome]int, error)
	ListForCard(ctx context.Context, flashcardID int64, limit int) ([]models.ReviewHistory, error)
}

// GenerationRepository handles generations and their candidates
type GenerationRepository interface {
	Create(ctx context.Context, g models.Generation) (int64, error)
	Get(ctx context.Context, id int64) (*models.Generation, error)
	ListByUser(ctx context.Context, userID int64, limit, offset int) ([]models.Generation, error)
	Complete(ctx context.Context, id int64, cards []models.ProposedCard, durationMS int64, at time.Time) error
	Fail(ctx context.Context, id int64, message string, durationMS int64, at time.Time) error
	// FailPending marks every pending generation failed and returns how many
	// were changed.
	FailPending(ctx context.Context, message string, at time.Time) (int64, error)
	Candidates(ctx context.Context, generationID int64) ([]models.Candidate, error)
	GetCandidate(ctx context.Context, generationID, candidateID int64) (*models.Candidate, error)
	// AcceptCandidate inserts card and moves the candidate to status, which
	// must be accepted or edited. ErrConflict if it is no longer proposed.
	AcceptCandidate(ctx context.Context, candidate models.Candidate, status models.CandidateStatus, card models.Flashcard) (int64, error)
	RejectCandidate(ctx context.Context, generationID, candidateID int64, at time.Time) error
}
