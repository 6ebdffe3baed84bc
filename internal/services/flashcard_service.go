package services

import (
	"context"
	stderrors "errors"
	"fmt"
	"time"

	"github.com/vytor/flashstudy/internal/clock"
	"github.com/vytor/flashstudy/internal/errors"
	"github.com/vytor/flashstudy/internal/flashcard"
	"github.com/vytor/flashstudy/internal/logger"
	"github.com/vytor/flashstudy/internal/models"
	"github.com/vytor/flashstudy/internal/repository"
)

// MaxBulkSize caps the number of cards in one bulk save.
const MaxBulkSize = 100

// FlashcardInput is user-supplied card content.
type FlashcardInput struct {
	Front        string        `json:"front"`
	Back         string        `json:"back"`
	Source       models.Source `json:"source,omitempty"`
	GenerationID *int64        `json:"generation_id,omitempty"`
}

// FlashcardService handles flashcard-related business logic
type FlashcardService interface {
	ListFlashcards(ctx context.Context, filter models.FlashcardFilter) ([]models.Flashcard, int, error)
	GetFlashcard(ctx context.Context, userID, id int64) (*models.Flashcard, error)
	CreateFlashcards(ctx context.Context, userID int64, inputs []FlashcardInput) (*models.BulkResult, error)
	UpdateFlashcard(ctx context.Context, userID, id int64, front, back string) (*models.Flashcard, error)
	DeleteFlashcard(ctx context.Context, userID, id int64) error
}

type flashcardService struct {
	cards       repository.FlashcardRepository
	generations repository.GenerationRepository
	policy      *flashcard.Policy
	clock       clock.Clock
}

// NewFlashcardService creates a new FlashcardService
func NewFlashcardService(
	cards repository.FlashcardRepository,
	generations repository.GenerationRepository,
	policy *flashcard.Policy,
	clk clock.Clock,
) FlashcardService {
	return &flashcardService{cards: cards, generations: generations, policy: policy, clock: clk}
}

func (s *flashcardService) ListFlashcards(ctx context.Context, filter models.FlashcardFilter) ([]models.Flashcard, int, error) {
	log := logger.FromContext(ctx)
	log.Debug("listing flashcards: user_id=%d, source=%s", filter.UserID, filter.Source)

	if filter.Source != "" && !filter.Source.IsValid() {
		return nil, 0, errors.NewValidationError("source", "must be one of ai-full, ai-edited, manual")
	}

	cards, err := s.cards.List(ctx, filter)
	if err != nil {
		log.Error("failed to list flashcards: %v", err)
		return nil, 0, errors.NewUpstreamError("store", err)
	}
	total, err := s.cards.Count(ctx, filter)
	if err != nil {
		log.Error("failed to count flashcards: %v", err)
		return nil, 0, errors.NewUpstreamError("store", err)
	}
	return cards, total, nil
}

func (s *flashcardService) GetFlashcard(ctx context.Context, userID, id int64) (*models.Flashcard, error) {
	card, err := s.cards.Get(ctx, id)
	if err != nil {
		logger.FromContext(ctx).Error("failed to get flashcard %d: %v", id, err)
		return nil, errors.NewUpstreamError("store", err)
	}
	if card == nil || card.UserID != userID {
		return nil, errors.NewNotFoundError("flashcard", id)
	}
	return card, nil
}

// CreateFlashcards validates every input and stores the valid ones in one
// batch. Invalid inputs are reported per item and do not block the others.
func (s *flashcardService) CreateFlashcards(ctx context.Context, userID int64, inputs []FlashcardInput) (*models.BulkResult, error) {
	log := logger.FromContext(ctx)
	log.Debug("creating %d flashcards for user %d", len(inputs), userID)

	if len(inputs) == 0 {
		return nil, errors.NewValidationError("flashcards", "at least one card is required")
	}
	if len(inputs) > MaxBulkSize {
		return nil, errors.NewValidationError("flashcards", fmt.Sprintf("at most %d cards per request", MaxBulkSize))
	}

	now := s.clock.Now()
	results := make([]models.ItemResult, len(inputs))
	var (
		valid   []models.Flashcard
		indexes []int
	)
	for i, in := range inputs {
		results[i].Index = i
		card, err := s.buildCard(ctx, userID, in, now)
		if err != nil {
			results[i].Error = itemError(err)
			continue
		}
		valid = append(valid, card)
		indexes = append(indexes, i)
	}

	if len(valid) > 0 {
		ids, err := s.cards.InsertBatch(ctx, valid)
		if err != nil {
			log.Error("failed to insert %d flashcards: %v", len(valid), err)
			upstream := itemError(errors.NewUpstreamError("store", err))
			for _, i := range indexes {
				results[i].Error = upstream
			}
		} else {
			for n, i := range indexes {
				id := ids[n]
				results[i].FlashcardID = &id
			}
		}
	}

	out := &models.BulkResult{Items: make([]models.ItemResult, 0, len(results))}
	for _, r := range results {
		out.Add(r)
	}
	log.Info("bulk save for user %d: %d stored, %d failed", userID, out.Succeeded, out.Failed)
	return out, nil
}

func (s *flashcardService) buildCard(ctx context.Context, userID int64, in FlashcardInput, now time.Time) (models.Flashcard, error) {
	front, back, err := validateContent(in.Front, in.Back)
	if err != nil {
		return models.Flashcard{}, err
	}
	source := in.Source
	if source == "" {
		source = models.SourceManual
	}
	if !source.IsValid() {
		return models.Flashcard{}, errors.NewValidationError("source", "must be one of ai-full, ai-edited, manual")
	}
	if source != models.SourceManual && in.GenerationID == nil {
		return models.Flashcard{}, errors.NewValidationError("generation_id", "required for AI cards")
	}
	if in.GenerationID != nil {
		g, err := s.generations.Get(ctx, *in.GenerationID)
		if err != nil {
			return models.Flashcard{}, errors.NewUpstreamError("store", err)
		}
		if g == nil || g.UserID != userID {
			return models.Flashcard{}, errors.NewNotFoundError("generation", *in.GenerationID)
		}
	}

	return models.Flashcard{
		UserID:       userID,
		Front:        front,
		Back:         back,
		Source:       source,
		GenerationID: in.GenerationID,
		CreatedAt:    now,
		UpdatedAt:    now,
		ReviewState:  s.policy.InitialState(),
	}, nil
}

// UpdateFlashcard replaces the content of a card. Review state is kept;
// AI cards edited by hand become ai-edited.
func (s *flashcardService) UpdateFlashcard(ctx context.Context, userID, id int64, front, back string) (*models.Flashcard, error) {
	log := logger.FromContext(ctx)

	card, err := s.GetFlashcard(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	front, back, err = validateContent(front, back)
	if err != nil {
		return nil, err
	}

	card.Front = front
	card.Back = back
	card.UpdatedAt = s.clock.Now()
	if card.Source == models.SourceAIFull {
		card.Source = models.SourceAIEdited
	}

	if err := s.cards.UpdateContent(ctx, *card); err != nil {
		if stderrors.Is(err, repository.ErrNotFound) {
			return nil, errors.NewNotFoundError("flashcard", id)
		}
		log.Error("failed to update flashcard %d: %v", id, err)
		return nil, errors.NewUpstreamError("store", err)
	}
	return card, nil
}

func (s *flashcardService) DeleteFlashcard(ctx context.Context, userID, id int64) error {
	log := logger.FromContext(ctx)
	log.Debug("deleting flashcard: id=%d, user_id=%d", id, userID)

	if err := s.cards.Delete(ctx, id, userID); err != nil {
		if stderrors.Is(err, repository.ErrNotFound) {
			return errors.NewNotFoundError("flashcard", id)
		}
		log.Error("failed to delete flashcard %d: %v", id, err)
		return errors.NewUpstreamError("store", err)
	}
	return nil
}
