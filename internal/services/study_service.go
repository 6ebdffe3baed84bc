package services

import (
	"context"
	stderrors "errors"
	"time"

	"github.com/vytor/flashstudy/internal/clock"
	"github.com/vytor/flashstudy/internal/errors"
	"github.com/vytor/flashstudy/internal/flashcard"
	"github.com/vytor/flashstudy/internal/logger"
	"github.com/vytor/flashstudy/internal/metrics"
	"github.com/vytor/flashstudy/internal/models"
	"github.com/vytor/flashstudy/internal/repository"
)

// StudyService runs study sessions, records reviews and computes statistics.
type StudyService interface {
	StartSession(ctx context.Context, userID int64, opts SessionOptions) (*SessionView, error)
	CurrentSession(ctx context.Context, userID int64) (*SessionView, error)
	EndSession(ctx context.Context, userID int64) (*models.SessionProgress, error)
	RecordReview(ctx context.Context, userID, cardID int64, outcome models.Outcome) (*ReviewResult, error)
	Stats(ctx context.Context, userID int64) (*models.StudyStats, error)
	CardHistory(ctx context.Context, userID, cardID int64, limit int) ([]models.ReviewHistory, error)
}

// SessionOptions tunes StartSession. Zero values fall back to the
// service defaults.
type SessionOptions struct {
	Limit    int
	NewFirst *bool
}

// OutcomePreview is what a grade would do to the current card.
type OutcomePreview struct {
	IntervalDays float64   `json:"interval_days"`
	DueAt        time.Time `json:"due_at"`
}

// SessionView is a session snapshot together with the card under the cursor.
type SessionView struct {
	Progress models.SessionProgress            `json:"progress"`
	Card     *models.Flashcard                 `json:"card,omitempty"`
	Preview  map[models.Outcome]OutcomePreview `json:"preview,omitempty"`
}

// ReviewResult is the outcome of RecordReview. Session is nil when the user
// has no live session.
type ReviewResult struct {
	CardID  int64                   `json:"card_id"`
	Outcome models.Outcome          `json:"outcome"`
	State   models.ReviewState      `json:"state"`
	Session *models.SessionProgress `json:"session,omitempty"`
}

// StudyConfig holds session defaults.
type StudyConfig struct {
	SessionSize    int
	MaxSessionSize int
	NewFirst       bool
	Location       *time.Location
}

type studyService struct {
	cards    repository.FlashcardRepository
	reviews  repository.ReviewRepository
	policy   *flashcard.Policy
	sessions *SessionRegistry
	clock    clock.Clock
	cfg      StudyConfig
}

// NewStudyService creates a new StudyService
func NewStudyService(
	cards repository.FlashcardRepository,
	reviews repository.ReviewRepository,
	policy *flashcard.Policy,
	sessions *SessionRegistry,
	clk clock.Clock,
	cfg StudyConfig,
) StudyService {
	if cfg.SessionSize <= 0 {
		cfg.SessionSize = 20
	}
	if cfg.MaxSessionSize < cfg.SessionSize {
		cfg.MaxSessionSize = cfg.SessionSize
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	return &studyService{
		cards:    cards,
		reviews:  reviews,
		policy:   policy,
		sessions: sessions,
		clock:    clk,
		cfg:      cfg,
	}
}

func (s *studyService) now() time.Time {
	return s.clock.Now().In(s.cfg.Location)
}

func (s *studyService) StartSession(ctx context.Context, userID int64, opts SessionOptions) (*SessionView, error) {
	log := logger.FromContext(ctx).WithPrefix("study")

	limit := opts.Limit
	switch {
	case limit < 0:
		return nil, errors.NewValidationError("limit", "must not be negative")
	case limit == 0:
		limit = s.cfg.SessionSize
	case limit > s.cfg.MaxSessionSize:
		return nil, errors.NewValidationError("limit", "exceeds the maximum session size")
	}
	newFirst := s.cfg.NewFirst
	if opts.NewFirst != nil {
		newFirst = *opts.NewFirst
	}

	cards, err := s.cards.ListByUser(ctx, userID)
	if err != nil {
		log.Error("failed to load cards for user %d: %v", userID, err)
		return nil, errors.NewUpstreamError("store", err)
	}

	now := s.now()
	ids := flashcard.SelectDue(cards, now, flashcard.SelectOptions{Limit: limit, NewFirst: newFirst})
	progress := s.sessions.Start(userID, ids, now)
	metrics.SessionsStartedTotal.Inc()
	log.Info("session %s started for user %d with %d of %d cards", progress.SessionID, userID, len(ids), len(cards))

	byID := make(map[int64]*models.Flashcard, len(cards))
	for i := range cards {
		byID[cards[i].ID] = &cards[i]
	}
	view := &SessionView{Progress: progress}
	if progress.CurrentCard != nil {
		s.attachCard(view, byID[*progress.CurrentCard], now)
	}
	return view, nil
}

func (s *studyService) CurrentSession(ctx context.Context, userID int64) (*SessionView, error) {
	log := logger.FromContext(ctx).WithPrefix("study")
	now := s.now()

	progress, ok := s.sessions.Get(userID, now)
	if !ok {
		return nil, errors.NewNotFoundError("session", userID)
	}

	for progress.CurrentCard != nil {
		card, err := s.cards.Get(ctx, *progress.CurrentCard)
		if err != nil {
			log.Error("failed to load card %d: %v", *progress.CurrentCard, err)
			return nil, errors.NewUpstreamError("store", err)
		}
		if card != nil && card.UserID == userID {
			view := &SessionView{Progress: progress}
			s.attachCard(view, card, now)
			return view, nil
		}
		log.Debug("skipping card %d removed since session start", *progress.CurrentCard)
		if progress, ok = s.sessions.Skip(userID, now); !ok {
			break
		}
	}
	return &SessionView{Progress: progress}, nil
}

func (s *studyService) attachCard(view *SessionView, card *models.Flashcard, now time.Time) {
	if card == nil {
		return
	}
	view.Card = card
	view.Preview = make(map[models.Outcome]OutcomePreview, len(models.Outcomes))
	for o, next := range s.policy.Preview(card.ReviewState, now) {
		view.Preview[o] = OutcomePreview{IntervalDays: next.IntervalDays(), DueAt: *next.DueAt}
	}
}

func (s *studyService) EndSession(ctx context.Context, userID int64) (*models.SessionProgress, error) {
	progress, ok := s.sessions.End(userID)
	if !ok {
		return nil, errors.NewNotFoundError("session", userID)
	}
	logger.FromContext(ctx).WithPrefix("study").Info("session %s ended by user %d after %d reviews", progress.SessionID, userID, progress.Reviewed)
	return &progress, nil
}

func (s *studyService) RecordReview(ctx context.Context, userID, cardID int64, outcome models.Outcome) (*ReviewResult, error) {
	log := logger.FromContext(ctx).WithPrefix("study").WithFields(map[string]any{
		"card_id": cardID,
		"outcome": outcome.String(),
	})

	if !outcome.IsValid() {
		return nil, errors.NewValidationError("outcome", "must be one of again, hard, good, easy")
	}
	if cardID <= 0 {
		return nil, errors.NewValidationError("card_id", "must be a positive integer")
	}

	card, err := s.cards.Get(ctx, cardID)
	if err != nil {
		log.Error("failed to load card: %v", err)
		return nil, errors.NewUpstreamError("store", err)
	}
	if card == nil || card.UserID != userID {
		return nil, errors.NewNotFoundError("flashcard", cardID)
	}

	now := s.now()
	next := s.policy.NextState(card.ReviewState, outcome, now)
	entry := models.ReviewHistory{
		FlashcardID: cardID,
		UserID:      userID,
		Outcome:     outcome,
		Interval:    next.Interval,
		ReviewedAt:  *next.LastReviewedAt,
	}

	if err := s.cards.PutReviewState(ctx, cardID, card.Version, next, entry); err != nil {
		switch {
		case stderrors.Is(err, repository.ErrNotFound):
			return nil, errors.NewNotFoundError("flashcard", cardID)
		case stderrors.Is(err, repository.ErrConflict):
			metrics.ReviewConflictsTotal.Inc()
			log.Warn("review lost a concurrent update at version %d", card.Version)
			return nil, errors.NewConflictError("flashcard", cardID)
		default:
			log.Error("failed to store review state: %v", err)
			return nil, errors.NewUpstreamError("store", err)
		}
	}
	next.Version = card.Version + 1
	metrics.ReviewsTotal.WithLabelValues(outcome.String()).Inc()
	log.Debug("reviewed: interval=%.1fd ease=%.2f streak=%d", next.IntervalDays(), next.EaseFactor, next.ConsecutiveCorrect)

	result := &ReviewResult{CardID: cardID, Outcome: outcome, State: next}
	if progress, ok := s.sessions.Advance(userID, cardID, outcome, now); ok {
		result.Session = &progress
		if progress.Done {
			log.Info("session %s finished: %d cards", progress.SessionID, progress.Total)
		}
	}
	return result, nil
}

func (s *studyService) Stats(ctx context.Context, userID int64) (*models.StudyStats, error) {
	log := logger.FromContext(ctx).WithPrefix("study")

	cards, err := s.cards.ListByUser(ctx, userID)
	if err != nil {
		log.Error("failed to load cards for stats: %v", err)
		return nil, errors.NewUpstreamError("store", err)
	}
	counts, err := s.reviews.OutcomeCounts(ctx, userID)
	if err != nil {
		log.Error("failed to load outcome counts: %v", err)
		return nil, errors.NewUpstreamError("store", err)
	}

	stats := flashcard.ComputeStats(cards, counts, s.now())
	return &stats, nil
}

// CardHistory returns the recorded outcomes of one card, newest first.
func (s *studyService) CardHistory(ctx context.Context, userID, cardID int64, limit int) ([]models.ReviewHistory, error) {
	log := logger.FromContext(ctx).WithPrefix("study")

	card, err := s.cards.Get(ctx, cardID)
	if err != nil {
		log.Error("failed to load card %d: %v", cardID, err)
		return nil, errors.NewUpstreamError("store", err)
	}
	if card == nil || card.UserID != userID {
		return nil, errors.NewNotFoundError("flashcard", cardID)
	}

	history, err := s.reviews.ListForCard(ctx, cardID, limit)
	if err != nil {
		log.Error("failed to load review history for card %d: %v", cardID, err)
		return nil, errors.NewUpstreamError("store", err)
	}
	return history, nil
}
