package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	stderrors "errors"
	"fmt"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"golang.org/x/time/rate"

	"github.com/vytor/flashstudy/internal/clock"
	"github.com/vytor/flashstudy/internal/errors"
	"github.com/vytor/flashstudy/internal/flashcard"
	"github.com/vytor/flashstudy/internal/generation"
	"github.com/vytor/flashstudy/internal/jobs"
	"github.com/vytor/flashstudy/internal/logger"
	"github.com/vytor/flashstudy/internal/metrics"
	"github.com/vytor/flashstudy/internal/models"
	"github.com/vytor/flashstudy/internal/repository"
	"github.com/vytor/flashstudy/internal/worker"
)

// GenerationService submits source text for AI generation and applies the
// user's decisions to the proposed cards.
type GenerationService interface {
	Submit(ctx context.Context, userID int64, sourceText string) (*models.Generation, error)
	ProcessGeneration(ctx context.Context, generationID int64, sourceText string) error
	GetGeneration(ctx context.Context, userID, id int64) (*models.GenerationWithCandidates, error)
	ListGenerations(ctx context.Context, userID int64, limit, offset int) ([]models.Generation, error)
	AcceptCandidate(ctx context.Context, userID, generationID, candidateID int64) (*models.Candidate, error)
	EditCandidate(ctx context.Context, userID, generationID, candidateID int64, front, back string) (*models.Candidate, error)
	RejectCandidate(ctx context.Context, userID, generationID, candidateID int64) (*models.Candidate, error)
	AcceptAll(ctx context.Context, userID, generationID int64) (*models.BulkResult, error)
	// FailPending marks generations that will never be processed as failed.
	// It must only run while no worker is processing generations.
	FailPending(ctx context.Context, reason string) (int64, error)
}

// GenerationConfig bounds source text and submission rate.
type GenerationConfig struct {
	MinSourceLength int
	MaxSourceLength int
	// RatePerMinute is the sustained per-user submission rate; zero disables
	// limiting.
	RatePerMinute float64
	Burst         int
}

type generationService struct {
	generations repository.GenerationRepository
	generator   generation.Generator
	queue       jobs.JobQueue
	policy      *flashcard.Policy
	clock       clock.Clock
	cfg         GenerationConfig

	mu       sync.Mutex
	limiters map[int64]*rate.Limiter
}

// NewGenerationService creates a new GenerationService
func NewGenerationService(
	generations repository.GenerationRepository,
	generator generation.Generator,
	queue jobs.JobQueue,
	policy *flashcard.Policy,
	clk clock.Clock,
	cfg GenerationConfig,
) GenerationService {
	if cfg.MinSourceLength <= 0 {
		cfg.MinSourceLength = 1000
	}
	if cfg.MaxSourceLength < cfg.MinSourceLength {
		cfg.MaxSourceLength = max(10000, cfg.MinSourceLength)
	}
	if cfg.Burst <= 0 {
		cfg.Burst = 1
	}
	return &generationService{
		generations: generations,
		generator:   generator,
		queue:       queue,
		policy:      policy,
		clock:       clk,
		cfg:         cfg,
		limiters:    make(map[int64]*rate.Limiter),
	}
}

func (s *generationService) allow(userID int64) bool {
	if s.cfg.RatePerMinute <= 0 {
		return true
	}
	s.mu.Lock()
	l, ok := s.limiters[userID]
	if !ok {
		l = rate.NewLimiter(rate.Limit(s.cfg.RatePerMinute/60), s.cfg.Burst)
		s.limiters[userID] = l
	}
	s.mu.Unlock()
	return l.AllowN(s.clock.Now(), 1)
}

func hashSource(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}

func (s *generationService) Submit(ctx context.Context, userID int64, sourceText string) (*models.Generation, error) {
	log := logger.FromContext(ctx).WithPrefix("generation")

	text := strings.TrimSpace(sourceText)
	n := utf8.RuneCountInString(text)
	if n < s.cfg.MinSourceLength || n > s.cfg.MaxSourceLength {
		return nil, errors.NewValidationError("source_text",
			fmt.Sprintf("must be between %d and %d characters, got %d", s.cfg.MinSourceLength, s.cfg.MaxSourceLength, n))
	}
	if !s.allow(userID) {
		log.Warn("generation rate limit hit for user %d", userID)
		return nil, errors.NewRateLimitedError("too many generation requests, try again later")
	}

	g := models.Generation{
		UserID:           userID,
		Model:            s.generator.Model(),
		SourceTextHash:   hashSource(text),
		SourceTextLength: n,
		Status:           models.GenerationPending,
		CreatedAt:        s.clock.Now(),
	}
	id, err := s.generations.Create(ctx, g)
	if err != nil {
		log.Error("failed to create generation: %v", err)
		return nil, errors.NewUpstreamError("store", err)
	}
	g.ID = id

	if err := s.queue.EnqueueGeneration(id, text); err != nil {
		log.Warn("failed to enqueue generation %d: %v", id, err)
		if ferr := s.generations.Fail(ctx, id, "not scheduled: "+err.Error(), 0, s.clock.Now()); ferr != nil {
			log.Error("failed to mark generation %d failed: %v", id, ferr)
		}
		metrics.GenerationsTotal.WithLabelValues(string(models.GenerationFailed)).Inc()
		if stderrors.Is(err, worker.ErrQueueFull) {
			return nil, errors.NewRateLimitedError("generation queue is full, try again later")
		}
		return nil, errors.NewUpstreamError("worker", err)
	}

	log.Info("generation %d queued for user %d (%d chars, model %s)", id, userID, n, g.Model)
	return &g, nil
}

// ProcessGeneration runs the generator for a pending generation and stores the
// result. It is called from a worker; generator failures are recorded on the
// generation itself.
func (s *generationService) ProcessGeneration(ctx context.Context, generationID int64, sourceText string) error {
	log := logger.FromContext(ctx).WithPrefix("generation").WithField("generation_id", generationID)

	g, err := s.generations.Get(ctx, generationID)
	if err != nil {
		return fmt.Errorf("loading generation %d: %w", generationID, err)
	}
	if g == nil {
		return fmt.Errorf("generation %d: %w", generationID, repository.ErrNotFound)
	}
	if g.Status != models.GenerationPending {
		log.Warn("skipping generation in status %s", g.Status)
		return nil
	}

	start := s.clock.Now()
	cards, genErr := s.generator.Generate(ctx, sourceText)
	elapsed := s.clock.Now().Sub(start)
	metrics.GenerationDuration.Observe(elapsed.Seconds())

	if genErr != nil {
		log.Error("generation failed after %v: %v", elapsed, genErr)
		metrics.GenerationsTotal.WithLabelValues(string(models.GenerationFailed)).Inc()
		// The job context may already be cancelled; the failure must still be stored.
		if err := s.generations.Fail(context.WithoutCancel(ctx), generationID, genErr.Error(), elapsed.Milliseconds(), s.clock.Now()); err != nil {
			return fmt.Errorf("marking generation %d failed: %w", generationID, err)
		}
		return errors.NewUpstreamError("generator", genErr)
	}

	if err := s.generations.Complete(ctx, generationID, cards, elapsed.Milliseconds(), s.clock.Now()); err != nil {
		return fmt.Errorf("completing generation %d: %w", generationID, err)
	}
	metrics.GenerationsTotal.WithLabelValues(string(models.GenerationCompleted)).Inc()
	log.Info("generation completed with %d candidates in %v", len(cards), elapsed)
	return nil
}

func (s *generationService) FailPending(ctx context.Context, reason string) (int64, error) {
	log := logger.FromContext(ctx).WithPrefix("generation")

	n, err := s.generations.FailPending(ctx, reason, s.clock.Now())
	if err != nil {
		log.Error("failed to fail pending generations: %v", err)
		return 0, errors.NewUpstreamError("store", err)
	}
	if n > 0 {
		metrics.GenerationsTotal.WithLabelValues(string(models.GenerationFailed)).Add(float64(n))
		log.Warn("marked %d pending generations failed: %s", n, reason)
	}
	return n, nil
}

func (s *generationService) ownedGeneration(ctx context.Context, userID, id int64) (*models.Generation, error) {
	g, err := s.generations.Get(ctx, id)
	if err != nil {
		logger.FromContext(ctx).Error("failed to load generation %d: %v", id, err)
		return nil, errors.NewUpstreamError("store", err)
	}
	if g == nil || g.UserID != userID {
		return nil, errors.NewNotFoundError("generation", id)
	}
	return g, nil
}

func (s *generationService) GetGeneration(ctx context.Context, userID, id int64) (*models.GenerationWithCandidates, error) {
	g, err := s.ownedGeneration(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	candidates, err := s.generations.Candidates(ctx, id)
	if err != nil {
		return nil, errors.NewUpstreamError("store", err)
	}
	if candidates == nil {
		candidates = []models.Candidate{}
	}
	return &models.GenerationWithCandidates{Generation: *g, Candidates: candidates}, nil
}

func (s *generationService) ListGenerations(ctx context.Context, userID int64, limit, offset int) ([]models.Generation, error) {
	if limit < 0 || offset < 0 {
		return nil, errors.NewValidationError("limit", "limit and offset must not be negative")
	}
	list, err := s.generations.ListByUser(ctx, userID, limit, offset)
	if err != nil {
		return nil, errors.NewUpstreamError("store", err)
	}
	if list == nil {
		list = []models.Generation{}
	}
	return list, nil
}

// proposedCandidate loads a candidate that can still be decided on.
func (s *generationService) proposedCandidate(ctx context.Context, userID, generationID, candidateID int64) (*models.Generation, *models.Candidate, error) {
	g, err := s.ownedGeneration(ctx, userID, generationID)
	if err != nil {
		return nil, nil, err
	}
	c, err := s.generations.GetCandidate(ctx, generationID, candidateID)
	if err != nil {
		return nil, nil, errors.NewUpstreamError("store", err)
	}
	if c == nil {
		return nil, nil, errors.NewNotFoundError("candidate", candidateID)
	}
	if c.Status.Terminal() {
		return nil, nil, errors.NewValidationError("status", fmt.Sprintf("candidate %d is already %s", candidateID, c.Status))
	}
	return g, c, nil
}

func (s *generationService) accept(ctx context.Context, g *models.Generation, c models.Candidate, status models.CandidateStatus) (*models.Candidate, error) {
	source := models.SourceAIFull
	if status == models.CandidateEdited {
		source = models.SourceAIEdited
	}
	now := s.clock.Now()
	genID := g.ID
	card := models.Flashcard{
		UserID:       g.UserID,
		Front:        c.Front,
		Back:         c.Back,
		Source:       source,
		GenerationID: &genID,
		CreatedAt:    now,
		UpdatedAt:    now,
		ReviewState:  s.policy.InitialState(),
	}

	cardID, err := s.generations.AcceptCandidate(ctx, c, status, card)
	if err != nil {
		switch {
		case stderrors.Is(err, repository.ErrConflict):
			return nil, errors.NewConflictError("candidate", c.ID)
		case stderrors.Is(err, repository.ErrNotFound):
			return nil, errors.NewNotFoundError("candidate", c.ID)
		default:
			logger.FromContext(ctx).Error("failed to accept candidate %d: %v", c.ID, err)
			return nil, errors.NewUpstreamError("store", err)
		}
	}
	metrics.CandidateDecisionsTotal.WithLabelValues(string(status)).Inc()

	c.Status = status
	c.FlashcardID = &cardID
	c.UpdatedAt = now
	return &c, nil
}

func (s *generationService) AcceptCandidate(ctx context.Context, userID, generationID, candidateID int64) (*models.Candidate, error) {
	g, c, err := s.proposedCandidate(ctx, userID, generationID, candidateID)
	if err != nil {
		return nil, err
	}
	return s.accept(ctx, g, *c, models.CandidateAccepted)
}

// EditCandidate accepts a candidate with replaced content. Content identical
// to the proposal after trimming counts as an unedited accept.
func (s *generationService) EditCandidate(ctx context.Context, userID, generationID, candidateID int64, front, back string) (*models.Candidate, error) {
	front, back, err := validateContent(front, back)
	if err != nil {
		return nil, err
	}
	g, c, err := s.proposedCandidate(ctx, userID, generationID, candidateID)
	if err != nil {
		return nil, err
	}

	status := models.CandidateEdited
	if front == c.Front && back == c.Back {
		status = models.CandidateAccepted
	}
	edited := *c
	edited.Front = front
	edited.Back = back
	return s.accept(ctx, g, edited, status)
}

func (s *generationService) RejectCandidate(ctx context.Context, userID, generationID, candidateID int64) (*models.Candidate, error) {
	_, c, err := s.proposedCandidate(ctx, userID, generationID, candidateID)
	if err != nil {
		return nil, err
	}
	now := s.clock.Now()
	if err := s.generations.RejectCandidate(ctx, generationID, candidateID, now); err != nil {
		if stderrors.Is(err, repository.ErrConflict) {
			return nil, errors.NewConflictError("candidate", candidateID)
		}
		return nil, errors.NewUpstreamError("store", err)
	}
	metrics.CandidateDecisionsTotal.WithLabelValues(string(models.CandidateRejected)).Inc()

	c.Status = models.CandidateRejected
	c.UpdatedAt = now
	return c, nil
}

// AcceptAll accepts every candidate still proposed. Each candidate is
// accepted independently; a failure is reported on its item only.
func (s *generationService) AcceptAll(ctx context.Context, userID, generationID int64) (*models.BulkResult, error) {
	log := logger.FromContext(ctx).WithPrefix("generation")

	g, err := s.ownedGeneration(ctx, userID, generationID)
	if err != nil {
		return nil, err
	}
	if g.Status != models.GenerationCompleted {
		return nil, errors.NewValidationError("status", fmt.Sprintf("generation %d is %s", generationID, g.Status))
	}
	candidates, err := s.generations.Candidates(ctx, generationID)
	if err != nil {
		return nil, errors.NewUpstreamError("store", err)
	}

	out := &models.BulkResult{Items: []models.ItemResult{}}
	for i, c := range candidates {
		if c.Status != models.CandidateProposed {
			continue
		}
		cid := c.ID
		item := models.ItemResult{Index: i, CandidateID: &cid}
		accepted, err := s.accept(ctx, g, c, models.CandidateAccepted)
		if err != nil {
			item.Error = itemError(err)
		} else {
			item.FlashcardID = accepted.FlashcardID
		}
		out.Add(item)
	}

	log.Info("accept-all on generation %d: %d accepted, %d failed", generationID, out.Succeeded, out.Failed)
	return out, nil
}

var _ worker.GenerationProcessor = (*generationService)(nil)

// processTimeout bounds a single ProcessGeneration call when the worker pool
// runs without a job timeout.
const processTimeout = 2 * time.Minute

// Processor adapts svc for the worker pool, applying a default deadline.
func Processor(svc GenerationService) worker.GenerationProcessor {
	return processorFunc(func(ctx context.Context, id int64, text string) error {
		if _, ok := ctx.Deadline(); !ok {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, processTimeout)
			defer cancel()
		}
		return svc.ProcessGeneration(ctx, id, text)
	})
}

type processorFunc func(ctx context.Context, id int64, text string) error

func (f processorFunc) ProcessGeneration(ctx context.Context, id int64, text string) error {
	return f(ctx, id, text)
}
