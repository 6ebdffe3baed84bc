package services_test

import (
	"context"
	"database/sql"
	stderrors "errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"github.com/vytor/flashstudy/internal/clock"
	"github.com/vytor/flashstudy/internal/errors"
	"github.com/vytor/flashstudy/internal/jobs"
	"github.com/vytor/flashstudy/internal/models"
	"github.com/vytor/flashstudy/internal/repository"
	"github.com/vytor/flashstudy/internal/repository/sqlite"
	"github.com/vytor/flashstudy/internal/services"
	"github.com/vytor/flashstudy/internal/testutil"
	"github.com/vytor/flashstudy/internal/testutil/mocks"
	"github.com/vytor/flashstudy/internal/worker"
)

var sourceText = strings.Repeat("Photosynthesis converts light into chemical energy. ", 25)

type GenerationServiceSuite struct {
	suite.Suite
	db          *sql.DB
	generations repository.GenerationRepository
	cards       repository.FlashcardRepository
	generator   *mocks.MockGenerator
	queue       *mocks.MockJobQueue
	svc         services.GenerationService
	userID      int64
}

func (s *GenerationServiceSuite) SetupTest() {
	s.db = testutil.NewTestDB(s.T())
	s.generations = sqlite.NewGenerationRepository(s.db)
	s.cards = sqlite.NewFlashcardRepository(s.db)
	s.generator = new(mocks.MockGenerator)
	s.queue = new(mocks.MockJobQueue)
	s.generator.On("Model").Return("test-model").Maybe()
	s.svc = services.NewGenerationService(s.generations, s.generator, s.queue,
		newPolicy(s.T()), clock.NewFixed(start),
		services.GenerationConfig{MinSourceLength: 1000, MaxSourceLength: 10000, RatePerMinute: 1, Burst: 2})
	s.userID = testutil.CreateUser(s.T(), s.db, "gina")
}

func (s *GenerationServiceSuite) TearDownTest() {
	testutil.MustClose(s.T(), s.db)
}

// completed submits sourceText and runs the job with the given proposals.
func (s *GenerationServiceSuite) completed(proposals ...models.ProposedCard) *models.GenerationWithCandidates {
	ctx := context.Background()
	text := strings.TrimSpace(sourceText)
	s.queue.On("EnqueueGeneration", mock.AnythingOfType("int64"), text).Return(nil).Once()
	s.generator.On("Generate", mock.Anything, text).Return(proposals, nil).Once()

	g, err := s.svc.Submit(ctx, s.userID, sourceText)
	s.Require().NoError(err)
	s.Equal(models.GenerationPending, g.Status)
	s.Len(g.SourceTextHash, 64)

	s.Require().NoError(s.svc.ProcessGeneration(ctx, g.ID, text))

	out, err := s.svc.GetGeneration(ctx, s.userID, g.ID)
	s.Require().NoError(err)
	s.Equal(models.GenerationCompleted, out.Status)
	return out
}

func (s *GenerationServiceSuite) TestSubmit_RejectsSourceLength() {
	_, err := s.svc.Submit(context.Background(), s.userID, "too short")
	s.Equal(errors.ErrCodeValidation, errors.Code(err))

	_, err = s.svc.Submit(context.Background(), s.userID, strings.Repeat("x", 10001))
	s.Equal(errors.ErrCodeValidation, errors.Code(err))
	s.queue.AssertNotCalled(s.T(), "EnqueueGeneration", mock.Anything, mock.Anything)
}

func (s *GenerationServiceSuite) TestSubmit_RateLimited() {
	s.queue.On("EnqueueGeneration", mock.Anything, mock.Anything).Return(nil)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		_, err := s.svc.Submit(ctx, s.userID, sourceText)
		s.Require().NoError(err)
	}
	_, err := s.svc.Submit(ctx, s.userID, sourceText)
	s.Equal(errors.ErrCodeRateLimited, errors.Code(err))

	other := testutil.CreateUser(s.T(), s.db, "hank")
	_, err = s.svc.Submit(ctx, other, sourceText)
	s.NoError(err, "limits are per user")
}

func (s *GenerationServiceSuite) TestSubmit_QueueFullFailsGeneration() {
	s.queue.On("EnqueueGeneration", mock.Anything, mock.Anything).Return(worker.ErrQueueFull)

	_, err := s.svc.Submit(context.Background(), s.userID, sourceText)
	s.Equal(errors.ErrCodeRateLimited, errors.Code(err))

	list, err := s.svc.ListGenerations(context.Background(), s.userID, 10, 0)
	s.Require().NoError(err)
	s.Require().Len(list, 1)
	s.Equal(models.GenerationFailed, list[0].Status)
}

func (s *GenerationServiceSuite) TestFailPending_DroppedAtShutdown() {
	ctx := context.Background()
	pool := worker.NewPool(1, 4, 0)
	queue := jobs.NewWorkerQueue(pool)
	svc := services.NewGenerationService(s.generations, s.generator, queue,
		newPolicy(s.T()), clock.NewFixed(start), services.GenerationConfig{})
	queue.SetGenerationProcessor(services.Processor(svc))

	// the pool never starts, so the job is still queued when it stops
	g, err := svc.Submit(ctx, s.userID, sourceText)
	s.Require().NoError(err)
	pool.Stop()

	n, err := svc.FailPending(ctx, "interrupted by server shutdown")
	s.Require().NoError(err)
	s.Equal(int64(1), n)

	restarted := services.NewGenerationService(s.generations, s.generator, s.queue,
		newPolicy(s.T()), clock.NewFixed(start.Add(24*time.Hour)), services.GenerationConfig{})
	got, err := restarted.GetGeneration(ctx, s.userID, g.ID)
	s.Require().NoError(err)
	s.Equal(models.GenerationFailed, got.Status)
	s.Equal("interrupted by server shutdown", got.ErrorMessage)
	s.Empty(got.Candidates)
	s.generator.AssertNotCalled(s.T(), "Generate", mock.Anything, mock.Anything)

	_, err = restarted.AcceptAll(ctx, s.userID, g.ID)
	s.Equal(errors.ErrCodeValidation, errors.Code(err))
}

func (s *GenerationServiceSuite) TestSubmit_MaxDefaultsAboveMin() {
	s.queue.On("EnqueueGeneration", mock.AnythingOfType("int64"), mock.Anything).Return(nil).Once()
	svc := services.NewGenerationService(s.generations, s.generator, s.queue,
		newPolicy(s.T()), clock.NewFixed(start), services.GenerationConfig{MinSourceLength: 12000})

	g, err := svc.Submit(context.Background(), s.userID, strings.Repeat("y", 12500))
	s.Require().NoError(err)
	s.Equal(12500, g.SourceTextLength)

	_, err = svc.Submit(context.Background(), s.userID, strings.Repeat("y", 11999))
	s.Equal(errors.ErrCodeValidation, errors.Code(err))
}

func (s *GenerationServiceSuite) TestProcessGeneration_GeneratorFailure() {
	ctx := context.Background()
	text := strings.TrimSpace(sourceText)
	s.queue.On("EnqueueGeneration", mock.Anything, text).Return(nil)
	s.generator.On("Generate", mock.Anything, text).Return(nil, stderrors.New("upstream 503"))

	g, err := s.svc.Submit(ctx, s.userID, sourceText)
	s.Require().NoError(err)

	err = s.svc.ProcessGeneration(ctx, g.ID, text)
	s.Equal(errors.ErrCodeUpstream, errors.Code(err))

	out, err := s.svc.GetGeneration(ctx, s.userID, g.ID)
	s.Require().NoError(err)
	s.Equal(models.GenerationFailed, out.Status)
	s.Equal("upstream 503", out.ErrorMessage)
	s.Empty(out.Candidates)
	s.NotNil(out.Candidates)

	s.Require().NoError(s.svc.ProcessGeneration(ctx, g.ID, text), "finished generations are skipped")
}

func (s *GenerationServiceSuite) TestReviewWorkflow() {
	ctx := context.Background()
	g := s.completed(
		models.ProposedCard{Front: "What is ATP?", Back: "Energy currency"},
		models.ProposedCard{Front: "Where?", Back: "Chloroplast"},
		models.ProposedCard{Front: "Input gas?", Back: "CO2"},
		models.ProposedCard{Front: "Output gas?", Back: "O2"},
	)
	s.Require().Len(g.Candidates, 4)
	c := g.Candidates

	accepted, err := s.svc.AcceptCandidate(ctx, s.userID, g.ID, c[0].ID)
	s.Require().NoError(err)
	s.Equal(models.CandidateAccepted, accepted.Status)
	s.Require().NotNil(accepted.FlashcardID)

	card, err := s.cards.Get(ctx, *accepted.FlashcardID)
	s.Require().NoError(err)
	s.Equal(models.SourceAIFull, card.Source)
	s.True(card.NeverReviewed())
	s.Equal(g.ID, *card.GenerationID)

	_, err = s.svc.AcceptCandidate(ctx, s.userID, g.ID, c[0].ID)
	s.Equal(errors.ErrCodeValidation, errors.Code(err), "accepted is terminal")

	edited, err := s.svc.EditCandidate(ctx, s.userID, g.ID, c[1].ID, "Where does it happen?", "In the chloroplast")
	s.Require().NoError(err)
	s.Equal(models.CandidateEdited, edited.Status)
	card, err = s.cards.Get(ctx, *edited.FlashcardID)
	s.Require().NoError(err)
	s.Equal(models.SourceAIEdited, card.Source)
	s.Equal("In the chloroplast", card.Back)

	rejected, err := s.svc.RejectCandidate(ctx, s.userID, g.ID, c[2].ID)
	s.Require().NoError(err)
	s.Equal(models.CandidateRejected, rejected.Status)
	_, err = s.svc.EditCandidate(ctx, s.userID, g.ID, c[2].ID, "x", "y")
	s.Equal(errors.ErrCodeValidation, errors.Code(err), "rejected is terminal")

	bulk, err := s.svc.AcceptAll(ctx, s.userID, g.ID)
	s.Require().NoError(err)
	s.Equal(1, bulk.Succeeded)
	s.Equal(0, bulk.Failed)
	s.Require().Len(bulk.Items, 1)
	s.Equal(c[3].ID, *bulk.Items[0].CandidateID)
	s.NotNil(bulk.Items[0].FlashcardID)

	again, err := s.svc.AcceptAll(ctx, s.userID, g.ID)
	s.Require().NoError(err)
	s.Empty(again.Items)
	s.NotNil(again.Items)

	final, err := s.svc.GetGeneration(ctx, s.userID, g.ID)
	s.Require().NoError(err)
	s.Equal(4, final.GeneratedCount)
	s.Equal(2, final.AcceptedUneditedCount)
	s.Equal(1, final.AcceptedEditedCount)

	count, err := s.cards.Count(ctx, models.FlashcardFilter{UserID: s.userID})
	s.Require().NoError(err)
	s.Equal(3, count)
}

func (s *GenerationServiceSuite) TestEditCandidate_UnchangedContentIsUnedited() {
	g := s.completed(models.ProposedCard{Front: "Q", Back: "A"})

	got, err := s.svc.EditCandidate(context.Background(), s.userID, g.ID, g.Candidates[0].ID, "  Q ", "A")
	s.Require().NoError(err)
	s.Equal(models.CandidateAccepted, got.Status)
}

func (s *GenerationServiceSuite) TestEditCandidate_InvalidContent() {
	g := s.completed(models.ProposedCard{Front: "Q", Back: "A"})

	_, err := s.svc.EditCandidate(context.Background(), s.userID, g.ID, g.Candidates[0].ID, "", "A")
	s.Equal(errors.ErrCodeValidation, errors.Code(err))

	_, err = s.svc.EditCandidate(context.Background(), s.userID, g.ID, g.Candidates[0].ID, "Q", strings.Repeat("b", models.MaxBackLength+1))
	s.Equal(errors.ErrCodeValidation, errors.Code(err))
}

func (s *GenerationServiceSuite) TestOtherUsersGenerationIsNotFound() {
	g := s.completed(models.ProposedCard{Front: "Q", Back: "A"})
	other := testutil.CreateUser(s.T(), s.db, "ivan")

	_, err := s.svc.GetGeneration(context.Background(), other, g.ID)
	s.Equal(errors.ErrCodeNotFound, errors.Code(err))
	_, err = s.svc.AcceptCandidate(context.Background(), other, g.ID, g.Candidates[0].ID)
	s.Equal(errors.ErrCodeNotFound, errors.Code(err))
	_, err = s.svc.AcceptAll(context.Background(), other, g.ID)
	s.Equal(errors.ErrCodeNotFound, errors.Code(err))
}

func (s *GenerationServiceSuite) TestAcceptCandidate_UnknownCandidate() {
	g := s.completed(models.ProposedCard{Front: "Q", Back: "A"})

	_, err := s.svc.AcceptCandidate(context.Background(), s.userID, g.ID, g.Candidates[0].ID+50)
	s.Equal(errors.ErrCodeNotFound, errors.Code(err))
}

func TestGenerationServiceSuite(t *testing.T) {
	suite.Run(t, new(GenerationServiceSuite))
}

func TestAcceptAll_ReportsPerItemFailures(t *testing.T) {
	repo := new(mocks.MockGenerationRepository)
	gen := new(mocks.MockGenerator)
	svc := services.NewGenerationService(repo, gen, new(mocks.MockJobQueue),
		newPolicy(t), clock.NewFixed(start), services.GenerationConfig{})

	repo.On("Get", mock.Anything, int64(5)).Return(&models.Generation{ID: 5, UserID: 1, Status: models.GenerationCompleted}, nil)
	repo.On("Candidates", mock.Anything, int64(5)).Return([]models.Candidate{
		{ID: 10, GenerationID: 5, Front: "a", Back: "b", Status: models.CandidateProposed},
		{ID: 11, GenerationID: 5, Front: "c", Back: "d", Status: models.CandidateProposed},
		{ID: 12, GenerationID: 5, Front: "e", Back: "f", Status: models.CandidateRejected},
	}, nil)
	repo.On("AcceptCandidate", mock.Anything, mock.MatchedBy(func(c models.Candidate) bool { return c.ID == 10 }),
		models.CandidateAccepted, mock.Anything).Return(int64(0), repository.ErrConflict)
	repo.On("AcceptCandidate", mock.Anything, mock.MatchedBy(func(c models.Candidate) bool { return c.ID == 11 }),
		models.CandidateAccepted, mock.Anything).Return(int64(99), nil)

	res, err := svc.AcceptAll(context.Background(), 1, 5)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Succeeded)
	assert.Equal(t, 1, res.Failed)
	require.Len(t, res.Items, 2)
	require.NotNil(t, res.Items[0].Error)
	assert.Equal(t, errors.ErrCodeConflict, res.Items[0].Error.Code)
	require.NotNil(t, res.Items[1].FlashcardID)
	assert.Equal(t, int64(99), *res.Items[1].FlashcardID)
	repo.AssertExpectations(t)
}

func TestAcceptAll_PendingGeneration(t *testing.T) {
	repo := new(mocks.MockGenerationRepository)
	svc := services.NewGenerationService(repo, new(mocks.MockGenerator), new(mocks.MockJobQueue),
		newPolicy(t), clock.NewFixed(start), services.GenerationConfig{})

	repo.On("Get", mock.Anything, int64(5)).Return(&models.Generation{ID: 5, UserID: 1, Status: models.GenerationPending}, nil)

	_, err := svc.AcceptAll(context.Background(), 1, 5)
	assert.Equal(t, errors.ErrCodeValidation, errors.Code(err))
	repo.AssertNotCalled(t, "Candidates", mock.Anything, mock.Anything)
}
