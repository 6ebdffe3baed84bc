package sqlite_test

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"github.com/vytor/flashstudy/internal/models"
	"github.com/vytor/flashstudy/internal/repository"
	"github.com/vytor/flashstudy/internal/repository/sqlite"
	"github.com/vytor/flashstudy/internal/testutil"
)

var base = time.Date(2025, 3, 14, 9, 0, 0, 0, time.UTC)

type FlashcardRepositorySuite struct {
	suite.Suite
	db      *sql.DB
	repo    repository.FlashcardRepository
	reviews repository.ReviewRepository
	userID  int64
}

func (s *FlashcardRepositorySuite) SetupTest() {
	s.db = testutil.NewTestDB(s.T())
	s.repo = sqlite.NewFlashcardRepository(s.db)
	s.reviews = sqlite.NewReviewRepository(s.db)
	s.userID = testutil.CreateUser(s.T(), s.db, "alice")
}

func (s *FlashcardRepositorySuite) TearDownTest() {
	testutil.MustClose(s.T(), s.db)
}

func (s *FlashcardRepositorySuite) newCard(front string, created time.Time) models.Flashcard {
	return models.Flashcard{
		UserID:      s.userID,
		Front:       front,
		Back:        "back of " + front,
		Source:      models.SourceManual,
		CreatedAt:   created,
		UpdatedAt:   created,
		ReviewState: models.ReviewState{EaseFactor: 2.5},
	}
}

func (s *FlashcardRepositorySuite) TestInsertAndGet() {
	ctx := context.Background()

	id, err := s.repo.Insert(ctx, s.newCard("hola", base))
	s.Require().NoError(err)
	s.Greater(id, int64(0))

	got, err := s.repo.Get(ctx, id)
	s.Require().NoError(err)
	s.Require().NotNil(got)
	s.Equal("hola", got.Front)
	s.Equal(models.SourceManual, got.Source)
	s.True(got.NeverReviewed())
	s.Nil(got.DueAt)
	s.Equal(int64(0), got.Version)
	s.True(base.Equal(got.CreatedAt))
}

func (s *FlashcardRepositorySuite) TestGet_Missing() {
	got, err := s.repo.Get(context.Background(), 999)
	s.NoError(err)
	s.Nil(got)
}

func (s *FlashcardRepositorySuite) TestInsertBatch_InsertionOrder() {
	ctx := context.Background()
	cards := []models.Flashcard{s.newCard("a", base), s.newCard("b", base), s.newCard("c", base)}

	ids, err := s.repo.InsertBatch(ctx, cards)
	s.Require().NoError(err)
	s.Len(ids, 3)

	all, err := s.repo.ListByUser(ctx, s.userID)
	s.Require().NoError(err)
	s.Require().Len(all, 3)
	for i, c := range all {
		s.Equal(ids[i], c.ID)
	}
}

func (s *FlashcardRepositorySuite) TestInsertBatch_RollsBackOnError() {
	ctx := context.Background()
	bad := s.newCard("bad", base)
	bad.Source = "invalid"

	_, err := s.repo.InsertBatch(ctx, []models.Flashcard{s.newCard("ok", base), bad})
	s.Error(err)

	count, err := s.repo.Count(ctx, models.FlashcardFilter{UserID: s.userID})
	s.Require().NoError(err)
	s.Equal(0, count)
}

func (s *FlashcardRepositorySuite) TestListAndCount_FilterBySource() {
	ctx := context.Background()
	ai := s.newCard("ai", base)
	ai.Source = models.SourceAIFull
	_, err := s.repo.InsertBatch(ctx, []models.Flashcard{s.newCard("m1", base), ai, s.newCard("m2", base.Add(time.Minute))})
	s.Require().NoError(err)

	manual, err := s.repo.List(ctx, models.FlashcardFilter{UserID: s.userID, Source: models.SourceManual})
	s.Require().NoError(err)
	s.Require().Len(manual, 2)
	s.Equal("m2", manual[0].Front, "newest first by default")

	count, err := s.repo.Count(ctx, models.FlashcardFilter{UserID: s.userID, Source: models.SourceAIFull})
	s.Require().NoError(err)
	s.Equal(1, count)

	page, err := s.repo.List(ctx, models.FlashcardFilter{UserID: s.userID, Limit: 1, Offset: 1})
	s.Require().NoError(err)
	s.Len(page, 1)
}

func (s *FlashcardRepositorySuite) TestUpdateContentAndDelete() {
	ctx := context.Background()
	id, err := s.repo.Insert(ctx, s.newCard("old", base))
	s.Require().NoError(err)

	card := s.newCard("new", base)
	card.ID = id
	card.Source = models.SourceAIEdited
	card.UpdatedAt = base.Add(time.Hour)
	s.Require().NoError(s.repo.UpdateContent(ctx, card))

	got, err := s.repo.Get(ctx, id)
	s.Require().NoError(err)
	s.Equal("new", got.Front)
	s.Equal(models.SourceAIEdited, got.Source)

	other := testutil.CreateUser(s.T(), s.db, "bob")
	s.ErrorIs(s.repo.Delete(ctx, id, other), repository.ErrNotFound)
	s.Require().NoError(s.repo.Delete(ctx, id, s.userID))
	s.ErrorIs(s.repo.Delete(ctx, id, s.userID), repository.ErrNotFound)
}

func (s *FlashcardRepositorySuite) TestPutReviewState() {
	ctx := context.Background()
	id, err := s.repo.Insert(ctx, s.newCard("q", base))
	s.Require().NoError(err)

	reviewed := base.Add(time.Hour)
	due := reviewed.Add(24 * time.Hour)
	state := models.ReviewState{
		LastReviewedAt:     &reviewed,
		DueAt:              &due,
		Interval:           24 * time.Hour,
		EaseFactor:         2.5,
		ConsecutiveCorrect: 1,
	}
	entry := models.ReviewHistory{UserID: s.userID, Outcome: models.Good, Interval: 24 * time.Hour, ReviewedAt: reviewed}

	s.Require().NoError(s.repo.PutReviewState(ctx, id, 0, state, entry))

	got, err := s.repo.Get(ctx, id)
	s.Require().NoError(err)
	s.Equal(int64(1), got.Version)
	s.Require().NotNil(got.DueAt)
	s.True(due.Equal(*got.DueAt))
	s.Equal(24*time.Hour, got.Interval)
	s.Equal(1, got.ConsecutiveCorrect)

	counts, err := s.reviews.OutcomeCounts(ctx, s.userID)
	s.Require().NoError(err)
	s.Equal(map[models.Outcome]int{models.Good: 1}, counts)

	history, err := s.reviews.ListForCard(ctx, id, 10)
	s.Require().NoError(err)
	s.Require().Len(history, 1)
	s.Equal(models.Good, history[0].Outcome)
}

func (s *FlashcardRepositorySuite) TestPutReviewState_StaleVersion() {
	ctx := context.Background()
	id, err := s.repo.Insert(ctx, s.newCard("q", base))
	s.Require().NoError(err)

	now := base.Add(time.Hour)
	state := models.ReviewState{LastReviewedAt: &now, DueAt: &now, Interval: time.Hour, EaseFactor: 2.5}
	entry := models.ReviewHistory{UserID: s.userID, Outcome: models.Again, ReviewedAt: now}

	s.Require().NoError(s.repo.PutReviewState(ctx, id, 0, state, entry))
	err = s.repo.PutReviewState(ctx, id, 0, state, entry)
	s.ErrorIs(err, repository.ErrConflict)

	counts, err := s.reviews.OutcomeCounts(ctx, s.userID)
	s.Require().NoError(err)
	s.Equal(1, counts[models.Again], "conflicting write must not append history")
}

func (s *FlashcardRepositorySuite) TestPutReviewState_Missing() {
	now := base
	err := s.repo.PutReviewState(context.Background(), 42, 0,
		models.ReviewState{LastReviewedAt: &now, DueAt: &now},
		models.ReviewHistory{UserID: s.userID, Outcome: models.Good, ReviewedAt: now})
	s.ErrorIs(err, repository.ErrNotFound)
}

func TestFlashcardRepositorySuite(t *testing.T) {
	suite.Run(t, new(FlashcardRepositorySuite))
}
