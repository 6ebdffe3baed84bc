package services_test

import (
	"context"
	"database/sql"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/vytor/flashstudy/internal/clock"
	"github.com/vytor/flashstudy/internal/errors"
	"github.com/vytor/flashstudy/internal/models"
	"github.com/vytor/flashstudy/internal/repository/sqlite"
	"github.com/vytor/flashstudy/internal/services"
	"github.com/vytor/flashstudy/internal/testutil"
	"github.com/vytor/flashstudy/internal/testutil/mocks"
)

func newFlashcardService(t *testing.T, db *sql.DB) services.FlashcardService {
	return services.NewFlashcardService(sqlite.NewFlashcardRepository(db),
		sqlite.NewGenerationRepository(db), newPolicy(t), clock.NewFixed(start))
}

func TestCreateFlashcards_PerItemResults(t *testing.T) {
	db := testutil.NewTestDB(t)
	defer testutil.MustClose(t, db)
	userID := testutil.CreateUser(t, db, "jill")
	svc := newFlashcardService(t, db)
	ctx := context.Background()

	res, err := svc.CreateFlashcards(ctx, userID, []services.FlashcardInput{
		{Front: " bonjour ", Back: "hello"},
		{Front: "", Back: "missing front"},
		{Front: "merci", Back: strings.Repeat("x", models.MaxBackLength+1)},
		{Front: "ai", Back: "card", Source: models.SourceAIFull},
		{Front: "au revoir", Back: "goodbye"},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, res.Succeeded)
	assert.Equal(t, 3, res.Failed)
	require.Len(t, res.Items, 5)

	for i, item := range res.Items {
		assert.Equal(t, i, item.Index)
	}
	require.NotNil(t, res.Items[0].FlashcardID)
	assert.Nil(t, res.Items[0].Error)
	assert.Equal(t, errors.ErrCodeValidation, res.Items[1].Error.Code)
	assert.Equal(t, errors.ErrCodeValidation, res.Items[2].Error.Code)
	assert.Equal(t, errors.ErrCodeValidation, res.Items[3].Error.Code, "AI cards need a generation")
	require.NotNil(t, res.Items[4].FlashcardID)

	card, err := svc.GetFlashcard(ctx, userID, *res.Items[0].FlashcardID)
	require.NoError(t, err)
	assert.Equal(t, "bonjour", card.Front)
	assert.Equal(t, models.SourceManual, card.Source)
	assert.True(t, card.NeverReviewed())
}

func TestCreateFlashcards_BatchBounds(t *testing.T) {
	svc := services.NewFlashcardService(new(mocks.MockFlashcardRepository), new(mocks.MockGenerationRepository),
		newPolicy(t), clock.NewFixed(start))

	_, err := svc.CreateFlashcards(context.Background(), 1, nil)
	assert.Equal(t, errors.ErrCodeValidation, errors.Code(err))

	_, err = svc.CreateFlashcards(context.Background(), 1, make([]services.FlashcardInput, services.MaxBulkSize+1))
	assert.Equal(t, errors.ErrCodeValidation, errors.Code(err))
}

func TestCreateFlashcards_StoreFailureMarksEveryValidItem(t *testing.T) {
	cards := new(mocks.MockFlashcardRepository)
	svc := services.NewFlashcardService(cards, new(mocks.MockGenerationRepository), newPolicy(t), clock.NewFixed(start))

	cards.On("InsertBatch", mock.Anything, mock.Anything).Return(nil, sql.ErrConnDone)

	res, err := svc.CreateFlashcards(context.Background(), 1, []services.FlashcardInput{
		{Front: "a", Back: "b"},
		{Front: "", Back: "b"},
		{Front: "c", Back: "d"},
	})
	require.NoError(t, err)
	assert.Equal(t, 0, res.Succeeded)
	assert.Equal(t, errors.ErrCodeUpstream, res.Items[0].Error.Code)
	assert.Equal(t, errors.ErrCodeValidation, res.Items[1].Error.Code)
	assert.Equal(t, errors.ErrCodeUpstream, res.Items[2].Error.Code)
}

func TestUpdateFlashcard_AIFullBecomesEdited(t *testing.T) {
	db := testutil.NewTestDB(t)
	defer testutil.MustClose(t, db)
	userID := testutil.CreateUser(t, db, "kate")
	ctx := context.Background()

	genID, err := sqlite.NewGenerationRepository(db).Create(ctx, models.Generation{
		UserID: userID, Model: "m", SourceTextHash: "h", SourceTextLength: 1000, CreatedAt: start,
	})
	require.NoError(t, err)

	svc := newFlashcardService(t, db)
	res, err := svc.CreateFlashcards(ctx, userID, []services.FlashcardInput{
		{Front: "q", Back: "a", Source: models.SourceAIFull, GenerationID: &genID},
	})
	require.NoError(t, err)
	require.Equal(t, 1, res.Succeeded)
	id := *res.Items[0].FlashcardID

	updated, err := svc.UpdateFlashcard(ctx, userID, id, "q2", "a2")
	require.NoError(t, err)
	assert.Equal(t, models.SourceAIEdited, updated.Source)
	assert.Equal(t, "q2", updated.Front)

	other := testutil.CreateUser(t, db, "liam")
	_, err = svc.UpdateFlashcard(ctx, other, id, "x", "y")
	assert.Equal(t, errors.ErrCodeNotFound, errors.Code(err))

	_, err = svc.UpdateFlashcard(ctx, userID, id, "", "y")
	assert.Equal(t, errors.ErrCodeValidation, errors.Code(err))
}

func TestListAndDeleteFlashcards(t *testing.T) {
	db := testutil.NewTestDB(t)
	defer testutil.MustClose(t, db)
	userID := testutil.CreateUser(t, db, "mona")
	ids := testutil.CreateFlashcards(t, db, userID, 3, start)
	svc := newFlashcardService(t, db)
	ctx := context.Background()

	cards, total, err := svc.ListFlashcards(ctx, models.FlashcardFilter{UserID: userID, Limit: 2})
	require.NoError(t, err)
	assert.Len(t, cards, 2)
	assert.Equal(t, 3, total)

	_, _, err = svc.ListFlashcards(ctx, models.FlashcardFilter{UserID: userID, Source: "bogus"})
	assert.Equal(t, errors.ErrCodeValidation, errors.Code(err))

	require.NoError(t, svc.DeleteFlashcard(ctx, userID, ids[0]))
	assert.Equal(t, errors.ErrCodeNotFound, errors.Code(svc.DeleteFlashcard(ctx, userID, ids[0])))

	_, err = svc.GetFlashcard(ctx, userID, ids[0])
	assert.Equal(t, errors.ErrCodeNotFound, errors.Code(err))
}
