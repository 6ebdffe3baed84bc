package flashcard_test

import (
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vytor/flashstudy/internal/flashcard"
	"github.com/vytor/flashstudy/internal/models"
)

var now = time.Date(2025, 3, 14, 9, 30, 0, 0, time.UTC)

func newPolicy(t *testing.T) *flashcard.Policy {
	t.Helper()
	p, err := flashcard.NewPolicy(flashcard.DefaultParams())
	require.NoError(t, err)
	return p
}

func reviewedState(interval time.Duration, ease float64, streak int) models.ReviewState {
	last := now.Add(-interval)
	due := now
	return models.ReviewState{
		LastReviewedAt:     &last,
		DueAt:              &due,
		Interval:           interval,
		EaseFactor:         ease,
		ConsecutiveCorrect: streak,
		Version:            3,
	}
}

// randomStates produces a deterministic spread of reviewed and unreviewed states.
func randomStates(n int) []models.ReviewState {
	r := rand.New(rand.NewSource(42))
	params := flashcard.DefaultParams()
	states := []models.ReviewState{{}, {EaseFactor: params.InitialEase}}
	for i := 0; i < n; i++ {
		interval := time.Duration(r.Intn(400)+1) * 24 * time.Hour
		ease := params.MinEase + r.Float64()*(params.MaxEase-params.MinEase)
		states = append(states, reviewedState(interval, ease, r.Intn(20)))
	}
	return states
}

func TestNewPolicy_RejectsBadParams(t *testing.T) {
	params := flashcard.DefaultParams()
	params.MinEase = 3
	_, err := flashcard.NewPolicy(params)
	assert.Error(t, err)

	params = flashcard.DefaultParams()
	params.BaseInterval = 0
	_, err = flashcard.NewPolicy(params)
	assert.Error(t, err)

	params = flashcard.DefaultParams()
	params.FirstEasy = params.FirstGood - time.Hour
	_, err = flashcard.NewPolicy(params)
	assert.Error(t, err)
}

func TestNextState_AgainResetsToBase(t *testing.T) {
	p := newPolicy(t)
	for _, s := range randomStates(200) {
		next := p.NextState(s, models.Again, now)
		assert.Equal(t, p.Params().BaseInterval, next.Interval)
		assert.Equal(t, 0, next.ConsecutiveCorrect)
	}
}

func TestNextState_EasyNeverShorterThanGood(t *testing.T) {
	p := newPolicy(t)
	for _, s := range randomStates(200) {
		good := p.NextState(s, models.Good, now)
		easy := p.NextState(s, models.Easy, now)
		assert.GreaterOrEqual(t, easy.Interval, good.Interval)
	}
}

func TestNextState_Deterministic(t *testing.T) {
	p := newPolicy(t)
	for _, s := range randomStates(50) {
		for _, o := range models.Outcomes {
			assert.Equal(t, p.NextState(s, o, now), p.NextState(s, o, now))
		}
	}
}

func TestNextState_FirstReview(t *testing.T) {
	p := newPolicy(t)
	fresh := p.InitialState()

	tests := []struct {
		outcome  models.Outcome
		interval time.Duration
	}{
		{models.Again, 24 * time.Hour},
		{models.Hard, 24 * time.Hour},
		{models.Good, 24 * time.Hour},
		{models.Easy, 4 * 24 * time.Hour},
	}
	for _, tt := range tests {
		t.Run(tt.outcome.String(), func(t *testing.T) {
			next := p.NextState(fresh, tt.outcome, now)
			assert.Equal(t, tt.interval, next.Interval)
			require.NotNil(t, next.LastReviewedAt)
			require.NotNil(t, next.DueAt)
			assert.Equal(t, now, *next.LastReviewedAt)
			assert.Equal(t, now.Add(tt.interval), *next.DueAt)
		})
	}
}

func TestNextState_Growth(t *testing.T) {
	p := newPolicy(t)
	s := reviewedState(4*24*time.Hour, 2.5, 2)

	good := p.NextState(s, models.Good, now)
	assert.Equal(t, 10*24*time.Hour, good.Interval)
	assert.InDelta(t, 2.5, good.EaseFactor, 1e-9)
	assert.Equal(t, 3, good.ConsecutiveCorrect)

	hard := p.NextState(s, models.Hard, now)
	assert.Equal(t, 5*24*time.Hour, hard.Interval)
	assert.Less(t, hard.EaseFactor, 2.5)
	assert.Equal(t, 3, hard.ConsecutiveCorrect)

	easy := p.NextState(s, models.Easy, now)
	assert.Equal(t, 13*24*time.Hour, easy.Interval)
	assert.Equal(t, 2.5, easy.EaseFactor, "ease is capped")
}

func TestNextState_EaseStaysInBounds(t *testing.T) {
	p := newPolicy(t)
	s := reviewedState(24*time.Hour, 1.3, 0)
	for i := 0; i < 10; i++ {
		s = p.NextState(s, models.Again, now)
		assert.GreaterOrEqual(t, s.EaseFactor, 1.3)
	}
	for i := 0; i < 20; i++ {
		s = p.NextState(s, models.Easy, *s.DueAt)
		assert.LessOrEqual(t, s.EaseFactor, 2.5)
		assert.LessOrEqual(t, s.Interval, p.Params().MaxInterval)
	}
	assert.Equal(t, p.Params().MaxInterval, s.Interval)
}

func TestNextState_ClampsClockSkew(t *testing.T) {
	p := newPolicy(t)
	s := reviewedState(2*24*time.Hour, 2.5, 1)
	future := now.Add(time.Hour)
	s.LastReviewedAt = &future

	next := p.NextState(s, models.Good, now)
	assert.Equal(t, future, *next.LastReviewedAt)
	assert.Equal(t, future.Add(next.Interval), *next.DueAt)
}

func TestNextState_InvalidOutcomeIsNoop(t *testing.T) {
	p := newPolicy(t)
	s := reviewedState(5*24*time.Hour, 2.1, 4)
	assert.Equal(t, s, p.NextState(s, models.Outcome(0), now))
}

func TestNextState_KeepsVersion(t *testing.T) {
	p := newPolicy(t)
	s := reviewedState(5*24*time.Hour, 2.1, 4)
	assert.Equal(t, int64(3), p.NextState(s, models.Good, now).Version)
}

func TestPreview(t *testing.T) {
	p := newPolicy(t)
	s := reviewedState(6*24*time.Hour, 2.5, 1)
	preview := p.Preview(s, now)

	require.Len(t, preview, 4)
	assert.Equal(t, 24*time.Hour, preview[models.Again].Interval)
	assert.LessOrEqual(t, preview[models.Hard].Interval, preview[models.Good].Interval)
	assert.LessOrEqual(t, preview[models.Good].Interval, preview[models.Easy].Interval)
}

func TestNextState_SubDayBaseInterval(t *testing.T) {
	params := flashcard.DefaultParams()
	params.BaseInterval = 10 * time.Minute
	params.FirstHard = 10 * time.Minute
	params.FirstGood = time.Hour
	p, err := flashcard.NewPolicy(params)
	require.NoError(t, err)

	s := reviewedState(time.Hour, 2.5, 1)
	next := p.NextState(s, models.Good, now)
	assert.Equal(t, 150*time.Minute, next.Interval)
	assert.Equal(t, 10*time.Minute, p.NextState(s, models.Again, now).Interval)
}
