package mocks

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/vytor/flashstudy/internal/models"
)

// MockGenerationRepository is a mock implementation of repository.GenerationRepository
type MockGenerationRepository struct {
	mock.Mock
}

func (m *MockGenerationRepository) Create(ctx context.Context, g models.Generation) (int64, error) {
	args := m.Called(ctx, g)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockGenerationRepository) Get(ctx context.Context, id int64) (*models.Generation, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Generation), args.Error(1)
}

func (m *MockGenerationRepository) ListByUser(ctx context.Context, userID int64, limit, offset int) ([]models.Generation, error) {
	args := m.Called(ctx, userID, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Generation), args.Error(1)
}

func (m *MockGenerationRepository) Complete(ctx context.Context, id int64, cards []models.ProposedCard, durationMS int64, at time.Time) error {
	args := m.Called(ctx, id, cards, durationMS, at)
	return args.Error(0)
}

func (m *MockGenerationRepository) Fail(ctx context.Context, id int64, message string, durationMS int64, at time.Time) error {
	args := m.Called(ctx, id, message, durationMS, at)
	return args.Error(0)
}

func (m *MockGenerationRepository) FailPending(ctx context.Context, message string, at time.Time) (int64, error) {
	args := m.Called(ctx, message, at)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockGenerationRepository) Candidates(ctx context.Context, generationID int64) ([]models.Candidate, error) {
	args := m.Called(ctx, generationID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Candidate), args.Error(1)
}

func (m *MockGenerationRepository) GetCandidate(ctx context.Context, generationID, candidateID int64) (*models.Candidate, error) {
	args := m.Called(ctx, generationID, candidateID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Candidate), args.Error(1)
}

func (m *MockGenerationRepository) AcceptCandidate(ctx context.Context, c models.Candidate, status models.CandidateStatus, card models.Flashcard) (int64, error) {
	args := m.Called(ctx, c, status, card)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockGenerationRepository) RejectCandidate(ctx context.Context, generationID, candidateID int64, at time.Time) error {
	args := m.Called(ctx, generationID, candidateID, at)
	return args.Error(0)
}
