package mocks

import (
	"github.com/stretchr/testify/mock"
)

// MockJobQueue is a mock implementation of jobs.JobQueue
type MockJobQueue struct {
	mock.Mock
}

func (m *MockJobQueue) EnqueueGeneration(generationID int64, sourceText string) error {
	args := m.Called(generationID, sourceText)
	return args.Error(0)
}
