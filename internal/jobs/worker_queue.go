package jobs

import (
	"errors"
	"sync"

	"github.com/vytor/flashstudy/internal/worker"
)

// ErrNoProcessor is returned when a generation is enqueued before the
// processor has been attached.
var ErrNoProcessor = errors.New("generation processor not configured")

// WorkerQueue implements JobQueue using a worker pool
type WorkerQueue struct {
	pool *worker.Pool

	mu        sync.RWMutex
	processor worker.GenerationProcessor
}

// NewWorkerQueue creates a new WorkerQueue implementation
func NewWorkerQueue(pool *worker.Pool) *WorkerQueue {
	return &WorkerQueue{pool: pool}
}

// SetGenerationProcessor attaches the service that runs generation jobs. The
// service itself depends on the queue, so it is wired after construction.
func (q *WorkerQueue) SetGenerationProcessor(p worker.GenerationProcessor) {
	q.mu.Lock()
	q.processor = p
	q.mu.Unlock()
}

func (q *WorkerQueue) EnqueueGeneration(generationID int64, sourceText string) error {
	q.mu.RLock()
	p := q.processor
	q.mu.RUnlock()
	if p == nil {
		return ErrNoProcessor
	}

	return q.pool.Submit(&worker.GenerateCandidatesJob{
		Processor:    p,
		GenerationID: generationID,
		SourceText:   sourceText,
	})
}
