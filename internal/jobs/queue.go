package jobs

// JobQueue provides an abstraction for enqueueing background jobs
type JobQueue interface {
	EnqueueGeneration(generationID int64, sourceText string) error
}
