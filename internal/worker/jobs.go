package worker

import (
	"context"
	"strconv"
)

// GenerateCandidatesJob asks the LLM for candidate flashcards and stores them.
type GenerateCandidatesJob struct {
	Processor    GenerationProcessor
	GenerationID int64
	SourceText   string
}

func (j *GenerateCandidatesJob) Name() string {
	return "generate_candidates:" + strconv.FormatInt(j.GenerationID, 10)
}

func (j *GenerateCandidatesJob) Run(ctx context.Context) error {
	return j.Processor.ProcessGeneration(ctx, j.GenerationID, j.SourceText)
}
