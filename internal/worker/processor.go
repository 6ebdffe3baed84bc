package worker

import "context"

// GenerationProcessor runs one pending generation to completion.
// Declared here so the worker package does not import services.
type GenerationProcessor interface {
	ProcessGeneration(ctx context.Context, generationID int64, sourceText string) error
}
