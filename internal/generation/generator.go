// Package generation turns source text into proposed flashcards with an LLM.
//
// Any OpenAI-compatible endpoint works; the base URL and model are
// configuration.
package generation

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
	"github.com/vytor/flashstudy/internal/logger"
	"github.com/vytor/flashstudy/internal/models"
)

var (
	// ErrInvalidConfig indicates invalid generator configuration
	ErrInvalidConfig = errors.New("invalid generator configuration")
	// ErrNoCards is returned when the model output holds no usable card.
	ErrNoCards = errors.New("model returned no usable flashcards")
)

// Generator proposes flashcards for a piece of source text.
type Generator interface {
	Generate(ctx context.Context, sourceText string) ([]models.ProposedCard, error)
	Model() string
}

// Config holds configuration for the LLM generator.
type Config struct {
	BaseURL     string
	Model       string
	APIKey      string
	MaxCards    int
	Temperature float64
	MaxTokens   int
}

func (c Config) Validate() error {
	if c.Model == "" {
		return fmt.Errorf("%w: model required", ErrInvalidConfig)
	}
	if c.MaxCards <= 0 {
		return fmt.Errorf("%w: max cards must be positive", ErrInvalidConfig)
	}
	return nil
}

// LLMGenerator implements Generator on top of a langchaingo model.
type LLMGenerator struct {
	llm llms.Model
	cfg Config
}

// NewLLMGenerator builds an OpenAI-compatible client from cfg.
func NewLLMGenerator(cfg Config) (*LLMGenerator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	apiKey := cfg.APIKey
	if apiKey == "" {
		// langchaingo requires a token even for local endpoints
		apiKey = "placeholder"
	}
	opts := []openai.Option{
		openai.WithModel(cfg.Model),
		openai.WithToken(apiKey),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, openai.WithBaseURL(cfg.BaseURL))
	}

	llm, err := openai.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("creating OpenAI client: %w", err)
	}
	return NewWithModel(llm, cfg), nil
}

// NewWithModel wraps an existing langchaingo model.
func NewWithModel(llm llms.Model, cfg Config) *LLMGenerator {
	return &LLMGenerator{llm: llm, cfg: cfg}
}

func (g *LLMGenerator) Model() string {
	return g.cfg.Model
}

func (g *LLMGenerator) Generate(ctx context.Context, sourceText string) ([]models.ProposedCard, error) {
	log := logger.FromContext(ctx).WithPrefix("generator")
	log.Debug("requesting flashcards: model=%s, text_length=%d", g.cfg.Model, len(sourceText))

	opts := []llms.CallOption{llms.WithTemperature(g.cfg.Temperature)}
	if g.cfg.MaxTokens > 0 {
		opts = append(opts, llms.WithMaxTokens(g.cfg.MaxTokens))
	}

	out, err := llms.GenerateFromSinglePrompt(ctx, g.llm, buildPrompt(sourceText, g.cfg.MaxCards), opts...)
	if err != nil {
		log.Error("model call failed: %v", err)
		return nil, fmt.Errorf("generating flashcards: %w", err)
	}

	cards, err := ParseCards(out, g.cfg.MaxCards)
	if err != nil {
		log.Warn("unusable model output (%d bytes): %v", len(out), err)
		return nil, err
	}
	log.Debug("model proposed %d flashcards", len(cards))
	return cards, nil
}

func buildPrompt(sourceText string, maxCards int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Create at most %d study flashcards from the text below.\n", maxCards)
	fmt.Fprintf(&b, "Each card has a question on the front (max %d characters) and a concise answer on the back (max %d characters).\n",
		models.MaxFrontLength, models.MaxBackLength)
	b.WriteString(`Respond with JSON only, in the form [{"front": "...", "back": "..."}].`)
	b.WriteString("\n\nText:\n")
	b.WriteString(sourceText)
	return b.String()
}
