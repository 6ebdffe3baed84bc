// Package config loads server configuration.
//
// Sources, lowest precedence first: flag defaults, an optional YAML file
// (--config or CONFIG_FILE), environment variables (a .env file is read
// when present), explicitly set command-line flags.
package config

import (
	"errors"
	"fmt"
	"os"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"

	"github.com/vytor/flashstudy/internal/flashcard"
	"github.com/vytor/flashstudy/internal/generation"
	"github.com/vytor/flashstudy/internal/services"
)

type Config struct {
	Addr            string        `koanf:"addr" validate:"required"`
	DBPath          string        `koanf:"db_path" validate:"required"`
	LogLevel        string        `koanf:"log_level" validate:"oneof=DEBUG INFO WARN ERROR debug info warn error"`
	LogFormat       string        `koanf:"log_format" validate:"oneof=console json"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout" validate:"gt=0"`

	Timezone       string        `koanf:"timezone" validate:"required,timezone"`
	SessionSize    int           `koanf:"session_size" validate:"gt=0,ltefield=MaxSessionSize"`
	MaxSessionSize int           `koanf:"max_session_size" validate:"gt=0"`
	SessionTTL     time.Duration `koanf:"session_ttl" validate:"gte=0"`
	NewFirst       bool          `koanf:"session_new_first"`

	SchedulerBaseInterval time.Duration `koanf:"scheduler_base_interval" validate:"gt=0"`
	SchedulerMaxInterval  time.Duration `koanf:"scheduler_max_interval" validate:"gtefield=SchedulerBaseInterval"`
	SchedulerInitialEase  float64       `koanf:"scheduler_initial_ease" validate:"gt=0"`
	SchedulerMinEase      float64       `koanf:"scheduler_min_ease" validate:"gt=0"`
	SchedulerMaxEase      float64       `koanf:"scheduler_max_ease" validate:"gtefield=SchedulerMinEase"`
	SchedulerHardFactor   float64       `koanf:"scheduler_hard_factor" validate:"gte=1"`
	SchedulerEasyBonus    float64       `koanf:"scheduler_easy_bonus" validate:"gte=1"`
	SchedulerFirstHard    time.Duration `koanf:"scheduler_first_hard" validate:"gt=0"`
	SchedulerFirstGood    time.Duration `koanf:"scheduler_first_good" validate:"gt=0"`
	SchedulerFirstEasy    time.Duration `koanf:"scheduler_first_easy" validate:"gt=0"`

	LLMBaseURL     string        `koanf:"llm_base_url" validate:"omitempty,url"`
	LLMModel       string        `koanf:"llm_model" validate:"required"`
	LLMAPIKey      string        `koanf:"llm_api_key"`
	LLMMaxCards    int           `koanf:"llm_max_cards" validate:"gt=0,lte=100"`
	LLMTemperature float64       `koanf:"llm_temperature" validate:"gte=0,lte=2"`
	LLMMaxTokens   int           `koanf:"llm_max_tokens" validate:"gt=0"`
	LLMTimeout     time.Duration `koanf:"llm_timeout" validate:"gt=0"`

	GenerationWorkerCount   int     `koanf:"generation_worker_count" validate:"gt=0"`
	GenerationQueueSize     int     `koanf:"generation_queue_size" validate:"gt=0"`
	GenerationMinSource     int     `koanf:"generation_min_source" validate:"gt=0"`
	GenerationMaxSource     int     `koanf:"generation_max_source" validate:"gtefield=GenerationMinSource"`
	GenerationRatePerMinute float64 `koanf:"generation_rate_per_minute" validate:"gte=0"`
	GenerationBurst         int     `koanf:"generation_burst" validate:"gt=0"`
}

// FlagSet declares every option with its default. Flag names are the koanf
// keys with dashes.
func FlagSet() *pflag.FlagSet {
	d := flashcard.DefaultParams()
	fs := pflag.NewFlagSet("flashstudy", pflag.ContinueOnError)

	fs.String("config", "", "path to a YAML config file")
	fs.String("addr", ":8080", "HTTP listen address")
	fs.String("db-path", "file:flashstudy.db", "SQLite database path")
	fs.String("log-level", "INFO", "log level (DEBUG, INFO, WARN, ERROR)")
	fs.String("log-format", "console", "log format (console, json)")
	fs.Duration("shutdown-timeout", 10*time.Second, "graceful shutdown timeout")

	fs.String("timezone", "UTC", "IANA zone that defines the end of a study day")
	fs.Int("session-size", 20, "default number of cards per session")
	fs.Int("max-session-size", 200, "largest session a client may request")
	fs.Duration("session-ttl", 2*time.Hour, "idle time after which a session is dropped (0 keeps sessions forever)")
	fs.Bool("session-new-first", false, "serve never-reviewed cards before overdue ones")

	fs.Duration("scheduler-base-interval", d.BaseInterval, "interval after a lapse")
	fs.Duration("scheduler-max-interval", d.MaxInterval, "longest interval")
	fs.Float64("scheduler-initial-ease", d.InitialEase, "ease factor of new cards")
	fs.Float64("scheduler-min-ease", d.MinEase, "lower ease bound")
	fs.Float64("scheduler-max-ease", d.MaxEase, "upper ease bound")
	fs.Float64("scheduler-hard-factor", d.HardFactor, "interval multiplier for hard")
	fs.Float64("scheduler-easy-bonus", d.EasyBonus, "extra multiplier for easy")
	fs.Duration("scheduler-first-hard", d.FirstHard, "first interval after hard")
	fs.Duration("scheduler-first-good", d.FirstGood, "first interval after good")
	fs.Duration("scheduler-first-easy", d.FirstEasy, "first interval after easy")

	fs.String("llm-base-url", "", "OpenAI-compatible endpoint (empty for api.openai.com)")
	fs.String("llm-model", "gpt-4o-mini", "model used for generation")
	fs.String("llm-api-key", "", "API key for the LLM endpoint")
	fs.Int("llm-max-cards", 20, "maximum candidates per generation")
	fs.Float64("llm-temperature", 0.3, "sampling temperature")
	fs.Int("llm-max-tokens", 2048, "maximum completion tokens")
	fs.Duration("llm-timeout", 60*time.Second, "deadline for one generation call")

	fs.Int("generation-worker-count", 2, "generation workers")
	fs.Int("generation-queue-size", 32, "pending generation jobs before submissions are refused")
	fs.Int("generation-min-source", 1000, "minimum source text length in characters")
	fs.Int("generation-max-source", 10000, "maximum source text length in characters")
	fs.Float64("generation-rate-per-minute", 5, "sustained generations per user per minute (0 disables)")
	fs.Int("generation-burst", 3, "generation burst per user")
	return fs
}

func flagKey(name string) string {
	return strings.ReplaceAll(name, "-", "_")
}

// Load builds the configuration from args (without the program name) and the
// environment, then validates it.
func Load(args []string) (*Config, error) {
	// Ignore error so the app still starts when .env is absent in production.
	_ = godotenv.Load()

	fs := FlagSet()
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	known := make(map[string]bool)
	fs.VisitAll(func(f *pflag.Flag) { known[flagKey(f.Name)] = true })

	k := koanf.New(".")

	path, _ := fs.GetString("config")
	if path == "" {
		path = os.Getenv("CONFIG_FILE")
	}
	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("loading config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider("", ".", func(s string) string {
		key := strings.ToLower(s)
		if !known[key] {
			return ""
		}
		return key
	}), nil); err != nil {
		return nil, fmt.Errorf("loading environment: %w", err)
	}

	if err := k.Load(posflag.ProviderWithFlag(fs, ".", k, func(f *pflag.Flag) (string, interface{}) {
		return flagKey(f.Name), posflag.FlagVal(fs, f)
	}), nil); err != nil {
		return nil, fmt.Errorf("loading flags: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// Report fields by their environment variable name.
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		return strings.ToUpper(f.Tag.Get("koanf"))
	})
	return v
}

// Validate checks every field and reports all problems at once.
func (c Config) Validate() error {
	err := validate.Struct(c)
	if err == nil {
		return c.SchedulerParams().Validate()
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return err
	}
	msgs := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		msgs = append(msgs, describe(fe))
	}
	return fmt.Errorf("invalid configuration: %s", strings.Join(msgs, "; "))
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fe.Field() + " cannot be empty"
	case "oneof":
		return fmt.Sprintf("%s must be one of %s", fe.Field(), fe.Param())
	case "timezone":
		return fmt.Sprintf("%s %q is not a known time zone", fe.Field(), fe.Value())
	case "gtefield", "ltefield":
		return fmt.Sprintf("%s is inconsistent with %s", fe.Field(), strings.ToUpper(toSnake(fe.Param())))
	default:
		return fmt.Sprintf("%s failed %s=%s (got %v)", fe.Field(), fe.Tag(), fe.Param(), fe.Value())
	}
}

func toSnake(s string) string {
	var b strings.Builder
	for i, r := range s {
		if i > 0 && r >= 'A' && r <= 'Z' {
			b.WriteByte('_')
		}
		b.WriteRune(r)
	}
	return b.String()
}

// Location returns the zone that defines a study day.
func (c Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// SchedulerParams maps the scheduler options onto policy parameters.
func (c Config) SchedulerParams() flashcard.Params {
	return flashcard.Params{
		BaseInterval: c.SchedulerBaseInterval,
		MaxInterval:  c.SchedulerMaxInterval,
		InitialEase:  c.SchedulerInitialEase,
		MinEase:      c.SchedulerMinEase,
		MaxEase:      c.SchedulerMaxEase,
		HardFactor:   c.SchedulerHardFactor,
		EasyBonus:    c.SchedulerEasyBonus,
		FirstHard:    c.SchedulerFirstHard,
		FirstGood:    c.SchedulerFirstGood,
		FirstEasy:    c.SchedulerFirstEasy,
	}
}

func (c Config) Generator() generation.Config {
	return generation.Config{
		BaseURL:     c.LLMBaseURL,
		Model:       c.LLMModel,
		APIKey:      c.LLMAPIKey,
		MaxCards:    c.LLMMaxCards,
		Temperature: c.LLMTemperature,
		MaxTokens:   c.LLMMaxTokens,
	}
}

func (c Config) Study() services.StudyConfig {
	return services.StudyConfig{
		SessionSize:    c.SessionSize,
		MaxSessionSize: c.MaxSessionSize,
		NewFirst:       c.NewFirst,
		Location:       c.Location(),
	}
}

func (c Config) Generation() services.GenerationConfig {
	return services.GenerationConfig{
		MinSourceLength: c.GenerationMinSource,
		MaxSourceLength: c.GenerationMaxSource,
		RatePerMinute:   c.GenerationRatePerMinute,
		Burst:           c.GenerationBurst,
	}
}
