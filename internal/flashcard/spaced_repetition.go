package flashcard

import (
	"fmt"
	"math"
	"time"

	"github.com/vytor/flashstudy/internal/models"
)

const day = 24 * time.Hour

// Params are the tunable constants of the scheduling policy.
type Params struct {
	BaseInterval time.Duration `json:"base_interval"`
	MaxInterval  time.Duration `json:"max_interval"`
	InitialEase  float64       `json:"initial_ease"`
	MinEase      float64       `json:"min_ease"`
	MaxEase      float64       `json:"max_ease"`
	HardFactor   float64       `json:"hard_factor"`
	EasyBonus    float64       `json:"easy_bonus"`

	// Intervals used on the very first review, when there is no previous
	// interval to grow from. Again always uses BaseInterval.
	FirstHard time.Duration `json:"first_hard"`
	FirstGood time.Duration `json:"first_good"`
	FirstEasy time.Duration `json:"first_easy"`
}

// DefaultParams returns the SM-2 style defaults.
func DefaultParams() Params {
	return Params{
		BaseInterval: day,
		MaxInterval:  36500 * day,
		InitialEase:  2.5,
		MinEase:      1.3,
		MaxEase:      2.5,
		HardFactor:   1.2,
		EasyBonus:    1.3,
		FirstHard:    day,
		FirstGood:    day,
		FirstEasy:    4 * day,
	}
}

// Validate checks that the parameters describe a sane policy.
func (p Params) Validate() error {
	switch {
	case p.BaseInterval <= 0:
		return fmt.Errorf("base interval must be positive, got %v", p.BaseInterval)
	case p.MaxInterval < p.BaseInterval:
		return fmt.Errorf("max interval %v is below base interval %v", p.MaxInterval, p.BaseInterval)
	case p.MinEase <= 0 || p.MaxEase < p.MinEase:
		return fmt.Errorf("ease bounds [%.2f, %.2f] are invalid", p.MinEase, p.MaxEase)
	case p.InitialEase < p.MinEase || p.InitialEase > p.MaxEase:
		return fmt.Errorf("initial ease %.2f outside [%.2f, %.2f]", p.InitialEase, p.MinEase, p.MaxEase)
	case p.HardFactor < 1:
		return fmt.Errorf("hard factor must be >= 1, got %.2f", p.HardFactor)
	case p.EasyBonus < 1:
		return fmt.Errorf("easy bonus must be >= 1, got %.2f", p.EasyBonus)
	case p.FirstHard < p.BaseInterval || p.FirstGood < p.FirstHard || p.FirstEasy < p.FirstGood:
		return fmt.Errorf("first intervals must satisfy base <= hard <= good <= easy")
	}
	return nil
}

// Policy computes the next review state from a graded review.
// It never reads the clock; the caller supplies now.
type Policy struct {
	params Params
}

// NewPolicy validates p and returns a Policy using it.
func NewPolicy(p Params) (*Policy, error) {
	if err := p.Validate(); err != nil {
		return nil, fmt.Errorf("scheduler params: %w", err)
	}
	return &Policy{params: p}, nil
}

// Params returns the parameters the policy was built with.
func (p *Policy) Params() Params {
	return p.params
}

// InitialState is the state of a card that has never been reviewed.
func (p *Policy) InitialState() models.ReviewState {
	return models.ReviewState{EaseFactor: p.params.InitialEase}
}

// NextState applies outcome to cur at time now using an SM-2 variant.
// Outcomes outside Again..Easy leave the state untouched.
func (p *Policy) NextState(cur models.ReviewState, outcome models.Outcome, now time.Time) models.ReviewState {
	if !outcome.IsValid() {
		return cur
	}
	if cur.LastReviewedAt != nil && now.Before(*cur.LastReviewedAt) {
		now = *cur.LastReviewedAt
	}

	ease := cur.EaseFactor
	if ease == 0 {
		ease = p.params.InitialEase
	}
	q := float64(3 - outcome.Quality())
	ease = p.clampEase(ease + 0.1 - q*(0.08+q*0.02))

	var interval time.Duration
	switch {
	case outcome == models.Again:
		interval = p.params.BaseInterval
	case cur.NeverReviewed() || cur.Interval <= 0:
		interval = p.seed(outcome)
	default:
		prev := float64(cur.Interval)
		switch outcome {
		case models.Hard:
			interval = p.round(prev * p.params.HardFactor)
		case models.Good:
			interval = p.round(prev * ease)
		case models.Easy:
			interval = p.round(prev * ease * p.params.EasyBonus)
		}
	}

	next := cur
	next.EaseFactor = ease
	next.Interval = interval
	if outcome == models.Again {
		next.ConsecutiveCorrect = 0
	} else {
		next.ConsecutiveCorrect = cur.ConsecutiveCorrect + 1
	}
	reviewed := now
	due := now.Add(interval)
	next.LastReviewedAt = &reviewed
	next.DueAt = &due
	return next
}

// Preview returns the state each outcome would produce, for display next to
// the grading buttons.
func (p *Policy) Preview(cur models.ReviewState, now time.Time) map[models.Outcome]models.ReviewState {
	out := make(map[models.Outcome]models.ReviewState, len(models.Outcomes))
	for _, o := range models.Outcomes {
		out[o] = p.NextState(cur, o, now)
	}
	return out
}

func (p *Policy) seed(outcome models.Outcome) time.Duration {
	switch outcome {
	case models.Hard:
		return p.params.FirstHard
	case models.Good:
		return p.params.FirstGood
	case models.Easy:
		return p.params.FirstEasy
	default:
		return p.params.BaseInterval
	}
}

func (p *Policy) clampEase(ef float64) float64 {
	return math.Min(p.params.MaxEase, math.Max(p.params.MinEase, ef))
}

// round snaps a grown interval to whole days (or minutes below one day) and
// keeps it within [BaseInterval, MaxInterval].
func (p *Policy) round(raw float64) time.Duration {
	if raw >= float64(p.params.MaxInterval) {
		return p.params.MaxInterval
	}
	var d time.Duration
	if raw >= float64(day) {
		d = time.Duration(math.Round(raw/float64(day))) * day
	} else {
		d = time.Duration(math.Round(raw/float64(time.Minute))) * time.Minute
	}
	if d < p.params.BaseInterval {
		d = p.params.BaseInterval
	}
	if d > p.params.MaxInterval {
		d = p.params.MaxInterval
	}
	return d
}
