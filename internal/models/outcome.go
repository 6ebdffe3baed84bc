package models

import (
	"encoding"
	"encoding/json"
	"errors"
	"fmt"
)

// Outcome is the grade a user gives a card after seeing its back.
type Outcome int

const (
	Again Outcome = iota + 1
	Hard
	Good
	Easy
)

// ErrInvalidOutcome is returned when decoding an unknown grade.
var ErrInvalidOutcome = errors.New("invalid outcome")

// Outcomes lists every valid grade in ascending quality.
var Outcomes = []Outcome{Again, Hard, Good, Easy}

var (
	outcomeNames  = [...]string{Again: "again", Hard: "hard", Good: "good", Easy: "easy"}
	outcomeByName = map[string]Outcome{
		"again": Again,
		"hard":  Hard,
		"good":  Good,
		"easy":  Easy,
	}
)

var (
	_ fmt.Stringer             = Outcome(0)
	_ json.Marshaler           = Outcome(0)
	_ json.Unmarshaler         = (*Outcome)(nil)
	_ encoding.TextMarshaler   = Outcome(0)
	_ encoding.TextUnmarshaler = (*Outcome)(nil)
)

func (o Outcome) String() string {
	if o.IsValid() {
		return outcomeNames[o]
	}
	return fmt.Sprintf("Outcome(%d)", int(o))
}

// IsValid reports whether o is one of Again through Easy.
func (o Outcome) IsValid() bool {
	return o >= Again && o <= Easy
}

// Correct reports whether the outcome counts towards accuracy.
func (o Outcome) Correct() bool {
	return o == Good || o == Easy
}

// Quality maps the outcome onto the 0..3 SM-2 quality scale.
func (o Outcome) Quality() int {
	return int(o) - 1
}

// ParseOutcome parses a lowercase grade name.
func ParseOutcome(s string) (Outcome, error) {
	o, ok := outcomeByName[s]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrInvalidOutcome, s)
	}
	return o, nil
}

func (o Outcome) MarshalText() ([]byte, error) {
	if !o.IsValid() {
		return nil, fmt.Errorf("%w: %d", ErrInvalidOutcome, int(o))
	}
	return []byte(outcomeNames[o]), nil
}

func (o *Outcome) UnmarshalText(text []byte) error {
	v, err := ParseOutcome(string(text))
	if err != nil {
		return err
	}
	*o = v
	return nil
}

func (o Outcome) MarshalJSON() ([]byte, error) {
	text, err := o.MarshalText()
	if err != nil {
		return nil, err
	}
	return json.Marshal(string(text))
}

func (o *Outcome) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidOutcome, data)
	}
	return o.UnmarshalText([]byte(s))
}
