package generation_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vytor/flashstudy/internal/generation"
)

func TestParseCards(t *testing.T) {
	tests := []struct {
		name  string
		raw   string
		max   int
		want  int
		front string
	}{
		{"bare array", `[{"front":"Q","back":"A"},{"front":"Q2","back":"A2"}]`, 10, 2, "Q"},
		{"fenced", "```json\n[{\"front\":\"Q\",\"back\":\"A\"}]\n```", 10, 1, "Q"},
		{"wrapped object", `{"flashcards":[{"front":"Q","back":"A"}]}`, 10, 1, "Q"},
		{"cards key", `Here you go: {"cards":[{"front":" Q ","back":"A"}]}`, 10, 1, "Q"},
		{"capped", `[{"front":"1","back":"a"},{"front":"2","back":"b"},{"front":"3","back":"c"}]`, 2, 2, "1"},
		{"drops empty sides", `[{"front":"","back":"a"},{"front":"ok","back":"b"}]`, 10, 1, "ok"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cards, err := generation.ParseCards(tt.raw, tt.max)
			require.NoError(t, err)
			assert.Len(t, cards, tt.want)
			assert.Equal(t, tt.front, cards[0].Front)
		})
	}
}

func TestParseCards_Rejects(t *testing.T) {
	long := strings.Repeat("x", 201)
	for _, raw := range []string{
		"",
		"no json here",
		`[{"front":"Q"`,
		`[]`,
		`[{"front":"` + long + `","back":"a"}]`,
	} {
		_, err := generation.ParseCards(raw, 10)
		assert.ErrorIs(t, err, generation.ErrNoCards, raw)
	}
}
