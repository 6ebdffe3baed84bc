package generation

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/vytor/flashstudy/internal/models"
)

// ParseCards extracts proposed cards from raw model output. It accepts a bare
// JSON array or an object with a "flashcards" or "cards" array, optionally
// wrapped in a markdown code fence. Cards with an empty side or over the
// length limits are dropped. At most max cards are returned.
func ParseCards(raw string, max int) ([]models.ProposedCard, error) {
	body := stripFence(strings.TrimSpace(raw))

	var cards []models.ProposedCard
	if start := strings.IndexAny(body, "[{"); start >= 0 && body[start] == '[' {
		end := strings.LastIndex(body, "]")
		if end < start {
			return nil, fmt.Errorf("%w: unterminated array", ErrNoCards)
		}
		if err := json.Unmarshal([]byte(body[start:end+1]), &cards); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrNoCards, err)
		}
	} else if start >= 0 {
		end := strings.LastIndex(body, "}")
		if end < start {
			return nil, fmt.Errorf("%w: unterminated object", ErrNoCards)
		}
		var wrapped struct {
			Flashcards []models.ProposedCard `json:"flashcards"`
			Cards      []models.ProposedCard `json:"cards"`
		}
		if err := json.Unmarshal([]byte(body[start:end+1]), &wrapped); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrNoCards, err)
		}
		cards = append(wrapped.Flashcards, wrapped.Cards...)
	} else {
		return nil, fmt.Errorf("%w: no JSON found", ErrNoCards)
	}

	out := make([]models.ProposedCard, 0, len(cards))
	for _, c := range cards {
		c.Front = strings.TrimSpace(c.Front)
		c.Back = strings.TrimSpace(c.Back)
		if c.Front == "" || c.Back == "" {
			continue
		}
		if len([]rune(c.Front)) > models.MaxFrontLength || len([]rune(c.Back)) > models.MaxBackLength {
			continue
		}
		out = append(out, c)
		if max > 0 && len(out) == max {
			break
		}
	}
	if len(out) == 0 {
		return nil, ErrNoCards
	}
	return out, nil
}

func stripFence(s string) string {
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		s = s[nl+1:]
	}
	return strings.TrimSuffix(strings.TrimSpace(s), "```")
}
