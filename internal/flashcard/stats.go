package flashcard

import (
	"time"

	"github.com/vytor/flashstudy/internal/models"
)

// Accuracy is the share of good and easy outcomes, or 0 with no history.
func Accuracy(counts map[models.Outcome]int) float64 {
	var total, correct int
	for o, n := range counts {
		total += n
		if o.Correct() {
			correct += n
		}
	}
	if total == 0 {
		return 0
	}
	return float64(correct) / float64(total)
}

// ComputeStats derives the study statistics for one user's cards and their
// outcome history at now.
func ComputeStats(cards []models.Flashcard, counts map[models.Outcome]int, now time.Time) models.StudyStats {
	stats := models.StudyStats{
		DueToday: len(SelectDue(cards, EndOfDay(now), SelectOptions{})),
		Accuracy: Accuracy(counts),
	}
	for _, c := range cards {
		if !c.NeverReviewed() {
			stats.Studied++
		}
	}
	for _, n := range counts {
		stats.TotalReviews += n
	}
	return stats
}
