package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/vytor/flashstudy/internal/logger"
	"github.com/vytor/flashstudy/internal/models"
	"github.com/vytor/flashstudy/internal/repository"
)

type reviewRepository struct {
	db *sql.DB
}

// NewReviewRepository creates a new ReviewRepository implementation
func NewReviewRepository(db *sql.DB) repository.ReviewRepository {
	return &reviewRepository{db: db}
}

func (r *reviewRepository) OutcomeCounts(ctx context.Context, userID int64) (map[models.Outcome]int, error) {
	log := logger.FromContext(ctx).WithPrefix("review_repo")
	log.Debug("counting outcomes: user_id=%d", userID)

	rows, err := r.db.QueryContext(ctx, `
SELECT outcome, COUNT(*)
FROM review_history
WHERE user_id = ?
GROUP BY outcome
`, userID)
	if err != nil {
		log.Error("failed to count outcomes: %v", err)
		return nil, err
	}
	defer rows.Close()

	counts := make(map[models.Outcome]int, len(models.Outcomes))
	for rows.Next() {
		var (
			name string
			n    int
		)
		if err := rows.Scan(&name, &n); err != nil {
			log.Error("failed to scan outcome row: %v", err)
			return nil, err
		}
		o, err := models.ParseOutcome(name)
		if err != nil {
			log.Warn("skipping unknown outcome %q in review history", name)
			continue
		}
		counts[o] = n
	}
	return counts, rows.Err()
}

func (r *reviewRepository) ListForCard(ctx context.Context, flashcardID int64, limit int) ([]models.ReviewHistory, error) {
	log := logger.FromContext(ctx).WithPrefix("review_repo")
	log.Debug("listing review history: flashcard_id=%d, limit=%d", flashcardID, limit)

	q := sqlBuilder.Select("id", "flashcard_id", "user_id", "outcome", "interval_seconds", "reviewed_at").
		From("review_history").
		Where(squirrel.Eq{"flashcard_id": flashcardID}).
		OrderBy("reviewed_at DESC", "id DESC")
	if limit > 0 {
		q = q.Limit(uint64(limit))
	}
	query, args, err := q.ToSql()
	if err != nil {
		log.Error("failed to build query: %v", err)
		return nil, err
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		log.Error("failed to list review history: %v", err)
		return nil, err
	}
	defer rows.Close()

	history := []models.ReviewHistory{}
	for rows.Next() {
		var (
			h       models.ReviewHistory
			outcome string
			secs    int64
		)
		if err := rows.Scan(&h.ID, &h.FlashcardID, &h.UserID, &outcome, &secs, &h.ReviewedAt); err != nil {
			log.Error("failed to scan review history row: %v", err)
			return nil, err
		}
		if h.Outcome, err = models.ParseOutcome(outcome); err != nil {
			return nil, err
		}
		h.Interval = time.Duration(secs) * time.Second
		h.ReviewedAt = h.ReviewedAt.UTC()
		history = append(history, h)
	}
	return history, rows.Err()
}
