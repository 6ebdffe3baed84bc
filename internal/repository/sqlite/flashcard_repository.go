package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/vytor/flashstudy/internal/logger"
	"github.com/vytor/flashstudy/internal/models"
	"github.com/vytor/flashstudy/internal/repository"
)

var flashcardColumns = []string{
	"id", "user_id", "front", "back", "source", "generation_id",
	"last_reviewed_at", "due_at", "interval_seconds", "ease_factor",
	"consecutive_correct", "version", "created_at", "updated_at",
}

type flashcardRepository struct {
	db *sql.DB
}

// NewFlashcardRepository creates a new FlashcardRepository implementation
func NewFlashcardRepository(db *sql.DB) repository.FlashcardRepository {
	return &flashcardRepository{db: db}
}

func scanFlashcard(s rowScanner) (models.Flashcard, error) {
	var (
		c              models.Flashcard
		generationID   sql.NullInt64
		lastReviewedAt sql.NullTime
		dueAt          sql.NullTime
		intervalSecs   int64
	)
	err := s.Scan(&c.ID, &c.UserID, &c.Front, &c.Back, &c.Source, &generationID,
		&lastReviewedAt, &dueAt, &intervalSecs, &c.EaseFactor,
		&c.ConsecutiveCorrect, &c.Version, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return c, err
	}
	c.GenerationID = int64Ptr(generationID)
	c.LastReviewedAt = timePtr(lastReviewedAt)
	c.DueAt = timePtr(dueAt)
	c.Interval = time.Duration(intervalSecs) * time.Second
	c.CreatedAt = c.CreatedAt.UTC()
	c.UpdatedAt = c.UpdatedAt.UTC()
	return c, nil
}

func (r *flashcardRepository) Get(ctx context.Context, id int64) (*models.Flashcard, error) {
	log := logger.FromContext(ctx).WithPrefix("flashcard_repo")
	log.Debug("getting flashcard: id=%d", id)

	query, args, err := sqlBuilder.Select(flashcardColumns...).From("flashcards").
		Where(squirrel.Eq{"id": id}).ToSql()
	if err != nil {
		log.Error("failed to build query: %v", err)
		return nil, err
	}

	c, err := scanFlashcard(r.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		log.Debug("flashcard not found: id=%d", id)
		return nil, nil
	}
	if err != nil {
		log.Error("failed to get flashcard: %v", err)
		return nil, err
	}
	return &c, nil
}

func applyFlashcardFilter(q squirrel.SelectBuilder, filter models.FlashcardFilter) squirrel.SelectBuilder {
	if filter.UserID != 0 {
		q = q.Where(squirrel.Eq{"user_id": filter.UserID})
	}
	if filter.Source != "" {
		q = q.Where(squirrel.Eq{"source": string(filter.Source)})
	}
	return q
}

func (r *flashcardRepository) List(ctx context.Context, filter models.FlashcardFilter) ([]models.Flashcard, error) {
	log := logger.FromContext(ctx).WithPrefix("flashcard_repo")
	log.Debug("listing flashcards: user_id=%d, source=%s, order=%s", filter.UserID, filter.Source, filter.OrderBy)

	query := applyFlashcardFilter(sqlBuilder.Select(flashcardColumns...).From("flashcards"), filter)

	// Safe ORDER BY with validation
	switch filter.OrderBy {
	case "due_at":
		query = query.OrderBy("due_at IS NULL", "due_at ASC", "id ASC")
	case "updated_at":
		query = query.OrderBy("updated_at DESC", "id DESC")
	default:
		query = query.OrderBy("created_at DESC", "id DESC")
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 200
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}
	query = query.Limit(uint64(limit)).Offset(uint64(offset))

	return r.query(ctx, query)
}

func (r *flashcardRepository) Count(ctx context.Context, filter models.FlashcardFilter) (int, error) {
	log := logger.FromContext(ctx).WithPrefix("flashcard_repo")

	query, args, err := applyFlashcardFilter(sqlBuilder.Select("COUNT(*)").From("flashcards"), filter).ToSql()
	if err != nil {
		log.Error("failed to build query: %v", err)
		return 0, err
	}
	var count int
	if err := r.db.QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		log.Error("failed to count flashcards: %v", err)
		return 0, err
	}
	return count, nil
}

// ListByUser returns every card of a user in insertion order.
func (r *flashcardRepository) ListByUser(ctx context.Context, userID int64) ([]models.Flashcard, error) {
	logger.FromContext(ctx).WithPrefix("flashcard_repo").Debug("listing all flashcards: user_id=%d", userID)

	query := sqlBuilder.Select(flashcardColumns...).From("flashcards").
		Where(squirrel.Eq{"user_id": userID}).
		OrderBy("created_at ASC", "id ASC")
	return r.query(ctx, query)
}

func (r *flashcardRepository) query(ctx context.Context, q squirrel.SelectBuilder) ([]models.Flashcard, error) {
	log := logger.FromContext(ctx).WithPrefix("flashcard_repo")

	query, args, err := q.ToSql()
	if err != nil {
		log.Error("failed to build query: %v", err)
		return nil, err
	}
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		log.Error("failed to query flashcards: %v", err)
		return nil, err
	}
	defer rows.Close()

	cards := []models.Flashcard{}
	for rows.Next() {
		c, err := scanFlashcard(rows)
		if err != nil {
			log.Error("failed to scan flashcard row: %v", err)
			return nil, err
		}
		cards = append(cards, c)
	}
	log.Debug("found %d flashcards", len(cards))
	return cards, rows.Err()
}

const insertFlashcardSQL = `
INSERT INTO flashcards (
    user_id, front, back, source, generation_id,
    last_reviewed_at, due_at, interval_seconds, ease_factor, consecutive_correct,
    created_at, updated_at
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
`

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func insertFlashcard(ctx context.Context, db execer, c models.Flashcard) (int64, error) {
	created := utc(c.CreatedAt)
	updated := c.UpdatedAt
	if updated.IsZero() {
		updated = created
	}
	res, err := db.ExecContext(ctx, insertFlashcardSQL,
		c.UserID, c.Front, c.Back, string(c.Source), nullInt64(c.GenerationID),
		nullTime(c.LastReviewedAt), nullTime(c.DueAt), int64(c.Interval/time.Second), c.EaseFactor, c.ConsecutiveCorrect,
		created, utc(updated))
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func (r *flashcardRepository) Insert(ctx context.Context, c models.Flashcard) (int64, error) {
	log := logger.FromContext(ctx).WithPrefix("flashcard_repo")
	log.Debug("inserting flashcard: user_id=%d, source=%s", c.UserID, c.Source)

	id, err := insertFlashcard(ctx, r.db, c)
	if err != nil {
		log.Error("failed to insert flashcard: %v", err)
		return 0, err
	}
	log.Debug("flashcard inserted: id=%d", id)
	return id, nil
}

func (r *flashcardRepository) InsertBatch(ctx context.Context, cards []models.Flashcard) ([]int64, error) {
	log := logger.FromContext(ctx).WithPrefix("flashcard_repo")
	log.Debug("batch inserting %d flashcards", len(cards))

	if len(cards) == 0 {
		return nil, nil
	}

	ids := make([]int64, 0, len(cards))
	err := tx(ctx, r.db, func(tx *sql.Tx) error {
		for _, c := range cards {
			id, err := insertFlashcard(ctx, tx, c)
			if err != nil {
				log.Error("failed to insert flashcard for user_id=%d: %v", c.UserID, err)
				return err
			}
			ids = append(ids, id)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Debug("batch insert completed, %d flashcards inserted", len(ids))
	return ids, nil
}

func (r *flashcardRepository) UpdateContent(ctx context.Context, c models.Flashcard) error {
	log := logger.FromContext(ctx).WithPrefix("flashcard_repo")
	log.Debug("updating flashcard content: id=%d", c.ID)

	res, err := r.db.ExecContext(ctx, `
UPDATE flashcards
SET front = ?, back = ?, source = ?, updated_at = ?
WHERE id = ? AND user_id = ?
`, c.Front, c.Back, string(c.Source), utc(c.UpdatedAt), c.ID, c.UserID)
	if err != nil {
		log.Error("failed to update flashcard: %v", err)
		return err
	}
	return requireAffected(res, "flashcard", c.ID)
}

func (r *flashcardRepository) Delete(ctx context.Context, id, userID int64) error {
	log := logger.FromContext(ctx).WithPrefix("flashcard_repo")
	log.Debug("deleting flashcard: id=%d, user_id=%d", id, userID)

	res, err := r.db.ExecContext(ctx, `DELETE FROM flashcards WHERE id = ? AND user_id = ?`, id, userID)
	if err != nil {
		log.Error("failed to delete flashcard: %v", err)
		return err
	}
	return requireAffected(res, "flashcard", id)
}

func (r *flashcardRepository) PutReviewState(ctx context.Context, id, expectedVersion int64, s models.ReviewState, entry models.ReviewHistory) error {
	log := logger.FromContext(ctx).WithPrefix("flashcard_repo")
	log.Debug("storing review state: id=%d, version=%d, interval=%.1fd, ease=%.2f", id, expectedVersion, s.IntervalDays(), s.EaseFactor)

	return tx(ctx, r.db, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
UPDATE flashcards
SET last_reviewed_at = ?, due_at = ?, interval_seconds = ?, ease_factor = ?,
    consecutive_correct = ?, version = version + 1
WHERE id = ? AND version = ?
`, nullTime(s.LastReviewedAt), nullTime(s.DueAt), int64(s.Interval/time.Second), s.EaseFactor,
			s.ConsecutiveCorrect, id, expectedVersion)
		if err != nil {
			log.Error("failed to update review state: %v", err)
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			var exists int
			err := tx.QueryRowContext(ctx, `SELECT 1 FROM flashcards WHERE id = ?`, id).Scan(&exists)
			if errors.Is(err, sql.ErrNoRows) {
				return fmt.Errorf("flashcard %d: %w", id, repository.ErrNotFound)
			}
			if err != nil {
				return err
			}
			log.Warn("version conflict on flashcard %d: expected version %d", id, expectedVersion)
			return fmt.Errorf("flashcard %d: %w", id, repository.ErrConflict)
		}

		if _, err := tx.ExecContext(ctx, `
INSERT INTO review_history (flashcard_id, user_id, outcome, interval_seconds, reviewed_at)
VALUES (?, ?, ?, ?, ?)
`, id, entry.UserID, entry.Outcome.String(), int64(entry.Interval/time.Second), utc(entry.ReviewedAt)); err != nil {
			log.Error("failed to insert review history: %v", err)
			return err
		}
		return nil
	})
}

func requireAffected(res sql.Result, entity string, id int64) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%s %d: %w", entity, id, repository.ErrNotFound)
	}
	return nil
}
