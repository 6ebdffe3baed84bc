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

var (
	generationColumns = []string{
		"id", "user_id", "model", "source_text_hash", "source_text_length", "status",
		"error_message", "generated_count", "accepted_unedited_count", "accepted_edited_count",
		"duration_ms", "created_at", "completed_at",
	}
	candidateColumns = []string{
		"id", "generation_id", "position", "front", "back", "status", "flashcard_id", "updated_at",
	}
)

type generationRepository struct {
	db *sql.DB
}

// NewGenerationRepository creates a new GenerationRepository implementation
func NewGenerationRepository(db *sql.DB) repository.GenerationRepository {
	return &generationRepository{db: db}
}

func scanGeneration(s rowScanner) (models.Generation, error) {
	var (
		g           models.Generation
		completedAt sql.NullTime
	)
	err := s.Scan(&g.ID, &g.UserID, &g.Model, &g.SourceTextHash, &g.SourceTextLength, &g.Status,
		&g.ErrorMessage, &g.GeneratedCount, &g.AcceptedUneditedCount, &g.AcceptedEditedCount,
		&g.DurationMS, &g.CreatedAt, &completedAt)
	if err != nil {
		return g, err
	}
	g.CreatedAt = g.CreatedAt.UTC()
	g.CompletedAt = timePtr(completedAt)
	return g, nil
}

func scanCandidate(s rowScanner) (models.Candidate, error) {
	var (
		c           models.Candidate
		flashcardID sql.NullInt64
	)
	err := s.Scan(&c.ID, &c.GenerationID, &c.Position, &c.Front, &c.Back, &c.Status, &flashcardID, &c.UpdatedAt)
	if err != nil {
		return c, err
	}
	c.FlashcardID = int64Ptr(flashcardID)
	c.UpdatedAt = c.UpdatedAt.UTC()
	return c, nil
}

func (r *generationRepository) Create(ctx context.Context, g models.Generation) (int64, error) {
	log := logger.FromContext(ctx).WithPrefix("generation_repo")
	log.Debug("creating generation: user_id=%d, model=%s, length=%d", g.UserID, g.Model, g.SourceTextLength)

	status := g.Status
	if status == "" {
		status = models.GenerationPending
	}
	res, err := r.db.ExecContext(ctx, `
INSERT INTO generations (user_id, model, source_text_hash, source_text_length, status, created_at)
VALUES (?, ?, ?, ?, ?, ?)
`, g.UserID, g.Model, g.SourceTextHash, g.SourceTextLength, string(status), utc(g.CreatedAt))
	if err != nil {
		log.Error("failed to create generation: %v", err)
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		log.Error("failed to get generation id: %v", err)
		return 0, err
	}
	log.Debug("generation created: id=%d", id)
	return id, nil
}

func (r *generationRepository) Get(ctx context.Context, id int64) (*models.Generation, error) {
	log := logger.FromContext(ctx).WithPrefix("generation_repo")
	log.Debug("getting generation: id=%d", id)

	query, args, err := sqlBuilder.Select(generationColumns...).From("generations").
		Where(squirrel.Eq{"id": id}).ToSql()
	if err != nil {
		log.Error("failed to build query: %v", err)
		return nil, err
	}
	g, err := scanGeneration(r.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		log.Debug("generation not found: id=%d", id)
		return nil, nil
	}
	if err != nil {
		log.Error("failed to get generation: %v", err)
		return nil, err
	}
	return &g, nil
}

func (r *generationRepository) ListByUser(ctx context.Context, userID int64, limit, offset int) ([]models.Generation, error) {
	log := logger.FromContext(ctx).WithPrefix("generation_repo")
	log.Debug("listing generations: user_id=%d", userID)

	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	query, args, err := sqlBuilder.Select(generationColumns...).From("generations").
		Where(squirrel.Eq{"user_id": userID}).
		OrderBy("created_at DESC", "id DESC").
		Limit(uint64(limit)).Offset(uint64(offset)).
		ToSql()
	if err != nil {
		log.Error("failed to build query: %v", err)
		return nil, err
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		log.Error("failed to list generations: %v", err)
		return nil, err
	}
	defer rows.Close()

	out := []models.Generation{}
	for rows.Next() {
		g, err := scanGeneration(rows)
		if err != nil {
			log.Error("failed to scan generation row: %v", err)
			return nil, err
		}
		out = append(out, g)
	}
	return out, rows.Err()
}

// Complete stores the proposed cards and marks a pending generation completed.
func (r *generationRepository) Complete(ctx context.Context, id int64, cards []models.ProposedCard, durationMS int64, at time.Time) error {
	log := logger.FromContext(ctx).WithPrefix("generation_repo")
	log.Debug("completing generation: id=%d, candidates=%d", id, len(cards))

	return tx(ctx, r.db, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
UPDATE generations
SET status = ?, generated_count = ?, duration_ms = ?, completed_at = ?
WHERE id = ? AND status = ?
`, string(models.GenerationCompleted), len(cards), durationMS, utc(at), id, string(models.GenerationPending))
		if err != nil {
			log.Error("failed to complete generation: %v", err)
			return err
		}
		if err := requireAffected(res, "pending generation", id); err != nil {
			return err
		}

		stmt, err := tx.PrepareContext(ctx, `
INSERT INTO generation_candidates (generation_id, position, front, back, status, updated_at)
VALUES (?, ?, ?, ?, ?, ?)
`)
		if err != nil {
			log.Error("failed to prepare candidate insert: %v", err)
			return err
		}
		defer stmt.Close()

		for i, c := range cards {
			if _, err := stmt.ExecContext(ctx, id, i, c.Front, c.Back, string(models.CandidateProposed), utc(at)); err != nil {
				log.Error("failed to insert candidate %d for generation %d: %v", i, id, err)
				return err
			}
		}
		return nil
	})
}

func (r *generationRepository) Fail(ctx context.Context, id int64, message string, durationMS int64, at time.Time) error {
	log := logger.FromContext(ctx).WithPrefix("generation_repo")
	log.Debug("failing generation: id=%d", id)

	res, err := r.db.ExecContext(ctx, `
UPDATE generations
SET status = ?, error_message = ?, duration_ms = ?, completed_at = ?
WHERE id = ? AND status = ?
`, string(models.GenerationFailed), message, durationMS, utc(at), id, string(models.GenerationPending))
	if err != nil {
		log.Error("failed to mark generation failed: %v", err)
		return err
	}
	return requireAffected(res, "pending generation", id)
}

func (r *generationRepository) FailPending(ctx context.Context, message string, at time.Time) (int64, error) {
	log := logger.FromContext(ctx).WithPrefix("generation_repo")

	res, err := r.db.ExecContext(ctx, `
UPDATE generations
SET status = ?, error_message = ?, completed_at = ?
WHERE status = ?
`, string(models.GenerationFailed), message, utc(at), string(models.GenerationPending))
	if err != nil {
		log.Error("failed to fail pending generations: %v", err)
		return 0, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	log.Debug("failed %d pending generations", n)
	return n, nil
}

func (r *generationRepository) Candidates(ctx context.Context, generationID int64) ([]models.Candidate, error) {
	log := logger.FromContext(ctx).WithPrefix("generation_repo")
	log.Debug("listing candidates: generation_id=%d", generationID)

	query, args, err := sqlBuilder.Select(candidateColumns...).From("generation_candidates").
		Where(squirrel.Eq{"generation_id": generationID}).
		OrderBy("position ASC").
		ToSql()
	if err != nil {
		log.Error("failed to build query: %v", err)
		return nil, err
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		log.Error("failed to list candidates: %v", err)
		return nil, err
	}
	defer rows.Close()

	out := []models.Candidate{}
	for rows.Next() {
		c, err := scanCandidate(rows)
		if err != nil {
			log.Error("failed to scan candidate row: %v", err)
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r *generationRepository) GetCandidate(ctx context.Context, generationID, candidateID int64) (*models.Candidate, error) {
	log := logger.FromContext(ctx).WithPrefix("generation_repo")

	query, args, err := sqlBuilder.Select(candidateColumns...).From("generation_candidates").
		Where(squirrel.Eq{"id": candidateID, "generation_id": generationID}).
		ToSql()
	if err != nil {
		log.Error("failed to build query: %v", err)
		return nil, err
	}
	c, err := scanCandidate(r.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		log.Debug("candidate not found: generation_id=%d, id=%d", generationID, candidateID)
		return nil, nil
	}
	if err != nil {
		log.Error("failed to get candidate: %v", err)
		return nil, err
	}
	return &c, nil
}

func (r *generationRepository) AcceptCandidate(ctx context.Context, c models.Candidate, status models.CandidateStatus, card models.Flashcard) (int64, error) {
	log := logger.FromContext(ctx).WithPrefix("generation_repo")
	log.Debug("accepting candidate: generation_id=%d, id=%d, status=%s", c.GenerationID, c.ID, status)

	counter := "accepted_unedited_count"
	switch status {
	case models.CandidateAccepted:
	case models.CandidateEdited:
		counter = "accepted_edited_count"
	default:
		return 0, fmt.Errorf("candidate %d: cannot accept into status %q", c.ID, status)
	}

	var cardID int64
	err := tx(ctx, r.db, func(tx *sql.Tx) error {
		id, err := insertFlashcard(ctx, tx, card)
		if err != nil {
			log.Error("failed to insert flashcard for candidate %d: %v", c.ID, err)
			return err
		}

		res, err := tx.ExecContext(ctx, `
UPDATE generation_candidates
SET status = ?, front = ?, back = ?, flashcard_id = ?, updated_at = ?
WHERE id = ? AND generation_id = ? AND status = ?
`, string(status), c.Front, c.Back, id, utc(card.CreatedAt), c.ID, c.GenerationID, string(models.CandidateProposed))
		if err != nil {
			log.Error("failed to update candidate %d: %v", c.ID, err)
			return err
		}
		if n, err := res.RowsAffected(); err != nil {
			return err
		} else if n == 0 {
			return fmt.Errorf("candidate %d: %w", c.ID, repository.ErrConflict)
		}

		if _, err := tx.ExecContext(ctx,
			`UPDATE generations SET `+counter+` = `+counter+` + 1 WHERE id = ?`, c.GenerationID); err != nil {
			log.Error("failed to bump %s for generation %d: %v", counter, c.GenerationID, err)
			return err
		}
		cardID = id
		return nil
	})
	if err != nil {
		return 0, err
	}
	log.Debug("candidate %d accepted as flashcard %d", c.ID, cardID)
	return cardID, nil
}

func (r *generationRepository) RejectCandidate(ctx context.Context, generationID, candidateID int64, at time.Time) error {
	log := logger.FromContext(ctx).WithPrefix("generation_repo")
	log.Debug("rejecting candidate: generation_id=%d, id=%d", generationID, candidateID)

	res, err := r.db.ExecContext(ctx, `
UPDATE generation_candidates
SET status = ?, updated_at = ?
WHERE id = ? AND generation_id = ? AND status = ?
`, string(models.CandidateRejected), utc(at), candidateID, generationID, string(models.CandidateProposed))
	if err != nil {
		log.Error("failed to reject candidate: %v", err)
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("candidate %d: %w", candidateID, repository.ErrConflict)
	}
	return nil
}
