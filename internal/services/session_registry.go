package services

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/vytor/flashstudy/internal/metrics"
	"github.com/vytor/flashstudy/internal/models"
)

// SessionRegistry holds at most one in-memory study session per user.
// Sessions idle for longer than the ttl are dropped on next access.
type SessionRegistry struct {
	mu       sync.Mutex
	sessions map[int64]*models.StudySession
	ttl      time.Duration
}

func NewSessionRegistry(ttl time.Duration) *SessionRegistry {
	return &SessionRegistry{
		sessions: make(map[int64]*models.StudySession),
		ttl:      ttl,
	}
}

// Start replaces any session of userID with a new one over cardIDs. A session
// with no cards is exhausted on creation and is not kept.
func (r *SessionRegistry) Start(userID int64, cardIDs []int64, now time.Time) models.SessionProgress {
	s := &models.StudySession{
		ID:           uuid.NewString(),
		UserID:       userID,
		CardIDs:      append([]int64(nil), cardIDs...),
		Counts:       make(map[models.Outcome]int, len(models.Outcomes)),
		StartedAt:    now,
		LastActiveAt: now,
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if s.Done() {
		r.removeLocked(userID)
	} else {
		if _, ok := r.sessions[userID]; !ok {
			metrics.ActiveSessions.Inc()
		}
		r.sessions[userID] = s
	}
	return s.Progress()
}

// Get returns the progress of the user's live session.
func (r *SessionRegistry) Get(userID int64, now time.Time) (models.SessionProgress, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s := r.liveLocked(userID, now)
	if s == nil {
		return models.SessionProgress{}, false
	}
	return s.Progress(), true
}

// Advance counts outcome and moves the cursor when cardID is the session's
// current card. Reviews of other cards leave the session untouched. An
// exhausted session is removed; its final progress is still returned.
func (r *SessionRegistry) Advance(userID, cardID int64, outcome models.Outcome, now time.Time) (models.SessionProgress, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s := r.liveLocked(userID, now)
	if s == nil {
		return models.SessionProgress{}, false
	}
	if current, ok := s.Current(); ok && current == cardID {
		s.Counts[outcome]++
		s.Cursor++
		s.LastActiveAt = now
	}
	if s.Done() {
		r.removeLocked(userID)
	}
	return s.Progress(), true
}

// Skip moves past the current card without counting an outcome, for cards
// deleted after the session started.
func (r *SessionRegistry) Skip(userID int64, now time.Time) (models.SessionProgress, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s := r.liveLocked(userID, now)
	if s == nil {
		return models.SessionProgress{}, false
	}
	if s.Done() {
		return s.Progress(), true
	}
	s.Cursor++
	s.Skipped++
	if s.Done() {
		r.removeLocked(userID)
	}
	return s.Progress(), true
}

// End removes the user's session and returns its final progress.
func (r *SessionRegistry) End(userID int64) (models.SessionProgress, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[userID]
	if !ok {
		return models.SessionProgress{}, false
	}
	r.removeLocked(userID)
	return s.Progress(), true
}

// Len is the number of live sessions.
func (r *SessionRegistry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

func (r *SessionRegistry) liveLocked(userID int64, now time.Time) *models.StudySession {
	s, ok := r.sessions[userID]
	if !ok {
		return nil
	}
	if r.ttl > 0 && now.Sub(s.LastActiveAt) > r.ttl {
		r.removeLocked(userID)
		return nil
	}
	return s
}

func (r *SessionRegistry) removeLocked(userID int64) {
	if _, ok := r.sessions[userID]; ok {
		delete(r.sessions, userID)
		metrics.ActiveSessions.Dec()
	}
}
