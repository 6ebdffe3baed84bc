package api

import (
	"net/http"

	"github.com/vytor/flashstudy/internal/errors"
	"github.com/vytor/flashstudy/internal/models"
	"github.com/vytor/flashstudy/internal/services"
)

func (s *Server) handleStudyStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.StudyService.Stats(r.Context(), userFromContext(r.Context()).ID)
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, stats)
}

type startSessionRequest struct {
	Limit    int   `json:"limit" validate:"gte=0"`
	NewFirst *bool `json:"new_first"`
}

// handleStartSession selects the due cards and opens a session over them,
// replacing any session the user already had. The body is optional.
func (s *Server) handleStartSession(w http.ResponseWriter, r *http.Request) {
	var req startSessionRequest
	if err := s.decodeOptionalJSON(r, &req); err != nil {
		handleError(w, r, err)
		return
	}

	view, err := s.StudyService.StartSession(r.Context(), userFromContext(r.Context()).ID,
		services.SessionOptions{Limit: req.Limit, NewFirst: req.NewFirst})
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusCreated, view)
}

func (s *Server) handleCurrentSession(w http.ResponseWriter, r *http.Request) {
	view, err := s.StudyService.CurrentSession(r.Context(), userFromContext(r.Context()).ID)
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, view)
}

func (s *Server) handleEndSession(w http.ResponseWriter, r *http.Request) {
	progress, err := s.StudyService.EndSession(r.Context(), userFromContext(r.Context()).ID)
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, progress)
}

type reviewRequest struct {
	CardID  int64  `json:"card_id" validate:"required,gt=0"`
	Outcome string `json:"outcome" validate:"required"`
}

func (s *Server) handleReview(w http.ResponseWriter, r *http.Request) {
	var req reviewRequest
	if err := s.decodeJSON(r, &req); err != nil {
		handleError(w, r, err)
		return
	}

	outcome, err := models.ParseOutcome(req.Outcome)
	if err != nil {
		handleError(w, r, errors.NewValidationError("outcome", "must be one of again, hard, good, easy"))
		return
	}

	result, err := s.StudyService.RecordReview(r.Context(), userFromContext(r.Context()).ID, req.CardID, outcome)
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, result)
}
