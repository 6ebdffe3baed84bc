package api

import (
	"net/http"

	"github.com/vytor/flashstudy/internal/logger"
	"github.com/vytor/flashstudy/internal/models"
	"github.com/vytor/flashstudy/internal/services"
)

type flashcardListResponse struct {
	Flashcards []models.Flashcard `json:"flashcards"`
	Total      int                `json:"total"`
	Limit      int                `json:"limit"`
	Offset     int                `json:"offset"`
}

func (s *Server) handleListFlashcards(w http.ResponseWriter, r *http.Request) {
	user := userFromContext(r.Context())

	limit, err := queryInt(r, "limit", 50)
	if err != nil {
		handleError(w, r, err)
		return
	}
	offset, err := queryInt(r, "offset", 0)
	if err != nil {
		handleError(w, r, err)
		return
	}

	filter := models.FlashcardFilter{
		UserID:  user.ID,
		Source:  models.Source(r.URL.Query().Get("source")),
		OrderBy: r.URL.Query().Get("order_by"),
		Limit:   limit,
		Offset:  offset,
	}
	cards, total, err := s.FlashcardService.ListFlashcards(r.Context(), filter)
	if err != nil {
		handleError(w, r, err)
		return
	}
	if cards == nil {
		cards = []models.Flashcard{}
	}

	writeJSON(w, r, http.StatusOK, flashcardListResponse{
		Flashcards: cards,
		Total:      total,
		Limit:      limit,
		Offset:     offset,
	})
}

type createFlashcardsRequest struct {
	Flashcards []services.FlashcardInput `json:"flashcards" validate:"required,min=1,max=100"`
}

// handleCreateFlashcards saves one or more cards. Per-item failures do not
// fail the request; the response is 201 when every item was stored and 207
// otherwise.
func (s *Server) handleCreateFlashcards(w http.ResponseWriter, r *http.Request) {
	user := userFromContext(r.Context())

	var req createFlashcardsRequest
	if err := s.decodeJSON(r, &req); err != nil {
		handleError(w, r, err)
		return
	}

	result, err := s.FlashcardService.CreateFlashcards(r.Context(), user.ID, req.Flashcards)
	if err != nil {
		handleError(w, r, err)
		return
	}

	status := http.StatusCreated
	if result.Failed > 0 {
		status = http.StatusMultiStatus
	}
	writeJSON(w, r, status, result)
}

func (s *Server) handleGetFlashcard(w http.ResponseWriter, r *http.Request) {
	id, err := urlID(r, "id")
	if err != nil {
		handleError(w, r, err)
		return
	}

	card, err := s.FlashcardService.GetFlashcard(r.Context(), userFromContext(r.Context()).ID, id)
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, card)
}

type updateFlashcardRequest struct {
	Front string `json:"front" validate:"required"`
	Back  string `json:"back" validate:"required"`
}

func (s *Server) handleUpdateFlashcard(w http.ResponseWriter, r *http.Request) {
	id, err := urlID(r, "id")
	if err != nil {
		handleError(w, r, err)
		return
	}

	var req updateFlashcardRequest
	if err := s.decodeJSON(r, &req); err != nil {
		handleError(w, r, err)
		return
	}

	card, err := s.FlashcardService.UpdateFlashcard(r.Context(), userFromContext(r.Context()).ID, id, req.Front, req.Back)
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, card)
}

func (s *Server) handleDeleteFlashcard(w http.ResponseWriter, r *http.Request) {
	id, err := urlID(r, "id")
	if err != nil {
		handleError(w, r, err)
		return
	}

	if err := s.FlashcardService.DeleteFlashcard(r.Context(), userFromContext(r.Context()).ID, id); err != nil {
		handleError(w, r, err)
		return
	}

	logger.FromContext(r.Context()).Info("flashcard %d deleted", id)
	writeJSON(w, r, http.StatusOK, map[string]int64{"id": id})
}

// handleCardHistory lists a card's recorded outcomes, newest first.
func (s *Server) handleCardHistory(w http.ResponseWriter, r *http.Request) {
	id, err := urlID(r, "id")
	if err != nil {
		handleError(w, r, err)
		return
	}
	limit, err := queryInt(r, "limit", 50)
	if err != nil {
		handleError(w, r, err)
		return
	}

	history, err := s.StudyService.CardHistory(r.Context(), userFromContext(r.Context()).ID, id, limit)
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, history)
}
