package api

import (
	"net/http"
	"strconv"
)

type submitGenerationRequest struct {
	SourceText string `json:"source_text" validate:"required"`
}

// handleSubmitGeneration stores a pending generation and queues it; clients
// poll GET /api/generations/{id} for the candidates.
func (s *Server) handleSubmitGeneration(w http.ResponseWriter, r *http.Request) {
	var req submitGenerationRequest
	if err := s.decodeJSON(r, &req); err != nil {
		handleError(w, r, err)
		return
	}

	g, err := s.GenerationService.Submit(r.Context(), userFromContext(r.Context()).ID, req.SourceText)
	if err != nil {
		handleError(w, r, err)
		return
	}

	w.Header().Set("Location", "/api/generations/"+strconv.FormatInt(g.ID, 10))
	writeJSON(w, r, http.StatusAccepted, g)
}

func (s *Server) handleListGenerations(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit", 20)
	if err != nil {
		handleError(w, r, err)
		return
	}
	offset, err := queryInt(r, "offset", 0)
	if err != nil {
		handleError(w, r, err)
		return
	}

	list, err := s.GenerationService.ListGenerations(r.Context(), userFromContext(r.Context()).ID, limit, offset)
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, list)
}

func (s *Server) handleGetGeneration(w http.ResponseWriter, r *http.Request) {
	id, err := urlID(r, "id")
	if err != nil {
		handleError(w, r, err)
		return
	}

	g, err := s.GenerationService.GetGeneration(r.Context(), userFromContext(r.Context()).ID, id)
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, g)
}

// candidateIDs parses the generation and candidate ids of a candidate route.
func candidateIDs(r *http.Request) (int64, int64, error) {
	genID, err := urlID(r, "id")
	if err != nil {
		return 0, 0, err
	}
	candID, err := urlID(r, "cid")
	if err != nil {
		return 0, 0, err
	}
	return genID, candID, nil
}

func (s *Server) handleAcceptCandidate(w http.ResponseWriter, r *http.Request) {
	genID, candID, err := candidateIDs(r)
	if err != nil {
		handleError(w, r, err)
		return
	}

	c, err := s.GenerationService.AcceptCandidate(r.Context(), userFromContext(r.Context()).ID, genID, candID)
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, c)
}

func (s *Server) handleRejectCandidate(w http.ResponseWriter, r *http.Request) {
	genID, candID, err := candidateIDs(r)
	if err != nil {
		handleError(w, r, err)
		return
	}

	c, err := s.GenerationService.RejectCandidate(r.Context(), userFromContext(r.Context()).ID, genID, candID)
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, c)
}

type editCandidateRequest struct {
	Front string `json:"front" validate:"required"`
	Back  string `json:"back" validate:"required"`
}

func (s *Server) handleEditCandidate(w http.ResponseWriter, r *http.Request) {
	genID, candID, err := candidateIDs(r)
	if err != nil {
		handleError(w, r, err)
		return
	}

	var req editCandidateRequest
	if err := s.decodeJSON(r, &req); err != nil {
		handleError(w, r, err)
		return
	}

	c, err := s.GenerationService.EditCandidate(r.Context(), userFromContext(r.Context()).ID, genID, candID, req.Front, req.Back)
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, c)
}

func (s *Server) handleAcceptAll(w http.ResponseWriter, r *http.Request) {
	genID, err := urlID(r, "id")
	if err != nil {
		handleError(w, r, err)
		return
	}

	result, err := s.GenerationService.AcceptAll(r.Context(), userFromContext(r.Context()).ID, genID)
	if err != nil {
		handleError(w, r, err)
		return
	}

	status := http.StatusOK
	if result.Failed > 0 {
		status = http.StatusMultiStatus
	}
	writeJSON(w, r, status, result)
}
