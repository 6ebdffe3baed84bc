package api

import (
	"net/http"
)

type createUserRequest struct {
	Username string `json:"username" validate:"required"`
}

// handleCreateUser selects the user with the given name, creating it on first
// use, and remembers it in a cookie.
func (s *Server) handleCreateUser(w http.ResponseWriter, r *http.Request) {
	var req createUserRequest
	if err := s.decodeJSON(r, &req); err != nil {
		handleError(w, r, err)
		return
	}

	user, err := s.UserService.CreateUser(r.Context(), req.Username)
	if err != nil {
		handleError(w, r, err)
		return
	}

	s.setUserCookie(w, user.ID)
	writeJSON(w, r, http.StatusOK, user)
}

func (s *Server) handleCurrentUser(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, userFromContext(r.Context()))
}
