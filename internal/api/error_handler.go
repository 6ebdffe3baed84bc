package api

import (
	"net/http"

	"github.com/vytor/flashstudy/internal/errors"
	"github.com/vytor/flashstudy/internal/logger"
)

// handleError centralizes error handling for HTTP responses
func handleError(w http.ResponseWriter, r *http.Request, err error) {
	log := logger.FromContext(r.Context())

	appErr := errors.As(err)

	// Log based on status code
	if appErr.Status >= 500 {
		log.Error("server error: %v", appErr)
	} else if appErr.Status >= 400 {
		log.Warn("client error: %v", appErr)
	} else {
		log.Debug("error: %v", appErr)
	}

	if appErr.Code == errors.ErrCodeRateLimited {
		w.Header().Set("Retry-After", "60")
	}
	writeEnvelope(w, r, appErr.Status, envelope{
		Status: "error",
		Error:  &errorBody{Code: appErr.Code, Message: appErr.Message},
	})
}

func (s *Server) handleNotFound(w http.ResponseWriter, r *http.Request) {
	handleError(w, r, errors.NewNotFoundError("route", r.URL.Path))
}

func (s *Server) handleMethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	writeEnvelope(w, r, http.StatusMethodNotAllowed, envelope{
		Status: "error",
		Error:  &errorBody{Code: errors.ErrCodeBadRequest, Message: r.Method + " not allowed on " + r.URL.Path},
	})
}
