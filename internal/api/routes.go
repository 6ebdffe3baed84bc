package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(loggingMiddleware)
	r.Use(recoveryMiddleware)
	r.Use(metricsMiddleware)
	r.Use(securityHeadersMiddleware)

	r.NotFound(s.handleNotFound)
	r.MethodNotAllowed(s.handleMethodNotAllowed)

	r.Get("/healthz", s.handleHealth)
	r.Get("/readyz", s.handleReady)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Use(timeoutMiddleware(s.RequestTimeout))

		r.Post("/users", s.handleCreateUser)

		r.Group(func(r chi.Router) {
			r.Use(s.userMiddleware)

			r.Get("/users/me", s.handleCurrentUser)

			r.Route("/flashcards", func(r chi.Router) {
				r.Get("/", s.handleListFlashcards)
				r.Post("/", s.handleCreateFlashcards)
				r.Get("/{id}", s.handleGetFlashcard)
				r.Put("/{id}", s.handleUpdateFlashcard)
				r.Delete("/{id}", s.handleDeleteFlashcard)
				r.Get("/{id}/reviews", s.handleCardHistory)
			})

			r.Route("/generations", func(r chi.Router) {
				r.Get("/", s.handleListGenerations)
				r.Post("/", s.handleSubmitGeneration)
				r.Get("/{id}", s.handleGetGeneration)
				r.Post("/{id}/accept-all", s.handleAcceptAll)
				r.Put("/{id}/candidates/{cid}", s.handleEditCandidate)
				r.Post("/{id}/candidates/{cid}/accept", s.handleAcceptCandidate)
				r.Post("/{id}/candidates/{cid}/reject", s.handleRejectCandidate)
			})

			r.Route("/study", func(r chi.Router) {
				r.Get("/stats", s.handleStudyStats)
				r.Get("/session", s.handleCurrentSession)
				r.Post("/session", s.handleStartSession)
				r.Delete("/session", s.handleEndSession)
				r.Post("/review", s.handleReview)
			})
		})
	})

	return r
}
