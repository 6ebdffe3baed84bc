package api

import (
	"database/sql"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/vytor/flashstudy/internal/services"
	"github.com/vytor/flashstudy/internal/worker"
)

// Server holds the dependencies of the HTTP handlers.
type Server struct {
	DB                *sql.DB
	GenerationPool    *worker.Pool
	UserService       services.UserService
	FlashcardService  services.FlashcardService
	GenerationService services.GenerationService
	StudyService      services.StudyService

	// RequestTimeout bounds every /api request; zero disables it.
	RequestTimeout time.Duration
	// SecureCookies marks the user cookie Secure when served over HTTPS.
	SecureCookies bool

	validate *validator.Validate
}

// NewServer wires the handlers to their services.
func NewServer(
	db *sql.DB,
	pool *worker.Pool,
	users services.UserService,
	cards services.FlashcardService,
	generations services.GenerationService,
	study services.StudyService,
) *Server {
	return &Server{
		DB:                db,
		GenerationPool:    pool,
		UserService:       users,
		FlashcardService:  cards,
		GenerationService: generations,
		StudyService:      study,
		RequestTimeout:    30 * time.Second,
		validate:          newValidator(),
	}
}
