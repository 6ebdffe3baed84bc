package services

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/vytor/flashstudy/internal/errors"
	"github.com/vytor/flashstudy/internal/models"
)

// validateContent trims and checks card text, returning the cleaned sides.
func validateContent(front, back string) (string, string, error) {
	front = strings.TrimSpace(front)
	back = strings.TrimSpace(back)
	switch {
	case front == "":
		return "", "", errors.NewValidationError("front", "cannot be empty")
	case utf8.RuneCountInString(front) > models.MaxFrontLength:
		return "", "", errors.NewValidationError("front", fmt.Sprintf("must be at most %d characters", models.MaxFrontLength))
	case back == "":
		return "", "", errors.NewValidationError("back", "cannot be empty")
	case utf8.RuneCountInString(back) > models.MaxBackLength:
		return "", "", errors.NewValidationError("back", fmt.Sprintf("must be at most %d characters", models.MaxBackLength))
	}
	return front, back, nil
}

func itemError(err error) *models.ItemError {
	appErr := errors.As(err)
	return &models.ItemError{Code: appErr.Code, Message: appErr.Message}
}
