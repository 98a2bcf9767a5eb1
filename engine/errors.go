package engine

import (
	"context"
	"errors"

	"github.com/use-agent/pricescout/models"
)

// Categorize wraps a raw load error into a ScrapeError so the API layer can
// map it to an HTTP status code. Errors that are already classified pass
// through unchanged.
func Categorize(err error, msg string) *models.ScrapeError {
	var se *models.ScrapeError
	if errors.As(err, &se) {
		return se
	}
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return models.NewScrapeError(models.ErrCodeTimeout, msg, err)
	case errors.Is(err, context.Canceled):
		return models.NewScrapeError(models.ErrCodeTimeout, "request canceled", err)
	default:
		return models.NewScrapeError(models.ErrCodeNavigation, msg, err)
	}
}
