// Package polls stores aggregated poll records.
package polls

import (
	"context"

	"github.com/dmitrijs2005/pollwatch/internal/bot/models"
)

// Repository persists Poll records keyed by PollID.
type Repository interface {
	// Get returns common.ErrNotFound when no record exists.
	Get(ctx context.Context, pollID string) (*models.Poll, error)
	// Create returns common.ErrAlreadyExists when the id is taken.
	Create(ctx context.Context, poll *models.Poll) (*models.Poll, error)
	// Save inserts or updates the record. The stored question is never
	// overwritten once set.
	Save(ctx context.Context, poll *models.Poll) error
}
