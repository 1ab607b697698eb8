// Package creations caches poll-creation messages so later vote updates can
// be decrypted and mapped back to option labels, also across restarts.
package creations

import (
	"context"

	"github.com/dmitrijs2005/pollwatch/internal/bot/models"
)

type Repository interface {
	// Save stores the creation. Saving an already known message is a no-op.
	Save(ctx context.Context, c *models.PollCreation) error
	// Get returns common.ErrNotFound for unknown messages.
	Get(ctx context.Context, chatJID, messageID string) (*models.PollCreation, error)
}
