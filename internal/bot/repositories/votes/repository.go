// Package votes is the append-only log of decrypted poll votes. Tallies are
// recomputed by replaying the log of a poll.
package votes

import (
	"context"

	"github.com/dmitrijs2005/pollwatch/internal/bot/models"
)

type Repository interface {
	// Append records v unless an update with the same (PollID,
	// UpdateMessageID) is already logged. inserted reports which happened.
	Append(ctx context.Context, v *models.Vote) (inserted bool, err error)
	// ListByPoll returns the log of a poll ordered by send time, then by
	// insertion order.
	ListByPoll(ctx context.Context, pollID string) ([]models.Vote, error)
}
