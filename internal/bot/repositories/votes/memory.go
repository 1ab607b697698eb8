package votes

import (
	"context"
	"sort"
	"sync"

	"github.com/dmitrijs2005/pollwatch/internal/bot/models"
)

type InMemoryRepository struct {
	mu    sync.RWMutex
	polls map[string][]models.Vote
}

func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{polls: make(map[string][]models.Vote)}
}

func (r *InMemoryRepository) Append(_ context.Context, v *models.Vote) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, logged := range r.polls[v.PollID] {
		if logged.UpdateMessageID == v.UpdateMessageID {
			return false, nil
		}
	}
	r.polls[v.PollID] = append(r.polls[v.PollID], *v)
	return true, nil
}

func (r *InMemoryRepository) ListByPoll(_ context.Context, pollID string) ([]models.Vote, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := append([]models.Vote(nil), r.polls[pollID]...)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Timestamp.Before(out[j].Timestamp)
	})
	return out, nil
}
