package polls

import (
	"context"
	"sync"

	"github.com/dmitrijs2005/pollwatch/internal/bot/models"
	"github.com/dmitrijs2005/pollwatch/internal/common"
)

// InMemoryRepository keeps polls in a map. Records are cloned on the way in
// and out so callers never share state with the store.
type InMemoryRepository struct {
	mu    sync.RWMutex
	polls map[string]*models.Poll
}

func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{polls: make(map[string]*models.Poll)}
}

func (r *InMemoryRepository) Get(_ context.Context, pollID string) (*models.Poll, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.polls[pollID]
	if !ok {
		return nil, common.ErrNotFound
	}
	return p.Clone(), nil
}

func (r *InMemoryRepository) Create(_ context.Context, poll *models.Poll) (*models.Poll, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.polls[poll.PollID]; ok {
		return nil, common.ErrAlreadyExists
	}
	r.polls[poll.PollID] = poll.Clone()
	return poll, nil
}

func (r *InMemoryRepository) Save(_ context.Context, poll *models.Poll) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	c := poll.Clone()
	if old, ok := r.polls[poll.PollID]; ok && old.Question != "" {
		c.Question = old.Question
	}
	r.polls[poll.PollID] = c
	return nil
}
