package creations

import (
	"context"
	"sync"

	"github.com/dmitrijs2005/pollwatch/internal/bot/models"
	"github.com/dmitrijs2005/pollwatch/internal/common"
)

type key struct{ chat, id string }

type InMemoryRepository struct {
	mu    sync.RWMutex
	items map[key]models.PollCreation
}

func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{items: make(map[key]models.PollCreation)}
}

func (r *InMemoryRepository) Save(_ context.Context, c *models.PollCreation) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	k := key{c.ChatJID, c.MessageID}
	if _, ok := r.items[k]; ok {
		return nil
	}
	cp := *c
	cp.Options = append([]string(nil), c.Options...)
	r.items[k] = cp
	return nil
}

func (r *InMemoryRepository) Get(_ context.Context, chatJID, messageID string) (*models.PollCreation, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	c, ok := r.items[key{chatJID, messageID}]
	if !ok {
		return nil, common.ErrNotFound
	}
	c.Options = append([]string(nil), c.Options...)
	return &c, nil
}
