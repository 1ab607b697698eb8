package repomanager

import (
	"context"

	"github.com/dmitrijs2005/pollwatch/internal/bot/repositories/creations"
	"github.com/dmitrijs2005/pollwatch/internal/bot/repositories/polls"
	"github.com/dmitrijs2005/pollwatch/internal/bot/repositories/votes"
)

// InMemoryRepositoryManager keeps everything in process memory. Useful for
// dry runs against a real account without a database.
type InMemoryRepositoryManager struct {
	polls     *polls.InMemoryRepository
	creations *creations.InMemoryRepository
	votes     *votes.InMemoryRepository
}

func NewInMemoryRepositoryManager() *InMemoryRepositoryManager {
	return &InMemoryRepositoryManager{
		polls:     polls.NewInMemoryRepository(),
		creations: creations.NewInMemoryRepository(),
		votes:     votes.NewInMemoryRepository(),
	}
}

func (m *InMemoryRepositoryManager) RunMigrations(context.Context) error { return nil }
func (m *InMemoryRepositoryManager) Polls() polls.Repository             { return m.polls }
func (m *InMemoryRepositoryManager) Creations() creations.Repository     { return m.creations }
func (m *InMemoryRepositoryManager) Votes() votes.Repository             { return m.votes }
func (m *InMemoryRepositoryManager) Ping(context.Context) error          { return nil }
func (m *InMemoryRepositoryManager) Close(context.Context) error         { return nil }
