// Package repomanager opens the configured storage backend and vends the
// poll, creation and vote repositories bound to it.
package repomanager

import (
	"context"
	"fmt"
	"net/url"

	"github.com/dmitrijs2005/pollwatch/internal/bot/repositories/creations"
	"github.com/dmitrijs2005/pollwatch/internal/bot/repositories/polls"
	"github.com/dmitrijs2005/pollwatch/internal/bot/repositories/votes"
)

type RepositoryManager interface {
	// RunMigrations prepares the schema (tables or indexes).
	RunMigrations(ctx context.Context) error
	Polls() polls.Repository
	Creations() creations.Repository
	Votes() votes.Repository
	// Ping checks the backend is reachable.
	Ping(ctx context.Context) error
	Close(ctx context.Context) error
}

// Open picks the backend from the DSN scheme: postgres:// or postgresql://
// for Postgres, mongodb:// or mongodb+srv:// for MongoDB (using database
// dbName) and memory:// for a process-local store.
func Open(ctx context.Context, dsn, dbName string) (RepositoryManager, error) {
	u, err := url.Parse(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse database dsn: %w", err)
	}

	switch u.Scheme {
	case "postgres", "postgresql":
		m, err := OpenPostgres(dsn)
		if err != nil {
			return nil, err
		}
		return m, nil
	case "mongodb", "mongodb+srv":
		m, err := OpenMongo(ctx, dsn, dbName)
		if err != nil {
			return nil, err
		}
		return m, nil
	case "memory":
		return NewInMemoryRepositoryManager(), nil
	default:
		return nil, fmt.Errorf("unsupported database scheme %q", u.Scheme)
	}
}
