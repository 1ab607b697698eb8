package repomanager

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"github.com/dmitrijs2005/pollwatch/internal/bot/migrations"
	"github.com/dmitrijs2005/pollwatch/internal/bot/repositories/creations"
	"github.com/dmitrijs2005/pollwatch/internal/bot/repositories/polls"
	"github.com/dmitrijs2005/pollwatch/internal/bot/repositories/votes"
)

// PostgresRepositoryManager vends PostgreSQL-backed repositories sharing one
// connection pool.
type PostgresRepositoryManager struct {
	db        *sql.DB
	polls     *polls.PostgresRepository
	creations *creations.PostgresRepository
	votes     *votes.PostgresRepository
}

// sqlOpen is a seam for tests.
var sqlOpen = sql.Open

// gooseUpContext is a seam for testing goose.UpContext.
var gooseUpContext = func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error {
	return goose.UpContext(ctx, db, dir, opts...)
}

func OpenPostgres(dsn string) (*PostgresRepositoryManager, error) {
	db, err := sqlOpen("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("db open error: %w", err)
	}
	return NewPostgresRepositoryManager(db), nil
}

func NewPostgresRepositoryManager(db *sql.DB) *PostgresRepositoryManager {
	return &PostgresRepositoryManager{
		db:        db,
		polls:     polls.NewPostgresRepository(db),
		creations: creations.NewPostgresRepository(db),
		votes:     votes.NewPostgresRepository(db),
	}
}

func (m *PostgresRepositoryManager) Polls() polls.Repository         { return m.polls }
func (m *PostgresRepositoryManager) Creations() creations.Repository { return m.creations }
func (m *PostgresRepositoryManager) Votes() votes.Repository         { return m.votes }

// RunMigrations applies the embedded goose migrations.
func (m *PostgresRepositoryManager) RunMigrations(ctx context.Context) error {
	goose.SetBaseFS(migrations.Migrations)
	if err := goose.SetDialect("pgx"); err != nil {
		return fmt.Errorf("goose dialect: %w", err)
	}
	if err := gooseUpContext(ctx, m.db, "."); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

func (m *PostgresRepositoryManager) Ping(ctx context.Context) error {
	return m.db.PingContext(ctx)
}

func (m *PostgresRepositoryManager) Close(context.Context) error {
	return m.db.Close()
}
