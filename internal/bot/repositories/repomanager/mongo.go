package repomanager

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/dmitrijs2005/pollwatch/internal/bot/repositories/creations"
	"github.com/dmitrijs2005/pollwatch/internal/bot/repositories/polls"
	"github.com/dmitrijs2005/pollwatch/internal/bot/repositories/votes"
)

// MongoRepositoryManager vends MongoDB-backed repositories living in one
// database.
type MongoRepositoryManager struct {
	client    *mongo.Client
	polls     *polls.MongoRepository
	creations *creations.MongoRepository
	votes     *votes.MongoRepository
}

func OpenMongo(ctx context.Context, dsn, dbName string) (*MongoRepositoryManager, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(dsn))
	if err != nil {
		return nil, fmt.Errorf("mongo connect: %w", err)
	}
	return NewMongoRepositoryManager(client, client.Database(dbName)), nil
}

// NewMongoRepositoryManager binds the repositories to db. client may be nil
// when the caller owns the connection.
func NewMongoRepositoryManager(client *mongo.Client, db *mongo.Database) *MongoRepositoryManager {
	return &MongoRepositoryManager{
		client:    client,
		polls:     polls.NewMongoRepository(db),
		creations: creations.NewMongoRepository(db),
		votes:     votes.NewMongoRepository(db),
	}
}

func (m *MongoRepositoryManager) Polls() polls.Repository         { return m.polls }
func (m *MongoRepositoryManager) Creations() creations.Repository { return m.creations }
func (m *MongoRepositoryManager) Votes() votes.Repository         { return m.votes }

// RunMigrations creates the unique indexes the repositories rely on.
func (m *MongoRepositoryManager) RunMigrations(ctx context.Context) error {
	if err := m.polls.EnsureIndexes(ctx); err != nil {
		return err
	}
	if err := m.creations.EnsureIndexes(ctx); err != nil {
		return err
	}
	return m.votes.EnsureIndexes(ctx)
}

func (m *MongoRepositoryManager) Ping(ctx context.Context) error {
	if m.client == nil {
		return nil
	}
	return m.client.Ping(ctx, readpref.Primary())
}

func (m *MongoRepositoryManager) Close(ctx context.Context) error {
	if m.client == nil {
		return nil
	}
	return m.client.Disconnect(ctx)
}
