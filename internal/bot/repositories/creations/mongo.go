package creations

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/dmitrijs2005/pollwatch/internal/bot/models"
	"github.com/dmitrijs2005/pollwatch/internal/common"
)

const Collection = "poll_creations"

type MongoRepository struct {
	coll *mongo.Collection
}

func NewMongoRepository(db *mongo.Database) *MongoRepository {
	return &MongoRepository{coll: db.Collection(Collection)}
}

func (r *MongoRepository) EnsureIndexes(ctx context.Context) error {
	_, err := r.coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "chatJid", Value: 1}, {Key: "messageId", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return fmt.Errorf("create poll_creations index: %w", err)
	}
	return nil
}

func (r *MongoRepository) Save(ctx context.Context, c *models.PollCreation) error {
	filter := bson.M{"chatJid": c.ChatJID, "messageId": c.MessageID}
	_, err := r.coll.UpdateOne(ctx, filter, bson.M{"$setOnInsert": c}, options.Update().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *MongoRepository) Get(ctx context.Context, chatJID, messageID string) (*models.PollCreation, error) {
	c := &models.PollCreation{}
	err := r.coll.FindOne(ctx, bson.M{"chatJid": chatJID, "messageId": messageID}).Decode(c)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return c, nil
}
