package votes

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/dmitrijs2005/pollwatch/internal/bot/models"
)

const Collection = "poll_votes"

type MongoRepository struct {
	coll *mongo.Collection
}

func NewMongoRepository(db *mongo.Database) *MongoRepository {
	return &MongoRepository{coll: db.Collection(Collection)}
}

func (r *MongoRepository) EnsureIndexes(ctx context.Context) error {
	_, err := r.coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "pollId", Value: 1}, {Key: "updateMessageId", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys: bson.D{{Key: "pollId", Value: 1}, {Key: "sentAt", Value: 1}},
		},
	})
	if err != nil {
		return fmt.Errorf("create poll_votes indexes: %w", err)
	}
	return nil
}

func (r *MongoRepository) Append(ctx context.Context, v *models.Vote) (bool, error) {
	filter := bson.M{"pollId": v.PollID, "updateMessageId": v.UpdateMessageID}
	res, err := r.coll.UpdateOne(ctx, filter, bson.M{"$setOnInsert": v}, options.Update().SetUpsert(true))
	if err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	return res.UpsertedCount > 0, nil
}

func (r *MongoRepository) ListByPoll(ctx context.Context, pollID string) ([]models.Vote, error) {
	opts := options.Find().SetSort(bson.D{{Key: "sentAt", Value: 1}, {Key: "_id", Value: 1}})
	cur, err := r.coll.Find(ctx, bson.M{"pollId": pollID}, opts)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}

	var result []models.Vote
	if err := cur.All(ctx, &result); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return result, nil
}
