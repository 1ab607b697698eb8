package polls

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

// Collection is the MongoDB collection holding poll documents.
const Collection = "polls"

// MongoRepository keeps one document per poll:
// {pollId, chatJid, question, votes: [{name, voters}], updatedAt}.
type MongoRepository struct {
	coll *mongo.Collection
}

func NewMongoRepository(db *mongo.Database) *MongoRepository {
	return &MongoRepository{coll: db.Collection(Collection)}
}

// EnsureIndexes creates the unique index on pollId.
func (r *MongoRepository) EnsureIndexes(ctx context.Context) error {
	_, err := r.coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "pollId", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return fmt.Errorf("create polls index: %w", err)
	}
	return nil
}

func (r *MongoRepository) Get(ctx context.Context, pollID string) (*models.Poll, error) {
	p := &models.Poll{}
	err := r.coll.FindOne(ctx, bson.M{"pollId": pollID}).Decode(p)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return p, nil
}

func (r *MongoRepository) Create(ctx context.Context, poll *models.Poll) (*models.Poll, error) {
	if _, err := r.coll.InsertOne(ctx, poll); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil, common.ErrAlreadyExists
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return poll, nil
}

func (r *MongoRepository) Save(ctx context.Context, poll *models.Poll) error {
	_, err := r.coll.UpdateOne(ctx, bson.M{"pollId": poll.PollID}, saveUpdate(poll), options.Update().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

// saveUpdate overwrites chat, votes and timestamp. The question is written
// only while the stored one is missing or empty. Values go through $literal
// so option names starting with "$" are not read as field paths.
func saveUpdate(poll *models.Poll) mongo.Pipeline {
	votes := poll.Votes
	if votes == nil {
		votes = []models.OptionVotes{}
	}

	return mongo.Pipeline{
		{{Key: "$set", Value: bson.D{
			{Key: "chatJid", Value: literal(poll.ChatJID)},
			{Key: "votes", Value: literal(votes)},
			{Key: "updatedAt", Value: literal(poll.UpdatedAt)},
			{Key: "question", Value: bson.D{{Key: "$cond", Value: bson.A{
				bson.D{{Key: "$eq", Value: bson.A{bson.D{{Key: "$ifNull", Value: bson.A{"$question", ""}}}, ""}}},
				literal(poll.Question),
				"$question",
			}}}},
		}}},
	}
}

func literal(v any) bson.D {
	return bson.D{{Key: "$literal", Value: v}}
}
