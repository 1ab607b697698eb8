package creations

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/pollwatch/internal/bot/models"
	"github.com/dmitrijs2005/pollwatch/internal/common"
	"github.com/dmitrijs2005/pollwatch/internal/dbx"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Save(ctx context.Context, c *models.PollCreation) error {
	options, err := json.Marshal(c.Options)
	if err != nil {
		return fmt.Errorf("encode options: %w", err)
	}

	query :=
		`INSERT INTO poll_creations (chat_jid, message_id, creator_jid, question, options, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (chat_jid, message_id) DO NOTHING
		 `

	_, err = r.db.ExecContext(ctx, query, c.ChatJID, c.MessageID, c.CreatorJID, c.Question, options, c.CreatedAt)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) Get(ctx context.Context, chatJID, messageID string) (*models.PollCreation, error) {
	query :=
		`SELECT chat_jid, message_id, creator_jid, question, options, created_at FROM poll_creations
		 WHERE chat_jid = $1 AND message_id = $2
		 `

	c := &models.PollCreation{}
	var options []byte
	err := r.db.QueryRowContext(ctx, query, chatJID, messageID).
		Scan(&c.ChatJID, &c.MessageID, &c.CreatorJID, &c.Question, &options, &c.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	if err := json.Unmarshal(options, &c.Options); err != nil {
		return nil, fmt.Errorf("decode options: %w", err)
	}
	return c, nil
}
