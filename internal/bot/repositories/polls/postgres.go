package polls

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

func (r *PostgresRepository) Get(ctx context.Context, pollID string) (*models.Poll, error) {
	query :=
		`SELECT poll_id, chat_jid, question, votes, updated_at FROM polls
		 WHERE poll_id = $1
		 `

	p := &models.Poll{}
	var votes []byte
	err := r.db.QueryRowContext(ctx, query, pollID).Scan(&p.PollID, &p.ChatJID, &p.Question, &votes, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	if err := json.Unmarshal(votes, &p.Votes); err != nil {
		return nil, fmt.Errorf("decode votes of poll %s: %w", pollID, err)
	}

	return p, nil
}

func (r *PostgresRepository) Create(ctx context.Context, poll *models.Poll) (*models.Poll, error) {
	votes, err := encodeVotes(poll.Votes)
	if err != nil {
		return nil, err
	}

	query :=
		`INSERT INTO polls (poll_id, chat_jid, question, votes, updated_at)
		 VALUES ($1, $2, $3, $4, $5)
		 `

	_, err = r.db.ExecContext(ctx, query, poll.PollID, poll.ChatJID, poll.Question, votes, poll.UpdatedAt)
	if err != nil {
		if dbx.IsUniqueViolation(err) {
			return nil, common.ErrAlreadyExists
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	return poll, nil
}

func (r *PostgresRepository) Save(ctx context.Context, poll *models.Poll) error {
	votes, err := encodeVotes(poll.Votes)
	if err != nil {
		return err
	}

	query :=
		`INSERT INTO polls (poll_id, chat_jid, question, votes, updated_at)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (poll_id) DO UPDATE
		 SET chat_jid = EXCLUDED.chat_jid,
		     question = CASE WHEN polls.question = '' THEN EXCLUDED.question ELSE polls.question END,
		     votes = EXCLUDED.votes,
		     updated_at = EXCLUDED.updated_at
		 `

	if _, err := r.db.ExecContext(ctx, query, poll.PollID, poll.ChatJID, poll.Question, votes, poll.UpdatedAt); err != nil {
		return fmt.Errorf("db error: %w", err)
	}

	return nil
}

func encodeVotes(votes []models.OptionVotes) ([]byte, error) {
	if votes == nil {
		votes = []models.OptionVotes{}
	}
	b, err := json.Marshal(votes)
	if err != nil {
		return nil, fmt.Errorf("encode votes: %w", err)
	}
	return b, nil
}
