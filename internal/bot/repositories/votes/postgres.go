package votes

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/dmitrijs2005/pollwatch/internal/bot/models"
	"github.com/dmitrijs2005/pollwatch/internal/dbx"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Append(ctx context.Context, v *models.Vote) (bool, error) {
	hashes := v.SelectedHashes
	if hashes == nil {
		hashes = [][]byte{}
	}
	selected, err := json.Marshal(hashes)
	if err != nil {
		return false, fmt.Errorf("encode selected hashes: %w", err)
	}

	query :=
		`INSERT INTO poll_votes (poll_id, update_message_id, chat_jid, voter_jid, creator_jid, selected_hashes, sent_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 ON CONFLICT (poll_id, update_message_id) DO NOTHING
		 `

	res, err := r.db.ExecContext(ctx, query,
		v.PollID, v.UpdateMessageID, v.ChatJID, v.VoterJID, v.CreatorJID, selected, v.Timestamp)
	if err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	return n > 0, nil
}

func (r *PostgresRepository) ListByPoll(ctx context.Context, pollID string) ([]models.Vote, error) {
	query :=
		`SELECT poll_id, update_message_id, chat_jid, voter_jid, creator_jid, selected_hashes, sent_at
		 FROM poll_votes
		 WHERE poll_id = $1
		 ORDER BY sent_at, seq
		 `

	rows, err := r.db.QueryContext(ctx, query, pollID)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var result []models.Vote
	for rows.Next() {
		var v models.Vote
		var selected []byte
		if err := rows.Scan(&v.PollID, &v.UpdateMessageID, &v.ChatJID, &v.VoterJID, &v.CreatorJID, &selected, &v.Timestamp); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		if err := json.Unmarshal(selected, &v.SelectedHashes); err != nil {
			return nil, fmt.Errorf("decode selected hashes: %w", err)
		}
		result = append(result, v)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}

	return result, nil
}
