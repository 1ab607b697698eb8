package polls

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/pollwatch/internal/bot/models"
	"github.com/dmitrijs2005/pollwatch/internal/common"
)

const (
	selectQ = `(?s)^SELECT\s+poll_id,\s*chat_jid,\s*question,\s*votes,\s*updated_at\s+FROM\s+polls\s+WHERE\s+poll_id\s*=\s*\$1\s*$`
	insertQ = `(?s)^INSERT\s+INTO\s+polls\s*\(poll_id,\s*chat_jid,\s*question,\s*votes,\s*updated_at\)\s*VALUES\s*\(\$1,\s*\$2,\s*\$3,\s*\$4,\s*\$5\)\s*$`
	upsertQ = `(?s)^INSERT\s+INTO\s+polls\s*\(.*\)\s*VALUES\s*\(.*\)\s*ON\s+CONFLICT\s*\(poll_id\)\s*DO\s+UPDATE\s+SET\s+chat_jid\s*=\s*EXCLUDED\.chat_jid,\s*question\s*=\s*CASE\s+WHEN\s+polls\.question\s*=\s*''\s+THEN\s+EXCLUDED\.question\s+ELSE\s+polls\.question\s+END,\s*votes\s*=\s*EXCLUDED\.votes,\s*updated_at\s*=\s*EXCLUDED\.updated_at\s*$`
)

var ts = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func newRepoWithMock(t *testing.T) (*PostgresRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewPostgresRepository(db), mock
}

func samplePoll() *models.Poll {
	return &models.Poll{
		PollID:   "3EB0POLL",
		ChatJID:  "120363000000000001@g.us",
		Question: "Lunch?",
		Votes: []models.OptionVotes{
			{Name: "Pizza", Voters: []string{"111@s.whatsapp.net"}},
			{Name: "Sushi", Voters: []string{}},
		},
		UpdatedAt: ts,
	}
}

const sampleVotesJSON = `[{"name":"Pizza","voters":["111@s.whatsapp.net"]},{"name":"Sushi","voters":[]}]`

func TestGet_Found(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	rows := sqlmock.NewRows([]string{"poll_id", "chat_jid", "question", "votes", "updated_at"}).
		AddRow("3EB0POLL", "120363000000000001@g.us", "Lunch?", []byte(sampleVotesJSON), ts)
	mock.ExpectQuery(selectQ).WithArgs("3EB0POLL").WillReturnRows(rows)

	got, err := repo.Get(context.Background(), "3EB0POLL")
	require.NoError(t, err)
	assert.Equal(t, samplePoll(), got)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGet_NotFound(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	mock.ExpectQuery(selectQ).WithArgs("ghost").WillReturnError(sql.ErrNoRows)

	_, err := repo.Get(context.Background(), "ghost")
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestGet_DBError(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	mock.ExpectQuery(selectQ).WithArgs("p").WillReturnError(errors.New("db down"))

	_, err := repo.Get(context.Background(), "p")
	require.Error(t, err)
	assert.Regexp(t, regexp.MustCompile(`db error: .*db down`), err.Error())
}

func TestGet_CorruptVotes(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	rows := sqlmock.NewRows([]string{"poll_id", "chat_jid", "question", "votes", "updated_at"}).
		AddRow("p", "", "", []byte(`{not json`), ts)
	mock.ExpectQuery(selectQ).WithArgs("p").WillReturnRows(rows)

	_, err := repo.Get(context.Background(), "p")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decode votes")
}

func TestCreate_Success(t *testing.T) {
	repo, mock := newRepoWithMock(t)
	p := samplePoll()

	mock.ExpectExec(insertQ).
		WithArgs(p.PollID, p.ChatJID, p.Question, []byte(sampleVotesJSON), ts).
		WillReturnResult(sqlmock.NewResult(0, 1))

	got, err := repo.Create(context.Background(), p)
	require.NoError(t, err)
	assert.Same(t, p, got)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCreate_Duplicate(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	mock.ExpectExec(insertQ).WillReturnError(&pgconn.PgError{Code: "23505"})

	_, err := repo.Create(context.Background(), samplePoll())
	assert.ErrorIs(t, err, common.ErrAlreadyExists)
}

func TestSave_Upserts(t *testing.T) {
	repo, mock := newRepoWithMock(t)
	p := samplePoll()

	mock.ExpectExec(upsertQ).
		WithArgs(p.PollID, p.ChatJID, p.Question, []byte(sampleVotesJSON), ts).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.Save(context.Background(), p))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSave_NilVotesStoredAsEmptyArray(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	mock.ExpectExec(upsertQ).
		WithArgs("p", "", "", []byte(`[]`), ts).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.Save(context.Background(), &models.Poll{PollID: "p", UpdatedAt: ts}))
}

func TestSave_DBError(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	mock.ExpectExec(upsertQ).WillReturnError(errors.New("conn reset"))

	err := repo.Save(context.Background(), samplePoll())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "conn reset")
}
