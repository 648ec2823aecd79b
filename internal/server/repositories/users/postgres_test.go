package users

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/visionlock/internal/common"
	"github.com/dmitrijs2005/visionlock/internal/face"
	"github.com/dmitrijs2005/visionlock/internal/server/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	qList   = `(?s)^SELECT\s+seq,\s*id,\s*identity,\s*embedding,\s*pin_hash,\s*created_at\s+FROM\s+users\s+ORDER\s+BY\s+seq\s*$`
	qGet    = `(?s)^SELECT\s+seq,\s*id,\s*identity,\s*embedding,\s*pin_hash,\s*created_at\s+FROM\s+users\s+WHERE\s+identity\s*=\s*\$1\s*$`
	qInsert = `(?s)^INSERT\s+INTO\s+users\s*\(id,\s*identity,\s*embedding,\s*pin_hash,\s*created_at\)\s*VALUES\s*\(\$1,\s*\$2,\s*\$3,\s*\$4,\s*\$5\)\s*ON\s+CONFLICT\s*\(identity\)\s*DO\s+NOTHING\s+RETURNING\s+seq\s*$`
	qUpdate = `(?s)^UPDATE\s+users\s+SET\s+pin_hash\s*=\s*\$1\s+WHERE\s+identity\s*=\s*\$2\s*$`
)

var userColumns = []string{"seq", "id", "identity", "embedding", "pin_hash", "created_at"}

func newRepoWithMock(t *testing.T) (*SQLRepository, sqlmock.Sqlmock, *sql.DB) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return NewPostgresRepository(db), mock, db
}

func TestList_OrderedWithBrokenEmbedding(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	now := time.Now()
	rows := sqlmock.NewRows(userColumns).
		AddRow(int64(1), "u-1", "alice", []byte(`[0.1,0.2]`), "h1", now).
		AddRow(int64(2), "u-2", "bob", []byte(`not json`), "h2", now)
	mock.ExpectQuery(qList).WillReturnRows(rows)

	got, err := repo.List(context.Background())
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "alice", got[0].Identity)
	assert.Equal(t, face.Embedding{0.1, 0.2}, got[0].Embedding)
	assert.Equal(t, int64(2), got[1].Seq)
	assert.Nil(t, got[1].Embedding)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestList_DBError(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(qList).WillReturnError(errors.New("db down"))

	_, err := repo.List(context.Background())
	require.Error(t, err)
	assert.Regexp(t, regexp.MustCompile(`db error: .*db down`), err.Error())
}

func TestGetByIdentity_Found(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	rows := sqlmock.NewRows(userColumns).
		AddRow(int64(3), "u-3", "carol", []byte(`[1,0,0]`), "hash", time.Now())
	mock.ExpectQuery(qGet).WithArgs("carol").WillReturnRows(rows)

	got, err := repo.GetByIdentity(context.Background(), "carol")
	require.NoError(t, err)
	assert.Equal(t, "u-3", got.ID)
	assert.Equal(t, "hash", got.PinHash)
}

func TestGetByIdentity_NotFound(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(qGet).WithArgs("ghost").WillReturnError(sql.ErrNoRows)

	_, err := repo.GetByIdentity(context.Background(), "ghost")
	assert.ErrorIs(t, err, common.ErrorNotFound)
}

func TestInsertIfAbsent_Inserted(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	created := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	mock.ExpectQuery(qInsert).
		WithArgs("u-1", "alice", `[0.5,-0.5]`, "hash", created).
		WillReturnRows(sqlmock.NewRows([]string{"seq"}).AddRow(int64(11)))

	u := &models.User{ID: "u-1", Identity: "alice", Embedding: face.Embedding{0.5, -0.5}, PinHash: "hash", CreatedAt: created}
	ok, err := repo.InsertIfAbsent(context.Background(), u)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, int64(11), u.Seq)
}

func TestInsertIfAbsent_Conflict(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(qInsert).
		WithArgs("u-1", "alice", `[1]`, "hash", sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"seq"}))

	ok, err := repo.InsertIfAbsent(context.Background(), &models.User{ID: "u-1", Identity: "alice", Embedding: face.Embedding{1}, PinHash: "hash"})
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestInsertIfAbsent_InvalidEmbedding(t *testing.T) {
	repo, _, db := newRepoWithMock(t)
	defer db.Close()

	_, err := repo.InsertIfAbsent(context.Background(), &models.User{Identity: "alice"})
	assert.ErrorIs(t, err, face.ErrInvalidEmbedding)
}

func TestInsertIfAbsent_DBError(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(qInsert).WillReturnError(errors.New("db err"))

	_, err := repo.InsertIfAbsent(context.Background(), &models.User{ID: "u-1", Identity: "a", Embedding: face.Embedding{1}, PinHash: "h"})
	require.Error(t, err)
	assert.Regexp(t, `db error: .*db err`, err.Error())
}

func TestUpdatePinHash(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectExec(qUpdate).WithArgs("new", "alice").WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, repo.UpdatePinHash(context.Background(), "alice", "new"))

	mock.ExpectExec(qUpdate).WithArgs("new", "ghost").WillReturnResult(sqlmock.NewResult(0, 0))
	assert.ErrorIs(t, repo.UpdatePinHash(context.Background(), "ghost", "new"), common.ErrorNotFound)

	mock.ExpectExec(qUpdate).WithArgs("new", "alice").WillReturnError(errors.New("db err"))
	assert.Error(t, repo.UpdatePinHash(context.Background(), "alice", "new"))

	assert.NoError(t, mock.ExpectationsWereMet())
}
