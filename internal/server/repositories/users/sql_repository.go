// Package users stores enrolled users in a SQL database. The same
// repository serves PostgreSQL (pgx) and SQLite; only the query text
// differs between dialects.
package users

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/visionlock/internal/common"
	"github.com/dmitrijs2005/visionlock/internal/dbx"
	"github.com/dmitrijs2005/visionlock/internal/face"
	"github.com/dmitrijs2005/visionlock/internal/server/models"
)

type queries struct {
	list          string
	getByIdentity string
	insert        string
	updatePin     string
}

var postgresQueries = queries{
	list: `SELECT seq, id, identity, embedding, pin_hash, created_at FROM users
		 ORDER BY seq`,
	getByIdentity: `SELECT seq, id, identity, embedding, pin_hash, created_at FROM users
		 WHERE identity = $1`,
	insert: `INSERT INTO users (id, identity, embedding, pin_hash, created_at)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (identity) DO NOTHING
		 RETURNING seq`,
	updatePin: `UPDATE users SET pin_hash = $1
		 WHERE identity = $2`,
}

var sqliteQueries = queries{
	list: `SELECT seq, id, identity, embedding, pin_hash, created_at FROM users
		 ORDER BY seq`,
	getByIdentity: `SELECT seq, id, identity, embedding, pin_hash, created_at FROM users
		 WHERE identity = ?`,
	insert: `INSERT INTO users (id, identity, embedding, pin_hash, created_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT (identity) DO NOTHING
		 RETURNING seq`,
	updatePin: `UPDATE users SET pin_hash = ?
		 WHERE identity = ?`,
}

type SQLRepository struct {
	db dbx.DBTX
	q  queries
}

func NewPostgresRepository(db dbx.DBTX) *SQLRepository {
	return &SQLRepository{db: db, q: postgresQueries}
}

func NewSQLiteRepository(db dbx.DBTX) *SQLRepository {
	return &SQLRepository{db: db, q: sqliteQueries}
}

type scanner interface {
	Scan(dest ...any) error
}

// scanUser reads one row. A stored embedding that does not decode is
// returned as nil so the matcher skips it instead of failing the scan.
func scanUser(s scanner) (models.User, error) {
	var (
		u   models.User
		raw []byte
	)
	if err := s.Scan(&u.Seq, &u.ID, &u.Identity, &raw, &u.PinHash, &u.CreatedAt); err != nil {
		return models.User{}, err
	}
	if err := json.Unmarshal(raw, &u.Embedding); err != nil {
		u.Embedding = nil
	}
	return u, nil
}

func (r *SQLRepository) List(ctx context.Context) ([]models.User, error) {
	rows, err := r.db.QueryContext(ctx, r.q.list)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var out []models.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		out = append(out, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return out, nil
}

func (r *SQLRepository) GetByIdentity(ctx context.Context, identity string) (*models.User, error) {
	u, err := scanUser(r.db.QueryRowContext(ctx, r.q.getByIdentity, identity))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return &u, nil
}

func (r *SQLRepository) InsertIfAbsent(ctx context.Context, user *models.User) (bool, error) {
	raw, err := encodeEmbedding(user.Embedding)
	if err != nil {
		return false, err
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}

	err = r.db.QueryRowContext(ctx, r.q.insert,
		user.ID, user.Identity, raw, user.PinHash, user.CreatedAt).Scan(&user.Seq)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("db error: %w", err)
	}
	return true, nil
}

func (r *SQLRepository) UpdatePinHash(ctx context.Context, identity, pinHash string) error {
	res, err := r.db.ExecContext(ctx, r.q.updatePin, pinHash, identity)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if n == 0 {
		return common.ErrorNotFound
	}
	return nil
}

func encodeEmbedding(e face.Embedding) (string, error) {
	if err := e.Validate(); err != nil {
		return "", err
	}
	b, err := json.Marshal(e)
	if err != nil {
		return "", fmt.Errorf("encode embedding: %w", err)
	}
	return string(b), nil
}
