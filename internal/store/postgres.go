package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/quhie/Coding-Challenge-Skipli/internal/db"
)

// Postgres keeps one users row per phone number; favorites are a JSONB array.
type Postgres struct {
	conn *sql.DB
	q    *db.Queries
}

// NewPostgres connects with lib/pq and creates the users table if needed.
func NewPostgres(ctx context.Context, connStr string) (*Postgres, error) {
	conn, q, err := db.Init(ctx, connStr)
	if err != nil {
		return nil, err
	}
	return &Postgres{conn: conn, q: q}, nil
}

func (p *Postgres) SaveAccessCode(ctx context.Context, phone, code string) error {
	return p.q.UpsertAccessCode(ctx, db.UpsertAccessCodeParams{
		PhoneNumber: phone,
		AccessCode:  sql.NullString{String: code, Valid: true},
	})
}

func (p *Postgres) ValidateAccessCode(ctx context.Context, phone, code string) (bool, error) {
	stored, err := p.q.GetAccessCode(ctx, phone)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return stored.Valid && stored.String != "" && stored.String == code, nil
}

func (p *Postgres) ClearAccessCode(ctx context.Context, phone string) error {
	return p.q.ClearAccessCode(ctx, phone)
}

func (p *Postgres) LikeGithubUser(ctx context.Context, phone, githubUserID string) error {
	return p.q.AddFavoriteGithubUser(ctx, db.AddFavoriteGithubUserParams{
		PhoneNumber:  phone,
		GithubUserID: githubUserID,
	})
}

func (p *Postgres) FavoriteGithubUsers(ctx context.Context, phone string) ([]string, error) {
	raw, err := p.q.GetFavoriteGithubUsers(ctx, phone)
	if errors.Is(err, sql.ErrNoRows) {
		return []string{}, nil
	}
	if err != nil {
		return nil, err
	}
	ids := []string{}
	if !raw.Valid {
		return ids, nil
	}
	if err := json.Unmarshal(raw.RawMessage, &ids); err != nil {
		return nil, fmt.Errorf("decode favorites: %w", err)
	}
	if ids == nil {
		ids = []string{}
	}
	return ids, nil
}

func (p *Postgres) Ping(ctx context.Context) error { return p.conn.PingContext(ctx) }

func (p *Postgres) Close() error { return p.conn.Close() }
