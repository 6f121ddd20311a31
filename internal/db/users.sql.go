// source: users.sql

package db

import (
	"context"
	"database/sql"

	"github.com/sqlc-dev/pqtype"
)

const addFavoriteGithubUser = `-- name: AddFavoriteGithubUser :exec
INSERT INTO users (phone_number, favorite_github_users)
VALUES ($1, jsonb_build_array($2::text))
ON CONFLICT (phone_number) DO UPDATE SET
  favorite_github_users = CASE
    WHEN COALESCE(users.favorite_github_users, '[]'::jsonb) @> jsonb_build_array($2::text)
      THEN users.favorite_github_users
    ELSE COALESCE(users.favorite_github_users, '[]'::jsonb) || jsonb_build_array($2::text)
  END,
  updated_at = now()
`

type AddFavoriteGithubUserParams struct {
	PhoneNumber  string `json:"phone_number"`
	GithubUserID string `json:"github_user_id"`
}

func (q *Queries) AddFavoriteGithubUser(ctx context.Context, arg AddFavoriteGithubUserParams) error {
	_, err := q.db.ExecContext(ctx, addFavoriteGithubUser, arg.PhoneNumber, arg.GithubUserID)
	return err
}

const clearAccessCode = `-- name: ClearAccessCode :exec
UPDATE users SET access_code = NULL, updated_at = now() WHERE phone_number = $1
`

func (q *Queries) ClearAccessCode(ctx context.Context, phoneNumber string) error {
	_, err := q.db.ExecContext(ctx, clearAccessCode, phoneNumber)
	return err
}

const getAccessCode = `-- name: GetAccessCode :one
SELECT access_code FROM users WHERE phone_number = $1
`

func (q *Queries) GetAccessCode(ctx context.Context, phoneNumber string) (sql.NullString, error) {
	row := q.db.QueryRowContext(ctx, getAccessCode, phoneNumber)
	var access_code sql.NullString
	err := row.Scan(&access_code)
	return access_code, err
}

const getFavoriteGithubUsers = `-- name: GetFavoriteGithubUsers :one
SELECT favorite_github_users FROM users WHERE phone_number = $1
`

func (q *Queries) GetFavoriteGithubUsers(ctx context.Context, phoneNumber string) (pqtype.NullRawMessage, error) {
	row := q.db.QueryRowContext(ctx, getFavoriteGithubUsers, phoneNumber)
	var favorite_github_users pqtype.NullRawMessage
	err := row.Scan(&favorite_github_users)
	return favorite_github_users, err
}

const upsertAccessCode = `-- name: UpsertAccessCode :exec
INSERT INTO users (phone_number, access_code)
VALUES ($1, $2)
ON CONFLICT (phone_number) DO UPDATE SET
  access_code = EXCLUDED.access_code,
  updated_at = now()
`

type UpsertAccessCodeParams struct {
	PhoneNumber string         `json:"phone_number"`
	AccessCode  sql.NullString `json:"access_code"`
}

func (q *Queries) UpsertAccessCode(ctx context.Context, arg UpsertAccessCodeParams) error {
	_, err := q.db.ExecContext(ctx, upsertAccessCode, arg.PhoneNumber, arg.AccessCode)
	return err
}
