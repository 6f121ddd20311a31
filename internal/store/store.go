// Package store persists access codes and favorite GitHub users per phone
// number. Every backend satisfies the same Store contract.
package store

import (
	"context"
	"fmt"
	"time"

	"github.com/quhie/Coding-Challenge-Skipli/internal/config"
	"github.com/quhie/Coding-Challenge-Skipli/internal/logger"
	"github.com/quhie/Coding-Challenge-Skipli/internal/metrics"
	"github.com/quhie/Coding-Challenge-Skipli/internal/secrets"
)

// Store is the persistence contract of the passcode and favorites flows.
//
// ValidateAccessCode only compares; clearing on success is the caller's job.
// LikeGithubUser is idempotent and keeps insertion order. An unknown phone
// has no code and no favorites.
type Store interface {
	SaveAccessCode(ctx context.Context, phone, code string) error
	ValidateAccessCode(ctx context.Context, phone, code string) (bool, error)
	ClearAccessCode(ctx context.Context, phone string) error
	LikeGithubUser(ctx context.Context, phone, githubUserID string) error
	FavoriteGithubUsers(ctx context.Context, phone string) ([]string, error)
	Ping(ctx context.Context) error
	Close() error
}

// Open builds the backend selected by cfg.StoreBackend, wrapped with
// metrics. Connection settings the backend needs must be non-blank.
func Open(ctx context.Context, cfg *config.Config) (Store, error) {
	var (
		s   Store
		err error
	)
	switch cfg.StoreBackend {
	case config.StorePostgres:
		if err = secrets.ValidateRequired(map[string]string{"DATABASE_URL": cfg.DatabaseURL}); err != nil {
			return nil, err
		}
		s, err = NewPostgres(ctx, cfg.DatabaseURL)
	case config.StoreMongo:
		if err = secrets.ValidateRequired(map[string]string{
			"MONGO_URI":      cfg.MongoURI,
			"MONGO_DATABASE": cfg.MongoDatabase,
		}); err != nil {
			return nil, err
		}
		s, err = NewMongo(ctx, cfg.MongoURI, cfg.MongoDatabase)
	case config.StoreRedis:
		if err = secrets.ValidateRequired(map[string]string{"REDIS_ADDR": cfg.RedisAddr}); err != nil {
			return nil, err
		}
		s, err = NewRedis(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	case config.StoreMemory, "":
		s = NewMemory()
	default:
		return nil, fmt.Errorf("store: unknown backend %q", cfg.StoreBackend)
	}
	if err != nil {
		return nil, fmt.Errorf("store: open %s: %w", cfg.StoreBackend, err)
	}

	backend := cfg.StoreBackend
	if backend == "" {
		backend = config.StoreMemory
	}
	logger.WithComponent("store").Info("store opened", "backend", backend)
	return Instrument(backend, s), nil
}

// Instrument records StoreOperationDuration and StoreOperationErrors for
// every call on s.
func Instrument(backend string, s Store) Store {
	return &instrumented{backend: backend, next: s}
}

type instrumented struct {
	backend string
	next    Store
}

func (i *instrumented) observe(op string, start time.Time, err error) {
	metrics.StoreOperationDuration.WithLabelValues(i.backend, op).Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.StoreOperationErrors.WithLabelValues(i.backend, op).Inc()
	}
}

func (i *instrumented) SaveAccessCode(ctx context.Context, phone, code string) (err error) {
	defer func(start time.Time) { i.observe("save_access_code", start, err) }(time.Now())
	return i.next.SaveAccessCode(ctx, phone, code)
}

func (i *instrumented) ValidateAccessCode(ctx context.Context, phone, code string) (ok bool, err error) {
	defer func(start time.Time) { i.observe("validate_access_code", start, err) }(time.Now())
	return i.next.ValidateAccessCode(ctx, phone, code)
}

func (i *instrumented) ClearAccessCode(ctx context.Context, phone string) (err error) {
	defer func(start time.Time) { i.observe("clear_access_code", start, err) }(time.Now())
	return i.next.ClearAccessCode(ctx, phone)
}

func (i *instrumented) LikeGithubUser(ctx context.Context, phone, githubUserID string) (err error) {
	defer func(start time.Time) { i.observe("like_github_user", start, err) }(time.Now())
	return i.next.LikeGithubUser(ctx, phone, githubUserID)
}

func (i *instrumented) FavoriteGithubUsers(ctx context.Context, phone string) (ids []string, err error) {
	defer func(start time.Time) { i.observe("favorite_github_users", start, err) }(time.Now())
	return i.next.FavoriteGithubUsers(ctx, phone)
}

func (i *instrumented) Ping(ctx context.Context) (err error) {
	defer func(start time.Time) { i.observe("ping", start, err) }(time.Now())
	return i.next.Ping(ctx)
}

func (i *instrumented) Close() error { return i.next.Close() }
