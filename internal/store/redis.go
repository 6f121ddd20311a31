package store

import (
	"context"
	"errors"

	"github.com/redis/go-redis/v9"
)

const (
	accessCodePrefix = "access_code:"
	favoritesPrefix  = "favorites:"
)

// likeScript appends ARGV[1] to the list at KEYS[1] unless already present.
var likeScript = redis.NewScript(`
local items = redis.call('LRANGE', KEYS[1], 0, -1)
for _, v in ipairs(items) do
  if v == ARGV[1] then return 0 end
end
redis.call('RPUSH', KEYS[1], ARGV[1])
return 1
`)

// Redis stores access codes as strings and favorites as lists.
type Redis struct {
	client *redis.Client
}

// NewRedis connects and pings the server.
func NewRedis(ctx context.Context, addr, password string, db int) (*Redis, error) {
	client := redis.NewClient(&redis.Options{Addr: addr, Password: password, DB: db})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, err
	}
	return &Redis{client: client}, nil
}

func (r *Redis) SaveAccessCode(ctx context.Context, phone, code string) error {
	return r.client.Set(ctx, accessCodePrefix+phone, code, 0).Err()
}

func (r *Redis) ValidateAccessCode(ctx context.Context, phone, code string) (bool, error) {
	stored, err := r.client.Get(ctx, accessCodePrefix+phone).Result()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return stored != "" && stored == code, nil
}

func (r *Redis) ClearAccessCode(ctx context.Context, phone string) error {
	return r.client.Del(ctx, accessCodePrefix+phone).Err()
}

func (r *Redis) LikeGithubUser(ctx context.Context, phone, githubUserID string) error {
	return likeScript.Run(ctx, r.client, []string{favoritesPrefix + phone}, githubUserID).Err()
}

func (r *Redis) FavoriteGithubUsers(ctx context.Context, phone string) ([]string, error) {
	ids, err := r.client.LRange(ctx, favoritesPrefix+phone, 0, -1).Result()
	if err != nil {
		return nil, err
	}
	if ids == nil {
		ids = []string{}
	}
	return ids, nil
}

func (r *Redis) Ping(ctx context.Context) error { return r.client.Ping(ctx).Err() }

func (r *Redis) Close() error { return r.client.Close() }
