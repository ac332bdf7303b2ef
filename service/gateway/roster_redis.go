package gateway

import (
	"context"
	"encoding/json"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"

	"campuschat/chat"
	"campuschat/logger"
	"campuschat/tools/errs"
)

const presencePrefix = "campuschat:presence:"

// RedisConfig configures the shared presence store.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	TTL      time.Duration
}

type redisRoster struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewRedisRoster connects and returns a redis-backed store. Keys carry a
// TTL so a crashed gateway's users age out instead of lingering online.
func NewRedisRoster(cfg RedisConfig) (RosterStore, error) {
	if cfg.TTL <= 0 {
		cfg.TTL = 2 * time.Minute
	}
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, errs.ErrConnection.WrapMsg("redis ping", "addr", cfg.Addr, "err", err.Error())
	}
	return &redisRoster{rdb: rdb, ttl: cfg.TTL}, nil
}

func presenceKey(userID string) string { return presencePrefix + userID }

func (r *redisRoster) Online(ctx context.Context, identity chat.Identity) error {
	data, err := json.Marshal(identity)
	if err != nil {
		return errs.Wrap(err)
	}
	return r.rdb.Set(ctx, presenceKey(identity.UserID), data, r.ttl).Err()
}

func (r *redisRoster) Offline(ctx context.Context, userID string) error {
	return r.rdb.Del(ctx, presenceKey(userID)).Err()
}

func (r *redisRoster) Snapshot(ctx context.Context) ([]chat.Identity, error) {
	var keys []string
	iter := r.rdb.Scan(ctx, 0, presencePrefix+"*", 0).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return nil, errs.Wrap(err)
	}
	if len(keys) == 0 {
		return nil, nil
	}

	vals, err := r.rdb.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, errs.Wrap(err)
	}
	out := make([]chat.Identity, 0, len(vals))
	for _, v := range vals {
		s, ok := v.(string)
		if !ok {
			continue // key expired between scan and mget
		}
		var identity chat.Identity
		if err := json.Unmarshal([]byte(s), &identity); err != nil {
			logger.Warnf("[roster] bad presence value: %v", err)
			continue
		}
		out = append(out, identity)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UserID < out[j].UserID })
	return out, nil
}
