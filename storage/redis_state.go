package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/go-redis/redis/v8"
	"github.com/pkg/errors"

	"github.com/Dean-Rough/transferjuice-sub005/acquisition"
)

const stateKeyPrefix = "acquisition_state__"

var ctx = context.Background()

// RedisStateStore keeps per-source acquisition snapshots in redis so a
// restarted ingester resumes with the strategy and cursor it had before.
type RedisStateStore struct {
	inner *redis.Client
}

func GetRedisStateStore() (*RedisStateStore, error) {
	redisClient := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%s", os.Getenv("REDIS_HOST"), os.Getenv("REDIS_PORT")),
		Password: os.Getenv("REDIS_PASSWD"),
		DB:       0, // use default DB
	})
	_, err := redisClient.Ping(ctx).Result()
	if err != nil {
		return nil, err
	}
	return &RedisStateStore{inner: redisClient}, nil
}

func NewRedisStateStore(client *redis.Client) *RedisStateStore {
	return &RedisStateStore{inner: client}
}

func stateKey(handle string) string {
	return stateKeyPrefix + handle
}

func (r *RedisStateStore) LoadState(handle string) (acquisition.StateSnapshot, bool, error) {
	var snapshot acquisition.StateSnapshot
	raw, err := r.inner.Get(ctx, stateKey(handle)).Result()
	if err == redis.Nil {
		return snapshot, false, nil
	}
	if err != nil {
		return snapshot, false, errors.Wrap(err, "fail to load acquisition state")
	}
	if err := json.Unmarshal([]byte(raw), &snapshot); err != nil {
		// A corrupted snapshot is treated as absent, the source just starts
		// from its default strategy again.
		return acquisition.StateSnapshot{}, false, nil
	}
	return snapshot, true, nil
}

func (r *RedisStateStore) SaveState(handle string, snapshot acquisition.StateSnapshot) error {
	raw, err := json.Marshal(snapshot)
	if err != nil {
		return errors.Wrap(err, "fail to marshal acquisition state")
	}
	return errors.Wrap(r.inner.Set(ctx, stateKey(handle), raw, 0).Err(), "fail to save acquisition state")
}
