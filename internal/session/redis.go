package session

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "session:"

// RedisRegistry stores session records in Redis with a TTL matching the
// session expiry, so expired sessions vanish without a reaper.
type RedisRegistry struct {
	client redis.UniversalClient
	now    func() time.Time
}

var _ Registry = (*RedisRegistry)(nil)

func NewRedisRegistry(client redis.UniversalClient) *RedisRegistry {
	return &RedisRegistry{client: client, now: time.Now}
}

func (r *RedisRegistry) Put(ctx context.Context, rec Record) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	ttl := rec.ExpiresAt.Sub(r.now())
	if ttl <= 0 {
		return errors.New("session: record already expired")
	}
	return r.client.Set(ctx, keyPrefix+rec.ID, data, ttl).Err()
}

func (r *RedisRegistry) Get(ctx context.Context, id string) (Record, bool, error) {
	data, err := r.client.Get(ctx, keyPrefix+id).Bytes()
	if errors.Is(err, redis.Nil) {
		return Record{}, false, nil
	}
	if err != nil {
		return Record{}, false, err
	}
	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return Record{}, false, err
	}
	return rec, true, nil
}

func (r *RedisRegistry) Delete(ctx context.Context, id string) error {
	return r.client.Del(ctx, keyPrefix+id).Err()
}
