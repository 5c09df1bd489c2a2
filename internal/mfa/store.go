package mfa

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "mfa:challenge:"

// RedisChallengeStore keeps challenges in Redis under their own TTL;
// GETDEL makes redemption one-shot across instances.
type RedisChallengeStore struct {
	client redis.UniversalClient
	now    func() time.Time
}

var _ ChallengeStore = (*RedisChallengeStore)(nil)

func NewRedisChallengeStore(client redis.UniversalClient) *RedisChallengeStore {
	return &RedisChallengeStore{client: client, now: time.Now}
}

func (s *RedisChallengeStore) Put(ctx context.Context, c Challenge) error {
	data, err := json.Marshal(c)
	if err != nil {
		return err
	}
	ttl := c.ExpiresAt.Sub(s.now())
	if ttl <= 0 {
		return errors.New("mfa: challenge already expired")
	}
	return s.client.Set(ctx, keyPrefix+c.Token, data, ttl).Err()
}

func (s *RedisChallengeStore) Take(ctx context.Context, token string) (Challenge, bool, error) {
	data, err := s.client.GetDel(ctx, keyPrefix+token).Bytes()
	if errors.Is(err, redis.Nil) {
		return Challenge{}, false, nil
	}
	if err != nil {
		return Challenge{}, false, err
	}
	var c Challenge
	if err := json.Unmarshal(data, &c); err != nil {
		return Challenge{}, false, err
	}
	return c, true, nil
}

// InMemoryChallengeStore implements ChallengeStore for tests.
type InMemoryChallengeStore struct {
	mu         sync.Mutex
	challenges map[string]Challenge
}

var _ ChallengeStore = (*InMemoryChallengeStore)(nil)

func NewInMemoryChallengeStore() *InMemoryChallengeStore {
	return &InMemoryChallengeStore{challenges: make(map[string]Challenge)}
}

func (s *InMemoryChallengeStore) Put(ctx context.Context, c Challenge) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.challenges[c.Token] = c
	return nil
}

func (s *InMemoryChallengeStore) Take(ctx context.Context, token string) (Challenge, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.challenges[token]
	if !ok {
		return Challenge{}, false, nil
	}
	delete(s.challenges, token)
	return c, true, nil
}
