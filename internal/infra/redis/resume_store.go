package redis

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"smartquiz-service/internal/domain"
)

// ResumeStore keeps the per-user "unfinished quiz configuration" pointer
// in Redis with a TTL. Only the coarse config is stored, never in-flight
// answers: SET quiz:resume:{uid} {json} EX ttl
type ResumeStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewResumeStore(client *redis.Client, ttl time.Duration) *ResumeStore {
	return &ResumeStore{client: client, ttl: ttl}
}

func (s *ResumeStore) SetResume(ctx context.Context, uid string, ptr domain.ResumePointer) error {
	raw, err := json.Marshal(ptr)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, s.key(uid), raw, s.ttl).Err()
}

func (s *ResumeStore) GetResume(ctx context.Context, uid string) (domain.ResumePointer, bool, error) {
	raw, err := s.client.Get(ctx, s.key(uid)).Bytes()
	if errors.Is(err, redis.Nil) {
		return domain.ResumePointer{}, false, nil
	}
	if err != nil {
		return domain.ResumePointer{}, false, err
	}
	var ptr domain.ResumePointer
	if err := json.Unmarshal(raw, &ptr); err != nil {
		return domain.ResumePointer{}, false, err
	}
	return ptr, true, nil
}

func (s *ResumeStore) ClearResume(ctx context.Context, uid string) error {
	return s.client.Del(ctx, s.key(uid)).Err()
}

func (s *ResumeStore) key(uid string) string {
	return "quiz:resume:" + uid
}
