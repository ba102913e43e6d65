// Package redis caches subject to user id mappings in front of a user store.
// User records are immutable and never deleted, so cached entries cannot go
// stale; the TTL only bounds memory.
package redis

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/dtroode/hasura-webhook/internal/logger"
	"github.com/dtroode/hasura-webhook/internal/model"
)

const keyPrefix = "hasura-webhook:subject:"

var _ model.UserStore = (*UserStore)(nil)

// UserStore is a read-through cache decorating another model.UserStore.
// Redis failures never fail a call; the underlying store is used instead.
type UserStore struct {
	next   model.UserStore
	client redis.Cmdable
	ttl    time.Duration
	logger *logger.Logger
}

// NewUserStore wraps next with a cache backed by client.
func NewUserStore(next model.UserStore, client redis.Cmdable, ttl time.Duration, logger *logger.Logger) *UserStore {
	return &UserStore{
		next:   next,
		client: client,
		ttl:    ttl,
		logger: logger,
	}
}

func (s *UserStore) GetBySubject(ctx context.Context, subject string) (model.User, error) {
	if user, ok := s.lookup(ctx, subject); ok {
		return user, nil
	}

	user, err := s.next.GetBySubject(ctx, subject)
	if err != nil {
		return model.User{}, err
	}
	s.remember(ctx, user)

	return user, nil
}

func (s *UserStore) Create(ctx context.Context, subject string) (model.User, error) {
	user, err := s.next.Create(ctx, subject)
	if err != nil {
		return model.User{}, err
	}
	s.remember(ctx, user)

	return user, nil
}

func (s *UserStore) ResolveOrCreate(ctx context.Context, subject string) (model.User, error) {
	if user, ok := s.lookup(ctx, subject); ok {
		return user, nil
	}

	user, err := s.next.ResolveOrCreate(ctx, subject)
	if err != nil {
		return model.User{}, err
	}
	s.remember(ctx, user)

	return user, nil
}

// Ping checks the cache connection.
func (s *UserStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *UserStore) lookup(ctx context.Context, subject string) (model.User, bool) {
	raw, err := s.client.Get(ctx, keyPrefix+subject).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			s.logger.Warn("User cache: lookup failed",
				"subject", subject,
				"error", err.Error())
		}
		return model.User{}, false
	}

	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		s.logger.Warn("User cache: corrupt entry",
			"subject", subject,
			"value", raw)
		return model.User{}, false
	}

	return model.User{ID: id, Subject: subject}, true
}

func (s *UserStore) remember(ctx context.Context, user model.User) {
	err := s.client.Set(ctx, keyPrefix+user.Subject, strconv.FormatInt(user.ID, 10), s.ttl).Err()
	if err != nil {
		s.logger.Warn("User cache: store failed",
			"subject", user.Subject,
			"error", err.Error())
	}
}
