package model

import (
	"context"
	"time"
)

// UserStore defines persistence operations for identity-linked users.
type UserStore interface {
	GetBySubject(ctx context.Context, subject string) (User, error)
	Create(ctx context.Context, subject string) (User, error)
	ResolveOrCreate(ctx context.Context, subject string) (User, error)
}

// User links a provider subject identifier to a local user id.
type User struct {
	ID        int64
	Subject   string
	CreatedAt time.Time
}
