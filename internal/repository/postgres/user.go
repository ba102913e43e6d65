package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/dtroode/hasura-webhook/internal/model"
)

var _ model.UserStore = (*UserRepository)(nil)

// Querier is the subset of the pool the user repository needs.
type Querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

const (
	selectUserBySubjectQuery = `SELECT id, uuid, created_at FROM public."User" WHERE uuid = $1`
	insertUserQuery          = `INSERT INTO public."User" (uuid) VALUES ($1) RETURNING id, uuid, created_at`
)

// UserRepository owns creation and lookup of identity-linked users.
type UserRepository struct {
	db      Querier
	timeout time.Duration
}

// NewUserRepository creates a repository. A positive timeout bounds every
// single database round trip.
func NewUserRepository(db Querier, timeout time.Duration) *UserRepository {
	return &UserRepository{
		db:      db,
		timeout: timeout,
	}
}

func (r *UserRepository) GetBySubject(ctx context.Context, subject string) (model.User, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	var user model.User
	err := r.db.QueryRow(ctx, selectUserBySubjectQuery, subject).Scan(
		&user.ID, &user.Subject, &user.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.User{}, model.ErrNotFound
		}
		return model.User{}, fmt.Errorf("failed to get user by subject: %w", err)
	}

	return user, nil
}

// Create inserts a user for subject. A concurrent insert of the same subject
// yields an error wrapping model.ErrUniqueViolation.
func (r *UserRepository) Create(ctx context.Context, subject string) (model.User, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	var user model.User
	err := r.db.QueryRow(ctx, insertUserQuery, subject).Scan(
		&user.ID, &user.Subject, &user.CreatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return model.User{}, fmt.Errorf("failed to create user: %w: %w", model.ErrUniqueViolation, err)
		}
		return model.User{}, fmt.Errorf("failed to create user: %w", err)
	}

	return user, nil
}

// ResolveOrCreate returns the user linked to subject, creating it on first
// sight. Losing an insert race to a concurrent caller falls back to reading
// the winner's row; the unique constraint on the subject column is what makes
// this safe without locks or transactions.
func (r *UserRepository) ResolveOrCreate(ctx context.Context, subject string) (model.User, error) {
	user, err := r.GetBySubject(ctx, subject)
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, model.ErrNotFound) {
		return model.User{}, fmt.Errorf("%w: %w", model.ErrStoreUnavailable, err)
	}

	user, err = r.Create(ctx, subject)
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, model.ErrUniqueViolation) {
		return model.User{}, fmt.Errorf("%w: %w", model.ErrStoreUnavailable, err)
	}

	user, err = r.GetBySubject(ctx, subject)
	if err != nil {
		return model.User{}, fmt.Errorf("%w: re-read after insert conflict: %w", model.ErrStoreUnavailable, err)
	}

	return user, nil
}

func (r *UserRepository) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if r.timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, r.timeout)
}
