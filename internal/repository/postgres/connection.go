package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dtroode/hasura-webhook/database"
	"github.com/dtroode/hasura-webhook/internal/config"
)

// Connection is the shared pgx connection pool.
type Connection struct {
	*pgxpool.Pool
}

// NewConnection opens a pool for cfg.URL, applies the TLS verification toggle
// and, when enabled, runs the embedded migrations.
func NewConnection(ctx context.Context, cfg config.Database) (*Connection, error) {
	conf, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse postgres dsn: %w", err)
	}

	if cfg.TLSSkipVerify {
		skipTLSVerify(conf)
	}
	if cfg.MaxConns > 0 {
		conf.MaxConns = cfg.MaxConns
	}

	pool, err := pgxpool.NewWithConfig(ctx, conf)
	if err != nil {
		return nil, fmt.Errorf("failed to open connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if cfg.RunMigrations {
		if err := database.Migrate(ctx, cfg.URL); err != nil {
			pool.Close()
			return nil, fmt.Errorf("failed to initialize database: %w", err)
		}
	}

	return &Connection{
		Pool: pool,
	}, nil
}

// skipTLSVerify disables certificate verification on every TLS config pgx
// derived from the dsn, including fallbacks. Plain connections stay plain.
func skipTLSVerify(conf *pgxpool.Config) {
	if conf.ConnConfig.TLSConfig != nil {
		conf.ConnConfig.TLSConfig.InsecureSkipVerify = true
	}
	for _, fb := range conf.ConnConfig.Fallbacks {
		if fb.TLSConfig != nil {
			fb.TLSConfig.InsecureSkipVerify = true
		}
	}
}

func (s *Connection) Close() error {
	if s.Pool != nil {
		s.Pool.Close()
	}
	return nil
}

func (s *Connection) Ping(ctx context.Context) error {
	if s.Pool == nil {
		return fmt.Errorf("connection pool is nil")
	}
	return s.Pool.Ping(ctx)
}
