package database

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// migrations contains all database migrations in order.
var migrations = []struct {
	Version string
	SQL     string
}{
	{
		Version: "000001_create_media_files",
		SQL: `
			CREATE TABLE IF NOT EXISTS media_files (
				id          UUID          PRIMARY KEY,
				user_id     VARCHAR(128)  NOT NULL,
				file_name   VARCHAR(255)  NOT NULL,
				file_url    TEXT          NOT NULL,
				file_type   VARCHAR(8)    NOT NULL CHECK (file_type IN ('video', 'audio')),
				file_size   BIGINT        NOT NULL,
				source      VARCHAR(32)   NOT NULL DEFAULT 'upload',
				bucket      VARCHAR(128)  NOT NULL,
				object_key  TEXT          NOT NULL,
				created_at  TIMESTAMPTZ   NOT NULL DEFAULT NOW()
			);
			CREATE INDEX IF NOT EXISTS idx_media_files_user_id ON media_files(user_id, created_at DESC);
			CREATE UNIQUE INDEX IF NOT EXISTS idx_media_files_object ON media_files(bucket, object_key);
		`,
	},
	{
		Version: "000002_create_upload_sessions",
		SQL: `
			CREATE TABLE IF NOT EXISTS upload_sessions (
				id            UUID          PRIMARY KEY,
				user_id       VARCHAR(128)  NOT NULL,
				bucket        VARCHAR(128)  NOT NULL,
				object_key    TEXT          NOT NULL,
				content_type  VARCHAR(255)  NOT NULL,
				cache_control VARCHAR(64)   NOT NULL DEFAULT '',
				upsert        BOOLEAN       NOT NULL DEFAULT FALSE,
				length        BIGINT        NOT NULL,
				upload_offset BIGINT        NOT NULL DEFAULT 0,
				created_at    TIMESTAMPTZ   NOT NULL DEFAULT NOW(),
				updated_at    TIMESTAMPTZ   NOT NULL DEFAULT NOW(),
				expires_at    TIMESTAMPTZ   NOT NULL
			);
			CREATE INDEX IF NOT EXISTS idx_upload_sessions_expires_at ON upload_sessions(expires_at);
		`,
	},
}

// DB wraps a pgxpool connection pool and provides health checks and migrations.
type DB struct {
	Pool *pgxpool.Pool
}

// New creates a new database connection pool.
func New(ctx context.Context, databaseURL string) (*DB, error) {
	config, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database URL: %w", err)
	}

	config.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	slog.Info("connected to database")
	return &DB{Pool: pool}, nil
}

// RunMigrations applies all pending database migrations in order.
func (db *DB) RunMigrations(ctx context.Context) error {
	// schema_migrations records applied versions.
	_, err := db.Pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version VARCHAR(255) PRIMARY KEY,
			applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}

	for _, m := range migrations {
		// skip applied versions
		var exists bool
		err := db.Pool.QueryRow(ctx,
			"SELECT EXISTS(SELECT 1 FROM schema_migrations WHERE version = $1)",
			m.Version,
		).Scan(&exists)
		if err != nil {
			return fmt.Errorf("failed to check migration status for %s: %w", m.Version, err)
		}
		if exists {
			continue
		}

		err = pgx.BeginFunc(ctx, db.Pool, func(tx pgx.Tx) error {
			if _, err := tx.Exec(ctx, m.SQL); err != nil {
				return fmt.Errorf("failed to execute migration %s: %w", m.Version, err)
			}
			if _, err := tx.Exec(ctx, "INSERT INTO schema_migrations (version) VALUES ($1)", m.Version); err != nil {
				return fmt.Errorf("failed to record migration %s: %w", m.Version, err)
			}
			return nil
		})
		if err != nil {
			return err
		}

		slog.Info("applied migration", "version", m.Version)
	}

	return nil
}

// Stats returns aggregate statistics over stored media and open sessions.
func (db *DB) Stats(ctx context.Context) (*Stats, error) {
	stats := &Stats{}

	err := db.Pool.QueryRow(ctx, `
		SELECT
			(SELECT COUNT(*) FROM media_files),
			(SELECT COALESCE(SUM(file_size), 0) FROM media_files),
			(SELECT COUNT(*) FROM media_files WHERE file_type = 'video'),
			(SELECT COUNT(*) FROM media_files WHERE file_type = 'audio'),
			(SELECT COUNT(*) FROM upload_sessions WHERE expires_at > NOW()),
			(SELECT COALESCE(SUM(upload_offset), 0) FROM upload_sessions WHERE expires_at > NOW())
	`).Scan(
		&stats.TotalFiles,
		&stats.TotalBytes,
		&stats.VideoFiles,
		&stats.AudioFiles,
		&stats.ActiveSessions,
		&stats.PendingBytes,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get stats: %w", err)
	}
	return stats, nil
}

// HealthCheck verifies the database connection is alive.
func (db *DB) HealthCheck(ctx context.Context) error {
	return db.Pool.Ping(ctx)
}

// Close shuts down the connection pool.
func (db *DB) Close() {
	db.Pool.Close()
}
