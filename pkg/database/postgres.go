package database

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"github.com/noah-isme/sma-timetable-api/pkg/config"
)

// DSN renders the lib/pq connection string for cfg.
func DSN(cfg config.DatabaseConfig) string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host,
		cfg.Port,
		cfg.User,
		cfg.Password,
		cfg.Name,
		cfg.SSLMode,
	)
}

// NewPostgres returns a configured PostgreSQL client.
func NewPostgres(ctx context.Context, cfg config.DatabaseConfig) (*sqlx.DB, error) {
	db, err := sqlx.Open("postgres", DSN(cfg))
	if err != nil {
		return nil, err
	}

	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}

	db.SetConnMaxLifetime(1 * time.Hour)
	db.SetConnMaxIdleTime(30 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}

	return db, nil
}

// Handle is the process-wide database resource. Connect is idempotent: the
// first successful call opens the pool and later calls return it.
type Handle struct {
	cfg  config.DatabaseConfig
	open func(context.Context, config.DatabaseConfig) (*sqlx.DB, error)

	mu sync.Mutex
	db *sqlx.DB
}

// NewHandle prepares a handle without connecting.
func NewHandle(cfg config.DatabaseConfig) *Handle {
	return &Handle{cfg: cfg, open: NewPostgres}
}

// Connect opens the pool unless already connected.
func (h *Handle) Connect(ctx context.Context) (*sqlx.DB, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.db != nil {
		return h.db, nil
	}
	db, err := h.open(ctx, h.cfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	h.db = db
	return db, nil
}

// DB returns the connected pool or nil.
func (h *Handle) DB() *sqlx.DB {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.db
}

// Close releases the pool; a later Connect reopens it.
func (h *Handle) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.db == nil {
		return nil
	}
	err := h.db.Close()
	h.db = nil
	return err
}

// Ping checks the connected pool; an unconnected handle reports an error.
func (h *Handle) Ping(ctx context.Context) error {
	db := h.DB()
	if db == nil {
		return fmt.Errorf("postgres not connected")
	}
	return db.PingContext(ctx)
}
