package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
)

var errNotInitialized = errors.New("postgres store is not initialized")

// Options задаёт параметры пула. Корзина одной сессии не требует большого пула.
type Options struct {
	ConnTimeout     time.Duration
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
}

// Option настраивает Store при открытии.
type Option func(*Options)

// WithConnTimeout ограничивает ping при открытии и в health-проверках.
func WithConnTimeout(timeout time.Duration) Option {
	return func(o *Options) { o.ConnTimeout = timeout }
}

// WithPoolSize задаёт размер пула соединений.
func WithPoolSize(maxOpen, maxIdle int) Option {
	return func(o *Options) {
		o.MaxOpenConns = maxOpen
		o.MaxIdleConns = maxIdle
	}
}

func defaultOptions() Options {
	return Options{
		ConnTimeout:     5 * time.Second,
		MaxOpenConns:    4,
		MaxIdleConns:    2,
		ConnMaxLifetime: 30 * time.Minute,
		ConnMaxIdleTime: 5 * time.Minute,
	}
}

// Store оборачивает SQL-подключение к PostgreSQL, в котором живут снимки корзин.
type Store struct {
	db          *sql.DB
	connTimeout time.Duration
}

// Open подключается через pgx stdlib и сразу проверяет доступность базы.
func Open(ctx context.Context, dsn string, options ...Option) (*Store, error) {
	opts := defaultOptions()
	for _, option := range options {
		option(&opts)
	}

	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres connection: %w", err)
	}
	db.SetMaxOpenConns(opts.MaxOpenConns)
	db.SetMaxIdleConns(opts.MaxIdleConns)
	db.SetConnMaxLifetime(opts.ConnMaxLifetime)
	db.SetConnMaxIdleTime(opts.ConnMaxIdleTime)

	store := &Store{db: db, connTimeout: opts.ConnTimeout}
	if err := store.Ping(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return store, nil
}

// DB возвращает *sql.DB для миграций и тестов.
func (s *Store) DB() *sql.DB {
	return s.db
}

func (s *Store) Ping(ctx context.Context) error {
	if s == nil || s.db == nil {
		return errNotInitialized
	}
	pingCtx, cancel := context.WithTimeout(ctx, s.connTimeout)
	defer cancel()
	return s.db.PingContext(pingCtx)
}

// SnapshotCount — число сохранённых корзин (по одной на ключ).
func (s *Store) SnapshotCount(ctx context.Context) (int, error) {
	if s == nil || s.db == nil {
		return 0, errNotInitialized
	}
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM cart_snapshots`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count cart snapshots: %w", err)
	}
	return n, nil
}

// EnsureSchema применяет все up-миграции; используется при STOREFRONT_POSTGRES_AUTO_MIGRATE.
func (s *Store) EnsureSchema(ctx context.Context) error {
	return s.MigrateUp(ctx, 0)
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}
