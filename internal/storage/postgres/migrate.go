package postgres

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"os"

	"github.com/golang-migrate/migrate/v4"
	pgxmigrate "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

const migrationsDir = "sql/migrations"

//go:embed sql/migrations/*.sql
var migrationsFS embed.FS

// MigrateUp применяет up-миграции.
// steps=0 означает "применить все доступные".
func (s *Store) MigrateUp(ctx context.Context, steps int) error {
	if steps < 0 {
		return fmt.Errorf("steps must be >= 0")
	}
	return s.withMigrator(ctx, func(m *migrate.Migrate) error {
		if steps == 0 {
			return m.Up()
		}
		return m.Steps(steps)
	})
}

// MigrateDown откатывает steps последних миграций (0 откатывает всё).
func (s *Store) MigrateDown(ctx context.Context, steps int) error {
	if steps < 0 {
		return fmt.Errorf("steps must be >= 0")
	}
	return s.withMigrator(ctx, func(m *migrate.Migrate) error {
		if steps == 0 {
			return m.Down()
		}
		err := m.Steps(-steps)
		var short migrate.ErrShortLimit
		if errors.As(err, &short) || errors.Is(err, os.ErrNotExist) {
			// Откатили меньше запрошенного: дальше откатывать нечего.
			return nil
		}
		return err
	})
}

// MigrationStatus возвращает текущую версию схемы и признак "грязного" состояния.
func (s *Store) MigrationStatus(ctx context.Context) (uint, bool, error) {
	var (
		version uint
		dirty   bool
	)
	err := s.withMigrator(ctx, func(m *migrate.Migrate) error {
		v, d, err := m.Version()
		if errors.Is(err, migrate.ErrNilVersion) {
			return nil
		}
		if err != nil {
			return err
		}
		version, dirty = v, d
		return nil
	})
	return version, dirty, err
}

func (s *Store) withMigrator(ctx context.Context, fn func(*migrate.Migrate) error) error {
	if s == nil || s.db == nil {
		return errNotInitialized
	}

	src, err := iofs.New(migrationsFS, migrationsDir)
	if err != nil {
		return fmt.Errorf("open embedded migrations: %w", err)
	}

	// Отдельное соединение: закрытие мигратора не должно закрывать общий пул.
	conn, err := s.db.Conn(ctx)
	if err != nil {
		_ = src.Close()
		return fmt.Errorf("acquire migration connection: %w", err)
	}
	driver, err := pgxmigrate.WithConnection(ctx, conn, &pgxmigrate.Config{})
	if err != nil {
		_ = src.Close()
		_ = conn.Close()
		return fmt.Errorf("init migrate driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", src, "pgx5", driver)
	if err != nil {
		_ = src.Close()
		_ = driver.Close()
		return fmt.Errorf("init migrator: %w", err)
	}
	defer m.Close()

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			m.GracefulStop <- true
		case <-done:
		}
	}()

	if err := fn(m); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}
