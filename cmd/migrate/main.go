package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/vladislavdragonenkov/storefront/internal/app"
	"github.com/vladislavdragonenkov/storefront/internal/storage/postgres"
)

const (
	defaultTimeout = 30 * time.Second
)

func main() {
	var (
		direction string
		steps     int
		dsn       string
	)

	flag.StringVar(&direction, "direction", "up", "migration direction: up|down|status")
	flag.IntVar(&steps, "steps", 0, "number of migrations to apply/rollback (0=all for up, 1 for down)")
	flag.StringVar(&dsn, "dsn", "", "PostgreSQL DSN (fallback: STOREFRONT_POSTGRES_DSN)")
	flag.Parse()

	dsn, err := resolveDSN(dsn)
	if err != nil {
		fail("%v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()

	store, err := postgres.Open(ctx, dsn)
	if err != nil {
		fail("open postgres store: %v", err)
	}
	defer store.Close()

	switch strings.ToLower(strings.TrimSpace(direction)) {
	case "up":
		if err := store.MigrateUp(ctx, steps); err != nil {
			fail("migrate up failed: %v", err)
		}
		printStatus(ctx, store, "migrate up ok")
	case "down":
		if steps <= 0 {
			steps = 1
		}
		if err := store.MigrateDown(ctx, steps); err != nil {
			fail("migrate down failed: %v", err)
		}
		printStatus(ctx, store, "migrate down ok")
	case "status":
		printStatus(ctx, store, "migration status")
	default:
		fail("unsupported direction: %s (use up|down|status)", direction)
	}
}

// resolveDSN берёт -dsn, иначе STOREFRONT_POSTGRES_DSN из общей конфигурации.
func resolveDSN(flagValue string) (string, error) {
	if dsn := strings.TrimSpace(flagValue); dsn != "" {
		return dsn, nil
	}
	cfg, err := app.LoadConfig()
	if err != nil {
		return "", err
	}
	if dsn := strings.TrimSpace(cfg.PostgresDSN); dsn != "" {
		return dsn, nil
	}
	return "", errors.New("STOREFRONT_POSTGRES_DSN (or -dsn) is required")
}

// printStatus печатает версию схемы cart_snapshots; dirty=true требует ручного вмешательства.
func printStatus(ctx context.Context, store *postgres.Store, prefix string) {
	version, dirty, err := store.MigrationStatus(ctx)
	if err != nil {
		fail("migration status failed: %v", err)
	}
	line := fmt.Sprintf("%s: version=%d dirty=%t", prefix, version, dirty)
	if version > 0 && !dirty {
		if carts, err := store.SnapshotCount(ctx); err == nil {
			line += fmt.Sprintf(" carts=%d", carts)
		}
	}
	fmt.Println(line)
}

func fail(format string, args ...any) {
	_, _ = fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
