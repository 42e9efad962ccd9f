package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"

	"github.com/vladislavdragonenkov/storefront/internal/app"
	"github.com/vladislavdragonenkov/storefront/internal/version"
)

// runner хранит конфигурацию, собранную в Before, и потоки ввода-вывода команд.
type runner struct {
	cfg app.Config
	out io.Writer
	in  io.Reader
}

func newApp(out io.Writer, in io.Reader) *cli.App {
	r := &runner{out: out, in: in}

	return &cli.App{
		Name:    "storefront",
		Usage:   "shopping cart, checkout and order administration",
		Version: version.GetVersion(),
		Writer:  out,
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "api-url", Usage: "Order/Catalog Service base URL (overrides STOREFRONT_API_URL)"},
			&cli.StringFlag{Name: "cart-store", Usage: "cart store driver: memory|file|redis|postgres"},
			&cli.StringFlag{Name: "cart-file", Usage: "cart file path for the file driver"},
			&cli.StringSliceFlag{Name: "kafka-brokers", Usage: "kafka brokers for lifecycle events"},
			&cli.StringFlag{Name: "log-level", Usage: "log level: debug|info|warn|error"},
		},
		Before: r.before,
		Commands: []*cli.Command{
			r.productsCommand(),
			r.cartCommand(),
			r.checkoutCommand(),
			r.adminCommand(),
			r.eventsCommand(),
			r.healthCommand(),
		},
	}
}

// before собирает конфигурацию: значения по умолчанию, затем окружение, затем флаги.
func (r *runner) before(c *cli.Context) error {
	cfg, err := app.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if c.IsSet("api-url") {
		cfg.APIURL = c.String("api-url")
	}
	if c.IsSet("cart-store") {
		cfg.CartStore = c.String("cart-store")
	}
	if c.IsSet("cart-file") {
		cfg.CartFile = c.String("cart-file")
	}
	if c.IsSet("kafka-brokers") {
		cfg.KafkaBrokers = c.StringSlice("kafka-brokers")
	}
	if c.IsSet("log-level") {
		cfg.LogLevel = c.String("log-level")
	}
	if err := app.ConfigureLogger(cfg.LogLevel); err != nil {
		log.WithError(err).Warn("invalid log level, using info")
	}
	r.cfg = cfg
	return nil
}

// withSession открывает сессию на время одной команды.
func (r *runner) withSession(c *cli.Context, fn func(s *app.Session) error) error {
	s, err := app.OpenSession(c.Context, r.cfg, log.WithField("component", "storefront-cli"))
	if err != nil {
		return err
	}
	defer func() {
		if err := s.Close(); err != nil {
			log.WithError(err).Warn("session close failed")
		}
	}()

	err = fn(s)
	r.printNotifications(s)
	return err
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newApp(os.Stdout, os.Stdin).RunContext(ctx, os.Args); err != nil {
		log.WithError(err).Fatal("storefront завершился с ошибкой")
	}
}
