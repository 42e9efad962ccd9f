package admin

import (
	"context"
	"errors"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

const defaultRefreshInterval = 30 * time.Second

// RefresherOptions задает параметры периодического обновления.
type RefresherOptions struct {
	Logger   *log.Entry
	Interval time.Duration
	OnUpdate func()
}

// RefresherOption настраивает Refresher.
type RefresherOption func(*RefresherOptions)

// WithRefreshLogger задает logger для воркера.
func WithRefreshLogger(logger *log.Entry) RefresherOption {
	return func(opts *RefresherOptions) { opts.Logger = logger }
}

// WithInterval задает интервал между обновлениями.
func WithInterval(interval time.Duration) RefresherOption {
	return func(opts *RefresherOptions) { opts.Interval = interval }
}

// WithOnUpdate задает callback после каждого успешного обновления (перерисовка в CLI).
func WithOnUpdate(fn func()) RefresherOption {
	return func(opts *RefresherOptions) { opts.OnUpdate = fn }
}

// Refresher периодически перечитывает заказы, независимо от действий администратора.
type Refresher struct {
	board    *Board
	logger   *log.Entry
	interval time.Duration
	onUpdate func()
}

func NewRefresher(board *Board, options ...RefresherOption) *Refresher {
	opts := RefresherOptions{Interval: defaultRefreshInterval}
	for _, option := range options {
		option(&opts)
	}
	if opts.Logger == nil {
		opts.Logger = log.WithField("component", "admin-refresher")
	}
	if opts.Interval <= 0 {
		opts.Interval = defaultRefreshInterval
	}

	return &Refresher{
		board:    board,
		logger:   opts.Logger,
		interval: opts.Interval,
		onUpdate: opts.OnUpdate,
	}
}

// Interval возвращает фактический интервал обновления.
func (r *Refresher) Interval() time.Duration {
	return r.interval
}

// Run обновляет список сразу и затем по тикеру до отмены ctx или закрытия Board.
func (r *Refresher) Run(ctx context.Context) {
	if !r.tick(ctx) {
		return
	}

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if !r.tick(ctx) {
				return
			}
		}
	}
}

// tick возвращает false, когда дальнейшие обновления бессмысленны.
func (r *Refresher) tick(ctx context.Context) bool {
	err := r.board.Refresh(ctx)
	switch {
	case err == nil:
		if r.onUpdate != nil {
			r.onUpdate()
		}
		return true
	case errors.Is(err, domain.ErrSessionClosed):
		r.logger.Debug("board closed, refresher stopped")
		return false
	case ctx.Err() != nil:
		return false
	default:
		r.logger.WithError(err).Warn("order refresh failed, will retry on next tick")
		return true
	}
}
