package admin

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

func TestRefresher_RefreshesOnStartAndOnTick(t *testing.T) {
	api := newFakeAdmin(sampleOrder(1, "ann", domain.OrderStatusPending))
	board := NewBoard(api, nil)
	defer board.Close()

	var updates atomic.Int32
	refresher := NewRefresher(board,
		WithInterval(10*time.Millisecond),
		WithOnUpdate(func() { updates.Add(1) }),
	)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		refresher.Run(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool { return updates.Load() >= 3 }, time.Second, 5*time.Millisecond)
	cancel()
	<-done

	assert.Len(t, board.Orders(), 1)
}

func TestRefresher_StopsWhenBoardClosed(t *testing.T) {
	board := NewBoard(newFakeAdmin(), nil)
	board.Close()

	done := make(chan struct{})
	go func() {
		NewRefresher(board, WithInterval(time.Millisecond)).Run(context.Background())
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("refresher did not stop on closed board")
	}
}

func TestRefresher_SurvivesFailedRefresh(t *testing.T) {
	api := newFakeAdmin(sampleOrder(1, "ann", domain.OrderStatusPending))
	api.listErr = errors.New("temporary outage")
	board := NewBoard(api, nil)
	defer board.Close()

	var updates atomic.Int32
	refresher := NewRefresher(board, WithInterval(5*time.Millisecond), WithOnUpdate(func() { updates.Add(1) }))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go refresher.Run(ctx)

	time.Sleep(20 * time.Millisecond)
	api.mu.Lock()
	api.listErr = nil
	api.mu.Unlock()

	require.Eventually(t, func() bool { return updates.Load() > 0 }, time.Second, 5*time.Millisecond)
}

func TestNewRefresher_DefaultInterval(t *testing.T) {
	r := NewRefresher(NewBoard(newFakeAdmin(), nil), WithInterval(-time.Second))
	assert.Equal(t, 30*time.Second, r.Interval())
}
