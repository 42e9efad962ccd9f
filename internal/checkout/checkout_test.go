package checkout_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/storefront/internal/cart"
	"github.com/vladislavdragonenkov/storefront/internal/checkout"
	"github.com/vladislavdragonenkov/storefront/internal/domain"
	"github.com/vladislavdragonenkov/storefront/internal/notify"
	"github.com/vladislavdragonenkov/storefront/internal/storage/memory"
)

type placeCall struct {
	draft domain.OrderDraft
	key   string
}

type fakePlacer struct {
	mu      sync.Mutex
	calls   []placeCall
	id      domain.OrderID
	err     error
	block   chan struct{}
	entered chan struct{}
	panics  bool
}

func (p *fakePlacer) PlaceOrder(ctx context.Context, draft domain.OrderDraft, key string) (domain.OrderID, error) {
	p.mu.Lock()
	p.calls = append(p.calls, placeCall{draft: draft, key: key})
	p.mu.Unlock()

	if p.entered != nil {
		p.entered <- struct{}{}
	}
	if p.block != nil {
		select {
		case <-p.block:
		case <-ctx.Done():
			return 0, ctx.Err()
		}
	}
	if p.panics {
		panic("placer exploded")
	}
	return p.id, p.err
}

type fakePublisher struct {
	mu     sync.Mutex
	topics []string
	keys   []string
}

func (p *fakePublisher) PublishEvent(topic, key string, _ interface{}) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.topics = append(p.topics, topic)
	p.keys = append(p.keys, key)
	return nil
}

func validForm() domain.ShippingForm {
	return domain.ShippingForm{
		FullName:      "Jane Doe",
		Email:         "jane@example.com",
		Address:       "1 Main St",
		City:          "Springfield",
		ZipCode:       "12345",
		PaymentMethod: domain.PaymentMethodCard,
	}
}

// twoItemCart наполняет корзину на $45.50: 2 x 10.00 + 1 x 25.50.
func twoItemCart(t *testing.T) (*cart.Service, *notify.Recorder) {
	t.Helper()
	rec := notify.NewRecorder()
	svc := cart.NewService(context.Background(), memory.NewCartStore(), rec)
	ctx := context.Background()
	mug := domain.Product{ID: 2, Name: "Mug", Price: decimal.RequireFromString("10.00"), Category: "kitchen"}
	notebook := domain.Product{ID: 3, Name: "Notebook", Price: decimal.RequireFromString("25.50"), Category: "stationery"}
	require.NoError(t, svc.AddItem(ctx, mug))
	require.NoError(t, svc.AddItem(ctx, mug))
	require.NoError(t, svc.AddItem(ctx, notebook))
	rec.Drain()
	return svc, rec
}

func TestBuildDraft(t *testing.T) {
	c := domain.Cart{Items: []domain.CartItem{
		{ID: 2, Name: "Mug", Price: decimal.RequireFromString("10.00"), Quantity: 2},
		{ID: 3, Name: "Notebook", Price: decimal.RequireFromString("25.50"), Quantity: 1},
	}}

	draft := checkout.BuildDraft(c, validForm())

	assert.Equal(t, "Jane Doe", draft.CustomerName)
	assert.Equal(t, "jane@example.com", draft.CustomerEmail)
	assert.Equal(t, "1 Main St, Springfield, 12345", draft.ShippingAddress)
	assert.True(t, draft.TotalAmount.Equal(decimal.RequireFromString("45.50")))
	assert.Equal(t, []domain.LineItem{{ProductID: 2, Quantity: 2}, {ProductID: 3, Quantity: 1}}, draft.LineItems)
}

func TestBuildDraft_EmptyCartIsNotValidated(t *testing.T) {
	draft := checkout.BuildDraft(domain.Cart{}, domain.ShippingForm{})

	assert.Empty(t, draft.LineItems)
	assert.True(t, draft.TotalAmount.IsZero())
	assert.Equal(t, ", , ", draft.ShippingAddress)
}

func TestSubmit_SuccessClearsCartAndFormatsReference(t *testing.T) {
	svc, rec := twoItemCart(t)
	placer := &fakePlacer{id: 7}
	pub := &fakePublisher{}
	sub := checkout.NewSubmitter(svc, placer, rec, checkout.WithPublisher(pub))

	id, err := sub.Submit(context.Background(), validForm())
	require.NoError(t, err)

	assert.Equal(t, "ORD-0007", id.Reference())
	assert.Equal(t, 0, svc.Count())
	assert.Equal(t, checkout.StateSucceeded, sub.State())

	require.Len(t, placer.calls, 1)
	assert.True(t, placer.calls[0].draft.TotalAmount.Equal(decimal.RequireFromString("45.50")))
	assert.Len(t, placer.calls[0].draft.LineItems, 2)
	assert.NotEmpty(t, placer.calls[0].key)

	last, ok := rec.Last()
	require.True(t, ok)
	assert.Equal(t, domain.NotificationSuccess, last.Level)
	assert.Equal(t, "Order placed successfully!", last.Message)

	assert.Equal(t, []string{"storefront.order.events"}, pub.topics)
	assert.Equal(t, []string{"ORD-0007"}, pub.keys)

	lastID, ok := sub.LastOrderID()
	assert.True(t, ok)
	assert.Equal(t, domain.OrderID(7), lastID)
}

func TestSubmit_FailureKeepsCartAndSurfacesDetail(t *testing.T) {
	svc, rec := twoItemCart(t)
	placer := &fakePlacer{err: &domain.RemoteError{Op: "place order", StatusCode: 400, Detail: "Out of stock"}}
	sub := checkout.NewSubmitter(svc, placer, rec)
	before := svc.Snapshot()

	_, err := sub.Submit(context.Background(), validForm())
	require.Error(t, err)

	assert.True(t, svc.Snapshot().Equal(before), "cart must be untouched on failure")
	assert.Equal(t, checkout.StateIdle, sub.State())
	assert.ErrorIs(t, err, sub.LastError())

	last, ok := rec.Last()
	require.True(t, ok)
	assert.Equal(t, domain.NotificationError, last.Level)
	assert.True(t, strings.Contains(last.Message, "Out of stock"), last.Message)

	placer.err = nil
	placer.id = 8
	id, err := sub.Submit(context.Background(), validForm())
	require.NoError(t, err, "retry with the same cart must be possible")
	assert.Equal(t, domain.OrderID(8), id)
	require.Len(t, placer.calls, 2)
	assert.NotEqual(t, placer.calls[0].key, placer.calls[1].key, "each attempt carries a fresh key")
}

func TestSubmit_GenericMessageWithoutDetail(t *testing.T) {
	svc, rec := twoItemCart(t)
	sub := checkout.NewSubmitter(svc, &fakePlacer{err: errors.New("connection reset")}, rec)

	_, err := sub.Submit(context.Background(), validForm())
	require.Error(t, err)

	last, _ := rec.Last()
	assert.Equal(t, "Failed to place order. Please try again.", last.Message)
}

func TestSubmit_RejectsConcurrentSubmission(t *testing.T) {
	svc, rec := twoItemCart(t)
	placer := &fakePlacer{id: 1, block: make(chan struct{}), entered: make(chan struct{}, 1)}
	sub := checkout.NewSubmitter(svc, placer, rec)

	done := make(chan error, 1)
	go func() {
		_, err := sub.Submit(context.Background(), validForm())
		done <- err
	}()
	<-placer.entered

	assert.Equal(t, checkout.StateSubmitting, sub.State())
	assert.False(t, sub.CanSubmit(validForm()))
	_, err := sub.Submit(context.Background(), validForm())
	assert.ErrorIs(t, err, domain.ErrSubmissionInProgress)

	close(placer.block)
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("first submission did not finish")
	}
	assert.Len(t, placer.calls, 1)
}

func TestSubmit_KeepsItemsAddedDuringSubmission(t *testing.T) {
	svc, rec := twoItemCart(t)
	placer := &fakePlacer{id: 9, block: make(chan struct{}), entered: make(chan struct{}, 1)}
	sub := checkout.NewSubmitter(svc, placer, rec)

	done := make(chan error, 1)
	go func() {
		_, err := sub.Submit(context.Background(), validForm())
		done <- err
	}()
	<-placer.entered

	lamp := domain.Product{ID: 4, Name: "Desk Lamp", Price: decimal.RequireFromString("45.00"), Category: "home"}
	mug := domain.Product{ID: 2, Name: "Mug", Price: decimal.RequireFromString("10.00"), Category: "kitchen"}
	require.NoError(t, svc.AddItem(context.Background(), lamp))
	require.NoError(t, svc.AddItem(context.Background(), mug))
	close(placer.block)

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("submission did not finish")
	}

	require.Len(t, placer.calls, 1)
	assert.Equal(t, []domain.LineItem{{ProductID: 2, Quantity: 2}, {ProductID: 3, Quantity: 1}}, placer.calls[0].draft.LineItems)

	left := svc.Snapshot()
	require.Len(t, left.Items, 2)
	assert.Equal(t, int64(2), left.Items[0].ID)
	assert.Equal(t, 1, left.Items[0].Quantity, "only the submitted quantity is removed")
	assert.Equal(t, int64(4), left.Items[1].ID)
	assert.Equal(t, 1, left.Items[1].Quantity)
	assert.Equal(t, "55", svc.Total().String())
}

func TestSubmit_PanicReleasesGuard(t *testing.T) {
	svc, rec := twoItemCart(t)
	placer := &fakePlacer{panics: true}
	sub := checkout.NewSubmitter(svc, placer, rec)

	assert.Panics(t, func() {
		_, _ = sub.Submit(context.Background(), validForm())
	})
	assert.Equal(t, checkout.StateIdle, sub.State())
	assert.Equal(t, 3, svc.Count())

	placer.panics = false
	placer.id = 11
	id, err := sub.Submit(context.Background(), validForm())
	require.NoError(t, err)
	assert.Equal(t, domain.OrderID(11), id)
	assert.Equal(t, 0, svc.Count())
}

func TestSubmit_CancelledContextLeavesCart(t *testing.T) {
	svc, rec := twoItemCart(t)
	placer := &fakePlacer{block: make(chan struct{}), entered: make(chan struct{}, 1)}
	sub := checkout.NewSubmitter(svc, placer, rec)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() {
		_, err := sub.Submit(ctx, validForm())
		done <- err
	}()
	<-placer.entered
	cancel()

	err := <-done
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 3, svc.Count())
	assert.Equal(t, checkout.StateIdle, sub.State())
}

func TestCanSubmit(t *testing.T) {
	svc, rec := twoItemCart(t)
	sub := checkout.NewSubmitter(svc, &fakePlacer{}, rec)

	assert.True(t, sub.CanSubmit(validForm()))

	incomplete := validForm()
	incomplete.City = " "
	assert.False(t, sub.CanSubmit(incomplete))

	require.NoError(t, svc.Clear(context.Background()))
	assert.False(t, sub.CanSubmit(validForm()))
}

func TestWithKeyGenerator(t *testing.T) {
	svc, rec := twoItemCart(t)
	placer := &fakePlacer{id: 3}
	sub := checkout.NewSubmitter(svc, placer, rec, checkout.WithKeyGenerator(func() string { return "fixed-key" }))

	_, err := sub.Submit(context.Background(), validForm())
	require.NoError(t, err)
	assert.Equal(t, "fixed-key", placer.calls[0].key)
}
