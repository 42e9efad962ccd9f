package notify

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
	"github.com/vladislavdragonenkov/storefront/internal/messaging/kafka"
)

type publishedEvent struct {
	topic string
	key   string
	event interface{}
}

type fakePublisher struct {
	mu     sync.Mutex
	events []publishedEvent
	err    error
}

func (p *fakePublisher) PublishEvent(topic, key string, event interface{}) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, publishedEvent{topic: topic, key: key, event: event})
	return p.err
}

func TestFanout_StampsTimeAndDelivers(t *testing.T) {
	first, second := NewRecorder(), NewRecorder()
	fanout := NewFanout(nil, first, nil, second)

	fanout.Notify(domain.Notification{Level: domain.NotificationSuccess, Message: "Mug added to cart"})

	for _, rec := range []*Recorder{first, second} {
		last, ok := rec.Last()
		require.True(t, ok)
		assert.Equal(t, "Mug added to cart", last.Message)
		assert.False(t, last.At.IsZero())
	}
}

func TestRecorder_Drain(t *testing.T) {
	rec := NewRecorder()
	rec.Notify(domain.Notification{Level: domain.NotificationInfo, Message: "a"})
	rec.Notify(domain.Notification{Level: domain.NotificationInfo, Message: "b"})

	drained := rec.Drain()
	require.Len(t, drained, 2)
	assert.Empty(t, rec.All())

	_, ok := rec.Last()
	assert.False(t, ok)
}

func TestKafkaSink_PublishesNotificationEvent(t *testing.T) {
	pub := &fakePublisher{}
	sink := NewKafkaSink(pub, "session-1", nil)

	sink.Notify(domain.Notification{Level: domain.NotificationError, Message: "Error: Out of stock"})

	require.Len(t, pub.events, 1)
	assert.Equal(t, kafka.TopicNotifications, pub.events[0].topic)
	assert.Equal(t, "session-1", pub.events[0].key)

	event, ok := pub.events[0].event.(*kafka.NotificationEvent)
	require.True(t, ok)
	assert.Equal(t, "error", event.Level)
	assert.Equal(t, "Error: Out of stock", event.Message)
}

func TestKafkaSink_PublishErrorIsSwallowed(t *testing.T) {
	pub := &fakePublisher{err: errors.New("broker down")}
	sink := NewKafkaSink(pub, "s", nil)

	assert.NotPanics(t, func() {
		sink.Notify(domain.Notification{Level: domain.NotificationInfo, Message: "x"})
	})
}

func TestLogSink_DoesNotPanic(t *testing.T) {
	sink := NewLogSink(nil)
	sink.Notify(domain.Notification{Level: domain.NotificationError, Message: "boom"})
	sink.Notify(domain.Notification{Level: domain.NotificationSuccess, Message: "ok"})
}
