package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/IBM/sarama"
	log "github.com/sirupsen/logrus"
)

// MessageHandler обрабатывает сообщение из Kafka
type MessageHandler func(ctx context.Context, message *sarama.ConsumerMessage) error

const (
	defaultMaxAttempts  = 3
	defaultRetryBackoff = 200 * time.Millisecond

	defaultConsumeBackoff    = 500 * time.Millisecond
	defaultMaxConsumeBackoff = 10 * time.Second
)

// Consumer читает события витрины (команда `storefront events`).
// Неудачная обработка повторяется на месте; после исчерпания попыток сообщение
// пропускается, чтобы лента событий не вставала.
type Consumer struct {
	consumer     sarama.ConsumerGroup
	topics       []string
	handler      MessageHandler
	logger       *log.Entry
	wg           sync.WaitGroup
	maxAttempts  int
	retryBackoff time.Duration

	// пауза между неудачными Consume, удваивается до maxConsumeBackoff
	consumeBackoff    time.Duration
	maxConsumeBackoff time.Duration
}

// NewConsumer создает новый Kafka consumer
func NewConsumer(brokers []string, groupID string, topics []string, handler MessageHandler, logger *log.Entry) (*Consumer, error) {
	config := sarama.NewConfig()
	config.Consumer.Group.Rebalance.Strategy = sarama.NewBalanceStrategyRoundRobin()
	config.Consumer.Offsets.Initial = sarama.OffsetNewest
	config.Consumer.Return.Errors = true

	group, err := sarama.NewConsumerGroup(brokers, groupID, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create kafka consumer: %w", err)
	}
	if logger == nil {
		logger = log.NewEntry(log.StandardLogger())
	}

	return &Consumer{
		consumer:     group,
		topics:       topics,
		handler:      handler,
		logger:       logger.WithField("component", "kafka-consumer"),
		maxAttempts:  defaultMaxAttempts,
		retryBackoff: defaultRetryBackoff,

		consumeBackoff:    defaultConsumeBackoff,
		maxConsumeBackoff: defaultMaxConsumeBackoff,
	}, nil
}

// Start запускает consumer
func (c *Consumer) Start(ctx context.Context) error {
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		delay := c.consumeBackoff
		for {
			// Consume завершается при rebalance, поэтому вызывается в цикле.
			err := c.consumer.Consume(ctx, c.topics, c)
			if ctx.Err() != nil || errors.Is(err, sarama.ErrClosedConsumerGroup) {
				return
			}
			if err == nil {
				delay = c.consumeBackoff
				continue
			}

			c.logger.WithError(err).WithField("retry_in", delay).Error("error from consumer")
			select {
			case <-ctx.Done():
				return
			case <-time.After(delay):
			}
			delay *= 2
			if c.maxConsumeBackoff > 0 && delay > c.maxConsumeBackoff {
				delay = c.maxConsumeBackoff
			}
		}
	}()

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		for err := range c.consumer.Errors() {
			c.logger.WithError(err).Error("consumer error")
		}
	}()

	c.logger.WithField("topics", c.topics).Info("kafka consumer started")
	return nil
}

// Stop останавливает consumer
func (c *Consumer) Stop() error {
	if err := c.consumer.Close(); err != nil {
		return fmt.Errorf("failed to close kafka consumer: %w", err)
	}
	c.wg.Wait()
	c.logger.Info("kafka consumer stopped")
	return nil
}

func (c *Consumer) Setup(sarama.ConsumerGroupSession) error {
	return nil
}

func (c *Consumer) Cleanup(sarama.ConsumerGroupSession) error {
	return nil
}

// ConsumeClaim обрабатывает сообщения из partition
func (c *Consumer) ConsumeClaim(session sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for {
		select {
		case message := <-claim.Messages():
			if message == nil {
				return nil
			}

			fields := log.Fields{
				"topic":     message.Topic,
				"partition": message.Partition,
				"offset":    message.Offset,
			}
			c.logger.WithFields(fields).Debug("received message")

			if err := c.handleWithRetry(session.Context(), message); err != nil {
				if session.Context().Err() != nil {
					return nil
				}
				c.logger.WithError(err).WithFields(fields).Error("message skipped after all attempts")
			}
			session.MarkMessage(message, "")

		case <-session.Context().Done():
			return nil
		}
	}
}

func (c *Consumer) handleWithRetry(ctx context.Context, message *sarama.ConsumerMessage) error {
	attempts := c.maxAttempts
	if attempts < 1 {
		attempts = 1
	}

	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err = c.handler(ctx, message); err == nil {
			return nil
		}
		if attempt == attempts {
			break
		}

		c.logger.WithError(err).WithFields(log.Fields{
			"topic":   message.Topic,
			"attempt": attempt,
		}).Warn("message processing failed, will retry")

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(c.retryBackoff * time.Duration(attempt)):
		}
	}
	return err
}

// ParseOrderEvent парсит OrderEvent из сообщения
func ParseOrderEvent(message *sarama.ConsumerMessage) (*OrderEvent, error) {
	var event OrderEvent
	if err := json.Unmarshal(message.Value, &event); err != nil {
		return nil, fmt.Errorf("failed to unmarshal order event: %w", err)
	}
	return &event, nil
}

// ParseNotificationEvent парсит NotificationEvent из сообщения
func ParseNotificationEvent(message *sarama.ConsumerMessage) (*NotificationEvent, error) {
	var event NotificationEvent
	if err := json.Unmarshal(message.Value, &event); err != nil {
		return nil, fmt.Errorf("failed to unmarshal notification event: %w", err)
	}
	return &event, nil
}
