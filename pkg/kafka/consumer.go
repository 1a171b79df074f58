package kafka

import (
	"context"
	"errors"
	"time"

	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// Handler processes one message. A non-nil error causes the message to be
// retried before its offset is committed.
type Handler func(ctx context.Context, key []byte, value []byte) error

// Consumer reads a topic as part of a consumer group and commits offsets
// only after the handler succeeds.
type Consumer struct {
	reader         *kafkago.Reader
	logger         *zap.Logger
	handlerTimeout time.Duration
	retryBackoff   time.Duration
}

type ConsumerConfig struct {
	Brokers        []string
	Topic          string
	GroupID        string
	StartOffset    int64
	HandlerTimeout time.Duration
	RetryBackoff   time.Duration
}

// NewConsumer constructs a Consumer from the given configuration.
func NewConsumer(cfg ConsumerConfig, logger *zap.Logger) *Consumer {
	return &Consumer{
		reader: kafkago.NewReader(kafkago.ReaderConfig{
			Brokers:     cfg.Brokers,
			Topic:       cfg.Topic,
			GroupID:     cfg.GroupID,
			StartOffset: cfg.StartOffset,
			MinBytes:    1,
			MaxBytes:    10e6,
			MaxWait:     time.Second,
		}),
		logger:         logger,
		handlerTimeout: cfg.HandlerTimeout,
		retryBackoff:   cfg.RetryBackoff,
	}
}

// Run fetches and handles messages until ctx is cancelled.
func (c *Consumer) Run(ctx context.Context, handler Handler) {
	cfg := c.reader.Config()
	c.logger.Info("kafka consumer started", zap.String("topic", cfg.Topic), zap.String("group", cfg.GroupID))

	for {
		m, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, context.Canceled) {
				return
			}
			c.logger.Warn("fetch message failed", zap.Error(err))
			if !sleep(ctx, c.retryBackoff) {
				return
			}
			continue
		}

		// The reader has already advanced past m, so a failed message is
		// retried here rather than refetched.
		for {
			hctx, cancel := context.WithTimeout(ctx, c.handlerTimeout)
			err = handler(hctx, m.Key, m.Value)
			cancel()
			if err == nil {
				break
			}
			c.logger.Error("handle message failed",
				zap.Int("partition", m.Partition),
				zap.Int64("offset", m.Offset),
				zap.Error(err),
			)
			if !sleep(ctx, c.retryBackoff) {
				return
			}
		}

		if err := c.reader.CommitMessages(ctx, m); err != nil && ctx.Err() == nil {
			c.logger.Error("commit offset failed", zap.Int64("offset", m.Offset), zap.Error(err))
		}
	}
}

// Close leaves the consumer group and closes the reader.
func (c *Consumer) Close() error {
	return c.reader.Close()
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
