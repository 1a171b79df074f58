package watcher

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/your-org/podping-watcher/internal/podping"
	"github.com/your-org/podping-watcher/pkg/kafka"
	"github.com/your-org/podping-watcher/pkg/metrics"
)

// Publisher delivers encoded events downstream.
type Publisher interface {
	Publish(ctx context.Context, key []byte, value []byte, headers map[string]string) error
	Close(ctx context.Context) error
}

// Source feeds raw operation records to a handler until ctx is cancelled.
type Source interface {
	Run(ctx context.Context, handler kafka.Handler)
	Close() error
}

// Accounts hands out the current trusted account snapshot.
type Accounts interface {
	Snapshot() podping.AccountSet
}

// Service wires the decoder to the operation stream and the event sink.
type Service struct {
	decoder  *podping.Decoder
	accounts Accounts
	source   Source
	producer Publisher
	metrics  *metrics.Metrics
	logger   *zap.Logger
	tracer   trace.Tracer
	now      func() time.Time
}

type Params struct {
	Decoder  *podping.Decoder
	Accounts Accounts
	Source   Source
	Producer Publisher
	Metrics  *metrics.Metrics
	Logger   *zap.Logger
}

// NewService constructs a watcher Service.
func NewService(p Params) *Service {
	for _, rej := range podping.Rejections {
		p.Metrics.RejectionsTotal.WithLabelValues(string(rej))
	}
	return &Service{
		decoder:  p.Decoder,
		accounts: p.Accounts,
		source:   p.Source,
		producer: p.Producer,
		metrics:  p.Metrics,
		logger:   p.Logger,
		tracer:   otel.Tracer("github.com/your-org/podping-watcher/internal/watcher"),
		now:      time.Now,
	}
}

// Run consumes the operation stream until ctx is cancelled.
func (s *Service) Run(ctx context.Context) {
	s.source.Run(ctx, s.HandleOperation)
}

// Classify decodes msg against the current snapshot without publishing.
func (s *Service) Classify(msg podping.CandidateMessage) (podping.PodpingEvent, podping.Rejection) {
	return s.decoder.Classify(msg, s.accounts.Snapshot())
}

// ClassifyPayload decodes a bare payload without the identifier and
// authorization gates.
func (s *Service) ClassifyPayload(rawJSON string) (podping.PodpingEvent, podping.Rejection) {
	return s.decoder.ClassifyPayload(rawJSON, podping.TxContext{})
}

// Snapshot returns the trusted accounts in use.
func (s *Service) Snapshot() podping.AccountSet {
	return s.accounts.Snapshot()
}

// HandleOperation processes one raw operation record. Records that are not
// acceptable podpings are counted and dropped; only publish failures are
// returned so the record is retried.
func (s *Service) HandleOperation(ctx context.Context, key []byte, value []byte) error {
	ctx, span := s.tracer.Start(ctx, "watcher.HandleOperation")
	defer span.End()

	s.metrics.OperationsTotal.Inc()

	msg, err := podping.ParseOperation(value)
	if err != nil {
		s.metrics.ParseErrorsTotal.Inc()
		s.logger.Debug("skipping unreadable operation", zap.ByteString("key", key), zap.Error(err))
		return nil
	}
	span.SetAttributes(
		attribute.String("podping.custom_json_id", msg.CustomJSONID),
		attribute.String("hive.trx_id", msg.TransactionID),
		attribute.Int64("hive.block_num", int64(msg.BlockNumber)),
	)

	ev, rej := s.Classify(msg)
	if rej != podping.Accepted {
		s.metrics.RejectionsTotal.WithLabelValues(string(rej)).Inc()
		span.SetAttributes(attribute.String("podping.rejection", string(rej)))
		if rej != podping.RejectNotPodping {
			s.logger.Debug("podping rejected",
				zap.String("id", msg.CustomJSONID),
				zap.String("trx_id", msg.TransactionID),
				zap.String("rejection", string(rej)),
			)
		}
		return nil
	}

	if err := s.publish(ctx, ev); err != nil {
		s.metrics.PublishErrorsTotal.Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, "publish failed")
		return err
	}
	return nil
}

func (s *Service) publish(ctx context.Context, ev podping.PodpingEvent) error {
	envelope := newEnvelope(ev, s.now())

	payload, err := json.Marshal(envelope)
	if err != nil {
		return fmt.Errorf("marshal podping event: %w", err)
	}

	key := ev.TransactionID
	if key == "" {
		key = envelope.ID
	}
	headers := map[string]string{
		"event_id":   envelope.ID,
		"event_type": eventType(ev.Reason),
		"medium":     mediumLabel(ev.Medium),
		"version":    ev.Version,
	}

	if err := s.producer.Publish(ctx, []byte(key), payload, headers); err != nil {
		return fmt.Errorf("publish podping event: %w", err)
	}

	s.metrics.EventsTotal.WithLabelValues(string(ev.Reason), mediumLabel(ev.Medium)).Inc()
	s.metrics.URLsPublishedTotal.Add(float64(len(ev.URLs)))
	s.logger.Info("feed updated",
		zap.Time("timestamp", ev.Timestamp),
		zap.Uint64("block_num", ev.BlockNumber),
		zap.String("trx_id", ev.TransactionID),
		zap.String("reason", string(ev.Reason)),
		zap.String("medium", mediumLabel(ev.Medium)),
		zap.Strings("urls", ev.URLs),
	)
	return nil
}

// Close releases underlying resources.
func (s *Service) Close(ctx context.Context) error {
	if err := s.source.Close(); err != nil {
		return err
	}
	return s.producer.Close(ctx)
}
