package events

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/JakeFAU/judge-sync/internal/domain"
)

// LogSink writes every event as a structured log line.
type LogSink struct {
	logger *zap.Logger
}

// NewLogSink wraps logger.
func NewLogSink(logger *zap.Logger) *LogSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogSink{logger: logger}
}

// Consume logs the batch.
func (s *LogSink) Consume(_ context.Context, batch []Event) error {
	for _, evt := range batch {
		fields := []zap.Field{
			zap.String("run_id", evt.RunID),
			zap.String("stage", string(evt.Stage)),
			zap.String("provider", evt.Provider),
			zap.Time("at", evt.TS),
		}
		if evt.Phase != "" {
			fields = append(fields,
				zap.String("phase", evt.Phase),
				zap.Int("ok", evt.OK),
				zap.Int("failed", evt.Failed),
				zap.Int("skipped", evt.Skipped),
			)
		}
		if evt.Dur > 0 {
			fields = append(fields, zap.Duration("dur", evt.Dur))
		}
		if evt.Note != "" {
			fields = append(fields, zap.String("note", evt.Note))
		}
		if evt.Stage == StageSyncError {
			s.logger.Warn("sync event", fields...)
			continue
		}
		s.logger.Info("sync event", fields...)
	}
	return nil
}

// Close is a no-op.
func (*LogSink) Close(context.Context) error { return nil }

// PublisherSink forwards terminal events (SYNC_DONE, SYNC_ERROR) to a
// publisher such as Pub/Sub. Intermediate stages stay local.
type PublisherSink struct {
	publisher domain.Publisher
	topic     string
}

// NewPublisherSink publishes to topic through publisher.
func NewPublisherSink(publisher domain.Publisher, topic string) *PublisherSink {
	return &PublisherSink{publisher: publisher, topic: topic}
}

// Consume publishes each terminal event. The first failure is returned after
// the rest of the batch has been attempted.
func (s *PublisherSink) Consume(ctx context.Context, batch []Event) error {
	var firstErr error
	for _, evt := range batch {
		if evt.Stage != StageSyncDone && evt.Stage != StageSyncError {
			continue
		}
		if _, err := s.publisher.Publish(ctx, s.topic, evt); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("publish %s event of run %s: %w", evt.Stage, evt.RunID, err)
		}
	}
	return firstErr
}

// Close is a no-op; the publisher is owned by the caller.
func (*PublisherSink) Close(context.Context) error { return nil }
