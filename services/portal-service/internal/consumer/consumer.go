package consumer

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/healthband/portal/libs/kafkax"
	"github.com/healthband/portal/services/portal-service/internal/inbox"
	"github.com/healthband/portal/services/portal-service/internal/storage"
)

// TopicAppointmentCompleted carries the clinic system's notice that a
// visit took place. Consuming it moves the appointment to completed,
// which unlocks the review affordance in listings.
const TopicAppointmentCompleted = "clinic.appointment.completed.v1"

type completedEvent struct {
	AppointmentID string `json:"appointment_id"`
}

// Consumer folds clinic-side completion events into appointment state,
// deduplicating deliveries through the inbox table.
type Consumer struct {
	reader *kafka.Reader
	logger *slog.Logger
	inbox  *inbox.Repository
	repo   *storage.Repository
}

type Config struct {
	Brokers string
	GroupID string
}

func New(logger *slog.Logger, inboxRepo *inbox.Repository, repo *storage.Repository, cfg Config) *Consumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  kafkax.SplitBrokers(cfg.Brokers),
		GroupID:  cfg.GroupID,
		Topic:    TopicAppointmentCompleted,
		MinBytes: 1,
		MaxBytes: 10e6,
	})
	return &Consumer{
		reader: reader,
		logger: logger,
		inbox:  inboxRepo,
		repo:   repo,
	}
}

func (c *Consumer) Run(ctx context.Context) {
	defer c.reader.Close()

	for {
		msg, err := c.reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			c.logger.Error("kafka read error", "err", err)
			time.Sleep(1 * time.Second)
			continue
		}

		ctxMsg := kafkax.ExtractTraceContext(ctx, msg)
		ctxSpan, span := otel.Tracer("kafka").Start(ctxMsg, "kafka.consume",
			trace.WithAttributes(
				attribute.String("messaging.system", "kafka"),
				attribute.String("messaging.destination", msg.Topic),
			),
		)

		meta := kafkax.ExtractEventMeta(msg)

		ok, err := c.inbox.Record(ctxSpan, meta.EventID, meta.EventType)
		if err != nil {
			c.logger.Error("inbox record failed", "err", err)
			span.RecordError(err)
			span.End()
			continue
		}
		if !ok {
			c.logger.Info("duplicate event ignored", "event_id", meta.EventID, "event_type", meta.EventType)
			span.End()
			continue
		}

		if err := c.handleCompleted(ctxSpan, msg); err != nil {
			c.logger.Error("completion handling failed", "err", err, "event_id", meta.EventID)
			span.RecordError(err)
			span.End()
			continue
		}
		span.End()
	}
}

func (c *Consumer) handleCompleted(ctx context.Context, msg kafka.Message) error {
	var evt completedEvent
	if err := json.Unmarshal(msg.Value, &evt); err != nil {
		c.logger.Warn("malformed completion event dropped", "err", err)
		return nil
	}
	if evt.AppointmentID == "" {
		c.logger.Warn("completion event missing appointment_id")
		return nil
	}

	tx, err := c.repo.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	updated, err := c.repo.MarkCompleted(ctx, tx, evt.AppointmentID)
	if err != nil {
		return err
	}
	if !updated {
		c.logger.Info("completion skipped", "appointment_id", evt.AppointmentID)
	} else {
		c.logger.Info("appointment completed", "appointment_id", evt.AppointmentID)
	}
	return tx.Commit(ctx)
}
