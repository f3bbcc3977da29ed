package notifications

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"home-service-server/models"
	"home-service-server/repository"
)

// Outbox writes events as notification rows inside a transaction and publishes
// them once the transaction has committed.
type Outbox struct {
	repo   *repository.NotificationRepository
	sink   Sink
	logger *zap.Logger
}

func NewOutbox(repo *repository.NotificationRepository, sink Sink, logger *zap.Logger) *Outbox {
	if sink == nil {
		sink = MultiSink{}
	}
	return &Outbox{repo: repo, sink: sink, logger: logger}
}

// Record stores the events using tx and stamps their notification ids
func (o *Outbox) Record(ctx context.Context, tx *gorm.DB, events []Event) error {
	if len(events) == 0 {
		return nil
	}
	rows := make([]*models.Notification, 0, len(events))
	for _, ev := range events {
		n, err := ev.toNotification()
		if err != nil {
			return fmt.Errorf("encode %s event: %w", ev.Name, err)
		}
		rows = append(rows, n)
	}
	if err := o.repo.WithTx(tx).CreateBatch(ctx, rows); err != nil {
		return fmt.Errorf("record notifications: %w", err)
	}
	for i := range events {
		events[i].NotificationID = rows[i].ID
	}
	return nil
}

// Publish hands committed events to the sink. Failures are logged and left for the relay.
func (o *Outbox) Publish(ctx context.Context, events []Event) {
	delivered := make([]uint, 0, len(events))
	for _, ev := range events {
		if err := o.sink.Publish(ctx, ev); err != nil {
			o.logger.Warn("event delivery failed",
				zap.String("event", string(ev.Name)),
				zap.Uint("notification_id", ev.NotificationID),
				zap.Error(err),
			)
			continue
		}
		if ev.NotificationID != 0 {
			delivered = append(delivered, ev.NotificationID)
		}
	}
	if err := o.repo.MarkDelivered(ctx, delivered, time.Now().UTC()); err != nil {
		o.logger.Warn("mark notifications delivered failed", zap.Error(err))
	}
}

// Relay republishes rows that were never delivered and returns how many went out
func (o *Outbox) Relay(ctx context.Context, olderThan time.Duration, batch int) (int, error) {
	rows, err := o.repo.ListUndelivered(ctx, time.Now().UTC().Add(-olderThan), batch)
	if err != nil {
		return 0, fmt.Errorf("list undelivered notifications: %w", err)
	}

	events := make([]Event, 0, len(rows))
	for i := range rows {
		ev, err := FromNotification(&rows[i])
		if err != nil {
			o.logger.Warn("skipping undecodable notification", zap.Uint("notification_id", rows[i].ID), zap.Error(err))
			continue
		}
		events = append(events, ev)
	}

	var sent []uint
	for _, ev := range events {
		if err := o.sink.Publish(ctx, ev); err != nil {
			o.logger.Warn("relay delivery failed", zap.Uint("notification_id", ev.NotificationID), zap.Error(err))
			continue
		}
		sent = append(sent, ev.NotificationID)
	}
	if err := o.repo.MarkDelivered(ctx, sent, time.Now().UTC()); err != nil {
		return len(sent), fmt.Errorf("mark delivered: %w", err)
	}
	return len(sent), nil
}
