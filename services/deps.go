package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"home-service-server/models"
	"home-service-server/notifications"
	"home-service-server/repository"
	"home-service-server/types"
)

var tracer = otel.Tracer("home-service-server/services")

// Deps are the collaborators shared by every engine service
type Deps struct {
	DB     *gorm.DB
	Outbox *notifications.Outbox
	Logger *zap.Logger
	// Now defaults to time.Now in UTC
	Now func() time.Time
}

type base struct {
	db         *gorm.DB
	requests   *repository.RequestRepository
	servicemen *repository.ServicemanRepository
	payments   *repository.PaymentRepository
	outbox     *notifications.Outbox
	logger     *zap.Logger
	now        func() time.Time
}

func newBase(d Deps) base {
	now := d.Now
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	logger := d.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	outbox := d.Outbox
	if outbox == nil {
		outbox = notifications.NewOutbox(repository.NewNotificationRepository(d.DB), nil, logger)
	}
	return base{
		db:         d.DB,
		requests:   repository.NewRequestRepository(d.DB),
		servicemen: repository.NewServicemanRepository(d.DB),
		payments:   repository.NewPaymentRepository(d.DB),
		outbox:     outbox,
		logger:     logger,
		now:        now,
	}
}

// transact runs fn in one transaction, records its events in the outbox inside the same
// transaction and publishes them after commit.
func (b *base) transact(ctx context.Context, fn func(tx *gorm.DB) ([]notifications.Event, error)) error {
	var events []notifications.Event
	err := b.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		evs, err := fn(tx)
		if err != nil {
			return err
		}
		if err := b.outbox.Record(ctx, tx, evs); err != nil {
			return err
		}
		events = evs
		return nil
	})
	if err != nil {
		return err
	}
	b.outbox.Publish(ctx, events)
	return nil
}

// activeServiceman loads the actor's active profile. Servicemen that only hold a
// pending registration are forbidden.
func activeServiceman(ctx context.Context, repo *repository.ServicemanRepository, actor types.Actor) (*models.Serviceman, error) {
	if !actor.IsServiceman() {
		return nil, fmt.Errorf("%w: serviceman role required", ErrForbidden)
	}
	s, err := repo.FindByID(ctx, actor.ID())
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%w: serviceman %d is not active", ErrForbidden, actor.ID())
		}
		return nil, fmt.Errorf("load serviceman: %w", err)
	}
	return s, nil
}

func startSpan(ctx context.Context, name string, actor types.Actor, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	attrs = append(attrs, attribute.String("actor", actor.String()))
	return tracer.Start(ctx, name, trace.WithAttributes(attrs...))
}

func endSpan(span trace.Span, err error) {
	if err != nil && KindOf(err) == KindInternal {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
