package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"home-service-server/models"
	"home-service-server/notifications"
	"home-service-server/repository"
	"home-service-server/types"
)

// LifecycleService drives a claimed request through the field stages and handles withdrawal
type LifecycleService struct {
	base
}

func NewLifecycleService(d Deps) *LifecycleService {
	return &LifecycleService{base: newBase(d)}
}

// Advance moves the request to the next job status. Only the exact next status is accepted.
func (s *LifecycleService) Advance(ctx context.Context, actor types.Actor, requestID uint, to models.JobStatus) (req *models.ServiceRequest, err error) {
	ctx, span := startSpan(ctx, "LifecycleService.Advance", actor,
		attribute.Int64("request_id", int64(requestID)),
		attribute.String("job_status", string(to)),
	)
	defer func() { endSpan(span, err) }()

	err = s.transact(ctx, func(tx *gorm.DB) ([]notifications.Event, error) {
		requests := s.requests.WithTx(tx)
		servicemen := s.servicemen.WithTx(tx)

		if _, err := activeServiceman(ctx, servicemen, actor); err != nil {
			return nil, err
		}

		current, err := requests.FindByIDForUpdate(ctx, requestID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return nil, ErrJobNotFound
			}
			return nil, fmt.Errorf("load request: %w", err)
		}
		if !current.IsAssignedTo(actor.ID()) {
			return nil, fmt.Errorf("%w: request %d is not assigned to you", ErrForbidden, requestID)
		}
		if current.Stage == models.StageCancelled || !ValidAdvance(current.Stage, to) {
			return nil, transitionError(string(current.JobStatus()), string(to))
		}

		now := s.now()
		moved, err := requests.Transition(ctx, requestID, current.Stage, models.Stage(to), now)
		if err != nil {
			return nil, fmt.Errorf("advance request: %w", err)
		}
		if !moved {
			return nil, transitionError(string(current.JobStatus()), string(to))
		}

		if to == models.JobStatusCompleted {
			if err := servicemen.IncrementCompletedJobs(ctx, actor.ID()); err != nil {
				return nil, fmt.Errorf("increment completed jobs: %w", err)
			}
		}

		req, err = requests.FindByID(ctx, requestID)
		if err != nil {
			return nil, fmt.Errorf("reload request: %w", err)
		}
		return []notifications.Event{
			notifications.ForRequest(notifications.EventJobStatusChanged, types.RoleCustomer, req.CustomerID, req, now),
		}, nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("job status advanced",
		zap.Uint("request_id", requestID),
		zap.Uint("serviceman_id", actor.ID()),
		zap.String("job_status", string(to)),
	)
	return req, nil
}

// Withdraw cancels a request its customer no longer wants. Only unclaimed requests can be withdrawn.
func (s *LifecycleService) Withdraw(ctx context.Context, actor types.Actor, requestID uint) (req *models.ServiceRequest, err error) {
	ctx, span := startSpan(ctx, "LifecycleService.Withdraw", actor, attribute.Int64("request_id", int64(requestID)))
	defer func() { endSpan(span, err) }()

	if !actor.IsCustomer() {
		return nil, fmt.Errorf("%w: customer role required", ErrForbidden)
	}

	err = s.transact(ctx, func(tx *gorm.DB) ([]notifications.Event, error) {
		requests := s.requests.WithTx(tx)

		current, err := requests.FindByIDForUpdate(ctx, requestID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return nil, ErrJobNotFound
			}
			return nil, fmt.Errorf("load request: %w", err)
		}
		if current.CustomerID != actor.ID() || current.Stage != models.StagePending {
			return nil, ErrNotWithdrawable
		}

		now := s.now()
		moved, err := requests.Transition(ctx, requestID, models.StagePending, models.StageCancelled, now)
		if err != nil {
			return nil, fmt.Errorf("withdraw request: %w", err)
		}
		if !moved {
			return nil, ErrNotWithdrawable
		}

		req, err = requests.FindByID(ctx, requestID)
		if err != nil {
			return nil, fmt.Errorf("reload request: %w", err)
		}
		return []notifications.Event{
			notifications.ForRequest(notifications.EventRequestWithdrawn, types.RoleCustomer, req.CustomerID, req, now),
		}, nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("request withdrawn", zap.Uint("request_id", requestID), zap.Uint("customer_id", actor.ID()))
	return req, nil
}

// RemindStaleAssignments nudges servicemen whose claims made before claimedBefore are
// still at job status assigned. Each claim is reminded once; nothing is released.
func (s *LifecycleService) RemindStaleAssignments(ctx context.Context, claimedBefore time.Time) (int, error) {
	var reminded int
	err := s.transact(ctx, func(tx *gorm.DB) ([]notifications.Event, error) {
		requests := s.requests.WithTx(tx)

		stale, err := requests.ListStaleAssigned(ctx, claimedBefore)
		if err != nil {
			return nil, fmt.Errorf("list stale assignments: %w", err)
		}
		if len(stale) == 0 {
			return nil, nil
		}

		now := s.now()
		ids := make([]uint, 0, len(stale))
		for _, r := range stale {
			ids = append(ids, r.ID)
		}
		if _, err := requests.MarkReminded(ctx, ids, now); err != nil {
			return nil, fmt.Errorf("mark reminded: %w", err)
		}

		events := make([]notifications.Event, 0, len(stale))
		for i := range stale {
			r := &stale[i]
			events = append(events, notifications.ForRequest(
				notifications.EventAssignmentReminder, types.RoleServiceman, *r.AssignedServicemanID, r, now))
		}
		reminded = len(events)
		return events, nil
	})
	if err != nil {
		return 0, err
	}
	return reminded, nil
}
