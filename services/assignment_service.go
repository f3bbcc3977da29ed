package services

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"home-service-server/models"
	"home-service-server/notifications"
	"home-service-server/repository"
	"home-service-server/types"
)

// AssignmentService hands open requests to servicemen. At most one claim per request succeeds.
type AssignmentService struct {
	base
}

func NewAssignmentService(d Deps) *AssignmentService {
	return &AssignmentService{base: newBase(d)}
}

// Claim assigns a pending request to the calling serviceman
func (s *AssignmentService) Claim(ctx context.Context, actor types.Actor, requestID uint) (req *models.ServiceRequest, err error) {
	ctx, span := startSpan(ctx, "AssignmentService.Claim", actor, attribute.Int64("request_id", int64(requestID)))
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
		if current.Stage != models.StagePending || current.AssignedServicemanID != nil {
			return nil, ErrJobNoLongerAvailable
		}

		now := s.now()
		claimed, err := requests.Claim(ctx, requestID, actor.ID(), now)
		if err != nil {
			return nil, fmt.Errorf("claim request: %w", err)
		}
		if !claimed {
			return nil, ErrJobNoLongerAvailable
		}

		if err := servicemen.IncrementTotalJobs(ctx, actor.ID()); err != nil {
			return nil, fmt.Errorf("increment job count: %w", err)
		}

		req, err = requests.FindByID(ctx, requestID)
		if err != nil {
			return nil, fmt.Errorf("reload request: %w", err)
		}
		return []notifications.Event{
			notifications.ForRequest(notifications.EventJobAccepted, types.RoleCustomer, req.CustomerID, req, now),
		}, nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("job claimed",
		zap.Uint("request_id", requestID),
		zap.Uint("serviceman_id", actor.ID()),
	)
	return req, nil
}

// Reject records that the serviceman is not interested in a pending request.
// The request stays open for everyone else.
func (s *AssignmentService) Reject(ctx context.Context, actor types.Actor, requestID uint) (err error) {
	ctx, span := startSpan(ctx, "AssignmentService.Reject", actor, attribute.Int64("request_id", int64(requestID)))
	defer func() { endSpan(span, err) }()

	if _, err := activeServiceman(ctx, s.servicemen, actor); err != nil {
		return err
	}

	req, err := s.requests.FindByID(ctx, requestID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrJobNotFound
		}
		return fmt.Errorf("load request: %w", err)
	}
	if req.Stage != models.StagePending {
		return ErrJobNoLongerAvailable
	}

	err = s.servicemen.AddRejection(ctx, &models.JobRejection{
		ServiceRequestID: requestID,
		ServicemanID:     actor.ID(),
		RejectedAt:       s.now(),
	})
	if err != nil {
		return fmt.Errorf("record rejection: %w", err)
	}
	return nil
}
