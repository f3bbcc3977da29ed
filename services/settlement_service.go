package services

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"home-service-server/models"
	"home-service-server/notifications"
	"home-service-server/repository"
	"home-service-server/types"
)

// Settlement describes money moving from a customer for one or more requests
type Settlement struct {
	CustomerID     uint
	PaymentGroupID string
	RequestIDs     []uint
	Amount         float64
}

// Settler moves the money and returns a reference for the transfer
type Settler interface {
	Settle(ctx context.Context, s Settlement) (string, error)
}

// StubSettler accepts every settlement. Payments are collected outside this service.
type StubSettler struct{}

func (StubSettler) Settle(_ context.Context, _ Settlement) (string, error) {
	return "stl_" + uuid.NewString(), nil
}

// SettlementService finalizes prices and records payments
type SettlementService struct {
	base
	settler Settler
}

func NewSettlementService(d Deps, settler Settler) *SettlementService {
	if settler == nil {
		settler = StubSettler{}
	}
	return &SettlementService{base: newBase(d), settler: settler}
}

const amountTolerance = 0.005

func roundAmount(v float64) float64 {
	return math.Round(v*100) / 100
}

func validAmount(v float64) bool {
	return v > 0 && !math.IsNaN(v) && !math.IsInf(v, 0)
}

// SetPrice records the serviceman's price for a completed job. A finalized price is immutable
// and opens exactly one pending payment obligation whose amount mirrors it.
func (s *SettlementService) SetPrice(ctx context.Context, actor types.Actor, requestID uint, amount float64, finalize bool) (req *models.ServiceRequest, err error) {
	ctx, span := startSpan(ctx, "SettlementService.SetPrice", actor,
		attribute.Int64("request_id", int64(requestID)),
		attribute.Bool("finalize", finalize),
	)
	defer func() { endSpan(span, err) }()

	// sub-cent amounts round to zero and are rejected
	amount = roundAmount(amount)
	if !validAmount(amount) {
		return nil, invalid("amount", "must be at least 0.01")
	}

	err = s.transact(ctx, func(tx *gorm.DB) ([]notifications.Event, error) {
		requests := s.requests.WithTx(tx)

		if _, err := activeServiceman(ctx, s.servicemen.WithTx(tx), actor); err != nil {
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
		if current.PriceFinalized {
			return nil, ErrPriceAlreadyFinalized
		}
		if current.Stage != models.StageCompleted {
			return nil, fmt.Errorf("%w: price can only be set once the job is completed (job status %s)",
				ErrInvalidTransition, current.JobStatus())
		}

		now := s.now()
		updated, err := requests.SetPrice(ctx, requestID, amount, finalize, now)
		if err != nil {
			return nil, fmt.Errorf("set price: %w", err)
		}
		if !updated {
			return nil, ErrPriceAlreadyFinalized
		}

		req, err = requests.FindByID(ctx, requestID)
		if err != nil {
			return nil, fmt.Errorf("reload request: %w", err)
		}
		if !finalize {
			return nil, nil
		}

		ob, err := s.payments.WithTx(tx).UpsertPending(ctx, &models.PaymentObligation{
			ServiceRequestID: req.ID,
			CustomerID:       req.CustomerID,
			ServicemanID:     actor.ID(),
			Amount:           amount,
		})
		if err != nil {
			return nil, fmt.Errorf("open payment obligation: %w", err)
		}
		ev := notifications.ForRequest(notifications.EventPaymentRequired, types.RoleCustomer, req.CustomerID, req, now)
		ev.Amount = &amount
		ev.ObligationID = ob.ID
		return []notifications.Event{ev}, nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("price set",
		zap.Uint("request_id", requestID),
		zap.Float64("amount", amount),
		zap.Bool("finalized", finalize),
	)
	return req, nil
}

// PayGroup settles every unpaid request of a checkout. The amount must match what is due.
func (s *SettlementService) PayGroup(ctx context.Context, actor types.Actor, groupID string, amount float64) (receipt *models.PaymentReceipt, err error) {
	ctx, span := startSpan(ctx, "SettlementService.PayGroup", actor, attribute.String("payment_group_id", groupID))
	defer func() { endSpan(span, err) }()

	if !actor.IsCustomer() {
		return nil, fmt.Errorf("%w: customer role required", ErrForbidden)
	}
	if groupID == "" {
		return nil, invalid("payment_group_id", "is required")
	}
	if !validAmount(amount) {
		return nil, invalid("amount", "must be greater than zero")
	}

	err = s.transact(ctx, func(tx *gorm.DB) ([]notifications.Event, error) {
		requests := s.requests.WithTx(tx)
		payments := s.payments.WithTx(tx)

		group, err := requests.ListByPaymentGroupForUpdate(ctx, actor.ID(), groupID)
		if err != nil {
			return nil, fmt.Errorf("load payment group: %w", err)
		}

		var live, unpaid []models.ServiceRequest
		for _, r := range group {
			if r.Stage == models.StageCancelled {
				continue
			}
			live = append(live, r)
			if r.PaymentStatus != models.PaymentStatusPaid {
				unpaid = append(unpaid, r)
			}
		}
		if len(live) == 0 {
			return nil, fmt.Errorf("payment group %q %w", groupID, ErrNotFound)
		}
		if len(unpaid) == 0 {
			return nil, ErrAlreadyPaid
		}

		var due float64
		ids := make([]uint, 0, len(unpaid))
		for _, r := range unpaid {
			if !r.PriceFinalized || r.FinalPrice == nil {
				return nil, fmt.Errorf("%w: request %d has no final price yet", ErrPriceNotFinalized, r.ID)
			}
			due += *r.FinalPrice
			ids = append(ids, r.ID)
		}
		due = roundAmount(due)
		if math.Abs(amount-due) > amountTolerance {
			return nil, invalid("amount", fmt.Sprintf("must equal the amount due %.2f", due))
		}

		reference, err := s.settler.Settle(ctx, Settlement{
			CustomerID:     actor.ID(),
			PaymentGroupID: groupID,
			RequestIDs:     ids,
			Amount:         due,
		})
		if err != nil {
			return nil, fmt.Errorf("settle payment: %w", err)
		}

		now := s.now()
		changed, err := requests.MarkPaid(ctx, ids, now)
		if err != nil {
			return nil, fmt.Errorf("mark requests paid: %w", err)
		}
		if changed != int64(len(ids)) {
			return nil, ErrAlreadyPaid
		}

		obligations, err := payments.ListPendingByRequests(ctx, ids)
		if err != nil {
			return nil, fmt.Errorf("load obligations: %w", err)
		}
		obIDs := make([]uint, 0, len(obligations))
		for _, ob := range obligations {
			obIDs = append(obIDs, ob.ID)
		}
		if _, err := payments.MarkPaid(ctx, obIDs, reference, now); err != nil {
			return nil, fmt.Errorf("mark obligations paid: %w", err)
		}

		receipt = &models.PaymentReceipt{
			PaymentGroupID: groupID,
			Reference:      reference,
			Amount:         due,
			RequestIDs:     ids,
			PaidAt:         now,
		}
		return paymentReceivedEvents(unpaid, now), nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("payment group settled",
		zap.String("payment_group_id", groupID),
		zap.Uint("customer_id", actor.ID()),
		zap.Float64("amount", receipt.Amount),
		zap.String("reference", receipt.Reference),
	)
	return receipt, nil
}

// PayObligation settles a single obligation without touching the rest of its payment group
func (s *SettlementService) PayObligation(ctx context.Context, actor types.Actor, obligationID uint) (receipt *models.PaymentReceipt, err error) {
	ctx, span := startSpan(ctx, "SettlementService.PayObligation", actor, attribute.Int64("obligation_id", int64(obligationID)))
	defer func() { endSpan(span, err) }()

	if !actor.IsCustomer() {
		return nil, fmt.Errorf("%w: customer role required", ErrForbidden)
	}

	err = s.transact(ctx, func(tx *gorm.DB) ([]notifications.Event, error) {
		requests := s.requests.WithTx(tx)
		payments := s.payments.WithTx(tx)

		ob, err := payments.FindByIDForUpdate(ctx, obligationID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return nil, fmt.Errorf("payment obligation %w", ErrNotFound)
			}
			return nil, fmt.Errorf("load obligation: %w", err)
		}
		if ob.CustomerID != actor.ID() {
			return nil, fmt.Errorf("%w: obligation belongs to another customer", ErrForbidden)
		}
		if ob.Status == models.ObligationPaid {
			return nil, ErrAlreadyPaid
		}

		req, err := requests.FindByIDForUpdate(ctx, ob.ServiceRequestID)
		if err != nil {
			return nil, fmt.Errorf("load request: %w", err)
		}
		if req.PaymentStatus == models.PaymentStatusPaid {
			return nil, ErrAlreadyPaid
		}

		reference, err := s.settler.Settle(ctx, Settlement{
			CustomerID:     actor.ID(),
			PaymentGroupID: req.PaymentGroupID,
			RequestIDs:     []uint{req.ID},
			Amount:         ob.Amount,
		})
		if err != nil {
			return nil, fmt.Errorf("settle payment: %w", err)
		}

		now := s.now()
		if _, err := payments.MarkPaid(ctx, []uint{ob.ID}, reference, now); err != nil {
			return nil, fmt.Errorf("mark obligation paid: %w", err)
		}
		if _, err := requests.MarkPaid(ctx, []uint{req.ID}, now); err != nil {
			return nil, fmt.Errorf("mark request paid: %w", err)
		}

		receipt = &models.PaymentReceipt{
			PaymentGroupID: req.PaymentGroupID,
			ObligationID:   ob.ID,
			Reference:      reference,
			Amount:         ob.Amount,
			RequestIDs:     []uint{req.ID},
			PaidAt:         now,
		}
		return paymentReceivedEvents([]models.ServiceRequest{*req}, now), nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("payment obligation settled",
		zap.Uint("obligation_id", obligationID),
		zap.String("reference", receipt.Reference),
	)
	return receipt, nil
}

// ListObligations returns the customer's payment obligations, newest first
func (s *SettlementService) ListObligations(ctx context.Context, actor types.Actor) ([]models.PaymentObligation, error) {
	if !actor.IsCustomer() {
		return nil, fmt.Errorf("%w: customer role required", ErrForbidden)
	}
	obs, err := s.payments.ListByCustomer(ctx, actor.ID())
	if err != nil {
		return nil, fmt.Errorf("list obligations: %w", err)
	}
	return obs, nil
}

// GetObligation returns one obligation owned by the customer
func (s *SettlementService) GetObligation(ctx context.Context, actor types.Actor, obligationID uint) (*models.PaymentObligation, error) {
	if !actor.IsCustomer() {
		return nil, fmt.Errorf("%w: customer role required", ErrForbidden)
	}
	ob, err := s.payments.FindByID(ctx, obligationID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("payment obligation %w", ErrNotFound)
		}
		return nil, fmt.Errorf("load obligation: %w", err)
	}
	if ob.CustomerID != actor.ID() {
		return nil, fmt.Errorf("%w: obligation belongs to another customer", ErrForbidden)
	}
	return ob, nil
}

func paymentReceivedEvents(paid []models.ServiceRequest, at time.Time) []notifications.Event {
	events := make([]notifications.Event, 0, len(paid))
	for i := range paid {
		r := paid[i]
		if r.AssignedServicemanID == nil {
			continue
		}
		r.PaymentStatus = models.PaymentStatusPaid
		r.PaidAt = &at
		events = append(events, notifications.ForRequest(
			notifications.EventPaymentReceived, types.RoleServiceman, *r.AssignedServicemanID, &r, at))
	}
	return events
}
