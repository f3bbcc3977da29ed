package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"home-service-server/models"
)

// PaymentRepository stores payment obligations
type PaymentRepository struct {
	db *gorm.DB
}

func NewPaymentRepository(db *gorm.DB) *PaymentRepository {
	return &PaymentRepository{db: db}
}

func (r *PaymentRepository) WithTx(tx *gorm.DB) *PaymentRepository {
	return &PaymentRepository{db: tx}
}

func (r *PaymentRepository) FindByID(ctx context.Context, id uint) (*models.PaymentObligation, error) {
	var ob models.PaymentObligation
	if err := r.db.WithContext(ctx).First(&ob, id).Error; err != nil {
		return nil, notFound(err)
	}
	return &ob, nil
}

func (r *PaymentRepository) FindByIDForUpdate(ctx context.Context, id uint) (*models.PaymentObligation, error) {
	var ob models.PaymentObligation
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&ob, id).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &ob, nil
}

// FindPending returns the open obligation for the triple, if any
func (r *PaymentRepository) FindPending(ctx context.Context, requestID, customerID, servicemanID uint) (*models.PaymentObligation, error) {
	var ob models.PaymentObligation
	err := r.db.WithContext(ctx).
		Where("request_id = ? AND customer_id = ? AND serviceman_id = ? AND status = ?",
			requestID, customerID, servicemanID, models.ObligationPending).
		First(&ob).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &ob, nil
}

// UpsertPending creates the open obligation for the triple or reconciles the amount of the
// existing one. A concurrent insert losing on the partial unique index falls back to update.
func (r *PaymentRepository) UpsertPending(ctx context.Context, ob *models.PaymentObligation) (*models.PaymentObligation, error) {
	existing, err := r.FindPending(ctx, ob.ServiceRequestID, ob.CustomerID, ob.ServicemanID)
	switch {
	case err == nil:
		return r.reconcile(ctx, existing, ob.Amount)
	case !errors.Is(err, ErrNotFound):
		return nil, err
	}

	ob.Status = models.ObligationPending
	// nested transaction becomes a savepoint so a unique violation leaves the caller's tx usable
	err = r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Create(ob).Error
	})
	if err != nil {
		if !IsUniqueViolation(err) {
			return nil, err
		}
		existing, err = r.FindPending(ctx, ob.ServiceRequestID, ob.CustomerID, ob.ServicemanID)
		if err != nil {
			return nil, err
		}
		return r.reconcile(ctx, existing, ob.Amount)
	}
	return ob, nil
}

func (r *PaymentRepository) reconcile(ctx context.Context, ob *models.PaymentObligation, amount float64) (*models.PaymentObligation, error) {
	if ob.Amount == amount {
		return ob, nil
	}
	err := r.db.WithContext(ctx).
		Model(ob).
		Update("amount", amount).Error
	if err != nil {
		return nil, err
	}
	ob.Amount = amount
	return ob, nil
}

// ListPendingByRequests returns open obligations for the given requests
func (r *PaymentRepository) ListPendingByRequests(ctx context.Context, requestIDs []uint) ([]models.PaymentObligation, error) {
	var obs []models.PaymentObligation
	if len(requestIDs) == 0 {
		return obs, nil
	}
	err := r.db.WithContext(ctx).
		Where("request_id IN ? AND status = ?", requestIDs, models.ObligationPending).
		Order("id ASC").
		Find(&obs).Error
	return obs, err
}

// MarkPaid settles open obligations and returns how many changed
func (r *PaymentRepository) MarkPaid(ctx context.Context, ids []uint, reference string, at time.Time) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	res := r.db.WithContext(ctx).
		Model(&models.PaymentObligation{}).
		Where("id IN ? AND status = ?", ids, models.ObligationPending).
		Updates(map[string]interface{}{
			"status":     models.ObligationPaid,
			"reference":  reference,
			"paid_at":    at,
			"updated_at": at,
		})
	return res.RowsAffected, res.Error
}

func (r *PaymentRepository) ListByCustomer(ctx context.Context, customerID uint) ([]models.PaymentObligation, error) {
	var obs []models.PaymentObligation
	err := r.db.WithContext(ctx).
		Where("customer_id = ?", customerID).
		Order("created_at DESC, id DESC").
		Find(&obs).Error
	return obs, err
}
