package repository

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"home-service-server/models"
)

// RequestRepository stores service requests
type RequestRepository struct {
	db *gorm.DB
}

func NewRequestRepository(db *gorm.DB) *RequestRepository {
	return &RequestRepository{db: db}
}

// WithTx returns a repository bound to tx
func (r *RequestRepository) WithTx(tx *gorm.DB) *RequestRepository {
	return &RequestRepository{db: tx}
}

// RequestFilter narrows admin listings
type RequestFilter struct {
	Stage        models.Stage
	CustomerID   uint
	ServicemanID uint
	City         string
}

func (r *RequestRepository) Create(ctx context.Context, req *models.ServiceRequest) error {
	return r.db.WithContext(ctx).Create(req).Error
}

// CreateBatch inserts all requests in one statement
func (r *RequestRepository) CreateBatch(ctx context.Context, reqs []*models.ServiceRequest) error {
	if len(reqs) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Create(&reqs).Error
}

func (r *RequestRepository) FindByID(ctx context.Context, id uint) (*models.ServiceRequest, error) {
	var req models.ServiceRequest
	err := r.db.WithContext(ctx).
		Preload("AssignedServiceman").
		First(&req, id).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &req, nil
}

// FindByIDForUpdate loads a request holding a row lock until the transaction ends
func (r *RequestRepository) FindByIDForUpdate(ctx context.Context, id uint) (*models.ServiceRequest, error) {
	var req models.ServiceRequest
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Preload("AssignedServiceman").
		First(&req, id).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &req, nil
}

// Claim assigns an open request. It returns false when the request was no longer open.
func (r *RequestRepository) Claim(ctx context.Context, id, servicemanID uint, at time.Time) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.ServiceRequest{}).
		Where("id = ? AND stage = ? AND assigned_serviceman_id IS NULL", id, models.StagePending).
		Updates(map[string]interface{}{
			"stage":                  models.StageAssigned,
			"assigned_serviceman_id": servicemanID,
			"claimed_at":             at,
			"updated_at":             at,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// Transition moves a request from one stage to the next. It returns false when the
// stored stage no longer matches from.
func (r *RequestRepository) Transition(ctx context.Context, id uint, from, to models.Stage, at time.Time) (bool, error) {
	updates := map[string]interface{}{
		"stage":      to,
		"updated_at": at,
	}
	switch to {
	case models.StageCompleted:
		updates["completed_at"] = at
	case models.StageCancelled:
		updates["cancelled_at"] = at
	}

	res := r.db.WithContext(ctx).
		Model(&models.ServiceRequest{}).
		Where("id = ? AND stage = ?", id, from).
		Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// SetPrice records a price unless one was already finalized
func (r *RequestRepository) SetPrice(ctx context.Context, id uint, price float64, finalize bool, at time.Time) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.ServiceRequest{}).
		Where("id = ? AND price_finalized = ?", id, false).
		Updates(map[string]interface{}{
			"final_price":     price,
			"price_finalized": finalize,
			"updated_at":      at,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// MarkPaid flips unpaid requests to paid and returns how many changed
func (r *RequestRepository) MarkPaid(ctx context.Context, ids []uint, at time.Time) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	res := r.db.WithContext(ctx).
		Model(&models.ServiceRequest{}).
		Where("id IN ? AND payment_status = ?", ids, models.PaymentStatusUnpaid).
		Updates(map[string]interface{}{
			"payment_status": models.PaymentStatusPaid,
			"paid_at":        at,
			"updated_at":     at,
		})
	return res.RowsAffected, res.Error
}

// MarkReminded stamps reminded_at on requests that have not been reminded yet
func (r *RequestRepository) MarkReminded(ctx context.Context, ids []uint, at time.Time) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	res := r.db.WithContext(ctx).
		Model(&models.ServiceRequest{}).
		Where("id IN ? AND reminded_at IS NULL", ids).
		Update("reminded_at", at)
	return res.RowsAffected, res.Error
}

func (r *RequestRepository) ListByCustomer(ctx context.Context, customerID uint) ([]models.ServiceRequest, error) {
	var reqs []models.ServiceRequest
	err := r.db.WithContext(ctx).
		Preload("AssignedServiceman").
		Where("customer_id = ?", customerID).
		Order("created_at DESC, id DESC").
		Find(&reqs).Error
	return reqs, err
}

// ListByServiceman returns every request claimed by the serviceman, newest first
func (r *RequestRepository) ListByServiceman(ctx context.Context, servicemanID uint) ([]models.ServiceRequest, error) {
	var reqs []models.ServiceRequest
	err := r.db.WithContext(ctx).
		Where("assigned_serviceman_id = ?", servicemanID).
		Order("claimed_at DESC, id DESC").
		Find(&reqs).Error
	return reqs, err
}

// ListOpen returns unassigned pending requests that carry coordinates
func (r *RequestRepository) ListOpen(ctx context.Context) ([]models.ServiceRequest, error) {
	var reqs []models.ServiceRequest
	err := r.db.WithContext(ctx).
		Where("stage = ? AND assigned_serviceman_id IS NULL", models.StagePending).
		Where("latitude IS NOT NULL AND longitude IS NOT NULL").
		Find(&reqs).Error
	return reqs, err
}

// ListByPaymentGroupForUpdate locks every request a customer placed under one payment group
func (r *RequestRepository) ListByPaymentGroupForUpdate(ctx context.Context, customerID uint, groupID string) ([]models.ServiceRequest, error) {
	var reqs []models.ServiceRequest
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Preload("AssignedServiceman").
		Where("customer_id = ? AND payment_group_id = ?", customerID, groupID).
		Order("id ASC").
		Find(&reqs).Error
	return reqs, err
}

// ListStaleAssigned locks claims made before claimedBefore that never left the assigned
// stage and have not been reminded yet
func (r *RequestRepository) ListStaleAssigned(ctx context.Context, claimedBefore time.Time) ([]models.ServiceRequest, error) {
	var reqs []models.ServiceRequest
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Preload("AssignedServiceman").
		Where("stage = ? AND claimed_at < ? AND reminded_at IS NULL", models.StageAssigned, claimedBefore).
		Order("claimed_at ASC").
		Find(&reqs).Error
	return reqs, err
}

// List returns a filtered page of requests for administration
func (r *RequestRepository) List(ctx context.Context, page, pageSize int, filter RequestFilter) ([]models.ServiceRequest, int64, error) {
	var reqs []models.ServiceRequest
	var total int64

	query := r.db.WithContext(ctx).Model(&models.ServiceRequest{})
	if filter.Stage != "" {
		query = query.Where("stage = ?", filter.Stage)
	}
	if filter.CustomerID != 0 {
		query = query.Where("customer_id = ?", filter.CustomerID)
	}
	if filter.ServicemanID != 0 {
		query = query.Where("assigned_serviceman_id = ?", filter.ServicemanID)
	}
	if filter.City != "" {
		query = query.Where("city = ?", filter.City)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * pageSize
	err := query.
		Preload("AssignedServiceman").
		Order("created_at DESC, id DESC").
		Offset(offset).
		Limit(pageSize).
		Find(&reqs).Error
	if err != nil {
		return nil, 0, err
	}
	return reqs, total, nil
}
