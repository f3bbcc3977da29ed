package repository

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"home-service-server/models"
)

// ServicemanRepository stores active profiles, pending registrations and job rejections
type ServicemanRepository struct {
	db *gorm.DB
}

func NewServicemanRepository(db *gorm.DB) *ServicemanRepository {
	return &ServicemanRepository{db: db}
}

func (r *ServicemanRepository) WithTx(tx *gorm.DB) *ServicemanRepository {
	return &ServicemanRepository{db: tx}
}

func (r *ServicemanRepository) Create(ctx context.Context, s *models.Serviceman) error {
	return r.db.WithContext(ctx).Create(s).Error
}

// FindByID returns an active serviceman
func (r *ServicemanRepository) FindByID(ctx context.Context, id uint) (*models.Serviceman, error) {
	var s models.Serviceman
	if err := r.db.WithContext(ctx).First(&s, id).Error; err != nil {
		return nil, notFound(err)
	}
	return &s, nil
}

func (r *ServicemanRepository) CreateRegistration(ctx context.Context, reg *models.ServicemanRegistration) error {
	return r.db.WithContext(ctx).Create(reg).Error
}

// IsRegistered reports whether id only has a pending registration
func (r *ServicemanRepository) IsRegistered(ctx context.Context, id uint) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.ServicemanRegistration{}).
		Where("id = ?", id).
		Count(&count).Error
	return count > 0, err
}

func (r *ServicemanRepository) UpdateLocation(ctx context.Context, id uint, lat, lng float64, at time.Time) error {
	res := r.db.WithContext(ctx).
		Model(&models.Serviceman{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"latitude":            lat,
			"longitude":           lng,
			"location_updated_at": at,
			"updated_at":          at,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *ServicemanRepository) IncrementTotalJobs(ctx context.Context, id uint) error {
	return r.increment(ctx, id, "total_jobs")
}

func (r *ServicemanRepository) IncrementCompletedJobs(ctx context.Context, id uint) error {
	return r.increment(ctx, id, "completed_jobs")
}

func (r *ServicemanRepository) increment(ctx context.Context, id uint, column string) error {
	res := r.db.WithContext(ctx).
		Model(&models.Serviceman{}).
		Where("id = ?", id).
		UpdateColumn(column, gorm.Expr(column+" + ?", 1))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// AddRejection records that the serviceman passed on a request. Repeats are ignored.
func (r *ServicemanRepository) AddRejection(ctx context.Context, rej *models.JobRejection) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(rej).Error
}

// RejectedRequestIDs lists the requests the serviceman has passed on
func (r *ServicemanRepository) RejectedRequestIDs(ctx context.Context, servicemanID uint) (map[uint]struct{}, error) {
	var ids []uint
	err := r.db.WithContext(ctx).
		Model(&models.JobRejection{}).
		Where("serviceman_id = ?", servicemanID).
		Pluck("service_request_id", &ids).Error
	if err != nil {
		return nil, err
	}
	set := make(map[uint]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set, nil
}
