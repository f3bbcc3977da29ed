package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"home-service-server/models"
)

// NotificationRepository stores user notifications and serves as the event outbox
type NotificationRepository struct {
	db *gorm.DB
}

func NewNotificationRepository(db *gorm.DB) *NotificationRepository {
	return &NotificationRepository{db: db}
}

func (r *NotificationRepository) WithTx(tx *gorm.DB) *NotificationRepository {
	return &NotificationRepository{db: tx}
}

func (r *NotificationRepository) CreateBatch(ctx context.Context, ns []*models.Notification) error {
	if len(ns) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Create(&ns).Error
}

func (r *NotificationRepository) ListForUser(ctx context.Context, userID uint, userType string, limit, offset int) ([]models.Notification, error) {
	var ns []models.Notification
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND user_type = ?", userID, userType).
		Order("created_at DESC, id DESC").
		Limit(limit).
		Offset(offset).
		Find(&ns).Error
	return ns, err
}

func (r *NotificationRepository) CountUnread(ctx context.Context, userID uint, userType string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.Notification{}).
		Where("user_id = ? AND user_type = ? AND read = ?", userID, userType, false).
		Count(&count).Error
	return count, err
}

// MarkRead marks one notification owned by the user as read
func (r *NotificationRepository) MarkRead(ctx context.Context, id, userID uint, userType string) error {
	res := r.db.WithContext(ctx).
		Model(&models.Notification{}).
		Where("id = ? AND user_id = ? AND user_type = ?", id, userID, userType).
		Update("read", true)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		// already read rows still match, so zero means not owned or missing
		var count int64
		if err := r.db.WithContext(ctx).Model(&models.Notification{}).
			Where("id = ? AND user_id = ? AND user_type = ?", id, userID, userType).
			Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			return ErrNotFound
		}
	}
	return nil
}

func (r *NotificationRepository) MarkAllRead(ctx context.Context, userID uint, userType string) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Notification{}).
		Where("user_id = ? AND user_type = ? AND read = ?", userID, userType, false).
		Update("read", true)
	return res.RowsAffected, res.Error
}

// ListUndelivered returns outbox rows older than before that no sink has accepted yet
func (r *NotificationRepository) ListUndelivered(ctx context.Context, before time.Time, limit int) ([]models.Notification, error) {
	var ns []models.Notification
	err := r.db.WithContext(ctx).
		Where("delivered_at IS NULL AND created_at < ?", before).
		Order("id ASC").
		Limit(limit).
		Find(&ns).Error
	return ns, err
}

func (r *NotificationRepository) MarkDelivered(ctx context.Context, ids []uint, at time.Time) error {
	if len(ids) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).
		Model(&models.Notification{}).
		Where("id IN ? AND delivered_at IS NULL", ids).
		Update("delivered_at", at).Error
}
