package services

import (
	"context"
	"errors"

	"home-service-server/models"
	"home-service-server/repository"
	"home-service-server/types"
)

// NotificationService exposes a user's notification inbox
type NotificationService struct {
	repo *repository.NotificationRepository
}

func NewNotificationService(repo *repository.NotificationRepository) *NotificationService {
	return &NotificationService{repo: repo}
}

func (s *NotificationService) List(ctx context.Context, actor types.Actor, limit, offset int) ([]models.Notification, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	return s.repo.ListForUser(ctx, actor.ID(), string(actor.Role()), limit, offset)
}

func (s *NotificationService) UnreadCount(ctx context.Context, actor types.Actor) (int64, error) {
	return s.repo.CountUnread(ctx, actor.ID(), string(actor.Role()))
}

func (s *NotificationService) MarkRead(ctx context.Context, actor types.Actor, id uint) error {
	err := s.repo.MarkRead(ctx, id, actor.ID(), string(actor.Role()))
	if errors.Is(err, repository.ErrNotFound) {
		return ErrNotFound
	}
	return err
}

func (s *NotificationService) MarkAllRead(ctx context.Context, actor types.Actor) (int64, error) {
	return s.repo.MarkAllRead(ctx, actor.ID(), string(actor.Role()))
}
