package repository

import (
	"context"

	"agency_tracker/internal/models"

	"gorm.io/gorm"
)

// ActivityRepository is write-only: nothing in the engine reads these rows back.
type ActivityRepository interface {
	CreateNotification(ctx context.Context, notification *models.Notification) error
	CreateActivityLog(ctx context.Context, entry *models.ActivityLog) error
}

type activityRepository struct {
	db *gorm.DB
}

func NewActivityRepository(db *gorm.DB) ActivityRepository {
	return &activityRepository{db: db}
}

func (r *activityRepository) CreateNotification(ctx context.Context, notification *models.Notification) error {
	return r.db.WithContext(ctx).Create(notification).Error
}

func (r *activityRepository) CreateActivityLog(ctx context.Context, entry *models.ActivityLog) error {
	return r.db.WithContext(ctx).Create(entry).Error
}
