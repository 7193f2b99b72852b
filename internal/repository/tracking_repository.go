package repository

import (
	"context"

	"agency_tracker/internal/apperrors"
	"agency_tracker/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type TrackingCodeRepository interface {
	GetActiveByCode(ctx context.Context, code string) (*models.TrackingCode, error)
	GetActiveByProjectID(ctx context.Context, projectID uint) (*models.TrackingCode, error)
	GetByProjectID(ctx context.Context, projectID uint) ([]models.TrackingCode, error)
	// Rotate deactivates the project's active code and inserts code as the new
	// active one in a single transaction.
	Rotate(ctx context.Context, projectID uint, code string) (*models.TrackingCode, error)
}

type trackingCodeRepository struct {
	db *gorm.DB
}

func NewTrackingCodeRepository(db *gorm.DB) TrackingCodeRepository {
	return &trackingCodeRepository{db: db}
}

func (r *trackingCodeRepository) GetActiveByCode(ctx context.Context, code string) (*models.TrackingCode, error) {
	var tc models.TrackingCode
	err := r.db.WithContext(ctx).Where("code = ? AND is_active = ?", code, true).First(&tc).Error
	if err != nil {
		return nil, apperrors.FromDB(err, "tracking code", nil)
	}
	return &tc, nil
}

func (r *trackingCodeRepository) GetActiveByProjectID(ctx context.Context, projectID uint) (*models.TrackingCode, error) {
	var tc models.TrackingCode
	err := r.db.WithContext(ctx).Where("project_id = ? AND is_active = ?", projectID, true).First(&tc).Error
	if err != nil {
		return nil, apperrors.FromDB(err, "active tracking code for project", projectID)
	}
	return &tc, nil
}

func (r *trackingCodeRepository) GetByProjectID(ctx context.Context, projectID uint) ([]models.TrackingCode, error) {
	var codes []models.TrackingCode
	err := r.db.WithContext(ctx).Where("project_id = ?", projectID).Order("id ASC").Find(&codes).Error
	return codes, err
}

func (r *trackingCodeRepository) Rotate(ctx context.Context, projectID uint, code string) (*models.TrackingCode, error) {
	created := &models.TrackingCode{ProjectID: projectID, Code: code, IsActive: true}
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var id uint
		err := tx.Model(&models.Project{}).
			Clauses(clause.Locking{Strength: "UPDATE"}).
			Select("id").
			Where("id = ?", projectID).
			Take(&id).Error
		if err != nil {
			return apperrors.FromDB(err, "project", projectID)
		}

		err = tx.Model(&models.TrackingCode{}).
			Where("project_id = ? AND is_active = ?", projectID, true).
			Update("is_active", false).Error
		if err != nil {
			return err
		}

		if err := tx.Create(created).Error; err != nil {
			return apperrors.FromDB(err, "tracking code", code)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

type NotificationPreferenceRepository interface {
	Upsert(ctx context.Context, pref *models.NotificationPreference) error
	GetOptedIn(ctx context.Context, trackingCodeID uint) ([]models.NotificationPreference, error)
}

type notificationPreferenceRepository struct {
	db *gorm.DB
}

func NewNotificationPreferenceRepository(db *gorm.DB) NotificationPreferenceRepository {
	return &notificationPreferenceRepository{db: db}
}

func (r *notificationPreferenceRepository) Upsert(ctx context.Context, pref *models.NotificationPreference) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "tracking_code_id"}, {Name: "email"}},
		DoUpdates: clause.AssignmentColumns([]string{"opted_in", "updated_at"}),
	}).Create(pref).Error
}

func (r *notificationPreferenceRepository) GetOptedIn(ctx context.Context, trackingCodeID uint) ([]models.NotificationPreference, error) {
	var prefs []models.NotificationPreference
	err := r.db.WithContext(ctx).
		Where("tracking_code_id = ? AND opted_in = ?", trackingCodeID, true).
		Order("email ASC").
		Find(&prefs).Error
	return prefs, err
}
