package repository

import (
	"context"

	"agency_tracker/internal/apperrors"
	"agency_tracker/internal/models"

	"gorm.io/gorm"
)

type ProjectRepository interface {
	Create(ctx context.Context, project *models.Project) error
	GetByID(ctx context.Context, id uint) (*models.Project, error)
	GetByClientID(ctx context.Context, clientID uint) ([]models.Project, error)
	Update(ctx context.Context, project *models.Project) error
	Delete(ctx context.Context, id uint) error
}

type projectRepository struct {
	db *gorm.DB
}

func NewProjectRepository(db *gorm.DB) ProjectRepository {
	return &projectRepository{db: db}
}

func (r *projectRepository) Create(ctx context.Context, project *models.Project) error {
	return r.db.WithContext(ctx).Create(project).Error
}

func (r *projectRepository) GetByID(ctx context.Context, id uint) (*models.Project, error) {
	var project models.Project
	err := r.db.WithContext(ctx).First(&project, id).Error
	if err != nil {
		return nil, apperrors.FromDB(err, "project", id)
	}
	return &project, nil
}

func (r *projectRepository) GetByClientID(ctx context.Context, clientID uint) ([]models.Project, error) {
	var projects []models.Project
	err := r.db.WithContext(ctx).Where("client_id = ?", clientID).Order("id ASC").Find(&projects).Error
	return projects, err
}

func (r *projectRepository) Update(ctx context.Context, project *models.Project) error {
	return updateRow(r.db.WithContext(ctx), project, project.ID, "project")
}

// Delete removes the project and everything hanging off it. Children are
// deleted explicitly so the result does not depend on foreign key cascades.
func (r *projectRepository) Delete(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := lockParent(tx, phaseScope, id); err != nil {
			return err
		}

		phaseIDs := tx.Model(&models.Phase{}).Select("id").Where("project_id = ?", id)
		if err := tx.Where("phase_id IN (?)", phaseIDs).Delete(&models.Task{}).Error; err != nil {
			return err
		}
		if err := tx.Where("project_id = ?", id).Delete(&models.Attachment{}).Error; err != nil {
			return err
		}

		codeIDs := tx.Model(&models.TrackingCode{}).Select("id").Where("project_id = ?", id)
		if err := tx.Where("tracking_code_id IN (?)", codeIDs).Delete(&models.NotificationPreference{}).Error; err != nil {
			return err
		}
		if err := tx.Where("project_id = ?", id).Delete(&models.TrackingCode{}).Error; err != nil {
			return err
		}
		if err := tx.Where("project_id = ?", id).Delete(&models.Phase{}).Error; err != nil {
			return err
		}
		return tx.Delete(&models.Project{}, id).Error
	})
}
