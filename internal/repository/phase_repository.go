package repository

import (
	"context"

	"agency_tracker/internal/apperrors"
	"agency_tracker/internal/models"

	"gorm.io/gorm"
)

type PhaseRepository interface {
	// Create appends the phase at the end of its project unless appendLast is
	// false, in which case the caller-supplied SortOrder is kept.
	Create(ctx context.Context, phase *models.Phase, appendLast bool) error
	GetByID(ctx context.Context, id uint) (*models.Phase, error)
	GetByProjectID(ctx context.Context, projectID uint) ([]models.Phase, error)
	GetByProjectIDs(ctx context.Context, projectIDs []uint) ([]models.Phase, error)
	Update(ctx context.Context, phase *models.Phase) error
	Delete(ctx context.Context, id uint) error
	Reorder(ctx context.Context, projectID uint, ids []uint) error
}

type phaseRepository struct {
	db *gorm.DB
}

func NewPhaseRepository(db *gorm.DB) PhaseRepository {
	return &phaseRepository{db: db}
}

func (r *phaseRepository) Create(ctx context.Context, phase *models.Phase, appendLast bool) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := lockParent(tx, phaseScope, phase.ProjectID); err != nil {
			return err
		}
		if appendLast {
			next, err := nextSortOrder(tx, phaseScope, phase.ProjectID)
			if err != nil {
				return err
			}
			phase.SortOrder = next
		}
		return tx.Create(phase).Error
	})
}

func (r *phaseRepository) GetByID(ctx context.Context, id uint) (*models.Phase, error) {
	var phase models.Phase
	err := r.db.WithContext(ctx).First(&phase, id).Error
	if err != nil {
		return nil, apperrors.FromDB(err, "phase", id)
	}
	return &phase, nil
}

func (r *phaseRepository) GetByProjectID(ctx context.Context, projectID uint) ([]models.Phase, error) {
	var phases []models.Phase
	err := r.db.WithContext(ctx).
		Where("project_id = ?", projectID).
		Order("sort_order ASC, id ASC").
		Find(&phases).Error
	return phases, err
}

func (r *phaseRepository) GetByProjectIDs(ctx context.Context, projectIDs []uint) ([]models.Phase, error) {
	var phases []models.Phase
	if len(projectIDs) == 0 {
		return phases, nil
	}
	err := r.db.WithContext(ctx).
		Where("project_id IN ?", projectIDs).
		Order("project_id ASC, sort_order ASC, id ASC").
		Find(&phases).Error
	return phases, err
}

func (r *phaseRepository) Update(ctx context.Context, phase *models.Phase) error {
	return updateRow(r.db.WithContext(ctx), phase, phase.ID, "phase")
}

// Delete removes the phase together with its tasks and every attachment
// scoped to the phase or to one of its tasks, then renumbers the remaining
// phases of the project.
func (r *phaseRepository) Delete(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var phase models.Phase
		if err := tx.Select("id", "project_id").First(&phase, id).Error; err != nil {
			return apperrors.FromDB(err, "phase", id)
		}
		if err := lockParent(tx, phaseScope, phase.ProjectID); err != nil {
			return err
		}

		taskIDs := tx.Model(&models.Task{}).Select("id").Where("phase_id = ?", id)
		if err := tx.Where("phase_id = ? OR task_id IN (?)", id, taskIDs).Delete(&models.Attachment{}).Error; err != nil {
			return err
		}
		if err := tx.Where("phase_id = ?", id).Delete(&models.Task{}).Error; err != nil {
			return err
		}
		res := tx.Delete(&models.Phase{}, id)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return apperrors.NotFound("phase", id)
		}
		return compactSiblings(tx, phaseScope, phase.ProjectID)
	})
}

func (r *phaseRepository) Reorder(ctx context.Context, projectID uint, ids []uint) error {
	if len(ids) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return reorderSiblings(tx, phaseScope, projectID, ids)
	})
}
