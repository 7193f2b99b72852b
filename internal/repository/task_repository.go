package repository

import (
	"context"
	"time"

	"agency_tracker/internal/apperrors"
	"agency_tracker/internal/models"

	"gorm.io/gorm"
)

type TaskRepository interface {
	Create(ctx context.Context, task *models.Task, appendLast bool) error
	GetByID(ctx context.Context, id uint) (*models.Task, error)
	GetByPhaseID(ctx context.Context, phaseID uint) ([]models.Task, error)
	GetByPhaseIDs(ctx context.Context, phaseIDs []uint) ([]models.Task, error)
	Update(ctx context.Context, task *models.Task) error
	UpdateCompletion(ctx context.Context, taskID uint, percentage int) error
	Delete(ctx context.Context, id uint) error
	Reorder(ctx context.Context, phaseID uint, ids []uint) error
}

type taskRepository struct {
	db *gorm.DB
}

func NewTaskRepository(db *gorm.DB) TaskRepository {
	return &taskRepository{db: db}
}

func (r *taskRepository) Create(ctx context.Context, task *models.Task, appendLast bool) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := lockParent(tx, taskScope, task.PhaseID); err != nil {
			return err
		}
		if appendLast {
			next, err := nextSortOrder(tx, taskScope, task.PhaseID)
			if err != nil {
				return err
			}
			task.SortOrder = next
		}
		return tx.Create(task).Error
	})
}

func (r *taskRepository) GetByID(ctx context.Context, id uint) (*models.Task, error) {
	var task models.Task
	err := r.db.WithContext(ctx).First(&task, id).Error
	if err != nil {
		return nil, apperrors.FromDB(err, "task", id)
	}
	return &task, nil
}

func (r *taskRepository) GetByPhaseID(ctx context.Context, phaseID uint) ([]models.Task, error) {
	var tasks []models.Task
	err := r.db.WithContext(ctx).
		Where("phase_id = ?", phaseID).
		Order("sort_order ASC, id ASC").
		Find(&tasks).Error
	return tasks, err
}

func (r *taskRepository) GetByPhaseIDs(ctx context.Context, phaseIDs []uint) ([]models.Task, error) {
	var tasks []models.Task
	if len(phaseIDs) == 0 {
		return tasks, nil
	}
	err := r.db.WithContext(ctx).
		Where("phase_id IN ?", phaseIDs).
		Order("phase_id ASC, sort_order ASC, id ASC").
		Find(&tasks).Error
	return tasks, err
}

func (r *taskRepository) Update(ctx context.Context, task *models.Task) error {
	return updateRow(r.db.WithContext(ctx), task, task.ID, "task")
}

func (r *taskRepository) UpdateCompletion(ctx context.Context, taskID uint, percentage int) error {
	res := r.db.WithContext(ctx).Model(&models.Task{}).Where("id = ?", taskID).Updates(map[string]interface{}{
		"completion_percentage": percentage,
		"updated_at":            time.Now(),
	})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return apperrors.NotFound("task", taskID)
	}
	return nil
}

// Delete removes the task and its task-scoped attachments, then renumbers the
// remaining tasks of the phase.
func (r *taskRepository) Delete(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var task models.Task
		if err := tx.Select("id", "phase_id").First(&task, id).Error; err != nil {
			return apperrors.FromDB(err, "task", id)
		}
		if err := lockParent(tx, taskScope, task.PhaseID); err != nil {
			return err
		}

		if err := tx.Where("task_id = ?", id).Delete(&models.Attachment{}).Error; err != nil {
			return err
		}
		res := tx.Delete(&models.Task{}, id)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return apperrors.NotFound("task", id)
		}
		return compactSiblings(tx, taskScope, task.PhaseID)
	})
}

func (r *taskRepository) Reorder(ctx context.Context, phaseID uint, ids []uint) error {
	if len(ids) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return reorderSiblings(tx, taskScope, phaseID, ids)
	})
}
