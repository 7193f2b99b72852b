package repository

import (
	"agency_tracker/internal/apperrors"
	"agency_tracker/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// siblingScope names the table whose rows share a sort_order sequence and the
// parent column that partitions it.
type siblingScope struct {
	entity      string
	model       any
	parent      any
	scopeColumn string
}

var (
	phaseScope = siblingScope{entity: "phase", model: &models.Phase{}, parent: &models.Project{}, scopeColumn: "project_id"}
	taskScope  = siblingScope{entity: "task", model: &models.Task{}, parent: &models.Phase{}, scopeColumn: "phase_id"}
)

// lockParent takes a row lock on the scope owner so that appends and reorders
// in the same scope are serialized.
func lockParent(tx *gorm.DB, s siblingScope, scopeID uint) error {
	var id uint
	err := tx.Model(s.parent).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Select("id").
		Where("id = ?", scopeID).
		Take(&id).Error
	if err != nil {
		return apperrors.FromDB(err, parentEntity(s), scopeID)
	}
	return nil
}

func parentEntity(s siblingScope) string {
	if s.scopeColumn == "project_id" {
		return "project"
	}
	return "phase"
}

// nextSortOrder returns max(sort_order)+1 in the scope, or 0 when it is empty.
func nextSortOrder(tx *gorm.DB, s siblingScope, scopeID uint) (int, error) {
	var next int
	err := tx.Model(s.model).
		Select("COALESCE(MAX(sort_order), -1) + 1").
		Where(s.scopeColumn+" = ?", scopeID).
		Scan(&next).Error
	return next, err
}

// reorderSiblings sets sort_order to the slice index for every id. It must run
// inside a transaction; any id outside the scope aborts the whole call.
func reorderSiblings(tx *gorm.DB, s siblingScope, scopeID uint, ids []uint) error {
	if err := lockParent(tx, s, scopeID); err != nil {
		return err
	}
	for i, id := range ids {
		res := tx.Model(s.model).
			Where("id = ? AND "+s.scopeColumn+" = ?", id, scopeID).
			Update("sort_order", i)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return apperrors.NotFound(s.entity, id)
		}
	}
	return nil
}

// compactSiblings renumbers the scope 0..n-1 in its current order, closing the
// gap a delete leaves behind.
func compactSiblings(tx *gorm.DB, s siblingScope, scopeID uint) error {
	var ids []uint
	err := tx.Model(s.model).
		Where(s.scopeColumn+" = ?", scopeID).
		Order("sort_order ASC, id ASC").
		Pluck("id", &ids).Error
	if err != nil {
		return err
	}
	for i, id := range ids {
		if err := tx.Model(s.model).Where("id = ?", id).Update("sort_order", i).Error; err != nil {
			return err
		}
	}
	return nil
}
