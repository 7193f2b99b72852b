package repository

import (
	"agency_tracker/internal/apperrors"

	"gorm.io/gorm"
)

// updateRow writes every column of row except id and created_at. Unlike Save
// it never falls back to an insert, so a row deleted after it was read
// reports NotFound instead of coming back.
func updateRow(tx *gorm.DB, row any, id uint, entity string) error {
	res := tx.Model(row).
		Where("id = ?", id).
		Select("*").
		Omit("id", "created_at").
		Updates(row)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return apperrors.NotFound(entity, id)
	}
	return nil
}
