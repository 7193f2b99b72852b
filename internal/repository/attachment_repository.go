package repository

import (
	"context"

	"agency_tracker/internal/apperrors"
	"agency_tracker/internal/models"

	"gorm.io/gorm"
)

type AttachmentRepository interface {
	Create(ctx context.Context, attachment *models.Attachment) error
	GetByProjectID(ctx context.Context, projectID uint) ([]models.Attachment, error)
	// Delete removes the attachment only when it belongs to projectID.
	Delete(ctx context.Context, projectID, id uint) error
}

type attachmentRepository struct {
	db *gorm.DB
}

func NewAttachmentRepository(db *gorm.DB) AttachmentRepository {
	return &attachmentRepository{db: db}
}

func (r *attachmentRepository) Create(ctx context.Context, attachment *models.Attachment) error {
	return r.db.WithContext(ctx).Create(attachment).Error
}

func (r *attachmentRepository) GetByProjectID(ctx context.Context, projectID uint) ([]models.Attachment, error) {
	var attachments []models.Attachment
	err := r.db.WithContext(ctx).Where("project_id = ?", projectID).Order("id ASC").Find(&attachments).Error
	return attachments, err
}

func (r *attachmentRepository) Delete(ctx context.Context, projectID, id uint) error {
	res := r.db.WithContext(ctx).Where("project_id = ?", projectID).Delete(&models.Attachment{}, id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return apperrors.NotFound("attachment", id)
	}
	return nil
}
