package repository

import (
	"context"

	"agency_tracker/internal/apperrors"
	"agency_tracker/internal/models"

	"gorm.io/gorm"
)

type ClientRepository interface {
	Create(ctx context.Context, client *models.Client) error
	GetByID(ctx context.Context, id uint) (*models.Client, error)
	GetByAuthUserID(ctx context.Context, authUserID string) (*models.Client, error)
	GetByWhatsAppNumber(ctx context.Context, phone string) (*models.Client, error)
}

type clientRepository struct {
	db *gorm.DB
}

func NewClientRepository(db *gorm.DB) ClientRepository {
	return &clientRepository{db: db}
}

func (r *clientRepository) Create(ctx context.Context, client *models.Client) error {
	return r.db.WithContext(ctx).Create(client).Error
}

func (r *clientRepository) GetByID(ctx context.Context, id uint) (*models.Client, error) {
	var client models.Client
	err := r.db.WithContext(ctx).First(&client, id).Error
	if err != nil {
		return nil, apperrors.FromDB(err, "client", id)
	}
	return &client, nil
}

func (r *clientRepository) GetByAuthUserID(ctx context.Context, authUserID string) (*models.Client, error) {
	var client models.Client
	err := r.db.WithContext(ctx).Where("auth_user_id = ? AND is_active = ?", authUserID, true).First(&client).Error
	if err != nil {
		return nil, apperrors.FromDB(err, "client", authUserID)
	}
	return &client, nil
}

func (r *clientRepository) GetByWhatsAppNumber(ctx context.Context, phone string) (*models.Client, error) {
	var client models.Client
	err := r.db.WithContext(ctx).Where("whats_app_number = ? AND is_active = ?", phone, true).First(&client).Error
	if err != nil {
		return nil, apperrors.FromDB(err, "client", phone)
	}
	return &client, nil
}
