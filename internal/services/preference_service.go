package services

import (
	"context"
	"strings"

	"agency_tracker/internal/apperrors"
	"agency_tracker/internal/models"
	"agency_tracker/internal/repository"
)

type PreferenceService interface {
	Subscribe(ctx context.Context, code, email string) (*models.NotificationPreference, error)
	Unsubscribe(ctx context.Context, code, email string) (*models.NotificationPreference, error)
	OptedInEmails(ctx context.Context, trackingCodeID uint) ([]string, error)
}

type preferenceService struct {
	codeRepo repository.TrackingCodeRepository
	prefRepo repository.NotificationPreferenceRepository
}

func NewPreferenceService(codeRepo repository.TrackingCodeRepository, prefRepo repository.NotificationPreferenceRepository) PreferenceService {
	return &preferenceService{codeRepo: codeRepo, prefRepo: prefRepo}
}

type emailInput struct {
	Email string `json:"email" validate:"required,email"`
}

// NormalizeEmail trims and lower-cases an address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (s *preferenceService) Subscribe(ctx context.Context, code, email string) (*models.NotificationPreference, error) {
	return s.set(ctx, code, email, true)
}

func (s *preferenceService) Unsubscribe(ctx context.Context, code, email string) (*models.NotificationPreference, error) {
	return s.set(ctx, code, email, false)
}

func (s *preferenceService) set(ctx context.Context, code, email string, optedIn bool) (*models.NotificationPreference, error) {
	in := emailInput{Email: NormalizeEmail(email)}
	if err := validateStruct(in); err != nil {
		return nil, err
	}

	tc, err := s.codeRepo.GetActiveByCode(ctx, strings.TrimSpace(code))
	if err != nil {
		if apperrors.IsNotFound(err) {
			return nil, errUnknownCode
		}
		return nil, err
	}

	pref := &models.NotificationPreference{
		TrackingCodeID: tc.ID,
		Email:          in.Email,
		OptedIn:        optedIn,
	}
	if err := s.prefRepo.Upsert(ctx, pref); err != nil {
		return nil, err
	}
	return pref, nil
}

func (s *preferenceService) OptedInEmails(ctx context.Context, trackingCodeID uint) ([]string, error) {
	prefs, err := s.prefRepo.GetOptedIn(ctx, trackingCodeID)
	if err != nil {
		return nil, err
	}
	emails := make([]string, 0, len(prefs))
	for _, p := range prefs {
		emails = append(emails, p.Email)
	}
	return emails, nil
}
