package services

import (
	"context"
	"log"
	"strings"
	"time"

	"agency_tracker/internal/apperrors"
	"agency_tracker/internal/models"
	"agency_tracker/internal/repository"

	"github.com/google/uuid"
)

type TrackingService interface {
	// Resolve returns the project tree behind an active code. Inactive and
	// unknown codes produce the same not-found error.
	Resolve(ctx context.Context, code string) (*ProjectTree, error)
	Regenerate(ctx context.Context, projectID uint) (*models.TrackingCode, error)
	ActiveCode(ctx context.Context, projectID uint) (*models.TrackingCode, error)
	ListCodes(ctx context.Context, projectID uint) ([]models.TrackingCode, error)
	ProjectTree(ctx context.Context, projectID uint) (*ProjectTree, error)
}

type trackingService struct {
	codeRepo       repository.TrackingCodeRepository
	projectRepo    repository.ProjectRepository
	phaseRepo      repository.PhaseRepository
	taskRepo       repository.TaskRepository
	attachmentRepo repository.AttachmentRepository
	cache          TreeCache
	cacheTTL       time.Duration
	newCode        func() string
}

func NewTrackingService(
	codeRepo repository.TrackingCodeRepository,
	projectRepo repository.ProjectRepository,
	phaseRepo repository.PhaseRepository,
	taskRepo repository.TaskRepository,
	attachmentRepo repository.AttachmentRepository,
	cache TreeCache,
	cacheTTL time.Duration,
) TrackingService {
	return &trackingService{
		codeRepo:       codeRepo,
		projectRepo:    projectRepo,
		phaseRepo:      phaseRepo,
		taskRepo:       taskRepo,
		attachmentRepo: attachmentRepo,
		cache:          cache,
		cacheTTL:       cacheTTL,
		newCode:        GenerateTrackingCode,
	}
}

// GenerateTrackingCode returns 12 upper-case hex characters of a random UUID.
func GenerateTrackingCode() string {
	return strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", ""))[:12]
}

var errUnknownCode = apperrors.NotFound("tracking code", nil)

func (s *trackingService) Resolve(ctx context.Context, code string) (*ProjectTree, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, errUnknownCode
	}

	tc, err := s.codeRepo.GetActiveByCode(ctx, code)
	if err != nil {
		if apperrors.IsNotFound(err) {
			return nil, errUnknownCode
		}
		return nil, err
	}

	tree, err := s.ProjectTree(ctx, tc.ProjectID)
	if err != nil {
		if apperrors.IsNotFound(err) {
			return nil, errUnknownCode
		}
		return nil, err
	}
	return tree, nil
}

func (s *trackingService) ProjectTree(ctx context.Context, projectID uint) (*ProjectTree, error) {
	if s.cache != nil {
		var cached ProjectTree
		hit, err := s.cache.GetProjectTree(ctx, projectID, &cached)
		if err != nil {
			log.Printf("Warning: project tree cache read failed: %v", err)
		} else if hit {
			return &cached, nil
		}
	}

	project, err := s.projectRepo.GetByID(ctx, projectID)
	if err != nil {
		return nil, err
	}
	phases, err := s.phaseRepo.GetByProjectID(ctx, projectID)
	if err != nil {
		return nil, err
	}
	phaseIDs := make([]uint, 0, len(phases))
	for _, p := range phases {
		phaseIDs = append(phaseIDs, p.ID)
	}
	tasks, err := s.taskRepo.GetByPhaseIDs(ctx, phaseIDs)
	if err != nil {
		return nil, err
	}
	attachments, err := s.attachmentRepo.GetByProjectID(ctx, projectID)
	if err != nil {
		return nil, err
	}

	tree := BuildProjectTree(*project, phases, tasks, attachments)

	if s.cache != nil && s.cacheTTL > 0 {
		if err := s.cache.SetProjectTree(ctx, projectID, tree, s.cacheTTL); err != nil {
			log.Printf("Warning: project tree cache write failed: %v", err)
		}
	}
	return tree, nil
}

func (s *trackingService) Regenerate(ctx context.Context, projectID uint) (*models.TrackingCode, error) {
	tc, err := s.codeRepo.Rotate(ctx, projectID, s.newCode())
	if err != nil {
		return nil, err
	}
	invalidateTree(ctx, s.cache, projectID)
	log.Printf("Tracking code rotated for project %d", projectID)
	return tc, nil
}

func (s *trackingService) ActiveCode(ctx context.Context, projectID uint) (*models.TrackingCode, error) {
	return s.codeRepo.GetActiveByProjectID(ctx, projectID)
}

func (s *trackingService) ListCodes(ctx context.Context, projectID uint) ([]models.TrackingCode, error) {
	if _, err := s.projectRepo.GetByID(ctx, projectID); err != nil {
		return nil, err
	}
	return s.codeRepo.GetByProjectID(ctx, projectID)
}
