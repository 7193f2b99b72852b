package services

import (
	"context"
	"log"
	"strings"
	"time"

	"agency_tracker/internal/apperrors"
	"agency_tracker/internal/models"
	"agency_tracker/internal/repository"
)

type CreateProjectInput struct {
	Title                string `json:"title"`
	Description          string `json:"description"`
	Status               string `json:"status" validate:"omitempty,oneof=draft published"`
	ClientID             *uint  `json:"client_id"`
	NotificationsEnabled *bool  `json:"notifications_enabled"`
}

type UpdateProjectInput struct {
	Title                *string `json:"title"`
	Description          *string `json:"description"`
	Status               *string `json:"status" validate:"omitempty,oneof=draft published"`
	ClientID             *uint   `json:"client_id"`
	NotificationsEnabled *bool   `json:"notifications_enabled"`
}

type CreatePhaseInput struct {
	ProjectID          uint       `json:"project_id" validate:"required"`
	Name               string     `json:"name"`
	Description        string     `json:"description"`
	Status             string     `json:"status" validate:"omitempty,oneof=pending in_progress completed"`
	SortOrder          *int       `json:"sort_order" validate:"omitempty,gte=0"`
	EstimatedStartDate *time.Time `json:"estimated_start_date"`
	EstimatedEndDate   *time.Time `json:"estimated_end_date"`
	NotifyOnComplete   bool       `json:"notify_on_complete"`
	EstimatedCost      int64      `json:"estimated_cost" validate:"gte=0"`
}

type UpdatePhaseInput struct {
	Name               *string    `json:"name"`
	Description        *string    `json:"description"`
	Status             *string    `json:"status" validate:"omitempty,oneof=pending in_progress completed"`
	EstimatedStartDate *time.Time `json:"estimated_start_date"`
	EstimatedEndDate   *time.Time `json:"estimated_end_date"`
	ActualStartDate    *time.Time `json:"actual_start_date"`
	ActualEndDate      *time.Time `json:"actual_end_date"`
	NotifyOnComplete   *bool      `json:"notify_on_complete"`
	EstimatedCost      *int64     `json:"estimated_cost" validate:"omitempty,gte=0"`
}

type CreateTaskInput struct {
	PhaseID              uint     `json:"phase_id" validate:"required"`
	Name                 string   `json:"name"`
	Description          string   `json:"description"`
	SortOrder            *int     `json:"sort_order" validate:"omitempty,gte=0"`
	CompletionPercentage *float64 `json:"completion_percentage"`
	DeveloperNotes       string   `json:"developer_notes"`
	EstimatedCost        int64    `json:"estimated_cost" validate:"gte=0"`
}

type UpdateTaskInput struct {
	Name                 *string  `json:"name"`
	Description          *string  `json:"description"`
	CompletionPercentage *float64 `json:"completion_percentage"`
	DeveloperNotes       *string  `json:"developer_notes"`
	EstimatedCost        *int64   `json:"estimated_cost" validate:"omitempty,gte=0"`
}

type CreateAttachmentInput struct {
	ProjectID uint   `json:"project_id" validate:"required"`
	PhaseID   *uint  `json:"phase_id"`
	TaskID    *uint  `json:"task_id"`
	FileURL   string `json:"file_url" validate:"required,url"`
	FileType  string `json:"file_type" validate:"required,oneof=image pdf video_embed"`
	FileName  string `json:"file_name"`
}

// PhaseCompletionResult carries the updated phase and the outcome of the
// client email, which never fails the completion itself.
type PhaseCompletionResult struct {
	Phase        *models.Phase     `json:"phase"`
	Notification PhaseNotifyResult `json:"notification"`
}

type HierarchyService interface {
	CreateProject(ctx context.Context, in CreateProjectInput) (*models.Project, error)
	GetProject(ctx context.Context, id uint) (*models.Project, error)
	UpdateProject(ctx context.Context, id uint, in UpdateProjectInput) (*models.Project, error)
	DeleteProject(ctx context.Context, id uint) error

	CreatePhase(ctx context.Context, in CreatePhaseInput) (*models.Phase, error)
	UpdatePhase(ctx context.Context, id uint, in UpdatePhaseInput) (*models.Phase, error)
	DeletePhase(ctx context.Context, id uint) error
	ReorderPhases(ctx context.Context, projectID uint, ids []uint) error
	ListPhases(ctx context.Context, projectID uint) ([]models.Phase, error)
	CompletePhase(ctx context.Context, id uint) (*PhaseCompletionResult, error)

	CreateTask(ctx context.Context, in CreateTaskInput) (*models.Task, error)
	UpdateTask(ctx context.Context, id uint, in UpdateTaskInput) (*models.Task, error)
	UpdateTaskCompletion(ctx context.Context, id uint, percentage float64) (*models.Task, error)
	DeleteTask(ctx context.Context, id uint) error
	ReorderTasks(ctx context.Context, phaseID uint, ids []uint) error
	ListTasks(ctx context.Context, phaseID uint) ([]models.Task, error)

	CreateAttachment(ctx context.Context, in CreateAttachmentInput) (*models.Attachment, error)
	DeleteAttachment(ctx context.Context, projectID, id uint) error
}

type hierarchyService struct {
	projectRepo    repository.ProjectRepository
	phaseRepo      repository.PhaseRepository
	taskRepo       repository.TaskRepository
	attachmentRepo repository.AttachmentRepository
	codeRepo       repository.TrackingCodeRepository
	notifier       PhaseNotifier
	activity       ActivityLogger
	cache          TreeCache
	now            func() time.Time
}

func NewHierarchyService(
	projectRepo repository.ProjectRepository,
	phaseRepo repository.PhaseRepository,
	taskRepo repository.TaskRepository,
	attachmentRepo repository.AttachmentRepository,
	codeRepo repository.TrackingCodeRepository,
	notifier PhaseNotifier,
	activity ActivityLogger,
	cache TreeCache,
) HierarchyService {
	return &hierarchyService{
		projectRepo:    projectRepo,
		phaseRepo:      phaseRepo,
		taskRepo:       taskRepo,
		attachmentRepo: attachmentRepo,
		codeRepo:       codeRepo,
		notifier:       notifier,
		activity:       activity,
		cache:          cache,
		now:            time.Now,
	}
}

// Projects

func (s *hierarchyService) CreateProject(ctx context.Context, in CreateProjectInput) (*models.Project, error) {
	title, err := requireName("title", in.Title)
	if err != nil {
		return nil, err
	}
	if err := validateStruct(in); err != nil {
		return nil, err
	}

	project := &models.Project{
		Title:                title,
		Description:          in.Description,
		Status:               in.Status,
		ClientID:             in.ClientID,
		NotificationsEnabled: true,
	}
	if project.Status == "" {
		project.Status = string(models.ProjectDraft)
	}
	if in.NotificationsEnabled != nil {
		project.NotificationsEnabled = *in.NotificationsEnabled
	}
	if err := s.projectRepo.Create(ctx, project); err != nil {
		return nil, err
	}
	return project, nil
}

func (s *hierarchyService) GetProject(ctx context.Context, id uint) (*models.Project, error) {
	return s.projectRepo.GetByID(ctx, id)
}

func (s *hierarchyService) UpdateProject(ctx context.Context, id uint, in UpdateProjectInput) (*models.Project, error) {
	if err := validateStruct(in); err != nil {
		return nil, err
	}
	var title string
	if in.Title != nil {
		t, err := requireName("title", *in.Title)
		if err != nil {
			return nil, err
		}
		title = t
	}

	project, err := s.projectRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if in.Title != nil {
		project.Title = title
	}
	if in.Description != nil {
		project.Description = *in.Description
	}
	if in.Status != nil {
		project.Status = *in.Status
	}
	if in.ClientID != nil {
		project.ClientID = in.ClientID
	}
	if in.NotificationsEnabled != nil {
		project.NotificationsEnabled = *in.NotificationsEnabled
	}
	if err := s.projectRepo.Update(ctx, project); err != nil {
		return nil, err
	}
	invalidateTree(ctx, s.cache, id)
	return project, nil
}

func (s *hierarchyService) DeleteProject(ctx context.Context, id uint) error {
	if err := s.projectRepo.Delete(ctx, id); err != nil {
		return err
	}
	invalidateTree(ctx, s.cache, id)
	return nil
}

// Phases

func (s *hierarchyService) CreatePhase(ctx context.Context, in CreatePhaseInput) (*models.Phase, error) {
	name, err := requireName("name", in.Name)
	if err != nil {
		return nil, err
	}
	if err := validateStruct(in); err != nil {
		return nil, err
	}

	phase := &models.Phase{
		ProjectID:          in.ProjectID,
		Name:               name,
		Description:        in.Description,
		Status:             in.Status,
		EstimatedStartDate: in.EstimatedStartDate,
		EstimatedEndDate:   in.EstimatedEndDate,
		NotifyOnComplete:   in.NotifyOnComplete,
		EstimatedCost:      in.EstimatedCost,
	}
	if phase.Status == "" {
		phase.Status = string(models.PhasePending)
	}
	if in.SortOrder != nil {
		phase.SortOrder = *in.SortOrder
	}

	if err := s.phaseRepo.Create(ctx, phase, in.SortOrder == nil); err != nil {
		return nil, err
	}
	invalidateTree(ctx, s.cache, phase.ProjectID)
	return phase, nil
}

func (s *hierarchyService) UpdatePhase(ctx context.Context, id uint, in UpdatePhaseInput) (*models.Phase, error) {
	if err := validateStruct(in); err != nil {
		return nil, err
	}
	var name string
	if in.Name != nil {
		n, err := requireName("name", *in.Name)
		if err != nil {
			return nil, err
		}
		name = n
	}

	phase, err := s.phaseRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if in.Name != nil {
		phase.Name = name
	}
	if in.Description != nil {
		phase.Description = *in.Description
	}
	if in.Status != nil {
		phase.Status = *in.Status
	}
	if in.EstimatedStartDate != nil {
		phase.EstimatedStartDate = in.EstimatedStartDate
	}
	if in.EstimatedEndDate != nil {
		phase.EstimatedEndDate = in.EstimatedEndDate
	}
	if in.ActualStartDate != nil {
		phase.ActualStartDate = in.ActualStartDate
	}
	if in.ActualEndDate != nil {
		phase.ActualEndDate = in.ActualEndDate
	}
	if in.NotifyOnComplete != nil {
		phase.NotifyOnComplete = *in.NotifyOnComplete
	}
	if in.EstimatedCost != nil {
		phase.EstimatedCost = *in.EstimatedCost
	}

	if err := s.phaseRepo.Update(ctx, phase); err != nil {
		return nil, err
	}
	invalidateTree(ctx, s.cache, phase.ProjectID)
	return phase, nil
}

func (s *hierarchyService) DeletePhase(ctx context.Context, id uint) error {
	phase, err := s.phaseRepo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if err := s.phaseRepo.Delete(ctx, id); err != nil {
		return err
	}
	invalidateTree(ctx, s.cache, phase.ProjectID)
	return nil
}

func (s *hierarchyService) ReorderPhases(ctx context.Context, projectID uint, ids []uint) error {
	if len(ids) == 0 {
		return nil
	}
	if _, err := s.projectRepo.GetByID(ctx, projectID); err != nil {
		return err
	}
	phases, err := s.phaseRepo.GetByProjectID(ctx, projectID)
	if err != nil {
		return err
	}
	current := make([]uint, 0, len(phases))
	for _, p := range phases {
		current = append(current, p.ID)
	}
	if err := validateOrdering(current, ids); err != nil {
		return err
	}

	if err := s.phaseRepo.Reorder(ctx, projectID, ids); err != nil {
		return err
	}
	invalidateTree(ctx, s.cache, projectID)
	return nil
}

func (s *hierarchyService) ListPhases(ctx context.Context, projectID uint) ([]models.Phase, error) {
	if _, err := s.projectRepo.GetByID(ctx, projectID); err != nil {
		return nil, err
	}
	return s.phaseRepo.GetByProjectID(ctx, projectID)
}

func (s *hierarchyService) CompletePhase(ctx context.Context, id uint) (*PhaseCompletionResult, error) {
	phase, err := s.phaseRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	project, err := s.projectRepo.GetByID(ctx, phase.ProjectID)
	if err != nil {
		return nil, err
	}

	phase.Status = string(models.PhaseCompleted)
	if phase.ActualEndDate == nil {
		today := calendarDay(s.now())
		phase.ActualEndDate = &today
	}
	if err := s.phaseRepo.Update(ctx, phase); err != nil {
		return nil, err
	}
	invalidateTree(ctx, s.cache, phase.ProjectID)

	if s.activity != nil {
		err := s.activity.Log(ctx, phase.ProjectID, models.EventPhaseCompleted, map[string]interface{}{
			"phase_id":   phase.ID,
			"phase_name": phase.Name,
		}, actorFrom(ctx))
		if err != nil {
			log.Printf("Warning: phase_completed activity log for project %d failed: %v", phase.ProjectID, err)
		}
	}

	result := &PhaseCompletionResult{Phase: phase, Notification: PhaseNotifyResult{Success: true, Skipped: true}}
	if !phase.NotifyOnComplete || !project.NotificationsEnabled || s.notifier == nil {
		return result, nil
	}

	tc, err := s.codeRepo.GetActiveByProjectID(ctx, project.ID)
	if err != nil {
		if !apperrors.IsNotFound(err) {
			result.Notification = PhaseNotifyResult{Error: err.Error()}
		}
		return result, nil
	}

	result.Notification = s.notifier.NotifyPhaseCompleted(ctx, PhaseCompletedEvent{
		ProjectID:    project.ID,
		ProjectTitle: project.Title,
		PhaseID:      phase.ID,
		PhaseName:    phase.Name,
		TrackingCode: tc.Code,
	})
	log.Printf("Phase %d completed, %d notification email(s) sent", phase.ID, result.Notification.Sent)
	return result, nil
}

// Tasks

func (s *hierarchyService) CreateTask(ctx context.Context, in CreateTaskInput) (*models.Task, error) {
	name, err := requireName("name", in.Name)
	if err != nil {
		return nil, err
	}
	if err := validateStruct(in); err != nil {
		return nil, err
	}
	percentage := 0
	if in.CompletionPercentage != nil {
		if percentage, err = checkPercentage(*in.CompletionPercentage); err != nil {
			return nil, err
		}
	}

	phase, err := s.phaseRepo.GetByID(ctx, in.PhaseID)
	if err != nil {
		return nil, err
	}

	task := &models.Task{
		PhaseID:              in.PhaseID,
		Name:                 name,
		Description:          in.Description,
		CompletionPercentage: percentage,
		DeveloperNotes:       in.DeveloperNotes,
		EstimatedCost:        in.EstimatedCost,
	}
	if in.SortOrder != nil {
		task.SortOrder = *in.SortOrder
	}

	if err := s.taskRepo.Create(ctx, task, in.SortOrder == nil); err != nil {
		return nil, err
	}
	invalidateTree(ctx, s.cache, phase.ProjectID)
	return task, nil
}

func (s *hierarchyService) UpdateTask(ctx context.Context, id uint, in UpdateTaskInput) (*models.Task, error) {
	if err := validateStruct(in); err != nil {
		return nil, err
	}
	var name string
	if in.Name != nil {
		n, err := requireName("name", *in.Name)
		if err != nil {
			return nil, err
		}
		name = n
	}
	var percentage int
	if in.CompletionPercentage != nil {
		p, err := checkPercentage(*in.CompletionPercentage)
		if err != nil {
			return nil, err
		}
		percentage = p
	}

	task, err := s.taskRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if in.Name != nil {
		task.Name = name
	}
	if in.Description != nil {
		task.Description = *in.Description
	}
	if in.CompletionPercentage != nil {
		task.CompletionPercentage = percentage
	}
	if in.DeveloperNotes != nil {
		task.DeveloperNotes = *in.DeveloperNotes
	}
	if in.EstimatedCost != nil {
		task.EstimatedCost = *in.EstimatedCost
	}

	if err := s.taskRepo.Update(ctx, task); err != nil {
		return nil, err
	}
	s.invalidateForPhase(ctx, task.PhaseID)
	return task, nil
}

func (s *hierarchyService) UpdateTaskCompletion(ctx context.Context, id uint, percentage float64) (*models.Task, error) {
	rounded, err := roundPercentage(percentage)
	if err != nil {
		return nil, err
	}
	if err := s.taskRepo.UpdateCompletion(ctx, id, rounded); err != nil {
		return nil, err
	}
	task, err := s.taskRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	s.invalidateForPhase(ctx, task.PhaseID)
	return task, nil
}

func (s *hierarchyService) DeleteTask(ctx context.Context, id uint) error {
	task, err := s.taskRepo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if err := s.taskRepo.Delete(ctx, id); err != nil {
		return err
	}
	s.invalidateForPhase(ctx, task.PhaseID)
	return nil
}

func (s *hierarchyService) ReorderTasks(ctx context.Context, phaseID uint, ids []uint) error {
	if len(ids) == 0 {
		return nil
	}
	phase, err := s.phaseRepo.GetByID(ctx, phaseID)
	if err != nil {
		return err
	}
	tasks, err := s.taskRepo.GetByPhaseID(ctx, phaseID)
	if err != nil {
		return err
	}
	current := make([]uint, 0, len(tasks))
	for _, t := range tasks {
		current = append(current, t.ID)
	}
	if err := validateOrdering(current, ids); err != nil {
		return err
	}

	if err := s.taskRepo.Reorder(ctx, phaseID, ids); err != nil {
		return err
	}
	invalidateTree(ctx, s.cache, phase.ProjectID)
	return nil
}

func (s *hierarchyService) ListTasks(ctx context.Context, phaseID uint) ([]models.Task, error) {
	if _, err := s.phaseRepo.GetByID(ctx, phaseID); err != nil {
		return nil, err
	}
	return s.taskRepo.GetByPhaseID(ctx, phaseID)
}

func (s *hierarchyService) invalidateForPhase(ctx context.Context, phaseID uint) {
	if s.cache == nil {
		return
	}
	phase, err := s.phaseRepo.GetByID(ctx, phaseID)
	if err != nil {
		log.Printf("Warning: cannot resolve project of phase %d for cache invalidation: %v", phaseID, err)
		return
	}
	invalidateTree(ctx, s.cache, phase.ProjectID)
}

// Attachments

func (s *hierarchyService) CreateAttachment(ctx context.Context, in CreateAttachmentInput) (*models.Attachment, error) {
	in.FileURL = strings.TrimSpace(in.FileURL)
	if err := validateStruct(in); err != nil {
		return nil, err
	}
	if in.PhaseID != nil && in.TaskID != nil {
		return nil, apperrors.Validation("task_id", "an attachment belongs to a phase or a task, not both")
	}
	if _, err := s.projectRepo.GetByID(ctx, in.ProjectID); err != nil {
		return nil, err
	}
	if in.PhaseID != nil {
		phase, err := s.phaseRepo.GetByID(ctx, *in.PhaseID)
		if err != nil {
			return nil, err
		}
		if phase.ProjectID != in.ProjectID {
			return nil, apperrors.Validation("phase_id", "phase belongs to another project")
		}
	}
	if in.TaskID != nil {
		task, err := s.taskRepo.GetByID(ctx, *in.TaskID)
		if err != nil {
			return nil, err
		}
		phase, err := s.phaseRepo.GetByID(ctx, task.PhaseID)
		if err != nil {
			return nil, err
		}
		if phase.ProjectID != in.ProjectID {
			return nil, apperrors.Validation("task_id", "task belongs to another project")
		}
	}

	attachment := &models.Attachment{
		ProjectID: in.ProjectID,
		PhaseID:   in.PhaseID,
		TaskID:    in.TaskID,
		FileURL:   in.FileURL,
		FileType:  in.FileType,
		FileName:  strings.TrimSpace(in.FileName),
	}
	if err := s.attachmentRepo.Create(ctx, attachment); err != nil {
		return nil, err
	}
	invalidateTree(ctx, s.cache, in.ProjectID)
	return attachment, nil
}

func (s *hierarchyService) DeleteAttachment(ctx context.Context, projectID, id uint) error {
	if err := s.attachmentRepo.Delete(ctx, projectID, id); err != nil {
		return err
	}
	invalidateTree(ctx, s.cache, projectID)
	return nil
}
