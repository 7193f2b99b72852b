package services

import (
	"context"
	"log"
	"strings"
	"time"

	"agency_tracker/internal/apperrors"
	"agency_tracker/internal/models"
	"agency_tracker/internal/repository"
	"agency_tracker/pkg/whatsapp"
)

const DefaultIdentityLookupTimeout = 5 * time.Second

type CreateClientInput struct {
	AuthUserID     string `json:"auth_user_id" validate:"required"`
	Name           string `json:"name"`
	Email          string `json:"email" validate:"required,email"`
	CompanyName    string `json:"company_name"`
	WhatsAppNumber string `json:"whatsapp_number"`
}

type ProjectProgress struct {
	Project       models.Project  `json:"project"`
	Progress      ProgressSummary `json:"progress"`
	NextMilestone *Milestone      `json:"next_milestone,omitempty"`
}

type ClientDashboard struct {
	Client              *models.Client    `json:"client"`
	Projects            []ProjectProgress `json:"projects"`
	NextMilestone       *Milestone        `json:"next_milestone"`
	OutstandingInvoices []models.Invoice  `json:"outstanding_invoices"`
}

type UserService interface {
	CreateClient(ctx context.Context, in CreateClientInput) (*models.Client, error)
	GetClient(ctx context.Context, id uint) (*models.Client, error)
	// ResolveClient maps an external identity to an active client. A slow or
	// failing lookup reports (nil, false), the same as an unknown identity.
	ResolveClient(ctx context.Context, authUserID string) (*models.Client, bool)
	ClientByWhatsApp(ctx context.Context, phone string) (*models.Client, bool)
	Dashboard(ctx context.Context, client *models.Client) (*ClientDashboard, error)
}

type userService struct {
	clientRepo  repository.ClientRepository
	projectRepo repository.ProjectRepository
	phaseRepo   repository.PhaseRepository
	taskRepo    repository.TaskRepository
	invoiceRepo repository.InvoiceRepository
	timeout     time.Duration
	now         func() time.Time
}

func NewUserService(
	clientRepo repository.ClientRepository,
	projectRepo repository.ProjectRepository,
	phaseRepo repository.PhaseRepository,
	taskRepo repository.TaskRepository,
	invoiceRepo repository.InvoiceRepository,
	timeout time.Duration,
) UserService {
	if timeout <= 0 {
		timeout = DefaultIdentityLookupTimeout
	}
	return &userService{
		clientRepo:  clientRepo,
		projectRepo: projectRepo,
		phaseRepo:   phaseRepo,
		taskRepo:    taskRepo,
		invoiceRepo: invoiceRepo,
		timeout:     timeout,
		now:         time.Now,
	}
}

func (s *userService) CreateClient(ctx context.Context, in CreateClientInput) (*models.Client, error) {
	name, err := requireName("name", in.Name)
	if err != nil {
		return nil, err
	}
	in.Email = NormalizeEmail(in.Email)
	in.AuthUserID = strings.TrimSpace(in.AuthUserID)
	if err := validateStruct(in); err != nil {
		return nil, err
	}

	client := &models.Client{
		AuthUserID:     in.AuthUserID,
		Name:           name,
		Email:          in.Email,
		CompanyName:    strings.TrimSpace(in.CompanyName),
		WhatsAppNumber: whatsapp.NormalizePhone(in.WhatsAppNumber),
		IsActive:       true,
	}
	if err := s.clientRepo.Create(ctx, client); err != nil {
		return nil, apperrors.FromDB(err, "client", in.AuthUserID)
	}
	return client, nil
}

func (s *userService) GetClient(ctx context.Context, id uint) (*models.Client, error) {
	return s.clientRepo.GetByID(ctx, id)
}

type clientLookup struct {
	client *models.Client
	err    error
}

func (s *userService) ResolveClient(ctx context.Context, authUserID string) (*models.Client, bool) {
	authUserID = strings.TrimSpace(authUserID)
	if authUserID == "" {
		return nil, false
	}
	return s.lookupWithTimeout(ctx, authUserID, s.clientRepo.GetByAuthUserID)
}

func (s *userService) ClientByWhatsApp(ctx context.Context, phone string) (*models.Client, bool) {
	phone = whatsapp.NormalizePhone(phone)
	if phone == "" {
		return nil, false
	}
	return s.lookupWithTimeout(ctx, phone, s.clientRepo.GetByWhatsAppNumber)
}

// lookupWithTimeout races lookup against the identity timeout and fails
// closed: errors and timeouts look exactly like an unknown identity.
func (s *userService) lookupWithTimeout(ctx context.Context, key string, lookup func(context.Context, string) (*models.Client, error)) (*models.Client, bool) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	done := make(chan clientLookup, 1)
	go func() {
		client, err := lookup(ctx, key)
		done <- clientLookup{client: client, err: err}
	}()

	select {
	case res := <-done:
		if res.err != nil {
			if !apperrors.IsNotFound(res.err) {
				log.Printf("Warning: client lookup for %q failed: %v", key, res.err)
			}
			return nil, false
		}
		return res.client, true
	case <-ctx.Done():
		log.Printf("Warning: client lookup for %q timed out after %s", key, s.timeout)
		return nil, false
	}
}

func (s *userService) Dashboard(ctx context.Context, client *models.Client) (*ClientDashboard, error) {
	projects, err := s.projectRepo.GetByClientID(ctx, client.ID)
	if err != nil {
		return nil, err
	}

	ids := make([]uint, 0, len(projects))
	for _, p := range projects {
		ids = append(ids, p.ID)
	}
	phases, err := s.phaseRepo.GetByProjectIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	phaseIDs := make([]uint, 0, len(phases))
	phasesByProject := make(map[uint][]models.Phase)
	for _, ph := range phases {
		phaseIDs = append(phaseIDs, ph.ID)
		phasesByProject[ph.ProjectID] = append(phasesByProject[ph.ProjectID], ph)
	}
	tasks, err := s.taskRepo.GetByPhaseIDs(ctx, phaseIDs)
	if err != nil {
		return nil, err
	}
	tasksByPhase := groupTasksByPhase(tasks)

	now := s.now()
	dashboard := &ClientDashboard{
		Client:        client,
		Projects:      make([]ProjectProgress, 0, len(projects)),
		NextMilestone: NextMilestone(phases, now),
	}
	for _, p := range projects {
		projectPhases := phasesByProject[p.ID]
		dashboard.Projects = append(dashboard.Projects, ProjectProgress{
			Project:       p,
			Progress:      SummarizeProject(projectPhases, tasksByPhase),
			NextMilestone: NextMilestone(projectPhases, now),
		})
	}

	invoices, err := s.invoiceRepo.List(ctx, repository.InvoiceFilter{ClientID: &client.ID})
	if err != nil {
		return nil, err
	}
	dashboard.OutstandingInvoices = make([]models.Invoice, 0)
	for _, inv := range invoices {
		switch models.InvoiceStatus(inv.Status) {
		case models.InvoiceSent, models.InvoicePartiallyPaid, models.InvoiceOverdue:
			dashboard.OutstandingInvoices = append(dashboard.OutstandingInvoices, inv)
		}
	}
	return dashboard, nil
}
