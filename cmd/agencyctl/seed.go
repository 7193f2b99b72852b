package main

import (
	"fmt"
	"time"

	"agency_tracker/internal/migrations"
	"agency_tracker/internal/repository"
	"agency_tracker/internal/services"

	"github.com/spf13/cobra"
)

// seedDemoCmd creates a client with one published project, a few phases and
// tasks, and an active tracking code, so the public page has something to show.
func seedDemoCmd() *cobra.Command {
	var authUser string
	cmd := &cobra.Command{
		Use:   "seed-demo",
		Short: "Create a demo client, project and tracking code",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, db, err := openDB()
			if err != nil {
				return err
			}
			if err := migrations.RunMigrations(db, true); err != nil {
				return err
			}
			ctx := cmd.Context()

			clientRepo := repository.NewClientRepository(db)
			projectRepo := repository.NewProjectRepository(db)
			phaseRepo := repository.NewPhaseRepository(db)
			taskRepo := repository.NewTaskRepository(db)
			attachmentRepo := repository.NewAttachmentRepository(db)
			codeRepo := repository.NewTrackingCodeRepository(db)
			invoiceRepo := repository.NewInvoiceRepository(db)

			users := services.NewUserService(clientRepo, projectRepo, phaseRepo, taskRepo, invoiceRepo, cfg.IdentityLookupTimeout)
			hierarchy := services.NewHierarchyService(projectRepo, phaseRepo, taskRepo, attachmentRepo, codeRepo, nil, nil, nil)
			tracking := services.NewTrackingService(codeRepo, projectRepo, phaseRepo, taskRepo, attachmentRepo, nil, 0)

			client, err := users.CreateClient(ctx, services.CreateClientInput{
				AuthUserID: authUser,
				Name:       "Demo Client",
				Email:      "demo@example.com",
			})
			if err != nil {
				return fmt.Errorf("create client: %w", err)
			}

			project, err := hierarchy.CreateProject(ctx, services.CreateProjectInput{
				Title:    "Company website",
				Status:   "published",
				ClientID: &client.ID,
			})
			if err != nil {
				return fmt.Errorf("create project: %w", err)
			}

			today := time.Now()
			plan := []struct {
				name  string
				days  int
				tasks map[string]float64
			}{
				{"Discovery", -7, map[string]float64{"Kick-off call": 100, "Sitemap": 100}},
				{"Design", 7, map[string]float64{"Wireframes": 100, "Visual design": 40}},
				{"Build", 30, map[string]float64{"Frontend": 0, "CMS setup": 0}},
			}
			for _, p := range plan {
				end := today.AddDate(0, 0, p.days)
				phase, err := hierarchy.CreatePhase(ctx, services.CreatePhaseInput{
					ProjectID:        project.ID,
					Name:             p.name,
					EstimatedEndDate: &end,
					NotifyOnComplete: true,
				})
				if err != nil {
					return fmt.Errorf("create phase %s: %w", p.name, err)
				}
				for name, pct := range p.tasks {
					pct := pct
					if _, err := hierarchy.CreateTask(ctx, services.CreateTaskInput{
						PhaseID:              phase.ID,
						Name:                 name,
						CompletionPercentage: &pct,
					}); err != nil {
						return fmt.Errorf("create task %s: %w", name, err)
					}
				}
			}

			code, err := tracking.Regenerate(ctx, project.ID)
			if err != nil {
				return fmt.Errorf("issue tracking code: %w", err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Client %d (X-Auth-User: %s)\n", client.ID, client.AuthUserID)
			fmt.Fprintf(out, "Project %d: %s\n", project.ID, project.Title)
			fmt.Fprintf(out, "Tracking page: %s/track/%s\n", cfg.BaseURL, code.Code)
			return nil
		},
	}
	cmd.Flags().StringVar(&authUser, "auth-user", "demo-client", "external identity of the demo client")
	return cmd
}
