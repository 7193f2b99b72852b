package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"agency_tracker/internal/config"
	"agency_tracker/internal/database"
	"agency_tracker/internal/handlers"
	"agency_tracker/internal/migrations"
	"agency_tracker/internal/redis"
	"agency_tracker/internal/repository"
	"agency_tracker/internal/services"
	"agency_tracker/pkg/mailer"
	"agency_tracker/pkg/whatsapp"

	"github.com/gin-gonic/gin"
)

func main() {
	// Load configuration
	cfg := config.Load()
	gin.SetMode(cfg.GinMode)

	// Initialize database
	db, err := database.Initialize(cfg.DatabaseURL, cfg.GinMode == gin.DebugMode)
	if err != nil {
		log.Fatal("Failed to connect to database:", err)
	}
	if err := migrations.RunMigrations(db, cfg.SeedTaxRates); err != nil {
		log.Fatal("Failed to migrate database:", err)
	}

	// Optional collaborators stay nil interfaces when not configured
	var cache services.TreeCache
	if cfg.RedisURL != "" {
		redisClient, err := redis.Initialize(cfg.RedisURL)
		if err != nil {
			log.Printf("Warning: Redis unavailable, tracking cache disabled: %v", err)
		} else {
			defer redisClient.Close()
			cache = redisClient
		}
	}

	var sender services.WhatsAppSender
	if cfg.WhatsAppAPIURL != "" {
		sender = whatsapp.NewClient(cfg.WhatsAppAPIURL, cfg.WhatsAppUsername, cfg.WhatsAppPassword, cfg.WhatsAppPath)
	}

	mail := mailer.NewClient(mailer.Config{
		APIURL:    cfg.MailAPIURL,
		APIKey:    cfg.MailAPIKey,
		FromEmail: cfg.MailFrom,
		SMTPHost:  cfg.SMTPHost,
		SMTPPort:  cfg.SMTPPort,
		SMTPUser:  cfg.SMTPUser,
		SMTPPass:  cfg.SMTPPass,
	})

	// Initialize repositories
	projectRepo := repository.NewProjectRepository(db)
	phaseRepo := repository.NewPhaseRepository(db)
	taskRepo := repository.NewTaskRepository(db)
	attachmentRepo := repository.NewAttachmentRepository(db)
	codeRepo := repository.NewTrackingCodeRepository(db)
	prefRepo := repository.NewNotificationPreferenceRepository(db)
	invoiceRepo := repository.NewInvoiceRepository(db)
	lineItemRepo := repository.NewInvoiceLineItemRepository(db)
	taxRateRepo := repository.NewTaxRateRepository(db)
	paymentRepo := repository.NewPaymentRepository(db)
	refundRepo := repository.NewRefundRepository(db)
	activityRepo := repository.NewActivityRepository(db)
	clientRepo := repository.NewClientRepository(db)

	// Initialize services
	activity := services.NewActivityLogger(activityRepo)
	sink := services.NewClientNotificationSink(activityRepo, clientRepo, sender)
	dispatcher := services.NewDispatcher(invoiceRepo, sink, activity)

	preferenceService := services.NewPreferenceService(codeRepo, prefRepo)
	var phaseNotifier services.PhaseNotifier
	if mail.Enabled() {
		phaseNotifier = services.NewEmailPhaseNotifier(codeRepo, preferenceService, mail, cfg.BaseURL)
	} else {
		log.Println("Mail is not configured, phase-completion emails are disabled")
	}

	trackingService := services.NewTrackingService(codeRepo, projectRepo, phaseRepo, taskRepo, attachmentRepo, cache, cfg.CacheTTL)
	hierarchyService := services.NewHierarchyService(projectRepo, phaseRepo, taskRepo, attachmentRepo, codeRepo, phaseNotifier, activity, cache)
	billingService := services.NewBillingService(invoiceRepo, lineItemRepo, taxRateRepo, clientRepo, projectRepo, dispatcher)
	paymentService := services.NewPaymentService(paymentRepo, refundRepo, invoiceRepo, dispatcher)
	userService := services.NewUserService(clientRepo, projectRepo, phaseRepo, taskRepo, invoiceRepo, cfg.IdentityLookupTimeout)
	reminderService := services.NewReminderService(billingService, sink)

	scheduler, err := reminderService.Start(cfg.OverdueCron)
	if err != nil {
		log.Fatal("Failed to schedule overdue sweep:", err)
	}

	// Initialize handlers
	routes := &handlers.Router{
		API:          handlers.NewAPIHandler(hierarchyService, trackingService, userService),
		Billing:      handlers.NewBillingHandler(billingService, paymentService),
		Tracking:     handlers.NewTrackingHandler(trackingService, preferenceService),
		Client:       handlers.NewClientHandler(userService),
		Webhook:      handlers.NewWebhookHandler(paymentService, cfg.MidtransServerKey),
		Users:        userService,
		AdminKeyHash: cfg.AdminAPIKeyHash,
	}
	if sender != nil {
		routes.WhatsApp = handlers.NewWhatsAppHandler(sender, userService, trackingService, cfg.WhatsAppWebhookSecret)
	}
	if cfg.AdminAPIKeyHash == "" {
		log.Println("Warning: ADMIN_API_KEY_HASH is empty, admin endpoints will reject every request")
	}

	router := gin.Default()
	routes.Setup(router)

	srv := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Printf("Server starting on port %s", cfg.ServerPort)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("Failed to start server:", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down...")

	<-scheduler.Stop().Done()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("Server shutdown error: %v", err)
	}
}
