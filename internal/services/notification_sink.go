package services

import (
	"context"
	"fmt"
	"log"

	"agency_tracker/internal/models"
	"agency_tracker/internal/repository"

	"gorm.io/datatypes"
)

// WhatsAppSender is satisfied by *whatsapp.Client.
type WhatsAppSender interface {
	SendTextMessage(ctx context.Context, phone, message string) error
}

type clientNotificationSink struct {
	activityRepo repository.ActivityRepository
	clientRepo   repository.ClientRepository
	whatsapp     WhatsAppSender
}

// NewClientNotificationSink stores notifications in the client's inbox and,
// when whatsapp is non-nil, mirrors them to the client's WhatsApp number.
func NewClientNotificationSink(activityRepo repository.ActivityRepository, clientRepo repository.ClientRepository, whatsapp WhatsAppSender) NotificationSink {
	return &clientNotificationSink{activityRepo: activityRepo, clientRepo: clientRepo, whatsapp: whatsapp}
}

func (s *clientNotificationSink) Notify(ctx context.Context, n Notification) error {
	row := &models.Notification{
		ClientID: n.RecipientID,
		Type:     n.Type,
		Title:    n.Title,
		Message:  n.Message,
		Payload:  datatypes.JSONMap(n.Payload),
	}
	if err := s.activityRepo.CreateNotification(ctx, row); err != nil {
		return fmt.Errorf("failed to store notification: %w", err)
	}

	if s.whatsapp == nil {
		return nil
	}
	client, err := s.clientRepo.GetByID(ctx, n.RecipientID)
	if err != nil {
		log.Printf("Warning: notification %d stored but client lookup failed: %v", row.ID, err)
		return nil
	}
	if client.WhatsAppNumber == "" {
		return nil
	}
	text := fmt.Sprintf("*%s*\n%s", n.Title, n.Message)
	if err := s.whatsapp.SendTextMessage(ctx, client.WhatsAppNumber, text); err != nil {
		log.Printf("Warning: WhatsApp delivery of notification %d failed: %v", row.ID, err)
	}
	return nil
}

type dbActivityLogger struct {
	activityRepo repository.ActivityRepository
}

func NewActivityLogger(activityRepo repository.ActivityRepository) ActivityLogger {
	return &dbActivityLogger{activityRepo: activityRepo}
}

func (l *dbActivityLogger) Log(ctx context.Context, projectID uint, eventType string, payload map[string]interface{}, actorID *uint) error {
	return l.activityRepo.CreateActivityLog(ctx, &models.ActivityLog{
		ProjectID: projectID,
		EventType: eventType,
		Payload:   datatypes.JSONMap(payload),
		ActorID:   actorID,
	})
}
