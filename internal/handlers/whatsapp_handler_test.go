package handlers

import (
	"context"
	"net/http"
	"strings"
	"testing"

	"agency_tracker/internal/models"
	"agency_tracker/internal/services"

	"github.com/gin-gonic/gin"
)

func whatsappFixture() (*stubSender, *WhatsAppHandler) {
	sender := &stubSender{}
	ana := &models.Client{ID: 3, Name: "Ana"}
	users := &stubUsers{
		byPhone: map[string]*models.Client{"6281234567890": ana},
		dashboard: &services.ClientDashboard{
			Projects: []services.ProjectProgress{{
				Project:  models.Project{Title: "Storefront"},
				Progress: services.ProgressSummary{Percent: 50, TotalPhases: 4, CompletedPhases: 2},
			}},
			OutstandingInvoices: []models.Invoice{{InvoiceNumber: "INV-20260314-0042", Total: 27125, Currency: "USD", Status: "sent"}},
		},
	}
	tracking := &stubTracking{trees: map[string]*services.ProjectTree{
		"ABC123ABC123": {
			Project: models.Project{Title: "Storefront"},
			Phases: []services.PhaseNode{
				{Phase: models.Phase{Name: "Discovery", Status: string(models.PhaseCompleted)}, CompletionPercentage: 100, IsComplete: true},
				{Phase: models.Phase{Name: "Build", Status: string(models.PhaseInProgress)}, CompletionPercentage: 30},
				{Phase: models.Phase{Name: "Launch", Status: string(models.PhasePending)}},
			},
			Progress: services.ProgressSummary{Percent: 33},
		},
	}}
	return sender, NewWhatsAppHandler(sender, users, tracking, "hook-secret")
}

func TestWhatsAppWebhookSecret(t *testing.T) {
	sender, h := whatsappFixture()
	engine := gin.New()
	engine.POST("/webhooks/whatsapp", h.HandleWebhook)

	msg := map[string]interface{}{
		"from":    "6281234567890@s.whatsapp.net",
		"message": map[string]string{"text": "/help"},
	}

	if w := doJSON(t, engine, http.MethodPost, "/webhooks/whatsapp", msg, nil); w.Code != http.StatusUnauthorized {
		t.Errorf("missing secret status = %d, want 401", w.Code)
	}
	if w := doJSON(t, engine, http.MethodPost, "/webhooks/whatsapp?secret=nope", msg, nil); w.Code != http.StatusUnauthorized {
		t.Errorf("wrong secret status = %d, want 401", w.Code)
	}
	if len(sender.sent) != 0 {
		t.Fatalf("replies sent without a valid secret: %v", sender.sent)
	}

	w := doJSON(t, engine, http.MethodPost, "/webhooks/whatsapp", msg, map[string]string{"X-Webhook-Secret": "hook-secret"})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}
	replies := sender.sent["6281234567890"]
	if len(replies) != 1 || !strings.Contains(replies[0], "/track <code>") {
		t.Errorf("replies = %v", replies)
	}
}

func TestWhatsAppCommands(t *testing.T) {
	_, h := whatsappFixture()
	ctx := context.Background()
	linked, stranger := "6281234567890", "6289999999999"

	tests := []struct {
		name    string
		phone   string
		message string
		want    []string
	}{
		{"empty", linked, "   ", []string{"Empty message"}},
		{"track", linked, "/track ABC123ABC123", []string{"Storefront: 33% complete", "✅ Discovery (100%)", "🔄 Build (30%)", "⏳ Launch (0%)"}},
		{"bare code", stranger, "ABC123ABC123", []string{"Storefront: 33% complete"}},
		{"unknown code", linked, "/track ZZZ", []string{"Tracking code not found"}},
		{"track usage", linked, "/track", []string{"Usage: /track"}},
		{"projects", linked, "/projects", []string{"Hi Ana", "Storefront: 50% (2/4 phases done)"}},
		{"invoices", linked, "/INVOICES", []string{"INV-20260314-0042: USD 271.25 (sent)"}},
		{"unlinked number", stranger, "/invoices", []string{"not linked to a client account"}},
		{"unknown command", linked, "/dance now", []string{"Unknown command"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := h.processCommand(ctx, tt.phone, tt.message)
			for _, want := range tt.want {
				if !strings.Contains(got, want) {
					t.Errorf("reply %q lacks %q", got, want)
				}
			}
		})
	}
}

func TestWhatsAppSendMessage(t *testing.T) {
	sender, h := whatsappFixture()
	engine := gin.New()
	engine.POST("/send", h.SendMessage)

	if w := doJSON(t, engine, http.MethodPost, "/send", map[string]string{"phone": "628111"}, nil); w.Code != http.StatusBadRequest {
		t.Errorf("missing message status = %d, want 400", w.Code)
	}
	w := doJSON(t, engine, http.MethodPost, "/send", map[string]string{"phone": "628111", "message": "hello"}, nil)
	if w.Code != http.StatusOK || len(sender.sent["628111"]) != 1 {
		t.Errorf("status = %d sent = %v", w.Code, sender.sent)
	}
}
