package handlers

import (
	"context"
	"crypto/subtle"
	"fmt"
	"log"
	"net/http"
	"strings"

	"agency_tracker/internal/apperrors"
	"agency_tracker/internal/models"
	"agency_tracker/internal/services"

	"github.com/gin-gonic/gin"
)

// WhatsAppHandler answers client chat commands arriving from the WhatsApp
// gateway and lets admins push ad-hoc messages.
type WhatsAppHandler struct {
	sender   services.WhatsAppSender
	users    services.UserService
	tracking services.TrackingService
	secret   string
}

func NewWhatsAppHandler(
	sender services.WhatsAppSender,
	users services.UserService,
	tracking services.TrackingService,
	secret string,
) *WhatsAppHandler {
	return &WhatsAppHandler{
		sender:   sender,
		users:    users,
		tracking: tracking,
		secret:   secret,
	}
}

type WebhookRequest struct {
	SenderID  string `json:"sender_id"`
	ChatID    string `json:"chat_id"`
	From      string `json:"from"`
	Timestamp string `json:"timestamp"`
	Pushname  string `json:"pushname"`
	Message   struct {
		Text string `json:"text"`
		ID   string `json:"id"`
	} `json:"message"`
}

type SendMessageRequest struct {
	Phone   string `json:"phone" binding:"required"`
	Message string `json:"message" binding:"required"`
}

func (h *WhatsAppHandler) HandleWebhook(c *gin.Context) {
	if h.secret != "" {
		got := c.GetHeader("X-Webhook-Secret")
		if got == "" {
			got = c.Query("secret")
		}
		if subtle.ConstantTimeCompare([]byte(got), []byte(h.secret)) != 1 {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			return
		}
	}

	var req WebhookRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format"})
		return
	}

	// from looks like 628123456789@s.whatsapp.net
	phoneNumber := req.From
	if phoneNumber == "" {
		phoneNumber = req.SenderID
	}
	phoneNumber = strings.TrimSuffix(phoneNumber, "@s.whatsapp.net")

	ctx := c.Request.Context()
	response := h.processCommand(ctx, phoneNumber, req.Message.Text)

	if err := h.sender.SendTextMessage(ctx, phoneNumber, response); err != nil {
		log.Printf("Failed to reply to %s: %v", phoneNumber, err)
		c.JSON(http.StatusBadGateway, gin.H{"error": "Failed to send message"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "success"})
}

func (h *WhatsAppHandler) SendMessage(c *gin.Context) {
	var req SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format"})
		return
	}
	if err := h.sender.SendTextMessage(c.Request.Context(), req.Phone, req.Message); err != nil {
		log.Printf("Failed to send message to %s: %v", req.Phone, err)
		c.JSON(http.StatusBadGateway, gin.H{"error": "Failed to send message"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "success"})
}

func (h *WhatsAppHandler) processCommand(ctx context.Context, phone, message string) string {
	message = strings.TrimSpace(message)
	if message == "" {
		return "❌ Empty message. Type /help for available commands."
	}

	parts := strings.Fields(message)
	command := strings.ToLower(parts[0])
	args := parts[1:]

	switch command {
	case "/help":
		return helpMessage
	case "/track":
		if len(args) != 1 {
			return "Usage: /track <tracking code>"
		}
		return h.trackProject(ctx, args[0])
	case "/projects", "/invoices":
		client, ok := h.users.ClientByWhatsApp(ctx, phone)
		if !ok {
			return "❌ This number is not linked to a client account. Please contact us."
		}
		if command == "/projects" {
			return h.clientProjects(ctx, client)
		}
		return h.clientInvoices(ctx, client)
	}

	// a bare tracking code is the most common message
	if len(parts) == 1 && !strings.HasPrefix(command, "/") {
		return h.trackProject(ctx, parts[0])
	}
	return "🤖 Unknown command. Type /help for available commands."
}

const helpMessage = `📋 Available commands:
/track <code> - progress of a project by tracking code
/projects - progress of all your projects
/invoices - your unpaid invoices
/help - this message`

func (h *WhatsAppHandler) trackProject(ctx context.Context, code string) string {
	tree, err := h.tracking.Resolve(ctx, code)
	if err != nil {
		if apperrors.IsNotFound(err) {
			return "❌ Tracking code not found."
		}
		log.Printf("WhatsApp /track %s failed: %v", code, err)
		return "⚠️ Something went wrong, please try again later."
	}

	var b strings.Builder
	fmt.Fprintf(&b, "📊 %s: %d%% complete\n", tree.Project.Title, tree.Progress.Percent)
	for _, p := range tree.Phases {
		fmt.Fprintf(&b, "%s %s (%d%%)\n", phaseIcon(p), p.Phase.Name, p.CompletionPercentage)
	}
	return strings.TrimRight(b.String(), "\n")
}

func phaseIcon(p services.PhaseNode) string {
	switch {
	case p.IsComplete:
		return "✅"
	case p.Phase.Status == string(models.PhaseInProgress) || p.CompletionPercentage > 0:
		return "🔄"
	}
	return "⏳"
}

func (h *WhatsAppHandler) clientProjects(ctx context.Context, client *models.Client) string {
	dashboard, err := h.users.Dashboard(ctx, client)
	if err != nil {
		log.Printf("WhatsApp /projects for client %d failed: %v", client.ID, err)
		return "⚠️ Something went wrong, please try again later."
	}
	if len(dashboard.Projects) == 0 {
		return "You have no projects yet."
	}

	var b strings.Builder
	fmt.Fprintf(&b, "👋 Hi %s, here are your projects:\n", client.Name)
	for _, p := range dashboard.Projects {
		fmt.Fprintf(&b, "• %s: %d%% (%d/%d phases done)\n",
			p.Project.Title, p.Progress.Percent, p.Progress.CompletedPhases, p.Progress.TotalPhases)
	}
	if m := dashboard.NextMilestone; m != nil {
		fmt.Fprintf(&b, "\n🎯 Next milestone: %s in %d day(s)", m.Phase.Name, m.DaysRemaining)
	}
	return strings.TrimRight(b.String(), "\n")
}

func (h *WhatsAppHandler) clientInvoices(ctx context.Context, client *models.Client) string {
	dashboard, err := h.users.Dashboard(ctx, client)
	if err != nil {
		log.Printf("WhatsApp /invoices for client %d failed: %v", client.ID, err)
		return "⚠️ Something went wrong, please try again later."
	}
	if len(dashboard.OutstandingInvoices) == 0 {
		return "✅ You have no unpaid invoices."
	}

	var b strings.Builder
	b.WriteString("🧾 Unpaid invoices:\n")
	for _, inv := range dashboard.OutstandingInvoices {
		fmt.Fprintf(&b, "• %s: %s (%s)\n", inv.InvoiceNumber, services.FormatCents(inv.Total, inv.Currency), inv.Status)
	}
	return strings.TrimRight(b.String(), "\n")
}
