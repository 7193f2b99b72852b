package handlers

import (
	"net/http"

	"agency_tracker/internal/services"

	"github.com/gin-gonic/gin"
)

// Router bundles everything the HTTP surface needs. A nil WhatsApp handler
// leaves the chat routes unregistered.
type Router struct {
	API          *APIHandler
	Billing      *BillingHandler
	Tracking     *TrackingHandler
	Client       *ClientHandler
	Webhook      *WebhookHandler
	WhatsApp     *WhatsAppHandler
	Users        services.UserService
	AdminKeyHash string
}

func (r *Router) Setup(engine *gin.Engine) {
	engine.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := engine.Group("/api")

	// public tracking page
	track := api.Group("/track")
	{
		track.GET("/:code", r.Tracking.GetProject)
		track.POST("/:code/subscribe", r.Tracking.Subscribe)
		track.POST("/:code/unsubscribe", r.Tracking.Unsubscribe)
	}

	client := api.Group("/client", ClientAuth(r.Users))
	{
		client.GET("/dashboard", r.Client.Dashboard)
	}

	webhooks := api.Group("/webhooks")
	{
		webhooks.POST("/midtrans", r.Webhook.Midtrans)
		if r.WhatsApp != nil {
			webhooks.POST("/whatsapp", r.WhatsApp.HandleWebhook)
		}
	}

	admin := api.Group("/admin", AdminKey(r.AdminKeyHash))
	{
		admin.POST("/clients", r.API.CreateClient)
		admin.GET("/clients/:id", r.API.GetClient)

		admin.POST("/projects", r.API.CreateProject)
		admin.GET("/projects/:id", r.API.GetProject)
		admin.PUT("/projects/:id", r.API.UpdateProject)
		admin.DELETE("/projects/:id", r.API.DeleteProject)
		admin.GET("/projects/:id/phases", r.API.ListPhases)
		admin.POST("/projects/:id/phases", r.API.CreatePhase)
		admin.PUT("/projects/:id/phases/order", r.API.ReorderPhases)
		admin.POST("/projects/:id/attachments", r.API.CreateAttachment)
		admin.DELETE("/projects/:id/attachments/:attachmentID", r.API.DeleteAttachment)
		admin.GET("/projects/:id/tracking-codes", r.API.ListTrackingCodes)
		admin.POST("/projects/:id/tracking-codes", r.API.RegenerateTrackingCode)

		admin.PUT("/phases/:phaseID", r.API.UpdatePhase)
		admin.DELETE("/phases/:phaseID", r.API.DeletePhase)
		admin.POST("/phases/:phaseID/complete", r.API.CompletePhase)
		admin.GET("/phases/:phaseID/tasks", r.API.ListTasks)
		admin.POST("/phases/:phaseID/tasks", r.API.CreateTask)
		admin.PUT("/phases/:phaseID/tasks/order", r.API.ReorderTasks)

		admin.PUT("/tasks/:taskID", r.API.UpdateTask)
		admin.PUT("/tasks/:taskID/completion", r.API.UpdateTaskCompletion)
		admin.DELETE("/tasks/:taskID", r.API.DeleteTask)

		admin.POST("/invoices/calculate", r.Billing.Calculate)
		admin.POST("/invoices", r.Billing.CreateInvoice)
		admin.GET("/invoices", r.Billing.ListInvoices)
		admin.GET("/invoices/:id", r.Billing.GetInvoice)
		admin.PUT("/invoices/:id", r.Billing.UpdateInvoice)
		admin.PUT("/invoices/:id/line-items", r.Billing.ReplaceLineItems)
		admin.POST("/invoices/:id/send", r.Billing.SendInvoice)
		admin.POST("/invoices/:id/cancel", r.Billing.CancelInvoice)
		admin.GET("/invoices/:id/payments", r.Billing.ListPayments)
		admin.POST("/invoices/:id/payments", r.Billing.CreatePayment)

		admin.PUT("/payments/:id/status", r.Billing.UpdatePaymentStatus)
		admin.POST("/payments/:id/refunds", r.Billing.CreateRefund)
		admin.PUT("/refunds/:id/status", r.Billing.UpdateRefundStatus)

		admin.GET("/tax-rates", r.Billing.ListTaxRates)
		admin.POST("/tax-rates", r.Billing.CreateTaxRate)

		if r.WhatsApp != nil {
			admin.POST("/whatsapp/send-message", r.WhatsApp.SendMessage)
		}
	}
}
