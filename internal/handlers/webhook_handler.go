package handlers

import (
	"crypto/sha512"
	"crypto/subtle"
	"encoding/hex"
	"log"
	"net/http"
	"strings"

	"agency_tracker/internal/apperrors"
	"agency_tracker/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/midtrans/midtrans-go/coreapi"
)

// WebhookHandler receives payment-processor notifications.
type WebhookHandler struct {
	payments  services.PaymentService
	serverKey string
}

func NewWebhookHandler(payments services.PaymentService, serverKey string) *WebhookHandler {
	return &WebhookHandler{payments: payments, serverKey: serverKey}
}

// MidtransSignature is SHA512(order_id + status_code + gross_amount + server_key), hex encoded.
func MidtransSignature(orderID, statusCode, grossAmount, serverKey string) string {
	sum := sha512.Sum512([]byte(orderID + statusCode + grossAmount + serverKey))
	return hex.EncodeToString(sum[:])
}

func (h *WebhookHandler) Midtrans(c *gin.Context) {
	var notif coreapi.TransactionStatusResponse
	if err := c.ShouldBindJSON(&notif); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format"})
		return
	}

	want := MidtransSignature(notif.OrderID, notif.StatusCode, notif.GrossAmount, h.serverKey)
	got := strings.ToLower(notif.SignatureKey)
	if h.serverKey == "" || subtle.ConstantTimeCompare([]byte(want), []byte(got)) != 1 {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid signature"})
		return
	}

	payment, err := h.payments.ApplyProcessorEvent(c.Request.Context(), &notif)
	if err != nil {
		// Unknown orders are acknowledged so the processor stops retrying.
		if apperrors.IsNotFound(err) {
			log.Printf("Midtrans notification for unknown order %s ignored", notif.OrderID)
			c.JSON(http.StatusOK, gin.H{"status": "ignored"})
			return
		}
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok", "payment_id": payment.ID, "payment_status": payment.Status})
}
