package handlers

import (
	"errors"
	"net/http"
	"testing"

	"agency_tracker/internal/apperrors"
	"agency_tracker/internal/models"

	"github.com/gin-gonic/gin"
)

const testServerKey = "SB-Mid-server-test"

func midtransBody(orderID, status, key string) map[string]string {
	return map[string]string{
		"order_id":           orderID,
		"status_code":        "200",
		"gross_amount":       "271250.00",
		"transaction_status": status,
		"transaction_id":     "tx-1",
		"signature_key":      MidtransSignature(orderID, "200", "271250.00", key),
	}
}

func webhookEngine(payments *stubPayments, serverKey string) *gin.Engine {
	h := NewWebhookHandler(payments, serverKey)
	engine := gin.New()
	engine.POST("/webhooks/midtrans", h.Midtrans)
	return engine
}

func TestMidtransSignature(t *testing.T) {
	a := MidtransSignature("INV-1", "200", "100.00", "key")
	if len(a) != 128 {
		t.Errorf("signature length = %d, want 128 hex chars", len(a))
	}
	if a == MidtransSignature("INV-1", "200", "100.01", "key") {
		t.Error("signature ignores gross amount")
	}
}

func TestMidtransWebhookRejectsBadSignature(t *testing.T) {
	payments := &stubPayments{}
	engine := webhookEngine(payments, testServerKey)

	w := doJSON(t, engine, http.MethodPost, "/webhooks/midtrans", midtransBody("INV-1", "settlement", "wrong-key"), nil)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", w.Code)
	}
	if len(payments.events) != 0 {
		t.Error("unsigned event reached the payment service")
	}
}

func TestMidtransWebhookWithoutServerKey(t *testing.T) {
	payments := &stubPayments{}
	engine := webhookEngine(payments, "")

	w := doJSON(t, engine, http.MethodPost, "/webhooks/midtrans", midtransBody("INV-1", "settlement", ""), nil)
	if w.Code != http.StatusUnauthorized || len(payments.events) != 0 {
		t.Errorf("status = %d events = %d, want 401 and none", w.Code, len(payments.events))
	}
}

func TestMidtransWebhookApplies(t *testing.T) {
	payments := &stubPayments{result: &models.Payment{ID: 5, Status: "succeeded"}}
	engine := webhookEngine(payments, testServerKey)

	w := doJSON(t, engine, http.MethodPost, "/webhooks/midtrans", midtransBody("INV-1", "settlement", testServerKey), nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}
	body := decode(t, w)
	if body["status"] != "ok" || body["payment_id"] != float64(5) || body["payment_status"] != "succeeded" {
		t.Errorf("body = %v", body)
	}
	if len(payments.events) != 1 || payments.events[0].TransactionStatus != "settlement" || payments.events[0].OrderID != "INV-1" {
		t.Errorf("events = %+v", payments.events)
	}
}

func TestMidtransWebhookUnknownOrderAcknowledged(t *testing.T) {
	payments := &stubPayments{err: apperrors.NotFound("payment", "INV-404")}
	engine := webhookEngine(payments, testServerKey)

	w := doJSON(t, engine, http.MethodPost, "/webhooks/midtrans", midtransBody("INV-404", "settlement", testServerKey), nil)
	if w.Code != http.StatusOK || decode(t, w)["status"] != "ignored" {
		t.Errorf("status = %d body %s, want 200 ignored", w.Code, w.Body.String())
	}
}

func TestMidtransWebhookServiceFailure(t *testing.T) {
	payments := &stubPayments{err: errors.New("connection reset")}
	engine := webhookEngine(payments, testServerKey)

	w := doJSON(t, engine, http.MethodPost, "/webhooks/midtrans", midtransBody("INV-1", "settlement", testServerKey), nil)
	if w.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500 so the processor retries", w.Code)
	}
}
