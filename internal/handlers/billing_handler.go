package handlers

import (
	"net/http"
	"strconv"

	"agency_tracker/internal/repository"
	"agency_tracker/internal/services"

	"github.com/gin-gonic/gin"
)

// BillingHandler serves invoices, tax rates, payments and refunds to admins.
type BillingHandler struct {
	billing  services.BillingService
	payments services.PaymentService
}

func NewBillingHandler(billing services.BillingService, payments services.PaymentService) *BillingHandler {
	return &BillingHandler{billing: billing, payments: payments}
}

type calculateRequest struct {
	LineItems      []services.LineItemInput `json:"line_items"`
	DiscountAmount int64                    `json:"discount_amount"`
	TaxRate        *float64                 `json:"tax_rate"`
}

// Calculate previews invoice totals without writing anything.
func (h *BillingHandler) Calculate(c *gin.Context) {
	var req calculateRequest
	if !bindJSON(c, &req) {
		return
	}
	items, err := services.PreviewLineItems(req.LineItems)
	if err != nil {
		respondError(c, err)
		return
	}
	totals, err := services.CalculateInvoiceTotal(items, req.DiscountAmount, req.TaxRate)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, totals)
}

func (h *BillingHandler) CreateInvoice(c *gin.Context) {
	var req services.CreateInvoiceInput
	if !bindJSON(c, &req) {
		return
	}
	invoice, err := h.billing.CreateInvoice(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, invoice)
}

func (h *BillingHandler) ListInvoices(c *gin.Context) {
	var filter repository.InvoiceFilter
	if v := c.Query("client_id"); v != "" {
		id, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid client_id"})
			return
		}
		clientID := uint(id)
		filter.ClientID = &clientID
	}
	if v := c.Query("project_id"); v != "" {
		id, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid project_id"})
			return
		}
		projectID := uint(id)
		filter.ProjectID = &projectID
	}
	filter.Status = c.Query("status")

	invoices, err := h.billing.ListInvoices(c.Request.Context(), filter)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"invoices": invoices})
}

func (h *BillingHandler) GetInvoice(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	invoice, err := h.billing.GetInvoice(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, invoice)
}

func (h *BillingHandler) UpdateInvoice(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req services.UpdateInvoiceInput
	if !bindJSON(c, &req) {
		return
	}
	invoice, err := h.billing.UpdateInvoice(c.Request.Context(), id, req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, invoice)
}

func (h *BillingHandler) ReplaceLineItems(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req struct {
		LineItems []services.LineItemInput `json:"line_items"`
	}
	if !bindJSON(c, &req) {
		return
	}
	invoice, err := h.billing.ReplaceLineItems(c.Request.Context(), id, req.LineItems)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, invoice)
}

func (h *BillingHandler) SendInvoice(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	invoice, err := h.billing.SendInvoice(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, invoice)
}

func (h *BillingHandler) CancelInvoice(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	invoice, err := h.billing.CancelInvoice(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, invoice)
}

// Tax rates

func (h *BillingHandler) ListTaxRates(c *gin.Context) {
	rates, err := h.billing.ListTaxRates(c.Request.Context(), c.Query("active") == "true")
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"tax_rates": rates})
}

func (h *BillingHandler) CreateTaxRate(c *gin.Context) {
	var req services.TaxRateInput
	if !bindJSON(c, &req) {
		return
	}
	rate, err := h.billing.CreateTaxRate(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, rate)
}

// Payments and refunds

func (h *BillingHandler) ListPayments(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	payments, err := h.payments.ListPayments(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"payments": payments})
}

func (h *BillingHandler) CreatePayment(c *gin.Context) {
	invoiceID, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req services.CreatePaymentInput
	if !bindJSON(c, &req) {
		return
	}
	req.InvoiceID = invoiceID
	payment, err := h.payments.CreatePayment(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, payment)
}

func (h *BillingHandler) UpdatePaymentStatus(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req services.UpdatePaymentInput
	if !bindJSON(c, &req) {
		return
	}
	payment, err := h.payments.UpdatePaymentStatus(c.Request.Context(), id, req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, payment)
}

func (h *BillingHandler) CreateRefund(c *gin.Context) {
	paymentID, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req services.CreateRefundInput
	if !bindJSON(c, &req) {
		return
	}
	req.PaymentID = paymentID
	refund, err := h.payments.CreateRefund(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, refund)
}

func (h *BillingHandler) UpdateRefundStatus(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req services.UpdateRefundInput
	if !bindJSON(c, &req) {
		return
	}
	refund, err := h.payments.UpdateRefundStatus(c.Request.Context(), id, req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, refund)
}
