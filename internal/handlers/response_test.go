package handlers

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"agency_tracker/internal/apperrors"
	"agency_tracker/internal/services"

	"github.com/gin-gonic/gin"
)

func TestRespondError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"validation", apperrors.Validation("name", "is required"), http.StatusBadRequest},
		{"not found", apperrors.NotFound("project", 1), http.StatusNotFound},
		{"conflict", apperrors.Conflict("duplicate tracking code"), http.StatusConflict},
		{"compensation", &apperrors.CompensationError{Op: "create invoice", Cause: errors.New("a"), RollbackErr: errors.New("b")}, http.StatusInternalServerError},
		{"dependency", apperrors.Dependency("send mail", errors.New("timeout")), http.StatusBadGateway},
		{"numbering", services.ErrInvoiceNumberExhausted, http.StatusServiceUnavailable},
		{"unknown", errors.New("disk on fire"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(w)
			c.Request = httptest.NewRequest(http.MethodGet, "/", nil)

			respondError(c, tt.err)

			if w.Code != tt.want {
				t.Errorf("status = %d, want %d", w.Code, tt.want)
			}
		})
	}
}

func TestRespondErrorReportsField(t *testing.T) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)

	respondError(c, apperrors.Validation("completion_percentage", "must be between 0 and 100"))

	body := decode(t, w)
	if body["field"] != "completion_percentage" {
		t.Errorf("body = %v", body)
	}
}

func TestRespondErrorHidesInternalDetails(t *testing.T) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)

	respondError(c, errors.New("pq: password authentication failed for user admin"))

	if body := decode(t, w); body["error"] != "Internal server error" {
		t.Errorf("body leaked internals: %v", body)
	}
}

func TestParamID(t *testing.T) {
	for _, raw := range []string{"0", "-1", "abc", ""} {
		w := httptest.NewRecorder()
		c, _ := gin.CreateTestContext(w)
		c.Params = gin.Params{{Key: "id", Value: raw}}
		if _, ok := paramID(c, "id"); ok {
			t.Errorf("paramID(%q) accepted", raw)
		}
		if w.Code != http.StatusBadRequest {
			t.Errorf("paramID(%q) status = %d", raw, w.Code)
		}
	}

	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Params = gin.Params{{Key: "id", Value: "42"}}
	if id, ok := paramID(c, "id"); !ok || id != 42 {
		t.Errorf("paramID(42) = %d, %v", id, ok)
	}
}
