package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"agency_tracker/internal/apperrors"
	"agency_tracker/internal/models"
	"agency_tracker/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/midtrans/midtrans-go/coreapi"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// The stubs embed the service interfaces so only the methods a test calls
// need an implementation; anything else panics on the nil interface.

type stubTracking struct {
	services.TrackingService
	trees map[string]*services.ProjectTree
}

func (s *stubTracking) Resolve(_ context.Context, code string) (*services.ProjectTree, error) {
	if tree, ok := s.trees[code]; ok {
		return tree, nil
	}
	return nil, apperrors.NotFound("tracking code", nil)
}

type stubPreferences struct {
	services.PreferenceService
}

func (s *stubPreferences) Subscribe(_ context.Context, code, email string) (*models.NotificationPreference, error) {
	if code != "KNOWN" {
		return nil, apperrors.NotFound("tracking code", nil)
	}
	if email == "" {
		return nil, apperrors.Validation("email", "is required")
	}
	return &models.NotificationPreference{Email: email, OptedIn: true}, nil
}

type stubUsers struct {
	services.UserService
	clients   map[string]*models.Client
	byPhone   map[string]*models.Client
	dashboard *services.ClientDashboard
}

func (s *stubUsers) ResolveClient(_ context.Context, authUserID string) (*models.Client, bool) {
	c, ok := s.clients[authUserID]
	return c, ok
}

func (s *stubUsers) ClientByWhatsApp(_ context.Context, phone string) (*models.Client, bool) {
	c, ok := s.byPhone[phone]
	return c, ok
}

func (s *stubUsers) Dashboard(_ context.Context, client *models.Client) (*services.ClientDashboard, error) {
	d := *s.dashboard
	d.Client = client
	return &d, nil
}

type stubPayments struct {
	services.PaymentService
	mu     sync.Mutex
	events []coreapi.TransactionStatusResponse
	result *models.Payment
	err    error
}

func (s *stubPayments) ApplyProcessorEvent(_ context.Context, event *coreapi.TransactionStatusResponse) (*models.Payment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, *event)
	return s.result, s.err
}

type stubSender struct {
	mu   sync.Mutex
	sent map[string][]string
}

func (s *stubSender) SendTextMessage(_ context.Context, phone, message string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sent == nil {
		s.sent = map[string][]string{}
	}
	s.sent[phone] = append(s.sent[phone], message)
	return nil
}

func doJSON(t *testing.T, h http.Handler, method, path string, body interface{}, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("response is not JSON: %s", w.Body.String())
	}
	return out
}
