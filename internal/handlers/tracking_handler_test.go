package handlers

import (
	"net/http"
	"testing"

	"agency_tracker/internal/models"
	"agency_tracker/internal/services"

	"github.com/gin-gonic/gin"
)

func trackingEngine() *gin.Engine {
	tracking := &stubTracking{trees: map[string]*services.ProjectTree{
		"ABC123ABC123": {
			Project:  models.Project{ID: 1, Title: "Storefront"},
			Phases:   []services.PhaseNode{},
			Progress: services.ProgressSummary{Percent: 40, TotalPhases: 5, CompletedPhases: 2},
		},
	}}
	h := NewTrackingHandler(tracking, &stubPreferences{})
	engine := gin.New()
	engine.GET("/track/:code", h.GetProject)
	engine.POST("/track/:code/subscribe", h.Subscribe)
	return engine
}

func TestTrackingGetProject(t *testing.T) {
	engine := trackingEngine()

	w := doJSON(t, engine, http.MethodGet, "/track/ABC123ABC123", nil, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}
	progress, _ := decode(t, w)["progress"].(map[string]interface{})
	if progress["percent"] != float64(40) {
		t.Errorf("progress = %v", progress)
	}

	if w := doJSON(t, engine, http.MethodGet, "/track/NOPE", nil, nil); w.Code != http.StatusNotFound {
		t.Errorf("unknown code status = %d, want 404", w.Code)
	}
}

func TestTrackingSubscribe(t *testing.T) {
	engine := trackingEngine()

	w := doJSON(t, engine, http.MethodPost, "/track/KNOWN/subscribe", map[string]string{"email": "ana@example.com"}, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}
	if body := decode(t, w); body["email"] != "ana@example.com" || body["opted_in"] != true {
		t.Errorf("body = %v", body)
	}

	if w := doJSON(t, engine, http.MethodPost, "/track/KNOWN/subscribe", map[string]string{}, nil); w.Code != http.StatusBadRequest {
		t.Errorf("missing email status = %d, want 400", w.Code)
	}
	if w := doJSON(t, engine, http.MethodPost, "/track/GONE/subscribe", map[string]string{"email": "a@b.co"}, nil); w.Code != http.StatusNotFound {
		t.Errorf("unknown code status = %d, want 404", w.Code)
	}
}

func TestClientDashboard(t *testing.T) {
	ana := &models.Client{ID: 3, Name: "Ana"}
	users := &stubUsers{
		clients:   map[string]*models.Client{"auth-ana": ana},
		dashboard: &services.ClientDashboard{Projects: []services.ProjectProgress{{Project: models.Project{ID: 9}}}},
	}
	h := NewClientHandler(users)
	engine := gin.New()
	engine.GET("/dashboard", ClientAuth(users), h.Dashboard)

	w := doJSON(t, engine, http.MethodGet, "/dashboard", nil, map[string]string{authUserHeader: "auth-ana"})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}
	body := decode(t, w)
	if projects, _ := body["projects"].([]interface{}); len(projects) != 1 {
		t.Errorf("projects = %v", body["projects"])
	}
	if client, _ := body["client"].(map[string]interface{}); client == nil {
		t.Errorf("dashboard lacks client: %v", body)
	}
}
