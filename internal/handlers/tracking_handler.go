package handlers

import (
	"net/http"

	"agency_tracker/internal/services"

	"github.com/gin-gonic/gin"
)

// TrackingHandler is the public, read-only surface behind a tracking code.
type TrackingHandler struct {
	tracking    services.TrackingService
	preferences services.PreferenceService
}

func NewTrackingHandler(tracking services.TrackingService, preferences services.PreferenceService) *TrackingHandler {
	return &TrackingHandler{tracking: tracking, preferences: preferences}
}

type subscriptionRequest struct {
	Email string `json:"email"`
}

func (h *TrackingHandler) GetProject(c *gin.Context) {
	tree, err := h.tracking.Resolve(c.Request.Context(), c.Param("code"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, tree)
}

func (h *TrackingHandler) Subscribe(c *gin.Context) {
	var req subscriptionRequest
	if !bindJSON(c, &req) {
		return
	}
	pref, err := h.preferences.Subscribe(c.Request.Context(), c.Param("code"), req.Email)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"email": pref.Email, "opted_in": pref.OptedIn})
}

func (h *TrackingHandler) Unsubscribe(c *gin.Context) {
	var req subscriptionRequest
	if !bindJSON(c, &req) {
		return
	}
	pref, err := h.preferences.Unsubscribe(c.Request.Context(), c.Param("code"), req.Email)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"email": pref.Email, "opted_in": pref.OptedIn})
}
