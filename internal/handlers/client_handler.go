package handlers

import (
	"net/http"

	"agency_tracker/internal/models"
	"agency_tracker/internal/services"

	"github.com/gin-gonic/gin"
)

type ClientHandler struct {
	users services.UserService
}

func NewClientHandler(users services.UserService) *ClientHandler {
	return &ClientHandler{users: users}
}

// Dashboard expects ClientAuth to have run.
func (h *ClientHandler) Dashboard(c *gin.Context) {
	client, ok := c.MustGet(clientCtxKey).(*models.Client)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}
	dashboard, err := h.users.Dashboard(c.Request.Context(), client)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, dashboard)
}
