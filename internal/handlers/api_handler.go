package handlers

import (
	"net/http"

	"agency_tracker/internal/services"

	"github.com/gin-gonic/gin"
)

// APIHandler serves the admin surface for projects, phases, tasks,
// attachments, tracking codes and clients.
type APIHandler struct {
	hierarchy services.HierarchyService
	tracking  services.TrackingService
	users     services.UserService
}

func NewAPIHandler(
	hierarchy services.HierarchyService,
	tracking services.TrackingService,
	users services.UserService,
) *APIHandler {
	return &APIHandler{
		hierarchy: hierarchy,
		tracking:  tracking,
		users:     users,
	}
}

type reorderRequest struct {
	IDs []uint `json:"ids"`
}

type completionRequest struct {
	CompletionPercentage *float64 `json:"completion_percentage"`
}

// Projects

func (h *APIHandler) CreateProject(c *gin.Context) {
	var req services.CreateProjectInput
	if !bindJSON(c, &req) {
		return
	}
	project, err := h.hierarchy.CreateProject(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, project)
}

func (h *APIHandler) GetProject(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	tree, err := h.tracking.ProjectTree(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, tree)
}

func (h *APIHandler) UpdateProject(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req services.UpdateProjectInput
	if !bindJSON(c, &req) {
		return
	}
	project, err := h.hierarchy.UpdateProject(c.Request.Context(), id, req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, project)
}

func (h *APIHandler) DeleteProject(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	if err := h.hierarchy.DeleteProject(c.Request.Context(), id); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// Phases

func (h *APIHandler) ListPhases(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	phases, err := h.hierarchy.ListPhases(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"phases": phases})
}

func (h *APIHandler) CreatePhase(c *gin.Context) {
	projectID, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req services.CreatePhaseInput
	if !bindJSON(c, &req) {
		return
	}
	req.ProjectID = projectID
	phase, err := h.hierarchy.CreatePhase(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, phase)
}

func (h *APIHandler) UpdatePhase(c *gin.Context) {
	id, ok := paramID(c, "phaseID")
	if !ok {
		return
	}
	var req services.UpdatePhaseInput
	if !bindJSON(c, &req) {
		return
	}
	phase, err := h.hierarchy.UpdatePhase(c.Request.Context(), id, req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, phase)
}

func (h *APIHandler) DeletePhase(c *gin.Context) {
	id, ok := paramID(c, "phaseID")
	if !ok {
		return
	}
	if err := h.hierarchy.DeletePhase(c.Request.Context(), id); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *APIHandler) ReorderPhases(c *gin.Context) {
	projectID, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req reorderRequest
	if !bindJSON(c, &req) {
		return
	}
	if err := h.hierarchy.ReorderPhases(c.Request.Context(), projectID, req.IDs); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "reordered"})
}

func (h *APIHandler) CompletePhase(c *gin.Context) {
	id, ok := paramID(c, "phaseID")
	if !ok {
		return
	}
	result, err := h.hierarchy.CompletePhase(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// Tasks

func (h *APIHandler) ListTasks(c *gin.Context) {
	phaseID, ok := paramID(c, "phaseID")
	if !ok {
		return
	}
	tasks, err := h.hierarchy.ListTasks(c.Request.Context(), phaseID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"tasks": tasks})
}

func (h *APIHandler) CreateTask(c *gin.Context) {
	phaseID, ok := paramID(c, "phaseID")
	if !ok {
		return
	}
	var req services.CreateTaskInput
	if !bindJSON(c, &req) {
		return
	}
	req.PhaseID = phaseID
	task, err := h.hierarchy.CreateTask(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, task)
}

func (h *APIHandler) UpdateTask(c *gin.Context) {
	id, ok := paramID(c, "taskID")
	if !ok {
		return
	}
	var req services.UpdateTaskInput
	if !bindJSON(c, &req) {
		return
	}
	task, err := h.hierarchy.UpdateTask(c.Request.Context(), id, req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, task)
}

func (h *APIHandler) UpdateTaskCompletion(c *gin.Context) {
	id, ok := paramID(c, "taskID")
	if !ok {
		return
	}
	var req completionRequest
	if !bindJSON(c, &req) {
		return
	}
	if req.CompletionPercentage == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "completion_percentage is required", "field": "completion_percentage"})
		return
	}
	task, err := h.hierarchy.UpdateTaskCompletion(c.Request.Context(), id, *req.CompletionPercentage)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, task)
}

func (h *APIHandler) DeleteTask(c *gin.Context) {
	id, ok := paramID(c, "taskID")
	if !ok {
		return
	}
	if err := h.hierarchy.DeleteTask(c.Request.Context(), id); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *APIHandler) ReorderTasks(c *gin.Context) {
	phaseID, ok := paramID(c, "phaseID")
	if !ok {
		return
	}
	var req reorderRequest
	if !bindJSON(c, &req) {
		return
	}
	if err := h.hierarchy.ReorderTasks(c.Request.Context(), phaseID, req.IDs); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "reordered"})
}

// Attachments

func (h *APIHandler) CreateAttachment(c *gin.Context) {
	projectID, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req services.CreateAttachmentInput
	if !bindJSON(c, &req) {
		return
	}
	req.ProjectID = projectID
	attachment, err := h.hierarchy.CreateAttachment(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, attachment)
}

func (h *APIHandler) DeleteAttachment(c *gin.Context) {
	projectID, ok := paramID(c, "id")
	if !ok {
		return
	}
	id, ok := paramID(c, "attachmentID")
	if !ok {
		return
	}
	if err := h.hierarchy.DeleteAttachment(c.Request.Context(), projectID, id); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// Tracking codes

func (h *APIHandler) ListTrackingCodes(c *gin.Context) {
	projectID, ok := paramID(c, "id")
	if !ok {
		return
	}
	codes, err := h.tracking.ListCodes(c.Request.Context(), projectID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"tracking_codes": codes})
}

func (h *APIHandler) RegenerateTrackingCode(c *gin.Context) {
	projectID, ok := paramID(c, "id")
	if !ok {
		return
	}
	code, err := h.tracking.Regenerate(c.Request.Context(), projectID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, code)
}

// Clients

func (h *APIHandler) CreateClient(c *gin.Context) {
	var req services.CreateClientInput
	if !bindJSON(c, &req) {
		return
	}
	client, err := h.users.CreateClient(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, client)
}

func (h *APIHandler) GetClient(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	client, err := h.users.GetClient(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, client)
}
