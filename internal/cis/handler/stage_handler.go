package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/luis314159/cis-demo/internal/cis/service"
)

type StageHandler struct {
	svc *service.CatalogService
}

func NewStageHandler(svc *service.CatalogService) *StageHandler {
	return &StageHandler{svc: svc}
}

type createStageInput struct {
	StageName string `json:"stage_name" binding:"required"`
}

// Create POST /stages/create
func (h *StageHandler) Create(c *gin.Context) {
	var input createStageInput
	if err := c.ShouldBindJSON(&input); err != nil {
		BadRequest(c, "invalid payload: "+err.Error())
		return
	}
	stage, err := h.svc.CreateStage(c.Request.Context(), input.StageName)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	Created(c, stage)
}

// List GET /stages
func (h *StageHandler) List(c *gin.Context) {
	stages, err := h.svc.ListStages(c.Request.Context())
	if err != nil {
		InternalError(c, "list stages: "+err.Error())
		return
	}
	Success(c, gin.H{"items": stages})
}

// Delete DELETE /stages/:stage_id
// Rejected with 409 while any pipeline edge or unit references the stage.
func (h *StageHandler) Delete(c *gin.Context) {
	stageID, ok := paramUint(c, "stage_id")
	if !ok {
		return
	}
	if err := h.svc.DeleteStage(c.Request.Context(), stageID); err != nil {
		writeServiceError(c, err)
		return
	}
	Success(c, nil)
}
