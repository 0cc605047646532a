package handler

import (
	"fmt"

	"github.com/gin-gonic/gin"
	"github.com/luis314159/cis-demo/internal/cis/service"
)

type ProcessHandler struct {
	svc *service.CatalogService
}

func NewProcessHandler(svc *service.CatalogService) *ProcessHandler {
	return &ProcessHandler{svc: svc}
}

type createProcessInput struct {
	ProcessName string `json:"process_name" binding:"required"`
}

// Create POST /processes/create
func (h *ProcessHandler) Create(c *gin.Context) {
	var input createProcessInput
	if err := c.ShouldBindJSON(&input); err != nil {
		BadRequest(c, "invalid payload: "+err.Error())
		return
	}
	process, err := h.svc.CreateProcess(c.Request.Context(), input.ProcessName)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	Created(c, process)
}

// List GET /processes
func (h *ProcessHandler) List(c *gin.Context) {
	processes, err := h.svc.ListProcesses(c.Request.Context())
	if err != nil {
		InternalError(c, "list processes: "+err.Error())
		return
	}
	Success(c, gin.H{"items": processes})
}

// Delete DELETE /processes/:process_id
// Rejected with 409 while items are bound to the process.
func (h *ProcessHandler) Delete(c *gin.Context) {
	processID, ok := paramUint(c, "process_id")
	if !ok {
		return
	}
	if err := h.svc.DeleteProcess(c.Request.Context(), processID); err != nil {
		writeServiceError(c, err)
		return
	}
	Success(c, nil)
}

// OrderStages POST /processes/:process_name/order-stages
// Body: ordered list of stage names. Replaces the whole pipeline atomically;
// unresolved names are all reported, not just the first.
func (h *ProcessHandler) OrderStages(c *gin.Context) {
	processName := c.Param("process_name")
	var stageOrder []string
	if err := c.ShouldBindJSON(&stageOrder); err != nil {
		BadRequest(c, "body must be an ordered list of stage names: "+err.Error())
		return
	}
	if err := h.svc.ReplacePipeline(c.Request.Context(), processName, stageOrder); err != nil {
		writeServiceError(c, err)
		return
	}
	Success(c, gin.H{
		"message": fmt.Sprintf("stage order for process %q updated", processName),
	})
}

// GetStagesOrder GET /processes/:process_name/stages-order
func (h *ProcessHandler) GetStagesOrder(c *gin.Context) {
	processName := c.Param("process_name")
	refs, err := h.svc.GetPipeline(c.Request.Context(), processName)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	if len(refs) == 0 {
		Success(c, gin.H{
			"message": fmt.Sprintf("no stages assigned to process %q yet", processName),
			"items":   []service.StageRef{},
		})
		return
	}
	Success(c, gin.H{"items": refs})
}
