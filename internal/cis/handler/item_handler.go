package handler

import (
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/luis314159/cis-demo/internal/cis/repository"
	"github.com/luis314159/cis-demo/internal/cis/service"
)

type ItemHandler struct {
	catalog     *service.CatalogService
	itemRepo    *repository.ItemRepository
	processRepo *repository.ProcessRepository
}

func NewItemHandler(catalog *service.CatalogService, itemRepo *repository.ItemRepository, processRepo *repository.ProcessRepository) *ItemHandler {
	return &ItemHandler{catalog: catalog, itemRepo: itemRepo, processRepo: processRepo}
}

// pipeline projects the item's process pipeline; recomputed on every call.
func (h *ItemHandler) pipeline(c *gin.Context) ([]service.StageRef, bool) {
	itemID, ok := paramUint(c, "item_id")
	if !ok {
		return nil, false
	}
	item, err := h.itemRepo.FindByID(c.Request.Context(), itemID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			NotFound(c, "item not found")
		} else {
			InternalError(c, err.Error())
		}
		return nil, false
	}
	process, err := h.processRepo.FindByID(c.Request.Context(), item.ProcessID)
	if err != nil {
		InternalError(c, err.Error())
		return nil, false
	}
	refs, err := h.catalog.GetPipeline(c.Request.Context(), process.ProcessName)
	if err != nil {
		writeServiceError(c, err)
		return nil, false
	}
	return refs, true
}

// ProcessStageNames GET /items/item_process/:item_id
func (h *ItemHandler) ProcessStageNames(c *gin.Context) {
	refs, ok := h.pipeline(c)
	if !ok {
		return
	}
	names := make([]string, len(refs))
	for i, ref := range refs {
		names[i] = ref.StageName
	}
	Success(c, names)
}

// ProcessStageIDs GET /items/item_process_ids/:item_id
func (h *ItemHandler) ProcessStageIDs(c *gin.Context) {
	refs, ok := h.pipeline(c)
	if !ok {
		return
	}
	ids := make([]uint, len(refs))
	for i, ref := range refs {
		ids[i] = ref.StageID
	}
	Success(c, ids)
}

// Delete DELETE /items/item/:item_id
// Removes the item and every unit it owns.
func (h *ItemHandler) Delete(c *gin.Context) {
	itemID, ok := paramUint(c, "item_id")
	if !ok {
		return
	}
	if _, err := h.itemRepo.FindByID(c.Request.Context(), itemID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			NotFound(c, "item not found")
		} else {
			InternalError(c, err.Error())
		}
		return
	}
	if err := h.itemRepo.DeleteWithObjects(c.Request.Context(), itemID); err != nil {
		InternalError(c, "delete item: "+err.Error())
		return
	}
	Success(c, gin.H{"message": "item and its objects deleted"})
}
