package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/luis314159/cis-demo/internal/cis/service"
)

type ObjectHandler struct {
	transition *service.TransitionService
	importer   *service.ImportService
	archive    *service.ScanArchiveService
}

func NewObjectHandler(transition *service.TransitionService, importer *service.ImportService, archive *service.ScanArchiveService) *ObjectHandler {
	return &ObjectHandler{transition: transition, importer: importer, archive: archive}
}

// UpdateStage PUT /object/update_stage?ocr=...&new_stage_name=...
// The ocr query param is the full scan code "<item_ocr>_<ordinal>"; the item
// code may itself contain underscores.
func (h *ObjectHandler) UpdateStage(c *gin.Context) {
	scanCode := c.Query("ocr")
	newStageName := c.Query("new_stage_name")
	if scanCode == "" || newStageName == "" {
		BadRequest(c, "ocr and new_stage_name query parameters are required")
		return
	}

	objectID, err := h.transition.AdvanceUnit(c.Request.Context(), scanCode, newStageName)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	Success(c, gin.H{
		"message":   "stage updated",
		"object_id": objectID,
		"new_stage": newStageName,
	})
}

// ValidateAndInsert POST /object/validate-and-insert
// Multipart upload of a nesting sheet (CSV or XLSX). Creates the job, its
// items and one unit per declared quantity.
func (h *ObjectHandler) ValidateAndInsert(c *gin.Context) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		BadRequest(c, "file is required")
		return
	}
	file, err := fileHeader.Open()
	if err != nil {
		BadRequest(c, "could not open upload: "+err.Error())
		return
	}
	defer file.Close()

	summary, err := h.importer.ImportFile(c.Request.Context(), fileHeader.Filename, file)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	Created(c, summary)
}

// ScanPhoto POST /object/scan-photo
// Archives the raw scanner photo for later auditing; returns the object key.
func (h *ObjectHandler) ScanPhoto(c *gin.Context) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		BadRequest(c, "file is required")
		return
	}
	file, err := fileHeader.Open()
	if err != nil {
		BadRequest(c, "could not open upload: "+err.Error())
		return
	}
	defer file.Close()

	key, err := h.archive.Save(
		c.Request.Context(),
		fileHeader.Filename,
		fileHeader.Header.Get("Content-Type"),
		fileHeader.Size,
		file,
	)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	Created(c, gin.H{"key": key})
}
