package handler

import (
	"errors"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/luis314159/cis-demo/internal/cis/repository"
	"github.com/luis314159/cis-demo/internal/cis/service"
)

// Handlers groups all HTTP handlers for wiring in main.
type Handlers struct {
	Stage   *StageHandler
	Process *ProcessHandler
	Object  *ObjectHandler
	Job     *JobHandler
	Item    *ItemHandler
}

// NewHandlers creates the handler set.
func NewHandlers(svc *service.Services, repos *repository.Repositories) *Handlers {
	return &Handlers{
		Stage:   NewStageHandler(svc.Catalog),
		Process: NewProcessHandler(svc.Catalog),
		Object:  NewObjectHandler(svc.Transition, svc.Import, svc.ScanArchive),
		Job:     NewJobHandler(svc.Progress, repos.Job),
		Item:    NewItemHandler(svc.Catalog, repos.Item, repos.Process),
	}
}

// Response is the uniform JSON envelope.
type Response struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// Success 200 response
func Success(c *gin.Context, data interface{}) {
	c.JSON(200, Response{
		Code:    0,
		Message: "success",
		Data:    data,
	})
}

// Created 201 response
func Created(c *gin.Context, data interface{}) {
	c.JSON(201, Response{
		Code:    0,
		Message: "success",
		Data:    data,
	})
}

// Error maps an envelope code (e.g. 40400) onto its HTTP status.
func Error(c *gin.Context, code int, message string) {
	statusCode := code / 100
	if statusCode < 100 || statusCode > 599 {
		statusCode = 500
	}
	c.JSON(statusCode, Response{
		Code:    code,
		Message: message,
	})
}

func BadRequest(c *gin.Context, message string) {
	Error(c, 40000, message)
}

func NotFound(c *gin.Context, message string) {
	Error(c, 40400, message)
}

func Conflict(c *gin.Context, message string) {
	Error(c, 40900, message)
}

func InternalError(c *gin.Context, message string) {
	Error(c, 50000, message)
}

// paramUint parses a numeric path parameter.
func paramUint(c *gin.Context, name string) (uint, bool) {
	v, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil {
		BadRequest(c, name+" must be a positive integer")
		return 0, false
	}
	return uint(v), true
}

// writeServiceError translates the service error taxonomy into the envelope.
// Unknown errors fall through as 500s.
func writeServiceError(c *gin.Context, err error) {
	var invalidPipeline *service.InvalidPipelineError
	var importErr *service.ImportError
	switch {
	case errors.As(err, &invalidPipeline):
		NotFound(c, invalidPipeline.Error())
	case errors.As(err, &importErr):
		BadRequest(c, importErr.Error())
	case errors.Is(err, service.ErrProcessNotFound),
		errors.Is(err, service.ErrStageNotFound),
		errors.Is(err, service.ErrItemNotFound),
		errors.Is(err, service.ErrJobNotFound),
		errors.Is(err, service.ErrNoItemsForJob),
		errors.Is(err, service.ErrOrdinalOutOfRange):
		NotFound(c, err.Error())
	case errors.Is(err, service.ErrScanCode):
		BadRequest(c, err.Error())
	case errors.Is(err, service.ErrStageConflict),
		errors.Is(err, service.ErrStageReferenced),
		errors.Is(err, service.ErrProcessReferenced),
		errors.Is(err, service.ErrDuplicateName):
		Conflict(c, err.Error())
	case errors.Is(err, service.ErrArchiveUnavailable):
		Error(c, 50300, err.Error())
	default:
		InternalError(c, err.Error())
	}
}
