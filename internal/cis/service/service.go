package service

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/luis314159/cis-demo/internal/cis/repository"
	"github.com/minio/minio-go/v7"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Sentinel errors surfaced to handlers. All map to client-visible responses;
// none are retried automatically.
var (
	ErrProcessNotFound   = errors.New("process not found")
	ErrStageNotFound     = errors.New("stage not found")
	ErrItemNotFound      = errors.New("item not found")
	ErrJobNotFound       = errors.New("job not found")
	ErrNoItemsForJob     = errors.New("no items found for job")
	ErrOrdinalOutOfRange = errors.New("unit ordinal out of range")
	ErrScanCode          = errors.New("malformed scan code")
	ErrStageConflict     = errors.New("concurrent stage update, scan again")
	ErrStageReferenced   = errors.New("stage is referenced by a pipeline or unit")
	ErrProcessReferenced = errors.New("process is referenced by items")
	ErrDuplicateName     = errors.New("name already exists")
)

// InvalidPipelineError reports every unresolved or repeated stage name in a
// pipeline definition, not just the first one.
type InvalidPipelineError struct {
	Missing    []string
	Duplicates []string
}

func (e *InvalidPipelineError) Error() string {
	var parts []string
	if len(e.Missing) > 0 {
		parts = append(parts, "unknown stages: "+strings.Join(e.Missing, ", "))
	}
	if len(e.Duplicates) > 0 {
		parts = append(parts, "repeated stages: "+strings.Join(e.Duplicates, ", "))
	}
	return "invalid pipeline: " + strings.Join(parts, "; ")
}

// StageRef is one position of a process pipeline as exposed over HTTP.
type StageRef struct {
	Order     int    `json:"order"`
	StageID   uint   `json:"stage_id"`
	StageName string `json:"stage_name"`
}

// ItemStageStatus is the completion of one item at one stage.
type ItemStageStatus struct {
	ItemName string `json:"item_name"`
	ItemOCR  string `json:"item_ocr"`
	Ratio    string `json:"ratio"`
	Status   bool   `json:"status"`
}

// StageStatus groups item completion under a stage name.
type StageStatus struct {
	StageName string            `json:"stage_name"`
	Items     []ItemStageStatus `json:"items"`
}

// JobStatus is the per-stage completion view of a job. Warnings carry data
// inconsistencies (units whose stage left their item's pipeline); those units
// are still counted as pending so totals never shrink.
type JobStatus struct {
	JobCode  string        `json:"job_code"`
	Stages   []StageStatus `json:"stages"`
	Warnings []string      `json:"warnings,omitempty"`
}

// Services groups all services for wiring in main.
type Services struct {
	Catalog     *CatalogService
	Transition  *TransitionService
	Progress    *ProgressService
	Import      *ImportService
	ScanArchive *ScanArchiveService
}

// NewServices creates the service set. rdb and mc may be nil; the dependent
// features degrade instead of failing startup. statusTTL bounds the job-status
// cache; non-positive values fall back to the service default.
func NewServices(repos *repository.Repositories, rdb *redis.Client, statusTTL time.Duration, mc *minio.Client, bucket string, logger *zap.Logger) *Services {
	progress := NewProgressService(repos.Job, repos.Item, repos.Object, repos.Process, rdb, statusTTL, logger)
	return &Services{
		Catalog:     NewCatalogService(repos.Stage, repos.Process),
		Transition:  NewTransitionService(repos.Item, repos.Stage, repos.Object, progress),
		Progress:    progress,
		Import:      NewImportService(repos.Job, repos.Item, repos.Object, repos.Process, logger),
		ScanArchive: NewScanArchiveService(mc, bucket),
	}
}

func ratio(completed, pending int) string {
	return fmt.Sprintf("%d/%d", completed, completed+pending)
}
