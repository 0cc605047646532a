package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/luis314159/cis-demo/internal/cis/entity"
	"github.com/luis314159/cis-demo/internal/cis/repository"
	"github.com/redis/go-redis/v9"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
)

// ProgressService computes per-job per-stage completion views.
type ProgressService struct {
	jobRepo     *repository.JobRepository
	itemRepo    *repository.ItemRepository
	objectRepo  *repository.ObjectRepository
	processRepo *repository.ProcessRepository
	rdb         *redis.Client
	logger      *zap.Logger
	cacheTTL    time.Duration
}

func NewProgressService(jobRepo *repository.JobRepository, itemRepo *repository.ItemRepository, objectRepo *repository.ObjectRepository, processRepo *repository.ProcessRepository, rdb *redis.Client, statusTTL time.Duration, logger *zap.Logger) *ProgressService {
	if statusTTL <= 0 {
		statusTTL = 30 * time.Second
	}
	return &ProgressService{
		jobRepo:     jobRepo,
		itemRepo:    itemRepo,
		objectRepo:  objectRepo,
		processRepo: processRepo,
		rdb:         rdb,
		logger:      logger,
		cacheTTL:    statusTTL,
	}
}

func statusCacheKey(jobCode string) string {
	return "cis:jobstatus:" + jobCode
}

// ComputeJobStatus resolves the job and walks every item's own pipeline
// against its units' stage pointers. Results are cached briefly in redis when
// a client is configured; writes through AdvanceUnit and the importer
// invalidate the cache.
func (s *ProgressService) ComputeJobStatus(ctx context.Context, jobCode string) (*JobStatus, error) {
	if s.rdb != nil {
		if raw, err := s.rdb.Get(ctx, statusCacheKey(jobCode)).Bytes(); err == nil {
			var cached JobStatus
			if json.Unmarshal(raw, &cached) == nil {
				return &cached, nil
			}
		}
	}

	status, err := s.computeJobStatus(ctx, jobCode)
	if err != nil {
		return nil, err
	}

	if s.rdb != nil {
		if raw, err := json.Marshal(status); err == nil {
			if err := s.rdb.Set(ctx, statusCacheKey(jobCode), raw, s.cacheTTL).Err(); err != nil {
				s.logger.Warn("Failed to cache job status", zap.String("job_code", jobCode), zap.Error(err))
			}
		}
	}
	return status, nil
}

// InvalidateJob drops the cached status of the job owning a just-moved unit.
func (s *ProgressService) InvalidateJob(ctx context.Context, jobID uint) {
	if s.rdb == nil {
		return
	}
	job, err := s.jobRepo.FindByID(ctx, jobID)
	if err != nil {
		return
	}
	if err := s.rdb.Del(ctx, statusCacheKey(job.JobCode)).Err(); err != nil {
		s.logger.Warn("Failed to invalidate job status cache", zap.String("job_code", job.JobCode), zap.Error(err))
	}
}

func (s *ProgressService) computeJobStatus(ctx context.Context, jobCode string) (*JobStatus, error) {
	job, err := s.jobRepo.FindByCode(ctx, jobCode)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrJobNotFound
		}
		return nil, err
	}

	items, err := s.itemRepo.ListByJob(ctx, job.JobID)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, ErrNoItemsForJob
	}

	// Stage buckets keyed by name, ordered by first appearance across items.
	type bucket struct {
		completed int
		pending   int
	}
	var stageOrder []string
	perStage := make(map[string]map[uint]*bucket) // stage name -> item id -> counts
	itemByID := make(map[uint]*entity.Item, len(items))
	var itemOrder []uint
	var warnings []string

	// Pipelines are shared between items of the same process; fetch each
	// process once per computation, never cached beyond it.
	pipelines := make(map[uint][]entity.ProcessStage)

	for i := range items {
		item := &items[i]
		itemByID[item.ItemID] = item
		itemOrder = append(itemOrder, item.ItemID)

		edges, ok := pipelines[item.ProcessID]
		if !ok {
			edges, err = s.processRepo.ListPipeline(ctx, item.ProcessID)
			if err != nil {
				return nil, err
			}
			pipelines[item.ProcessID] = edges
		}
		if len(edges) == 0 {
			warnings = append(warnings, fmt.Sprintf("item %q has no pipeline defined for its process", item.ItemName))
			continue
		}

		stageIDs := make([]uint, len(edges))
		position := make(map[uint]int, len(edges))
		for k, edge := range edges {
			stageIDs[k] = edge.StageID
			position[edge.StageID] = k
		}

		objects, err := s.objectRepo.ListByItem(ctx, item.ItemID)
		if err != nil {
			return nil, err
		}

		for k, edge := range edges {
			stageName := ""
			if edge.Stage != nil {
				stageName = edge.Stage.StageName
			}
			if _, ok := perStage[stageName]; !ok {
				perStage[stageName] = make(map[uint]*bucket)
				stageOrder = append(stageOrder, stageName)
			}
			counts, ok := perStage[stageName][item.ItemID]
			if !ok {
				counts = &bucket{}
				perStage[stageName][item.ItemID] = counts
			}

			for _, object := range objects {
				// A unit still at the first stage of its own pipeline has not
				// started; it is pending everywhere, including stage one.
				if object.CurrentStage == stageIDs[0] {
					counts.pending++
					continue
				}
				p, ok := position[object.CurrentStage]
				if !ok {
					// The unit's stage left this item's pipeline (edited after
					// units advanced). Count it pending rather than dropping
					// it, and report it once per stage pass.
					if k == 0 {
						warnings = append(warnings, fmt.Sprintf(
							"object %d of item %q sits at stage %d which is not in its pipeline",
							object.ObjectID, item.ItemName, object.CurrentStage))
					}
					counts.pending++
					continue
				}
				if p >= k {
					counts.completed++
				} else {
					counts.pending++
				}
			}
		}
	}

	status := &JobStatus{JobCode: job.JobCode, Warnings: warnings}
	for _, stageName := range stageOrder {
		stageStatus := StageStatus{StageName: stageName}
		for _, itemID := range itemOrder {
			counts, ok := perStage[stageName][itemID]
			if !ok {
				continue
			}
			item := itemByID[itemID]
			stageStatus.Items = append(stageStatus.Items, ItemStageStatus{
				ItemName: item.ItemName,
				ItemOCR:  item.OCR,
				Ratio:    ratio(counts.completed, counts.pending),
				Status:   counts.pending == 0,
			})
		}
		status.Stages = append(status.Stages, stageStatus)
	}
	return status, nil
}

var statusExportHeaders = []string{"Stage", "Item", "OCR", "Ratio", "Complete"}

// ExportJobStatus renders the status view as a spreadsheet for the plant
// office. The caller owns closing the returned file.
func (s *ProgressService) ExportJobStatus(ctx context.Context, jobCode string) (*excelize.File, string, error) {
	status, err := s.ComputeJobStatus(ctx, jobCode)
	if err != nil {
		return nil, "", err
	}

	f := excelize.NewFile()
	sheet := "Status"
	f.SetSheetName("Sheet1", sheet)

	boldStyle, _ := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Size: 11},
		Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"#D9E1F2"}},
		Border: []excelize.Border{
			{Type: "bottom", Color: "000000", Style: 1},
		},
	})

	for i, h := range statusExportHeaders {
		col, _ := excelize.ColumnNumberToName(i + 1)
		cell := col + "1"
		f.SetCellValue(sheet, cell, h)
		f.SetCellStyle(sheet, cell, cell, boldStyle)
	}

	row := 2
	for _, stage := range status.Stages {
		for _, item := range stage.Items {
			f.SetCellValue(sheet, fmt.Sprintf("A%d", row), stage.StageName)
			f.SetCellValue(sheet, fmt.Sprintf("B%d", row), item.ItemName)
			f.SetCellValue(sheet, fmt.Sprintf("C%d", row), item.ItemOCR)
			f.SetCellValue(sheet, fmt.Sprintf("D%d", row), item.Ratio)
			f.SetCellValue(sheet, fmt.Sprintf("E%d", row), item.Status)
			row++
		}
	}

	filename := fmt.Sprintf("job_%s_status_%s.xlsx", jobCode, time.Now().Format("20060102_150405"))
	return f, filename, nil
}
