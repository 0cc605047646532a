package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/luis314159/cis-demo/internal/cis/entity"
	"github.com/luis314159/cis-demo/internal/cis/repository"
)

// CatalogService owns the stage catalog and process pipelines.
type CatalogService struct {
	stageRepo   *repository.StageRepository
	processRepo *repository.ProcessRepository
}

func NewCatalogService(stageRepo *repository.StageRepository, processRepo *repository.ProcessRepository) *CatalogService {
	return &CatalogService{stageRepo: stageRepo, processRepo: processRepo}
}

// ========== Stages ==========

func (s *CatalogService) CreateStage(ctx context.Context, name string) (*entity.Stage, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("stage name is required")
	}
	stage := &entity.Stage{StageName: name}
	if err := s.stageRepo.Create(ctx, stage); err != nil {
		if isUniqueViolation(err) {
			return nil, ErrDuplicateName
		}
		return nil, fmt.Errorf("create stage: %w", err)
	}
	return stage, nil
}

func (s *CatalogService) ListStages(ctx context.Context) ([]entity.Stage, error) {
	return s.stageRepo.List(ctx)
}

// DeleteStage refuses to remove a stage that any pipeline edge or unit still
// points at.
func (s *CatalogService) DeleteStage(ctx context.Context, stageID uint) error {
	if _, err := s.stageRepo.FindByID(ctx, stageID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrStageNotFound
		}
		return err
	}
	refs, err := s.stageRepo.CountReferences(ctx, stageID)
	if err != nil {
		return err
	}
	if refs > 0 {
		return ErrStageReferenced
	}
	return s.stageRepo.Delete(ctx, stageID)
}

// ========== Processes ==========

func (s *CatalogService) CreateProcess(ctx context.Context, name string) (*entity.Process, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("process name is required")
	}
	process := &entity.Process{ProcessName: name}
	if err := s.processRepo.Create(ctx, process); err != nil {
		if isUniqueViolation(err) {
			return nil, ErrDuplicateName
		}
		return nil, fmt.Errorf("create process: %w", err)
	}
	return process, nil
}

func (s *CatalogService) ListProcesses(ctx context.Context) ([]entity.Process, error) {
	return s.processRepo.List(ctx)
}

// DeleteProcess refuses to remove a process while items reference it.
func (s *CatalogService) DeleteProcess(ctx context.Context, processID uint) error {
	if _, err := s.processRepo.FindByID(ctx, processID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrProcessNotFound
		}
		return err
	}
	items, err := s.processRepo.CountItems(ctx, processID)
	if err != nil {
		return err
	}
	if items > 0 {
		return ErrProcessReferenced
	}
	return s.processRepo.Delete(ctx, processID)
}

// ========== Pipeline ==========

// ReplacePipeline installs a new stage ordering for a process. Every name in
// orderedStageNames must resolve against the catalog and appear only once;
// violations are reported in full via InvalidPipelineError. The previous edge
// set is dropped and the new one written with stage_order 1..n in one
// transaction, so the operation is atomic and idempotent.
func (s *CatalogService) ReplacePipeline(ctx context.Context, processName string, orderedStageNames []string) error {
	process, err := s.processRepo.FindByName(ctx, processName)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrProcessNotFound
		}
		return err
	}
	if len(orderedStageNames) == 0 {
		return &InvalidPipelineError{Missing: []string{"(empty stage list)"}}
	}

	byName, err := s.stageRepo.FindByNames(ctx, orderedStageNames)
	if err != nil {
		return fmt.Errorf("resolve stages: %w", err)
	}

	var invalid InvalidPipelineError
	seen := make(map[string]bool, len(orderedStageNames))
	for _, name := range orderedStageNames {
		if _, ok := byName[name]; !ok {
			if !seen[name] {
				invalid.Missing = append(invalid.Missing, name)
			}
		} else if seen[name] {
			invalid.Duplicates = append(invalid.Duplicates, name)
		}
		seen[name] = true
	}
	if len(invalid.Missing) > 0 || len(invalid.Duplicates) > 0 {
		return &invalid
	}

	edges := make([]entity.ProcessStage, len(orderedStageNames))
	for i, name := range orderedStageNames {
		edges[i] = entity.ProcessStage{
			ProcessID:  process.ProcessID,
			StageID:    byName[name].StageID,
			StageOrder: i + 1,
		}
	}
	if err := s.processRepo.ReplacePipeline(ctx, process.ProcessID, edges); err != nil {
		return fmt.Errorf("replace pipeline: %w", err)
	}
	return nil
}

// GetPipeline returns the ordered stage refs of a process. An unset pipeline
// is an empty slice, not an error.
func (s *CatalogService) GetPipeline(ctx context.Context, processName string) ([]StageRef, error) {
	process, err := s.processRepo.FindByName(ctx, processName)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrProcessNotFound
		}
		return nil, err
	}
	edges, err := s.processRepo.ListPipeline(ctx, process.ProcessID)
	if err != nil {
		return nil, err
	}
	refs := make([]StageRef, 0, len(edges))
	for _, edge := range edges {
		ref := StageRef{Order: edge.StageOrder, StageID: edge.StageID}
		if edge.Stage != nil {
			ref.StageName = edge.Stage.StageName
		}
		refs = append(refs, ref)
	}
	return refs, nil
}

// isUniqueViolation matches unique-constraint failures across the postgres
// and sqlite drivers without importing either.
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "duplicate key") || strings.Contains(msg, "unique constraint")
}
