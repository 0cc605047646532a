package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/luis314159/cis-demo/internal/cis/entity"
	"github.com/luis314159/cis-demo/internal/cis/repository"
	"github.com/luis314159/cis-demo/internal/cis/testutil"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func setupProgressTest(t *testing.T) (*gorm.DB, *ProgressService) {
	t.Helper()
	db := testutil.SetupTestDB(t)
	repos := repository.NewRepositories(db)
	return db, NewProgressService(repos.Job, repos.Item, repos.Object, repos.Process, nil, 0, zap.NewNop())
}

func TestProgressServiceCacheTTL(t *testing.T) {
	db := testutil.SetupTestDB(t)
	repos := repository.NewRepositories(db)

	svc := NewProgressService(repos.Job, repos.Item, repos.Object, repos.Process, nil, 5*time.Minute, zap.NewNop())
	if svc.cacheTTL != 5*time.Minute {
		t.Errorf("Expected configured TTL 5m, got %v", svc.cacheTTL)
	}

	// Non-positive values fall back to the default bound.
	svc = NewProgressService(repos.Job, repos.Item, repos.Object, repos.Process, nil, 0, zap.NewNop())
	if svc.cacheTTL != 30*time.Second {
		t.Errorf("Expected default TTL 30s, got %v", svc.cacheTTL)
	}
}

func moveObject(t *testing.T, db *gorm.DB, objectID, stageID uint) {
	t.Helper()
	if err := db.Model(&entity.Object{}).Where("object_id = ?", objectID).
		Update("current_stage", stageID).Error; err != nil {
		t.Fatalf("Failed to move object %d: %v", objectID, err)
	}
}

func stageByName(status *JobStatus, name string) *StageStatus {
	for i := range status.Stages {
		if status.Stages[i].StageName == name {
			return &status.Stages[i]
		}
	}
	return nil
}

func TestJobStatusLifecycle(t *testing.T) {
	db, svc := setupProgressTest(t)
	ctx := context.Background()

	cutting := testutil.SeedStage(t, db, "Cutting")
	bending := testutil.SeedStage(t, db, "Bending")
	welding := testutil.SeedStage(t, db, "Welding")
	process := testutil.SeedProcess(t, db, "Laser", cutting, bending, welding)
	job := testutil.SeedJob(t, db, "JOB-100")
	item := testutil.SeedItem(t, db, job, process, "Bracket", "BRK-01", 3, cutting.StageID)

	// Fresh import: every unit sits at the first stage, so nothing has
	// started and every stage reads fully pending.
	status, err := svc.ComputeJobStatus(ctx, "JOB-100")
	if err != nil {
		t.Fatalf("Failed to compute status: %v", err)
	}
	if status.JobCode != "JOB-100" {
		t.Errorf("Expected job code JOB-100, got %q", status.JobCode)
	}
	if len(status.Stages) != 3 {
		t.Fatalf("Expected 3 stages, got %d", len(status.Stages))
	}
	for _, stage := range status.Stages {
		if len(stage.Items) != 1 {
			t.Fatalf("Stage %q: expected 1 item, got %d", stage.StageName, len(stage.Items))
		}
		if stage.Items[0].Ratio != "0/3" || stage.Items[0].Status {
			t.Errorf("Stage %q: expected 0/3 pending, got %q status=%v",
				stage.StageName, stage.Items[0].Ratio, stage.Items[0].Status)
		}
	}

	// One unit reaches Bending: it has cleared Cutting and is being bent,
	// while the two units still at the head of the pipeline count pending.
	objects, _ := repository.NewObjectRepository(db).ListByItem(ctx, item.ItemID)
	moveObject(t, db, objects[0].ObjectID, bending.StageID)

	status, err = svc.ComputeJobStatus(ctx, "JOB-100")
	if err != nil {
		t.Fatalf("Failed to compute status: %v", err)
	}
	wantRatios := map[string]string{"Cutting": "1/3", "Bending": "1/3", "Welding": "0/3"}
	for name, want := range wantRatios {
		stage := stageByName(status, name)
		if stage == nil {
			t.Fatalf("Stage %q missing from status", name)
		}
		if got := stage.Items[0].Ratio; got != want {
			t.Errorf("Stage %q: expected ratio %s, got %s", name, want, got)
		}
		if stage.Items[0].Status {
			t.Errorf("Stage %q: expected incomplete", name)
		}
	}

	// Everything at the final stage: all stages complete.
	for _, obj := range objects {
		moveObject(t, db, obj.ObjectID, welding.StageID)
	}
	status, err = svc.ComputeJobStatus(ctx, "JOB-100")
	if err != nil {
		t.Fatalf("Failed to compute status: %v", err)
	}
	for _, stage := range status.Stages {
		if stage.Items[0].Ratio != "3/3" || !stage.Items[0].Status {
			t.Errorf("Stage %q: expected 3/3 complete, got %q status=%v",
				stage.StageName, stage.Items[0].Ratio, stage.Items[0].Status)
		}
	}
	if len(status.Warnings) != 0 {
		t.Errorf("Unexpected warnings: %v", status.Warnings)
	}
}

func TestJobStatusStageAndItemOrdering(t *testing.T) {
	db, svc := setupProgressTest(t)

	cutting := testutil.SeedStage(t, db, "Cutting")
	bending := testutil.SeedStage(t, db, "Bending")
	painting := testutil.SeedStage(t, db, "Painting")
	laser := testutil.SeedProcess(t, db, "Laser", cutting, bending)
	press := testutil.SeedProcess(t, db, "Press", painting, cutting)
	job := testutil.SeedJob(t, db, "JOB-101")
	testutil.SeedItem(t, db, job, laser, "Bracket", "BRK-01", 1, cutting.StageID)
	testutil.SeedItem(t, db, job, press, "Panel", "PNL-01", 1, painting.StageID)

	status, err := svc.ComputeJobStatus(context.Background(), "JOB-101")
	if err != nil {
		t.Fatalf("Failed to compute status: %v", err)
	}

	// Stages appear in first-appearance order walking items by id.
	wantStages := []string{"Cutting", "Bending", "Painting"}
	if len(status.Stages) != len(wantStages) {
		t.Fatalf("Expected %d stages, got %d", len(wantStages), len(status.Stages))
	}
	for i, want := range wantStages {
		if status.Stages[i].StageName != want {
			t.Errorf("Stage %d: expected %q, got %q", i, want, status.Stages[i].StageName)
		}
	}

	// Cutting belongs to both pipelines, so it lists both items in item order.
	cuttingStage := stageByName(status, "Cutting")
	if len(cuttingStage.Items) != 2 {
		t.Fatalf("Expected 2 items under Cutting, got %d", len(cuttingStage.Items))
	}
	if cuttingStage.Items[0].ItemName != "Bracket" || cuttingStage.Items[1].ItemName != "Panel" {
		t.Errorf("Wrong item order under Cutting: %+v", cuttingStage.Items)
	}
}

func TestJobStatusInconsistentUnitCountsPending(t *testing.T) {
	db, svc := setupProgressTest(t)

	cutting := testutil.SeedStage(t, db, "Cutting")
	bending := testutil.SeedStage(t, db, "Bending")
	orphanStage := testutil.SeedStage(t, db, "Painting")
	process := testutil.SeedProcess(t, db, "Laser", cutting, bending)
	job := testutil.SeedJob(t, db, "JOB-102")

	// The unit's stage is real but no longer part of its item's pipeline.
	testutil.SeedItem(t, db, job, process, "Bracket", "BRK-01", 1, orphanStage.StageID)

	status, err := svc.ComputeJobStatus(context.Background(), "JOB-102")
	if err != nil {
		t.Fatalf("Failed to compute status: %v", err)
	}
	for _, stage := range status.Stages {
		if stage.Items[0].Ratio != "0/1" || stage.Items[0].Status {
			t.Errorf("Stage %q: inconsistent unit must stay pending, got %q status=%v",
				stage.StageName, stage.Items[0].Ratio, stage.Items[0].Status)
		}
	}
	if len(status.Warnings) != 1 {
		t.Fatalf("Expected 1 warning, got %v", status.Warnings)
	}
	if !strings.Contains(status.Warnings[0], "not in its pipeline") {
		t.Errorf("Unexpected warning text: %q", status.Warnings[0])
	}
}

func TestJobStatusItemWithoutPipeline(t *testing.T) {
	db, svc := setupProgressTest(t)

	cutting := testutil.SeedStage(t, db, "Cutting")
	bare := testutil.SeedProcess(t, db, "Unplanned")
	job := testutil.SeedJob(t, db, "JOB-103")
	testutil.SeedItem(t, db, job, bare, "Mystery", "MST-01", 1, cutting.StageID)

	status, err := svc.ComputeJobStatus(context.Background(), "JOB-103")
	if err != nil {
		t.Fatalf("Failed to compute status: %v", err)
	}
	if len(status.Stages) != 0 {
		t.Errorf("Expected no stages, got %d", len(status.Stages))
	}
	if len(status.Warnings) != 1 || !strings.Contains(status.Warnings[0], "no pipeline") {
		t.Errorf("Expected pipeline warning, got %v", status.Warnings)
	}
}

func TestJobStatusErrors(t *testing.T) {
	db, svc := setupProgressTest(t)
	ctx := context.Background()

	if _, err := svc.ComputeJobStatus(ctx, "NOPE"); !errors.Is(err, ErrJobNotFound) {
		t.Errorf("Expected ErrJobNotFound, got %v", err)
	}

	testutil.SeedJob(t, db, "JOB-104")
	if _, err := svc.ComputeJobStatus(ctx, "JOB-104"); !errors.Is(err, ErrNoItemsForJob) {
		t.Errorf("Expected ErrNoItemsForJob, got %v", err)
	}
}

func TestExportJobStatus(t *testing.T) {
	db, svc := setupProgressTest(t)

	cutting := testutil.SeedStage(t, db, "Cutting")
	process := testutil.SeedProcess(t, db, "Laser", cutting)
	job := testutil.SeedJob(t, db, "JOB-105")
	testutil.SeedItem(t, db, job, process, "Bracket", "BRK-01", 2, cutting.StageID)

	f, filename, err := svc.ExportJobStatus(context.Background(), "JOB-105")
	if err != nil {
		t.Fatalf("Failed to export status: %v", err)
	}
	defer f.Close()

	if !strings.HasPrefix(filename, "job_JOB-105_status_") || !strings.HasSuffix(filename, ".xlsx") {
		t.Errorf("Unexpected export filename: %q", filename)
	}

	header, _ := f.GetCellValue("Status", "A1")
	if header != "Stage" {
		t.Errorf("Expected header Stage in A1, got %q", header)
	}
	stageCell, _ := f.GetCellValue("Status", "A2")
	ratioCell, _ := f.GetCellValue("Status", "D2")
	if stageCell != "Cutting" || ratioCell != "0/2" {
		t.Errorf("Unexpected export row: stage=%q ratio=%q", stageCell, ratioCell)
	}
}
