package handler

import (
	"context"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/luis314159/cis-demo/internal/cis/repository"
	"github.com/luis314159/cis-demo/internal/cis/service"
	"github.com/luis314159/cis-demo/internal/cis/testutil"
	"github.com/luis314159/cis-demo/internal/middleware"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func setupJobHandlerTest(t *testing.T) (*gorm.DB, *gin.Engine) {
	t.Helper()
	db := testutil.SetupTestDB(t)
	router := testutil.SetupRouter()

	repos := repository.NewRepositories(db)
	services := service.NewServices(repos, nil, 0, nil, "", zap.NewNop())
	h := NewHandlers(services, repos)

	router.GET("/jobs/:job_code/status", h.Job.Status)
	router.GET("/jobs/:job_code/status/export", h.Job.ExportStatus)
	router.GET("/jobs/list", h.Job.List)
	router.GET("/jobs/job_available/:job_code", h.Job.Available)
	router.GET("/items/item_process/:item_id", h.Item.ProcessStageNames)
	router.GET("/items/item_process_ids/:item_id", h.Item.ProcessStageIDs)

	authed := testutil.AuthGroup(router, "")
	authed.DELETE("/items/item/:item_id", middleware.RequireRole("cis_admin"), h.Item.Delete)

	return db, router
}

func TestJobStatusEndpoint(t *testing.T) {
	db, router := setupJobHandlerTest(t)

	cutting := testutil.SeedStage(t, db, "Cutting")
	bending := testutil.SeedStage(t, db, "Bending")
	process := testutil.SeedProcess(t, db, "Laser", cutting, bending)
	job := testutil.SeedJob(t, db, "JOB-300")
	testutil.SeedItem(t, db, job, process, "Bracket", "BRK-01", 2, cutting.StageID)

	w := testutil.DoRequest(router, "GET", "/jobs/JOB-300/status", nil, "")
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
	}
	resp := testutil.ParseResponse(w)
	data := resp["data"].(map[string]interface{})
	if data["job_code"] != "JOB-300" {
		t.Errorf("Expected job_code JOB-300, got %v", data["job_code"])
	}
	stages := data["stages"].([]interface{})
	if len(stages) != 2 {
		t.Fatalf("Expected 2 stages, got %d", len(stages))
	}
	first := stages[0].(map[string]interface{})
	items := first["items"].([]interface{})
	entry := items[0].(map[string]interface{})
	if entry["ratio"] != "0/2" || entry["status"] != false {
		t.Errorf("Unexpected stage entry: %v", entry)
	}

	// Unknown job and empty job are both 404s.
	w = testutil.DoRequest(router, "GET", "/jobs/NOPE/status", nil, "")
	if w.Code != http.StatusNotFound {
		t.Errorf("Expected 404 for unknown job, got %d", w.Code)
	}
	testutil.SeedJob(t, db, "JOB-301")
	w = testutil.DoRequest(router, "GET", "/jobs/JOB-301/status", nil, "")
	if w.Code != http.StatusNotFound {
		t.Errorf("Expected 404 for job without items, got %d", w.Code)
	}
}

func TestJobStatusExportEndpoint(t *testing.T) {
	db, router := setupJobHandlerTest(t)

	cutting := testutil.SeedStage(t, db, "Cutting")
	process := testutil.SeedProcess(t, db, "Laser", cutting)
	job := testutil.SeedJob(t, db, "JOB-302")
	testutil.SeedItem(t, db, job, process, "Bracket", "BRK-01", 1, cutting.StageID)

	w := testutil.DoRequest(router, "GET", "/jobs/JOB-302/status/export", nil, "")
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet" {
		t.Errorf("Unexpected content type %q", ct)
	}
	if cd := w.Header().Get("Content-Disposition"); !containsAll(cd, "attachment", "JOB-302") {
		t.Errorf("Unexpected content disposition %q", cd)
	}
	if w.Body.Len() == 0 {
		t.Errorf("Export body is empty")
	}
}

func TestJobListAndAvailability(t *testing.T) {
	db, router := setupJobHandlerTest(t)
	testutil.SeedJob(t, db, "JOB-303")

	w := testutil.DoRequest(router, "GET", "/jobs/list", nil, "")
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", w.Code)
	}
	resp := testutil.ParseResponse(w)
	items := resp["data"].(map[string]interface{})["items"].([]interface{})
	if len(items) != 1 || items[0].(map[string]interface{})["job_code"] != "JOB-303" {
		t.Errorf("Unexpected job list: %v", items)
	}

	w = testutil.DoRequest(router, "GET", "/jobs/job_available/JOB-303", nil, "")
	resp = testutil.ParseResponse(w)
	if resp["data"].(map[string]interface{})["available"] != false {
		t.Errorf("Expected taken code to be unavailable")
	}

	w = testutil.DoRequest(router, "GET", "/jobs/job_available/JOB-999", nil, "")
	resp = testutil.ParseResponse(w)
	if resp["data"].(map[string]interface{})["available"] != true {
		t.Errorf("Expected free code to be available")
	}
}

func TestItemPipelineProjection(t *testing.T) {
	db, router := setupJobHandlerTest(t)

	cutting := testutil.SeedStage(t, db, "Cutting")
	bending := testutil.SeedStage(t, db, "Bending")
	process := testutil.SeedProcess(t, db, "Laser", cutting, bending)
	job := testutil.SeedJob(t, db, "JOB-304")
	item := testutil.SeedItem(t, db, job, process, "Bracket", "BRK-01", 1, cutting.StageID)

	w := testutil.DoRequest(router, "GET", "/items/item_process/"+itoa(item.ItemID), nil, "")
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
	}
	resp := testutil.ParseResponse(w)
	names := resp["data"].([]interface{})
	if len(names) != 2 || names[0] != "Cutting" || names[1] != "Bending" {
		t.Errorf("Unexpected stage names: %v", names)
	}

	w = testutil.DoRequest(router, "GET", "/items/item_process_ids/"+itoa(item.ItemID), nil, "")
	resp = testutil.ParseResponse(w)
	ids := resp["data"].([]interface{})
	if len(ids) != 2 || uint(ids[0].(float64)) != cutting.StageID {
		t.Errorf("Unexpected stage ids: %v", ids)
	}

	w = testutil.DoRequest(router, "GET", "/items/item_process/9999", nil, "")
	if w.Code != http.StatusNotFound {
		t.Errorf("Expected 404 for unknown item, got %d", w.Code)
	}
}

func TestItemDeleteCascades(t *testing.T) {
	db, router := setupJobHandlerTest(t)
	token := testutil.DefaultTestToken()

	cutting := testutil.SeedStage(t, db, "Cutting")
	process := testutil.SeedProcess(t, db, "Laser", cutting)
	job := testutil.SeedJob(t, db, "JOB-305")
	item := testutil.SeedItem(t, db, job, process, "Bracket", "BRK-01", 3, cutting.StageID)

	operator := testutil.GenerateTestToken("op-002", "Operator", []string{"cis_operator"})
	w := testutil.DoRequest(router, "DELETE", "/items/item/"+itoa(item.ItemID), nil, operator)
	if w.Code != http.StatusForbidden {
		t.Fatalf("Expected 403 for non-admin, got %d: %s", w.Code, w.Body.String())
	}

	w = testutil.DoRequest(router, "DELETE", "/items/item/"+itoa(item.ItemID), nil, token)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
	}

	repos := repository.NewRepositories(db)
	objects, _ := repos.Object.ListByItem(context.Background(), item.ItemID)
	if len(objects) != 0 {
		t.Errorf("Expected no units after cascade delete, got %d", len(objects))
	}

	w = testutil.DoRequest(router, "DELETE", "/items/item/"+itoa(item.ItemID), nil, token)
	if w.Code != http.StatusNotFound {
		t.Errorf("Expected 404 for already-deleted item, got %d", w.Code)
	}
}
