package handler

import (
	"net/http"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/luis314159/cis-demo/internal/cis/entity"
	"github.com/luis314159/cis-demo/internal/cis/repository"
	"github.com/luis314159/cis-demo/internal/cis/service"
	"github.com/luis314159/cis-demo/internal/cis/testutil"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func setupObjectHandlerTest(t *testing.T) (*gorm.DB, *gin.Engine) {
	t.Helper()
	db := testutil.SetupTestDB(t)
	router := testutil.SetupRouter()

	repos := repository.NewRepositories(db)
	services := service.NewServices(repos, nil, 0, nil, "", zap.NewNop())
	h := NewHandlers(services, repos)

	router.PUT("/object/update_stage", h.Object.UpdateStage)

	authed := testutil.AuthGroup(router, "")
	authed.POST("/object/validate-and-insert", h.Object.ValidateAndInsert)
	authed.POST("/object/scan-photo", h.Object.ScanPhoto)

	return db, router
}

func seedScannableItem(t *testing.T, db *gorm.DB) (*entity.Stage, *entity.Stage) {
	t.Helper()
	cutting := testutil.SeedStage(t, db, "Cutting")
	bending := testutil.SeedStage(t, db, "Bending")
	process := testutil.SeedProcess(t, db, "Laser", cutting, bending)
	job := testutil.SeedJob(t, db, "JOB-200")
	testutil.SeedItem(t, db, job, process, "Bracket", "BRK-01", 3, cutting.StageID)
	return cutting, bending
}

func TestUpdateStage(t *testing.T) {
	db, router := setupObjectHandlerTest(t)
	_, bending := seedScannableItem(t, db)

	w := testutil.DoRequest(router, "PUT",
		"/object/update_stage?ocr=BRK-01_2&new_stage_name=Bending", nil, "")
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
	}
	resp := testutil.ParseResponse(w)
	data := resp["data"].(map[string]interface{})
	if data["new_stage"] != "Bending" {
		t.Errorf("Expected new_stage Bending, got %v", data["new_stage"])
	}

	var moved entity.Object
	objectID := uint(data["object_id"].(float64))
	if err := db.First(&moved, "object_id = ?", objectID).Error; err != nil {
		t.Fatalf("Moved object not found: %v", err)
	}
	if moved.CurrentStage != bending.StageID {
		t.Errorf("Expected stage %d, got %d", bending.StageID, moved.CurrentStage)
	}
}

func TestUpdateStageErrors(t *testing.T) {
	db, router := setupObjectHandlerTest(t)
	seedScannableItem(t, db)

	cases := []struct {
		name string
		path string
		want int
	}{
		{"missing params", "/object/update_stage", http.StatusBadRequest},
		{"malformed scan code", "/object/update_stage?ocr=garbage&new_stage_name=Bending", http.StatusBadRequest},
		{"unknown item", "/object/update_stage?ocr=NOPE_1&new_stage_name=Bending", http.StatusNotFound},
		{"unknown stage", "/object/update_stage?ocr=BRK-01_1&new_stage_name=Ghost", http.StatusNotFound},
		{"ordinal out of range", "/object/update_stage?ocr=BRK-01_9&new_stage_name=Bending", http.StatusNotFound},
	}
	for _, tc := range cases {
		w := testutil.DoRequest(router, "PUT", tc.path, nil, "")
		if w.Code != tc.want {
			t.Errorf("%s: expected %d, got %d: %s", tc.name, tc.want, w.Code, w.Body.String())
		}
	}
}

func TestValidateAndInsert(t *testing.T) {
	db, router := setupObjectHandlerTest(t)
	seedScannableItem(t, db)
	token := testutil.DefaultTestToken()

	csvData := "Job,Item,Material,Espesor,Cantidad,OCR,Clase,Longitud,Ancho,Alto,Volumen,Área Superficial\n" +
		"J-600,Plate,Steel,2,4,PLT-01,Laser,10,10,1,100,200\n"

	w := testutil.DoMultipartRequest(router, "POST", "/object/validate-and-insert",
		"nesting.csv", []byte(csvData), token)
	if w.Code != http.StatusCreated {
		t.Fatalf("Expected 201, got %d: %s", w.Code, w.Body.String())
	}
	resp := testutil.ParseResponse(w)
	data := resp["data"].(map[string]interface{})
	if data["job_code"] != "J-600" || data["objects_created"] != float64(4) {
		t.Errorf("Unexpected import summary: %v", data)
	}

	// Validation failures surface as 400 with the reason.
	bad := strings.Replace(csvData, "J-600", "J-601", 1) +
		"J-602,Other,Steel,2,1,OTH-01,Laser,1,1,1,1,1\n"
	w = testutil.DoMultipartRequest(router, "POST", "/object/validate-and-insert",
		"nesting.csv", []byte(bad), token)
	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for mixed jobs, got %d: %s", w.Code, w.Body.String())
	}

	// Uploads are operator-only.
	w = testutil.DoMultipartRequest(router, "POST", "/object/validate-and-insert",
		"nesting.csv", []byte(csvData), "")
	if w.Code != http.StatusUnauthorized {
		t.Errorf("Expected 401 without token, got %d", w.Code)
	}
}

func TestScanPhotoWithoutArchive(t *testing.T) {
	_, router := setupObjectHandlerTest(t)
	token := testutil.DefaultTestToken()

	// No object store configured in tests: the endpoint degrades to 503.
	w := testutil.DoMultipartRequest(router, "POST", "/object/scan-photo",
		"scan.jpg", []byte{0xFF, 0xD8, 0xFF}, token)
	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("Expected 503, got %d: %s", w.Code, w.Body.String())
	}
}
