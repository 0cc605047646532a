package testutil

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/luis314159/cis-demo/internal/cis/entity"
	"github.com/luis314159/cis-demo/internal/middleware"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const JWTSecret = "cis-test-jwt-secret"

// SetupTestDB opens an isolated in-memory database and migrates the full
// schema. Each test gets its own database; nothing leaks between tests.
func SetupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}

	err = db.AutoMigrate(
		&entity.Stage{},
		&entity.Process{},
		&entity.ProcessStage{},
		&entity.Job{},
		&entity.Item{},
		&entity.Object{},
	)
	if err != nil {
		t.Fatalf("Failed to migrate test tables: %v", err)
	}

	t.Cleanup(func() {
		sqlDB, _ := db.DB()
		if sqlDB != nil {
			sqlDB.Close()
		}
	})

	return db
}

// SetupRouter creates a gin test router.
func SetupRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(gin.Recovery())
	return r
}

// AuthGroup creates a route group guarded by the JWT middleware.
func AuthGroup(r *gin.Engine, path string) *gin.RouterGroup {
	return r.Group(path, middleware.JWTAuth(JWTSecret))
}

// GenerateTestToken creates a valid JWT token for testing.
func GenerateTestToken(userID, name string, roles []string) string {
	if roles == nil {
		roles = []string{}
	}

	now := time.Now()
	claims := jwt.MapClaims{
		"sub":   userID,
		"uid":   userID,
		"name":  name,
		"email": name + "@test.com",
		"roles": roles,
		"iss":   "cis",
		"iat":   now.Unix(),
		"exp":   now.Add(24 * time.Hour).Unix(),
		"jti":   fmt.Sprintf("test-jti-%d", now.UnixNano()),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, _ := token.SignedString([]byte(JWTSecret))
	return tokenString
}

// DefaultTestToken returns a token for a default admin test user.
func DefaultTestToken() string {
	return GenerateTestToken("test-user-001", "Test Admin", []string{"cis_admin"})
}

// DoRequest executes an HTTP request against the test router.
func DoRequest(r *gin.Engine, method, path string, body interface{}, token string) *httptest.ResponseRecorder {
	var reqBody *bytes.Buffer
	if body != nil {
		jsonBytes, _ := json.Marshal(body)
		reqBody = bytes.NewBuffer(jsonBytes)
	} else {
		reqBody = bytes.NewBuffer(nil)
	}

	req, _ := http.NewRequest(method, path, reqBody)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

// DoMultipartRequest uploads a single file field named "file".
func DoMultipartRequest(r *gin.Engine, method, path, filename string, content []byte, token string) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, _ := mw.CreateFormFile("file", filename)
	io.Copy(part, bytes.NewReader(content))
	mw.Close()

	req, _ := http.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

// ParseResponse parses the JSON response body into a map.
func ParseResponse(w *httptest.ResponseRecorder) map[string]interface{} {
	var result map[string]interface{}
	json.Unmarshal(w.Body.Bytes(), &result)
	return result
}

// SeedStage creates a stage.
func SeedStage(t *testing.T, db *gorm.DB, name string) *entity.Stage {
	t.Helper()
	stage := &entity.Stage{StageName: name}
	if err := db.Create(stage).Error; err != nil {
		t.Fatalf("Failed to seed stage %q: %v", name, err)
	}
	return stage
}

// SeedProcess creates a process and its ordered pipeline over the given stages.
func SeedProcess(t *testing.T, db *gorm.DB, name string, stages ...*entity.Stage) *entity.Process {
	t.Helper()
	process := &entity.Process{ProcessName: name}
	if err := db.Create(process).Error; err != nil {
		t.Fatalf("Failed to seed process %q: %v", name, err)
	}
	for i, stage := range stages {
		edge := &entity.ProcessStage{
			ProcessID:  process.ProcessID,
			StageID:    stage.StageID,
			StageOrder: i + 1,
		}
		if err := db.Create(edge).Error; err != nil {
			t.Fatalf("Failed to seed pipeline edge for %q: %v", name, err)
		}
	}
	return process
}

// SeedJob creates a job.
func SeedJob(t *testing.T, db *gorm.DB, code string) *entity.Job {
	t.Helper()
	job := &entity.Job{JobCode: code}
	if err := db.Create(job).Error; err != nil {
		t.Fatalf("Failed to seed job %q: %v", code, err)
	}
	return job
}

// SeedItem creates an item and cantidad units, all sitting at stageID.
func SeedItem(t *testing.T, db *gorm.DB, job *entity.Job, process *entity.Process, name, ocr string, cantidad int, stageID uint) *entity.Item {
	t.Helper()
	item := &entity.Item{
		JobID:     job.JobID,
		ProcessID: process.ProcessID,
		ItemName:  name,
		OCR:       ocr,
		Material:  "Steel",
		Cantidad:  cantidad,
	}
	if err := db.Create(item).Error; err != nil {
		t.Fatalf("Failed to seed item %q: %v", name, err)
	}
	for i := 0; i < cantidad; i++ {
		obj := &entity.Object{ItemID: item.ItemID, CurrentStage: stageID}
		if err := db.Create(obj).Error; err != nil {
			t.Fatalf("Failed to seed object for %q: %v", name, err)
		}
	}
	return item
}
