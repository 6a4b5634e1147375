// Integration tests for the dataset API endpoints against a real database.
package integration

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/loansurv/backend/internal/application/dataset"
	"github.com/loansurv/backend/internal/interfaces/http/handler"
	"github.com/loansurv/backend/internal/interfaces/http/middleware"
	"github.com/loansurv/backend/internal/interfaces/http/router"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// DatasetTestServer wraps the test database and HTTP server for dataset API testing
type DatasetTestServer struct {
	DB     *TestDB
	Engine *gin.Engine
}

// NewDatasetTestServer creates a new test server with the dataset API registered
func NewDatasetTestServer(t *testing.T) *DatasetTestServer {
	t.Helper()

	gin.SetMode(gin.TestMode)
	testDB := NewTestDB(t)

	rebuildService, datasetRepo, _ := newRebuildService(testDB.DB)
	queryService := dataset.NewQueryService(datasetRepo)

	datasetHandler := handler.NewDatasetHandler(rebuildService, queryService, zap.NewNop())

	engine := gin.New()
	engine.Use(middleware.RequestID())

	r := router.NewRouter(engine, router.WithAPIVersion("v1"))

	datasetRoutes := router.NewDomainGroup("dataset", "/dataset")
	datasetRoutes.POST("/rebuild", datasetHandler.TriggerRebuild)
	datasetRoutes.GET("/records", datasetHandler.ListRecords)
	datasetRoutes.GET("/stats", datasetHandler.GetStats)
	r.Register(datasetRoutes)
	r.Setup()

	return &DatasetTestServer{DB: testDB, Engine: engine}
}

func (s *DatasetTestServer) request(t *testing.T, method, path string) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(method, path, nil)
	w := httptest.NewRecorder()
	s.Engine.ServeHTTP(w, req)
	return w
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
	Meta *struct {
		Total    int64 `json:"total"`
		Page     int   `json:"page"`
		PageSize int   `json:"page_size"`
	} `json:"meta"`
}

func decodeEnvelope(t *testing.T, w *httptest.ResponseRecorder) envelope {
	t.Helper()

	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	return env
}

func TestDatasetAPI_RebuildThenQuery(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	server := NewDatasetTestServer(t)
	seedSourceTables(t, server.DB.DB)

	w := server.request(t, http.MethodPost, "/api/v1/dataset/rebuild")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	env := decodeEnvelope(t, w)
	assert.True(t, env.Success)

	var rebuild struct {
		RunID string `json:"run_id"`
		Rows  int    `json:"rows"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &rebuild))
	assert.Equal(t, 2, rebuild.Rows)
	assert.NotEmpty(t, rebuild.RunID)

	w = server.request(t, http.MethodGet, "/api/v1/dataset/records?event=true")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	env = decodeEnvelope(t, w)
	assert.True(t, env.Success)
	require.NotNil(t, env.Meta)
	assert.EqualValues(t, 1, env.Meta.Total)

	var records []struct {
		AppID  int64 `json:"app_id"`
		Tenure int   `json:"tenure"`
		Event  bool  `json:"event"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &records))
	require.Len(t, records, 1)
	assert.EqualValues(t, 1001, records[0].AppID)
	assert.Equal(t, 214, records[0].Tenure)
	assert.True(t, records[0].Event)
}

func TestDatasetAPI_StatsBeforeAndAfterRebuild(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	server := NewDatasetTestServer(t)
	seedSourceTables(t, server.DB.DB)

	w := server.request(t, http.MethodGet, "/api/v1/dataset/stats")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	env := decodeEnvelope(t, w)
	var stats struct {
		Total    int64 `json:"total"`
		Observed int64 `json:"observed"`
		Censored int64 `json:"censored"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &stats))
	assert.EqualValues(t, 0, stats.Total)

	w = server.request(t, http.MethodPost, "/api/v1/dataset/rebuild")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = server.request(t, http.MethodGet, "/api/v1/dataset/stats")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	env = decodeEnvelope(t, w)
	require.NoError(t, json.Unmarshal(env.Data, &stats))
	assert.EqualValues(t, 2, stats.Total)
	assert.EqualValues(t, 1, stats.Observed)
	assert.EqualValues(t, 1, stats.Censored)
}

func TestDatasetAPI_InvalidPageSizeRejected(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	server := NewDatasetTestServer(t)

	w := server.request(t, http.MethodGet, "/api/v1/dataset/records?page_size=5000")
	assert.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())

	env := decodeEnvelope(t, w)
	assert.False(t, env.Success)
	require.NotNil(t, env.Error)
}
