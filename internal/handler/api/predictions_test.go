package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	svccache "StockCast/internal/service/cache"
	"StockCast/internal/services/features"
	"StockCast/internal/services/forest"
	"StockCast/internal/services/modelstore"
	"StockCast/internal/usecase"
	pkgcache "StockCast/pkg/cache"
	xhttp "StockCast/pkg/http"
	xlogger "StockCast/pkg/logger"
)

type memBlobs struct{ data map[string][]byte }

func (m *memBlobs) Put(name string, data []byte) error {
	m.data[name] = append([]byte(nil), data...)
	return nil
}
func (m *memBlobs) Get(name string) ([]byte, error) { return m.data[name], nil }
func (m *memBlobs) Exists(name string) bool         { _, ok := m.data[name]; return ok }

func testHandler(t *testing.T) *PredictionsHandler {
	t.Helper()
	log, err := xlogger.New(&xlogger.Config{Level: "error", Format: "json", Output: "stderr"})
	require.NoError(t, err)

	cfg := forest.Config{Trees: 10, MaxDepth: 5, MinLeaf: 1, Seed: 42}
	store := modelstore.NewStore(features.NewEngineer(), &memBlobs{data: map[string][]byte{}}, nil, cfg, log)
	cache := svccache.NewPredictionCache(pkgcache.NewMemoryCache(), time.Hour, log)
	series := usecase.NewSeriesProvider(nil, 366, log)

	predictor := usecase.NewPredictUseCase(series, store, features.NewEngineer(), cache, nil, nil, nil, 42, log)
	batch := usecase.NewBatchUseCase(predictor, 4, 30*time.Second, log)
	market := usecase.NewMarketUseCase(batch, nil, nil, nil, log)
	importance := usecase.NewImportanceUseCase(store)
	train := usecase.NewTrainUseCase(series, store)

	return NewPredictionsHandler(log, predictor, batch, market, importance, train)
}

func do(t *testing.T, h *PredictionsHandler, method, target string) *httptest.ResponseRecorder {
	t.Helper()
	e := echo.New()
	h.RegisterRoutes(e)
	req := httptest.NewRequest(method, target, nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestPredictEndpoint(t *testing.T) {
	rec := do(t, testHandler(t), http.MethodGet, "/api/predict?ticker=aapl&horizon=3")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp xhttp.APIResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, http.StatusOK, resp.Status)

	data, ok := resp.Data.(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "AAPL", data["ticker"], "ticker must be upper-cased")
	preds, ok := data["predictions"].([]interface{})
	require.True(t, ok)
	assert.Len(t, preds, 3)
}

func TestPredictDefaultsHorizon(t *testing.T) {
	rec := do(t, testHandler(t), http.MethodGet, "/api/predict?ticker=AAPL")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp xhttp.APIResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	data := resp.Data.(map[string]interface{})
	assert.Len(t, data["predictions"], 5)
}

func TestPredictValidation(t *testing.T) {
	h := testHandler(t)

	rec := do(t, h, http.MethodGet, "/api/predict")
	var resp xhttp.APIResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, http.StatusBadRequest, resp.Status, "missing ticker is rejected")

	rec = do(t, h, http.MethodGet, "/api/predict?ticker=AAPL&horizon=0")
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, http.StatusBadRequest, resp.Status, "horizon below 1 is rejected")

	rec = do(t, h, http.MethodGet, "/api/predict?ticker=AAPL&horizon=31")
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, http.StatusBadRequest, resp.Status, "horizon above 30 is rejected")
}

func TestImportanceUntrainedIsNotFound(t *testing.T) {
	rec := do(t, testHandler(t), http.MethodGet, "/api/importance?ticker=UNTRAINED")
	var resp xhttp.APIResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, http.StatusNotFound, resp.Status)
}

func TestPerformanceAfterTrain(t *testing.T) {
	h := testHandler(t)

	rec := do(t, h, http.MethodGet, "/api/performance?ticker=AAPL")
	var resp xhttp.APIResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, http.StatusNotFound, resp.Status, "no report before training")

	e := echo.New()
	h.RegisterRoutes(e)
	req := httptest.NewRequest(http.MethodPost, "/api/train", strings.NewReader(`{"ticker":"AAPL"}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	trainRec := httptest.NewRecorder()
	e.ServeHTTP(trainRec, req)
	require.NoError(t, json.Unmarshal(trainRec.Body.Bytes(), &resp))
	require.Equal(t, http.StatusOK, resp.Status)

	rec = do(t, h, http.MethodGet, "/api/performance?ticker=AAPL")
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, http.StatusOK, resp.Status)
	data := resp.Data.(map[string]interface{})
	assert.Equal(t, "AAPL", data["ticker"])
	assert.NotZero(t, data["rows"])
}

func TestHistoryWithoutPriceStore(t *testing.T) {
	rec := do(t, testHandler(t), http.MethodGet, "/api/history?ticker=AAPL")
	var resp xhttp.APIResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, http.StatusNotFound, resp.Status)
}

func TestHealthz(t *testing.T) {
	rec := do(t, testHandler(t), http.MethodGet, "/healthz")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"ok"`)
}
