package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"recommendation-dashboard/internal/loader"
	"recommendation-dashboard/internal/models"
	"recommendation-dashboard/internal/service"
	"recommendation-dashboard/internal/store"
	"recommendation-dashboard/internal/util"

	"github.com/PuerkitoBio/goquery"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const ordersCSV = "ID_PEDIDO,DATA_LOG,ULTIMA_COMPRA,VENDEDOR,PRODUTO,CLIENTE\n" +
	"A,2024-03-10,2024-01-01,ana,p1,c1\n" +
	"B,2024-03-10,,ana,p2,c2\n" +
	"C,2024-03-10,2024-03-01,bia,p1,c1\n"

func init() {
	gin.SetMode(gin.TestMode)
	util.SetLogger(zap.NewNop())
}

type fakeRuns struct {
	filter store.RunFilter
	runs   []models.AnalysisRun
}

func (f *fakeRuns) ListRuns(_ context.Context, filter store.RunFilter) ([]models.AnalysisRun, error) {
	f.filter = filter
	return f.runs, nil
}

// recordingPublisher keeps every published event
type recordingPublisher struct {
	mu     sync.Mutex
	events []*models.AnalysisCompletedEvent
}

func (p *recordingPublisher) PublishAnalysisCompleted(_ context.Context, event *models.AnalysisCompletedEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return nil
}

func (p *recordingPublisher) published() []*models.AnalysisCompletedEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]*models.AnalysisCompletedEvent(nil), p.events...)
}

func newTestRouter(opts Options) *gin.Engine {
	return newPublishingRouter(opts, nil)
}

func newPublishingRouter(opts Options, publisher service.AnalysisPublisher) *gin.Engine {
	if opts.UploadRatePerSec == 0 {
		opts.UploadRatePerSec = 1000
		opts.UploadRateBurst = 1000
	}
	svc := service.NewDashboardService(service.NewMemoryDatasetStore(time.Hour), publisher, loader.Options{}, 60)

	router := gin.New()
	NewHandler(svc, opts).SetupRoutes(router)
	return router
}

func uploadRequest(t *testing.T, path, filename, content, threshold string) *http.Request {
	t.Helper()

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	if threshold != "" {
		require.NoError(t, writer.WriteField("threshold", threshold))
	}
	if filename != "" {
		part, err := writer.CreateFormFile("file", filename)
		require.NoError(t, err)
		_, err = part.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, writer.Close())

	req := httptest.NewRequest(http.MethodPost, path, body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	return req
}

// browser replays the session cookie like a real client
type browser struct {
	router  *gin.Engine
	cookies []*http.Cookie
}

func (b *browser) do(req *http.Request) *httptest.ResponseRecorder {
	for _, c := range b.cookies {
		req.AddCookie(c)
	}
	rec := httptest.NewRecorder()
	b.router.ServeHTTP(rec, req)
	if cookies := rec.Result().Cookies(); len(cookies) > 0 {
		b.cookies = cookies
	}
	return rec
}

func (b *browser) get(path string) *httptest.ResponseRecorder {
	return b.do(httptest.NewRequest(http.MethodGet, path, nil))
}

func parseHTML(t *testing.T, rec *httptest.ResponseRecorder) *goquery.Document {
	t.Helper()
	doc, err := goquery.NewDocumentFromReader(rec.Body)
	require.NoError(t, err)
	return doc
}

func kpiValue(doc *goquery.Document, key string) string {
	return strings.TrimSpace(doc.Find(`.kpi[data-key="` + key + `"] .kpi-value`).Text())
}

func TestHealthCheck(t *testing.T) {
	router := newTestRouter(Options{})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "healthy")
}

func TestReadinessCheck(t *testing.T) {
	router := newTestRouter(Options{Checks: map[string]ReadinessCheck{
		"redis": func(context.Context) error { return errors.New("connection refused") },
	}})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "connection refused")
}

func TestIndexShowsEmptyState(t *testing.T) {
	b := &browser{router: newTestRouter(Options{})}

	rec := b.get("/")

	require.Equal(t, http.StatusOK, rec.Code)
	doc := parseHTML(t, rec)
	assert.Contains(t, doc.Find("#empty-state").Text(), "Faça upload do arquivo CSV para começar")
	assert.Equal(t, 1, doc.Find(`#upload-form input[type="file"][name="file"]`).Length())
	assert.Equal(t, "60", doc.Find(`#upload-form input[name="threshold"]`).AttrOr("value", ""))

	require.Len(t, b.cookies, 1)
	assert.Equal(t, sessionCookie, b.cookies[0].Name)
	assert.True(t, b.cookies[0].HttpOnly)
}

func TestUploadAndDashboard(t *testing.T) {
	b := &browser{router: newTestRouter(Options{})}

	rec := b.do(uploadRequest(t, "/upload", "orders.csv", ordersCSV, ""))
	require.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/dashboard?threshold=60", rec.Header().Get("Location"))

	rec = b.get("/dashboard?threshold=60")
	require.Equal(t, http.StatusOK, rec.Code)

	doc := parseHTML(t, rec)
	assert.Equal(t, "3", kpiValue(doc, "total"))
	assert.Equal(t, "1", kpiValue(doc, "new"))
	assert.Equal(t, "1", kpiValue(doc, "stale"))
	assert.Equal(t, "1", kpiValue(doc, "recurring"))
	assert.Equal(t, "3", kpiValue(doc, "orders"))
	assert.Contains(t, doc.Find(`.kpi[data-key="total"] .kpi-label`).Text(), "Recomendações Aceitas")
	assert.Equal(t, "/dashboard/charts?threshold=60", doc.Find("iframe#charts").AttrOr("src", ""))
	assert.Contains(t, doc.Find("#source").Text(), "orders.csv")
	assert.Zero(t, doc.Find("#skipped").Length())

	rec = b.get("/")
	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/dashboard", rec.Header().Get("Location"))
}

func TestThresholdChangeRecomputes(t *testing.T) {
	b := &browser{router: newTestRouter(Options{})}
	b.do(uploadRequest(t, "/upload", "orders.csv", ordersCSV, "60"))

	doc := parseHTML(t, b.get("/dashboard?threshold=90"))
	assert.Equal(t, "0", kpiValue(doc, "stale"))
	assert.Equal(t, "2", kpiValue(doc, "recurring"))
	assert.Equal(t, "90", doc.Find(`#threshold-form input[name="threshold"]`).AttrOr("value", ""))

	doc = parseHTML(t, b.get("/dashboard"))
	assert.Equal(t, "1", kpiValue(doc, "stale"), "missing threshold falls back to the default")
}

func TestDashboardRejectsThresholdOutOfRange(t *testing.T) {
	b := &browser{router: newTestRouter(Options{})}
	b.do(uploadRequest(t, "/upload", "orders.csv", ordersCSV, ""))

	for _, threshold := range []string{"0", "10", "721", "abc"} {
		rec := b.get("/dashboard?threshold=" + threshold)
		assert.Equal(t, http.StatusBadRequest, rec.Code, threshold)
		assert.Contains(t, parseHTML(t, rec).Find("#upload-error").Text(), "entre 30 e 720")
	}
}

func TestDashboardWithoutUploadRedirects(t *testing.T) {
	b := &browser{router: newTestRouter(Options{})}

	rec := b.get("/dashboard")

	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/", rec.Header().Get("Location"))
}

func TestUploadMissingColumn(t *testing.T) {
	b := &browser{router: newTestRouter(Options{})}

	input := "ID_PEDIDO,DATA_LOG,ULTIMA_COMPRA,PRODUTO,CLIENTE\n1,2024-03-10,,p,c\n"
	rec := b.do(uploadRequest(t, "/upload", "orders.csv", input, ""))

	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Contains(t, parseHTML(t, rec).Find("#upload-error").Text(), "VENDEDOR")
}

func TestUploadInvalidLogDate(t *testing.T) {
	b := &browser{router: newTestRouter(Options{})}

	input := "ID_PEDIDO,DATA_LOG,ULTIMA_COMPRA,VENDEDOR,PRODUTO,CLIENTE\n1,someday,,s,p,c\n"
	rec := b.do(uploadRequest(t, "/upload", "orders.csv", input, ""))

	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	msg := parseHTML(t, rec).Find("#upload-error").Text()
	assert.Contains(t, msg, "Linha 1")
	assert.Contains(t, msg, "DATA_LOG")
}

func TestUploadWithoutFile(t *testing.T) {
	b := &browser{router: newTestRouter(Options{})}

	rec := b.do(uploadRequest(t, "/upload", "", "", "60"))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUploadTooLarge(t *testing.T) {
	b := &browser{router: newTestRouter(Options{MaxUploadBytes: 64})}

	rec := b.do(uploadRequest(t, "/upload", "orders.csv", ordersCSV+strings.Repeat("X,2024-03-10,,s,p,c\n", 20), ""))

	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}

func TestChartsPage(t *testing.T) {
	b := &browser{router: newTestRouter(Options{})}
	b.do(uploadRequest(t, "/upload", "orders.csv", ordersCSV, ""))

	rec := b.get("/dashboard/charts?threshold=60")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/html")
	body := rec.Body.String()
	assert.Contains(t, body, "Top Vendedores")
	assert.Contains(t, body, "Top Produtos Recomendados")
}

func TestChartsPageWithoutUpload(t *testing.T) {
	b := &browser{router: newTestRouter(Options{})}

	rec := b.get("/dashboard/charts")

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestReset(t *testing.T) {
	b := &browser{router: newTestRouter(Options{})}
	b.do(uploadRequest(t, "/upload", "orders.csv", ordersCSV, ""))

	rec := b.do(httptest.NewRequest(http.MethodPost, "/reset", nil))
	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/", rec.Header().Get("Location"))

	rec = b.get("/")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestSessionsDoNotShareData(t *testing.T) {
	router := newTestRouter(Options{})
	alice := &browser{router: router}
	bob := &browser{router: router}

	alice.do(uploadRequest(t, "/upload", "orders.csv", ordersCSV, ""))

	assert.Equal(t, http.StatusOK, alice.get("/dashboard").Code)
	assert.Equal(t, http.StatusFound, bob.get("/dashboard").Code)
}

func TestSummaryAPI(t *testing.T) {
	b := &browser{router: newTestRouter(Options{})}

	rec := b.get("/api/v1/summary")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	b.do(uploadRequest(t, "/upload", "orders.csv", ordersCSV, ""))

	rec = b.get("/api/v1/summary?threshold=30")
	require.Equal(t, http.StatusOK, rec.Code)

	var result service.AnalysisResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.Equal(t, "orders.csv", result.SourceName)
	assert.Equal(t, 30, result.Summary.ThresholdDays)
	assert.Equal(t, 3, result.Summary.TotalRecords)
	assert.Equal(t, []models.GroupCount{{Key: "ana", Count: 2}, {Key: "bia", Count: 1}}, result.Summary.SellerCounts)

	rec = b.get("/api/v1/summary?threshold=1000")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), `"error"`)

	rec = b.get("/api/v1/summary?threshold=0")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = b.get("/api/v1/summary")
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.Equal(t, 60, result.Summary.ThresholdDays)
}

func TestUploadRejectsZeroThreshold(t *testing.T) {
	b := &browser{router: newTestRouter(Options{})}

	rec := b.do(uploadRequest(t, "/upload", "orders.csv", ordersCSV, "0"))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, parseHTML(t, rec).Find("#upload-error").Text(), "entre 30 e 720")
	assert.Equal(t, http.StatusFound, b.get("/dashboard").Code, "rejected upload stores nothing")
}

func TestAnalysisEventsFollowUserActions(t *testing.T) {
	publisher := &recordingPublisher{}
	b := &browser{router: newPublishingRouter(Options{}, publisher)}

	rec := b.do(uploadRequest(t, "/upload", "orders.csv", ordersCSV, ""))
	require.Equal(t, http.StatusFound, rec.Code)
	require.Len(t, publisher.published(), 1)

	// the redirect target, its charts frame and the JSON summary show the same analysis
	require.Equal(t, http.StatusOK, b.get("/dashboard?threshold=60").Code)
	require.Equal(t, http.StatusOK, b.get("/dashboard/charts?threshold=60").Code)
	require.Equal(t, http.StatusOK, b.get("/api/v1/summary").Code)
	require.Equal(t, http.StatusOK, b.get("/dashboard").Code)
	assert.Len(t, publisher.published(), 1)

	require.Equal(t, http.StatusOK, b.get("/dashboard?threshold=90").Code)
	require.Equal(t, http.StatusOK, b.get("/dashboard/charts?threshold=90").Code)
	require.Equal(t, http.StatusOK, b.get("/dashboard?threshold=90").Code)
	events := publisher.published()
	require.Len(t, events, 2)
	assert.Equal(t, 90, events[1].ThresholdDays)
	assert.NotEqual(t, events[0].EventID, events[1].EventID)

	// returning to a threshold already analyzed repeats its event id
	require.Equal(t, http.StatusOK, b.get("/dashboard?threshold=60").Code)
	events = publisher.published()
	require.Len(t, events, 3)
	assert.Equal(t, events[0].EventID, events[2].EventID)

	rec = b.do(uploadRequest(t, "/upload", "orders.csv", ordersCSV, "60"))
	require.Equal(t, http.StatusFound, rec.Code)
	events = publisher.published()
	require.Len(t, events, 4)
	assert.NotEqual(t, events[0].EventID, events[3].EventID, "a new upload is a new run")
}

func TestAnalyzeAPI(t *testing.T) {
	b := &browser{router: newTestRouter(Options{})}

	rec := b.do(uploadRequest(t, "/api/v1/analyze", "orders.csv", ordersCSV, "90"))
	require.Equal(t, http.StatusOK, rec.Code)

	var result service.AnalysisResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.Equal(t, 90, result.Summary.ThresholdDays)
	assert.Equal(t, 0, result.Summary.StaleRepurchases)

	input := "ID_PEDIDO,DATA_LOG\n1,2024-03-10\n"
	rec = b.do(uploadRequest(t, "/api/v1/analyze", "orders.csv", input, ""))
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Contains(t, rec.Body.String(), "ULTIMA_COMPRA")
}

func TestRunsDisabled(t *testing.T) {
	b := &browser{router: newTestRouter(Options{})}

	rec := b.get("/api/v1/runs")

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRunsListing(t *testing.T) {
	runs := &fakeRuns{runs: []models.AnalysisRun{{EventID: "evt-1", SessionID: "s-1", ThresholdDays: 60}}}
	b := &browser{router: newTestRouter(Options{Runs: runs})}

	rec := b.get("/api/v1/runs?session_id=s-1&limit=5")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "s-1", runs.filter.SessionID)
	assert.Equal(t, 5, runs.filter.Limit)

	var body struct {
		Runs []models.AnalysisRun `json:"runs"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Runs, 1)
	assert.Equal(t, "evt-1", body.Runs[0].EventID)

	rec = b.get("/api/v1/runs?limit=100000")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUploadRateLimited(t *testing.T) {
	b := &browser{router: newTestRouter(Options{UploadRatePerSec: 0.001, UploadRateBurst: 1})}

	rec := b.do(uploadRequest(t, "/upload", "orders.csv", ordersCSV, ""))
	assert.Equal(t, http.StatusFound, rec.Code)

	rec = b.do(uploadRequest(t, "/upload", "orders.csv", ordersCSV, ""))
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))
}
