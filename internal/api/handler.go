package api

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"net/http"
	"time"

	"recommendation-dashboard/internal/analysis"
	"recommendation-dashboard/internal/models"
	"recommendation-dashboard/internal/presenter"
	"recommendation-dashboard/internal/service"
	"recommendation-dashboard/internal/store"
	"recommendation-dashboard/internal/util"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

//go:embed templates/*.html
var templatesFS embed.FS

// RunLister lists recorded analysis runs
type RunLister interface {
	ListRuns(ctx context.Context, filter store.RunFilter) ([]models.AnalysisRun, error)
}

// ReadinessCheck reports whether a dependency is usable
type ReadinessCheck func(ctx context.Context) error

// Options configures the HTTP surface
type Options struct {
	MaxUploadBytes   int64
	SessionTTL       time.Duration
	SecureCookies    bool
	UploadRatePerSec float64
	UploadRateBurst  int
	// Runs is nil when the audit store is disabled
	Runs   RunLister
	Checks map[string]ReadinessCheck
}

// Handler contains HTTP handlers
type Handler struct {
	dashboard *service.DashboardService
	opts      Options
	limiter   *rateLimiter
	logger    *zap.Logger
}

// NewHandler creates a new HTTP handler
func NewHandler(dashboard *service.DashboardService, opts Options) *Handler {
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = 20 << 20
	}
	if opts.SessionTTL <= 0 {
		opts.SessionTTL = time.Hour
	}
	if opts.UploadRatePerSec <= 0 {
		opts.UploadRatePerSec = 2
	}
	if opts.UploadRateBurst <= 0 {
		opts.UploadRateBurst = 5
	}

	return &Handler{
		dashboard: dashboard,
		opts:      opts,
		limiter:   newRateLimiter(opts.UploadRatePerSec, opts.UploadRateBurst),
		logger:    util.GetLogger(),
	}
}

// thresholdQuery binds the optional threshold parameter. An absent value
// stays nil and means the default; any present value must be in range.
type thresholdQuery struct {
	Threshold *int `form:"threshold" binding:"omitempty,min=30,max=720"`
}

func bindThreshold(c *gin.Context) (int, error) {
	var q thresholdQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		return 0, fmt.Errorf("%w: %v", analysis.ErrThresholdOutOfRange, err)
	}
	return thresholdOrDefault(q.Threshold), nil
}

// thresholdOrDefault maps an absent threshold to 0, which the service
// resolves to the configured default
func thresholdOrDefault(threshold *int) int {
	if threshold == nil {
		return 0
	}
	return *threshold
}

// SetupRoutes sets up HTTP routes
func (h *Handler) SetupRoutes(router *gin.Engine) {
	router.SetHTMLTemplate(template.Must(template.ParseFS(templatesFS, "templates/*.html")))
	router.MaxMultipartMemory = h.opts.MaxUploadBytes

	router.Use(gin.Recovery())
	router.Use(prometheusMiddleware())
	router.Use(util.RequestLogger())

	router.GET("/health", h.healthCheck)
	router.GET("/ready", h.readinessCheck)

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	web := router.Group("/", sessionMiddleware(h.opts.SessionTTL, h.opts.SecureCookies))
	{
		web.GET("/", h.index)
		web.POST("/upload", h.limiter.handler(), h.upload)
		web.GET("/dashboard", h.dashboardPage)
		web.GET("/dashboard/charts", h.chartsPage)
		web.POST("/reset", h.reset)
	}

	v1 := router.Group("/api/v1", sessionMiddleware(h.opts.SessionTTL, h.opts.SecureCookies))
	{
		v1.GET("/summary", h.getSummary)
		v1.POST("/analyze", h.limiter.handler(), h.analyzeUpload)
		v1.GET("/runs", h.listRuns)
	}
}

// healthCheck handles health check requests
func (h *Handler) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "healthy",
		"time":   time.Now().Unix(),
	})
}

// readinessCheck reports not ready while any configured dependency fails
func (h *Handler) readinessCheck(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	failures := gin.H{}
	for name, check := range h.opts.Checks {
		if err := check(ctx); err != nil {
			failures[name] = err.Error()
		}
	}

	if len(failures) > 0 {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status":  "not ready",
			"details": failures,
			"time":    time.Now().Unix(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status": "ready",
		"time":   time.Now().Unix(),
	})
}

// index shows the upload page, or the dashboard when the session has data
func (h *Handler) index(c *gin.Context) {
	has, err := h.dashboard.HasDataset(c.Request.Context(), sessionID(c))
	if err != nil {
		h.logger.Error("Failed to look up session dataset", zap.Error(err))
	}
	if has {
		c.Redirect(http.StatusFound, "/dashboard")
		return
	}

	c.HTML(http.StatusOK, "upload.html", presenter.NewUpload(h.dashboard.DefaultThreshold(), ""))
}

// upload handles the browser upload form
func (h *Handler) upload(c *gin.Context) {
	result, err := h.processUpload(c)
	if err != nil {
		status, msg := describeError(err)
		c.HTML(status, "upload.html", presenter.NewUpload(h.dashboard.DefaultThreshold(), msg))
		return
	}

	c.Redirect(http.StatusFound, dashboardURL("/dashboard", result.Summary.ThresholdDays))
}

// dashboardPage renders KPI tiles, the threshold form and the charts frame
func (h *Handler) dashboardPage(c *gin.Context) {
	threshold, err := bindThreshold(c)
	if err != nil {
		status, msg := describeError(err)
		c.HTML(status, "upload.html", presenter.NewUpload(h.dashboard.DefaultThreshold(), msg))
		return
	}

	result, err := h.dashboard.Analyze(c.Request.Context(), sessionID(c), threshold)
	if errors.Is(err, service.ErrSessionNotFound) {
		c.Redirect(http.StatusFound, "/")
		return
	}
	if err != nil {
		h.logger.Error("Failed to analyze dataset", zap.String("session_id", sessionID(c)), zap.Error(err))
		status, msg := describeError(err)
		c.HTML(status, "upload.html", presenter.NewUpload(h.dashboard.DefaultThreshold(), msg))
		return
	}

	days := result.Summary.ThresholdDays
	c.HTML(http.StatusOK, "dashboard.html",
		presenter.NewDashboard(result.SourceName, result.Summary, dashboardURL("/dashboard/charts", days)))
}

// chartsPage renders the go-echarts page embedded by the dashboard
func (h *Handler) chartsPage(c *gin.Context) {
	threshold, err := bindThreshold(c)
	if err != nil {
		status, msg := describeError(err)
		c.String(status, msg)
		return
	}

	result, err := h.dashboard.Analyze(c.Request.Context(), sessionID(c), threshold)
	if err != nil {
		status, msg := describeError(err)
		c.String(status, msg)
		return
	}

	c.Header("Content-Type", "text/html; charset=utf-8")
	c.Status(http.StatusOK)
	if err := presenter.RenderCharts(c.Writer, result.Summary); err != nil {
		h.logger.Error("Failed to render charts", zap.Error(err))
	}
}

// reset forgets the session dataset
func (h *Handler) reset(c *gin.Context) {
	if err := h.dashboard.Forget(c.Request.Context(), sessionID(c)); err != nil {
		h.logger.Error("Failed to reset session", zap.Error(err))
	}
	c.Redirect(http.StatusFound, "/")
}

// getSummary returns the session summary as JSON
func (h *Handler) getSummary(c *gin.Context) {
	threshold, err := bindThreshold(c)
	if err != nil {
		h.respondError(c, err)
		return
	}

	result, err := h.dashboard.Analyze(c.Request.Context(), sessionID(c), threshold)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// analyzeUpload accepts a multipart upload and answers with the summary
func (h *Handler) analyzeUpload(c *gin.Context) {
	result, err := h.processUpload(c)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// listRuns returns recorded analysis runs
func (h *Handler) listRuns(c *gin.Context) {
	if h.opts.Runs == nil {
		c.JSON(http.StatusNotFound, gin.H{
			"error": "Run audit is not enabled",
		})
		return
	}

	var filter store.RunFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid filter",
			"details": err.Error(),
		})
		return
	}

	runs, err := h.opts.Runs.ListRuns(c.Request.Context(), filter)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "Failed to list runs",
			"details": err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{"runs": runs})
}

type uploadForm struct {
	Threshold *int `form:"threshold" binding:"omitempty,min=30,max=720"`
}

func (h *Handler) processUpload(c *gin.Context) (*service.AnalysisResult, error) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.opts.MaxUploadBytes)

	var form uploadForm
	if err := c.ShouldBind(&form); err != nil {
		return nil, bindError(err)
	}

	header, err := c.FormFile("file")
	if errors.Is(err, http.ErrMissingFile) || errors.Is(err, http.ErrNotMultipart) {
		return nil, errNoFile
	}
	if err != nil {
		return nil, err
	}

	file, err := header.Open()
	if err != nil {
		return nil, fmt.Errorf("failed to open upload: %w", err)
	}
	defer file.Close()

	return h.dashboard.Upload(c.Request.Context(), sessionID(c), header.Filename, file, thresholdOrDefault(form.Threshold))
}

func (h *Handler) respondError(c *gin.Context, err error) {
	status, msg := describeError(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error("Request failed", zap.String("path", c.FullPath()), zap.Error(err))
	}
	c.JSON(status, gin.H{
		"error":   msg,
		"details": err.Error(),
	})
}

func dashboardURL(path string, thresholdDays int) string {
	return fmt.Sprintf("%s?threshold=%d", path, thresholdDays)
}
