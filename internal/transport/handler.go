package transport

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/anime-shed/face-inspector-go/internal/config"
	apperrors "github.com/anime-shed/face-inspector-go/internal/errors"
	"github.com/anime-shed/face-inspector-go/internal/logger"
	"github.com/anime-shed/face-inspector-go/internal/service"
	"github.com/anime-shed/face-inspector-go/pkg/models"
)

// Version is reported by /health.
const Version = "1.0.0"

// MetricsProvider exposes counters for /metrics.
type MetricsProvider interface {
	GetMetrics() map[string]interface{}
}

func NewHandler(svc service.FaceCheckService, metrics MetricsProvider, cfg *config.Config) http.Handler {
	r := gin.Default()

	// Add middleware
	r.Use(
		corsMiddleware(cfg.CORSOrigins),
		requestSizeLimiter(cfg.MaxRequestBodySize),
		errorHandler(),
	)

	h := &handler{svc: svc, metrics: metrics, timeout: cfg.RequestTimeout}

	// Configure routes
	r.GET("/health", healthCheck)
	r.GET("/metrics", h.getMetrics)
	r.POST("/base64", h.checkBase64)
	r.POST("/url", h.checkURL)
	r.POST("/blob", h.checkBlob)
	r.POST("/check/detailed", h.checkDetailed)
	r.GET("/config", h.getConfig)
	r.PATCH("/config", h.patchConfig)

	return r
}

type handler struct {
	svc     service.FaceCheckService
	metrics MetricsProvider
	timeout time.Duration
}

func (h *handler) checkBase64(c *gin.Context) {
	var req models.Base64Request
	if !bindJSON(c, &req, "No image provided") {
		return
	}
	h.respondCheck(c, "base64", func(ctx context.Context) (models.QualityResult, error) {
		return h.svc.CheckBase64(ctx, req.Image, req.Version)
	})
}

func (h *handler) checkURL(c *gin.Context) {
	var req models.URLRequest
	if !bindJSON(c, &req, "No URL provided") {
		return
	}
	h.respondCheck(c, "url", func(ctx context.Context) (models.QualityResult, error) {
		return h.svc.CheckURL(ctx, req.URL, req.Version)
	})
}

func (h *handler) checkBlob(c *gin.Context) {
	var req models.BlobRequest
	if !bindJSON(c, &req, "No blob provided") {
		return
	}
	h.respondCheck(c, "blob", func(ctx context.Context) (models.QualityResult, error) {
		return h.svc.CheckBlob(ctx, req.Container, req.Blob, req.Version)
	})
}

func (h *handler) respondCheck(c *gin.Context, source string, check func(context.Context) (models.QualityResult, error)) {
	startTime := time.Now()
	ctx, cancel := context.WithTimeout(c.Request.Context(), h.timeout)
	defer cancel()

	// Log request start
	logger.WithFields(logrus.Fields{
		"method":     c.Request.Method,
		"path":       c.Request.URL.Path,
		"user_agent": c.Request.UserAgent(),
		"ip":         c.ClientIP(),
	}).Info("Processing face check request")

	result, err := check(ctx)
	if err != nil {
		respondError(c, determineStatusCode(err), "face check failed", err)
		return
	}

	logger.WithFields(logrus.Fields{
		"source":             source,
		"processing_time_ms": time.Since(startTime).Milliseconds(),
		"face_detected":      result.FaceDetected,
		"acceptable":         result.Acceptable(),
	}).Info("Face check completed successfully")

	c.JSON(http.StatusOK, result)
}

func (h *handler) checkDetailed(c *gin.Context) {
	var req models.DetailedRequest
	if !bindJSON(c, &req, "invalid request format") {
		return
	}
	if req.Image == "" && req.URL == "" {
		respondError(c, http.StatusBadRequest, "invalid request format",
			apperrors.NewValidationError("No image or URL provided", nil))
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), h.timeout)
	defer cancel()

	report, err := h.svc.CheckDetailed(ctx, service.ImageRef{Base64: req.Image, URL: req.URL}, req.Version)
	if err != nil {
		respondError(c, determineStatusCode(err), "face check failed", err)
		return
	}
	c.JSON(http.StatusOK, report)
}

func (h *handler) getConfig(c *gin.Context) {
	c.JSON(http.StatusOK, h.svc.Thresholds().ToMap())
}

func (h *handler) patchConfig(c *gin.Context) {
	var patch models.ThresholdsPatch
	if !bindJSON(c, &patch, "invalid thresholds") {
		return
	}
	updated, err := h.svc.UpdateThresholds(c.Request.Context(), patch)
	if err != nil {
		respondError(c, determineStatusCode(err), "thresholds not updated", err)
		return
	}
	c.JSON(http.StatusOK, updated.ToMap())
}

func (h *handler) getMetrics(c *gin.Context) {
	if h.metrics == nil {
		c.JSON(http.StatusOK, gin.H{})
		return
	}
	c.JSON(http.StatusOK, h.metrics.GetMetrics())
}

func healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "available",
		"version": Version,
		"time":    time.Now().UTC().Format(time.RFC3339),
	})
}

// bindJSON decodes the body into req and answers 400 when it does not fit.
func bindJSON(c *gin.Context, req interface{}, message string) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			respondError(c, http.StatusRequestEntityTooLarge, "request body too large", err)
			return false
		}
		logger.WithError(err).WithFields(logrus.Fields{
			"ip": c.ClientIP(),
		}).Error("Invalid request format")
		respondError(c, http.StatusBadRequest, message, err)
		return false
	}
	return true
}

// Middleware and helper functions
func corsMiddleware(origins []string) gin.HandlerFunc {
	corsConfig := cors.Config{
		AllowMethods:  []string{"GET", "POST", "PATCH", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Accept"},
		ExposeHeaders: []string{"Content-Length"},
		MaxAge:        12 * time.Hour,
	}
	if len(origins) == 0 || (len(origins) == 1 && origins[0] == "*") {
		corsConfig.AllowAllOrigins = true
	} else {
		corsConfig.AllowOrigins = origins
	}
	return cors.New(corsConfig)
}

func requestSizeLimiter(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}

func errorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) > 0 && !c.Writer.Written() {
			err := c.Errors.Last()
			respondError(c, determineStatusCode(err.Err), "request processing failed", err.Err)
		}
	}
}

func determineStatusCode(err error) int {
	// Check if it's a custom app error first
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		return appErr.StatusCode
	}

	// Fallback to context-based errors
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, context.Canceled):
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

// respondError answers with {"error": ..., "message": ...}. The error field
// carries the AppError message when there is one, otherwise message.
func respondError(c *gin.Context, code int, message string, err error) {
	// Log the error with context
	logger.WithError(err).WithFields(logrus.Fields{
		"status_code": code,
		"message":     message,
		"path":        c.Request.URL.Path,
		"method":      c.Request.Method,
		"ip":          c.ClientIP(),
	}).Error("Request failed")

	body := models.ErrorResponse{
		Error:   message,
		Message: fmt.Sprintf("%s: %v", http.StatusText(code), err),
	}
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		body.Error = appErr.Message
	}
	c.AbortWithStatusJSON(code, body)
}
