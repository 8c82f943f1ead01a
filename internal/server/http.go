package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/yashgoyal264-hub/airline-invoice-extractor/internal/async"
	"github.com/yashgoyal264-hub/airline-invoice-extractor/internal/common"
	"github.com/yashgoyal264-hub/airline-invoice-extractor/internal/core"
	coreasync "github.com/yashgoyal264-hub/airline-invoice-extractor/internal/core/async"
	"github.com/yashgoyal264-hub/airline-invoice-extractor/internal/entity"
	"github.com/yashgoyal264-hub/airline-invoice-extractor/internal/export"
)

// HealthChecker is satisfied by *repository.DB.
type HealthChecker interface {
	HealthCheck(ctx context.Context, timeout time.Duration) error
}

type HTTPDeps struct {
	Processor *core.Processor
	Queue     *coreasync.BatchQueue // nil disables POST /api/v1/batches
	Sessions  *Sessions
	Exporter  *export.Service
	DB        HealthChecker // optional
	Logger    *slog.Logger
	// MaxUploadBytes bounds the whole multipart body.
	MaxUploadBytes int64
}

type httpAPI struct {
	HTTPDeps
}

// NewHTTPHandler builds the gin engine serving the REST API.
func NewHTTPHandler(deps HTTPDeps) *gin.Engine {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Exporter == nil {
		deps.Exporter = export.NewService(deps.Logger)
	}
	if deps.MaxUploadBytes <= 0 {
		deps.MaxUploadBytes = 512 << 20
	}
	api := &httpAPI{deps}

	r := gin.New()
	r.Use(gin.Recovery(), api.requestLogger())
	r.GET("/health", api.health)

	v1 := r.Group("/api/v1")
	v1.POST("/extract", api.extract)
	v1.POST("/batches", api.submitBatch)
	v1.GET("/sessions/:id", api.getSession)
	v1.POST("/export", api.export)
	return r
}

func (a *httpAPI) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		reqID := c.GetHeader("X-Request-ID")
		if reqID == "" {
			reqID = uuid.NewString()
		}
		c.Header("X-Request-ID", reqID)
		c.Request = c.Request.WithContext(common.WithRequestID(c.Request.Context(), reqID))

		start := time.Now()
		c.Next()
		a.Logger.Info("http.request",
			"req_id", reqID,
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
	}
}

func (a *httpAPI) health(c *gin.Context) {
	if a.DB != nil {
		if err := a.DB.HealthCheck(c.Request.Context(), 2*time.Second); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unhealthy", "error": err.Error()})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

type batchResponse struct {
	SessionID string                    `json:"sessionId"`
	Summary   entity.SessionSummary     `json:"summary"`
	Invoices  []entity.ExtractedInvoice `json:"invoices"`
	Stats     any                       `json:"stats"`
	Report    any                       `json:"report"`
	Files     []entity.FileRecord       `json:"files"`
}

// extract processes the uploaded files synchronously.
func (a *httpAPI) extract(c *gin.Context) {
	inputs, email, ok := a.readUploads(c)
	if !ok {
		return
	}
	res, err := a.Processor.ProcessBatch(c.Request.Context(), email, inputs)
	if err != nil && res == nil {
		a.fail(c, err)
		return
	}
	if err != nil {
		a.Logger.Warn("batch ended early", "error", err)
	}
	c.JSON(http.StatusOK, batchResponse{
		SessionID: res.Session.SessionID.String(),
		Summary:   res.Summary,
		Invoices:  res.Invoices,
		Stats:     res.Stats,
		Report:    res.Report,
		Files:     res.Session.Files,
	})
}

// submitBatch queues the uploaded files and answers 202 with the session id.
func (a *httpAPI) submitBatch(c *gin.Context) {
	if a.Queue == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "batch queue is not configured"})
		return
	}
	inputs, email, ok := a.readUploads(c)
	if !ok {
		return
	}
	s := a.Processor.NewSession(email)
	job := async.Job{Session: s, Inputs: inputs, SubmittedAt: time.Now(), TraceID: c.Writer.Header().Get("X-Request-ID")}
	if err := a.Queue.Enqueue(c.Request.Context(), job); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
		return
	}
	id := s.SessionID.String()
	c.Header("Location", "/api/v1/sessions/"+id)
	c.JSON(http.StatusAccepted, gin.H{"sessionId": id, "state": coreasync.StateQueued, "files": len(inputs)})
}

func (a *httpAPI) getSession(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "session id must be a UUID"})
		return
	}
	if a.Sessions == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
		return
	}
	view, err := a.Sessions.Lookup(c.Request.Context(), id)
	if err != nil {
		a.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

// export renders {"invoices": [...]} as a CSV or XLSX download.
func (a *httpAPI) export(c *gin.Context) {
	format, err := export.ParseFormat(c.DefaultQuery("format", string(export.FormatCSV)))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	var body struct {
		Invoices []entity.ExtractedInvoice `json:"invoices"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid JSON body: " + err.Error()})
		return
	}
	data, err := a.Exporter.Export(format, body.Invoices)
	if err != nil {
		a.fail(c, err)
		return
	}
	name := export.FileName(format, time.Now())
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, name))
	c.Data(http.StatusOK, format.ContentType(), data)
}

func (a *httpAPI) readUploads(c *gin.Context) ([]entity.FileInput, string, bool) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, a.MaxUploadBytes)
	form, err := c.MultipartForm()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "multipart form with files is required"})
		return nil, "", false
	}
	headers := form.File["files"]
	if len(headers) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "no files uploaded"})
		return nil, "", false
	}

	email := strings.TrimSpace(c.PostForm("email"))
	v := common.NewValidator()
	if email != "" {
		v.Field("email", email, common.Email, common.MaxLen(254))
	}
	for _, fh := range headers {
		v.Field("files", fh.Filename, common.Required, common.FileName, common.MaxLen(255))
	}
	if err := v.Error(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return nil, "", false
	}

	inputs := make([]entity.FileInput, 0, len(headers))
	for _, fh := range headers {
		data, err := readPart(fh)
		if err != nil {
			a.Logger.Error("failed to read upload", "file_name", fh.Filename, "error", err)
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("read %s: %v", fh.Filename, err)})
			return nil, "", false
		}
		inputs = append(inputs, entity.FileInput{Name: fh.Filename, Size: fh.Size, Data: data})
	}
	return inputs, email, true
}

func readPart(fh *multipart.FileHeader) ([]byte, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()
	return io.ReadAll(f)
}

func (a *httpAPI) fail(c *gin.Context, err error) {
	code := http.StatusInternalServerError
	switch {
	case errors.Is(err, common.ErrNotFound):
		code = http.StatusNotFound
	case errors.Is(err, common.ErrInvalidInput), errors.Is(err, common.ErrValidation):
		code = http.StatusBadRequest
	case errors.Is(err, common.ErrLimitExceeded):
		code = http.StatusRequestEntityTooLarge
	}
	if code == http.StatusInternalServerError {
		a.Logger.Error("request failed",
			"req_id", common.RequestIDFromContext(c.Request.Context()),
			"path", c.FullPath(),
			"error", err,
		)
	}
	c.JSON(code, gin.H{"error": err.Error()})
}
