package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/Pranavd0828/make-your-video-2x/config"
	"github.com/Pranavd0828/make-your-video-2x/engine"
	"github.com/Pranavd0828/make-your-video-2x/job"
	"github.com/Pranavd0828/make-your-video-2x/resource"
)

// acceptedTypes mirrors the file-chooser filter: QuickTime, MP4 and M4V.
var acceptedTypes = map[string]bool{
	"video/quicktime": true,
	"video/mp4":       true,
	"video/x-m4v":     true,
}

type Handler struct {
	baseCtx   context.Context
	machine   *job.Machine
	engines   *engine.Lifecycle
	resources *resource.Store
	cfg       *config.Config
}

func NewHandler(ctx context.Context, m *job.Machine, lc *engine.Lifecycle, store *resource.Store, cfg *config.Config) *Handler {
	return &Handler{
		baseCtx:   ctx,
		machine:   m,
		engines:   lc,
		resources: store,
		cfg:       cfg,
	}
}

// handleCreateJob accepts a multipart upload and submits it as the one
// active job.
func (h *Handler) handleCreateJob(c *gin.Context) {
	file, err := c.FormFile("video")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing multipart field 'video'"})
		return
	}

	if file.Size > h.cfg.MaxInputSize {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{
			"error": fmt.Sprintf("input file size %d exceeds limit of %d bytes", file.Size, h.cfg.MaxInputSize),
		})
		return
	}

	mime, ok := assetMIME(file.Filename, file.Header.Get("Content-Type"))
	if !ok {
		c.JSON(http.StatusUnsupportedMediaType, gin.H{
			"error": fmt.Sprintf("unsupported media type %q; accepted: video/quicktime, video/mp4, video/x-m4v", mime),
		})
		return
	}

	src, err := file.Open()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not read upload", "details": err.Error()})
		return
	}
	defer src.Close()

	data, err := io.ReadAll(io.LimitReader(src, h.cfg.MaxInputSize+1))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not read upload", "details": err.Error()})
		return
	}
	if int64(len(data)) > h.cfg.MaxInputSize {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{
			"error": fmt.Sprintf("input file exceeds limit of %d bytes", h.cfg.MaxInputSize),
		})
		return
	}

	snap, err := h.machine.Submit(job.Asset{
		Name: filepath.Base(file.Filename),
		MIME: mime,
		Data: data,
	})
	switch {
	case errors.Is(err, job.ErrNotReady):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "engine not ready", "engine": h.engines.State()})
		return
	case errors.Is(err, job.ErrJobInFlight):
		c.JSON(http.StatusConflict, gin.H{"error": "a job is already in flight"})
		return
	case err != nil:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create job", "details": err.Error()})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{"jobId": snap.ID, "status": snap.Status})
}

type jobResponse struct {
	job.Snapshot
	InputURL  string `json:"inputUrl,omitempty"`
	OutputURL string `json:"outputUrl,omitempty"`
}

// handleJobStatus returns the current job snapshot with download URLs for
// whichever handles are live.
func (h *Handler) handleJobStatus(c *gin.Context) {
	resp := jobResponse{Snapshot: h.machine.Snapshot()}
	if hd, ok := h.resources.Current(resource.SlotInput); ok {
		resp.InputURL = h.fileURL(c, hd)
	}
	if hd, ok := h.resources.Current(resource.SlotOutput); ok {
		resp.OutputURL = h.fileURL(c, hd)
	}
	c.JSON(http.StatusOK, resp)
}

// handleResetJob clears a finished job and revokes its handles.
func (h *Handler) handleResetJob(c *gin.Context) {
	if err := h.machine.Reset(); err != nil {
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": job.StatusIdle})
}

// handleInitializeEngine retries engine loading after a failure.
func (h *Handler) handleInitializeEngine(c *gin.Context) {
	if err := h.engines.Initialize(h.baseCtx); err != nil {
		c.JSON(http.StatusConflict, gin.H{"error": err.Error(), "engine": h.engines.State()})
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"engine": h.engines.State()})
}

// handleGetFile serves a live resource handle by token.
func (h *Handler) handleGetFile(c *gin.Context) {
	hd, ok := h.resources.Get(c.Param("token"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "file not found"})
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", hd.Name))
	c.Data(http.StatusOK, hd.MIME, hd.Data)
}

func (h *Handler) handleHealth(c *gin.Context) {
	snap := h.machine.Snapshot()
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"engine":  h.engines.State(),
		"job":     snap.Status,
		"message": snap.Message,
	})
}

// fileURL builds the download URL for a handle from BASE or the request host.
func (h *Handler) fileURL(c *gin.Context, hd *resource.Handle) string {
	baseURL := h.cfg.BaseURL
	if baseURL == "" {
		scheme := "http"
		if c.Request.TLS != nil {
			scheme = "https"
		}
		baseURL = fmt.Sprintf("%s://%s", scheme, c.Request.Host)
	}
	baseURL = strings.TrimSuffix(baseURL, "/")
	return fmt.Sprintf("%s/api/v1/files/%s", baseURL, hd.Token)
}

// assetMIME resolves the effective MIME type of an upload, preferring the
// declared part header and falling back to the file extension.
func assetMIME(filename, declared string) (string, bool) {
	if acceptedTypes[declared] {
		return declared, true
	}
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".mov":
		return "video/quicktime", true
	case ".mp4":
		return "video/mp4", true
	case ".m4v":
		return "video/x-m4v", true
	}
	if declared == "" {
		declared = "unknown"
	}
	return declared, false
}
