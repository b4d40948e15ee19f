package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/lysyi3m/bulletin-comb/app/auth"
	"github.com/lysyi3m/bulletin-comb/app/database"
	"github.com/lysyi3m/bulletin-comb/app/document"
	"github.com/lysyi3m/bulletin-comb/app/errs"
	"github.com/lysyi3m/bulletin-comb/app/pipeline"
	"github.com/lysyi3m/bulletin-comb/app/tasks"
)

func (h *Handler) Login(c *gin.Context) {
	if h.auth == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Admin access disabled"})
		return
	}

	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request", "details": err.Error()})
		return
	}

	token, expires, err := h.auth.Login(req.Username, req.Password)
	if errors.Is(err, auth.ErrInvalidCredentials) {
		slog.Warn("Admin login rejected", "username", req.Username, "client_ip", c.ClientIP())
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid username or password"})
		return
	}
	if err != nil {
		slog.Error("Admin login failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Login failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"token":      token,
		"token_type": "Bearer",
		"expires_at": expires,
	})
}

func (h *Handler) ListSources(c *gin.Context) {
	sources, err := h.sources.List()
	if err != nil {
		slog.Error("Database error", "operation", "list_sources", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list sources"})
		return
	}

	out := make([]sourceResponse, 0, len(sources))
	for i := range sources {
		resp := newSourceResponse(&sources[i])
		if count, err := h.events.Count(sources[i].ID); err == nil {
			resp.Events = &count
		}
		out = append(out, resp)
	}

	c.JSON(http.StatusOK, gin.H{
		"fuentes": out,
		"total":   len(out),
	})
}

func (h *Handler) GetSource(c *gin.Context) {
	src, ok := h.sourceByID(c)
	if !ok {
		return
	}

	resp := newSourceResponse(src)
	if count, err := h.events.Count(src.ID); err == nil {
		resp.Events = &count
	}

	c.JSON(http.StatusOK, resp)
}

func (h *Handler) CreateSource(c *gin.Context) {
	var req sourceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request", "details": err.Error()})
		return
	}

	src := &database.Source{
		Key:       req.Key,
		Name:      req.Name,
		PromptKey: req.PromptKey,
		Type:      req.Type,
		URL:       req.URL,
		Active:    req.Active == nil || *req.Active,
	}

	if !h.checkPrompt(c, src.PromptKey, src.Key) {
		return
	}

	err := h.sources.Create(src)
	if errors.Is(err, database.ErrDuplicate) {
		c.JSON(http.StatusConflict, gin.H{"error": "Source already exists", "details": "key and name must be unique"})
		return
	}
	if err != nil {
		slog.Error("Database error", "operation", "create_source", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create source"})
		return
	}

	slog.Info("Source created", "source", src.Key, "id", src.ID)
	c.JSON(http.StatusCreated, newSourceResponse(src))
}

func (h *Handler) UpdateSource(c *gin.Context) {
	src, ok := h.sourceByID(c)
	if !ok {
		return
	}

	var req sourceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request", "details": err.Error()})
		return
	}
	if req.Key != src.Key {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Source key cannot be changed"})
		return
	}

	src.Name = req.Name
	if req.PromptKey != "" {
		src.PromptKey = req.PromptKey
	}
	if req.Type != "" {
		src.Type = req.Type
	}
	src.URL = req.URL
	if req.Active != nil {
		src.Active = *req.Active
	}

	if !h.checkPrompt(c, src.PromptKey, src.Key) {
		return
	}

	if !h.saveSource(c, src) {
		return
	}

	slog.Info("Source updated", "source", src.Key, "id", src.ID)
	c.JSON(http.StatusOK, newSourceResponse(src))
}

func (h *Handler) ToggleSource(c *gin.Context) {
	src, ok := h.sourceByID(c)
	if !ok {
		return
	}

	src.Active = !src.Active
	if !h.saveSource(c, src) {
		return
	}

	slog.Info("Source toggled", "source", src.Key, "active", src.Active)
	c.JSON(http.StatusOK, newSourceResponse(src))
}

func (h *Handler) DeleteSource(c *gin.Context) {
	src, ok := h.sourceByID(c)
	if !ok {
		return
	}

	if err := h.sources.Delete(src.ID); err != nil {
		if errors.Is(err, errs.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Source not found"})
			return
		}
		slog.Error("Database error", "operation", "delete_source", "id", src.ID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete source"})
		return
	}

	slog.Info("Source deleted", "source", src.Key, "id", src.ID)
	c.JSON(http.StatusOK, gin.H{"success": true, "id": src.ID})
}

func (h *Handler) UploadDocument(c *gin.Context) {
	key := c.PostForm("fuente")
	if key == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing source", "details": "form field 'fuente' is required"})
		return
	}

	src, ok := h.sourceByKey(c, key)
	if !ok {
		return
	}

	header, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing file", "details": err.Error()})
		return
	}

	file, err := header.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Failed to read file", "details": err.Error()})
		return
	}
	defer file.Close()

	path, size, err := h.store.Save(src.Name, header.Filename, file)
	switch {
	case errors.Is(err, document.ErrTooLarge):
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "File too large", "details": err.Error()})
		return
	case errors.Is(err, document.ErrUnsupportedFormat):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Unsupported file", "details": err.Error()})
		return
	case err != nil:
		slog.Error("Upload failed", "source", src.Key, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to store file"})
		return
	}

	if err := h.sources.SetDocument(src.ID, path); err != nil {
		slog.Error("Database error", "operation", "set_document", "source", src.Key, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to record document"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"file_path": path,
		"size":      size,
		"fuente":    src.Key,
	})
}

func (h *Handler) DeleteDocument(c *gin.Context) {
	path := c.Query("path")
	if path == "" || !h.store.Contains(path) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid path", "details": "path must point inside the uploads directory"})
		return
	}

	deleteEvents, _ := strconv.ParseBool(c.DefaultQuery("delete_events", "false"))

	if err := h.store.Delete(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			c.JSON(http.StatusNotFound, gin.H{"error": "File not found"})
			return
		}
		slog.Error("Delete failed", "path", path, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete file"})
		return
	}

	var deleted int64
	if deleteEvents {
		n, err := h.events.DeleteByDocument(path)
		if err != nil {
			slog.Error("Database error", "operation", "delete_events_by_document", "path", path, "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "File deleted but its events could not be removed"})
			return
		}
		deleted = n
	}

	h.forgetDocument(path)

	c.JSON(http.StatusOK, gin.H{
		"success":        true,
		"file_path":      path,
		"deleted_events": deleted,
	})
}

func (h *Handler) ExtractEvents(c *gin.Context) {
	key := c.Param("source_key")

	var req extractRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request", "details": err.Error()})
			return
		}
	}

	if req.FilePath != "" && !h.store.Contains(req.FilePath) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid file path", "details": "file_path must point inside the uploads directory"})
		return
	}

	if _, ok := h.sourceByKey(c, key); !ok {
		return
	}

	// the run outlives a client that stops waiting for the response
	ctx := context.WithoutCancel(c.Request.Context())

	run, err := h.runner.Run(ctx, pipeline.Request{SourceKey: key, DocumentPath: req.FilePath})
	if err != nil {
		h.runError(c, key, err)
		return
	}

	c.JSON(http.StatusOK, newRunResponse(run))
}

func (h *Handler) TriggerUpdate(c *gin.Context) {
	sources, err := h.sources.List()
	if err != nil {
		slog.Error("Database error", "operation", "list_sources", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list sources"})
		return
	}

	enqueued := []gin.H{}
	skipped := []gin.H{}

	for i := range sources {
		src := &sources[i]

		if !src.Active {
			skipped = append(skipped, gin.H{"fuente": src.Key, "reason": "source is inactive"})
			continue
		}
		if src.DocumentPath == "" && src.URL == "" {
			skipped = append(skipped, gin.H{"fuente": src.Key, "reason": "no document uploaded"})
			continue
		}

		run, err := h.runner.Prepare(pipeline.Request{SourceKey: src.Key})
		if err != nil {
			slog.Warn("Failed to prepare run", "source", src.Key, "error", err)
			skipped = append(skipped, gin.H{"fuente": src.Key, "reason": err.Error()})
			continue
		}

		task := tasks.NewExtractEventsTask(src.Key, run.ID, h.runner)
		if err := h.scheduler.EnqueueTask(task); err != nil {
			slog.Error("Error enqueueing extract task", "source", src.Key, "error", err)
			if abandonErr := h.runner.Abandon(run.ID, fmt.Sprintf("failed to enqueue run: %v", err)); abandonErr != nil {
				slog.Warn("Failed to abandon run", "run_id", run.ID, "error", abandonErr)
			}
			skipped = append(skipped, gin.H{"fuente": src.Key, "reason": err.Error()})
			continue
		}

		enqueued = append(enqueued, gin.H{
			"id":     task.ID,
			"type":   task.Type,
			"fuente": src.Key,
			"run_id": run.ID,
		})
	}

	c.JSON(http.StatusAccepted, gin.H{
		"tasks":   enqueued,
		"skipped": skipped,
	})
}

func (h *Handler) ListRuns(c *gin.Context) {
	limit, ok := parseLimit(c, defaultRunLimit)
	if !ok {
		return
	}

	var sourceID string
	if key := c.Query("fuente"); key != "" {
		src, ok := h.sourceByKey(c, key)
		if !ok {
			return
		}
		sourceID = src.ID
	}

	runs, err := h.runs.List(sourceID, limit)
	if err != nil {
		slog.Error("Database error", "operation", "list_runs", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list runs"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"logs":  newRunResponses(runs),
		"total": len(runs),
	})
}

func (h *Handler) ListAdminEvents(c *gin.Context) {
	limit, ok := parseLimit(c, maxEventLimit)
	if !ok {
		return
	}

	filter := database.EventFilter{Limit: limit}
	filter.IncludeInactive, _ = strconv.ParseBool(c.DefaultQuery("incluir_inactivos", "false"))

	if key := c.Query("fuente"); key != "" {
		src, ok := h.sourceByKey(c, key)
		if !ok {
			return
		}
		filter.SourceID = src.ID
	}

	events, err := h.events.List(filter)
	if err != nil {
		slog.Error("Database error", "operation", "list_events", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list events"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"eventos": newEventResponses(events),
		"total":   len(events),
	})
}

func (h *Handler) DeleteEvent(c *gin.Context) {
	id := c.Param("id")

	err := h.events.Deactivate(id)
	if errors.Is(err, errs.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Event not found"})
		return
	}
	if err != nil {
		slog.Error("Database error", "operation", "deactivate_event", "id", id, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete event"})
		return
	}

	slog.Info("Event deactivated", "id", id)
	c.JSON(http.StatusOK, gin.H{"success": true, "id": id})
}

func (h *Handler) runError(c *gin.Context, key string, err error) {
	var configErr *errs.ConfigurationError

	switch {
	case errors.Is(err, errs.ErrRunInProgress):
		c.JSON(http.StatusConflict, gin.H{"error": "Run in progress", "details": err.Error()})
	case errors.As(err, &configErr):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Configuration error", "details": configErr.Reason})
	default:
		slog.Error("Run failed", "source", key, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Run failed", "details": err.Error()})
	}
}

func (h *Handler) sourceByID(c *gin.Context) (*database.Source, bool) {
	id := c.Param("id")

	src, err := h.sources.GetByID(id)
	if err != nil {
		slog.Error("Database error", "operation", "get_source", "id", id, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load source"})
		return nil, false
	}
	if src == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Source not found"})
		return nil, false
	}
	return src, true
}

func (h *Handler) saveSource(c *gin.Context, src *database.Source) bool {
	err := h.sources.Update(src)
	switch {
	case errors.Is(err, database.ErrDuplicate):
		c.JSON(http.StatusConflict, gin.H{"error": "Source already exists", "details": "key and name must be unique"})
		return false
	case errors.Is(err, errs.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Source not found"})
		return false
	case err != nil:
		slog.Error("Database error", "operation", "update_source", "id", src.ID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update source"})
		return false
	}
	return true
}

// checkPrompt rejects sources whose prompt template is not loaded.
func (h *Handler) checkPrompt(c *gin.Context, promptKey, key string) bool {
	if promptKey == "" {
		promptKey = key
	}
	if _, err := h.registry.Get(promptKey); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Unknown prompt", "details": fmt.Sprintf("no source definition named '%s'", promptKey)})
		return false
	}
	return true
}

// forgetDocument clears the deleted path from the sources that point at it.
func (h *Handler) forgetDocument(path string) {
	sources, err := h.sources.List()
	if err != nil {
		slog.Warn("Failed to list sources", "error", err)
		return
	}

	for i := range sources {
		if sources[i].DocumentPath != path {
			continue
		}
		if err := h.sources.SetDocument(sources[i].ID, ""); err != nil {
			slog.Warn("Failed to clear source document", "source", sources[i].Key, "error", err)
		}
	}
}
