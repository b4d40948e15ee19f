package api

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/lysyi3m/bulletin-comb/app/database"
	"github.com/lysyi3m/bulletin-comb/app/event"
)

const (
	defaultEventLimit = 100
	maxEventLimit     = 1000
	defaultRunLimit   = 50
)

func NewHandler(deps Dependencies, baseURL, version string) *Handler {
	return &Handler{
		sources:   deps.Sources,
		events:    deps.Events,
		runs:      deps.Runs,
		registry:  deps.Registry,
		runner:    deps.Runner,
		scheduler: deps.Scheduler,
		store:     deps.Store,
		auth:      deps.Auth,
		db:        deps.DB,
		generator: NewRSSGenerator(baseURL, version),
		version:   version,
		now:       time.Now,
	}
}

func (h *Handler) ListEvents(c *gin.Context) {
	filter, ok := h.eventFilter(c, defaultEventLimit)
	if !ok {
		return
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
		"desde":   filter.From,
	})
}

func (h *Handler) GetEvent(c *gin.Context) {
	id := c.Param("id")

	ev, err := h.events.GetByID(id)
	if err != nil {
		slog.Error("Database error", "operation", "get_event", "id", id, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load event"})
		return
	}

	if ev == nil || !ev.Active {
		c.JSON(http.StatusNotFound, gin.H{"error": "Event not found"})
		return
	}

	c.JSON(http.StatusOK, newEventResponse(ev))
}

func (h *Handler) GetEventsFeed(c *gin.Context) {
	filter, ok := h.eventFilter(c, defaultEventLimit)
	if !ok {
		return
	}

	events, err := h.events.List(filter)
	if err != nil {
		slog.Error("Database error", "operation", "list_events", "error", err)
		c.Status(http.StatusInternalServerError)
		return
	}

	rss, err := h.generator.Run(events, h.now())
	if err != nil {
		slog.Error("RSS generation error", "error", err)
		c.Status(http.StatusInternalServerError)
		return
	}

	c.Header("Content-Type", "application/rss+xml; charset=utf-8")
	c.Header("X-Feed-Items", strconv.Itoa(len(events)))
	c.String(http.StatusOK, rss)
}

func (h *Handler) ListCategories(c *gin.Context) {
	counts, err := h.events.CategoryCounts(h.today())
	if err != nil {
		slog.Error("Database error", "operation", "category_counts", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to count events"})
		return
	}

	byName := make(map[string]int, len(counts))
	for _, count := range counts {
		byName[count.Category] = count.Count
	}

	categories := make([]categoryResponse, 0, len(event.Categories))
	for _, name := range event.Categories {
		categories = append(categories, categoryResponse{Name: name, Events: byName[name]})
	}

	c.JSON(http.StatusOK, gin.H{"categorias": categories})
}

func (h *Handler) GetHealth(c *gin.Context) {
	health := map[string]interface{}{
		"status":    "ok",
		"version":   h.version,
		"timestamp": h.now().In(time.Local).Format(time.RFC3339),
	}

	status := http.StatusOK
	if err := h.db.Ping(); err != nil {
		slog.Error("Health check failed", "error", err)
		health["status"] = "degraded"
		health["database"] = "unavailable"
		status = http.StatusServiceUnavailable
	} else {
		health["database"] = "ok"
	}

	if sourceCount, err := h.sources.Count(); err == nil {
		health["sources"] = sourceCount
	}

	health["loaded_definitions"] = h.registry.Count()

	c.JSON(status, health)
}

// eventFilter reads the public listing parameters. It writes the 400
// response itself and reports false when a parameter is invalid.
func (h *Handler) eventFilter(c *gin.Context, defaultLimit int) (database.EventFilter, bool) {
	filter := database.EventFilter{From: h.today(), Limit: defaultLimit}

	if category := c.Query("categoria"); category != "" {
		canonical, ok := event.CanonicalCategory(category)
		if !ok {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid category", "details": category})
			return filter, false
		}
		filter.Category = canonical
	}

	if from := c.Query("desde"); from != "" {
		if _, err := time.Parse(event.DateLayout, from); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid date", "details": "desde must be YYYY-MM-DD"})
			return filter, false
		}
		filter.From = from
	}

	limit, ok := parseLimit(c, defaultLimit)
	if !ok {
		return filter, false
	}
	filter.Limit = limit

	if key := c.Query("fuente"); key != "" {
		src, ok := h.sourceByKey(c, key)
		if !ok {
			return filter, false
		}
		filter.SourceID = src.ID
	}

	return filter, true
}

func (h *Handler) sourceByKey(c *gin.Context, key string) (*database.Source, bool) {
	src, err := h.sources.GetByKey(key)
	if err != nil {
		slog.Error("Database error", "operation", "get_source", "source", key, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load source"})
		return nil, false
	}
	if src == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Source not found", "details": key})
		return nil, false
	}
	return src, true
}

func (h *Handler) today() string {
	return h.now().In(time.Local).Format(event.DateLayout)
}

func parseLimit(c *gin.Context, defaultLimit int) (int, bool) {
	raw := c.Query("limite")
	if raw == "" {
		return defaultLimit, true
	}

	limit, err := strconv.Atoi(raw)
	if err != nil || limit < 1 || limit > maxEventLimit {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid limit",
			"details": "limite must be between 1 and " + strconv.Itoa(maxEventLimit),
		})
		return 0, false
	}
	return limit, true
}
