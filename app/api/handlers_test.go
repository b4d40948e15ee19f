package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/lysyi3m/bulletin-comb/app/auth"
	"github.com/lysyi3m/bulletin-comb/app/database"
	"github.com/lysyi3m/bulletin-comb/app/document"
	"github.com/lysyi3m/bulletin-comb/app/event"
	"github.com/lysyi3m/bulletin-comb/app/pipeline"
	"github.com/lysyi3m/bulletin-comb/app/source"
	"github.com/lysyi3m/bulletin-comb/app/tasks"
)

const testDefinition = `
name: "San Sebastián de los Reyes"
type: pdf
enabled: true
prompt: |
  Extrae los eventos:
  {texto}
`

const (
	testUser     = "admin"
	testPassword = "correct horse battery staple"
	testSecret   = "0123456789abcdef0123456789abcdef"
)

type fakeRunner struct {
	run       *database.Run
	err       error
	ctxErr    error
	prepared  []string
	abandoned []string
}

func (f *fakeRunner) Run(ctx context.Context, req pipeline.Request) (*database.Run, error) {
	f.ctxErr = ctx.Err()
	if f.err != nil {
		return nil, f.err
	}
	return f.run, nil
}

func (f *fakeRunner) Prepare(req pipeline.Request) (*database.Run, error) {
	f.prepared = append(f.prepared, req.SourceKey)
	return &database.Run{ID: "run-" + req.SourceKey, Status: database.RunPending}, nil
}

func (f *fakeRunner) Abandon(runID, reason string) error {
	f.abandoned = append(f.abandoned, runID)
	return nil
}

func (f *fakeRunner) Execute(ctx context.Context, runID string) (*database.Run, error) {
	return f.run, nil
}

func (f *fakeRunner) Reconcile(ctx context.Context) (int, error) {
	return 0, nil
}

type fakeScheduler struct {
	tasks []tasks.TaskInterface
	err   error
}

func (f *fakeScheduler) Start() {}
func (f *fakeScheduler) Stop()  {}

func (f *fakeScheduler) EnqueueTask(task tasks.TaskInterface) error {
	if f.err != nil {
		return f.err
	}
	f.tasks = append(f.tasks, task)
	return nil
}

type testServer struct {
	router    *gin.Engine
	db        *database.DB
	sources   database.SourceRepository
	events    database.EventRepository
	runs      database.RunRepository
	runner    *fakeRunner
	scheduler *fakeScheduler
	store     *document.Store
	source    *database.Source
	token     string
}

func newTestServer(t *testing.T, opts ServerOptions) *testServer {
	t.Helper()

	db, err := database.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Failed to open database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if _, _, err := database.RunMigrations(db); err != nil {
		t.Fatalf("Failed to run migrations: %v", err)
	}

	sourcesDir := t.TempDir()
	if err := os.WriteFile(filepath.Join(sourcesDir, "ssreyes.yml"), []byte(testDefinition), 0644); err != nil {
		t.Fatal(err)
	}
	registry := source.NewRegistry(sourcesDir)
	if err := registry.Run(); err != nil {
		t.Fatalf("Failed to load sources: %v", err)
	}

	hash, err := auth.HashPassword(testPassword)
	if err != nil {
		t.Fatal(err)
	}
	authenticator := auth.New(testUser, hash, testSecret, time.Hour)

	ts := &testServer{
		db:        db,
		sources:   database.NewSourceRepository(db),
		events:    database.NewEventRepository(db),
		runs:      database.NewRunRepository(db),
		runner:    &fakeRunner{},
		scheduler: &fakeScheduler{},
		store:     document.NewStore(t.TempDir(), 1<<20),
	}

	src, _, err := ts.sources.UpsertDefinition("ssreyes", "San Sebastián de los Reyes", "pdf", "", true)
	if err != nil {
		t.Fatal(err)
	}
	ts.source = src

	handler := NewHandler(Dependencies{
		Sources:   ts.sources,
		Events:    ts.events,
		Runs:      ts.runs,
		Registry:  registry,
		Runner:    ts.runner,
		Scheduler: ts.scheduler,
		Store:     ts.store,
		Auth:      authenticator,
		DB:        db,
	}, "https://agenda.example.com", "test")

	ts.router = NewServer(handler, opts)

	ts.token, _, err = authenticator.Login(testUser, testPassword)
	if err != nil {
		t.Fatal(err)
	}

	return ts
}

func (ts *testServer) do(method, path string, body any, token string) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	if body != nil {
		data, _ := json.Marshal(body)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	w := httptest.NewRecorder()
	ts.router.ServeHTTP(w, req)
	return w
}

func (ts *testServer) admin(method, path string, body any) *httptest.ResponseRecorder {
	return ts.do(method, path, body, ts.token)
}

func (ts *testServer) insertEvent(t *testing.T, title, startDate, category string) *database.Event {
	t.Helper()

	ev := &database.Event{
		Event: event.Event{
			Title:       title,
			StartDate:   startDate,
			Category:    category,
			Price:       event.FreePrice,
			Fingerprint: event.Fingerprint(title, startDate, ts.source.ID),
		},
		SourceID:   ts.source.ID,
		SourceName: ts.source.Name,
	}
	if err := ts.events.Insert(ev); err != nil {
		t.Fatalf("Failed to insert event: %v", err)
	}
	return ev
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()

	var body map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("Failed to decode response %q: %v", w.Body.String(), err)
	}
	return body
}

func daysFromNow(days int) string {
	return time.Now().AddDate(0, 0, days).Format(event.DateLayout)
}

func TestListEvents(t *testing.T) {
	ts := newTestServer(t, ServerOptions{})

	ts.insertEvent(t, "Concierto", daysFromNow(5), event.CategoryCulture)
	ts.insertEvent(t, "Carrera popular", daysFromNow(2), event.CategorySport)
	ts.insertEvent(t, "Verbena pasada", daysFromNow(-30), event.CategoryLeisure)

	w := ts.do("GET", "/api/eventos", nil, "")
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got: %d", w.Code)
	}

	body := decode(t, w)
	events := body["eventos"].([]any)
	if len(events) != 2 {
		t.Fatalf("Expected 2 upcoming events, got: %d", len(events))
	}
	first := events[0].(map[string]any)
	if first["titulo"] != "Carrera popular" {
		t.Errorf("Expected events ordered by date, got first: %v", first["titulo"])
	}
	if first["fuente"] != ts.source.Name {
		t.Errorf("Expected source name in response, got: %v", first["fuente"])
	}

	w = ts.do("GET", "/api/eventos?categoria=cultura", nil, "")
	if got := decode(t, w)["total"]; got != float64(1) {
		t.Errorf("Expected 1 event for category alias, got: %v", got)
	}

	w = ts.do("GET", "/api/eventos?desde="+daysFromNow(-60)+"&limite=10", nil, "")
	if got := decode(t, w)["total"]; got != float64(3) {
		t.Errorf("Expected 3 events from an earlier date, got: %v", got)
	}
}

func TestListEventsInvalidParameters(t *testing.T) {
	ts := newTestServer(t, ServerOptions{})

	tests := []struct {
		name     string
		path     string
		expected int
	}{
		{"unknown category", "/api/eventos?categoria=astrologia", http.StatusBadRequest},
		{"bad date", "/api/eventos?desde=15-07-2025", http.StatusBadRequest},
		{"limit too large", "/api/eventos?limite=5000", http.StatusBadRequest},
		{"limit not a number", "/api/eventos?limite=many", http.StatusBadRequest},
		{"unknown source", "/api/eventos?fuente=atlantis", http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := ts.do("GET", tt.path, nil, "")
			if w.Code != tt.expected {
				t.Errorf("Expected status %d, got: %d", tt.expected, w.Code)
			}
			if _, ok := decode(t, w)["error"]; !ok {
				t.Error("Expected error field in response")
			}
		})
	}
}

func TestGetEvent(t *testing.T) {
	ts := newTestServer(t, ServerOptions{})
	ev := ts.insertEvent(t, "Cine de verano", daysFromNow(3), event.CategoryCinema)

	w := ts.do("GET", "/api/eventos/"+ev.ID, nil, "")
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got: %d", w.Code)
	}
	if decode(t, w)["precio"] != event.FreePrice {
		t.Errorf("Expected price in response, got: %s", w.Body.String())
	}

	if err := ts.events.Deactivate(ev.ID); err != nil {
		t.Fatal(err)
	}
	if w := ts.do("GET", "/api/eventos/"+ev.ID, nil, ""); w.Code != http.StatusNotFound {
		t.Errorf("Expected inactive event to be hidden, got: %d", w.Code)
	}
	if w := ts.do("GET", "/api/eventos/missing", nil, ""); w.Code != http.StatusNotFound {
		t.Errorf("Expected status 404, got: %d", w.Code)
	}
}

func TestEventsFeed(t *testing.T) {
	ts := newTestServer(t, ServerOptions{})
	ts.insertEvent(t, "Taller & charla", daysFromNow(1), event.CategoryTraining)

	w := ts.do("GET", "/api/eventos/rss", nil, "")
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got: %d", w.Code)
	}
	if !strings.HasPrefix(w.Header().Get("Content-Type"), "application/rss+xml") {
		t.Errorf("Expected RSS content type, got: %s", w.Header().Get("Content-Type"))
	}
	if w.Header().Get("X-Feed-Items") != "1" {
		t.Errorf("Expected 1 feed item, got: %s", w.Header().Get("X-Feed-Items"))
	}
	if !strings.Contains(w.Body.String(), "<title>Taller &amp; charla</title>") {
		t.Error("Expected escaped event title in feed")
	}
}

func TestListCategories(t *testing.T) {
	ts := newTestServer(t, ServerOptions{})
	ts.insertEvent(t, "Concierto", daysFromNow(5), event.CategoryCulture)
	ts.insertEvent(t, "Exposición", daysFromNow(6), event.CategoryCulture)

	w := ts.do("GET", "/api/categorias", nil, "")
	categories := decode(t, w)["categorias"].([]any)
	if len(categories) != len(event.Categories) {
		t.Fatalf("Expected every category listed, got: %d", len(categories))
	}

	first := categories[0].(map[string]any)
	if first["nombre"] != event.CategoryCulture || first["eventos"] != float64(2) {
		t.Errorf("Expected 2 culture events, got: %v", first)
	}
	last := categories[len(categories)-1].(map[string]any)
	if last["eventos"] != float64(0) {
		t.Errorf("Expected empty category to report 0, got: %v", last)
	}
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t, ServerOptions{})

	w := ts.do("GET", "/api/health", nil, "")
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got: %d", w.Code)
	}

	body := decode(t, w)
	if body["status"] != "ok" || body["loaded_definitions"] != float64(1) || body["sources"] != float64(1) {
		t.Errorf("Unexpected health response: %v", body)
	}
}

func TestHealthDatabaseDown(t *testing.T) {
	ts := newTestServer(t, ServerOptions{})
	ts.db.Close()

	w := ts.do("GET", "/api/health", nil, "")
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("Expected status 503, got: %d", w.Code)
	}
	if decode(t, w)["status"] != "degraded" {
		t.Errorf("Expected degraded status, got: %s", w.Body.String())
	}
}
