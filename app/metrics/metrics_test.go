package metrics

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestHandlerExposesRecordedMetrics(t *testing.T) {
	RecordRun("ssreyes", "success", 2*time.Second)
	RecordEvents("ssreyes", "new", 3)
	RecordEvents("ssreyes", "dropped", 0)
	ObserveLLMRequest("openai", "success", 500*time.Millisecond)
	RecordAPIRequest("GET", "/api/eventos", 200, 10*time.Millisecond)
	SetQueueDepth(4)

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body, err := io.ReadAll(rec.Body)
	if err != nil {
		t.Fatal(err)
	}
	text := string(body)

	expected := []string{
		`bulletin_runs_total{source="ssreyes",status="success"} 1`,
		`bulletin_events_total{classification="new",source="ssreyes"} 3`,
		`bulletin_llm_requests_total{outcome="success",provider="openai"} 1`,
		`bulletin_api_requests_total{method="GET",path="/api/eventos",status="200"} 1`,
		`bulletin_task_queue_depth 4`,
	}
	for _, line := range expected {
		if !strings.Contains(text, line) {
			t.Errorf("Expected metrics output to contain %s", line)
		}
	}

	if strings.Contains(text, `classification="dropped"`) {
		t.Error("Expected zero counts not to create a series")
	}
}
