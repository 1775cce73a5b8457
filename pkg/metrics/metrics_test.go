package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestCollectorCounts(t *testing.T) {
	c := NewCollector("social-orchestrator", "test")

	c.PipelineRun("posted")
	c.PipelineRun("posted")
	c.PipelineRun("error")
	c.AssetsUploaded(3)
	c.AssetsUploaded(0)
	c.PublishResult("instagram", "success")
	c.ObserveStage("generate", 120*time.Millisecond)
	c.ObserveHTTP(http.MethodPost, "/api/orchestrate-content", 200, 10*time.Millisecond)

	if got := testutil.ToFloat64(c.pipelineRuns.WithLabelValues("posted")); got != 2 {
		t.Fatalf("posted runs: got %v", got)
	}
	if got := testutil.ToFloat64(c.pipelineRuns.WithLabelValues("error")); got != 1 {
		t.Fatalf("error runs: got %v", got)
	}
	if got := testutil.ToFloat64(c.assetsUploaded); got != 3 {
		t.Fatalf("assets uploaded: got %v", got)
	}
	if got := testutil.ToFloat64(c.publishResults.WithLabelValues("instagram", "success")); got != 1 {
		t.Fatalf("publish results: got %v", got)
	}
	if got := testutil.CollectAndCount(c.stageDuration); got != 1 {
		t.Fatalf("stage series: got %d", got)
	}
}

func TestHandlerExposesRegistry(t *testing.T) {
	c := NewCollector("social-orchestrator", "v1")
	c.PipelineRun("generated")

	srv := httptest.NewServer(c.Handler())
	defer srv.Close()
	resp, err := http.Get(srv.URL)
	if err != nil {
		t.Fatalf("get metrics: %v", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	text := string(body)
	if !strings.Contains(text, `social_orchestrator_pipeline_runs_total{status="generated"} 1`) {
		t.Fatalf("missing pipeline metric in output:\n%s", text)
	}
	if !strings.Contains(text, `social_orchestrator_service_info{version="v1"} 1`) {
		t.Fatalf("missing service info in output")
	}
}

func TestNilCollectorIsNoop(t *testing.T) {
	var c *Collector
	c.PipelineRun("posted")
	c.ObserveStage("render", time.Second)
	c.AssetsUploaded(1)
	c.PublishResult("threads", "failure")
	c.ObserveHTTP("GET", "/healthz", 200, time.Millisecond)
}
