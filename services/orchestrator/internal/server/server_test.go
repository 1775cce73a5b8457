package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"autogensocial/internal/ratelimit"
	"autogensocial/pkg/ai"
	"autogensocial/pkg/domain"
	"autogensocial/pkg/metrics"
	"autogensocial/pkg/queue"
	"autogensocial/pkg/store"
	"autogensocial/services/orchestrator/internal/app"
)

type stubCompletion struct{ content string }

func (s stubCompletion) Complete(context.Context, ai.CompletionRequest) (string, error) {
	return s.content, nil
}

type stubRenderer struct{}

func (stubRenderer) Render(context.Context, domain.ImageTemplate, string) ([]byte, error) {
	return []byte("png"), nil
}

type stubObjects struct{}

func (stubObjects) Upload(_ context.Context, container, blob string, _ []byte, _ string) (string, error) {
	return "https://cdn.test/" + container + "/" + blob, nil
}

type testEnv struct {
	server *httptest.Server
	store  *store.MemoryStore
}

func newTestEnv(t *testing.T, content string, mutate func(*Config)) *testEnv {
	t.Helper()
	mem := store.NewMemoryStore()
	ctx := context.Background()
	if err := mem.SaveTemplate(ctx, domain.Template{
		ID:      "tpl-1",
		BrandID: "brand-1",
		Settings: domain.TemplateSettings{
			PromptTemplate: &domain.PromptTemplate{UserPrompt: "Write a quote"},
		},
	}); err != nil {
		t.Fatalf("save template: %v", err)
	}
	core, err := app.New(app.Config{
		Store:      mem,
		Completion: stubCompletion{content: content},
		Renderer:   stubRenderer{},
		Objects:    stubObjects{},
	})
	if err != nil {
		t.Fatalf("new app: %v", err)
	}
	cfg := Config{App: core}
	if mutate != nil {
		mutate(&cfg)
	}
	srv, err := New(cfg)
	if err != nil {
		t.Fatalf("new server: %v", err)
	}
	ts := httptest.NewServer(srv.Router())
	t.Cleanup(ts.Close)
	return &testEnv{server: ts, store: mem}
}

func postJSON(t *testing.T, url string, body string) (*http.Response, map[string]any) {
	t.Helper()
	resp, err := http.Post(url, "application/json", bytes.NewBufferString(body))
	if err != nil {
		t.Fatalf("post %s: %v", url, err)
	}
	defer resp.Body.Close()
	var out map[string]any
	_ = json.NewDecoder(resp.Body).Decode(&out)
	return resp, out
}

func TestOrchestrateRequiresIDs(t *testing.T) {
	env := newTestEnv(t, `{"quote":"q"}`, nil)

	resp, body := postJSON(t, env.server.URL+"/api/orchestrate-content?brandId=brand-1", `{}`)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
	if body["code"] != "ORCHESTRATE_INVALID_REQUEST" {
		t.Fatalf("code = %v", body["code"])
	}
	if body["requestId"] == "" || body["requestId"] == nil {
		t.Fatalf("request id missing from error body: %v", body)
	}
	posts, _ := env.store.ListPostsByBrand(context.Background(), "brand-1", 10)
	if len(posts) != 0 {
		t.Fatalf("no post record should exist, got %d", len(posts))
	}
}

func TestOrchestrateMergesQueryAndBody(t *testing.T) {
	env := newTestEnv(t, `{"quote":"q","comment":"c"}`, nil)

	resp, body := postJSON(t, env.server.URL+"/api/orchestrate-content?brandId=brand-1", `{"templateId":"tpl-1"}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, body=%v", resp.StatusCode, body)
	}
	if body["status"] != string(domain.StatusGenerated) || body["postId"] == "" {
		t.Fatalf("unexpected body: %v", body)
	}
	content, ok := body["contentResponse"].(map[string]any)
	if !ok || content["quote"] != "q" {
		t.Fatalf("contentResponse = %v", body["contentResponse"])
	}
	if _, ok := body["postResult"]; ok {
		t.Fatalf("postResult must be absent without publish: %v", body)
	}
}

func TestOrchestrateAliasRoute(t *testing.T) {
	env := newTestEnv(t, `{"quote":"q"}`, nil)
	resp, _ := postJSON(t, env.server.URL+"/api/orchestrateContent", `{"brandId":"brand-1","templateId":"tpl-1"}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
}

func TestOrchestrateTemplateNotFound(t *testing.T) {
	env := newTestEnv(t, `{"quote":"q"}`, nil)
	resp, body := postJSON(t, env.server.URL+"/api/orchestrate-content", `{"brandId":"brand-1","templateId":"nope"}`)
	if resp.StatusCode != http.StatusNotFound || body["code"] != "TEMPLATE_NOT_FOUND" {
		t.Fatalf("status=%d body=%v", resp.StatusCode, body)
	}
}

func TestOrchestrateStageFailureReturnsPostID(t *testing.T) {
	env := newTestEnv(t, "not json", nil)

	resp, body := postJSON(t, env.server.URL+"/api/orchestrate-content", `{"brandId":"brand-1","templateId":"tpl-1"}`)
	if resp.StatusCode != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", resp.StatusCode)
	}
	if body["code"] != "ORCHESTRATE_STAGE_FAILED" {
		t.Fatalf("code = %v", body["code"])
	}
	msg, _ := body["error"].(string)
	if !strings.HasPrefix(msg, "Failed to generate content: malformed content") {
		t.Fatalf("error = %q", msg)
	}
	postID, _ := body["postId"].(string)
	if postID == "" {
		t.Fatalf("postId missing: %v", body)
	}

	getResp, err := http.Get(env.server.URL + "/api/posts/" + postID + "?brandId=brand-1")
	if err != nil {
		t.Fatalf("get post: %v", err)
	}
	defer getResp.Body.Close()
	var post domain.PostRecord
	if err := json.NewDecoder(getResp.Body).Decode(&post); err != nil {
		t.Fatalf("decode post: %v", err)
	}
	if post.Status != domain.StatusError || post.Error == "" {
		t.Fatalf("stored post = %+v", post)
	}
}

func TestRoutesRejectWrongMethod(t *testing.T) {
	env := newTestEnv(t, `{}`, nil)
	resp, err := http.Get(env.server.URL + "/api/orchestrate-content")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Fatalf("status = %d, want 405", resp.StatusCode)
	}
}

func TestGetPostErrors(t *testing.T) {
	env := newTestEnv(t, `{}`, nil)
	for path, want := range map[string]int{
		"/api/posts/missing?brandId=brand-1": http.StatusNotFound,
		"/api/posts/missing":                 http.StatusBadRequest,
		"/api/posts":                         http.StatusBadRequest,
		"/api/posts?brandId=brand-1":         http.StatusOK,
	} {
		resp, err := http.Get(env.server.URL + path)
		if err != nil {
			t.Fatalf("get %s: %v", path, err)
		}
		resp.Body.Close()
		if resp.StatusCode != want {
			t.Fatalf("%s: status = %d, want %d", path, resp.StatusCode, want)
		}
	}
}

func newRedis(t *testing.T) *redis.Client {
	t.Helper()
	srv := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestOrchestrateRateLimitPerBrand(t *testing.T) {
	client := newRedis(t)
	limiter, err := ratelimit.NewFixedWindowLimiter(client, ratelimit.Options{Limit: 1, Window: time.Minute})
	if err != nil {
		t.Fatalf("new limiter: %v", err)
	}
	env := newTestEnv(t, `{"quote":"q"}`, func(c *Config) { c.Limiter = limiter })

	body := `{"brandId":"brand-1","templateId":"tpl-1"}`
	first, _ := postJSON(t, env.server.URL+"/api/orchestrate-content", body)
	if first.StatusCode != http.StatusOK {
		t.Fatalf("first request status = %d", first.StatusCode)
	}
	second, out := postJSON(t, env.server.URL+"/api/orchestrate-content", body)
	if second.StatusCode != http.StatusTooManyRequests || out["code"] != "SYSTEM_RATE_LIMITED" {
		t.Fatalf("second request status=%d body=%v", second.StatusCode, out)
	}
	if second.Header.Get("Retry-After") == "" {
		t.Fatalf("Retry-After header missing")
	}
	other, _ := postJSON(t, env.server.URL+"/api/orchestrate-content", `{"brandId":"brand-2","templateId":"tpl-1"}`)
	if other.StatusCode != http.StatusNotFound {
		t.Fatalf("other brand should not be limited, status = %d", other.StatusCode)
	}
}

func TestJobRoutes(t *testing.T) {
	client := newRedis(t)
	q, err := queue.NewRedisJobQueue(client, queue.RedisQueueConfig{Stream: "test:orchestrate"})
	if err != nil {
		t.Fatalf("new queue: %v", err)
	}
	env := newTestEnv(t, `{}`, func(c *Config) { c.Queue = q })

	resp, body := postJSON(t, env.server.URL+"/api/orchestrate-content/jobs", `{"brandId":"brand-1","templateId":"tpl-1"}`)
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	jobID, _ := body["id"].(string)
	if jobID == "" || body["status"] != queue.StatusQueued {
		t.Fatalf("unexpected job: %v", body)
	}

	getResp, err := http.Get(env.server.URL + "/api/orchestrate-content/jobs/" + jobID)
	if err != nil {
		t.Fatalf("get job: %v", err)
	}
	defer getResp.Body.Close()
	var job queue.JobStatus
	if err := json.NewDecoder(getResp.Body).Decode(&job); err != nil {
		t.Fatalf("decode job: %v", err)
	}
	if job.BrandID != "brand-1" || job.TemplateID != "tpl-1" {
		t.Fatalf("job = %+v", job)
	}

	missing, err := http.Get(env.server.URL + "/api/orchestrate-content/jobs/unknown")
	if err != nil {
		t.Fatalf("get missing job: %v", err)
	}
	missing.Body.Close()
	if missing.StatusCode != http.StatusNotFound {
		t.Fatalf("missing job status = %d", missing.StatusCode)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	collector := metrics.NewCollector("orchestrator", "test")
	env := newTestEnv(t, `{"quote":"q"}`, func(c *Config) { c.Metrics = collector })

	resp, _ := postJSON(t, env.server.URL+"/api/orchestrate-content", `{"brandId":"brand-1","templateId":"tpl-1"}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	mresp, err := http.Get(env.server.URL + "/metrics")
	if err != nil {
		t.Fatalf("get metrics: %v", err)
	}
	defer mresp.Body.Close()
	var buf bytes.Buffer
	_, _ = buf.ReadFrom(mresp.Body)
	if !strings.Contains(buf.String(), `orchestrator_http_requests_total{method="POST",route="/api/orchestrate-content",status="200"} 1`) {
		t.Fatalf("http metric missing:\n%s", buf.String())
	}
}
