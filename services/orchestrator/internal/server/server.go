package server

import (
	"encoding/json"
	"errors"
	"io"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"autogensocial/internal/ratelimit"
	"autogensocial/internal/util"
	"autogensocial/pkg/domain"
	"autogensocial/pkg/metrics"
	"autogensocial/pkg/queue"
	"autogensocial/services/orchestrator/internal/app"
)

// Config wires required dependencies for the HTTP server.
type Config struct {
	App *app.App
	// Queue enables the asynchronous job routes when set.
	Queue *queue.RedisJobQueue
	// Limiter enables per-brand rate limiting on orchestration routes when set.
	Limiter        *ratelimit.FixedWindowLimiter
	Metrics        *metrics.Collector
	TrustedProxies *util.TrustedProxies
}

// Server exposes HTTP endpoints for the orchestrator service.
type Server struct {
	app     *app.App
	queue   *queue.RedisJobQueue
	limiter *ratelimit.FixedWindowLimiter
	metrics *metrics.Collector
	proxies *util.TrustedProxies
	mux     *http.ServeMux
}

// New constructs the server with routes configured.
func New(cfg Config) (*Server, error) {
	if cfg.App == nil {
		return nil, errors.New("server: app is required")
	}
	s := &Server{
		app:     cfg.App,
		queue:   cfg.Queue,
		limiter: cfg.Limiter,
		metrics: cfg.Metrics,
		proxies: cfg.TrustedProxies,
		mux:     http.NewServeMux(),
	}
	s.routes()
	return s, nil
}

// Router returns the configured handler.
func (s *Server) Router() http.Handler {
	return util.WithRequestID(util.WithRequestLog("orchestrator", util.WithSecurityHeaders(util.WithRecover(util.WithCORS(s.mux)))))
}

func (s *Server) routes() {
	s.handle("/healthz", s.handleHealth)
	if s.metrics != nil {
		s.mux.Handle("/metrics", s.metrics.Handler())
	}

	s.handle("/api/orchestrate-content", s.handleOrchestrate)
	s.handle("/api/orchestrateContent", s.handleOrchestrate)
	if s.queue != nil {
		s.handle("/api/orchestrate-content/jobs", s.handleEnqueue)
		s.handle("/api/orchestrate-content/jobs/{jobId}", s.handleJob)
	}

	s.handle("/api/posts", s.handleListPosts)
	s.handle("/api/posts/{postId}", s.handleGetPost)
}

// handle registers h and records per-route request metrics.
func (s *Server) handle(pattern string, h http.HandlerFunc) {
	s.mux.HandleFunc(pattern, func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := util.NewStatusRecorder(w)
		h(rec, r)
		s.metrics.ObserveHTTP(r.Method, pattern, rec.Status(), time.Since(start))
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type orchestrateRequest struct {
	BrandID    string `json:"brandId"`
	TemplateID string `json:"templateId"`
}

type orchestrateResponse struct {
	PostID          string             `json:"postId"`
	Status          domain.PostStatus  `json:"status"`
	ContentResponse json.RawMessage    `json:"contentResponse,omitempty"`
	ImageURLs       []string           `json:"imageUrls,omitempty"`
	PostResult      *domain.PostResult `json:"postResult,omitempty"`
}

// readTarget takes brandId and templateId from the query first, then the JSON body.
// An unreadable body counts as empty.
func readTarget(r *http.Request) orchestrateRequest {
	q := r.URL.Query()
	req := orchestrateRequest{
		BrandID:    strings.TrimSpace(q.Get("brandId")),
		TemplateID: strings.TrimSpace(q.Get("templateId")),
	}
	if req.BrandID != "" && req.TemplateID != "" {
		return req
	}
	var body orchestrateRequest
	if r.Body != nil {
		_ = json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&body)
	}
	if req.BrandID == "" {
		req.BrandID = strings.TrimSpace(body.BrandID)
	}
	if req.TemplateID == "" {
		req.TemplateID = strings.TrimSpace(body.TemplateID)
	}
	return req
}

func (s *Server) handleOrchestrate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	target := readTarget(r)
	if target.BrandID == "" || target.TemplateID == "" {
		writeError(w, http.StatusBadRequest, app.ErrInvalidInput.Error())
		return
	}
	if !s.allowRate(w, r, target.BrandID) {
		return
	}

	post, err := s.app.Orchestrate(r.Context(), target.BrandID, target.TemplateID)
	if err != nil {
		s.writeOrchestrateError(w, r, post, err)
		return
	}
	writeJSON(w, http.StatusOK, orchestrateResponse{
		PostID:          post.ID,
		Status:          post.Status,
		ContentResponse: post.ContentResponse,
		ImageURLs:       post.ImageURLs,
		PostResult:      post.PostResult,
	})
}

func (s *Server) writeOrchestrateError(w http.ResponseWriter, r *http.Request, post domain.PostRecord, err error) {
	var stageErr *app.StageError
	switch {
	case errors.Is(err, app.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, app.ErrTemplateNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, app.ErrInvalidTemplate) && post.ID == "":
		writeErrorWithCode(w, http.StatusBadRequest, err.Error(), "TEMPLATE_INVALID", "")
	case errors.As(err, &stageErr):
		writeErrorWithCode(w, http.StatusInternalServerError, "Failed to generate content: "+stageErr.Err.Error(), "ORCHESTRATE_STAGE_FAILED", post.ID)
	default:
		util.LoggerFromContext(r.Context()).Error("orchestrate failed", "err", err)
		writeErrorWithCode(w, http.StatusInternalServerError, "internal server error", "SYSTEM_INTERNAL_ERROR", post.ID)
	}
}

func (s *Server) handleEnqueue(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	target := readTarget(r)
	if target.BrandID == "" || target.TemplateID == "" {
		writeError(w, http.StatusBadRequest, app.ErrInvalidInput.Error())
		return
	}
	if !s.allowRate(w, r, target.BrandID) {
		return
	}
	job, err := s.queue.Enqueue(r.Context(), target.BrandID, target.TemplateID)
	if err != nil {
		util.LoggerFromContext(r.Context()).Error("enqueue orchestration failed", "err", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	writeJSON(w, http.StatusAccepted, job)
}

func (s *Server) handleJob(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	job, ok, err := s.queue.GetJob(r.Context(), r.PathValue("jobId"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	if !ok {
		writeError(w, http.StatusNotFound, "job not found")
		return
	}
	writeJSON(w, http.StatusOK, job)
}

func (s *Server) handleGetPost(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	post, err := s.app.GetPost(r.Context(), r.PathValue("postId"), r.URL.Query().Get("brandId"))
	switch {
	case errors.Is(err, app.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, "brandId is required")
	case errors.Is(err, app.ErrPostNotFound):
		writeError(w, http.StatusNotFound, "post not found")
	case err != nil:
		writeError(w, http.StatusInternalServerError, "internal server error")
	default:
		writeJSON(w, http.StatusOK, post)
	}
}

func (s *Server) handleListPosts(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	posts, err := s.app.ListPosts(r.Context(), r.URL.Query().Get("brandId"), limit)
	switch {
	case errors.Is(err, app.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, "brandId is required")
	case err != nil:
		writeError(w, http.StatusInternalServerError, "internal server error")
	default:
		writeJSON(w, http.StatusOK, map[string]any{
			"items": posts,
			"count": len(posts),
		})
	}
}

// allowRate keys the limit by brand, or by client ip when no brand is known.
func (s *Server) allowRate(w http.ResponseWriter, r *http.Request, brandID string) bool {
	if s.limiter == nil {
		return true
	}
	key := "brand:" + brandID
	if brandID == "" {
		key = "ip:" + util.ClientIP(r, s.proxies)
	}
	decision := s.limiter.Allow(r.Context(), key)
	if decision.Allowed {
		return true
	}
	retry := int(math.Ceil(decision.RetryAfter.Seconds()))
	if retry < 1 {
		retry = 1
	}
	w.Header().Set("Retry-After", strconv.Itoa(retry))
	writeError(w, http.StatusTooManyRequests, "too many requests")
	return false
}

func methodNotAllowed(w http.ResponseWriter) {
	writeError(w, http.StatusMethodNotAllowed, "method not allowed")
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

type errorResponse struct {
	Error     string `json:"error"`
	Code      string `json:"code"`
	RequestID string `json:"requestId,omitempty"`
	PostID    string `json:"postId,omitempty"`
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeErrorWithCode(w, status, msg, errorCodeForOrchestrator(status, msg), "")
}

func writeErrorWithCode(w http.ResponseWriter, status int, msg, code, postID string) {
	writeJSON(w, status, errorResponse{
		Error:     msg,
		Code:      code,
		RequestID: strings.TrimSpace(w.Header().Get(util.RequestIDHeader)),
		PostID:    postID,
	})
}

func errorCodeForOrchestrator(status int, msg string) string {
	message := strings.ToLower(strings.TrimSpace(msg))
	switch {
	case message == "template not found":
		return "TEMPLATE_NOT_FOUND"
	case message == "post not found":
		return "POST_NOT_FOUND"
	case message == "job not found":
		return "JOB_NOT_FOUND"
	case message == "too many requests":
		return "SYSTEM_RATE_LIMITED"
	case message == "method not allowed":
		return "SYSTEM_METHOD_NOT_ALLOWED"
	}

	switch status {
	case http.StatusBadRequest:
		return "ORCHESTRATE_INVALID_REQUEST"
	case http.StatusNotFound:
		return "SYSTEM_NOT_FOUND"
	case http.StatusMethodNotAllowed:
		return "SYSTEM_METHOD_NOT_ALLOWED"
	case http.StatusTooManyRequests:
		return "SYSTEM_RATE_LIMITED"
	default:
		if status >= http.StatusInternalServerError {
			return "SYSTEM_INTERNAL_ERROR"
		}
		return "REQUEST_ERROR"
	}
}
