package api

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"log"
	"net/http"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/hariqueen/G2B-API/internal/bid"
	"github.com/hariqueen/G2B-API/internal/collect"
	"github.com/hariqueen/G2B-API/internal/prefs"
)

// NoticeLister reads the raw tender notice documents for the relay and
// search endpoints.
type NoticeLister interface {
	List(ctx context.Context) ([]map[string]any, error)
}

// SnapshotStore reads the grouped curated bid records.
type SnapshotStore interface {
	Snapshot(ctx context.Context) (bid.GroupedSnapshot, error)
}

// AnnotationStore reads and writes user annotations keyed by base bid ID.
type AnnotationStore interface {
	All(ctx context.Context) (map[string]bid.Annotation, error)
	SetDuration(ctx context.Context, id string, months int, now time.Time) error
}

// Collector runs a collection pass against the open API.
type Collector interface {
	Run(ctx context.Context, from, to time.Time) (collect.Stats, error)
	IncrementalFrom(ctx context.Context, fallback time.Time) time.Time
}

type Deps struct {
	Notices     NoticeLister // nil when the document store is unreachable
	Bids        SnapshotStore
	Annotations AnnotationStore
	Prefs       prefs.Store
	Collector   Collector
	Now         func() time.Time
}

type Server struct {
	Echo *echo.Echo

	notices     NoticeLister
	bids        SnapshotStore
	annotations AnnotationStore
	prefs       *prefs.Service
	collector   Collector
	now         func() time.Time

	// Background job tracking
	jobMu      sync.Mutex
	runningJob *backgroundJob
}

type backgroundJob struct {
	ID        string             `json:"id"`
	Status    string             `json:"status"` // running, completed, failed
	StartedAt time.Time          `json:"started_at"`
	EndedAt   time.Time          `json:"ended_at,omitempty"`
	Result    any                `json:"result,omitempty"`
	Error     string             `json:"error,omitempty"`
	Cancel    context.CancelFunc `json:"-"`
}

var (
	adminSecretOnce    sync.Once
	adminSecretRuntime string
	adminSecretErr     error
)

func NewServer(deps Deps) *Server {
	e := echo.New()
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())

	// CORS: allow frontend origins from env or default to localhost
	allowedOrigins := []string{"http://localhost:5173"}
	if extra := os.Getenv("CORS_ORIGINS"); extra != "" {
		for _, o := range strings.Split(extra, ",") {
			o = strings.TrimSpace(o)
			if o != "" {
				allowedOrigins = append(allowedOrigins, o)
			}
		}
	}
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: allowedOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut},
		AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization, "X-Admin-Secret"},
	}))

	now := deps.Now
	if now == nil {
		now = time.Now
	}

	s := &Server{
		Echo:        e,
		notices:     deps.Notices,
		bids:        deps.Bids,
		annotations: deps.Annotations,
		prefs:       prefs.NewService(deps.Prefs, now),
		collector:   deps.Collector,
		now:         now,
	}

	s.routes()
	return s
}

func (s *Server) routes() {
	// Legacy relay surface kept compatible with the frontend proxy.
	s.Echo.GET("/api/bids", s.handleRelayBids)
	s.Echo.GET("/api/health", s.handleHealth)

	api := s.Echo.Group("/api/v1")
	api.GET("/dashboard", s.handleDashboard)
	api.GET("/bids/search", s.handleSearchBids)
	api.PUT("/bids/:id/duration", s.handleSetDuration)
	api.GET("/collection-notice", s.handleCollectionNotice)
	api.POST("/collection-notice/dismiss", s.handleDismissNotice)

	admin := api.Group("/admin")
	admin.Use(s.adminMiddleware)
	admin.POST("/collect", s.handleTriggerCollect)
	admin.GET("/job/:id", s.handleJobStatus)
}

// handleRelayBids forwards the raw notice documents to the frontend. A
// document store that never initialized degrades to an empty list so the
// dashboard keeps rendering; a live store that fails to answer is a 500.
func (s *Server) handleRelayBids(c echo.Context) error {
	if s.notices == nil {
		return c.JSON(http.StatusOK, []map[string]any{})
	}

	docs, err := s.notices.List(c.Request().Context())
	if err != nil {
		c.Logger().Errorf("Failed to list notices: %v", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
	if docs == nil {
		docs = []map[string]any{}
	}
	return c.JSON(http.StatusOK, docs)
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]any{
		"status":    "ok",
		"datastore": s.notices != nil,
	})
}

// records loads the grouped snapshot plus annotations and recomputes the
// merged record set, predictions included.
func (s *Server) records(ctx context.Context) ([]bid.Record, error) {
	grouped, err := s.bids.Snapshot(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load bid snapshot: %w", err)
	}
	annotations, err := s.annotations.All(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load annotations: %w", err)
	}
	return bid.Recompute(bid.Snapshot{Grouped: grouped, Annotations: annotations}, s.now()), nil
}

func (s *Server) handleDashboard(c echo.Context) error {
	now := s.now()

	year := now.Year()
	if raw := strings.TrimSpace(c.QueryParam("year")); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1000 || parsed > 9999 {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid year"})
		}
		year = parsed
	}

	records, err := s.records(c.Request().Context())
	if err != nil {
		c.Logger().Errorf("Failed to build dashboard: %v", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Internal Server Error"})
	}

	return c.JSON(http.StatusOK, bid.Summarize(records, year, now))
}

func (s *Server) handleSearchBids(c echo.Context) error {
	criteria := bid.Criteria{
		Query:     c.QueryParam("q"),
		SearchOrg: c.QueryParam("search_org") == "true",
		Status:    c.QueryParam("status"),
		ReNotice:  c.QueryParam("re_notice"),
	}
	// The filter takes one query string, matched against the title and,
	// in org mode, the requesting org as well. Mixing q and org would need
	// two independent predicates, so the combination is rejected.
	if org := c.QueryParam("org"); org != "" {
		if criteria.Query != "" {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "use either q or org, not both"})
		}
		criteria.Query = org
		criteria.SearchOrg = true
	}
	if raw := strings.TrimSpace(c.QueryParam("year")); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid year"})
		}
		criteria.Year = parsed
	}
	if raw := strings.TrimSpace(c.QueryParam("min_budget")); raw != "" {
		parsed, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || parsed < 0 {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid min_budget"})
		}
		criteria.MinBudget = parsed
	}
	criteria.BudgetThreshold = c.QueryParam("budget_toggle") == "true"

	now := s.now()

	var records []bid.Record
	if s.notices != nil {
		docs, err := s.notices.List(c.Request().Context())
		if err != nil {
			c.Logger().Errorf("Failed to list notices for search: %v", err)
			return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Internal Server Error"})
		}
		annotations, err := s.annotations.All(c.Request().Context())
		if err != nil {
			c.Logger().Errorf("Failed to load annotations for search: %v", err)
			return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Internal Server Error"})
		}
		records = make([]bid.Record, 0, len(docs))
		for _, doc := range docs {
			records = append(records, bid.FromDocument(doc, annotations, now))
		}
	}

	filtered := bid.Filter(records, criteria, now)
	return c.JSON(http.StatusOK, map[string]any{
		"bids":  filtered,
		"stats": bid.SearchStats(filtered),
	})
}

type durationRequest struct {
	ServiceDurationMonths *int `json:"service_duration_months"`
}

func (s *Server) handleSetDuration(c echo.Context) error {
	id := strings.TrimSpace(c.Param("id"))
	if id == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "bid id required"})
	}

	var req durationRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request"})
	}
	if req.ServiceDurationMonths == nil || *req.ServiceDurationMonths < 0 {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "service_duration_months must be a non-negative integer"})
	}

	// Writes against a prediction row land on its base record.
	baseID := bid.BaseID(id)
	if err := s.annotations.SetDuration(c.Request().Context(), baseID, *req.ServiceDurationMonths, s.now()); err != nil {
		c.Logger().Errorf("Failed to set duration for %s: %v", baseID, err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to save duration"})
	}

	return c.JSON(http.StatusOK, map[string]any{
		"id":                      baseID,
		"service_duration_months": *req.ServiceDurationMonths,
	})
}

func (s *Server) handleCollectionNotice(c echo.Context) error {
	show, until := s.prefs.ShouldShow(c.Request().Context())
	resp := map[string]any{"show": show}
	if !until.IsZero() {
		resp["dismissed_until"] = until.Format(time.RFC3339)
	}
	return c.JSON(http.StatusOK, resp)
}

type dismissRequest struct {
	Days int `json:"days"`
}

func (s *Server) handleDismissNotice(c echo.Context) error {
	req := dismissRequest{Days: 7}
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request"})
	}
	if req.Days <= 0 {
		req.Days = 7
	}

	until, err := s.prefs.Dismiss(c.Request().Context(), req.Days)
	if err != nil {
		c.Logger().Errorf("Failed to dismiss collection notice: %v", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to save preference"})
	}

	return c.JSON(http.StatusOK, map[string]any{
		"dismissed_until": until.Format(time.RFC3339),
	})
}

func (s *Server) handleTriggerCollect(c echo.Context) error {
	if s.collector == nil {
		return c.JSON(http.StatusServiceUnavailable, map[string]string{"error": "Collector is not configured"})
	}

	// Resolve the window before claiming the job slot: the incremental
	// lookup is a store round-trip, and job polls must not block on it.
	now := s.now()
	from, to, err := s.collectWindow(c, now)
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}

	s.jobMu.Lock()
	if s.runningJob != nil && s.runningJob.Status == "running" {
		job := s.runningJob
		s.jobMu.Unlock()
		return c.JSON(http.StatusConflict, map[string]any{
			"error":  "A collection job is already running",
			"job_id": job.ID,
		})
	}

	// context.WithoutCancel detaches from HTTP lifecycle but preserves
	// trace values. We add our own timeout for safety.
	jobCtx, jobCancel := context.WithTimeout(
		context.WithoutCancel(c.Request().Context()), 30*time.Minute,
	)

	jobID := uuid.New().String()[:8]
	job := &backgroundJob{
		ID:        jobID,
		Status:    "running",
		StartedAt: now,
		Cancel:    jobCancel,
	}
	s.runningJob = job
	s.jobMu.Unlock()

	// Run in background goroutine — returns 202 immediately.
	go func() {
		defer jobCancel()

		stats, err := s.collector.Run(jobCtx, from, to)
		s.jobMu.Lock()
		defer s.jobMu.Unlock()

		job.EndedAt = time.Now()
		if err != nil {
			job.Status = "failed"
			job.Error = err.Error()
			log.Printf("[collect-job %s] failed: %v", jobID, err)
			return
		}
		job.Status = "completed"
		job.Result = stats
		log.Printf("[collect-job %s] completed: found=%d saved=%d curated=%d", jobID, stats.Found, stats.Saved, stats.Curated)
	}()

	return c.JSON(http.StatusAccepted, map[string]any{
		"message": "Collection job started",
		"job_id":  jobID,
		"poll":    fmt.Sprintf("/api/v1/admin/job/%s", jobID),
	})
}

// collectWindow resolves the requested collection range. Without explicit
// bounds the run is incremental from the newest stored notice.
func (s *Server) collectWindow(c echo.Context, now time.Time) (time.Time, time.Time, error) {
	to := now
	if raw := strings.TrimSpace(c.QueryParam("to")); raw != "" {
		parsed, err := time.Parse("2006-01-02", raw)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("invalid to date: %s", raw)
		}
		to = parsed.Add(24*time.Hour - time.Minute)
	}

	if raw := strings.TrimSpace(c.QueryParam("from")); raw != "" {
		from, err := time.Parse("2006-01-02", raw)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("invalid from date: %s", raw)
		}
		return from, to, nil
	}

	fallback := time.Date(now.Year(), 1, 1, 0, 0, 0, 0, now.Location())
	return s.collector.IncrementalFrom(c.Request().Context(), fallback), to, nil
}

func (s *Server) handleJobStatus(c echo.Context) error {
	queried := c.Param("id")
	s.jobMu.Lock()
	defer s.jobMu.Unlock()

	job := s.runningJob
	if job == nil || job.ID != queried {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "job not found"})
	}

	resp := map[string]any{
		"id":         job.ID,
		"status":     job.Status,
		"started_at": job.StartedAt,
	}
	if !job.EndedAt.IsZero() {
		resp["ended_at"] = job.EndedAt
		resp["duration"] = job.EndedAt.Sub(job.StartedAt).String()
	}
	if job.Result != nil {
		resp["result"] = job.Result
	}
	if job.Error != "" {
		resp["error"] = job.Error
	}

	return c.JSON(http.StatusOK, resp)
}

func (s *Server) Start(port string) error {
	return s.Echo.Start(":" + port)
}

func (s *Server) adminMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		secret, err := adminSecret()
		if err != nil {
			return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Server admin configuration error"})
		}

		// Check X-Admin-Secret header or Bearer token
		authHeader := c.Request().Header.Get("Authorization")
		adminHeader := c.Request().Header.Get("X-Admin-Secret")

		if adminHeader == secret {
			return next(c)
		}
		if len(authHeader) > 7 && strings.EqualFold(authHeader[:7], "Bearer ") {
			if authHeader[7:] == secret {
				return next(c)
			}
		}

		return c.JSON(http.StatusUnauthorized, map[string]string{"error": "Unauthorized admin access"})
	}
}

func adminSecret() (string, error) {
	adminSecretOnce.Do(func() {
		secret := strings.TrimSpace(os.Getenv("ADMIN_SECRET"))
		if secret != "" {
			adminSecretRuntime = secret
			return
		}

		buf := make([]byte, 48)
		if _, err := rand.Read(buf); err != nil {
			adminSecretErr = fmt.Errorf("failed to generate ADMIN_SECRET fallback: %w", err)
			return
		}

		adminSecretRuntime = base64.RawURLEncoding.EncodeToString(buf)
		log.Print("ADMIN_SECRET is not set; using ephemeral in-memory fallback secret")
	})

	if adminSecretErr != nil {
		return "", adminSecretErr
	}
	if adminSecretRuntime == "" {
		return "", fmt.Errorf("admin secret unavailable")
	}

	return adminSecretRuntime, nil
}
