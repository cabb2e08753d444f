package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"

	"github.com/ahcip/adjudication/adjudicate"
	"github.com/ahcip/adjudication/claims"
	"github.com/ahcip/adjudication/condition"
	"github.com/ahcip/adjudication/feeschedule"
	"github.com/ahcip/adjudication/internal/logger"
	"github.com/ahcip/adjudication/rules"
)

type Server struct {
	db     *sql.DB
	rules  *rules.Service
	claims claims.Repository
	engine *adjudicate.Service
	router *chi.Mux
}

// Config is read from the environment in main. An empty DatabaseURL runs the
// server fully in memory, which is what the tests use.
type Config struct {
	DatabaseURL string
	RedisURL    string
	EvalTimeout time.Duration
}

func NewServer(cfg Config) (*Server, error) {
	var (
		db        *sql.DB
		ruleStore rules.Store
		claimRepo claims.Repository
		feeStore  feeschedule.Store
		audit     adjudicate.AuditSink
	)

	if cfg.DatabaseURL != "" {
		var err error
		db, err = sql.Open("postgres", cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("failed to open database: %w", err)
		}
		if err := db.Ping(); err != nil {
			return nil, fmt.Errorf("failed to ping database: %w", err)
		}
		ruleStore = rules.NewPostgresStore(db)
		claimRepo = claims.NewInMemoryRepository()
		feeStore = feeschedule.NewPostgresStore(db)
		audit = adjudicate.NewPostgresSink(db)
	} else {
		ruleStore = rules.NewInMemoryStore()
		claimRepo = claims.NewInMemoryRepository()
		feeStore = feeschedule.NewInMemoryStore()
		audit = adjudicate.NewJSONLinesSink(os.Stdout)
	}

	var cache rules.Cache
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("invalid REDIS_URL: %w", err)
		}
		cache = rules.NewRedisCache(redis.NewClient(opts), rules.DefaultCacheConfig())
	} else {
		cache = rules.NewInMemoryCache(rules.DefaultCacheConfig())
	}

	ruleSvc := rules.NewService(ruleStore, cache)
	engine := adjudicate.NewService(ruleSvc, claimRepo, adjudicate.Config{
		Fees:        feeStore,
		Audit:       audit,
		Notifier:    adjudicate.NewLogNotifier(logger.Logger),
		Logger:      logger.Logger,
		EvalTimeout: cfg.EvalTimeout,
	})

	s := &Server{
		db:     db,
		rules:  ruleSvc,
		claims: claimRepo,
		engine: engine,
	}
	s.setupRoutes()
	return s, nil
}

func (s *Server) setupRoutes() {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Get("/api/v1/health", s.handleHealth)
	r.Get("/api/v1/metrics", s.handleMetrics)

	r.Post("/api/v1/claims/{claimId}/adjudicate", s.handleAdjudicate)

	r.Route("/api/v1/rules", func(r chi.Router) {
		r.Get("/", s.handleListRules)
		r.Post("/", s.handleCreateRule)
		r.Post("/test", s.handleTestRules)

		r.Route("/{ruleId}", func(r chi.Router) {
			r.Get("/", s.handleGetRule)
			r.Put("/", s.handleUpdateRule)
			r.Delete("/", s.handleDeactivateRule)
			r.Get("/versions", s.handleListVersions)
			r.Post("/rollback", s.handleRollback)
		})
	})

	s.router = r
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.db != nil {
		if err := s.db.Ping(); err != nil {
			respondJSON(w, http.StatusServiceUnavailable, map[string]string{
				"status": "unhealthy",
				"error":  err.Error(),
			})
			return
		}
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]int64{
		"evaluations_total":     logger.TotalEvaluations.Load(),
		"denials_total":         logger.TotalDenials.Load(),
		"flags_total":           logger.TotalFlags.Load(),
		"dry_runs_total":        logger.TotalDryRuns.Load(),
		"timeouts_total":        logger.TotalTimeouts.Load(),
		"lock_contention_total": logger.TotalLockContention.Load(),
		"errors_total":          logger.TotalErrors.Load(),
		"warnings_total":        logger.TotalWarnings.Load(),
	})
}

func (s *Server) handleAdjudicate(w http.ResponseWriter, r *http.Request) {
	claimID, err := uuid.Parse(chi.URLParam(r, "claimId"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid claim id", err)
		return
	}

	var req AdjudicateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}
	asOf, err := parseDate(req.AsOfDate)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid asOfDate", err)
		return
	}

	outcome, err := s.engine.Adjudicate(r.Context(), claimID, asOf, req.DryRun)
	if err != nil {
		s.respondEngineError(w, err)
		return
	}

	logger.CountEvaluation(string(outcome.Status), outcome.DryRun)
	respondJSON(w, http.StatusOK, outcome)
}

func (s *Server) handleTestRules(w http.ResponseWriter, r *http.Request) {
	var req TestRulesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}
	serviceDate, err := parseDate(req.ServiceDate)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid serviceDate", err)
		return
	}

	ruleIDs := make([]uuid.UUID, 0, len(req.RuleIDs))
	for _, raw := range req.RuleIDs {
		id, err := uuid.Parse(raw)
		if err != nil {
			respondError(w, http.StatusBadRequest, fmt.Sprintf("invalid rule id %q", raw), err)
			return
		}
		ruleIDs = append(ruleIDs, id)
	}

	lines := make([]claims.ServiceLine, 0, len(req.Lines))
	for _, l := range req.Lines {
		lines = append(lines, l.toServiceLine())
	}
	synthetic := claims.Synthetic(serviceDate, lines, req.Attributes)

	outcome, err := s.engine.TestRules(r.Context(), ruleIDs, synthetic, serviceDate)
	if err != nil {
		s.respondEngineError(w, err)
		return
	}

	logger.CountEvaluation(string(outcome.Status), true)
	respondJSON(w, http.StatusOK, outcome)
}

func (s *Server) handleCreateRule(w http.ResponseWriter, r *http.Request) {
	var req CreateRuleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}

	rule, err := req.toRule()
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid condition", err)
		return
	}
	created, err := s.rules.Create(r.Context(), rule)
	if err != nil {
		respondError(w, http.StatusBadRequest, "failed to create rule", err)
		return
	}
	respondJSON(w, http.StatusCreated, created)
}

func (s *Server) handleListRules(w http.ResponseWriter, r *http.Request) {
	// Codes are unique, so ?code= is a point lookup rather than a filter.
	if code := r.URL.Query().Get("code"); code != "" {
		rule, err := s.rules.GetByCode(r.Context(), code)
		if errors.Is(err, rules.ErrNotFound) {
			respondError(w, http.StatusNotFound, "rule not found", nil)
			return
		}
		if err != nil {
			respondError(w, http.StatusInternalServerError, "failed to get rule", err)
			return
		}
		respondJSON(w, http.StatusOK, map[string]any{"rules": []*rules.Rule{rule}})
		return
	}

	f := rules.Filter{}
	if t := r.URL.Query().Get("type"); t != "" {
		typ := rules.Type(t)
		f.Type = &typ
	}
	if c := r.URL.Query().Get("category"); c != "" {
		f.Category = c
	}
	if a := r.URL.Query().Get("active"); a != "" {
		active := a == "true"
		f.IsActive = &active
	}

	list, err := s.rules.List(r.Context(), f)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to list rules", err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"rules": list})
}

func (s *Server) handleGetRule(w http.ResponseWriter, r *http.Request) {
	ruleID, err := uuid.Parse(chi.URLParam(r, "ruleId"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid rule id", err)
		return
	}

	rule, err := s.rules.Get(r.Context(), ruleID)
	if errors.Is(err, rules.ErrNotFound) {
		respondError(w, http.StatusNotFound, "rule not found", nil)
		return
	}
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to get rule", err)
		return
	}
	respondJSON(w, http.StatusOK, rule)
}

func (s *Server) handleUpdateRule(w http.ResponseWriter, r *http.Request) {
	ruleID, err := uuid.Parse(chi.URLParam(r, "ruleId"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid rule id", err)
		return
	}

	var req UpdateRuleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}

	current, err := s.rules.Get(r.Context(), ruleID)
	if errors.Is(err, rules.ErrNotFound) {
		respondError(w, http.StatusNotFound, "rule not found", nil)
		return
	}
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to get rule", err)
		return
	}

	rule, err := req.toRule()
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid condition", err)
		return
	}
	rule.ID = ruleID
	rule.Code = current.Code
	rule.CreatedAt = current.CreatedAt

	updated, err := s.rules.Update(r.Context(), rule, req.ExpectedVersion, req.ChangeDescription)
	if err != nil {
		s.respondRuleWriteError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, updated)
}

func (s *Server) handleRollback(w http.ResponseWriter, r *http.Request) {
	ruleID, err := uuid.Parse(chi.URLParam(r, "ruleId"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid rule id", err)
		return
	}

	var req RollbackRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}

	rolled, err := s.rules.Rollback(r.Context(), ruleID, req.TargetVersion, req.ExpectedVersion)
	if err != nil {
		s.respondRuleWriteError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, rolled)
}

func (s *Server) handleDeactivateRule(w http.ResponseWriter, r *http.Request) {
	ruleID, err := uuid.Parse(chi.URLParam(r, "ruleId"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid rule id", err)
		return
	}

	if err := s.rules.Deactivate(r.Context(), ruleID); err != nil {
		if errors.Is(err, rules.ErrNotFound) {
			respondError(w, http.StatusNotFound, "rule not found", nil)
			return
		}
		respondError(w, http.StatusInternalServerError, "failed to deactivate rule", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleListVersions(w http.ResponseWriter, r *http.Request) {
	ruleID, err := uuid.Parse(chi.URLParam(r, "ruleId"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid rule id", err)
		return
	}

	versions, err := s.rules.Versions(r.Context(), ruleID)
	if errors.Is(err, rules.ErrNotFound) {
		respondError(w, http.StatusNotFound, "rule not found", nil)
		return
	}
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to list versions", err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"versions": versions})
}

// respondEngineError maps adjudication failures onto HTTP statuses.
func (s *Server) respondEngineError(w http.ResponseWriter, err error) {
	var contention *adjudicate.LockContentionError
	switch {
	case errors.As(err, &contention):
		logger.CountLockContention()
		respondError(w, http.StatusConflict, "claim adjudication already in progress", err)
	case errors.Is(err, adjudicate.ErrEvaluationTimeout):
		logger.CountTimeout()
		respondError(w, http.StatusGatewayTimeout, "evaluation timed out", err)
	case errors.Is(err, adjudicate.ErrMissingRuleSet):
		respondError(w, http.StatusUnprocessableEntity, "no rule set configured", err)
	case errors.Is(err, claims.ErrNotFound), errors.Is(err, rules.ErrNotFound):
		respondError(w, http.StatusNotFound, "not found", err)
	default:
		logger.ErrorHttp5xx()
		respondError(w, http.StatusInternalServerError, "adjudication failed", err)
	}
}

// respondRuleWriteError maps rule mutation failures, with the versioned 409
// body for optimistic-concurrency conflicts.
func (s *Server) respondRuleWriteError(w http.ResponseWriter, err error) {
	var conflict *rules.ConflictError
	switch {
	case errors.As(err, &conflict):
		logger.WarnHttp4xx(http.StatusConflict)
		respondJSON(w, http.StatusConflict, ConflictResponse{
			Error:           "rule was modified by another request",
			ExpectedVersion: conflict.ExpectedVersion,
			CurrentVersion:  conflict.CurrentVersion,
		})
	case errors.Is(err, rules.ErrNotFound):
		respondError(w, http.StatusNotFound, "rule or version not found", nil)
	default:
		respondError(w, http.StatusBadRequest, "failed to save rule", err)
	}
}

func (r *CreateRuleRequest) toRule() (*rules.Rule, error) {
	cond, err := condition.Parse(r.Condition)
	if err != nil {
		return nil, err
	}

	active := true
	if r.IsActive != nil {
		active = *r.IsActive
	}
	return &rules.Rule{
		Name:                 r.Name,
		Description:          r.Description,
		Type:                 r.Type,
		Action:               r.Action,
		Condition:            cond,
		Adjustment:           r.Adjustment,
		Priority:             r.Priority,
		IsActive:             active,
		EffectiveFrom:        r.EffectiveFrom,
		EffectiveTo:          r.EffectiveTo,
		DenialReasonTemplate: r.DenialReasonTemplate,
		FlagReasonTemplate:   r.FlagReasonTemplate,
		Category:             r.Category,
		Tags:                 r.Tags,
	}, nil
}

func parseDate(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, fmt.Errorf("date is required")
	}
	if t, err := time.Parse("2006-01-02", s); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339, s)
}

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	respondJSON(w, status, resp)
}

func main() {
	cfg := Config{
		DatabaseURL: os.Getenv("DATABASE_URL"),
		RedisURL:    os.Getenv("REDIS_URL"),
	}
	if raw := os.Getenv("EVAL_TIMEOUT"); raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil {
			logger.Fatal("invalid EVAL_TIMEOUT", "value", raw, "error", err)
		}
		cfg.EvalTimeout = d
	}

	server, err := NewServer(cfg)
	if err != nil {
		logger.Fatal("failed to create server", "error", err)
	}
	if server.db != nil {
		defer server.db.Close()
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	httpServer := &http.Server{
		Addr:         ":" + port,
		Handler:      server,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server starting", "port", port)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server failed to start", "error", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("shutting down server")
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(ctx); err != nil {
		logger.Error("server shutdown error", "error", err)
	}
	if err := logger.Shutdown(ctx); err != nil {
		logger.Error("logger shutdown error", "error", err)
	}
}
