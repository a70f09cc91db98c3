package http

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"vehicle-sense/gateway/internal/audit"
	"vehicle-sense/gateway/internal/domain"
	"vehicle-sense/gateway/internal/live"
	"vehicle-sense/gateway/internal/metrics"
	"vehicle-sense/gateway/internal/predict"
	"vehicle-sense/gateway/internal/routing"
	"vehicle-sense/gateway/internal/store"
)

// Server is the HTTP-facing orchestrator: it validates a request, resolves
// the route, calls the predictor, hands the audit record off, and answers.
// Requests share no mutable state beyond the store's append interface, so
// any number may run in parallel.
type Server struct {
	router    *mux.Router
	routes    *routing.Router
	predictor *predict.Client
	db        store.AuditStore
	recorder  *audit.Recorder
	redis     *store.RedisStore // nil when live state is disabled
	hub       *live.Hub
	auditSkip map[domain.Category]bool
}

type Deps struct {
	Routes    *routing.Router
	Predictor *predict.Client
	DB        store.AuditStore
	Recorder  *audit.Recorder
	Redis     *store.RedisStore
	Hub       *live.Hub
	// Categories whose predictions are served but not audited.
	AuditSkip []string
}

func NewServer(deps Deps) *Server {
	skip := make(map[domain.Category]bool, len(deps.AuditSkip))
	for _, c := range deps.AuditSkip {
		skip[domain.Category(c)] = true
	}

	s := &Server{
		router:    mux.NewRouter(),
		routes:    deps.Routes,
		predictor: deps.Predictor,
		db:        deps.DB,
		recorder:  deps.Recorder,
		redis:     deps.Redis,
		hub:       deps.Hub,
		auditSkip: skip,
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.HandleFunc("/healthz", s.handleHealth).Methods("GET")
	s.router.HandleFunc("/predict/{category}", s.handlePredict).Methods("POST")
	s.router.HandleFunc("/predict/{category}/latest", s.handleLatest).Methods("GET")
	s.router.HandleFunc("/audit", s.handleAudit).Methods("GET")
	s.router.HandleFunc("/live", s.handleLive).Methods("GET")
	s.router.Handle("/metrics", metrics.Handler()).Methods("GET")

	s.router.Use(loggingMiddleware)
}

// Router returns the configured router.
func (s *Server) Router() *mux.Router {
	return s.router
}

func (s *Server) handlePredict(w http.ResponseWriter, r *http.Request) {
	category := mux.Vars(r)["category"]

	route, err := s.routes.Resolve(category)
	if err != nil {
		metrics.RequestsTotal.WithLabelValues(category, metrics.OutcomeValidationFailed).Inc()
		respondError(w, http.StatusBadRequest, "unknown category: "+category)
		return
	}

	var body map[string]any
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		metrics.RequestsTotal.WithLabelValues(category, metrics.OutcomeValidationFailed).Inc()
		respondError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	reading, err := route.Validate(body)
	if err != nil {
		metrics.RequestsTotal.WithLabelValues(category, metrics.OutcomeValidationFailed).Inc()
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	result, err := s.predictor.Predict(r.Context(), route, reading)
	if err != nil {
		metrics.RequestsTotal.WithLabelValues(category, metrics.OutcomeBackendFailed).Inc()
		var be *domain.BackendError
		if errors.As(err, &be) {
			metrics.BackendFailures.WithLabelValues(category, string(be.Kind)).Inc()
			log.Printf("predict %s failed: %v", category, be)
			respondError(w, http.StatusBadGateway, be.Message())
			return
		}
		log.Printf("predict %s failed: %v", category, err)
		respondError(w, http.StatusBadGateway, category+" backend unavailable")
		return
	}

	metrics.RequestsTotal.WithLabelValues(category, metrics.OutcomeSucceeded).Inc()
	s.record(&domain.AuditRecord{
		ID:        uuid.NewString(),
		Category:  reading.Category,
		Input:     reading.Values,
		Decision:  result.Decision,
		Raw:       result.Raw,
		CreatedAt: time.Now().UTC(),
	})

	// The backend's body is forwarded unchanged.
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write(result.Raw)
}

// record hands the audit write off and publishes the prediction event. None
// of this can fail the client-visible request; the response has already
// been decided when record runs.
func (s *Server) record(rec *domain.AuditRecord) {
	if s.auditSkip[rec.Category] {
		metrics.AuditWrites.WithLabelValues(metrics.AuditSkipped).Inc()
	} else {
		s.recorder.Enqueue(rec)
	}

	s.hub.Publish(rec)

	if s.redis != nil {
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			if err := s.redis.PublishPrediction(ctx, rec); err != nil {
				log.Printf("prediction publish failed for %s: %v", rec.Category, err)
			}
		}()
	}
}

func (s *Server) handleLatest(w http.ResponseWriter, r *http.Request) {
	category := mux.Vars(r)["category"]

	if _, err := s.routes.Resolve(category); err != nil {
		respondError(w, http.StatusBadRequest, "unknown category: "+category)
		return
	}
	if s.redis == nil {
		respondError(w, http.StatusServiceUnavailable, "live state disabled")
		return
	}

	event, err := s.redis.LatestPrediction(r.Context(), domain.Category(category))
	if err != nil {
		log.Printf("latest prediction lookup failed for %s: %v", category, err)
		respondError(w, http.StatusInternalServerError, "live state unavailable")
		return
	}
	if event == nil {
		respondError(w, http.StatusNotFound, "no prediction recorded for "+category)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write(event)
}

func (s *Server) handleAudit(w http.ResponseWriter, r *http.Request) {
	q := store.AuditQuery{Limit: store.DefaultQueryLimit}

	if v := r.URL.Query().Get("category"); v != "" {
		if _, err := s.routes.Resolve(v); err != nil {
			respondError(w, http.StatusBadRequest, "unknown category: "+v)
			return
		}
		q.Category = domain.Category(v)
	}
	if v := r.URL.Query().Get("since"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			respondError(w, http.StatusBadRequest, "invalid since (use RFC3339)")
			return
		}
		q.Since = t
	}
	if v := r.URL.Query().Get("until"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			respondError(w, http.StatusBadRequest, "invalid until (use RFC3339)")
			return
		}
		q.Until = t
	}
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			respondError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		q.Limit = n
	}

	records, err := s.db.Query(r.Context(), q)
	if err != nil {
		log.Printf("audit query failed: %v", err)
		respondError(w, http.StatusInternalServerError, "audit query failed")
		return
	}
	if records == nil {
		records = []domain.AuditRecord{}
	}
	respondJSON(w, http.StatusOK, records)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	status := map[string]string{"status": "ok", "store": "ok"}
	code := http.StatusOK

	if err := s.db.Ping(ctx); err != nil {
		status["status"] = "degraded"
		status["store"] = "unreachable"
		code = http.StatusServiceUnavailable
	}
	if s.redis != nil {
		status["redis"] = "ok"
		if err := s.redis.Ping(ctx); err != nil {
			status["redis"] = "unreachable"
		}
	}

	respondJSON(w, code, status)
}
