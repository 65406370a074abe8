package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"slices"
	"strconv"
	"time"

	"rockguard/internal/artifact"
	"rockguard/internal/config"
	"rockguard/internal/engine"
	"rockguard/internal/features"
	"rockguard/internal/ingest"
	"rockguard/internal/metrics"
	"rockguard/internal/model"
	"rockguard/internal/risk"
	"rockguard/internal/storage"
)

// Deps are the collaborators the HTTP surface reads from. Store, Model and
// Metrics may be nil.
type Deps struct {
	Config    *config.Config
	Engine    *engine.Engine
	Simulator *ingest.Simulator
	Store     storage.Store
	Model     *artifact.Artifact
	Metrics   *metrics.Recorder
	Logger    *slog.Logger
	Version   string
}

type Server struct {
	Deps
}

type statusResponse struct {
	Status  string       `json:"status"`
	Time    string       `json:"time"`
	Version string       `json:"version"`
	Model   *modelStatus `json:"model,omitempty"`
	Engine  engine.Stats `json:"engine"`
	Ingest  ingestStatus `json:"ingest"`
	API     apiStatus    `json:"api"`
	Storage bool         `json:"storage"`
	Publish bool         `json:"publish"`
}

type modelStatus struct {
	TrainedAt     string                   `json:"trained_at"`
	Samples       int                      `json:"samples"`
	Trees         int                      `json:"trees"`
	Features      []string                 `json:"features"`
	Metrics       artifact.TrainingMetrics `json:"metrics"`
	Normalization string                   `json:"normalization"`
}

type ingestStatus struct {
	Kafka     bool `json:"kafka"`
	TCPStream bool `json:"tcp_stream"`
	FileTail  bool `json:"file_tail"`
	Simulator bool `json:"simulator"`
}

type apiStatus struct {
	Enabled bool   `json:"enabled"`
	Addr    string `json:"addr"`
}

func NewServer(deps Deps) *Server {
	if deps.Config == nil {
		deps.Config = config.DefaultConfig()
	}
	if deps.Simulator == nil {
		deps.Simulator = ingest.NewSimulator(nil)
	}
	return &Server{Deps: deps}
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/get_data", s.handleGetData)
	mux.HandleFunc("/risk", s.handleRisk)
	mux.HandleFunc("/reports", s.handleReports)
	mux.HandleFunc("/thresholds", s.handleThresholds)
	mux.HandleFunc("/status", s.handleStatus)
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	mux.Handle("/metrics", s.Metrics.Handler())
	mux.HandleFunc("/admin/clear", s.handleClear)
	return withCORS(s.Config.API.CORSOrigins, mux)
}

func Start(ctx context.Context, deps Deps) *http.Server {
	server := NewServer(deps)
	logger := server.Logger
	current := server.Config.API
	if !current.Enabled {
		if logger != nil {
			logger.Info("api disabled")
		}
		return nil
	}
	if logger != nil {
		logger.Info("api enabled", "addr", current.Addr)
	}
	httpServer := &http.Server{
		Addr:              current.Addr,
		Handler:           server.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		<-ctx.Done()
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = httpServer.Shutdown(ctxShutdown)
	}()
	go func() {
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			if logger != nil {
				logger.Error("api server error", "err", err)
			}
		}
	}()
	return httpServer
}

// handleGetData scores a simulated reading and returns the bare report.
func (s *Server) handleGetData(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	rec, err := s.Engine.Process(r.Context(), s.Simulator.Next(), ingest.SourceSimulator)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rec.Report)
}

func (s *Server) handleRisk(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, 1<<20))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	reading, err := features.ParseJSON(body)
	if err != nil {
		writeError(w, err)
		return
	}
	rec, err := s.Engine.Process(r.Context(), reading, "api")
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// handleReports lists records newest first, from memory or from storage.
func (s *Server) handleReports(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	q := r.URL.Query()
	limit := 0
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		limit = n
	}
	var list []model.ReportRecord
	switch {
	case q.Get("persisted") == "true":
		if s.Store == nil {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "storage disabled"})
			return
		}
		var err error
		list, err = s.Store.ListReports(r.Context(), limit)
		if err != nil {
			if s.Logger != nil {
				s.Logger.Error("list reports failed", "err", err)
			}
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
	case q.Get("since") != "":
		ts, err := time.Parse(time.RFC3339, q.Get("since"))
		if err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		list = s.Engine.History().Since(ts)
		slices.Reverse(list)
	default:
		list = s.Engine.History().List(limit)
		slices.Reverse(list)
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"reports": list,
		"count":   len(list),
	})
}

func (s *Server) handleThresholds(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"thresholds": risk.Thresholds()})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	cfg := s.Config
	resp := statusResponse{
		Status:  "ok",
		Time:    time.Now().UTC().Format(time.RFC3339Nano),
		Version: s.Version,
		Engine:  s.Engine.Stats(),
		Ingest: ingestStatus{
			Kafka:     cfg.Ingest.Kafka.Enabled,
			TCPStream: cfg.Ingest.TCPStream.Enabled,
			FileTail:  cfg.Ingest.FileTail.Enabled,
			Simulator: cfg.Simulation.Enabled,
		},
		API:     apiStatus{Enabled: cfg.API.Enabled, Addr: cfg.API.Addr},
		Storage: s.Store != nil,
		Publish: cfg.Publish.Kafka.Enabled,
	}
	if a := s.Model; a != nil && a.Model != nil {
		resp.Model = &modelStatus{
			TrainedAt:     a.TrainedAt.Format(time.RFC3339),
			Samples:       a.Samples,
			Trees:         len(a.Model.Trees),
			Features:      a.Features,
			Metrics:       a.Metrics,
			Normalization: cfg.Model.Normalization,
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleClear(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	s.Engine.Reset()
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	var inv *features.InvalidInputError
	if errors.As(err, &inv) {
		status = http.StatusBadRequest
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
