// Package server exposes a fleet over a small JSON HTTP API. The API is a
// thin shell: request bodies map directly onto fleet operations and results
// are serialized task results.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/hupe1980/agentfleet"
	"github.com/hupe1980/agentfleet/core"
	"github.com/hupe1980/agentfleet/engine"
	"github.com/hupe1980/agentfleet/logging"
	"github.com/hupe1980/agentfleet/project"
)

const shutdownGrace = 10 * time.Second

// Options configure a Server.
type Options struct {
	// Logger receives request diagnostics.
	Logger *logging.FleetLogger
	// MetricsHandler serves GET /metrics. Defaults to promhttp.Handler.
	MetricsHandler http.Handler
}

// Server serves the fleet API.
type Server struct {
	fleet  *agentfleet.Fleet
	logger *logging.FleetLogger
	mux    *http.ServeMux
}

// New builds a server around a fleet.
func New(fleet *agentfleet.Fleet, optFns ...func(o *Options)) *Server {
	opts := Options{MetricsHandler: promhttp.Handler()}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Logger == nil {
		opts.Logger = logging.NewFleetLogger(nil)
	}

	s := &Server{
		fleet:  fleet,
		logger: opts.Logger.WithComponent("server"),
		mux:    http.NewServeMux(),
	}

	s.mux.HandleFunc("POST /api/tasks", s.handleTask)
	s.mux.HandleFunc("POST /api/batches", s.handleBatch)
	s.mux.HandleFunc("POST /api/projects", s.handleProject)
	s.mux.HandleFunc("GET /api/agents", s.handleAgents)
	s.mux.HandleFunc("GET /api/status", s.handleStatus)
	s.mux.HandleFunc("GET /healthz", s.handleHealthz)
	s.mux.Handle("GET /metrics", opts.MetricsHandler)

	return s
}

// Handler returns the API handler, for embedding into an existing server.
func (s *Server) Handler() http.Handler { return s.mux }

// Run serves the API on addr until ctx is cancelled, then drains in-flight
// requests before returning.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:        addr,
		Handler:     s.mux,
		BaseContext: func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("api listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

type taskRequest struct {
	Agent  string         `json:"agent"`
	Input  string         `json:"input"`
	Type   string         `json:"type"`
	Params map[string]any `json:"params"`
}

type batchRequest struct {
	Mode        string        `json:"mode"`
	MaxParallel int           `json:"max_parallel"`
	Tasks       []taskRequest `json:"tasks"`
}

type taskResultView struct {
	TaskID   string `json:"task_id"`
	Agent    string `json:"agent"`
	Status   string `json:"status"`
	Response string `json:"response,omitempty"`
	Error    string `json:"error,omitempty"`
	Elapsed  string `json:"elapsed"`
	Attempts int    `json:"attempts"`
}

func viewOf(r core.TaskResult) taskResultView {
	v := taskResultView{
		TaskID:   r.TaskID,
		Agent:    r.AgentName,
		Status:   string(r.Status),
		Response: r.Response,
		Elapsed:  r.Elapsed.String(),
		Attempts: r.Attempts,
	}
	if r.Err != nil {
		v.Error = r.Err.Error()
	}
	return v
}

func (tr taskRequest) toTask() (core.Task, error) {
	if tr.Agent == "" {
		return core.Task{}, core.NewError(core.ErrorTypeConfigInvalid, "agent is required")
	}
	if tr.Input == "" {
		return core.Task{}, core.NewError(core.ErrorTypeConfigInvalid, "input is required")
	}
	return core.NewTask(tr.Agent, tr.Input, func(o *core.TaskOptions) {
		if tr.Type != "" {
			o.Type = tr.Type
		}
		o.Params = tr.Params
	}), nil
}

func (s *Server) handleTask(w http.ResponseWriter, r *http.Request) {
	var req taskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}

	task, err := req.toTask()
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}

	result := s.fleet.Submit(r.Context(), task)
	s.writeJSON(w, http.StatusOK, viewOf(result))
}

func (s *Server) handleBatch(w http.ResponseWriter, r *http.Request) {
	var req batchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	if len(req.Tasks) == 0 {
		s.writeError(w, http.StatusBadRequest, errors.New("tasks must not be empty"))
		return
	}

	tasks := make([]core.Task, len(req.Tasks))
	for i, tr := range req.Tasks {
		task, err := tr.toTask()
		if err != nil {
			s.writeError(w, http.StatusBadRequest, err)
			return
		}
		tasks[i] = task
	}

	results := s.fleet.SubmitBatch(r.Context(), tasks, engine.ParseMode(req.Mode), func(o *engine.RunOptions) {
		o.MaxParallel = req.MaxParallel
	})

	views := make([]taskResultView, len(results))
	for i, res := range results {
		views[i] = viewOf(res)
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"mode": string(engine.ParseMode(req.Mode)), "results": views})
}

func (s *Server) handleProject(w http.ResponseWriter, r *http.Request) {
	var p project.Project
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}

	result, err := s.fleet.RunProject(r.Context(), p)
	if err != nil {
		status := http.StatusInternalServerError
		if core.IsErrorType(err, core.ErrorTypeConfigInvalid) {
			status = http.StatusBadRequest
		}
		s.writeError(w, status, err)
		return
	}

	stages := make([]map[string]any, len(result.Stages))
	for i, stage := range result.Stages {
		views := make([]taskResultView, len(stage.Results))
		for j, res := range stage.Results {
			views[j] = viewOf(res)
		}
		stages[i] = map[string]any{
			"name":    stage.Name,
			"elapsed": stage.Elapsed.String(),
			"results": views,
		}
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"name":    result.Name,
		"aborted": result.Aborted,
		"elapsed": result.Elapsed.String(),
		"stages":  stages,
	})
}

func (s *Server) handleAgents(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]any{"agents": s.fleet.Agents()})
}

// handleStatus probes every agent. Any unreachable agent turns the response
// into a 503 so load balancer checks can key off the status code alone.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	status := s.fleet.Status(r.Context())
	code := http.StatusOK
	if status.Unreachable > 0 {
		code = http.StatusServiceUnavailable
	}
	s.writeJSON(w, code, status)
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("encoding response failed", "error", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, code int, err error) {
	s.writeJSON(w, code, map[string]string{"error": err.Error()})
}
