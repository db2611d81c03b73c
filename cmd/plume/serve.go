package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/mminer/plume/executor"
	"github.com/mminer/plume/internal/config"
	"github.com/mminer/plume/internal/format"
	"github.com/mminer/plume/language/lua"
	"github.com/mminer/plume/sandbox"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start HTTP server for script execution",
	Long: `Start an HTTP server that runs scripts on request.

Endpoints:
  POST   /execute   Run a script. Body: {"script": "...", "binding": "tbl",
                    "quota": 1000, "timeout": "2s",
                    "input": "<base64 msgpack>"} or "input_json": <any
                    JSON value> instead of "input". The quota is capped
                    by server.max_quota.
  GET    /health    Health check
  GET    /metrics   Prometheus metrics

Every response carries an X-Request-ID header.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().String("addr", "", "Address to listen on (default from config: :8080)")
	serveCmd.Flags().Bool("metrics", true, "Expose /metrics")
	serveCmd.Flags().StringSlice("precompile", nil, "Script file to compile at startup (repeatable)")
	rootCmd.AddCommand(serveCmd)
}

const requestIDHeader = "X-Request-ID"

type executeRequest struct {
	Script    string          `json:"script"`
	Binding   string          `json:"binding,omitempty"`
	Quota     *uint64         `json:"quota,omitempty"`
	Input     []byte          `json:"input,omitempty"`
	InputJSON json.RawMessage `json:"input_json,omitempty"`
	Timeout   string          `json:"timeout,omitempty"`
}

type executeResponse struct {
	RequestID  string          `json:"request_id"`
	Output     []byte          `json:"output,omitempty"`
	OutputJSON json.RawMessage `json:"output_json,omitempty"`
	Printed    string          `json:"printed,omitempty"`
	Steps      uint64          `json:"steps"`
	State      string          `json:"state"`
	DurationMs int64           `json:"duration_ms"`
	Error      string          `json:"error,omitempty"`
	Phase      string          `json:"phase,omitempty"`
	Kind       string          `json:"kind,omitempty"`
}

type server struct {
	exec     *executor.Executor
	guest    *lua.Lua
	sandbox  config.SandboxConfig
	maxBody  int64
	maxQuota uint64
	metrics  bool
	reg      *prometheus.Registry
	log      *zap.Logger
}

func newServer(c *config.Config, log *zap.Logger, precompile ...string) (*server, error) {
	reg := prometheus.NewRegistry()
	exec, guest, err := newExecutor(c, reg, precompile...)
	if err != nil {
		return nil, err
	}

	reg.MustRegister(
		collectors.NewGoCollector(),
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace: "plume",
			Subsystem: "lua",
			Name:      "cache_hits_total",
			Help:      "Compiled script cache hits.",
		}, func() float64 {
			hits, _ := guest.CacheStats()
			return float64(hits)
		}),
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace: "plume",
			Subsystem: "lua",
			Name:      "cache_misses_total",
			Help:      "Compiled script cache misses.",
		}, func() float64 {
			_, misses := guest.CacheStats()
			return float64(misses)
		}),
	)

	return &server{
		exec:     exec,
		guest:    guest,
		sandbox:  c.Sandbox,
		maxBody:  c.Server.MaxBodyBytes,
		maxQuota: c.Server.MaxQuota,
		metrics:  c.Server.Metrics,
		reg:      reg,
		log:      log,
	}, nil
}

func (s *server) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/execute", s.handleExecute)
	mux.HandleFunc("/health", s.handleHealth)
	if s.metrics {
		mux.Handle("/metrics", promhttp.HandlerFor(s.reg, promhttp.HandlerOpts{}))
	}
	return withRequestID(mux)
}

type requestIDKey struct{}

func withRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, id)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), requestIDKey{}, id)))
	})
}

func requestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

func (s *server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

func (s *server) handleExecute(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req executeRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, s.maxBody)).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	if req.Script == "" {
		http.Error(w, "script required", http.StatusBadRequest)
		return
	}

	input := sandbox.EmptyMap
	switch {
	case len(req.Input) > 0 && len(req.InputJSON) > 0:
		http.Error(w, "input and input_json are mutually exclusive", http.StatusBadRequest)
		return
	case len(req.Input) > 0:
		input = req.Input
	case len(req.InputJSON) > 0:
		data, err := format.ToWire(req.InputJSON, format.JSON)
		if err != nil {
			http.Error(w, fmt.Sprintf("invalid input_json: %v", err), http.StatusBadRequest)
			return
		}
		input = data
	}

	rc := s.sandbox.RunConfig()
	if req.Binding != "" {
		rc.Binding = req.Binding
	}
	if req.Quota != nil {
		rc.Quota = *req.Quota
	}
	if s.maxQuota > 0 && rc.Quota > s.maxQuota {
		rc.Quota = s.maxQuota
	}
	if req.Timeout != "" {
		d, err := time.ParseDuration(req.Timeout)
		if err != nil || d < 0 {
			http.Error(w, fmt.Sprintf("invalid timeout %q", req.Timeout), http.StatusBadRequest)
			return
		}
		rc.Timeout = d
	}

	id := requestID(r.Context())
	result := s.exec.Run(r.Context(), req.Script, rc.Binding, input, rc.Quota, runOptions(rc)...)

	resp := executeResponse{
		RequestID:  id,
		Printed:    result.Printed,
		Steps:      result.Steps,
		State:      result.State.String(),
		DurationMs: result.Duration.Milliseconds(),
	}
	if result.Error != nil {
		resp.Error = result.Error.Error()
		resp.Phase = string(result.Phase())
		resp.Kind = string(result.Kind())
		s.log.Info("execute failed",
			zap.String("request_id", id),
			zap.String("phase", resp.Phase),
			zap.String("kind", resp.Kind))
	} else {
		resp.Output = result.Output
		// Values JSON cannot represent (NaN, Inf) are only returned as msgpack.
		if out, err := format.FromWire(result.Output, format.JSON, true); err == nil {
			resp.OutputJSON = out
		}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

func runServe(cmd *cobra.Command, args []string) error {
	c := currentConfig()
	if addr, _ := cmd.Flags().GetString("addr"); addr != "" {
		c.Server.Addr = addr
	}
	if cmd.Flags().Changed("metrics") {
		c.Server.Metrics, _ = cmd.Flags().GetBool("metrics")
	}

	var scripts []string
	files, _ := cmd.Flags().GetStringSlice("precompile")
	for _, path := range files {
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		scripts = append(scripts, string(data))
	}

	s, err := newServer(c, logger, scripts...)
	if err != nil {
		return err
	}
	defer s.exec.Close()

	srv := &http.Server{
		Addr:              c.Server.Addr,
		Handler:           s.routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()
	logger.Info("plume server listening", zap.String("addr", c.Server.Addr))
	fmt.Fprintf(os.Stderr, "plume server listening on %s\n", c.Server.Addr)

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	logger.Info("shutting down")
	return srv.Shutdown(shutdownCtx)
}
