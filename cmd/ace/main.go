// Command ace is the main entry point for the ACE knowledge-graph server.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/worldgraph/ace/internal/config"
	"github.com/worldgraph/ace/internal/eval"
	"github.com/worldgraph/ace/internal/health"
	"github.com/worldgraph/ace/internal/ingestion"
	"github.com/worldgraph/ace/internal/jobs"
	"github.com/worldgraph/ace/internal/mcpserver"
	"github.com/worldgraph/ace/internal/observe"
	"github.com/worldgraph/ace/internal/workflow"
	graphpg "github.com/worldgraph/ace/pkg/graph/postgres"
	"github.com/worldgraph/ace/pkg/llm"
	"github.com/worldgraph/ace/pkg/prompt"
	vectorpg "github.com/worldgraph/ace/pkg/vector/postgres"
)

func main() {
	os.Exit(run())
}

func run() int {
	// ── CLI flags ──────────────────────────────────────────────────────────────
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file")
	mode := flag.String("mode", "serve", `process mode: "serve" (HTTP ingestion/inference API), "mcp-serve" (MCP tool surface over stdio), or "eval" (run a golden dataset regression report)`)
	datasetPath := flag.String("dataset", "", `path to a golden dataset JSON file (required for -mode=eval)`)
	flag.Parse()

	// ── Load configuration ────────────────────────────────────────────────────
	cfg, err := config.Load(*configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "ace: config file %q not found — copy configs/example.yaml to get started\n", *configPath)
		} else {
			fmt.Fprintf(os.Stderr, "ace: %v\n", err)
		}
		return 1
	}

	// ── Logger ────────────────────────────────────────────────────────────────
	logLevel := new(slog.LevelVar)
	logLevel.Set(slogLevel(cfg.Server.LogLevel))
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel})))

	slog.Info("ace starting",
		"config", *configPath,
		"mode", *mode,
		"listen_addr", cfg.Server.ListenAddr,
		"log_level", cfg.Server.LogLevel,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── Observability ─────────────────────────────────────────────────────────
	shutdownObserve, err := observe.InitProvider(ctx, observe.ProviderConfig{ServiceName: "ace"})
	if err != nil {
		slog.Error("failed to initialise observability", "err", err)
		return 1
	}
	metrics := observe.DefaultMetrics()

	// ── Domain adapters ───────────────────────────────────────────────────────
	app, err := buildApp(ctx, cfg)
	if err != nil {
		slog.Error("failed to build application", "err", err)
		return 1
	}

	printStartupSummary(cfg)

	var (
		serveErr error
		exitCode int
	)
	switch *mode {
	case "mcp-serve":
		watcher := startConfigWatcher(*configPath, logLevel, app.workflow)
		slog.Info("serving MCP tools over stdio")
		srv := mcpserver.New(app.queue, app.tracker, app.workflow)
		serveErr = srv.Run(ctx)
		if watcher != nil {
			watcher.Stop()
		}
	case "serve":
		watcher := startConfigWatcher(*configPath, logLevel, app.workflow)
		serveErr = serveHTTP(ctx, cfg, app, metrics)
		if watcher != nil {
			watcher.Stop()
		}
	case "eval":
		close(app.stop)
		exitCode = runEval(ctx, cfg, app, *datasetPath)
	default:
		fmt.Fprintf(os.Stderr, "ace: unknown mode %q (want \"serve\", \"mcp-serve\", or \"eval\")\n", *mode)
		return 1
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := shutdownObserve(shutdownCtx); err != nil {
		slog.Error("observability shutdown error", "err", err)
	}

	if serveErr != nil && !errors.Is(serveErr, context.Canceled) && !errors.Is(serveErr, http.ErrServerClosed) {
		slog.Error("run error", "err", serveErr)
		return 1
	}
	if exitCode != 0 {
		return exitCode
	}
	slog.Info("goodbye")
	return 0
}

// application bundles the wired components shared across process modes.
type application struct {
	pipeline *ingestion.Pipeline
	queue    *jobs.Queue
	tracker  *jobs.Tracker
	workflow *workflow.Workflow
	provider llm.Provider
	prompts  *prompt.Registry
	stop     chan struct{}
}

// buildApp constructs the graph/vector/LM adapters and the ingestion queue
// and inference workflow on top of them.
func buildApp(ctx context.Context, cfg *config.Config) (*application, error) {
	reg := config.DefaultRegistry()
	provider, err := reg.CreateLM(cfg.LM)
	if err != nil {
		return nil, fmt.Errorf("create lm provider: %w", err)
	}

	prompts, err := prompt.Load()
	if err != nil {
		return nil, fmt.Errorf("load prompts: %w", err)
	}

	graphStore, err := graphpg.NewStore(ctx, cfg.Graph.URI)
	if err != nil {
		return nil, fmt.Errorf("connect graph store: %w", err)
	}

	vectorStore, err := vectorpg.NewStore(ctx, cfg.Vector.URL, vectorDimension, provider)
	if err != nil {
		return nil, fmt.Errorf("connect vector store: %w", err)
	}

	pipeline := ingestion.NewPipeline(provider, prompts, graphStore, vectorStore)
	tracker := jobs.NewTracker()
	queue := jobs.NewQueue(pipeline, tracker, cfg.Ingestion.Workers, cfg.Ingestion.Workers*4)

	wf := workflow.New(provider, prompts, graphStore, vectorStore,
		workflow.WithMaxIterations(cfg.Workflow.MaxInferenceIterations),
		workflow.WithFaithfulnessThreshold(cfg.Workflow.FaithfulnessThreshold),
	)

	stop := make(chan struct{})
	go tracker.RunSweeper(cfg.Jobs.StatusRetention/4+time.Minute, cfg.Jobs.StatusRetention, stop)

	return &application{
		pipeline: pipeline,
		queue:    queue,
		tracker:  tracker,
		workflow: wf,
		provider: provider,
		prompts:  prompts,
		stop:     stop,
	}, nil
}

// vectorDimension is the embedding width produced by every LM backend ACE
// wires today. A backend emitting a different width needs a dedicated vector
// column, which is out of scope until a second embedding model ships.
const vectorDimension = 1536

// ── HTTP API (mode "serve") ───────────────────────────────────────────────────

func serveHTTP(ctx context.Context, cfg *config.Config, app *application, metrics *observe.Metrics) error {
	mux := http.NewServeMux()
	health.New(jobsReadyCheck(app.tracker)).Register(mux)
	mux.HandleFunc("POST /v1/ingest", handleIngest(app.queue))
	mux.HandleFunc("GET /v1/jobs/{id}", handleJobStatus(app.tracker))
	mux.HandleFunc("POST /v1/query", handleQuery(app.workflow))

	srv := &http.Server{
		Addr:    cfg.Server.ListenAddr,
		Handler: observe.Middleware(metrics)(mux),
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	slog.Info("server ready", "listen_addr", cfg.Server.ListenAddr)

	select {
	case <-ctx.Done():
		close(app.stop)
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		close(app.stop)
		return err
	}
}

// ── Evaluation (mode "eval") ──────────────────────────────────────────────────

func runEval(ctx context.Context, cfg *config.Config, app *application, datasetPath string) int {
	if datasetPath == "" {
		fmt.Fprintln(os.Stderr, "ace: -dataset is required for -mode=eval")
		return 1
	}

	f, err := os.Open(datasetPath)
	if err != nil {
		slog.Error("failed to open dataset", "path", datasetPath, "err", err)
		return 1
	}
	defer f.Close()

	var dataset eval.Dataset
	if err := json.NewDecoder(f).Decode(&dataset); err != nil {
		slog.Error("failed to decode dataset", "path", datasetPath, "err", err)
		return 1
	}

	scorer := eval.NewScorer(app.provider, app.prompts)
	runner := eval.NewRunner(app.workflow, scorer, eval.Defaults{
		Faithfulness: cfg.Workflow.FaithfulnessThreshold,
		Coverage:     cfg.Workflow.CoverageThreshold,
	})

	report := runner.Run(ctx, dataset)
	if err := json.NewEncoder(os.Stdout).Encode(report); err != nil {
		slog.Error("failed to encode report", "err", err)
		return 1
	}
	if report.Passed < report.Total {
		return 1
	}
	return 0
}

func jobsReadyCheck(tracker *jobs.Tracker) health.Checker {
	return health.Checker{
		Name: "jobs",
		Check: func(context.Context) error {
			if tracker == nil {
				return errors.New("job tracker not initialised")
			}
			return nil
		},
	}
}

type ingestRequest struct {
	SourceID string         `json:"source_id"`
	Text     string         `json:"text"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

type ingestResponse struct {
	JobID      string `json:"job_id"`
	RetryAfter string `json:"retry_after,omitempty"`
}

func handleIngest(queue *jobs.Queue) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req ingestRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSONError(w, http.StatusBadRequest, err)
			return
		}

		jobID, retryAfter, err := queue.Submit(r.Context(), req.SourceID, req.Text, req.Metadata)
		if err != nil {
			writeJSONError(w, http.StatusBadRequest, err)
			return
		}
		if retryAfter > 0 {
			w.Header().Set("Retry-After", retryAfter.String())
			writeJSON(w, http.StatusServiceUnavailable, ingestResponse{RetryAfter: retryAfter.String()})
			return
		}
		writeJSON(w, http.StatusAccepted, ingestResponse{JobID: jobID})
	}
}

func handleJobStatus(tracker *jobs.Tracker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		jobID := r.PathValue("id")
		snapshot, ok := tracker.Get(jobID)
		if !ok {
			http.NotFound(w, r)
			return
		}
		writeJSON(w, http.StatusOK, snapshot)
	}
}

type queryRequest struct {
	Query string `json:"query"`
}

func handleQuery(wf *workflow.Workflow) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req queryRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSONError(w, http.StatusBadRequest, err)
			return
		}

		result, err := wf.Run(r.Context(), req.Query)
		if err != nil {
			writeJSONError(w, http.StatusInternalServerError, err)
			return
		}
		writeJSON(w, http.StatusOK, result)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeJSONError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

// ── Startup summary ───────────────────────────────────────────────────────────

func printStartupSummary(cfg *config.Config) {
	fmt.Println("╔═══════════════════════════════════════╗")
	fmt.Println("║            ACE — startup summary      ║")
	fmt.Println("╠═══════════════════════════════════════╣")
	fmt.Printf("║  LM backend      : %-19s ║\n", cfg.LM.Backend)
	fmt.Printf("║  LM model        : %-19s ║\n", cfg.LM.Model)
	fmt.Printf("║  Ingestion workers: %-18d ║\n", cfg.Ingestion.Workers)
	fmt.Printf("║  Max iterations  : %-19d ║\n", cfg.Workflow.MaxInferenceIterations)
	if cfg.Server.ListenAddr != "" {
		fmt.Printf("║  Listen addr     : %-19s ║\n", cfg.Server.ListenAddr)
	}
	fmt.Println("╚═══════════════════════════════════════╝")
}

// ── Logger ─────────────────────────────────────────────────────────────────────

func slogLevel(level config.LogLevel) slog.Level {
	switch level {
	case config.LogDebug:
		return slog.LevelDebug
	case config.LogWarn:
		return slog.LevelWarn
	case config.LogError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// ── Config hot reload (modes "serve" and "mcp-serve") ─────────────────────────

// startConfigWatcher polls configPath for changes and applies the three
// fields spec.md §C13 calls out as hot-reloadable: log level, the Checker's
// faithfulness threshold, and the maximum inference iteration count. The
// coverage threshold is tracked in the diff but has no running consumer to
// apply it to — golden-dataset regression (-mode=eval) is a one-shot process
// that always reads a fresh [config.Config], so it picks up the change on
// its next invocation without any reload machinery. Connection settings
// (graph, vector, LM) are intentionally excluded by [config.Diff] itself,
// since swapping them means building a new adapter.
//
// Returns nil if the watcher can't be started; a config file that vanishes
// after a successful startup shouldn't take the server down with it.
func startConfigWatcher(configPath string, logLevel *slog.LevelVar, wf *workflow.Workflow) *config.Watcher {
	w, err := config.NewWatcher(configPath, func(old, new *config.Config) {
		d := config.Diff(old, new)
		if d.LogLevelChanged {
			logLevel.Set(slogLevel(d.NewLogLevel))
			slog.Info("config reload: log level changed", "new_level", d.NewLogLevel)
		}
		if d.ThresholdsChanged {
			wf.SetFaithfulnessThreshold(d.NewFaithfulnessThreshold)
			slog.Info("config reload: thresholds changed",
				"new_faithfulness_threshold", d.NewFaithfulnessThreshold,
				"new_coverage_threshold", d.NewCoverageThreshold,
				"coverage_note", "applies to the next -mode=eval run, not live traffic")
		}
		if d.MaxIterationsChanged {
			wf.SetMaxIterations(d.NewMaxInferenceIterations)
			slog.Info("config reload: max inference iterations changed", "new_value", d.NewMaxInferenceIterations)
		}
	})
	if err != nil {
		slog.Warn("config watcher disabled", "path", configPath, "err", err)
		return nil
	}
	return w
}
