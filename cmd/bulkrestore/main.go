package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	"github.com/coveworks/bulk-restore/internal/api"
	"github.com/coveworks/bulk-restore/internal/artifact"
	"github.com/coveworks/bulk-restore/internal/auth"
	"github.com/coveworks/bulk-restore/internal/config"
	"github.com/coveworks/bulk-restore/internal/engine"
	"github.com/coveworks/bulk-restore/internal/logx"
	"github.com/coveworks/bulk-restore/internal/version"

	_ "github.com/coveworks/bulk-restore/internal/artifact/azure"
)

// Test seams — overridden in unit tests. Keep signatures in sync with packages.
var (
	loadConfig   func() (config.Config, error)                                             = config.Load
	acquireToken func(context.Context, config.Config) (string, error)                      = auth.AcquireToken
	newClient    func(api.Config) (*api.Client, error)                                     = api.New
	newStore     func(name string, cfg any) (artifact.Store, error)                        = artifact.New
	runPlan      func(context.Context, *engine.Engine, engine.Input) (engine.Plan, error)  = planAction
	runRestore   func(context.Context, *engine.Engine, engine.Plan) (engine.Report, error) = restoreAction
	exit         func(int)                                                                 = os.Exit
)

func planAction(ctx context.Context, e *engine.Engine, in engine.Input) (engine.Plan, error) {
	return e.Plan(ctx, in)
}

func restoreAction(ctx context.Context, e *engine.Engine, p engine.Plan) (engine.Report, error) {
	return e.Restore(ctx, p)
}

const usage = `
Usage:
  bulkrestore plan    [inputFile] [planFile]
  bulkrestore restore [planFile|inputFile] [reportFile]
  bulkrestore version | --version | -v
  bulkrestore help    | --help    | -h

Notes:
  - You can also set env vars:
      BULK_PLAN_INPUT, BULK_PLAN_OUTPUT, BULK_RESTORE_INPUT, BULK_RESTORE_REPORT
  - API endpoint/token: API_BASE_URL, API_TOKEN (or API_TOKEN_FILE)
  - Plan/report upload is enabled with ARTIFACT_PROVIDER (optional: azure)
`

// main wires CLI -> config -> engine -> plan/restore.
// Exit codes: 0 success, 1 runtime error or failed entries, 2 usage error.
func main() {
	_ = godotenv.Load() // best-effort
	logx.InitFromEnv()

	args := os.Args[1:]
	if len(args) < 1 {
		fmt.Print(usage)
		exit(2)
	}
	action := strings.ToLower(args[0])

	// Handle version command
	if action == "version" || action == "--version" || action == "-v" {
		fmt.Printf("bulkrestore %s\n", version.Info())
		exit(0)
	}

	// Handle help command
	if action == "help" || action == "--help" || action == "-h" {
		fmt.Print(usage)
		exit(0)
	}

	cfg, err := loadConfig()
	if err != nil {
		log.Error().Err(err).Msg("config error")
		exit(1)
	}

	ctx := withSignals(context.Background())

	eng, err := buildEngine(ctx, cfg)
	if err != nil {
		log.Error().Err(err).Msg("engine init error")
		exit(1)
	}

	switch action {
	case "plan":
		inputPath := pickArgOrEnv(2, "BULK_PLAN_INPUT", "")
		planPath := pickArgOrEnv(3, "BULK_PLAN_OUTPUT", "./plan.json")
		if inputPath == "" {
			log.Error().Str("action", "plan").Msg("no input document (arg or BULK_PLAN_INPUT)")
			exit(2)
		}

		in, err := readInput(inputPath)
		if err != nil {
			log.Error().Err(err).Str("action", "plan").Str("input", inputPath).Msg("input error")
			exit(1)
		}

		start := time.Now()
		plan, err := runPlan(ctx, eng, in)
		if err != nil {
			log.Error().Err(err).Str("action", "plan").Msg("plan failed")
			exit(1)
		}
		if err := writeDoc(planPath, plan); err != nil {
			log.Error().Err(err).Str("action", "plan").Str("output", planPath).Msg("write plan failed")
			exit(1)
		}
		log.Info().
			Str("action", "plan").
			Str("run_id", plan.RunID).
			Int("entries", len(plan.Entries)).
			Str("output", planPath).
			Dur("elapsed_ms", time.Since(start)).
			Msg("plan OK")

	case "restore":
		srcPath := pickArgOrEnv(2, "BULK_RESTORE_INPUT", "")
		reportPath := pickArgOrEnv(3, "BULK_RESTORE_REPORT", "./report.json")
		if srcPath == "" {
			log.Error().Str("action", "restore").Msg("no plan or input document (arg or BULK_RESTORE_INPUT)")
			exit(2)
		}

		plan, err := readRunPlan(ctx, eng, srcPath)
		if err != nil {
			log.Error().Err(err).Str("action", "restore").Str("source", srcPath).Msg("plan error")
			exit(1)
		}

		start := time.Now()
		report, err := runRestore(ctx, eng, plan)
		if err != nil {
			log.Error().Err(err).Str("action", "restore").Msg("restore run failed")
			exit(1)
		}
		if err := writeDoc(reportPath, report); err != nil {
			log.Error().Err(err).Str("action", "restore").Str("output", reportPath).Msg("write report failed")
			exit(1)
		}
		log.Info().
			Str("action", "restore").
			Str("run_id", report.RunID).
			Int("completed", report.Completed).
			Int("failed", report.Failed).
			Int("timed_out", report.TimedOut).
			Str("output", reportPath).
			Dur("elapsed_ms", time.Since(start)).
			Msg("restore run OK")
		if report.Failed > 0 || report.TimedOut > 0 {
			exit(1)
		}

	default:
		fmt.Print(usage)
		exit(2)
	}
}

// buildEngine acquires the API token and wires the engine with its optional
// artifact store.
func buildEngine(ctx context.Context, cfg config.Config) (*engine.Engine, error) {
	token, err := acquireToken(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("auth: %w", err)
	}
	client, err := newClient(api.Config{
		BaseURL:   cfg.APIBaseURL,
		Token:     token,
		Retry:     cfg.RetryOptions(),
		PageLimit: cfg.PageLimit,
	})
	if err != nil {
		return nil, fmt.Errorf("api client: %w", err)
	}

	var store artifact.Store
	if cfg.ArtifactProvider != "" {
		store, err = newStore(cfg.ArtifactProvider, cfg)
		if err != nil {
			return nil, fmt.Errorf("artifact store: %w", err)
		}
	}
	return engine.New(client, store, cfg), nil
}

func readInput(path string) (engine.Input, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return engine.Input{}, err
	}
	return engine.DecodeInput(data)
}

// readRunPlan loads the restore source: a plan document is used as is, a raw
// input document (recognized by its resource_types) is planned first.
func readRunPlan(ctx context.Context, eng *engine.Engine, path string) (engine.Plan, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return engine.Plan{}, err
	}
	var probe struct {
		ResourceTypes []string `json:"resource_types"`
	}
	if err := json.Unmarshal(data, &probe); err == nil && len(probe.ResourceTypes) > 0 {
		in, err := engine.DecodeInput(data)
		if err != nil {
			return engine.Plan{}, err
		}
		return runPlan(ctx, eng, in)
	}
	return engine.DecodePlan(data)
}

func writeDoc(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, append(data, '\n'), 0o644)
}

func pickArgOrEnv(idx int, env string, def string) string {
	if len(os.Args) > idx && os.Args[idx] != "" {
		return os.Args[idx]
	}
	if v, ok := os.LookupEnv(env); ok && v != "" {
		return v
	}
	return def
}

func withSignals(parent context.Context) context.Context {
	ctx, cancel := context.WithCancel(parent)
	go func() {
		ch := make(chan os.Signal, 1)
		signal.Notify(ch, os.Interrupt, syscall.SIGTERM)
		<-ch
		cancel()
	}()
	return ctx
}
