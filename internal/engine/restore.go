package engine

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/coveworks/bulk-restore/internal/artifact"
	"github.com/coveworks/bulk-restore/internal/backup"
	apperrors "github.com/coveworks/bulk-restore/internal/errors"
	"github.com/coveworks/bulk-restore/internal/request"
	"github.com/coveworks/bulk-restore/internal/task"
)

// Outcome states. Timed-out entries are indeterminate: the task may still
// finish, so they are counted apart from failures.
const (
	StateCompleted = "completed"
	StateFailed    = "failed"
	StateTimedOut  = "timed_out"
)

// Outcome records how one plan entry ended.
type Outcome struct {
	ResourceType backup.ResourceType `json:"resource_type"`
	AssetID      string              `json:"asset_id,omitempty"`
	BackupID     string              `json:"backup_id,omitempty"`
	RunToken     string              `json:"run_token,omitempty"`
	TaskID       string              `json:"task_id,omitempty"`
	State        string              `json:"state"`
	Error        string              `json:"error,omitempty"`
}

// Report is the run outcome document, one Outcome per plan entry in plan
// order.
type Report struct {
	RunID         string    `json:"run_id"`
	SourceAccount string    `json:"source_account"`
	TargetAccount string    `json:"target_account"`
	StartedAt     time.Time `json:"started_at"`
	FinishedAt    time.Time `json:"finished_at"`
	Outcomes      []Outcome `json:"outcomes"`
	Completed     int       `json:"completed"`
	Failed        int       `json:"failed"`
	TimedOut      int       `json:"timed_out"`
}

type envResult struct {
	id  string
	err error
}

// Restore submits every plan entry and waits each task out. Entries are
// independent: one failing never stops the others. The returned error is
// only the context's, a run that merely had failing entries reports them
// through the counts.
func (e *Engine) Restore(ctx context.Context, plan Plan) (Report, error) {
	report := Report{
		RunID:         plan.RunID,
		SourceAccount: plan.SourceAccount,
		TargetAccount: plan.TargetAccount,
		StartedAt:     time.Now().UTC(),
		Outcomes:      make([]Outcome, len(plan.Entries)),
	}
	if report.RunID == "" {
		report.RunID = e.token()
	}

	start := time.Now()
	log.Info().
		Str("action", "restore").
		Str("run_id", report.RunID).
		Int("entries", len(plan.Entries)).
		Int("workers", e.workers()).
		Msg("starting restore run")

	envs := e.resolveEnvironments(ctx, plan)

	// Workers write disjoint indexes of the pre-sized outcome slice, so the
	// only synchronization needed is the WaitGroup.
	jobs := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < e.workers(); w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				report.Outcomes[i] = e.restoreEntry(ctx, plan.Entries[i], envs)
			}
		}()
	}
	for i := range plan.Entries {
		jobs <- i
	}
	close(jobs)
	wg.Wait()

	for _, o := range report.Outcomes {
		switch o.State {
		case StateCompleted:
			report.Completed++
		case StateTimedOut:
			report.TimedOut++
		default:
			report.Failed++
		}
	}
	report.FinishedAt = time.Now().UTC()

	log.Info().
		Str("action", "restore").
		Str("run_id", report.RunID).
		Int("completed", report.Completed).
		Int("failed", report.Failed).
		Int("timed_out", report.TimedOut).
		Dur("elapsed_ms", time.Since(start)).
		Msg("restore run done")

	e.storeReport(ctx, report)
	return report, ctx.Err()
}

// resolveEnvironments looks up each distinct target environment once before
// the pool starts, so workers read a frozen map. Group entries are skipped,
// their destination bucket record carries its own environment.
func (e *Engine) resolveEnvironments(ctx context.Context, plan Plan) map[string]envResult {
	envs := make(map[string]envResult)
	for _, en := range plan.Entries {
		if en.ResourceType == backup.ObjectProtectionGroup {
			continue
		}
		key := en.TargetAccount + "/" + en.TargetRegion
		if _, ok := envs[key]; ok {
			continue
		}
		id, err := e.API.EnvironmentID(ctx, en.TargetAccount, en.TargetRegion)
		envs[key] = envResult{id: id, err: err}
	}
	return envs
}

// restoreEntry runs one entry through build, submit and poll.
func (e *Engine) restoreEntry(ctx context.Context, en Entry, envs map[string]envResult) Outcome {
	desc := en.Describe()
	out := Outcome{
		ResourceType: en.ResourceType,
		AssetID:      desc.AssetID,
		BackupID:     desc.BackupID,
		RunToken:     en.RunToken,
		State:        StateFailed,
	}
	fail := func(stage string, err error) Outcome {
		out.Error = err.Error()
		log.Error().
			Err(err).
			Str("action", "restore_entry").
			Str("stage", stage).
			Str("resource_type", string(en.ResourceType)).
			Str("asset_id", desc.AssetID).
			Str("run_token", en.RunToken).
			Msg("restore entry failed")
		return out
	}

	rec, target, err := en.pair()
	if err != nil {
		return fail("plan", err)
	}

	var envID string
	if en.ResourceType != backup.ObjectProtectionGroup {
		res := envs[en.TargetAccount+"/"+en.TargetRegion]
		if res.err != nil {
			return fail("environment", res.err)
		}
		envID = res.id
	}

	builder, err := request.New(en.ResourceType)
	if err != nil {
		return fail("build", err)
	}
	sub, err := builder.Build(ctx, request.Input{
		Record:        rec,
		Target:        target,
		EnvironmentID: envID,
		Account:       en.TargetAccount,
		Region:        en.TargetRegion,
		Buckets:       e.API,
	})
	if err != nil {
		return fail("build", err)
	}

	taskID, err := sub.Submit(ctx, e.API)
	if err != nil {
		return fail("submit", err)
	}
	out.TaskID = taskID
	log.Info().
		Str("action", "restore_entry").
		Str("resource_type", string(en.ResourceType)).
		Str("asset_id", desc.AssetID).
		Str("task_id", taskID).
		Str("run_token", en.RunToken).
		Msg("restore submitted")

	if _, err := task.Poll(ctx, e.API, taskID, e.Poll); err != nil {
		if apperrors.IsTimeout(err) {
			out.State = StateTimedOut
		}
		return fail("poll", err)
	}
	out.State = StateCompleted
	log.Info().
		Str("action", "restore_entry").
		Str("resource_type", string(en.ResourceType)).
		Str("asset_id", desc.AssetID).
		Str("task_id", taskID).
		Msg("restore completed")
	return out
}

// storeReport uploads the report when a store is configured. The restores
// already ran, so a failed upload is logged rather than surfaced: the caller
// still holds the report.
func (e *Engine) storeReport(ctx context.Context, report Report) {
	if e.Artifacts == nil {
		return
	}
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		log.Error().Err(err).Str("action", "restore").Msg("encode report failed")
		return
	}
	key := artifact.ReportKey(report.RunID)
	if err := e.Artifacts.Put(ctx, key, data); err != nil {
		log.Error().
			Err(err).
			Str("action", "restore").
			Str("store", e.Artifacts.Name()).
			Str("key", key).
			Msg("store report failed")
		return
	}
	log.Info().
		Str("action", "restore").
		Str("store", e.Artifacts.Name()).
		Str("key", key).
		Msg("report stored")
}
