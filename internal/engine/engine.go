// Package engine drives a bulk-restore run end to end: Plan discovers
// backups and resolves their restore targets into a plan document, Restore
// submits each plan entry and waits its task out. The two halves are
// separate operations so an operator can review the plan before anything is
// restored.
package engine

import (
	"github.com/coveworks/bulk-restore/internal/api"
	"github.com/coveworks/bulk-restore/internal/artifact"
	"github.com/coveworks/bulk-restore/internal/config"
	"github.com/coveworks/bulk-restore/internal/discovery"
	"github.com/coveworks/bulk-restore/internal/resolve"
	"github.com/coveworks/bulk-restore/internal/task"
	"github.com/coveworks/bulk-restore/internal/util"
)

const runTokenLen = 13

// Engine wires discovery, resolution, request building and task polling.
// Suffix and TokenFunc default to the shared random source; tests inject
// deterministic ones.
type Engine struct {
	API       *api.Client
	Discovery *discovery.Service

	// Artifacts persists plan and report documents when non-nil.
	Artifacts artifact.Store

	Poll        task.Policy
	Concurrency int

	Suffix    resolve.SuffixFunc
	TokenFunc func(n int) string
}

// New wires an engine from loaded config. The artifact store may be nil.
func New(client *api.Client, store artifact.Store, cfg config.Config) *Engine {
	return &Engine{
		API:         client,
		Discovery:   &discovery.Service{API: client, MaxResults: cfg.MaxResults},
		Artifacts:   store,
		Poll:        task.Policy{Timeout: cfg.PollTimeout, Interval: cfg.PollInterval},
		Concurrency: cfg.Concurrency,
	}
}

func (e *Engine) token() string {
	if e.TokenFunc != nil {
		return e.TokenFunc(runTokenLen)
	}
	return util.RandomLetters(runTokenLen)
}

func (e *Engine) resolver() resolve.Resolver {
	return resolve.Resolver{Suffix: e.Suffix}
}

func (e *Engine) workers() int {
	if e.Concurrency > 0 {
		return e.Concurrency
	}
	return 4
}
