// Package artifact persists run artifacts, the plan and report documents, in
// remote storage where the surrounding workflow tooling picks them up.
package artifact

import "context"

// Store persists run artifacts under opaque keys.
type Store interface {
	// Put uploads data under key, replacing any existing artifact.
	Put(ctx context.Context, key string, data []byte) error

	// Get downloads the artifact at key.
	Get(ctx context.Context, key string) ([]byte, error)

	// Name returns the store identifier (e.g. "azure").
	Name() string
}

// PlanKey is the storage key of a run's plan document.
func PlanKey(token string) string { return "plans/" + token + ".json" }

// ReportKey is the storage key of a run's report document.
func ReportKey(token string) string { return "reports/" + token + ".json" }
