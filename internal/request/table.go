package request

import (
	"context"

	"github.com/coveworks/bulk-restore/internal/api"
	"github.com/coveworks/bulk-restore/internal/backup"
	apperrors "github.com/coveworks/bulk-restore/internal/errors"
	"github.com/coveworks/bulk-restore/internal/resolve"
)

func init() { Register(backup.KeyValueTable, tableBuilder{}) }

// Table builds a key-value-table restore request. The schema carries over
// from the backup unchanged: encryption, capacity, billing mode, table class
// and both index sets.
func Table(rec backup.TableBackup, t resolve.TableTarget, envID string) api.RestoreTableRequest {
	return api.RestoreTableRequest{
		Source: api.RestoreSource{BackupID: rec.BackupID},
		Target: api.TableRestoreTarget{
			TableName:     t.TableName,
			EnvironmentID: envID,
			SSE:           rec.SSE,
			Throughput:    rec.Throughput,
			BillingMode:   rec.BillingMode,
			TableClass:    rec.TableClass,
			GlobalIndexes: rec.GlobalIndexes,
			LocalIndexes:  rec.LocalIndexes,
			Tags:          t.Tags,
		},
	}
}

type tableBuilder struct{}

func (tableBuilder) Build(ctx context.Context, in Input) (Submission, error) {
	rec, ok := in.Record.(backup.TableBackup)
	if !ok {
		return nil, apperrors.NewValidationError("record", "not a key-value-table backup")
	}
	t, ok := in.Target.(resolve.TableTarget)
	if !ok {
		return nil, apperrors.NewValidationError("target", "not a key-value-table target")
	}
	if err := requireEnvironment(in.EnvironmentID); err != nil {
		return nil, err
	}
	return tableSubmission{req: Table(rec, t, in.EnvironmentID)}, nil
}

type tableSubmission struct {
	req api.RestoreTableRequest
}

func (s tableSubmission) Submit(ctx context.Context, c Submitter) (string, error) {
	return c.RestoreTable(ctx, s.req)
}
