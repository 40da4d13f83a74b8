package request

import (
	"context"

	"github.com/coveworks/bulk-restore/internal/api"
	"github.com/coveworks/bulk-restore/internal/backup"
	apperrors "github.com/coveworks/bulk-restore/internal/errors"
	"github.com/coveworks/bulk-restore/internal/resolve"
)

func init() { Register(backup.ManagedDatabase, databaseBuilder{}) }

// Database builds a managed-database restore request. The restored cluster is
// publicly accessible only when every source instance was.
func Database(rec backup.DatabaseBackup, t resolve.DatabaseTarget, envID string) api.RestoreDatabaseRequest {
	return api.RestoreDatabaseRequest{
		Source: api.RestoreSource{BackupID: rec.BackupID},
		Target: api.DatabaseRestoreTarget{
			Name:               t.Name,
			EnvironmentID:      envID,
			SubnetGroupName:    t.SubnetGroupName,
			SecurityGroupIDs:   t.SecurityGroupIDs,
			KMSKeyID:           t.KMSKeyID,
			PubliclyAccessible: rec.PubliclyAccessible(),
			Tags:               t.Tags,
		},
	}
}

type databaseBuilder struct{}

func (databaseBuilder) Build(ctx context.Context, in Input) (Submission, error) {
	rec, ok := in.Record.(backup.DatabaseBackup)
	if !ok {
		return nil, apperrors.NewValidationError("record", "not a managed-database backup")
	}
	t, ok := in.Target.(resolve.DatabaseTarget)
	if !ok {
		return nil, apperrors.NewValidationError("target", "not a managed-database target")
	}
	if err := requireEnvironment(in.EnvironmentID); err != nil {
		return nil, err
	}
	return databaseSubmission{req: Database(rec, t, in.EnvironmentID)}, nil
}

type databaseSubmission struct {
	req api.RestoreDatabaseRequest
}

func (s databaseSubmission) Submit(ctx context.Context, c Submitter) (string, error) {
	return c.RestoreDatabase(ctx, s.req)
}
