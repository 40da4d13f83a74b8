package request

import (
	"context"

	"github.com/coveworks/bulk-restore/internal/api"
	"github.com/coveworks/bulk-restore/internal/backup"
	apperrors "github.com/coveworks/bulk-restore/internal/errors"
	"github.com/coveworks/bulk-restore/internal/resolve"
)

func init() { Register(backup.BlockVolume, volumeBuilder{}) }

// Volume builds a block-volume restore request. IOPS is carried only when
// provisioned; zero is omitted from the wire body.
func Volume(rec backup.VolumeBackup, t resolve.VolumeTarget, envID string) api.RestoreVolumeRequest {
	return api.RestoreVolumeRequest{
		Source: api.RestoreSource{BackupID: rec.BackupID},
		Target: api.VolumeRestoreTarget{
			Zone:          t.Zone,
			EnvironmentID: envID,
			VolumeType:    t.VolumeType,
			IOPS:          t.IOPS,
			KMSKeyID:      t.KMSKeyID,
			Tags:          t.Tags,
		},
	}
}

type volumeBuilder struct{}

func (volumeBuilder) Build(ctx context.Context, in Input) (Submission, error) {
	rec, ok := in.Record.(backup.VolumeBackup)
	if !ok {
		return nil, apperrors.NewValidationError("record", "not a block-volume backup")
	}
	t, ok := in.Target.(resolve.VolumeTarget)
	if !ok {
		return nil, apperrors.NewValidationError("target", "not a block-volume target")
	}
	if err := requireEnvironment(in.EnvironmentID); err != nil {
		return nil, err
	}
	return volumeSubmission{req: Volume(rec, t, in.EnvironmentID)}, nil
}

type volumeSubmission struct {
	req api.RestoreVolumeRequest
}

func (s volumeSubmission) Submit(ctx context.Context, c Submitter) (string, error) {
	return c.RestoreVolume(ctx, s.req)
}
