package request

import (
	"context"
	"strings"

	"github.com/coveworks/bulk-restore/internal/api"
	"github.com/coveworks/bulk-restore/internal/backup"
	apperrors "github.com/coveworks/bulk-restore/internal/errors"
	"github.com/coveworks/bulk-restore/internal/resolve"
)

func init() { Register(backup.ObjectProtectionGroup, groupBuilder{}) }

// Group builds a protection-group restore request. The destination bucket is
// resolved by exact name within the target account and region; its record
// supplies both the bucket id and the environment id. Objects overwrite and
// keep their original storage class.
func Group(ctx context.Context, buckets BucketFinder, rec backup.GroupBackup, t resolve.GroupTarget, account, region string) (api.RestoreGroupRequest, error) {
	name := strings.TrimSpace(t.Bucket)
	if name == "" {
		return api.RestoreGroupRequest{}, apperrors.NewValidationError("bucket", "a destination bucket is required for protection-group restore")
	}
	b, err := buckets.FindBucket(ctx, account, region, []string{name})
	if err != nil {
		return api.RestoreGroupRequest{}, err
	}
	return api.RestoreGroupRequest{
		Source: api.GroupRestoreSource{
			BackupID:      rec.BackupID,
			AssetIDs:      rec.AssetIDs,
			ObjectFilters: rec.ObjectFilters,
		},
		Target: api.GroupRestoreTarget{
			BucketID:                    b.ID,
			EnvironmentID:               b.EnvironmentID,
			Prefix:                      t.Prefix,
			Overwrite:                   true,
			RestoreOriginalStorageClass: true,
		},
	}, nil
}

type groupBuilder struct{}

func (groupBuilder) Build(ctx context.Context, in Input) (Submission, error) {
	rec, ok := in.Record.(backup.GroupBackup)
	if !ok {
		return nil, apperrors.NewValidationError("record", "not a protection-group backup")
	}
	t, ok := in.Target.(resolve.GroupTarget)
	if !ok {
		return nil, apperrors.NewValidationError("target", "not a protection-group target")
	}
	if in.Buckets == nil {
		return nil, apperrors.NewValidationError("bucket finder", "required for protection-group restore")
	}
	req, err := Group(ctx, in.Buckets, rec, t, in.Account, in.Region)
	if err != nil {
		return nil, err
	}
	return groupSubmission{req: req}, nil
}

type groupSubmission struct {
	req api.RestoreGroupRequest
}

func (s groupSubmission) Submit(ctx context.Context, c Submitter) (string, error) {
	return c.RestoreGroup(ctx, s.req)
}
