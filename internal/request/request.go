// Package request turns a discovered backup and its resolved target into the
// restore submission for its resource type. Builders are registered per type;
// construction is pure except for the protection-group destination bucket
// lookup.
package request

import (
	"context"

	"github.com/coveworks/bulk-restore/internal/api"
	"github.com/coveworks/bulk-restore/internal/backup"
	apperrors "github.com/coveworks/bulk-restore/internal/errors"
)

// Submitter is the slice of the API client that sends restore requests.
type Submitter interface {
	RestoreVolume(ctx context.Context, req api.RestoreVolumeRequest) (string, error)
	RestoreInstance(ctx context.Context, req api.RestoreInstanceRequest) (string, error)
	RestoreDatabase(ctx context.Context, req api.RestoreDatabaseRequest) (string, error)
	RestoreTable(ctx context.Context, req api.RestoreTableRequest) (string, error)
	RestoreGroup(ctx context.Context, req api.RestoreGroupRequest) (string, error)
}

// BucketFinder resolves a destination bucket by exact name. Only the
// protection-group builder needs it.
type BucketFinder interface {
	FindBucket(ctx context.Context, account, region string, names []string) (api.Bucket, error)
}

// Input carries one entry's build context. Record and Target must hold the
// builder's resource type.
type Input struct {
	Record        backup.Record
	Target        any
	EnvironmentID string
	Account       string
	Region        string
	Buckets       BucketFinder
}

// Submission is a built restore request bound to its submit endpoint.
type Submission interface {
	Submit(ctx context.Context, c Submitter) (taskID string, err error)
}

// Builder builds the submission for one resource type.
type Builder interface {
	Build(ctx context.Context, in Input) (Submission, error)
}

var registry = map[backup.ResourceType]Builder{}

// Register binds a resource type to its builder.
func Register(rtype backup.ResourceType, b Builder) {
	registry[rtype] = b
}

// New returns the builder for a resource type.
func New(rtype backup.ResourceType) (Builder, error) {
	b, ok := registry[rtype]
	if !ok {
		return nil, apperrors.NewValidationError("resource type", "no restore builder for "+string(rtype))
	}
	return b, nil
}

func requireEnvironment(id string) error {
	if id == "" {
		return apperrors.NewValidationError("environment id", "required for restore submission")
	}
	return nil
}
