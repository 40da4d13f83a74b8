package api

import (
	"context"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/coveworks/bulk-restore/internal/backup"
	apperrors "github.com/coveworks/bulk-restore/internal/errors"
	"github.com/coveworks/bulk-restore/internal/filter"
	"github.com/coveworks/bulk-restore/internal/retry"
)

// Listing endpoints.
const (
	pathVolumeBackups   = "/backups/block-volumes"
	pathInstanceBackups = "/backups/compute-instances"
	pathDatabaseBackups = "/backups/databases"
	pathTableBackups    = "/backups/tables"
	pathGroupBackups    = "/backups/protection-groups"

	pathEnvironments   = "/datasources/environments"
	pathBuckets        = "/datasources/buckets"
	pathGroups         = "/datasources/protection-groups"
	pathGroupAssets    = "/datasources/protection-group-assets"
	pathVolumeAssets   = "/datasources/block-volumes"
	pathInstanceAssets = "/datasources/compute-instances"
)

// The environment listing is probed a few times before giving up: a freshly
// connected account can lag behind the data plane by a few seconds.
const (
	envLookupAttempts = 5
	envLookupDelay    = time.Second
)

// Environment is a connected (account, region) data source.
type Environment struct {
	ID        string `json:"id"`
	AccountID string `json:"account_id"`
	Region    string `json:"region"`
}

// Bucket is an object-storage bucket known to the service.
type Bucket struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	AccountID     string `json:"account_id"`
	Region        string `json:"region"`
	EnvironmentID string `json:"environment_id"`
}

// ProtectionGroup is a named collection of buckets backed up together.
type ProtectionGroup struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// GroupAsset is one bucket's membership in a protection group.
type GroupAsset struct {
	ID         string `json:"id"`
	GroupID    string `json:"group_id"`
	BucketName string `json:"bucket_name"`
}

// VolumeAsset is a protected block volume known to an environment.
type VolumeAsset struct {
	ID            string `json:"id"`
	VolumeID      string `json:"volume_id"`
	EnvironmentID string `json:"environment_id"`
}

// InstanceAsset is a protected compute instance known to an environment.
type InstanceAsset struct {
	ID            string `json:"id"`
	InstanceID    string `json:"instance_id"`
	EnvironmentID string `json:"environment_id"`
}

// listQuery assembles the shared listing query parameters. Empty filter and
// sort are omitted entirely.
func (c *Client) listQuery(f filter.Expression, sort string, start int) (url.Values, error) {
	q := url.Values{}
	doc, err := f.Encode()
	if err != nil {
		return nil, err
	}
	if doc != "" {
		q.Set("filter", doc)
	}
	if sort != "" {
		q.Set("sort", sort)
	}
	if start < 1 {
		start = 1
	}
	q.Set("start", strconv.Itoa(start))
	q.Set("limit", strconv.Itoa(c.pageLimit))
	return q, nil
}

func listPage[T any](ctx context.Context, c *Client, action, path string, f filter.Expression, sort string, start int) (Page[T], error) {
	q, err := c.listQuery(f, sort, start)
	if err != nil {
		return Page[T]{}, err
	}
	return getJSON[Page[T]](ctx, c, action, path, q)
}

// ListVolumeBackups pages through block-volume backups.
func (c *Client) ListVolumeBackups(ctx context.Context, f filter.Expression, sort string, start int) (Page[backup.VolumeBackup], error) {
	return listPage[backup.VolumeBackup](ctx, c, "list_volume_backups", pathVolumeBackups, f, sort, start)
}

// ListInstanceBackups pages through compute-instance backups.
func (c *Client) ListInstanceBackups(ctx context.Context, f filter.Expression, sort string, start int) (Page[backup.InstanceBackup], error) {
	return listPage[backup.InstanceBackup](ctx, c, "list_instance_backups", pathInstanceBackups, f, sort, start)
}

// ListDatabaseBackups pages through managed-database backups.
func (c *Client) ListDatabaseBackups(ctx context.Context, f filter.Expression, sort string, start int) (Page[backup.DatabaseBackup], error) {
	return listPage[backup.DatabaseBackup](ctx, c, "list_database_backups", pathDatabaseBackups, f, sort, start)
}

// ListTableBackups pages through key-value-table backups.
func (c *Client) ListTableBackups(ctx context.Context, f filter.Expression, sort string, start int) (Page[backup.TableBackup], error) {
	return listPage[backup.TableBackup](ctx, c, "list_table_backups", pathTableBackups, f, sort, start)
}

// ListGroupBackups pages through protection-group backups.
func (c *Client) ListGroupBackups(ctx context.Context, f filter.Expression, sort string, start int) (Page[backup.GroupBackup], error) {
	return listPage[backup.GroupBackup](ctx, c, "list_group_backups", pathGroupBackups, f, sort, start)
}

// ListEnvironments pages through connected environments.
func (c *Client) ListEnvironments(ctx context.Context, f filter.Expression, sort string, start int) (Page[Environment], error) {
	return listPage[Environment](ctx, c, "list_environments", pathEnvironments, f, sort, start)
}

// ListBuckets pages through known buckets.
func (c *Client) ListBuckets(ctx context.Context, f filter.Expression, sort string, start int) (Page[Bucket], error) {
	return listPage[Bucket](ctx, c, "list_buckets", pathBuckets, f, sort, start)
}

// ListProtectionGroups pages through protection groups.
func (c *Client) ListProtectionGroups(ctx context.Context, f filter.Expression, sort string, start int) (Page[ProtectionGroup], error) {
	return listPage[ProtectionGroup](ctx, c, "list_protection_groups", pathGroups, f, sort, start)
}

// ListGroupAssets pages through a protection group's bucket assets.
func (c *Client) ListGroupAssets(ctx context.Context, f filter.Expression, sort string, start int) (Page[GroupAsset], error) {
	return listPage[GroupAsset](ctx, c, "list_group_assets", pathGroupAssets, f, sort, start)
}

// ListVolumeAssets pages through protected block volumes.
func (c *Client) ListVolumeAssets(ctx context.Context, f filter.Expression, sort string, start int) (Page[VolumeAsset], error) {
	return listPage[VolumeAsset](ctx, c, "list_volume_assets", pathVolumeAssets, f, sort, start)
}

// ListInstanceAssets pages through protected compute instances.
func (c *Client) ListInstanceAssets(ctx context.Context, f filter.Expression, sort string, start int) (Page[InstanceAsset], error) {
	return listPage[InstanceAsset](ctx, c, "list_instance_assets", pathInstanceAssets, f, sort, start)
}

// EnvironmentID resolves the environment id for an (account, region) pair.
// Zero matches means the caller is not authorized for that pair, reported as
// NotFound.
func (c *Client) EnvironmentID(ctx context.Context, account, region string) (string, error) {
	if strings.TrimSpace(account) == "" {
		return "", apperrors.NewValidationError("account", "required for environment lookup")
	}
	if strings.TrimSpace(region) == "" {
		return "", apperrors.NewValidationError("region", "required for environment lookup")
	}

	f := filter.Expression{}.
		With("account_id", filter.Eq(account)).
		With("region", filter.Eq(region))

	var page Page[Environment]
	err := retry.Do(ctx, retry.Fixed(envLookupAttempts, envLookupDelay), apperrors.IsAPIError,
		func(ctx context.Context) error {
			var err error
			page, err = c.ListEnvironments(ctx, f, "", 1)
			return err
		})
	if err != nil {
		return "", apperrors.Wrap(err, "list environments")
	}
	if page.CurrentCount == 0 || len(page.Embedded.Items) == 0 {
		return "", apperrors.NewNotFoundError("environment", account+"/"+region)
	}
	return page.Embedded.Items[0].ID, nil
}

// FindBucket resolves a destination bucket by exact name within an account
// and region. Zero matches is a terminal NotFound condition, not retried.
func (c *Client) FindBucket(ctx context.Context, account, region string, names []string) (Bucket, error) {
	f := filter.Expression{}.
		With("account_id", filter.Eq(account)).
		With("region", filter.Eq(region)).
		With("name", filter.In(names))

	page, err := c.ListBuckets(ctx, f, "", 1)
	if err != nil {
		return Bucket{}, err
	}
	if page.TotalCount == 0 || len(page.Embedded.Items) == 0 {
		return Bucket{}, apperrors.NewNotFoundError("bucket", strings.Join(names, ", "))
	}
	return page.Embedded.Items[0], nil
}
