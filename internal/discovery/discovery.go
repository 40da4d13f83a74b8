// Package discovery lists restorable backups per resource type. A pass
// drains the listing endpoint for a search window, narrows the result to the
// source account and region, applies the tag match, and keeps the first
// backup per asset in backend order.
package discovery

import (
	"context"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/coveworks/bulk-restore/internal/api"
	"github.com/coveworks/bulk-restore/internal/backup"
	apperrors "github.com/coveworks/bulk-restore/internal/errors"
	"github.com/coveworks/bulk-restore/internal/filter"
)

// Service runs discovery passes against the backend listing endpoints.
// MaxResults caps the record count handed downstream, 0 disables the cap.
// Now overrides the search window reference time for tests.
type Service struct {
	API        *api.Client
	MaxResults int
	Now        func() time.Time
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// Search narrows a per-type discovery pass. AssetIDs restricts the result to
// the named source assets; for block volumes the restriction is pushed into
// the listing filter, other types are narrowed after listing.
type Search struct {
	Window   filter.Window
	TagKey   string
	TagValue string
	AssetIDs []string
}

// GroupSearch selects an object protection group by name and the subset of
// its bucket assets to restore. Empty BucketNames selects every asset.
type GroupSearch struct {
	GroupName   string
	BucketNames []string
	Window      filter.Window
	Filters     backup.ObjectFilters
}

// Volumes discovers block-volume backups.
func (s *Service) Volumes(ctx context.Context, account, region string, q Search) ([]backup.VolumeBackup, error) {
	sort, f, err := q.Window.SortAndFilter(s.now())
	if err != nil {
		return nil, err
	}
	f = withAssetClause(f, "volume_id", q.AssetIDs)
	records, err := api.FetchAll(ctx, func(ctx context.Context, start int) (api.Page[backup.VolumeBackup], error) {
		return s.API.ListVolumeBackups(ctx, f, sort, start)
	})
	if err != nil {
		return nil, apperrors.Wrap(err, "list volume backups")
	}
	records = inScope(records, account, region, func(r backup.VolumeBackup) (string, string) {
		return r.Account, r.Region
	})
	return refine(s, "discover_volumes", records, q)
}

// Instances discovers compute-instance backups.
func (s *Service) Instances(ctx context.Context, account, region string, q Search) ([]backup.InstanceBackup, error) {
	sort, f, err := q.Window.SortAndFilter(s.now())
	if err != nil {
		return nil, err
	}
	records, err := api.FetchAll(ctx, func(ctx context.Context, start int) (api.Page[backup.InstanceBackup], error) {
		return s.API.ListInstanceBackups(ctx, f, sort, start)
	})
	if err != nil {
		return nil, apperrors.Wrap(err, "list instance backups")
	}
	records = inScope(records, account, region, func(r backup.InstanceBackup) (string, string) {
		return r.Account, r.Region
	})
	return refine(s, "discover_instances", records, q)
}

// Databases discovers managed-database backups.
func (s *Service) Databases(ctx context.Context, account, region string, q Search) ([]backup.DatabaseBackup, error) {
	sort, f, err := q.Window.SortAndFilter(s.now())
	if err != nil {
		return nil, err
	}
	records, err := api.FetchAll(ctx, func(ctx context.Context, start int) (api.Page[backup.DatabaseBackup], error) {
		return s.API.ListDatabaseBackups(ctx, f, sort, start)
	})
	if err != nil {
		return nil, apperrors.Wrap(err, "list database backups")
	}
	records = inScope(records, account, region, func(r backup.DatabaseBackup) (string, string) {
		return r.Account, r.Region
	})
	return refine(s, "discover_databases", records, q)
}

// Tables discovers key-value-table backups.
func (s *Service) Tables(ctx context.Context, account, region string, q Search) ([]backup.TableBackup, error) {
	sort, f, err := q.Window.SortAndFilter(s.now())
	if err != nil {
		return nil, err
	}
	records, err := api.FetchAll(ctx, func(ctx context.Context, start int) (api.Page[backup.TableBackup], error) {
		return s.API.ListTableBackups(ctx, f, sort, start)
	})
	if err != nil {
		return nil, apperrors.Wrap(err, "list table backups")
	}
	records = inScope(records, account, region, func(r backup.TableBackup) (string, string) {
		return r.Account, r.Region
	})
	return refine(s, "discover_tables", records, q)
}

// ProtectionGroups discovers object-protection-group backups: the group is
// looked up by exact name, its bucket assets are selected, and the first
// group backup in the window carries the selection. The group and its assets
// must exist; an empty backup listing is not an error.
func (s *Service) ProtectionGroups(ctx context.Context, q GroupSearch) ([]backup.GroupBackup, error) {
	name := strings.TrimSpace(q.GroupName)
	if name == "" {
		return nil, apperrors.NewValidationError("protection group name", "required for protection-group discovery")
	}

	groups, err := api.FetchAll(ctx, func(ctx context.Context, start int) (api.Page[api.ProtectionGroup], error) {
		return s.API.ListProtectionGroups(ctx, filter.Expression{}.With("name", filter.Eq(name)), "", start)
	})
	if err != nil {
		return nil, apperrors.Wrap(err, "list protection groups")
	}
	if len(groups) == 0 {
		return nil, apperrors.NewNotFoundError("protection group", name)
	}
	groupID := groups[0].ID

	assets, err := api.FetchAll(ctx, func(ctx context.Context, start int) (api.Page[api.GroupAsset], error) {
		return s.API.ListGroupAssets(ctx, filter.Expression{}.With("protection_group_id", filter.Eq(groupID)), "", start)
	})
	if err != nil {
		return nil, apperrors.Wrap(err, "list protection group assets")
	}
	if len(assets) == 0 {
		return nil, apperrors.NewNotFoundError("protection group assets", name)
	}
	assetIDs, err := selectAssets(assets, q.BucketNames)
	if err != nil {
		return nil, err
	}

	sort, f, err := q.Window.SortAndFilter(s.now())
	if err != nil {
		return nil, err
	}
	f = f.With("protection_group_id", filter.Eq(groupID))
	backups, err := api.FetchAll(ctx, func(ctx context.Context, start int) (api.Page[backup.GroupBackup], error) {
		return s.API.ListGroupBackups(ctx, f, sort, start)
	})
	if err != nil {
		return nil, apperrors.Wrap(err, "list protection group backups")
	}

	records := firstPerAsset(backups)
	for i := range records {
		records[i].GroupName = name
		records[i].AssetIDs = assetIDs
		records[i].ObjectFilters = q.Filters
	}
	log.Info().
		Str("action", "discover_protection_groups").
		Str("group", name).
		Int("assets", len(assetIDs)).
		Int("records", len(records)).
		Msg("discovery pass done")
	return records, nil
}

// Regions lists the connected environments of an account, one per region.
func (s *Service) Regions(ctx context.Context, account string) ([]api.Environment, error) {
	if strings.TrimSpace(account) == "" {
		return nil, apperrors.NewValidationError("account", "required for region discovery")
	}
	envs, err := api.FetchAll(ctx, func(ctx context.Context, start int) (api.Page[api.Environment], error) {
		return s.API.ListEnvironments(ctx, filter.Expression{}.With("account_id", filter.Eq(account)), "", start)
	})
	if err != nil {
		return nil, apperrors.Wrap(err, "list environments")
	}
	return envs, nil
}

// AssetIDs lists the protected assets of an environment for the types whose
// restore flow searches per asset.
func (s *Service) AssetIDs(ctx context.Context, rtype backup.ResourceType, environmentID string) ([]string, error) {
	if strings.TrimSpace(environmentID) == "" {
		return nil, apperrors.NewValidationError("environment id", "required for asset discovery")
	}
	f := filter.Expression{}.With("environment_id", filter.Eq(environmentID))
	switch rtype {
	case backup.BlockVolume:
		assets, err := api.FetchAll(ctx, func(ctx context.Context, start int) (api.Page[api.VolumeAsset], error) {
			return s.API.ListVolumeAssets(ctx, f, "", start)
		})
		if err != nil {
			return nil, apperrors.Wrap(err, "list volume assets")
		}
		ids := make([]string, 0, len(assets))
		for _, a := range assets {
			ids = append(ids, a.VolumeID)
		}
		return ids, nil
	case backup.ComputeInstance:
		assets, err := api.FetchAll(ctx, func(ctx context.Context, start int) (api.Page[api.InstanceAsset], error) {
			return s.API.ListInstanceAssets(ctx, f, "", start)
		})
		if err != nil {
			return nil, apperrors.Wrap(err, "list instance assets")
		}
		ids := make([]string, 0, len(assets))
		for _, a := range assets {
			ids = append(ids, a.InstanceID)
		}
		return ids, nil
	default:
		return nil, apperrors.NewValidationError("resource type", "asset discovery not supported for "+string(rtype))
	}
}

// withAssetClause narrows a listing filter to the given asset ids.
func withAssetClause(f filter.Expression, field string, ids []string) filter.Expression {
	switch len(ids) {
	case 0:
		return f
	case 1:
		return f.With(field, filter.Eq(ids[0]))
	default:
		return f.With(field, filter.In(ids))
	}
}

// refine applies the shared post-listing pipeline: tag match, asset
// restriction, first backup per asset, result cap.
func refine[T backup.Record](s *Service, action string, records []T, q Search) ([]T, error) {
	listed := len(records)
	records = backup.MatchTag(records, q.TagKey, q.TagValue)
	records = keepAssets(records, q.AssetIDs)
	records = firstPerAsset(records)
	if s.MaxResults > 0 && len(records) > s.MaxResults {
		return nil, apperrors.NewTooManyResultsError(len(records), s.MaxResults)
	}
	log.Info().
		Str("action", action).
		Int("listed", listed).
		Int("records", len(records)).
		Msg("discovery pass done")
	return records, nil
}

// inScope keeps the records belonging to the source account and region. The
// backend lists across every connected environment, so the narrowing happens
// here.
func inScope[T backup.Record](records []T, account, region string, scope func(T) (string, string)) []T {
	out := make([]T, 0, len(records))
	for _, r := range records {
		a, reg := scope(r)
		if a == account && reg == region {
			out = append(out, r)
		}
	}
	return out
}

// keepAssets restricts records to the named assets. Unlike the bucket-name
// selection this is a plain narrowing: an id with no backup in the window is
// not an error.
func keepAssets[T backup.Record](records []T, ids []string) []T {
	if len(ids) == 0 {
		return records
	}
	want := make(map[string]bool, len(ids))
	for _, id := range ids {
		want[id] = true
	}
	out := make([]T, 0, len(records))
	for _, r := range records {
		if want[r.Descriptor().AssetID] {
			out = append(out, r)
		}
	}
	return out
}

// firstPerAsset keeps one backup per asset, the first in backend order. The
// window direction decides what comes first: the newest backup under
// "before", the oldest under "after".
func firstPerAsset[T backup.Record](records []T) []T {
	seen := make(map[string]bool, len(records))
	out := make([]T, 0, len(records))
	for _, r := range records {
		id := r.Descriptor().AssetID
		if seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, r)
	}
	return out
}

// selectAssets maps requested bucket names to asset ids; with no names every
// asset is selected. A requested name with no matching asset fails the whole
// selection rather than narrowing the restore scope silently.
func selectAssets(assets []api.GroupAsset, names []string) ([]string, error) {
	if len(names) == 0 {
		ids := make([]string, 0, len(assets))
		for _, a := range assets {
			ids = append(ids, a.ID)
		}
		return ids, nil
	}
	byName := make(map[string][]string, len(assets))
	for _, a := range assets {
		byName[a.BucketName] = append(byName[a.BucketName], a.ID)
	}
	ids := make([]string, 0, len(names))
	var missing []string
	for _, n := range names {
		matched := byName[n]
		if len(matched) == 0 {
			missing = append(missing, n)
			continue
		}
		ids = append(ids, matched...)
	}
	if len(missing) > 0 {
		return nil, apperrors.NewNotFoundError("bucket asset", strings.Join(missing, ", "))
	}
	return ids, nil
}
