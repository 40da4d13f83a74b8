package engine

import (
	"encoding/json"
	"strings"

	"github.com/coveworks/bulk-restore/internal/backup"
	apperrors "github.com/coveworks/bulk-restore/internal/errors"
	"github.com/coveworks/bulk-restore/internal/filter"
	"github.com/coveworks/bulk-restore/internal/resolve"
)

// Input is the operator-facing run document. One document drives a whole run:
// which account and regions to search, which resource types to restore, and
// the target specification per type. Cross-account behavior is inferred from
// the target account, never stated explicitly.
type Input struct {
	SourceAccount string   `json:"source_account"`
	SourceRegions []string `json:"source_regions,omitempty"`
	ResourceTypes []string `json:"resource_types"`

	Search   SearchInput   `json:"search"`
	Target   TargetInput   `json:"target"`
	Defaults DefaultsInput `json:"defaults,omitempty"`
}

// SearchInput narrows discovery. AssetIDs applies to every requested type;
// ids are native to their type, so a mixed run simply never matches across
// types. ProtectionGroup is consulted only when object protection groups are
// requested.
type SearchInput struct {
	Direction      string           `json:"direction,omitempty"`
	StartDayOffset filter.DayOffset `json:"start_day_offset,omitempty"`
	EndDayOffset   filter.DayOffset `json:"end_day_offset,omitempty"`

	TagKey   string   `json:"tag_key,omitempty"`
	TagValue string   `json:"tag_value,omitempty"`
	AssetIDs []string `json:"asset_ids,omitempty"`

	ProtectionGroup GroupSearchInput `json:"protection_group,omitempty"`
}

// GroupSearchInput selects one protection group and the objects to restore
// from it. An absent LatestVersionOnly means true; the zero value of a plain
// bool could not tell "absent" from "false".
type GroupSearchInput struct {
	Name              string   `json:"name,omitempty"`
	BucketNames       []string `json:"bucket_names,omitempty"`
	Prefix            string   `json:"prefix,omitempty"`
	StorageClasses    []string `json:"storage_classes,omitempty"`
	LatestVersionOnly *bool    `json:"latest_version_only,omitempty"`
}

// Filters settles the object filters for the group search.
func (g GroupSearchInput) Filters() backup.ObjectFilters {
	latest := true
	if g.LatestVersionOnly != nil {
		latest = *g.LatestVersionOnly
	}
	return backup.ObjectFilters{
		LatestVersionOnly: latest,
		Prefix:            g.Prefix,
		StorageClasses:    g.StorageClasses,
	}
}

// TargetInput carries the partial target specification per resource type plus
// the run-wide placement. An empty Account restores into the source account;
// an empty Region restores into each backup's source region.
type TargetInput struct {
	Account    string            `json:"account,omitempty"`
	Region     string            `json:"region,omitempty"`
	AppendTags map[string]string `json:"append_tags,omitempty"`

	Volume   *resolve.VolumeTarget   `json:"volume,omitempty"`
	Instance *resolve.InstanceTarget `json:"instance,omitempty"`
	Database *resolve.DatabaseTarget `json:"database,omitempty"`
	Table    *resolve.TableTarget    `json:"table,omitempty"`
	Group    *resolve.GroupTarget    `json:"group,omitempty"`
}

// DefaultsInput carries the per-type default specifications reconciled into
// resolved targets after inheritance.
type DefaultsInput struct {
	Volume   *resolve.VolumeTarget   `json:"volume,omitempty"`
	Instance *resolve.InstanceTarget `json:"instance,omitempty"`
	Database *resolve.DatabaseTarget `json:"database,omitempty"`
	Table    *resolve.TableTarget    `json:"table,omitempty"`
	Group    *resolve.GroupTarget    `json:"group,omitempty"`
}

// DecodeInput parses and validates a run input document.
func DecodeInput(data []byte) (Input, error) {
	var in Input
	if err := json.Unmarshal(data, &in); err != nil {
		return Input{}, apperrors.NewValidationError("input", err.Error())
	}
	if err := in.Validate(); err != nil {
		return Input{}, err
	}
	return in, nil
}

// Validate checks the document before any backend call is made.
func (in Input) Validate() error {
	if strings.TrimSpace(in.SourceAccount) == "" {
		return apperrors.NewValidationError("source_account", "required")
	}

	types, err := in.Types()
	if err != nil {
		return err
	}

	regional := false
	for _, t := range types {
		if t != backup.ObjectProtectionGroup {
			regional = true
			continue
		}
		// Protection groups are searched by name, not by region, and the
		// destination bucket lookup needs an explicit region.
		if strings.TrimSpace(in.Search.ProtectionGroup.Name) == "" {
			return apperrors.NewValidationError("protection_group.name", "required when object protection groups are requested")
		}
		if strings.TrimSpace(in.Target.Region) == "" {
			return apperrors.NewValidationError("target.region", "required when object protection groups are requested")
		}
	}
	if regional && len(in.SourceRegions) == 0 {
		return apperrors.NewValidationError("source_regions", "at least one region is required")
	}

	switch strings.ToLower(strings.TrimSpace(in.Search.Direction)) {
	case "", filter.DirectionBefore, filter.DirectionAfter:
	default:
		return apperrors.NewValidationError("direction", "must be \"before\" or \"after\"")
	}
	return nil
}

// Types parses the requested resource types, deduplicated in input order.
func (in Input) Types() ([]backup.ResourceType, error) {
	if len(in.ResourceTypes) == 0 {
		return nil, apperrors.NewValidationError("resource_types", "at least one resource type is required")
	}
	seen := make(map[backup.ResourceType]bool, len(in.ResourceTypes))
	out := make([]backup.ResourceType, 0, len(in.ResourceTypes))
	for _, raw := range in.ResourceTypes {
		t, err := backup.ParseResourceType(raw)
		if err != nil {
			return nil, err
		}
		if seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	return out, nil
}

// TargetAccount is the account restored into.
func (in Input) TargetAccount() string {
	if a := strings.TrimSpace(in.Target.Account); a != "" {
		return a
	}
	return strings.TrimSpace(in.SourceAccount)
}

// CrossAccount reports whether the restore leaves the source account.
func (in Input) CrossAccount() bool {
	return in.TargetAccount() != strings.TrimSpace(in.SourceAccount)
}

// TargetRegion is the region restored into for a backup found in
// sourceRegion.
func (in Input) TargetRegion(sourceRegion string) string {
	if r := strings.TrimSpace(in.Target.Region); r != "" {
		return r
	}
	return sourceRegion
}

// Window is the discovery search window.
func (in Input) Window() filter.Window {
	return filter.Window{
		Direction:      in.Search.Direction,
		StartDayOffset: in.Search.StartDayOffset,
		EndDayOffset:   in.Search.EndDayOffset,
	}
}
