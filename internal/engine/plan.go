package engine

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/coveworks/bulk-restore/internal/artifact"
	"github.com/coveworks/bulk-restore/internal/backup"
	"github.com/coveworks/bulk-restore/internal/discovery"
	apperrors "github.com/coveworks/bulk-restore/internal/errors"
	"github.com/coveworks/bulk-restore/internal/resolve"
)

// Plan is the reviewed document between discovery and restore: every backup
// in scope paired with its fully resolved target. Nothing has been submitted
// yet when a plan exists.
type Plan struct {
	RunID         string    `json:"run_id"`
	SourceAccount string    `json:"source_account"`
	TargetAccount string    `json:"target_account"`
	CreatedAt     time.Time `json:"created_at"`
	Entries       []Entry   `json:"entries"`
}

// Entry is one planned restore. Exactly one of the per-type pairs is set,
// matching ResourceType.
type Entry struct {
	ResourceType  backup.ResourceType `json:"resource_type"`
	SourceRegion  string              `json:"source_region,omitempty"`
	TargetAccount string              `json:"target_account"`
	TargetRegion  string              `json:"target_region"`
	RunToken      string              `json:"run_token"`

	Volume   *VolumePlan   `json:"volume,omitempty"`
	Instance *InstancePlan `json:"instance,omitempty"`
	Database *DatabasePlan `json:"database,omitempty"`
	Table    *TablePlan    `json:"table,omitempty"`
	Group    *GroupPlan    `json:"group,omitempty"`
}

type VolumePlan struct {
	Record backup.VolumeBackup  `json:"record"`
	Target resolve.VolumeTarget `json:"target"`
}

type InstancePlan struct {
	Record backup.InstanceBackup  `json:"record"`
	Target resolve.InstanceTarget `json:"target"`
}

type DatabasePlan struct {
	Record backup.DatabaseBackup  `json:"record"`
	Target resolve.DatabaseTarget `json:"target"`
}

type TablePlan struct {
	Record backup.TableBackup  `json:"record"`
	Target resolve.TableTarget `json:"target"`
}

type GroupPlan struct {
	Record backup.GroupBackup  `json:"record"`
	Target resolve.GroupTarget `json:"target"`
}

// pair returns the populated record and target for request building.
func (en Entry) pair() (backup.Record, any, error) {
	switch {
	case en.Volume != nil:
		return en.Volume.Record, en.Volume.Target, nil
	case en.Instance != nil:
		return en.Instance.Record, en.Instance.Target, nil
	case en.Database != nil:
		return en.Database.Record, en.Database.Target, nil
	case en.Table != nil:
		return en.Table.Record, en.Table.Target, nil
	case en.Group != nil:
		return en.Group.Record, en.Group.Target, nil
	}
	return nil, nil, apperrors.NewValidationError("entry", "no backup record for "+string(en.ResourceType))
}

// Describe identifies the entry's backup for logs and outcomes.
func (en Entry) Describe() backup.Descriptor {
	rec, _, err := en.pair()
	if err != nil {
		return backup.Descriptor{Type: en.ResourceType}
	}
	return rec.Descriptor()
}

// DecodePlan parses a plan document and checks each entry carries its record.
func DecodePlan(data []byte) (Plan, error) {
	var p Plan
	if err := json.Unmarshal(data, &p); err != nil {
		return Plan{}, apperrors.NewValidationError("plan", err.Error())
	}
	for _, en := range p.Entries {
		if _, _, err := en.pair(); err != nil {
			return Plan{}, err
		}
	}
	return p, nil
}

// Plan discovers backups per source region and resource type and resolves a
// complete target for each. Any resolution failure aborts the plan: a plan
// document is either whole or absent. Empty discovery passes only shrink it.
func (e *Engine) Plan(ctx context.Context, in Input) (Plan, error) {
	if err := in.Validate(); err != nil {
		return Plan{}, err
	}
	types, err := in.Types()
	if err != nil {
		return Plan{}, err
	}

	plan := Plan{
		RunID:         e.token(),
		SourceAccount: strings.TrimSpace(in.SourceAccount),
		TargetAccount: in.TargetAccount(),
		CreatedAt:     time.Now().UTC(),
	}
	cross := in.CrossAccount()
	res := e.resolver()

	start := time.Now()
	log.Info().
		Str("action", "plan").
		Str("run_id", plan.RunID).
		Str("source_account", plan.SourceAccount).
		Str("target_account", plan.TargetAccount).
		Bool("cross_account", cross).
		Msg("starting plan")

	groups := false
	for _, t := range types {
		if t == backup.ObjectProtectionGroup {
			groups = true
		}
	}

	for _, region := range in.SourceRegions {
		for _, t := range types {
			if t == backup.ObjectProtectionGroup {
				continue
			}
			entries, err := e.planRegion(ctx, in, res, cross, t, region)
			if err != nil {
				return Plan{}, err
			}
			if len(entries) == 0 {
				log.Info().
					Str("action", "plan").
					Str("resource_type", string(t)).
					Str("region", region).
					Msg("no backups in scope")
				continue
			}
			plan.Entries = append(plan.Entries, entries...)
		}
	}
	if groups {
		// Protection groups are searched by name across regions, once per run.
		entries, err := e.planGroups(ctx, in, res, cross)
		if err != nil {
			return Plan{}, err
		}
		if len(entries) == 0 {
			log.Info().
				Str("action", "plan").
				Str("resource_type", string(backup.ObjectProtectionGroup)).
				Str("group", in.Search.ProtectionGroup.Name).
				Msg("no backups in scope")
		}
		plan.Entries = append(plan.Entries, entries...)
	}

	log.Info().
		Str("action", "plan").
		Str("run_id", plan.RunID).
		Int("entries", len(plan.Entries)).
		Dur("elapsed_ms", time.Since(start)).
		Msg("plan done")

	if e.Artifacts != nil {
		data, err := json.MarshalIndent(plan, "", "  ")
		if err != nil {
			return Plan{}, apperrors.Wrap(err, "encode plan")
		}
		key := artifact.PlanKey(plan.RunID)
		if err := e.Artifacts.Put(ctx, key, data); err != nil {
			return Plan{}, apperrors.Wrap(err, "store plan")
		}
		log.Info().
			Str("action", "plan").
			Str("store", e.Artifacts.Name()).
			Str("key", key).
			Msg("plan stored")
	}
	return plan, nil
}

func (e *Engine) newEntry(t backup.ResourceType, sourceRegion string, in Input) Entry {
	return Entry{
		ResourceType:  t,
		SourceRegion:  sourceRegion,
		TargetAccount: in.TargetAccount(),
		TargetRegion:  in.TargetRegion(sourceRegion),
		RunToken:      e.token(),
	}
}

// planRegion runs one discovery pass and resolves every record it returns.
func (e *Engine) planRegion(ctx context.Context, in Input, res resolve.Resolver, cross bool, t backup.ResourceType, region string) ([]Entry, error) {
	account := strings.TrimSpace(in.SourceAccount)
	q := discovery.Search{
		Window:   in.Window(),
		TagKey:   in.Search.TagKey,
		TagValue: in.Search.TagValue,
		AssetIDs: in.Search.AssetIDs,
	}

	switch t {
	case backup.BlockVolume:
		records, err := e.Discovery.Volumes(ctx, account, region, q)
		if err != nil {
			return nil, err
		}
		entries := make([]Entry, 0, len(records))
		for _, rec := range records {
			spec := resolve.VolumeTarget{}
			if in.Target.Volume != nil {
				spec = *in.Target.Volume
			}
			resolved, err := res.Volume(spec, rec, cross, in.Target.AppendTags)
			if err != nil {
				return nil, apperrors.Wrap(err, "resolve volume "+rec.VolumeID)
			}
			if err := res.ApplyVolumeDefaults(&resolved, in.Defaults.Volume); err != nil {
				return nil, apperrors.Wrap(err, "resolve volume "+rec.VolumeID)
			}
			en := e.newEntry(t, region, in)
			en.Volume = &VolumePlan{Record: rec, Target: resolved}
			entries = append(entries, en)
		}
		return entries, nil

	case backup.ComputeInstance:
		records, err := e.Discovery.Instances(ctx, account, region, q)
		if err != nil {
			return nil, err
		}
		entries := make([]Entry, 0, len(records))
		for _, rec := range records {
			spec := resolve.InstanceTarget{}
			if in.Target.Instance != nil {
				spec = *in.Target.Instance
			}
			resolved, err := res.Instance(spec, rec, cross, in.Target.AppendTags)
			if err != nil {
				return nil, apperrors.Wrap(err, "resolve instance "+rec.InstanceID)
			}
			if err := res.ApplyInstanceDefaults(&resolved, in.Defaults.Instance); err != nil {
				return nil, apperrors.Wrap(err, "resolve instance "+rec.InstanceID)
			}
			en := e.newEntry(t, region, in)
			en.Instance = &InstancePlan{Record: rec, Target: resolved}
			entries = append(entries, en)
		}
		return entries, nil

	case backup.ManagedDatabase:
		records, err := e.Discovery.Databases(ctx, account, region, q)
		if err != nil {
			return nil, err
		}
		entries := make([]Entry, 0, len(records))
		for _, rec := range records {
			spec := resolve.DatabaseTarget{}
			if in.Target.Database != nil {
				spec = *in.Target.Database
			}
			resolved, err := res.Database(spec, rec, cross, in.Target.AppendTags)
			if err != nil {
				return nil, apperrors.Wrap(err, "resolve database "+rec.ResourceID)
			}
			if err := res.ApplyDatabaseDefaults(&resolved, in.Defaults.Database); err != nil {
				return nil, apperrors.Wrap(err, "resolve database "+rec.ResourceID)
			}
			en := e.newEntry(t, region, in)
			en.Database = &DatabasePlan{Record: rec, Target: resolved}
			entries = append(entries, en)
		}
		return entries, nil

	case backup.KeyValueTable:
		records, err := e.Discovery.Tables(ctx, account, region, q)
		if err != nil {
			return nil, err
		}
		entries := make([]Entry, 0, len(records))
		for _, rec := range records {
			spec := resolve.TableTarget{}
			if in.Target.Table != nil {
				spec = *in.Target.Table
			}
			resolved, err := res.Table(spec, rec, cross, in.Target.AppendTags)
			if err != nil {
				return nil, apperrors.Wrap(err, "resolve table "+rec.TableName)
			}
			if err := res.ApplyTableDefaults(&resolved, in.Defaults.Table); err != nil {
				return nil, apperrors.Wrap(err, "resolve table "+rec.TableName)
			}
			en := e.newEntry(t, region, in)
			en.Table = &TablePlan{Record: rec, Target: resolved}
			entries = append(entries, en)
		}
		return entries, nil
	}
	return nil, apperrors.NewValidationError("resource type", "unsupported: "+string(t))
}

// planGroups resolves protection-group entries. The group is selected by
// name, so the pass runs once per run rather than once per region.
func (e *Engine) planGroups(ctx context.Context, in Input, res resolve.Resolver, cross bool) ([]Entry, error) {
	q := discovery.GroupSearch{
		GroupName:   in.Search.ProtectionGroup.Name,
		BucketNames: in.Search.ProtectionGroup.BucketNames,
		Window:      in.Window(),
		Filters:     in.Search.ProtectionGroup.Filters(),
	}
	records, err := e.Discovery.ProtectionGroups(ctx, q)
	if err != nil {
		return nil, err
	}
	entries := make([]Entry, 0, len(records))
	for _, rec := range records {
		spec := resolve.GroupTarget{}
		if in.Target.Group != nil {
			spec = *in.Target.Group
		}
		resolved, err := res.ProtectionGroup(spec, rec, cross)
		if err != nil {
			return nil, apperrors.Wrap(err, "resolve protection group "+rec.GroupName)
		}
		if err := res.ApplyGroupDefaults(&resolved, in.Defaults.Group); err != nil {
			return nil, apperrors.Wrap(err, "resolve protection group "+rec.GroupName)
		}
		en := e.newEntry(backup.ObjectProtectionGroup, "", in)
		en.Group = &GroupPlan{Record: rec, Target: resolved}
		entries = append(entries, en)
	}
	return entries, nil
}
