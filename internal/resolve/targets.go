package resolve

import (
	"fmt"
	"strings"

	"github.com/coveworks/bulk-restore/internal/backup"
	apperrors "github.com/coveworks/bulk-restore/internal/errors"
)

const databaseSuffixLen = 3

// iopsVolumeTypes are the volume types that accept a provisioned IOPS value.
var iopsVolumeTypes = map[string]bool{
	"gp3": true,
	"io1": true,
	"io2": true,
}

// VolumeTarget places a restored block volume.
type VolumeTarget struct {
	Zone       string       `json:"az,omitempty"`
	VolumeType string       `json:"volume_type,omitempty"`
	IOPS       int64        `json:"iops,omitempty"`
	KMSKeyID   string       `json:"kms_key_id,omitempty"`
	Tags       []backup.Tag `json:"tags,omitempty"`
}

func (t *VolumeTarget) fields(rec backup.VolumeBackup) []fieldSpec {
	return []fieldSpec{
		{name: "az", value: &t.Zone, source: rec.Zone},
		{name: "volume_type", value: &t.VolumeType, source: rec.VolumeType},
		{name: "kms_key_id", value: &t.KMSKeyID, source: rec.KMSKeyID, required: true},
	}
}

// checkIOPS rejects a provisioned IOPS value on a volume type that cannot
// take one. Deferred types are checked again after the defaults pass.
func (t *VolumeTarget) checkIOPS() error {
	if t.IOPS <= 0 || t.VolumeType == FollowDefault {
		return nil
	}
	if !iopsVolumeTypes[t.VolumeType] {
		return apperrors.NewValidationError("iops",
			fmt.Sprintf("volume type %q does not accept provisioned iops", t.VolumeType))
	}
	return nil
}

// Volume resolves a block-volume target against its backup record.
func (r Resolver) Volume(spec VolumeTarget, rec backup.VolumeBackup, crossAccount bool, appendTags map[string]string) (VolumeTarget, error) {
	out := spec
	if err := resolveFields(out.fields(rec), crossAccount); err != nil {
		return VolumeTarget{}, err
	}
	if err := out.checkIOPS(); err != nil {
		return VolumeTarget{}, err
	}
	out.Tags = backup.AppendTags(rec.Tags, appendTags)
	return out, nil
}

// ApplyVolumeDefaults is the final gate before request building: deferred or
// empty fields take the type default, deferred fields with no default fail.
func (r Resolver) ApplyVolumeDefaults(spec *VolumeTarget, def *VolumeTarget) error {
	var defFields []fieldSpec
	if def != nil {
		defFields = def.fields(backup.VolumeBackup{})
	}
	if err := applyDefaults(spec.fields(backup.VolumeBackup{}), defFields); err != nil {
		return err
	}
	return spec.checkIOPS()
}

// InstanceTarget places a restored compute instance.
type InstanceTarget struct {
	Zone               string       `json:"az,omitempty"`
	VPCID              string       `json:"vpc_id,omitempty"`
	SubnetID           string       `json:"subnet_id,omitempty"`
	SecurityGroupIDs   []string     `json:"security_group_ids,omitempty"`
	KMSKeyID           string       `json:"kms_key_id,omitempty"`
	IAMInstanceProfile string       `json:"iam_instance_profile,omitempty"`
	KeyPairName        string       `json:"key_pair_name,omitempty"`
	Tags               []backup.Tag `json:"tags,omitempty"`
}

func (t *InstanceTarget) fields(rec backup.InstanceBackup) []fieldSpec {
	return []fieldSpec{
		{name: "az", value: &t.Zone, source: rec.Zone},
		{name: "vpc_id", value: &t.VPCID, source: rec.VPCID, required: true},
		{name: "subnet_id", value: &t.SubnetID, source: firstSubnet(rec), required: true},
		{name: "kms_key_id", value: &t.KMSKeyID, source: rec.KMSKeyID, required: true},
		{name: "iam_instance_profile", value: &t.IAMInstanceProfile, source: rec.IAMInstanceProfile},
		{name: "key_pair_name", value: &t.KeyPairName, source: rec.KeyPairName},
	}
}

func (t *InstanceTarget) listFields(rec backup.InstanceBackup) []listField {
	// Security groups have no single source value; left empty, the request
	// builder falls back to each interface's own groups.
	return []listField{
		{name: "security_group_ids", value: &t.SecurityGroupIDs, required: true},
	}
}

// firstSubnet is the subnet of the first network interface in the backup,
// the same interface the request builder starts its backfill from.
func firstSubnet(rec backup.InstanceBackup) string {
	for _, ni := range rec.NetworkInterfaces {
		if ni.SubnetID != "" {
			return ni.SubnetID
		}
	}
	return ""
}

// Instance resolves a compute-instance target against its backup record.
func (r Resolver) Instance(spec InstanceTarget, rec backup.InstanceBackup, crossAccount bool, appendTags map[string]string) (InstanceTarget, error) {
	out := spec
	if err := resolveFields(out.fields(rec), crossAccount); err != nil {
		return InstanceTarget{}, err
	}
	if err := resolveListFields(out.listFields(rec), crossAccount); err != nil {
		return InstanceTarget{}, err
	}
	out.Tags = backup.AppendTags(rec.Tags, appendTags)
	return out, nil
}

// ApplyInstanceDefaults reconciles a resolved instance target with defaults.
func (r Resolver) ApplyInstanceDefaults(spec *InstanceTarget, def *InstanceTarget) error {
	var defFields []fieldSpec
	var defLists []listField
	if def != nil {
		defFields = def.fields(backup.InstanceBackup{})
		defLists = def.listFields(backup.InstanceBackup{})
	}
	if err := applyDefaults(spec.fields(backup.InstanceBackup{}), defFields); err != nil {
		return err
	}
	applyListDefaults(spec.listFields(backup.InstanceBackup{}), defLists)
	return nil
}

// DatabaseTarget places a restored managed database.
type DatabaseTarget struct {
	Name             string       `json:"name,omitempty"`
	SubnetGroupName  string       `json:"subnet_group_name,omitempty"`
	SecurityGroupIDs []string     `json:"security_group_ids,omitempty"`
	KMSKeyID         string       `json:"kms_key_id,omitempty"`
	Tags             []backup.Tag `json:"tags,omitempty"`
}

func (t *DatabaseTarget) fields(rec backup.DatabaseBackup) []fieldSpec {
	return []fieldSpec{
		{name: "subnet_group_name", value: &t.SubnetGroupName, source: rec.SubnetGroupName, required: true},
		{name: "kms_key_id", value: &t.KMSKeyID, source: rec.KMSKeyID, required: true},
	}
}

func (t *DatabaseTarget) listFields(rec backup.DatabaseBackup) []listField {
	return []listField{
		{name: "security_group_ids", value: &t.SecurityGroupIDs, source: rec.SecurityGroupIDs, required: true},
	}
}

// Database resolves a managed-database target. A target name is mandatory:
// absent on a same-account restore one is synthesized from the source
// resource id plus a short random suffix, absent cross-account it fails.
func (r Resolver) Database(spec DatabaseTarget, rec backup.DatabaseBackup, crossAccount bool, appendTags map[string]string) (DatabaseTarget, error) {
	out := spec
	if strings.TrimSpace(out.Name) == "" {
		if crossAccount {
			return DatabaseTarget{}, apperrors.NewValidationError("name", "must be filled for cross-account restore")
		}
		out.Name = rec.ResourceID + r.suffix(databaseSuffixLen)
	}
	if err := resolveFields(out.fields(rec), crossAccount); err != nil {
		return DatabaseTarget{}, err
	}
	if err := resolveListFields(out.listFields(rec), crossAccount); err != nil {
		return DatabaseTarget{}, err
	}
	out.Tags = backup.AppendTags(rec.Tags, appendTags)
	return out, nil
}

// ApplyDatabaseDefaults reconciles a resolved database target with defaults.
func (r Resolver) ApplyDatabaseDefaults(spec *DatabaseTarget, def *DatabaseTarget) error {
	var defFields []fieldSpec
	var defLists []listField
	if def != nil {
		defFields = def.fields(backup.DatabaseBackup{})
		defLists = def.listFields(backup.DatabaseBackup{})
	}
	if err := applyDefaults(spec.fields(backup.DatabaseBackup{}), defFields); err != nil {
		return err
	}
	applyListDefaults(spec.listFields(backup.DatabaseBackup{}), defLists)
	return nil
}

// TableTarget places a restored key-value table. ChangeSet is consumed when
// synthesizing the table name and is never sent to the backend.
type TableTarget struct {
	TableName string       `json:"table_name,omitempty"`
	ChangeSet string       `json:"change_set,omitempty"`
	Tags      []backup.Tag `json:"tags,omitempty"`
}

// Table resolves a key-value-table target. The restored name is the explicit
// one, else "<source name>-<change set>".
func (r Resolver) Table(spec TableTarget, rec backup.TableBackup, crossAccount bool, appendTags map[string]string) (TableTarget, error) {
	out := spec
	if strings.TrimSpace(out.TableName) == "" {
		if strings.TrimSpace(out.ChangeSet) == "" {
			return TableTarget{}, apperrors.NewValidationError("table_name", "either a table name or a change set is required")
		}
		out.TableName = rec.TableName + "-" + strings.TrimSpace(out.ChangeSet)
	}
	out.Tags = backup.AppendTags(rec.Tags, appendTags)
	return out, nil
}

// ApplyTableDefaults reconciles a resolved table target with defaults. The
// name was settled during resolution, so only an empty name taking a default
// name remains meaningful.
func (r Resolver) ApplyTableDefaults(spec *TableTarget, def *TableTarget) error {
	var defFields []fieldSpec
	if def != nil {
		defFields = []fieldSpec{{name: "table_name", value: &def.TableName}}
	}
	return applyDefaults([]fieldSpec{{name: "table_name", value: &spec.TableName}}, defFields)
}

// GroupTarget places restored protection-group objects. The destination
// bucket has no source counterpart: the request builder rejects an empty one.
type GroupTarget struct {
	Bucket string `json:"bucket,omitempty"`
	Prefix string `json:"prefix,omitempty"`
}

func (t *GroupTarget) fields() []fieldSpec {
	return []fieldSpec{
		{name: "bucket", value: &t.Bucket},
		{name: "prefix", value: &t.Prefix},
	}
}

// ProtectionGroup resolves an object-protection-group target. Both fields are
// operator input; nothing is inherited from the backup.
func (r Resolver) ProtectionGroup(spec GroupTarget, rec backup.GroupBackup, crossAccount bool) (GroupTarget, error) {
	out := spec
	if err := resolveFields(out.fields(), crossAccount); err != nil {
		return GroupTarget{}, err
	}
	return out, nil
}

// ApplyGroupDefaults reconciles a resolved protection-group target with
// defaults.
func (r Resolver) ApplyGroupDefaults(spec *GroupTarget, def *GroupTarget) error {
	var defFields []fieldSpec
	if def != nil {
		defFields = def.fields()
	}
	return applyDefaults(spec.fields(), defFields)
}
