package api

import (
	"context"
	"net/http"

	"github.com/coveworks/bulk-restore/internal/backup"
	apperrors "github.com/coveworks/bulk-restore/internal/errors"
)

// Restore submission endpoints.
const (
	pathRestoreVolume   = "/restores/block-volumes"
	pathRestoreInstance = "/restores/compute-instances"
	pathRestoreDatabase = "/restores/databases"
	pathRestoreTable    = "/restores/tables"
	pathRestoreGroup    = "/restores/protection-groups"
)

// RestoreSource names the backup to restore from.
type RestoreSource struct {
	BackupID string `json:"backup_id"`
}

// VolumeRestoreTarget places a restored block volume.
type VolumeRestoreTarget struct {
	Zone          string       `json:"availability_zone"`
	EnvironmentID string       `json:"environment_id"`
	VolumeType    string       `json:"volume_type,omitempty"`
	IOPS          int64        `json:"iops,omitempty"`
	KMSKeyID      string       `json:"kms_key_id,omitempty"`
	Tags          []backup.Tag `json:"tags,omitempty"`
}

// RestoreVolumeRequest restores one block-volume backup.
type RestoreVolumeRequest struct {
	Source RestoreSource       `json:"source"`
	Target VolumeRestoreTarget `json:"target"`
}

// VolumeMapping re-creates one attached volume of an instance restore.
type VolumeMapping struct {
	DeviceName string       `json:"device_name"`
	VolumeID   string       `json:"volume_id"`
	KMSKeyID   string       `json:"kms_key_id,omitempty"`
	Tags       []backup.Tag `json:"tags,omitempty"`
}

// RestoreNetworkInterface re-creates one network interface of an instance
// restore. An empty InterfaceID provisions a fresh interface.
type RestoreNetworkInterface struct {
	DeviceIndex       int      `json:"device_index"`
	InterfaceID       string   `json:"interface_id"`
	SubnetID          string   `json:"subnet_id"`
	SecurityGroupIDs  []string `json:"security_group_ids,omitempty"`
	RestoreDefault    bool     `json:"restore_default"`
	RestoreFromBackup bool     `json:"restore_from_backup"`
}

// InstanceRestoreTarget places a restored compute instance.
type InstanceRestoreTarget struct {
	Zone               string                    `json:"availability_zone"`
	EnvironmentID      string                    `json:"environment_id"`
	VPCID              string                    `json:"vpc_id"`
	SubnetID           string                    `json:"subnet_id"`
	IAMInstanceProfile string                    `json:"iam_instance_profile,omitempty"`
	KeyPairName        string                    `json:"key_pair_name,omitempty"`
	ShouldPowerOn      bool                      `json:"should_power_on"`
	VolumeMappings     []VolumeMapping           `json:"volume_mappings"`
	NetworkInterfaces  []RestoreNetworkInterface `json:"network_interfaces"`
	Tags               []backup.Tag              `json:"tags,omitempty"`
}

// RestoreInstanceRequest restores one compute-instance backup.
type RestoreInstanceRequest struct {
	Source RestoreSource         `json:"source"`
	Target InstanceRestoreTarget `json:"target"`
}

// DatabaseRestoreTarget places a restored managed database.
type DatabaseRestoreTarget struct {
	Name               string       `json:"name"`
	EnvironmentID      string       `json:"environment_id"`
	SubnetGroupName    string       `json:"subnet_group_name"`
	SecurityGroupIDs   []string     `json:"security_group_ids,omitempty"`
	KMSKeyID           string       `json:"kms_key_id,omitempty"`
	PubliclyAccessible bool         `json:"is_publicly_accessible"`
	Tags               []backup.Tag `json:"tags,omitempty"`
}

// RestoreDatabaseRequest restores one managed-database backup.
type RestoreDatabaseRequest struct {
	Source RestoreSource         `json:"source"`
	Target DatabaseRestoreTarget `json:"target"`
}

// TableRestoreTarget places a restored key-value table.
type TableRestoreTarget struct {
	TableName     string                  `json:"table_name"`
	EnvironmentID string                  `json:"environment_id"`
	SSE           *backup.TableSSE        `json:"sse,omitempty"`
	Throughput    *backup.TableThroughput `json:"provisioned_throughput,omitempty"`
	BillingMode   string                  `json:"billing_mode,omitempty"`
	TableClass    string                  `json:"table_class,omitempty"`
	GlobalIndexes []backup.SecondaryIndex `json:"global_secondary_indexes,omitempty"`
	LocalIndexes  []backup.SecondaryIndex `json:"local_secondary_indexes,omitempty"`
	Tags          []backup.Tag            `json:"tags,omitempty"`
}

// RestoreTableRequest restores one key-value-table backup.
type RestoreTableRequest struct {
	Source RestoreSource      `json:"source"`
	Target TableRestoreTarget `json:"target"`
}

// GroupRestoreSource names a protection-group backup plus the bucket assets
// and object filters restricting what is restored from it.
type GroupRestoreSource struct {
	BackupID      string               `json:"backup_id"`
	AssetIDs      []string             `json:"asset_ids"`
	ObjectFilters backup.ObjectFilters `json:"object_filters"`
}

// GroupRestoreTarget places restored objects into a destination bucket.
type GroupRestoreTarget struct {
	BucketID                    string `json:"bucket_id"`
	EnvironmentID               string `json:"environment_id"`
	Prefix                      string `json:"prefix,omitempty"`
	Overwrite                   bool   `json:"overwrite"`
	RestoreOriginalStorageClass bool   `json:"restore_original_storage_class"`
}

// RestoreGroupRequest restores one protection-group backup.
type RestoreGroupRequest struct {
	Source GroupRestoreSource `json:"source"`
	Target GroupRestoreTarget `json:"target"`
}

type restoreResponse struct {
	TaskID string `json:"task_id"`
}

// submit posts a restore request and returns the spawned task id.
func (c *Client) submit(ctx context.Context, action, path string, body any) (string, error) {
	out, err := postJSON[restoreResponse](ctx, c, action, path, body)
	if err != nil {
		return "", err
	}
	if out.TaskID == "" {
		return "", apperrors.NewAPIError(http.StatusOK, "restore accepted without task id", "")
	}
	return out.TaskID, nil
}

// RestoreVolume submits a block-volume restore.
func (c *Client) RestoreVolume(ctx context.Context, req RestoreVolumeRequest) (string, error) {
	return c.submit(ctx, "restore_volume", pathRestoreVolume, req)
}

// RestoreInstance submits a compute-instance restore.
func (c *Client) RestoreInstance(ctx context.Context, req RestoreInstanceRequest) (string, error) {
	return c.submit(ctx, "restore_instance", pathRestoreInstance, req)
}

// RestoreDatabase submits a managed-database restore.
func (c *Client) RestoreDatabase(ctx context.Context, req RestoreDatabaseRequest) (string, error) {
	return c.submit(ctx, "restore_database", pathRestoreDatabase, req)
}

// RestoreTable submits a key-value-table restore.
func (c *Client) RestoreTable(ctx context.Context, req RestoreTableRequest) (string, error) {
	return c.submit(ctx, "restore_table", pathRestoreTable, req)
}

// RestoreGroup submits a protection-group restore.
func (c *Client) RestoreGroup(ctx context.Context, req RestoreGroupRequest) (string, error) {
	return c.submit(ctx, "restore_group", pathRestoreGroup, req)
}
