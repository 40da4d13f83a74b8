package backup

import "time"

// Descriptor identifies a backup record independently of its concrete type.
type Descriptor struct {
	Type     ResourceType `json:"resource_type"`
	BackupID string       `json:"backup_id"`
	AssetID  string       `json:"asset_id"`
}

// Record is the type-erased view of a backup record. Records are immutable
// snapshots produced by discovery; resolution and request building only read
// them.
type Record interface {
	Tagged
	Descriptor() Descriptor
}

// VolumeBackup is a block-volume backup record.
type VolumeBackup struct {
	BackupID   string    `json:"backup_id"`
	VolumeID   string    `json:"volume_id"`
	Account    string    `json:"account_id"`
	Region     string    `json:"region"`
	Zone       string    `json:"availability_zone"`
	Encrypted  bool      `json:"is_encrypted"`
	KMSKeyID   string    `json:"kms_key_id,omitempty"`
	VolumeType string    `json:"volume_type"`
	IOPS       int64     `json:"iops,omitempty"`
	ExpireTime time.Time `json:"expiration_timestamp"`
	Tags       []Tag     `json:"tags,omitempty"`
}

func (b VolumeBackup) Descriptor() Descriptor {
	return Descriptor{Type: BlockVolume, BackupID: b.BackupID, AssetID: b.VolumeID}
}

func (b VolumeBackup) TagSet() []Tag { return b.Tags }

// NetworkInterface describes one interface attached to a backed-up instance.
type NetworkInterface struct {
	DeviceIndex      int      `json:"device_index"`
	SubnetID         string   `json:"subnet_id,omitempty"`
	SecurityGroupIDs []string `json:"security_group_ids,omitempty"`
}

// AttachedVolume describes one storage volume attached to a backed-up
// instance, keyed by its device name.
type AttachedVolume struct {
	DeviceName string `json:"device_name"`
	VolumeID   string `json:"volume_id"`
	VolumeType string `json:"volume_type,omitempty"`
	KMSKeyID   string `json:"kms_key_id,omitempty"`
	Tags       []Tag  `json:"tags,omitempty"`
}

// InstanceBackup is a compute-instance backup record.
type InstanceBackup struct {
	BackupID           string             `json:"backup_id"`
	InstanceID         string             `json:"instance_id"`
	Account            string             `json:"account_id"`
	Region             string             `json:"region"`
	Zone               string             `json:"availability_zone"`
	ImageID            string             `json:"image_id,omitempty"`
	VPCID              string             `json:"vpc_id,omitempty"`
	IAMInstanceProfile string             `json:"iam_instance_profile,omitempty"`
	KeyPairName        string             `json:"key_pair_name,omitempty"`
	KMSKeyID           string             `json:"kms_key_id,omitempty"`
	NetworkInterfaces  []NetworkInterface `json:"network_interfaces,omitempty"`
	AttachedVolumes    []AttachedVolume   `json:"attached_volumes,omitempty"`
	ExpireTime         time.Time          `json:"expiration_timestamp"`
	Tags               []Tag              `json:"tags,omitempty"`
}

func (b InstanceBackup) Descriptor() Descriptor {
	return Descriptor{Type: ComputeInstance, BackupID: b.BackupID, AssetID: b.InstanceID}
}

func (b InstanceBackup) TagSet() []Tag { return b.Tags }

// DatabaseInstance is one constituent instance of a managed-database backup.
type DatabaseInstance struct {
	Class              string `json:"class,omitempty"`
	PubliclyAccessible bool   `json:"is_publicly_accessible"`
}

// DatabaseBackup is a managed-database backup record.
type DatabaseBackup struct {
	BackupID         string             `json:"backup_id"`
	ResourceID       string             `json:"resource_id"`
	Account          string             `json:"account_id"`
	Region           string             `json:"region"`
	SubnetGroupName  string             `json:"subnet_group_name,omitempty"`
	KMSKeyID         string             `json:"kms_key_id,omitempty"`
	SecurityGroupIDs []string           `json:"security_group_ids,omitempty"`
	Instances        []DatabaseInstance `json:"instances,omitempty"`
	ExpireTime       time.Time          `json:"expiration_timestamp"`
	Tags             []Tag              `json:"tags,omitempty"`
}

func (b DatabaseBackup) Descriptor() Descriptor {
	return Descriptor{Type: ManagedDatabase, BackupID: b.BackupID, AssetID: b.ResourceID}
}

func (b DatabaseBackup) TagSet() []Tag { return b.Tags }

// PubliclyAccessible reports whether every constituent instance of the backup
// was publicly accessible. A backup with no instances is not.
func (b DatabaseBackup) PubliclyAccessible() bool {
	if len(b.Instances) == 0 {
		return false
	}
	for _, inst := range b.Instances {
		if !inst.PubliclyAccessible {
			return false
		}
	}
	return true
}

// TableThroughput is the provisioned read/write capacity of a table or index.
type TableThroughput struct {
	ReadCapacityUnits  int64 `json:"read_capacity_units"`
	WriteCapacityUnits int64 `json:"write_capacity_units"`
}

// TableSSE is the server-side encryption setting of a backed-up table.
type TableSSE struct {
	Type     string `json:"type,omitempty"`
	KMSKeyID string `json:"kms_key_id,omitempty"`
}

// KeySchemaElement is one attribute of a table or index key.
type KeySchemaElement struct {
	AttributeName string `json:"attribute_name"`
	KeyType       string `json:"key_type"`
}

// IndexProjection describes which attributes an index carries.
type IndexProjection struct {
	Type             string   `json:"projection_type,omitempty"`
	NonKeyAttributes []string `json:"non_key_attributes,omitempty"`
}

// SecondaryIndex is a global or local secondary index definition. Local
// indexes carry no throughput of their own.
type SecondaryIndex struct {
	Name       string             `json:"name"`
	KeySchema  []KeySchemaElement `json:"key_schema,omitempty"`
	Projection *IndexProjection   `json:"projection,omitempty"`
	Throughput *TableThroughput   `json:"provisioned_throughput,omitempty"`
}

// TableBackup is a key-value-table backup record.
type TableBackup struct {
	BackupID           string           `json:"backup_id"`
	TableID            string           `json:"table_id"`
	TableName          string           `json:"table_name"`
	Account            string           `json:"account_id"`
	Region             string           `json:"region"`
	SSE                *TableSSE        `json:"sse,omitempty"`
	Throughput         *TableThroughput `json:"provisioned_throughput,omitempty"`
	BillingMode        string           `json:"billing_mode,omitempty"`
	TableClass         string           `json:"table_class,omitempty"`
	GlobalIndexes      []SecondaryIndex `json:"global_secondary_indexes,omitempty"`
	LocalIndexes       []SecondaryIndex `json:"local_secondary_indexes,omitempty"`
	GlobalTableVersion string           `json:"global_table_version,omitempty"`
	ExpireTime         time.Time        `json:"expiration_timestamp"`
	Tags               []Tag            `json:"tags,omitempty"`
}

func (b TableBackup) Descriptor() Descriptor {
	return Descriptor{Type: KeyValueTable, BackupID: b.BackupID, AssetID: b.TableID}
}

func (b TableBackup) TagSet() []Tag { return b.Tags }

// ObjectFilters narrows which objects of a protection-group backup are
// restored.
type ObjectFilters struct {
	LatestVersionOnly bool     `json:"latest_version_only"`
	Prefix            string   `json:"prefix,omitempty"`
	StorageClasses    []string `json:"storage_classes,omitempty"`
}

// GroupBackup is an object-protection-group backup record. AssetIDs names
// the bucket assets of the group selected for restore.
type GroupBackup struct {
	BackupID      string        `json:"backup_id"`
	GroupID       string        `json:"group_id"`
	GroupName     string        `json:"group_name"`
	AssetIDs      []string      `json:"asset_ids,omitempty"`
	ObjectFilters ObjectFilters `json:"object_filters"`
}

func (b GroupBackup) Descriptor() Descriptor {
	return Descriptor{Type: ObjectProtectionGroup, BackupID: b.BackupID, AssetID: b.GroupID}
}

// Protection-group membership is id-based; groups carry no tag set.
func (b GroupBackup) TagSet() []Tag { return nil }
