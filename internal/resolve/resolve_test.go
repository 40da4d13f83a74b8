package resolve

import (
	"errors"
	"strings"
	"testing"

	"github.com/coveworks/bulk-restore/internal/backup"
	apperrors "github.com/coveworks/bulk-restore/internal/errors"
)

func fixedSuffix(s string) SuffixFunc {
	return func(n int) string { return s }
}

func wantFieldError(t *testing.T, err error, field string) {
	t.Helper()
	var ve *apperrors.ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("want ValidationError, got %v", err)
	}
	if ve.Field != field {
		t.Fatalf("want error naming %q, got %q (%v)", field, ve.Field, err)
	}
}

var volumeRecord = backup.VolumeBackup{
	BackupID:   "bk-1",
	VolumeID:   "vol-1",
	Account:    "111122223333",
	Region:     "us-east-1",
	Zone:       "us-east-1c",
	Encrypted:  true,
	KMSKeyID:   "key-src",
	VolumeType: "gp2",
	Tags:       []backup.Tag{{Key: "team", Value: "data"}},
}

func TestVolumeExplicitWinsOverSource(t *testing.T) {
	var r Resolver
	got, err := r.Volume(VolumeTarget{Zone: "us-east-1a"}, volumeRecord, false, nil)
	if err != nil {
		t.Fatalf("Volume: %v", err)
	}
	if got.Zone != "us-east-1a" {
		t.Fatalf("explicit zone must win, got %q", got.Zone)
	}
	if got.VolumeType != "gp2" || got.KMSKeyID != "key-src" {
		t.Fatalf("want source values inherited, got %+v", got)
	}
	if got.IOPS != 0 {
		t.Fatalf("iops is never inherited, got %d", got.IOPS)
	}
	if len(got.Tags) != 1 || got.Tags[0].Key != "team" {
		t.Fatalf("want source tags carried, got %v", got.Tags)
	}
}

func TestVolumeCrossAccount(t *testing.T) {
	var r Resolver

	t.Run("required kms must be explicit", func(t *testing.T) {
		_, err := r.Volume(VolumeTarget{Zone: "us-west-2a"}, volumeRecord, true, nil)
		wantFieldError(t, err, "kms_key_id")
	})

	t.Run("non-required source values are deferred", func(t *testing.T) {
		got, err := r.Volume(VolumeTarget{KMSKeyID: "key-tgt"}, volumeRecord, true, nil)
		if err != nil {
			t.Fatalf("Volume: %v", err)
		}
		if got.Zone != FollowDefault || got.VolumeType != FollowDefault {
			t.Fatalf("want deferred zone and type, got %+v", got)
		}
		if got.KMSKeyID != "key-tgt" {
			t.Fatalf("explicit kms must stay, got %q", got.KMSKeyID)
		}
	})

	t.Run("field with no source value stays empty", func(t *testing.T) {
		rec := volumeRecord
		rec.KMSKeyID = ""
		rec.Zone = ""
		got, err := r.Volume(VolumeTarget{KMSKeyID: "key-tgt"}, rec, true, nil)
		if err != nil {
			t.Fatalf("Volume: %v", err)
		}
		if got.Zone != "" {
			t.Fatalf("nothing to defer without a source value, got %q", got.Zone)
		}
	})
}

func TestVolumeIOPSConstraint(t *testing.T) {
	var r Resolver

	t.Run("resolved type outside the allow list", func(t *testing.T) {
		_, err := r.Volume(VolumeTarget{IOPS: 3000}, volumeRecord, false, nil)
		wantFieldError(t, err, "iops")
	})

	for _, typ := range []string{"gp3", "io1", "io2"} {
		t.Run(typ, func(t *testing.T) {
			if _, err := r.Volume(VolumeTarget{IOPS: 3000, VolumeType: typ}, volumeRecord, false, nil); err != nil {
				t.Fatalf("iops on %s must pass, got %v", typ, err)
			}
		})
	}

	t.Run("rechecked after defaults settle the type", func(t *testing.T) {
		got, err := r.Volume(VolumeTarget{IOPS: 3000, KMSKeyID: "key-tgt"}, volumeRecord, true, nil)
		if err != nil {
			t.Fatalf("Volume: %v", err)
		}
		err = r.ApplyVolumeDefaults(&got, &VolumeTarget{Zone: "us-west-2a", VolumeType: "gp2"})
		wantFieldError(t, err, "iops")
	})
}

func TestVolumeDefaults(t *testing.T) {
	var r Resolver

	t.Run("deferred field takes the default", func(t *testing.T) {
		got, err := r.Volume(VolumeTarget{KMSKeyID: "key-tgt"}, volumeRecord, true, nil)
		if err != nil {
			t.Fatalf("Volume: %v", err)
		}
		if err := r.ApplyVolumeDefaults(&got, &VolumeTarget{Zone: "us-west-2a", VolumeType: "gp3"}); err != nil {
			t.Fatalf("ApplyVolumeDefaults: %v", err)
		}
		if got.Zone != "us-west-2a" || got.VolumeType != "gp3" {
			t.Fatalf("want defaults substituted, got %+v", got)
		}
	})

	t.Run("deferred field with no default fails", func(t *testing.T) {
		got, err := r.Volume(VolumeTarget{KMSKeyID: "key-tgt"}, volumeRecord, true, nil)
		if err != nil {
			t.Fatalf("Volume: %v", err)
		}
		err = r.ApplyVolumeDefaults(&got, &VolumeTarget{VolumeType: "gp3"})
		wantFieldError(t, err, "az")
	})

	t.Run("explicit value is never overwritten", func(t *testing.T) {
		spec := VolumeTarget{Zone: "us-east-1a", VolumeType: "gp2", KMSKeyID: "key-x"}
		if err := r.ApplyVolumeDefaults(&spec, &VolumeTarget{Zone: "eu-west-1a", VolumeType: "io1", KMSKeyID: "key-y"}); err != nil {
			t.Fatalf("ApplyVolumeDefaults: %v", err)
		}
		if spec.Zone != "us-east-1a" || spec.VolumeType != "gp2" || spec.KMSKeyID != "key-x" {
			t.Fatalf("defaults must not overwrite explicit values, got %+v", spec)
		}
	})

	t.Run("optional empty field stays empty without a default", func(t *testing.T) {
		rec := volumeRecord
		rec.KMSKeyID = ""
		rec.Encrypted = false
		got, err := r.Volume(VolumeTarget{}, rec, false, nil)
		if err != nil {
			t.Fatalf("Volume: %v", err)
		}
		if err := r.ApplyVolumeDefaults(&got, nil); err != nil {
			t.Fatalf("an unencrypted same-account restore needs no kms default: %v", err)
		}
		if got.KMSKeyID != "" {
			t.Fatalf("want empty kms, got %q", got.KMSKeyID)
		}
	})
}

func TestVolumeAppendTags(t *testing.T) {
	var r Resolver
	rec := volumeRecord
	rec.Tags = []backup.Tag{{Key: "team", Value: "data"}, {Key: "env", Value: "prod"}}

	got, err := r.Volume(VolumeTarget{}, rec, false, map[string]string{
		"team": "data",     // exact pair already present, skipped
		"env":  "restored", // same key, new value, appended
	})
	if err != nil {
		t.Fatalf("Volume: %v", err)
	}
	want := []backup.Tag{
		{Key: "team", Value: "data"},
		{Key: "env", Value: "prod"},
		{Key: "env", Value: "restored"},
	}
	if len(got.Tags) != len(want) {
		t.Fatalf("want %v, got %v", want, got.Tags)
	}
	for i := range want {
		if got.Tags[i] != want[i] {
			t.Fatalf("want %v, got %v", want, got.Tags)
		}
	}
}

var instanceRecord = backup.InstanceBackup{
	BackupID:           "bk-i1",
	InstanceID:         "i-1",
	Account:            "111122223333",
	Region:             "us-east-1",
	Zone:               "us-east-1b",
	VPCID:              "vpc-src",
	IAMInstanceProfile: "profile-src",
	KeyPairName:        "kp-src",
	KMSKeyID:           "key-src",
	NetworkInterfaces: []backup.NetworkInterface{
		{DeviceIndex: 0, SubnetID: "subnet-a", SecurityGroupIDs: []string{"sg-a"}},
		{DeviceIndex: 1, SubnetID: "subnet-b", SecurityGroupIDs: []string{"sg-b"}},
	},
}

func TestInstanceResolution(t *testing.T) {
	var r Resolver

	t.Run("same account inherits network identity", func(t *testing.T) {
		got, err := r.Instance(InstanceTarget{}, instanceRecord, false, nil)
		if err != nil {
			t.Fatalf("Instance: %v", err)
		}
		if got.VPCID != "vpc-src" || got.SubnetID != "subnet-a" {
			t.Fatalf("want vpc and first-interface subnet inherited, got %+v", got)
		}
		if got.KeyPairName != "kp-src" || got.IAMInstanceProfile != "profile-src" {
			t.Fatalf("want identity fields inherited, got %+v", got)
		}
		if len(got.SecurityGroupIDs) != 0 {
			t.Fatalf("spec-level security groups have no source value, got %v", got.SecurityGroupIDs)
		}
	})

	t.Run("cross account requires the network set", func(t *testing.T) {
		_, err := r.Instance(InstanceTarget{}, instanceRecord, true, nil)
		wantFieldError(t, err, "vpc_id")

		_, err = r.Instance(InstanceTarget{VPCID: "vpc-t"}, instanceRecord, true, nil)
		wantFieldError(t, err, "subnet_id")

		_, err = r.Instance(InstanceTarget{VPCID: "vpc-t", SubnetID: "subnet-t"}, instanceRecord, true, nil)
		wantFieldError(t, err, "kms_key_id")

		_, err = r.Instance(InstanceTarget{VPCID: "vpc-t", SubnetID: "subnet-t", KMSKeyID: "key-t"}, instanceRecord, true, nil)
		wantFieldError(t, err, "security_group_ids")
	})

	t.Run("cross account with full network set defers the rest", func(t *testing.T) {
		got, err := r.Instance(InstanceTarget{
			VPCID: "vpc-t", SubnetID: "subnet-t", KMSKeyID: "key-t",
			SecurityGroupIDs: []string{"sg-t"},
		}, instanceRecord, true, nil)
		if err != nil {
			t.Fatalf("Instance: %v", err)
		}
		if got.Zone != FollowDefault || got.KeyPairName != FollowDefault {
			t.Fatalf("want deferred zone and key pair, got %+v", got)
		}
	})
}

var databaseRecord = backup.DatabaseBackup{
	BackupID:         "bk-d1",
	ResourceID:       "orders-db",
	Account:          "111122223333",
	Region:           "us-east-1",
	SubnetGroupName:  "sng-src",
	KMSKeyID:         "key-src",
	SecurityGroupIDs: []string{"sg-1", "sg-2"},
}

func TestDatabaseResolution(t *testing.T) {
	t.Run("name synthesized from resource id", func(t *testing.T) {
		r := Resolver{Suffix: fixedSuffix("xyz")}
		got, err := r.Database(DatabaseTarget{}, databaseRecord, false, nil)
		if err != nil {
			t.Fatalf("Database: %v", err)
		}
		if got.Name != "orders-dbxyz" {
			t.Fatalf("want synthesized name, got %q", got.Name)
		}
		if got.SubnetGroupName != "sng-src" || len(got.SecurityGroupIDs) != 2 {
			t.Fatalf("want source values inherited, got %+v", got)
		}
	})

	t.Run("explicit name wins", func(t *testing.T) {
		r := Resolver{Suffix: fixedSuffix("xyz")}
		got, err := r.Database(DatabaseTarget{Name: "restored-orders"}, databaseRecord, false, nil)
		if err != nil {
			t.Fatalf("Database: %v", err)
		}
		if got.Name != "restored-orders" {
			t.Fatalf("want explicit name, got %q", got.Name)
		}
	})

	t.Run("cross account name is mandatory", func(t *testing.T) {
		var r Resolver
		_, err := r.Database(DatabaseTarget{}, databaseRecord, true, nil)
		wantFieldError(t, err, "name")
	})

	t.Run("cross account requires subnet group", func(t *testing.T) {
		var r Resolver
		_, err := r.Database(DatabaseTarget{Name: "n"}, databaseRecord, true, nil)
		wantFieldError(t, err, "subnet_group_name")
	})

	t.Run("random suffix has the fixed length", func(t *testing.T) {
		var r Resolver
		got, err := r.Database(DatabaseTarget{}, databaseRecord, false, nil)
		if err != nil {
			t.Fatalf("Database: %v", err)
		}
		suffix := strings.TrimPrefix(got.Name, "orders-db")
		if len(suffix) != databaseSuffixLen {
			t.Fatalf("want %d-letter suffix, got %q", databaseSuffixLen, suffix)
		}
		for _, c := range suffix {
			if !((c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')) {
				t.Fatalf("suffix must be ASCII letters, got %q", suffix)
			}
		}
	})
}

func TestTableResolution(t *testing.T) {
	var r Resolver
	rec := backup.TableBackup{BackupID: "bk-t1", TableID: "t-1", TableName: "orders"}

	t.Run("explicit name wins", func(t *testing.T) {
		got, err := r.Table(TableTarget{TableName: "orders-copy", ChangeSet: "v9"}, rec, false, nil)
		if err != nil {
			t.Fatalf("Table: %v", err)
		}
		if got.TableName != "orders-copy" {
			t.Fatalf("want explicit name, got %q", got.TableName)
		}
	})

	t.Run("change set synthesizes the name", func(t *testing.T) {
		got, err := r.Table(TableTarget{ChangeSet: "v2"}, rec, false, nil)
		if err != nil {
			t.Fatalf("Table: %v", err)
		}
		if got.TableName != "orders-v2" {
			t.Fatalf("want orders-v2, got %q", got.TableName)
		}
	})

	t.Run("neither name nor change set", func(t *testing.T) {
		_, err := r.Table(TableTarget{}, rec, false, nil)
		wantFieldError(t, err, "table_name")
	})
}

func TestGroupResolution(t *testing.T) {
	var r Resolver
	rec := backup.GroupBackup{BackupID: "bk-g1", GroupID: "pg-1", GroupName: "logs"}

	t.Run("operator fields pass through", func(t *testing.T) {
		got, err := r.ProtectionGroup(GroupTarget{Bucket: "dest", Prefix: "restored/"}, rec, true)
		if err != nil {
			t.Fatalf("ProtectionGroup: %v", err)
		}
		if got.Bucket != "dest" || got.Prefix != "restored/" {
			t.Fatalf("unexpected target: %+v", got)
		}
	})

	t.Run("defaults fill the bucket", func(t *testing.T) {
		got, err := r.ProtectionGroup(GroupTarget{}, rec, false)
		if err != nil {
			t.Fatalf("ProtectionGroup: %v", err)
		}
		if err := r.ApplyGroupDefaults(&got, &GroupTarget{Bucket: "fallback"}); err != nil {
			t.Fatalf("ApplyGroupDefaults: %v", err)
		}
		if got.Bucket != "fallback" {
			t.Fatalf("want default bucket, got %q", got.Bucket)
		}
	})
}
