package request

import (
	"context"

	"github.com/coveworks/bulk-restore/internal/api"
	"github.com/coveworks/bulk-restore/internal/backup"
	apperrors "github.com/coveworks/bulk-restore/internal/errors"
	"github.com/coveworks/bulk-restore/internal/resolve"
)

func init() { Register(backup.ComputeInstance, instanceBuilder{}) }

// Instance builds a compute-instance restore request. Every attached volume
// and network interface of the backup is re-derived: a volume keeps its own
// KMS key when it has one, the resolved key otherwise; an interface keeps its
// own security groups unless the target names a replacement set. The subnet
// settles once: the resolved subnet, else the first interface subnet found,
// and every interface shares it.
func Instance(rec backup.InstanceBackup, t resolve.InstanceTarget, envID string) api.RestoreInstanceRequest {
	mappings := make([]api.VolumeMapping, 0, len(rec.AttachedVolumes))
	for _, v := range rec.AttachedVolumes {
		kms := v.KMSKeyID
		if kms == "" {
			kms = t.KMSKeyID
		}
		mappings = append(mappings, api.VolumeMapping{
			DeviceName: v.DeviceName,
			VolumeID:   v.VolumeID,
			KMSKeyID:   kms,
			Tags:       v.Tags,
		})
	}

	subnet := t.SubnetID
	interfaces := make([]api.RestoreNetworkInterface, 0, len(rec.NetworkInterfaces))
	for _, ni := range rec.NetworkInterfaces {
		if subnet == "" {
			subnet = ni.SubnetID
		}
		groups := t.SecurityGroupIDs
		if len(groups) == 0 {
			groups = ni.SecurityGroupIDs
		}
		interfaces = append(interfaces, api.RestoreNetworkInterface{
			DeviceIndex:       ni.DeviceIndex,
			InterfaceID:       "",
			SubnetID:          subnet,
			SecurityGroupIDs:  groups,
			RestoreDefault:    true,
			RestoreFromBackup: false,
		})
	}

	return api.RestoreInstanceRequest{
		Source: api.RestoreSource{BackupID: rec.BackupID},
		Target: api.InstanceRestoreTarget{
			Zone:               t.Zone,
			EnvironmentID:      envID,
			VPCID:              t.VPCID,
			SubnetID:           subnet,
			IAMInstanceProfile: t.IAMInstanceProfile,
			KeyPairName:        t.KeyPairName,
			ShouldPowerOn:      true,
			VolumeMappings:     mappings,
			NetworkInterfaces:  interfaces,
			Tags:               t.Tags,
		},
	}
}

type instanceBuilder struct{}

func (instanceBuilder) Build(ctx context.Context, in Input) (Submission, error) {
	rec, ok := in.Record.(backup.InstanceBackup)
	if !ok {
		return nil, apperrors.NewValidationError("record", "not a compute-instance backup")
	}
	t, ok := in.Target.(resolve.InstanceTarget)
	if !ok {
		return nil, apperrors.NewValidationError("target", "not a compute-instance target")
	}
	if err := requireEnvironment(in.EnvironmentID); err != nil {
		return nil, err
	}
	return instanceSubmission{req: Instance(rec, t, in.EnvironmentID)}, nil
}

type instanceSubmission struct {
	req api.RestoreInstanceRequest
}

func (s instanceSubmission) Submit(ctx context.Context, c Submitter) (string, error) {
	return c.RestoreInstance(ctx, s.req)
}
