// Package backup holds the domain model shared by discovery, resolution and
// request building: resource types, per-type backup records and tag sets.
package backup

import (
	"strings"

	"github.com/coveworks/bulk-restore/internal/errors"
)

// ResourceType identifies the kind of protected resource a backup belongs to.
// The set is closed: resolvers and request builders are keyed by it.
type ResourceType string

const (
	BlockVolume           ResourceType = "block_volume"
	ComputeInstance       ResourceType = "compute_instance"
	ManagedDatabase       ResourceType = "managed_database"
	KeyValueTable         ResourceType = "key_value_table"
	ObjectProtectionGroup ResourceType = "object_protection_group"
)

// Types returns every supported resource type in stable order.
func Types() []ResourceType {
	return []ResourceType{
		BlockVolume,
		ComputeInstance,
		ManagedDatabase,
		KeyValueTable,
		ObjectProtectionGroup,
	}
}

// ParseResourceType maps an input string to a ResourceType.
func ParseResourceType(s string) (ResourceType, error) {
	switch t := ResourceType(strings.ToLower(strings.TrimSpace(s))); t {
	case BlockVolume, ComputeInstance, ManagedDatabase, KeyValueTable, ObjectProtectionGroup:
		return t, nil
	default:
		return "", errors.NewValidationError("resource type", "unsupported: "+s)
	}
}

func (t ResourceType) String() string { return string(t) }
