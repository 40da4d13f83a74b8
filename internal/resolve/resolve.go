// Package resolve fills partially specified restore targets. Each field is
// settled independently: an explicit value wins; otherwise the value recorded
// at backup time is inherited, but only for same-account restores. A
// cross-account restore must name its network and identity fields explicitly
// and leaves the rest to the operator defaults pass.
package resolve

import (
	"strings"

	apperrors "github.com/coveworks/bulk-restore/internal/errors"
	"github.com/coveworks/bulk-restore/internal/util"
)

// FollowDefault marks a field whose source value exists but may not cross the
// account boundary. The defaults pass replaces it or fails naming the field.
const FollowDefault = "$DEFAULT"

// SuffixFunc mints the random letter suffix for synthesized database names.
type SuffixFunc func(n int) string

// Resolver settles target specs against backup records. The zero value is
// ready to use; Suffix overrides the randomness source for tests.
type Resolver struct {
	Suffix SuffixFunc
}

func (r Resolver) suffix(n int) string {
	if r.Suffix != nil {
		return r.Suffix(n)
	}
	return util.RandomLetters(n)
}

// fieldSpec is one resolvable string slot of a target spec. Fields marked
// required hold network or identity values that never cross the account
// boundary implicitly.
type fieldSpec struct {
	name     string
	value    *string
	source   string
	required bool
}

// listField is the []string counterpart of fieldSpec.
type listField struct {
	name     string
	value    *[]string
	source   []string
	required bool
}

// resolveFields settles each field independently: explicit, then inherited
// when same-account. Cross-account required fields fail; non-required fields
// with a barred source value are deferred to the defaults pass.
func resolveFields(fields []fieldSpec, crossAccount bool) error {
	for _, f := range fields {
		if strings.TrimSpace(*f.value) != "" {
			continue
		}
		if !crossAccount {
			*f.value = f.source
			continue
		}
		if f.required {
			return apperrors.NewValidationError(f.name, "must be filled for cross-account restore")
		}
		if f.source != "" {
			*f.value = FollowDefault
		}
	}
	return nil
}

func resolveListFields(fields []listField, crossAccount bool) error {
	for _, f := range fields {
		if len(*f.value) > 0 {
			continue
		}
		if !crossAccount {
			if len(f.source) > 0 {
				*f.value = append([]string(nil), f.source...)
			}
			continue
		}
		if f.required {
			return apperrors.NewValidationError(f.name, "must be filled for cross-account restore")
		}
	}
	return nil
}

// applyDefaults reconciles resolved fields against the operator defaults.
// An empty or deferred field takes the default; a deferred field with no
// default fails naming the field. Explicit values are never overwritten.
func applyDefaults(fields, defaults []fieldSpec) error {
	for i, f := range fields {
		def := ""
		if defaults != nil {
			def = strings.TrimSpace(*defaults[i].value)
		}
		cur := *f.value
		if cur != "" && cur != FollowDefault {
			continue
		}
		if def != "" {
			*f.value = def
			continue
		}
		if cur == FollowDefault {
			return apperrors.NewValidationError(f.name, "no value provided and no default configured")
		}
	}
	return nil
}

func applyListDefaults(fields, defaults []listField) {
	for i, f := range fields {
		if len(*f.value) > 0 || defaults == nil {
			continue
		}
		if def := *defaults[i].value; len(def) > 0 {
			*f.value = append([]string(nil), def...)
		}
	}
}
