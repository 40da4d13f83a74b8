package backup

import (
	"reflect"
	"testing"

	"github.com/coveworks/bulk-restore/internal/errors"
)

func TestMatchTagExactPair(t *testing.T) {
	records := []VolumeBackup{
		{VolumeID: "vol-1", Tags: []Tag{{Key: "a", Value: "1"}, {Key: "a", Value: "2"}}},
		{VolumeID: "vol-2", Tags: []Tag{{Key: "a", Value: "3"}}},
		{VolumeID: "vol-3", Tags: nil},
	}

	got := MatchTag(records, "a", "2")
	if len(got) != 1 || got[0].VolumeID != "vol-1" {
		t.Fatalf("want only vol-1, got %+v", got)
	}

	if got := MatchTag(records, "a", "9"); len(got) != 0 {
		t.Fatalf("want no matches, got %+v", got)
	}
}

func TestMatchTagSkipsWhenKeyOrValueMissing(t *testing.T) {
	records := []VolumeBackup{
		{VolumeID: "vol-1", Tags: []Tag{{Key: "a", Value: "1"}}},
		{VolumeID: "vol-2"},
	}
	if got := MatchTag(records, "", "1"); len(got) != len(records) {
		t.Fatalf("empty key must not filter, got %d records", len(got))
	}
	if got := MatchTag(records, "a", ""); len(got) != len(records) {
		t.Fatalf("empty value must not filter, got %d records", len(got))
	}
}

func TestAppendTagsNeverOverwrites(t *testing.T) {
	src := []Tag{{Key: "env", Value: "prod"}, {Key: "team", Value: "data"}}

	got := AppendTags(src, map[string]string{
		"env":      "restored", // same key, new value: appended, not replaced
		"team":     "data",     // exact pair already present: skipped
		"restored": "true",
	})

	want := []Tag{
		{Key: "env", Value: "prod"},
		{Key: "team", Value: "data"},
		{Key: "env", Value: "restored"},
		{Key: "restored", Value: "true"},
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("merge mismatch:\n got %+v\nwant %+v", got, want)
	}

	// Source slice must stay untouched.
	if len(src) != 2 {
		t.Fatalf("input slice was modified: %+v", src)
	}
}

func TestAppendTagsEmptyExtra(t *testing.T) {
	src := []Tag{{Key: "a", Value: "1"}}
	if got := AppendTags(src, nil); !reflect.DeepEqual(got, src) {
		t.Fatalf("nil extra must return input, got %+v", got)
	}
}

func TestParseResourceType(t *testing.T) {
	for _, rt := range Types() {
		got, err := ParseResourceType("  " + string(rt) + " ")
		if err != nil || got != rt {
			t.Fatalf("parse %q: got %q err %v", rt, got, err)
		}
	}
	if _, err := ParseResourceType("floppy_disk"); !errors.IsValidation(err) {
		t.Fatalf("want ValidationError for unknown type, got %v", err)
	}
}

func TestDatabasePublicAccessibilityIsConjunction(t *testing.T) {
	cases := []struct {
		name      string
		instances []DatabaseInstance
		want      bool
	}{
		{"all_public", []DatabaseInstance{{PubliclyAccessible: true}, {PubliclyAccessible: true}}, true},
		{"one_private", []DatabaseInstance{{PubliclyAccessible: true}, {PubliclyAccessible: false}}, false},
		{"none", nil, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			b := DatabaseBackup{Instances: tc.instances}
			if got := b.PubliclyAccessible(); got != tc.want {
				t.Fatalf("want %v, got %v", tc.want, got)
			}
		})
	}
}

func TestDescriptorsIdentifyRecords(t *testing.T) {
	var records = []Record{
		VolumeBackup{BackupID: "b1", VolumeID: "vol-1"},
		InstanceBackup{BackupID: "b2", InstanceID: "i-1"},
		DatabaseBackup{BackupID: "b3", ResourceID: "db-1"},
		TableBackup{BackupID: "b4", TableID: "t-1"},
		GroupBackup{BackupID: "b5", GroupID: "pg-1"},
	}
	wantTypes := Types()
	for i, r := range records {
		d := r.Descriptor()
		if d.Type != wantTypes[i] {
			t.Fatalf("record %d: want type %s, got %s", i, wantTypes[i], d.Type)
		}
		if d.BackupID == "" || d.AssetID == "" {
			t.Fatalf("record %d: incomplete descriptor %+v", i, d)
		}
	}
}
