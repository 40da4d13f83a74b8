package backup

import "sort"

// Tag is a {key, value} pair carried over from the source resource. Keys are
// not unique within a record's tag set; duplicates are preserved.
type Tag struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// Tagged is any record exposing its source tag set.
type Tagged interface {
	TagSet() []Tag
}

// MatchTag returns the records whose tag set contains a tag with exactly the
// given key and value; one matching tag suffices. When either key or value is
// empty the input is returned unchanged.
func MatchTag[T Tagged](items []T, key, value string) []T {
	if key == "" || value == "" {
		return items
	}
	out := make([]T, 0, len(items))
	for _, it := range items {
		for _, tag := range it.TagSet() {
			if tag.Key == key && tag.Value == value {
				out = append(out, it)
				break
			}
		}
	}
	return out
}

// AppendTags merges extra into tags append-only: a {key, value} pair already
// present is skipped, and a new value for an existing key is added as a
// second tag rather than replacing the first. Keys are appended in sorted
// order. The input slice is never modified.
func AppendTags(tags []Tag, extra map[string]string) []Tag {
	if len(extra) == 0 {
		return tags
	}
	out := make([]Tag, len(tags), len(tags)+len(extra))
	copy(out, tags)

	keys := make([]string, 0, len(extra))
	for k := range extra {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		pair := Tag{Key: k, Value: extra[k]}
		present := false
		for _, t := range out {
			if t == pair {
				present = true
				break
			}
		}
		if !present {
			out = append(out, pair)
		}
	}
	return out
}
