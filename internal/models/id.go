package models

import "github.com/google/uuid"

// CanonicalID returns id in the lowercase hyphenated form Postgres reports for
// uuid columns. Values that do not parse are returned unchanged so callers
// still reject them.
func CanonicalID(id string) string {
	parsed, err := uuid.Parse(id)
	if err != nil {
		return id
	}
	return parsed.String()
}

// CanonicalIDs applies CanonicalID to every element of a copy of ids.
func CanonicalIDs(ids []string) []string {
	if ids == nil {
		return nil
	}
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = CanonicalID(id)
	}
	return out
}
