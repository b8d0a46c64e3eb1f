// Package blacklist filters queued messages against blocked recipients.
//
// The blocked set is built once at batch-build time; entries added while a
// run is in flight do not affect the already-fetched snapshot.
package blacklist

import (
	"strings"

	"github.com/zapdispatch/zapdispatch/internal/model"
)

// BuildBlockedSet parses blacklist rows into the snapshot the filter
// consults. A row blocks a literal phone number, a comma-separated list of
// numeric file identifiers, or both. Malformed tokens are skipped, never
// rejected.
func BuildBlockedSet(entries []model.BlacklistEntry) model.BlockedSet {
	set := model.BlockedSet{
		Phones:  make(map[string]struct{}),
		FileIDs: make(map[string]struct{}),
	}

	for _, e := range entries {
		if phone := normalizePhone(e.Phone); phone != "" {
			set.Phones[phone] = struct{}{}
		}
		for _, raw := range strings.Split(e.NumberIDs, ",") {
			id := strings.TrimSpace(raw)
			if isNumeric(id) {
				set.FileIDs[id] = struct{}{}
			}
		}
	}

	return set
}

// Filter returns the messages whose recipient is not blocked and whose
// asset file id (numeric filename prefix) is not blocked. Pure function.
func Filter(blocked model.BlockedSet, msgs []model.Message) []model.Message {
	out := make([]model.Message, 0, len(msgs))
	for _, m := range msgs {
		if _, ok := blocked.Phones[normalizePhone(m.Recipient)]; ok {
			continue
		}
		if id := FileID(m.Filename); id != "" {
			if _, ok := blocked.FileIDs[id]; ok {
				continue
			}
		}
		out = append(out, m)
	}
	return out
}

// FileID extracts the numeric identifier a filename is keyed by upstream:
// the part before the first dot. Returns "" when that part is not numeric.
func FileID(filename string) string {
	id, _, _ := strings.Cut(filename, ".")
	if !isNumeric(id) {
		return ""
	}
	return id
}

func normalizePhone(raw string) string {
	phone := strings.TrimSpace(raw)
	digits := strings.TrimPrefix(phone, "+")
	if !isNumeric(digits) {
		return ""
	}
	return phone
}

func isNumeric(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
