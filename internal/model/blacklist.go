package model

import "time"

// BlacklistEntry blocks either a literal phone number or a comma-separated
// list of numeric file identifiers (matched against the numeric prefix of an
// uploaded asset's filename).
type BlacklistEntry struct {
	ID        string
	AccountID string
	Phone     string
	NumberIDs string
	Reason    string
	CreatedAt time.Time
}

// BlockedSet is the snapshot the filter consults: literal phones plus the
// parsed union of all numeric identifier groups.
type BlockedSet struct {
	Phones  map[string]struct{}
	FileIDs map[string]struct{}
}
