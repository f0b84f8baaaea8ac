package domain

// Claim is an opaque key/value attribute granted to a user directly or
// through a role. Keys are not unique; overlapping role grants may
// contribute duplicates and no de-duplication is performed.
type Claim struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}
