package asset

import "strings"

// Status is the lifecycle status of an asset. The set is closed; anything
// unrecognized maps to StatusUnknown.
type Status string

const (
	StatusAvailable   Status = "available"
	StatusInUse       Status = "in_use"
	StatusUnderRepair Status = "under_repair"
	StatusDamaged     Status = "damaged"
	StatusLost        Status = "lost"
	StatusDisposed    Status = "disposed"
	StatusUnknown     Status = "unknown"
)

var knownStatuses = map[Status]bool{
	StatusAvailable:   true,
	StatusInUse:       true,
	StatusUnderRepair: true,
	StatusDamaged:     true,
	StatusLost:        true,
	StatusDisposed:    true,
	StatusUnknown:     true,
}

// ParseStatus maps free-form status text onto the closed enumeration.
// Matching is case-insensitive and treats spaces and dashes as underscores,
// so "In Use" and "in-use" both yield StatusInUse.
func ParseStatus(s string) Status {
	key := Status(normalizeEnum(s))
	if knownStatuses[key] {
		return key
	}
	return StatusUnknown
}

// CheckStatus is the condition an operator records during a check.
type CheckStatus string

const (
	CheckAvailable   CheckStatus = "available"
	CheckInUse       CheckStatus = "in_use"
	CheckUnderRepair CheckStatus = "under_repair"
	CheckDamaged     CheckStatus = "damaged"
	CheckLost        CheckStatus = "lost"
)

// CheckStatuses lists every valid CheckStatus in display order.
var CheckStatuses = []CheckStatus{
	CheckAvailable,
	CheckInUse,
	CheckUnderRepair,
	CheckDamaged,
	CheckLost,
}

// ParseCheckStatus normalizes s the same way as ParseStatus. Unknown values are
// returned normalized but unvalidated; CheckRequest.Validate rejects them.
func ParseCheckStatus(s string) CheckStatus {
	return CheckStatus(normalizeEnum(s))
}

func normalizeEnum(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	return strings.NewReplacer(" ", "_", "-", "_").Replace(s)
}
