package permissions

import "strings"

// Membership type codes. The catalog is open-ended; these are the codes the
// rest of the system references directly.
const (
	MembershipAdmin       = "ADMIN"
	MembershipCoordinator = "COORDINATOR"
	MembershipUser        = "USER"
	MembershipStaff       = "STAFF"
)

// Organization lifecycle status codes.
const (
	OrgStatusActive             = "ACTIVE"
	OrgStatusNSFSuspended       = "NSF_SUSPENDED"
	OrgStatusPendingStaffReview = "PENDING_STAFF_REVIEW"
)

// PermissionRule is one immutable catalog entry. Rules are added or removed
// wholesale by the seed/migration layer, never mutated in place.
type PermissionRule struct {
	ID             int64  `json:"id"`
	MembershipType string `json:"membership_type"`
	// OrgStatus is empty when the rule applies regardless of org status.
	OrgStatus string `json:"org_status,omitempty"`
	Action    string `json:"action"`
}

// Pair identifies one cached resolution. An empty OrgStatus is the wildcard
// pairing: only status-agnostic rules apply.
type Pair struct {
	OrgStatus      string
	MembershipType string
}

// NewPair builds a normalized cache key from possibly mixed-case inputs.
func NewPair(orgStatus, membershipType string) Pair {
	return Pair{
		OrgStatus:      NormalizeCode(orgStatus),
		MembershipType: NormalizeCode(membershipType),
	}
}

// NormalizeCode upper-cases a status or membership code. Historical catalog
// rows are inconsistently cased, so every lookup normalizes before matching.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// NormalizeAction lower-cases an action token. The catalog stores mixed-case
// action data; lower case is the canonical form at the point of resolution.
func NormalizeAction(action string) string {
	return strings.ToLower(strings.TrimSpace(action))
}
