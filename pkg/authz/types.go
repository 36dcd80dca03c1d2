package authz

import (
	"fmt"
	"strconv"
	"strings"
)

// AuthorizationRecord is one denormalized row of the authorization view: one
// row per (membership x affiliation x product subscription) combination.
// Every field past the membership itself comes from a left join and may be
// nil. The column set grows over time; add fields here and in the projection
// query without re-deriving the join.
type AuthorizationRecord struct {
	MembershipID   int64  `json:"membership_id"`
	MembershipType string `json:"membership_type"`

	OrgID         *int64  `json:"org_id,omitempty"`
	OrgName       *string `json:"org_name,omitempty"`
	OrgStatus     *string `json:"org_status,omitempty"`
	OrgType       *string `json:"org_type,omitempty"`
	BranchName    *string `json:"branch_name,omitempty"`
	BCOLUserID    *string `json:"bcol_user_id,omitempty"`
	BCOLAccountID *string `json:"bcol_account_id,omitempty"`

	UserID       *int64  `json:"user_id,omitempty"`
	Username     *string `json:"username,omitempty"`
	KeycloakGUID *string `json:"keycloak_guid,omitempty"`
	FirstName    *string `json:"first_name,omitempty"`
	LastName     *string `json:"last_name,omitempty"`

	EntityID           *int64  `json:"entity_id,omitempty"`
	BusinessIdentifier *string `json:"business_identifier,omitempty"`
	EntityName         *string `json:"entity_name,omitempty"`
	CorpTypeCode       *string `json:"corp_type_code,omitempty"`
	FolioNumber        *string `json:"folio_number,omitempty"`

	ProductCode   *string `json:"product_code,omitempty"`
	ProductStatus *string `json:"product_status,omitempty"`
}

// Filter narrows an authorization search. Zero values mean "no constraint".
type Filter struct {
	UserID      *int64
	OrgID       *int64
	ProductCode string
}

// CacheKey is a stable string form of the filter for the read cache.
func (f Filter) CacheKey() string {
	parts := make([]string, 0, 3)
	if f.UserID != nil {
		parts = append(parts, "u="+strconv.FormatInt(*f.UserID, 10))
	}
	if f.OrgID != nil {
		parts = append(parts, "o="+strconv.FormatInt(*f.OrgID, 10))
	}
	if f.ProductCode != "" {
		parts = append(parts, "p="+strings.ToUpper(f.ProductCode))
	}
	if len(parts) == 0 {
		return "all"
	}
	return strings.Join(parts, "&")
}

// String implements fmt.Stringer for log fields.
func (f Filter) String() string {
	return fmt.Sprintf("Filter(%s)", f.CacheKey())
}
