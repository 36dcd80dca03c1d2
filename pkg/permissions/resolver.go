package permissions

import (
	"context"
	"fmt"
	"sort"

	"github.com/bcgov/sbc-auth-sub003/pkg/identity"
)

// Resolver turns catalog lookups into a normalized, deduplicated action list.
type Resolver struct {
	catalog Catalog
}

// NewResolver creates a resolver over the given catalog.
func NewResolver(catalog Catalog) *Resolver {
	return &Resolver{catalog: catalog}
}

// Resolve computes the effective action set for a membership type within an
// organization of the given status. Exact-status and status-agnostic rules
// merge into one set. When includeAll is true and a user is supplied, rules
// granted to the user's own identity-level roles are unioned in regardless of
// status, so a caller can ask what the user could do across any membership.
//
// An unknown pairing resolves to an empty list, not an error. An empty
// membership type resolves to an empty list. Catalog failures propagate
// unchanged; nothing is swallowed here.
func (r *Resolver) Resolve(ctx context.Context, orgStatus, membershipType string, user *identity.User, includeAll bool) ([]string, error) {
	membershipType = NormalizeCode(membershipType)
	if membershipType == "" {
		return []string{}, nil
	}

	rules, err := r.catalog.FindRules(ctx, NormalizeCode(orgStatus), membershipType)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve permissions for %s: %w", membershipType, err)
	}

	seen := make(map[string]struct{}, len(rules))
	for _, rule := range rules {
		seen[NormalizeAction(rule.Action)] = struct{}{}
	}

	if includeAll && user != nil {
		for _, role := range user.Roles {
			roleRules, err := r.catalog.FindMembershipRules(ctx, NormalizeCode(role))
			if err != nil {
				return nil, fmt.Errorf("failed to resolve role permissions for %s: %w", role, err)
			}
			for _, rule := range roleRules {
				seen[NormalizeAction(rule.Action)] = struct{}{}
			}
		}
	}

	actions := make([]string, 0, len(seen))
	for action := range seen {
		actions = append(actions, action)
	}
	sort.Strings(actions)

	return actions, nil
}
