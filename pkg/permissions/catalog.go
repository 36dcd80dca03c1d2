package permissions

import (
	"context"
	"database/sql"
	"fmt"
)

// Catalog is the read-only query surface over the permission rule store.
// Absent data is an empty slice, never an error.
type Catalog interface {
	// FindRules returns every rule whose membership type matches and whose
	// org status is either exactly the requested status or NULL (wildcard).
	// An empty orgStatus matches only the wildcard rules.
	FindRules(ctx context.Context, orgStatus, membershipType string) ([]PermissionRule, error)

	// FindMembershipRules returns every rule for a membership code across
	// all statuses, wildcard included.
	FindMembershipRules(ctx context.Context, membershipType string) ([]PermissionRule, error)

	// ListPairs returns every distinct (org status|NULL, membership type)
	// pairing present in the catalog.
	ListPairs(ctx context.Context) ([]Pair, error)
}

// PostgresCatalog implements Catalog over the permissions table. Matching is
// case-insensitive because historical rows are inconsistently cased.
type PostgresCatalog struct {
	db *sql.DB
}

// NewPostgresCatalog creates a catalog backed by the given database.
func NewPostgresCatalog(db *sql.DB) *PostgresCatalog {
	return &PostgresCatalog{db: db}
}

// FindRules implements Catalog.
func (c *PostgresCatalog) FindRules(ctx context.Context, orgStatus, membershipType string) ([]PermissionRule, error) {
	membershipType = NormalizeCode(membershipType)
	if membershipType == "" {
		return []PermissionRule{}, nil
	}
	orgStatus = NormalizeCode(orgStatus)

	query := `
		SELECT id, membership_type, org_status, action
		FROM permissions
		WHERE UPPER(membership_type) = $1
		  AND org_status IS NULL
		ORDER BY id
	`
	args := []interface{}{membershipType}

	if orgStatus != "" {
		query = `
			SELECT id, membership_type, org_status, action
			FROM permissions
			WHERE UPPER(membership_type) = $1
			  AND (org_status IS NULL OR UPPER(org_status) = $2)
			ORDER BY id
		`
		args = append(args, orgStatus)
	}

	rows, err := c.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query permission rules: %w", err)
	}
	defer rows.Close()

	return scanRules(rows)
}

// FindMembershipRules implements Catalog.
func (c *PostgresCatalog) FindMembershipRules(ctx context.Context, membershipType string) ([]PermissionRule, error) {
	membershipType = NormalizeCode(membershipType)
	if membershipType == "" {
		return []PermissionRule{}, nil
	}

	query := `
		SELECT id, membership_type, org_status, action
		FROM permissions
		WHERE UPPER(membership_type) = $1
		ORDER BY id
	`

	rows, err := c.db.QueryContext(ctx, query, membershipType)
	if err != nil {
		return nil, fmt.Errorf("failed to query membership rules: %w", err)
	}
	defer rows.Close()

	return scanRules(rows)
}

// ListPairs implements Catalog.
func (c *PostgresCatalog) ListPairs(ctx context.Context) ([]Pair, error) {
	query := `
		SELECT DISTINCT org_status, membership_type
		FROM permissions
	`

	rows, err := c.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list catalog pairs: %w", err)
	}
	defer rows.Close()

	seen := make(map[Pair]bool)
	var pairs []Pair
	for rows.Next() {
		var orgStatus sql.NullString
		var membershipType string
		if err := rows.Scan(&orgStatus, &membershipType); err != nil {
			return nil, fmt.Errorf("failed to scan catalog pair: %w", err)
		}

		// DISTINCT runs before normalization, so mixed-case duplicates
		// collapse here.
		pair := NewPair(orgStatus.String, membershipType)
		if seen[pair] {
			continue
		}
		seen[pair] = true
		pairs = append(pairs, pair)
	}

	return pairs, rows.Err()
}

func scanRules(rows *sql.Rows) ([]PermissionRule, error) {
	rules := []PermissionRule{}
	for rows.Next() {
		var rule PermissionRule
		var orgStatus sql.NullString

		if err := rows.Scan(&rule.ID, &rule.MembershipType, &orgStatus, &rule.Action); err != nil {
			return nil, fmt.Errorf("failed to scan permission rule: %w", err)
		}
		if orgStatus.Valid {
			rule.OrgStatus = orgStatus.String
		}

		rules = append(rules, rule)
	}

	return rules, rows.Err()
}
