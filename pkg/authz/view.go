package authz

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/bcgov/sbc-auth-sub003/pkg/observability"
	"github.com/bcgov/sbc-auth-sub003/pkg/permissions"
)

// Projector executes the authorization view join. Records are derived and
// read-only; they are recomputed by query, never persisted on their own.
type Projector struct {
	db      *sql.DB
	metrics *observability.Metrics
}

// NewProjector creates a projector over the given database. metrics may be nil.
func NewProjector(db *sql.DB, metrics *observability.Metrics) *Projector {
	return &Projector{db: db, metrics: metrics}
}

// Search projects authorization records matching the filter.
//
// The join starts from active memberships only; inactive, pending, or removed
// memberships never contribute rows. Everything else is a left join: a
// dangling org, an org with no affiliated entities, or an org with no product
// subscriptions still projects, with the corresponding fields nil. The result
// fans out to one row per (membership x affiliation x product subscription);
// callers needing per-org or per-user aggregates group client-side.
func (p *Projector) Search(ctx context.Context, filter Filter) ([]AuthorizationRecord, error) {
	start := time.Now()
	records, err := p.search(ctx, filter)
	p.observe(err, time.Since(start))
	return records, err
}

func (p *Projector) search(ctx context.Context, filter Filter) ([]AuthorizationRecord, error) {
	var sb strings.Builder
	sb.WriteString(`
		SELECT
			m.id, m.membership_type_code,
			o.id, o.name, o.status_code, o.type_code, o.branch_name, o.bcol_user_id, o.bcol_account_id,
			u.id, u.username, u.keycloak_guid, u.first_name, u.last_name,
			e.id, e.business_identifier, e.name, e.corp_type_code, e.folio_number,
			ps.product_code, ps.status_code
		FROM memberships m
		LEFT JOIN orgs o ON o.id = m.org_id
		LEFT JOIN users u ON u.id = m.user_id
		LEFT JOIN affiliations a ON a.org_id = m.org_id
		LEFT JOIN entities e ON e.id = a.entity_id
		LEFT JOIN product_subscriptions ps ON ps.org_id = m.org_id
		WHERE m.status = 'ACTIVE'
	`)

	var args []interface{}
	if filter.UserID != nil {
		args = append(args, *filter.UserID)
		fmt.Fprintf(&sb, " AND m.user_id = $%d", len(args))
	}
	if filter.OrgID != nil {
		args = append(args, *filter.OrgID)
		fmt.Fprintf(&sb, " AND m.org_id = $%d", len(args))
	}
	if filter.ProductCode != "" {
		args = append(args, strings.ToUpper(filter.ProductCode))
		fmt.Fprintf(&sb, " AND UPPER(ps.product_code) = $%d", len(args))
	}

	sb.WriteString(" ORDER BY m.id, e.id, ps.product_code")

	rows, err := p.db.QueryContext(ctx, sb.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query authorization view: %w", err)
	}
	defer rows.Close()

	records := []AuthorizationRecord{}
	for rows.Next() {
		var rec AuthorizationRecord
		var (
			orgID, userID, entityID                                      sql.NullInt64
			orgName, orgStatus, orgType, branchName, bcolUser, bcolAcct  sql.NullString
			username, keycloakGUID, firstName, lastName                  sql.NullString
			businessIdentifier, entityName, corpTypeCode, folioNumber    sql.NullString
			productCode, productStatus                                   sql.NullString
		)

		if err := rows.Scan(
			&rec.MembershipID, &rec.MembershipType,
			&orgID, &orgName, &orgStatus, &orgType, &branchName, &bcolUser, &bcolAcct,
			&userID, &username, &keycloakGUID, &firstName, &lastName,
			&entityID, &businessIdentifier, &entityName, &corpTypeCode, &folioNumber,
			&productCode, &productStatus,
		); err != nil {
			return nil, fmt.Errorf("failed to scan authorization record: %w", err)
		}

		rec.OrgID = nullInt64(orgID)
		rec.OrgName = nullString(orgName)
		rec.OrgStatus = nullString(orgStatus)
		rec.OrgType = nullString(orgType)
		rec.BranchName = nullString(branchName)
		rec.BCOLUserID = nullString(bcolUser)
		rec.BCOLAccountID = nullString(bcolAcct)
		rec.UserID = nullInt64(userID)
		rec.Username = nullString(username)
		rec.KeycloakGUID = nullString(keycloakGUID)
		rec.FirstName = nullString(firstName)
		rec.LastName = nullString(lastName)
		rec.EntityID = nullInt64(entityID)
		rec.BusinessIdentifier = nullString(businessIdentifier)
		rec.EntityName = nullString(entityName)
		rec.CorpTypeCode = nullString(corpTypeCode)
		rec.FolioNumber = nullString(folioNumber)
		rec.ProductCode = nullString(productCode)
		rec.ProductStatus = nullString(productStatus)

		records = append(records, rec)
	}

	return records, rows.Err()
}

// MembershipFor implements permissions.MembershipSource: the caller's active
// membership type and org status within the given org.
func (p *Projector) MembershipFor(ctx context.Context, userSub string, orgID int64) (string, string, error) {
	query := `
		SELECT m.membership_type_code, o.status_code
		FROM memberships m
		JOIN orgs o ON o.id = m.org_id
		JOIN users u ON u.id = m.user_id
		WHERE u.keycloak_guid = $1 AND m.org_id = $2 AND m.status = 'ACTIVE'
	`

	var membershipType, orgStatus string
	err := p.db.QueryRowContext(ctx, query, userSub, orgID).Scan(&membershipType, &orgStatus)
	if err == sql.ErrNoRows {
		return "", "", permissions.ErrNoMembership
	}
	if err != nil {
		return "", "", fmt.Errorf("failed to look up membership: %w", err)
	}

	return membershipType, orgStatus, nil
}

func (p *Projector) observe(err error, duration time.Duration) {
	if p.metrics == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	p.metrics.ProjectionsTotal.WithLabelValues(status).Inc()
	p.metrics.ProjectionDuration.Observe(duration.Seconds())
}

func nullString(v sql.NullString) *string {
	if !v.Valid {
		return nil
	}
	s := v.String
	return &s
}

func nullInt64(v sql.NullInt64) *int64 {
	if !v.Valid {
		return nil
	}
	i := v.Int64
	return &i
}
