// Package authz projects membership, organization, user, affiliation, entity,
// and product subscription records into denormalized authorization records.
//
// The projection is an explicit parameterized query rather than a database
// view so the join semantics stay testable: it starts from active memberships
// and left-joins everything else, so a missing org, entity, or product leaves
// NULL fields but never drops the row. A bounded read cache sits in front of
// the join for the hot lookup path.
package authz
