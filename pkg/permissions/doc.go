// Package permissions implements the permission catalog, resolver, and
// resolution cache.
//
// The catalog is a small, rarely-changing table of
// (membership type, org status, action) rules where a NULL org status means
// the rule applies regardless of the organization's lifecycle state. The
// resolver merges exact-status and status-agnostic rules into a deduplicated
// action set; the cache memoizes resolutions by (org status, membership type)
// and is rebuilt wholesale when the catalog changes, never incrementally.
package permissions
