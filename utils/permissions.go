package utils

import "strings"

// RolePermissions lists the permission patterns granted to each role.
var RolePermissions = map[string][]string{
	"admin":    {"*:*"},
	"engineer": {"progress:*", "draft:*", "site:read", "analytics:read", "export:read", "catalog:read"},
	"viewer":   {"*:read"},
}

// HasPermission reports whether role grants required.
func HasPermission(role, required string) bool {
	for _, p := range RolePermissions[role] {
		if MatchesPermission(p, required) {
			return true
		}
	}
	return false
}

// MatchesPermission checks if a user permission matches the required permission
// Supports wildcard patterns:
//
// Examples:
//   - "*:*" or "*" matches everything (admin wildcard)
//   - "progress:*" matches all actions on progress records (progress:create, progress:read)
//   - "*:read" matches read action on all resources (site:read, analytics:read)
//   - "site:create" exact match
//
// Permission format: "resource:action"
func MatchesPermission(userPerm, requiredPerm string) bool {
	// Exact match (fastest path)
	if userPerm == requiredPerm {
		return true
	}

	// Full wildcard - grants everything
	if userPerm == "*:*" || userPerm == "*" {
		return true
	}

	userParts := strings.Split(userPerm, ":")
	reqParts := strings.Split(requiredPerm, ":")

	// Names without a colon only match exactly
	if len(userParts) < 2 || len(reqParts) < 2 {
		return false
	}

	resourceMatch := userParts[0] == "*" || userParts[0] == reqParts[0]
	actionMatch := userParts[1] == "*" || userParts[1] == reqParts[1]

	return resourceMatch && actionMatch
}
