package utils

import "testing"

func TestMatchesPermission(t *testing.T) {
	tests := []struct {
		name         string
		userPerm     string
		requiredPerm string
		expected     bool
	}{
		// Exact matches
		{"exact match same permission", "site:create", "site:create", true},
		{"exact match different permission", "site:create", "site:read", false},
		{"exact match different resource", "site:create", "progress:create", false},

		// Full wildcard tests
		{"full wildcard *:*", "*:*", "site:create", true},
		{"full wildcard *", "*", "anything:goes", true},
		{"full wildcard matches all actions", "*:*", "export:read", true},

		// Resource wildcard tests
		{"resource wildcard matches create", "progress:*", "progress:create", true},
		{"resource wildcard matches read", "progress:*", "progress:read", true},
		{"resource wildcard doesn't match different resource", "progress:*", "site:create", false},

		// Action wildcard tests
		{"action wildcard matches site", "*:read", "site:read", true},
		{"action wildcard matches analytics", "*:read", "analytics:read", true},
		{"action wildcard doesn't match different action", "*:read", "site:update", false},

		// Edge cases
		{"empty required permission", "site:create", "", false},
		{"empty user permission", "", "site:create", false},
		{"both empty", "", "", true},
		{"single part permission", "admin", "admin", true},
		{"single part vs multi-part", "admin", "admin:read", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := MatchesPermission(tt.userPerm, tt.requiredPerm)
			if result != tt.expected {
				t.Errorf("MatchesPermission(%q, %q) = %v, expected %v",
					tt.userPerm, tt.requiredPerm, result, tt.expected)
			}
		})
	}
}

func TestHasPermission_Roles(t *testing.T) {
	tests := []struct {
		name     string
		role     string
		required string
		expected bool
	}{
		{"admin creates sites", "admin", "site:create", true},
		{"admin changes site status", "admin", "site:update", true},
		{"engineer submits progress", "engineer", "progress:create", true},
		{"engineer works on drafts", "engineer", "draft:update", true},
		{"engineer reads analytics", "engineer", "analytics:read", true},
		{"engineer cannot create sites", "engineer", "site:create", false},
		{"engineer cannot change site status", "engineer", "site:update", false},
		{"viewer reads progress", "viewer", "progress:read", true},
		{"viewer cannot submit", "viewer", "progress:create", false},
		{"unknown role has nothing", "contractor", "site:read", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := HasPermission(tt.role, tt.required); got != tt.expected {
				t.Errorf("HasPermission(%q, %q) = %v, expected %v", tt.role, tt.required, got, tt.expected)
			}
		})
	}
}

func BenchmarkMatchesPermission_ExactMatch(b *testing.B) {
	for i := 0; i < b.N; i++ {
		MatchesPermission("progress:create", "progress:create")
	}
}

func BenchmarkMatchesPermission_ResourceWildcard(b *testing.B) {
	for i := 0; i < b.N; i++ {
		MatchesPermission("progress:*", "progress:create")
	}
}

func BenchmarkMatchesPermission_NoMatch(b *testing.B) {
	for i := 0; i < b.N; i++ {
		MatchesPermission("site:create", "progress:read")
	}
}
