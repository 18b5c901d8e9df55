package stratabase

const (
	// Recommended priorities for common layering patterns. Higher numbers win.
	ScopePriorityTenant = 200
	ScopePriorityOrg    = 300
	ScopePriorityTeam   = 400
	ScopePriorityUser   = 500
)

// StandardScopes returns the tenant, org, team and user scopes. Together
// with the baseline holding system defaults they form the canonical
// five-level stack.
func StandardScopes() []Scope {
	return []Scope{
		NewScope("tenant", ScopePriorityTenant, WithScopeLabel("Tenant")),
		NewScope("org", ScopePriorityOrg, WithScopeLabel("Organization")),
		NewScope("team", ScopePriorityTeam, WithScopeLabel("Team")),
		NewScope("user", ScopePriorityUser, WithScopeLabel("User")),
	}
}

// NewSystemTenantOrgTeamUser builds a store over StandardScopes. The
// baseline holds system defaults.
func NewSystemTenantOrgTeamUser(opts ...Option) *Stratabase {
	sb, err := NewWithScopes(StandardScopes(), opts...)
	if err != nil {
		panic(err)
	}
	return sb
}
