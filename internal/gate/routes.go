package gate

import (
	"path"
	"strings"

	"github.com/rurallite/rurallite/internal/auth"
)

// Rule protects every path under Prefix with the listed roles.
type Rule struct {
	Prefix string
	Roles  []auth.Role
}

// RouteTable is the static list of protected API prefixes.
type RouteTable []Rule

// DefaultRoutes returns the protected API route table.
func DefaultRoutes() RouteTable {
	all := auth.AllRoles()
	return RouteTable{
		{Prefix: "/api/admin", Roles: []auth.Role{auth.RoleAdmin}},
		{Prefix: "/api/users", Roles: all},
		{Prefix: "/api/auth/me", Roles: all},
		{Prefix: "/api/quiz-results", Roles: all},
		{Prefix: "/api/quiz-history", Roles: all},
	}
}

// DefaultPages returns the cookie-gated page trees.
func DefaultPages() []string {
	return []string{"/dashboard", "/users"}
}

// Match returns the rule with the longest prefix covering p. Prefixes match
// whole segments only, so /api/usersettings is not under /api/users.
func (t RouteTable) Match(p string) (Rule, bool) {
	p = cleanPath(p)
	var (
		best  Rule
		found bool
	)
	for _, rule := range t {
		if underPrefix(p, rule.Prefix) && len(rule.Prefix) > len(best.Prefix) {
			best, found = rule, true
		}
	}
	return best, found
}

func matchesAny(p string, prefixes []string) bool {
	p = cleanPath(p)
	for _, prefix := range prefixes {
		if underPrefix(p, prefix) {
			return true
		}
	}
	return false
}

func underPrefix(p, prefix string) bool {
	prefix = strings.TrimRight(prefix, "/")
	return p == prefix || strings.HasPrefix(p, prefix+"/")
}

func cleanPath(p string) string {
	if p == "" {
		return "/"
	}
	return path.Clean("/" + p)
}
