package authroles

import (
	"fmt"
	"strings"

	domainauth "github.com/agrimarket/agrimarket-ui/internal/domain/auth"
	"github.com/agrimarket/agrimarket-ui/internal/ports"
)

var _ ports.RoleMapper = StaticRoleMapper{}

// StaticRoleMapper maps provider groups or claim values to marketplace roles.
// Values that already name a role map to it directly; others are looked up in Groups.
// The first value that maps wins.
type StaticRoleMapper struct {
	Groups map[string]domainauth.Role
}

func (m StaticRoleMapper) Map(values []string) (domainauth.Role, bool) {
	for _, v := range values {
		if r, err := domainauth.ParseRole(v); err == nil {
			return r, true
		}
		if r, ok := m.Groups[strings.TrimSpace(v)]; ok && r.Valid() {
			return r, true
		}
	}
	return "", false
}

// ParseGroupMap parses "group=role" pairs separated by commas, e.g.
// "growers=farmer,agronomists=expert".
func ParseGroupMap(s string) (map[string]domainauth.Role, error) {
	out := make(map[string]domainauth.Role)
	for pair := range strings.SplitSeq(s, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		group, role, ok := strings.Cut(pair, "=")
		group = strings.TrimSpace(group)
		if !ok || group == "" {
			return nil, fmt.Errorf("invalid group mapping %q: want group=role", pair)
		}
		r, err := domainauth.ParseRole(role)
		if err != nil {
			return nil, fmt.Errorf("group %q: %w", group, err)
		}
		out[group] = r
	}
	return out, nil
}
