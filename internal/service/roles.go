package service

import (
	"sort"

	"github.com/sbguangha/tianyishenshu/internal/model"
)

// ComputeRoles returns the role set an identity holds after a successful verification.
// The result is a new sorted set that always contains user, gains admin when phone is the
// configured super-admin phone and never drops a role already held.
func ComputeRoles(existing []string, phone, superAdminPhone string) []string {
	set := map[string]struct{}{model.RoleUser: {}}
	for _, r := range existing {
		if r != "" {
			set[r] = struct{}{}
		}
	}
	if superAdminPhone != "" && phone == superAdminPhone {
		set[model.RoleAdmin] = struct{}{}
	}

	roles := make([]string, 0, len(set))
	for r := range set {
		roles = append(roles, r)
	}
	sort.Strings(roles)
	return roles
}
