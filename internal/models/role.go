package models

import "fmt"

type Role string

const (
	RolePlatformAdmin Role = "PLATFORM_ADMIN"
	RoleClubAdmin     Role = "CLUB_ADMIN"
	RoleCoach         Role = "COACH"
	RolePlayer        Role = "PLAYER"
	RoleParent        Role = "PARENT"
)

var allRoles = []Role{RolePlatformAdmin, RoleClubAdmin, RoleCoach, RolePlayer, RoleParent}

// IsValid reports whether r is one of the known roles.
func (r Role) IsValid() bool {
	for _, known := range allRoles {
		if r == known {
			return true
		}
	}
	return false
}

// IsTenantScoped reports whether users holding r must belong to a club.
func (r Role) IsTenantScoped() bool {
	return r != RolePlatformAdmin
}

func ParseRole(s string) (Role, error) {
	r := Role(s)
	if !r.IsValid() {
		return "", fmt.Errorf("unknown role %q", s)
	}
	return r, nil
}

// RoleSet is an unordered set of roles accepted by an authorization check.
type RoleSet map[Role]struct{}

func NewRoleSet(roles ...Role) RoleSet {
	set := make(RoleSet, len(roles))
	for _, r := range roles {
		set[r] = struct{}{}
	}
	return set
}

func (s RoleSet) Contains(r Role) bool {
	_, ok := s[r]
	return ok
}

// InvitableRoles lists the roles a club admin may invite into their club.
var InvitableRoles = NewRoleSet(RoleClubAdmin, RoleCoach, RolePlayer, RoleParent)
