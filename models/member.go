package models

import (
	"time"
)

// Member is a point-in-time snapshot of a guild member, resolved from the
// member directory. Eligibility is evaluated against a snapshot both at entry
// time and again at selection time, since membership can change in between.
type Member struct {
	DiscordID        int64
	RoleIDs          []int64
	Level            int
	AccountCreatedAt time.Time
	JoinedAt         time.Time
}

// HasRole checks whether the member holds a specific role
func (m *Member) HasRole(roleID int64) bool {
	for _, id := range m.RoleIDs {
		if id == roleID {
			return true
		}
	}
	return false
}

// HasAllRoles checks whether the member holds every role in the set
func (m *Member) HasAllRoles(roleIDs []int64) bool {
	for _, id := range roleIDs {
		if !m.HasRole(id) {
			return false
		}
	}
	return true
}

// AccountAgeDays returns the age of the member's account in whole days
func (m *Member) AccountAgeDays(now time.Time) int {
	if now.Before(m.AccountCreatedAt) {
		return 0
	}
	return int(now.Sub(m.AccountCreatedAt).Hours() / 24)
}
