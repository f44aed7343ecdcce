package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseBugStatus(t *testing.T) {
	for _, status := range BugStatuses {
		got, ok := ParseBugStatus(string(status))
		assert.True(t, ok)
		assert.Equal(t, status, got)
	}

	for _, bad := range []string{"", "new", "InProgress", "in progress", "Reopened"} {
		_, ok := ParseBugStatus(bad)
		assert.False(t, ok, bad)
	}
}

func TestParseBugPriority(t *testing.T) {
	got, ok := ParseBugPriority("Critical")
	assert.True(t, ok)
	assert.Equal(t, BugPriorityCritical, got)

	_, ok = ParseBugPriority("Urgent")
	assert.False(t, ok)
	_, ok = ParseBugPriority("high")
	assert.False(t, ok)
}

func TestParseUserRole(t *testing.T) {
	role, ok := ParseUserRole("Tester")
	assert.True(t, ok)
	assert.Equal(t, UserRoleTester, role)

	_, ok = ParseUserRole("Root")
	assert.False(t, ok)
}

func TestIdentityIsAdmin(t *testing.T) {
	assert.True(t, Identity{Role: UserRoleAdmin}.IsAdmin())
	assert.False(t, Identity{Role: UserRoleDeveloper}.IsAdmin())
}
