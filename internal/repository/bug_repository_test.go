package repository

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/bugsage-dev/bugsage/internal/domain"
)

func TestContainsPattern(t *testing.T) {
	assert.Equal(t, "%Login crashes%", ContainsPattern("Login crashes"))
	assert.Equal(t, `%100\% CPU%`, ContainsPattern("100% CPU"))
	assert.Equal(t, `%user\_id%`, ContainsPattern("user_id"))
	assert.Equal(t, `%C:\\temp%`, ContainsPattern(`C:\temp`))
}

func TestBugWhere(t *testing.T) {
	where, args := bugWhere(BugFilter{})
	assert.Empty(t, where)
	assert.Empty(t, args)

	status := domain.BugStatusInProgress
	assignee := int64(7)
	where, args = bugWhere(BugFilter{Status: &status, AssigneeID: &assignee})
	assert.Equal(t, "WHERE b.status=$1 AND b.assignee_id=$2", where)
	assert.Equal(t, []any{domain.BugStatusInProgress, int64(7)}, args)
}

func TestBugUpdateIsEmpty(t *testing.T) {
	assert.True(t, BugUpdate{}.IsEmpty())

	title := "x"
	assert.False(t, BugUpdate{Title: &title}.IsEmpty())
	assert.False(t, BugUpdate{AssigneeSet: true}.IsEmpty())
}
