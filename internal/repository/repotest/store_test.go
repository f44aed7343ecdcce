package repotest

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bugsage-dev/bugsage/internal/domain"
	"github.com/bugsage-dev/bugsage/internal/repository"
)

func TestWithinTx_RollbackDiscardsWrites(t *testing.T) {
	store := NewStore()
	reporter := store.AddUser("Rita", "rita@example.com", domain.UserRoleTester)
	bug := store.PutBug(domain.Bug{Title: "t", Description: "d", Priority: domain.BugPriorityLow, Status: domain.BugStatusNew, ReporterID: reporter.ID})

	boom := errors.New("boom")
	err := store.WithinTx(context.Background(), func(repos repository.TxRepositories) error {
		status := domain.BugStatusClosed
		require.NoError(t, repos.Bugs.Update(context.Background(), bug.ID, repository.BugUpdate{Status: &status}))
		return boom
	})

	assert.ErrorIs(t, err, boom)
	stored, _ := store.Bug(bug.ID)
	assert.Equal(t, domain.BugStatusNew, stored.Status)
	assert.Nil(t, stored.UpdatedAt)
}

func TestFindDuplicates_LiteralAndOrdered(t *testing.T) {
	store := NewStore()
	for _, title := range []string{"Login fails", "100% CPU on login", "LOGIN page blank"} {
		store.PutBug(domain.Bug{Title: title, Description: "x"})
	}

	got, err := store.Bugs().FindDuplicates(context.Background(), "login", 5)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, "Login fails", got[0].Title)

	got, err = store.Bugs().FindDuplicates(context.Background(), "100%", 5)
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestUserCreate_DuplicateEmail(t *testing.T) {
	store := NewStore()
	store.AddUser("A", "a@example.com", domain.UserRoleDeveloper)

	err := store.Users().Create(context.Background(), &domain.User{Name: "B", Email: "a@example.com", Role: domain.UserRoleDeveloper})
	assert.Error(t, err)
}
