package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/bugsage-dev/bugsage/internal/config"
	"github.com/bugsage-dev/bugsage/internal/domain"
	"github.com/bugsage-dev/bugsage/internal/events"
	"github.com/bugsage-dev/bugsage/internal/repository/repotest"
	apperrors "github.com/bugsage-dev/bugsage/pkg/util/errorutil"
)

type notificationFixture struct {
	store         *repotest.Store
	bugs          *BugService
	notifications *NotificationService
	reporter      domain.Identity
	dev           domain.Identity
}

func identityOf(user domain.User) domain.Identity {
	return domain.Identity{ID: user.ID, Name: user.Name, Email: user.Email, Role: user.Role}
}

func newNotificationFixture(t *testing.T) *notificationFixture {
	t.Helper()
	store := repotest.NewStore()
	dispatcher := events.NewInMemoryDispatcher(zap.NewNop(), nil)
	notifications := NewNotificationService(store.Notifications(), dispatcher, nil)
	notifications.RegisterHandlers()

	bugs := NewBugService(BugDependencies{
		BugRepo:        store.Bugs(),
		CommentRepo:    store.Comments(),
		AttachmentRepo: store.Attachments(),
		HistoryRepo:    store.History(),
		ProjectRepo:    store.Projects(),
		UserRepo:       store.Users(),
		Transactor:     store,
		Dispatcher:     dispatcher,
		Config:         config.BugsConfig{PerPage: 20, MaxPerPage: 100, DuplicateLimit: 5, SearchLimit: 20},
	})
	return &notificationFixture{
		store:         store,
		bugs:          bugs,
		notifications: notifications,
		reporter:      identityOf(store.AddUser("Rita", "rita@example.com", domain.UserRoleTester)),
		dev:           identityOf(store.AddUser("Dan", "dan@example.com", domain.UserRoleDeveloper)),
	}
}

func TestNotifications_AssignmentNotifiesAssignee(t *testing.T) {
	f := newNotificationFixture(t)

	result, err := f.bugs.Create(context.Background(), f.reporter, CreateBugInput{Title: "Crash", Description: "D", AssigneeID: &f.dev.ID, Force: true})
	require.NoError(t, err)

	got := f.store.NotificationsFor(f.dev.ID)
	require.Len(t, got, 1)
	assert.Contains(t, got[0].Message, "Crash")
	assert.False(t, got[0].IsRead)
	assert.Empty(t, f.store.NotificationsFor(f.reporter.ID))

	_, err = f.bugs.TransitionStatus(context.Background(), f.dev, result.BugID, "In Progress")
	require.NoError(t, err)
	assert.Len(t, f.store.NotificationsFor(f.reporter.ID), 1)
	assert.Len(t, f.store.NotificationsFor(f.dev.ID), 1)
}

func TestNotifications_CommentSkipsActorAndDedupes(t *testing.T) {
	f := newNotificationFixture(t)
	result, err := f.bugs.Create(context.Background(), f.reporter, CreateBugInput{Title: "Self", Description: "D", AssigneeID: &f.reporter.ID, Force: true})
	require.NoError(t, err)

	_, err = f.bugs.AddComment(context.Background(), f.dev, result.BugID, "looking")
	require.NoError(t, err)

	assert.Len(t, f.store.NotificationsFor(f.reporter.ID), 1)
	assert.Empty(t, f.store.NotificationsFor(f.dev.ID))
}

func TestNotifications_ListAndMarkRead(t *testing.T) {
	f := newNotificationFixture(t)
	_, err := f.bugs.Create(context.Background(), f.reporter, CreateBugInput{Title: "Crash", Description: "D", AssigneeID: &f.dev.ID, Force: true})
	require.NoError(t, err)

	items, err := f.notifications.List(context.Background(), f.dev)
	require.NoError(t, err)
	require.Len(t, items, 1)

	err = f.notifications.MarkRead(context.Background(), f.reporter, items[0].ID)
	assert.True(t, apperrors.IsCode(err, apperrors.CodeNotFound))

	require.NoError(t, f.notifications.MarkRead(context.Background(), f.dev, items[0].ID))
	assert.True(t, f.store.NotificationsFor(f.dev.ID)[0].IsRead)
}
