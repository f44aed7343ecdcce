package events

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type countingRecorder struct{ seen []string }

func (r *countingRecorder) RecordEvent(eventType string) { r.seen = append(r.seen, eventType) }

func TestDispatcher_PublishReachesSubscribers(t *testing.T) {
	recorder := &countingRecorder{}
	d := NewInMemoryDispatcher(zap.NewNop(), recorder)

	var got []Event
	d.Subscribe(EventBugCreated, func(_ context.Context, e Event) error {
		got = append(got, e)
		return nil
	})
	d.Subscribe(EventBugCreated, func(context.Context, Event) error {
		return errors.New("handler down")
	})

	event := NewEvent(EventBugCreated, 12, 3, BugCreatedPayload{Title: "Crash"})
	require.NoError(t, d.Publish(context.Background(), event))
	require.NoError(t, d.Publish(context.Background(), NewEvent(EventCommentAdded, 12, 3, nil)))

	require.Len(t, got, 1)
	assert.Equal(t, int64(12), got[0].BugID)
	assert.NotEmpty(t, got[0].ID)
	assert.Equal(t, []string{"bug_created", "comment_added"}, recorder.seen)
}
