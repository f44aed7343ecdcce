package dto

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodePatch(t *testing.T, body string) (UpdateBugRequest, error) {
	t.Helper()
	raw := map[string]json.RawMessage{}
	require.NoError(t, json.Unmarshal([]byte(body), &raw))
	return DecodeUpdateBugRequest(raw)
}

func TestDecodeUpdateBugRequest_NullTextKeysAreAbsent(t *testing.T) {
	req, err := decodePatch(t, `{"title":null,"description":null,"priority":null,"status":"Resolved"}`)
	require.NoError(t, err)

	assert.Nil(t, req.Title)
	assert.Nil(t, req.Description)
	assert.Nil(t, req.Priority)
	require.NotNil(t, req.Status)
	assert.Equal(t, "Resolved", *req.Status)
	assert.False(t, req.AssigneeSet)
}

func TestDecodeUpdateBugRequest_EmptyStringStaysPresent(t *testing.T) {
	req, err := decodePatch(t, `{"title":""}`)
	require.NoError(t, err)

	require.NotNil(t, req.Title)
	assert.Equal(t, "", *req.Title)
}

func TestDecodeUpdateBugRequest_Assignee(t *testing.T) {
	req, err := decodePatch(t, `{"assignee_id":null}`)
	require.NoError(t, err)
	assert.True(t, req.AssigneeSet)
	assert.Nil(t, req.AssigneeID)

	req, err = decodePatch(t, `{"assignee_id":"7"}`)
	require.NoError(t, err)
	require.NotNil(t, req.AssigneeID)
	assert.Equal(t, int64(7), *req.AssigneeID)

	_, err = decodePatch(t, `{"assignee_id":"seven"}`)
	var fieldErr *FieldDecodeError
	require.ErrorAs(t, err, &fieldErr)
	assert.Equal(t, "assignee", fieldErr.Field)
}

func TestDecodeUpdateBugRequest_WrongTypeNamesField(t *testing.T) {
	_, err := decodePatch(t, `{"priority":3}`)
	var fieldErr *FieldDecodeError
	require.ErrorAs(t, err, &fieldErr)
	assert.Equal(t, "priority", fieldErr.Field)
}
