package errorutil

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToDomainError_PassesThroughDomainErrors(t *testing.T) {
	err := fmt.Errorf("wrapped: %w", NewFieldError("project", "Invalid project"))

	de := ToDomainError(err)

	require.NotNil(t, de)
	assert.Equal(t, CodeValidation, de.Code)
	assert.Equal(t, http.StatusBadRequest, de.HTTPStatus)
	assert.Equal(t, "project", de.Details["field"])
}

func TestToDomainError_NoRowsIsNotFound(t *testing.T) {
	de := ToDomainError(fmt.Errorf("get bug: %w", pgx.ErrNoRows))

	assert.Equal(t, CodeNotFound, de.Code)
	assert.Equal(t, http.StatusNotFound, de.HTTPStatus)
}

func TestToDomainError_HidesInternalCause(t *testing.T) {
	cause := errors.New("pq: relation \"bugs\" does not exist")

	de := ToDomainError(cause)

	assert.Equal(t, CodeInternal, de.Code)
	assert.Equal(t, "internal server error", de.Message)
	assert.ErrorIs(t, de, cause)
}

func TestMapError_Nil(t *testing.T) {
	assert.NoError(t, MapError(nil))
	assert.Nil(t, ToDomainError(nil))
}

func TestNewNotFound_Message(t *testing.T) {
	de := ToDomainError(NewNotFound("bug", map[string]any{"bug_id": int64(9)}))
	assert.Equal(t, "Bug not found", de.Message)
	assert.Equal(t, int64(9), de.Details["bug_id"])
}

func TestIsCode(t *testing.T) {
	assert.True(t, IsCode(NewNotFound("bug", nil), CodeNotFound))
	assert.False(t, IsCode(NewUnauthorized("nope"), CodeNotFound))
	assert.False(t, IsCode(errors.New("plain"), CodeNotFound))
}
