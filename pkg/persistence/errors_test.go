package persistence

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEntityError_WrapsSentinel(t *testing.T) {
	err := NewEntityError("GetByID", "cycle", "c1", ErrCycleNotFound)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "GetByID")
	assert.Contains(t, err.Error(), "cycle c1")
	assert.ErrorIs(t, err, ErrCycleNotFound)
}

func TestIsHelpers(t *testing.T) {
	assert.True(t, IsCycleNotFound(NewEntityError("GetByID", "cycle", "c1", ErrCycleNotFound)))
	assert.True(t, IsStepNotFound(NewEntityError("GetByID", "step", "s1", ErrStepNotFound)))
	assert.True(t, IsTaskNotFound(NewEntityError("GetByID", "task", "t1", ErrTaskNotFound)))
	assert.True(t, IsIssueNotFound(NewEntityError("GetByID", "issue", "i1", ErrIssueNotFound)))

	assert.False(t, IsCycleNotFound(errors.New("boom")))
	assert.False(t, IsIssueNotFound(ErrCycleNotFound))
}

func TestIsNotFound_AnyEntity(t *testing.T) {
	for _, sentinel := range []error{ErrCycleNotFound, ErrStepNotFound, ErrTaskNotFound, ErrIssueNotFound} {
		assert.True(t, IsNotFound(NewEntityError("GetByID", "x", "1", sentinel)))
	}

	assert.False(t, IsNotFound(errors.New("connection refused")))
}
