package registry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/go-partisan/partisan/internal/processor"
	"github.com/go-partisan/partisan/internal/task"
)

func stubFactory(task.Arguments) (processor.Processor, error) { return nil, nil }

func TestRegistry_RegisterAndLookup(t *testing.T) {
	r := New()
	require.NoError(t, r.Register("Echo", stubFactory))
	assert.True(t, r.IsRegistered("Echo"))

	factory, err := r.Lookup("Echo")
	require.NoError(t, err)
	assert.NotNil(t, factory)
}

func TestRegistry_DuplicateRegistrationFails(t *testing.T) {
	r := New()
	require.NoError(t, r.Register("Echo", stubFactory))
	err := r.Register("Echo", stubFactory)
	assert.ErrorIs(t, err, ErrAlreadyRegistered)
}

func TestRegistry_LookupUnknownFails(t *testing.T) {
	r := New()
	_, err := r.Lookup("Missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRegistry_Names(t *testing.T) {
	r := New()
	require.NoError(t, r.Register("A", stubFactory))
	require.NoError(t, r.Register("B", stubFactory))
	assert.ElementsMatch(t, []string{"A", "B"}, r.Names())
}
