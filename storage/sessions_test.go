package storage

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testKey = SessionKey{ChatID: 1, UserID: 2, Destiny: DefaultDestiny}

func TestSessionStateAndDataIndependent(t *testing.T) {
	s := testStore(t)

	require.NoError(t, s.SetData(testKey, map[string]interface{}{"from": "a"}))
	require.NoError(t, s.SetState(testKey, "route:from_station"))

	// Setting state preserved the data.
	data, err := s.GetData(testKey)
	require.NoError(t, err)
	assert.Equal(t, "a", data["from"])

	// Setting data preserves the state.
	require.NoError(t, s.SetData(testKey, map[string]interface{}{"from": "b"}))
	state, err := s.GetState(testKey)
	require.NoError(t, err)
	assert.Equal(t, "route:from_station", state)
}

func TestSessionUpdateDataMerges(t *testing.T) {
	s := testStore(t)

	_, err := s.UpdateData(testKey, map[string]interface{}{"a": "1"})
	require.NoError(t, err)
	merged, err := s.UpdateData(testKey, map[string]interface{}{"b": "2"})
	require.NoError(t, err)

	assert.Equal(t, "1", merged["a"])
	assert.Equal(t, "2", merged["b"])

	stored, err := s.GetData(testKey)
	require.NoError(t, err)
	assert.Equal(t, merged, stored)
}

func TestSessionMissingRow(t *testing.T) {
	s := testStore(t)

	state, err := s.GetState(testKey)
	require.NoError(t, err)
	assert.Empty(t, state)

	data, err := s.GetData(testKey)
	require.NoError(t, err)
	assert.Empty(t, data)
}

func TestSessionClear(t *testing.T) {
	s := testStore(t)

	require.NoError(t, s.SetState(testKey, "schedule:line"))
	require.NoError(t, s.SetData(testKey, map[string]interface{}{"x": "y"}))
	require.NoError(t, s.ClearSession(testKey))

	state, err := s.GetState(testKey)
	require.NoError(t, err)
	assert.Empty(t, state)
	data, err := s.GetData(testKey)
	require.NoError(t, err)
	assert.Empty(t, data)
}

func TestSessionKeysAreIsolated(t *testing.T) {
	s := testStore(t)
	other := SessionKey{ChatID: 1, UserID: 3, Destiny: DefaultDestiny}

	require.NoError(t, s.SetState(testKey, "route:from_line"))
	require.NoError(t, s.SetState(other, "stations:line"))

	state, err := s.GetState(testKey)
	require.NoError(t, err)
	assert.Equal(t, "route:from_line", state)
	state, err = s.GetState(other)
	require.NoError(t, err)
	assert.Equal(t, "stations:line", state)
}

func TestCleanupStaleSessions(t *testing.T) {
	s := testStore(t)

	require.NoError(t, s.SetState(testKey, "route:from_line"))

	// Fresh rows survive.
	n, err := s.CleanupStaleSessions(time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	// Everything is older than a zero-age cutoff.
	time.Sleep(10 * time.Millisecond)
	n, err = s.CleanupStaleSessions(0)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	state, err := s.GetState(testKey)
	require.NoError(t, err)
	assert.Empty(t, state)
}
