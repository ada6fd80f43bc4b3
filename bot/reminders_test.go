package bot

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kharkivmetro.dev/metro/testutil"
)

func testScheduler(t *testing.T) (*Scheduler, *fakeSender) {
	t.Helper()
	store := testutil.BuildStore(t)
	network := testutil.BuildNetwork(t)
	sender := newFakeSender()
	return NewScheduler(store, network, sender, nil), sender
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	require.True(t, cond(), "condition not met within %s", timeout)
}

func TestReminderFiresOnceAndDeactivates(t *testing.T) {
	s, sender := testScheduler(t)

	id, err := s.Arm(7, "abcdef123456", "levada", time.Now().Add(100*time.Millisecond), "ua")
	require.NoError(t, err)
	assert.Positive(t, id)
	assert.True(t, s.Pending(7))

	waitFor(t, 2*time.Second, func() bool {
		sender.mu.Lock()
		defer sender.mu.Unlock()
		return len(sender.sent) == 1
	})

	msg := sender.last()
	assert.True(t, msg.IsUser)
	assert.Equal(t, int64(7), msg.ChatID)
	assert.Contains(t, msg.Text, "Левада")

	assert.False(t, s.Pending(7))
	active, err := s.store.ActiveReminders(7)
	require.NoError(t, err)
	assert.Empty(t, active)

	// Nothing else arrives.
	time.Sleep(150 * time.Millisecond)
	sender.mu.Lock()
	assert.Len(t, sender.sent, 1)
	sender.mu.Unlock()
}

func TestArmReplacesPendingReminder(t *testing.T) {
	s, sender := testScheduler(t)

	_, err := s.Arm(7, "key1", "levada", time.Now().Add(time.Hour), "ua")
	require.NoError(t, err)
	_, err = s.Arm(7, "key2", "kyivska", time.Now().Add(120*time.Millisecond), "ua")
	require.NoError(t, err)

	waitFor(t, 2*time.Second, func() bool {
		sender.mu.Lock()
		defer sender.mu.Unlock()
		return len(sender.sent) == 1
	})

	// Only the replacement fired.
	assert.Contains(t, sender.last().Text, "Київська")
	assert.False(t, s.Pending(7))
}

func TestCancelStopsTimerAndDeactivates(t *testing.T) {
	s, sender := testScheduler(t)

	_, err := s.Arm(7, "key", "levada", time.Now().Add(100*time.Millisecond), "ua")
	require.NoError(t, err)
	require.NoError(t, s.Cancel(7))

	assert.False(t, s.Pending(7))
	time.Sleep(200 * time.Millisecond)
	sender.mu.Lock()
	assert.Empty(t, sender.sent)
	sender.mu.Unlock()

	active, err := s.store.ActiveReminders(7)
	require.NoError(t, err)
	assert.Empty(t, active)
}

func TestRestoreSurvivesRestart(t *testing.T) {
	store := testutil.BuildStore(t)
	network := testutil.BuildNetwork(t)

	// First process arms and dies without firing.
	first := NewScheduler(store, network, newFakeSender(), nil)
	_, err := first.Arm(7, "key", "levada", time.Now().Add(150*time.Millisecond), "ua")
	require.NoError(t, err)
	first.Shutdown()
	assert.False(t, first.Pending(7))

	// Second process restores from the table and fires on schedule.
	sender := newFakeSender()
	second := NewScheduler(store, network, sender, nil)
	require.NoError(t, second.Restore(time.Now()))
	assert.True(t, second.Pending(7))

	waitFor(t, 2*time.Second, func() bool {
		sender.mu.Lock()
		defer sender.mu.Unlock()
		return len(sender.sent) == 1
	})
	assert.Contains(t, sender.last().Text, "Левада")
}

func TestRestoreDeactivatesStaleReminders(t *testing.T) {
	store := testutil.BuildStore(t)
	network := testutil.BuildNetwork(t)

	_, err := store.SaveReminder(7, "past", "levada", time.Now().Add(-time.Minute), "ua")
	require.NoError(t, err)
	_, err = store.SaveReminder(8, "ghost", "no_such_station", time.Now().Add(time.Hour), "ua")
	require.NoError(t, err)

	s := NewScheduler(store, network, newFakeSender(), nil)
	require.NoError(t, s.Restore(time.Now()))

	assert.False(t, s.Pending(7))
	assert.False(t, s.Pending(8))

	all, err := store.AllActiveReminders()
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestAnonymizeUserIDIsStable(t *testing.T) {
	a := AnonymizeUserID(42, "salt")
	b := AnonymizeUserID(42, "salt")
	c := AnonymizeUserID(42, "other")

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.Len(t, a, 32)
}
