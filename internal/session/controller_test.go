package session

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startedFixture(t *testing.T, minutes int) *fixture {
	t.Helper()
	f := newFixture(newMemStore(false, minutes), newFakePermissions(false, true))
	t.Cleanup(f.close)

	ok, err := f.ctrl.Start(context.Background())
	require.NoError(t, err)
	require.True(t, ok)
	return f
}

func TestStartComputesEndAt(t *testing.T) {
	for _, minutes := range []int{0, 1, 30, 60, 480, 1440} {
		f := startedFixture(t, minutes)

		st := f.ctrl.State()
		assert.True(t, st.IsActive)
		if minutes == 0 {
			assert.True(t, st.EndAt.IsZero(), "unbounded session has no end")
			assert.Equal(t, 0, st.RemainingSeconds)
			continue
		}
		assert.Equal(t, epoch.Add(time.Duration(minutes)*60000*time.Millisecond), st.EndAt)
		assert.Equal(t, minutes*60, st.RemainingSeconds)
	}
}

func TestStartPersistsEnabledAndStartsRunner(t *testing.T) {
	f := startedFixture(t, 30)

	assert.True(t, f.store.Config().Enabled)
	assert.True(t, f.scheduler.IsRunning())

	st := f.ctrl.State()
	assert.False(t, st.NextMoveAt.IsZero())
	assert.Greater(t, st.Countdown, 0)
}

func TestUnboundedSessionNeverExpires(t *testing.T) {
	f := startedFixture(t, 0)

	f.clock.Advance(48 * time.Hour)

	st := f.ctrl.State()
	assert.True(t, st.IsActive)
	assert.Equal(t, 0, st.RemainingSeconds)
	assert.Greater(t, f.backend.Moves(), 0)
}

func TestBoundedSessionExpires(t *testing.T) {
	f := startedFixture(t, 30)

	f.clock.Advance(29 * time.Minute)
	assert.True(t, f.ctrl.State().IsActive)
	assert.Equal(t, 60, f.ctrl.State().RemainingSeconds)

	f.clock.Advance(2 * time.Minute)
	st := f.ctrl.State()
	assert.False(t, st.IsActive)
	assert.True(t, st.EndAt.IsZero())
	assert.Equal(t, 0, st.RemainingSeconds)
	assert.Equal(t, 0, st.Countdown)
	assert.False(t, f.store.Config().Enabled)

	moves := f.backend.Moves()
	f.clock.Advance(time.Hour)
	assert.Equal(t, moves, f.backend.Moves(), "no moves after expiry")
}

func TestRestartReplacesDurationTimer(t *testing.T) {
	f := startedFixture(t, 30)

	f.clock.Advance(20 * time.Minute)
	_, err := f.ctrl.Start(context.Background())
	require.NoError(t, err)

	f.clock.Advance(20 * time.Minute)
	assert.True(t, f.ctrl.State().IsActive, "first timer was replaced")

	f.clock.Advance(11 * time.Minute)
	assert.False(t, f.ctrl.State().IsActive)
}

func TestStartWithoutPermission(t *testing.T) {
	f := newFixture(newMemStore(false, 60), newFakePermissions(true, false))
	t.Cleanup(f.close)

	ok, err := f.ctrl.Start(context.Background())
	require.NoError(t, err)
	assert.False(t, ok)

	select {
	case <-f.perms.prompts:
	case <-time.After(2 * time.Second):
		t.Fatal("guidance was not shown")
	}
	assert.False(t, f.ctrl.State().IsActive)
	assert.False(t, f.scheduler.IsRunning())
	assert.False(t, f.store.Config().Enabled)
}

func TestStopIsIdempotent(t *testing.T) {
	f := startedFixture(t, 30)

	require.NoError(t, f.ctrl.Stop(context.Background()))
	published, sets := len(f.published()), f.store.sets
	require.NoError(t, f.ctrl.Stop(context.Background()))
	assert.Len(t, f.published(), published, "second stop publishes nothing")
	assert.Equal(t, sets, f.store.sets, "second stop persists nothing")

	st := f.ctrl.State()
	assert.False(t, st.IsActive)
	assert.True(t, st.EndAt.IsZero())
	assert.False(t, f.scheduler.IsRunning())
	assert.False(t, f.store.Config().Enabled)
	assert.Equal(t, 0, f.clock.Pending(), "no timers left behind")
}

func TestStopClearsEnabledWhileWaitingForPermission(t *testing.T) {
	f := newFixture(newMemStore(true, 0), newFakePermissions(true, false))
	t.Cleanup(f.close)
	require.NoError(t, f.ctrl.Restore(context.Background()))
	require.False(t, f.ctrl.State().IsActive)

	require.NoError(t, f.ctrl.Stop(context.Background()))
	assert.False(t, f.store.Config().Enabled)

	f.perms.transition(true)
	assert.False(t, f.ctrl.State().IsActive, "a stopped session does not resume on grant")
}

func TestToggle(t *testing.T) {
	f := newFixture(newMemStore(false, 60), newFakePermissions(false, true))
	t.Cleanup(f.close)
	ctx := context.Background()

	active, err := f.ctrl.Toggle(ctx)
	require.NoError(t, err)
	assert.True(t, active)
	assert.True(t, f.ctrl.State().IsActive)

	active, err = f.ctrl.Toggle(ctx)
	require.NoError(t, err)
	assert.False(t, active)
	assert.False(t, f.ctrl.State().IsActive)
}

func TestPersistFailureKeepsSessionRunning(t *testing.T) {
	store := newMemStore(false, 60)
	store.setErr = errDiskFull
	f := newFixture(store, newFakePermissions(false, true))
	t.Cleanup(f.close)

	ok, err := f.ctrl.Start(context.Background())
	assert.True(t, ok)
	assert.ErrorIs(t, err, errDiskFull)
	assert.True(t, f.ctrl.State().IsActive)
	assert.True(t, f.scheduler.IsRunning())
}

func TestRevokeStopsAndRegrantResumes(t *testing.T) {
	f := newFixture(newMemStore(false, 0), newFakePermissions(true, true))
	t.Cleanup(f.close)
	require.NoError(t, f.ctrl.Restore(context.Background()))
	_, err := f.ctrl.Start(context.Background())
	require.NoError(t, err)

	f.perms.transition(false)

	st := f.ctrl.State()
	assert.False(t, st.IsActive)
	assert.False(t, st.HasPermission)
	assert.False(t, f.scheduler.IsRunning())
	assert.True(t, f.store.Config().Enabled, "revoke keeps the session enabled")

	moves := f.backend.Moves()
	f.clock.Advance(10 * time.Minute)
	assert.Equal(t, moves, f.backend.Moves())

	f.perms.transition(true)
	st = f.ctrl.State()
	assert.True(t, st.IsActive)
	assert.True(t, st.HasPermission)
}

func TestGrantDoesNotStartDisabledSession(t *testing.T) {
	f := newFixture(newMemStore(false, 60), newFakePermissions(true, false))
	t.Cleanup(f.close)
	require.NoError(t, f.ctrl.Restore(context.Background()))

	f.perms.transition(true)

	st := f.ctrl.State()
	assert.True(t, st.HasPermission)
	assert.False(t, st.IsActive)
}

func TestPublishedStatesNeverActiveWithoutPermission(t *testing.T) {
	f := newFixture(newMemStore(false, 30), newFakePermissions(true, true))
	t.Cleanup(f.close)
	require.NoError(t, f.ctrl.Restore(context.Background()))
	_, err := f.ctrl.Start(context.Background())
	require.NoError(t, err)
	f.clock.Advance(5 * time.Minute)
	f.perms.transition(false)
	f.perms.transition(true)
	f.clock.Advance(time.Hour)

	states := f.published()
	require.NotEmpty(t, states)
	for _, st := range states {
		if st.IsActive {
			assert.True(t, st.HasPermission)
		}
	}
}

func TestRestore(t *testing.T) {
	t.Run("enabled and granted starts", func(t *testing.T) {
		f := newFixture(newMemStore(true, 60), newFakePermissions(true, true))
		t.Cleanup(f.close)

		require.NoError(t, f.ctrl.Restore(context.Background()))
		assert.True(t, f.ctrl.State().IsActive)
		assert.True(t, f.perms.watching)
	})

	t.Run("disabled stays idle", func(t *testing.T) {
		f := newFixture(newMemStore(false, 60), newFakePermissions(true, true))
		t.Cleanup(f.close)

		require.NoError(t, f.ctrl.Restore(context.Background()))
		assert.False(t, f.ctrl.State().IsActive)
		assert.True(t, f.ctrl.State().HasPermission)
	})

	t.Run("denied stays idle", func(t *testing.T) {
		f := newFixture(newMemStore(true, 60), newFakePermissions(true, false))
		t.Cleanup(f.close)

		require.NoError(t, f.ctrl.Restore(context.Background()))
		assert.False(t, f.ctrl.State().IsActive)
		assert.False(t, f.ctrl.State().HasPermission)
	})
}

func TestResume(t *testing.T) {
	t.Run("budget left resumes and re-arms", func(t *testing.T) {
		f := startedFixture(t, 30)

		f.clock.Jump(10 * time.Minute)
		require.NoError(t, f.ctrl.HandleResume(context.Background()))

		st := f.ctrl.State()
		assert.True(t, st.IsActive)
		assert.Equal(t, 20*60, st.RemainingSeconds)
		assert.True(t, f.scheduler.IsRunning())

		f.clock.Advance(20*time.Minute + time.Second)
		assert.False(t, f.ctrl.State().IsActive)
	})

	t.Run("budget spent stops", func(t *testing.T) {
		f := startedFixture(t, 30)

		f.clock.Jump(45 * time.Minute)
		require.NoError(t, f.ctrl.HandleResume(context.Background()))

		assert.False(t, f.ctrl.State().IsActive)
		assert.False(t, f.scheduler.IsRunning())
		assert.False(t, f.store.Config().Enabled)
	})

	t.Run("unbounded resumes", func(t *testing.T) {
		f := startedFixture(t, 0)

		f.clock.Jump(12 * time.Hour)
		require.NoError(t, f.ctrl.HandleResume(context.Background()))
		assert.True(t, f.ctrl.State().IsActive)
	})

	t.Run("inactive session is left alone", func(t *testing.T) {
		f := newFixture(newMemStore(true, 30), newFakePermissions(false, true))
		t.Cleanup(f.close)

		require.NoError(t, f.ctrl.HandleResume(context.Background()))
		assert.False(t, f.ctrl.State().IsActive)
		assert.False(t, f.scheduler.IsRunning())
	})
}

func TestCloseKeepsEnabled(t *testing.T) {
	f := startedFixture(t, 30)

	require.NoError(t, f.ctrl.Close())
	assert.False(t, f.scheduler.IsRunning())
	assert.True(t, f.store.Config().Enabled)
}

func TestStateJSON(t *testing.T) {
	st := State{
		IsActive:         true,
		HasPermission:    true,
		EndAt:            epoch.Add(time.Hour),
		RemainingSeconds: 3600,
		NextMoveAt:       epoch.Add(45 * time.Second),
		Countdown:        45,
	}

	data, err := json.Marshal(st)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"isActive": true,
		"hasPermission": true,
		"endAt": 1709287200000,
		"remainingSeconds": 3600,
		"nextMoveAt": 1709283645000,
		"countdown": 45,
		"lastMoveAt": 0
	}`, string(data))

	var back State
	require.NoError(t, json.Unmarshal(data, &back))
	assert.True(t, back.LastMoveAt.IsZero())
	assert.True(t, back.EndAt.Equal(st.EndAt))
}
