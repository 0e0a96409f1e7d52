package clock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)

func running(d time.Duration) Settings {
	return Settings{StartAt: t0, Duration: d, Active: true}
}

func TestEvaluate_BeforeStart(t *testing.T) {
	v := Evaluate(running(time.Hour), t0.Add(-5*time.Minute))
	require.False(t, v.Started)
	require.Equal(t, 5*time.Minute, v.UntilStart)
	require.Equal(t, time.Hour, v.Remaining)
	require.False(t, v.Expired)
}

func TestEvaluate_Running(t *testing.T) {
	v := Evaluate(running(time.Hour), t0.Add(20*time.Minute))
	require.True(t, v.Started)
	require.Zero(t, v.UntilStart)
	require.Equal(t, 40*time.Minute, v.Remaining)
	require.False(t, v.Expired)
}

func TestEvaluate_ExpiredOnlyWhenActive(t *testing.T) {
	s := running(time.Hour)
	v := Evaluate(s, t0.Add(2*time.Hour))
	require.Zero(t, v.Remaining)
	require.True(t, v.Expired)

	s.Active = false
	v = Evaluate(s, t0.Add(2*time.Hour))
	require.Zero(t, v.Remaining)
	require.False(t, v.Expired)
}

func TestEvaluate_PauseFreezesRemaining(t *testing.T) {
	s, err := running(time.Hour).Pause(t0.Add(10 * time.Minute))
	require.NoError(t, err)

	for _, later := range []time.Duration{10 * time.Minute, 30 * time.Minute, 5 * time.Hour} {
		v := Evaluate(s, t0.Add(later))
		require.Equal(t, 50*time.Minute, v.Remaining, "at +%s", later)
		require.False(t, v.Expired)
	}
}

func TestEvaluate_PauseExcludedFromElapsed(t *testing.T) {
	const (
		d = time.Hour
		p = 15 * time.Minute
	)
	s, err := running(d).Pause(t0.Add(10 * time.Minute))
	require.NoError(t, err)
	s, err = s.Resume(t0.Add(10*time.Minute + p))
	require.NoError(t, err)
	require.Equal(t, p, s.PausedTotal)

	v := Evaluate(s, t0.Add(d+p))
	require.Zero(t, v.Remaining)
	require.True(t, v.Expired)

	v = Evaluate(s, t0.Add(d+p-time.Millisecond))
	require.Equal(t, time.Millisecond, v.Remaining)
	require.False(t, v.Expired)
}

func TestPauseResume_Errors(t *testing.T) {
	s := running(time.Hour)
	_, err := s.Resume(t0)
	require.ErrorIs(t, err, ErrNotPaused)

	paused, err := s.Pause(t0)
	require.NoError(t, err)
	require.NotNil(t, paused.PausedAt)
	_, err = paused.Pause(t0.Add(time.Second))
	require.ErrorIs(t, err, ErrAlreadyPaused)

	// Receiver is untouched.
	require.False(t, s.Paused)
	require.Nil(t, s.PausedAt)
}

func TestToggle_AccumulatesOnlyOnResume(t *testing.T) {
	s := running(time.Hour)
	s = s.Toggle(t0.Add(time.Minute))
	require.True(t, s.Paused)
	require.Zero(t, s.PausedTotal)

	s = s.Toggle(t0.Add(3 * time.Minute))
	require.False(t, s.Paused)
	require.Nil(t, s.PausedAt)
	require.Equal(t, 2*time.Minute, s.PausedTotal)

	s = s.Toggle(t0.Add(10 * time.Minute))
	s = s.Toggle(t0.Add(11 * time.Minute))
	require.Equal(t, 3*time.Minute, s.PausedTotal)
}

func TestResume_ClockSkewDoesNotShrinkTotal(t *testing.T) {
	s, err := running(time.Hour).Pause(t0.Add(10 * time.Minute))
	require.NoError(t, err)
	s, err = s.Resume(t0.Add(5 * time.Minute))
	require.NoError(t, err)
	require.Zero(t, s.PausedTotal)
}

func TestReschedule(t *testing.T) {
	s := running(time.Hour)
	s.PausedTotal = time.Minute

	_, err := s.Reschedule(t0, 0)
	require.ErrorIs(t, err, ErrInvalidDuration)

	_, err = s.Reschedule(time.Time{}, time.Hour)
	require.ErrorIs(t, err, ErrInvalidStart)

	next, err := s.Reschedule(t0.Add(time.Hour), 90*time.Minute)
	require.NoError(t, err)
	require.Equal(t, t0.Add(time.Hour), next.StartAt)
	require.Equal(t, 90*time.Minute, next.Duration)
	require.Equal(t, time.Minute, next.PausedTotal)
}

func TestFixed(t *testing.T) {
	f := NewFixed(t0)
	require.Equal(t, t0, f.Now())
	require.Equal(t, t0.Add(time.Second), f.Advance(time.Second))
	f.Set(t0)
	require.Equal(t, t0, f.Now())
}
