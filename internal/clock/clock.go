// Package clock evaluates the pausable game clock.
//
// Settings is an immutable value: Pause and Resume return a new value and
// never touch the receiver, so callers can apply them inside a
// compare-and-swap loop. Evaluate is pure and takes the current time as an
// argument.
package clock

import (
	"errors"
	"time"
)

var (
	ErrAlreadyPaused   = errors.New("clock already paused")
	ErrNotPaused       = errors.New("clock not paused")
	ErrInvalidDuration = errors.New("duration must be positive")
	ErrInvalidStart    = errors.New("start time is required")
)

type Settings struct {
	StartAt     time.Time     `json:"startAt"`
	Duration    time.Duration `json:"duration"`
	Active      bool          `json:"active"`
	Paused      bool          `json:"paused"`
	PausedAt    *time.Time    `json:"pausedAt,omitempty"`
	PausedTotal time.Duration `json:"pausedTotal"`
}

type View struct {
	Started    bool
	UntilStart time.Duration
	Remaining  time.Duration
	Expired    bool
}

// Evaluate derives the clock view at now. While paused the elapsed time is
// frozen at PausedAt.
func Evaluate(s Settings, now time.Time) View {
	if now.Before(s.StartAt) {
		return View{UntilStart: s.StartAt.Sub(now), Remaining: s.Duration}
	}

	effective := now
	if s.Paused && s.PausedAt != nil {
		effective = *s.PausedAt
	}
	elapsed := effective.Sub(s.StartAt) - s.PausedTotal
	if elapsed < 0 {
		elapsed = 0
	}
	remaining := s.Duration - elapsed
	if remaining < 0 {
		remaining = 0
	}
	return View{
		Started:   true,
		Remaining: remaining,
		Expired:   s.Active && remaining == 0,
	}
}

// Pause records the pause instant.
func (s Settings) Pause(now time.Time) (Settings, error) {
	if s.Paused {
		return s, ErrAlreadyPaused
	}
	at := now
	s.Paused = true
	s.PausedAt = &at
	return s, nil
}

// Resume folds the paused interval into PausedTotal.
func (s Settings) Resume(now time.Time) (Settings, error) {
	if !s.Paused {
		return s, ErrNotPaused
	}
	if s.PausedAt != nil {
		if d := now.Sub(*s.PausedAt); d > 0 {
			s.PausedTotal += d
		}
	}
	s.Paused = false
	s.PausedAt = nil
	return s, nil
}

// Toggle pauses a running clock and resumes a paused one.
func (s Settings) Toggle(now time.Time) Settings {
	if s.Paused {
		next, _ := s.Resume(now)
		return next
	}
	next, _ := s.Pause(now)
	return next
}

// Reschedule sets a new start and duration. Pause accounting carries over.
func (s Settings) Reschedule(start time.Time, d time.Duration) (Settings, error) {
	if start.IsZero() {
		return s, ErrInvalidStart
	}
	if d <= 0 {
		return s, ErrInvalidDuration
	}
	s.StartAt = start
	s.Duration = d
	return s, nil
}

// Source provides the current time.
type Source interface {
	Now() time.Time
}

// System reads the wall clock in UTC.
type System struct{}

func (System) Now() time.Time { return time.Now().UTC() }
