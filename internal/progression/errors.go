package progression

import (
	"errors"
	"fmt"
	"math"
	"time"
)

// Precondition failures. No state is written when one of these is returned.
var (
	ErrGamePaused          = errors.New("game is paused")
	ErrGameNotStarted      = errors.New("game has not started")
	ErrGameAlreadyComplete = errors.New("game already complete")
	ErrCooldownActive      = errors.New("cooldown active")
	ErrSkipNotAvailable    = errors.New("no skips remaining")
	ErrNoCurrentChallenge  = errors.New("no current challenge")
	ErrNotInitialized      = errors.New("progress not initialized")
)

var (
	// ErrLocationTooFar is matched by TooFarError. The cooldown it starts
	// has already been persisted when it is returned.
	ErrLocationTooFar = errors.New("location too far")

	ErrChallengeDataMissing   = errors.New("challenge data missing")
	ErrConcurrentModification = errors.New("concurrent modification")
	ErrInvalidCoordinate      = errors.New("invalid coordinate")
)

type CooldownError struct {
	Remaining time.Duration
}

func (e *CooldownError) Error() string {
	return fmt.Sprintf("cooldown active: %ds remaining", e.Seconds())
}

func (e *CooldownError) Is(target error) bool { return target == ErrCooldownActive }

// Seconds rounds the remaining cooldown up to whole seconds.
func (e *CooldownError) Seconds() int {
	return int(math.Ceil(e.Remaining.Seconds()))
}

type TooFarError struct {
	Distance float64
	Radius   float64
}

func (e *TooFarError) Error() string {
	return fmt.Sprintf("location too far: %.2fm from target (radius %.0fm)", e.Distance, e.Radius)
}

func (e *TooFarError) Is(target error) bool { return target == ErrLocationTooFar }
