// Package progression implements the per-team challenge state machine.
//
// Every mutation is a read-modify-write against a versioned document: the
// engine loads the state with its version, builds the candidate next state
// in memory and commits it with a compare-and-swap. A lost race reloads and
// re-evaluates from scratch, up to Config.MaxRetries times.
package progression

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/playperu/geohunt/internal/catalog"
	"github.com/playperu/geohunt/internal/clock"
	"github.com/playperu/geohunt/internal/events"
	"github.com/playperu/geohunt/internal/geo"
	"github.com/playperu/geohunt/internal/hunt"
)

const DefaultMaxRetries = 5

// Store is the versioned document store holding progress and settings.
// LoadProgress returns hunt.ErrNotFound when the team has no state yet.
type Store interface {
	LoadProgress(ctx context.Context, actorID string) (State, int64, error)
	CreateProgress(ctx context.Context, s State) (bool, error)
	SwapProgress(ctx context.Context, actorID string, version int64, next State) (bool, error)
	LoadSettings(ctx context.Context) (hunt.Settings, int64, error)
}

type Catalogs interface {
	Get(id string) (catalog.Catalog, error)
}

// Attempt outcomes reported to Metrics.
const (
	OutcomeCorrect   = "correct"
	OutcomeDuplicate = "duplicate"
	OutcomeTooFar    = "too_far"
	OutcomeRejected  = "rejected"
	OutcomeError     = "error"
)

type Metrics interface {
	Attempt(outcome string)
	Skip()
	Conflict(doc string)
}

type noopMetrics struct{}

func (noopMetrics) Attempt(string)  {}
func (noopMetrics) Skip()           {}
func (noopMetrics) Conflict(string) {}

type Config struct {
	MaxSkips    int
	SkipPenalty int
	Cooldown    time.Duration
	MaxRetries  int
}

type Engine struct {
	store    Store
	catalogs Catalogs
	cfg      Config
	logger   *slog.Logger
	metrics  Metrics
	events   events.Publisher
}

type Option func(*Engine)

func WithMetrics(m Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

func WithPublisher(p events.Publisher) Option {
	return func(e *Engine) { e.events = p }
}

func New(st Store, catalogs Catalogs, cfg Config, logger *slog.Logger, opts ...Option) *Engine {
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = DefaultMaxRetries
	}
	e := &Engine{
		store:    st,
		catalogs: catalogs,
		cfg:      cfg,
		logger:   logger,
		metrics:  noopMetrics{},
		events:   events.Discard{},
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

type AttemptResult struct {
	ChallengeID   int
	Distance      float64
	PointsAwarded int
	Score         int
	NextChallenge *int
	GameComplete  bool
}

type SkipResult struct {
	SkippedID      int
	Score          int
	SkipsRemaining int
	NextChallenge  *int
	GameComplete   bool
}

// Initialize creates the team's state pinned to the active dataset. It is
// idempotent: an existing state is returned unchanged.
func (e *Engine) Initialize(ctx context.Context, actorID string, now time.Time) (State, error) {
	settings, _, err := e.store.LoadSettings(ctx)
	if err != nil {
		return State{}, fmt.Errorf("load settings: %w", err)
	}
	cat, err := e.catalog(settings.DatasetID)
	if err != nil {
		return State{}, err
	}

	first := NextChallenge(nil, cat.Len())
	st := State{
		ActorID:          actorID,
		DatasetID:        cat.ID(),
		CurrentChallenge: first,
		Completed:        []int{},
		Skipped:          []int{},
		Complete:         first == nil,
		StartedAt:        now,
		LastActivityAt:   now,
	}
	created, err := e.store.CreateProgress(ctx, st)
	if err != nil {
		return State{}, fmt.Errorf("create progress: %w", err)
	}
	if !created {
		return e.State(ctx, actorID)
	}

	e.logger.Info("progress initialized", "actor_id", actorID, "dataset", cat.ID())
	e.events.Publish(ctx, events.New(events.TeamTopic(actorID), events.KindProgress, actorID, now))
	return st, nil
}

// State returns the team's current state.
func (e *Engine) State(ctx context.Context, actorID string) (State, error) {
	st, _, err := e.load(ctx, actorID)
	return st, err
}

// Attempt checks the coordinate against the current challenge. A miss
// starts a cooldown and returns a *TooFarError after the cooldown is
// stored.
func (e *Engine) Attempt(ctx context.Context, actorID string, at geo.Coordinate, now time.Time) (AttemptResult, error) {
	if !at.Valid() {
		return AttemptResult{}, ErrInvalidCoordinate
	}
	res, err := e.attempt(ctx, actorID, at, now)
	e.metrics.Attempt(outcomeOf(res, err))
	return res, err
}

func (e *Engine) attempt(ctx context.Context, actorID string, at geo.Coordinate, now time.Time) (AttemptResult, error) {
	if err := e.gate(ctx, now); err != nil {
		return AttemptResult{}, err
	}

	var (
		res    AttemptResult
		tooFar *TooFarError
	)
	next, err := e.update(ctx, actorID, func(s *State) error {
		res, tooFar = AttemptResult{}, nil

		if s.Complete {
			return ErrGameAlreadyComplete
		}
		if rem := s.CooldownRemaining(now); rem > 0 {
			return &CooldownError{Remaining: rem}
		}
		if s.CurrentChallenge == nil {
			return ErrNoCurrentChallenge
		}
		cat, err := e.catalog(s.DatasetID)
		if err != nil {
			return err
		}
		ch, err := cat.Challenge(*s.CurrentChallenge, s.ActorID)
		if err != nil {
			e.logger.Error("challenge lookup failed",
				"actor_id", s.ActorID, "dataset", s.DatasetID, "challenge_id", *s.CurrentChallenge, "error", err)
			return fmt.Errorf("%w: %v", ErrChallengeDataMissing, err)
		}

		dist, ok := ch.Contains(at)
		res.ChallengeID = ch.ID
		res.Distance = geo.Round2(dist)
		s.LastActivityAt = now

		if !ok {
			until := now.Add(e.cfg.Cooldown)
			d := res.Distance
			s.CooldownUntil = &until
			s.LastDistance = &d
			tooFar = &TooFarError{Distance: res.Distance, Radius: ch.RadiusMeters}
			return nil
		}

		if !s.HasCompleted(ch.ID) {
			completedAt := now
			s.Completed = append(s.Completed, ch.ID)
			s.Score += ch.Points
			s.LastCompletionAt = &completedAt
			res.PointsAwarded = ch.Points
		}
		s.advance(cat.Len())
		res.Score = s.Score
		res.NextChallenge = s.CurrentChallenge
		res.GameComplete = s.Complete
		return nil
	})
	if err != nil {
		return res, err
	}

	e.events.Publish(ctx, events.New(events.TeamTopic(actorID), events.KindProgress, actorID, now))
	if tooFar != nil {
		return res, tooFar
	}
	e.events.Publish(ctx, events.New(events.TopicLeaderboard, events.KindProgress, actorID, now))
	if next.Complete {
		e.logger.Info("team finished", "actor_id", actorID, "score", next.Score)
	}
	return res, nil
}

// Skip abandons the current challenge for a score penalty. Skipping is not
// gated on the game clock.
func (e *Engine) Skip(ctx context.Context, actorID string, now time.Time) (SkipResult, error) {
	var res SkipResult
	next, err := e.update(ctx, actorID, func(s *State) error {
		res = SkipResult{}

		if s.Complete {
			return ErrGameAlreadyComplete
		}
		if s.CurrentChallenge == nil {
			return ErrNoCurrentChallenge
		}
		if s.SkipsUsed >= e.cfg.MaxSkips {
			return ErrSkipNotAvailable
		}
		cat, err := e.catalog(s.DatasetID)
		if err != nil {
			return err
		}

		id := *s.CurrentChallenge
		if !s.HasCompleted(id) {
			s.Completed = append(s.Completed, id)
			s.Skipped = append(s.Skipped, id)
		}
		s.Score = max(0, s.Score-e.cfg.SkipPenalty)
		s.SkipsUsed++
		s.LastActivityAt = now
		s.advance(cat.Len())

		res.SkippedID = id
		res.Score = s.Score
		res.SkipsRemaining = e.cfg.MaxSkips - s.SkipsUsed
		res.NextChallenge = s.CurrentChallenge
		res.GameComplete = s.Complete
		return nil
	})
	if err != nil {
		return res, err
	}

	e.metrics.Skip()
	e.logger.Info("challenge skipped", "actor_id", actorID, "challenge_id", res.SkippedID, "score", next.Score)
	e.events.Publish(ctx, events.New(events.TeamTopic(actorID), events.KindProgress, actorID, now))
	e.events.Publish(ctx, events.New(events.TopicLeaderboard, events.KindProgress, actorID, now))
	return res, nil
}

// ResetCooldown clears a pending cooldown.
func (e *Engine) ResetCooldown(ctx context.Context, actorID string, now time.Time) (State, error) {
	next, err := e.update(ctx, actorID, func(s *State) error {
		s.CooldownUntil = nil
		s.LastDistance = nil
		return nil
	})
	if err != nil {
		return State{}, err
	}
	e.events.Publish(ctx, events.New(events.TeamTopic(actorID), events.KindProgress, actorID, now))
	return next, nil
}

// SkipsRemaining returns how many skips the team may still use.
func (e *Engine) SkipsRemaining(s State) int {
	return max(0, e.cfg.MaxSkips-s.SkipsUsed)
}

// Challenge resolves a challenge for the team from its pinned dataset.
func (e *Engine) Challenge(s State, id int) (catalog.Challenge, error) {
	cat, err := e.catalog(s.DatasetID)
	if err != nil {
		return catalog.Challenge{}, err
	}
	ch, err := cat.Challenge(id, s.ActorID)
	if err != nil {
		return catalog.Challenge{}, fmt.Errorf("%w: %v", ErrChallengeDataMissing, err)
	}
	return ch, nil
}

type Breakdown struct {
	Total          int
	Completed      int
	Pictures       int
	Riddles        int
	PercentDone    float64
	SkippedCount   int
	ChallengesLeft int
}

// Breakdown summarizes completed challenges by kind.
func (e *Engine) Breakdown(s State) (Breakdown, error) {
	cat, err := e.catalog(s.DatasetID)
	if err != nil {
		return Breakdown{}, err
	}
	b := Breakdown{
		Total:        cat.Len(),
		Completed:    len(s.Completed),
		SkippedCount: len(s.Skipped),
	}
	for _, id := range s.Completed {
		ch, err := cat.Challenge(id, s.ActorID)
		if err != nil {
			return Breakdown{}, fmt.Errorf("%w: %v", ErrChallengeDataMissing, err)
		}
		switch ch.Kind {
		case catalog.KindPicture:
			b.Pictures++
		case catalog.KindRiddle:
			b.Riddles++
		}
	}
	b.ChallengesLeft = max(0, b.Total-b.Completed)
	if b.Total > 0 {
		b.PercentDone = float64(b.Completed) * 100 / float64(b.Total)
	}
	return b, nil
}

// gate applies the clock preconditions in order: paused or inactive,
// not started, expired.
func (e *Engine) gate(ctx context.Context, now time.Time) error {
	settings, _, err := e.store.LoadSettings(ctx)
	if err != nil {
		return fmt.Errorf("load settings: %w", err)
	}
	c := settings.Clock
	if !c.Active || c.Paused {
		return ErrGamePaused
	}
	view := clock.Evaluate(c, now)
	if !view.Started {
		return ErrGameNotStarted
	}
	if view.Expired {
		return ErrGameAlreadyComplete
	}
	return nil
}

func (e *Engine) update(ctx context.Context, actorID string, fn func(*State) error) (State, error) {
	for attempt := 1; attempt <= e.cfg.MaxRetries; attempt++ {
		cur, version, err := e.load(ctx, actorID)
		if err != nil {
			return State{}, err
		}
		next := cur.Clone()
		if err := fn(&next); err != nil {
			return cur, err
		}
		ok, err := e.store.SwapProgress(ctx, actorID, version, next)
		if err != nil {
			return State{}, fmt.Errorf("swap progress: %w", err)
		}
		if ok {
			return next, nil
		}
		e.metrics.Conflict("progress")
		e.logger.Debug("progress write conflict", "actor_id", actorID, "attempt", attempt)
	}
	e.logger.Warn("progress write gave up", "actor_id", actorID, "attempts", e.cfg.MaxRetries)
	return State{}, ErrConcurrentModification
}

func (e *Engine) load(ctx context.Context, actorID string) (State, int64, error) {
	st, version, err := e.store.LoadProgress(ctx, actorID)
	if errors.Is(err, hunt.ErrNotFound) {
		return State{}, 0, ErrNotInitialized
	}
	if err != nil {
		return State{}, 0, fmt.Errorf("load progress: %w", err)
	}
	return st, version, nil
}

func (e *Engine) catalog(id string) (catalog.Catalog, error) {
	cat, err := e.catalogs.Get(id)
	if err != nil {
		e.logger.Error("dataset lookup failed", "dataset", id, "error", err)
		return nil, fmt.Errorf("%w: %v", ErrChallengeDataMissing, err)
	}
	return cat, nil
}

func outcomeOf(res AttemptResult, err error) string {
	switch {
	case err == nil && res.PointsAwarded == 0:
		return OutcomeDuplicate
	case err == nil:
		return OutcomeCorrect
	case errors.Is(err, ErrLocationTooFar):
		return OutcomeTooFar
	case IsPrecondition(err):
		return OutcomeRejected
	}
	return OutcomeError
}

// IsPrecondition reports whether err is an expected, user-facing rejection.
func IsPrecondition(err error) bool {
	for _, target := range []error{
		ErrGamePaused, ErrGameNotStarted, ErrGameAlreadyComplete, ErrCooldownActive,
		ErrSkipNotAvailable, ErrNoCurrentChallenge, ErrNotInitialized, ErrInvalidCoordinate,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
