// Package admin implements the operator controls: the game clock, the
// active dataset, resets, team management and broadcast notifications.
package admin

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/playperu/geohunt/internal/catalog"
	"github.com/playperu/geohunt/internal/clock"
	"github.com/playperu/geohunt/internal/events"
	"github.com/playperu/geohunt/internal/hunt"
	"github.com/playperu/geohunt/internal/leaderboard"
	"github.com/playperu/geohunt/internal/progression"
	"github.com/playperu/geohunt/internal/store"
)

var (
	ErrConcurrentModification = progression.ErrConcurrentModification
	ErrInvalidNotification    = errors.New("invalid notification")
)

type Store interface {
	LoadSettings(ctx context.Context) (hunt.Settings, int64, error)
	SwapSettings(ctx context.Context, version int64, next hunt.Settings) (bool, error)

	ListTeams(ctx context.Context) ([]hunt.Team, error)
	DeleteTeam(ctx context.Context, id string) error
	AllProgress(ctx context.Context) ([]progression.State, error)
	ResetAll(ctx context.Context, keep []string) (store.ResetResult, error)

	CreateNotification(ctx context.Context, n hunt.Notification) (hunt.Notification, error)
	ListNotifications(ctx context.Context) ([]hunt.Notification, error)
	UpdateNotification(ctx context.Context, id string, fn func(*hunt.Notification) error) (hunt.Notification, error)
	DeleteNotification(ctx context.Context, id string) error
}

type Catalogs interface {
	Get(id string) (catalog.Catalog, error)
}

type Metrics interface {
	AdminAction(action string)
	Conflict(doc string)
}

type noopMetrics struct{}

func (noopMetrics) AdminAction(string) {}
func (noopMetrics) Conflict(string)    {}

type Config struct {
	// PreservedTeams are team names kept by ResetAllProgress.
	PreservedTeams []string
	MaxRetries     int
}

type Service struct {
	store    Store
	catalogs Catalogs
	cfg      Config
	logger   *slog.Logger
	metrics  Metrics
	events   events.Publisher
}

type Option func(*Service)

func WithMetrics(m Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

func WithPublisher(p events.Publisher) Option {
	return func(s *Service) { s.events = p }
}

func New(st Store, catalogs Catalogs, cfg Config, logger *slog.Logger, opts ...Option) *Service {
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = progression.DefaultMaxRetries
	}
	s := &Service{
		store:    st,
		catalogs: catalogs,
		cfg:      cfg,
		logger:   logger,
		metrics:  noopMetrics{},
		events:   events.Discard{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) Settings(ctx context.Context) (hunt.Settings, error) {
	st, _, err := s.store.LoadSettings(ctx)
	if err != nil {
		return hunt.Settings{}, fmt.Errorf("load settings: %w", err)
	}
	return st, nil
}

// SetSchedule moves the game window.
func (s *Service) SetSchedule(ctx context.Context, start time.Time, d time.Duration, now time.Time) (hunt.Settings, error) {
	return s.updateSettings(ctx, "schedule", now, func(st *hunt.Settings) error {
		c, err := st.Clock.Reschedule(start.UTC(), d)
		if err != nil {
			return err
		}
		st.Clock = c
		return nil
	})
}

func (s *Service) SetActive(ctx context.Context, active bool, now time.Time) (hunt.Settings, error) {
	return s.updateSettings(ctx, "set_active", now, func(st *hunt.Settings) error {
		st.Clock.Active = active
		return nil
	})
}

// TogglePause pauses a running clock or resumes a paused one.
func (s *Service) TogglePause(ctx context.Context, now time.Time) (hunt.Settings, error) {
	return s.updateSettings(ctx, "toggle_pause", now, func(st *hunt.Settings) error {
		st.Clock = st.Clock.Toggle(now)
		return nil
	})
}

// SetPaused moves the clock to the requested state. Repeating a request is
// a no-op, so a double submit cannot count the pause twice.
func (s *Service) SetPaused(ctx context.Context, paused bool, now time.Time) (hunt.Settings, error) {
	return s.updateSettings(ctx, "set_paused", now, func(st *hunt.Settings) error {
		var (
			c   clock.Settings
			err error
		)
		if paused {
			c, err = st.Clock.Pause(now)
		} else {
			c, err = st.Clock.Resume(now)
		}
		if errors.Is(err, clock.ErrAlreadyPaused) || errors.Is(err, clock.ErrNotPaused) {
			return nil
		}
		if err != nil {
			return err
		}
		st.Clock = c
		return nil
	})
}

// SwitchDataset selects the dataset used by teams initialized from now on.
// Teams already playing keep the dataset pinned in their progress.
func (s *Service) SwitchDataset(ctx context.Context, id string, now time.Time) (hunt.Settings, error) {
	if _, err := s.catalogs.Get(id); err != nil {
		return hunt.Settings{}, err
	}
	return s.updateSettings(ctx, "switch_dataset", now, func(st *hunt.Settings) error {
		st.DatasetID = id
		return nil
	})
}

// ResetAllProgress deletes every team and its progress except the teams in
// exclude and the configured preserved teams.
func (s *Service) ResetAllProgress(ctx context.Context, exclude []string, now time.Time) (store.ResetResult, error) {
	keep, err := s.preservedIDs(ctx)
	if err != nil {
		return store.ResetResult{}, err
	}
	for _, id := range exclude {
		if !slices.Contains(keep, id) {
			keep = append(keep, id)
		}
	}

	res, err := s.store.ResetAll(ctx, keep)
	if err != nil {
		return store.ResetResult{}, fmt.Errorf("reset: %w", err)
	}
	s.metrics.AdminAction("reset")
	s.logger.Info("progress reset", "teams_deleted", res.Teams, "progress_deleted", res.Progress, "kept", len(keep))
	s.events.Publish(ctx, events.New(events.TopicLeaderboard, events.KindReset, "", now))
	s.events.Publish(ctx, events.New(events.TopicSettings, events.KindReset, "", now))
	return res, nil
}

func (s *Service) ListTeams(ctx context.Context) ([]hunt.Team, error) {
	return s.store.ListTeams(ctx)
}

func (s *Service) DeleteTeam(ctx context.Context, id string, now time.Time) error {
	if err := s.store.DeleteTeam(ctx, id); err != nil {
		return err
	}
	s.metrics.AdminAction("delete_team")
	s.logger.Info("team deleted", "team_id", id)
	s.events.Publish(ctx, events.New(events.TopicLeaderboard, events.KindReset, id, now))
	return nil
}

// Statistics summarizes participation across all teams.
func (s *Service) Statistics(ctx context.Context, now time.Time) (leaderboard.Statistics, error) {
	teams, err := s.store.ListTeams(ctx)
	if err != nil {
		return leaderboard.Statistics{}, fmt.Errorf("list teams: %w", err)
	}
	states, err := s.store.AllProgress(ctx)
	if err != nil {
		return leaderboard.Statistics{}, fmt.Errorf("load progress: %w", err)
	}
	preserved := make(map[string]bool)
	for _, t := range teams {
		if s.isPreservedName(t.Name) {
			preserved[t.ID] = true
		}
	}
	return leaderboard.Summarize(states, teams, preserved, now), nil
}

func (s *Service) preservedIDs(ctx context.Context) ([]string, error) {
	if len(s.cfg.PreservedTeams) == 0 {
		return nil, nil
	}
	teams, err := s.store.ListTeams(ctx)
	if err != nil {
		return nil, fmt.Errorf("list teams: %w", err)
	}
	var ids []string
	for _, t := range teams {
		if s.isPreservedName(t.Name) {
			ids = append(ids, t.ID)
		}
	}
	return ids, nil
}

func (s *Service) isPreservedName(name string) bool {
	return slices.ContainsFunc(s.cfg.PreservedTeams, func(p string) bool {
		return strings.EqualFold(strings.TrimSpace(p), name)
	})
}

func (s *Service) updateSettings(ctx context.Context, action string, now time.Time, fn func(*hunt.Settings) error) (hunt.Settings, error) {
	for attempt := 1; attempt <= s.cfg.MaxRetries; attempt++ {
		cur, version, err := s.store.LoadSettings(ctx)
		if err != nil {
			return hunt.Settings{}, fmt.Errorf("load settings: %w", err)
		}
		next := cur
		if err := fn(&next); err != nil {
			return cur, err
		}
		ok, err := s.store.SwapSettings(ctx, version, next)
		if err != nil {
			return hunt.Settings{}, fmt.Errorf("swap settings: %w", err)
		}
		if ok {
			s.metrics.AdminAction(action)
			s.logger.Info("settings updated", "action", action,
				"active", next.Clock.Active, "paused", next.Clock.Paused, "dataset", next.DatasetID)
			s.events.Publish(ctx, events.New(events.TopicSettings, events.KindSettings, "", now))
			return next, nil
		}
		s.metrics.Conflict("settings")
		s.logger.Debug("settings write conflict", "action", action, "attempt", attempt)
	}
	return hunt.Settings{}, ErrConcurrentModification
}
