package admin_test

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/playperu/geohunt/internal/admin"
	"github.com/playperu/geohunt/internal/catalog"
	"github.com/playperu/geohunt/internal/clock"
	"github.com/playperu/geohunt/internal/database"
	"github.com/playperu/geohunt/internal/events"
	"github.com/playperu/geohunt/internal/hunt"
	"github.com/playperu/geohunt/internal/migrations"
	"github.com/playperu/geohunt/internal/progression"
	"github.com/playperu/geohunt/internal/store"
)

var t0 = time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)

type fixture struct {
	svc    *admin.Service
	store  *store.Store
	broker *events.Broker
}

func setup(t *testing.T, cfg admin.Config) fixture {
	t.Helper()
	ctx := context.Background()

	db, err := database.Open(ctx, database.Memory)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, migrations.Run(db))

	st := store.New(db)
	_, err = st.EnsureSettings(ctx, hunt.Settings{
		DatasetID: "A",
		Clock:     clock.Settings{StartAt: t0, Duration: 2 * time.Hour, Active: true},
	})
	require.NoError(t, err)

	reg, err := catalog.LoadBuiltin(false)
	require.NoError(t, err)

	broker := events.NewBroker()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc := admin.New(st, reg, cfg, logger, admin.WithPublisher(broker))
	return fixture{svc: svc, store: st, broker: broker}
}

func TestTogglePause_AccumulatesPausedTime(t *testing.T) {
	f := setup(t, admin.Config{})
	ctx := context.Background()

	sub := f.broker.Subscribe(events.TopicSettings)
	defer f.broker.Unsubscribe(sub, events.TopicSettings)

	s, err := f.svc.TogglePause(ctx, t0.Add(10*time.Minute))
	require.NoError(t, err)
	require.True(t, s.Clock.Paused)
	require.Len(t, sub, 1)

	s, err = f.svc.TogglePause(ctx, t0.Add(25*time.Minute))
	require.NoError(t, err)
	require.False(t, s.Clock.Paused)
	require.Equal(t, 15*time.Minute, s.Clock.PausedTotal)

	view := clock.Evaluate(s.Clock, t0.Add(2*time.Hour))
	require.Equal(t, 15*time.Minute, view.Remaining)
}

func TestSetPaused_Idempotent(t *testing.T) {
	f := setup(t, admin.Config{})
	ctx := context.Background()

	_, err := f.svc.SetPaused(ctx, true, t0.Add(time.Minute))
	require.NoError(t, err)
	s, err := f.svc.SetPaused(ctx, true, t0.Add(5*time.Minute))
	require.NoError(t, err)
	require.True(t, t0.Add(time.Minute).Equal(*s.Clock.PausedAt))

	_, err = f.svc.SetPaused(ctx, false, t0.Add(11*time.Minute))
	require.NoError(t, err)
	s, err = f.svc.SetPaused(ctx, false, t0.Add(20*time.Minute))
	require.NoError(t, err)
	require.Equal(t, 10*time.Minute, s.Clock.PausedTotal)
}

func TestSetScheduleAndActive(t *testing.T) {
	f := setup(t, admin.Config{})
	ctx := context.Background()

	_, err := f.svc.SetSchedule(ctx, t0, 0, t0)
	require.ErrorIs(t, err, clock.ErrInvalidDuration)

	start := t0.Add(time.Hour)
	s, err := f.svc.SetSchedule(ctx, start, 90*time.Minute, t0)
	require.NoError(t, err)
	require.True(t, start.Equal(s.Clock.StartAt))
	require.Equal(t, 90*time.Minute, s.Clock.Duration)

	s, err = f.svc.SetActive(ctx, false, t0)
	require.NoError(t, err)
	require.False(t, s.Clock.Active)

	stored, err := f.svc.Settings(ctx)
	require.NoError(t, err)
	require.False(t, stored.Clock.Active)
	require.Equal(t, 90*time.Minute, stored.Clock.Duration)
}

func TestSwitchDataset(t *testing.T) {
	f := setup(t, admin.Config{})
	ctx := context.Background()

	_, err := f.svc.SwitchDataset(ctx, "Z", t0)
	require.ErrorIs(t, err, catalog.ErrUnknownDataset)

	s, err := f.svc.SwitchDataset(ctx, "B", t0)
	require.NoError(t, err)
	require.Equal(t, "B", s.DatasetID)
}

func TestResetAllProgress_KeepsPreservedAndExcluded(t *testing.T) {
	f := setup(t, admin.Config{PreservedTeams: []string{"Admin Team"}})
	ctx := context.Background()

	ids := make(map[string]string)
	for _, name := range []string{"admin team", "Owls", "Foxes"} {
		team, err := f.store.CreateTeam(ctx, hunt.Team{Name: name})
		require.NoError(t, err)
		_, err = f.store.CreateProgress(ctx, progression.State{ActorID: team.ID})
		require.NoError(t, err)
		ids[name] = team.ID
	}

	res, err := f.svc.ResetAllProgress(ctx, []string{ids["Owls"]}, t0)
	require.NoError(t, err)
	require.Equal(t, 1, res.Teams)
	require.Equal(t, 1, res.Progress)

	teams, err := f.svc.ListTeams(ctx)
	require.NoError(t, err)
	require.Len(t, teams, 2)
	for _, team := range teams {
		require.NotEqual(t, ids["Foxes"], team.ID)
	}
}

func TestDeleteTeam(t *testing.T) {
	f := setup(t, admin.Config{})
	ctx := context.Background()

	team, err := f.store.CreateTeam(ctx, hunt.Team{Name: "Owls"})
	require.NoError(t, err)
	require.NoError(t, f.svc.DeleteTeam(ctx, team.ID, t0))
	require.ErrorIs(t, f.svc.DeleteTeam(ctx, team.ID, t0), hunt.ErrNotFound)
}

func TestStatistics(t *testing.T) {
	f := setup(t, admin.Config{PreservedTeams: []string{"Demo"}})
	ctx := context.Background()

	demo, err := f.store.CreateTeam(ctx, hunt.Team{Name: "Demo"})
	require.NoError(t, err)
	owls, err := f.store.CreateTeam(ctx, hunt.Team{Name: "Owls"})
	require.NoError(t, err)

	_, err = f.store.CreateProgress(ctx, progression.State{ActorID: demo.ID, LastActivityAt: t0})
	require.NoError(t, err)
	_, err = f.store.CreateProgress(ctx, progression.State{
		ActorID: owls.ID, Score: 30, Completed: []int{0, 1, 2}, LastActivityAt: t0.Add(-time.Hour),
	})
	require.NoError(t, err)

	stats, err := f.svc.Statistics(ctx, t0)
	require.NoError(t, err)
	require.Equal(t, 2, stats.TotalTeams)
	require.Equal(t, 1, stats.RegisteredTeams)
	require.Equal(t, 1, stats.ActiveTeams)
	require.Equal(t, 30, stats.TopScore)
	require.Equal(t, 15, stats.AverageScore)
	require.Equal(t, 3, stats.TotalChallengesCompleted)
}

func TestNotifications(t *testing.T) {
	f := setup(t, admin.Config{})
	ctx := context.Background()

	_, err := f.svc.SendNotification(ctx, " ", "body", hunt.NotificationInfo, t0)
	require.ErrorIs(t, err, admin.ErrInvalidNotification)
	_, err = f.svc.SendNotification(ctx, "title", "body", "shout", t0)
	require.ErrorIs(t, err, admin.ErrInvalidNotification)

	first, err := f.svc.SendNotification(ctx, "Welcome", "Good luck", "", t0)
	require.NoError(t, err)
	require.Equal(t, hunt.NotificationInfo, first.Type)
	second, err := f.svc.SendNotification(ctx, "Hint", "Check the library", hunt.NotificationWarning, t0.Add(time.Minute))
	require.NoError(t, err)
	third, err := f.svc.SendNotification(ctx, "Old", "Ignore", hunt.NotificationInfo, t0.Add(2*time.Minute))
	require.NoError(t, err)

	_, err = f.svc.DeactivateNotification(ctx, third.ID, t0)
	require.NoError(t, err)

	active, err := f.svc.ActiveNotifications(ctx, "team-1")
	require.NoError(t, err)
	require.Len(t, active, 2)
	require.Equal(t, second.ID, active[0].ID)

	require.NoError(t, f.svc.DismissNotification(ctx, second.ID, "team-1"))
	require.NoError(t, f.svc.DismissNotification(ctx, second.ID, "team-1"))

	active, err = f.svc.ActiveNotifications(ctx, "team-1")
	require.NoError(t, err)
	require.Len(t, active, 1)
	require.Equal(t, first.ID, active[0].ID)

	others, err := f.svc.ActiveNotifications(ctx, "team-2")
	require.NoError(t, err)
	require.Len(t, others, 2)

	all, err := f.svc.Notifications(ctx)
	require.NoError(t, err)
	require.Len(t, all, 3)
	for _, n := range all {
		if n.ID == second.ID {
			require.Equal(t, []string{"team-1"}, n.ReadBy)
		}
	}

	require.NoError(t, f.svc.DeleteNotification(ctx, third.ID, t0))
	require.ErrorIs(t, f.svc.DeleteNotification(ctx, third.ID, t0), hunt.ErrNotFound)
}
