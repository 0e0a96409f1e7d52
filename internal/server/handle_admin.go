package server

import (
	"errors"
	"io"
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/playperu/geohunt/internal/clock"
	"github.com/playperu/geohunt/internal/hunt"
)

// SettingsResponse is the admin view of the global game settings.
type SettingsResponse struct {
	DatasetID          string     `json:"datasetId"`
	StartAt            time.Time  `json:"startAt"`
	DurationSeconds    int64      `json:"durationSeconds"`
	Active             bool       `json:"active"`
	Paused             bool       `json:"paused"`
	PausedAt           *time.Time `json:"pausedAt,omitempty"`
	PausedTotalSeconds int64      `json:"pausedTotalSeconds"`
	Clock              ClockInfo  `json:"clock"`
}

// maxDurationSeconds is the longest duration a time.Duration can hold.
const maxDurationSeconds = math.MaxInt64 / int64(time.Second)

type ScheduleRequest struct {
	StartAt         time.Time `json:"startAt"`
	DurationSeconds int64     `json:"durationSeconds"`
}

type ActiveRequest struct {
	Active bool `json:"active"`
}

type PausedRequest struct {
	Paused bool `json:"paused"`
}

type DatasetRequest struct {
	DatasetID string `json:"datasetId"`
}

type ResetRequest struct {
	// Exclude lists team ids kept in addition to the preserved teams.
	Exclude []string `json:"exclude"`
}

type AdminTeamItem struct {
	TeamInfo
	CreatedAt time.Time `json:"createdAt"`
}

type SendNotificationRequest struct {
	Title   string                `json:"title"`
	Message string                `json:"message"`
	Type    hunt.NotificationType `json:"type"`
}

type AdminNotificationItem struct {
	NotificationInfo
	Active bool     `json:"active"`
	ReadBy []string `json:"readBy"`
}

func settingsResponse(s hunt.Settings, now time.Time) SettingsResponse {
	return SettingsResponse{
		DatasetID:          s.DatasetID,
		StartAt:            s.Clock.StartAt,
		DurationSeconds:    int64(s.Clock.Duration / time.Second),
		Active:             s.Clock.Active,
		Paused:             s.Clock.Paused,
		PausedAt:           s.Clock.PausedAt,
		PausedTotalSeconds: int64(s.Clock.PausedTotal / time.Second),
		Clock:              clockInfo(s.Clock, now),
	}
}

func adminNotification(n hunt.Notification) AdminNotificationItem {
	readBy := n.ReadBy
	if readBy == nil {
		readBy = []string{}
	}
	return AdminNotificationItem{
		NotificationInfo: NotificationInfo{
			ID:        n.ID,
			Title:     n.Title,
			Message:   n.Message,
			Type:      n.Type,
			CreatedAt: n.CreatedAt,
		},
		Active: n.Active,
		ReadBy: readBy,
	}
}

// settingsHandler decodes a request body of type T, applies it and writes
// the resulting settings.
func settingsHandler[T any](d Deps, apply func(r *http.Request, req T, now time.Time) (hunt.Settings, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req T
		if err := readJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		now := d.Clock.Now()
		s, err := apply(r, req, now)
		if err != nil {
			writeGameError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, settingsResponse(s, now))
	}
}

func handleAdminSettings(d Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s, err := d.Admin.Settings(r.Context())
		if err != nil {
			writeGameError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, settingsResponse(s, d.Clock.Now()))
	}
}

func handleAdminSchedule(d Deps) http.HandlerFunc {
	return settingsHandler(d, func(r *http.Request, req ScheduleRequest, now time.Time) (hunt.Settings, error) {
		if req.DurationSeconds > maxDurationSeconds {
			return hunt.Settings{}, clock.ErrInvalidDuration
		}
		return d.Admin.SetSchedule(r.Context(), req.StartAt, time.Duration(req.DurationSeconds)*time.Second, now)
	})
}

func handleAdminActive(d Deps) http.HandlerFunc {
	return settingsHandler(d, func(r *http.Request, req ActiveRequest, now time.Time) (hunt.Settings, error) {
		return d.Admin.SetActive(r.Context(), req.Active, now)
	})
}

func handleAdminPaused(d Deps) http.HandlerFunc {
	return settingsHandler(d, func(r *http.Request, req PausedRequest, now time.Time) (hunt.Settings, error) {
		return d.Admin.SetPaused(r.Context(), req.Paused, now)
	})
}

func handleAdminDataset(d Deps) http.HandlerFunc {
	return settingsHandler(d, func(r *http.Request, req DatasetRequest, now time.Time) (hunt.Settings, error) {
		return d.Admin.SwitchDataset(r.Context(), strings.TrimSpace(req.DatasetID), now)
	})
}

func handleAdminTogglePause(d Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		now := d.Clock.Now()
		s, err := d.Admin.TogglePause(r.Context(), now)
		if err != nil {
			writeGameError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, settingsResponse(s, now))
	}
}

func handleAdminStats(d Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		stats, err := d.Admin.Statistics(r.Context(), d.Clock.Now())
		if err != nil {
			d.Logger.Error("team statistics", "error", err)
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}
		writeJSON(w, http.StatusOK, stats)
	}
}

func handleAdminReset(d Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		// The body is optional.
		var req ResetRequest
		if err := readJSON(r, &req); err != nil && !errors.Is(err, io.EOF) {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		res, err := d.Admin.ResetAllProgress(r.Context(), req.Exclude, d.Clock.Now())
		if err != nil {
			d.Logger.Error("reset progress", "admin", adminFrom(r).Email, "error", err)
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}
		d.Logger.Info("progress reset by admin", "admin", adminFrom(r).Email)
		writeJSON(w, http.StatusOK, res)
	}
}

func handleAdminListTeams(d Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		teams, err := d.Admin.ListTeams(r.Context())
		if err != nil {
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}
		out := make([]AdminTeamItem, 0, len(teams))
		for _, t := range teams {
			out = append(out, AdminTeamItem{TeamInfo: teamInfo(t), CreatedAt: t.CreatedAt})
		}
		writeJSON(w, http.StatusOK, out)
	}
}

func handleAdminDeleteTeam(d Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := d.Admin.DeleteTeam(r.Context(), chi.URLParam(r, "teamID"), d.Clock.Now()); err != nil {
			writeGameError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}

func handleAdminResetCooldown(d Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		teamID := chi.URLParam(r, "teamID")
		if _, err := d.Engine.ResetCooldown(r.Context(), teamID, d.Clock.Now()); err != nil {
			writeGameError(w, err)
			return
		}
		d.Metrics.AdminAction("reset_cooldown")
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}

func handleAdminListNotifications(d Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		list, err := d.Admin.Notifications(r.Context())
		if err != nil {
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}
		out := make([]AdminNotificationItem, 0, len(list))
		for _, n := range list {
			out = append(out, adminNotification(n))
		}
		writeJSON(w, http.StatusOK, out)
	}
}

func handleAdminSendNotification(d Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req SendNotificationRequest
		if err := readJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		n, err := d.Admin.SendNotification(r.Context(), req.Title, req.Message, req.Type, d.Clock.Now())
		if err != nil {
			writeGameError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, adminNotification(n))
	}
}

func handleAdminDeactivateNotification(d Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		n, err := d.Admin.DeactivateNotification(r.Context(), chi.URLParam(r, "id"), d.Clock.Now())
		if err != nil {
			writeGameError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, adminNotification(n))
	}
}

func handleAdminDeleteNotification(d Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := d.Admin.DeleteNotification(r.Context(), chi.URLParam(r, "id"), d.Clock.Now()); err != nil {
			writeGameError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}
