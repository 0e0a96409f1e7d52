package server

import (
	"math"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/playperu/geohunt/internal/catalog"
	"github.com/playperu/geohunt/internal/clock"
	"github.com/playperu/geohunt/internal/geo"
	"github.com/playperu/geohunt/internal/hunt"
	"github.com/playperu/geohunt/internal/progression"
)

// ChallengeInfo is the public part of a challenge. The target coordinate
// is never sent to teams.
type ChallengeInfo struct {
	ID           int          `json:"id"`
	Kind         catalog.Kind `json:"kind"`
	Title        string       `json:"title"`
	Description  string       `json:"description"`
	Image        string       `json:"image,omitempty"`
	Place        string       `json:"place,omitempty"`
	Points       int          `json:"points"`
	RadiusMeters float64      `json:"radiusMeters"`
}

type ClockInfo struct {
	StartAt           time.Time `json:"startAt"`
	DurationSeconds   int64     `json:"durationSeconds"`
	Active            bool      `json:"active"`
	Paused            bool      `json:"paused"`
	Started           bool      `json:"started"`
	SecondsUntilStart int64     `json:"secondsUntilStart"`
	SecondsRemaining  int64     `json:"secondsRemaining"`
	Expired           bool      `json:"expired"`
}

type ProgressInfo struct {
	Score           int      `json:"score"`
	Completed       []int    `json:"completed"`
	Skipped         []int    `json:"skipped"`
	SkipsUsed       int      `json:"skipsUsed"`
	SkipsRemaining  int      `json:"skipsRemaining"`
	CooldownSeconds int      `json:"cooldownSeconds"`
	LastDistance    *float64 `json:"lastDistance,omitempty"`
	Complete        bool     `json:"complete"`
	Total           int      `json:"total"`
	PercentDone     float64  `json:"percentDone"`
	Pictures        int      `json:"pictures"`
	Riddles         int      `json:"riddles"`
	ChallengesLeft  int      `json:"challengesLeft"`
}

// GameStateResponse is the response for GET /api/game/state.
type GameStateResponse struct {
	Team             TeamInfo       `json:"team"`
	DatasetID        string         `json:"datasetId"`
	CurrentChallenge *ChallengeInfo `json:"currentChallenge"`
	Progress         ProgressInfo   `json:"progress"`
	Clock            ClockInfo      `json:"clock"`
	GameOver         bool           `json:"gameOver"`
}

// VerifyRequest is the request body for POST /api/game/verify. Both fields
// are required.
type VerifyRequest struct {
	Lat *float64 `json:"lat" required:"true"`
	Lng *float64 `json:"lng" required:"true"`
}

type VerifyResponse struct {
	ChallengeID   int     `json:"challengeId"`
	Distance      float64 `json:"distance"`
	PointsAwarded int     `json:"pointsAwarded"`
	Score         int     `json:"score"`
	NextChallenge *int    `json:"nextChallenge"`
	GameComplete  bool    `json:"gameComplete"`
}

type SkipResponse struct {
	SkippedID      int  `json:"skippedId"`
	Score          int  `json:"score"`
	SkipsRemaining int  `json:"skipsRemaining"`
	NextChallenge  *int `json:"nextChallenge"`
	GameComplete   bool `json:"gameComplete"`
}

type NotificationInfo struct {
	ID        string                `json:"id"`
	Title     string                `json:"title"`
	Message   string                `json:"message"`
	Type      hunt.NotificationType `json:"type"`
	CreatedAt time.Time             `json:"createdAt"`
}

func challengeInfo(ch catalog.Challenge) *ChallengeInfo {
	return &ChallengeInfo{
		ID:           ch.ID,
		Kind:         ch.Kind,
		Title:        ch.Title,
		Description:  ch.Description,
		Image:        ch.Image,
		Place:        ch.Place,
		Points:       ch.Points,
		RadiusMeters: ch.RadiusMeters,
	}
}

func clockInfo(s clock.Settings, now time.Time) ClockInfo {
	v := clock.Evaluate(s, now)
	return ClockInfo{
		StartAt:           s.StartAt,
		DurationSeconds:   int64(s.Duration / time.Second),
		Active:            s.Active,
		Paused:            s.Paused,
		Started:           v.Started,
		SecondsUntilStart: int64(math.Ceil(v.UntilStart.Seconds())),
		SecondsRemaining:  int64(math.Ceil(v.Remaining.Seconds())),
		Expired:           v.Expired,
	}
}

func handleGameInit(d Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		team := teamFrom(r)
		if _, err := d.Engine.Initialize(r.Context(), team.ID, d.Clock.Now()); err != nil {
			d.Logger.Error("initializing progress", "team_id", team.ID, "error", err)
			writeGameError(w, err)
			return
		}
		writeGameState(w, r, d, team)
	}
}

func handleGameState(d Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeGameState(w, r, d, teamFrom(r))
	}
}

func writeGameState(w http.ResponseWriter, r *http.Request, d Deps, team hunt.Team) {
	now := d.Clock.Now()

	st, err := d.Engine.State(r.Context(), team.ID)
	if err != nil {
		writeGameError(w, err)
		return
	}
	settings, err := d.Admin.Settings(r.Context())
	if err != nil {
		writeGameError(w, err)
		return
	}
	bd, err := d.Engine.Breakdown(st)
	if err != nil {
		d.Logger.Error("progress breakdown", "team_id", team.ID, "error", err)
		writeGameError(w, err)
		return
	}

	resp := GameStateResponse{
		Team:      teamInfo(team),
		DatasetID: st.DatasetID,
		Progress: ProgressInfo{
			Score:           st.Score,
			Completed:       nonNil(st.Completed),
			Skipped:         nonNil(st.Skipped),
			SkipsUsed:       st.SkipsUsed,
			SkipsRemaining:  d.Engine.SkipsRemaining(st),
			CooldownSeconds: int(math.Ceil(st.CooldownRemaining(now).Seconds())),
			LastDistance:    st.LastDistance,
			Complete:        st.Complete,
			Total:           bd.Total,
			PercentDone:     min(100, geo.Round2(bd.PercentDone)),
			Pictures:        bd.Pictures,
			Riddles:         bd.Riddles,
			ChallengesLeft:  bd.ChallengesLeft,
		},
		Clock: clockInfo(settings.Clock, now),
	}
	resp.GameOver = st.Complete || resp.Clock.Expired

	if st.CurrentChallenge != nil {
		ch, err := d.Engine.Challenge(st, *st.CurrentChallenge)
		if err != nil {
			d.Logger.Error("current challenge lookup", "team_id", team.ID, "error", err)
			writeGameError(w, err)
			return
		}
		resp.CurrentChallenge = challengeInfo(ch)
	}

	writeJSON(w, http.StatusOK, resp)
}

func handleVerify(d Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req VerifyRequest
		if err := readJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		if req.Lat == nil || req.Lng == nil {
			writeGameError(w, progression.ErrInvalidCoordinate)
			return
		}

		team := teamFrom(r)
		res, err := d.Engine.Attempt(r.Context(), team.ID, geo.Coordinate{Lat: *req.Lat, Lng: *req.Lng}, d.Clock.Now())
		if err != nil {
			writeGameError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, VerifyResponse{
			ChallengeID:   res.ChallengeID,
			Distance:      res.Distance,
			PointsAwarded: res.PointsAwarded,
			Score:         res.Score,
			NextChallenge: res.NextChallenge,
			GameComplete:  res.GameComplete,
		})
	}
}

func handleSkip(d Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		res, err := d.Engine.Skip(r.Context(), teamFrom(r).ID, d.Clock.Now())
		if err != nil {
			writeGameError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, SkipResponse{
			SkippedID:      res.SkippedID,
			Score:          res.Score,
			SkipsRemaining: res.SkipsRemaining,
			NextChallenge:  res.NextChallenge,
			GameComplete:   res.GameComplete,
		})
	}
}

func handleClock(d Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		settings, err := d.Admin.Settings(r.Context())
		if err != nil {
			writeGameError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, clockInfo(settings.Clock, d.Clock.Now()))
	}
}

func handleTeamNotifications(d Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		list, err := d.Admin.ActiveNotifications(r.Context(), teamFrom(r).ID)
		if err != nil {
			writeGameError(w, err)
			return
		}
		out := make([]NotificationInfo, 0, len(list))
		for _, n := range list {
			out = append(out, NotificationInfo{
				ID:        n.ID,
				Title:     n.Title,
				Message:   n.Message,
				Type:      n.Type,
				CreatedAt: n.CreatedAt,
			})
		}
		writeJSON(w, http.StatusOK, out)
	}
}

func handleDismissNotification(d Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := d.Admin.DismissNotification(r.Context(), chi.URLParam(r, "id"), teamFrom(r).ID); err != nil {
			writeGameError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}

func nonNil(ids []int) []int {
	if ids == nil {
		return []int{}
	}
	return ids
}
