package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"nhooyr.io/websocket"

	"github.com/playperu/geohunt/internal/events"
	"github.com/playperu/geohunt/internal/leaderboard"
)

// LeaderboardResponse is the response for GET /api/leaderboard and the
// payload of every /ws/leaderboard message.
type LeaderboardResponse struct {
	Entries   []leaderboard.Entry `json:"entries"`
	UpdatedAt time.Time           `json:"updatedAt"`
}

func rankTeams(ctx context.Context, d Deps) (LeaderboardResponse, error) {
	teams, err := d.Store.ListTeams(ctx)
	if err != nil {
		return LeaderboardResponse{}, fmt.Errorf("list teams: %w", err)
	}
	states, err := d.Store.AllProgress(ctx)
	if err != nil {
		return LeaderboardResponse{}, fmt.Errorf("load progress: %w", err)
	}
	now := d.Clock.Now()
	entries := leaderboard.Rank(states, teams, now)
	if entries == nil {
		entries = []leaderboard.Entry{}
	}
	return LeaderboardResponse{Entries: entries, UpdatedAt: now}, nil
}

func handleLeaderboard(d Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp, err := rankTeams(r.Context(), d)
		if err != nil {
			d.Logger.Error("ranking teams", "error", err)
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

// handleLeaderboardWS pushes the ranked list on connect and again after
// every leaderboard change. Bursts of changes collapse into one push.
func handleLeaderboardWS(d Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			InsecureSkipVerify: true,
		})
		if err != nil {
			d.Logger.Error("websocket accept failed", "error", err)
			return
		}
		defer conn.CloseNow()

		ch := d.Broker.Subscribe(events.TopicLeaderboard)
		defer d.Broker.Unsubscribe(ch, events.TopicLeaderboard)

		// Reads are only needed to observe the close handshake.
		ctx := conn.CloseRead(r.Context())

		push := func() error {
			resp, err := rankTeams(ctx, d)
			if err != nil {
				return err
			}
			data, err := json.Marshal(resp)
			if err != nil {
				return err
			}
			wctx, cancel := context.WithTimeout(ctx, 5*time.Second)
			defer cancel()
			return conn.Write(wctx, websocket.MessageText, data)
		}

		if err := push(); err != nil {
			d.Logger.Debug("leaderboard push failed", "error", err)
			return
		}

		ping := time.NewTicker(30 * time.Second)
		defer ping.Stop()

		for {
			select {
			case <-ctx.Done():
				conn.Close(websocket.StatusNormalClosure, "")
				return
			case <-ch:
				drain(ch)
				if err := push(); err != nil {
					d.Logger.Debug("leaderboard push failed", "error", err)
					return
				}
			case <-ping.C:
				if err := conn.Ping(ctx); err != nil {
					d.Logger.Debug("websocket ping failed", "error", err)
					return
				}
			}
		}
	}
}

func drain(ch <-chan []byte) {
	for {
		select {
		case <-ch:
		default:
			return
		}
	}
}
