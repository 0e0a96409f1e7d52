package server

import (
	"errors"
	"net/http"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/playperu/geohunt/internal/hunt"
	"github.com/playperu/geohunt/internal/store"
)

// RegisterRequest is the request body for POST /api/teams/register.
type RegisterRequest struct {
	Name       string   `json:"name"`
	LeaderName string   `json:"leaderName"`
	Members    []string `json:"members"`
	Password   string   `json:"password"`
}

// TeamLoginRequest is the request body for POST /api/teams/login.
type TeamLoginRequest struct {
	Name     string `json:"name"`
	Password string `json:"password"`
}

type TeamInfo struct {
	ID         string   `json:"id"`
	Name       string   `json:"name"`
	LeaderName string   `json:"leaderName"`
	Members    []string `json:"members"`
}

// SessionResponse carries the bearer token used by every /api/game route.
type SessionResponse struct {
	Token string   `json:"token"`
	Team  TeamInfo `json:"team"`
}

func teamInfo(t hunt.Team) TeamInfo {
	members := t.Members
	if members == nil {
		members = []string{}
	}
	return TeamInfo{ID: t.ID, Name: t.Name, LeaderName: t.LeaderName, Members: members}
}

func handleRegister(d Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req RegisterRequest
		if err := readJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		req.Name = strings.TrimSpace(req.Name)
		req.LeaderName = strings.TrimSpace(req.LeaderName)
		if req.Name == "" || req.LeaderName == "" || req.Password == "" {
			writeError(w, http.StatusBadRequest, "name, leaderName and password are required")
			return
		}
		var members []string
		for _, m := range req.Members {
			if m = strings.TrimSpace(m); m != "" {
				members = append(members, m)
			}
		}

		hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid password")
			return
		}

		team, err := d.Store.CreateTeam(r.Context(), hunt.Team{
			Name:         req.Name,
			LeaderName:   req.LeaderName,
			Members:      members,
			PasswordHash: string(hash),
			CreatedAt:    d.Clock.Now(),
		})
		if errors.Is(err, store.ErrNameTaken) {
			writeError(w, http.StatusConflict, "team name already taken")
			return
		}
		if err != nil {
			d.Logger.Error("creating team", "error", err)
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}

		token, err := d.Store.CreateTeamSession(r.Context(), team.ID)
		if err != nil {
			d.Logger.Error("creating team session", "error", err)
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}

		d.Logger.Info("team registered", "team_id", team.ID, "name", team.Name)
		writeJSON(w, http.StatusCreated, SessionResponse{Token: token, Team: teamInfo(team)})
	}
}

func handleTeamLogin(d Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req TeamLoginRequest
		if err := readJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		req.Name = strings.TrimSpace(req.Name)
		if req.Name == "" || req.Password == "" {
			writeError(w, http.StatusBadRequest, "name and password are required")
			return
		}

		team, err := d.Store.TeamByName(r.Context(), req.Name)
		if errors.Is(err, store.ErrNotFound) {
			d.Metrics.Login("team", false)
			writeError(w, http.StatusUnauthorized, "invalid credentials")
			return
		}
		if err != nil {
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}

		if err := bcrypt.CompareHashAndPassword([]byte(team.PasswordHash), []byte(req.Password)); err != nil {
			d.Metrics.Login("team", false)
			writeError(w, http.StatusUnauthorized, "invalid credentials")
			return
		}

		token, err := d.Store.CreateTeamSession(r.Context(), team.ID)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}

		d.Metrics.Login("team", true)
		writeJSON(w, http.StatusOK, SessionResponse{Token: token, Team: teamInfo(team)})
	}
}

func handleTeamLogout(d Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := d.Store.DeleteTeamSession(r.Context(), tokenFrom(r)); err != nil {
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}
