// Package leaderboard ranks teams from their progression state.
package leaderboard

import (
	"math"
	"sort"
	"time"

	"github.com/playperu/geohunt/internal/hunt"
	"github.com/playperu/geohunt/internal/progression"
)

// ActiveWindow is how recent a team's last activity must be for it to
// count as active.
const ActiveWindow = 5 * time.Minute

type Entry struct {
	Place          int           `json:"place"`
	ActorID        string        `json:"actorId"`
	DisplayName    string        `json:"displayName"`
	Score          int           `json:"score"`
	CompletedCount int           `json:"completedCount"`
	Elapsed        time.Duration `json:"-"`
	ElapsedSeconds int64         `json:"elapsedSeconds"`
	Complete       bool          `json:"complete"`
	LastActivity   time.Time     `json:"lastActivity"`
}

// Rank orders teams by score descending. Ties go to the team whose last
// completion came first; teams without a completion fall back to their
// start time and sort after teams with one. Teams with no score and no
// completions, or without team metadata, are left out.
func Rank(states []progression.State, teams []hunt.Team, now time.Time) []Entry {
	names := make(map[string]string, len(teams))
	for _, t := range teams {
		names[t.ID] = t.Name
	}

	type row struct {
		state progression.State
		name  string
	}
	rows := make([]row, 0, len(states))
	for _, s := range states {
		name, ok := names[s.ActorID]
		if !ok {
			continue
		}
		if s.Score == 0 && len(s.Completed) == 0 {
			continue
		}
		rows = append(rows, row{state: s, name: name})
	}

	sort.Slice(rows, func(i, j int) bool {
		a, b := rows[i].state, rows[j].state
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		switch {
		case a.LastCompletionAt != nil && b.LastCompletionAt != nil:
			if !a.LastCompletionAt.Equal(*b.LastCompletionAt) {
				return a.LastCompletionAt.Before(*b.LastCompletionAt)
			}
		case a.LastCompletionAt != nil:
			return true
		case b.LastCompletionAt != nil:
			return false
		default:
			if !a.StartedAt.Equal(b.StartedAt) {
				return a.StartedAt.Before(b.StartedAt)
			}
		}
		return a.ActorID < b.ActorID
	})

	out := make([]Entry, len(rows))
	for i, r := range rows {
		s := r.state
		last := s.StartedAt
		if s.LastCompletionAt != nil {
			last = *s.LastCompletionAt
		}
		end := now
		if s.Complete && s.LastCompletionAt != nil {
			end = *s.LastCompletionAt
		}
		elapsed := end.Sub(s.StartedAt)
		if elapsed < 0 {
			elapsed = 0
		}
		out[i] = Entry{
			Place:          i + 1,
			ActorID:        s.ActorID,
			DisplayName:    r.name,
			Score:          s.Score,
			CompletedCount: len(s.Completed),
			Elapsed:        elapsed,
			ElapsedSeconds: int64(elapsed / time.Second),
			Complete:       s.Complete,
			LastActivity:   last,
		}
	}
	return out
}

type Statistics struct {
	TotalTeams               int `json:"totalTeams"`
	RegisteredTeams          int `json:"registeredTeams"`
	ActiveTeams              int `json:"activeTeams"`
	CompletedTeams           int `json:"completedTeams"`
	AverageScore             int `json:"averageScore"`
	TopScore                 int `json:"topScore"`
	TotalChallengesCompleted int `json:"totalChallengesCompleted"`
}

// Summarize aggregates statistics over every team with progress. Teams
// whose ids are in preserved are counted in TotalTeams only.
func Summarize(states []progression.State, teams []hunt.Team, preserved map[string]bool, now time.Time) Statistics {
	st := Statistics{TotalTeams: len(teams)}
	for _, t := range teams {
		if !preserved[t.ID] {
			st.RegisteredTeams++
		}
	}

	total := 0
	for _, s := range states {
		if s.Complete {
			st.CompletedTeams++
		}
		if now.Sub(s.LastActivityAt) <= ActiveWindow {
			st.ActiveTeams++
		}
		if s.Score > st.TopScore {
			st.TopScore = s.Score
		}
		total += s.Score
		st.TotalChallengesCompleted += len(s.Completed)
	}
	if len(states) > 0 {
		st.AverageScore = int(math.Round(float64(total) / float64(len(states))))
	}
	return st
}
