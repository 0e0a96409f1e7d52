package progression

import (
	"slices"
	"time"
)

// State is one team's journey through a dataset.
type State struct {
	ActorID          string     `json:"actorId"`
	DatasetID        string     `json:"datasetId"`
	CurrentChallenge *int       `json:"currentChallenge"`
	Completed        []int      `json:"completed"`
	Skipped          []int      `json:"skipped"`
	Score            int        `json:"score"`
	SkipsUsed        int        `json:"skipsUsed"`
	CooldownUntil    *time.Time `json:"cooldownUntil,omitempty"`
	LastDistance     *float64   `json:"lastDistance,omitempty"`
	Complete         bool       `json:"complete"`
	StartedAt        time.Time  `json:"startedAt"`
	LastCompletionAt *time.Time `json:"lastCompletionAt,omitempty"`
	LastActivityAt   time.Time  `json:"lastActivityAt"`
}

// Clone returns a deep copy so a candidate state can be built without
// aliasing the loaded one.
func (s State) Clone() State {
	out := s
	out.Completed = slices.Clone(s.Completed)
	out.Skipped = slices.Clone(s.Skipped)
	if s.CurrentChallenge != nil {
		v := *s.CurrentChallenge
		out.CurrentChallenge = &v
	}
	if s.CooldownUntil != nil {
		v := *s.CooldownUntil
		out.CooldownUntil = &v
	}
	if s.LastDistance != nil {
		v := *s.LastDistance
		out.LastDistance = &v
	}
	if s.LastCompletionAt != nil {
		v := *s.LastCompletionAt
		out.LastCompletionAt = &v
	}
	return out
}

func (s State) HasCompleted(id int) bool {
	return slices.Contains(s.Completed, id)
}

// CooldownRemaining returns how long the team must still wait at now.
func (s State) CooldownRemaining(now time.Time) time.Duration {
	if s.CooldownUntil == nil || !now.Before(*s.CooldownUntil) {
		return 0
	}
	return s.CooldownUntil.Sub(now)
}

// NextChallenge returns the lowest id in [0, total) not yet completed, or
// nil when every id is completed.
func NextChallenge(completed []int, total int) *int {
	done := make(map[int]struct{}, len(completed))
	for _, id := range completed {
		done[id] = struct{}{}
	}
	for id := 0; id < total; id++ {
		if _, ok := done[id]; !ok {
			return &id
		}
	}
	return nil
}

// advance recomputes the pointer and completion flag and clears any
// pending cooldown.
func (s *State) advance(total int) {
	s.CurrentChallenge = NextChallenge(s.Completed, total)
	s.Complete = len(s.Completed) >= total
	s.CooldownUntil = nil
	s.LastDistance = nil
}
