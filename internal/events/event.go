// Package events fans out change notifications to live subscribers.
//
// Topics name what changed: a single team's progress, the leaderboard, the
// global settings or the notification list. Payloads are small; receivers
// re-read the current state from the store.
package events

import (
	"context"
	"time"
)

const (
	TopicLeaderboard   = "leaderboard"
	TopicSettings      = "settings"
	TopicNotifications = "notifications"
)

const (
	KindProgress     = "progress"
	KindSettings     = "settings"
	KindNotification = "notification"
	KindReset        = "reset"
)

// TeamTopic is the topic carrying one team's progress changes.
func TeamTopic(teamID string) string {
	return "progression:" + teamID
}

type Event struct {
	Topic   string    `json:"topic"`
	Kind    string    `json:"kind"`
	ActorID string    `json:"actorId,omitempty"`
	At      time.Time `json:"at"`
}

func New(topic, kind, actorID string, at time.Time) Event {
	return Event{Topic: topic, Kind: kind, ActorID: actorID, At: at}
}

// Publisher delivers events. Implementations must not block the caller on
// slow subscribers.
type Publisher interface {
	Publish(ctx context.Context, ev Event)
}

// Discard drops every event.
type Discard struct{}

func (Discard) Publish(context.Context, Event) {}
