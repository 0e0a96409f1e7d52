// Package hunt defines the domain types shared by the game services.
// It depends only on the pure clock package.
package hunt

import (
	"errors"
	"time"

	"github.com/playperu/geohunt/internal/clock"
)

// ErrNotFound is returned by stores when a document does not exist.
var ErrNotFound = errors.New("not found")

type Team struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	LeaderName   string    `json:"leaderName"`
	Members      []string  `json:"members"`
	PasswordHash string    `json:"passwordHash"`
	CreatedAt    time.Time `json:"createdAt"`
}

// Settings is the global singleton mutated by the admin surface and read
// by every team as an immutable snapshot.
type Settings struct {
	Clock     clock.Settings `json:"clock"`
	DatasetID string         `json:"datasetId"`
}

type NotificationType string

const (
	NotificationInfo    NotificationType = "info"
	NotificationSuccess NotificationType = "success"
	NotificationWarning NotificationType = "warning"
	NotificationError   NotificationType = "error"
)

func (t NotificationType) Valid() bool {
	switch t {
	case NotificationInfo, NotificationSuccess, NotificationWarning, NotificationError:
		return true
	}
	return false
}

type Notification struct {
	ID        string           `json:"id"`
	Title     string           `json:"title"`
	Message   string           `json:"message"`
	Type      NotificationType `json:"type"`
	Active    bool             `json:"active"`
	CreatedAt time.Time        `json:"createdAt"`
	ReadBy    []string         `json:"readBy"`
}

// DismissedBy reports whether the team has already dismissed n.
func (n Notification) DismissedBy(teamID string) bool {
	for _, id := range n.ReadBy {
		if id == teamID {
			return true
		}
	}
	return false
}
