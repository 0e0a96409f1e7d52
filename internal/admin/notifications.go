package admin

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/playperu/geohunt/internal/events"
	"github.com/playperu/geohunt/internal/hunt"
)

// SendNotification broadcasts a message to every team.
func (s *Service) SendNotification(ctx context.Context, title, message string, typ hunt.NotificationType, now time.Time) (hunt.Notification, error) {
	title, message = strings.TrimSpace(title), strings.TrimSpace(message)
	if title == "" || message == "" {
		return hunt.Notification{}, fmt.Errorf("%w: title and message are required", ErrInvalidNotification)
	}
	if typ == "" {
		typ = hunt.NotificationInfo
	}
	if !typ.Valid() {
		return hunt.Notification{}, fmt.Errorf("%w: unknown type %q", ErrInvalidNotification, typ)
	}

	n, err := s.store.CreateNotification(ctx, hunt.Notification{
		Title:     title,
		Message:   message,
		Type:      typ,
		Active:    true,
		CreatedAt: now,
	})
	if err != nil {
		return hunt.Notification{}, fmt.Errorf("create notification: %w", err)
	}
	s.metrics.AdminAction("send_notification")
	s.logger.Info("notification sent", "notification_id", n.ID, "type", n.Type)
	s.events.Publish(ctx, events.New(events.TopicNotifications, events.KindNotification, "", now))
	return n, nil
}

// Notifications lists every notification, newest first.
func (s *Service) Notifications(ctx context.Context) ([]hunt.Notification, error) {
	return s.store.ListNotifications(ctx)
}

func (s *Service) DeactivateNotification(ctx context.Context, id string, now time.Time) (hunt.Notification, error) {
	n, err := s.store.UpdateNotification(ctx, id, func(n *hunt.Notification) error {
		n.Active = false
		return nil
	})
	if err != nil {
		return hunt.Notification{}, err
	}
	s.metrics.AdminAction("deactivate_notification")
	s.events.Publish(ctx, events.New(events.TopicNotifications, events.KindNotification, "", now))
	return n, nil
}

func (s *Service) DeleteNotification(ctx context.Context, id string, now time.Time) error {
	if err := s.store.DeleteNotification(ctx, id); err != nil {
		return err
	}
	s.metrics.AdminAction("delete_notification")
	s.events.Publish(ctx, events.New(events.TopicNotifications, events.KindNotification, "", now))
	return nil
}

// ActiveNotifications returns the active notifications the team has not
// dismissed, newest first.
func (s *Service) ActiveNotifications(ctx context.Context, teamID string) ([]hunt.Notification, error) {
	all, err := s.store.ListNotifications(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]hunt.Notification, 0, len(all))
	for _, n := range all {
		if n.Active && !n.DismissedBy(teamID) {
			out = append(out, n)
		}
	}
	return out, nil
}

// DismissNotification hides a notification for one team. Dismissing twice
// is a no-op.
func (s *Service) DismissNotification(ctx context.Context, id, teamID string) error {
	_, err := s.store.UpdateNotification(ctx, id, func(n *hunt.Notification) error {
		if !n.DismissedBy(teamID) {
			n.ReadBy = append(n.ReadBy, teamID)
		}
		return nil
	})
	return err
}
