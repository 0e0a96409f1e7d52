package server

import (
	"fmt"
	"net/http"
	"time"

	"github.com/playperu/geohunt/internal/events"
)

// handleEvents streams change events for the team's progress, the game
// settings and the notification list. Clients refetch state on each event.
func handleEvents(d Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		flusher, ok := w.(http.Flusher)
		if !ok {
			writeError(w, http.StatusInternalServerError, "streaming not supported")
			return
		}

		topics := []string{
			events.TeamTopic(teamFrom(r).ID),
			events.TopicSettings,
			events.TopicNotifications,
		}
		ch := d.Broker.Subscribe(topics...)
		defer d.Broker.Unsubscribe(ch, topics...)

		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")
		w.Header().Set("X-Accel-Buffering", "no")
		w.WriteHeader(http.StatusOK)
		fmt.Fprintf(w, ": connected\n\n")
		flusher.Flush()

		ping := time.NewTicker(30 * time.Second)
		defer ping.Stop()

		for {
			select {
			case <-r.Context().Done():
				return
			case data := <-ch:
				fmt.Fprintf(w, "event: change\ndata: %s\n\n", data)
				flusher.Flush()
			case <-ping.C:
				fmt.Fprintf(w, ": ping\n\n")
				flusher.Flush()
			}
		}
	}
}
