package server

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/time/rate"
	"nhooyr.io/websocket"
)

func TestEventsStream(t *testing.T) {
	f := newFixture(t)
	token := f.register(t, "Owls")
	f.do(t, http.MethodPost, "/api/game/init", nil, token)

	srv := httptest.NewServer(f.router)
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/api/game/events?token="+token, nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if got := resp.Header.Get("Content-Type"); got != "text/event-stream" {
		t.Fatalf("content-type = %q", got)
	}

	lines := bufio.NewReader(resp.Body)
	readUntil := func(prefix string) string {
		t.Helper()
		for {
			line, err := lines.ReadString('\n')
			if err != nil {
				t.Fatalf("reading stream: %v", err)
			}
			if strings.HasPrefix(line, prefix) {
				return strings.TrimSpace(strings.TrimPrefix(line, prefix))
			}
		}
	}
	readUntil(": connected")

	w := f.do(t, http.MethodPost, "/api/game/skip", nil, token)
	if w.Code != http.StatusOK {
		t.Fatalf("skip: expected 200, got %d", w.Code)
	}

	readUntil("event: change")
	var ev struct {
		Topic string `json:"topic"`
		Kind  string `json:"kind"`
	}
	if err := json.Unmarshal([]byte(readUntil("data:")), &ev); err != nil {
		t.Fatalf("decode event: %v", err)
	}
	if !strings.HasPrefix(ev.Topic, "progression:") || ev.Kind != "progress" {
		t.Errorf("unexpected event %+v", ev)
	}
}

func TestLeaderboardWebSocket(t *testing.T) {
	f := newFixture(t)

	srv := httptest.NewServer(f.router)
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	wsURL := "ws" + srv.URL[len("http"):] + "/ws/leaderboard"
	conn, _, err := websocket.Dial(ctx, wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.CloseNow()

	read := func() LeaderboardResponse {
		t.Helper()
		_, data, err := conn.Read(ctx)
		if err != nil {
			t.Fatalf("read: %v", err)
		}
		var resp LeaderboardResponse
		if err := json.Unmarshal(data, &resp); err != nil {
			t.Fatalf("decode: %v", err)
		}
		return resp
	}

	if initial := read(); len(initial.Entries) != 0 {
		t.Fatalf("expected an empty board, got %+v", initial.Entries)
	}

	token := f.register(t, "Owls")
	f.do(t, http.MethodPost, "/api/game/init", nil, token)
	w := f.do(t, http.MethodPost, "/api/game/verify", firstTarget, token)
	if w.Code != http.StatusOK {
		t.Fatalf("verify: expected 200, got %d: %s", w.Code, w.Body.String())
	}

	board := read()
	if len(board.Entries) != 1 || board.Entries[0].DisplayName != "Owls" || board.Entries[0].Score != 10 {
		t.Fatalf("unexpected board: %+v", board.Entries)
	}

	conn.Close(websocket.StatusNormalClosure, "done")
}

func TestMetricsEndpoint(t *testing.T) {
	f := newFixture(t)
	token := f.register(t, "Owls")
	f.do(t, http.MethodPost, "/api/game/init", nil, token)
	f.do(t, http.MethodPost, "/api/game/verify", farAway, token)

	w := f.do(t, http.MethodGet, "/metrics", nil, "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	body := w.Body.String()
	if !strings.Contains(body, `geohunt_verification_attempts_total{outcome="too_far"} 1`) {
		t.Errorf("missing too_far attempt counter:\n%s", body)
	}
}

func TestIPLimiter(t *testing.T) {
	l := newIPLimiter(rate.Limit(1), 2)
	now := time.Now()

	if !l.allow("10.0.0.1", now) || !l.allow("10.0.0.1", now) {
		t.Fatalf("burst should be allowed")
	}
	if l.allow("10.0.0.1", now) {
		t.Fatalf("third request in the same instant should be throttled")
	}
	if !l.allow("10.0.0.2", now) {
		t.Fatalf("other clients have their own budget")
	}
	if !l.allow("10.0.0.1", now.Add(time.Second)) {
		t.Fatalf("budget should refill")
	}

	h := newIPLimiter(rate.Limit(1), 1).middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	codes := make([]int, 0, 2)
	for range 2 {
		req := httptest.NewRequest(http.MethodPost, "/api/teams/login", nil)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		codes = append(codes, rec.Code)
	}
	if codes[0] != http.StatusNoContent || codes[1] != http.StatusTooManyRequests {
		t.Fatalf("codes = %v", codes)
	}
}

func TestIPLimiterIgnoresForwardedFor(t *testing.T) {
	limited := newIPLimiter(rate.Limit(1), 1).middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	h := peerAddress(middleware.RealIP(limited))

	codes := make([]int, 0, 2)
	for _, forwarded := range []string{"203.0.113.1", "203.0.113.2"} {
		req := httptest.NewRequest(http.MethodPost, "/api/teams/login", nil)
		req.RemoteAddr = "10.0.0.1:4000"
		req.Header.Set("X-Forwarded-For", forwarded)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		codes = append(codes, rec.Code)
	}
	if codes[0] != http.StatusNoContent || codes[1] != http.StatusTooManyRequests {
		t.Fatalf("rotating X-Forwarded-For should not reset the budget, codes = %v", codes)
	}
}

func TestHandleSPA(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "index.html"), []byte("<html>app</html>"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.MkdirAll(filepath.Join(dir, "assets"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "assets", "app.js"), []byte("console.log(1)"), 0o644); err != nil {
		t.Fatal(err)
	}

	h := handleSPA(dir)
	tests := []struct {
		path       string
		wantStatus int
		wantBody   string
	}{
		{"/assets/app.js", http.StatusOK, "console.log(1)"},
		{"/leaderboard", http.StatusOK, "<html>app</html>"},
		{"/api/unknown", http.StatusNotFound, "not found"},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.URL.Path = tt.path
			rec := httptest.NewRecorder()
			h(rec, req)

			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			if !strings.Contains(rec.Body.String(), tt.wantBody) {
				t.Fatalf("body = %q, want %q", rec.Body.String(), tt.wantBody)
			}
		})
	}
}
