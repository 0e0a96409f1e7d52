package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/time/rate"

	"github.com/playperu/geohunt/internal/admin"
	"github.com/playperu/geohunt/internal/catalog"
	"github.com/playperu/geohunt/internal/clock"
	"github.com/playperu/geohunt/internal/database"
	"github.com/playperu/geohunt/internal/events"
	"github.com/playperu/geohunt/internal/hunt"
	"github.com/playperu/geohunt/internal/metrics"
	"github.com/playperu/geohunt/internal/migrations"
	"github.com/playperu/geohunt/internal/progression"
	"github.com/playperu/geohunt/internal/store"
)

var gameStart = time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)

const (
	adminEmail    = "admin@geohunt.local"
	adminPassword = "changeme"
)

type fixture struct {
	router chi.Router
	store  *store.Store
	clock  *clock.Fixed
	broker *events.Broker
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()

	db, err := database.Open(ctx, database.Memory)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if err := migrations.Run(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	st := store.New(db)
	_, err = st.EnsureSettings(ctx, hunt.Settings{
		DatasetID: "A",
		Clock:     clock.Settings{StartAt: gameStart, Duration: 2 * time.Hour, Active: true},
	})
	if err != nil {
		t.Fatalf("seed settings: %v", err)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(adminPassword), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if _, err := st.EnsureAdmin(ctx, adminEmail, string(hash)); err != nil {
		t.Fatalf("seed admin: %v", err)
	}

	reg, err := catalog.LoadBuiltin(false)
	if err != nil {
		t.Fatalf("load datasets: %v", err)
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	promReg := prometheus.NewRegistry()
	m := metrics.New(promReg)
	broker := events.NewBroker()
	clk := clock.NewFixed(gameStart.Add(time.Minute))

	engine := progression.New(st, reg, progression.Config{
		MaxSkips:    3,
		SkipPenalty: 5,
		Cooldown:    time.Minute,
	}, logger, progression.WithMetrics(m), progression.WithPublisher(broker))
	svc := admin.New(st, reg, admin.Config{PreservedTeams: []string{"Admin Team"}}, logger,
		admin.WithMetrics(m), admin.WithPublisher(broker))

	d := Deps{
		Logger:     logger,
		Store:      st,
		Engine:     engine,
		Admin:      svc,
		Broker:     broker,
		Clock:      clk,
		Metrics:    m,
		Gatherer:   promReg,
		LoginRate:  rate.Inf,
		LoginBurst: 1,
	}
	return &fixture{router: newRouter(d), store: st, clock: clk, broker: broker}
}

// do sends a JSON request through the router. A non-empty token is sent as
// a bearer token.
func (f *fixture) do(t *testing.T, method, path string, body any, token string, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		r = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, r)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for _, c := range cookies {
		req.AddCookie(c)
	}
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func (f *fixture) register(t *testing.T, name string) string {
	t.Helper()
	w := f.do(t, http.MethodPost, "/api/teams/register", RegisterRequest{
		Name:       name,
		LeaderName: "Ana",
		Members:    []string{"Ana", "Luis"},
		Password:   "secret",
	}, "")
	if w.Code != http.StatusCreated {
		t.Fatalf("register %q: expected 201, got %d: %s", name, w.Code, w.Body.String())
	}
	var resp SessionResponse
	decode(t, w, &resp)
	return resp.Token
}

func (f *fixture) adminLogin(t *testing.T) []*http.Cookie {
	t.Helper()
	w := f.do(t, http.MethodPost, "/api/admin/login", AdminLoginRequest{Email: adminEmail, Password: adminPassword}, "")
	if w.Code != http.StatusOK {
		t.Fatalf("admin login: expected 200, got %d: %s", w.Code, w.Body.String())
	}
	return w.Result().Cookies()
}

func decode(t *testing.T, w *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.NewDecoder(w.Body).Decode(v); err != nil {
		t.Fatalf("decode response: %v", err)
	}
}

func expectError(t *testing.T, w *httptest.ResponseRecorder, status int, code string) ErrorResponse {
	t.Helper()
	if w.Code != status {
		t.Fatalf("expected %d, got %d: %s", status, w.Code, w.Body.String())
	}
	var resp ErrorResponse
	decode(t, w, &resp)
	if resp.Code != code {
		t.Fatalf("expected code %q, got %q", code, resp.Code)
	}
	return resp
}
