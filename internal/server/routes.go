package server

import (
	"os"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/swaggest/swgui/v5emb"
)

func addRoutes(r chi.Router, d Deps) {
	limiter := newIPLimiter(d.LoginRate, d.LoginBurst)

	r.Get("/openapi.json", handleOpenAPI())
	r.Mount("/docs", v5emb.New("GeoHunt API", "/openapi.json", "/docs"))
	if d.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(d.Gatherer, promhttp.HandlerOpts{}))
	}
	r.Get("/ws/leaderboard", handleLeaderboardWS(d))

	// Team accounts.
	r.Group(func(r chi.Router) {
		r.Use(limiter.middleware)
		r.Post("/api/teams/register", handleRegister(d))
		r.Post("/api/teams/login", handleTeamLogin(d))
	})

	r.Get("/api/leaderboard", handleLeaderboard(d))
	r.Get("/api/clock", handleClock(d))

	// Team game routes, authenticated by bearer session token.
	r.Route("/api/game", func(r chi.Router) {
		r.Use(teamAuthMiddleware(d.Store))
		r.Post("/init", handleGameInit(d))
		r.Get("/state", handleGameState(d))
		r.Post("/verify", handleVerify(d))
		r.Post("/skip", handleSkip(d))
		r.Get("/events", handleEvents(d))
		r.Get("/notifications", handleTeamNotifications(d))
		r.Post("/notifications/{id}/dismiss", handleDismissNotification(d))
		r.Post("/logout", handleTeamLogout(d))
	})

	r.With(limiter.middleware).Post("/api/admin/login", handleAdminLogin(d))
	r.Post("/api/admin/logout", handleAdminLogout(d))

	r.Route("/api/admin", func(r chi.Router) {
		r.Use(adminAuthMiddleware(d.Store))
		r.Get("/me", handleAdminMe())

		r.Get("/settings", handleAdminSettings(d))
		r.Put("/settings/schedule", handleAdminSchedule(d))
		r.Put("/settings/active", handleAdminActive(d))
		r.Put("/settings/paused", handleAdminPaused(d))
		r.Post("/settings/toggle-pause", handleAdminTogglePause(d))
		r.Put("/settings/dataset", handleAdminDataset(d))

		r.Get("/stats", handleAdminStats(d))
		r.Post("/reset", handleAdminReset(d))
		r.Get("/teams", handleAdminListTeams(d))
		r.Delete("/teams/{teamID}", handleAdminDeleteTeam(d))
		r.Post("/teams/{teamID}/reset-cooldown", handleAdminResetCooldown(d))

		r.Get("/notifications", handleAdminListNotifications(d))
		r.Post("/notifications", handleAdminSendNotification(d))
		r.Post("/notifications/{id}/deactivate", handleAdminDeactivateNotification(d))
		r.Delete("/notifications/{id}", handleAdminDeleteNotification(d))
	})

	if d.SPADir != "" {
		if info, err := os.Stat(d.SPADir); err == nil && info.IsDir() {
			d.Logger.Info("serving SPA", "dir", d.SPADir)
			r.NotFound(handleSPA(d.SPADir))
		}
	}
}
