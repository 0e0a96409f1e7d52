package server

import (
	"encoding/json"
	"net/http"

	openapi "github.com/swaggest/openapi-go"
	"github.com/swaggest/openapi-go/openapi3"

	"github.com/playperu/geohunt/internal/handler/health"
	"github.com/playperu/geohunt/internal/leaderboard"
	"github.com/playperu/geohunt/internal/store"
)

type apiResponse struct {
	status int
	body   any
}

type apiOperation struct {
	method      string
	path        string
	summary     string
	description string
	request     any
	responses   []apiResponse
	contentType string
}

type notificationPath struct {
	ID string `path:"id"`
}

type teamPath struct {
	TeamID string `path:"teamID"`
}

var (
	errUnauthorized = apiResponse{http.StatusUnauthorized, ErrorResponse{}}
	errBadRequest   = apiResponse{http.StatusBadRequest, ErrorResponse{}}
	errNotFound     = apiResponse{http.StatusNotFound, ErrorResponse{}}
	errConflict     = apiResponse{http.StatusConflict, ErrorResponse{}}
	errUnavailable  = apiResponse{http.StatusServiceUnavailable, ErrorResponse{}}
	statusOK        = apiResponse{http.StatusOK, map[string]string{}}
)

var apiOperations = []apiOperation{
	{
		method:      http.MethodGet,
		path:        "/healthz",
		summary:     "Health check",
		description: "Returns the health status of backend dependencies.",
		responses: []apiResponse{
			{http.StatusOK, health.Response{}},
			{http.StatusServiceUnavailable, health.Response{}},
		},
	},
	{
		method:      http.MethodPost,
		path:        "/api/teams/register",
		summary:     "Register a team",
		description: "Creates a team and returns a bearer session token.",
		request:     RegisterRequest{},
		responses: []apiResponse{
			{http.StatusCreated, SessionResponse{}}, errBadRequest, errConflict,
			{http.StatusTooManyRequests, ErrorResponse{}},
		},
	},
	{
		method:      http.MethodPost,
		path:        "/api/teams/login",
		summary:     "Team login",
		description: "Exchanges team name and password for a bearer session token.",
		request:     TeamLoginRequest{},
		responses:   []apiResponse{{http.StatusOK, SessionResponse{}}, errBadRequest, errUnauthorized},
	},
	{
		method:      http.MethodGet,
		path:        "/api/leaderboard",
		summary:     "Leaderboard",
		description: "Teams ranked by score, ties broken by earliest last completion.",
		responses:   []apiResponse{{http.StatusOK, LeaderboardResponse{}}},
	},
	{
		method:      http.MethodGet,
		path:        "/api/clock",
		summary:     "Game clock",
		description: "Current state of the global game clock.",
		responses:   []apiResponse{{http.StatusOK, ClockInfo{}}},
	},
	{
		method:      http.MethodPost,
		path:        "/api/game/init",
		summary:     "Start playing",
		description: "Creates the team's progress on the active dataset. Idempotent. Requires Bearer token.",
		responses:   []apiResponse{{http.StatusOK, GameStateResponse{}}, errUnauthorized},
	},
	{
		method:      http.MethodGet,
		path:        "/api/game/state",
		summary:     "Get game state",
		description: "Returns the team's progress, current challenge and clock. Requires Bearer token.",
		responses:   []apiResponse{{http.StatusOK, GameStateResponse{}}, errUnauthorized, errNotFound},
	},
	{
		method:      http.MethodPost,
		path:        "/api/game/verify",
		summary:     "Verify location",
		description: "Checks the submitted position against the current challenge. Requires Bearer token.",
		request:     VerifyRequest{},
		responses: []apiResponse{
			{http.StatusOK, VerifyResponse{}}, errBadRequest, errUnauthorized, errNotFound, errConflict,
			{http.StatusUnprocessableEntity, ErrorResponse{}},
			{http.StatusTooManyRequests, ErrorResponse{}},
			errUnavailable,
		},
	},
	{
		method:      http.MethodPost,
		path:        "/api/game/skip",
		summary:     "Skip challenge",
		description: "Abandons the current challenge for a score penalty. Requires Bearer token.",
		responses:   []apiResponse{{http.StatusOK, SkipResponse{}}, errUnauthorized, errNotFound, errConflict, errUnavailable},
	},
	{
		method:      http.MethodGet,
		path:        "/api/game/events",
		summary:     "SSE event stream",
		description: "Server-Sent Events for the team's progress, settings and notifications. Pass token as query parameter.",
		contentType: "text/event-stream",
		responses:   []apiResponse{{http.StatusOK, nil}},
	},
	{
		method:      http.MethodGet,
		path:        "/api/game/notifications",
		summary:     "Active notifications",
		description: "Active notifications the team has not dismissed, newest first. Requires Bearer token.",
		responses:   []apiResponse{{http.StatusOK, []NotificationInfo{}}, errUnauthorized},
	},
	{
		method:      http.MethodPost,
		path:        "/api/game/notifications/{id}/dismiss",
		summary:     "Dismiss notification",
		description: "Hides a notification for the team. Requires Bearer token.",
		request:     notificationPath{},
		responses:   []apiResponse{statusOK, errUnauthorized, errNotFound},
	},
	{
		method:      http.MethodGet,
		path:        "/ws/leaderboard",
		summary:     "Live leaderboard",
		description: "WebSocket pushing the ranked list on connect and after every change.",
		contentType: "text/plain",
		responses:   []apiResponse{{http.StatusSwitchingProtocols, nil}},
	},
	{
		method:      http.MethodPost,
		path:        "/api/admin/login",
		summary:     "Admin login",
		description: "Sets the admin_session cookie.",
		request:     AdminLoginRequest{},
		responses:   []apiResponse{{http.StatusOK, AdminMeResponse{}}, errBadRequest, errUnauthorized},
	},
	{
		method:      http.MethodPost,
		path:        "/api/admin/logout",
		summary:     "Admin logout",
		description: "Clears the admin session.",
		responses:   []apiResponse{statusOK},
	},
	{
		method:      http.MethodGet,
		path:        "/api/admin/settings",
		summary:     "Game settings",
		description: "Requires admin_session cookie.",
		responses:   []apiResponse{{http.StatusOK, SettingsResponse{}}, errUnauthorized},
	},
	{
		method:      http.MethodPut,
		path:        "/api/admin/settings/schedule",
		summary:     "Set schedule",
		description: "Sets the start instant and duration. Requires admin_session cookie.",
		request:     ScheduleRequest{},
		responses:   []apiResponse{{http.StatusOK, SettingsResponse{}}, errBadRequest, errUnauthorized, errUnavailable},
	},
	{
		method:    http.MethodPut,
		path:      "/api/admin/settings/active",
		summary:   "Activate or deactivate the game",
		request:   ActiveRequest{},
		responses: []apiResponse{{http.StatusOK, SettingsResponse{}}, errUnauthorized, errUnavailable},
	},
	{
		method:      http.MethodPut,
		path:        "/api/admin/settings/paused",
		summary:     "Pause or resume",
		description: "Idempotent: repeating a request does not count a pause twice.",
		request:     PausedRequest{},
		responses:   []apiResponse{{http.StatusOK, SettingsResponse{}}, errUnauthorized, errUnavailable},
	},
	{
		method:    http.MethodPost,
		path:      "/api/admin/settings/toggle-pause",
		summary:   "Toggle pause",
		responses: []apiResponse{{http.StatusOK, SettingsResponse{}}, errUnauthorized, errUnavailable},
	},
	{
		method:      http.MethodPut,
		path:        "/api/admin/settings/dataset",
		summary:     "Switch dataset",
		description: "Selects the dataset for teams that start from now on.",
		request:     DatasetRequest{},
		responses:   []apiResponse{{http.StatusOK, SettingsResponse{}}, errBadRequest, errUnauthorized},
	},
	{
		method:    http.MethodGet,
		path:      "/api/admin/stats",
		summary:   "Team statistics",
		responses: []apiResponse{{http.StatusOK, leaderboard.Statistics{}}, errUnauthorized},
	},
	{
		method:      http.MethodPost,
		path:        "/api/admin/reset",
		summary:     "Reset all progress",
		description: "Deletes every team except preserved and excluded ones.",
		request:     ResetRequest{},
		responses:   []apiResponse{{http.StatusOK, store.ResetResult{}}, errUnauthorized},
	},
	{
		method:    http.MethodGet,
		path:      "/api/admin/teams",
		summary:   "List teams",
		responses: []apiResponse{{http.StatusOK, []AdminTeamItem{}}, errUnauthorized},
	},
	{
		method:      http.MethodDelete,
		path:        "/api/admin/teams/{teamID}",
		summary:     "Delete team",
		description: "Removes the team, its sessions and its progress.",
		request:     teamPath{},
		responses:   []apiResponse{statusOK, errUnauthorized, errNotFound},
	},
	{
		method:    http.MethodPost,
		path:      "/api/admin/teams/{teamID}/reset-cooldown",
		summary:   "Reset cooldown",
		request:   teamPath{},
		responses: []apiResponse{statusOK, errUnauthorized, errNotFound},
	},
	{
		method:    http.MethodGet,
		path:      "/api/admin/notifications",
		summary:   "List notifications",
		responses: []apiResponse{{http.StatusOK, []AdminNotificationItem{}}, errUnauthorized},
	},
	{
		method:    http.MethodPost,
		path:      "/api/admin/notifications",
		summary:   "Send notification",
		request:   SendNotificationRequest{},
		responses: []apiResponse{{http.StatusCreated, AdminNotificationItem{}}, errBadRequest, errUnauthorized},
	},
	{
		method:    http.MethodPost,
		path:      "/api/admin/notifications/{id}/deactivate",
		summary:   "Deactivate notification",
		request:   notificationPath{},
		responses: []apiResponse{{http.StatusOK, AdminNotificationItem{}}, errUnauthorized, errNotFound},
	},
	{
		method:    http.MethodDelete,
		path:      "/api/admin/notifications/{id}",
		summary:   "Delete notification",
		request:   notificationPath{},
		responses: []apiResponse{statusOK, errUnauthorized, errNotFound},
	},
}

func newOpenAPISpec() *openapi3.Spec {
	r := openapi3.NewReflector()
	r.Spec.Info.Title = "GeoHunt API"
	r.Spec.Info.Version = "0.1.0"
	r.Spec.Info.WithDescription("Backend API for the GeoHunt location scavenger hunt.")

	for _, op := range apiOperations {
		oc, err := r.NewOperationContext(op.method, op.path)
		if err != nil {
			continue
		}
		oc.SetSummary(op.summary)
		if op.description != "" {
			oc.SetDescription(op.description)
		}
		if op.request != nil {
			oc.AddReqStructure(op.request)
		}
		for _, resp := range op.responses {
			opts := []openapi.ContentOption{openapi.WithHTTPStatus(resp.status)}
			if resp.body == nil && op.contentType != "" {
				opts = append(opts, openapi.WithContentType(op.contentType))
			}
			oc.AddRespStructure(resp.body, opts...)
		}
		_ = r.AddOperation(oc)
	}

	return r.Spec
}

func handleOpenAPI() http.HandlerFunc {
	spec := newOpenAPISpec()
	data, _ := json.MarshalIndent(spec, "", "  ")

	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(data)
	}
}
