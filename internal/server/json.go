package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/playperu/geohunt/internal/admin"
	"github.com/playperu/geohunt/internal/catalog"
	"github.com/playperu/geohunt/internal/clock"
	"github.com/playperu/geohunt/internal/hunt"
	"github.com/playperu/geohunt/internal/progression"
	"github.com/playperu/geohunt/internal/store"
)

// ErrorResponse is returned for all error responses.
type ErrorResponse struct {
	Error             string  `json:"error"`
	Code              string  `json:"code,omitempty"`
	RetryAfterSeconds int     `json:"retryAfterSeconds,omitempty"`
	DistanceMeters    float64 `json:"distanceMeters,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func readJSON(r *http.Request, v any) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, ErrorResponse{Error: msg})
}

// gameErrors maps domain failures to a status and a stable code.
// CooldownError and TooFarError carry data and are handled first.
var gameErrors = []struct {
	err    error
	status int
	code   string
}{
	{progression.ErrGamePaused, http.StatusConflict, "game_paused"},
	{progression.ErrGameNotStarted, http.StatusConflict, "game_not_started"},
	{progression.ErrGameAlreadyComplete, http.StatusConflict, "game_already_complete"},
	{progression.ErrSkipNotAvailable, http.StatusConflict, "skip_not_available"},
	{progression.ErrNoCurrentChallenge, http.StatusConflict, "no_current_challenge"},
	{progression.ErrNotInitialized, http.StatusNotFound, "not_initialized"},
	{progression.ErrInvalidCoordinate, http.StatusBadRequest, "invalid_coordinate"},
	{progression.ErrChallengeDataMissing, http.StatusInternalServerError, "challenge_data_missing"},
	{progression.ErrConcurrentModification, http.StatusServiceUnavailable, "concurrent_modification"},
	{catalog.ErrUnknownDataset, http.StatusBadRequest, "unknown_dataset"},
	{clock.ErrInvalidDuration, http.StatusBadRequest, "invalid_duration"},
	{clock.ErrInvalidStart, http.StatusBadRequest, "invalid_start"},
	{progression.ErrCooldownActive, http.StatusTooManyRequests, "cooldown_active"},
	{admin.ErrInvalidNotification, http.StatusBadRequest, "invalid_notification"},
	{store.ErrNameTaken, http.StatusConflict, "name_taken"},
	{hunt.ErrNotFound, http.StatusNotFound, "not_found"},
}

// writeGameError writes err with the status its kind calls for.
func writeGameError(w http.ResponseWriter, err error) {
	var cd *progression.CooldownError
	if errors.As(err, &cd) {
		w.Header().Set("Retry-After", strconv.Itoa(cd.Seconds()))
		writeJSON(w, http.StatusTooManyRequests, ErrorResponse{
			Error:             err.Error(),
			Code:              "cooldown_active",
			RetryAfterSeconds: cd.Seconds(),
		})
		return
	}
	var far *progression.TooFarError
	if errors.As(err, &far) {
		writeJSON(w, http.StatusUnprocessableEntity, ErrorResponse{
			Error:          err.Error(),
			Code:           "location_too_far",
			DistanceMeters: far.Distance,
		})
		return
	}
	for _, ge := range gameErrors {
		if errors.Is(err, ge.err) {
			writeJSON(w, ge.status, ErrorResponse{Error: ge.err.Error(), Code: ge.code})
			return
		}
	}
	writeError(w, http.StatusInternalServerError, "internal error")
}
