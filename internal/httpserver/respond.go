package httpserver

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"

	"github.com/podut/hangman-server/internal/core"
)

var errMalformedBody = fmt.Errorf("%w: malformed JSON body", core.ErrValidation)

// errorBody is the JSON shape of every error response.
type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// errorCodes maps specific errors to stable codes. First match wins, so
// specific errors come before their family roots.
var errorCodes = []struct {
	err  error
	code string
}{
	{core.ErrSessionNotFound, "session_not_found"},
	{core.ErrGameNotFound, "game_not_found"},
	{core.ErrDictionaryNotFound, "dictionary_not_found"},
	{core.ErrUserNotFound, "user_not_found"},
	{core.ErrNotFound, "not_found"},

	{errMalformedBody, "invalid_json"},
	{core.ErrInvalidWord, "invalid_word"},
	{core.ErrInvalidGuess, "invalid_guess"},
	{core.ErrInvalidSessionParams, "invalid_session_params"},
	{core.ErrInvalidPeriod, "invalid_period"},
	{core.ErrInvalidMetric, "invalid_metric"},
	{core.ErrInvalidUser, "invalid_user"},
	{core.ErrValidation, "validation_error"},

	{core.ErrGameFinished, "game_finished"},
	{core.ErrDuplicateGuess, "duplicate_guess"},
	{core.ErrWordGuessNotAllowed, "word_guess_not_allowed"},
	{core.ErrSessionNotActive, "session_not_active"},
	{core.ErrSessionAlreadyFinished, "session_already_finished"},
	{core.ErrMaxSessionsExceeded, "max_sessions_exceeded"},
	{core.ErrUsernameTaken, "username_taken"},
	{core.ErrConflict, "conflict"},

	{core.ErrSessionGameLimitReached, "session_game_limit_reached"},
	{core.ErrWordPoolExhausted, "word_pool_exhausted"},
	{core.ErrExhausted, "exhausted"},

	{core.ErrInvalidCredentials, "invalid_credentials"},
	{core.ErrInvalidToken, "invalid_token"},
	{core.ErrAuth, "unauthorized"},
	{core.ErrForbidden, "forbidden"},
}

// statusFor maps an error family to an HTTP status.
func statusFor(err error) int {
	switch {
	case core.IsNotFound(err):
		return http.StatusNotFound
	case core.IsValidation(err):
		return http.StatusBadRequest
	case core.IsConflict(err), core.IsExhausted(err):
		return http.StatusConflict
	case core.IsAuth(err):
		return http.StatusUnauthorized
	case core.IsForbidden(err):
		return http.StatusForbidden
	}
	return http.StatusInternalServerError
}

func codeFor(err error) string {
	for _, c := range errorCodes {
		if errors.Is(err, c.err) {
			return c.code
		}
	}
	return "internal"
}

// writeJSON encodes v with the given status.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Warn().Err(err).Msg("encode response")
	}
}

// writeError maps err to a status and JSON body. Unclassified errors are
// logged and reported without detail.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	body := errorBody{Error: codeFor(err), Message: err.Error()}
	if status == http.StatusInternalServerError {
		log.Error().Err(err).
			Str("request_id", chimw.GetReqID(r.Context())).
			Str("path", r.URL.Path).
			Msg("request failed")
		body.Message = "internal server error"
	}
	writeJSON(w, status, body)
}

// decodeJSON reads a JSON body into v. An empty body leaves v untouched.
func decodeJSON(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("%w: %v", errMalformedBody, err)
	}
	return nil
}
