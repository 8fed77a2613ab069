package api

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/goccy/go-json"

	"product-insights-go/internal/session"
	"product-insights-go/internal/validation"
)

const maxBodyBytes = 1 << 20

type errorBody struct {
	Error apiError `json:"error"`
}

type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, errorBody{Error: apiError{Code: code, Message: message}})
}

// fail maps session and validation errors onto the error envelope.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	var verrs validation.Errors
	var bad badRequest
	switch {
	case errors.As(err, &verrs), errors.As(err, &bad):
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
	case errors.Is(err, session.ErrUnknownUser):
		respondError(w, http.StatusNotFound, "unknown_user", err.Error())
	case errors.Is(err, session.ErrUnknownProduct):
		respondError(w, http.StatusNotFound, "unknown_product", err.Error())
	case errors.Is(err, session.ErrNoRecommendations):
		respondError(w, http.StatusNotFound, "no_recommendations", err.Error())
	case errors.Is(err, session.ErrEmptyQuery),
		errors.Is(err, session.ErrUnknownAction),
		errors.Is(err, session.ErrUnknownMode):
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
	case errors.Is(err, session.ErrSuperseded):
		respondError(w, http.StatusConflict, "superseded", "a newer refresh replaced this one")
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		s.log.WithRequest(r).WithField("error", err.Error()).Warn("request abandoned")
		respondError(w, http.StatusServiceUnavailable, "canceled", "request canceled")
	default:
		s.log.WithRequest(r).WithField("error", err.Error()).Error("internal error")
		respondError(w, http.StatusInternalServerError, "internal", "internal server error")
	}
}

type badRequest struct{ msg string }

func (e badRequest) Error() string { return e.msg }

// decode reads a JSON body into v and validates it.
func decode(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		return badRequest{msg: "malformed JSON body: " + err.Error()}
	}
	return validation.Struct(v)
}
