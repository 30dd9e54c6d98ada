package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/ping-media/ai-career-counselor-api/internal/domain"
	"github.com/ping-media/ai-career-counselor-api/internal/infra/logging"
)

type errorBody struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// statusFor maps a domain error kind onto an HTTP status.
func statusFor(err error) int {
	var ve *domain.ValidationError
	var me *domain.ModelInvocationError
	switch {
	case errors.As(err, &ve), errors.Is(err, domain.ErrInvalidArgument):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrSessionBusy), errors.Is(err, domain.ErrConflict):
		return http.StatusConflict
	case errors.As(err, &me):
		if errors.Is(err, context.DeadlineExceeded) {
			return http.StatusGatewayTimeout
		}
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error, public string) {
	status := statusFor(err)
	body := errorBody{Error: public}
	switch status {
	case http.StatusBadRequest:
		var ve *domain.ValidationError
		if errors.As(err, &ve) {
			body.Error = ve.Error()
		}
	case http.StatusNotFound:
		body.Error = "Chat session not found"
	case http.StatusConflict:
		body.Error = "Session is busy, please retry"
	}
	if status >= http.StatusInternalServerError {
		log := logging.With(r.Context(), s.log)
		log.Error().Err(err).Int("status", status).Str("path", r.URL.Path).Msg("request failed")
		if s.dev {
			body.Details = err.Error()
		}
	} else {
		logEvent(s.log, r).Str("reason", err.Error()).Int("status", status).Msg("request rejected")
	}
	writeJSON(w, status, body)
}

func logEvent(base *zerolog.Logger, r *http.Request) *zerolog.Event {
	l := logging.With(r.Context(), base)
	return l.Debug()
}
