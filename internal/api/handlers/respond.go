package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/tangoverse/mneme/internal/service"
	"go.uber.org/zap"
)

const maxBodyBytes = 1 << 20

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// decodeBody decodes a JSON request body into v. An empty body is accepted
// when allowEmpty is set and leaves v untouched.
func decodeBody(r *http.Request, v any, allowEmpty bool) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		if allowEmpty && errors.Is(err, io.EOF) {
			return nil
		}
		return err
	}
	return nil
}

// writeServiceError maps service errors to HTTP statuses. Anything unknown is
// logged and reported as a 500 without leaking the cause.
func writeServiceError(w http.ResponseWriter, logger *zap.Logger, err error) {
	switch {
	case errors.Is(err, service.ErrAgentIDMissing),
		errors.Is(err, service.ErrEventTypeMissing),
		errors.Is(err, service.ErrInvalidOutcome),
		errors.Is(err, service.ErrInvalidSurprise),
		errors.Is(err, service.ErrRuleNameMissing),
		errors.Is(err, service.ErrInvalidLearnRate),
		errors.Is(err, service.ErrInvalidRuleOutcome):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, service.ErrUnknownBelief):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, service.ErrSessionNotFound),
		errors.Is(err, service.ErrRuleNotFound),
		errors.Is(err, service.ErrPatternNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, service.ErrSessionExists):
		writeError(w, http.StatusConflict, err.Error())
	default:
		logger.Error("request failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}
