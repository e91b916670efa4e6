package handler

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/goalnest/goalnest/internal/repository"
	"github.com/goalnest/goalnest/internal/service"
	"github.com/goalnest/goalnest/internal/sharing"
	"github.com/goalnest/goalnest/internal/validation"
)

const maxBodyBytes = 1 << 20

var validate = validator.New()

type errorResponse struct {
	Error string `json:"error"`
}

// decode reads and validates a JSON body, answering 400 itself on failure.
// An empty body decodes to the zero value.
func decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	err := json.NewDecoder(r.Body).Decode(dst)
	if err != nil && !errors.Is(err, io.EOF) {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid JSON body"})
		return false
	}

	err = validate.Struct(dst)
	if err != nil {
		var verrs validator.ValidationErrors
		msg := err.Error()
		if errors.As(err, &verrs) && len(verrs) > 0 {
			msg = verrs[0].Field() + " failed " + verrs[0].Tag() + " validation"
		}
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: msg})
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, code int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	err := json.NewEncoder(w).Encode(body)
	if err != nil {
		slog.Error("failed to write response", "error", err)
	}
}

// writeError maps service and repository errors to a status code. Only
// server-side failures are logged.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	var verr *validation.Error
	code := http.StatusInternalServerError
	msg := "Internal server error"

	switch {
	case errors.As(err, &verr):
		code, msg = http.StatusBadRequest, verr.Error()
	case errors.Is(err, repository.ErrGoalNotFound),
		errors.Is(err, repository.ErrContactNotFound),
		errors.Is(err, repository.ErrSharedGoalNotFound),
		errors.Is(err, repository.ErrHintRecordNotFound),
		errors.Is(err, repository.ErrGoalHintNotFound):
		code, msg = http.StatusNotFound, err.Error()
	case errors.Is(err, service.ErrParentNotFound),
		errors.Is(err, service.ErrGoalCycle),
		errors.Is(err, service.ErrInvalidInvite):
		code, msg = http.StatusUnprocessableEntity, err.Error()
	case errors.Is(err, service.ErrContactNotAccepted):
		code, msg = http.StatusConflict, err.Error()
	case errors.Is(err, service.ErrBackupsDisabled):
		code, msg = http.StatusServiceUnavailable, err.Error()
	case errors.Is(err, sharing.ErrRejected), errors.Is(err, sharing.ErrMissing):
		code, msg = http.StatusBadGateway, err.Error()
	}

	if code >= http.StatusInternalServerError {
		slog.Error("request failed", "error", err, "method", r.Method, "path", r.URL.Path)
	}
	writeJSON(w, code, errorResponse{Error: msg})
}
