// Package httpx holds the JSON request/response helpers shared by the HTTP
// handlers: decode-with-validation, success encoding, and the error-to-status
// mapping from the errs taxonomy.
package httpx

import (
	"encoding/json"
	"net/http"

	"github.com/go-playground/validator/v10"

	"pso-control-plane/backend/internal/errs"
	"pso-control-plane/backend/internal/logging"
)

var validate = validator.New()

type errorBody struct {
	Error string `json:"error"`
}

// JSON writes v as a JSON response with the given status.
func JSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.Warn().Err(err).Msg("httpx: encode response")
	}
}

// Error writes err as a JSON error response. The status comes from the error
// kind; unknown kinds map to 500. Internal causes are logged, not exposed.
func Error(w http.ResponseWriter, err error) {
	status := errs.HTTPStatus(err)
	msg := err.Error()
	if status >= http.StatusInternalServerError {
		logging.Error().Err(err).Msg("request failed")
		msg = "internal error"
	}
	JSON(w, status, errorBody{Error: msg})
}

// Decode reads the request body into v and runs struct validation. Returns a
// KindValidation error on malformed JSON or failed constraints.
func Decode(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return errs.Wrap(errs.KindValidation, "malformed request body", err)
	}
	if err := validate.Struct(v); err != nil {
		return errs.Wrap(errs.KindValidation, "invalid request", err)
	}
	return nil
}
