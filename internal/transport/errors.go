package transport

import (
	"encoding/json"
	"net/http"

	"github.com/lguibr/pongrt/internal/apperr"
)

// httpStatus is the single error-to-status mapping table: every HTTP route
// translates a service error through this, never its own ad hoc switch.
func httpStatus(tag apperr.Tag) int {
	switch tag {
	case apperr.TagValidation:
		return http.StatusBadRequest
	case apperr.TagAuthorization:
		return http.StatusUnauthorized
	case apperr.TagNotFound:
		return http.StatusNotFound
	case apperr.TagConflict:
		return http.StatusConflict
	case apperr.TagRateLimit:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// writeError maps err through httpStatus and writes a JSON body. A plain
// (non-apperr) error is treated as internal so a forgotten wrap never leaks
// a raw Go error string to a client.
func writeError(w http.ResponseWriter, err error) {
	ae, ok := apperr.As(err)
	if !ok {
		ae = apperr.Internal(apperr.CodeInternal, "internal error", err)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(httpStatus(ae.Tag))
	json.NewEncoder(w).Encode(errorBody{Code: ae.Code, Message: ae.Message})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
