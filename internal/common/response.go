package common

import (
	"encoding/json"
	"net/http"
)

// ErrorBody is the error payload embedded in failed responses.
type ErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// JSON writes v wrapped in the success envelope the storefront consumes:
// {"success": true, "data": ...}.
func JSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"success": true,
		"data":    v,
	})
}

// JSONList writes a paginated collection response.
func JSONList(w http.ResponseWriter, status int, items any, p Pagination) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"success":    true,
		"data":       items,
		"pagination": p,
	})
}

// JSONError renders a failed response. The top-level message mirrors
// error.message because the storefront reads it directly on failures.
func JSONError(w http.ResponseWriter, status int, code, message string, details any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"success": false,
		"message": message,
		"error": ErrorBody{
			Code:    code,
			Message: message,
			Details: details,
		},
	})
}

// WriteAppError renders err through the canonical envelope, falling back to a
// generic 500 for unknown error values.
func WriteAppError(w http.ResponseWriter, err error) {
	appErr := AsAppError(err)
	if appErr == nil {
		JSONError(w, http.StatusInternalServerError, "INTERNAL", "internal error", nil)
		return
	}
	status := appErr.HTTPStatus
	if status == 0 {
		status = http.StatusInternalServerError
	}
	code := appErr.Code
	if code == "" {
		code = "INTERNAL"
	}
	message := appErr.Message
	if message == "" {
		message = "internal error"
	}
	JSONError(w, status, code, message, appErr.Details)
}
