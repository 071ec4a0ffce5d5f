// Package api implements the HTTP surface of the Tripmate realtime server:
// the REST API under /api/v1 and the WebSocket endpoints under /ws. It uses
// Chi as the router. REST routes authenticate with a Bearer JWT; WebSocket
// routes take the token from the `token` query parameter.
package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/goccy/go-json"
)

// envelope wraps every body: {"data": ...} on success and
// {"error": {"message": ..., "code": ...}} on failure.
type envelope map[string]any

var validate = validator.New(validator.WithRequiredStructEnabled())

// maxBodyBytes caps decoded request bodies.
const maxBodyBytes = 1 << 20

// JSON encodes payload as the response body with the given status.
func JSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func Ok(w http.ResponseWriter, payload any) {
	JSON(w, http.StatusOK, envelope{"data": payload})
}

func Created(w http.ResponseWriter, payload any) {
	JSON(w, http.StatusCreated, envelope{"data": payload})
}

func NoContent(w http.ResponseWriter) {
	w.WriteHeader(http.StatusNoContent)
}

type errorResponse struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

func errJSON(w http.ResponseWriter, status int, message, code string) {
	JSON(w, status, envelope{"error": errorResponse{Message: message, Code: code}})
}

func ErrBadRequest(w http.ResponseWriter, message string) {
	errJSON(w, http.StatusBadRequest, message, "bad_request")
}

func ErrUnauthorized(w http.ResponseWriter) {
	errJSON(w, http.StatusUnauthorized, "missing or invalid credentials", "unauthorized")
}

func ErrForbidden(w http.ResponseWriter, message string) {
	errJSON(w, http.StatusForbidden, message, "forbidden")
}

func ErrNotFound(w http.ResponseWriter) {
	errJSON(w, http.StatusNotFound, "not found", "not_found")
}

func ErrConflict(w http.ResponseWriter, message string) {
	errJSON(w, http.StatusConflict, message, "conflict")
}

// ErrUnprocessable reports a body that parsed but broke a field or domain rule.
func ErrUnprocessable(w http.ResponseWriter, message string) {
	errJSON(w, http.StatusUnprocessableEntity, message, "validation_error")
}

// ErrInternal never carries the cause; handlers log it themselves.
func ErrInternal(w http.ResponseWriter) {
	errJSON(w, http.StatusInternalServerError, "internal server error", "internal_error")
}

// decodeJSON reads a strict JSON body into dst and runs its validate tags.
// On false the response is already written.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	if err := dec.Decode(dst); err != nil {
		ErrBadRequest(w, "invalid request body: "+err.Error())
		return false
	}

	err := validate.Struct(dst)
	if err == nil {
		return true
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		ErrUnprocessable(w, validationMessage(verrs))
	} else {
		ErrBadRequest(w, err.Error())
	}
	return false
}

// validationMessage renders validator errors as "field: rule" pairs.
func validationMessage(verrs validator.ValidationErrors) string {
	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		rule := fe.Tag()
		if fe.Param() != "" {
			rule += "=" + fe.Param()
		}
		parts = append(parts, strings.ToLower(fe.Field())+": "+rule)
	}
	return "invalid fields: " + strings.Join(parts, ", ")
}
