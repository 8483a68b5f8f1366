package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/xraph/drip"
	"github.com/xraph/drip/types"
)

// ErrorBody is the JSON shape of every error response.
type ErrorBody struct {
	Code    int    `json:"code"`
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

var kindStatus = map[drip.Kind]int{
	drip.KindAuthorization:     http.StatusForbidden,
	drip.KindValidation:        http.StatusBadRequest,
	drip.KindStateConflict:     http.StatusConflict,
	drip.KindResourceExhausted: http.StatusTooManyRequests,
	drip.KindExternalTransfer:  http.StatusBadGateway,
	drip.KindNotFound:          http.StatusNotFound,
	drip.KindInternal:          http.StatusInternalServerError,
}

// StatusOf maps err to an HTTP status code.
func StatusOf(err error) int {
	if errors.Is(err, drip.ErrNoCaller) || errors.Is(err, drip.ErrInvalidCredentials) {
		return http.StatusUnauthorized
	}
	if status, ok := kindStatus[drip.KindOf(err)]; ok {
		return status
	}
	return http.StatusInternalServerError
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, StatusOf(err), ErrorBody{
		Code:    drip.CodeOf(err),
		Kind:    drip.KindOf(err).String(),
		Message: err.Error(),
	})
}

func noContent(w http.ResponseWriter) {
	w.WriteHeader(http.StatusNoContent)
}

func decode(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return drip.ValidationError{Field: "body", Message: err.Error()}
	}
	return nil
}

func streamID(r *http.Request) (uint64, error) {
	v, err := strconv.ParseUint(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		return 0, drip.ValidationError{Field: "id", Message: "must be an unsigned integer"}
	}
	return v, nil
}

func identity(r *http.Request, name string) (types.Identity, error) {
	id := types.Identity(mux.Vars(r)[name])
	if err := id.Validate(); err != nil {
		return "", drip.ValidationError{Field: name, Message: err.Error()}
	}
	return id, nil
}

func queryInt(r *http.Request, name string) (int, error) {
	s := r.URL.Query().Get(name)
	if s == "" {
		return 0, nil
	}
	v, err := strconv.Atoi(s)
	if err != nil || v < 0 {
		return 0, drip.ValidationError{Field: name, Message: "must be a non-negative integer"}
	}
	return v, nil
}

func queryUint(r *http.Request, name string) (uint64, bool, error) {
	s := r.URL.Query().Get(name)
	if s == "" {
		return 0, false, nil
	}
	v, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, false, drip.ValidationError{Field: name, Message: "must be an unsigned integer"}
	}
	return v, true, nil
}
