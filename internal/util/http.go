package util

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"
)

const maxJSONBody = 1 << 20

// APIError is the body of every failed response. OK is always false.
type APIError struct {
	OK          bool       `json:"ok"`
	Code        string     `json:"code"`
	Error       string     `json:"error"`
	Field       string     `json:"field,omitempty"`
	LockedUntil *time.Time `json:"locked_until,omitempty"`
	RequestID   string     `json:"request_id,omitempty"`
}

func WriteJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func WriteError(w http.ResponseWriter, status int, code, msg, reqID string) {
	WriteJSON(w, status, APIError{Code: code, Error: msg, RequestID: reqID})
}

// DecodeJSON reads a bounded JSON body into dst. An empty body leaves dst untouched.
func DecodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxJSONBody))
	if err := dec.Decode(dst); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}
