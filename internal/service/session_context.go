package service

import (
	"encoding/json"
	"strings"

	"github.com/google/uuid"

	"bizportal/internal/auth"
	"bizportal/internal/util"
)

// SessionContext is the per-client interactive state (anti-forgery token and
// the account it was issued for). It is distinct from the Session row and is
// passed in and out of every auth operation; the HTTP layer keeps it in a
// sealed cookie.
type SessionContext struct {
	ID               string `json:"id"`
	AntiForgeryToken string `json:"aft,omitempty"`
	AccountID        string `json:"acc,omitempty"`
}

func (c SessionContext) IsZero() bool {
	return c == SessionContext{}
}

// NewSessionContext returns a context with a fresh identifier and no token.
func NewSessionContext() SessionContext {
	return SessionContext{ID: uuid.NewString()}
}

func (c SessionContext) withAntiForgeryToken() (SessionContext, error) {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	if c.AntiForgeryToken != "" {
		return c, nil
	}
	tok, err := auth.RandomToken()
	if err != nil {
		return c, err
	}
	c.AntiForgeryToken = tok
	return c, nil
}

// SealSessionContext encrypts c for transport in a cookie.
func SealSessionContext(key []byte, c SessionContext) (string, error) {
	raw, err := json.Marshal(c)
	if err != nil {
		return "", err
	}
	return util.EncryptString(key, string(raw))
}

// OpenSessionContext reverses SealSessionContext. Any tampered or undecodable
// value yields the zero context so the caller simply starts a new one.
func OpenSessionContext(key []byte, sealed string) SessionContext {
	sealed = strings.TrimSpace(sealed)
	if sealed == "" {
		return SessionContext{}
	}
	plain, err := util.DecryptString(key, sealed)
	if err != nil {
		return SessionContext{}
	}
	var c SessionContext
	if err := json.Unmarshal([]byte(plain), &c); err != nil {
		return SessionContext{}
	}
	return c
}
