package handler

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	jwtToken "vkrMiniApp/backend/internal/pkg/jwt"
)

// Sessions issues and checks the optional bearer token handed out by
// /auth/telegram. A zero value has sessions disabled.
type Sessions struct {
	secret []byte
	ttl    time.Duration
}

func NewSessions(secret string, ttl time.Duration) *Sessions {
	return &Sessions{secret: []byte(secret), ttl: ttl}
}

func (s *Sessions) enabled() bool {
	return s != nil && len(s.secret) > 0
}

// Issue returns "" when sessions are disabled.
func (s *Sessions) Issue(tgID int64) (string, error) {
	if !s.enabled() {
		return "", nil
	}

	return jwtToken.New(tgID, s.ttl, s.secret)
}

func (s *Sessions) Verify(token string) (int64, error) {
	if !s.enabled() {
		return 0, fmt.Errorf("%w: session tokens are disabled", ErrNotConfigured)
	}

	return jwtToken.VerifyToken(token, s.secret)
}

// callerTgID identifies the caller by bearer token or, failing that, by the
// tg_id query parameter.
func callerTgID(r *http.Request, sessions *Sessions) (int64, error) {
	if auth := r.Header.Get("Authorization"); auth != "" {
		token, ok := strings.CutPrefix(auth, "Bearer ")
		if !ok || strings.TrimSpace(token) == "" {
			return 0, jwtToken.ErrInvalidToken
		}

		return sessions.Verify(strings.TrimSpace(token))
	}

	raw := r.URL.Query().Get("tg_id")
	if raw == "" {
		return 0, fmt.Errorf("%w: tg_id is required", ErrBadRequest)
	}

	tgID, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: tg_id must be an integer", ErrBadRequest)
	}

	return tgID, nil
}

func pathInt64(r *http.Request, name string) (int64, error) {
	v, err := strconv.ParseInt(r.PathValue(name), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %s must be an integer", ErrBadRequest, name)
	}

	return v, nil
}
