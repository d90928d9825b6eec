// Package identity provides anonymous per-device identity primitives.
// Players are never authenticated; the anon id only gives a reconnecting
// device a stable handle and a derived display nickname.
package identity

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"net"
	"net/http"
	"regexp"
	"strings"
	"time"
)

const (
	AnonCookieName   = "soup_anon_id"
	NicknameHeader   = "X-Soup-Nickname"
	anonCookieMaxAge = 30 * 24 * time.Hour
)

type contextKey int

const (
	playerIDKey contextKey = iota
	nicknameKey
)

var (
	anonIDPattern   = regexp.MustCompile(`^anon_[a-f0-9]{32}$`)
	nicknamePattern = regexp.MustCompile(`^[^\x00-\x1f]{1,32}$`)
)

// PlayerIDFromContext extracts the anonymous player ID from the request context.
func PlayerIDFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(playerIDKey).(string); ok {
		return v
	}
	return ""
}

// NicknameFromContext extracts the display nickname from the request context.
func NicknameFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(nicknameKey).(string); ok {
		return v
	}
	return ""
}

func generateAnonID() (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate anonymous id: %w", err)
	}
	return "anon_" + hex.EncodeToString(buf), nil
}

func isValidAnonID(id string) bool {
	return anonIDPattern.MatchString(id)
}

// DeriveNickname builds a fallback display name from a player id.
func DeriveNickname(playerID string) string {
	if len(playerID) > 13 {
		return "player-" + playerID[len(playerID)-8:]
	}
	return "player"
}

func sanitizeNickname(nick, playerID string) string {
	nick = strings.TrimSpace(nick)
	if nick == "" || !nicknamePattern.MatchString(nick) {
		return DeriveNickname(playerID)
	}
	return nick
}

func getOrCreateAnonID(w http.ResponseWriter, r *http.Request, isDev bool) (string, error) {
	if c, err := r.Cookie(AnonCookieName); err == nil && isValidAnonID(c.Value) {
		setAnonCookie(w, c.Value, isDev)
		return c.Value, nil
	}

	id, err := generateAnonID()
	if err != nil {
		return "", err
	}
	setAnonCookie(w, id, isDev)
	return id, nil
}

func setAnonCookie(w http.ResponseWriter, id string, isDev bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     AnonCookieName,
		Value:    id,
		Path:     "/",
		MaxAge:   int(anonCookieMaxAge.Seconds()),
		Expires:  time.Now().Add(anonCookieMaxAge),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Secure:   !isDev,
	})
}

// Middleware injects an anonymous per-device player id and a display
// nickname into the request context.
func Middleware(isDev bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			playerID, err := getOrCreateAnonID(w, r, isDev)
			if err != nil {
				http.Error(w, `{"error":"failed to establish anonymous identity"}`, http.StatusInternalServerError)
				return
			}

			nickname := sanitizeNickname(r.Header.Get(NicknameHeader), playerID)

			ctx := context.WithValue(r.Context(), playerIDKey, playerID)
			ctx = context.WithValue(ctx, nicknameKey, nickname)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// IPFromRequest returns a normalized remote IP for optional request tracing.
func IPFromRequest(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
