package session

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

const (
	// ExpiryMargin is how long before its nominal expiry a credential stops being usable.
	ExpiryMargin = 5 * time.Minute

	DefaultExpiresIn = 86400
	DefaultTokenType = "Bearer"
	DefaultScope     = "openid profile email offline_access"
)

// Token is an OAuth token set as persisted in the tokens file.
type Token struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	IdToken      string `json:"id_token"`
	// ExpiresIn is the lifetime of the access token in seconds.
	ExpiresIn int    `json:"expires_in"`
	TokenType string `json:"token_type"`
	Scope     string `json:"scope"`
	// CreatedAt is in unix seconds, zero means unknown.
	CreatedAt float64 `json:"created_at"`
}

// UnmarshalJSON applies the defaults for expires_in, token_type and scope
// when they are missing.
func (t *Token) UnmarshalJSON(data []byte) error {
	type plain Token
	out := plain{
		ExpiresIn: DefaultExpiresIn,
		TokenType: DefaultTokenType,
		Scope:     DefaultScope,
	}
	err := json.Unmarshal(data, &out)
	if err != nil {
		return err
	}
	*t = Token(out)
	return nil
}

// Stamp sets CreatedAt to now.
func (t *Token) Stamp(now time.Time) {
	t.CreatedAt = float64(now.UnixNano()) / float64(time.Second)
}

// Created returns CreatedAt as a time, ok is false when it is unset.
func (t Token) Created() (time.Time, bool) {
	if t.CreatedAt <= 0 {
		return time.Time{}, false
	}
	return time.Unix(0, int64(t.CreatedAt*float64(time.Second))), true
}

func (t Token) elapsed(now time.Time) (time.Duration, bool) {
	created, ok := t.Created()
	if !ok {
		return 0, false
	}
	return now.Sub(created), true
}

// ExpiredAt reports whether the token is inside the expiry margin (or past
// expiry) at now. A token with no creation time is always expired.
func (t Token) ExpiredAt(now time.Time) bool {
	elapsed, ok := t.elapsed(now)
	if !ok {
		return true
	}
	lifetime := time.Duration(t.ExpiresIn)*time.Second - ExpiryMargin
	return elapsed >= lifetime
}

// ValidAt is the inverse of ExpiredAt.
func (t Token) ValidAt(now time.Time) bool {
	return !t.ExpiredAt(now)
}

// TimeRemaining returns the whole seconds left before nominal expiry, never negative.
func (t Token) TimeRemaining(now time.Time) int {
	elapsed, ok := t.elapsed(now)
	if !ok {
		return 0
	}
	remaining := float64(t.ExpiresIn) - elapsed.Seconds()
	if remaining <= 0 {
		return 0
	}
	return int(remaining)
}

// AuthHeader is the value of the Authorization header for this token.
func (t Token) AuthHeader() string {
	tokenType := t.TokenType
	if tokenType == "" || strings.EqualFold(tokenType, "bearer") {
		tokenType = "Bearer"
	}
	return fmt.Sprintf("%s %s", tokenType, t.AccessToken)
}

// Claims decodes the (unverified) payload of the access token.
func (t Token) Claims() (map[string]any, error) {
	parts := strings.Split(t.AccessToken, ".")
	if len(parts) != 3 {
		return nil, fmt.Errorf("access token is not a jwt: expected 3 parts, got %d", len(parts))
	}
	payload, err := base64.RawURLEncoding.DecodeString(strings.TrimRight(parts[1], "="))
	if err != nil {
		return nil, fmt.Errorf("decode jwt payload: %w", err)
	}
	var claims map[string]any
	err = json.Unmarshal(payload, &claims)
	if err != nil {
		return nil, fmt.Errorf("parse jwt payload: %w", err)
	}
	return claims, nil
}

// FormatRemaining renders seconds as "<h>h <m>m".
func FormatRemaining(seconds int) string {
	return fmt.Sprintf("%dh %dm", seconds/3600, (seconds%3600)/60)
}
