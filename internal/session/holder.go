package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"vhrscraper/internal/components/assert"
	"vhrscraper/internal/components/chrono"
	"vhrscraper/internal/components/telemetry"
)

const (
	report_holder_refresh = "holder.refresh"
)

var ErrNotRefreshable = errors.New("token is not refreshable")

// Refresher exchanges a token for a new one.
type Refresher interface {
	Refresh(ctx context.Context, current Token) (Token, error)
}

// TokenSaver persists a refreshed token.
type TokenSaver interface {
	SaveToken(token Token) error
}

// Holder owns the token shared between concurrent scrapes.
//
// Only one refresh runs at a time. Readers keep seeing the previous token
// until the refreshed one is swapped in whole.
type Holder struct {
	mutex        sync.RWMutex
	refreshMutex sync.Mutex
	token        Token
	present      bool

	refresher Refresher
	saver     TokenSaver
	time      chrono.API
	tel       telemetry.API
}

// NewHolder creates a holder, refresher and saver may be nil.
func NewHolder(refresher Refresher, saver TokenSaver, time chrono.API, tel telemetry.API) *Holder {
	assert.NotNil(time)
	assert.NotNil(tel)

	return &Holder{
		refresher: refresher,
		saver:     saver,
		time:      time,
		tel:       telemetry.NewScopedAPI("session", tel),
	}
}

// Set replaces the held token.
func (h *Holder) Set(token Token) {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	h.token = token
	h.present = true
}

// Token returns a copy of the held token.
func (h *Holder) Token() (Token, bool) {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return h.token, h.present
}

// Valid reports whether a token is held and outside the expiry margin.
func (h *Holder) Valid() bool {
	token, ok := h.Token()
	return ok && token.ValidAt(h.time.Now())
}

// Refresh unconditionally exchanges the held token for a new one.
func (h *Holder) Refresh(ctx context.Context) (Token, error) {
	h.refreshMutex.Lock()
	defer h.refreshMutex.Unlock()
	return h.refreshLocked(ctx)
}

// Ensure returns a valid token, refreshing it first if it has expired.
// Concurrent callers that find an expired token wait for a single refresh.
func (h *Holder) Ensure(ctx context.Context) (Token, error) {
	if token, ok := h.Token(); ok && token.ValidAt(h.time.Now()) {
		return token, nil
	}

	h.refreshMutex.Lock()
	defer h.refreshMutex.Unlock()

	// another caller may have refreshed while we waited
	if token, ok := h.Token(); ok && token.ValidAt(h.time.Now()) {
		return token, nil
	}
	return h.refreshLocked(ctx)
}

func (h *Holder) refreshLocked(ctx context.Context) (Token, error) {
	current, ok := h.Token()
	if !ok || current.RefreshToken == "" || h.refresher == nil {
		return Token{}, ErrNotRefreshable
	}

	refreshed, err := h.refresher.Refresh(ctx, current)
	if err != nil {
		h.tel.ReportBroken(report_holder_refresh, err)
		return Token{}, fmt.Errorf("refresh token: %w", err)
	}

	h.Set(refreshed)
	h.tel.ReportDebug(
		"refreshed token",
		fmt.Sprintf("valid for %s", FormatRemaining(refreshed.TimeRemaining(h.time.Now()))),
	)

	if h.saver != nil {
		err = h.saver.SaveToken(refreshed)
		if err != nil {
			h.tel.ReportWarning(report_holder_refresh, fmt.Errorf("persist refreshed token: %w", err))
		}
	}

	return refreshed, nil
}
