package session

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"
	"vhrscraper/internal/components/chrono"
	"vhrscraper/internal/components/telemetry"

	"github.com/stretchr/testify/require"
)

type countingRefresher struct {
	calls atomic.Int64
	clock chrono.API
	err   error
}

func (r *countingRefresher) Refresh(ctx context.Context, current Token) (Token, error) {
	n := r.calls.Add(1)
	if r.err != nil {
		return Token{}, r.err
	}
	// keeps concurrent Ensure callers waiting on the refresh lock
	time.Sleep(10 * time.Millisecond)
	next := current
	next.AccessToken = "access-" + string(rune('0'+n))
	next.Stamp(r.clock.Now())
	return next, nil
}

type memorySaver struct {
	saved []Token
}

func (m *memorySaver) SaveToken(token Token) error {
	m.saved = append(m.saved, token)
	return nil
}

func TestHolderEnsureRefreshesOnce(t *testing.T) {
	clock := chrono.NewFixed(t0)
	refresher := &countingRefresher{clock: clock}
	saver := &memorySaver{}
	holder := NewHolder(refresher, saver, clock, &telemetry.Recorder{})

	holder.Set(stampedToken(3600))
	require.True(t, holder.Valid())

	token, err := holder.Ensure(context.Background())
	require.NoError(t, err)
	require.Equal(t, "access", token.AccessToken)
	require.Equal(t, int64(0), refresher.calls.Load())

	clock.Advance(3400 * time.Second)
	require.False(t, holder.Valid())

	var wg sync.WaitGroup
	results := make([]Token, 8)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			token, err := holder.Ensure(context.Background())
			require.NoError(t, err)
			results[i] = token
		}(i)
	}
	wg.Wait()

	require.Equal(t, int64(1), refresher.calls.Load())
	for _, token := range results {
		require.Equal(t, "access-1", token.AccessToken)
		require.Equal(t, "refresh", token.RefreshToken)
	}
	require.True(t, holder.Valid())
	require.Len(t, saver.saved, 1)
}

func TestHolderRefreshFailureKeepsOldToken(t *testing.T) {
	clock := chrono.NewFixed(t0)
	rec := &telemetry.Recorder{}
	refresher := &countingRefresher{clock: clock, err: errors.New("invalid_grant")}
	holder := NewHolder(refresher, nil, clock, rec)

	original := stampedToken(3600)
	holder.Set(original)

	_, err := holder.Refresh(context.Background())
	require.Error(t, err)
	require.True(t, rec.Has(telemetry.LevelBroken, report_holder_refresh))

	current, ok := holder.Token()
	require.True(t, ok)
	require.Equal(t, original, current)
}

func TestHolderNotRefreshable(t *testing.T) {
	clock := chrono.NewFixed(t0)
	holder := NewHolder(nil, nil, clock, &telemetry.Recorder{})

	_, err := holder.Ensure(context.Background())
	require.ErrorIs(t, err, ErrNotRefreshable)

	token := stampedToken(3600)
	token.RefreshToken = ""
	holder.Set(token)
	clock.Advance(time.Hour)
	_, err = holder.Ensure(context.Background())
	require.ErrorIs(t, err, ErrNotRefreshable)
}

func TestOAuthRefresher(t *testing.T) {
	var form map[string]string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		form = map[string]string{
			"grant_type":    r.PostForm.Get("grant_type"),
			"client_id":     r.PostForm.Get("client_id"),
			"refresh_token": r.PostForm.Get("refresh_token"),
			"scope":         r.PostForm.Get("scope"),
		}
		w.Header().Set("content-type", "application/json")
		w.Write([]byte(`{"access_token": "fresh", "id_token": "fresh-id", "expires_in": 7200, "token_type": "Bearer"}`))
	}))
	defer server.Close()

	clock := chrono.NewFixed(t0.Add(time.Hour))
	refresher := NewOAuthRefresher(server.URL, "client-abc", clock, &telemetry.Recorder{})

	refreshed, err := refresher.Refresh(context.Background(), stampedToken(3600))
	require.NoError(t, err)

	require.Equal(t, "refresh_token", form["grant_type"])
	require.Equal(t, "client-abc", form["client_id"])
	require.Equal(t, "refresh", form["refresh_token"])
	require.Equal(t, DefaultScope, form["scope"])

	require.Equal(t, "fresh", refreshed.AccessToken)
	require.Equal(t, "refresh", refreshed.RefreshToken)
	require.Equal(t, 7200, refreshed.ExpiresIn)
	require.True(t, refreshed.ValidAt(clock.Now().Add(6899*time.Second)))
	require.False(t, refreshed.ValidAt(clock.Now().Add(6900*time.Second)))
}

func TestOAuthRefresherRejected(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		w.Write([]byte(`{"error": "invalid_grant"}`))
	}))
	defer server.Close()

	clock := chrono.NewFixed(t0)
	refresher := NewOAuthRefresher(server.URL, "", clock, &telemetry.Recorder{})

	_, err := refresher.Refresh(context.Background(), stampedToken(3600))
	require.Error(t, err)

	_, err = refresher.Refresh(context.Background(), Token{AccessToken: "a"})
	require.ErrorIs(t, err, ErrNotRefreshable)
}

func TestOAuthPasswordLogin(t *testing.T) {
	var grant, username, password string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.ParseForm() != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		grant = r.PostForm.Get("grant_type")
		username = r.PostForm.Get("username")
		password = r.PostForm.Get("password")
		w.Header().Set("content-type", "application/json")
		w.Write([]byte(`{"access_token": "first", "refresh_token": "r1", "expires_in": 86400}`))
	}))
	defer server.Close()

	clock := chrono.NewFixed(t0)
	refresher := NewOAuthRefresher(server.URL, "client-abc", clock, &telemetry.Recorder{})

	token, err := refresher.PasswordLogin(context.Background(), "dealer@example.com", "hunter2")
	require.NoError(t, err)
	require.Equal(t, "password", grant)
	require.Equal(t, "dealer@example.com", username)
	require.Equal(t, "hunter2", password)
	require.Equal(t, "first", token.AccessToken)
	require.Equal(t, DefaultTokenType, token.TokenType)
	require.True(t, token.ValidAt(clock.Now()))

	_, err = refresher.PasswordLogin(context.Background(), "dealer@example.com", "")
	require.ErrorIs(t, err, ErrNoCredentials)
}
