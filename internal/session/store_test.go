package session

import (
	"os"
	"path/filepath"
	"testing"
	"time"
	"vhrscraper/internal/components/chrono"
	"vhrscraper/internal/components/telemetry"

	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) (Store, *chrono.Fixed, *telemetry.Recorder) {
	dir := t.TempDir()
	clock := chrono.NewFixed(t0)
	rec := &telemetry.Recorder{}
	store := NewStore(
		filepath.Join(dir, "state", "tokens.json"),
		filepath.Join(dir, "state", "cookies.txt"),
		clock,
		rec,
	)
	return store, clock, rec
}

func TestStoreTokenLifecycle(t *testing.T) {
	store, clock, rec := newTestStore(t)

	_, ok := store.LoadToken()
	require.False(t, ok)
	require.True(t, rec.Has(telemetry.LevelWarning, report_store_load_token))

	token := stampedToken(3600)
	require.NoError(t, store.SaveToken(token))

	loaded, ok := store.LoadToken()
	require.True(t, ok)
	require.Equal(t, token, loaded)

	info, err := os.Stat(store.TokensPath())
	require.NoError(t, err)
	require.Equal(t, os.FileMode(0600), info.Mode().Perm())

	clock.Advance(3301 * time.Second)
	_, ok = store.LoadToken()
	require.False(t, ok)

	raw, err := store.ReadToken()
	require.NoError(t, err)
	require.Equal(t, "refresh", raw.RefreshToken)
}

func TestStoreTokenMalformed(t *testing.T) {
	store, _, rec := newTestStore(t)

	require.NoError(t, os.MkdirAll(filepath.Dir(store.TokensPath()), 0700))
	require.NoError(t, os.WriteFile(store.TokensPath(), []byte("{not json"), 0600))

	_, ok := store.LoadToken()
	require.False(t, ok)
	require.True(t, rec.Has(telemetry.LevelBroken, report_store_load_token))
}

func TestStoreTokenByteOrderMark(t *testing.T) {
	store, _, _ := newTestStore(t)

	require.NoError(t, os.MkdirAll(filepath.Dir(store.TokensPath()), 0700))
	contents := "\xef\xbb\xbf" + `{"access_token": "a", "refresh_token": "r", "expires_in": 3600, "created_at": ` +
		"1715679000" + `}`
	require.NoError(t, os.WriteFile(store.TokensPath(), []byte(contents), 0600))

	loaded, ok := store.LoadToken()
	require.True(t, ok)
	require.Equal(t, "a", loaded.AccessToken)
}

func TestStoreTokenWithoutCreationTime(t *testing.T) {
	store, clock, _ := newTestStore(t)

	require.NoError(t, os.MkdirAll(filepath.Dir(store.TokensPath()), 0700))
	contents := `{"access_token": "a", "refresh_token": "r", "expires_in": 3600}`
	require.NoError(t, os.WriteFile(store.TokensPath(), []byte(contents), 0600))

	loaded, ok := store.LoadToken()
	require.True(t, ok)
	created, ok := loaded.Created()
	require.True(t, ok)
	require.Equal(t, clock.Now().Unix(), created.Unix())
	require.True(t, loaded.ValidAt(clock.Now()))

	clock.Advance(3301 * time.Second)
	_, ok = store.LoadToken()
	require.False(t, ok)
}

func TestStoreCookies(t *testing.T) {
	store, clock, _ := newTestStore(t)

	_, ok := store.LoadCookies()
	require.False(t, ok)

	jar := NewCookieJar(Cookie{
		Domain:  "www.carfaxonline.com",
		Path:    "/",
		Secure:  true,
		Expires: t0.Add(time.Hour).Unix(),
		Name:    authCookie,
		Value:   "true",
	})
	require.NoError(t, store.SaveCookies(jar))

	loaded, ok := store.LoadCookies()
	require.True(t, ok)
	require.Equal(t, jar.Cookies(), loaded.Cookies())

	clock.Advance(2 * time.Hour)
	_, ok = store.LoadCookies()
	require.False(t, ok)

	require.NoError(t, store.SaveToken(stampedToken(3600)))
	require.NoError(t, store.Clear())
	_, err := os.Stat(store.CookiesPath())
	require.True(t, os.IsNotExist(err))
	_, err = os.Stat(store.TokensPath())
	require.True(t, os.IsNotExist(err))

	require.NoError(t, store.Clear())
}
