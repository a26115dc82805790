package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"vhrscraper/internal/scrapers/carfax"

	"github.com/stretchr/testify/require"
)

func env(values map[string]string) LookupEnv {
	return func(key string) (string, bool) {
		value, ok := values[key]
		return value, ok
	}
}

func writeConfig(t *testing.T, contents string) string {
	path := filepath.Join(t.TempDir(), FileName)
	require.NoError(t, os.WriteFile(path, []byte(contents), 0644))
	return path
}

func TestLoadDefaults(t *testing.T) {
	config, err := LoadWith(filepath.Join(t.TempDir(), FileName), env(nil))
	require.NoError(t, err)

	require.Equal(t, filepath.Join(StateDir(), "cookies.txt"), config.CookiesFile)
	require.Equal(t, filepath.Join(StateDir(), "tokens.json"), config.TokensFile)
	require.Equal(t, filepath.Join(StateDir(), "reports.db"), config.Database.File)
	require.Equal(t, DefaultOutputDir, config.OutputDir)
	require.Equal(t, carfax.DefaultBaseUrl, config.BaseUrl)
	require.Equal(t, 1, config.Concurrency)
	require.False(t, config.HasCredentials())

	min, max := config.Delays()
	require.Equal(t, 2*time.Second, min)
	require.Equal(t, 5*time.Second, max)
}

func TestLoadFile(t *testing.T) {
	path := writeConfig(t, `{
		email: "dealer@example.com",
		password: "hunter2",
		min_delay: 0.5,
		max_delay: 1.5,
		concurrency: 4,
		database: { url: "libsql://reports.turso.io", auth_token: "secret" },
		notify: { server: "smtp.example.com", email_address: "scraper@example.com", to: ["dealer@example.com"] },
	}`)

	config, err := LoadWith(path, env(nil))
	require.NoError(t, err)
	require.True(t, config.HasCredentials())
	require.Equal(t, 4, config.Concurrency)
	require.Equal(t, "libsql://reports.turso.io?authToken=secret", config.Database.DSN())
	require.True(t, config.Notify.Enabled())

	min, max := config.Delays()
	require.Equal(t, 500*time.Millisecond, min)
	require.Equal(t, 1500*time.Millisecond, max)

	summary := config.Summary()
	require.True(t, summary.HasCredentials)
	require.Equal(t, "0.5s-1.5s", summary.DelayRange)
	require.Equal(t, "libsql://reports.turso.io", summary.Database)
	require.True(t, summary.Notify)
}

func TestLoadEnvOverrides(t *testing.T) {
	path := writeConfig(t, `{ email: "file@example.com", output_dir: "from-file" }`)

	config, err := LoadWith(path, env(map[string]string{
		EnvEmail:       "env@example.com",
		EnvPassword:    "secret",
		EnvCookiesFile: "/tmp/cookies.txt",
		EnvTokensFile:  "/tmp/tokens.json",
		EnvMinDelay:    "1",
		EnvMaxDelay:    "3.5",
		EnvOutputDir:   "",
		EnvProxyUrl:    "http://127.0.0.1:8080",
	}))
	require.NoError(t, err)
	require.Equal(t, "env@example.com", config.Email)
	require.Equal(t, "secret", config.Password)
	require.Equal(t, "/tmp/cookies.txt", config.CookiesFile)
	require.Equal(t, "/tmp/tokens.json", config.TokensFile)
	require.Equal(t, "from-file", config.OutputDir)
	require.Equal(t, 1.0, config.MinDelay)
	require.Equal(t, 3.5, config.MaxDelay)
	require.Equal(t, "http://127.0.0.1:8080", config.ClientOptions(nil).ProxyUrl)
	require.Equal(t, "http://127.0.0.1:8080", config.APIOptions(nil).ProxyUrl)
}

func TestLoadErrors(t *testing.T) {
	testCases := []struct {
		name     string
		contents string
		env      map[string]string
	}{
		{name: "min above max", contents: `{ min_delay: 6, max_delay: 3 }`},
		{name: "min above default max", contents: `{}`, env: map[string]string{EnvMinDelay: "10"}},
		{name: "malformed delay", contents: `{}`, env: map[string]string{EnvMaxDelay: "soon"}},
		{name: "malformed file", contents: `{ email: `},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := LoadWith(writeConfig(t, tc.contents), env(tc.env))
			require.Error(t, err)
		})
	}

	_, err := LoadWith(writeConfig(t, `{ min_delay: 6, max_delay: 3 }`), env(nil))
	require.ErrorIs(t, err, ErrInvalidDelay)
}
