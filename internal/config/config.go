package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"time"
	devenv "vhrscraper/dev/env"
	"vhrscraper/internal/components/telemetry"
	"vhrscraper/internal/db"
	"vhrscraper/internal/notify"
	"vhrscraper/internal/scrapers/carfax"
	"vhrscraper/internal/session"
	"vhrscraper/pkg/configutil"

	"github.com/adrg/xdg"
)

const (
	AppName  = "vhrscraper"
	FileName = "vhrscraper.json5"

	DefaultMinDelay  = 2.0
	DefaultMaxDelay  = 5.0
	DefaultOutputDir = "output"
)

// Environment variables that override the configuration file.
const (
	EnvEmail       = "CARFAX_EMAIL"
	EnvPassword    = "CARFAX_PASSWORD"
	EnvCookiesFile = "COOKIES_FILE"
	EnvTokensFile  = "TOKENS_FILE"
	EnvMinDelay    = "MIN_DELAY"
	EnvMaxDelay    = "MAX_DELAY"
	EnvOutputDir   = "OUTPUT_DIR"
	EnvProxyUrl    = "PROXY_URL"
)

var ErrInvalidDelay = errors.New("min_delay must not exceed max_delay")

// Config is the shape of vhrscraper.json5. Delays and the cache ttl are in
// seconds, zero values take the defaults.
type Config struct {
	Email       string `json:"email"`
	Password    string `json:"password"`
	CookiesFile string `json:"cookies_file"`
	TokensFile  string `json:"tokens_file"`

	MinDelay    float64 `json:"min_delay"`
	MaxDelay    float64 `json:"max_delay"`
	Concurrency int     `json:"concurrency"`
	OutputDir   string  `json:"output_dir"`

	ProxyUrl          string  `json:"proxy_url"`
	BaseUrl           string  `json:"base_url"`
	ApiUrl            string  `json:"api_url"`
	TokenEndpoint     string  `json:"token_endpoint"`
	ClientId          string  `json:"client_id"`
	RequestsPerSecond float64 `json:"requests_per_second"`
	CacheSize         int     `json:"cache_size"`
	CacheTTL          float64 `json:"cache_ttl"`
	// DumpDir receives every http exchange when set.
	DumpDir string `json:"dump_dir"`

	Timezone string `json:"timezone"`
	Verbose  bool   `json:"verbose"`

	Database  db.Config         `json:"database"`
	Notify    notify.SmtpConfig `json:"notify"`
	Telemetry telemetry.Config  `json:"telemetry"`
}

// StateDir is where credentials and the report store live by default.
func StateDir() string {
	return filepath.Join(xdg.StateHome, AppName)
}

func Defaults() Config {
	state := StateDir()
	return Config{
		CookiesFile:   filepath.Join(state, "cookies.txt"),
		TokensFile:    filepath.Join(state, "tokens.json"),
		MinDelay:      DefaultMinDelay,
		MaxDelay:      DefaultMaxDelay,
		Concurrency:   1,
		OutputDir:     DefaultOutputDir,
		BaseUrl:       carfax.DefaultBaseUrl,
		ApiUrl:        carfax.DefaultApiUrl,
		TokenEndpoint: session.DefaultTokenEndpoint,
		Database: db.Config{
			File: filepath.Join(state, "reports.db"),
		},
	}
}

// LookupEnv has the signature of os.LookupEnv.
type LookupEnv = func(key string) (string, bool)

// Load reads the configuration at path, or searches the working directory
// and its parents for vhrscraper.json5 when path is empty. A missing file
// is not an error. Environment variables override the file.
func Load(path string) (Config, error) {
	return LoadWith(path, os.LookupEnv)
}

func LoadWith(path string, lookup LookupEnv) (Config, error) {
	var config Config
	var err error
	if path == "" {
		config, path, err = configutil.ReadRecursively[Config](FileName)
	} else {
		config, err = configutil.ReadConfig[Config](path)
	}
	if err != nil && !os.IsNotExist(err) {
		return Config{}, fmt.Errorf("config: read: %w", err)
	}
	if err == nil {
		slog.Debug("loaded config", "path", path)
	}

	config, err = configutil.WithDefaults(config, Defaults())
	if err != nil {
		return Config{}, fmt.Errorf("config: defaults: %w", err)
	}

	err = config.applyEnv(lookup)
	if err != nil {
		return Config{}, err
	}

	err = config.resolvePaths()
	if err != nil {
		return Config{}, err
	}

	err = config.Validate()
	if err != nil {
		return Config{}, err
	}
	return config, nil
}

func (c *Config) applyEnv(lookup LookupEnv) error {
	strs := []struct {
		key string
		out *string
	}{
		{key: EnvEmail, out: &c.Email},
		{key: EnvPassword, out: &c.Password},
		{key: EnvCookiesFile, out: &c.CookiesFile},
		{key: EnvTokensFile, out: &c.TokensFile},
		{key: EnvOutputDir, out: &c.OutputDir},
		{key: EnvProxyUrl, out: &c.ProxyUrl},
	}
	for _, s := range strs {
		value, ok := lookup(s.key)
		if ok && value != "" {
			*s.out = value
		}
	}

	floats := []struct {
		key string
		out *float64
	}{
		{key: EnvMinDelay, out: &c.MinDelay},
		{key: EnvMaxDelay, out: &c.MaxDelay},
	}
	for _, f := range floats {
		value, ok := lookup(f.key)
		if !ok || value == "" {
			continue
		}
		parsed, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return fmt.Errorf("config: %s: %w", f.key, err)
		}
		*f.out = parsed
	}
	return nil
}

func (c *Config) resolvePaths() error {
	paths := []*string{
		&c.CookiesFile,
		&c.TokensFile,
		&c.OutputDir,
		&c.DumpDir,
		&c.Database.File,
	}
	for _, p := range paths {
		resolved, err := devenv.ResolvePath(*p)
		if err != nil {
			return fmt.Errorf("config: resolve %s: %w", *p, err)
		}
		*p = resolved
	}
	return nil
}

func (c Config) Validate() error {
	if c.MinDelay < 0 || c.MaxDelay < 0 {
		return fmt.Errorf("config: negative delay: %w", ErrInvalidDelay)
	}
	if c.MinDelay > c.MaxDelay {
		return fmt.Errorf("config: %.1fs > %.1fs: %w", c.MinDelay, c.MaxDelay, ErrInvalidDelay)
	}
	if c.Concurrency < 1 {
		return fmt.Errorf("config: concurrency must be at least 1, got %d", c.Concurrency)
	}
	return nil
}

func seconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}

// Delays returns the pacing range between sequential scrapes.
func (c Config) Delays() (time.Duration, time.Duration) {
	return seconds(c.MinDelay), seconds(c.MaxDelay)
}

func (c Config) HasCredentials() bool {
	return c.Email != "" && c.Password != ""
}

// ClientOptions configures the page driver, dump is optional.
func (c Config) ClientOptions(dump telemetry.MessageOutput) carfax.ClientOptions {
	return carfax.ClientOptions{
		BaseUrl:           c.BaseUrl,
		ProxyUrl:          c.ProxyUrl,
		RequestsPerSecond: c.RequestsPerSecond,
		CacheSize:         c.CacheSize,
		CacheTTL:          seconds(c.CacheTTL),
		Dump:              dump,
	}
}

func (c Config) APIOptions(dump telemetry.MessageOutput) carfax.APIOptions {
	return carfax.APIOptions{
		BaseUrl:  c.ApiUrl,
		ProxyUrl: c.ProxyUrl,
		Dump:     dump,
	}
}

// Summary is the non-secret view printed by the status command.
type Summary struct {
	HasCredentials bool   `json:"has_credentials"`
	CookiesFile    string `json:"cookies_file"`
	TokensFile     string `json:"tokens_file"`
	OutputDir      string `json:"output_dir"`
	DelayRange     string `json:"delay_range"`
	Concurrency    int    `json:"concurrency"`
	Proxy          bool   `json:"proxy"`
	Database       string `json:"database"`
	Notify         bool   `json:"notify"`
}

func (c Config) Summary() Summary {
	database := c.Database.File
	if c.Database.Url != "" {
		database = c.Database.Url
	}
	return Summary{
		HasCredentials: c.HasCredentials(),
		CookiesFile:    c.CookiesFile,
		TokensFile:     c.TokensFile,
		OutputDir:      c.OutputDir,
		DelayRange:     fmt.Sprintf("%.1fs-%.1fs", c.MinDelay, c.MaxDelay),
		Concurrency:    c.Concurrency,
		Proxy:          c.ProxyUrl != "",
		Database:       database,
		Notify:         c.Notify.Enabled(),
	}
}
