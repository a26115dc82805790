package session

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"vhrscraper/internal/components/assert"
	"vhrscraper/internal/components/chrono"
	"vhrscraper/internal/components/telemetry"
)

const (
	report_store_load_token   = "store.load-token"
	report_store_save_token   = "store.save-token"
	report_store_load_cookies = "store.load-cookies"
	report_store_save_cookies = "store.save-cookies"
	report_store_clear        = "store.clear"
)

var ErrNoCredentials = errors.New("no credentials stored")

// Store persists the token set and the cookie jar as files.
//
// Loading never fails loudly: a missing, malformed or expired credential
// is reported to telemetry and returned as ok=false.
type Store struct {
	tokensPath  string
	cookiesPath string
	time        chrono.API
	tel         telemetry.API
}

func NewStore(tokensPath, cookiesPath string, time chrono.API, tel telemetry.API) Store {
	assert.NotEmptyStr(tokensPath)
	assert.NotEmptyStr(cookiesPath)
	assert.NotNil(time)
	assert.NotNil(tel)

	return Store{
		tokensPath:  tokensPath,
		cookiesPath: cookiesPath,
		time:        time,
		tel:         telemetry.NewScopedAPI("session", tel),
	}
}

func (s Store) TokensPath() string {
	return s.tokensPath
}

func (s Store) CookiesPath() string {
	return s.cookiesPath
}

// ReadToken reads the tokens file without checking expiry. A token without a
// creation time is stamped as created now and written back, so it ages from
// its first load.
func (s Store) ReadToken() (Token, error) {
	contents, err := os.ReadFile(s.tokensPath)
	if os.IsNotExist(err) {
		return Token{}, ErrNoCredentials
	}
	if err != nil {
		return Token{}, fmt.Errorf("read tokens: %w", err)
	}
	contents = bytes.TrimPrefix(contents, []byte("\xef\xbb\xbf"))

	var token Token
	err = json.Unmarshal(contents, &token)
	if err != nil {
		return Token{}, fmt.Errorf("parse tokens: %w", err)
	}
	if _, ok := token.Created(); !ok {
		token.Stamp(s.time.Now())
		s.tel.ReportDebug("token has no creation time, stamped at load", s.tokensPath)
		err = s.SaveToken(token)
		if err != nil {
			s.tel.ReportWarning(report_store_load_token, err, s.tokensPath)
		}
	}
	return token, nil
}

// LoadToken returns the stored token if it is present, well formed and
// outside the expiry margin.
func (s Store) LoadToken() (Token, bool) {
	token, err := s.ReadToken()
	if errors.Is(err, ErrNoCredentials) {
		s.tel.ReportWarning(report_store_load_token, "tokens file does not exist", s.tokensPath)
		return Token{}, false
	}
	if err != nil {
		s.tel.ReportBroken(report_store_load_token, err, s.tokensPath)
		return Token{}, false
	}

	now := s.time.Now()
	if token.ExpiredAt(now) {
		s.tel.ReportWarning(report_store_load_token, "token has expired", s.tokensPath)
		return Token{}, false
	}

	s.tel.ReportDebug(
		"loaded token",
		fmt.Sprintf("valid for %s", FormatRemaining(token.TimeRemaining(now))),
	)
	return token, true
}

// SaveToken rewrites the tokens file with the given token.
func (s Store) SaveToken(token Token) error {
	contents, err := json.MarshalIndent(token, "", "  ")
	if err != nil {
		s.tel.ReportBroken(report_store_save_token, err)
		return err
	}
	err = writeFileAtomic(s.tokensPath, contents)
	if err != nil {
		s.tel.ReportBroken(report_store_save_token, err, s.tokensPath)
		return err
	}
	s.tel.ReportDebug("saved token", s.tokensPath)
	return nil
}

// ReadCookies reads the cookie file without checking authentication.
func (s Store) ReadCookies() (*CookieJar, error) {
	f, err := os.Open(s.cookiesPath)
	if os.IsNotExist(err) {
		return nil, ErrNoCredentials
	}
	if err != nil {
		return nil, fmt.Errorf("read cookies: %w", err)
	}
	defer f.Close()
	return ParseCookies(f)
}

// LoadCookies returns the stored cookie jar if it is present, well formed and
// still holds a live authentication cookie.
func (s Store) LoadCookies() (*CookieJar, bool) {
	jar, err := s.ReadCookies()
	if errors.Is(err, ErrNoCredentials) {
		s.tel.ReportWarning(report_store_load_cookies, "cookies file does not exist", s.cookiesPath)
		return nil, false
	}
	if err != nil {
		s.tel.ReportBroken(report_store_load_cookies, err, s.cookiesPath)
		return nil, false
	}
	if !jar.AuthenticatedAt(s.time.Now()) {
		s.tel.ReportWarning(report_store_load_cookies, "session cookies have expired", s.cookiesPath)
		return nil, false
	}

	s.tel.ReportDebug("loaded cookies", jar.Len())
	return jar, true
}

// SaveCookies rewrites the cookie file with the given jar.
func (s Store) SaveCookies(jar *CookieJar) error {
	var buff bytes.Buffer
	err := WriteCookies(&buff, jar)
	if err != nil {
		s.tel.ReportBroken(report_store_save_cookies, err)
		return err
	}
	err = writeFileAtomic(s.cookiesPath, buff.Bytes())
	if err != nil {
		s.tel.ReportBroken(report_store_save_cookies, err, s.cookiesPath)
		return err
	}
	s.tel.ReportDebug("saved cookies", jar.Len())
	return nil
}

// Clear removes every stored credential.
func (s Store) Clear() error {
	var errs []error
	for _, path := range []string{s.tokensPath, s.cookiesPath} {
		err := os.Remove(path)
		if err != nil && !os.IsNotExist(err) {
			s.tel.ReportBroken(report_store_clear, err, path)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func writeFileAtomic(path string, contents []byte) error {
	dir := filepath.Dir(path)
	err := os.MkdirAll(dir, 0700)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	_, err = tmp.Write(contents)
	if err != nil {
		tmp.Close()
		return err
	}
	err = tmp.Close()
	if err != nil {
		return err
	}
	err = os.Chmod(tmp.Name(), 0600)
	if err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}
