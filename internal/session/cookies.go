package session

import (
	"bufio"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// AuthCookieNames are the cookies the portal sets once a dealer has signed in.
var AuthCookieNames = []string{
	"auth0.u0ERZlg3gng09tmcfxmz3YesyFWWmloM.is.authenticated",
	"_legacy_auth0.u0ERZlg3gng09tmcfxmz3YesyFWWmloM.is.authenticated",
}

const (
	netscapeHeader = "# Netscape HTTP Cookie File"
	httpOnlyPrefix = "#HttpOnly_"
)

// Cookie is a single line of a Netscape cookie file.
type Cookie struct {
	Domain            string
	IncludeSubdomains bool
	Path              string
	Secure            bool
	// Expires is in unix seconds, zero means a session cookie.
	Expires  int64
	Name     string
	Value    string
	HttpOnly bool
}

// ExpiredAt reports whether the cookie has an expiry at or before now.
func (c Cookie) ExpiredAt(now time.Time) bool {
	return c.Expires != 0 && c.Expires <= now.Unix()
}

func (c Cookie) HTTPCookie() *http.Cookie {
	out := &http.Cookie{
		Name:     c.Name,
		Value:    c.Value,
		Domain:   c.Domain,
		Path:     c.Path,
		Secure:   c.Secure,
		HttpOnly: c.HttpOnly,
	}
	if c.Expires != 0 {
		out.Expires = time.Unix(c.Expires, 0)
	}
	return out
}

// CookieJar is an ordered set of cookies keyed by (domain, path, name).
type CookieJar struct {
	cookies []Cookie
}

func NewCookieJar(cookies ...Cookie) *CookieJar {
	jar := &CookieJar{}
	for _, c := range cookies {
		jar.Set(c)
	}
	return jar
}

// Set adds the cookie or replaces the one with the same domain, path and name.
func (j *CookieJar) Set(c Cookie) {
	for i, existing := range j.cookies {
		if existing.Domain == c.Domain && existing.Path == c.Path && existing.Name == c.Name {
			j.cookies[i] = c
			return
		}
	}
	j.cookies = append(j.cookies, c)
}

// Get returns the first cookie with the given name.
func (j *CookieJar) Get(name string) (Cookie, bool) {
	for _, c := range j.cookies {
		if c.Name == name {
			return c, true
		}
	}
	return Cookie{}, false
}

func (j *CookieJar) Contains(name string) bool {
	_, ok := j.Get(name)
	return ok
}

func (j *CookieJar) Len() int {
	return len(j.cookies)
}

func (j *CookieJar) Clear() {
	j.cookies = nil
}

// Cookies returns a copy of every cookie in file order.
func (j *CookieJar) Cookies() []Cookie {
	out := make([]Cookie, len(j.cookies))
	copy(out, j.cookies)
	return out
}

// HTTPCookies returns the cookies that have not expired at now.
func (j *CookieJar) HTTPCookies(now time.Time) []*http.Cookie {
	var out []*http.Cookie
	for _, c := range j.cookies {
		if c.ExpiredAt(now) {
			continue
		}
		out = append(out, c.HTTPCookie())
	}
	return out
}

// AuthenticatedAt reports whether one of the auth cookies is set to "true"
// and has either no expiry or an expiry after now.
func (j *CookieJar) AuthenticatedAt(now time.Time) bool {
	for _, name := range AuthCookieNames {
		c, ok := j.Get(name)
		if !ok {
			continue
		}
		if !strings.EqualFold(c.Value, "true") {
			continue
		}
		if c.Expires == 0 || c.Expires > now.Unix() {
			return true
		}
	}
	return false
}

func parseBool(field string) bool {
	return strings.EqualFold(field, "TRUE")
}

func formatBool(b bool) string {
	if b {
		return "TRUE"
	}
	return "FALSE"
}

// ParseCookies reads a Netscape cookie file.
func ParseCookies(r io.Reader) (*CookieJar, error) {
	jar := &CookieJar{}
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimRight(scanner.Text(), "\r")
		if lineNo == 1 {
			line = strings.TrimPrefix(line, "\ufeff")
		}

		httpOnly := false
		if strings.HasPrefix(line, httpOnlyPrefix) {
			httpOnly = true
			line = strings.TrimPrefix(line, httpOnlyPrefix)
		}
		if strings.TrimSpace(line) == "" || strings.HasPrefix(line, "#") {
			continue
		}

		fields := strings.Split(line, "\t")
		// some exporters drop the trailing tab of an empty value
		if len(fields) == 6 {
			fields = append(fields, "")
		}
		if len(fields) != 7 {
			return nil, fmt.Errorf("parse cookies: line %d: expected 7 tab separated fields, got %d", lineNo, len(fields))
		}

		expires, err := strconv.ParseInt(strings.TrimSpace(fields[4]), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("parse cookies: line %d: invalid expiry: %w", lineNo, err)
		}

		jar.Set(Cookie{
			Domain:            fields[0],
			IncludeSubdomains: parseBool(fields[1]),
			Path:              fields[2],
			Secure:            parseBool(fields[3]),
			Expires:           expires,
			Name:              fields[5],
			Value:             fields[6],
			HttpOnly:          httpOnly,
		})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("parse cookies: %w", err)
	}

	return jar, nil
}

// WriteCookies writes the jar in the Netscape cookie file format.
func WriteCookies(w io.Writer, jar *CookieJar) error {
	var out strings.Builder
	out.WriteString(netscapeHeader)
	out.WriteString("\n# This file was generated by vhrscraper, edit at your own risk.\n\n")

	for _, c := range jar.cookies {
		domain := c.Domain
		if c.HttpOnly {
			domain = httpOnlyPrefix + domain
		}
		out.WriteString(strings.Join([]string{
			domain,
			formatBool(c.IncludeSubdomains),
			c.Path,
			formatBool(c.Secure),
			strconv.FormatInt(c.Expires, 10),
			c.Name,
			c.Value,
		}, "\t"))
		out.WriteString("\n")
	}

	_, err := io.WriteString(w, out.String())
	return err
}
