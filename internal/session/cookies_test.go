package session

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

const authCookie = "auth0.u0ERZlg3gng09tmcfxmz3YesyFWWmloM.is.authenticated"
const legacyAuthCookie = "_legacy_auth0.u0ERZlg3gng09tmcfxmz3YesyFWWmloM.is.authenticated"

const cookieFile = "# Netscape HTTP Cookie File\n" +
	"# exported from the browser\n" +
	"\n" +
	"www.carfaxonline.com\tFALSE\t/\tTRUE\t0\t" + authCookie + "\ttrue\n" +
	"#HttpOnly_.carfaxonline.com\tTRUE\t/\tTRUE\t1893456000\tsession_id\tabc123\n" +
	".carfaxonline.com\tTRUE\t/\tFALSE\t1893456000\tempty\n"

func TestParseCookies(t *testing.T) {
	jar, err := ParseCookies(strings.NewReader(cookieFile))
	require.NoError(t, err)
	require.Equal(t, 3, jar.Len())

	c, ok := jar.Get(authCookie)
	require.True(t, ok)
	require.Equal(t, "www.carfaxonline.com", c.Domain)
	require.False(t, c.IncludeSubdomains)
	require.True(t, c.Secure)
	require.Equal(t, int64(0), c.Expires)

	session, ok := jar.Get("session_id")
	require.True(t, ok)
	require.True(t, session.HttpOnly)
	require.Equal(t, ".carfaxonline.com", session.Domain)
	require.Equal(t, "abc123", session.Value)

	empty, ok := jar.Get("empty")
	require.True(t, ok)
	require.Equal(t, "", empty.Value)

	require.True(t, jar.Contains("session_id"))
	require.False(t, jar.Contains("missing"))

	jar.Clear()
	require.Equal(t, 0, jar.Len())
}

func TestParseCookiesMalformed(t *testing.T) {
	_, err := ParseCookies(strings.NewReader("www.carfaxonline.com\tFALSE\t/\n"))
	require.Error(t, err)

	_, err = ParseCookies(strings.NewReader("a\tFALSE\t/\tTRUE\tsoon\tname\tvalue\n"))
	require.Error(t, err)
}

func TestCookiesRoundTrip(t *testing.T) {
	jar, err := ParseCookies(strings.NewReader(cookieFile))
	require.NoError(t, err)

	var buff bytes.Buffer
	require.NoError(t, WriteCookies(&buff, jar))
	require.True(t, strings.HasPrefix(buff.String(), netscapeHeader))

	reparsed, err := ParseCookies(&buff)
	require.NoError(t, err)
	require.Equal(t, jar.Cookies(), reparsed.Cookies())
}

func TestAuthenticatedAt(t *testing.T) {
	now := time.Date(2024, 5, 14, 9, 30, 0, 0, time.UTC)

	testCases := []struct {
		name     string
		cookies  []Cookie
		expected bool
	}{
		{name: "no cookies", expected: false},
		{
			name:     "session cookie",
			cookies:  []Cookie{{Domain: "www.carfaxonline.com", Path: "/", Name: authCookie, Value: "true"}},
			expected: true,
		},
		{
			name:     "uppercase value",
			cookies:  []Cookie{{Domain: "www.carfaxonline.com", Path: "/", Name: legacyAuthCookie, Value: "TRUE"}},
			expected: true,
		},
		{
			name:     "false value",
			cookies:  []Cookie{{Domain: "www.carfaxonline.com", Path: "/", Name: authCookie, Value: "false"}},
			expected: false,
		},
		{
			name:     "future expiry",
			cookies:  []Cookie{{Domain: "www.carfaxonline.com", Path: "/", Name: authCookie, Value: "true", Expires: now.Unix() + 1}},
			expected: true,
		},
		{
			name:     "expires now",
			cookies:  []Cookie{{Domain: "www.carfaxonline.com", Path: "/", Name: authCookie, Value: "true", Expires: now.Unix()}},
			expected: false,
		},
		{
			name: "expired primary but live legacy",
			cookies: []Cookie{
				{Domain: "www.carfaxonline.com", Path: "/", Name: authCookie, Value: "true", Expires: now.Unix() - 60},
				{Domain: "www.carfaxonline.com", Path: "/", Name: legacyAuthCookie, Value: "true"},
			},
			expected: true,
		},
		{
			name:     "unrelated cookie",
			cookies:  []Cookie{{Domain: "www.carfaxonline.com", Path: "/", Name: "is.authenticated", Value: "true"}},
			expected: false,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			jar := NewCookieJar(tc.cookies...)
			require.Equal(t, tc.expected, jar.AuthenticatedAt(now))
		})
	}
}

func TestHTTPCookiesSkipsExpired(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	jar := NewCookieJar(
		Cookie{Domain: ".carfaxonline.com", Path: "/", Name: "live", Value: "1", Expires: now.Unix() + 10},
		Cookie{Domain: ".carfaxonline.com", Path: "/", Name: "dead", Value: "1", Expires: now.Unix() - 10},
		Cookie{Domain: ".carfaxonline.com", Path: "/", Name: "session", Value: "1"},
	)

	cookies := jar.HTTPCookies(now)
	require.Len(t, cookies, 2)
	require.Equal(t, "live", cookies[0].Name)
	require.Equal(t, "session", cookies[1].Name)
	require.True(t, cookies[1].Expires.IsZero())
}
