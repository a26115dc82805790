// client.go fetches rendered report pages from the dealer portal, it does
// not interpret them beyond building an extract.Document.

package carfax

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"time"

	"vhrscraper/internal/components/assert"
	"vhrscraper/internal/components/telemetry"
	"vhrscraper/internal/extract"

	cloudflarebp "github.com/DaRealFreak/cloudflare-bp-go"
	"github.com/go-resty/resty/v2"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/net/publicsuffix"
	"golang.org/x/time/rate"
)

var tracer = otel.Tracer("vhrscraper/scrapers/carfax")

const (
	report_client_fetch_report = "client.fetch-report"
	report_client_check_login  = "client.check-login"
	report_client_cache_size   = "client.cache-size"
)

const (
	DefaultBaseUrl   = "https://www.carfaxonline.com"
	DefaultAuthHost  = "auth.carfax.com"
	DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
)

var ErrNotFound = errors.New("report not found")

// ClientOptions configures Client, zero values fall back to defaults.
type ClientOptions struct {
	BaseUrl   string
	UserAgent string
	ProxyUrl  string
	Timeout   time.Duration
	// RequestsPerSecond also sets the burst, so no request is ever dropped.
	RequestsPerSecond float64
	CacheSize         int
	CacheTTL          time.Duration
	// Dump receives every http exchange when set.
	Dump telemetry.MessageOutput
}

func (o *ClientOptions) defaults() {
	if o.BaseUrl == "" {
		o.BaseUrl = DefaultBaseUrl
	}
	if o.UserAgent == "" {
		o.UserAgent = DefaultUserAgent
	}
	if o.Timeout == 0 {
		o.Timeout = time.Second * 30
	}
	if o.RequestsPerSecond == 0 {
		o.RequestsPerSecond = 2
	}
	if o.CacheSize == 0 {
		o.CacheSize = 256
	}
	if o.CacheTTL == 0 {
		o.CacheTTL = time.Minute * 15
	}
}

// Client is the http page driver. It is safe for concurrent use, the rate
// limiter and the document cache are shared between callers.
type Client struct {
	baseUrl *url.URL
	http    *resty.Client
	jar     http.CookieJar
	cache   *expirable.LRU[string, *extract.Document]
	tel     telemetry.API
}

func NewClient(opts ClientOptions, tel telemetry.API) (*Client, error) {
	assert.NotNil(tel)
	opts.defaults()

	tel = telemetry.NewScopedAPI("carfax_client", tel)

	baseUrl, err := url.Parse(opts.BaseUrl)
	if err != nil {
		return nil, fmt.Errorf("carfax client: parse base url: %w", err)
	}

	httpClient := resty.New()
	httpClient.SetBaseURL(opts.BaseUrl)
	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, err
	}
	httpClient.SetCookieJar(jar)
	if opts.ProxyUrl != "" {
		httpClient.SetProxy(opts.ProxyUrl)
	}
	httpClient.GetClient().Transport = cloudflarebp.AddCloudFlareByPass(httpClient.GetClient().Transport)

	httpClient.SetHeader("user-agent", opts.UserAgent)
	httpClient.SetHeader("accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	httpClient.SetHeader("accept-language", "en-US,en;q=0.9")
	httpClient.SetRedirectPolicy(resty.DomainCheckRedirectPolicy(baseUrl.Hostname(), DefaultAuthHost))
	httpClient.SetTimeout(opts.Timeout)

	rateLimiter := rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), max(int(opts.RequestsPerSecond), 1))
	httpClient.OnBeforeRequest(func(_ *resty.Client, req *resty.Request) error {
		return rateLimiter.Wait(req.Context())
	})

	telemetry.InstrumentResty(httpClient, tel, opts.Dump)

	return &Client{
		baseUrl: baseUrl,
		http:    httpClient,
		jar:     jar,
		cache:   expirable.NewLRU[string, *extract.Document](opts.CacheSize, nil, opts.CacheTTL),
		tel:     tel,
	}, nil
}

// SetCookies seeds the client with a browser session.
func (c *Client) SetCookies(cookies []*http.Cookie) {
	c.jar.SetCookies(c.baseUrl, cookies)
}

// SetBearer sends token with every request, an empty token removes it.
func (c *Client) SetBearer(token string) {
	c.http.SetAuthToken(token)
}

// ReportPaths are tried in order until one does not answer 404.
func ReportPaths(vin string) []string {
	query := url.Values{"vin": {vin}}.Encode()
	return []string{
		"/vhr/" + url.PathEscape(vin),
		"/cfm/vehicle-history-report.cfm?" + query,
		"/vhr?" + query,
	}
}

func (c *Client) get(ctx context.Context, path string) (*resty.Response, error) {
	return c.http.R().
		SetContext(ctx).
		Get(path)
}

// FetchReport returns the report page for vin. Pages that are neither a
// login page nor an error page are cached.
func (c *Client) FetchReport(ctx context.Context, vin string) (*extract.Document, error) {
	ctx, span := tracer.Start(ctx, "client:fetch-report")
	defer span.End()
	span.SetAttributes(attribute.String("vin", vin))

	if cached, hit := c.cache.Get(vin); hit {
		span.SetAttributes(attribute.Bool("cached", true))
		c.tel.ReportDebug("report cache hit", vin)
		return cached, nil
	}

	var res *resty.Response
	for _, path := range ReportPaths(vin) {
		var err error
		res, err = c.get(ctx, path)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "fetch failed")
			c.tel.ReportBroken(report_client_fetch_report, fmt.Errorf("fetch: %w", err), vin)
			return nil, fmt.Errorf("carfax client: fetch report: %w", err)
		}
		if res.StatusCode() != http.StatusNotFound {
			break
		}
		c.tel.ReportDebug("report path not found", vin, path)
	}

	switch {
	case res.StatusCode() == http.StatusNotFound:
		span.SetStatus(codes.Error, "not found")
		return nil, fmt.Errorf("carfax client: fetch report: %s: %w", vin, ErrNotFound)
	case res.IsError():
		err := fmt.Errorf("unexpected status %d", res.StatusCode())
		span.SetStatus(codes.Error, err.Error())
		c.tel.ReportWarning(report_client_fetch_report, err, vin)
		return nil, fmt.Errorf("carfax client: fetch report: %w", err)
	}

	doc := extract.NewDocument(res.String())
	if !doc.Empty() && !extract.RequiresLogin(doc) && !extract.SiteError(doc) {
		c.cache.Add(vin, doc)
		c.tel.ReportCount(report_client_cache_size, int64(c.cache.Len()))
	}
	return doc, nil
}

// CheckLogin fetches the portal home page and reports whether the session
// is authenticated.
func (c *Client) CheckLogin(ctx context.Context) (bool, error) {
	ctx, span := tracer.Start(ctx, "client:check-login")
	defer span.End()

	res, err := c.get(ctx, "/")
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "fetch failed")
		c.tel.ReportBroken(report_client_check_login, err)
		return false, fmt.Errorf("carfax client: check login: %w", err)
	}
	if res.StatusCode() == http.StatusUnauthorized || res.StatusCode() == http.StatusForbidden {
		return false, nil
	}
	return !extract.RequiresLogin(extract.NewDocument(res.String())), nil
}

// Forget drops a cached report.
func (c *Client) Forget(vin string) {
	c.cache.Remove(vin)
}
