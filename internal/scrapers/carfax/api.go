package carfax

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"
	"unicode"

	"vhrscraper/internal/components/assert"
	"vhrscraper/internal/components/chrono"
	"vhrscraper/internal/components/telemetry"
	"vhrscraper/internal/extract"
	"vhrscraper/internal/report"
	"vhrscraper/internal/session"

	"github.com/antzucaro/matchr"
	"github.com/go-resty/resty/v2"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

const (
	report_api_fetch_report = "api.fetch-report"
	report_api_parse        = "api.parse"
)

const DefaultApiUrl = "https://dealers.carfax.com"

var (
	ErrTokenExpired = errors.New("token expired")
	ErrVinNotFound  = errors.New("vin not found")
	ErrNotJSON      = errors.New("response is not json")
)

// APIError is a non-200 answer from the report api.
type APIError struct {
	Status int
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error: %d", e.Status)
}

// minMakeSimilarity is the Jaro-Winkler score a make needs to be snapped
// onto a known make.
const minMakeSimilarity = 0.9

type APIOptions struct {
	BaseUrl  string
	ProxyUrl string
	Timeout  time.Duration
	Dump     telemetry.MessageOutput
}

// APIClient fetches summary reports from the json api with a bearer token.
type APIClient struct {
	http *resty.Client
	time chrono.API
	tel  telemetry.API
}

func NewAPIClient(opts APIOptions, clock chrono.API, tel telemetry.API) *APIClient {
	assert.NotNil(clock)
	assert.NotNil(tel)

	if opts.BaseUrl == "" {
		opts.BaseUrl = DefaultApiUrl
	}
	if opts.Timeout == 0 {
		opts.Timeout = 30 * time.Second
	}

	tel = telemetry.NewScopedAPI("carfax_api", tel)

	httpClient := resty.New()
	httpClient.SetBaseURL(opts.BaseUrl)
	httpClient.SetTimeout(opts.Timeout)
	if opts.ProxyUrl != "" {
		httpClient.SetProxy(opts.ProxyUrl)
	}
	httpClient.SetHeader("user-agent", DefaultUserAgent)
	httpClient.SetHeader("accept", "application/json")
	httpClient.SetHeader("origin", DefaultBaseUrl)
	httpClient.SetHeader("referer", DefaultBaseUrl+"/")
	telemetry.InstrumentResty(httpClient, tel, opts.Dump)

	return &APIClient{
		http: httpClient,
		time: clock,
		tel:  tel,
	}
}

type apiReport struct {
	Vehicle struct {
		Year  any    `json:"year"`
		Make  string `json:"make"`
		Model string `json:"model"`
		Trim  string `json:"trim"`
	} `json:"vehicle"`
	Summary struct {
		OwnerCount         *int `json:"ownerCount"`
		AccidentCount      *int `json:"accidentCount"`
		DamageReported     bool `json:"damageReported"`
		ServiceRecordCount *int `json:"serviceRecordCount"`
	} `json:"summary"`
	Odometer struct {
		LastReading any `json:"lastReading"`
	} `json:"odometer"`
	Title struct {
		Status string `json:"status"`
	} `json:"title"`
}

// FetchReport requests the report for vin. A GET that answers 404 or 405 is
// retried once as a POST with the vin in the body.
func (c *APIClient) FetchReport(ctx context.Context, vin string, token session.Token) (report.VehicleReport, error) {
	res, err := c.http.R().
		SetContext(ctx).
		SetHeader("authorization", token.AuthHeader()).
		Get("/api/vhr/" + vin)
	if err == nil && (res.StatusCode() == http.StatusNotFound || res.StatusCode() == http.StatusMethodNotAllowed) {
		c.tel.ReportDebug("api get rejected, retrying as post", vin, res.StatusCode())
		res, err = c.http.R().
			SetContext(ctx).
			SetHeader("authorization", token.AuthHeader()).
			SetHeader("content-type", "application/json").
			SetBody(map[string]string{"vin": vin}).
			Post("/api/vhr")
	}
	if err != nil {
		c.tel.ReportBroken(report_api_fetch_report, fmt.Errorf("fetch: %w", err), vin)
		return report.VehicleReport{}, fmt.Errorf("carfax api: fetch report: %w", err)
	}

	switch res.StatusCode() {
	case http.StatusOK:
	case http.StatusUnauthorized:
		return report.VehicleReport{}, ErrTokenExpired
	case http.StatusNotFound:
		return report.VehicleReport{}, ErrVinNotFound
	default:
		c.tel.ReportWarning(report_api_fetch_report, res.StatusCode(), vin)
		return report.VehicleReport{}, &APIError{Status: res.StatusCode()}
	}

	if !strings.Contains(res.Header().Get("content-type"), "application/json") {
		c.tel.ReportWarning(report_api_fetch_report, ErrNotJSON, res.Header().Get("content-type"), vin)
		return report.VehicleReport{}, ErrNotJSON
	}

	var body apiReport
	err = json.Unmarshal(res.Body(), &body)
	if err != nil {
		c.tel.ReportBroken(report_api_parse, err, vin)
		return report.VehicleReport{}, fmt.Errorf("carfax api: parse report: %w", err)
	}

	return c.toReport(vin, body), nil
}

func (c *APIClient) toReport(vin string, body apiReport) report.VehicleReport {
	out := report.NewVehicleReport(vin, c.time.Now())
	out.Vehicle = report.Vehicle{
		Year:  yearString(body.Vehicle.Year),
		Make:  c.canonicalMake(body.Vehicle.Make),
		Model: c.canonicalModel(body.Vehicle.Model),
		Trim:  strings.TrimSpace(body.Vehicle.Trim),
	}
	out.Owners = body.Summary.OwnerCount
	out.Accidents = body.Summary.AccidentCount
	if out.Accidents == nil {
		out.Accidents = report.Int(0)
	}
	out.ServiceRecords = body.Summary.ServiceRecordCount

	if reading, ok := extract.MileageValue(body.Odometer.LastReading); ok {
		out.Mileage = reading
	}
	if status, ok := extract.CanonicalTitle(body.Title.Status); ok {
		out.TitleStatus = status
	}

	damage := "false"
	if body.Summary.DamageReported {
		damage = "true"
	}
	out.RawData.Set(report.RawDamageReported, damage)
	return out
}

// yearString accepts the year as a number or a string.
func yearString(value any) string {
	switch v := value.(type) {
	case string:
		return strings.TrimSpace(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	}
	return ""
}

// canonicalMake returns the known spelling of name, snapping near misses
// such as "TOYOT" onto the closest known make.
func (c *APIClient) canonicalMake(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return ""
	}
	if known, ok := extract.LookupMake(name); ok {
		return known
	}

	best := ""
	bestScore := 0.0
	for _, known := range extract.KnownMakes {
		score := matchr.JaroWinkler(strings.ToLower(name), strings.ToLower(known), false)
		if score > bestScore {
			best, bestScore = known, score
		}
	}
	if bestScore >= minMakeSimilarity {
		c.tel.ReportDebug("make snapped to known make", name, best, bestScore)
		return best
	}
	return titleCase(name)
}

// canonicalModel title cases models sent in all capitals, models with
// digits such as "RAV4" are kept as sent.
func (c *APIClient) canonicalModel(name string) string {
	name = strings.TrimSpace(name)
	if name == "" || strings.ToUpper(name) != name {
		return name
	}
	for _, r := range name {
		if unicode.IsDigit(r) {
			return name
		}
	}
	return titleCase(name)
}

// titleCase builds a Caser per call, Casers are not safe for concurrent use.
func titleCase(s string) string {
	return cases.Title(language.English).String(strings.ToLower(s))
}
