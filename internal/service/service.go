package service

import (
	"context"
	"math/rand/v2"
	"time"

	"vhrscraper/internal/components/assert"
	"vhrscraper/internal/components/chrono"
	"vhrscraper/internal/components/telemetry"
	"vhrscraper/internal/extract"
	"vhrscraper/internal/report"
	"vhrscraper/internal/session"

	"github.com/mazen160/go-random"
)

const (
	report_service_fetch   = "service.fetch"
	report_service_session = "service.session"
	report_service_run_id  = "service.run-id"
	report_service_sink    = "service.sink"
	report_service_total   = "service.total"
	report_service_failed  = "service.failed"
)

// PageFetcher loads the report page for a vin.
type PageFetcher interface {
	FetchReport(ctx context.Context, vin string) (*extract.Document, error)
}

// PageCache is implemented by fetchers that keep pages between runs.
type PageCache interface {
	Forget(vin string)
}

// ReportAPI loads a summary report from the json api.
type ReportAPI interface {
	FetchReport(ctx context.Context, vin string, token session.Token) (report.VehicleReport, error)
}

// RandomAPI is an abstraction over any code that generates random values.
//
// note: fault injection point
type RandomAPI interface {
	RunID() (string, error)
	// Delay returns a duration in [min, max].
	Delay(min, max time.Duration) time.Duration
}

type defaultRandomAPI struct{}

func (defaultRandomAPI) RunID() (string, error) {
	return random.String(8)
}

func (defaultRandomAPI) Delay(min, max time.Duration) time.Duration {
	if max <= min {
		return min
	}
	return min + rand.N(max-min+1)
}

// Sleeper pauses between vins, it must return early with ctx.Err() when ctx
// is cancelled.
type Sleeper = func(ctx context.Context, d time.Duration) error

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Backend holds the collaborators a run may use. Pages is required for html
// mode and API for api mode, the others may be nil.
type Backend struct {
	Pages   PageFetcher
	API     ReportAPI
	Holder  *session.Holder
	Cookies *session.CookieJar
}

type serviceConfig struct {
	rand  RandomAPI
	sleep Sleeper
}

type ServiceOption func(cfg *serviceConfig)

func WithCustomRandomAPI(rand RandomAPI) ServiceOption {
	return func(cfg *serviceConfig) {
		cfg.rand = rand
	}
}

func WithCustomSleeper(sleep Sleeper) ServiceOption {
	return func(cfg *serviceConfig) {
		cfg.sleep = sleep
	}
}

// Service runs batches of vins through a fetcher and the assembler.
type Service struct {
	backend   Backend
	assembler extract.Assembler
	rand      RandomAPI
	sleep     Sleeper
	time      chrono.API
	tel       telemetry.API
}

func NewService(backend Backend, time chrono.API, tel telemetry.API, options ...ServiceOption) Service {
	assert.NotNil(time)
	assert.NotNil(tel)

	cfg := serviceConfig{}
	for _, opt := range options {
		opt(&cfg)
	}

	s := Service{
		backend:   backend,
		assembler: extract.NewAssembler(time, tel),
		rand:      defaultRandomAPI{},
		sleep:     sleep,
		time:      time,
		tel:       telemetry.NewScopedAPI("service", tel),
	}
	if cfg.rand != nil {
		s.rand = cfg.rand
	}
	if cfg.sleep != nil {
		s.sleep = cfg.sleep
	}
	return s
}

// Options controls a single run.
type Options struct {
	// API fetches through the json api instead of the report page.
	API bool
	// Full assembles the detailed report, it has no effect in api mode
	// beyond wrapping the summary.
	Full bool
	// Concurrency above 1 scrapes vins in parallel without pacing.
	Concurrency int
	MinDelay    time.Duration
	MaxDelay    time.Duration
}
