package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"vhrscraper/internal/extract"
	"vhrscraper/internal/report"
	"vhrscraper/internal/scrapers/carfax"
	"vhrscraper/internal/vin"

	"golang.org/x/sync/errgroup"
)

// Result is the outcome for a single vin. Full is set when the run asked for
// detailed reports, Report then mirrors its summary part.
type Result struct {
	Report report.VehicleReport
	Full   *report.FullReport
}

func newResult(r report.VehicleReport, full bool) Result {
	if !full {
		return Result{Report: r}
	}
	return Result{
		Report: r,
		Full:   &report.FullReport{VehicleReport: r},
	}
}

func newFullResult(r report.FullReport) Result {
	return Result{Report: r.VehicleReport, Full: &r}
}

// Row is the csv row in the column order matching the variant.
func (r Result) Row() []string {
	if r.Full != nil {
		return r.Full.Row()
	}
	return r.Report.Row()
}

// Value is the report as it should be serialized.
func (r Result) Value() any {
	if r.Full != nil {
		return *r.Full
	}
	return r.Report
}

func (r Result) Failed() bool {
	return r.Report.Failed()
}

// Sink receives every result in input order. Returning an error stops the
// run.
type Sink = func(ctx context.Context, result Result) error

// Summary describes a finished run.
type Summary struct {
	RunID     string
	Total     int
	Succeeded int
	Failed    int
	Duration  time.Duration
	Results   []Result
}

// Reports returns the summary part of every result.
func (s Summary) Reports() []report.VehicleReport {
	out := make([]report.VehicleReport, len(s.Results))
	for i, r := range s.Results {
		out[i] = r.Report
	}
	return out
}

// orderedSink buffers results that finish early so the sink always sees
// input order.
type orderedSink struct {
	mutex sync.Mutex
	sink  Sink
	next  int
	ready []*Result
}

func (o *orderedSink) put(ctx context.Context, index int, result Result) error {
	o.mutex.Lock()
	defer o.mutex.Unlock()

	o.ready[index] = &result
	for o.next < len(o.ready) && o.ready[o.next] != nil {
		if o.sink != nil {
			err := o.sink(ctx, *o.ready[o.next])
			if err != nil {
				return err
			}
		}
		o.next++
	}
	return nil
}

// Run scrapes every vin and hands each result to sink, which may be nil.
// Per-vin failures become error reports and never stop the batch, only
// context cancellation or a sink error do. The returned summary covers the
// results produced before the run stopped.
func (s Service) Run(ctx context.Context, vins []string, opts Options, sink Sink) (Summary, error) {
	start := s.time.Now()

	runId, err := s.rand.RunID()
	if err != nil {
		s.tel.ReportBroken(report_service_run_id, err)
		return Summary{}, fmt.Errorf("service: run id: %w", err)
	}
	s.tel.ReportDebug("starting run", runId, len(vins), opts.API, opts.Full, opts.Concurrency)

	if opts.API {
		s.prepareToken(ctx)
	}

	results := make([]Result, len(vins))
	done := make([]bool, len(vins))
	ordered := &orderedSink{sink: sink, ready: make([]*Result, len(vins))}
	emit := func(ctx context.Context, i int, result Result) error {
		results[i] = result
		done[i] = true
		err := ordered.put(ctx, i, result)
		if err != nil {
			s.tel.ReportBroken(report_service_sink, err, result.Report.VIN)
			return fmt.Errorf("service: sink: %w", err)
		}
		return nil
	}

	if opts.Concurrency > 1 {
		err = s.runConcurrent(ctx, vins, opts, emit)
	} else {
		err = s.runSequential(ctx, vins, opts, emit)
	}

	summary := Summary{
		RunID:    runId,
		Duration: s.time.Now().Sub(start),
	}
	for i, result := range results {
		if !done[i] {
			continue
		}
		summary.Results = append(summary.Results, result)
		summary.Total++
		if result.Failed() {
			summary.Failed++
		} else {
			summary.Succeeded++
		}
	}
	s.tel.ReportCount(report_service_total, int64(summary.Total))
	s.tel.ReportCount(report_service_failed, int64(summary.Failed))
	return summary, err
}

type emitter = func(ctx context.Context, i int, result Result) error

func (s Service) runSequential(ctx context.Context, vins []string, opts Options, emit emitter) error {
	for i, candidate := range vins {
		if i > 0 {
			err := s.sleep(ctx, s.rand.Delay(opts.MinDelay, opts.MaxDelay))
			if err != nil {
				return err
			}
		}
		result, err := s.scrape(ctx, candidate, opts)
		if err != nil {
			return err
		}
		err = emit(ctx, i, result)
		if err != nil {
			return err
		}
	}
	return nil
}

func (s Service) runConcurrent(ctx context.Context, vins []string, opts Options, emit emitter) error {
	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(opts.Concurrency)

	for i, candidate := range vins {
		group.Go(func() error {
			result, err := s.scrape(groupCtx, candidate, opts)
			if err != nil {
				return err
			}
			return emit(groupCtx, i, result)
		})
	}
	err := group.Wait()
	if err != nil {
		return err
	}
	return ctx.Err()
}

// prepareToken refreshes an expired token once before an api run.
func (s Service) prepareToken(ctx context.Context) {
	if s.backend.Holder == nil || s.backend.Holder.Valid() {
		return
	}
	_, err := s.backend.Holder.Ensure(ctx)
	if err != nil {
		s.tel.ReportWarning(report_service_session, err)
	}
}

func (s Service) authenticated(opts Options) bool {
	holderValid := s.backend.Holder != nil && s.backend.Holder.Valid()
	if opts.API {
		return holderValid
	}
	if s.backend.Cookies != nil && s.backend.Cookies.AuthenticatedAt(s.time.Now()) {
		return true
	}
	return holderValid
}

func (s Service) failed(id, message string, opts Options) Result {
	r := report.NewVehicleReport(id, s.time.Now())
	r.Error = message
	return newResult(r, opts.Full)
}

// scrape produces the result for one vin. The error is only ever the
// context's.
func (s Service) scrape(ctx context.Context, candidate string, opts Options) (Result, error) {
	err := ctx.Err()
	if err != nil {
		return Result{}, err
	}

	id, err := vin.Validate(candidate)
	if err != nil {
		if opts.Full {
			return newFullResult(s.assembler.AssembleFull(candidate, nil)), nil
		}
		return newResult(s.assembler.Assemble(candidate, nil), false), nil
	}

	if !s.authenticated(opts) {
		s.tel.ReportWarning(report_service_session, id)
		return s.failed(id, report.ErrSessionInvalid, opts), nil
	}

	if opts.API {
		return s.scrapeAPI(ctx, id, opts)
	}

	doc, err := s.backend.Pages.FetchReport(ctx, id)
	if ctxErr := ctx.Err(); ctxErr != nil {
		return Result{}, ctxErr
	}
	if err != nil {
		s.tel.ReportBroken(report_service_fetch, err, id)
		return s.failed(id, err.Error(), opts), nil
	}
	if extract.RequiresLogin(doc) {
		s.tel.ReportWarning(report_service_session, id, report.ErrLoginRequired)
		return s.failed(id, report.ErrLoginRequired, opts), nil
	}

	var result Result
	if opts.Full {
		result = newFullResult(s.assembler.AssembleFull(id, doc))
	} else {
		result = newResult(s.assembler.Assemble(id, doc), false)
	}
	if result.Failed() || !result.Report.Extracted() {
		s.forget(id)
	}
	return result, nil
}

// forget evicts a page that produced nothing usable so the next run fetches
// it again.
func (s Service) forget(id string) {
	cache, ok := s.backend.Pages.(PageCache)
	if !ok {
		return
	}
	cache.Forget(id)
	s.tel.ReportDebug("evicted cached page", id)
}

func (s Service) scrapeAPI(ctx context.Context, id string, opts Options) (Result, error) {
	token, _ := s.backend.Holder.Token()
	r, err := s.backend.API.FetchReport(ctx, id, token)
	if ctxErr := ctx.Err(); ctxErr != nil {
		return Result{}, ctxErr
	}
	if err != nil {
		s.tel.ReportBroken(report_service_fetch, err, id)
		message := err.Error()
		if errors.Is(err, carfax.ErrTokenExpired) {
			message = report.ErrSessionInvalid
		}
		return s.failed(id, message, opts), nil
	}
	return newResult(r, opts.Full), nil
}

// Authenticated reports whether a run in the given mode would pass the
// session check right now.
func (s Service) Authenticated(opts Options) bool {
	return s.authenticated(opts)
}

var _ ReportAPI = (*carfax.APIClient)(nil)
var _ PageFetcher = (*carfax.Client)(nil)
var _ PageCache = (*carfax.Client)(nil)
