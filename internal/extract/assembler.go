package extract

import (
	"fmt"

	"vhrscraper/internal/components/assert"
	"vhrscraper/internal/components/chrono"
	"vhrscraper/internal/components/telemetry"
	"vhrscraper/internal/report"
	"vhrscraper/internal/vin"
)

const (
	report_assemble_field      = "assembler.field"
	report_assemble_site_error = "assembler.site-error"
	report_assemble_rejected   = "assembler.rejected"
)

// ErrSiteError is attached to reports built from the portal's error page.
const ErrSiteError = "site error: " + SiteErrorMarker

// Assembler runs every extractor over a document and builds a report. It
// holds no per-document state, one Assembler may serve concurrent callers.
type Assembler struct {
	time chrono.API
	tel  telemetry.API
}

func NewAssembler(time chrono.API, tel telemetry.API) Assembler {
	assert.NotNil(time)
	assert.NotNil(tel)
	return Assembler{
		time: time,
		tel:  telemetry.NewScopedAPI("extract", tel),
	}
}

// pass records the first extractor failure of a single assembly.
type pass struct {
	tel telemetry.API
	vin string
	err string
}

// field runs fn, converting a panic into the pass error.
func (p *pass) field(name string, fn func()) {
	defer func() {
		recovered := recover()
		if recovered == nil {
			return
		}
		p.tel.ReportWarning(report_assemble_field, p.vin, name, recovered)
		if p.err == "" {
			p.err = fmt.Sprintf("extraction error: %s: %v", name, recovered)
		}
	}()
	fn()
}

// precheck handles the cases where no extraction runs. It returns the
// normalized vin and the error to attach, an empty error means extraction
// should proceed.
func (a Assembler) precheck(candidate string, doc *Document) (string, string) {
	normalized, err := vin.Validate(candidate)
	if err != nil {
		a.tel.ReportWarning(report_assemble_rejected, candidate, err)
		return vin.Normalize(candidate), report.ErrInvalidIdentifier
	}
	if doc.Empty() {
		a.tel.ReportWarning(report_assemble_rejected, normalized, report.ErrNoDocument)
		return normalized, report.ErrNoDocument
	}
	if SiteError(doc) {
		a.tel.ReportWarning(report_assemble_site_error, normalized)
		return normalized, ErrSiteError
	}
	return normalized, ""
}

// Assemble builds the summary report. Invalid identifiers, missing documents
// and error pages produce a report carrying only the error.
func (a Assembler) Assemble(candidate string, doc *Document) report.VehicleReport {
	id, failure := a.precheck(candidate, doc)
	out := report.NewVehicleReport(id, a.time.Now())
	if failure != "" {
		out.Error = failure
		return out
	}

	p := &pass{tel: a.tel, vin: id}
	p.field("vehicle", func() {
		if v, ok := VehicleInfo(doc); ok {
			out.Vehicle = v
		}
	})
	p.field("owners", func() {
		if n, ok := Owners(doc); ok {
			out.Owners = report.Int(n)
		}
	})
	p.field("accidents", func() {
		if n, ok := Accidents(doc); ok {
			out.Accidents = report.Int(n)
		}
	})
	p.field("service_records", func() {
		if n, ok := ServiceRecords(doc); ok {
			out.ServiceRecords = report.Int(n)
		}
	})
	p.field("mileage", func() {
		out.Mileage, _ = Mileage(doc)
	})
	p.field("title_status", func() {
		out.TitleStatus, _ = TitleStatus(doc)
	})
	p.field("raw_data", func() {
		out.RawData = RawData(doc)
	})

	out.Error = p.err
	a.tel.ReportDebug("assembled report", id, out.Error)
	return out
}

// AssembleFull builds the detailed report.
func (a Assembler) AssembleFull(candidate string, doc *Document) report.FullReport {
	id, failure := a.precheck(candidate, doc)
	out := report.NewFullReport(id, a.time.Now())
	if failure != "" {
		out.Error = failure
		return out
	}

	p := &pass{tel: a.tel, vin: id}
	p.field("vehicle", func() {
		if v, ok := VehicleInfo(doc); ok {
			out.Vehicle = v
		}
	})
	p.field("pricing", func() {
		out.Pricing = Pricing(doc)
	})
	p.field("specs", func() {
		out.Specs = Specs(doc)
	})
	p.field("last_state", func() {
		out.LastState, _ = LastState(doc)
	})
	p.field("owners", func() {
		if n, ok := Owners(doc); ok {
			out.Owners = report.Int(n)
		}
	})
	p.field("accidents", func() {
		if n, ok := Accidents(doc); ok {
			out.Accidents = report.Int(n)
			out.DamageReported = n > 0
		}
	})
	p.field("mileage", func() {
		out.Mileage, _ = Mileage(doc)
	})
	p.field("title_status", func() {
		out.TitleStatus = FullTitleStatus(doc)
	})
	p.field("title_flags", func() {
		out.TitleFlags = TitleFlags(doc)
	})
	p.field("detailed_history", func() {
		out.DetailedHistory = DetailedHistory(doc)
	})
	p.field("owner_history", func() {
		out.OwnerHistory = OwnerHistory(doc, out.DetailedHistory)
	})
	p.field("service_records", func() {
		n, ok := ServiceRecords(doc)
		if (!ok || n == 0) && len(out.DetailedHistory) > 0 {
			n, ok = len(out.DetailedHistory), true
		}
		if ok {
			out.ServiceRecords = report.Int(n)
		}
	})

	out.Error = p.err
	a.tel.ReportDebug("assembled full report", id, out.Error)
	return out
}
