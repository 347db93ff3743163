package diag

// Reporter receives diagnostics from passes.
type Reporter interface {
	Report(code Code, sev Severity, primary Span, msg string, notes []Note)
}

// NopReporter drops every diagnostic.
type NopReporter struct{}

func (NopReporter) Report(Code, Severity, Span, string, []Note) {}

// BagReporter stores into a Bag; a nil Bag drops everything.
type BagReporter struct{ Bag *Bag }

func (r BagReporter) Report(code Code, sev Severity, primary Span, msg string, notes []Note) {
	if r.Bag == nil {
		return
	}
	d := New(sev, code, primary, msg)
	d.Notes = notes
	r.Bag.Add(d)
}

// DedupReporter forwards each distinct diagnostic once. A unit that names
// the same missing class from several declarations reports it per span, but
// retried passes do not repeat it. Not safe for concurrent use; the driver
// keeps one per unit.
type DedupReporter struct {
	next Reporter
	seen map[dedupKey]struct{}
}

func NewDedupReporter(next Reporter) *DedupReporter {
	return &DedupReporter{next: next, seen: make(map[dedupKey]struct{})}
}

func (r *DedupReporter) Report(code Code, sev Severity, primary Span, msg string, notes []Note) {
	key := New(sev, code, primary, msg).key()
	if _, dup := r.seen[key]; dup {
		return
	}
	r.seen[key] = struct{}{}
	if r.next != nil {
		r.next.Report(code, sev, primary, msg, notes)
	}
}

// ReportBuilder collects notes for one diagnostic and emits it once.
type ReportBuilder struct {
	reporter Reporter
	diag     Diagnostic
	emitted  bool
}

func newBuilder(r Reporter, sev Severity, code Code, primary Span, msg string) *ReportBuilder {
	return &ReportBuilder{reporter: r, diag: New(sev, code, primary, msg)}
}

func ReportError(r Reporter, code Code, primary Span, msg string) *ReportBuilder {
	return newBuilder(r, SevError, code, primary, msg)
}

func ReportWarning(r Reporter, code Code, primary Span, msg string) *ReportBuilder {
	return newBuilder(r, SevWarning, code, primary, msg)
}

func ReportInfo(r Reporter, code Code, primary Span, msg string) *ReportBuilder {
	return newBuilder(r, SevInfo, code, primary, msg)
}

// WithNote attaches a note pointing at sp.
func (b *ReportBuilder) WithNote(sp Span, msg string) *ReportBuilder {
	b.diag.Notes = append(b.diag.Notes, Note{Span: sp, Msg: msg})
	return b
}

// Emit sends the diagnostic; later calls do nothing.
func (b *ReportBuilder) Emit() {
	if b.emitted {
		return
	}
	b.emitted = true
	if b.reporter != nil {
		b.reporter.Report(b.diag.Code, b.diag.Severity, b.diag.Primary, b.diag.Message, b.diag.Notes)
	}
}
