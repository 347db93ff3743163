package diag

// Severity orders diagnostics; higher is worse.
type Severity uint8

const (
	SevInfo Severity = iota
	SevWarning
	SevError
)

var severityNames = [...]string{SevInfo: "info", SevWarning: "warning", SevError: "error"}

// String returns the lower-case label used in short output.
func (s Severity) String() string {
	if int(s) < len(severityNames) {
		return severityNames[s]
	}
	return "unknown"
}

type Note struct {
	Span Span
	Msg  string
}

// Diagnostic is one finding about a unit or a copy site.
type Diagnostic struct {
	Severity Severity
	Code     Code
	Message  string
	Primary  Span
	Notes    []Note
}

// New builds a diagnostic without notes.
func New(sev Severity, code Code, primary Span, msg string) Diagnostic {
	return Diagnostic{Severity: sev, Code: code, Primary: primary, Message: msg}
}

func (d Diagnostic) key() dedupKey {
	return dedupKey{code: d.Code, sev: d.Severity, span: d.Primary, msg: d.Message}
}

// dedupKey identifies repeats; notes do not take part.
type dedupKey struct {
	code Code
	sev  Severity
	span Span
	msg  string
}
