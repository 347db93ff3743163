// Package diag defines the diagnostic model shared by unit loading, lowering
// and execution.
//
// Diagnostic is the central record: a Severity, a stable numeric Code (see
// codes.go, rendered as UNIT1001, LOW2001, ...), a short Message, the Primary
// Span pointing at the unit file and copy site, and optional Notes.
//
// Producers emit through a Reporter so they stay independent of storage:
// BagReporter collects into a bounded Bag, DedupReporter filters repeats and
// NopReporter discards everything. ReportBuilder offers a fluent way to attach
// notes before calling Emit exactly once.
//
// Package diag does not perform IO; FormatShortDiagnostics produces the
// one-line-per-entry form used by the CLI and by tests.
package diag
