package diag

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"
)

type shortDiagnostic struct {
	Severity string
	Code     string
	Path     string
	Site     string
	Origin   uint32
	Message  string
}

// FormatShortDiagnostics renders diagnostics into a stable, single-line-per-entry
// representation intended for CLI output and test expectations. Entries are
// sorted deterministically and returned as a single string (empty when there
// is nothing to report).
func FormatShortDiagnostics(diags []Diagnostic, includeNotes bool) string {
	if len(diags) == 0 {
		return ""
	}

	rendered := make([]shortDiagnostic, 0, len(diags))
	for i := range diags {
		rendered = appendDiagnostic(rendered, &diags[i], includeNotes)
	}

	sort.SliceStable(rendered, func(i, j int) bool {
		di, dj := rendered[i], rendered[j]
		if di.Path != dj.Path {
			return di.Path < dj.Path
		}
		if di.Site != dj.Site {
			return di.Site < dj.Site
		}
		if di.Origin != dj.Origin {
			return di.Origin < dj.Origin
		}
		if di.Severity != dj.Severity {
			return di.Severity < dj.Severity
		}
		if di.Code != dj.Code {
			return di.Code < dj.Code
		}
		return di.Message < dj.Message
	})

	var b strings.Builder
	for i, d := range rendered {
		loc := Span{File: d.Path, Site: d.Site, Origin: d.Origin}
		fmt.Fprintf(&b, "%s %s %s %s", d.Severity, d.Code, loc, d.Message)
		if i < len(rendered)-1 {
			b.WriteByte('\n')
		}
	}
	return b.String()
}

func appendDiagnostic(out []shortDiagnostic, d *Diagnostic, includeNotes bool) []shortDiagnostic {
	out = append(out, shortDiagnostic{
		Severity: d.Severity.String(),
		Code:     d.Code.ID(),
		Path:     normalizePath(d.Primary.File),
		Site:     d.Primary.Site,
		Origin:   d.Primary.Origin,
		Message:  sanitizeMessage(d.Message),
	})
	if includeNotes {
		for _, note := range d.Notes {
			out = append(out, shortDiagnostic{
				Severity: "note",
				Code:     d.Code.ID(),
				Path:     normalizePath(note.Span.File),
				Site:     note.Span.Site,
				Origin:   note.Span.Origin,
				Message:  sanitizeMessage(note.Msg),
			})
		}
	}
	return out
}

func normalizePath(path string) string {
	if path == "" {
		return ""
	}
	p := filepath.ToSlash(path)
	for strings.HasPrefix(p, "./") {
		p = strings.TrimPrefix(p, "./")
	}
	return p
}

func sanitizeMessage(msg string) string {
	msg = strings.ReplaceAll(msg, "\r\n", "\n")
	msg = strings.ReplaceAll(msg, "\r", "\n")
	msg = strings.ReplaceAll(msg, "\n", " ")
	return strings.TrimSpace(msg)
}
