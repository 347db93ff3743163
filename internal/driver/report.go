package driver

import (
	"fmt"
	"io"
	"strings"

	"copyir/internal/arraycopy"
	"copyir/internal/diag"
)

// Emit selects what WriteUnit prints per site.
type Emit string

const (
	EmitSummary Emit = "summary"
	EmitGraph   Emit = "graph"
)

// ParseEmit validates an --emit value.
func ParseEmit(s string) (Emit, error) {
	switch Emit(strings.ToLower(s)) {
	case EmitSummary:
		return EmitSummary, nil
	case EmitGraph:
		return EmitGraph, nil
	}
	return "", fmt.Errorf("invalid emit mode %q (expected: summary|graph)", s)
}

// WriteUnit prints one unit's result.
func WriteUnit(w io.Writer, res *UnitResult, emit Emit) {
	name := res.Name
	if name == "" {
		name = res.Path
	}
	suffix := ""
	if res.Cached {
		suffix = " (cached)"
	}
	fmt.Fprintf(w, "%s: %s%s\n", name, formatStats(len(res.Sites), res.Stats), suffix)
	for _, s := range res.Sites {
		fmt.Fprintf(w, "  #%d %s", s.Origin, s.Strategy)
		if s.Elem != "" {
			fmt.Fprintf(w, " elem=%s", s.Elem)
		}
		if s.Disjoint {
			fmt.Fprint(w, " disjoint")
		}
		fmt.Fprintf(w, " nodes=%d\n", s.Nodes)
		if r := s.Run; r != nil {
			switch {
			case r.OK:
				fmt.Fprintf(w, "    run: ok (calls=%d moves=%d)\n", r.Calls, r.Moves)
			case r.Code != "":
				fmt.Fprintf(w, "    run: %s %s\n", r.Code, r.Message)
			default:
				fmt.Fprintf(w, "    run: %s\n", r.Message)
			}
		}
		if emit == EmitGraph && s.Dump != "" {
			for _, line := range strings.Split(strings.TrimRight(s.Dump, "\n"), "\n") {
				fmt.Fprintf(w, "    %s\n", line)
			}
		}
	}
}

// WriteDiagnostics prints the unit's diagnostics, one per line.
func WriteDiagnostics(w io.Writer, res *UnitResult) {
	if res.Bag == nil {
		return
	}
	if out := diag.FormatShortDiagnostics(res.Bag.Items(), true); out != "" {
		fmt.Fprintln(w, strings.TrimRight(out, "\n"))
	}
}

func formatStats(sites int, st arraycopy.Stats) string {
	return fmt.Sprintf("%d sites, %d lowered (%d specialized, %d checked, %d generic), %d stub calls",
		sites, st.Total(), st.Specialized, st.Checked, st.Generic, st.Calls)
}

// WriteSession prints the session totals.
func WriteSession(w io.Writer, s *Session) {
	fmt.Fprintf(w, "session %s: %d units, %s\n", s.ID, len(s.Results), formatStats(sumSites(s), s.Stats))
}

func sumSites(s *Session) int {
	n := 0
	for i := range s.Results {
		n += len(s.Results[i].Sites)
	}
	return n
}
