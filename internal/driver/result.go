package driver

import (
	"copyir/internal/arraycopy"
	"copyir/internal/diag"
	"copyir/internal/ir"
	"copyir/internal/observ"
)

// SiteSummary describes how one copy site was lowered and, when sample
// execution ran, what happened.
type SiteSummary struct {
	Origin   uint32
	Strategy string // copy variant, "elided" or "throws"
	Elem     string
	Disjoint bool
	Nodes    int
	Dump     string
	Run      *RunOutcome `msgpack:",omitempty"`
}

// RunOutcome is the result of executing a lowered site on the sample heap.
type RunOutcome struct {
	OK      bool
	Code    string
	Message string
	Copied  int
	Calls   int
	Moves   int
}

// UnitResult is everything the driver produced for one unit file.
type UnitResult struct {
	Path   string
	Name   string
	Bag    *diag.Bag
	Sites  []SiteSummary
	Stats  arraycopy.Stats
	Timing observ.Report
	Cached bool
	// Graphs holds the lowered graphs by site; empty for cached results.
	Graphs []*ir.Graph
}

// Broken reports whether the unit produced errors.
func (r *UnitResult) Broken() bool {
	return r.Bag != nil && r.Bag.HasErrors()
}
