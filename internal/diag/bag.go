package diag

import (
	"sort"

	"fortio.org/safecast"
)

type Bag struct {
	items []Diagnostic
	max   uint16
}

func NewBag(max int) *Bag {
	limit, err := safecast.Conv[uint16](max)
	if err != nil || max <= 0 {
		limit = ^uint16(0)
	}
	return &Bag{
		items: make([]Diagnostic, 0, min(int(limit), 64)),
		max:   limit,
	}
}

// Add appends a diagnostic unless the limit is reached.
// Returns false when the diagnostic was dropped.
func (b *Bag) Add(d Diagnostic) bool {
	if len(b.items) >= int(b.max) {
		return false
	}
	b.items = append(b.items, d)
	return true
}

func (b *Bag) Cap() uint16 {
	return b.max
}

// HasErrors reports whether at least one diagnostic has Severity >= Error.
func (b *Bag) HasErrors() bool {
	for i := range b.items {
		if b.items[i].Severity >= SevError {
			return true
		}
	}
	return false
}

// HasWarnings reports whether at least one diagnostic has Severity >= Warning.
func (b *Bag) HasWarnings() bool {
	for i := range b.items {
		if b.items[i].Severity >= SevWarning {
			return true
		}
	}
	return false
}

func (b *Bag) Len() int {
	return len(b.items)
}

// Items returns a read-only view of the diagnostics.
// Do not modify the returned slice; it aliases the Bag's storage.
func (b *Bag) Items() []Diagnostic {
	return b.items
}

// Merge appends diagnostics from another Bag, growing max if needed.
func (b *Bag) Merge(other *Bag) {
	if other == nil {
		return
	}
	newTotal := len(b.items) + len(other.items)
	if newTotal > int(b.max) {
		if n, err := safecast.Conv[uint16](newTotal); err == nil {
			b.max = n
		} else {
			b.max = ^uint16(0)
		}
	}
	for _, d := range other.items {
		b.Add(d)
	}
}

// Sort orders diagnostics by file, site, origin, severity (desc), code (asc)
// for stable and deterministic output.
func (b *Bag) Sort() {
	sort.SliceStable(b.items, func(i, j int) bool {
		di, dj := b.items[i], b.items[j]
		if di.Primary.File != dj.Primary.File {
			return di.Primary.File < dj.Primary.File
		}
		if di.Primary.Site != dj.Primary.Site {
			return di.Primary.Site < dj.Primary.Site
		}
		if di.Primary.Origin != dj.Primary.Origin {
			return di.Primary.Origin < dj.Primary.Origin
		}
		if di.Severity != dj.Severity {
			return di.Severity > dj.Severity
		}
		return di.Code < dj.Code
	})
}

// Dedup drops repeats with the same code, severity, span and message.
func (b *Bag) Dedup() {
	seen := make(map[dedupKey]bool, len(b.items))
	newitems := make([]Diagnostic, 0, len(b.items))
	for _, d := range b.items {
		if seen[d.key()] {
			continue
		}
		seen[d.key()] = true
		newitems = append(newitems, d)
	}
	b.items = newitems
}
