package diag

import "fmt"

// Span locates a diagnostic: the unit file and the copy site inside it.
// Origin is the source-level copy number, 0 when the finding is not tied to
// a single copy.
type Span struct {
	File   string
	Site   string
	Origin uint32
}

// IsZero reports whether the span carries no location.
func (s Span) IsZero() bool {
	return s.File == "" && s.Site == "" && s.Origin == 0
}

func (s Span) String() string {
	switch {
	case s.IsZero():
		return "<no-span>"
	case s.Site == "":
		return s.File
	case s.Origin != 0:
		return fmt.Sprintf("%s:%s#%d", s.File, s.Site, s.Origin)
	default:
		return fmt.Sprintf("%s:%s", s.File, s.Site)
	}
}
