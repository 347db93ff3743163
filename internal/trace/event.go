package trace

import "time"

// Kind is the type of a trace event.
type Kind uint8

const (
	KindSpanBegin Kind = iota + 1
	KindSpanEnd
	KindPoint     // instant event
	KindHeartbeat // periodic liveness signal
	// KindError records a failure; it is kept at every level but off.
	KindError
)

var kindNames = [...]string{
	KindSpanBegin: "begin",
	KindSpanEnd:   "end",
	KindPoint:     "point",
	KindHeartbeat: "heartbeat",
	KindError:     "error",
}

// kindGlyphs prefix the event name in text output.
var kindGlyphs = [...]string{
	KindSpanBegin: "→ ",
	KindSpanEnd:   "← ",
	KindPoint:     "• ",
	KindHeartbeat: "♡ ",
	KindError:     "✗ ",
}

func (k Kind) String() string {
	if k > 0 && int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "unknown"
}

// Scope is the granularity of an event; coarser scopes have lower values.
type Scope uint8

const (
	// ScopeDriver covers whole CLI commands and sessions.
	ScopeDriver Scope = iota + 1
	// ScopePass covers pipeline stages (load, check, build, lower, exec).
	ScopePass
	// ScopeUnit covers one unit file.
	ScopeUnit
	// ScopeNode covers single copy sites and graph nodes.
	ScopeNode
)

var scopeNames = [...]string{ScopeDriver: "driver", ScopePass: "pass", ScopeUnit: "unit", ScopeNode: "node"}

func (s Scope) String() string {
	if s > 0 && int(s) < len(scopeNames) {
		return scopeNames[s]
	}
	return "unknown"
}

// Event is a single trace record.
type Event struct {
	Time     time.Time
	Seq      uint64 // global, monotonic; stamped by the tracer
	Kind     Kind
	Scope    Scope
	SpanID   uint64
	ParentID uint64 // 0 for roots
	GID      uint64 // goroutine, to tell concurrent units apart
	Name     string // e.g. "lower", "units/zoo.toml"
	// Origin is the copy site the event is about, 0 when none.
	Origin uint32
	Detail string
	Extra  map[string]string
}
