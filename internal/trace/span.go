package trace

import (
	"runtime"
	"strconv"
	"strings"
	"sync/atomic"
	"time"
)

var (
	seqCounter  atomic.Uint64
	spanCounter atomic.Uint64
)

// NextSeq returns the next global event sequence number.
func NextSeq() uint64 { return seqCounter.Add(1) }

// NextSpanID returns a fresh span ID.
func NextSpanID() uint64 { return spanCounter.Add(1) }

// getGoroutineID parses the "goroutine N [...]" header of the current stack.
func getGoroutineID() uint64 {
	var buf [64]byte
	header := string(buf[:runtime.Stack(buf[:], false)])
	fields := strings.Fields(header)
	if len(fields) < 2 || fields[0] != "goroutine" {
		return 0
	}
	gid, err := strconv.ParseUint(fields[1], 10, 64)
	if err != nil {
		return 0
	}
	return gid
}

// Span is an open begin/end pair. A span from a disabled tracer is inert.
type Span struct {
	tracer  Tracer
	id      uint64
	parent  uint64
	gid     uint64
	scope   Scope
	name    string
	origin  uint32
	started time.Time
	extra   map[string]string
}

func (s *Span) live() bool {
	return s != nil && s.tracer != nil && s.tracer.Enabled()
}

func (s *Span) event(kind Kind, at time.Time) *Event {
	return &Event{
		Time:     at,
		Kind:     kind,
		Scope:    s.scope,
		SpanID:   s.id,
		ParentID: s.parent,
		GID:      s.gid,
		Name:     s.name,
		Origin:   s.origin,
	}
}

// Begin opens a span under parent (0 for a root) and emits its begin event.
func Begin(t Tracer, scope Scope, name string, parent uint64) *Span {
	if t == nil || !t.Level().ShouldEmit(scope) {
		return &Span{tracer: Nop}
	}
	s := &Span{
		tracer:  t,
		id:      NextSpanID(),
		parent:  parent,
		gid:     getGoroutineID(),
		scope:   scope,
		name:    name,
		started: time.Now(),
	}
	t.Emit(s.event(KindSpanBegin, s.started))
	return s
}

// End emits the end event with detail and the collected extras, and returns
// the span's duration.
func (s *Span) End(detail string) time.Duration {
	if !s.live() {
		return 0
	}
	now := time.Now()
	ev := s.event(KindSpanEnd, now)
	ev.Detail = detail
	ev.Extra = s.extra
	s.tracer.Emit(ev)
	return now.Sub(s.started)
}

// WithExtra adds a key/value pair to the end event.
func (s *Span) WithExtra(key, value string) *Span {
	if !s.live() {
		return s
	}
	if s.extra == nil {
		s.extra = make(map[string]string, 2)
	}
	s.extra[key] = value
	return s
}

// ID returns the span ID, 0 for inert spans.
func (s *Span) ID() uint64 {
	if s == nil {
		return 0
	}
	return s.id
}

// Point emits an instant event.
func Point(t Tracer, scope Scope, name, detail string, parent uint64) {
	emitPoint(t, &Event{Kind: KindPoint, Scope: scope, ParentID: parent, Name: name, Detail: detail})
}

// Site emits a node-scope event about copy site origin.
func Site(t Tracer, name string, origin uint32, detail string, parent uint64) {
	emitPoint(t, &Event{Kind: KindPoint, Scope: ScopeNode, ParentID: parent, Name: name, Origin: origin, Detail: detail})
}

// Failure records err under name. Failures are kept at every level but off.
func Failure(t Tracer, name string, err error, parent uint64) {
	if err == nil {
		return
	}
	emitPoint(t, &Event{Kind: KindError, Scope: ScopeDriver, ParentID: parent, Name: name, Detail: err.Error()})
}

func emitPoint(t Tracer, ev *Event) {
	if t == nil || !t.Level().accepts(ev) {
		return
	}
	ev.Time = time.Now()
	ev.GID = getGoroutineID()
	t.Emit(ev)
}
