package trace

import (
	"fmt"
	"strings"
)

// Level controls tracing verbosity.
type Level uint8

const (
	LevelOff    Level = iota
	LevelError        // only failures
	LevelPhase        // driver and pass boundaries
	LevelDetail       // per-unit events
	LevelDebug        // everything, down to copy sites
)

var levelNames = [...]string{
	LevelOff:    "off",
	LevelError:  "error",
	LevelPhase:  "phase",
	LevelDetail: "detail",
	LevelDebug:  "debug",
}

// finest is the most detailed scope each level records.
var finest = [...]Scope{
	LevelOff:    0,
	LevelError:  0, // failures go through Failure
	LevelPhase:  ScopePass,
	LevelDetail: ScopeUnit,
	LevelDebug:  ScopeNode,
}

func (l Level) String() string {
	if int(l) < len(levelNames) {
		return levelNames[l]
	}
	return "unknown"
}

// ParseLevel converts a string to a Level.
func ParseLevel(s string) (Level, error) {
	want := strings.ToLower(strings.TrimSpace(s))
	for l, name := range levelNames {
		if name == want {
			return Level(l), nil
		}
	}
	return LevelOff, fmt.Errorf("invalid trace level: %q (expected: %s)", s, strings.Join(levelNames[:], "|"))
}

// ShouldEmit reports whether spans and points at scope are recorded.
func (l Level) ShouldEmit(scope Scope) bool {
	if int(l) >= len(finest) {
		return false
	}
	return scope > 0 && scope <= finest[l]
}

// accepts reports whether a tracer at this level records ev.
func (l Level) accepts(ev *Event) bool {
	switch ev.Kind {
	case KindHeartbeat:
		return l > LevelOff
	case KindError:
		return l >= LevelError
	}
	return l.ShouldEmit(ev.Scope)
}
