package trace

import (
	"encoding/json"
	"fmt"
	"maps"
	"slices"
	"strconv"
	"strings"
)

// Format is the rendering of trace events.
type Format uint8

const (
	FormatAuto   Format = iota // pick from the output path
	FormatText                 // one human-readable line per event
	FormatNDJSON               // newline-delimited JSON
)

// ParseFormat converts a string to Format.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "auto":
		return FormatAuto, nil
	case "text":
		return FormatText, nil
	case "ndjson", "json":
		return FormatNDJSON, nil
	}
	return FormatAuto, fmt.Errorf("invalid trace format: %q (expected: auto|text|ndjson)", s)
}

// FormatEvent renders ev, including the trailing newline.
func FormatEvent(ev *Event, format Format) []byte {
	if format == FormatNDJSON {
		return formatNDJSON(ev)
	}
	return formatText(ev)
}

type jsonEvent struct {
	Time     string            `json:"time"`
	Seq      uint64            `json:"seq"`
	Kind     string            `json:"kind"`
	Scope    string            `json:"scope"`
	SpanID   uint64            `json:"span_id,omitempty"`
	ParentID uint64            `json:"parent_id,omitempty"`
	GID      uint64            `json:"gid,omitempty"`
	Name     string            `json:"name"`
	Origin   uint32            `json:"origin,omitempty"`
	Detail   string            `json:"detail,omitempty"`
	Extra    map[string]string `json:"extra,omitempty"`
}

func formatNDJSON(ev *Event) []byte {
	data, err := json.Marshal(jsonEvent{
		Time:     ev.Time.Format("2006-01-02T15:04:05.000000Z07:00"),
		Seq:      ev.Seq,
		Kind:     ev.Kind.String(),
		Scope:    ev.Scope.String(),
		SpanID:   ev.SpanID,
		ParentID: ev.ParentID,
		GID:      ev.GID,
		Name:     ev.Name,
		Origin:   ev.Origin,
		Detail:   ev.Detail,
		Extra:    ev.Extra,
	})
	if err != nil {
		return nil
	}
	return append(data, '\n')
}

// formatText renders "#seq [scope] glyph name copy#origin (detail) {k=v, ...}"
// with nested events indented and extras sorted by key.
func formatText(ev *Event) []byte {
	var sb strings.Builder
	fmt.Fprintf(&sb, "#%-6d [%-6s] ", ev.Seq, ev.Scope)
	if ev.ParentID > 0 {
		sb.WriteString("  ")
	}
	if int(ev.Kind) < len(kindGlyphs) {
		sb.WriteString(kindGlyphs[ev.Kind])
	}
	sb.WriteString(ev.Name)
	if ev.Origin != 0 {
		sb.WriteString(" copy#")
		sb.WriteString(strconv.FormatUint(uint64(ev.Origin), 10))
	}
	if ev.Detail != "" {
		sb.WriteString(" (" + ev.Detail + ")")
	}
	if len(ev.Extra) > 0 {
		pairs := make([]string, 0, len(ev.Extra))
		for _, k := range slices.Sorted(maps.Keys(ev.Extra)) {
			pairs = append(pairs, k+"="+ev.Extra[k])
		}
		sb.WriteString(" {" + strings.Join(pairs, ", ") + "}")
	}
	sb.WriteByte('\n')
	return []byte(sb.String())
}
