package trace

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
	"time"
)

// Tracer receives trace events. Implementations are goroutine-safe.
type Tracer interface {
	Emit(ev *Event)
	// Flush writes out buffered events.
	Flush() error
	// Close flushes and releases the output.
	Close() error
	Level() Level
	// Enabled is Level() > LevelOff.
	Enabled() bool
}

// gate carries the level shared by every tracer implementation.
type gate struct{ level Level }

func (g gate) Level() Level  { return g.level }
func (g gate) Enabled() bool { return g.level > LevelOff }

type nopTracer struct{ gate }

func (nopTracer) Emit(*Event)  {}
func (nopTracer) Flush() error { return nil }
func (nopTracer) Close() error { return nil }

// Nop discards everything.
var Nop Tracer = nopTracer{}

// StorageMode selects where events go.
type StorageMode uint8

const (
	ModeStream StorageMode = iota + 1 // written as they happen
	ModeRing                          // last N kept, written on Close
	ModeBoth                          // stream + ring
)

var modeNames = map[StorageMode]string{ModeStream: "stream", ModeRing: "ring", ModeBoth: "both"}

func (m StorageMode) String() string {
	if s, ok := modeNames[m]; ok {
		return s
	}
	return "unknown"
}

// ParseMode converts a string to StorageMode.
func ParseMode(s string) (StorageMode, error) {
	want := strings.ToLower(strings.TrimSpace(s))
	for m, name := range modeNames {
		if name == want {
			return m, nil
		}
	}
	return ModeRing, fmt.Errorf("invalid storage mode: %q (expected: stream|ring|both)", s)
}

// Config holds tracer configuration.
type Config struct {
	Level  Level
	Mode   StorageMode
	Format Format // FormatAuto picks from OutputPath
	// Output overrides OutputPath when set.
	Output io.Writer
	// OutputPath is a file, or "-", "stderr" or "stdout".
	OutputPath string
	RingSize   int // default 4096
	Heartbeat  time.Duration
}

// New builds the tracer described by cfg. A ring-only tracer writes its
// retained events to the output when closed.
func New(cfg Config) (Tracer, error) {
	if cfg.Level == LevelOff {
		return Nop, nil
	}
	format := cfg.Format
	if format == FormatAuto {
		format = formatForPath(cfg.OutputPath)
	}
	if _, ok := modeNames[cfg.Mode]; !ok {
		return nil, fmt.Errorf("unknown storage mode: %v", cfg.Mode)
	}

	w, err := openOutput(cfg)
	if err != nil {
		return nil, err
	}
	switch cfg.Mode {
	case ModeStream:
		return NewStreamTracer(w, cfg.Level, format), nil
	case ModeRing:
		ring := NewRingTracer(cfg.RingSize, cfg.Level)
		ring.closeTo(w, format)
		return ring, nil
	default:
		return NewMultiTracer(cfg.Level,
			NewStreamTracer(w, cfg.Level, format),
			NewRingTracer(cfg.RingSize, cfg.Level)), nil
	}
}

func formatForPath(path string) Format {
	if strings.HasSuffix(path, ".ndjson") || strings.HasSuffix(path, ".jsonl") {
		return FormatNDJSON
	}
	return FormatText
}

func openOutput(cfg Config) (io.Writer, error) {
	if cfg.Output != nil {
		return cfg.Output, nil
	}
	switch cfg.OutputPath {
	case "", "-", "stderr":
		return os.Stderr, nil
	case "stdout":
		return os.Stdout, nil
	}
	f, err := os.Create(cfg.OutputPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open trace output: %w", err)
	}
	return &fileOutput{Writer: bufio.NewWriter(f), f: f}, nil
}

// fileOutput buffers writes to a trace file.
type fileOutput struct {
	*bufio.Writer
	f *os.File
}

func (o *fileOutput) Close() error {
	if err := o.Writer.Flush(); err != nil {
		_ = o.f.Close()
		return err
	}
	return o.f.Close()
}
