// Package prof captures Go runtime profiles around a lowering session.
package prof

import (
	"errors"
	"fmt"
	"os"
	"runtime"
	"runtime/pprof"
	"runtime/trace"
	"sync"
)

// Options names the output files. Empty paths disable that profile.
type Options struct {
	CPU   string
	Mem   string
	Trace string
}

// Enabled reports whether any profile is requested.
func (o Options) Enabled() bool {
	return o.CPU != "" || o.Mem != "" || o.Trace != ""
}

// Session is an active set of profilers. Stop is idempotent.
type Session struct {
	opts      Options
	cpuFile   *os.File
	traceFile *os.File
	once      sync.Once
	stopErr   error
}

// Start opens the requested outputs and starts CPU and execution tracing.
// Only one CPU profile and one runtime trace can run per process.
func Start(opts Options) (*Session, error) {
	s := &Session{opts: opts}
	if opts.CPU != "" {
		f, err := os.Create(opts.CPU)
		if err != nil {
			return nil, fmt.Errorf("cpu profile: %w", err)
		}
		if err := pprof.StartCPUProfile(f); err != nil {
			_ = f.Close()
			return nil, fmt.Errorf("cpu profile: %w", err)
		}
		s.cpuFile = f
	}
	if opts.Trace != "" {
		f, err := os.Create(opts.Trace)
		if err == nil {
			err = trace.Start(f)
			if err != nil {
				_ = f.Close()
			}
		}
		if err != nil {
			s.stopCPU()
			return nil, fmt.Errorf("runtime trace: %w", err)
		}
		s.traceFile = f
	}
	return s, nil
}

// Stop ends tracing and CPU profiling, then writes the heap profile.
func (s *Session) Stop() error {
	if s == nil {
		return nil
	}
	s.once.Do(func() {
		var errs []error
		if s.traceFile != nil {
			trace.Stop()
			errs = append(errs, s.traceFile.Close())
		}
		errs = append(errs, s.stopCPU())
		if s.opts.Mem != "" {
			errs = append(errs, writeHeap(s.opts.Mem))
		}
		s.stopErr = errors.Join(errs...)
	})
	return s.stopErr
}

func (s *Session) stopCPU() error {
	if s.cpuFile == nil {
		return nil
	}
	pprof.StopCPUProfile()
	err := s.cpuFile.Close()
	s.cpuFile = nil
	return err
}

func writeHeap(path string) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("heap profile: %w", err)
	}
	defer func() {
		if closeErr := f.Close(); err == nil {
			err = closeErr
		}
	}()
	runtime.GC()
	return pprof.WriteHeapProfile(f)
}
