package driver

import (
	"context"
	"fmt"
	"runtime"
	"strconv"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"copyir/internal/arraycopy"
	"copyir/internal/layout"
	"copyir/internal/pipeline"
	"copyir/internal/trace"
)

// Options configures a lowering session.
type Options struct {
	Jobs           int
	MaxDiagnostics int
	// Exec runs every lowered site on the unit's sample heap.
	Exec   bool
	Target layout.Target
	Cache  *DiskCache
	Sink   pipeline.ProgressSink
}

// Session is one invocation of LowerFiles.
type Session struct {
	ID      uuid.UUID
	Results []UnitResult
	Stats   arraycopy.Stats
}

// Broken reports whether any unit failed.
func (s *Session) Broken() bool {
	for i := range s.Results {
		if s.Results[i].Broken() {
			return true
		}
	}
	return false
}

// LowerFiles lowers the unit files in parallel. Problems inside a unit are
// reported in its Bag; the error is reserved for cancellation.
func LowerFiles(ctx context.Context, files []string, opts Options) (*Session, error) {
	if opts.Target.Triple == "" {
		opts.Target = layout.X86_64LinuxGNU()
	}
	sess := &Session{ID: uuid.New(), Results: make([]UnitResult, len(files))}

	span, ctx := trace.Start(ctx, trace.ScopeDriver, "session")
	span.WithExtra("session", sess.ID.String()).WithExtra("units", strconv.Itoa(len(files)))
	defer func() {
		span.End(fmt.Sprintf("%d copies lowered", sess.Stats.Total()))
	}()

	if len(files) == 0 {
		return sess, nil
	}

	jobs := opts.Jobs
	if jobs <= 0 {
		jobs = runtime.GOMAXPROCS(0)
	}

	for _, path := range files {
		pipeline.Emit(opts.Sink, pipeline.Event{File: path, Stage: pipeline.StageLoad, Status: pipeline.StatusQueued})
	}

	// indices are unique per goroutine, no mutex needed
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(min(jobs, len(files)))
	for i, path := range files {
		g.Go(func() error {
			select {
			case <-gctx.Done():
				return gctx.Err()
			default:
			}
			sess.Results[i] = lowerUnit(gctx, path, opts)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return sess, err
	}

	for i := range sess.Results {
		sess.Stats.Add(sess.Results[i].Stats)
	}
	return sess, nil
}
