package driver

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"copyir/internal/arraycopy"
	"copyir/internal/diag"
	"copyir/internal/exec"
	"copyir/internal/ir"
	"copyir/internal/layout"
	"copyir/internal/observ"
	"copyir/internal/pipeline"
	"copyir/internal/rt"
	"copyir/internal/trace"
	"copyir/internal/types"
	"copyir/internal/unit"
)

// errStageFailed stops a unit after a stage reported errors to the bag.
var errStageFailed = errors.New("stage failed")

type unitRun struct {
	ctx   context.Context
	opts  Options
	path  string
	res   *UnitResult
	rep   diag.Reporter
	timer *observ.Timer
	stage pipeline.Stage
}

func lowerUnit(ctx context.Context, path string, opts Options) UnitResult {
	res := UnitResult{Path: path, Bag: diag.NewBag(opts.MaxDiagnostics)}
	span, ctx := trace.Start(ctx, trace.ScopeUnit, path)
	u := &unitRun{
		ctx:   ctx,
		opts:  opts,
		path:  path,
		res:   &res,
		rep:   diag.NewDedupReporter(diag.BagReporter{Bag: res.Bag}),
		timer: observ.NewTimer(),
	}

	status := pipeline.StatusDone
	if err := u.run(); err != nil {
		status = pipeline.StatusError
		if !errors.Is(err, errStageFailed) {
			diag.ReportError(u.rep, diag.LowInvariant, diag.Span{File: path}, err.Error()).Emit()
		}
		pipeline.Emit(opts.Sink, pipeline.Event{File: path, Stage: u.stage, Status: status, Err: err})
	} else {
		if res.Cached {
			status = pipeline.StatusCached
		}
		pipeline.Emit(opts.Sink, pipeline.Event{File: path, Stage: u.stage, Status: status})
	}
	res.Timing = u.timer.Report()
	res.Bag.Sort()
	span.End(string(status))
	return res
}

// step runs fn as stage s, timing and tracing it.
func (u *unitRun) step(s pipeline.Stage, fn func() error) error {
	u.stage = s
	pipeline.Emit(u.opts.Sink, pipeline.Event{File: u.path, Stage: s, Status: pipeline.StatusWorking})
	done := u.timer.Track(string(s))
	sp, _ := trace.Start(u.ctx, trace.ScopePass, string(s))
	err := fn()
	note := ""
	if err != nil {
		note = err.Error()
	}
	done(note)
	sp.End(note)
	return err
}

func (u *unitRun) run() error {
	u.stage = pipeline.StageLoad
	content, err := os.ReadFile(u.path)
	if err != nil {
		diag.ReportError(u.rep, diag.IOLoadFileError, diag.Span{File: u.path}, "failed to load unit: "+err.Error()).Emit()
		return errStageFailed
	}

	key := unitDigest(content, u.opts.Target, u.opts.Exec)
	if u.replay(key) {
		return nil
	}

	var f *unit.File
	if err := u.step(pipeline.StageLoad, func() error {
		var err error
		if f, err = unit.Parse(u.path, string(content)); err != nil {
			diag.ReportError(u.rep, diag.UnitParse, diag.Span{File: u.path}, err.Error()).Emit()
			return errStageFailed
		}
		return nil
	}); err != nil {
		return err
	}
	u.res.Name = f.Name

	var prog *unit.Program
	if err := u.step(pipeline.StageCheck, func() error {
		var ok bool
		if prog, ok = unit.Check(f, u.rep); !ok {
			return errStageFailed
		}
		return nil
	}); err != nil {
		return err
	}

	var sites []*unit.SiteGraph
	if err := u.step(pipeline.StageBuild, func() error {
		var err error
		sites, err = prog.Build(u.rep)
		return err
	}); err != nil {
		return err
	}

	if err := u.step(pipeline.StageLower, func() error {
		le := layout.New(u.opts.Target, prog.Types)
		for _, sg := range sites {
			st, err := arraycopy.LowerAll(sg.Graph, le)
			if err != nil {
				return err
			}
			u.res.Stats.Add(st)
			sum := summarize(sg, prog.Types)
			u.res.Sites = append(u.res.Sites, sum)
			u.res.Graphs = append(u.res.Graphs, sg.Graph)
			u.site("lowered", sum.Origin, sum.Strategy)
		}
		return nil
	}); err != nil {
		return err
	}

	if u.opts.Exec {
		if err := u.step(pipeline.StageExec, func() error {
			return u.execute(prog, sites)
		}); err != nil {
			return err
		}
	}

	u.store(key)
	return nil
}

// replay fills the result from the disk cache.
func (u *unitRun) replay(key Digest) bool {
	if u.opts.Cache == nil {
		return false
	}
	var p DiskPayload
	hit, err := u.opts.Cache.Get(key, &p)
	if err != nil {
		diag.ReportWarning(u.rep, diag.IOCacheError, diag.Span{File: u.path}, "cache read failed: "+err.Error()).Emit()
		return false
	}
	if !hit {
		return false
	}
	u.res.Cached = true
	u.res.Name = p.Name
	u.res.Sites = p.Sites
	u.res.Stats = p.Stats
	for _, d := range p.Diagnostics {
		u.res.Bag.Add(d)
	}
	trace.Point(trace.FromContext(u.ctx), trace.ScopeUnit, "cache-hit", u.path, trace.CurrentSpan(u.ctx).SpanID)
	return true
}

func (u *unitRun) store(key Digest) {
	if u.opts.Cache == nil || u.res.Broken() {
		return
	}
	p := &DiskPayload{
		Path:        u.path,
		Name:        u.res.Name,
		Sites:       u.res.Sites,
		Stats:       u.res.Stats,
		Diagnostics: u.res.Bag.Items(),
	}
	if err := u.opts.Cache.Put(key, p); err != nil {
		diag.ReportWarning(u.rep, diag.IOCacheError, diag.Span{File: u.path}, "cache write failed: "+err.Error()).Emit()
	}
}

// site records a per-copy event under the unit span.
func (u *unitRun) site(name string, origin uint32, detail string) {
	trace.Site(trace.FromContext(u.ctx), name, origin, detail, trace.CurrentSpan(u.ctx).SpanID)
}

func summarize(sg *unit.SiteGraph, in *types.Interner) SiteSummary {
	s := SiteSummary{Origin: sg.Copy.Origin, Nodes: sg.Graph.Len()}
	switch {
	case sg.Result.Throws:
		s.Strategy = "throws"
	case sg.Result.Elided:
		s.Strategy = "elided"
	default:
		d := sg.Result.Decision
		s.Strategy = d.Variant.String()
		s.Disjoint = d.Disjoint
		if d.Elem != types.NoTypeID {
			s.Elem = types.Label(in, d.Elem)
		}
	}
	var sb strings.Builder
	if err := ir.Dump(&sb, sg.Graph); err == nil {
		s.Dump = sb.String()
	}
	return s
}

// execute runs every site, in origin order, on one shared sample heap.
func (u *unitRun) execute(prog *unit.Program, sites []*unit.SiteGraph) error {
	heap, err := prog.Materialize()
	if err != nil {
		return err
	}
	for i, sg := range sites {
		args, err := heap.Args(sg)
		if err != nil {
			return err
		}
		run, runErr := exec.Run(u.ctx, sg.Graph, heap.Heap, args)
		out := &RunOutcome{OK: runErr == nil, Calls: len(run.Calls), Moves: run.Moves}
		u.res.Sites[i].Run = out
		if runErr == nil {
			u.site("ran", sg.Copy.Origin, "ok")
			continue
		}
		u.site("ran", sg.Copy.Origin, runErr.Error())
		var inv *ir.InvariantError
		if errors.As(runErr, &inv) || errors.Is(runErr, context.Canceled) {
			return runErr
		}
		out.Message = runErr.Error()
		if code, ok := rt.CodeOf(runErr); ok {
			out.Code = code.String()
		}
		sp := diag.Span{File: u.path, Site: prog.File.Name, Origin: sg.Copy.Origin}
		if ase, ok := rt.AsArrayStore(runErr); ok {
			out.Copied = ase.Copied
			diag.ReportWarning(u.rep, diag.RunArrayStore, sp, out.Message).
				WithNote(sp, fmt.Sprintf("elements [0, %d) of the range were stored", ase.Copied)).
				Emit()
			continue
		}
		diag.ReportWarning(u.rep, diag.RunFailure, sp, out.Message).Emit()
	}
	return nil
}
