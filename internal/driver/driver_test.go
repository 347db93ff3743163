package driver_test

import (
	"bytes"
	"context"
	"net"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"copyir/internal/buildproto"
	"copyir/internal/diag"
	"copyir/internal/driver"
	"copyir/internal/pipeline"
	"copyir/internal/trace"
)

const (
	zooPath    = "testdata/zoo.toml"
	brokenPath = "testdata/broken.toml"
)

func codes(res *driver.UnitResult) []diag.Code {
	var out []diag.Code
	for _, d := range res.Bag.Items() {
		out = append(out, d.Code)
	}
	return out
}

func TestLowerAndExecuteZoo(t *testing.T) {
	sess, err := driver.LowerFiles(context.Background(), []string{zooPath}, driver.Options{Exec: true})
	require.NoError(t, err)
	require.Len(t, sess.Results, 1)
	res := &sess.Results[0]

	assert.False(t, res.Broken())
	assert.Equal(t, "zoo", res.Name)
	assert.Equal(t, 1, res.Stats.Specialized)
	assert.Equal(t, 1, res.Stats.Checked)
	assert.Equal(t, 1, res.Stats.Generic)
	assert.Equal(t, 2, res.Stats.Calls)
	assert.Len(t, res.Graphs, 4)

	require.Len(t, res.Sites, 4)
	strategies := make([]string, len(res.Sites))
	for i, s := range res.Sites {
		strategies[i] = s.Strategy
		require.NotNil(t, s.Run, "site #%d was not executed", s.Origin)
	}
	assert.Equal(t, []string{"checked", "specialized", "generic", "elided"}, strategies)

	failed := res.Sites[0].Run
	assert.False(t, failed.OK)
	assert.Equal(t, "RT2003", failed.Code)
	assert.Equal(t, 4, failed.Copied)
	assert.Equal(t, 1, failed.Calls)

	assert.True(t, res.Sites[1].Run.OK)
	assert.Equal(t, 1, res.Sites[1].Run.Moves)
	assert.Zero(t, res.Sites[1].Run.Calls)
	assert.True(t, res.Sites[2].Run.OK)
	assert.Zero(t, res.Sites[3].Run.Calls)

	assert.ElementsMatch(t, []diag.Code{diag.RunArrayStore, diag.LowZeroLength}, codes(res))
}

func TestDiskCacheReplaysSummary(t *testing.T) {
	cache, err := driver.OpenDiskCacheAt(t.TempDir())
	require.NoError(t, err)
	opts := driver.Options{Exec: true, Cache: cache}

	first, err := driver.LowerFiles(context.Background(), []string{zooPath}, opts)
	require.NoError(t, err)
	require.False(t, first.Results[0].Cached)

	second, err := driver.LowerFiles(context.Background(), []string{zooPath}, opts)
	require.NoError(t, err)
	got := second.Results[0]
	assert.True(t, got.Cached)
	assert.Empty(t, got.Graphs)
	assert.Equal(t, first.Results[0].Sites, got.Sites)
	assert.Equal(t, first.Results[0].Stats, got.Stats)
	assert.Equal(t, first.Results[0].Bag.Len(), got.Bag.Len())
	assert.NotEqual(t, first.ID, second.ID)

	// the exec flag is part of the key
	third, err := driver.LowerFiles(context.Background(), []string{zooPath}, driver.Options{Cache: cache})
	require.NoError(t, err)
	assert.False(t, third.Results[0].Cached)

	require.NoError(t, cache.DropAll())
	fourth, err := driver.LowerFiles(context.Background(), []string{zooPath}, opts)
	require.NoError(t, err)
	assert.False(t, fourth.Results[0].Cached)
}

func TestBrokenUnitsDoNotStopOthers(t *testing.T) {
	var rec pipeline.Recorder
	files := []string{brokenPath, "testdata/missing.toml", zooPath}
	sess, err := driver.LowerFiles(context.Background(), files, driver.Options{Jobs: 2, Sink: &rec})
	require.NoError(t, err)
	require.Len(t, sess.Results, 3)
	assert.True(t, sess.Broken())

	assert.Contains(t, codes(&sess.Results[0]), diag.UnitBadClass)
	assert.Contains(t, codes(&sess.Results[0]), diag.UnitUnknownOperand)
	assert.Equal(t, []diag.Code{diag.IOLoadFileError}, codes(&sess.Results[1]))
	assert.False(t, sess.Results[2].Broken())
	assert.Equal(t, 3, sess.Stats.Total())

	final := map[string]pipeline.Status{}
	for _, ev := range rec.Events() {
		final[ev.File] = ev.Status
	}
	assert.Equal(t, pipeline.StatusError, final[brokenPath])
	assert.Equal(t, pipeline.StatusError, final["testdata/missing.toml"])
	assert.Equal(t, pipeline.StatusDone, final[zooPath])
}

func TestSessionIsTraced(t *testing.T) {
	ring := trace.NewRingTracer(256, trace.LevelDetail)
	ctx := trace.WithTracer(context.Background(), ring)
	_, err := driver.LowerFiles(ctx, []string{zooPath}, driver.Options{})
	require.NoError(t, err)

	var names []string
	for _, ev := range ring.Snapshot() {
		if ev.Kind == trace.KindSpanBegin {
			names = append(names, ev.Name)
		}
	}
	assert.Contains(t, names, "session")
	assert.Contains(t, names, zooPath)
	assert.Contains(t, names, string(pipeline.StageLower))
}

func TestDebugTraceNamesEverySite(t *testing.T) {
	ring := trace.NewRingTracer(512, trace.LevelDebug)
	ctx := trace.WithTracer(context.Background(), ring)
	_, err := driver.LowerFiles(ctx, []string{zooPath}, driver.Options{Exec: true})
	require.NoError(t, err)

	lowered := map[uint32]string{}
	ran := 0
	for _, ev := range ring.Snapshot() {
		if ev.Scope != trace.ScopeNode {
			continue
		}
		switch ev.Name {
		case "lowered":
			lowered[ev.Origin] = ev.Detail
		case "ran":
			ran++
		}
	}
	assert.Equal(t, map[uint32]string{1: "checked", 2: "specialized", 3: "generic", 4: "elided"}, lowered)
	assert.Equal(t, 4, ran)
}

func TestWriteUnit(t *testing.T) {
	sess, err := driver.LowerFiles(context.Background(), []string{zooPath}, driver.Options{Exec: true})
	require.NoError(t, err)

	var out bytes.Buffer
	driver.WriteUnit(&out, &sess.Results[0], driver.EmitGraph)
	text := out.String()
	assert.Contains(t, text, "zoo: 4 sites, 3 lowered (1 specialized, 1 checked, 1 generic), 2 stub calls")
	assert.Contains(t, text, "#1 checked elem=Dog")
	assert.Contains(t, text, "run: RT2003")
	assert.Contains(t, text, "ForeignCall")

	var diags bytes.Buffer
	driver.WriteDiagnostics(&diags, &sess.Results[0])
	assert.Contains(t, diags.String(), "RUN3001")
}

func TestParseEmit(t *testing.T) {
	e, err := driver.ParseEmit("GRAPH")
	require.NoError(t, err)
	assert.Equal(t, driver.EmitGraph, e)
	_, err = driver.ParseEmit("asm")
	assert.Error(t, err)
}

func TestProtocolHandler(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	srv := &buildproto.Server{Version: "test", Handler: driver.ProtocolHandler(driver.Options{})}
	go func() { done <- srv.Serve(ctx, ln) }()
	t.Cleanup(func() {
		cancel()
		require.NoError(t, <-done)
	})
	port := "-port=" + strconv.Itoa(ln.Addr().(*net.TCPAddr).Port)

	var out, errOut bytes.Buffer
	code := buildproto.Run([]string{"-command=exec", port, zooPath}, &out, &errOut)
	assert.Equal(t, driver.StatusOK, code)
	assert.Contains(t, out.String(), "zoo: 4 sites")
	assert.Contains(t, errOut.String(), "RUN3001")

	out.Reset()
	errOut.Reset()
	code = buildproto.Run([]string{"-command=lower", port, brokenPath}, &out, &errOut)
	assert.Equal(t, driver.StatusBroken, code)
	assert.True(t, strings.Contains(errOut.String(), "UNIT1005"), errOut.String())

	errOut.Reset()
	code = buildproto.Run([]string{"-command=link", port}, &out, &errOut)
	assert.Equal(t, buildproto.ExitFail, code)
	assert.Contains(t, errOut.String(), `unknown command "link"`)
}
