package buildproto_test

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"copyir/internal/buildproto"
)

func startServer(t *testing.T, srv *buildproto.Server) int {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx, ln) }()
	t.Cleanup(func() {
		cancel()
		assert.NoError(t, <-done)
	})
	return ln.Addr().(*net.TCPAddr).Port
}

// fakeServer answers every connection with handle.
func fakeServer(t *testing.T, handle func(r *bufio.Reader, conn net.Conn)) int {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { ln.Close() })
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			r := bufio.NewReader(conn)
			r.ReadString('\n')
			handle(r, conn)
			conn.Close()
		}
	}()
	return ln.Addr().(*net.TCPAddr).Port
}

func closedPort(t *testing.T) int {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := ln.Addr().(*net.TCPAddr).Port
	require.NoError(t, ln.Close())
	return port
}

func portArg(port int) string { return "-port=" + strconv.Itoa(port) }

func run(args ...string) (int, string, string) {
	var out, errOut bytes.Buffer
	code := buildproto.Run(args, &out, &errOut)
	return code, out.String(), errOut.String()
}

func TestVersionRoundTrip(t *testing.T) {
	port := startServer(t, &buildproto.Server{Version: "copyir 0.3.0"})

	code, out, errOut := run("-command=version", portArg(port))
	assert.Equal(t, buildproto.ExitSuccess, code)
	assert.Equal(t, "copyir 0.3.0\n", out)
	assert.Empty(t, errOut)
}

func TestVersionWithoutReplyStillSucceeds(t *testing.T) {
	port := fakeServer(t, func(*bufio.Reader, net.Conn) {})

	code, out, _ := run(portArg(port), "-command=version")
	assert.Equal(t, buildproto.ExitSuccess, code)
	assert.Empty(t, out)
}

func TestConnectFailure(t *testing.T) {
	port := closedPort(t)

	t.Run("version is silent", func(t *testing.T) {
		code, out, errOut := run("-command=version", portArg(port))
		assert.Equal(t, buildproto.ExitFail, code)
		assert.Empty(t, out)
		assert.Empty(t, errOut)
	})
	t.Run("other commands report", func(t *testing.T) {
		code, _, errOut := run("-command=lower", portArg(port), "a.toml")
		assert.Equal(t, buildproto.ExitFail, code)
		assert.Contains(t, errOut, fmt.Sprintf("Could not connect to image build server running on port %d", port))
		assert.Contains(t, errOut, "Underlying exception:")
	})
}

func TestHandlerOutputIsStreamed(t *testing.T) {
	reqs := make(chan buildproto.Request, 1)
	port := startServer(t, &buildproto.Server{
		Handler: buildproto.HandlerFunc(func(_ context.Context, req buildproto.Request, w *buildproto.Responder) int {
			reqs <- req
			w.Out("lowered %s", req.Args[0])
			w.Err("1 warning")
			fmt.Fprint(w.Stdout(), "done\n")
			return 3
		}),
	})

	code, out, errOut := run("-command=lower", "a.toml", portArg(port), "b.toml")
	assert.Equal(t, 3, code)
	assert.Equal(t, "lowered a.toml\ndone\n", out)
	assert.Equal(t, "1 warning\n", errOut)
	got := <-reqs
	assert.Equal(t, "lower", got.Command)
	assert.Equal(t, []string{"a.toml", "b.toml"}, got.Args)
	assert.NotZero(t, got.ID)
}

func TestMissingHandlerFails(t *testing.T) {
	port := startServer(t, &buildproto.Server{})
	code, _, errOut := run("-command=lower", portArg(port))
	assert.Equal(t, buildproto.ExitFail, code)
	assert.Contains(t, errOut, `no handler for command "lower"`)
}

func TestServerMisbehaviour(t *testing.T) {
	tests := []struct {
		name    string
		reply   string
		wantErr string
	}{
		{"unknown command", `{"command":"REBOOT","payload":""}` + "\n", "invalid command sent by the build server: REBOOT"},
		{"bad status", `{"command":"SEND_STATUS","payload":"ok"}` + "\n", "invalid exit status"},
		{"not json", "hello\n", "malformed message"},
		{"no status", `{"command":"WRITE_OUT","payload":"partial\n"}` + "\n", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			port := fakeServer(t, func(_ *bufio.Reader, conn net.Conn) {
				conn.Write([]byte(tt.reply))
			})
			code, _, errOut := run("-command=lower", portArg(port))
			assert.Equal(t, buildproto.ExitFail, code)
			if tt.wantErr == "" {
				assert.NotContains(t, errOut, "Could not connect")
				return
			}
			assert.Contains(t, errOut, tt.wantErr)
		})
	}
}

type brokenWriter struct{}

func (brokenWriter) Write([]byte) (int, error) { return 0, errors.New("disk full") }

func TestRelayFailureFails(t *testing.T) {
	port := fakeServer(t, func(_ *bufio.Reader, conn net.Conn) {
		conn.Write([]byte(`{"command":"WRITE_OUT","payload":"lowered\n"}` + "\n" +
			`{"command":"SEND_STATUS","payload":"0"}` + "\n"))
	})

	var errOut bytes.Buffer
	code := buildproto.Run([]string{"-command=lower", portArg(port)}, brokenWriter{}, &errOut)
	assert.Equal(t, buildproto.ExitFail, code)
	assert.Contains(t, errOut.String(), "cannot relay build server output: disk full")
	assert.NotContains(t, errOut.String(), "Could not connect")

	var out bytes.Buffer
	code = buildproto.Run([]string{"-command=lower", portArg(port)}, &out, brokenWriter{})
	assert.Equal(t, buildproto.ExitSuccess, code)
	assert.Equal(t, "lowered\n", out.String())
}

func TestUsage(t *testing.T) {
	code, out, _ := run()
	assert.Equal(t, buildproto.ExitFail, code)
	assert.Contains(t, out, "Usage:")

	code, out, _ = run("--help")
	assert.Equal(t, buildproto.ExitSuccess, code)
	assert.Contains(t, out, "Usage:")

	code, _, _ = run("-command=lower")
	assert.Equal(t, buildproto.ExitFail, code)

	code, _, _ = run("-port=4000")
	assert.Equal(t, buildproto.ExitFail, code)
}

func TestExtractPort(t *testing.T) {
	tests := []struct {
		args   []string
		port   int
		ok     bool
		remain []string
	}{
		{[]string{"-port=8080", "x"}, 8080, true, []string{"x"}},
		{[]string{"x", "-port=1"}, 1, true, []string{"x"}},
		{[]string{"-port=abc"}, 0, false, []string{"-port=abc"}},
		{[]string{"-port=70000"}, 0, false, []string{"-port=70000"}},
		{[]string{"x"}, 0, false, []string{"x"}},
	}
	for _, tt := range tests {
		rest, port, ok := buildproto.ExtractPort(tt.args)
		assert.Equal(t, tt.ok, ok, "%v", tt.args)
		assert.Equal(t, tt.port, port, "%v", tt.args)
		assert.Equal(t, tt.remain, rest, "%v", tt.args)
	}
}
