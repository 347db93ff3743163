package driver

import (
	"context"

	"copyir/internal/buildproto"
)

// Exit statuses reported over the build protocol.
const (
	StatusOK     = 0
	StatusBroken = 1
)

// ProtocolHandler serves "lower" and "exec" requests whose arguments are
// unit file paths.
func ProtocolHandler(opts Options) buildproto.Handler {
	return buildproto.HandlerFunc(func(ctx context.Context, req buildproto.Request, w *buildproto.Responder) int {
		o := opts
		switch req.Command {
		case buildproto.CommandLower:
		case CommandExec:
			o.Exec = true
		default:
			w.Err("unknown command %q (expected: %s|%s)", req.Command, buildproto.CommandLower, CommandExec)
			return buildproto.ExitFail
		}
		if len(req.Args) == 0 {
			w.Err("%s: no unit files given", req.Command)
			return buildproto.ExitFail
		}
		sess, err := LowerFiles(ctx, req.Args, o)
		if err != nil {
			w.Err("%v", err)
			return buildproto.ExitFail
		}
		for i := range sess.Results {
			res := &sess.Results[i]
			WriteUnit(w.Stdout(), res, EmitSummary)
			WriteDiagnostics(w.Stderr(), res)
		}
		if sess.Broken() {
			return StatusBroken
		}
		return StatusOK
	})
}

// CommandExec lowers and executes units.
const CommandExec = "exec"
