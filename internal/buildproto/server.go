package buildproto

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"copyir/internal/trace"
)

// Request is one client request as seen by a Handler.
type Request struct {
	ID      uuid.UUID
	Command string
	Args    []string
}

// Handler executes a request and returns its exit status. Output written to
// the Responder is streamed to the client as it is produced.
type Handler interface {
	Handle(ctx context.Context, req Request, w *Responder) int
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, req Request, w *Responder) int

func (f HandlerFunc) Handle(ctx context.Context, req Request, w *Responder) int {
	return f(ctx, req, w)
}

// Responder streams WRITE_OUT/WRITE_ERR messages to one client.
type Responder struct {
	mu   sync.Mutex
	conn net.Conn
	err  error
}

func (w *Responder) send(cmd ServerCommand, payload string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.err != nil {
		return
	}
	w.err = writeMessage(w.conn, Message{Command: string(cmd), Payload: payload})
}

// Out writes a line to the client's stdout.
func (w *Responder) Out(format string, args ...any) {
	w.send(WriteOut, line(format, args...))
}

// Err writes a line to the client's stderr.
func (w *Responder) Err(format string, args ...any) {
	w.send(WriteErr, line(format, args...))
}

// Stdout and Stderr expose the streams as io.Writers.
func (w *Responder) Stdout() *StreamWriter { return &StreamWriter{r: w, cmd: WriteOut} }
func (w *Responder) Stderr() *StreamWriter { return &StreamWriter{r: w, cmd: WriteErr} }

// StreamWriter forwards each Write as one message.
type StreamWriter struct {
	r   *Responder
	cmd ServerCommand
}

func (s *StreamWriter) Write(p []byte) (int, error) {
	s.r.send(s.cmd, string(p))
	s.r.mu.Lock()
	defer s.r.mu.Unlock()
	if s.r.err != nil {
		return 0, s.r.err
	}
	return len(p), nil
}

func line(format string, args ...any) string {
	s := fmt.Sprintf(format, args...)
	if !strings.HasSuffix(s, "\n") {
		s += "\n"
	}
	return s
}

// Server accepts protocol connections and dispatches them to a Handler.
type Server struct {
	Version string
	Handler Handler
}

// Serve handles connections on ln until ctx is cancelled. Connections are
// served concurrently; a failing connection does not stop the server.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		<-gctx.Done()
		return ln.Close()
	})
	g.Go(func() error {
		for {
			conn, err := ln.Accept()
			if err != nil {
				if gctx.Err() != nil || errors.Is(err, net.ErrClosed) {
					return nil
				}
				return fmt.Errorf("accept: %w", err)
			}
			g.Go(func() error {
				s.serveConn(gctx, conn)
				return nil
			})
		}
	})
	err := g.Wait()
	if ctx.Err() != nil {
		return nil
	}
	return err
}

// ListenAndServe listens on localhost:port.
func (s *Server) ListenAndServe(ctx context.Context, port int) error {
	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", net.JoinHostPort("127.0.0.1", strconv.Itoa(port)))
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

func (s *Server) serveConn(ctx context.Context, conn net.Conn) {
	defer conn.Close()
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	req := Request{ID: uuid.New()}
	span, ctx := trace.Start(ctx, trace.ScopeDriver, "request")
	span.WithExtra("id", req.ID.String())

	msg, err := readMessage(bufio.NewReader(conn))
	if err != nil {
		trace.Failure(trace.FromContext(ctx), "request", err, span.ID())
		span.End("unreadable")
		return
	}
	req.Command = msg.Command
	req.Args = strings.Fields(msg.Payload)
	span.WithExtra("command", req.Command)

	w := &Responder{conn: conn}
	if req.Command == CommandVersion {
		w.send(WriteOut, s.Version)
		span.End("version")
		return
	}

	status := ExitFail
	if s.Handler == nil {
		w.Err("no handler for command %q", req.Command)
	} else {
		status = s.Handler.Handle(ctx, req, w)
	}
	w.send(SendStatus, strconv.Itoa(status))
	if w.err != nil {
		trace.Failure(trace.FromContext(ctx), "request", w.err, span.ID())
	}
	span.End("status=" + strconv.Itoa(status))
}
