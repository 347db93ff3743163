// Package buildproto implements the line-delimited JSON protocol between the
// copyir build server and its thin client. The client sends one request and
// relays the server's output until it receives an exit status.
package buildproto

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/fatih/color"
)

// Client connects to a build server on the local host.
type Client struct {
	Host    string
	Timeout time.Duration
}

// DefaultClient dials localhost with a five second connect timeout.
var DefaultClient = &Client{Host: "127.0.0.1", Timeout: 5 * time.Second}

// Run is DefaultClient.Run.
func Run(args []string, out, errOut io.Writer) int {
	return DefaultClient.Run(args, out, errOut)
}

// Run parses "-command=<c> -port=<p> [args...]", sends the request and
// returns the process exit code.
func (c *Client) Run(args []string, out, errOut io.Writer) int {
	if len(args) < 1 {
		usage(out)
		return ExitFail
	}
	if len(args) == 1 && args[0] == "--help" {
		usage(out)
		return ExitSuccess
	}
	rest, command, hasCommand := extractArg(args, CommandPrefix)
	rest, port, hasPort := ExtractPort(rest)
	if !hasCommand || !hasPort {
		usage(out)
		return ExitFail
	}
	return c.send(command, strings.Join(rest, " "), port, out, errOut)
}

func (c *Client) send(command, payload string, port int, out, errOut io.Writer) int {
	code, err := c.exchange(command, payload, port, out, errOut)
	if err == nil {
		return code
	}
	var proto *ProtocolError
	if errors.As(err, &proto) || errors.Is(err, errRelay) {
		fmt.Fprintln(errOut, color.RedString("error:"), err)
		return ExitFail
	}
	if command != CommandVersion {
		fmt.Fprintf(errOut, "Could not connect to image build server running on port %d\n", port)
		fmt.Fprintf(errOut, "Underlying exception: %v\n", err)
	}
	return ExitFail
}

// ProtocolError reports a well-formed connection that carried an unexpected
// message.
type ProtocolError struct {
	Msg string
}

func (e *ProtocolError) Error() string { return e.Msg }

// errRelay marks a failure to write server output to the local streams.
var errRelay = errors.New("cannot relay build server output")

func relay(w io.Writer, payload string) error {
	if _, err := io.WriteString(w, payload); err != nil {
		return fmt.Errorf("%w: %w", errRelay, err)
	}
	return nil
}

func (c *Client) exchange(command, payload string, port int, out, errOut io.Writer) (int, error) {
	addr := net.JoinHostPort(c.Host, strconv.Itoa(port))
	conn, err := net.DialTimeout("tcp", addr, c.Timeout)
	if err != nil {
		return ExitFail, err
	}
	defer conn.Close()

	if err := writeMessage(conn, Message{Command: command, Payload: payload}); err != nil {
		return ExitFail, err
	}
	r := bufio.NewReader(conn)

	if command == CommandVersion {
		msg, err := readMessage(r)
		switch {
		case err == io.EOF:
		case err != nil:
			return ExitFail, err
		default:
			if err := relay(out, msg.Payload+"\n"); err != nil {
				return ExitFail, err
			}
		}
		return ExitSuccess, nil
	}

	for {
		msg, err := readMessage(r)
		if err == io.EOF {
			// the server hung up without an exit status
			return ExitFail, nil
		}
		if err != nil {
			return ExitFail, err
		}
		switch ServerCommand(msg.Command) {
		case WriteOut:
			if err := relay(out, msg.Payload); err != nil {
				return ExitFail, err
			}
		case WriteErr:
			if err := relay(errOut, msg.Payload); err != nil {
				return ExitFail, err
			}
		case SendStatus:
			code, err := strconv.Atoi(strings.TrimSpace(msg.Payload))
			if err != nil {
				return ExitFail, &ProtocolError{Msg: fmt.Sprintf("invalid exit status %q sent by the build server", msg.Payload)}
			}
			return code, nil
		default:
			return ExitFail, &ProtocolError{Msg: "invalid command sent by the build server: " + msg.Command}
		}
	}
}
