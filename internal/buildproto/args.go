package buildproto

import (
	"fmt"
	"io"
	"strconv"
	"strings"
)

const (
	CommandPrefix = "-command="
	PortPrefix    = "-port="
)

// Exit codes of the client.
const (
	ExitSuccess = 0
	ExitFail    = -1
)

// extractArg removes the first argument starting with prefix and returns its
// value.
func extractArg(args []string, prefix string) ([]string, string, bool) {
	for i, a := range args {
		if strings.HasPrefix(a, prefix) {
			rest := append(append([]string(nil), args[:i]...), args[i+1:]...)
			return rest, strings.TrimPrefix(a, prefix), true
		}
	}
	return args, "", false
}

// ExtractPort removes "-port=<n>" from args. A malformed port counts as
// absent.
func ExtractPort(args []string) ([]string, int, bool) {
	rest, raw, ok := extractArg(args, PortPrefix)
	if !ok {
		return args, 0, false
	}
	port, err := strconv.Atoi(raw)
	if err != nil || port <= 0 || port > 65535 {
		return args, 0, false
	}
	return rest, port, true
}

func usage(w io.Writer) {
	fmt.Fprintln(w, "Usage:")
	fmt.Fprintf(w, "  copyir client %s<command> [%s<port_number>] [<command_arguments>]\n", CommandPrefix, PortPrefix)
}
