package buildproto

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"strings"
)

// ServerCommand is a message the server sends back while handling a request.
type ServerCommand string

const (
	WriteOut   ServerCommand = "WRITE_OUT"
	WriteErr   ServerCommand = "WRITE_ERR"
	SendStatus ServerCommand = "SEND_STATUS"
)

// Client commands with special handling.
const (
	CommandVersion = "version"
	CommandLower   = "lower"
)

// Message is one line on the wire in either direction.
type Message struct {
	Command string `json:"command"`
	Payload string `json:"payload"`
}

// readMessage reads one newline-terminated JSON message. io.EOF is returned
// only when the stream ends cleanly between messages.
func readMessage(r *bufio.Reader) (Message, error) {
	line, err := r.ReadString('\n')
	if err != nil && (err != io.EOF || line == "") {
		return Message{}, err
	}
	line = strings.TrimRight(line, "\r\n")
	var msg Message
	if err := json.Unmarshal([]byte(line), &msg); err != nil {
		return Message{}, &ProtocolError{Msg: fmt.Sprintf("malformed message %q: %v", line, err)}
	}
	return msg, nil
}

func writeMessage(w io.Writer, msg Message) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	payload = append(payload, '\n')
	_, err = w.Write(payload)
	return err
}
