// Package stream implements the relay's canonical server-sent event format and
// the normalization of OpenAI-compatible upstream responses into it.
//
// Every frame on the wire is one of:
//
//	data: {"content":"..."}
//	data: {"error":"..."}
//	data: [DONE]
//
// each followed by a blank line.
package stream

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
)

// DoneMarker terminates every stream.
const DoneMarker = "[DONE]"

// Event is one canonical frame. Exactly one of Content, Err or Done is set.
type Event struct {
	Content string
	Err     string
	Done    bool
}

func Content(s string) Event { return Event{Content: s} }
func Error(s string) Event   { return Event{Err: s} }
func Done() Event            { return Event{Done: true} }

type contentFrame struct {
	Content string `json:"content"`
}

type errorFrame struct {
	Error string `json:"error"`
}

// MarshalSSE renders e as a complete "data: ...\n\n" frame.
func (e Event) MarshalSSE() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString("data: ")
	if e.Done {
		buf.WriteString(DoneMarker)
		buf.WriteString("\n\n")
		return buf.Bytes(), nil
	}

	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	var err error
	if e.Err != "" {
		err = enc.Encode(errorFrame{Error: e.Err})
	} else {
		err = enc.Encode(contentFrame{Content: e.Content})
	}
	if err != nil {
		return nil, err
	}
	// Encode already wrote one newline.
	buf.WriteByte('\n')
	return buf.Bytes(), nil
}

// EventWriter receives canonical events in order.
type EventWriter interface {
	WriteEvent(Event) error
}

// SSEWriter writes frames to an io.Writer, flushing after each one when the
// writer supports it.
type SSEWriter struct {
	w     io.Writer
	flush func()
}

func NewSSEWriter(w io.Writer) *SSEWriter {
	s := &SSEWriter{w: w}
	if f, ok := w.(http.Flusher); ok {
		s.flush = f.Flush
	}
	return s
}

func (s *SSEWriter) WriteEvent(e Event) error {
	frame, err := e.MarshalSSE()
	if err != nil {
		return err
	}
	if _, err := s.w.Write(frame); err != nil {
		return err
	}
	if s.flush != nil {
		s.flush()
	}
	return nil
}

// DataPayload returns the payload of an SSE "data:" line. Lines of any other
// kind (comments, event names, blanks) report ok=false.
func DataPayload(line []byte) (payload []byte, ok bool) {
	line = bytes.TrimSpace(line)
	rest, found := bytes.CutPrefix(line, []byte("data:"))
	if !found {
		return nil, false
	}
	return bytes.TrimSpace(rest), true
}

// IsDone reports whether a data payload is the end-of-stream marker.
func IsDone(payload []byte) bool {
	return string(payload) == DoneMarker
}
