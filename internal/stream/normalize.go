package stream

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"mime"
)

// maxRawBody bounds how much of an event-stream body is kept for the
// whole-document parse at the end.
const maxRawBody = 1 << 20

// maxDocument bounds a body read as one JSON document.
const maxDocument = 4 << 20

// ErrRead wraps a failure reading the upstream body. By the time it is
// returned an error event and DONE have already been written.
var ErrRead = errors.New("read upstream stream")

// Normalize converts an upstream chat-completion response body into canonical
// events on w, always finishing with DONE. A returned error wrapping ErrRead
// is informational; any other error comes from w and means the client is gone.
// The caller owns body and must close it.
func Normalize(body io.Reader, contentType string, w EventWriter) error {
	if isJSON(contentType) {
		return normalizeDocument(body, w)
	}
	return normalizeStream(body, w)
}

func isJSON(contentType string) bool {
	mt, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return false
	}
	return mt == "application/json"
}

func normalizeDocument(body io.Reader, w EventWriter) error {
	data, err := io.ReadAll(io.LimitReader(body, maxDocument))
	if err != nil {
		return finishWithReadError(w, err)
	}
	if c, perr := ParseChunk(bytes.TrimSpace(data)); perr == nil {
		if err := emitChunk(w, c); err != nil {
			return err
		}
	}
	return w.WriteEvent(Done())
}

func normalizeStream(body io.Reader, w EventWriter) error {
	raw := &cappedBuffer{max: maxRawBody}
	r := bufio.NewReader(io.TeeReader(body, raw))
	forwarded := 0

	for {
		line, err := r.ReadBytes('\n')
		if len(line) > 0 && (err == nil || errors.Is(err, io.EOF)) {
			done, n, werr := handleLine(w, line)
			if werr != nil {
				return werr
			}
			forwarded += n
			if done {
				break
			}
		}
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return finishWithReadError(w, err)
		}
	}

	if forwarded == 0 && !raw.overflow {
		if c, err := ParseChunk(bytes.TrimSpace(raw.buf.Bytes())); err == nil && c.HasContent() {
			if err := w.WriteEvent(Content(c.Text)); err != nil {
				return err
			}
		}
	}
	return w.WriteEvent(Done())
}

// handleLine forwards one SSE line. It reports whether the upstream signalled
// completion and how many content events were written.
func handleLine(w EventWriter, line []byte) (done bool, forwarded int, err error) {
	payload, ok := DataPayload(line)
	if !ok || len(payload) == 0 {
		return false, 0, nil
	}
	if IsDone(payload) {
		return true, 0, nil
	}
	c, perr := ParseChunk(payload)
	if perr != nil {
		return false, 0, nil
	}
	if err := emitChunk(w, c); err != nil {
		return false, 0, err
	}
	if c.HasContent() {
		return false, 1, nil
	}
	return false, 0, nil
}

func emitChunk(w EventWriter, c Chunk) error {
	if c.HasContent() {
		if err := w.WriteEvent(Content(c.Text)); err != nil {
			return err
		}
	}
	if c.Err != "" {
		return w.WriteEvent(Error(c.Err))
	}
	return nil
}

func finishWithReadError(w EventWriter, readErr error) error {
	if err := w.WriteEvent(Error(readErr.Error())); err != nil {
		return err
	}
	if err := w.WriteEvent(Done()); err != nil {
		return err
	}
	return fmt.Errorf("%w: %w", ErrRead, readErr)
}

// cappedBuffer keeps the first max bytes written and remembers whether
// anything was dropped. Writes never fail.
type cappedBuffer struct {
	buf      bytes.Buffer
	max      int
	overflow bool
}

func (b *cappedBuffer) Write(p []byte) (int, error) {
	room := b.max - b.buf.Len()
	if room <= 0 {
		b.overflow = b.overflow || len(p) > 0
		return len(p), nil
	}
	if len(p) > room {
		b.buf.Write(p[:room])
		b.overflow = true
		return len(p), nil
	}
	b.buf.Write(p)
	return len(p), nil
}
