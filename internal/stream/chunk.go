package stream

import (
	"encoding/json"
	"errors"
)

// ChunkKind names the JSON shape a chunk was recognized as.
type ChunkKind int

const (
	// KindEmpty is valid JSON carrying no text, such as a role-only first delta.
	KindEmpty ChunkKind = iota
	// KindDelta is choices[0].delta.content, the regular streaming shape.
	KindDelta
	// KindMessage is choices[0].message.content, sent by some gateways even
	// while streaming.
	KindMessage
	// KindContent is a bare {"content": ...}, the relay's own shape.
	KindContent
	// KindError is {"error": "..."} or {"error": {"message": "..."}}.
	KindError
)

func (k ChunkKind) String() string {
	switch k {
	case KindDelta:
		return "delta"
	case KindMessage:
		return "message"
	case KindContent:
		return "content"
	case KindError:
		return "error"
	default:
		return "empty"
	}
}

// Chunk is the result of parsing one JSON payload. Err is set whenever the
// payload carries an error message, including alongside content.
type Chunk struct {
	Kind ChunkKind
	Text string
	Err  string
}

// HasContent reports whether the chunk carries interpretation text.
func (c Chunk) HasContent() bool {
	switch c.Kind {
	case KindDelta, KindMessage, KindContent:
		return c.Text != ""
	}
	return false
}

var ErrMalformedChunk = errors.New("malformed chunk")

type textField struct {
	Content *string `json:"content"`
}

type choice struct {
	Delta   *textField `json:"delta"`
	Message *textField `json:"message"`
}

type wireChunk struct {
	Choices []choice        `json:"choices"`
	Content *string         `json:"content"`
	Error   json.RawMessage `json:"error"`
}

// ParseChunk decodes one JSON payload. The recognized shapes are tried in
// order delta, message, bare content, error; an empty string in one shape
// falls through to the next. An error next to content is kept in Err.
func ParseChunk(data []byte) (Chunk, error) {
	var w wireChunk
	if err := json.Unmarshal(data, &w); err != nil {
		return Chunk{}, errors.Join(ErrMalformedChunk, err)
	}

	msg := errorMessage(w.Error)
	if len(w.Choices) > 0 {
		c := w.Choices[0]
		if c.Delta != nil && c.Delta.Content != nil && *c.Delta.Content != "" {
			return Chunk{Kind: KindDelta, Text: *c.Delta.Content, Err: msg}, nil
		}
		if c.Message != nil && c.Message.Content != nil && *c.Message.Content != "" {
			return Chunk{Kind: KindMessage, Text: *c.Message.Content, Err: msg}, nil
		}
	}
	if w.Content != nil && *w.Content != "" {
		return Chunk{Kind: KindContent, Text: *w.Content, Err: msg}, nil
	}
	if msg != "" {
		return Chunk{Kind: KindError, Text: msg, Err: msg}, nil
	}
	return Chunk{Kind: KindEmpty}, nil
}

// errorMessage accepts a non-empty string or an object with a non-empty
// message. Any other shape (false, {}, {"code":1}) is not an error.
func errorMessage(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var obj struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(raw, &obj); err == nil {
		return obj.Message
	}
	return ""
}
