package stream_test

import (
	"errors"
	"testing"

	"github.com/J-York/TarotWhisper/internal/stream"
)

func TestParseChunk(t *testing.T) {
	tests := []struct {
		name     string
		in       string
		wantKind stream.ChunkKind
		wantText string
		wantErr  string
	}{
		{"delta", `{"choices":[{"delta":{"content":"愚者"}}]}`, stream.KindDelta, "愚者", ""},
		{"message", `{"choices":[{"message":{"content":"full"}}]}`, stream.KindMessage, "full", ""},
		{"bare content", `{"content":"relay"}`, stream.KindContent, "relay", ""},
		{"empty delta falls through to message", `{"choices":[{"delta":{"content":""},"message":{"content":"m"}}]}`, stream.KindMessage, "m", ""},
		{"role only delta", `{"choices":[{"delta":{"role":"assistant"}}]}`, stream.KindEmpty, "", ""},
		{"error string", `{"error":"quota exceeded"}`, stream.KindError, "quota exceeded", "quota exceeded"},
		{"error object", `{"error":{"message":"bad key","code":401}}`, stream.KindError, "bad key", "bad key"},
		{"null error", `{"error":null}`, stream.KindEmpty, "", ""},
		{"false error", `{"error":false}`, stream.KindEmpty, "", ""},
		{"empty string error", `{"error":""}`, stream.KindEmpty, "", ""},
		{"empty object error", `{"error":{}}`, stream.KindEmpty, "", ""},
		{"error object without message", `{"error":{"code":1}}`, stream.KindEmpty, "", ""},
		{"numeric error", `{"error":429}`, stream.KindEmpty, "", ""},
		{"content keeps error", `{"content":"x","error":"y"}`, stream.KindContent, "x", "y"},
		{"delta keeps error object", `{"choices":[{"delta":{"content":"d"}}],"error":{"message":"cut off"}}`, stream.KindDelta, "d", "cut off"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := stream.ParseChunk([]byte(tc.in))
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got.Kind != tc.wantKind || got.Text != tc.wantText || got.Err != tc.wantErr {
				t.Errorf("got %s %q err %q, want %s %q err %q", got.Kind, got.Text, got.Err, tc.wantKind, tc.wantText, tc.wantErr)
			}
		})
	}
}

func TestParseChunk_Malformed(t *testing.T) {
	for _, in := range []string{`{"choices":`, `: keep-alive`, ``} {
		_, err := stream.ParseChunk([]byte(in))
		if !errors.Is(err, stream.ErrMalformedChunk) {
			t.Errorf("ParseChunk(%q): expected ErrMalformedChunk, got %v", in, err)
		}
	}
}

func TestEventMarshalSSE(t *testing.T) {
	tests := []struct {
		ev   stream.Event
		want string
	}{
		{stream.Content("<b>星星</b> & more"), "data: {\"content\":\"<b>星星</b> & more\"}\n\n"},
		{stream.Error("boom"), "data: {\"error\":\"boom\"}\n\n"},
		{stream.Done(), "data: [DONE]\n\n"},
	}
	for _, tc := range tests {
		got, err := tc.ev.MarshalSSE()
		if err != nil {
			t.Fatalf("MarshalSSE: %v", err)
		}
		if string(got) != tc.want {
			t.Errorf("got %q, want %q", got, tc.want)
		}
	}
}

func TestDataPayload(t *testing.T) {
	if p, ok := stream.DataPayload([]byte("data: [DONE]\r\n")); !ok || !stream.IsDone(p) {
		t.Errorf("expected DONE payload, got %q ok=%v", p, ok)
	}
	if p, ok := stream.DataPayload([]byte("data:{\"content\":\"a\"}")); !ok || string(p) != `{"content":"a"}` {
		t.Errorf("unexpected payload %q ok=%v", p, ok)
	}
	if _, ok := stream.DataPayload([]byte(": ping")); ok {
		t.Error("comment line should not be a data line")
	}
	if _, ok := stream.DataPayload([]byte("event: message")); ok {
		t.Error("event line should not be a data line")
	}
}
