package core

import (
	"bytes"
	"io"
	"strings"
	"testing"
)

func TestSanitizingReader(t *testing.T) {
	tests := []struct {
		name  string
		input []byte
		want  string
	}{
		{
			name:  "plain ascii",
			input: []byte("event_id,factory_id\nE1,F1\n"),
			want:  "event_id,factory_id\nE1,F1\n",
		},
		{
			name:  "utf8 bom removed",
			input: append([]byte{0xEF, 0xBB, 0xBF}, []byte("event_id\n")...),
			want:  "event_id\n",
		},
		{
			name:  "multibyte kept",
			input: []byte("reason\nRéglage\n"),
			want:  "reason\nRéglage\n",
		},
		{
			name:  "invalid byte replaced",
			input: []byte{'a', 0xFF, 'b'},
			want:  "a�b",
		},
		{
			name:  "empty",
			input: nil,
			want:  "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := io.ReadAll(NewSanitizingReader(bytes.NewReader(tt.input)))
			if err != nil {
				t.Fatalf("ReadAll() error = %v", err)
			}
			if string(got) != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestWrapForStreaming_CountsRawBytes(t *testing.T) {
	input := "\xEF\xBB\xBFa,b\n1,2\n"

	r, counter := WrapForStreaming(strings.NewReader(input))
	got, err := io.ReadAll(r)
	if err != nil {
		t.Fatalf("ReadAll() error = %v", err)
	}

	if string(got) != "a,b\n1,2\n" {
		t.Errorf("content = %q, want %q", got, "a,b\n1,2\n")
	}
	if counter.BytesRead != int64(len(input)) {
		t.Errorf("BytesRead = %d, want %d", counter.BytesRead, len(input))
	}
}
