package chat

import (
	"encoding/base64"
	"errors"
	"strings"
	"testing"

	"campuschat/tools/errs"
)

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, errors.New("disk gone") }

func TestAttachmentEncode(t *testing.T) {
	e := NewAttachmentEncoder()

	f, err := e.Encode("/tmp/notes.txt", strings.NewReader("hello campus"))
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if f.Name != "notes.txt" {
		t.Fatalf("want base name, got %q", f.Name)
	}
	if !strings.HasPrefix(f.Type, "text/plain") {
		t.Fatalf("want text/plain mime, got %q", f.Type)
	}
	prefix := "data:" + f.Type + ";base64,"
	if !strings.HasPrefix(f.Data, prefix) {
		t.Fatalf("data URL prefix wrong: %q", f.Data[:min(len(f.Data), 40)])
	}
	raw, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(f.Data, prefix))
	if err != nil {
		t.Fatalf("payload is not valid base64: %v", err)
	}
	if string(raw) != "hello campus" {
		t.Fatalf("round trip lost content: %q", raw)
	}
}

func TestAttachmentEncodeSniffsUnknownExtension(t *testing.T) {
	e := NewAttachmentEncoder()
	f, err := e.Encode("blob.weird", strings.NewReader("plain old text content"))
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if f.Type == "" {
		t.Fatal("mime type must be sniffed when the extension is unknown")
	}
}

func TestAttachmentEncodeReadFailure(t *testing.T) {
	e := NewAttachmentEncoder()
	if _, err := e.Encode("x.txt", failingReader{}); !errs.Is(err, errs.ErrAttachment) {
		t.Fatalf("want attachment error, got %v", err)
	}
}

func TestAttachmentStageTake(t *testing.T) {
	e := NewAttachmentEncoder()

	if _, ok := e.Pending(); ok {
		t.Fatal("fresh encoder should have nothing pending")
	}

	e.Stage(FilePayload{Name: "a.txt"})
	e.Stage(FilePayload{Name: "b.txt"}) // replaces, never queues

	got, ok := e.Take()
	if !ok || got.Name != "b.txt" {
		t.Fatalf("want staged b.txt, got %+v ok=%v", got, ok)
	}
	if _, ok := e.Take(); ok {
		t.Fatal("take must be single-shot")
	}
}
