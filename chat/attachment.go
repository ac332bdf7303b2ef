package chat

import (
	"encoding/base64"
	"io"
	"mime"
	"net/http"
	"path/filepath"
	"sync"

	"campuschat/tools/errs"
)

// AttachmentEncoder turns a local file selection into a transportable
// inline body. Exactly one pending attachment exists at a time; a new
// selection replaces the previous one.
type AttachmentEncoder struct {
	mu      sync.Mutex
	pending *FilePayload
}

func NewAttachmentEncoder() *AttachmentEncoder {
	return &AttachmentEncoder{}
}

// Encode reads the file and produces a self-contained data-URL payload,
// the same representation the browser FileReader produced in the original
// client. Single-shot and non-cancelable per file.
func (e *AttachmentEncoder) Encode(fileName string, r io.Reader) (FilePayload, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return FilePayload{}, errs.ErrAttachment.WrapMsg("read file", "name", fileName, "err", err.Error())
	}

	mimeType := mime.TypeByExtension(filepath.Ext(fileName))
	if mimeType == "" {
		mimeType = http.DetectContentType(data)
	}

	return FilePayload{
		Name: filepath.Base(fileName),
		Type: mimeType,
		Data: "data:" + mimeType + ";base64," + base64.StdEncoding.EncodeToString(data),
	}, nil
}

// Stage parks an encoded payload as the pending attachment, replacing any
// previous one.
func (e *AttachmentEncoder) Stage(f FilePayload) {
	e.mu.Lock()
	e.pending = &f
	e.mu.Unlock()
}

// Pending returns the staged attachment, if any.
func (e *AttachmentEncoder) Pending() (FilePayload, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.pending == nil {
		return FilePayload{}, false
	}
	return *e.pending, true
}

// Take removes and returns the staged attachment. The send path calls this
// so a file is never sent twice.
func (e *AttachmentEncoder) Take() (FilePayload, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.pending == nil {
		return FilePayload{}, false
	}
	f := *e.pending
	e.pending = nil
	return f, true
}
