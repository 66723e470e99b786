package preview

import (
	"bytes"
	"io"

	"casaflow/server/internal/models"
)

// MemoryFile is an in-memory FileHandle. Uploaded files are buffered into one
// of these so the draft can hold them until submission.
type MemoryFile struct {
	FileName string
	MIMEType string
	Data     []byte
}

// NewMemoryFile wraps a buffered upload as a FileHandle.
func NewMemoryFile(name, contentType string, data []byte) *MemoryFile {
	return &MemoryFile{FileName: name, MIMEType: contentType, Data: data}
}

func (f *MemoryFile) Name() string        { return f.FileName }
func (f *MemoryFile) ContentType() string { return f.MIMEType }

func (f *MemoryFile) Open() (io.ReadCloser, error) {
	return io.NopCloser(bytes.NewReader(f.Data)), nil
}

var _ models.FileHandle = (*MemoryFile)(nil)
