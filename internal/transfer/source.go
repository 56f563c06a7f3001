package transfer

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// Source is a local payload with a known length. Chunks are read with
// ReadAt so the whole file never needs to sit in memory.
type Source interface {
	io.ReaderAt
	Name() string
	Size() int64
}

type FileSource struct {
	f    *os.File
	name string
	size int64
}

// OpenFile opens path as an upload source. The caller must Close it.
func OpenFile(path string) (*FileSource, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open upload source: %w", err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("stat upload source: %w", err)
	}
	if info.IsDir() {
		f.Close()
		return nil, fmt.Errorf("upload source %s is a directory", path)
	}
	return &FileSource{f: f, name: filepath.Base(path), size: info.Size()}, nil
}

func (s *FileSource) ReadAt(p []byte, off int64) (int, error) { return s.f.ReadAt(p, off) }
func (s *FileSource) Name() string                            { return s.name }
func (s *FileSource) Size() int64                             { return s.size }
func (s *FileSource) Close() error                            { return s.f.Close() }

// BytesSource serves an in-memory payload.
type BytesSource struct {
	r    *bytes.Reader
	name string
}

func NewBytesSource(name string, data []byte) *BytesSource {
	return &BytesSource{r: bytes.NewReader(data), name: name}
}

func (s *BytesSource) ReadAt(p []byte, off int64) (int, error) { return s.r.ReadAt(p, off) }
func (s *BytesSource) Name() string                            { return s.name }
func (s *BytesSource) Size() int64                             { return s.r.Size() }
