package storage

import (
	"io"
	"time"
)

// StagedFile describes a payload waiting to be uploaded to the backend.
type StagedFile struct {
	Name    string    `json:"name"`
	Size    int64     `json:"size"`
	ModTime time.Time `json:"modified_at"`
}

// Blob is an opened staged file. It satisfies the transfer source contract.
type Blob interface {
	io.ReaderAt
	io.Closer
	Name() string
	Size() int64
}

type FileStore interface {
	Save(name string, reader io.Reader) (StagedFile, error)
	Open(name string) (Blob, error)
	List() ([]StagedFile, error)
	Delete(name string) error
}
