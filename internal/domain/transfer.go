package domain

import (
	"time"

	"github.com/google/uuid"
)

// DefaultChunkSize is the fixed window used to split local uploads.
const DefaultChunkSize int64 = 10 << 20

type SourceKind string

const (
	SourceLocalFile SourceKind = "local_file"
	SourceRemoteURL SourceKind = "remote_url"
)

type TransferStatus string

const (
	TransferIdle      TransferStatus = "idle"
	TransferActive    TransferStatus = "active"
	TransferCompleted TransferStatus = "completed"
	TransferFailed    TransferStatus = "failed"
)

// Terminal reports whether the status ends a session (before the settle reset).
func (s TransferStatus) Terminal() bool {
	return s == TransferCompleted || s == TransferFailed
}

type TransferSession struct {
	ID                 uuid.UUID      `json:"id"`
	SourceKind         SourceKind     `json:"source_kind,omitempty"`
	FileName           string         `json:"file_name,omitempty"`
	URL                string         `json:"url,omitempty"`
	TotalSize          int64          `json:"total_size"`
	ChunkSize          int64          `json:"chunk_size"`
	ChunksTotal        int            `json:"chunks_total"`
	ChunksAcknowledged int            `json:"chunks_acknowledged"`
	Progress           int            `json:"progress"`
	Status             TransferStatus `json:"status"`
	LastError          string         `json:"last_error,omitempty"`
	StartedAt          *time.Time     `json:"started_at,omitempty"`
	FinishedAt         *time.Time     `json:"finished_at,omitempty"`
}

// ChunkCount returns ceil(size/chunkSize).
func ChunkCount(size, chunkSize int64) int {
	if size <= 0 || chunkSize <= 0 {
		return 0
	}
	return int((size + chunkSize - 1) / chunkSize)
}

// ProgressPercent is floored so that 100 is reported only once every chunk
// has been acknowledged.
func ProgressPercent(acked, total int) int {
	if total <= 0 {
		return 0
	}
	return acked * 100 / total
}
