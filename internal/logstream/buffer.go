package logstream

import (
	"strings"
	"sync"
)

// Event is one message of a device log stream. Clear means the text
// accumulated so far is obsolete and Log starts it over.
type Event struct {
	Log      string `json:"log"`
	Clear    bool   `json:"clear"`
	Progress *int   `json:"progress"`
}

// Snapshot is the reconciled view of a stream at one point in time.
type Snapshot struct {
	Text     string `json:"log"`
	Progress *int   `json:"progress"`
}

// Buffer accumulates log text for one device. Safe for concurrent use.
type Buffer struct {
	mu       sync.Mutex
	text     strings.Builder
	progress *int
}

func (b *Buffer) Apply(ev Event) Snapshot {
	b.mu.Lock()
	defer b.mu.Unlock()

	if ev.Clear {
		b.text.Reset()
	}
	b.text.WriteString(ev.Log)
	if ev.Progress != nil {
		p := *ev.Progress
		b.progress = &p
	}
	return b.snapshotLocked()
}

func (b *Buffer) Snapshot() Snapshot {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.snapshotLocked()
}

func (b *Buffer) snapshotLocked() Snapshot {
	s := Snapshot{Text: b.text.String()}
	if b.progress != nil {
		p := *b.progress
		s.Progress = &p
	}
	return s
}
