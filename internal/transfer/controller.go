package transfer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/CaioWing/harbor-console/internal/client"
	"github.com/CaioWing/harbor-console/internal/domain"
)

// ImportNotice is shown after a successful remote import.
const ImportNotice = "Software creation (or replacement) successful"

const DefaultSettleDelay = time.Second

// Transport delivers chunks and URL imports to the backend. UploadChunk must
// not retain chunk.Data after it returns.
type Transport interface {
	UploadChunk(ctx context.Context, chunk client.ChunkRequest) error
	ImportURL(ctx context.Context, rawURL string) error
}

// FailurePolicy decides what a non-rejection chunk failure does to a session.
type FailurePolicy int

const (
	// PolicyContinue logs the failure and moves on to the next chunk. The
	// session then ends failed without a user-facing warning.
	PolicyContinue FailurePolicy = iota
	// PolicyHalt stops at the first failure and reports it.
	PolicyHalt
)

func ParseFailurePolicy(haltOnError bool) FailurePolicy {
	if haltOnError {
		return PolicyHalt
	}
	return PolicyContinue
}

func (p FailurePolicy) String() string {
	if p == PolicyHalt {
		return "halt"
	}
	return "continue"
}

// Controller owns one transfer session at a time.
type Controller struct {
	transport Transport
	chunkSize int64
	settle    time.Duration
	policy    FailurePolicy
	log       *slog.Logger
	observer  Observer
	afterFunc func(time.Duration, func())
	now       func() time.Time

	mu      sync.Mutex
	session domain.TransferSession
	idle    chan struct{}
}

type Option func(*Controller)

func WithChunkSize(n int64) Option {
	return func(c *Controller) {
		if n > 0 {
			c.chunkSize = n
		}
	}
}

func WithSettleDelay(d time.Duration) Option {
	return func(c *Controller) { c.settle = d }
}

func WithFailurePolicy(p FailurePolicy) Option {
	return func(c *Controller) { c.policy = p }
}

func WithLogger(log *slog.Logger) Option {
	return func(c *Controller) { c.log = log }
}

// WithObserver adds an observer; may be given more than once.
func WithObserver(o Observer) Option {
	return func(c *Controller) {
		if existing, ok := c.observer.(Observers); ok {
			c.observer = append(existing, o)
			return
		}
		c.observer = Observers{o}
	}
}

// WithAfterFunc replaces time.AfterFunc for the settle timer.
func WithAfterFunc(fn func(time.Duration, func())) Option {
	return func(c *Controller) { c.afterFunc = fn }
}

func WithClock(now func() time.Time) Option {
	return func(c *Controller) { c.now = now }
}

func New(transport Transport, opts ...Option) *Controller {
	idle := make(chan struct{})
	close(idle)

	c := &Controller{
		transport: transport,
		chunkSize: domain.DefaultChunkSize,
		settle:    DefaultSettleDelay,
		policy:    PolicyContinue,
		log:       slog.Default(),
		observer:  Observers{},
		afterFunc: func(d time.Duration, f func()) { time.AfterFunc(d, f) },
		now:       time.Now,
		session:   domain.TransferSession{Status: domain.TransferIdle, ChunkSize: domain.DefaultChunkSize},
		idle:      idle,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.session.ChunkSize = c.chunkSize
	return c
}

// Session returns a copy of the current session.
func (c *Controller) Session() domain.TransferSession {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session
}

// Busy is true from start until the settle reset; submit controls stay
// disabled while it holds.
func (c *Controller) Busy() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session.Status != domain.TransferIdle
}

// WaitIdle blocks until the current session has settled back to idle.
func (c *Controller) WaitIdle(ctx context.Context) error {
	c.mu.Lock()
	ch := c.idle
	c.mu.Unlock()

	select {
	case <-ch:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *Controller) begin(s domain.TransferSession) (domain.TransferSession, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.session.Status != domain.TransferIdle {
		return domain.TransferSession{}, domain.ErrTransferBusy
	}

	now := c.now()
	s.ID = uuid.New()
	s.ChunkSize = c.chunkSize
	s.Status = domain.TransferActive
	s.StartedAt = &now
	c.session = s
	c.idle = make(chan struct{})
	return c.session, nil
}

// StartLocalUpload sends src to the backend in fixed-size chunks, one
// request in flight at a time. It returns once the session reached a
// terminal state; the settle reset happens afterwards in the background.
func (c *Controller) StartLocalUpload(ctx context.Context, src Source) error {
	if src == nil || src.Size() <= 0 {
		return fmt.Errorf("upload source must not be empty: %w", domain.ErrInvalidInput)
	}

	size := src.Size()
	total := domain.ChunkCount(size, c.chunkSize)
	session, err := c.begin(domain.TransferSession{
		SourceKind:  domain.SourceLocalFile,
		FileName:    src.Name(),
		TotalSize:   size,
		ChunksTotal: total,
	})
	if err != nil {
		return err
	}

	c.log.Info("upload started",
		"session", session.ID, "file", session.FileName, "size", size, "chunks", total)
	c.observer.OnStatus(session)
	c.observer.OnProgress(0)

	var (
		buf     = make([]byte, c.chunkSize)
		missed  int
		failure error
		warning string
	)

	for i := 0; i < total; i++ {
		if err := ctx.Err(); err != nil {
			failure = fmt.Errorf("upload interrupted: %w", err)
			break
		}

		off := int64(i) * c.chunkSize
		n := c.chunkSize
		if rest := size - off; rest < n {
			n = rest
		}
		data := buf[:n]
		if read, err := src.ReadAt(data, off); err != nil && !(errors.Is(err, io.EOF) && int64(read) == n) {
			failure = fmt.Errorf("read chunk %d: %w", i, err)
			break
		}

		err := c.transport.UploadChunk(ctx, client.ChunkRequest{
			Index:    i,
			FileName: session.FileName,
			Data:     data,
			Init:     i == 0,
			Done:     i == total-1,
		})
		if err != nil {
			if client.IsRejection(err) {
				failure = err
				warning, _ = client.DetailOf(err)
				break
			}
			if c.policy == PolicyHalt {
				failure = err
				warning = errorMessage(err)
				break
			}
			missed++
			c.log.Warn("chunk upload failed, continuing with next chunk",
				"session", session.ID, "chunk", i, "err", err)
			continue
		}

		if p, changed := c.ack(); changed {
			c.observer.OnProgress(p)
		}
	}

	if failure == nil && missed > 0 {
		failure = fmt.Errorf("%d of %d chunks were not acknowledged", missed, total)
	}
	return c.finish(failure, warning, "")
}

// StartRemoteImport asks the backend to fetch the artifact at rawURL itself.
func (c *Controller) StartRemoteImport(ctx context.Context, rawURL string) error {
	rawURL = strings.TrimSpace(rawURL)
	if rawURL == "" {
		return fmt.Errorf("import url must not be empty: %w", domain.ErrInvalidInput)
	}

	session, err := c.begin(domain.TransferSession{
		SourceKind: domain.SourceRemoteURL,
		URL:        rawURL,
	})
	if err != nil {
		return err
	}

	c.log.Info("remote import started", "session", session.ID, "url", rawURL)
	c.observer.OnStatus(session)

	if err := c.transport.ImportURL(ctx, rawURL); err != nil {
		warning, _ := client.DetailOf(err)
		return c.finish(err, warning, "")
	}

	c.mu.Lock()
	c.session.ChunksTotal = 1
	c.session.ChunksAcknowledged = 1
	c.session.Progress = 100
	c.mu.Unlock()
	return c.finish(nil, "", ImportNotice)
}

// ack records one acknowledged chunk and returns the new progress.
func (c *Controller) ack() (int, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.session.ChunksAcknowledged < c.session.ChunksTotal {
		c.session.ChunksAcknowledged++
	}
	p := domain.ProgressPercent(c.session.ChunksAcknowledged, c.session.ChunksTotal)
	if p <= c.session.Progress {
		return c.session.Progress, false
	}
	c.session.Progress = p
	return p, true
}

func (c *Controller) finish(failure error, warning, notice string) error {
	c.mu.Lock()
	now := c.now()
	c.session.FinishedAt = &now
	if failure != nil {
		c.session.Status = domain.TransferFailed
		c.session.LastError = errorMessage(failure)
	} else {
		c.session.Status = domain.TransferCompleted
	}
	snap := c.session
	c.mu.Unlock()

	if failure != nil {
		c.log.Warn("transfer failed",
			"session", snap.ID, "kind", snap.SourceKind,
			"acknowledged", snap.ChunksAcknowledged, "total", snap.ChunksTotal, "err", failure)
	} else {
		c.log.Info("transfer completed", "session", snap.ID, "kind", snap.SourceKind, "chunks", snap.ChunksTotal)
	}

	c.observer.OnStatus(snap)
	if warning != "" {
		c.observer.OnWarning(warning)
	}
	if notice != "" {
		c.observer.OnNotice(notice)
	}

	c.afterFunc(c.settle, c.reset)
	return failure
}

func (c *Controller) reset() {
	c.mu.Lock()
	c.session = domain.TransferSession{Status: domain.TransferIdle, ChunkSize: c.chunkSize}
	snap := c.session
	idle := c.idle
	c.mu.Unlock()

	c.observer.OnProgress(0)
	c.observer.OnStatus(snap)
	c.observer.OnSettled()
	close(idle)
}

func errorMessage(err error) string {
	if detail, ok := client.DetailOf(err); ok {
		return detail
	}
	return err.Error()
}
