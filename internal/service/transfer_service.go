package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/CaioWing/harbor-console/internal/domain"
	"github.com/CaioWing/harbor-console/internal/storage"
	"github.com/CaioWing/harbor-console/internal/transfer"
)

// Banners keeps the last warning and notice raised by a transfer so they
// can be shown after the session itself has settled.
type Banners struct {
	mu      sync.Mutex
	warning string
	notice  string
}

func (b *Banners) OnProgress(int) {}
func (b *Banners) OnSettled()     {}

func (b *Banners) OnStatus(s domain.TransferSession) {
	if s.Status != domain.TransferActive {
		return
	}
	b.mu.Lock()
	b.warning, b.notice = "", ""
	b.mu.Unlock()
}

func (b *Banners) OnWarning(detail string) {
	b.mu.Lock()
	b.warning = detail
	b.mu.Unlock()
}

func (b *Banners) OnNotice(msg string) {
	b.mu.Lock()
	b.notice = msg
	b.mu.Unlock()
}

func (b *Banners) Current() (warning, notice string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.warning, b.notice
}

type TransferStatus struct {
	Session domain.TransferSession `json:"session"`
	Busy    bool                   `json:"busy"`
	Warning string                 `json:"warning,omitempty"`
	Notice  string                 `json:"notice,omitempty"`
}

// TransferService runs transfers in the background on behalf of the console
// surface. The controller enforces that only one runs at a time.
type TransferService struct {
	ctx     context.Context
	ctrl    *transfer.Controller
	store   storage.FileStore
	banners *Banners
	audit   *AuditService
	log     *slog.Logger

	mu      sync.Mutex
	claimed bool
	staged  string
	running sync.WaitGroup
}

// NewTransferService runs transfers under ctx, which should live as long as
// the server.
func NewTransferService(
	ctx context.Context,
	ctrl *transfer.Controller,
	store storage.FileStore,
	banners *Banners,
	audit *AuditService,
	log *slog.Logger,
) *TransferService {
	return &TransferService{
		ctx:     ctx,
		ctrl:    ctrl,
		store:   store,
		banners: banners,
		audit:   audit,
		log:     log,
	}
}

func (s *TransferService) Status() TransferStatus {
	warning, notice := s.banners.Current()
	s.mu.Lock()
	claimed := s.claimed
	s.mu.Unlock()
	return TransferStatus{
		Session: s.ctrl.Session(),
		Busy:    claimed || s.ctrl.Busy(),
		Warning: warning,
		Notice:  notice,
	}
}

// InUse reports whether name is the staged file currently being uploaded.
func (s *TransferService) InUse(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.claimed && s.staged == name
}

// claim reserves the controller for one transfer. It fails while another
// transfer is starting, running, or settling.
func (s *TransferService) claim(staged string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.claimed || s.ctrl.Busy() {
		return domain.ErrTransferBusy
	}
	s.claimed = true
	s.staged = staged
	return nil
}

func (s *TransferService) release() {
	s.mu.Lock()
	s.claimed = false
	s.staged = ""
	s.mu.Unlock()
}

// UploadStaged starts a chunked upload of a staged file. The claim is taken
// before returning, so a concurrent second start gets ErrTransferBusy.
func (s *TransferService) UploadStaged(actor, ip, name string) error {
	if err := s.claim(name); err != nil {
		return err
	}
	blob, err := s.store.Open(name)
	if err != nil {
		s.release()
		return fmt.Errorf("open staged file: %w", err)
	}
	if blob.Size() == 0 {
		blob.Close()
		s.release()
		return fmt.Errorf("staged file %s is empty: %w", name, domain.ErrInvalidInput)
	}

	s.running.Add(1)
	go func() {
		defer s.running.Done()
		defer s.release()
		defer blob.Close()

		err := s.ctrl.StartLocalUpload(s.ctx, blob)
		s.audit.RecordTransfer(context.WithoutCancel(s.ctx), Actor{Name: actor, IP: ip}, domain.SourceLocalFile, name, err)
		s.logOutcome(domain.SourceLocalFile, name, err)
	}()
	return nil
}

// ImportURL starts a remote import.
func (s *TransferService) ImportURL(actor, ip, rawURL string) error {
	rawURL = strings.TrimSpace(rawURL)
	if rawURL == "" {
		return fmt.Errorf("import url must not be empty: %w", domain.ErrInvalidInput)
	}
	if err := s.claim(""); err != nil {
		return err
	}

	s.running.Add(1)
	go func() {
		defer s.running.Done()
		defer s.release()

		err := s.ctrl.StartRemoteImport(s.ctx, rawURL)
		s.audit.RecordTransfer(context.WithoutCancel(s.ctx), Actor{Name: actor, IP: ip}, domain.SourceRemoteURL, rawURL, err)
		s.logOutcome(domain.SourceRemoteURL, rawURL, err)
	}()
	return nil
}

func (s *TransferService) logOutcome(kind domain.SourceKind, source string, err error) {
	if err != nil {
		s.log.Warn("transfer ended with error", "kind", kind, "source", source, "err", err)
	}
}

// Wait blocks until background transfers have returned.
func (s *TransferService) Wait() {
	s.running.Wait()
}
