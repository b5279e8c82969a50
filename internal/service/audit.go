package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/flicky/phone-marketplace/internal/dto"
	"github.com/flicky/phone-marketplace/internal/model"
	"github.com/flicky/phone-marketplace/internal/repository"
)

const (
	defaultAuditBuffer = 256
	auditWriteTimeout  = 5 * time.Second
)

// AuditEntry is one admin action before it is persisted.
type AuditEntry struct {
	AdminID    uuid.UUID
	AdminName  string
	Action     string
	TargetType string
	TargetID   string
	Details    map[string]any
	IPAddress  string
	UserAgent  string
}

// AuditService writes the admin operations log. Record queues entries for a
// background writer so request handlers never wait on the log table.
type AuditService struct {
	repo  repository.AdminLogRepository
	log   *slog.Logger
	queue chan model.AdminLog
	wg    sync.WaitGroup

	mu     sync.Mutex
	closed bool
}

func NewAuditService(repo repository.AdminLogRepository, bufferSize int, log *slog.Logger) *AuditService {
	if bufferSize <= 0 {
		bufferSize = defaultAuditBuffer
	}
	return &AuditService{repo: repo, log: log, queue: make(chan model.AdminLog, bufferSize)}
}

// Start runs the writer until Stop drains the queue.
func (s *AuditService) Start() {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		for entry := range s.queue {
			ctx, cancel := context.WithTimeout(context.Background(), auditWriteTimeout)
			if err := s.repo.Create(ctx, &entry); err != nil {
				s.log.Error("write admin log", "action", entry.Action, "target_type", entry.TargetType, "error", err)
			}
			cancel()
		}
	}()
	s.log.Info("audit recorder started")
}

// Stop closes the queue and waits for queued entries to be written. Entries
// recorded afterwards are dropped.
func (s *AuditService) Stop() {
	s.mu.Lock()
	if !s.closed {
		s.closed = true
		close(s.queue)
	}
	s.mu.Unlock()
	s.wg.Wait()
}

// Record enqueues an entry. It drops the entry with a warning when the
// queue is full or the recorder has stopped.
func (s *AuditService) Record(e AuditEntry) {
	entry, err := toAdminLog(e)
	if err != nil {
		s.log.Warn("invalid admin log entry", "action", e.Action, "error", err)
		return
	}
	entry.Timestamp = time.Now().UTC()

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		s.log.Warn("audit recorder stopped, dropping entry", "action", e.Action, "target_type", e.TargetType)
		return
	}
	select {
	case s.queue <- entry:
	default:
		s.log.Warn("audit queue full, dropping entry", "action", e.Action, "target_type", e.TargetType)
	}
}

// Log persists an entry synchronously.
func (s *AuditService) Log(ctx context.Context, e AuditEntry) (*model.AdminLog, error) {
	entry, err := toAdminLog(e)
	if err != nil {
		return nil, err
	}
	if err := s.repo.Create(ctx, &entry); err != nil {
		return nil, fmt.Errorf("create admin log: %w", err)
	}
	return &entry, nil
}

func (s *AuditService) List(ctx context.Context, filter model.AdminLogFilter, page model.Page) ([]model.AdminLog, int, error) {
	logs, total, err := s.repo.List(ctx, filter, page)
	if err != nil {
		return nil, 0, fmt.Errorf("list admin logs: %w", err)
	}
	return logs, total, nil
}

func toAdminLog(e AuditEntry) (model.AdminLog, error) {
	if !model.ValidAction(e.Action) {
		return model.AdminLog{}, fmt.Errorf("%w: unknown action %q", ErrInvalidInput, e.Action)
	}
	if !model.ValidTargetType(e.TargetType) {
		return model.AdminLog{}, fmt.Errorf("%w: unknown target type %q", ErrInvalidInput, e.TargetType)
	}
	details := json.RawMessage("{}")
	if len(e.Details) > 0 {
		raw, err := json.Marshal(e.Details)
		if err != nil {
			return model.AdminLog{}, fmt.Errorf("%w: details: %v", ErrInvalidInput, err)
		}
		details = raw
	}
	return model.AdminLog{
		AdminID:    e.AdminID,
		AdminName:  e.AdminName,
		Action:     e.Action,
		TargetType: e.TargetType,
		TargetID:   e.TargetID,
		Details:    details,
		IPAddress:  e.IPAddress,
		UserAgent:  e.UserAgent,
	}, nil
}

func ToAdminLogResponse(l model.AdminLog) dto.AdminLogResponse {
	resp := dto.AdminLogResponse{
		ID:         l.ID,
		AdminID:    l.AdminID,
		AdminName:  l.AdminName,
		Action:     l.Action,
		TargetType: l.TargetType,
		TargetID:   l.TargetID,
		IPAddress:  l.IPAddress,
		UserAgent:  l.UserAgent,
		Timestamp:  l.Timestamp,
	}
	if len(l.Details) > 0 {
		_ = json.Unmarshal(l.Details, &resp.Details)
	}
	return resp
}
