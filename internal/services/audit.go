package services

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/go-authgate/mcpgate/internal/models"
	"github.com/go-authgate/mcpgate/internal/util"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	auditBatchSize     = 100
	auditFlushInterval = time.Second
	auditWriteTimeout  = 10 * time.Second
)

// AuditWriter persists audit entries.
type AuditWriter interface {
	CreateAuditLogBatch(ctx context.Context, logs []*models.AuditLog) error
}

// AuditLogEntry is what callers report; the service stamps ID, time and
// client IP before it is queued.
type AuditLogEntry struct {
	EventType    models.EventType
	Severity     models.EventSeverity
	ActorUserID  string
	ActorIP      string
	ResourceType models.ResourceType
	ResourceID   string
	Action       string
	Details      models.AuditDetails
	Success      bool
	ErrorMessage string
}

// AuditService queues audit entries and writes them from one background
// goroutine in batches of up to auditBatchSize, at least every
// auditFlushInterval. A nil or disabled service discards everything.
type AuditService struct {
	store   AuditWriter
	log     *zap.Logger
	enabled bool

	queue chan *models.AuditLog
	stop  chan struct{}
	done  chan struct{}
	once  sync.Once
}

func NewAuditService(w AuditWriter, log *zap.Logger, enabled bool, bufferSize int) *AuditService {
	if bufferSize <= 0 {
		bufferSize = 1000
	}
	s := &AuditService{
		store:   w,
		log:     log.Named("audit"),
		enabled: enabled,
		queue:   make(chan *models.AuditLog, bufferSize),
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}
	if !enabled {
		close(s.done)
		s.log.Info("audit logging disabled")
		return s
	}

	go s.run()
	s.log.Info("audit logging enabled", zap.Int("buffer_size", bufferSize))
	return s
}

func (s *AuditService) run() {
	defer close(s.done)

	ticker := time.NewTicker(auditFlushInterval)
	defer ticker.Stop()

	batch := make([]*models.AuditLog, 0, auditBatchSize)
	flush := func() {
		if len(batch) == 0 {
			return
		}
		s.write(batch)
		batch = make([]*models.AuditLog, 0, auditBatchSize)
	}

	for {
		select {
		case entry := <-s.queue:
			if batch = append(batch, entry); len(batch) >= auditBatchSize {
				flush()
			}
		case <-ticker.C:
			flush()
		case <-s.stop:
			for {
				select {
				case entry := <-s.queue:
					if batch = append(batch, entry); len(batch) >= auditBatchSize {
						flush()
					}
				default:
					flush()
					return
				}
			}
		}
	}
}

func (s *AuditService) write(batch []*models.AuditLog) {
	ctx, cancel := context.WithTimeout(context.Background(), auditWriteTimeout)
	defer cancel()
	if err := s.store.CreateAuditLogBatch(ctx, batch); err != nil {
		s.log.Error("audit batch lost", zap.Int("count", len(batch)), zap.Error(err))
	}
}

func (s *AuditService) build(ctx context.Context, entry AuditLogEntry) *models.AuditLog {
	if entry.ActorIP == "" {
		entry.ActorIP = util.ClientIP(ctx)
	}
	return &models.AuditLog{
		ID:           uuid.New().String(),
		EventType:    entry.EventType,
		Severity:     entry.Severity,
		ActorUserID:  entry.ActorUserID,
		ActorIP:      entry.ActorIP,
		ResourceType: entry.ResourceType,
		ResourceID:   entry.ResourceID,
		Action:       entry.Action,
		Details:      maskSensitiveDetails(entry.Details),
		Success:      entry.Success,
		ErrorMessage: entry.ErrorMessage,
		CreatedAt:    time.Now(),
	}
}

// Log queues an entry without blocking; when the queue is full the entry is
// dropped and a warning logged.
func (s *AuditService) Log(ctx context.Context, entry AuditLogEntry) {
	if s == nil || !s.enabled {
		return
	}

	select {
	case s.queue <- s.build(ctx, entry):
	default:
		s.log.Warn("audit queue full, event dropped",
			zap.String("event_type", string(entry.EventType)))
	}
}

// LogSync bypasses the queue and writes the entry before returning.
func (s *AuditService) LogSync(ctx context.Context, entry AuditLogEntry) error {
	if s == nil || !s.enabled {
		return nil
	}
	return s.store.CreateAuditLogBatch(ctx, []*models.AuditLog{s.build(ctx, entry)})
}

// Shutdown drains the queue, writes the final batch and waits for the
// worker, or gives up when ctx ends. Safe to call more than once.
func (s *AuditService) Shutdown(ctx context.Context) error {
	if s == nil || !s.enabled {
		return nil
	}
	s.once.Do(func() { close(s.stop) })

	select {
	case <-s.done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("audit shutdown: %w", ctx.Err())
	}
}

// maskSensitiveDetails redacts values whose key looks like a credential.
// Keys ending in _prefix carry only a short token prefix and are kept.
func maskSensitiveDetails(details models.AuditDetails) models.AuditDetails {
	if details == nil {
		return nil
	}

	masked := make(models.AuditDetails, len(details))
	for key, value := range details {
		lower := strings.ToLower(key)
		switch {
		case strings.HasSuffix(lower, "_prefix"):
			masked[key] = value
		case strings.Contains(lower, "secret"),
			strings.Contains(lower, "password"),
			strings.Contains(lower, "token"),
			lower == "code":
			masked[key] = "***REDACTED***"
		default:
			masked[key] = value
		}
	}
	return masked
}
