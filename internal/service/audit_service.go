package service

import (
	"context"
	"time"

	"marketplace-ledger/internal/core/domain"
	"marketplace-ledger/internal/core/ports"
	"marketplace-ledger/pkg/logger"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const auditWriteTimeout = 5 * time.Second

// auditService is the audit sink of the ledger. Entries are written off the
// caller's path; a failed write is logged and never reaches the operation that
// produced the entry.
type auditService struct {
	repo    ports.AuditRepository
	log     zerolog.Logger
	timeout time.Duration
}

// NewAuditService creates the audit sink. With a nil repo entries only go to the log.
func NewAuditService(repo ports.AuditRepository, log zerolog.Logger) ports.AuditService {
	return &auditService{repo: repo, log: logger.Component(log, "audit"), timeout: auditWriteTimeout}
}

// Log stamps entry and records it asynchronously. The write survives
// cancellation of ctx but is bounded by its own timeout.
func (s *auditService) Log(ctx context.Context, entry *domain.AuditLog) {
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	go s.persist(context.WithoutCancel(ctx), entry)
}

func (s *auditService) persist(ctx context.Context, entry *domain.AuditLog) {
	ev := s.log.Info().
		Str("audit_id", entry.ID.String()).
		Str("action", string(entry.Action)).
		Str("entity_type", entry.EntityType).
		Str("entity_id", entry.EntityID)
	if entry.ActorID != nil {
		ev = ev.Str("actor_id", entry.ActorID.String())
	}
	ev.Str("description", entry.Description).Msg("audit")

	if s.repo == nil {
		return
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	if err := s.repo.Create(ctx, entry); err != nil {
		s.log.Warn().Err(err).
			Str("audit_id", entry.ID.String()).
			Str("action", string(entry.Action)).
			Msg("failed to persist audit log")
	}
}
