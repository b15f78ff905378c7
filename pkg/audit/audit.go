// Package audit provides the append-only audit sink. Every orchestrator and
// issue-engine mutation flows through it: the entry is written durably and
// then announced on the event bus.
package audit

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/custodia-hq/custodia/pkg/eventbus"
	"github.com/custodia-hq/custodia/pkg/events"
	"github.com/custodia-hq/custodia/pkg/models"
	"github.com/custodia-hq/custodia/pkg/persistence"
)

// Sink records state transitions. Implementations must be safe for
// concurrent use.
type Sink interface {
	Record(ctx context.Context, entry *models.AuditEntry) error
}

// PersistedSink writes entries to the audit repository and publishes an
// audit.recorded event. The durable write is authoritative; publish failures
// are logged and swallowed.
type PersistedSink struct {
	repo      persistence.AuditRepository
	publisher eventbus.EventPublisher
	logger    *slog.Logger
}

func NewPersistedSink(repo persistence.AuditRepository, publisher eventbus.EventPublisher, logger *slog.Logger) *PersistedSink {
	return &PersistedSink{
		repo:      repo,
		publisher: publisher,
		logger:    logger.With("module", "audit"),
	}
}

func (s *PersistedSink) Record(ctx context.Context, entry *models.AuditEntry) error {
	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}

	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now()
	}

	if err := s.repo.Append(ctx, entry); err != nil {
		return err
	}

	if s.publisher == nil {
		return nil
	}

	event := events.AuditRecorded{
		BaseEvent: events.BaseEvent{
			ID:        entry.ID,
			Type:      events.AuditRecordedEvent,
			Timestamp: entry.Timestamp,
		},
		EntryID:    entry.ID,
		EntityType: entry.EntityType,
		EntityID:   entry.EntityID,
		Action:     entry.Action,
	}

	if err := s.publisher.Publish(ctx, entry.EntityID, event); err != nil {
		s.logger.Warn("Failed to publish audit event",
			"entry_id", entry.ID,
			"entity_type", entry.EntityType,
			"entity_id", entry.EntityID,
			"error", err)
	}

	return nil
}

// Entry is a convenience builder for the common case of a system-actor
// transition with before/after snapshots.
func Entry(actor string, actorType models.ActorType, action, entityType, entityID string, previous, next any) *models.AuditEntry {
	return &models.AuditEntry{
		ID:            uuid.New().String(),
		Actor:         actor,
		ActorType:     actorType,
		Action:        action,
		EntityType:    entityType,
		EntityID:      entityID,
		PreviousState: models.Snapshot(previous),
		NewState:      models.Snapshot(next),
		Timestamp:     time.Now(),
	}
}

var _ Sink = (*PersistedSink)(nil)
