package models

import (
	"encoding/json"
	"time"
)

// ActorType distinguishes who performed an audited action.
type ActorType string

const (
	ActorHuman  ActorType = "human"
	ActorAgent  ActorType = "agent"
	ActorSystem ActorType = "system"
)

// AuditEntry is one append-only record of a state transition. Snapshots are
// stored as raw JSON so the trail stays readable even if the entity schema
// evolves.
type AuditEntry struct {
	ID            string          `json:"id"`
	Actor         string          `json:"actor"      validate:"required"`
	ActorType     ActorType       `json:"actor_type" validate:"required,oneof=human agent system"`
	Action        string          `json:"action"     validate:"required"`
	EntityType    string          `json:"entity_type" validate:"required"`
	EntityID      string          `json:"entity_id"   validate:"required"`
	PreviousState json.RawMessage `json:"previous_state,omitempty"`
	NewState      json.RawMessage `json:"new_state,omitempty"`
	Rationale     string          `json:"rationale,omitempty"`
	Timestamp     time.Time       `json:"timestamp"`
}

// Snapshot serializes an entity for inclusion in an audit entry. A nil entity
// yields a nil snapshot; serialization failures are swallowed because the
// audit write itself must not fail on snapshot problems.
func Snapshot(entity any) json.RawMessage {
	if entity == nil {
		return nil
	}

	raw, err := json.Marshal(entity)
	if err != nil {
		return nil
	}

	return raw
}
