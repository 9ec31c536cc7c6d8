package model

import (
	"encoding/json"
	"fmt"
	"time"
)

// MaxRetry is the number of failed dispatch attempts after which a pending
// action is moved to the dead-letter collection.
const MaxRetry = 3

// OperationKind is the mutation a pending action applies remotely.
type OperationKind string

const (
	OpCreate OperationKind = "create"
	OpUpdate OperationKind = "update"
	OpDelete OperationKind = "delete"
)

// Valid reports whether o is one of the known operations.
func (o OperationKind) Valid() bool {
	switch o {
	case OpCreate, OpUpdate, OpDelete:
		return true
	}
	return false
}

// EntityKind identifies the remote resource family an action targets.
type EntityKind string

const (
	EntitySession         EntityKind = "session"
	EntityPersonalRecord  EntityKind = "personal-record"
	EntityWeightEntry     EntityKind = "weight-entry"
	EntityExercise        EntityKind = "exercise"
	EntityPlan            EntityKind = "plan"
	EntityPlanDayExercise EntityKind = "plan-day-exercise"
	EntityPlanDay         EntityKind = "plan-day"
)

// EntityKinds lists every entity kind in drain priority order.
var EntityKinds = []EntityKind{
	EntitySession,
	EntityPersonalRecord,
	EntityWeightEntry,
	EntityExercise,
	EntityPlan,
	EntityPlanDayExercise,
	EntityPlanDay,
}

// Priority returns the drain priority of k. Lower numbers drain first;
// unknown kinds sort after every known kind.
func (k EntityKind) Priority() int {
	for i, known := range EntityKinds {
		if known == k {
			return i + 1
		}
	}
	return len(EntityKinds) + 1
}

// Valid reports whether k is one of the known entity kinds.
func (k EntityKind) Valid() bool {
	return k.Priority() <= len(EntityKinds)
}

// ParseEntityKind converts a string to an EntityKind.
func ParseEntityKind(s string) (EntityKind, error) {
	k := EntityKind(s)
	if !k.Valid() {
		return "", fmt.Errorf("unknown entity kind %q", s)
	}
	return k, nil
}

// Payload is the serialized body of a queued mutation tagged with the
// entity kind it belongs to.
type Payload struct {
	Kind EntityKind      `json:"kind"`
	Body json.RawMessage `json:"body,omitempty"`
}

// NewPayload serializes v as the body of a payload for kind.
func NewPayload(kind EntityKind, v any) (Payload, error) {
	if v == nil {
		return Payload{Kind: kind}, nil
	}
	if raw, ok := v.(json.RawMessage); ok {
		return Payload{Kind: kind, Body: raw}, nil
	}
	body, err := json.Marshal(v)
	if err != nil {
		return Payload{}, fmt.Errorf("marshal %s payload: %w", kind, err)
	}
	return Payload{Kind: kind, Body: body}, nil
}

// Decode unmarshals the payload body into v.
func (p Payload) Decode(v any) error {
	if len(p.Body) == 0 {
		return nil
	}
	if err := json.Unmarshal(p.Body, v); err != nil {
		return fmt.Errorf("decode %s payload: %w", p.Kind, err)
	}
	return nil
}

// PendingAction is a queued mutation awaiting remote application.
type PendingAction struct {
	ID         string        `json:"id"`
	Operation  OperationKind `json:"operation"`
	Entity     EntityKind    `json:"entity"`
	EntityID   string        `json:"entity_id"`
	Payload    Payload       `json:"payload"`
	EnqueuedAt time.Time     `json:"enqueued_at"`
	RetryCount int           `json:"retry_count"`
}

// Exhausted reports whether the action has used up its retry budget.
func (a PendingAction) Exhausted() bool {
	return a.RetryCount >= MaxRetry
}

// DeadLetterAction is a pending action that exhausted its retries.
// Dead letters are retained for inspection and never retried automatically.
type DeadLetterAction struct {
	PendingAction
	FailedAt time.Time `json:"failed_at"`
	Error    string    `json:"error"`
}
