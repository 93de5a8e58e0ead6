package calls

import "time"

// CallRecord is the persisted emergency-call record.
//
// ConversationID is the provider-assigned identifier for one voice session and
// the idempotency key for webhook reconciliation: the store must enforce a
// UNIQUE constraint on it, since concurrent deliveries can race the
// lookup-then-insert path.
//
// Intent is an open taxonomy. The fixed emergency categories below are what the
// classifier produces; lifecycle labels (e.g. "call_completed") may also land
// here from legacy callers.

type CallRecord struct {
	ID             string `json:"id" db:"id"`
	ConversationID string `json:"conversation_id" db:"conversation_id"`

	Intent      string `json:"intent" db:"intent"`
	CallerPhone string `json:"caller_phone,omitempty" db:"caller_phone"`

	// Timestamp is the event time reported by the provider, or the creation
	// time until an authoritative event arrives. Newest-first list ordering
	// keys on it. It must never move backwards from a stale duplicate.
	Timestamp time.Time `json:"timestamp" db:"timestamp"`

	// PriorityLevel is optional (0 = unset); lower is more urgent.
	PriorityLevel int `json:"priority_level,omitempty" db:"priority_level"`

	// Status is an optional lifecycle label independent of intent.
	Status string `json:"status,omitempty" db:"status"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

const (
	IntentFire    = "fire"
	IntentMedical = "medical"
	IntentPolice  = "police"
	IntentTraffic = "traffic"
	IntentRescue  = "rescue"
	IntentUnknown = "unknown"
)

// Lifecycle labels the webhook transport maps provider call statuses onto.
const (
	StatusCallCompleted = "call_completed"
	StatusCallFailed    = "call_failed"
	StatusCallTimeout   = "call_timeout"
)
