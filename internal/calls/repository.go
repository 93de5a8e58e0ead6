package calls

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotFound signals a negative lookup. It is a sentinel, not a transport
	// error: the reconciler branches on it and must be able to tell it apart
	// from a failing store.
	ErrNotFound = errors.New("calls: record not found")

	// ErrConflict signals a unique-key violation on conversation_id.
	ErrConflict = errors.New("calls: conversation already recorded")

	ErrInvalidArgument = errors.New("calls: invalid argument")

	// ErrMissingConversationID is the only unrecoverable per-event error in
	// webhook reconciliation; it maps to a 400 at the transport.
	ErrMissingConversationID = errors.New("calls: missing conversation_id")
)

// CallUpdate is a partial update: nil fields are left untouched. Absent event
// fields must never clobber existing data.
type CallUpdate struct {
	Intent        *string
	CallerPhone   *string
	Timestamp     *time.Time
	PriorityLevel *int
	Status        *string
}

// ListFilter narrows and orders List results. Default order is newest-first by
// record timestamp; ByPriority orders by priority level (unset last), then
// newest-first.
type ListFilter struct {
	Intent        string
	Status        string
	PriorityLevel *int
	ByPriority    bool
}

type Repository interface {
	Insert(ctx context.Context, rec CallRecord) (CallRecord, error)
	GetByConversationID(ctx context.Context, conversationID string) (CallRecord, error)
	Update(ctx context.Context, conversationID string, upd CallUpdate) (CallRecord, error)
	List(ctx context.Context, f ListFilter) ([]CallRecord, error)
}
