package calls

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Service owns call-record reconciliation and the record API operations.
//
// Reconciliation is lookup-then-branch per conversation_id. The branch is not
// atomic against a concurrent duplicate delivery; the repository's unique
// constraint on conversation_id closes that race, and an insert conflict is
// retried as an update.

type Service struct {
	repo Repository
	now  func() time.Time
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo, now: time.Now}
}

// WithClock overrides the service clock. Tests only.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// PostCallEvent is the reconciler's view of a verified post_call_transcription
// event. Zero values mean "absent in the payload".
type PostCallEvent struct {
	ConversationID string
	Intent         string
	CallerPhone    string
	Status         string
	OccurredAt     time.Time
}

// ReconcilePostCall applies a verified event as a create-or-update against the
// record keyed by conversation_id. Delivering the same event twice yields one
// record; a stale duplicate never regresses the stored timestamp.
func (s *Service) ReconcilePostCall(ctx context.Context, ev PostCallEvent) (CallRecord, error) {
	if ev.ConversationID == "" {
		return CallRecord{}, ErrMissingConversationID
	}

	existing, err := s.repo.GetByConversationID(ctx, ev.ConversationID)
	switch {
	case err == nil:
		return s.repo.Update(ctx, ev.ConversationID, s.mergeUpdate(existing, ev))
	case errors.Is(err, ErrNotFound):
		// Normal case: first sight of this conversation.
	default:
		// Transient store failure, not absence. Inserting here could duplicate.
		return CallRecord{}, err
	}

	created, err := s.repo.Insert(ctx, s.seedRecord(ev))
	if errors.Is(err, ErrConflict) {
		// Lost the race to a concurrent delivery of the same conversation.
		existing, err = s.repo.GetByConversationID(ctx, ev.ConversationID)
		if err != nil {
			return CallRecord{}, err
		}
		return s.repo.Update(ctx, ev.ConversationID, s.mergeUpdate(existing, ev))
	}
	return created, err
}

// mergeUpdate derives a partial update: intent always resolves (unknown
// bottom), phone and timestamp only when present, and the timestamp only when
// it does not move backwards.
func (s *Service) mergeUpdate(existing CallRecord, ev PostCallEvent) CallUpdate {
	intent := ev.Intent
	if intent == "" {
		intent = IntentUnknown
	}
	upd := CallUpdate{Intent: &intent}
	if ev.CallerPhone != "" {
		phone := ev.CallerPhone
		upd.CallerPhone = &phone
	}
	if ev.Status != "" {
		status := ev.Status
		upd.Status = &status
	}
	if !ev.OccurredAt.IsZero() && !ev.OccurredAt.Before(existing.Timestamp) {
		ts := ev.OccurredAt
		upd.Timestamp = &ts
	}
	return upd
}

func (s *Service) seedRecord(ev PostCallEvent) CallRecord {
	intent := ev.Intent
	if intent == "" {
		// Legacy events sometimes carry only a lifecycle status; use it over
		// the unknown bottom so the record stays distinguishable.
		intent = ev.Status
	}
	if intent == "" {
		intent = IntentUnknown
	}
	ts := ev.OccurredAt
	if ts.IsZero() {
		ts = s.now().UTC()
	}
	return CallRecord{
		ID:             uuid.NewString(),
		ConversationID: ev.ConversationID,
		Intent:         intent,
		CallerPhone:    ev.CallerPhone,
		Status:         ev.Status,
		Timestamp:      ts,
		CreatedAt:      s.now().UTC(),
	}
}

// CreateCallRequest is the client-initiated record creation payload.
type CreateCallRequest struct {
	ConversationID string
	Intent         string
	CallerPhone    string
	Status         string
	PriorityLevel  int
}

// Create inserts a new record. The client typically calls this when it starts
// a session, before any webhook has fired.
func (s *Service) Create(ctx context.Context, req CreateCallRequest) (CallRecord, error) {
	if req.ConversationID == "" {
		return CallRecord{}, ErrMissingConversationID
	}
	intent := req.Intent
	if intent == "" {
		intent = IntentUnknown
	}
	return s.repo.Insert(ctx, CallRecord{
		ID:             uuid.NewString(),
		ConversationID: req.ConversationID,
		Intent:         intent,
		CallerPhone:    req.CallerPhone,
		Status:         req.Status,
		PriorityLevel:  req.PriorityLevel,
		Timestamp:      s.now().UTC(),
		CreatedAt:      s.now().UTC(),
	})
}

func (s *Service) GetByConversationID(ctx context.Context, conversationID string) (CallRecord, error) {
	if conversationID == "" {
		return CallRecord{}, ErrInvalidArgument
	}
	return s.repo.GetByConversationID(ctx, conversationID)
}

func (s *Service) List(ctx context.Context, f ListFilter) ([]CallRecord, error) {
	return s.repo.List(ctx, f)
}

func (s *Service) UpdateIntent(ctx context.Context, conversationID, intent string) (CallRecord, error) {
	if conversationID == "" || intent == "" {
		return CallRecord{}, ErrInvalidArgument
	}
	return s.repo.Update(ctx, conversationID, CallUpdate{Intent: &intent})
}

func (s *Service) UpdatePhone(ctx context.Context, conversationID, phone string) (CallRecord, error) {
	if conversationID == "" || phone == "" {
		return CallRecord{}, ErrInvalidArgument
	}
	return s.repo.Update(ctx, conversationID, CallUpdate{CallerPhone: &phone})
}

// MarkConversationStarted proactively creates a record with intent unknown.
// An already-existing record is fine: the webhook may have beaten us to it.
func (s *Service) MarkConversationStarted(ctx context.Context, conversationID, callerPhone string) (CallRecord, error) {
	rec, err := s.Create(ctx, CreateCallRequest{ConversationID: conversationID, CallerPhone: callerPhone})
	if errors.Is(err, ErrConflict) {
		return s.repo.GetByConversationID(ctx, conversationID)
	}
	return rec, err
}

// ApplyConversationText classifies free text and patches the record's intent.
// Mid-conversation updates (final=false) only persist a meaningful intent;
// the final transcript always wins, even when it classifies as unknown.
func (s *Service) ApplyConversationText(ctx context.Context, conversationID, text string, final bool) (CallRecord, error) {
	if conversationID == "" {
		return CallRecord{}, ErrMissingConversationID
	}
	intent := ClassifyIntent(text)
	if !final && intent == IntentUnknown {
		return s.repo.GetByConversationID(ctx, conversationID)
	}
	return s.repo.Update(ctx, conversationID, CallUpdate{Intent: &intent})
}

// Summary aggregates record counts per intent for the dispatch dashboard.
type Summary struct {
	Total    int            `json:"total"`
	ByIntent map[string]int `json:"by_intent"`
}

func (s *Service) Summarize(ctx context.Context) (Summary, error) {
	rows, err := s.repo.List(ctx, ListFilter{})
	if err != nil {
		return Summary{}, err
	}
	out := Summary{ByIntent: map[string]int{}}
	for _, rec := range rows {
		out.Total++
		out.ByIntent[rec.Intent]++
	}
	return out, nil
}
