package calls

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryRepo is an in-memory Repository for tests and early development.
// It reproduces the semantics the Postgres repo relies on: unique
// conversation_id, partial updates, and filtered/ordered listing.

type MemoryRepo struct {
	mu      sync.Mutex
	records map[string]CallRecord
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{records: map[string]CallRecord{}}
}

func (r *MemoryRepo) Insert(ctx context.Context, rec CallRecord) (CallRecord, error) {
	if rec.ConversationID == "" {
		return CallRecord{}, ErrInvalidArgument
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.records[rec.ConversationID]; ok {
		return CallRecord{}, ErrConflict
	}
	now := time.Now().UTC()
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = now
	}
	rec.UpdatedAt = now
	r.records[rec.ConversationID] = rec
	return rec, nil
}

func (r *MemoryRepo) GetByConversationID(ctx context.Context, conversationID string) (CallRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.records[conversationID]
	if !ok {
		return CallRecord{}, ErrNotFound
	}
	return rec, nil
}

func (r *MemoryRepo) Update(ctx context.Context, conversationID string, upd CallUpdate) (CallRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.records[conversationID]
	if !ok {
		return CallRecord{}, ErrNotFound
	}
	if upd.Intent != nil {
		rec.Intent = *upd.Intent
	}
	if upd.CallerPhone != nil {
		rec.CallerPhone = *upd.CallerPhone
	}
	if upd.Timestamp != nil {
		rec.Timestamp = *upd.Timestamp
	}
	if upd.PriorityLevel != nil {
		rec.PriorityLevel = *upd.PriorityLevel
	}
	if upd.Status != nil {
		rec.Status = *upd.Status
	}
	rec.UpdatedAt = time.Now().UTC()
	r.records[conversationID] = rec
	return rec, nil
}

func (r *MemoryRepo) List(ctx context.Context, f ListFilter) ([]CallRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]CallRecord, 0, len(r.records))
	for _, rec := range r.records {
		if f.Intent != "" && rec.Intent != f.Intent {
			continue
		}
		if f.Status != "" && rec.Status != f.Status {
			continue
		}
		if f.PriorityLevel != nil && rec.PriorityLevel != *f.PriorityLevel {
			continue
		}
		out = append(out, rec)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if f.ByPriority {
			pi, pj := out[i].PriorityLevel, out[j].PriorityLevel
			if pi != pj {
				// 0 means unset; sort those after any explicit priority.
				if pi == 0 {
					return false
				}
				if pj == 0 {
					return true
				}
				return pi < pj
			}
		}
		return out[i].Timestamp.After(out[j].Timestamp)
	})
	return out, nil
}
