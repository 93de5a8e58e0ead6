package calls

import (
	"context"
	"errors"
	"testing"
	"time"
)

func fixedClock(sec int64) func() time.Time {
	return func() time.Time { return time.Unix(sec, 0).UTC() }
}

func TestReconcilePostCall_CreatesOnFirstSight(t *testing.T) {
	svc := NewService(NewMemoryRepo()).WithClock(fixedClock(1700000000))

	rec, err := svc.ReconcilePostCall(context.Background(), PostCallEvent{
		ConversationID: "conv-1",
		Intent:         IntentMedical,
		CallerPhone:    "+15551234567",
		OccurredAt:     time.Unix(1700000100, 0).UTC(),
	})
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	if rec.ConversationID != "conv-1" || rec.Intent != IntentMedical {
		t.Fatalf("unexpected record: %+v", rec)
	}
	if rec.CallerPhone != "+15551234567" {
		t.Fatalf("expected caller phone, got %q", rec.CallerPhone)
	}
	if !rec.Timestamp.Equal(time.Unix(1700000100, 0).UTC()) {
		t.Fatalf("expected event timestamp, got %v", rec.Timestamp)
	}
	if rec.ID == "" {
		t.Fatalf("expected generated id")
	}
}

func TestReconcilePostCall_DefaultsIntentUnknown(t *testing.T) {
	svc := NewService(NewMemoryRepo())

	rec, err := svc.ReconcilePostCall(context.Background(), PostCallEvent{ConversationID: "conv-2"})
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	if rec.Intent != IntentUnknown {
		t.Fatalf("expected unknown intent, got %q", rec.Intent)
	}
}

func TestReconcilePostCall_MissingConversationID(t *testing.T) {
	svc := NewService(NewMemoryRepo())

	_, err := svc.ReconcilePostCall(context.Background(), PostCallEvent{Intent: IntentFire})
	if !errors.Is(err, ErrMissingConversationID) {
		t.Fatalf("expected ErrMissingConversationID, got %v", err)
	}
}

func TestReconcilePostCall_DuplicateDeliveryIsIdempotent(t *testing.T) {
	repo := NewMemoryRepo()
	svc := NewService(repo)

	ev := PostCallEvent{
		ConversationID: "conv-3",
		Intent:         IntentFire,
		CallerPhone:    "+15550001111",
		OccurredAt:     time.Unix(1700000200, 0).UTC(),
	}
	if _, err := svc.ReconcilePostCall(context.Background(), ev); err != nil {
		t.Fatalf("first delivery: %v", err)
	}
	rec, err := svc.ReconcilePostCall(context.Background(), ev)
	if err != nil {
		t.Fatalf("second delivery: %v", err)
	}

	rows, err := repo.List(context.Background(), ListFilter{})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("expected exactly one record, got %d", len(rows))
	}
	if rec.Intent != IntentFire || rec.CallerPhone != "+15550001111" {
		t.Fatalf("unexpected record after duplicate delivery: %+v", rec)
	}
}

func TestReconcilePostCall_UpdateMergesWithoutClobbering(t *testing.T) {
	svc := NewService(NewMemoryRepo())

	if _, err := svc.ReconcilePostCall(context.Background(), PostCallEvent{
		ConversationID: "conv-4",
		Intent:         IntentPolice,
		CallerPhone:    "+15557654321",
		OccurredAt:     time.Unix(1700000300, 0).UTC(),
	}); err != nil {
		t.Fatalf("first delivery: %v", err)
	}

	// Second event carries no phone; the stored one must survive.
	rec, err := svc.ReconcilePostCall(context.Background(), PostCallEvent{
		ConversationID: "conv-4",
		Intent:         IntentPolice,
		OccurredAt:     time.Unix(1700000400, 0).UTC(),
	})
	if err != nil {
		t.Fatalf("second delivery: %v", err)
	}
	if rec.CallerPhone != "+15557654321" {
		t.Fatalf("phone clobbered: %+v", rec)
	}
	if !rec.Timestamp.Equal(time.Unix(1700000400, 0).UTC()) {
		t.Fatalf("expected newer timestamp applied, got %v", rec.Timestamp)
	}
}

func TestReconcilePostCall_StaleDuplicateDoesNotRegressTimestamp(t *testing.T) {
	svc := NewService(NewMemoryRepo())

	fresh := time.Unix(1700000500, 0).UTC()
	if _, err := svc.ReconcilePostCall(context.Background(), PostCallEvent{
		ConversationID: "conv-5",
		Intent:         IntentRescue,
		OccurredAt:     fresh,
	}); err != nil {
		t.Fatalf("fresh delivery: %v", err)
	}

	rec, err := svc.ReconcilePostCall(context.Background(), PostCallEvent{
		ConversationID: "conv-5",
		Intent:         IntentRescue,
		OccurredAt:     fresh.Add(-10 * time.Minute),
	})
	if err != nil {
		t.Fatalf("stale delivery: %v", err)
	}
	if !rec.Timestamp.Equal(fresh) {
		t.Fatalf("timestamp regressed to %v", rec.Timestamp)
	}
}

func TestReconcilePostCall_InsertConflictFallsBackToUpdate(t *testing.T) {
	repo := &racingRepo{MemoryRepo: NewMemoryRepo()}
	svc := NewService(repo)

	rec, err := svc.ReconcilePostCall(context.Background(), PostCallEvent{
		ConversationID: "conv-6",
		Intent:         IntentTraffic,
	})
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	if rec.Intent != IntentTraffic {
		t.Fatalf("expected update applied after conflict, got %+v", rec)
	}
}

// racingRepo simulates a concurrent delivery inserting the record between the
// service's negative lookup and its insert.
type racingRepo struct {
	*MemoryRepo
	raced bool
}

func (r *racingRepo) GetByConversationID(ctx context.Context, id string) (CallRecord, error) {
	rec, err := r.MemoryRepo.GetByConversationID(ctx, id)
	if errors.Is(err, ErrNotFound) && !r.raced {
		r.raced = true
		// Another delivery wins the insert race.
		if _, err := r.MemoryRepo.Insert(ctx, CallRecord{ID: "race", ConversationID: id, Intent: IntentUnknown, Timestamp: time.Unix(1, 0)}); err != nil {
			return CallRecord{}, err
		}
		return CallRecord{}, ErrNotFound
	}
	return rec, err
}

// unavailableRepo fails every lookup with a transport error, never ErrNotFound.
type unavailableRepo struct {
	*MemoryRepo
	insertCalled bool
}

func (r *unavailableRepo) GetByConversationID(ctx context.Context, id string) (CallRecord, error) {
	return CallRecord{}, errors.New("connection reset by peer")
}

func (r *unavailableRepo) Insert(ctx context.Context, rec CallRecord) (CallRecord, error) {
	r.insertCalled = true
	return r.MemoryRepo.Insert(ctx, rec)
}

func TestReconcilePostCall_LookupFailureIsNotTreatedAsAbsence(t *testing.T) {
	repo := &unavailableRepo{MemoryRepo: NewMemoryRepo()}
	svc := NewService(repo)

	_, err := svc.ReconcilePostCall(context.Background(), PostCallEvent{ConversationID: "conv-down", Intent: IntentFire})
	if err == nil {
		t.Fatalf("expected lookup error to surface")
	}
	if errors.Is(err, ErrNotFound) {
		t.Fatalf("transport error conflated with not-found: %v", err)
	}
	if repo.insertCalled {
		t.Fatalf("insert attempted after failed lookup; could duplicate the record")
	}
}

func TestCreate_ThenPatchIntentRoundTrip(t *testing.T) {
	svc := NewService(NewMemoryRepo())

	if _, err := svc.Create(context.Background(), CreateCallRequest{ConversationID: "conv-7"}); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := svc.UpdateIntent(context.Background(), "conv-7", IntentMedical); err != nil {
		t.Fatalf("patch intent: %v", err)
	}
	rec, err := svc.GetByConversationID(context.Background(), "conv-7")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if rec.Intent != IntentMedical {
		t.Fatalf("expected medical after patch, got %q", rec.Intent)
	}
}

func TestCreate_DuplicateConversationConflicts(t *testing.T) {
	svc := NewService(NewMemoryRepo())

	if _, err := svc.Create(context.Background(), CreateCallRequest{ConversationID: "conv-8"}); err != nil {
		t.Fatalf("create: %v", err)
	}
	_, err := svc.Create(context.Background(), CreateCallRequest{ConversationID: "conv-8"})
	if !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
}

func TestMarkConversationStarted_ToleratesExisting(t *testing.T) {
	svc := NewService(NewMemoryRepo())

	first, err := svc.MarkConversationStarted(context.Background(), "conv-9", "+15550002222")
	if err != nil {
		t.Fatalf("first start: %v", err)
	}
	second, err := svc.MarkConversationStarted(context.Background(), "conv-9", "+15550002222")
	if err != nil {
		t.Fatalf("second start: %v", err)
	}
	if first.ID != second.ID {
		t.Fatalf("expected same record, got %q and %q", first.ID, second.ID)
	}
}

func TestApplyConversationText_UpdatedKeepsUnknownOut(t *testing.T) {
	svc := NewService(NewMemoryRepo())
	if _, err := svc.Create(context.Background(), CreateCallRequest{ConversationID: "conv-10"}); err != nil {
		t.Fatalf("create: %v", err)
	}

	// Mid-conversation text with no keyword: intent stays unknown but no error.
	rec, err := svc.ApplyConversationText(context.Background(), "conv-10", "hello operator", false)
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if rec.Intent != IntentUnknown {
		t.Fatalf("expected unknown, got %q", rec.Intent)
	}

	// Final transcript classifies.
	rec, err = svc.ApplyConversationText(context.Background(), "conv-10", "the kitchen is full of smoke", true)
	if err != nil {
		t.Fatalf("apply final: %v", err)
	}
	if rec.Intent != IntentFire {
		t.Fatalf("expected fire, got %q", rec.Intent)
	}
}

func TestList_FiltersAndOrdersNewestFirst(t *testing.T) {
	repo := NewMemoryRepo()
	svc := NewService(repo)
	ctx := context.Background()

	seed := []CallRecord{
		{ID: "a", ConversationID: "c-a", Intent: IntentFire, Timestamp: time.Unix(100, 0)},
		{ID: "b", ConversationID: "c-b", Intent: IntentMedical, Timestamp: time.Unix(300, 0)},
		{ID: "c", ConversationID: "c-c", Intent: IntentFire, Timestamp: time.Unix(200, 0)},
	}
	for _, rec := range seed {
		if _, err := repo.Insert(ctx, rec); err != nil {
			t.Fatalf("seed: %v", err)
		}
	}

	all, err := svc.List(ctx, ListFilter{})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(all) != 3 || all[0].ID != "b" || all[1].ID != "c" || all[2].ID != "a" {
		t.Fatalf("unexpected order: %+v", all)
	}

	fires, err := svc.List(ctx, ListFilter{Intent: IntentFire})
	if err != nil {
		t.Fatalf("list fires: %v", err)
	}
	if len(fires) != 2 || fires[0].ID != "c" {
		t.Fatalf("unexpected filtered result: %+v", fires)
	}
}

func TestList_ByPriorityOrdersUnsetLast(t *testing.T) {
	repo := NewMemoryRepo()
	svc := NewService(repo)
	ctx := context.Background()

	seed := []CallRecord{
		{ID: "a", ConversationID: "p-a", Intent: IntentFire, Timestamp: time.Unix(100, 0)},
		{ID: "b", ConversationID: "p-b", Intent: IntentMedical, PriorityLevel: 2, Timestamp: time.Unix(200, 0)},
		{ID: "c", ConversationID: "p-c", Intent: IntentRescue, PriorityLevel: 1, Timestamp: time.Unix(50, 0)},
	}
	for _, rec := range seed {
		if _, err := repo.Insert(ctx, rec); err != nil {
			t.Fatalf("seed: %v", err)
		}
	}

	rows, err := svc.List(ctx, ListFilter{ByPriority: true})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(rows) != 3 || rows[0].ID != "c" || rows[1].ID != "b" || rows[2].ID != "a" {
		t.Fatalf("unexpected priority order: %+v", rows)
	}
}

func TestSummarize_CountsByIntent(t *testing.T) {
	repo := NewMemoryRepo()
	svc := NewService(repo)
	ctx := context.Background()

	for i, intent := range []string{IntentFire, IntentFire, IntentMedical} {
		if _, err := repo.Insert(ctx, CallRecord{ID: string(rune('a' + i)), ConversationID: "s-" + string(rune('a'+i)), Intent: intent}); err != nil {
			t.Fatalf("seed: %v", err)
		}
	}

	sum, err := svc.Summarize(ctx)
	if err != nil {
		t.Fatalf("summarize: %v", err)
	}
	if sum.Total != 3 || sum.ByIntent[IntentFire] != 2 || sum.ByIntent[IntentMedical] != 1 {
		t.Fatalf("unexpected summary: %+v", sum)
	}
}

func TestUpdateIntent_UnknownConversationNotFound(t *testing.T) {
	svc := NewService(NewMemoryRepo())
	_, err := svc.UpdateIntent(context.Background(), "nope", IntentFire)
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
