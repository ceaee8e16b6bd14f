package core

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"sync"
	"testing"

	"pgregory.net/rapid"
)

type memoryCursorStore struct {
	mu      sync.Mutex
	cursors map[string]ReconcileCursor
}

func newMemoryCursorStore() *memoryCursorStore {
	return &memoryCursorStore{cursors: map[string]ReconcileCursor{}}
}

func (s *memoryCursorStore) Load(_ context.Context, configID string) (ReconcileCursor, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cursor, ok := s.cursors[configID]
	if !ok {
		return ReconcileCursor{}, ErrReconcileCursorNotFound
	}
	return cursor, nil
}

func (s *memoryCursorStore) Save(_ context.Context, in SaveReconcileCursorInput) (ReconcileCursor, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if current, ok := s.cursors[in.ConfigID]; ok && in.ExpectedLastProcessedID != "" &&
		current.LastProcessedID != in.ExpectedLastProcessedID {
		return ReconcileCursor{}, ErrReconcileCursorConflict
	}
	s.cursors[in.ConfigID] = in.Cursor
	return in.Cursor, nil
}

type memoryReportSink struct {
	recorded map[string][]ReconcileResult
}

func (s *memoryReportSink) Record(_ context.Context, configID string, results []ReconcileResult) error {
	if s.recorded == nil {
		s.recorded = map[string][]ReconcileResult{}
	}
	s.recorded[configID] = append(s.recorded[configID], results...)
	return nil
}

func populatedObjects(n int) []TargetObject {
	objects := make([]TargetObject, 0, n)
	for i := 0; i < n; i++ {
		id := fmt.Sprintf("%03d", i)
		objects = append(objects, newTestObject(id, map[string]string{
			testField: "https://resolver.example/id/ark:/" + id,
		}))
	}
	return objects
}

// redirectToCanonical answers HEAD requests with the canonical url of the id
// embedded in the requested url.
func redirectToCanonical(req TransportRequest) (TransportResponse, error) {
	id := req.URL[strings.LastIndex(req.URL, "/")+1:]
	return TransportResponse{
		StatusCode: http.StatusMovedPermanently,
		Headers:    map[string]string{"location": "https://repo.example/node/" + id},
	}, nil
}

func TestReconcilePage_EmptyRunFinishesWithFullProgress(t *testing.T) {
	h := newTestHarness(t, WithObjectSource(NewMemoryObjectSource()))

	page, err := h.service.ReconcilePage(context.Background(), testConfigID, ReconcileCursor{})
	if err != nil {
		t.Fatalf("reconcile page: %v", err)
	}
	if !page.Finished || page.Progress != 1 || len(page.Results) != 0 {
		t.Fatalf("expected finished empty run, got %#v", page)
	}
	if len(h.transport.sent()) != 0 {
		t.Fatalf("expected no HEAD requests")
	}
}

func TestReconcilePage_ChecksWithSuppressedRedirects(t *testing.T) {
	h := newTestHarness(t, WithObjectSource(NewMemoryObjectSource(populatedObjects(3)...)))
	h.transport.handle = redirectToCanonical

	page, err := h.service.ReconcilePage(context.Background(), testConfigID, ReconcileCursor{})
	if err != nil {
		t.Fatalf("reconcile page: %v", err)
	}
	if !page.Finished || page.Cursor.Total != 3 || page.Cursor.Completed != 3 {
		t.Fatalf("unexpected cursor %#v", page.Cursor)
	}
	for _, result := range page.Results {
		if result.Status != ReconcileStatusMatch {
			t.Fatalf("expected match, got %#v", result)
		}
	}
	for _, req := range h.transport.sent() {
		if req.Method != http.MethodHead || !req.SuppressRedirects {
			t.Fatalf("expected redirect-suppressed HEAD, got %#v", req)
		}
	}
}

func TestReconcilePage_ReportsMismatchAndContinues(t *testing.T) {
	objects := populatedObjects(3)
	source := NewMemoryObjectSource(objects...)
	source.LoadErr = map[string]error{"001": errors.New("row locked")}
	h := newTestHarness(t, WithObjectSource(source))
	h.transport.handle = func(req TransportRequest) (TransportResponse, error) {
		if strings.HasSuffix(req.URL, "/002") {
			return TransportResponse{StatusCode: http.StatusFound, Headers: map[string]string{"Location": "https://elsewhere.example/"}}, nil
		}
		return redirectToCanonical(req)
	}

	page, err := h.service.ReconcilePage(context.Background(), testConfigID, ReconcileCursor{})
	if err != nil {
		t.Fatalf("reconcile page: %v", err)
	}
	if len(page.Results) != 3 {
		t.Fatalf("expected every object reported, got %d", len(page.Results))
	}
	if page.Results[0].Status != ReconcileStatusMatch {
		t.Fatalf("expected first object to match, got %#v", page.Results[0])
	}
	if page.Results[1].Status != ReconcileStatusError {
		t.Fatalf("expected load failure to be reported, got %#v", page.Results[1])
	}
	mismatch := page.Results[2]
	if mismatch.Status != ReconcileStatusMismatch ||
		mismatch.Expected != "https://repo.example/node/002" ||
		mismatch.Actual != "https://elsewhere.example/" {
		t.Fatalf("unexpected mismatch %#v", mismatch)
	}
	if len(page.Mismatches()) != 1 {
		t.Fatalf("expected one mismatch")
	}
}

func TestReconcilePage_LocationCheckErrorIsReported(t *testing.T) {
	h := newTestHarness(t, WithObjectSource(NewMemoryObjectSource(populatedObjects(2)...)))
	h.transport.handle = func(req TransportRequest) (TransportResponse, error) {
		if strings.HasSuffix(req.URL, "/000") {
			return TransportResponse{}, errors.New("timeout")
		}
		return redirectToCanonical(req)
	}

	page, err := h.service.ReconcilePage(context.Background(), testConfigID, ReconcileCursor{})
	if err != nil {
		t.Fatalf("reconcile page: %v", err)
	}
	if page.Results[0].Status != ReconcileStatusError || page.Results[1].Status != ReconcileStatusMatch {
		t.Fatalf("unexpected results %#v", page.Results)
	}
}

func TestReconcilePage_SkipsObjectsNotGoverned(t *testing.T) {
	evaluator, err := NewRuleTriggerEvaluator(TriggerRule{
		EntityType: testEntity,
		Bundle:     "page",
		Events:     []LifecycleEvent{LifecycleEventInsert},
		Action:     TriggerAction{ConfigID: testConfigID, Operation: OperationMint},
	})
	if err != nil {
		t.Fatalf("new evaluator: %v", err)
	}
	h := newTestHarness(t,
		WithObjectSource(NewMemoryObjectSource(populatedObjects(1)...)),
		WithTriggerEvaluator(evaluator),
	)

	page, err := h.service.ReconcilePage(context.Background(), testConfigID, ReconcileCursor{})
	if err != nil {
		t.Fatalf("reconcile page: %v", err)
	}
	if page.Results[0].Status != ReconcileStatusSkipped {
		t.Fatalf("expected skipped result, got %#v", page.Results[0])
	}
	if len(h.transport.sent()) != 0 {
		t.Fatalf("expected no HEAD request for ungoverned object")
	}
}

func TestReconcilePage_CursorWalksEveryObjectOnce(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		n := rapid.IntRange(0, 45).Draw(rt, "objects")
		pageSize := rapid.IntRange(1, 12).Draw(rt, "page_size")

		h := newTestHarness(t,
			WithObjectSource(NewMemoryObjectSource(populatedObjects(n)...)),
			func(b *serviceBuilder) { b.runtimeConfig.Reconcile.PageSize = pageSize },
		)
		h.transport.handle = redirectToCanonical

		seen := []string{}
		cursor := ReconcileCursor{}
		lastProgress := 0.0
		for pages := 0; ; pages++ {
			if pages > n+1 {
				rt.Fatalf("run did not finish after %d pages", pages)
			}
			page, err := h.service.ReconcilePage(context.Background(), testConfigID, cursor)
			if err != nil {
				rt.Fatalf("reconcile page: %v", err)
			}
			if len(page.Results) > pageSize {
				rt.Fatalf("page exceeded size %d: %d", pageSize, len(page.Results))
			}
			if page.Progress < lastProgress || page.Progress > 1 {
				rt.Fatalf("progress went from %v to %v", lastProgress, page.Progress)
			}
			lastProgress = page.Progress
			for _, result := range page.Results {
				seen = append(seen, result.ObjectID)
			}
			cursor = page.Cursor
			if page.Finished {
				break
			}
		}

		if len(seen) != n {
			rt.Fatalf("expected %d objects, saw %d", n, len(seen))
		}
		if !sort.StringsAreSorted(seen) {
			rt.Fatalf("expected stable id order, got %v", seen)
		}
		if lastProgress != 1 {
			rt.Fatalf("expected final progress 1, got %v", lastProgress)
		}
	})
}

func TestAdvanceReconcile_PersistsCursorAndReport(t *testing.T) {
	store := newMemoryCursorStore()
	sink := &memoryReportSink{}
	h := newTestHarness(t,
		WithObjectSource(NewMemoryObjectSource(populatedObjects(12)...)),
		WithReconcileCursorStore(store),
		WithReconcileReportSink(sink),
	)
	h.transport.handle = redirectToCanonical

	first, err := h.service.AdvanceReconcile(context.Background(), testConfigID)
	if err != nil {
		t.Fatalf("advance: %v", err)
	}
	if first.Finished || first.Cursor.LastProcessedID != "009" {
		t.Fatalf("expected first page to stop at 009, got %#v", first.Cursor)
	}
	second, err := h.service.AdvanceReconcile(context.Background(), testConfigID)
	if err != nil {
		t.Fatalf("advance: %v", err)
	}
	if !second.Finished || second.Cursor.Completed != 12 {
		t.Fatalf("expected finished run, got %#v", second.Cursor)
	}
	if len(sink.recorded[testConfigID]) != 12 {
		t.Fatalf("expected 12 recorded results, got %d", len(sink.recorded[testConfigID]))
	}

	restarted, err := h.service.AdvanceReconcile(context.Background(), testConfigID)
	if err != nil {
		t.Fatalf("advance after finish: %v", err)
	}
	if restarted.Cursor.Completed != 10 {
		t.Fatalf("expected a fresh run after finish, got %#v", restarted.Cursor)
	}
}

func TestAdvanceReconcile_ConflictIsClassified(t *testing.T) {
	store := newMemoryCursorStore()
	h := newTestHarness(t,
		WithObjectSource(NewMemoryObjectSource(populatedObjects(25)...)),
		WithReconcileCursorStore(conflictingStore{memoryCursorStore: store}),
	)
	h.transport.handle = redirectToCanonical

	if _, err := h.service.AdvanceReconcile(context.Background(), testConfigID); err != nil {
		t.Fatalf("first advance: %v", err)
	}
	_, err := h.service.AdvanceReconcile(context.Background(), testConfigID)
	if !IsReconcileConflict(err) {
		t.Fatalf("expected reconcile conflict, got %v", err)
	}
}

func TestAdvanceReconcile_RestartOfFinishedRunChecksStoredPosition(t *testing.T) {
	store := newMemoryCursorStore()
	store.cursors[testConfigID] = ReconcileCursor{LastProcessedID: "011", Total: 12, Completed: 12, Finished: true}
	h := newTestHarness(t,
		WithObjectSource(NewMemoryObjectSource(populatedObjects(12)...)),
		WithReconcileCursorStore(conflictingStore{memoryCursorStore: store}),
	)
	h.transport.handle = redirectToCanonical

	_, err := h.service.AdvanceReconcile(context.Background(), testConfigID)
	if !IsReconcileConflict(err) {
		t.Fatalf("expected a concurrent restart to conflict, got %v", err)
	}
	if got := store.cursors[testConfigID]; got.LastProcessedID != "zzz" {
		t.Fatalf("expected the other runner's cursor to survive, got %#v", got)
	}
}

// conflictingStore moves the cursor behind the caller's back after every load.
type conflictingStore struct {
	*memoryCursorStore
}

func (s conflictingStore) Load(ctx context.Context, configID string) (ReconcileCursor, error) {
	cursor, err := s.memoryCursorStore.Load(ctx, configID)
	if err != nil {
		return cursor, err
	}
	s.mu.Lock()
	moved := s.cursors[configID]
	moved.LastProcessedID = "zzz"
	s.cursors[configID] = moved
	s.mu.Unlock()
	return cursor, nil
}
