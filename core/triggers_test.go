package core

import (
	"context"
	"net/http"
	"testing"
)

func TestRuleTriggerEvaluator_FiresMatchingRulesInOrder(t *testing.T) {
	evaluator, err := NewRuleTriggerEvaluator(
		TriggerRule{
			EntityType: testEntity,
			Bundle:     testBundle,
			Events:     []LifecycleEvent{LifecycleEventInsert, LifecycleEventUpdate},
			Action:     TriggerAction{ConfigID: testConfigID, Operation: OperationMint},
			When:       WhenFieldEmpty(testField),
		},
		TriggerRule{
			EntityType: testEntity,
			Bundle:     testBundle,
			Events:     []LifecycleEvent{LifecycleEventDelete},
			Action:     TriggerAction{ConfigID: testConfigID, Operation: OperationDelete},
			When:       WhenFieldPresent(testField),
		},
	)
	if err != nil {
		t.Fatalf("new evaluator: %v", err)
	}
	ctx := context.Background()

	empty := newTestObject("1", nil)
	actions, err := evaluator.Evaluate(ctx, empty, LifecycleEventInsert)
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if len(actions) != 1 || actions[0].Operation != OperationMint {
		t.Fatalf("expected mint action, got %#v", actions)
	}

	populated := newTestObject("2", map[string]string{testField: "https://resolver.example/id/ark:/2"})
	actions, _ = evaluator.Evaluate(ctx, populated, LifecycleEventUpdate)
	if len(actions) != 0 {
		t.Fatalf("expected populated field to suppress mint, got %#v", actions)
	}
	actions, _ = evaluator.Evaluate(ctx, populated, LifecycleEventDelete)
	if len(actions) != 1 || actions[0].Operation != OperationDelete {
		t.Fatalf("expected delete action, got %#v", actions)
	}

	if !evaluator.Governs(ctx, populated, testConfigID) {
		t.Fatalf("expected governed object regardless of predicate")
	}
	if evaluator.Governs(ctx, populated, "other") {
		t.Fatalf("expected other config not to govern")
	}
}

func TestNewRuleTriggerEvaluator_RejectsInvalidRules(t *testing.T) {
	_, err := NewRuleTriggerEvaluator(TriggerRule{
		EntityType: testEntity,
		Bundle:     testBundle,
		Events:     []LifecycleEvent{LifecycleEventInsert},
		Action:     TriggerAction{ConfigID: testConfigID, Operation: "publish"},
	})
	if err == nil {
		t.Fatalf("expected invalid operation to be rejected")
	}
}

func TestServiceHandleLifecycleEvent_DispatchesMint(t *testing.T) {
	evaluator, err := NewRuleTriggerEvaluator(TriggerRule{
		EntityType: testEntity,
		Bundle:     testBundle,
		Events:     []LifecycleEvent{LifecycleEventInsert},
		Action:     TriggerAction{ConfigID: testConfigID, Operation: OperationMint},
		When:       WhenFieldEmpty(testField),
	})
	if err != nil {
		t.Fatalf("new evaluator: %v", err)
	}
	h := newTestHarness(t, WithTriggerEvaluator(evaluator))
	h.transport.handle = func(TransportRequest) (TransportResponse, error) {
		return TransportResponse{StatusCode: http.StatusCreated, Body: []byte("ok:ark:/9")}, nil
	}
	obj := newTestObject("9", nil)

	outcomes, err := h.service.HandleLifecycleEvent(context.Background(), obj, LifecycleEventInsert)
	if err != nil {
		t.Fatalf("handle event: %v", err)
	}
	if len(outcomes) != 1 || outcomes[0].WriteBack == nil || outcomes[0].WriteBack.Identifier != "ark:/9" {
		t.Fatalf("unexpected outcomes %#v", outcomes)
	}

	outcomes, err = h.service.HandleLifecycleEvent(context.Background(), obj, LifecycleEventInsert)
	if err != nil {
		t.Fatalf("second event: %v", err)
	}
	if len(outcomes) != 0 {
		t.Fatalf("expected no re-mint once populated, got %#v", outcomes)
	}
	if len(h.transport.sent()) != 1 {
		t.Fatalf("expected a single mint request")
	}
}

func TestServiceHandleLifecycleEvent_RequiresEvaluator(t *testing.T) {
	h := newTestHarness(t)
	_, err := h.service.HandleLifecycleEvent(context.Background(), newTestObject("1", nil), LifecycleEventInsert)
	if !IsConfigIncomplete(err) {
		t.Fatalf("expected config incomplete without evaluator, got %v", err)
	}
}
