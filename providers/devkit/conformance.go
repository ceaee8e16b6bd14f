package devkit

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/goliatone/go-pids/core"
)

func ValidateTransportAdapterConformance(
	ctx context.Context,
	adapter core.TransportAdapter,
	request core.TransportRequest,
) error {
	if adapter == nil {
		return fmt.Errorf("devkit: transport adapter is required")
	}
	if strings.TrimSpace(adapter.Kind()) == "" {
		return fmt.Errorf("devkit: transport adapter kind is required")
	}
	_, err := adapter.Do(ctx, request)
	return err
}

// ValidateProtocolAdapterConformance checks the request shapes every backend
// adapter must produce for a backend and object it accepts.
func ValidateProtocolAdapterConformance(
	adapter core.ProtocolAdapter,
	backend core.BackendConfig,
	obj core.TargetObject,
	fields core.Fields,
) error {
	if adapter == nil {
		return fmt.Errorf("devkit: protocol adapter is required")
	}
	if backend == nil || adapter.Kind() != backend.Kind() {
		return fmt.Errorf("devkit: adapter kind %q does not match backend", adapter.Kind())
	}
	in := core.MintInput{Backend: backend, Object: obj, Fields: fields}
	req, err := adapter.BuildMintRequest(in)
	if err != nil {
		return fmt.Errorf("devkit: build mint request: %w", err)
	}
	if err := validateRequestTarget(req); err != nil {
		return err
	}
	if req.BasicAuth == nil || req.BasicAuth.Username == "" {
		return fmt.Errorf("devkit: mint request must carry basic auth")
	}
	if len(req.Body) == 0 {
		return fmt.Errorf("devkit: mint request must carry a body")
	}

	expected, err := adapter.ExpectedLocation(in)
	if err != nil {
		return fmt.Errorf("devkit: expected location: %w", err)
	}
	if _, err := url.ParseRequestURI(expected); err != nil {
		return fmt.Errorf("devkit: expected location %q is not absolute: %w", expected, err)
	}

	if _, err := adapter.ParseMintResponse(backend, core.TransportResponse{StatusCode: 500}); err == nil {
		return fmt.Errorf("devkit: empty 500 mint response must fail")
	}
	return nil
}

// ValidateReconcileCursorStoreConformance exercises load, save and the
// optimistic advance check. The store must be empty for configID.
func ValidateReconcileCursorStoreConformance(ctx context.Context, store core.ReconcileCursorStore, configID string) error {
	if store == nil {
		return fmt.Errorf("devkit: reconcile cursor store is required")
	}
	if _, err := store.Load(ctx, configID); !errors.Is(err, core.ErrReconcileCursorNotFound) {
		return fmt.Errorf("devkit: expected not found for a new cursor, got %v", err)
	}
	first := core.ReconcileCursor{LastProcessedID: "010", Total: 20, Completed: 10, Started: true}
	if _, err := store.Save(ctx, core.SaveReconcileCursorInput{ConfigID: configID, Cursor: first}); err != nil {
		return fmt.Errorf("devkit: save first cursor: %w", err)
	}
	loaded, err := store.Load(ctx, configID)
	if err != nil {
		return fmt.Errorf("devkit: load saved cursor: %w", err)
	}
	if loaded.LastProcessedID != "010" || loaded.Total != 20 || loaded.Completed != 10 || !loaded.Started {
		return fmt.Errorf("devkit: saved cursor not round tripped: %#v", loaded)
	}
	_, err = store.Save(ctx, core.SaveReconcileCursorInput{
		ConfigID:                configID,
		Cursor:                  core.ReconcileCursor{LastProcessedID: "020", Total: 20, Completed: 20, Started: true, Finished: true},
		ExpectedLastProcessedID: "005",
	})
	if !errors.Is(err, core.ErrReconcileCursorConflict) {
		return fmt.Errorf("devkit: expected conflict on stale advance, got %v", err)
	}
	_, err = store.Save(ctx, core.SaveReconcileCursorInput{
		ConfigID:                configID,
		Cursor:                  core.ReconcileCursor{LastProcessedID: "020", Total: 20, Completed: 20, Started: true, Finished: true},
		ExpectedLastProcessedID: "010",
	})
	if err != nil {
		return fmt.Errorf("devkit: advance cursor: %w", err)
	}
	return nil
}

func validateRequestTarget(req core.TransportRequest) error {
	if strings.TrimSpace(req.Method) == "" {
		return fmt.Errorf("devkit: request method is required")
	}
	parsed, err := url.Parse(req.URL)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return fmt.Errorf("devkit: request url %q is not absolute", req.URL)
	}
	return nil
}
