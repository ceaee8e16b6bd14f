package core

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

type ReconcileStatus string

const (
	ReconcileStatusMatch    ReconcileStatus = "match"
	ReconcileStatusMismatch ReconcileStatus = "mismatch"
	ReconcileStatusError    ReconcileStatus = "error"
	ReconcileStatusSkipped  ReconcileStatus = "skipped"
)

// ReconcileCursor is the only state carried between pages. Total is captured
// once, when the first page of a run starts.
type ReconcileCursor struct {
	LastProcessedID string
	Total           int
	Completed       int
	Started         bool
	Finished        bool
	StartedAt       time.Time
	UpdatedAt       time.Time
}

// Progress is completed/total capped at 1. An empty run reports 1.
func (c ReconcileCursor) Progress() float64 {
	if c.Total <= 0 {
		if c.Started {
			return 1
		}
		return 0
	}
	progress := float64(c.Completed) / float64(c.Total)
	if progress > 1 {
		return 1
	}
	return progress
}

type ReconcileResult struct {
	ObjectID string
	Status   ReconcileStatus
	Stored   string
	Expected string
	Actual   string
	Error    string
}

type ReconcilePageResult struct {
	ConfigID string
	Results  []ReconcileResult
	Cursor   ReconcileCursor
	Progress float64
	Finished bool
}

// Mismatches returns the results reported as mismatches, in page order.
func (p ReconcilePageResult) Mismatches() []ReconcileResult {
	out := make([]ReconcileResult, 0)
	for _, result := range p.Results {
		if result.Status == ReconcileStatusMismatch {
			out = append(out, result)
		}
	}
	return out
}

// ReconcilePage checks the next page of populated objects after cursor. A
// zero cursor starts a new run. Object failures are reported in the results
// and never abort the page.
func (s *Service) ReconcilePage(ctx context.Context, configID string, cursor ReconcileCursor) (ReconcilePageResult, error) {
	startedAt := time.Now().UTC()
	configID = strings.TrimSpace(configID)
	fields := map[string]any{"config_id": configID, "cursor": cursor.LastProcessedID}
	page, err := s.reconcilePage(ctx, configID, cursor, fields)
	err = annotateError(err, fields)
	fields["results"] = len(page.Results)
	fields["mismatches"] = len(page.Mismatches())
	fields["progress"] = page.Progress
	s.observeOperation(ctx, startedAt, "reconcile_page", err, fields)
	return page, err
}

func (s *Service) reconcilePage(
	ctx context.Context,
	configID string,
	cursor ReconcileCursor,
	fields map[string]any,
) (ReconcilePageResult, error) {
	page := ReconcilePageResult{ConfigID: configID, Cursor: cursor, Progress: cursor.Progress(), Finished: cursor.Finished}
	if s == nil || s.resolver == nil {
		return page, InternalError(nil, "core: service is not configured", nil)
	}
	if s.objectSource == nil {
		return page, ConfigIncompleteError("core: object source is required for reconciliation", nil)
	}
	if cursor.Finished {
		return page, nil
	}

	resolved, err := s.resolver.Resolve(ctx, configID)
	if err != nil {
		return page, err
	}
	describeBackend(fields, resolved.Backend)
	adapter, err := s.adapterFor(resolved.Backend, nil)
	if err != nil {
		return page, err
	}

	query := PopulatedQuery{
		EntityType: resolved.Config.EntityType,
		Bundle:     resolved.Config.Bundle,
		Field:      resolved.Config.TargetField,
	}
	now := time.Now().UTC()
	if !cursor.Started {
		total, err := s.objectSource.CountPopulated(ctx, query)
		if err != nil {
			return page, InternalError(err, "core: count populated objects", nil)
		}
		cursor = ReconcileCursor{Total: total, Started: true, StartedAt: now}
	}
	cursor.UpdatedAt = now

	if cursor.Total == 0 {
		cursor.Finished = true
		page.Cursor = cursor
		page.Progress = 1
		page.Finished = true
		return page, nil
	}

	pageSize := s.config.Reconcile.PageSize
	if pageSize <= 0 {
		pageSize = DefaultReconcilePageSize
	}
	query.AfterID = cursor.LastProcessedID
	query.Limit = pageSize
	ids, err := s.objectSource.ListPopulatedIDs(ctx, query)
	if err != nil {
		page.Cursor = cursor
		return page, InternalError(err, "core: list populated objects", nil)
	}
	if len(ids) > pageSize {
		ids = ids[:pageSize]
	}

	results := make([]ReconcileResult, 0, len(ids))
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			page.Results = results
			page.Cursor = cursor
			page.Progress = cursor.Progress()
			return page, err
		}
		result := s.reconcileObject(ctx, resolved, adapter, id)
		results = append(results, result)
		cursor.LastProcessedID = id
		cursor.Completed++
	}

	cursor.Finished = len(ids) < pageSize || cursor.Completed >= cursor.Total
	page.Results = results
	page.Cursor = cursor
	page.Progress = cursor.Progress()
	if cursor.Finished {
		page.Progress = 1
	}
	page.Finished = cursor.Finished
	return page, nil
}

func (s *Service) reconcileObject(ctx context.Context, resolved ResolvedConfig, adapter ProtocolAdapter, id string) ReconcileResult {
	result := ReconcileResult{ObjectID: id}
	logFields := map[string]any{
		"config_id":    resolved.Config.ID,
		"object_id":    id,
		"backend_kind": string(resolved.Backend.Kind()),
	}
	fail := func(message string, err error) ReconcileResult {
		result.Status = ReconcileStatusError
		result.Error = message
		if err != nil {
			result.Error = message + ": " + err.Error()
		}
		logFields["error"] = result.Error
		s.logWarn(ctx, "reconcile object failed", logFields)
		return result
	}

	obj, err := s.objectSource.Load(ctx, resolved.Config.EntityType, id)
	if err != nil {
		return fail("load object", err)
	}
	if isNilObject(obj) {
		return fail("load object", errors.New("object is unavailable"))
	}

	result.Stored = strings.TrimSpace(obj.Get(resolved.Config.TargetField))
	if result.Stored == "" {
		result.Status = ReconcileStatusSkipped
		result.Error = "target field is empty"
		return result
	}
	if s.triggers != nil && !s.triggers.Governs(ctx, obj, resolved.Config.ID) {
		result.Status = ReconcileStatusSkipped
		result.Error = "object is not governed by this configuration"
		return result
	}

	expected, err := s.expectedLocation(resolved, adapter, obj)
	if err != nil {
		return fail("compute expected location", err)
	}
	result.Expected = expected

	res, err := s.send(ctx, TransportRequest{
		Method:            http.MethodHead,
		URL:               result.Stored,
		SuppressRedirects: true,
	})
	if err != nil {
		return fail("check stored location", err)
	}
	result.Actual = strings.TrimSpace(headerValue(res.Headers, "Location"))

	if result.Actual == result.Expected {
		result.Status = ReconcileStatusMatch
		return result
	}
	result.Status = ReconcileStatusMismatch
	logFields["expected"] = result.Expected
	logFields["actual"] = result.Actual
	logFields["status_code"] = res.StatusCode
	s.logWarn(ctx, "reconcile mismatch", logFields)
	return result
}

// expectedLocation replays the mint computation for obj as it is now.
func (s *Service) expectedLocation(resolved ResolvedConfig, adapter ProtocolAdapter, obj TargetObject) (string, error) {
	data, err := s.extractor.Extract(obj, resolved.Profile)
	if err != nil {
		return "", err
	}
	expected, err := adapter.ExpectedLocation(MintInput{
		Backend: resolved.Backend,
		Object:  obj,
		Fields:  withMintControlFields(resolved.Backend, obj, data),
	})
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(expected), nil
}

// AdvanceReconcile runs the next page for configID against the persisted
// cursor, records the page results and stores the advanced cursor. A finished
// cursor starts a new run.
func (s *Service) AdvanceReconcile(ctx context.Context, configID string) (ReconcilePageResult, error) {
	configID = strings.TrimSpace(configID)
	if s == nil {
		return ReconcilePageResult{}, InternalError(nil, "core: service is not configured", nil)
	}
	if s.cursorStore == nil {
		return ReconcilePageResult{}, ConfigIncompleteError("core: reconcile cursor store is required", map[string]any{
			"config_id": configID,
		})
	}

	cursor, err := s.cursorStore.Load(ctx, configID)
	switch {
	case errors.Is(err, ErrReconcileCursorNotFound):
		cursor = ReconcileCursor{}
	case err != nil:
		return ReconcilePageResult{}, s.mapError(InternalError(err, "core: load reconcile cursor", map[string]any{
			"config_id": configID,
		}))
	}
	// The stored position guards the save, including when a finished run
	// restarts from the top.
	expected := cursor.LastProcessedID
	if cursor.Finished {
		cursor = ReconcileCursor{}
	}

	page, pageErr := s.ReconcilePage(ctx, configID, cursor)
	if pageErr != nil && len(page.Results) == 0 {
		return page, pageErr
	}

	if s.reportSink != nil && len(page.Results) > 0 {
		if err := s.reportSink.Record(ctx, configID, page.Results); err != nil {
			return page, s.mapError(InternalError(err, "core: record reconcile results", map[string]any{
				"config_id": configID,
			}))
		}
	}

	saved, err := s.cursorStore.Save(ctx, SaveReconcileCursorInput{
		ConfigID:                configID,
		Cursor:                  page.Cursor,
		ExpectedLastProcessedID: expected,
	})
	if err != nil {
		if errors.Is(err, ErrReconcileCursorConflict) {
			return page, s.mapError(ReconcileConflictError(err, fmt.Sprintf("core: reconcile cursor for %q moved concurrently", configID), map[string]any{
				"config_id": configID,
			}))
		}
		return page, s.mapError(InternalError(err, "core: save reconcile cursor", map[string]any{
			"config_id": configID,
		}))
	}
	page.Cursor = saved
	return page, pageErr
}

func headerValue(headers map[string]string, key string) string {
	if value, ok := headers[key]; ok {
		return value
	}
	for name, value := range headers {
		if strings.EqualFold(name, key) {
			return value
		}
	}
	return ""
}
