package core

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// LifecycleStage names the last step an operation completed. It is attached
// to every failure as "stage".
type LifecycleStage string

const (
	StageStarted             LifecycleStage = "started"
	StageConfigResolved      LifecycleStage = "config_resolved"
	StageDataGathered        LifecycleStage = "data_gathered"
	StageRequestBuilt        LifecycleStage = "request_built"
	StageSent                LifecycleStage = "sent"
	StageResponseInterpreted LifecycleStage = "response_interpreted"
	StageFieldWritten        LifecycleStage = "field_written"
)

// Mint registers a new identifier for obj and writes it to the configured
// target field. It does not check whether the field is already populated;
// callers that need idempotence must guard before calling.
func (s *Service) Mint(ctx context.Context, configID string, obj TargetObject) (WriteBack, error) {
	startedAt := time.Now().UTC()
	fields := map[string]any{"config_id": strings.TrimSpace(configID), "stage": string(StageStarted)}
	result, err := s.mint(ctx, strings.TrimSpace(configID), obj, fields)
	err = annotateError(err, fields)
	s.observeOperation(ctx, startedAt, "mint", err, fields)
	return result, err
}

func (s *Service) mint(ctx context.Context, configID string, obj TargetObject, fields map[string]any) (WriteBack, error) {
	if s == nil || s.resolver == nil {
		return WriteBack{}, InternalError(nil, "core: service is not configured", nil)
	}
	resolved, err := s.resolver.Resolve(ctx, configID)
	if err != nil {
		return WriteBack{}, err
	}
	advance(fields, StageConfigResolved)
	describeBackend(fields, resolved.Backend)

	adapter, err := s.adapterFor(resolved.Backend, nil)
	if err != nil {
		return WriteBack{}, err
	}
	data, err := s.extractor.Extract(obj, resolved.Profile)
	if err != nil {
		return WriteBack{}, err
	}
	fields["object_id"] = obj.StableID()
	data = withMintControlFields(resolved.Backend, obj, data)
	advance(fields, StageDataGathered)

	input := MintInput{Backend: resolved.Backend, Object: obj, Fields: data}
	req, err := adapter.BuildMintRequest(input)
	if err != nil {
		return WriteBack{}, err
	}
	advance(fields, StageRequestBuilt)

	res, err := s.send(ctx, req)
	if err != nil {
		return WriteBack{}, TransportFailure(err, fmt.Sprintf("%s: mint request failed", adapter.Kind()), map[string]any{
			"url": req.URL,
		})
	}
	advance(fields, StageSent)
	fields["status_code"] = res.StatusCode

	outcome, err := adapter.ParseMintResponse(resolved.Backend, res)
	if err != nil {
		fields["raw_body"] = rawBody(res.Body)
		return WriteBack{}, err
	}
	advance(fields, StageResponseInterpreted)
	fields["identifier"] = outcome.Identifier

	target := resolved.Config.TargetField
	previous := obj.Get(target)
	obj.Set(target, outcome.Value)
	if err := obj.Save(ctx); err != nil {
		// The identifier exists remotely but not locally; the metadata keeps
		// enough to recover it by hand.
		obj.Set(target, previous)
		return WriteBack{}, InternalError(err, "core: save object after mint", nil)
	}
	advance(fields, StageFieldWritten)

	return WriteBack{
		ConfigID:   configID,
		ObjectID:   obj.StableID(),
		Field:      target,
		Value:      outcome.Value,
		Identifier: outcome.Identifier,
	}, nil
}

// Delete removes the identifier stored in obj's target field from the remote
// service. The field itself is left untouched.
func (s *Service) Delete(ctx context.Context, configID string, obj TargetObject) error {
	startedAt := time.Now().UTC()
	fields := map[string]any{"config_id": strings.TrimSpace(configID), "stage": string(StageStarted)}
	err := annotateError(s.delete(ctx, strings.TrimSpace(configID), obj, fields), fields)
	s.observeOperation(ctx, startedAt, "delete", err, fields)
	return err
}

func (s *Service) delete(ctx context.Context, configID string, obj TargetObject, fields map[string]any) error {
	if s == nil || s.resolver == nil {
		return InternalError(nil, "core: service is not configured", nil)
	}
	resolved, err := s.resolver.Resolve(ctx, configID)
	if err != nil {
		return err
	}
	advance(fields, StageConfigResolved)
	describeBackend(fields, resolved.Backend)

	adapter, err := s.adapterFor(resolved.Backend, nil)
	if err != nil {
		return err
	}
	if isNilObject(obj) {
		return PreconditionFailure(ReasonObjectUnavailable, "core: object is unavailable for delete", nil)
	}
	fields["object_id"] = obj.StableID()
	stored := strings.TrimSpace(obj.Get(resolved.Config.TargetField))
	if stored == "" {
		return PreconditionFailure(
			ReasonEmptyTargetField,
			fmt.Sprintf("core: target field %q is empty, nothing to delete", resolved.Config.TargetField),
			nil,
		)
	}
	fields["identifier"] = stored
	advance(fields, StageDataGathered)

	req, err := adapter.BuildDeleteRequest(resolved.Backend, stored)
	if err != nil {
		return err
	}
	advance(fields, StageRequestBuilt)

	res, err := s.send(ctx, req)
	if err != nil {
		return TransportFailure(err, fmt.Sprintf("%s: delete request failed", adapter.Kind()), map[string]any{
			"url": req.URL,
		})
	}
	advance(fields, StageSent)
	fields["status_code"] = res.StatusCode

	if err := adapter.ParseDeleteResponse(resolved.Backend, res); err != nil {
		fields["raw_body"] = rawBody(res.Body)
		return err
	}
	advance(fields, StageResponseInterpreted)
	return nil
}

// Update repoints an existing identifier at newLocation. Only backends with an
// UpdatingAdapter support it; the locator is the handle or its resolver URL.
func (s *Service) Update(ctx context.Context, configID string, locator string, newLocation string) error {
	startedAt := time.Now().UTC()
	fields := map[string]any{
		"config_id":    strings.TrimSpace(configID),
		"identifier":   strings.TrimSpace(locator),
		"new_location": strings.TrimSpace(newLocation),
		"stage":        string(StageStarted),
	}
	err := annotateError(s.update(ctx, strings.TrimSpace(configID), strings.TrimSpace(locator), strings.TrimSpace(newLocation), fields), fields)
	s.observeOperation(ctx, startedAt, "update", err, fields)
	return err
}

func (s *Service) update(ctx context.Context, configID string, locator string, newLocation string, fields map[string]any) error {
	if s == nil || s.resolver == nil {
		return InternalError(nil, "core: service is not configured", nil)
	}
	resolved, err := s.resolver.Resolve(ctx, configID)
	if err != nil {
		return err
	}
	advance(fields, StageConfigResolved)
	describeBackend(fields, resolved.Backend)

	adapter, err := s.adapterFor(resolved.Backend, nil)
	if err != nil {
		return err
	}
	updating, ok := adapter.(UpdatingAdapter)
	if !ok {
		return PreconditionFailure(
			ReasonUpdateUnsupported,
			fmt.Sprintf("core: backend kind %q does not support update", resolved.Backend.Kind()),
			nil,
		)
	}
	if locator == "" {
		return PreconditionFailure(ReasonInvalidLocator, "core: identifier to update is required", nil)
	}
	if newLocation == "" {
		return BadInputError("core: new location is required", nil)
	}
	advance(fields, StageDataGathered)

	locateReq, err := updating.BuildLocateRequest(resolved.Backend, locator)
	if err != nil {
		return err
	}
	locateRes, err := s.send(ctx, locateReq)
	if err != nil {
		return TransportFailure(err, fmt.Sprintf("%s: locate request failed", adapter.Kind()), map[string]any{
			"url": locateReq.URL,
		})
	}
	index, err := updating.ParseLocateResponse(resolved.Backend, locateRes)
	if err != nil {
		fields["status_code"] = locateRes.StatusCode
		fields["raw_body"] = rawBody(locateRes.Body)
		return err
	}
	fields["url_index"] = index

	req, err := updating.BuildUpdateRequest(resolved.Backend, locator, index, newLocation)
	if err != nil {
		return err
	}
	advance(fields, StageRequestBuilt)

	res, err := s.send(ctx, req)
	if err != nil {
		return TransportFailure(err, fmt.Sprintf("%s: update request failed", adapter.Kind()), map[string]any{
			"url": req.URL,
		})
	}
	advance(fields, StageSent)
	fields["status_code"] = res.StatusCode

	if err := updating.ParseUpdateResponse(resolved.Backend, res); err != nil {
		fields["raw_body"] = rawBody(res.Body)
		return err
	}
	advance(fields, StageResponseInterpreted)
	return nil
}

// withMintControlFields injects the keys the engine owns. For EZID these are
// _target and _status; they override extracted keys of the same name.
func withMintControlFields(backend BackendConfig, obj TargetObject, data Fields) Fields {
	out := data.Clone()
	switch backend.Kind() {
	case BackendKindEZID:
		out = out.Set(EZIDTargetKey, obj.AbsoluteCanonicalURL())
		out = out.Set(EZIDStatusKey, EZIDReservedStatus)
	}
	return out
}

func advance(fields map[string]any, stage LifecycleStage) {
	fields["stage"] = string(stage)
}

func describeBackend(fields map[string]any, backend BackendConfig) {
	if backend == nil {
		return
	}
	fields["backend_kind"] = string(backend.Kind())
	fields["backend_ref"] = backend.BackendID()
}
