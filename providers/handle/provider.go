package handle

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/goliatone/go-pids/core"
)

const (
	Kind                = core.BackendKindHandle
	DefaultResolverBase = "https://hdl.handle.net/"
	ContentType         = "application/json"

	urlValueType = "URL"
	mintIndex    = 1
)

type Option func(*Provider)

// WithResolverBase sets the proxy prefix written back after a mint and
// stripped from stored values before delete and update.
func WithResolverBase(base string) Option {
	return func(p *Provider) {
		if base = strings.TrimSpace(base); base != "" {
			p.resolverBase = strings.TrimRight(base, "/") + "/"
		}
	}
}

type Provider struct {
	resolverBase string
}

func New(opts ...Option) *Provider {
	p := &Provider{resolverBase: DefaultResolverBase}
	for _, opt := range opts {
		if opt != nil {
			opt(p)
		}
	}
	return p
}

func (*Provider) Kind() core.BackendKind { return Kind }

type handleValue struct {
	Index int             `json:"index"`
	Type  string          `json:"type"`
	Data  json.RawMessage `json:"data"`
}

type requestValue struct {
	Index int    `json:"index"`
	Type  string `json:"type"`
	Data  string `json:"data"`
}

type valuesResponse struct {
	Values []handleValue `json:"values"`
}

func (p *Provider) BuildMintRequest(in core.MintInput) (core.TransportRequest, error) {
	backend, err := backendOf(in.Backend)
	if err != nil {
		return core.TransportRequest{}, err
	}
	if in.Object == nil {
		return core.TransportRequest{}, core.PreconditionFailure(core.ReasonObjectUnavailable, "handle: object is required to mint", nil)
	}
	handle := strings.TrimSpace(backend.Prefix) + "/" + suffixFor(backend, in.Object)
	return p.urlValueRequest(backend, handle, mintIndex, in.Object.AbsoluteCanonicalURL(), false, "mint")
}

func (p *Provider) ParseMintResponse(_ core.BackendConfig, res core.TransportResponse) (core.MintOutcome, error) {
	envelope, ok := decodeEnvelope(res.Body)
	if !isSuccess(res.StatusCode) {
		return core.MintOutcome{}, statusFailure("mint", res, envelope, ok)
	}
	handle := strings.TrimSpace(envelope.Handle)
	if !ok || handle == "" {
		return core.MintOutcome{}, core.SemanticFailure("handle: mint response has no handle", map[string]any{
			"status_code": res.StatusCode,
		})
	}
	return core.MintOutcome{Identifier: handle, Value: p.resolverBase + handle}, nil
}

func (p *Provider) BuildDeleteRequest(cfg core.BackendConfig, stored string) (core.TransportRequest, error) {
	backend, err := backendOf(cfg)
	if err != nil {
		return core.TransportRequest{}, err
	}
	handle, err := p.normalizeLocator(stored)
	if err != nil {
		return core.TransportRequest{}, err
	}
	return core.TransportRequest{
		Method:    http.MethodDelete,
		URL:       handleURL(backend, handle),
		BasicAuth: credentials(backend),
		Metadata:  map[string]any{"backend_kind": string(Kind), "operation": "delete", "handle": handle},
	}, nil
}

func (p *Provider) ParseDeleteResponse(_ core.BackendConfig, res core.TransportResponse) error {
	envelope, ok := decodeEnvelope(res.Body)
	if !isSuccess(res.StatusCode) {
		return statusFailure("delete", res, envelope, ok)
	}
	return nil
}

// ExpectedLocation is the URL value a mint registers: the canonical URL.
func (p *Provider) ExpectedLocation(in core.MintInput) (string, error) {
	if in.Object == nil {
		return "", core.PreconditionFailure(core.ReasonObjectUnavailable, "handle: object is required for the expected location", nil)
	}
	return in.Object.AbsoluteCanonicalURL(), nil
}

func (p *Provider) BuildLocateRequest(cfg core.BackendConfig, locator string) (core.TransportRequest, error) {
	backend, err := backendOf(cfg)
	if err != nil {
		return core.TransportRequest{}, err
	}
	handle, err := p.normalizeLocator(locator)
	if err != nil {
		return core.TransportRequest{}, err
	}
	return core.TransportRequest{
		Method:    http.MethodGet,
		URL:       handleURL(backend, handle),
		Headers:   map[string]string{"Accept": ContentType},
		BasicAuth: credentials(backend),
		Metadata:  map[string]any{"backend_kind": string(Kind), "operation": "locate", "handle": handle},
	}, nil
}

// ParseLocateResponse returns the index of the first URL value.
func (p *Provider) ParseLocateResponse(_ core.BackendConfig, res core.TransportResponse) (int, error) {
	envelope, ok := decodeEnvelope(res.Body)
	if !isSuccess(res.StatusCode) {
		return 0, statusFailure("locate", res, envelope, ok)
	}
	var payload valuesResponse
	if err := json.Unmarshal(res.Body, &payload); err != nil {
		return 0, core.SemanticFailure("handle: locate response is not a values document", map[string]any{
			"status_code":  res.StatusCode,
			"decode_error": err.Error(),
		})
	}
	for _, value := range payload.Values {
		if value.Type == urlValueType {
			return value.Index, nil
		}
	}
	return 0, core.PreconditionFailure(core.ReasonNoURLValueToUpdate, "handle: record has no URL value to update", map[string]any{
		"values": len(payload.Values),
	})
}

func (p *Provider) BuildUpdateRequest(cfg core.BackendConfig, locator string, index int, location string) (core.TransportRequest, error) {
	backend, err := backendOf(cfg)
	if err != nil {
		return core.TransportRequest{}, err
	}
	handle, err := p.normalizeLocator(locator)
	if err != nil {
		return core.TransportRequest{}, err
	}
	return p.urlValueRequest(backend, handle, index, location, true, "update")
}

func (p *Provider) ParseUpdateResponse(_ core.BackendConfig, res core.TransportResponse) error {
	envelope, ok := decodeEnvelope(res.Body)
	if !isSuccess(res.StatusCode) {
		return statusFailure("update", res, envelope, ok)
	}
	if ok && envelope.ResponseCode != nil && *envelope.ResponseCode != responseCodeSuccess {
		metadata := map[string]any{"status_code": res.StatusCode}
		return core.SemanticFailure(describe("handle: update was not applied", envelope, ok, metadata), metadata)
	}
	return nil
}

func (p *Provider) urlValueRequest(
	backend core.HandleBackend,
	handle string,
	index int,
	location string,
	overwrite bool,
	operation string,
) (core.TransportRequest, error) {
	body, err := json.Marshal([]requestValue{{Index: index, Type: urlValueType, Data: location}})
	if err != nil {
		return core.TransportRequest{}, core.InternalError(err, "handle: encode values", nil)
	}
	return core.TransportRequest{
		Method:    http.MethodPut,
		URL:       handleURL(backend, handle),
		Query:     map[string]string{"overwrite": fmt.Sprintf("%t", overwrite)},
		Headers:   map[string]string{"Content-Type": ContentType, "Accept": ContentType},
		Body:      body,
		BasicAuth: credentials(backend),
		Metadata:  map[string]any{"backend_kind": string(Kind), "operation": operation, "handle": handle},
	}, nil
}

// normalizeLocator accepts a bare "prefix/suffix" handle, a resolver URL
// under the configured base, or any absolute URL whose path is the handle.
func (p *Provider) normalizeLocator(locator string) (string, error) {
	locator = strings.TrimSpace(locator)
	handle := locator
	switch {
	case strings.HasPrefix(locator, p.resolverBase):
		handle = strings.TrimPrefix(locator, p.resolverBase)
	case strings.Contains(locator, "://"):
		parsed, err := url.Parse(locator)
		if err != nil {
			return "", core.PreconditionFailure(core.ReasonInvalidLocator, "handle: locator is not a valid url", map[string]any{
				"locator": locator,
			})
		}
		handle = parsed.Path
	}
	handle = strings.Trim(handle, "/")
	prefix, suffix, found := strings.Cut(handle, "/")
	if !found || strings.TrimSpace(prefix) == "" || strings.TrimSpace(suffix) == "" {
		return "", core.PreconditionFailure(core.ReasonInvalidLocator, fmt.Sprintf("handle: %q is not a prefix/suffix handle", locator), map[string]any{
			"locator": locator,
		})
	}
	return handle, nil
}

func suffixFor(backend core.HandleBackend, obj core.TargetObject) string {
	if field := strings.TrimSpace(backend.SuffixField); field != "" {
		if suffix := strings.TrimSpace(obj.Get(field)); suffix != "" {
			return suffix
		}
	}
	return obj.StableID()
}

func handleURL(backend core.HandleBackend, handle string) string {
	return strings.TrimRight(strings.TrimSpace(backend.Host), "/") + "/" + handle
}

func credentials(backend core.HandleBackend) *core.BasicAuth {
	return &core.BasicAuth{Username: backend.AdminIdentity(), Password: backend.Password}
}

func isSuccess(status int) bool {
	return status >= 200 && status <= 299
}

func statusFailure(operation string, res core.TransportResponse, envelope responseEnvelope, ok bool) error {
	metadata := map[string]any{"status_code": res.StatusCode}
	message := describe(fmt.Sprintf("handle: %s returned status %d", operation, res.StatusCode), envelope, ok, metadata)
	return core.TransportFailure(nil, message, metadata)
}

func backendOf(cfg core.BackendConfig) (core.HandleBackend, error) {
	switch backend := cfg.(type) {
	case core.HandleBackend:
		return backend, nil
	case *core.HandleBackend:
		if backend != nil {
			return *backend, nil
		}
	}
	return core.HandleBackend{}, core.ConfigIncompleteError(
		fmt.Sprintf("handle: backend %T is not a handle backend", cfg),
		nil,
	)
}

var _ core.UpdatingAdapter = (*Provider)(nil)
