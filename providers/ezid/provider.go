package ezid

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/goliatone/go-pids/core"
)

const (
	Kind        = core.BackendKindEZID
	ContentType = "text/plain; charset=UTF-8"

	successKey = "success"
	errorKey   = "error"

	maxRawBodyBytes = 2048

	// identifierSeparator splits the identifiers EZID reports for a DOI mint,
	// e.g. "doi:10.5072/FK2 | ark:/b5072/fk2".
	identifierSeparator = "|"
)

type Provider struct{}

func New() *Provider {
	return &Provider{}
}

func (*Provider) Kind() core.BackendKind { return Kind }

func (p *Provider) BuildMintRequest(in core.MintInput) (core.TransportRequest, error) {
	backend, err := backendOf(in.Backend)
	if err != nil {
		return core.TransportRequest{}, err
	}
	body := Encode(in.Fields)
	return core.TransportRequest{
		Method: http.MethodPost,
		URL:    strings.TrimRight(strings.TrimSpace(backend.Host), "/") + "/shoulder/" + strings.TrimSpace(backend.Shoulder),
		Headers: map[string]string{
			"Content-Type":   ContentType,
			"Content-Length": strconv.Itoa(len(body)),
		},
		Body:      body,
		BasicAuth: credentials(backend),
		Metadata:  map[string]any{"backend_kind": string(Kind), "operation": "mint"},
	}, nil
}

func (p *Provider) ParseMintResponse(cfg core.BackendConfig, res core.TransportResponse) (core.MintOutcome, error) {
	backend, err := backendOf(cfg)
	if err != nil {
		return core.MintOutcome{}, err
	}
	success, err := interpret("mint", res)
	if err != nil {
		return core.MintOutcome{}, err
	}
	identifier := primaryIdentifier(success)
	if identifier == "" {
		return core.MintOutcome{}, core.SemanticFailure("ezid: mint response has an empty success value", responseMetadata(res, nil))
	}
	return core.MintOutcome{
		Identifier: identifier,
		Value:      backend.ResolverBase() + "/id/" + identifier,
	}, nil
}

// BuildDeleteRequest targets the stored field value as is.
func (p *Provider) BuildDeleteRequest(cfg core.BackendConfig, stored string) (core.TransportRequest, error) {
	backend, err := backendOf(cfg)
	if err != nil {
		return core.TransportRequest{}, err
	}
	stored = strings.TrimSpace(stored)
	if stored == "" {
		return core.TransportRequest{}, core.PreconditionFailure(core.ReasonEmptyTargetField, "ezid: nothing to delete", nil)
	}
	return core.TransportRequest{
		Method:    http.MethodDelete,
		URL:       stored,
		BasicAuth: credentials(backend),
		Metadata:  map[string]any{"backend_kind": string(Kind), "operation": "delete"},
	}, nil
}

func (p *Provider) ParseDeleteResponse(_ core.BackendConfig, res core.TransportResponse) error {
	_, err := interpret("delete", res)
	return err
}

// ExpectedLocation is the _target the engine sends with every mint.
func (p *Provider) ExpectedLocation(in core.MintInput) (string, error) {
	if target, ok := in.Fields.Get(core.EZIDTargetKey); ok && strings.TrimSpace(target) != "" {
		return strings.TrimSpace(target), nil
	}
	if in.Object == nil {
		return "", core.PreconditionFailure(core.ReasonObjectUnavailable, "ezid: object is required for the expected location", nil)
	}
	return in.Object.AbsoluteCanonicalURL(), nil
}

// interpret applies EZID's success rule: the decoded body must carry a
// success line. A non-2xx status whose body has neither a success nor an
// error line (an empty body, a proxy's HTML page) is a transport failure
// rather than a protocol answer.
func interpret(operation string, res core.TransportResponse) (string, error) {
	fields := Decode(res.Body)
	if (res.StatusCode < 200 || res.StatusCode > 299) && !isProtocolAnswer(fields) {
		metadata := responseMetadata(res, fields)
		metadata["raw_body"] = truncateBody(res.Body)
		return "", core.TransportFailure(
			nil,
			fmt.Sprintf("ezid: %s returned status %d", operation, res.StatusCode),
			metadata,
		)
	}
	success, ok := fields.Get(successKey)
	if !ok {
		message := fmt.Sprintf("ezid: %s response has no success line", operation)
		if reason, found := fields.Get(errorKey); found && reason != "" {
			message += ": " + reason
		}
		return "", core.SemanticFailure(message, responseMetadata(res, fields))
	}
	return success, nil
}

func isProtocolAnswer(fields core.Fields) bool {
	if _, ok := fields.Get(successKey); ok {
		return true
	}
	_, ok := fields.Get(errorKey)
	return ok
}

func truncateBody(body []byte) string {
	if len(body) > maxRawBodyBytes {
		return string(body[:maxRawBodyBytes]) + "...(truncated)"
	}
	return string(body)
}

func primaryIdentifier(success string) string {
	head, _, _ := strings.Cut(success, identifierSeparator)
	return strings.TrimSpace(head)
}

func responseMetadata(res core.TransportResponse, fields core.Fields) map[string]any {
	metadata := map[string]any{"status_code": res.StatusCode}
	if reason, ok := fields.Get(errorKey); ok {
		metadata["ezid_error"] = reason
	}
	return metadata
}

func credentials(backend core.EZIDBackend) *core.BasicAuth {
	return &core.BasicAuth{Username: strings.TrimSpace(backend.Username), Password: backend.Password}
}

func backendOf(cfg core.BackendConfig) (core.EZIDBackend, error) {
	switch backend := cfg.(type) {
	case core.EZIDBackend:
		return backend, nil
	case *core.EZIDBackend:
		if backend != nil {
			return *backend, nil
		}
	}
	return core.EZIDBackend{}, core.ConfigIncompleteError(
		fmt.Sprintf("ezid: backend %T is not an ezid backend", cfg),
		nil,
	)
}

var _ core.ProtocolAdapter = (*Provider)(nil)
