package devkit

import (
	"context"
	"encoding/json"
	"fmt"
	"maps"
	"net/http"
	"strings"
	"sync"

	"github.com/goliatone/go-pids/core"
)

// TransportScript is one canned exchange. When Method or URLPrefix is set the
// script only answers matching requests; otherwise it answers in turn.
type TransportScript struct {
	Method    string
	URLPrefix string
	Response  core.TransportResponse
	Err       error
}

func (s TransportScript) routed() bool {
	return s.Method != "" || s.URLPrefix != ""
}

func (s TransportScript) matches(req core.TransportRequest) bool {
	if s.Method != "" && !strings.EqualFold(s.Method, req.Method) {
		return false
	}
	return strings.HasPrefix(req.URL, s.URLPrefix)
}

// On returns a copy of s that only answers method requests under urlPrefix.
func (s TransportScript) On(method string, urlPrefix string) TransportScript {
	s.Method = strings.ToUpper(strings.TrimSpace(method))
	s.URLPrefix = strings.TrimSpace(urlPrefix)
	return s
}

// EZIDSuccess answers with an EZID "success: <identifier>" body.
func EZIDSuccess(status int, identifier string) TransportScript {
	return textScript(status, "success: "+identifier+"\n")
}

// EZIDError answers with an EZID "error: <reason>" body.
func EZIDError(status int, reason string) TransportScript {
	return textScript(status, "error: "+reason+"\n")
}

// HandleResponse answers with a Handle.net JSON body built from payload.
func HandleResponse(status int, payload map[string]any) TransportScript {
	body, err := json.Marshal(payload)
	if err != nil {
		return TransportScript{Err: fmt.Errorf("devkit: encode handle payload: %w", err)}
	}
	return TransportScript{Response: core.TransportResponse{
		StatusCode: status,
		Headers:    map[string]string{"Content-Type": "application/json"},
		Body:       body,
	}}
}

// Redirect answers a resolver HEAD request with a 302 to location.
func Redirect(location string) TransportScript {
	return TransportScript{Response: core.TransportResponse{
		StatusCode: http.StatusFound,
		Headers:    map[string]string{"Location": location},
	}}
}

// Unreachable fails the exchange the way a dead host would.
func Unreachable(host string) TransportScript {
	return TransportScript{Err: core.TransportFailure(nil, "devkit: host unreachable", map[string]any{"host": host})}
}

func textScript(status int, body string) TransportScript {
	return TransportScript{Response: core.TransportResponse{
		StatusCode: status,
		Headers:    map[string]string{"Content-Type": "text/plain; charset=UTF-8"},
		Body:       []byte(body),
	}}
}

// FakeTransportAdapter answers each request with the first routed script that
// matches it, else with the next unrouted script in order. The last unrouted
// script repeats once they run out. Every request is captured.
type FakeTransportAdapter struct {
	mu       sync.Mutex
	kind     string
	routes   []TransportScript
	sequence []TransportScript
	next     int
	requests []core.TransportRequest
}

func NewFakeTransportAdapter(kind string, scripts ...TransportScript) *FakeTransportAdapter {
	adapter := &FakeTransportAdapter{kind: strings.TrimSpace(strings.ToLower(kind))}
	for _, script := range scripts {
		if script.routed() {
			adapter.routes = append(adapter.routes, script)
			continue
		}
		adapter.sequence = append(adapter.sequence, script)
	}
	return adapter
}

func (a *FakeTransportAdapter) Kind() string {
	if a == nil {
		return ""
	}
	return a.kind
}

func (a *FakeTransportAdapter) Do(_ context.Context, req core.TransportRequest) (core.TransportResponse, error) {
	if a == nil {
		return core.TransportResponse{}, fmt.Errorf("devkit: fake transport adapter is nil")
	}
	a.mu.Lock()
	defer a.mu.Unlock()

	a.requests = append(a.requests, cloneTransportRequest(req))
	for _, route := range a.routes {
		if route.matches(req) {
			return cloneTransportResponse(route.Response), route.Err
		}
	}
	if len(a.sequence) == 0 {
		return core.TransportResponse{
			StatusCode: http.StatusOK,
			Headers:    map[string]string{},
			Metadata:   map[string]any{"kind": a.kind},
		}, nil
	}
	script := a.sequence[min(a.next, len(a.sequence)-1)]
	a.next++
	return cloneTransportResponse(script.Response), script.Err
}

func (a *FakeTransportAdapter) Requests() []core.TransportRequest {
	if a == nil {
		return nil
	}
	a.mu.Lock()
	defer a.mu.Unlock()

	out := make([]core.TransportRequest, 0, len(a.requests))
	for _, item := range a.requests {
		out = append(out, cloneTransportRequest(item))
	}
	return out
}

// RequestsTo returns the captured requests with the given method.
func (a *FakeTransportAdapter) RequestsTo(method string) []core.TransportRequest {
	var out []core.TransportRequest
	for _, req := range a.Requests() {
		if strings.EqualFold(req.Method, method) {
			out = append(out, req)
		}
	}
	return out
}

func cloneTransportRequest(in core.TransportRequest) core.TransportRequest {
	out := in
	out.Headers = cloneStrings(in.Headers)
	out.Query = cloneStrings(in.Query)
	out.Metadata = cloneAny(in.Metadata)
	out.Body = append([]byte(nil), in.Body...)
	if in.BasicAuth != nil {
		auth := *in.BasicAuth
		out.BasicAuth = &auth
	}
	return out
}

func cloneTransportResponse(in core.TransportResponse) core.TransportResponse {
	out := in
	out.Headers = cloneStrings(in.Headers)
	out.Metadata = cloneAny(in.Metadata)
	out.Body = append([]byte(nil), in.Body...)
	return out
}

func cloneStrings(in map[string]string) map[string]string {
	out := make(map[string]string, len(in))
	maps.Copy(out, in)
	return out
}

func cloneAny(in map[string]any) map[string]any {
	out := make(map[string]any, len(in))
	maps.Copy(out, in)
	return out
}

var _ core.TransportAdapter = (*FakeTransportAdapter)(nil)
