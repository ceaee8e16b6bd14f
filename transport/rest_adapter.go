package transport

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/goliatone/go-pids/core"
)

const KindREST = "rest"

const defaultRESTClientTimeout = 30 * time.Second
const defaultRESTResponseBodyLimit int64 = 10 << 20 // 10 MiB

type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// RESTAdapter executes requests over net/http. Non-2xx statuses are returned
// as responses; only failures to complete the exchange are errors.
type RESTAdapter struct {
	Client               HTTPDoer
	DefaultHeaders       map[string]string
	MaxResponseBodyBytes int64
}

func NewRESTAdapter(client HTTPDoer) *RESTAdapter {
	if client == nil {
		client = &http.Client{Timeout: defaultRESTClientTimeout}
	}
	return &RESTAdapter{
		Client:               client,
		DefaultHeaders:       map[string]string{},
		MaxResponseBodyBytes: defaultRESTResponseBodyLimit,
	}
}

func (*RESTAdapter) Kind() string {
	return KindREST
}

func (a *RESTAdapter) Do(ctx context.Context, req core.TransportRequest) (core.TransportResponse, error) {
	if a == nil || a.Client == nil {
		return core.TransportResponse{}, missingClientError()
	}
	if ctx == nil {
		ctx = context.Background()
	}

	method := strings.TrimSpace(strings.ToUpper(req.Method))
	if method == "" {
		method = http.MethodGet
	}
	ex := exchange{method: method, url: strings.TrimSpace(req.URL)}
	parsedURL, err := url.Parse(ex.url)
	if err != nil {
		return core.TransportResponse{}, invalidRequest(err, "transport: invalid request url", ex)
	}
	if parsedURL.String() == "" {
		return core.TransportResponse{}, invalidRequest(nil, "transport: request url is required", ex)
	}

	if len(req.Query) > 0 {
		query := parsedURL.Query()
		for key, value := range req.Query {
			if strings.TrimSpace(key) == "" {
				continue
			}
			query.Set(strings.TrimSpace(key), strings.TrimSpace(value))
		}
		parsedURL.RawQuery = query.Encode()
	}
	ex.url = parsedURL.String()

	requestCtx := ctx
	cancel := func() {}
	if req.Timeout > 0 {
		requestCtx, cancel = context.WithTimeout(ctx, req.Timeout)
	}
	defer cancel()

	httpReq, err := http.NewRequestWithContext(requestCtx, method, parsedURL.String(), bytes.NewReader(req.Body))
	if err != nil {
		return core.TransportResponse{}, invalidRequest(err, "transport: create http request", ex)
	}
	// Content-Length is owned by net/http and always matches the body.
	httpReq.ContentLength = int64(len(req.Body))
	for key, value := range a.DefaultHeaders {
		setHeader(httpReq, key, value)
	}
	for key, value := range req.Headers {
		setHeader(httpReq, key, value)
	}
	if req.BasicAuth != nil {
		httpReq.SetBasicAuth(req.BasicAuth.Username, req.BasicAuth.Password)
	}

	client := a.Client
	if req.SuppressRedirects {
		client = withoutRedirects(client)
	}

	startedAt := time.Now().UTC()
	httpRes, err := client.Do(httpReq)
	if err != nil {
		return core.TransportResponse{}, exchangeFailure(err, "send", "transport: execute http request", ex, nil)
	}
	defer httpRes.Body.Close()

	maxBodyBytes := resolveResponseBodyLimit(req.MaxResponseBodyBytes, a.MaxResponseBodyBytes)
	body, err := io.ReadAll(io.LimitReader(httpRes.Body, maxBodyBytes+1))
	if err != nil {
		return core.TransportResponse{}, exchangeFailure(err, "read", "transport: read response body", ex, map[string]any{
			"status_code": httpRes.StatusCode,
		})
	}
	if int64(len(body)) > maxBodyBytes {
		return core.TransportResponse{}, exchangeFailure(nil, "read", fmt.Sprintf("transport: response body exceeds limit of %d bytes", maxBodyBytes), ex, map[string]any{
			"status_code":          httpRes.StatusCode,
			"response_limit_bytes": maxBodyBytes,
		})
	}

	return core.TransportResponse{
		StatusCode: httpRes.StatusCode,
		Headers:    flattenHeaders(httpRes.Header),
		Body:       body,
		Metadata: map[string]any{
			"duration_ms": time.Since(startedAt).Milliseconds(),
			"kind":        KindREST,
		},
	}, nil
}

func setHeader(req *http.Request, key, value string) {
	key = strings.TrimSpace(key)
	if key == "" || strings.EqualFold(key, "Content-Length") {
		return
	}
	req.Header.Set(key, strings.TrimSpace(value))
}

// withoutRedirects returns a client that hands 3xx responses back instead of
// following them. Doers other than *http.Client are used as given.
func withoutRedirects(doer HTTPDoer) HTTPDoer {
	client, ok := doer.(*http.Client)
	if !ok || client == nil {
		return doer
	}
	copied := *client
	copied.CheckRedirect = func(*http.Request, []*http.Request) error {
		return http.ErrUseLastResponse
	}
	return &copied
}

func flattenHeaders(headers http.Header) map[string]string {
	if len(headers) == 0 {
		return map[string]string{}
	}
	flat := make(map[string]string, len(headers))
	for key, values := range headers {
		if len(values) == 0 {
			flat[key] = ""
			continue
		}
		flat[key] = strings.Join(values, ",")
	}
	return flat
}

func resolveResponseBodyLimit(requestLimit int64, adapterLimit int64) int64 {
	if requestLimit > 0 {
		return requestLimit
	}
	if adapterLimit > 0 {
		return adapterLimit
	}
	return defaultRESTResponseBodyLimit
}

var _ core.TransportAdapter = (*RESTAdapter)(nil)
