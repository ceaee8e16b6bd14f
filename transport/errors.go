package transport

import (
	"fmt"

	"github.com/goliatone/go-pids/core"
)

// exchange identifies the request an error belongs to. Stages are "build",
// "send" and "read".
type exchange struct {
	method string
	url    string
}

func (e exchange) metadata(stage string, extra map[string]any) map[string]any {
	metadata := map[string]any{"adapter": KindREST, "stage": stage}
	if e.method != "" {
		metadata["method"] = e.method
	}
	if e.url != "" {
		metadata["url"] = e.url
	}
	for key, value := range extra {
		metadata[key] = value
	}
	return metadata
}

func missingClientError() error {
	return core.InternalError(nil, "transport: rest adapter requires an http client", map[string]any{"adapter": KindREST})
}

// invalidRequest reports a request that could not be built. Nothing was sent.
func invalidRequest(source error, message string, ex exchange) error {
	if source != nil {
		message = fmt.Sprintf("%s: %v", message, source)
	}
	return core.BadInputError(message, ex.metadata("build", nil))
}

// exchangeFailure reports an exchange that did not yield a usable response.
func exchangeFailure(source error, stage string, message string, ex exchange, extra map[string]any) error {
	return core.TransportFailure(source, message, ex.metadata(stage, extra))
}
