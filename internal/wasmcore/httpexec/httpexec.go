// Package httpexec provides a net/http backed implementation of the
// HTTPExecutor contract (spec §4.5's "http_request" capability).
//
// Grounded on pkg/serverless/hostfunctions/http.go's HTTPFetch (request
// construction, header copy, transport-error-as-status-0 handling) and
// pkg/tlsutil.NewHTTPClient's client-construction idiom (explicit Timeout,
// Transport with a dedicated TLSClientConfig), trimmed to this module's
// plain TLS defaults since the teacher's trusted-domain allowlist is part of
// a cluster-wide TLS scheme this module does not carry.
package httpexec

import (
	"bytes"
	"context"
	"crypto/tls"
	"io"
	"net/http"
	"time"

	"github.com/orama-network/wasmcore/internal/wasmcore/contracts"
	"github.com/orama-network/wasmcore/internal/wasmcore/wasmtypes"
)

// Executor issues outbound HTTP requests on behalf of guest modules.
type Executor struct {
	client *http.Client
}

// New builds an Executor with the given per-request timeout.
func New(timeout time.Duration) *Executor {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Executor{
		client: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				TLSClientConfig: &tls.Config{MinVersion: tls.VersionTLS12},
			},
		},
	}
}

// Do performs req and returns the response. Transport-level failures (DNS,
// connect, TLS) are returned as a HostFunctionError, not folded into the
// response the way the teacher's HTTPFetch does for its guest-JSON
// convention; the ptr/len convention used here gives the guest a real error
// path instead.
func (e *Executor) Do(ctx context.Context, req contracts.HTTPRequest) (*contracts.HTTPResponse, error) {
	var bodyReader io.Reader
	if len(req.Body) > 0 {
		bodyReader = bytes.NewReader(req.Body)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, req.URL, bodyReader)
	if err != nil {
		return nil, wasmtypes.NewHostFunctionError("http_request: invalid request", err)
	}
	for k, v := range req.Headers {
		httpReq.Header.Set(k, v)
	}

	resp, err := e.client.Do(httpReq)
	if err != nil {
		return nil, wasmtypes.NewHostFunctionError("http_request: transport error", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, wasmtypes.NewHostFunctionError("http_request: failed to read response", err)
	}

	headers := make(map[string]string, len(resp.Header))
	for k := range resp.Header {
		headers[k] = resp.Header.Get(k)
	}

	return &contracts.HTTPResponse{
		Status:  resp.StatusCode,
		Headers: headers,
		Body:    body,
	}, nil
}
