package keywords

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/generalbots/botcore/internal/expr"
)

// defaultHTTPTimeout bounds every data/HTTP verb's outbound call per
// spec.md §4.10's suspension-point table (60s default for data/HTTP,
// SOAP gets its own longer budget below).
const (
	defaultHTTPTimeout = 60 * time.Second
	soapHTTPTimeout    = 120 * time.Second
)

// HTTPClient is the narrow net/http contract the HTTP verb group
// depends on, so tests can substitute a fake transport without a real
// listener.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// RegisterHTTP wires POST/PUT/PATCH/DELETE(url)/SET_HEADER/
// CLEAR_HEADERS/GRAPHQL/SOAP for one session's evaluation (spec.md
// §4.4's HTTP group). client defaults to http.DefaultClient when nil.
func RegisterHTTP(e *expr.Engine, client HTTPClient) (*httpVerbs, error) {
	if client == nil {
		client = http.DefaultClient
	}
	h := &httpVerbs{client: client, headers: map[string]string{}}
	// DELETE is not registered here: it is Data's dual-purpose verb
	// (spec.md §4.4), which hops into h.Delete via the HTTPDeleter seam
	// for URL-shaped arguments. Registering it again here would collide.
	verbs := map[string]expr.Handler{
		"POST":          h.method("POST"),
		"PUT":           h.method("PUT"),
		"PATCH":         h.method("PATCH"),
		"SET_HEADER":    h.setHeader,
		"CLEAR_HEADERS": h.clearHeaders,
		"GRAPHQL":       h.graphql,
		"SOAP":          h.soap,
	}
	for name, handler := range verbs {
		if err := e.RegisterSyntax(name, true, handler); err != nil {
			return nil, fmt.Errorf("keywords: register %s: %w", name, err)
		}
	}
	return h, nil
}

// httpVerbs holds the thread-local header map spec.md §4.10 describes:
// one instance is closed over by one session's registered verbs, so
// concurrent scripts never share header state.
type httpVerbs struct {
	client  HTTPClient
	headers map[string]string
}

// Delete implements the HTTPDeleter seam data.go's dual-purpose DELETE
// verb hops to for URL-shaped first arguments.
func (h *httpVerbs) Delete(ctx context.Context, url string) (expr.Value, error) {
	return h.do(ctx, "DELETE", url, nil)
}

func (h *httpVerbs) method(verb string) expr.Handler {
	return func(cc *expr.CallContext, args []expr.Value) (expr.Value, error) {
		if len(args) < 1 || len(args) > 2 {
			return nil, NewError(KindInvalidArgument, fmt.Sprintf("%s requires (url[, body])", verb))
		}
		var body expr.Value
		if len(args) == 2 {
			body = args[1]
		}
		return h.do(contextFrom(cc), verb, toString(args[0]), body)
	}
}

func (h *httpVerbs) setHeader(_ *expr.CallContext, args []expr.Value) (expr.Value, error) {
	if len(args) != 2 {
		return nil, NewError(KindInvalidArgument, "SET_HEADER requires (name, value)")
	}
	h.headers[toString(args[0])] = toString(args[1])
	return nil, nil
}

func (h *httpVerbs) clearHeaders(_ *expr.CallContext, _ []expr.Value) (expr.Value, error) {
	h.headers = map[string]string{}
	return nil, nil
}

// do issues one HTTP request and returns {status, statusText, headers,
// data} per spec.md §4.4, with data auto-parsed as JSON when possible.
func (h *httpVerbs) do(ctx context.Context, method, url string, body expr.Value) (expr.Value, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultHTTPTimeout)
	defer cancel()

	var reader io.Reader
	hasBody := body != nil
	if hasBody {
		encoded, err := json.Marshal(body)
		if err != nil {
			return nil, NewError(KindInvalidArgument, "request body is not JSON-serializable: "+err.Error())
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return nil, NewError(KindInvalidArgument, "invalid request: "+err.Error())
	}
	for k, v := range h.headers {
		req.Header.Set(k, v)
	}
	if hasBody && req.Header.Get("Content-Type") == "" {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := h.client.Do(req)
	if err != nil {
		return nil, Wrap(KindUpstream, fmt.Sprintf("%s %s failed", method, url), err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, Wrap(KindUpstream, "reading response body failed", err)
	}

	headers := map[string]any{}
	for k := range resp.Header {
		headers[k] = resp.Header.Get(k)
	}

	return map[string]any{
		"status":     float64(resp.StatusCode),
		"statusText": resp.Status,
		"headers":    headers,
		"data":       parseResponseData(respBody),
	}, nil
}

// parseResponseData JSON-decodes body when possible, otherwise falls
// back to the raw string, matching spec.md's "data auto-parsed as JSON
// when possible" wording.
func parseResponseData(body []byte) expr.Value {
	if len(bytes.TrimSpace(body)) == 0 {
		return nil
	}
	var v any
	if err := json.Unmarshal(body, &v); err == nil {
		return v
	}
	return string(body)
}

// graphql posts a GraphQL query+variables envelope per the GraphQL-
// over-HTTP convention the vektah/gqlparser ecosystem expects servers
// to accept.
func (h *httpVerbs) graphql(cc *expr.CallContext, args []expr.Value) (expr.Value, error) {
	if len(args) < 2 || len(args) > 3 {
		return nil, NewError(KindInvalidArgument, "GRAPHQL requires (url, query[, variables])")
	}
	envelope := map[string]any{"query": toString(args[1])}
	if len(args) == 3 {
		envelope["variables"] = args[2]
	}
	return h.do(contextFrom(cc), "POST", toString(args[0]), envelope)
}

// soap builds a minimal SOAP 1.1 envelope, posts it, and returns the
// raw <soap:Body> contents as an opaque string (spec.md §4.4).
func (h *httpVerbs) soap(cc *expr.CallContext, args []expr.Value) (expr.Value, error) {
	if len(args) != 3 {
		return nil, NewError(KindInvalidArgument, "SOAP requires (url, operation, params)")
	}
	url := toString(args[0])
	operation := toString(args[1])
	params, ok := args[2].(map[string]any)
	if !ok {
		return nil, NewError(KindInvalidArgument, "SOAP: params must be an object")
	}

	var fields strings.Builder
	for k, v := range params {
		fmt.Fprintf(&fields, "<%s>%s</%s>", k, toString(v), k)
	}
	envelope := fmt.Sprintf(
		`<?xml version="1.0" encoding="utf-8"?>`+
			`<soap:Envelope xmlns:soap="http://schemas.xmlsoap.org/soap/envelope/">`+
			`<soap:Body><%s>%s</%s></soap:Body></soap:Envelope>`,
		operation, fields.String(), operation,
	)

	ctx, cancel := context.WithTimeout(contextFrom(cc), soapHTTPTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, "POST", url, strings.NewReader(envelope))
	if err != nil {
		return nil, NewError(KindInvalidArgument, "invalid request: "+err.Error())
	}
	req.Header.Set("Content-Type", "text/xml; charset=utf-8")
	req.Header.Set("SOAPAction", operation)
	for k, v := range h.headers {
		req.Header.Set(k, v)
	}

	resp, err := h.client.Do(req)
	if err != nil {
		return nil, Wrap(KindUpstream, "SOAP request failed", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, Wrap(KindUpstream, "reading SOAP response failed", err)
	}

	return extractSOAPBody(string(respBody)), nil
}

// extractSOAPBody returns the raw contents between <soap:Body> tags
// (any namespace prefix), opaque to the caller per spec.md.
func extractSOAPBody(xml string) string {
	start := strings.Index(xml, ":Body>")
	if start == -1 {
		return xml
	}
	start += len(":Body>")
	end := strings.LastIndex(xml, ":Body>")
	if end > start {
		if lt := strings.LastIndex(xml[:end], "</"); lt >= start {
			return strings.TrimSpace(xml[start:lt])
		}
	}
	return strings.TrimSpace(xml[start:])
}
