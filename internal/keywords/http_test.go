package keywords

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/generalbots/botcore/internal/expr"
)

func newHTTPEngine(t *testing.T, srv *httptest.Server) *expr.Engine {
	t.Helper()
	e := expr.NewEngine()
	if _, err := RegisterHTTP(e, srv.Client()); err != nil {
		t.Fatalf("register http verbs: %v", err)
	}
	return e
}

func TestPostSendsJSONBodyAndReturnsEnvelope(t *testing.T) {
	var gotContentType string
	var gotBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotContentType = r.Header.Get("Content-Type")
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		w.Header().Set("X-Trace", "abc")
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"ok": true}`))
	}))
	defer srv.Close()

	e := newHTTPEngine(t, srv)
	v := run(t, e, `POST("`+srv.URL+`", {"name": "Ada"})`)

	if gotContentType != "application/json" {
		t.Fatalf("expected default JSON content type, got %q", gotContentType)
	}
	if gotBody["name"] != "Ada" {
		t.Fatalf("expected request body to carry name, got %#v", gotBody)
	}
	resp, ok := v.(map[string]any)
	if !ok {
		t.Fatalf("expected envelope map, got %#v", v)
	}
	if resp["status"] != float64(201) {
		t.Fatalf("expected status 201, got %#v", resp["status"])
	}
	data, ok := resp["data"].(map[string]any)
	if !ok || data["ok"] != true {
		t.Fatalf("expected JSON-parsed data, got %#v", resp["data"])
	}
}

func TestSetHeaderAppliesToSubsequentRequests(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	e := newHTTPEngine(t, srv)
	run(t, e, `SET_HEADER("Authorization", "Bearer tok")`)
	run(t, e, `PUT("`+srv.URL+`", {})`)

	if gotAuth != "Bearer tok" {
		t.Fatalf("expected header to carry through, got %q", gotAuth)
	}
}

func TestClearHeadersRemovesPriorHeaders(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	e := newHTTPEngine(t, srv)
	run(t, e, `SET_HEADER("Authorization", "Bearer tok")`)
	run(t, e, `CLEAR_HEADERS()`)
	run(t, e, `PATCH("`+srv.URL+`", {})`)

	if gotAuth != "" {
		t.Fatalf("expected header to be cleared, got %q", gotAuth)
	}
}

func TestGraphQLPostsQueryAndVariablesEnvelope(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&got)
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"data": {"ok": true}}`))
	}))
	defer srv.Close()

	e := newHTTPEngine(t, srv)
	run(t, e, `GRAPHQL("`+srv.URL+`", "query { ok }", {"id": "1"})`)

	if got["query"] != "query { ok }" {
		t.Fatalf("expected query field, got %#v", got)
	}
	vars, ok := got["variables"].(map[string]any)
	if !ok || vars["id"] != "1" {
		t.Fatalf("expected variables to carry through, got %#v", got["variables"])
	}
}

func TestSOAPBuildsEnvelopeAndExtractsBody(t *testing.T) {
	var gotAction string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAction = r.Header.Get("SOAPAction")
		w.Header().Set("Content-Type", "text/xml")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`<?xml version="1.0"?><soap:Envelope xmlns:soap="http://schemas.xmlsoap.org/soap/envelope/"><soap:Body><Result>42</Result></soap:Body></soap:Envelope>`))
	}))
	defer srv.Close()

	e := newHTTPEngine(t, srv)
	v := run(t, e, `SOAP("`+srv.URL+`", "GetWidget", {"id": "7"})`)

	if gotAction != "GetWidget" {
		t.Fatalf("expected SOAPAction header, got %q", gotAction)
	}
	body, ok := v.(string)
	if !ok {
		t.Fatalf("expected opaque string body, got %#v", v)
	}
	if body != "<Result>42</Result>" {
		t.Fatalf("expected extracted soap body, got %q", body)
	}
}

func TestDeleteHopsThroughHTTPDeleterSeam(t *testing.T) {
	var called string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = r.Method
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	e := expr.NewEngine()
	h, err := RegisterHTTP(e, srv.Client())
	if err != nil {
		t.Fatalf("register http: %v", err)
	}
	resp, err := h.Delete(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("delete: %v", err)
	}
	if called != http.MethodDelete {
		t.Fatalf("expected DELETE method, got %q", called)
	}
	env, ok := resp.(map[string]any)
	if !ok || env["status"] != float64(204) {
		t.Fatalf("expected 204 envelope, got %#v", resp)
	}
}
