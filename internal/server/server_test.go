package server

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/matzehuels/pkghealth/pkg/deps"
	"github.com/matzehuels/pkghealth/pkg/errors"
	"github.com/matzehuels/pkghealth/pkg/health"
	"github.com/matzehuels/pkghealth/pkg/packages"
)

type call struct {
	name, version, query string
	depth, limit         int
}

type fakeService struct {
	last   call
	err    error
	states map[string]string
}

func (f *fakeService) ResolveDependencyTree(_ context.Context, name, version string, maxDepth int) (*deps.Tree, error) {
	f.last = call{name: name, version: version, depth: maxDepth}
	if f.err != nil {
		return nil, f.err
	}
	root := &deps.Node{ID: name + "@1.0.0", Name: name, Version: "1.0.0", Health: health.EmptyScore(), Dependencies: []*deps.Node{}}
	return &deps.Tree{Root: root, Stats: deps.CalculateStats(root)}, nil
}

func (f *fakeService) CalculateHealth(_ context.Context, name string) (health.Score, error) {
	f.last = call{name: name}
	if f.err != nil {
		return health.Score{}, f.err
	}
	return health.Score{Overall: 72, Level: health.LevelHealthy, Vulnerabilities: []health.Vulnerability{}}, nil
}

func (f *fakeService) FindPackage(_ context.Context, name, version string) (*packages.Metadata, error) {
	f.last = call{name: name, version: version}
	if f.err != nil {
		return nil, f.err
	}
	return &packages.Metadata{Name: name, Version: "1.0.0"}, nil
}

func (f *fakeService) SearchPackages(_ context.Context, query string, limit int) ([]packages.SearchResult, error) {
	f.last = call{query: query, limit: limit}
	if f.err != nil {
		return nil, f.err
	}
	return []packages.SearchResult{{Name: "react", Version: "18.2.0"}}, nil
}

func (f *fakeService) Breakers() map[string]string {
	if f.states == nil {
		return map[string]string{}
	}
	return f.states
}

func newTestServer(svc Service, opts ...Option) http.Handler {
	return New(svc, log.New(io.Discard), opts...).Handler()
}

func get(t *testing.T, h http.Handler, target string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) errorBody {
	t.Helper()
	var body errorBody
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode error body: %v", err)
	}
	return body
}

func TestResolveRoute(t *testing.T) {
	svc := &fakeService{}
	h := newTestServer(svc)

	rec := get(t, h, "/api/resolve/express")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body)
	}
	if svc.last.depth != deps.DefaultMaxDepth || svc.last.version != "latest" {
		t.Errorf("call = %+v, want default depth and latest", svc.last)
	}

	var tree deps.Tree
	if err := json.NewDecoder(rec.Body).Decode(&tree); err != nil {
		t.Fatal(err)
	}
	if tree.Root.ID != "express@1.0.0" {
		t.Errorf("root = %s", tree.Root.ID)
	}

	get(t, h, "/api/resolve/express?version=4.18.2&maxDepth=999")
	if svc.last.depth != 999 || svc.last.version != "4.18.2" {
		t.Errorf("call = %+v, depth is passed through for the resolver to clamp", svc.last)
	}
}

func TestResolveRouteBadDepth(t *testing.T) {
	rec := get(t, newTestServer(&fakeService{}), "/api/resolve/express?maxDepth=deep")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	if body := decodeError(t, rec); body.Code != errors.ErrCodeInvalidInput {
		t.Errorf("code = %s", body.Code)
	}
}

func TestScopedNames(t *testing.T) {
	for _, target := range []string{"/api/health/@babel%2Fcore", "/api/health/@babel/core"} {
		svc := &fakeService{}
		rec := get(t, newTestServer(svc), target)
		if rec.Code != http.StatusOK {
			t.Fatalf("%s: status = %d", target, rec.Code)
		}
		if svc.last.name != "@babel/core" {
			t.Errorf("%s: name = %q, want @babel/core", target, svc.last.name)
		}
	}
}

func TestErrorMapping(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   errors.Code
		msg    string
	}{
		{"not found", errors.PackageNotFound("nope", "latest"), http.StatusNotFound, errors.ErrCodePackageNotFound, "Package not found: nope@latest"},
		{"upstream", errors.ExternalAPI("npm registry", 503), http.StatusBadGateway, errors.ErrCodeExternalAPI, "npm registry returned 503"},
		{"invalid", errors.New(errors.ErrCodeInvalidPackage, "bad name"), http.StatusBadRequest, errors.ErrCodeInvalidPackage, "bad name"},
		{"resolution", errors.Resolution("x", "boom"), http.StatusInternalServerError, errors.ErrCodeResolution, "Failed to resolve x: boom"},
		{"untyped", stderrors.New("secret upstream detail"), http.StatusInternalServerError, errors.ErrCodeInternal, "Internal server error"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := get(t, newTestServer(&fakeService{err: tt.err}), "/api/package/nope")
			if rec.Code != tt.status {
				t.Errorf("status = %d, want %d", rec.Code, tt.status)
			}
			body := decodeError(t, rec)
			if body.Code != tt.code || body.Error != tt.msg {
				t.Errorf("body = %+v, want %s %q", body, tt.code, tt.msg)
			}
		})
	}
}

func TestSearchRoute(t *testing.T) {
	svc := &fakeService{}
	h := newTestServer(svc)

	rec := get(t, h, "/api/search?q=react&limit=5")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if svc.last.query != "react" || svc.last.limit != 5 {
		t.Errorf("call = %+v", svc.last)
	}
	var body struct {
		Results []packages.SearchResult `json:"results"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(body.Results) != 1 || body.Results[0].Name != "react" {
		t.Errorf("results = %+v", body.Results)
	}

	get(t, h, "/api/search?q=react")
	if svc.last.limit != 10 {
		t.Errorf("missing limit should pass the default 10, got %d", svc.last.limit)
	}

	get(t, h, "/api/search?q=react&limit=0")
	if svc.last.limit != 0 {
		t.Errorf("explicit limit should pass through for clamping, got %d", svc.last.limit)
	}

	if rec := get(t, h, "/api/search?q=react&limit=x"); rec.Code != http.StatusBadRequest {
		t.Errorf("bad limit status = %d", rec.Code)
	}
}

func TestRequestID(t *testing.T) {
	h := newTestServer(&fakeService{})

	rec := get(t, h, "/healthz")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if id := rec.Header().Get(RequestIDHeader); len(id) != 36 {
		t.Errorf("generated request id = %q", id)
	}

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set(RequestIDHeader, "abc-123")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if got := rec.Header().Get(RequestIDHeader); got != "abc-123" {
		t.Errorf("request id = %q, want propagated abc-123", got)
	}
}

func TestMetricsRoute(t *testing.T) {
	reg := prometheus.NewRegistry()
	counter := prometheus.NewCounter(prometheus.CounterOpts{Name: "pkghealth_test_total", Help: "test"})
	reg.MustRegister(counter)
	counter.Inc()

	rec := get(t, newTestServer(&fakeService{}, WithGatherer(reg)), "/metrics")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "pkghealth_test_total 1") {
		t.Errorf("metrics body missing counter:\n%s", rec.Body)
	}
}

func TestRecoversPanics(t *testing.T) {
	rec := get(t, newTestServer(&panicService{}), "/api/health/react")
	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", rec.Code)
	}
}

type panicService struct{ fakeService }

func (panicService) CalculateHealth(context.Context, string) (health.Score, error) {
	panic("boom")
}

type emptySearch struct{ fakeService }

func (emptySearch) SearchPackages(context.Context, string, int) ([]packages.SearchResult, error) {
	return nil, nil
}

func TestSearchRouteEnvelope(t *testing.T) {
	rec := get(t, newTestServer(&emptySearch{}), "/api/search?q=a")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if got := strings.TrimSpace(rec.Body.String()); got != `{"results":[]}` {
		t.Errorf("short query body = %s, want empty results envelope", got)
	}

	rec = get(t, newTestServer(&fakeService{}), "/api/search?q=react")
	if !strings.HasPrefix(rec.Body.String(), `{"results":[{"name":"react"`) {
		t.Errorf("body = %s", rec.Body)
	}
}

func TestHealthzReportsUpstreamCircuits(t *testing.T) {
	svc := &fakeService{states: map[string]string{"registry.npmjs.org": "open", "api.npms.io": "closed"}}
	rec := get(t, newTestServer(svc), "/healthz")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	var body struct {
		Status   string            `json:"status"`
		Upstream map[string]string `json:"upstream"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Status != "ok" || body.Upstream["registry.npmjs.org"] != "open" || body.Upstream["api.npms.io"] != "closed" {
		t.Errorf("healthz = %+v", body)
	}
}
