package httpapi

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	sq "github.com/Masterminds/squirrel"

	"climate-api/internal/config"
	"climate-api/internal/modules/climate"
	"climate-api/internal/modules/climate/types"
	"climate-api/internal/testkit"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()

	db := testkit.NewStore(t, testkit.Stations("USC00519397"), []types.Observation{
		testkit.Obs("USC00519397", "2017-01-01", testkit.Ptr(0.1), 60),
	})
	metrics := NewMetrics(db)
	mux := NewMux(db, metrics)
	climate.RegisterFeature(mux, db, sq.Question)

	srv := NewServer(config.Config{HTTPAddr: ":0"}, mux, metrics)
	ts := httptest.NewServer(srv.Handler)

	t.Cleanup(ts.Close)
	return ts
}

func mustGetJSON[T any](t *testing.T, client *http.Client, url string, out *T) *http.Response {
	t.Helper()

	req, err := http.NewRequest(http.MethodGet, url, nil)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}

	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}

	t.Cleanup(func() { _ = resp.Body.Close() })

	dec := json.NewDecoder(resp.Body)
	if err := dec.Decode(out); err != nil {
		t.Fatalf("decode json: %v", err)
	}

	return resp
}

func mustGetRaw(t *testing.T, client *http.Client, url string) (*http.Response, string) {
	t.Helper()

	resp, err := client.Get(url)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	t.Cleanup(func() { _ = resp.Body.Close() })
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return resp, string(body)
}

func TestHealthz(t *testing.T) {
	ts := newTestServer(t)

	var body map[string]string
	resp := mustGetJSON(t, ts.Client(), ts.URL+"/healthz", &body)

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status=%d want=%d", resp.StatusCode, http.StatusOK)
	}
	if body["status"] != "ok" {
		t.Fatalf("body.status=%q want=%q", body["status"], "ok")
	}
}

func TestHealthz_StoreClosed(t *testing.T) {
	db := testkit.NewStore(t, nil, nil)
	mux := NewMux(db, nil)
	if err := db.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status=%d want=%d", rec.Code, http.StatusInternalServerError)
	}
}

func TestStations(t *testing.T) {
	ts := newTestServer(t)

	var stations []string
	resp := mustGetJSON(t, ts.Client(), ts.URL+"/api/v1.0/stations", &stations)

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status=%d want=%d", resp.StatusCode, http.StatusOK)
	}
	if len(stations) != 1 || stations[0] != "USC00519397" {
		t.Fatalf("stations=%v want=[USC00519397]", stations)
	}
}

func TestUnknownRoute(t *testing.T) {
	ts := newTestServer(t)

	resp, _ := mustGetRaw(t, ts.Client(), ts.URL+"/api/v1/stations/1/latest")
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("status=%d want=%d", resp.StatusCode, http.StatusNotFound)
	}
}

func TestMetrics(t *testing.T) {
	ts := newTestServer(t)

	mustGetRaw(t, ts.Client(), ts.URL+"/api/v1.0/2017-01-01")
	mustGetRaw(t, ts.Client(), ts.URL+"/api/v1.0/2017-01-01")
	mustGetRaw(t, ts.Client(), ts.URL+"/nope")

	resp, body := mustGetRaw(t, ts.Client(), ts.URL+"/metrics")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status=%d want=%d", resp.StatusCode, http.StatusOK)
	}
	for _, want := range []string{
		`climate_api_http_requests_total{code="200",method="GET",route="GET /api/v1.0/{start}"} 2`,
		`climate_api_http_requests_total{code="404",method="GET",route="unmatched"} 1`,
		`climate_api_http_request_duration_seconds_count{route="GET /api/v1.0/{start}"} 2`,
		`go_sql_max_open_connections{db_name="climate"} 4`,
	} {
		if !strings.Contains(body, want) {
			t.Errorf("metrics output missing %q", want)
		}
	}
}

func TestRouteOf(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/x", nil)
	if got := routeOf(r); got != unmatchedRoute {
		t.Errorf("routeOf(unrouted) = %q; want %q", got, unmatchedRoute)
	}
	r.Pattern = "GET /healthz"
	if got := routeOf(r); got != "GET /healthz" {
		t.Errorf("routeOf = %q; want GET /healthz", got)
	}
}

func TestStatusRecorder(t *testing.T) {
	rec := httptest.NewRecorder()
	sr := &statusRecorder{ResponseWriter: rec, status: http.StatusOK}
	sr.WriteHeader(http.StatusTeapot)

	if sr.status != http.StatusTeapot || rec.Code != http.StatusTeapot {
		t.Errorf("status=%d recorder=%d want=%d", sr.status, rec.Code, http.StatusTeapot)
	}
	if sr.Unwrap() != rec {
		t.Error("Unwrap did not return the wrapped writer")
	}
}
