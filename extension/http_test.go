package extension

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/hazyhaar/tobe/internal/pagetest"
	"github.com/hazyhaar/tobe/screenshot"
)

func testServer(t *testing.T, e *Extension) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(e.Handler(e.NewMCPServer("test")))
	t.Cleanup(srv.Close)
	return srv
}

func post(t *testing.T, url, body string) *http.Response {
	t.Helper()
	resp, err := http.Post(url, "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatalf("POST %s: %v", url, err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decodeJSON(t *testing.T, resp *http.Response, v any) {
	t.Helper()
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		t.Fatalf("decode: %v", err)
	}
}

func TestHTTP_Health(t *testing.T) {
	e, _ := testExtension(t, exampleGeometry)
	srv := testServer(t, e)
	resp, err := http.Get(srv.URL + "/health")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	var body map[string]any
	decodeJSON(t, resp, &body)
	if resp.StatusCode != http.StatusOK || body["status"] != "ok" {
		t.Fatalf("health: %d %v", resp.StatusCode, body)
	}
}

func TestHTTP_CaptureFullPage(t *testing.T) {
	e, _ := testExtension(t, exampleGeometry)
	srv := testServer(t, e)

	resp := post(t, srv.URL+"/api/capture/fullpage", `{"url":"https://example.com"}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status: got %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "image/png" {
		t.Fatalf("content type: %q", ct)
	}
	if resp.Header.Get("X-Page-Height") != "1500" || resp.Header.Get("X-Page-Segments") != "3" {
		t.Fatalf("headers: %v", resp.Header)
	}
	data, _ := io.ReadAll(resp.Body)
	if !bytes.HasPrefix(data, []byte("\x89PNG")) {
		t.Fatal("body is not a PNG")
	}

	last, err := http.Get(srv.URL + "/api/screenshots/last?kind=fullpage")
	if err != nil {
		t.Fatal(err)
	}
	defer last.Body.Close()
	if last.StatusCode != http.StatusOK || last.Header.Get("X-Screenshot-Id") == "" {
		t.Fatalf("last: %d", last.StatusCode)
	}
}

func TestHTTP_CaptureErrors(t *testing.T) {
	g := screenshot.Geometry{ViewportWidth: 1000, ViewportHeight: 800, FullWidth: 10000, FullHeight: 10000, DevicePixelRatio: 1}
	e, _ := testExtension(t, g)
	srv := testServer(t, e)

	tests := []struct {
		path, body string
		status     int
		code       string
	}{
		{"/api/capture/fullpage", `{"url":"chrome://newtab"}`, http.StatusBadRequest, screenshot.CodeInvalidPage},
		{"/api/capture/fullpage", `{"url":"https://example.com"}`, http.StatusRequestEntityTooLarge, screenshot.CodePageTooLarge},
		{"/api/capture/selection", `{"url":"https://example.com","x":0,"y":0,"width":0,"height":5}`, http.StatusBadRequest, screenshot.CodeInvalidPage},
	}
	for _, tt := range tests {
		resp := post(t, srv.URL+tt.path, tt.body)
		var body map[string]string
		decodeJSON(t, resp, &body)
		if resp.StatusCode != tt.status || body["code"] != tt.code || body["message"] == "" {
			t.Errorf("%s %s: got %d %v, want %d %s", tt.path, tt.body, resp.StatusCode, body, tt.status, tt.code)
		}
	}

	resp := post(t, srv.URL+"/api/capture/visible", `{bad json`)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("bad json: got %d", resp.StatusCode)
	}
}

func TestHTTP_CaptureBusy(t *testing.T) {
	e, o := testExtension(t, exampleGeometry)
	entered := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once
	o.newPage = func() *pagetest.Page {
		p := pagetest.New(exampleGeometry, fixedChrome()...)
		p.OnCapture = func(int) {
			once.Do(func() {
				close(entered)
				<-release
			})
		}
		return p
	}
	srv := testServer(t, e)

	done := make(chan int, 1)
	go func() {
		resp, err := http.Post(srv.URL+"/api/capture/fullpage", "application/json", strings.NewReader(`{"url":"https://example.com"}`))
		if err != nil {
			done <- 0
			return
		}
		resp.Body.Close()
		done <- resp.StatusCode
	}()
	<-entered

	resp := post(t, srv.URL+"/api/capture/visible", `{"url":"https://example.com"}`)
	var body map[string]string
	decodeJSON(t, resp, &body)
	if resp.StatusCode != http.StatusConflict || body["code"] != screenshot.CodeBusy {
		t.Fatalf("busy: got %d %v", resp.StatusCode, body)
	}

	close(release)
	if status := <-done; status != http.StatusOK {
		t.Fatalf("first capture: got %d", status)
	}
}

func TestHTTP_JSONAndSettings(t *testing.T) {
	e, _ := testExtension(t, exampleGeometry)
	srv := testServer(t, e)

	resp := post(t, srv.URL+"/api/json/format", `{"text":"{\"b\":1,\"a\":[true,null]}"}`)
	var formatted map[string]string
	decodeJSON(t, resp, &formatted)
	want := "{\n  \"b\": 1,\n  \"a\": [\n    true,\n    null\n  ]\n}"
	if formatted["formatted"] != want {
		t.Fatalf("format: got %q", formatted["formatted"])
	}

	resp = post(t, srv.URL+"/api/json/format", `{"text":""}`)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("empty: got %d", resp.StatusCode)
	}

	resp = post(t, srv.URL+"/api/json/render", `{"text":"[1,2]"}`)
	var rendered Rendered
	decodeJSON(t, resp, &rendered)
	if rendered.Lines != 3 || !strings.Contains(rendered.HTML, "json-line-container") {
		t.Fatalf("render: %+v", rendered)
	}

	req, _ := http.NewRequest(http.MethodPut, srv.URL+"/api/settings", strings.NewReader(`{"theme":"dark"}`))
	put, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer put.Body.Close()
	var settings map[string]any
	decodeJSON(t, put, &settings)
	if settings["theme"] != "dark" || settings["timestampFormat"] != "local" {
		t.Fatalf("settings: %v", settings)
	}

	pending, err := http.Get(srv.URL + "/api/json/pending")
	if err != nil {
		t.Fatal(err)
	}
	pending.Body.Close()
	if pending.StatusCode != http.StatusNoContent {
		t.Fatalf("pending: got %d", pending.StatusCode)
	}
}

func TestHTTP_Timestamp(t *testing.T) {
	e, _ := testExtension(t, exampleGeometry)
	srv := testServer(t, e)

	resp, err := http.Get(srv.URL + "/api/timestamp?value=1700000000123")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	var out TimestampResult
	decodeJSON(t, resp, &out)
	if out.Conversion == nil || out.Conversion.ISO != "2023-11-14T22:13:20.123Z" {
		t.Fatalf("got %+v", out.Conversion)
	}

	bad, err := http.Get(srv.URL + "/api/timestamp?value=yesterday-ish")
	if err != nil {
		t.Fatal(err)
	}
	bad.Body.Close()
	if bad.StatusCode != http.StatusBadRequest {
		t.Fatalf("bad date: got %d", bad.StatusCode)
	}
}

func TestHTTP_ShieldHeadersAndRateLimit(t *testing.T) {
	e, _ := testExtension(t, exampleGeometry)
	e.cfg.Server.RateLimits = map[string]string{"POST /api/capture/visible": "1/1h"}
	srv := testServer(t, e)

	head, err := http.Head(srv.URL + "/health")
	if err != nil {
		t.Fatal(err)
	}
	head.Body.Close()
	if head.StatusCode != http.StatusOK {
		t.Fatalf("HEAD /health: got %d", head.StatusCode)
	}
	if got := head.Header.Get("X-Content-Type-Options"); got != "nosniff" {
		t.Fatalf("X-Content-Type-Options: got %q", got)
	}

	first := post(t, srv.URL+"/api/capture/visible", `{"url":"https://example.com"}`)
	if first.StatusCode != http.StatusOK {
		t.Fatalf("first capture: got %d", first.StatusCode)
	}
	second := post(t, srv.URL+"/api/capture/visible", `{"url":"https://example.com"}`)
	var body map[string]string
	decodeJSON(t, second, &body)
	if second.StatusCode != http.StatusTooManyRequests || body["code"] != "rate_limited" {
		t.Fatalf("second capture: got %d %v", second.StatusCode, body)
	}
	if second.Header.Get("Retry-After") == "" {
		t.Fatal("Retry-After missing")
	}
}
