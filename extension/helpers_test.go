package extension

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/hazyhaar/tobe/config"
	"github.com/hazyhaar/tobe/internal/pagetest"
	"github.com/hazyhaar/tobe/screenshot"
)

var exampleGeometry = screenshot.Geometry{
	ViewportWidth: 800, ViewportHeight: 600, FullWidth: 800, FullHeight: 1500, DevicePixelRatio: 1,
}

type fakeTab struct {
	*pagetest.Page
	url    string
	closed atomic.Bool
}

func (f *fakeTab) CaptureViewport(ctx context.Context) ([]byte, error) { return f.Capture(ctx) }

func (f *fakeTab) Close() error {
	f.closed.Store(true)
	return nil
}

// fakeOpener hands out pagetest pages built by newPage.
type fakeOpener struct {
	mu      sync.Mutex
	newPage func() *pagetest.Page
	tabs    []*fakeTab
}

func (o *fakeOpener) open(_ context.Context, pageURL, _ string) (Tab, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	t := &fakeTab{Page: o.newPage(), url: pageURL}
	o.tabs = append(o.tabs, t)
	return t, nil
}

func (o *fakeOpener) opened() []*fakeTab {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]*fakeTab(nil), o.tabs...)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.Default()
	dir := t.TempDir()
	cfg.Store.Path = filepath.Join(dir, "tobe.db")
	cfg.Export.Dir = filepath.Join(dir, "screenshots")
	cfg.Capture.ScrollSettle = -1
	cfg.Capture.FrameSettle = -1
	cfg.Capture.RetryDelay = time.Millisecond
	cfg.Capture.CallTimeout = 5 * time.Second
	return cfg
}

func fixedChrome() []*pagetest.Element {
	return []*pagetest.Element{
		{Ref: "header", Matched: true, Computed: "fixed", Style: screenshot.StyleProps{Display: "block"}},
		{Ref: "chat", Inline: "fixed"},
		{Ref: "article", Matched: true, Computed: "static"},
	}
}

func testExtension(t *testing.T, g screenshot.Geometry, opts ...Option) (*Extension, *fakeOpener) {
	t.Helper()
	o := &fakeOpener{newPage: func() *pagetest.Page { return pagetest.New(g, fixedChrome()...) }}
	e, err := New(testConfig(t), discardLogger(), append([]Option{WithTabOpener(o.open)}, opts...)...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { e.Close() })
	return e, o
}
