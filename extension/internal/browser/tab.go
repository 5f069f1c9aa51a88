package browser

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"

	"github.com/hazyhaar/tobe/screenshot"
)

// ErrDetached is returned by SetStyle for an element no longer in the page.
var ErrDetached = errors.New("browser: element detached")

// Tab is one stealth page with the emulated viewport. It implements
// screenshot.Page; CaptureViewport is its capture primitive.
type Tab struct {
	Page    *rod.Page
	PageURL string
	TabID   string

	manager   *Manager
	router    *rod.HijackRouter
	closeOnce sync.Once
}

var _ screenshot.Page = (*Tab)(nil)

// OpenTab creates a new tab, sets the viewport, and navigates to pageURL.
func (m *Manager) OpenTab(ctx context.Context, pageURL, tabID string) (*Tab, error) {
	b, err := m.acquire()
	if err != nil {
		return nil, err
	}

	page, err := stealth.Page(b)
	if err != nil {
		m.release()
		return nil, fmt.Errorf("browser: create tab: %w", err)
	}
	t := &Tab{Page: page, PageURL: pageURL, TabID: tabID, manager: m}

	vp := m.cfg.Viewport
	if err := page.SetViewport(&proto.EmulationSetDeviceMetricsOverride{
		Width:             vp.Width,
		Height:            vp.Height,
		DeviceScaleFactor: vp.DeviceScaleFactor,
	}); err != nil {
		t.Close()
		return nil, fmt.Errorf("browser: set viewport: %w", err)
	}

	if len(m.cfg.ResourceBlocking) > 0 {
		t.router = applyResourceBlocking(page, m.cfg.ResourceBlocking)
	}

	navCtx, cancel := context.WithTimeout(ctx, m.cfg.NavigateTimeout)
	defer cancel()

	if err := page.Context(navCtx).Navigate(pageURL); err != nil {
		t.Close()
		return nil, fmt.Errorf("browser: navigate %s: %w", pageURL, err)
	}
	if err := page.Context(navCtx).WaitLoad(); err != nil {
		m.cfg.Logger.Warn("browser: wait load timeout", "url", pageURL, "error", err)
	}

	m.cfg.Logger.Debug("browser: tab opened", "tab", tabID, "url", pageURL)
	return t, nil
}

func (t *Tab) eval(ctx context.Context, js string, args ...any) (*proto.RuntimeRemoteObject, error) {
	return t.Page.Context(ctx).Eval(js, args...)
}

func (t *Tab) Geometry(ctx context.Context) (screenshot.Geometry, error) {
	res, err := t.eval(ctx, geometryJS)
	if err != nil {
		return screenshot.Geometry{}, fmt.Errorf("browser: geometry: %w", err)
	}
	return decodeGeometry(res.Value.Str())
}

func (t *Tab) ScrollPosition(ctx context.Context) (int, int, error) {
	res, err := t.eval(ctx, scrollPositionJS)
	if err != nil {
		return 0, 0, fmt.Errorf("browser: scroll position: %w", err)
	}
	return decodeScroll(res.Value.Str())
}

func (t *Tab) ScrollTo(ctx context.Context, x, y int) error {
	if _, err := t.eval(ctx, scrollToJS, x, y); err != nil {
		return fmt.Errorf("browser: scroll to %d,%d: %w", x, y, err)
	}
	return nil
}

func (t *Tab) RequestFrame(ctx context.Context) error {
	return t.Page.Context(ctx).WaitRepaint()
}

func (t *Tab) Elements(ctx context.Context, selectors []string) ([]screenshot.ElementStyle, error) {
	if selectors == nil {
		selectors = []string{}
	}
	res, err := t.eval(ctx, elementsJS, selectors)
	if err != nil {
		return nil, fmt.Errorf("browser: scan elements: %w", err)
	}
	return decodeElements(res.Value.Str())
}

func (t *Tab) SetStyle(ctx context.Context, ref string, props screenshot.StyleProps) error {
	res, err := t.eval(ctx, setStyleJS, ref, props.Display, props.Visibility, props.Opacity)
	if err != nil {
		return fmt.Errorf("browser: set style %s: %w", ref, err)
	}
	if !res.Value.Bool() {
		return fmt.Errorf("%w: %s", ErrDetached, ref)
	}
	return nil
}

// CaptureViewport takes a PNG of the visible viewport.
func (t *Tab) CaptureViewport(ctx context.Context) ([]byte, error) {
	data, err := t.Page.Context(ctx).Screenshot(false, &proto.PageCaptureScreenshot{
		Format: proto.PageCaptureScreenshotFormatPng,
	})
	if err != nil {
		return nil, fmt.Errorf("browser: capture viewport: %w", err)
	}
	return data, nil
}

// Close closes the tab. Safe to call more than once.
func (t *Tab) Close() error {
	var err error
	t.closeOnce.Do(func() {
		if t.router != nil {
			t.router.Stop()
		}
		if t.Page != nil {
			err = t.Page.Close()
		}
		t.manager.release()
	})
	return err
}
