// Package extension wires the toolkit together the way the browser
// extension does: a privileged background owning the capture primitive and
// the settings storage, a capture service driving tabs through it, the
// JSON viewer and the timestamp converter. HTTP and MCP surfaces expose the
// same operations.
package extension

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/hazyhaar/tobe/bridge"
	"github.com/hazyhaar/tobe/config"
	"github.com/hazyhaar/tobe/dbopen"
	"github.com/hazyhaar/tobe/export"
	"github.com/hazyhaar/tobe/extension/internal/browser"
	"github.com/hazyhaar/tobe/horosafe"
	"github.com/hazyhaar/tobe/idgen"
	"github.com/hazyhaar/tobe/screenshot"
	"github.com/hazyhaar/tobe/store"
)

// Tab is an open page a capture runs on.
type Tab interface {
	screenshot.Page
	CaptureViewport(ctx context.Context) ([]byte, error)
	Close() error
}

// TabOpener opens pageURL in a new tab identified by tabID.
type TabOpener func(ctx context.Context, pageURL, tabID string) (Tab, error)

// Option configures an Extension.
type Option func(*Extension)

// WithTabOpener replaces the Chrome-backed tab opener.
func WithTabOpener(fn TabOpener) Option {
	return func(e *Extension) { e.open = fn }
}

// WithClock overrides the clock used for JSON hand-off expiry.
func WithClock(now func() time.Time) Option {
	return func(e *Extension) { e.now = now }
}

var newTabID = idgen.Prefixed("tab_", idgen.NanoID(10))

// Extension is the running toolkit.
type Extension struct {
	cfg      *config.Config
	logger   *slog.Logger
	store    *store.Store
	bg       *bridge.Background
	client   *bridge.Client
	shots    *screenshot.Service
	exporter *export.Exporter
	browser  *browser.Manager
	open     TabOpener
	now      func() time.Time

	mu   sync.RWMutex
	tabs map[string]Tab

	cancel context.CancelFunc
	done   chan struct{}
}

// New opens the store and starts the background. cfg nil selects
// config.Default().
func New(cfg *config.Config, logger *slog.Logger, opts ...Option) (*Extension, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if logger == nil {
		logger = slog.Default()
	}

	st, err := store.Open(cfg.Store.Path, dbopen.WithMkdirAll())
	if err != nil {
		return nil, fmt.Errorf("extension: open store: %w", err)
	}

	e := &Extension{
		cfg:      cfg,
		logger:   logger,
		store:    st,
		exporter: export.New(cfg.Export.Dir, logger),
		now:      time.Now,
		tabs:     make(map[string]Tab),
		done:     make(chan struct{}),
	}
	for _, o := range opts {
		o(e)
	}

	if e.open == nil {
		level, err := browser.ParseStealthLevel(cfg.Browser.Stealth)
		if err != nil {
			st.Close()
			return nil, err
		}
		e.browser = browser.NewManager(browser.Config{
			RemoteURL:        cfg.Browser.Remote,
			MemoryLimit:      cfg.Browser.MemoryLimit,
			RecycleInterval:  cfg.Browser.RecycleInterval,
			ResourceBlocking: cfg.Browser.ResourceBlocking,
			Stealth:          level,
			XvfbDisplay:      cfg.Browser.XvfbDisplay,
			Viewport: browser.Viewport{
				Width:             cfg.Browser.Viewport.Width,
				Height:            cfg.Browser.Viewport.Height,
				DeviceScaleFactor: cfg.Browser.Viewport.DeviceScaleFactor,
			},
			Logger: logger,
		})
		e.open = func(ctx context.Context, pageURL, tabID string) (Tab, error) {
			t, err := e.browser.OpenTab(ctx, pageURL, tabID)
			if err != nil {
				return nil, err
			}
			return t, nil
		}
	}

	e.bg = bridge.NewBackground(logger, bridge.LoggingMiddleware(logger))
	e.bg.SetErrorCoder(screenshot.Code)
	e.registerHandlers()
	e.client = bridge.NewClient(e.bg, cfg.Capture.CallTimeout)

	e.shots = screenshot.NewService(screenshot.Config{
		Plan:         screenshot.PlanOptions{StepRatio: cfg.Capture.StepRatio, MaxPixels: cfg.Capture.MaxPixels},
		Attempts:     cfg.Capture.Attempts,
		RetryDelay:   cfg.Capture.RetryDelay,
		ScrollSettle: cfg.Capture.ScrollSettle,
		FrameSettle:  cfg.Capture.FrameSettle,
		Selectors:    cfg.Capture.FixedSelectors,
		Logger:       logger,
	})

	ctx, cancel := context.WithCancel(context.Background())
	e.cancel = cancel
	go func() {
		defer close(e.done)
		_ = e.bg.Run(ctx)
	}()

	return e, nil
}

// Start launches Chrome ahead of the first capture and starts its recycle
// monitor. It is a no-op with an injected tab opener.
func (e *Extension) Start(ctx context.Context) error {
	if e.browser == nil {
		return nil
	}
	return e.browser.Start(ctx)
}

// Store exposes the underlying store.
func (e *Extension) Store() *store.Store { return e.store }

// Close stops the background, closes open tabs, Chrome and the store.
func (e *Extension) Close() error {
	e.cancel()
	<-e.done

	e.mu.Lock()
	for id, t := range e.tabs {
		t.Close()
		delete(e.tabs, id)
	}
	e.mu.Unlock()

	if e.browser != nil {
		e.browser.Close()
	}
	return e.store.Close()
}

func (e *Extension) checkURL(pageURL string) error {
	if e.cfg.Server.BlockPrivate {
		return horosafe.ValidateURL(pageURL)
	}
	return horosafe.ValidatePageURL(pageURL)
}

// withTab opens pageURL, registers the tab with the background for the
// duration of fn, and closes it.
func (e *Extension) withTab(ctx context.Context, pageURL string, fn func(tabID string, tab Tab) error) error {
	if err := e.checkURL(pageURL); err != nil {
		return err
	}
	id := newTabID()
	tab, err := e.open(ctx, pageURL, id)
	if err != nil {
		return fmt.Errorf("extension: open tab: %w", err)
	}

	e.mu.Lock()
	e.tabs[id] = tab
	e.mu.Unlock()

	defer func() {
		e.mu.Lock()
		delete(e.tabs, id)
		e.mu.Unlock()
		if err := tab.Close(); err != nil {
			e.logger.Warn("extension: close tab", "tab", id, "error", err)
		}
	}()

	return fn(id, tab)
}

func (e *Extension) tab(id string) (Tab, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	t, ok := e.tabs[id]
	if !ok {
		return nil, fmt.Errorf("%w: unknown tab %s", bridge.ErrInvalidSender, id)
	}
	return t, nil
}
