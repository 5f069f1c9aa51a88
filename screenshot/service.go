package screenshot

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"log/slog"
	"sync/atomic"
	"time"
)

// Config configures a Service. Zero values select the defaults.
type Config struct {
	Plan         PlanOptions
	Attempts     int
	RetryDelay   time.Duration
	ScrollSettle time.Duration
	FrameSettle  time.Duration
	// Selectors is the heuristic selector list of the fixed element masker.
	Selectors []string
	Logger    *slog.Logger
}

func (c *Config) defaults() {
	if c.Attempts <= 0 {
		c.Attempts = DefaultAttempts
	}
	if c.RetryDelay == 0 {
		c.RetryDelay = DefaultRetryDelay
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// Target is the page a capture acts on and its capture primitive.
type Target struct {
	Page    Page
	Capture CaptureFunc
	// OnState observes full-page session transitions.
	OnState func(Transition)
}

// Service runs captures one at a time.
type Service struct {
	cfg    Config
	masker *Masker
	logger *slog.Logger
	busy   atomic.Bool
}

// NewService creates a capture service.
func NewService(cfg Config) *Service {
	cfg.defaults()
	return &Service{
		cfg:    cfg,
		masker: NewMasker(cfg.Selectors, cfg.Logger),
		logger: cfg.Logger,
	}
}

// Active reports whether a capture is running.
func (s *Service) Active() bool { return s.busy.Load() }

func (s *Service) acquire() error {
	if !s.busy.CompareAndSwap(false, true) {
		return ErrSessionActive
	}
	return nil
}

func (s *Service) release() { s.busy.Store(false) }

func (s *Service) capturer(fn CaptureFunc) *ViewportCapturer {
	return &ViewportCapturer{
		Primitive: fn,
		Attempts:  s.cfg.Attempts,
		Delay:     s.cfg.RetryDelay,
		Logger:    s.logger,
	}
}

// NewSession builds a full-page session for t without running it.
func (s *Service) NewSession(t Target) *Session {
	return NewSession(SessionConfig{
		Page:         t.Page,
		Capturer:     s.capturer(t.Capture),
		Masker:       s.masker,
		Plan:         s.cfg.Plan,
		ScrollSettle: s.cfg.ScrollSettle,
		FrameSettle:  s.cfg.FrameSettle,
		OnState:      t.OnState,
		Logger:       s.logger,
	})
}

// FullPage captures the whole page of t. A call while another capture is
// running returns ErrSessionActive.
func (s *Service) FullPage(ctx context.Context, t Target) (*Result, error) {
	if err := s.acquire(); err != nil {
		return nil, err
	}
	defer s.release()

	start := time.Now()
	res, err := s.NewSession(t).Run(ctx)
	if err != nil {
		return nil, err
	}
	s.logger.Info("screenshot: full page captured",
		"width", res.Meta.Width, "height", res.Meta.Height,
		"segments", res.Meta.Segments, "bytes", len(res.PNG), "duration", time.Since(start))
	return res, nil
}

// Visible captures the current viewport of t with the capturer's retry.
func (s *Service) Visible(ctx context.Context, t Target) (*Result, error) {
	if err := s.acquire(); err != nil {
		return nil, err
	}
	defer s.release()

	data, err := s.capturer(t.Capture).Capture(ctx, 0)
	if err != nil {
		return nil, err
	}
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("screenshot: decode viewport: %w", err)
	}
	return &Result{PNG: data, Meta: Meta{Width: cfg.Width, Height: cfg.Height, Segments: 1}}, nil
}

// Selection captures the viewport of t and crops r out of it. The crop
// scale is the page's device pixel ratio.
func (s *Service) Selection(ctx context.Context, t Target, r Rect) (*Result, error) {
	if err := r.Validate(); err != nil {
		return nil, err
	}
	if err := s.acquire(); err != nil {
		return nil, err
	}
	defer s.release()

	scale := 1.0
	if t.Page != nil {
		g, err := t.Page.Geometry(ctx)
		if err != nil {
			return nil, fmt.Errorf("screenshot: read geometry: %w", err)
		}
		if g.DevicePixelRatio > 0 {
			scale = g.DevicePixelRatio
		}
	}

	data, err := s.capturer(t.Capture).Capture(ctx, 0)
	if err != nil {
		return nil, err
	}
	cropped, err := Crop(data, r, scale)
	if err != nil {
		return nil, err
	}
	cfg, _, err := image.DecodeConfig(bytes.NewReader(cropped))
	if err != nil {
		return nil, fmt.Errorf("screenshot: decode selection: %w", err)
	}
	return &Result{PNG: cropped, Meta: Meta{Width: cfg.Width, Height: cfg.Height, Segments: 1}}, nil
}
