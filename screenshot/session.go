package screenshot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// Settle defaults.
const (
	DefaultScrollSettle   = 300 * time.Millisecond
	DefaultFrameSettle    = 200 * time.Millisecond
	DefaultRestoreTimeout = 5 * time.Second
)

// State is a step of a full-page capture session.
type State int

const (
	StateIdle State = iota
	StatePlanning
	StateCapturing
	StateRestoring
	StateCompositing
	StateDone
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StatePlanning:
		return "planning"
	case StateCapturing:
		return "capturing"
	case StateRestoring:
		return "restoring"
	case StateCompositing:
		return "compositing"
	case StateDone:
		return "done"
	case StateFailed:
		return "failed"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Terminal reports whether no transition leaves s.
func (s State) Terminal() bool { return s == StateDone || s == StateFailed }

// Transition is one entry of the session state log.
type Transition struct {
	State State
	// Segment is the segment index for StateCapturing, -1 otherwise.
	Segment int
	// Err is the failure reason for StateFailed.
	Err error
	At  time.Time
}

func (t Transition) String() string {
	switch t.State {
	case StateCapturing:
		return fmt.Sprintf("capturing(%d)", t.Segment)
	case StateFailed:
		return fmt.Sprintf("failed(%s)", Code(t.Err))
	}
	return t.State.String()
}

// Meta is the page metadata shown next to a capture.
type Meta struct {
	Width    int `json:"width"`
	Height   int `json:"height"`
	Segments int `json:"segments"`
}

// Result is a successful capture.
type Result struct {
	PNG      []byte
	Meta     Meta
	Geometry Geometry
}

// SessionConfig wires one full-page capture.
type SessionConfig struct {
	Page     Page
	Capturer Capturer
	Masker   *Masker
	Plan     PlanOptions

	// ScrollSettle is waited after each scroll, then one frame is requested,
	// then FrameSettle is waited. Zero selects the default; a negative value
	// disables the wait.
	ScrollSettle time.Duration
	FrameSettle  time.Duration
	// RestoreTimeout bounds the cleanup step, which runs detached from the
	// caller's cancellation.
	RestoreTimeout time.Duration

	OnState func(Transition)
	Logger  *slog.Logger
}

func (c *SessionConfig) defaults() {
	if c.ScrollSettle == 0 {
		c.ScrollSettle = DefaultScrollSettle
	}
	if c.FrameSettle == 0 {
		c.FrameSettle = DefaultFrameSettle
	}
	if c.RestoreTimeout <= 0 {
		c.RestoreTimeout = DefaultRestoreTimeout
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	if c.Masker == nil {
		c.Masker = NewMasker(nil, c.Logger)
	}
}

// Session is a single full-page capture. It runs once.
type Session struct {
	cfg    SessionConfig
	logger *slog.Logger

	mu     sync.Mutex
	ran    bool
	states []Transition
}

// NewSession creates a session in StateIdle.
func NewSession(cfg SessionConfig) *Session {
	cfg.defaults()
	s := &Session{cfg: cfg, logger: cfg.Logger}
	s.states = []Transition{{State: StateIdle, Segment: -1, At: time.Now()}}
	return s
}

// States returns a copy of the transition log.
func (s *Session) States() []Transition {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Transition, len(s.states))
	copy(out, s.states)
	return out
}

// State returns the current state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.states[len(s.states)-1].State
}

func (s *Session) enter(state State, segment int, err error) {
	t := Transition{State: state, Segment: segment, Err: err, At: time.Now()}
	s.mu.Lock()
	s.states = append(s.states, t)
	s.mu.Unlock()
	s.logger.Debug("screenshot: session state", "state", t.String())
	if s.cfg.OnState != nil {
		s.cfg.OnState(t)
	}
}

func (s *Session) fail(err error) (*Result, error) {
	s.enter(StateFailed, -1, err)
	s.logger.Warn("screenshot: full page capture failed", "code", Code(err), "error", err)
	return nil, err
}

// Run plans, captures, restores and composites. Once capturing has
// started, the page's scroll position and hidden elements are restored
// before Run returns, whatever the outcome.
func (s *Session) Run(ctx context.Context) (*Result, error) {
	s.mu.Lock()
	if s.ran {
		s.mu.Unlock()
		return nil, errors.New("screenshot: session already run")
	}
	s.ran = true
	s.mu.Unlock()

	page := s.cfg.Page
	s.enter(StatePlanning, -1, nil)
	if err := ctx.Err(); err != nil {
		return s.fail(err)
	}
	g, err := page.Geometry(ctx)
	if err != nil {
		return s.fail(fmt.Errorf("screenshot: read geometry: %w", err))
	}
	segs, err := Plan(g, s.cfg.Plan)
	if err != nil {
		return s.fail(err)
	}
	origX, origY, err := page.ScrollPosition(ctx)
	if err != nil {
		return s.fail(fmt.Errorf("screenshot: read scroll position: %w", err))
	}
	s.logger.Info("screenshot: full page capture",
		"width", g.FullWidth, "height", g.FullHeight, "segments", len(segs))

	captured, err := s.captureAll(ctx, segs, origX, origY)
	if err != nil {
		return s.fail(err)
	}

	s.enter(StateCompositing, -1, nil)
	out, err := Composite(g, captured)
	if err != nil {
		return s.fail(err)
	}

	s.enter(StateDone, -1, nil)
	return &Result{
		PNG:      out,
		Meta:     Meta{Width: g.FullWidth, Height: g.FullHeight, Segments: len(segs)},
		Geometry: g,
	}, nil
}

// captureAll runs Capturing(0..n-1) and always ends in Restoring.
func (s *Session) captureAll(ctx context.Context, segs []Segment, origX, origY int) (out []Captured, err error) {
	page := s.cfg.Page
	var mask *Mask
	defer func() {
		s.enter(StateRestoring, -1, nil)
		s.restore(ctx, origX, origY, mask)
	}()

	for _, seg := range segs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		s.enter(StateCapturing, seg.Index, nil)

		if err := page.ScrollTo(ctx, 0, seg.ScrollY); err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			return nil, &CaptureError{Segment: seg.Index, Err: fmt.Errorf("scroll to %d: %w", seg.ScrollY, err)}
		}
		if err := s.settle(ctx); err != nil {
			return nil, err
		}

		if seg.Index == 1 && mask == nil {
			m, err := s.cfg.Masker.Hide(ctx, page)
			if errors.Is(err, ErrMaskActive) {
				return nil, fmt.Errorf("screenshot: hide fixed elements: %w", err)
			}
			if err != nil {
				s.logger.Warn("screenshot: masking partially failed", "error", err)
			}
			mask = m
		}

		data, err := s.cfg.Capturer.Capture(ctx, seg.Index)
		if err != nil {
			return nil, err
		}
		out = append(out, Captured{Segment: seg, Image: data})
		s.logger.Debug("screenshot: segment captured", "segment", seg.Index, "scroll_y", seg.ScrollY, "bytes", len(data))
	}
	return out, nil
}

func (s *Session) settle(ctx context.Context) error {
	if err := sleep(ctx, s.cfg.ScrollSettle); err != nil {
		return err
	}
	if err := s.cfg.Page.RequestFrame(ctx); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		s.logger.Warn("screenshot: request frame failed", "error", err)
	}
	return sleep(ctx, s.cfg.FrameSettle)
}

// restore puts the scroll position back, then the hidden elements. It runs
// on a context that ignores the caller's cancellation.
func (s *Session) restore(ctx context.Context, x, y int, mask *Mask) {
	rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.cfg.RestoreTimeout)
	defer cancel()

	if err := s.cfg.Page.ScrollTo(rctx, x, y); err != nil {
		s.logger.Warn("screenshot: restore scroll position failed", "x", x, "y", y, "error", err)
	}
	if err := s.cfg.Masker.Restore(rctx, s.cfg.Page, mask); err != nil {
		s.logger.Warn("screenshot: restore fixed elements partially failed", "error", err)
	}
}
