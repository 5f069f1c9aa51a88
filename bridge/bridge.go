// Package bridge is the request/response boundary between the capture
// session and the privileged background that owns the screen-capture
// primitive and the settings storage. Every call carries an id, an action
// and the sending tab; the caller suspends until the response arrives or the
// per-call timeout expires.
package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/hazyhaar/tobe/kit"
	"github.com/hazyhaar/tobe/screenshot"
)

// Actions understood by the background.
const (
	ActionCaptureVisibleTab    = "captureVisibleTab"
	ActionCaptureSelectionArea = "captureSelectionArea"
	ActionGetSettings          = "getSettings"
	ActionUpdateSettings       = "updateSettings"
)

var (
	// ErrTimeout is returned when no response arrives within the call timeout.
	ErrTimeout = errors.New("bridge: call timed out")
	// ErrUnknownAction is returned for actions without a handler.
	ErrUnknownAction = errors.New("bridge: unknown action")
	// ErrInvalidSender is returned for tab-scoped actions sent without a tab.
	ErrInvalidSender = errors.New("bridge: invalid tab data")
)

// Request is one message to the background.
type Request struct {
	ID      string          `json:"id"`
	Action  string          `json:"action"`
	TabID   string          `json:"tab_id,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Decode unmarshals the payload into v.
func (r *Request) Decode(v any) error {
	if len(r.Payload) == 0 {
		return fmt.Errorf("bridge: %s: empty payload", r.Action)
	}
	if err := json.Unmarshal(r.Payload, v); err != nil {
		return fmt.Errorf("bridge: %s: decode payload: %w", r.Action, err)
	}
	return nil
}

// Response is the background's answer. Data carries binary results
// (images); Payload carries JSON results.
type Response struct {
	ID      string          `json:"id"`
	Success bool            `json:"success"`
	Data    []byte          `json:"data,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
	Error   string          `json:"error,omitempty"`
	Code    string          `json:"code,omitempty"`
}

// RemoteError is a handler failure reported by the background.
type RemoteError struct {
	Action  string
	Code    string
	Message string
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("bridge: %s: %s", e.Action, e.Message)
}

// ErrorCode is the code the background attached to the failure.
func (e *RemoteError) ErrorCode() string { return e.Code }

// Is lets callers match the sentinels carried across the boundary.
func (e *RemoteError) Is(target error) bool {
	switch e.Code {
	case "unknown_action":
		return target == ErrUnknownAction
	case "invalid_sender":
		return target == ErrInvalidSender
	case screenshot.CodeBusy:
		return target == screenshot.ErrSessionActive
	case screenshot.CodePageTooLarge:
		return target == screenshot.ErrPageTooLarge
	}
	return false
}

type envelope struct {
	ctx   context.Context
	req   Request
	reply chan Response
}

// Background dispatches requests to registered handlers.
type Background struct {
	logger *slog.Logger
	mw     kit.Middleware

	mu       sync.RWMutex
	handlers map[string]kit.Endpoint
	coder    func(error) string

	in chan envelope
}

// NewBackground creates a dispatcher. mws wrap every handler; the first is
// the outermost.
func NewBackground(logger *slog.Logger, mws ...kit.Middleware) *Background {
	if logger == nil {
		logger = slog.Default()
	}
	return &Background{
		logger:   logger,
		mw:       kit.Chain(mws...),
		handlers: make(map[string]kit.Endpoint),
		in:       make(chan envelope),
	}
}

// Binary is a handler result carrying both an image and JSON metadata.
type Binary struct {
	Data []byte
	Meta any
}

// Handle registers the endpoint for action. The endpoint receives a
// *Request. A []byte result is sent as Data, a *Binary as Data plus
// Payload, anything else as JSON Payload.
func (b *Background) Handle(action string, ep kit.Endpoint) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[action] = b.mw(ep)
}

// SetErrorCoder sets the function that attaches a code to handler errors.
func (b *Background) SetErrorCoder(fn func(error) string) {
	b.mu.Lock()
	b.coder = fn
	b.mu.Unlock()
}

// Run serves requests until ctx is done, each in its own goroutine, and
// waits for in-flight handlers before returning.
func (b *Background) Run(ctx context.Context) error {
	var wg sync.WaitGroup
	defer wg.Wait()
	b.logger.Info("bridge: background started")
	for {
		select {
		case <-ctx.Done():
			b.logger.Info("bridge: background stopped")
			return ctx.Err()
		case env := <-b.in:
			wg.Add(1)
			go func() {
				defer wg.Done()
				env.reply <- b.serve(env.ctx, env.req)
			}()
		}
	}
}

func (b *Background) serve(ctx context.Context, req Request) Response {
	b.mu.RLock()
	ep, ok := b.handlers[req.Action]
	coder := b.coder
	b.mu.RUnlock()
	if !ok {
		return Response{ID: req.ID, Error: "Unknown action", Code: "unknown_action"}
	}

	ctx = kit.WithTransport(ctx, "bridge")
	ctx = kit.WithRequestID(ctx, req.ID)
	ctx = kit.WithTabID(ctx, req.TabID)

	out, err := safeCall(ctx, ep, &req)
	if err != nil {
		resp := Response{ID: req.ID, Error: err.Error()}
		switch {
		case errors.Is(err, ErrInvalidSender):
			resp.Code = "invalid_sender"
		case coder != nil:
			resp.Code = coder(err)
		}
		return resp
	}
	resp := Response{ID: req.ID, Success: true}
	switch v := out.(type) {
	case nil:
	case []byte:
		resp.Data = v
	case *Binary:
		resp.Data = v.Data
		if v.Meta != nil {
			data, err := json.Marshal(v.Meta)
			if err != nil {
				return Response{ID: req.ID, Error: fmt.Sprintf("marshal response: %v", err)}
			}
			resp.Payload = data
		}
	default:
		data, err := json.Marshal(v)
		if err != nil {
			return Response{ID: req.ID, Error: fmt.Sprintf("marshal response: %v", err)}
		}
		resp.Payload = data
	}
	return resp
}

func safeCall(ctx context.Context, ep kit.Endpoint, req *Request) (out any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("internal error: %v", r)
		}
	}()
	return ep(ctx, req)
}

// LoggingMiddleware logs every handled request.
func LoggingMiddleware(logger *slog.Logger) kit.Middleware {
	return func(next kit.Endpoint) kit.Endpoint {
		return func(ctx context.Context, req any) (any, error) {
			start := time.Now()
			resp, err := next(ctx, req)
			attrs := []any{"request_id", kit.GetRequestID(ctx), "tab", kit.GetTabID(ctx), "duration", time.Since(start)}
			if r, ok := req.(*Request); ok {
				attrs = append(attrs, "action", r.Action)
			}
			if err != nil {
				logger.Warn("bridge: handler failed", append(attrs, "error", err)...)
			} else {
				logger.Debug("bridge: handled", attrs...)
			}
			return resp, err
		}
	}
}

// RequireTab rejects requests that were not sent from a tab.
func RequireTab(next kit.Endpoint) kit.Endpoint {
	return func(ctx context.Context, req any) (any, error) {
		if r, ok := req.(*Request); !ok || r.TabID == "" {
			return nil, ErrInvalidSender
		}
		return next(ctx, req)
	}
}
