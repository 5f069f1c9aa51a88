package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hazyhaar/tobe/idgen"
	"github.com/hazyhaar/tobe/screenshot"
)

// DefaultTimeout bounds one round trip.
const DefaultTimeout = 10 * time.Second

// Client sends requests to a Background.
type Client struct {
	bg      *Background
	timeout time.Duration
	newID   idgen.Generator
	logger  *slog.Logger
}

// NewClient creates a client of bg. timeout <= 0 selects DefaultTimeout.
func NewClient(bg *Background, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{bg: bg, timeout: timeout, newID: idgen.Request, logger: bg.logger}
}

// Call sends one request and waits for its response. A non-success response
// is returned as a *RemoteError. When the timeout expires first, the error
// is ErrTimeout; when ctx is done first, it is ctx's error.
func (c *Client) Call(ctx context.Context, action, tabID string, payload any) (*Response, error) {
	req := Request{ID: c.newID(), Action: action, TabID: tabID}
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("bridge: %s: marshal payload: %w", action, err)
		}
		req.Payload = data
	}

	cctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	env := envelope{ctx: cctx, req: req, reply: make(chan Response, 1)}
	select {
	case c.bg.in <- env:
	case <-cctx.Done():
		return nil, c.doneErr(ctx, action)
	}

	select {
	case resp := <-env.reply:
		if !resp.Success {
			return &resp, &RemoteError{Action: action, Code: resp.Code, Message: resp.Error}
		}
		return &resp, nil
	case <-cctx.Done():
		return nil, c.doneErr(ctx, action)
	}
}

func (c *Client) doneErr(parent context.Context, action string) error {
	if err := parent.Err(); err != nil {
		return err
	}
	c.logger.Warn("bridge: call timed out", "action", action, "timeout", c.timeout)
	return fmt.Errorf("%w: %s after %s", ErrTimeout, action, c.timeout)
}

// CaptureVisible asks the background for the visible viewport of tabID.
func (c *Client) CaptureVisible(ctx context.Context, tabID string) ([]byte, error) {
	resp, err := c.Call(ctx, ActionCaptureVisibleTab, tabID, nil)
	if err != nil {
		return nil, err
	}
	return resp.Data, nil
}

// Primitive binds CaptureVisible to one tab.
func (c *Client) Primitive(tabID string) screenshot.CaptureFunc {
	return func(ctx context.Context) ([]byte, error) {
		return c.CaptureVisible(ctx, tabID)
	}
}

// SelectionResult is the captureSelectionArea response.
type SelectionResult struct {
	PNG  []byte
	Meta screenshot.Meta
}

// CaptureSelection asks the background to capture and crop r.
func (c *Client) CaptureSelection(ctx context.Context, tabID string, r screenshot.Rect) (*SelectionResult, error) {
	resp, err := c.Call(ctx, ActionCaptureSelectionArea, tabID, r)
	if err != nil {
		return nil, err
	}
	out := &SelectionResult{PNG: resp.Data}
	if len(resp.Payload) > 0 {
		if err := json.Unmarshal(resp.Payload, &out.Meta); err != nil {
			return nil, fmt.Errorf("bridge: decode selection meta: %w", err)
		}
	}
	return out, nil
}

// GetSettings decodes the stored settings into out.
func (c *Client) GetSettings(ctx context.Context, out any) error {
	resp, err := c.Call(ctx, ActionGetSettings, "", nil)
	if err != nil {
		return err
	}
	if len(resp.Payload) == 0 {
		return errors.New("bridge: getSettings: empty response")
	}
	return json.Unmarshal(resp.Payload, out)
}

// UpdateSettings replaces the stored settings.
func (c *Client) UpdateSettings(ctx context.Context, settings any) error {
	_, err := c.Call(ctx, ActionUpdateSettings, "", settings)
	return err
}
