package extension

import (
	"context"

	"github.com/hazyhaar/tobe/bridge"
	"github.com/hazyhaar/tobe/screenshot"
	"github.com/hazyhaar/tobe/store"
)

func (e *Extension) registerHandlers() {
	e.bg.Handle(bridge.ActionCaptureVisibleTab, bridge.RequireTab(e.handleCaptureVisibleTab))
	e.bg.Handle(bridge.ActionCaptureSelectionArea, bridge.RequireTab(e.handleCaptureSelectionArea))
	e.bg.Handle(bridge.ActionGetSettings, e.handleGetSettings)
	e.bg.Handle(bridge.ActionUpdateSettings, e.handleUpdateSettings)
}

func (e *Extension) handleCaptureVisibleTab(ctx context.Context, req any) (any, error) {
	tab, err := e.tab(req.(*bridge.Request).TabID)
	if err != nil {
		return nil, err
	}
	return tab.CaptureViewport(ctx)
}

func (e *Extension) handleCaptureSelectionArea(ctx context.Context, req any) (any, error) {
	r := req.(*bridge.Request)
	var rect screenshot.Rect
	if err := r.Decode(&rect); err != nil {
		return nil, screenshot.ErrInvalidRect
	}
	tab, err := e.tab(r.TabID)
	if err != nil {
		return nil, err
	}
	res, err := e.shots.Selection(ctx, screenshot.Target{Page: tab, Capture: tab.CaptureViewport}, rect)
	if err != nil {
		return nil, err
	}
	return &bridge.Binary{Data: res.PNG, Meta: res.Meta}, nil
}

func (e *Extension) handleGetSettings(ctx context.Context, _ any) (any, error) {
	return e.store.GetSettings(ctx)
}

func (e *Extension) handleUpdateSettings(ctx context.Context, req any) (any, error) {
	var s store.Settings
	if err := req.(*bridge.Request).Decode(&s); err != nil {
		return nil, err
	}
	if err := e.store.PutSettings(ctx, s); err != nil {
		return nil, err
	}
	return e.store.GetSettings(ctx)
}
