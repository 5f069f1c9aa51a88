package extension

import (
	"context"
	"fmt"

	"github.com/hazyhaar/tobe/export"
	"github.com/hazyhaar/tobe/kit"
	"github.com/hazyhaar/tobe/screenshot"
	"github.com/hazyhaar/tobe/store"
)

// CaptureFullPage opens pageURL and captures the whole page. The result is
// stored as the last full-page screenshot.
func (e *Extension) CaptureFullPage(ctx context.Context, pageURL string) (*store.Screenshot, error) {
	var shot *store.Screenshot
	err := e.withTab(ctx, pageURL, func(tabID string, tab Tab) error {
		res, err := e.shots.FullPage(ctx, screenshot.Target{
			Page:    tab,
			Capture: e.client.Primitive(tabID),
			OnState: func(tr screenshot.Transition) {
				e.logger.Debug("extension: capture state", "tab", tabID, "state", tr.String())
			},
		})
		if err != nil {
			return err
		}
		shot, err = e.save(ctx, store.KindFullPage, pageURL, res.PNG, res.Meta)
		return err
	})
	if err != nil {
		e.logFailure(ctx, "fullpage", pageURL, err)
		return nil, err
	}
	return shot, nil
}

// CaptureVisible opens pageURL and captures its first viewport.
func (e *Extension) CaptureVisible(ctx context.Context, pageURL string) (*store.Screenshot, error) {
	var shot *store.Screenshot
	err := e.withTab(ctx, pageURL, func(tabID string, tab Tab) error {
		res, err := e.shots.Visible(ctx, screenshot.Target{Page: tab, Capture: e.client.Primitive(tabID)})
		if err != nil {
			return err
		}
		shot, err = e.save(ctx, store.KindVisible, pageURL, res.PNG, res.Meta)
		return err
	})
	if err != nil {
		e.logFailure(ctx, "visible", pageURL, err)
		return nil, err
	}
	return shot, nil
}

// CaptureSelection opens pageURL and captures the rectangle r, given in CSS
// pixels of the viewport, through the background's selection handler.
func (e *Extension) CaptureSelection(ctx context.Context, pageURL string, r screenshot.Rect) (*store.Screenshot, error) {
	if err := r.Validate(); err != nil {
		return nil, err
	}
	var shot *store.Screenshot
	err := e.withTab(ctx, pageURL, func(tabID string, _ Tab) error {
		sel, err := e.client.CaptureSelection(ctx, tabID, r)
		if err != nil {
			return err
		}
		shot, err = e.save(ctx, store.KindSelection, pageURL, sel.PNG, sel.Meta)
		return err
	})
	if err != nil {
		e.logFailure(ctx, "selection", pageURL, err)
		return nil, err
	}
	return shot, nil
}

func (e *Extension) save(ctx context.Context, kind, pageURL string, png []byte, meta screenshot.Meta) (*store.Screenshot, error) {
	shot := &store.Screenshot{
		Kind:     kind,
		PageURL:  pageURL,
		Width:    meta.Width,
		Height:   meta.Height,
		Segments: meta.Segments,
		PNG:      png,
	}
	if err := e.store.InsertScreenshot(ctx, shot); err != nil {
		return nil, fmt.Errorf("extension: store screenshot: %w", err)
	}
	if n, err := e.store.PruneScreenshots(ctx, e.cfg.Store.Keep); err != nil {
		e.logger.Warn("extension: prune screenshots", "error", err)
	} else if n > 0 {
		e.logger.Debug("extension: pruned screenshots", "deleted", n)
	}
	return shot, nil
}

func (e *Extension) logFailure(ctx context.Context, kind, pageURL string, err error) {
	e.logger.Warn("extension: capture failed",
		"kind", kind, "url", pageURL, "code", screenshot.Code(err), "error", err,
		"transport", kit.GetTransport(ctx), "request_id", kit.GetRequestID(ctx), "session", kit.GetSessionID(ctx))
}

// LastScreenshot returns the most recent screenshot of kind ("" for any),
// or nil when there is none.
func (e *Extension) LastScreenshot(ctx context.Context, kind string) (*store.Screenshot, error) {
	return e.store.LastScreenshot(ctx, kind)
}

// Screenshots lists stored screenshots, newest first, without image data.
func (e *Extension) Screenshots(ctx context.Context, limit int) ([]*store.Screenshot, error) {
	return e.store.ListScreenshots(ctx, limit)
}

// Download writes shot under the export directory, as PDF when asPDF.
func (e *Extension) Download(shot *store.Screenshot, asPDF bool) (string, error) {
	if asPDF {
		return e.exporter.DownloadPDF(shot.Kind, shot.PNG)
	}
	return e.exporter.Download(shot.Kind, shot.PNG)
}

// DataURL is the clipboard form of shot.
func DataURL(shot *store.Screenshot) string {
	return export.DataURL(shot.PNG)
}
