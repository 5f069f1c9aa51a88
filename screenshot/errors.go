package screenshot

import (
	"context"
	"errors"
	"fmt"

	"github.com/hazyhaar/tobe/horosafe"
)

var (
	// ErrPageTooLarge matches every *PageTooLargeError.
	ErrPageTooLarge = errors.New("screenshot: page too large")
	// ErrInvalidGeometry is returned for non-positive page dimensions.
	ErrInvalidGeometry = errors.New("screenshot: invalid page geometry")
	// ErrSessionActive rejects a capture while another one is running.
	ErrSessionActive = errors.New("screenshot: a capture session is already active")
	// ErrMaskActive rejects a second Hide before the first is restored.
	ErrMaskActive = errors.New("screenshot: fixed elements are already hidden")
	// ErrEmptyCapture is the attempt error when the primitive returns no data.
	ErrEmptyCapture = errors.New("screenshot: capture returned no data")
	// ErrInvalidRect is returned for unusable selection rectangles.
	ErrInvalidRect = errors.New("screenshot: invalid selection rectangle")
)

// PageTooLargeError is returned by Plan before any capture happens.
type PageTooLargeError struct {
	Width, Height int
	Limit         int64
}

func (e *PageTooLargeError) Error() string {
	return fmt.Sprintf("screenshot: page %dx%d (%d px) exceeds %d px",
		e.Width, e.Height, int64(e.Width)*int64(e.Height), e.Limit)
}

func (e *PageTooLargeError) Is(target error) bool { return target == ErrPageTooLarge }

// CaptureError is returned when a segment's capture attempts are exhausted.
type CaptureError struct {
	Segment  int
	Attempts int
	Err      error
}

func (e *CaptureError) Error() string {
	return fmt.Sprintf("screenshot: capture segment %d failed after %d attempts: %v", e.Segment, e.Attempts, e.Err)
}

func (e *CaptureError) Unwrap() error { return e.Err }

// StitchError is returned when a segment image cannot be decoded or the
// canvas cannot be encoded (Segment is -1).
type StitchError struct {
	Segment int
	Err     error
}

func (e *StitchError) Error() string {
	if e.Segment < 0 {
		return fmt.Sprintf("screenshot: encode composite: %v", e.Err)
	}
	return fmt.Sprintf("screenshot: stitch segment %d: %v", e.Segment, e.Err)
}

func (e *StitchError) Unwrap() error { return e.Err }

// MaskError is a non-fatal failure to hide or restore one element.
type MaskError struct {
	Op  string // scan | hide | restore
	Ref string
	Err error
}

func (e *MaskError) Error() string {
	if e.Ref == "" {
		return fmt.Sprintf("screenshot: %s fixed elements: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("screenshot: %s element %s: %v", e.Op, e.Ref, e.Err)
}

func (e *MaskError) Unwrap() error { return e.Err }

// Error codes returned by Code.
const (
	CodePageTooLarge  = "page_too_large"
	CodeCaptureFailed = "capture_failed"
	CodeStitchFailed  = "stitch_failed"
	CodeCanceled      = "canceled"
	CodeBusy          = "busy"
	CodeInvalidPage   = "invalid_page"
	CodeInternal      = "internal"
)

// coder is implemented by errors that carry a code from across a process
// or transport boundary.
type coder interface{ ErrorCode() string }

// Code maps an error to a stable machine-readable code. nil maps to "".
func Code(err error) string {
	var (
		tooLarge *PageTooLargeError
		capErr   *CaptureError
		stitch   *StitchError
		remote   coder
	)
	switch {
	case err == nil:
		return ""
	case errors.As(err, &tooLarge), errors.Is(err, ErrPageTooLarge):
		return CodePageTooLarge
	case errors.Is(err, ErrSessionActive):
		return CodeBusy
	case errors.As(err, &capErr):
		return CodeCaptureFailed
	case errors.As(err, &stitch):
		return CodeStitchFailed
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return CodeCanceled
	case errors.Is(err, horosafe.ErrUnsafeScheme), errors.Is(err, horosafe.ErrSSRF),
		errors.Is(err, ErrInvalidGeometry), errors.Is(err, ErrInvalidRect):
		return CodeInvalidPage
	case errors.As(err, &remote) && remote.ErrorCode() != "":
		return remote.ErrorCode()
	default:
		return CodeInternal
	}
}

// UserMessage is the text shown to the user for a failed capture. It tells
// them whether to retry, shrink the page or fall back to another mode.
func UserMessage(err error) string {
	var capErr *CaptureError
	switch Code(err) {
	case "":
		return ""
	case CodePageTooLarge:
		return "Page too large for full capture. Consider using selection mode."
	case CodeCaptureFailed:
		if errors.As(err, &capErr) && capErr.Segment >= 0 {
			return fmt.Sprintf("Failed to capture segment %d after %d attempts. Try again or use visible capture.", capErr.Segment+1, capErr.Attempts)
		}
		return "Failed to capture the page. Try again or use visible capture."
	case CodeStitchFailed:
		return "Failed to create full page screenshot. Try again or use visible capture."
	case CodeCanceled:
		return "Capture canceled."
	case CodeBusy:
		return "A capture is already in progress. Wait for it to finish."
	case CodeInvalidPage:
		if errors.Is(err, ErrInvalidRect) {
			return "Invalid selection data."
		}
		return "Capture is not available on this page type."
	default:
		return "Failed to capture: " + err.Error()
	}
}
