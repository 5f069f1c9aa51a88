// Package export writes captured screenshots out of the toolkit: to files
// under a download directory, as PNG data URLs for the clipboard, and as
// single-page PDF documents.
package export

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"

	"github.com/hazyhaar/tobe/horosafe"
)

// ErrDataURL is returned for malformed data URLs.
var ErrDataURL = errors.New("export: invalid data URL")

const pngDataPrefix = "data:image/png;base64,"

// Filename names a download of kind taken at t. Full-page captures get
// their own prefix; visible and selection captures share the screenshot one.
func Filename(kind string, t time.Time, ext string) string {
	if ext == "" {
		ext = "png"
	}
	prefix := "tobe-screenshot"
	if kind == "fullpage" {
		prefix = "tobe-fullpage"
	}
	return fmt.Sprintf("%s-%d.%s", prefix, t.UnixMilli(), strings.TrimPrefix(ext, "."))
}

// DataURL encodes a PNG as a data URL.
func DataURL(png []byte) string {
	return pngDataPrefix + base64.StdEncoding.EncodeToString(png)
}

// DecodeDataURL returns the bytes and media type of a base64 data URL.
func DecodeDataURL(s string) ([]byte, string, error) {
	rest, ok := strings.CutPrefix(strings.TrimSpace(s), "data:")
	if !ok {
		return nil, "", ErrDataURL
	}
	meta, payload, ok := strings.Cut(rest, ",")
	if !ok {
		return nil, "", ErrDataURL
	}
	mediaType, isBase64 := strings.CutSuffix(meta, ";base64")
	if !isBase64 {
		return nil, "", fmt.Errorf("%w: not base64", ErrDataURL)
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", ErrDataURL, err)
	}
	if mediaType == "" {
		mediaType = "text/plain"
	}
	return data, mediaType, nil
}

// PDF wraps one image into a single-page PDF document.
func PDF(img []byte) ([]byte, error) {
	if len(img) == 0 {
		return nil, errors.New("export: pdf: empty image")
	}
	var out bytes.Buffer
	imp := pdfcpu.DefaultImportConfig()
	conf := model.NewDefaultConfiguration()
	if err := api.ImportImages(nil, &out, []io.Reader{bytes.NewReader(img)}, imp, conf); err != nil {
		return nil, fmt.Errorf("export: pdf: %w", err)
	}
	return out.Bytes(), nil
}

// Exporter saves downloads under Dir.
type Exporter struct {
	Dir    string
	Logger *slog.Logger
	now    func() time.Time
}

// New creates an exporter writing under dir.
func New(dir string, logger *slog.Logger) *Exporter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Exporter{Dir: dir, Logger: logger, now: time.Now}
}

// Save writes data as name under the download directory and returns the
// written path. Names escaping the directory are rejected.
func (e *Exporter) Save(name string, data []byte) (string, error) {
	path, err := horosafe.SafePath(e.Dir, name)
	if err != nil {
		return "", fmt.Errorf("export: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("export: mkdir: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("export: write: %w", err)
	}
	e.Logger.Info("export: saved", "path", path, "bytes", len(data))
	return path, nil
}

// Download saves a PNG of kind under its generated file name.
func (e *Exporter) Download(kind string, png []byte) (string, error) {
	return e.Save(Filename(kind, e.now(), "png"), png)
}

// DownloadPDF saves a PNG of kind converted to PDF.
func (e *Exporter) DownloadPDF(kind string, png []byte) (string, error) {
	doc, err := PDF(png)
	if err != nil {
		return "", err
	}
	return e.Save(Filename(kind, e.now(), "pdf"), doc)
}
