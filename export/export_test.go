package export

import (
	"bytes"
	"errors"
	"image/color"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"

	"github.com/hazyhaar/tobe/horosafe"
	"github.com/hazyhaar/tobe/internal/pagetest"
)

func TestFilename(t *testing.T) {
	at := time.UnixMilli(1700000000123)
	tests := []struct {
		kind, ext, want string
	}{
		{"fullpage", "png", "tobe-fullpage-1700000000123.png"},
		{"visible", "", "tobe-screenshot-1700000000123.png"},
		{"selection", ".png", "tobe-screenshot-1700000000123.png"},
		{"fullpage", "pdf", "tobe-fullpage-1700000000123.pdf"},
	}
	for _, tt := range tests {
		if got := Filename(tt.kind, at, tt.ext); got != tt.want {
			t.Errorf("Filename(%q, %q): got %q, want %q", tt.kind, tt.ext, got, tt.want)
		}
	}
}

func TestDataURL_RoundTrip(t *testing.T) {
	png := pagetest.SolidPNG(4, 3, color.RGBA{R: 10, A: 255})
	u := DataURL(png)
	if u[:len(pngDataPrefix)] != pngDataPrefix {
		t.Fatalf("prefix: got %q", u[:30])
	}
	data, mt, err := DecodeDataURL(u)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if mt != "image/png" || !bytes.Equal(data, png) {
		t.Fatalf("decode: media type %q, equal %v", mt, bytes.Equal(data, png))
	}
}

func TestDecodeDataURL_Invalid(t *testing.T) {
	for _, in := range []string{"", "image/png;base64,AAAA", "data:image/png;base64", "data:text/plain,hello", "data:image/png;base64,@@@"} {
		if _, _, err := DecodeDataURL(in); !errors.Is(err, ErrDataURL) {
			t.Errorf("DecodeDataURL(%q): got %v, want ErrDataURL", in, err)
		}
	}
}

func TestPDF(t *testing.T) {
	doc, err := PDF(pagetest.SolidPNG(40, 120, color.RGBA{B: 200, A: 255}))
	if err != nil {
		t.Fatalf("PDF: %v", err)
	}
	if !bytes.HasPrefix(doc, []byte("%PDF-")) {
		t.Fatalf("header: got %q", doc[:8])
	}
	n, err := api.PageCount(bytes.NewReader(doc), model.NewDefaultConfiguration())
	if err != nil {
		t.Fatalf("page count: %v", err)
	}
	if n != 1 {
		t.Fatalf("pages: got %d, want 1", n)
	}
	if _, err := PDF(nil); err == nil {
		t.Fatal("empty image: want error")
	}
}

func TestExporter_Download(t *testing.T) {
	dir := t.TempDir()
	e := New(dir, nil)
	e.now = func() time.Time { return time.UnixMilli(42) }

	png := pagetest.SolidPNG(2, 2, color.RGBA{G: 1, A: 255})
	path, err := e.Download("fullpage", png)
	if err != nil {
		t.Fatalf("download: %v", err)
	}
	if want := filepath.Join(dir, "tobe-fullpage-42.png"); path != want {
		t.Fatalf("path: got %q, want %q", path, want)
	}
	got, err := os.ReadFile(path)
	if err != nil || !bytes.Equal(got, png) {
		t.Fatalf("read back: %v", err)
	}

	pdfPath, err := e.DownloadPDF("visible", png)
	if err != nil {
		t.Fatalf("download pdf: %v", err)
	}
	if filepath.Base(pdfPath) != "tobe-screenshot-42.pdf" {
		t.Fatalf("pdf path: got %q", pdfPath)
	}
}

func TestExporter_SaveTraversal(t *testing.T) {
	e := New(t.TempDir(), nil)
	if _, err := e.Save("../escape.png", []byte("x")); !errors.Is(err, horosafe.ErrPathTraversal) {
		t.Fatalf("got %v, want ErrPathTraversal", err)
	}
}
