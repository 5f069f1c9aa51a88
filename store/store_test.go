package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/hazyhaar/tobe/dbopen"
)

func testStore(t *testing.T) *Store {
	t.Helper()
	db := dbopen.OpenMemory(t)
	if _, err := db.Exec(Schema); err != nil {
		t.Fatalf("apply schema: %v", err)
	}
	return &Store{DB: db}
}

func TestOpen_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "tobe.db")
	s, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()
	if _, err := s.GetSettings(context.Background()); err != nil {
		t.Fatal(err)
	}
}

func TestSettings_DefaultsAndUpdate(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	got, err := s.GetSettings(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if got != DefaultSettings() {
		t.Fatalf("defaults: got %+v", got)
	}

	if err := s.PutSettings(ctx, Settings{Theme: "dark", AutoFormat: true}); err != nil {
		t.Fatal(err)
	}
	got, err = s.GetSettings(ctx)
	if err != nil {
		t.Fatal(err)
	}
	want := Settings{Theme: "dark", AutoFormat: true, ScreenshotFormat: "png", TimestampFormat: "local"}
	if got != want {
		t.Fatalf("updated: got %+v, want %+v", got, want)
	}
}

func TestScreenshots_LastByKind(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	for i, kind := range []string{KindVisible, KindFullPage, KindSelection, KindVisible} {
		sh := &Screenshot{Kind: kind, Width: 10 + i, Height: 20, PNG: []byte{byte(i)}, CreatedAt: int64(1000 + i)}
		if err := s.InsertScreenshot(ctx, sh); err != nil {
			t.Fatalf("insert %d: %v", i, err)
		}
		if sh.ID == "" {
			t.Fatal("id not assigned")
		}
	}

	last, err := s.LastScreenshot(ctx, "")
	if err != nil {
		t.Fatal(err)
	}
	if last.Kind != KindVisible || last.Width != 13 {
		t.Fatalf("last: got %+v", last)
	}
	full, err := s.LastScreenshot(ctx, KindFullPage)
	if err != nil {
		t.Fatal(err)
	}
	if full.Width != 11 || len(full.PNG) != 1 || full.PNG[0] != 1 {
		t.Fatalf("fullpage: got %+v", full)
	}

	list, err := s.ListScreenshots(ctx, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 2 || list[0].Width != 13 || list[0].PNG != nil {
		t.Fatalf("list: got %+v", list)
	}

	n, err := s.PruneScreenshots(ctx, 1)
	if err != nil {
		t.Fatal(err)
	}
	if n != 3 {
		t.Fatalf("pruned: got %d, want 3", n)
	}
	if sh, _ := s.LastScreenshot(ctx, KindFullPage); sh != nil {
		t.Fatalf("fullpage survived prune: %+v", sh)
	}
}

func TestScreenshots_NoneAndBadKind(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	sh, err := s.LastScreenshot(ctx, KindSelection)
	if err != nil || sh != nil {
		t.Fatalf("empty store: got %v, %v", sh, err)
	}
	if err := s.InsertScreenshot(ctx, &Screenshot{Kind: "thumbnail", PNG: []byte{1}}); err == nil {
		t.Fatal("unknown kind: expected constraint error")
	}
}

func TestPendingJSON_ConsumedOnceWhileFresh(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	now := time.UnixMilli(1_700_000_000_000)

	p, err := s.PutPendingJSON(ctx, `{"a":1}`, now)
	if err != nil {
		t.Fatal(err)
	}
	if !p.IsValidJSON {
		t.Fatal("valid JSON flagged invalid")
	}

	got, err := s.TakePendingJSON(ctx, now.Add(29*time.Second))
	if err != nil {
		t.Fatal(err)
	}
	if got == nil || got.Text != `{"a":1}` || !got.IsValidJSON {
		t.Fatalf("take: got %+v", got)
	}
	if again, _ := s.TakePendingJSON(ctx, now.Add(29*time.Second)); again != nil {
		t.Fatalf("second take: got %+v", again)
	}
}

func TestPendingJSON_Stale(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	now := time.UnixMilli(1_700_000_000_000)

	if _, err := s.PutPendingJSON(ctx, "{not json", now); err != nil {
		t.Fatal(err)
	}
	got, err := s.TakePendingJSON(ctx, now.Add(PendingMaxAge))
	if err != nil {
		t.Fatal(err)
	}
	if got != nil {
		t.Fatalf("stale selection returned: %+v", got)
	}

	p, _ := s.PutPendingJSON(ctx, "{not json", now)
	if p.IsValidJSON {
		t.Fatal("invalid JSON flagged valid")
	}
}

func TestTreeState(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	if got, err := s.LoadTreeState(ctx, "doc"); err != nil || got != nil {
		t.Fatalf("missing: got %q, %v", got, err)
	}
	if err := s.SaveTreeState(ctx, "doc", []byte(`{"isExpanded":false}`)); err != nil {
		t.Fatal(err)
	}
	if err := s.SaveTreeState(ctx, "doc", []byte(`{"isExpanded":true}`)); err != nil {
		t.Fatal(err)
	}
	got, err := s.LoadTreeState(ctx, "doc")
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != `{"isExpanded":true}` {
		t.Fatalf("got %q", got)
	}
}
