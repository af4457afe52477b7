package ingest

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/joseph-ayodele/statements-tracker/constants"
	"github.com/joseph-ayodele/statements-tracker/internal/blob"
)

func write(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestDirectoryStagesAllowedFiles(t *testing.T) {
	root := t.TempDir()
	write(t, filepath.Join(root, "bs.csv"), "Total assets,100\n")
	write(t, filepath.Join(root, "nested", "copy.csv"), "Total assets,100\n")
	write(t, filepath.Join(root, "nested", "is.txt"), "Revenue 10\n")
	write(t, filepath.Join(root, ".cache", "old.pdf"), "%PDF-1.4")
	write(t, filepath.Join(root, "notes.docx"), "ignored")

	store := blob.NewMemoryStore()
	st := NewStager(store, Options{SkipHidden: true}, nil)
	results, stats, err := st.Directory(context.Background(), root)
	if err != nil {
		t.Fatal(err)
	}
	if stats.Matched != 3 || stats.Succeeded != 3 || stats.Deduplicated != 1 || stats.Failed != 0 {
		t.Errorf("stats = %+v", stats)
	}
	reqs := Requests(results)
	if len(reqs) != 2 {
		t.Fatalf("requests = %+v", reqs)
	}
	for _, r := range reqs {
		if !strings.HasPrefix(r.DocumentKey, "sha256/") || !store.Exists(r.DocumentKey) {
			t.Errorf("request %+v not staged", r)
		}
		doc, err := store.Get(context.Background(), r.DocumentKey)
		if err != nil {
			t.Fatal(err)
		}
		if doc.ContentType != r.ContentType {
			t.Errorf("content type %q, request says %q", doc.ContentType, r.ContentType)
		}
	}
}

func TestStagePathRejects(t *testing.T) {
	dir := t.TempDir()
	write(t, filepath.Join(dir, "scan.png"), "png")
	write(t, filepath.Join(dir, "big.txt"), strings.Repeat("x", 64))

	st := NewStager(blob.NewMemoryStore(), Options{MaxBytes: 32}, nil)
	for _, name := range []string{"scan.png", "big.txt", "missing.pdf"} {
		if _, err := st.StagePath(context.Background(), filepath.Join(dir, name)); err == nil {
			t.Errorf("%s: expected error", name)
		}
	}
}

func TestStagingKey(t *testing.T) {
	if got := StagingKey("abc", ".PDF"); got != "sha256/abc.pdf" {
		t.Errorf("StagingKey = %q", got)
	}
	if !AllowedExt(".XLSX") || AllowedExt("png") {
		t.Error("AllowedExt mismatch")
	}
	if constants.ContentTypeForExt("csv") != constants.ContentTypeCSV {
		t.Error("csv content type")
	}
}

func TestWatcherEmitsNewFiles(t *testing.T) {
	root := t.TempDir()
	write(t, filepath.Join(root, "existing.csv"), "a,1\n")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	events, _, err := StartWatcher(ctx, WatchConfig{Roots: []string{root}, InitialScan: true, Debounce: 20 * time.Millisecond})
	if err != nil {
		t.Fatal(err)
	}

	want := map[string]bool{
		filepath.Join(root, "existing.csv"): false,
		filepath.Join(root, "new.txt"):      false,
	}
	got := 0
	deadline := time.After(5 * time.Second)
	wrote := false
	for got < len(want) {
		select {
		case p, ok := <-events:
			if !ok {
				t.Fatal("events closed early")
			}
			if seen, tracked := want[p]; tracked && !seen {
				want[p] = true
				got++
			}
			if !wrote {
				wrote = true
				write(t, filepath.Join(root, "ignored.png"), "x")
				write(t, filepath.Join(root, "new.txt"), "Revenue 1\n")
			}
		case <-deadline:
			t.Fatalf("timed out, seen %v", want)
		}
	}

	cancel()
	for range events {
	}
}

func TestStartWatcherNeedsRoots(t *testing.T) {
	if _, _, err := StartWatcher(context.Background(), WatchConfig{}); err == nil {
		t.Fatal("expected error")
	}
}
