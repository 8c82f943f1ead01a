package ingest

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestReadDirectory(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "b.pdf"), "%PDF-b")
	writeFile(t, filepath.Join(root, "a.PDF"), "%PDF-a")
	writeFile(t, filepath.Join(root, "copy-of-a.pdf"), "%PDF-a")
	writeFile(t, filepath.Join(root, "notes.txt"), "skip")
	writeFile(t, filepath.Join(root, ".hidden.pdf"), "%PDF-h")
	writeFile(t, filepath.Join(root, ".cache", "x.pdf"), "%PDF-x")
	writeFile(t, filepath.Join(root, "may", "c.pdf"), "%PDF-c")

	inputs, results, stats, err := ReadDirectory(context.Background(), root, true, nil)
	if err != nil {
		t.Fatalf("ReadDirectory() error = %v", err)
	}

	var names []string
	for _, in := range inputs {
		names = append(names, in.Name)
	}
	want := []string{"a.PDF", "b.pdf", "may/c.pdf"}
	if len(names) != len(want) {
		t.Fatalf("names = %v, want %v", names, want)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Errorf("names[%d] = %q, want %q", i, names[i], want[i])
		}
	}
	if inputs[0].Size != 6 || len(inputs[0].Hash) != 64 || string(inputs[0].Data) != "%PDF-a" {
		t.Errorf("inputs[0] = %+v", inputs[0])
	}

	if stats.Matched != 4 || stats.Succeeded != 4 || stats.Deduplicated != 1 || stats.Failed != 0 {
		t.Errorf("stats = %+v", stats)
	}
	if stats.Bytes != 18 {
		t.Errorf("stats.Bytes = %d, want 18", stats.Bytes)
	}
	dups := 0
	for _, r := range results {
		if r.Deduplicated {
			dups++
			if r.Name != "copy-of-a.pdf" {
				t.Errorf("deduplicated = %q, want copy-of-a.pdf", r.Name)
			}
		}
	}
	if dups != 1 {
		t.Errorf("deduplicated results = %d, want 1", dups)
	}
}

func TestReadDirectory_IncludesHidden(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, ".hidden.pdf"), "%PDF-h")

	inputs, _, _, err := ReadDirectory(context.Background(), root, false, nil)
	if err != nil {
		t.Fatalf("ReadDirectory() error = %v", err)
	}
	if len(inputs) != 1 {
		t.Errorf("len(inputs) = %d, want 1", len(inputs))
	}
}

func TestReadDirectory_Errors(t *testing.T) {
	if _, _, _, err := ReadDirectory(context.Background(), " ", true, nil); err == nil {
		t.Error("ReadDirectory(blank) error = nil")
	}
	if _, _, _, err := ReadDirectory(context.Background(), filepath.Join(t.TempDir(), "missing"), true, nil); err != nil {
		t.Errorf("ReadDirectory(missing) error = %v, want walk error recorded per path", err)
	}
	if _, err := ReadFile("invoice.txt"); err == nil {
		t.Error("ReadFile(.txt) error = nil")
	}
}

func TestIsHidden(t *testing.T) {
	tests := []struct {
		path string
		want bool
	}{
		{".git", true},
		{"dir/.DS_Store", true},
		{"invoice.pdf", false},
		{".", false},
	}
	for _, tt := range tests {
		if got := IsHidden(tt.path); got != tt.want {
			t.Errorf("IsHidden(%q) = %v, want %v", tt.path, got, tt.want)
		}
	}
}

func TestWatch(t *testing.T) {
	root := t.TempDir()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	events, _, err := Watch(ctx, WatchConfig{Roots: []string{root}, SkipHidden: true, Debounce: 50 * time.Millisecond})
	if err != nil {
		t.Fatalf("Watch() error = %v", err)
	}

	writeFile(t, filepath.Join(root, "notes.txt"), "ignored")
	writeFile(t, filepath.Join(root, "new.pdf"), "%PDF-1")

	select {
	case batch := <-events:
		if len(batch) != 1 || filepath.Base(batch[0]) != "new.pdf" {
			t.Errorf("batch = %v, want [new.pdf]", batch)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("no watch event")
	}

	cancel()
	for range events {
	}
}

func TestWatch_NoRoots(t *testing.T) {
	if _, _, err := Watch(context.Background(), WatchConfig{}); err == nil {
		t.Error("Watch() without roots error = nil")
	}
}
