package assetfs

import (
	"context"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/spf13/afero"

	"github.com/yungbote/studyport-backend/internal/domain/transfer"
	"github.com/yungbote/studyport-backend/internal/platform/logger"
)

func newOSStore(t *testing.T) (*Store, string) {
	t.Helper()
	base := t.TempDir()
	s, err := NewStore(afero.NewOsFs(), filepath.Join(base, "assets"), 2, logger.Nop())
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	return s, base
}

func writeTree(t *testing.T, fsys afero.Fs, root string, files map[string]string) {
	t.Helper()
	for rel, body := range files {
		p := filepath.Join(root, filepath.FromSlash(rel))
		if err := fsys.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			t.Fatalf("mkdir: %v", err)
		}
		if err := afero.WriteFile(fsys, p, []byte(body), 0o644); err != nil {
			t.Fatalf("write %s: %v", rel, err)
		}
	}
}

func readFile(t *testing.T, fsys afero.Fs, p string) string {
	t.Helper()
	b, err := afero.ReadFile(fsys, p)
	if err != nil {
		t.Fatalf("read %s: %v", p, err)
	}
	return string(b)
}

func TestCopyTreeMemFs(t *testing.T) {
	fsys := afero.NewMemMapFs()
	writeTree(t, fsys, "/src", map[string]string{
		"index.html":     "<html/>",
		"js/app.js":      "console.log(1)",
		"img/deep/a.png": "\x89PNG\x00\x01",
	})
	if err := CopyTree(context.Background(), fsys, "/src", fsys, "/dst", 3); err != nil {
		t.Fatalf("CopyTree: %v", err)
	}
	got, err := ListFiles(fsys, "/dst")
	if err != nil {
		t.Fatalf("ListFiles: %v", err)
	}
	want := []string{"img/deep/a.png", "index.html", "js/app.js"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("ListFiles: got=%v want=%v", got, want)
	}
	if body := readFile(t, fsys, "/dst/img/deep/a.png"); body != "\x89PNG\x00\x01" {
		t.Fatalf("binary content changed: %q", body)
	}
}

func TestListFilesMissingDir(t *testing.T) {
	got, err := ListFiles(afero.NewMemMapFs(), "/nope")
	if err != nil || len(got) != 0 {
		t.Fatalf("ListFiles(missing): got=%v err=%v", got, err)
	}
}

func TestPromote(t *testing.T) {
	s, base := newOSStore(t)
	staged := filepath.Join(base, "staging", "tok", "demo")
	writeTree(t, s.Fs(), staged, map[string]string{"a.txt": "A"})

	if err := s.Promote(context.Background(), staged, "demo", "tok"); err != nil {
		t.Fatalf("Promote: %v", err)
	}
	files, err := s.List("demo")
	if err != nil || !reflect.DeepEqual(files, []string{"a.txt"}) {
		t.Fatalf("List: files=%v err=%v", files, err)
	}
	if _, err := os.Stat(filepath.Join(s.Root(), incomingPrefix+"tok")); !os.IsNotExist(err) {
		t.Fatalf("incoming dir should be gone, stat err=%v", err)
	}

	err = s.Promote(context.Background(), staged, "demo", "tok2")
	if !transfer.IsCode(err, transfer.CodeConflict) {
		t.Fatalf("Promote onto existing dir: expected conflict, got %v", err)
	}
}

func TestReplaceIsFullReplace(t *testing.T) {
	s, base := newOSStore(t)
	live, _ := s.Path("demo")
	writeTree(t, s.Fs(), live, map[string]string{"old.txt": "old", "shared.txt": "v1"})
	staged := filepath.Join(base, "staging", "tok", "demo")
	writeTree(t, s.Fs(), staged, map[string]string{"shared.txt": "v2", "new/n.txt": "n"})

	sw, err := s.Replace(context.Background(), staged, "demo", "demo", "tok")
	if err != nil {
		t.Fatalf("Replace: %v", err)
	}
	if err := sw.Commit(); err != nil {
		t.Fatalf("Commit: %v", err)
	}
	files, _ := s.List("demo")
	if !reflect.DeepEqual(files, []string{"new/n.txt", "shared.txt"}) {
		t.Fatalf("stale files survived: %v", files)
	}
	if body := readFile(t, s.Fs(), filepath.Join(live, "shared.txt")); body != "v2" {
		t.Fatalf("shared.txt: got=%q", body)
	}
	entries, _ := afero.ReadDir(s.Fs(), s.Root())
	if len(entries) != 1 {
		t.Fatalf("expected only the live dir under root, got %d entries", len(entries))
	}
}

func TestReplaceIntoNewNameAndRollback(t *testing.T) {
	s, base := newOSStore(t)
	oldLive, _ := s.Path("old_name")
	writeTree(t, s.Fs(), oldLive, map[string]string{"keep.txt": "original"})
	staged := filepath.Join(base, "staging", "tok", "x")
	writeTree(t, s.Fs(), staged, map[string]string{"fresh.txt": "fresh"})

	sw, err := s.Replace(context.Background(), staged, "old_name", "new_name", "tok")
	if err != nil {
		t.Fatalf("Replace: %v", err)
	}
	if ok, _ := s.Exists("old_name"); ok {
		t.Fatalf("old_name should be retired while the swap is pending")
	}
	if files, _ := s.List("new_name"); !reflect.DeepEqual(files, []string{"fresh.txt"}) {
		t.Fatalf("new_name: %v", files)
	}

	if err := sw.Rollback(); err != nil {
		t.Fatalf("Rollback: %v", err)
	}
	if ok, _ := s.Exists("new_name"); ok {
		t.Fatalf("new_name should be removed by rollback")
	}
	if body := readFile(t, s.Fs(), filepath.Join(oldLive, "keep.txt")); body != "original" {
		t.Fatalf("rollback did not restore original contents: %q", body)
	}
	// commit after rollback is a no-op
	if err := sw.Commit(); err != nil {
		t.Fatalf("Commit after Rollback: %v", err)
	}
}

func TestPathRejectsReservedNames(t *testing.T) {
	s, _ := newOSStore(t)
	if _, err := s.Path(".retired-x"); !transfer.IsCode(err, transfer.CodeBadRequest) {
		t.Fatalf("expected bad_request for reserved name, got %v", err)
	}
}

func TestMissingStagedTreeKeepsLiveAssets(t *testing.T) {
	s, base := newOSStore(t)
	live, _ := s.Path("demo")
	writeTree(t, s.Fs(), live, map[string]string{"index.html": "live"})
	gone := filepath.Join(base, "staging", "tok", "demo")

	if _, err := s.Replace(context.Background(), gone, "demo", "demo", "tok"); !transfer.IsCode(err, transfer.CodeIO) {
		t.Fatalf("Replace from missing tree: expected io, got %v", err)
	}
	if body := readFile(t, s.Fs(), filepath.Join(live, "index.html")); body != "live" {
		t.Fatalf("live assets changed: %q", body)
	}
	if err := s.Promote(context.Background(), gone, "fresh", "tok"); !transfer.IsCode(err, transfer.CodeIO) {
		t.Fatalf("Promote from missing tree: expected io, got %v", err)
	}
	if ok, _ := s.Exists("fresh"); ok {
		t.Fatalf("Promote created a directory from a missing tree")
	}
	entries, _ := afero.ReadDir(s.Fs(), s.Root())
	if len(entries) != 1 {
		t.Fatalf("expected only the live dir under root, got %d entries", len(entries))
	}
}
