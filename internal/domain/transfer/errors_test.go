package transfer

import (
	"errors"
	"fmt"
	"io/fs"
	"testing"
)

func TestWrapKeepsExistingCode(t *testing.T) {
	inner := NewError(CodeCorruptArchive, "archive.unpack", "missing properties entry", nil)
	out := Wrap(CodeIO, "staging.stage", fmt.Errorf("stage: %w", inner))
	if !IsCode(out, CodeCorruptArchive) {
		t.Fatalf("expected corrupt_archive, got %q (%v)", CodeOf(out), out)
	}
}

func TestFromFSPermission(t *testing.T) {
	err := FromFS("assetfs.copy", &fs.PathError{Op: "open", Path: "/x", Err: fs.ErrPermission})
	if !IsCode(err, CodePermission) {
		t.Fatalf("expected permission, got %q", CodeOf(err))
	}
	err = FromFS("assetfs.copy", errors.New("disk full"))
	if !IsCode(err, CodeIO) {
		t.Fatalf("expected io, got %q", CodeOf(err))
	}
}

func TestMarkReconcile(t *testing.T) {
	err := NewError(CodePersistence, "merge.commit", "write failed", errors.New("boom"))
	if NeedsReconcile(err) {
		t.Fatal("fresh error should not need reconcile")
	}
	err = MarkReconcile(err)
	if !NeedsReconcile(err) || !IsCode(err, CodePersistence) {
		t.Fatalf("expected reconcile-flagged persistence error, got %v", err)
	}
	plain := MarkReconcile(errors.New("raw"))
	if !IsCode(plain, CodePersistence) || !NeedsReconcile(plain) {
		t.Fatalf("expected raw error promoted to persistence, got %v", plain)
	}
}

func TestErrorString(t *testing.T) {
	err := NewError(CodeStagingExpired, "importexport.confirm", "staging session consumed", nil)
	if got, want := err.Error(), "importexport.confirm: staging session consumed (staging_expired)"; got != want {
		t.Fatalf("got=%q want=%q", got, want)
	}
}
