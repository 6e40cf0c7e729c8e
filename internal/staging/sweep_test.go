package staging

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/afero"

	types "github.com/yungbote/studyport-backend/internal/domain"
)

func TestSweepReclaimsExpiredAndOrphaned(t *testing.T) {
	f := newFixture(t)
	owner := uuid.New()
	stale := f.stage(t, owner, f.studyArchive(t, "stale"))
	fresh := f.stage(t, owner, f.studyArchive(t, "fresh"))

	// expire only the stale session
	if err := f.repo.UpdateFields(f.dbc, stale.ID, map[string]interface{}{"expires_at": f.now.Add(-time.Minute)}); err != nil {
		t.Fatalf("age session: %v", err)
	}

	old := f.now.Add(-2 * time.Hour)
	orphan := filepath.Join("/staging", uuid.NewString())
	junk := filepath.Join("/staging", "not-a-token")
	exportFile := filepath.Join(f.mgr.ExportsDir(), "old.zip")
	for _, dir := range []string{orphan, junk} {
		if err := f.fs.MkdirAll(dir, 0o755); err != nil {
			t.Fatalf("mkdir: %v", err)
		}
		if err := f.fs.Chtimes(dir, old, old); err != nil {
			t.Fatalf("chtimes: %v", err)
		}
	}
	if err := afero.WriteFile(f.fs, exportFile, []byte("zip"), 0o644); err != nil {
		t.Fatalf("write export: %v", err)
	}
	if err := f.fs.Chtimes(exportFile, old, old); err != nil {
		t.Fatalf("chtimes: %v", err)
	}
	// keep the fresh session directory young
	if err := f.fs.Chtimes(fresh.StagingDir, f.now, f.now); err != nil {
		t.Fatalf("chtimes: %v", err)
	}

	res, err := f.mgr.Sweep(f.dbc.Ctx, f.now)
	if err != nil {
		t.Fatalf("Sweep: %v", err)
	}
	if res.ExpiredSessions != 1 {
		t.Fatalf("ExpiredSessions: got=%d", res.ExpiredSessions)
	}
	if res.OrphanDirs != 2 {
		t.Fatalf("OrphanDirs: got=%d", res.OrphanDirs)
	}
	if res.StaleExports != 1 {
		t.Fatalf("StaleExports: got=%d", res.StaleExports)
	}

	got, _ := f.repo.GetByID(f.dbc, stale.ID)
	if got.State != types.StagingDiscarded || got.Outcome != types.OutcomeExpired {
		t.Fatalf("stale session: %+v", got)
	}
	for _, p := range []string{stale.StagingDir, orphan, junk, exportFile} {
		if ok, _ := afero.Exists(f.fs, p); ok {
			t.Fatalf("%s should be swept", p)
		}
	}
	if ok, _ := afero.Exists(f.fs, fresh.StagingDir); !ok {
		t.Fatalf("live session directory swept")
	}
	live, _ := f.repo.GetByID(f.dbc, fresh.ID)
	if live.State != types.StagingUploaded {
		t.Fatalf("live session changed: %+v", live)
	}
}

func TestSweepPurgesOldTerminalRows(t *testing.T) {
	f := newFixture(t)
	owner := uuid.New()
	s := f.stage(t, owner, f.studyArchive(t, "done"))
	if err := f.mgr.Discard(f.dbc, s.ID, owner); err != nil {
		t.Fatalf("Discard: %v", err)
	}
	if err := f.repo.UpdateFields(f.dbc, s.ID, map[string]interface{}{"updated_at": f.now.Add(-48 * time.Hour)}); err != nil {
		t.Fatalf("age row: %v", err)
	}
	res, err := f.mgr.Sweep(f.dbc.Ctx, f.now)
	if err != nil {
		t.Fatalf("Sweep: %v", err)
	}
	if res.PurgedRows != 1 {
		t.Fatalf("PurgedRows: got=%d", res.PurgedRows)
	}
	if got, _ := f.repo.GetByID(f.dbc, s.ID); got != nil {
		t.Fatalf("terminal row should be purged")
	}
}

func TestSweepKeepsInFlightConfirm(t *testing.T) {
	f := newFixture(t)
	owner := uuid.New()
	busy := f.stage(t, owner, f.studyArchive(t, "busy"))
	done := f.stage(t, owner, f.studyArchive(t, "done"))
	for _, s := range []*types.StagingSession{busy, done} {
		if err := f.mgr.MarkReported(f.dbc, s, map[string]any{}); err != nil {
			t.Fatalf("MarkReported: %v", err)
		}
		if err := f.mgr.Claim(f.dbc, s); err != nil {
			t.Fatalf("Claim: %v", err)
		}
	}
	// done has finished applying but its directory removal failed
	if err := f.repo.UpdateFields(f.dbc, done.ID, map[string]interface{}{"outcome": types.OutcomeApplied}); err != nil {
		t.Fatalf("record outcome: %v", err)
	}

	later := f.now.Add(2 * time.Hour)
	old := f.now.Add(-time.Minute)
	for _, s := range []*types.StagingSession{busy, done} {
		if err := f.fs.Chtimes(s.StagingDir, old, old); err != nil {
			t.Fatalf("chtimes: %v", err)
		}
	}

	res, err := f.mgr.Sweep(f.dbc.Ctx, later)
	if err != nil {
		t.Fatalf("Sweep: %v", err)
	}
	if res.OrphanDirs != 1 {
		t.Fatalf("OrphanDirs: got=%d", res.OrphanDirs)
	}
	if ok, _ := afero.Exists(f.fs, busy.StagingDir); !ok {
		t.Fatalf("sweep removed the tree of a running confirm")
	}
	if ok, _ := afero.Exists(f.fs, done.StagingDir); ok {
		t.Fatalf("finished confirm directory should be swept")
	}

	// a claim that never recorded an outcome is reclaimed after retention
	if _, err := f.mgr.Sweep(f.dbc.Ctx, f.now.Add(48*time.Hour)); err != nil {
		t.Fatalf("Sweep: %v", err)
	}
	if ok, _ := afero.Exists(f.fs, busy.StagingDir); ok {
		t.Fatalf("abandoned claim should be swept after retention")
	}
}
