package importexport

import (
	"bytes"
	"context"
	"io"
	"strings"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/spf13/afero"

	"github.com/yungbote/studyport-backend/internal/archive"
	"github.com/yungbote/studyport-backend/internal/domain/transfer"
	"github.com/yungbote/studyport-backend/internal/platform/dirlock"
	"github.com/yungbote/studyport-backend/internal/platform/objectstore"
)

func (e *env) readExport(res *ExportResult) []byte {
	e.t.Helper()
	raw, err := afero.ReadFile(e.fs, res.Path)
	if err != nil {
		e.t.Fatalf("read export: %v", err)
	}
	return raw
}

func TestExportImportRoundTripIntoEmptySystem(t *testing.T) {
	src := newEnv(t)
	seeded := src.study(src.seedStudy(uniqueDir("roundtrip"), 3).ID)
	files := map[string]string{"index.html": "<html/>", "js/app.js": "console.log(1)", "img/a.png": "\x89PNG\x00\x01"}
	src.writeAssets(seeded.DirName, files)

	res, err := src.uc.ExportStudy(src.ctx, src.actor.ID, seeded.ID)
	if err != nil {
		t.Fatalf("ExportStudy: %v", err)
	}
	if res.Name != seeded.DirName+".zip" || res.Size <= 0 {
		t.Fatalf("unexpected result: %+v", res)
	}
	raw := src.readExport(res)
	src.uc.Cleanup(res)
	if src.exists(res.Path) {
		t.Fatalf("Cleanup must remove the local archive")
	}

	dst := newEnv(t)
	if testingSharesDatabase() {
		// a shared database already holds the source study
		t.Skip("round trip into an empty system needs an isolated database")
	}
	report, err := dst.uc.ImportStudy(dst.ctx, dst.upload(raw))
	if err != nil {
		t.Fatalf("ImportStudy: %v", err)
	}
	if report.StudyExists || report.DirName != seeded.DirName {
		t.Fatalf("unexpected report: %+v", report)
	}
	confirmed, err := dst.uc.ConfirmStudy(dst.ctx, ConfirmStudyInput{Actor: dst.actor.ID, Token: uuid.MustParse(report.Token)})
	if err != nil {
		t.Fatalf("ConfirmStudy: %v", err)
	}

	got := dst.study(confirmed.StudyID)
	if got.UUID != seeded.UUID || got.Title != seeded.Title || got.Description != seeded.Description || got.DirName != seeded.DirName {
		t.Fatalf("record mismatch: got=%+v want=%+v", got, seeded)
	}
	if !jsonEqual(got.Properties, string(seeded.Properties)) {
		t.Fatalf("properties: got=%s want=%s", got.Properties, seeded.Properties)
	}
	if !equalOrdered([]string(got.AllowedWorkerTypes), []string(seeded.AllowedWorkerTypes)) {
		t.Fatalf("worker types: got=%v", got.AllowedWorkerTypes)
	}
	if !equalOrdered(componentUUIDs(got), componentUUIDs(seeded)) {
		t.Fatalf("components: got=%v want=%v", componentUUIDs(got), componentUUIDs(seeded))
	}
	for i, c := range got.Components {
		want := seeded.Components[i]
		if c.Position != want.Position || c.Title != want.Title || c.AssetEntryPath != want.AssetEntryPath || c.Active != want.Active {
			t.Fatalf("component %d: got=%+v want=%+v", i, c, want)
		}
	}

	wantFiles := make([]string, 0, len(files))
	for rel := range files {
		wantFiles = append(wantFiles, rel)
	}
	if listed := dst.listAssets(got.DirName); !sameStrings(listed, wantFiles) {
		t.Fatalf("assets: got=%v want=%v", listed, wantFiles)
	}
	for rel, body := range files {
		if dst.readAsset(got.DirName, rel) != body {
			t.Fatalf("asset %s differs", rel)
		}
	}
}

func TestExportStudyRequiresMembership(t *testing.T) {
	e := newEnv(t)
	seeded := e.seedStudy(uniqueDir("secret"), 1)
	if _, err := e.uc.ExportStudy(e.ctx, uuid.New(), seeded.ID); !transfer.IsCode(err, transfer.CodeForbidden) {
		t.Fatalf("expected forbidden, got %v", err)
	}
	if _, err := e.uc.ExportStudy(e.ctx, e.actor.ID, 987654); !transfer.IsCode(err, transfer.CodeNotFound) {
		t.Fatalf("expected not_found, got %v", err)
	}
}

func TestExportDoesNotMutateState(t *testing.T) {
	e := newEnv(t)
	seeded := e.study(e.seedStudy(uniqueDir("still"), 2).ID)
	e.writeAssets(seeded.DirName, map[string]string{"a.txt": "a"})

	res, err := e.uc.ExportStudy(e.ctx, e.actor.ID, seeded.ID)
	if err != nil {
		t.Fatalf("ExportStudy: %v", err)
	}
	defer e.uc.Cleanup(res)

	after := e.study(seeded.ID)
	if !after.UpdatedAt.Equal(seeded.UpdatedAt) || after.Title != seeded.Title {
		t.Fatalf("export touched the record")
	}
	if got := e.listAssets(seeded.DirName); !equalOrdered(got, []string{"a.txt"}) {
		t.Fatalf("export touched the assets: %v", got)
	}
}

func TestExportComponentIsPropertiesOnly(t *testing.T) {
	e := newEnv(t)
	seeded := e.study(e.seedStudy(uniqueDir("parts"), 2).ID)
	target := seeded.Components[0]

	res, err := e.uc.ExportComponent(e.ctx, e.actor.ID, seeded.ID, target.ID)
	if err != nil {
		t.Fatalf("ExportComponent: %v", err)
	}
	defer e.uc.Cleanup(res)

	unpacked, err := e.codec.Unpack(bytes.NewReader(e.readExport(res)), res.Size, e.t.TempDir())
	if err != nil {
		t.Fatalf("Unpack: %v", err)
	}
	if unpacked.Document.Kind != archive.KindComponent || unpacked.Document.Component.UUID != target.UUID {
		t.Fatalf("unexpected document: %+v", unpacked.Document)
	}
	if files, _ := afero.ReadDir(e.fs, unpacked.AssetDir); len(files) != 0 {
		t.Fatalf("component archive must not carry assets")
	}

	if _, err := e.uc.ExportComponent(e.ctx, e.actor.ID, seeded.ID, 424242); !transfer.IsCode(err, transfer.CodeNotFound) {
		t.Fatalf("expected not_found, got %v", err)
	}

	other := e.study(e.seedStudy(uniqueDir("other"), 1).ID)
	foreign := other.Components[0].ID
	if _, err := e.uc.ExportComponent(e.ctx, e.actor.ID, seeded.ID, foreign); !transfer.IsCode(err, transfer.CodeNotFound) {
		t.Fatalf("component of another study: expected not_found, got %v", err)
	}
}

type memorySink struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func (s *memorySink) Kind() string { return "memory" }

func (s *memorySink) Upload(_ context.Context, key string, body io.Reader, _ string) (string, error) {
	raw, err := io.ReadAll(body)
	if err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[key] = raw
	return "mem://" + key, nil
}

func TestExportMirrorsToSink(t *testing.T) {
	e := newEnv(t)
	sink := &memorySink{objects: map[string][]byte{}}
	e.uc.deps.Sink = sink
	seeded := e.seedStudy(uniqueDir("mirror"), 1)
	e.writeAssets(seeded.DirName, map[string]string{"index.html": "<html/>"})

	res, err := e.uc.ExportStudy(e.ctx, e.actor.ID, seeded.ID)
	if err != nil {
		t.Fatalf("ExportStudy: %v", err)
	}
	defer e.uc.Cleanup(res)

	key := objectstore.ExportKey(seeded.UUID, res.Name)
	if res.URL != "mem://"+key {
		t.Fatalf("URL: got=%q", res.URL)
	}
	if !bytes.Equal(sink.objects[key], e.readExport(res)) {
		t.Fatalf("mirrored object differs from local archive")
	}
	if !strings.HasPrefix(key, "exports/"+seeded.UUID+"/") {
		t.Fatalf("key layout: %s", key)
	}
}

func TestExportStudyByUUIDSkipsMembership(t *testing.T) {
	e := newEnv(t)
	seeded := e.seedStudy(uniqueDir("byuuid"), 1)
	e.writeAssets(seeded.DirName, map[string]string{"index.html": "<html/>"})

	res, err := e.uc.ExportStudyByUUID(e.ctx, " "+seeded.UUID+" ")
	if err != nil {
		t.Fatalf("ExportStudyByUUID: %v", err)
	}
	defer e.uc.Cleanup(res)

	f, err := e.uc.Open(res)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	raw, err := io.ReadAll(f)
	_ = f.Close()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if int64(len(raw)) != res.Size {
		t.Fatalf("size mismatch: read=%d reported=%d", len(raw), res.Size)
	}

	_, err = e.uc.ExportStudyByUUID(e.ctx, uuid.NewString())
	if !transfer.IsCode(err, transfer.CodeNotFound) {
		t.Fatalf("expected not_found for an unknown uuid, got %v", err)
	}
	if _, err := e.uc.Open(nil); !transfer.IsCode(err, transfer.CodeNotFound) {
		t.Fatalf("expected not_found for a missing export, got %v", err)
	}
}

func TestExportFollowsConcurrentRename(t *testing.T) {
	e := newEnv(t)
	seeded := e.study(e.seedStudy(uniqueDir("before"), 1).ID)
	e.writeAssets(seeded.DirName, map[string]string{"old.txt": "old"})
	renamed := uniqueDir("after")

	// hold both directories the way an assets overwrite does
	unlock, err := e.uc.deps.Locks.Lock(e.ctx, dirlock.AssetKey(seeded.DirName), dirlock.AssetKey(renamed))
	if err != nil {
		t.Fatalf("Lock: %v", err)
	}
	type outcome struct {
		res *ExportResult
		err error
	}
	done := make(chan outcome, 1)
	go func() {
		res, err := e.uc.ExportStudy(e.ctx, e.actor.ID, seeded.ID)
		done <- outcome{res, err}
	}()

	oldPath, _ := e.assets.Path(seeded.DirName)
	newPath, _ := e.assets.Path(renamed)
	if err := e.fs.Rename(oldPath, newPath); err != nil {
		t.Fatalf("rename: %v", err)
	}
	e.writeTree(newPath, map[string]string{"new.txt": "new"})
	if err := e.uc.deps.Studies.UpdateFields(e.dbc(), seeded.ID, map[string]interface{}{"dir_name": renamed, "title": "Renamed"}); err != nil {
		t.Fatalf("UpdateFields: %v", err)
	}
	unlock()

	out := <-done
	if out.err != nil {
		t.Fatalf("ExportStudy: %v", out.err)
	}
	defer e.uc.Cleanup(out.res)
	if out.res.Name != renamed+".zip" {
		t.Fatalf("archive name: got=%s", out.res.Name)
	}
	unpacked, err := e.codec.Unpack(bytes.NewReader(e.readExport(out.res)), out.res.Size, t.TempDir())
	if err != nil {
		t.Fatalf("Unpack: %v", err)
	}
	doc := unpacked.Document.Study
	if doc.Title != "Renamed" || doc.DirName != renamed {
		t.Fatalf("stale record exported: title=%q dir=%q", doc.Title, doc.DirName)
	}
	files, _ := afero.ReadDir(e.fs, unpacked.AssetDir)
	if len(files) != 2 {
		t.Fatalf("expected both asset files, got %d", len(files))
	}
}

func TestExportFailsWhenAssetDirMissing(t *testing.T) {
	e := newEnv(t)
	seeded := e.seedStudy(uniqueDir("bare"), 1)

	_, err := e.uc.ExportStudy(e.ctx, e.actor.ID, seeded.ID)
	if !transfer.IsCode(err, transfer.CodeIO) {
		t.Fatalf("expected io, got %v", err)
	}
	infos, _ := afero.ReadDir(e.fs, e.stage.ExportsDir())
	if len(infos) != 0 {
		t.Fatalf("failed export left %d archives behind", len(infos))
	}
}
