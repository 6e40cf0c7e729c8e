package importexport

import (
	"bytes"
	"context"
	"encoding/json"
	"path/filepath"
	"reflect"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/afero"
	"gorm.io/gorm"

	"github.com/yungbote/studyport-backend/internal/archive"
	"github.com/yungbote/studyport-backend/internal/data/aggregates"
	"github.com/yungbote/studyport-backend/internal/data/repos"
	"github.com/yungbote/studyport-backend/internal/data/repos/testutil"
	types "github.com/yungbote/studyport-backend/internal/domain"
	"github.com/yungbote/studyport-backend/internal/platform/assetfs"
	"github.com/yungbote/studyport-backend/internal/platform/dbctx"
	"github.com/yungbote/studyport-backend/internal/platform/dirlock"
	"github.com/yungbote/studyport-backend/internal/staging"
)

type env struct {
	t      *testing.T
	ctx    context.Context
	db     *gorm.DB
	fs     afero.Fs
	root   string
	codec  *archive.Codec
	assets *assetfs.Store
	stage  *staging.Manager
	uc     Usecases
	actor  *types.User
}

func newEnv(t *testing.T) *env {
	return newEnvWithRunner(t, nil)
}

func newEnvWithRunner(t *testing.T, runner aggregates.TxRunner) *env {
	t.Helper()
	ctx := context.Background()
	db := testutil.DB(t)
	log := testutil.Logger(t)
	root := t.TempDir()
	fsys := afero.NewOsFs()

	codec, err := archive.NewCodec(fsys, archive.Options{})
	if err != nil {
		t.Fatalf("NewCodec: %v", err)
	}
	assets, err := assetfs.NewStore(fsys, filepath.Join(root, "assets"), 2, log)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	mgr, err := staging.NewManager(fsys, staging.Config{Root: filepath.Join(root, "staging"), TTL: time.Hour}, codec, repos.NewStagingSessionRepo(db, log), nil, log)
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	locks, err := dirlock.NewLocal(filepath.Join(root, "locks"), log)
	if err != nil {
		t.Fatalf("NewLocal: %v", err)
	}
	uc := New(UsecasesDeps{
		DB:         db,
		Log:        log,
		Runner:     runner,
		Studies:    repos.NewStudyRepo(db, log),
		Components: repos.NewComponentRepo(db, log),
		Codec:      codec,
		Staging:    mgr,
		Assets:     assets,
		Locks:      locks,
	})
	return &env{
		t:      t,
		ctx:    ctx,
		db:     db,
		fs:     fsys,
		root:   root,
		codec:  codec,
		assets: assets,
		stage:  mgr,
		uc:     uc,
		actor:  testutil.SeedUser(t, ctx, db, uuid.NewString()+"@example.com"),
	}
}

// uniqueDir keeps directory names distinct when tests share a Postgres database.
func uniqueDir(prefix string) string {
	return prefix + "-" + uuid.NewString()[:8]
}

func (e *env) writeTree(dir string, files map[string]string) {
	e.t.Helper()
	if err := e.fs.MkdirAll(dir, 0o755); err != nil {
		e.t.Fatalf("mkdir %s: %v", dir, err)
	}
	for rel, body := range files {
		p := filepath.Join(dir, filepath.FromSlash(rel))
		if err := e.fs.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			e.t.Fatalf("mkdir: %v", err)
		}
		if err := afero.WriteFile(e.fs, p, []byte(body), 0o644); err != nil {
			e.t.Fatalf("write %s: %v", p, err)
		}
	}
}

func (e *env) writeAssets(dirName string, files map[string]string) {
	e.t.Helper()
	p, err := e.assets.Path(dirName)
	if err != nil {
		e.t.Fatalf("Path: %v", err)
	}
	e.writeTree(p, files)
}

func (e *env) listAssets(dirName string) []string {
	e.t.Helper()
	out, err := e.assets.List(dirName)
	if err != nil {
		e.t.Fatalf("List: %v", err)
	}
	return out
}

func (e *env) readAsset(dirName, rel string) string {
	e.t.Helper()
	p, _ := e.assets.Path(dirName)
	raw, err := afero.ReadFile(e.fs, filepath.Join(p, filepath.FromSlash(rel)))
	if err != nil {
		e.t.Fatalf("read asset: %v", err)
	}
	return string(raw)
}

func (e *env) packStudy(doc *archive.StudyDocument, files map[string]string) []byte {
	e.t.Helper()
	src := filepath.Join(e.root, "src", uuid.NewString())
	e.writeTree(src, files)
	var buf bytes.Buffer
	if err := e.codec.Pack(&buf, doc.DirName, archive.StudyDoc(doc), src); err != nil {
		e.t.Fatalf("Pack: %v", err)
	}
	return buf.Bytes()
}

func (e *env) packComponent(doc *archive.ComponentDocument) []byte {
	e.t.Helper()
	var buf bytes.Buffer
	if err := e.codec.Pack(&buf, "component", archive.ComponentDoc(doc), ""); err != nil {
		e.t.Fatalf("Pack: %v", err)
	}
	return buf.Bytes()
}

func (e *env) upload(raw []byte) Upload {
	return Upload{Actor: e.actor.ID, Name: "upload.zip", Archive: bytes.NewReader(raw), Size: int64(len(raw))}
}

func (e *env) study(id uint) *types.Study {
	e.t.Helper()
	s, err := repos.NewStudyRepo(e.db, testutil.Logger(e.t)).GetByID(e.dbc(), id)
	if err != nil || s == nil {
		e.t.Fatalf("load study %d: study=%v err=%v", id, s, err)
	}
	return s
}

func (e *env) dbc() dbctx.Context {
	return dbctx.Context{Ctx: e.ctx}
}

func (e *env) seedStudy(dirName string, componentCount int) *types.Study {
	e.t.Helper()
	return testutil.SeedStudy(e.t, e.ctx, e.db, dirName, e.actor, componentCount)
}

func componentUUIDs(s *types.Study) []string {
	out := make([]string, 0, len(s.Components))
	for _, c := range s.Components {
		out = append(out, c.UUID)
	}
	return out
}

func sameStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	a = append([]string{}, a...)
	b = append([]string{}, b...)
	sort.Strings(a)
	sort.Strings(b)
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func equalOrdered(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func (e *env) exists(p string) bool {
	e.t.Helper()
	ok, err := afero.Exists(e.fs, p)
	if err != nil {
		e.t.Fatalf("exists %s: %v", p, err)
	}
	return ok
}

// assertNoHiddenDirs fails when an in-flight swap directory was left behind.
func assertNoHiddenDirs(t *testing.T, e *env) {
	t.Helper()
	infos, err := afero.ReadDir(e.fs, e.assets.Root())
	if err != nil {
		t.Fatalf("read assets root: %v", err)
	}
	for _, info := range infos {
		if strings.HasPrefix(info.Name(), ".") {
			t.Fatalf("leftover swap directory %s", info.Name())
		}
	}
}

func jsonEqual(got []byte, want string) bool {
	var a, b any
	if err := json.Unmarshal(got, &a); err != nil {
		return false
	}
	if err := json.Unmarshal([]byte(want), &b); err != nil {
		return false
	}
	return reflect.DeepEqual(a, b)
}

func testingSharesDatabase() bool {
	return testutil.IsPostgres()
}
