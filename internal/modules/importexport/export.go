package importexport

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/afero"
	"go.opentelemetry.io/otel/attribute"

	"github.com/yungbote/studyport-backend/internal/archive"
	"github.com/yungbote/studyport-backend/internal/data/aggregates"
	types "github.com/yungbote/studyport-backend/internal/domain"
	"github.com/yungbote/studyport-backend/internal/domain/transfer"
	"github.com/yungbote/studyport-backend/internal/platform/assetfs"
	"github.com/yungbote/studyport-backend/internal/platform/dbctx"
	"github.com/yungbote/studyport-backend/internal/platform/dirlock"
	"github.com/yungbote/studyport-backend/internal/platform/objectstore"
)

const zipContentType = "application/zip"

// ExportResult is a freshly written archive. Path is local; URL is set when
// the archive was mirrored to the object store.
type ExportResult struct {
	Path string
	Name string
	Size int64
	URL  string
}

// ExportStudy packages the study document and a snapshot of its asset
// directory. The directory lock keeps imports from swapping the tree while it
// is read.
func (u Usecases) ExportStudy(ctx context.Context, actor uuid.UUID, studyID uint) (res *ExportResult, err error) {
	const op = "importexport.export_study"
	ctx, span := startSpan(ctx, op, attribute.Int64("study.id", int64(studyID)))
	defer func() {
		u.deps.Metrics.IncExport(types.ImportKindStudy, resultLabel(err))
		endSpan(span, err)
	}()

	study, err := u.loadMemberStudy(dbctx.Context{Ctx: ctx}, op, studyID, actor)
	if err != nil {
		return nil, err
	}
	return u.exportStudy(ctx, study)
}

// ExportStudyByUUID exports without a membership check. It backs the offline
// admin command.
func (u Usecases) ExportStudyByUUID(ctx context.Context, studyUUID string) (*ExportResult, error) {
	const op = "importexport.export_study"
	study, err := u.deps.Studies.GetByUUID(dbctx.Context{Ctx: ctx}, strings.TrimSpace(studyUUID))
	if err != nil {
		return nil, aggregates.MapError(op, err)
	}
	if study == nil {
		return nil, transfer.NewError(transfer.CodeNotFound, op, "study "+studyUUID+" not found", nil)
	}
	res, err := u.exportStudy(ctx, study)
	u.deps.Metrics.IncExport(types.ImportKindStudy, resultLabel(err))
	return res, err
}

// exportLockAttempts bounds how often a snapshot chases a study whose
// directory is renamed between reading its record and locking the directory.
const exportLockAttempts = 3

func (u Usecases) exportStudy(ctx context.Context, study *types.Study) (*ExportResult, error) {
	const op = "importexport.export_study"
	dirName := study.DirName
	for attempt := 1; ; attempt++ {
		unlock, err := u.deps.Locks.Lock(ctx, dirlock.AssetKey(dirName))
		if err != nil {
			return nil, transfer.NewError(transfer.CodeIO, "importexport.lock", "acquire asset lock", err)
		}
		current, err := u.snapshotRecord(ctx, op, study.ID)
		if err != nil {
			unlock()
			return nil, err
		}
		if current.DirName != dirName {
			unlock()
			if attempt >= exportLockAttempts {
				return nil, transfer.NewError(transfer.CodeConflict, op, "study directory changed during export", nil)
			}
			dirName = current.DirName
			continue
		}
		res, err := u.writeStudyArchive(op, current)
		unlock()
		if err != nil {
			return nil, err
		}

		u.mirror(ctx, res, current.UUID)
		u.deps.Log.Info("Study exported", "study_id", current.ID, "archive", res.Name, "size", res.Size)
		return res, nil
	}
}

// snapshotRecord reloads the study once its directory lock is held.
func (u Usecases) snapshotRecord(ctx context.Context, op string, studyID uint) (*types.Study, error) {
	current, err := u.deps.Studies.GetByID(dbctx.Context{Ctx: ctx}, studyID)
	if err != nil {
		return nil, aggregates.MapError(op, err)
	}
	if current == nil {
		return nil, transfer.NewError(transfer.CodeNotFound, op, fmt.Sprintf("study %d not found", studyID), nil)
	}
	return current, nil
}

// writeStudyArchive packs the record and its live directory. The caller holds
// the directory lock.
func (u Usecases) writeStudyArchive(op string, study *types.Study) (*ExportResult, error) {
	assetDir, err := u.deps.Assets.Path(study.DirName)
	if err != nil {
		return nil, err
	}
	ok, err := u.deps.Assets.Exists(study.DirName)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, transfer.NewError(transfer.CodeIO, op, "asset directory missing: "+study.DirName, nil)
	}
	name := archive.ArchiveName(study.DirName)
	return u.writeArchive(op, name, study.DirName, archive.StudyDoc(studyDocument(study)), assetDir)
}

// ExportComponent writes a properties-only archive for one component.
func (u Usecases) ExportComponent(ctx context.Context, actor uuid.UUID, studyID, componentID uint) (res *ExportResult, err error) {
	const op = "importexport.export_component"
	ctx, span := startSpan(ctx, op,
		attribute.Int64("study.id", int64(studyID)),
		attribute.Int64("component.id", int64(componentID)),
	)
	defer func() {
		u.deps.Metrics.IncExport(types.ImportKindComponent, resultLabel(err))
		endSpan(span, err)
	}()

	study, err := u.loadMemberStudy(dbctx.Context{Ctx: ctx}, op, studyID, actor)
	if err != nil {
		return nil, err
	}
	component, err := u.deps.Components.GetByID(dbctx.Context{Ctx: ctx}, componentID)
	if err != nil {
		return nil, aggregates.MapError(op, err)
	}
	if component == nil || component.StudyID != study.ID {
		return nil, transfer.NewError(transfer.CodeNotFound, op, fmt.Sprintf("component %d not found in study %d", componentID, studyID), nil)
	}

	base := assetfs.SanitizeDirName(component.Title)
	res, err = u.writeArchive(op, base+archive.ZipExt, base, archive.ComponentDoc(componentDocument(component)), "")
	if err != nil {
		return nil, err
	}
	u.mirror(ctx, res, study.UUID)
	return res, nil
}

// Open reads back a written export archive.
func (u Usecases) Open(res *ExportResult) (afero.File, error) {
	if res == nil || res.Path == "" {
		return nil, transfer.NewError(transfer.CodeNotFound, "importexport.open_export", "export archive missing", nil)
	}
	f, err := u.deps.Assets.Fs().Open(res.Path)
	if err != nil {
		return nil, transfer.FromFS("importexport.open_export", err)
	}
	return f, nil
}

// Cleanup removes a local export archive once it has been delivered.
func (u Usecases) Cleanup(res *ExportResult) {
	if res == nil || res.Path == "" {
		return
	}
	if err := u.deps.Assets.Fs().Remove(res.Path); err != nil {
		u.deps.Log.Warn("Export cleanup failed", "path", res.Path, "error", err)
	}
}

func (u Usecases) writeArchive(op, name, base string, doc archive.Document, assetDir string) (*ExportResult, error) {
	fsys := u.deps.Assets.Fs()
	p := filepath.Join(u.deps.Staging.ExportsDir(), uuid.NewString()+"-"+name)
	f, err := fsys.Create(p)
	if err != nil {
		return nil, transfer.FromFS(op, err)
	}
	if err := u.deps.Codec.Pack(f, base, doc, assetDir); err != nil {
		_ = f.Close()
		_ = fsys.Remove(p)
		return nil, err
	}
	if err := f.Close(); err != nil {
		_ = fsys.Remove(p)
		return nil, transfer.FromFS(op, err)
	}
	info, err := fsys.Stat(p)
	if err != nil {
		_ = fsys.Remove(p)
		return nil, transfer.FromFS(op, err)
	}
	return &ExportResult{Path: p, Name: name, Size: info.Size()}, nil
}

// mirror uploads the archive to the configured sink. A failed upload leaves
// the local archive usable, so it is only logged.
func (u Usecases) mirror(ctx context.Context, res *ExportResult, studyUUID string) {
	if u.deps.Sink == nil || res == nil {
		return
	}
	f, err := u.deps.Assets.Fs().Open(res.Path)
	if err != nil {
		u.deps.Log.Warn("Export mirror skipped", "path", res.Path, "error", err)
		return
	}
	defer f.Close()
	url, err := u.deps.Sink.Upload(ctx, objectstore.ExportKey(studyUUID, res.Name), f, zipContentType)
	if err != nil {
		u.deps.Log.Warn("Export mirror failed", "sink", u.deps.Sink.Kind(), "archive", res.Name, "error", err)
		return
	}
	res.URL = url
}
