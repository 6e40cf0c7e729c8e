package importexport

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/yungbote/studyport-backend/internal/archive"
	"github.com/yungbote/studyport-backend/internal/data/aggregates"
	types "github.com/yungbote/studyport-backend/internal/domain"
	"github.com/yungbote/studyport-backend/internal/domain/transfer"
	"github.com/yungbote/studyport-backend/internal/platform/assetfs"
	"github.com/yungbote/studyport-backend/internal/platform/dbctx"
)

const maxDirSuffix = 1000

// DetectStudyConflict looks the staged study up by uuid and proposes the
// directory it would occupy. It never writes records or touches live assets.
// The matched study, if any, is returned alongside the report.
func (u Usecases) DetectStudyConflict(dbc dbctx.Context, doc *archive.StudyDocument, actor uuid.UUID) (*StudyConflict, *types.Study, error) {
	const op = "importexport.detect_study"
	if doc == nil {
		return nil, nil, transfer.NewError(transfer.CodeBadRequest, op, "missing study document", nil)
	}
	existing, err := u.deps.Studies.GetByUUID(dbc, doc.UUID)
	if err != nil {
		return nil, nil, aggregates.MapError(op, err)
	}

	report := &StudyConflict{}
	if existing != nil {
		member, err := u.deps.Studies.IsMember(dbc, existing.ID, actor)
		if err != nil {
			return nil, nil, aggregates.MapError(op, err)
		}
		if !member {
			return nil, nil, transfer.NewError(transfer.CodeForbidden, op, "not a member of study "+existing.UUID, nil)
		}
		report.StudyExists = true
		report.StudyTitle = existing.Title
	}

	dirName, err := u.proposeDirName(dbc, doc.DirName, existing)
	if err != nil {
		return nil, nil, err
	}
	exists, err := u.deps.Assets.Exists(dirName)
	if err != nil {
		return nil, nil, err
	}
	report.DirName = dirName
	report.DirectoryExists = exists
	return report, existing, nil
}

// proposeDirName appends _2, _3, ... while the name belongs to another study.
// A new study also steps over directories that exist on disk without a record.
func (u Usecases) proposeDirName(dbc dbctx.Context, raw string, existing *types.Study) (string, error) {
	const op = "importexport.propose_dir"
	base := assetfs.SanitizeDirName(raw)
	var excludeID uint
	if existing != nil {
		excludeID = existing.ID
	}
	for n := 1; n <= maxDirSuffix; n++ {
		name := assetfs.WithSuffix(base, n)
		taken, err := u.deps.Studies.DirNameTaken(dbc, name, excludeID)
		if err != nil {
			return "", aggregates.MapError(op, err)
		}
		if taken {
			continue
		}
		if existing == nil {
			onDisk, err := u.deps.Assets.Exists(name)
			if err != nil {
				return "", err
			}
			if onDisk {
				continue
			}
		}
		return name, nil
	}
	return "", transfer.NewError(transfer.CodeConflict, op, fmt.Sprintf("no free directory name for %q", base), nil)
}

// DetectComponentConflict matches the staged component by uuid within study
// only; a component with the same uuid in another study does not count.
func (u Usecases) DetectComponentConflict(dbc dbctx.Context, study *types.Study, doc *archive.ComponentDocument) (*ComponentConflict, *types.Component, error) {
	const op = "importexport.detect_component"
	if study == nil || doc == nil {
		return nil, nil, transfer.NewError(transfer.CodeBadRequest, op, "missing study or component document", nil)
	}
	existing, err := u.deps.Components.GetByStudyAndUUID(dbc, study.ID, doc.UUID)
	if err != nil {
		return nil, nil, aggregates.MapError(op, err)
	}
	if existing == nil {
		return &ComponentConflict{}, nil, nil
	}
	return &ComponentConflict{ComponentExists: true, ComponentTitle: existing.Title}, existing, nil
}

// loadMemberStudy returns the study by id after checking membership.
func (u Usecases) loadMemberStudy(dbc dbctx.Context, op string, studyID uint, actor uuid.UUID) (*types.Study, error) {
	study, err := u.deps.Studies.GetByID(dbc, studyID)
	if err != nil {
		return nil, aggregates.MapError(op, err)
	}
	if study == nil {
		return nil, transfer.NewError(transfer.CodeNotFound, op, fmt.Sprintf("study %d not found", studyID), nil)
	}
	member, err := u.deps.Studies.IsMember(dbc, study.ID, actor)
	if err != nil {
		return nil, aggregates.MapError(op, err)
	}
	if !member {
		return nil, transfer.NewError(transfer.CodeForbidden, op, "not a member of study "+study.UUID, nil)
	}
	return study, nil
}
