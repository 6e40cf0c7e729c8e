package importexport

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"github.com/yungbote/studyport-backend/internal/archive"
	"github.com/yungbote/studyport-backend/internal/data/aggregates"
	types "github.com/yungbote/studyport-backend/internal/domain"
	"github.com/yungbote/studyport-backend/internal/domain/transfer"
	"github.com/yungbote/studyport-backend/internal/platform/assetfs"
	"github.com/yungbote/studyport-backend/internal/platform/dbctx"
	"github.com/yungbote/studyport-backend/internal/platform/dirlock"
	"github.com/yungbote/studyport-backend/internal/staging"
)

// ImportStudy stages an uploaded study archive and reports how it relates to
// persisted state. Nothing outside the staging area changes.
func (u Usecases) ImportStudy(ctx context.Context, in Upload) (report *StudyConflict, err error) {
	ctx, span := startSpan(ctx, "importexport.import_study")
	defer func() {
		u.deps.Metrics.IncImport(types.ImportKindStudy, resultLabel(err))
		endSpan(span, err)
	}()
	dbc := dbctx.Context{Ctx: ctx}

	session, unpacked, err := u.deps.Staging.Stage(dbc, staging.StageInput{
		Owner:       in.Actor,
		Kind:        types.ImportKindStudy,
		ArchiveName: in.Name,
		Archive:     in.Archive,
		Size:        in.Size,
	})
	if err != nil {
		return nil, err
	}
	report, _, err = u.DetectStudyConflict(dbc, unpacked.Document.Study, in.Actor)
	if err != nil {
		u.deps.Staging.Release(dbc, session, types.OutcomeFailed)
		return nil, err
	}
	report.ArchiveName = unpacked.Base
	report.Token = session.ID.String()
	if err := u.deps.Staging.MarkReported(dbc, session, report); err != nil {
		u.deps.Staging.Release(dbc, session, types.OutcomeFailed)
		return nil, err
	}
	u.deps.Log.Info("Study import staged",
		"staging_token", session.ID,
		"study_uuid", unpacked.Document.Study.UUID,
		"study_exists", report.StudyExists,
		"dir_name", report.DirName,
		"dir_exists", report.DirectoryExists,
	)
	return report, nil
}

// ImportComponent stages a component archive destined for studyID.
func (u Usecases) ImportComponent(ctx context.Context, studyID uint, in Upload) (report *ComponentConflict, err error) {
	const op = "importexport.import_component"
	ctx, span := startSpan(ctx, op, attribute.Int64("study.id", int64(studyID)))
	defer func() {
		u.deps.Metrics.IncImport(types.ImportKindComponent, resultLabel(err))
		endSpan(span, err)
	}()
	dbc := dbctx.Context{Ctx: ctx}

	study, err := u.loadMemberStudy(dbc, op, studyID, in.Actor)
	if err != nil {
		return nil, err
	}
	target := study.ID
	session, unpacked, err := u.deps.Staging.Stage(dbc, staging.StageInput{
		Owner:         in.Actor,
		Kind:          types.ImportKindComponent,
		TargetStudyID: &target,
		ArchiveName:   in.Name,
		Archive:       in.Archive,
		Size:          in.Size,
	})
	if err != nil {
		return nil, err
	}
	report, _, err = u.DetectComponentConflict(dbc, study, unpacked.Document.Component)
	if err != nil {
		u.deps.Staging.Release(dbc, session, types.OutcomeFailed)
		return nil, err
	}
	report.ArchiveName = unpacked.Base
	report.Token = session.ID.String()
	if err := u.deps.Staging.MarkReported(dbc, session, report); err != nil {
		u.deps.Staging.Release(dbc, session, types.OutcomeFailed)
		return nil, err
	}
	u.deps.Log.Info("Component import staged",
		"staging_token", session.ID,
		"study_id", study.ID,
		"component_uuid", unpacked.Document.Component.UUID,
		"component_exists", report.ComponentExists,
	)
	return report, nil
}

// Discard drops a pending import. Repeating it, or naming a token that is
// unknown or already consumed, is harmless.
func (u Usecases) Discard(ctx context.Context, actor, token uuid.UUID) error {
	return u.deps.Staging.Discard(dbctx.Context{Ctx: ctx}, token, actor)
}

// ConfirmStudy applies a reported study import according to the overwrite
// flags. The staging session is consumed whatever the result.
func (u Usecases) ConfirmStudy(ctx context.Context, in ConfirmStudyInput) (res *ConfirmResult, err error) {
	const op = "importexport.confirm_study"
	start := time.Now()
	mode := "unknown"
	ctx, span := startSpan(ctx, op,
		attribute.Bool("overwrite.properties", in.OverwriteProperties),
		attribute.Bool("overwrite.assets", in.OverwriteAssets),
	)
	defer func() {
		span.SetAttributes(attribute.String("confirm.mode", mode))
		u.deps.Metrics.IncConfirm(types.ImportKindStudy, mode, resultLabel(err))
		u.deps.Metrics.ObserveMerge(types.ImportKindStudy, time.Since(start))
		endSpan(span, err)
	}()
	dbc := dbctx.Context{Ctx: ctx}

	session, unpacked, err := u.deps.Staging.Load(dbc, in.Token, in.Actor, types.ImportKindStudy)
	if err != nil {
		return nil, err
	}
	outcome := types.OutcomeFailed
	release := true
	defer func() {
		if release {
			u.deps.Staging.Release(dbc, session, outcome)
		}
	}()

	if err := checkTransition(op, session.State, types.StagingConfirmed, "import has not been reported yet"); err != nil {
		return nil, err
	}
	doc := unpacked.Document.Study
	report, existing, err := u.DetectStudyConflict(dbc, doc, in.Actor)
	if err != nil {
		return nil, err
	}
	if err := u.deps.Staging.Claim(dbc, session); err != nil {
		// Another confirm owns the session now.
		release = false
		return nil, err
	}

	mode = studyConfirmMode(report.StudyExists, in.OverwriteProperties, in.OverwriteAssets)
	token := session.ID.String()
	switch mode {
	case ModeCreate:
		res, err = u.createStudy(ctx, doc, unpacked.AssetDir, report.DirName, token, in.Actor)
	case ModeNone:
		res = &ConfirmResult{StudyID: existing.ID, DirName: existing.DirName, Outcome: types.OutcomeNoop}
	default:
		res, err = u.mergeStudy(ctx, existing, doc, unpacked.AssetDir, report.DirName, token, in.OverwriteProperties, in.OverwriteAssets)
	}
	if err != nil {
		u.deps.Log.Warn("Study confirm failed", "staging_token", session.ID, "mode", mode, "error", err)
		return nil, err
	}
	outcome = res.Outcome
	u.deps.Log.Info("Study import confirmed",
		"staging_token", session.ID,
		"study_id", res.StudyID,
		"mode", mode,
		"dir_name", res.DirName,
	)
	return res, nil
}

// createStudy promotes the staged assets under dirName and then creates the
// record with the actor as its first member.
func (u Usecases) createStudy(ctx context.Context, doc *archive.StudyDocument, assetDir, dirName, token string, actor uuid.UUID) (*ConfirmResult, error) {
	unlock, err := u.deps.Locks.Lock(ctx, dirlock.AssetKey(dirName))
	if err != nil {
		return nil, transfer.NewError(transfer.CodeIO, "importexport.lock", "acquire asset lock", err)
	}
	defer unlock()

	if err := u.deps.Assets.Promote(ctx, assetDir, dirName, token); err != nil {
		return nil, err
	}
	study := studyFromDocument(doc, dirName)
	err = aggregates.ExecuteWrite(ctx, u.writeDeps(), "importexport.create_study", func(dbc dbctx.Context) error {
		if _, err := u.deps.Studies.Create(dbc, study); err != nil {
			return err
		}
		return u.deps.Studies.AddMember(dbc, study.ID, actor)
	})
	if err != nil {
		if rmErr := u.deps.Assets.Remove(dirName); rmErr != nil {
			u.deps.Log.Error("Asset directory left without a record", "dir_name", dirName, "reconcile", true, "error", rmErr)
			return nil, transfer.MarkReconcile(err)
		}
		return nil, err
	}
	return &ConfirmResult{StudyID: study.ID, DirName: dirName, Outcome: types.OutcomeApplied}, nil
}

// mergeStudy overwrites an existing study. Assets are swapped first; the
// record transaction follows and a failed commit rolls the swap back.
func (u Usecases) mergeStudy(ctx context.Context, existing *types.Study, doc *archive.StudyDocument, assetDir, proposed, token string, props, assets bool) (*ConfirmResult, error) {
	dirName := existing.DirName
	if props && assets {
		dirName = proposed
	}

	var swap *assetfs.Swap
	if assets {
		unlock, err := u.deps.Locks.Lock(ctx, dirlock.AssetKey(existing.DirName), dirlock.AssetKey(dirName))
		if err != nil {
			return nil, transfer.NewError(transfer.CodeIO, "importexport.lock", "acquire asset lock", err)
		}
		defer unlock()
		swap, err = u.deps.Assets.Replace(ctx, assetDir, existing.DirName, dirName, token)
		if err != nil {
			if transfer.NeedsReconcile(err) {
				u.deps.Log.Error("Asset swap could not be undone", "study_id", existing.ID, "dir_name", existing.DirName, "reconcile", true, "error", err)
			}
			return nil, err
		}
	}

	if props {
		err := aggregates.ExecuteWrite(ctx, u.writeDeps(), "importexport.merge_study", func(dbc dbctx.Context) error {
			return u.replaceStudyRecord(dbc, existing, doc, dirName)
		})
		if err != nil {
			if rbErr := swap.Rollback(); rbErr != nil {
				u.deps.Log.Error("Asset rollback failed after record write failure",
					"study_id", existing.ID,
					"dir_name", dirName,
					"reconcile", true,
					"error", rbErr,
				)
				return nil, transfer.MarkReconcile(err)
			}
			return nil, err
		}
	}

	if err := swap.Commit(); err != nil {
		u.deps.Log.Warn("Retired asset directory cleanup failed", "study_id", existing.ID, "error", err)
	}
	return &ConfirmResult{StudyID: existing.ID, DirName: dirName, Outcome: types.OutcomeApplied}, nil
}

// replaceStudyRecord overwrites the study fields and its component list in
// staged order. Matching uuids keep their id, new ones are inserted, and
// components missing from the staged list are removed.
func (u Usecases) replaceStudyRecord(dbc dbctx.Context, existing *types.Study, doc *archive.StudyDocument, dirName string) error {
	now := time.Now().UTC()
	if err := u.deps.Studies.UpdateFields(dbc, existing.ID, studyUpdates(doc, dirName, now)); err != nil {
		return err
	}

	current, err := u.deps.Components.GetByStudyID(dbc, existing.ID)
	if err != nil {
		return err
	}
	byUUID := make(map[string]*types.Component, len(current))
	for _, c := range current {
		byUUID[c.UUID] = c
	}

	kept := map[uint]struct{}{}
	var added []*types.Component
	for i := range doc.Components {
		cd := &doc.Components[i]
		pos := i + 1
		if c, ok := byUUID[cd.UUID]; ok {
			if err := u.deps.Components.UpdateFields(dbc, c.ID, componentUpdates(cd, pos, now)); err != nil {
				return err
			}
			kept[c.ID] = struct{}{}
			continue
		}
		added = append(added, componentFromDocument(existing.ID, cd, pos))
	}

	var stale []uint
	for _, c := range current {
		if _, ok := kept[c.ID]; !ok {
			stale = append(stale, c.ID)
		}
	}
	if err := u.deps.Components.DeleteByIDs(dbc, stale); err != nil {
		return err
	}
	if len(added) > 0 {
		if _, err := u.deps.Components.Create(dbc, added); err != nil {
			return err
		}
	}
	return nil
}

// ConfirmComponent applies a reported component import: a uuid match is
// overwritten in place, anything else is appended after the last component.
func (u Usecases) ConfirmComponent(ctx context.Context, actor, token uuid.UUID) (res *ConfirmResult, err error) {
	const op = "importexport.confirm_component"
	start := time.Now()
	mode := "unknown"
	ctx, span := startSpan(ctx, op)
	defer func() {
		u.deps.Metrics.IncConfirm(types.ImportKindComponent, mode, resultLabel(err))
		u.deps.Metrics.ObserveMerge(types.ImportKindComponent, time.Since(start))
		endSpan(span, err)
	}()
	dbc := dbctx.Context{Ctx: ctx}

	session, unpacked, err := u.deps.Staging.Load(dbc, token, actor, types.ImportKindComponent)
	if err != nil {
		return nil, err
	}
	outcome := types.OutcomeFailed
	release := true
	defer func() {
		if release {
			u.deps.Staging.Release(dbc, session, outcome)
		}
	}()

	if err := checkTransition(op, session.State, types.StagingConfirmed, "import has not been reported yet"); err != nil {
		return nil, err
	}
	if session.TargetStudyID == nil {
		return nil, transfer.NewError(transfer.CodeBadRequest, op, "component import has no target study", nil)
	}
	study, err := u.loadMemberStudy(dbc, op, *session.TargetStudyID, actor)
	if err != nil {
		return nil, err
	}
	doc := unpacked.Document.Component
	_, existing, err := u.DetectComponentConflict(dbc, study, doc)
	if err != nil {
		return nil, err
	}
	if err := u.deps.Staging.Claim(dbc, session); err != nil {
		release = false
		return nil, err
	}

	var componentID uint
	if existing != nil {
		mode = "overwrite"
		componentID = existing.ID
		err = aggregates.ExecuteWrite(ctx, u.writeDeps(), "importexport.overwrite_component", func(dbc dbctx.Context) error {
			return u.deps.Components.UpdateFields(dbc, existing.ID, componentUpdates(doc, existing.Position, time.Now().UTC()))
		})
	} else {
		mode = "append"
		err = aggregates.ExecuteWrite(ctx, u.writeDeps(), "importexport.append_component", func(dbc dbctx.Context) error {
			maxPos, err := u.deps.Components.MaxPosition(dbc, study.ID)
			if err != nil {
				return err
			}
			created, err := u.deps.Components.Create(dbc, []*types.Component{componentFromDocument(study.ID, doc, maxPos+1)})
			if err != nil {
				return err
			}
			componentID = created[0].ID
			return nil
		})
	}
	if err != nil {
		return nil, err
	}
	outcome = types.OutcomeApplied
	u.deps.Log.Info("Component import confirmed", "staging_token", session.ID, "study_id", study.ID, "component_id", componentID, "mode", mode)
	return &ConfirmResult{StudyID: study.ID, ComponentID: componentID, Outcome: outcome}, nil
}
