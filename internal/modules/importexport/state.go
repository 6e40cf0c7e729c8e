package importexport

import (
	"github.com/yungbote/studyport-backend/internal/data/aggregates"
	types "github.com/yungbote/studyport-backend/internal/domain"
	"github.com/yungbote/studyport-backend/internal/domain/transfer"
)

// Staging sessions only move forward: uploaded -> reported -> confirmed, with
// discard allowed from either live state.
var sessionTransitions = map[string][]string{
	types.StagingUploaded: {types.StagingReported, types.StagingDiscarded},
	types.StagingReported: {types.StagingConfirmed, types.StagingDiscarded},
}

// checkTransition fails with staging_expired unless the session may move
// from its current state to `to`.
func checkTransition(op, from, to, message string) error {
	var sources []string
	for state, nexts := range sessionTransitions {
		for _, next := range nexts {
			if next == to {
				sources = append(sources, state)
			}
		}
	}
	if err := aggregates.RequireStateAllowed(from, sources...); err != nil {
		return transfer.NewError(transfer.CodeStagingExpired, op, message, err)
	}
	return nil
}

// Study confirm modes, one per row of the overwrite truth table.
const (
	ModeCreate         = "create"
	ModeReplaceAll     = "properties_assets"
	ModePropertiesOnly = "properties"
	ModeAssetsOnly     = "assets"
	ModeNone           = "none"
)

func studyConfirmMode(studyExists, overwriteProperties, overwriteAssets bool) string {
	switch {
	case !studyExists:
		return ModeCreate
	case overwriteProperties && overwriteAssets:
		return ModeReplaceAll
	case overwriteProperties:
		return ModePropertiesOnly
	case overwriteAssets:
		return ModeAssetsOnly
	default:
		return ModeNone
	}
}
