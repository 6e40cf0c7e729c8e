package importexport

import (
	"encoding/json"
	"time"

	"gorm.io/datatypes"

	"github.com/yungbote/studyport-backend/internal/archive"
	types "github.com/yungbote/studyport-backend/internal/domain"
)

func studyFromDocument(doc *archive.StudyDocument, dirName string) *types.Study {
	study := &types.Study{
		UUID:               doc.UUID,
		Title:              doc.Title,
		Description:        doc.Description,
		Properties:         jsonColumn(doc.Properties),
		DirName:            dirName,
		AllowedWorkerTypes: workerTypes(doc.AllowedWorkerTypes),
	}
	for i := range doc.Components {
		study.Components = append(study.Components, componentFromDocument(0, &doc.Components[i], i+1))
	}
	return study
}

func componentFromDocument(studyID uint, doc *archive.ComponentDocument, position int) *types.Component {
	return &types.Component{
		StudyID:        studyID,
		UUID:           doc.UUID,
		Position:       position,
		Title:          doc.Title,
		Comments:       doc.Comments,
		Active:         doc.Active,
		Reloadable:     doc.Reloadable,
		AssetEntryPath: doc.AssetEntryPath,
		Properties:     jsonColumn(doc.Properties),
	}
}

// componentUpdates overwrites every mutable component field. id and uuid are
// never part of it.
func componentUpdates(doc *archive.ComponentDocument, position int, now time.Time) map[string]interface{} {
	return map[string]interface{}{
		"position":         position,
		"title":            doc.Title,
		"comments":         doc.Comments,
		"active":           doc.Active,
		"reloadable":       doc.Reloadable,
		"asset_entry_path": doc.AssetEntryPath,
		"properties":       jsonColumn(doc.Properties),
		"updated_at":       now,
	}
}

func studyUpdates(doc *archive.StudyDocument, dirName string, now time.Time) map[string]interface{} {
	return map[string]interface{}{
		"title":                doc.Title,
		"description":          doc.Description,
		"properties":           jsonColumn(doc.Properties),
		"allowed_worker_types": workerTypes(doc.AllowedWorkerTypes),
		"dir_name":             dirName,
		"updated_at":           now,
	}
}

func studyDocument(study *types.Study) *archive.StudyDocument {
	doc := &archive.StudyDocument{
		UUID:               study.UUID,
		Title:              study.Title,
		Description:        study.Description,
		DirName:            study.DirName,
		Properties:         rawJSON(study.Properties),
		AllowedWorkerTypes: append([]string{}, study.AllowedWorkerTypes...),
		Components:         make([]archive.ComponentDocument, 0, len(study.Components)),
	}
	for _, c := range study.Components {
		doc.Components = append(doc.Components, *componentDocument(c))
	}
	return doc
}

func componentDocument(c *types.Component) *archive.ComponentDocument {
	return &archive.ComponentDocument{
		UUID:           c.UUID,
		Title:          c.Title,
		Comments:       c.Comments,
		Active:         c.Active,
		Reloadable:     c.Reloadable,
		AssetEntryPath: c.AssetEntryPath,
		Properties:     rawJSON(c.Properties),
	}
}

func jsonColumn(raw json.RawMessage) datatypes.JSON {
	if len(raw) == 0 {
		return nil
	}
	return datatypes.JSON(append([]byte{}, raw...))
}

func rawJSON(col datatypes.JSON) json.RawMessage {
	if len(col) == 0 || string(col) == "null" {
		return nil
	}
	return json.RawMessage(append([]byte{}, col...))
}

func workerTypes(in []string) datatypes.JSONSlice[string] {
	out := make(datatypes.JSONSlice[string], 0, len(in))
	return append(out, in...)
}
