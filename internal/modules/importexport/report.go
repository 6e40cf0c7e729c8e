package importexport

import (
	"io"

	"github.com/google/uuid"
)

// StudyConflict is returned by a study upload and stored with the staging
// session. DirName is the existing or proposed asset directory.
type StudyConflict struct {
	StudyExists     bool   `json:"studyExists"`
	StudyTitle      string `json:"studyTitle"`
	DirectoryExists bool   `json:"dirExists"`
	DirName         string `json:"dirPath"`
	ArchiveName     string `json:"archiveName"`
	Token           string `json:"token"`
}

type ComponentConflict struct {
	ComponentExists bool   `json:"componentExists"`
	ComponentTitle  string `json:"componentTitle"`
	ArchiveName     string `json:"archiveName"`
	Token           string `json:"token"`
}

// Upload is one archive handed to an import.
type Upload struct {
	Actor uuid.UUID
	// Name is the client-side file name, kept for the session record.
	Name    string
	Archive io.ReaderAt
	Size    int64
}

type ConfirmStudyInput struct {
	Actor               uuid.UUID
	Token               uuid.UUID
	OverwriteProperties bool
	OverwriteAssets     bool
}

type ConfirmResult struct {
	StudyID     uint   `json:"studyId,omitempty"`
	ComponentID uint   `json:"componentId,omitempty"`
	DirName     string `json:"dirName,omitempty"`
	Outcome     string `json:"outcome"`
}
