package archive

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/yungbote/studyport-backend/internal/domain/transfer"
)

const (
	EnvelopeVersion = 1

	KindStudy     = "study"
	KindComponent = "component"

	StudyExt     = ".jas"
	ComponentExt = ".jac"
	ZipExt       = ".zip"
)

// StudyDocument is the portable description of a study. Components are listed
// in position order.
type StudyDocument struct {
	UUID               string              `json:"uuid"`
	Title              string              `json:"title"`
	Description        string              `json:"description,omitempty"`
	DirName            string              `json:"dir_name"`
	Properties         json.RawMessage     `json:"properties,omitempty"`
	AllowedWorkerTypes []string            `json:"allowed_worker_types"`
	Components         []ComponentDocument `json:"components"`
}

type ComponentDocument struct {
	UUID           string          `json:"uuid"`
	Title          string          `json:"title"`
	Comments       string          `json:"comments,omitempty"`
	Active         bool            `json:"active"`
	Reloadable     bool            `json:"reloadable"`
	AssetEntryPath string          `json:"asset_entry_path,omitempty"`
	Properties     json.RawMessage `json:"properties,omitempty"`
}

// Document is one properties entry. Exactly one of Study and Component is set,
// matching Kind.
type Document struct {
	Kind      string
	Study     *StudyDocument
	Component *ComponentDocument
}

type envelope struct {
	Version int             `json:"version"`
	Kind    string          `json:"kind"`
	Data    json.RawMessage `json:"data"`
}

func StudyDoc(doc *StudyDocument) Document {
	return Document{Kind: KindStudy, Study: doc}
}

func ComponentDoc(doc *ComponentDocument) Document {
	return Document{Kind: KindComponent, Component: doc}
}

// Ext returns the properties entry extension for the document kind.
func (d Document) Ext() string {
	if d.Kind == KindComponent {
		return ComponentExt
	}
	return StudyExt
}

// Validate checks the fields every import relies on.
func (d Document) Validate() error {
	const op = "archive.validate"
	switch d.Kind {
	case KindStudy:
		if d.Study == nil {
			return transfer.NewError(transfer.CodeBadRequest, op, "missing study document", nil)
		}
		if strings.TrimSpace(d.Study.UUID) == "" || strings.TrimSpace(d.Study.Title) == "" || strings.TrimSpace(d.Study.DirName) == "" {
			return transfer.NewError(transfer.CodeBadRequest, op, "study requires uuid, title and dir_name", nil)
		}
		seen := map[string]struct{}{}
		for i := range d.Study.Components {
			c := &d.Study.Components[i]
			if err := validateComponent(c); err != nil {
				return err
			}
			if _, dup := seen[c.UUID]; dup {
				return transfer.NewError(transfer.CodeBadRequest, op, "duplicate component uuid "+c.UUID, nil)
			}
			seen[c.UUID] = struct{}{}
		}
	case KindComponent:
		if d.Component == nil {
			return transfer.NewError(transfer.CodeBadRequest, op, "missing component document", nil)
		}
		return validateComponent(d.Component)
	default:
		return transfer.NewError(transfer.CodeBadRequest, op, fmt.Sprintf("unknown document kind %q", d.Kind), nil)
	}
	return nil
}

func validateComponent(c *ComponentDocument) error {
	if strings.TrimSpace(c.UUID) == "" || strings.TrimSpace(c.Title) == "" {
		return transfer.NewError(transfer.CodeBadRequest, "archive.validate", "component requires uuid and title", nil)
	}
	return nil
}

// MarshalDocument renders the compact envelope for d.
func MarshalDocument(d Document) ([]byte, error) {
	var (
		data []byte
		err  error
	)
	switch d.Kind {
	case KindStudy:
		data, err = json.Marshal(d.Study)
	case KindComponent:
		data, err = json.Marshal(d.Component)
	default:
		return nil, fmt.Errorf("unknown document kind %q", d.Kind)
	}
	if err != nil {
		return nil, err
	}
	return json.Marshal(envelope{Version: EnvelopeVersion, Kind: d.Kind, Data: data})
}

// ParseDocument validates the envelope shape and decodes the payload. Any
// structural problem is a corrupt archive.
func ParseDocument(raw []byte) (Document, error) {
	const op = "archive.parse"
	if !gjson.ValidBytes(raw) {
		return Document{}, transfer.NewError(transfer.CodeCorruptArchive, op, "properties entry is not valid JSON", nil)
	}
	res := gjson.GetManyBytes(raw, "version", "kind", "data")
	version, kind, data := res[0], res[1], res[2]
	if version.Type != gjson.Number || version.Int() != EnvelopeVersion {
		return Document{}, transfer.NewError(transfer.CodeCorruptArchive, op, fmt.Sprintf("unsupported envelope version %s", version.Raw), nil)
	}
	if !data.IsObject() {
		return Document{}, transfer.NewError(transfer.CodeCorruptArchive, op, "envelope data must be an object", nil)
	}

	var doc Document
	switch kind.String() {
	case KindStudy:
		var s StudyDocument
		if err := json.Unmarshal([]byte(data.Raw), &s); err != nil {
			return Document{}, transfer.NewError(transfer.CodeCorruptArchive, op, "decode study document", err)
		}
		doc = StudyDoc(&s)
	case KindComponent:
		var c ComponentDocument
		if err := json.Unmarshal([]byte(data.Raw), &c); err != nil {
			return Document{}, transfer.NewError(transfer.CodeCorruptArchive, op, "decode component document", err)
		}
		doc = ComponentDoc(&c)
	default:
		return Document{}, transfer.NewError(transfer.CodeCorruptArchive, op, fmt.Sprintf("unknown envelope kind %q", kind.String()), nil)
	}
	return doc, nil
}
