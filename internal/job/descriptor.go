package job

import (
	"bytes"
	"encoding/json"
	"errors"
	"path/filepath"
	"strings"

	"github.com/tidwall/gjson"
)

// Kind is the descriptor tag carried in the "Kind" property.
type Kind string

// KindExportPanelAsOBJ asks the host to export an open part as OBJ.
const KindExportPanelAsOBJ Kind = "ExportPanelAsOBJ"

const (
	DefaultPanelID  = "P001"
	DefaultRevision = "A"
)

// Descriptor is one unit of requested work. The implementations in this
// package are the complete set of variants.
type Descriptor interface {
	Kind() Kind
	isDescriptor()
}

// Unsupported is a descriptor whose tag is not implemented. It is a valid
// outcome of Parse, not an error.
type Unsupported struct {
	Tag string
}

func (u *Unsupported) Kind() Kind { return Kind(u.Tag) }
func (*Unsupported) isDescriptor() {}

// ExportPanelAsOBJ asks for the open document at SourceDocumentPath to be
// exported as OBJ into OutputFolder.
type ExportPanelAsOBJ struct {
	SourceDocumentPath string `json:"IptPath"`
	OutputFolder       string `json:"OutFolder"`
	PanelID            string `json:"PanelId"`
	Revision           string `json:"Rev"`
	BringToFront       *bool  `json:"BringToFront"`
}

func (*ExportPanelAsOBJ) Kind() Kind { return KindExportPanelAsOBJ }
func (*ExportPanelAsOBJ) isDescriptor() {}

// Validate checks the required fields. Whitespace-only values count as empty.
func (e *ExportPanelAsOBJ) Validate() error {
	var missing []string
	if strings.TrimSpace(e.SourceDocumentPath) == "" {
		missing = append(missing, "IptPath")
	}
	if strings.TrimSpace(e.OutputFolder) == "" {
		missing = append(missing, "OutFolder")
	}
	if len(missing) > 0 {
		return &ValidationError{Kind: KindExportPanelAsOBJ, Fields: missing}
	}
	return nil
}

// WantsFront reports whether the host window should be raised. It defaults
// to true when the descriptor does not say.
func (e *ExportPanelAsOBJ) WantsFront() bool {
	return e.BringToFront == nil || *e.BringToFront
}

// OutputFileName is <basename>_<panel>_r<revision>.obj, where basename is the
// source document's file name without extension. Both slash styles are
// accepted in SourceDocumentPath because descriptors are written on Windows.
func (e *ExportPanelAsOBJ) OutputFileName() string {
	base := e.SourceDocumentPath
	if i := strings.LastIndexAny(base, `/\`); i >= 0 {
		base = base[i+1:]
	}
	base = strings.TrimSuffix(base, filepath.Ext(base))
	return base + "_" + e.PanelID + "_r" + e.Revision + ".obj"
}

// OutputPath joins OutputFolder and OutputFileName.
func (e *ExportPanelAsOBJ) OutputPath() string {
	return filepath.Join(e.OutputFolder, e.OutputFileName())
}

func (e *ExportPanelAsOBJ) applyDefaults() {
	if strings.TrimSpace(e.PanelID) == "" {
		e.PanelID = DefaultPanelID
	}
	if strings.TrimSpace(e.Revision) == "" {
		e.Revision = DefaultRevision
	}
}

// Parse decodes raw descriptor bytes. It returns an *Unsupported descriptor
// for unknown kinds, a *DecodeError for malformed input and a
// *ValidationError for a known kind with missing fields.
func Parse(raw []byte) (Descriptor, error) {
	raw = bytes.TrimPrefix(raw, []byte("\xef\xbb\xbf")) // UTF-8 BOM from Windows editors
	if !gjson.ValidBytes(raw) {
		return nil, &DecodeError{Err: errors.New("not valid JSON")}
	}
	root := gjson.ParseBytes(raw)
	if !root.IsObject() {
		return nil, &DecodeError{Err: errors.New("descriptor must be a JSON object")}
	}

	tag := root.Get("Kind")
	if tag.Exists() && tag.Type != gjson.String && tag.Type != gjson.Null {
		return nil, &DecodeError{Err: errors.New(`"Kind" must be a string`)}
	}

	switch Kind(tag.String()) {
	case KindExportPanelAsOBJ:
		d := &ExportPanelAsOBJ{}
		if err := json.Unmarshal(raw, d); err != nil {
			return nil, &DecodeError{Kind: KindExportPanelAsOBJ, Err: err}
		}
		d.applyDefaults()
		if err := d.Validate(); err != nil {
			return nil, err
		}
		return d, nil
	default:
		return &Unsupported{Tag: tag.String()}, nil
	}
}
