package workflow

import "github.com/fpang/leafscan/internal/interpret"

// FileView describes the selected artifact without its bytes.
type FileView struct {
	Name      string `json:"name"`
	MediaType string `json:"mediaType"`
	Size      int64  `json:"size"`
	SizeMB    string `json:"sizeMB"`
}

// View is the JSON form of a Snapshot served to the web UI and MCP clients.
type View struct {
	Version        uint64                `json:"version"`
	State          string                `json:"state"`
	File           *FileView             `json:"file,omitempty"`
	Preview        string                `json:"preview,omitempty"`
	Result         *interpret.Annotation `json:"result,omitempty"`
	Notice         string                `json:"notice,omitempty"`
	Error          string                `json:"error,omitempty"`
	Dragging       bool                  `json:"dragging"`
	PreviewPending bool                  `json:"previewPending"`
	Submitting     bool                  `json:"submitting"`
}

// View renders s for clients. The preview data URI can be large, so it is
// only included when asked for.
func (s Snapshot) View(includePreview bool) View {
	v := View{
		Version:        s.Version,
		State:          s.State.String(),
		Result:         s.Annotation,
		Notice:         s.Notice,
		Dragging:       s.Dragging,
		PreviewPending: s.PreviewPending,
		Submitting:     s.Submitting(),
	}
	if s.Artifact != nil {
		v.File = &FileView{
			Name:      s.Artifact.Name,
			MediaType: s.Artifact.MediaType,
			Size:      s.Artifact.Size,
			SizeMB:    s.Artifact.SizeMB(),
		}
	}
	if includePreview && s.Preview != nil {
		v.Preview = s.Preview.DataURI
	}
	if s.Err != nil {
		v.Error = s.Err.Error()
	}
	return v
}
