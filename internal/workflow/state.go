package workflow

import (
	"github.com/fpang/leafscan/internal/classifier"
	"github.com/fpang/leafscan/internal/filehandler"
	"github.com/fpang/leafscan/internal/interpret"
	"github.com/fpang/leafscan/internal/preview"
)

// State is the workflow's position in its lifecycle.
type State int

const (
	// Idle has no artifact. It is the initial state.
	Idle State = iota
	// Previewing has an artifact and (once generated) its preview.
	Previewing
	// Submitting is Previewing plus one in-flight classifier request.
	Submitting
	// Succeeded holds the prediction for the current artifact.
	Succeeded
	// Failed keeps the artifact and preview so the user can retry.
	Failed
)

var stateNames = [...]string{"idle", "previewing", "submitting", "succeeded", "failed"}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "unknown"
	}
	return stateNames[s]
}

// MarshalText renders the state by name in JSON.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// User-facing notices. At most one is shown at a time.
const (
	NoticeSelectImage   = "Please select an image."
	NoticeSubmitFailed  = "Prediction failed! Please check your connection and try again."
	NoticePreviewFailed = "Could not render a preview of this image."
)

// Snapshot is a consistent copy of the workflow state. Pointers it holds are
// never mutated by the workflow after publication.
type Snapshot struct {
	// Version increases with every transition; observers can use it to drop
	// snapshots that arrive out of order.
	Version uint64

	State      State
	Artifact   *filehandler.Artifact
	Preview    *preview.Image
	Result     *classifier.Prediction
	Annotation *interpret.Annotation

	// Notice is the single message to show the user, if any.
	Notice string
	// Err is the cause behind a Failed state or a preview failure.
	Err error

	Dragging       bool
	PreviewPending bool
}

// Submitting reports whether a classifier request is in flight.
func (s Snapshot) Submitting() bool {
	return s.State == Submitting
}
