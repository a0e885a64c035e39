package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/fpang/leafscan/internal/workflow"
)

// FileInfoLine renders "name (1.50 MB)" for the selected artifact.
func FileInfoLine(snap workflow.Snapshot) string {
	if snap.Artifact == nil {
		return ""
	}
	return fmt.Sprintf("%s (%s)", snap.Artifact.Name, snap.Artifact.SizeMB())
}

// PrintSnapshot writes a terminal rendering of the workflow state.
// remedy is the raw markdown to show; it is printed as-is since terminals
// don't render HTML.
func PrintSnapshot(w io.Writer, snap workflow.Snapshot, remedy string) {
	if line := FileInfoLine(snap); line != "" {
		fmt.Fprintf(w, "File:        %s\n", line)
	}

	switch snap.State {
	case workflow.Succeeded:
		a := snap.Annotation
		fmt.Fprintf(w, "Prediction:  %s\n", a.Label)
		fmt.Fprintf(w, "Confidence:  %.2f%% (%s)\n", a.Confidence, a.Band)
		if a.Message != "" {
			fmt.Fprintf(w, "             %s\n", a.Message)
		}
		if remedy = strings.TrimSpace(remedy); remedy != "" {
			fmt.Fprintln(w, "Remedy:")
			for _, line := range strings.Split(remedy, "\n") {
				fmt.Fprintf(w, "  %s\n", line)
			}
		}
	case workflow.Failed:
		fmt.Fprintln(w, snap.Notice)
	default:
		if snap.Notice != "" {
			fmt.Fprintln(w, snap.Notice)
		}
	}
}
