package interpret

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// classSeparator splits crop from condition in the classifier's class names,
// e.g. "Tomato___Late_blight".
const classSeparator = "___"

// Label is a class name split into its readable parts.
type Label struct {
	Raw       string `json:"raw"`
	Crop      string `json:"crop"`
	Condition string `json:"condition"`
	Healthy   bool   `json:"healthy"`
}

// FormatLabel splits a class name into crop and condition and replaces the
// underscores. Names without the separator are kept whole as the condition.
func FormatLabel(raw string) Label {
	l := Label{Raw: raw}

	crop, condition, ok := strings.Cut(raw, classSeparator)
	if !ok {
		condition = raw
		crop = ""
	}
	l.Crop = tidy(crop)
	l.Condition = tidy(condition)
	if l.Condition != "" {
		r, size := utf8.DecodeRuneInString(l.Condition)
		l.Condition = string(unicode.ToUpper(r)) + l.Condition[size:]
	}
	l.Healthy = strings.Contains(strings.ToLower(raw), "healthy")
	return l
}

// String renders "Crop: Condition", or just the condition when there is no crop.
func (l Label) String() string {
	if l.Crop == "" {
		return l.Condition
	}
	return l.Crop + ": " + l.Condition
}

func tidy(s string) string {
	s = strings.ReplaceAll(s, "_", " ")
	return strings.Join(strings.Fields(s), " ")
}
