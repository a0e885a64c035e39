// Package interpret turns a classifier prediction into what the user sees:
// a confidence band with its message, the remedy rendered from markdown, and
// a readable crop/condition label.
package interpret

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/fpang/leafscan/internal/classifier"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
)

// Confidence thresholds in percent. Both bounds of the neutral band are inclusive.
const (
	HighConfidenceAbove = 80
	LowConfidenceBelow  = 60
)

// Band is the coarse confidence category of a prediction.
type Band int

const (
	// BandNeutral covers [60, 80] and carries no annotation.
	BandNeutral Band = iota
	BandHigh
	BandLow
)

func (b Band) String() string {
	switch b {
	case BandHigh:
		return "high"
	case BandLow:
		return "low"
	default:
		return "neutral"
	}
}

// Messages shown for each annotated band.
const (
	HighConfidenceMessage = "High confidence prediction"
	LowConfidenceMessage  = "Low confidence - consider uploading a clearer image"
)

// BandFor classifies a confidence percentage.
func BandFor(confidence float64) Band {
	switch {
	case confidence > HighConfidenceAbove:
		return BandHigh
	case confidence < LowConfidenceBelow:
		return BandLow
	default:
		return BandNeutral
	}
}

// Annotation is the display form of a prediction.
type Annotation struct {
	Label          Label   `json:"label"`
	Confidence     float64 `json:"confidence"`
	Band           string  `json:"band"`
	HighConfidence bool    `json:"highConfidence"`
	LowConfidence  bool    `json:"lowConfidence"`
	Message        string  `json:"message,omitempty"`
	RemedyHTML     string  `json:"remedyHtml,omitempty"`
}

// Interpret annotates a prediction. A nil prediction yields a nil annotation.
// A remedy that fails to render is dropped rather than shown half-formatted.
func Interpret(p *classifier.Prediction) *Annotation {
	if p == nil {
		return nil
	}

	band := BandFor(p.Confidence)
	a := &Annotation{
		Label:          FormatLabel(p.Label),
		Confidence:     p.Confidence,
		Band:           band.String(),
		HighConfidence: band == BandHigh,
		LowConfidence:  band == BandLow,
	}
	switch band {
	case BandHigh:
		a.Message = HighConfidenceMessage
	case BandLow:
		a.Message = LowConfidenceMessage
	}

	if html, err := RenderRemedy(p.Remedy); err == nil {
		a.RemedyHTML = html
	}
	return a
}

var markdown = goldmark.New(goldmark.WithExtensions(extension.GFM))

// RenderRemedy converts remedy markdown to HTML. Raw HTML in the input is
// not passed through. Blank input renders to "".
func RenderRemedy(remedy string) (string, error) {
	if strings.TrimSpace(remedy) == "" {
		return "", nil
	}
	var buf bytes.Buffer
	if err := markdown.Convert([]byte(remedy), &buf); err != nil {
		return "", fmt.Errorf("render remedy: %w", err)
	}
	return buf.String(), nil
}
