package interpret

import (
	"strings"
	"testing"

	"github.com/fpang/leafscan/internal/classifier"
	"github.com/google/go-cmp/cmp"
)

func TestBandFor(t *testing.T) {
	tests := []struct {
		confidence float64
		want       Band
	}{
		{100, BandHigh},
		{92, BandHigh},
		{80.01, BandHigh},
		{80, BandNeutral},
		{70, BandNeutral},
		{60, BandNeutral},
		{59.99, BandLow},
		{45, BandLow},
		{0, BandLow},
	}

	for _, tt := range tests {
		if got := BandFor(tt.confidence); got != tt.want {
			t.Errorf("BandFor(%v) = %v, want %v", tt.confidence, got, tt.want)
		}
	}
}

func TestInterpretFlags(t *testing.T) {
	tests := []struct {
		confidence float64
		high, low  bool
		message    string
	}{
		{92, true, false, HighConfidenceMessage},
		{45, false, true, LowConfidenceMessage},
		{70, false, false, ""},
	}

	for _, tt := range tests {
		a := Interpret(&classifier.Prediction{Label: "Apple___Black_rot", Confidence: tt.confidence})
		if a.HighConfidence != tt.high || a.LowConfidence != tt.low {
			t.Errorf("confidence %v: high=%v low=%v, want high=%v low=%v",
				tt.confidence, a.HighConfidence, a.LowConfidence, tt.high, tt.low)
		}
		if a.Message != tt.message {
			t.Errorf("confidence %v: message = %q, want %q", tt.confidence, a.Message, tt.message)
		}
	}
}

func TestInterpretLeafBlight(t *testing.T) {
	a := Interpret(&classifier.Prediction{Label: "Leaf Blight", Confidence: 92, Remedy: "Apply copper fungicide"})

	if !a.HighConfidence || a.Band != "high" {
		t.Errorf("expected high confidence, got %+v", a)
	}
	if !strings.Contains(a.RemedyHTML, "Apply copper fungicide") {
		t.Errorf("RemedyHTML = %q", a.RemedyHTML)
	}
}

func TestInterpretNil(t *testing.T) {
	if a := Interpret(nil); a != nil {
		t.Errorf("Interpret(nil) = %+v, want nil", a)
	}
}

func TestRenderRemedy(t *testing.T) {
	html, err := RenderRemedy("1. **Remove** infected leaves\n2. Apply copper fungicide")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, want := range []string{"<ol>", "<strong>Remove</strong>", "<li>Apply copper fungicide</li>"} {
		if !strings.Contains(html, want) {
			t.Errorf("RenderRemedy() missing %q:\n%s", want, html)
		}
	}
}

func TestRenderRemedyEmpty(t *testing.T) {
	for _, in := range []string{"", "   \n\t"} {
		html, err := RenderRemedy(in)
		if err != nil || html != "" {
			t.Errorf("RenderRemedy(%q) = %q, %v; want empty", in, html, err)
		}
	}
}

func TestRenderRemedyDropsRawHTML(t *testing.T) {
	html, err := RenderRemedy("<script>alert(1)</script>\n\nSpray neem oil")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if strings.Contains(html, "<script>") {
		t.Errorf("raw HTML passed through:\n%s", html)
	}
}

func TestFormatLabel(t *testing.T) {
	tests := []struct {
		raw  string
		want Label
	}{
		{"Tomato___Late_blight", Label{Raw: "Tomato___Late_blight", Crop: "Tomato", Condition: "Late blight"}},
		{"Corn_(maize)___Common_rust_", Label{Raw: "Corn_(maize)___Common_rust_", Crop: "Corn (maize)", Condition: "Common rust"}},
		{"Apple___healthy", Label{Raw: "Apple___healthy", Crop: "Apple", Condition: "Healthy", Healthy: true}},
		{"Leaf Blight", Label{Raw: "Leaf Blight", Condition: "Leaf Blight"}},
		{"Pomme___écorce_noire", Label{Raw: "Pomme___écorce_noire", Crop: "Pomme", Condition: "Écorce noire"}},
		{"", Label{}},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			if diff := cmp.Diff(tt.want, FormatLabel(tt.raw)); diff != "" {
				t.Errorf("FormatLabel(%q) mismatch (-want +got):\n%s", tt.raw, diff)
			}
		})
	}
}

func TestLabelString(t *testing.T) {
	if got := FormatLabel("Potato___Early_blight").String(); got != "Potato: Early blight" {
		t.Errorf("String() = %q", got)
	}
	if got := FormatLabel("Leaf Blight").String(); got != "Leaf Blight" {
		t.Errorf("String() = %q", got)
	}
}
