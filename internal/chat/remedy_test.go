package chat

import (
	"context"
	"errors"
	"strings"
	"testing"

	"google.golang.org/genai"
)

type fakeGenerator struct {
	calls  int
	model  string
	prompt string
	reply  string
	err    error
}

func (f *fakeGenerator) GenerateContent(_ context.Context, model string, contents []*genai.Content, _ *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	f.calls++
	f.model = model
	f.prompt = contents[0].Parts[0].Text
	if f.err != nil {
		return nil, f.err
	}
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			Content: &genai.Content{Role: "model", Parts: []*genai.Part{{Text: f.reply}}},
		}},
	}, nil
}

func TestSuggestRemedy(t *testing.T) {
	gen := &fakeGenerator{reply: "1. Remove infected leaves.\n2. Apply copper fungicide.\n"}
	a := NewAdviser(gen, ModelGemini25FlashLite)

	got, err := a.SuggestRemedy(context.Background(), "Tomato___Late_blight")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "1. Remove infected leaves.\n2. Apply copper fungicide." {
		t.Errorf("remedy = %q", got)
	}
	if gen.model != ModelGemini25FlashLite {
		t.Errorf("model = %q", gen.model)
	}
	if !strings.Contains(gen.prompt, "'Tomato___Late_blight'") || !strings.HasPrefix(gen.prompt, "You are an agricultural expert.") {
		t.Errorf("unexpected prompt: %q", gen.prompt)
	}
}

func TestSuggestRemedyHealthySkipsAPI(t *testing.T) {
	gen := &fakeGenerator{reply: "should not be used"}
	a := NewAdviser(gen, "")

	got, err := a.SuggestRemedy(context.Background(), "Apple___healthy")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != HealthyRemedy {
		t.Errorf("remedy = %q, want %q", got, HealthyRemedy)
	}
	if gen.calls != 0 {
		t.Errorf("expected no API call, got %d", gen.calls)
	}
}

func TestSuggestRemedyErrors(t *testing.T) {
	apiErr := errors.New("quota exceeded")
	a := NewAdviser(&fakeGenerator{err: apiErr}, "")
	if _, err := a.SuggestRemedy(context.Background(), "Leaf Blight"); !errors.Is(err, apiErr) {
		t.Errorf("expected wrapped API error, got %v", err)
	}

	a = NewAdviser(&fakeGenerator{reply: "   "}, "")
	if _, err := a.SuggestRemedy(context.Background(), "Leaf Blight"); !errors.Is(err, ErrEmptyResponse) {
		t.Errorf("expected ErrEmptyResponse, got %v", err)
	}
}

func TestGetModelName(t *testing.T) {
	t.Setenv("GEMINI_MODEL", "")
	if got := GetModelName(""); got != DefaultModelName {
		t.Errorf("default: got %q", got)
	}

	t.Setenv("GEMINI_MODEL", ModelGemini25Pro)
	if got := GetModelName(""); got != ModelGemini25Pro {
		t.Errorf("env: got %q", got)
	}
	if got := GetModelName(ModelGemini3FlashPreview); got != ModelGemini3FlashPreview {
		t.Errorf("configured: got %q", got)
	}
}
