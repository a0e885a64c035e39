// Package chat asks Gemini for treatment advice when the classifier
// returns a disease label without a remedy.
package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/fpang/leafscan/internal/interpret"
	"github.com/rs/zerolog/log"
	"google.golang.org/genai"
)

// HealthyRemedy is returned without calling Gemini for healthy labels.
const HealthyRemedy = "The plant appears healthy. No remedy needed."

// remedyPromptTemplate takes the disease class name.
const remedyPromptTemplate = "You are an agricultural expert. Provide a simple remedy in 2 small points for cure of the plant disease: '%s'."

// ErrEmptyResponse is returned when Gemini answers with no text.
var ErrEmptyResponse = errors.New("received empty response from Gemini API")

// ContentGenerator is the subset of the Gemini models service used here.
// (*genai.Client).Models satisfies it.
type ContentGenerator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// NewGeminiClient creates a Gemini API client for the given key.
func NewGeminiClient(ctx context.Context, apiKey string) (*genai.Client, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}
	return client, nil
}

// Adviser produces remedy suggestions for classifier labels.
type Adviser struct {
	models ContentGenerator
	model  string
}

// NewAdviser creates an Adviser. An empty model resolves via GetModelName.
func NewAdviser(models ContentGenerator, model string) *Adviser {
	return &Adviser{models: models, model: GetModelName(model)}
}

// BuildRemedyPrompt renders the remedy prompt for a class name.
func BuildRemedyPrompt(label string) string {
	return fmt.Sprintf(remedyPromptTemplate, label)
}

// SuggestRemedy returns markdown treatment advice for label. Healthy labels
// short-circuit to HealthyRemedy with no API call.
func (a *Adviser) SuggestRemedy(ctx context.Context, label string) (string, error) {
	if interpret.FormatLabel(label).Healthy {
		log.Debug().Str("label", label).Msg("Healthy label, skipping remedy request")
		return HealthyRemedy, nil
	}

	prompt := BuildRemedyPrompt(label)
	log.Debug().
		Str("model", a.model).
		Str("label", label).
		Int("prompt_length", len(prompt)).
		Msg("Starting Gemini API call for remedy suggestion")

	start := time.Now()
	contents := []*genai.Content{{Role: "user", Parts: []*genai.Part{{Text: prompt}}}}
	resp, err := a.models.GenerateContent(ctx, a.model, contents, nil)
	duration := time.Since(start)
	if err != nil {
		log.Error().Err(err).Dur("duration", duration).Msg("Failed to generate remedy from Gemini")
		return "", fmt.Errorf("failed to generate content: %w", err)
	}

	if resp == nil {
		return "", ErrEmptyResponse
	}
	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return "", ErrEmptyResponse
	}

	log.Debug().
		Int("response_length", len(text)).
		Dur("duration", duration).
		Msg("Gemini API response received for remedy suggestion")
	return text, nil
}
