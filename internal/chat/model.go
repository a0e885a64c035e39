package chat

import "os"

// Gemini Model IDs
//
// | Model Name             | API Model ID           | Use Case                      |
// |------------------------|------------------------|-------------------------------|
// | Gemini 2.5 Pro         | gemini-2.5-pro         | Stable, high-reasoning tasks  |
// | Gemini 2.5 Flash       | gemini-2.5-flash       | Stable, balanced performance  |
// | Gemini 2.5 Flash-Lite  | gemini-2.5-flash-lite  | High-throughput, lowest cost  |
// | Gemini 3 Flash (Prev.) | gemini-3-flash-preview | Best for speed + intelligence |
const (
	// ModelGemini25Pro is stable, for high-reasoning tasks.
	ModelGemini25Pro = "gemini-2.5-pro"

	// ModelGemini25Flash is stable, balanced performance.
	ModelGemini25Flash = "gemini-2.5-flash"

	// ModelGemini25FlashLite is for high-throughput, lowest cost.
	ModelGemini25FlashLite = "gemini-2.5-flash-lite"

	// ModelGemini3FlashPreview is best for speed + intelligence.
	ModelGemini3FlashPreview = "gemini-3-flash-preview"
)

// DefaultModelName is the default Gemini model for remedy suggestions.
const DefaultModelName = ModelGemini25Flash

// GetModelName returns the Gemini model to use, resolved from:
//  1. configured, when non-empty (config file or --model flag)
//  2. GEMINI_MODEL environment variable
//  3. DefaultModelName
func GetModelName(configured string) string {
	if configured != "" {
		return configured
	}
	if env := os.Getenv("GEMINI_MODEL"); env != "" {
		return env
	}
	return DefaultModelName
}
