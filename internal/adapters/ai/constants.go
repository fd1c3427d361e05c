package ai

// ProviderName represents an AI provider identifier
type ProviderName string

// Provider name constants
const (
	ProviderNameOpenAI     ProviderName = "openai"
	ProviderNameAnthropic  ProviderName = "anthropic"
	ProviderNameGoogle     ProviderName = "google"
	ProviderNameOpenRouter ProviderName = "openrouter"
)

// String returns the string representation of the provider name
func (p ProviderName) String() string {
	return string(p)
}

// IsValid checks if the provider name has a built-in client
func (p ProviderName) IsValid() bool {
	switch p {
	case ProviderNameOpenAI, ProviderNameAnthropic, ProviderNameGoogle, ProviderNameOpenRouter:
		return true
	default:
		return false
	}
}

// AllProviderNames returns all built-in provider names
func AllProviderNames() []ProviderName {
	return []ProviderName{
		ProviderNameOpenAI,
		ProviderNameAnthropic,
		ProviderNameGoogle,
		ProviderNameOpenRouter,
	}
}

// Allowed image mimetypes for vision-capable models
var imageMimeTypes = map[string]bool{
	"image/png":  true,
	"image/jpeg": true,
	"image/jpg":  true,
	"image/gif":  true,
	"image/webp": true,
}

// IsImageMime reports whether a mimetype is a supported image format.
func IsImageMime(mime string) bool {
	return imageMimeTypes[mime]
}
