package ai

import "hermes/internal/domain/action"

// Built-in catalog of providers and a representative model per vendor.
// Deployments that run without a configuration database start from this
// catalog and override it through the configuration source.

var defaultFormats = []string{
	"application/pdf",
	"text/plain",
	"text/csv",
	"image/png",
	"image/jpeg",
	"image/gif",
	"image/webp",
}

// CatalogProviders returns the built-in provider entries.
func CatalogProviders() []action.Provider {
	return []action.Provider{
		{Code: "openai", Name: "OpenAI", SupportsVision: true, SupportsFiles: true, Sequence: 10, Active: true},
		{Code: "anthropic", Name: "Anthropic", SupportsVision: true, SupportsFiles: true, Sequence: 20, Active: true},
		{Code: "google", Name: "Google Gemini", SupportsVision: true, SupportsFiles: true, Sequence: 30, Active: true},
		{Code: "openrouter", Name: "OpenRouter", SupportsVision: true, SupportsFiles: true, Sequence: 40, Active: true},
	}
}

// CatalogModels returns the built-in model entries, one default per vendor.
func CatalogModels() []action.Model {
	return []action.Model{
		{
			ID: "openai-gpt-4o", ProviderCode: "openai",
			Name: "GPT-4o", ModelName: "gpt-4o",
			MaxAttachments: 10, AllowedFormats: defaultFormats,
			SupportsVision: true, SupportsFiles: true, Active: true,
		},
		{
			ID: "anthropic-claude-sonnet-4", ProviderCode: "anthropic",
			Name: "Claude Sonnet 4", ModelName: "claude-sonnet-4-20250514",
			MaxAttachments: 20, AllowedFormats: defaultFormats,
			SupportsVision: true, SupportsFiles: true, Active: true,
		},
		{
			ID: "google-gemini-2-5-flash", ProviderCode: "google",
			Name: "Gemini 2.5 Flash", ModelName: "gemini-2.5-flash",
			MaxAttachments: 10, AllowedFormats: defaultFormats,
			SupportsVision: true, SupportsFiles: true, Active: true,
		},
		{
			ID: "openrouter-gpt-4o-mini", ProviderCode: "openrouter",
			Name: "GPT-4o mini (OpenRouter)", ModelName: "openai/gpt-4o-mini",
			MaxAttachments: 10, AllowedFormats: defaultFormats,
			SupportsVision: true, SupportsFiles: true, Active: true,
		},
	}
}
