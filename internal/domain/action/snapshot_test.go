package action

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hermes/pkg/errors"
)

func validProviders() []Provider {
	return []Provider{
		{Code: "openai", Name: "OpenAI", SupportsVision: true, SupportsFiles: true, Active: true},
		{Code: "anthropic", Name: "Anthropic", SupportsVision: true, SupportsFiles: false, Active: true},
		{Code: "legacy", Name: "Legacy", Active: false},
	}
}

func validModels() []Model {
	return []Model{
		{ID: "m1", ProviderCode: "openai", ModelName: "gpt-4o", SupportsVision: true, SupportsFiles: true, Active: true},
		{ID: "m2", ProviderCode: "anthropic", ModelName: "claude-sonnet-4-20250514", SupportsVision: true, SupportsFiles: true, Active: true},
		{ID: "m3", ProviderCode: "openai", ModelName: "gpt-3.5-turbo", Active: false},
	}
}

func validActions() []Config {
	return []Config{{
		ID: "a1", Name: "Summarize", ModelID: "m1",
		PromptTemplate:    "Summarize {{ record.name }}",
		OutputDestination: DestinationChatter,
	}}
}

func TestNewSnapshotExcludesInactive(t *testing.T) {
	snap, err := NewSnapshot(validProviders(), validModels(), validActions())
	require.NoError(t, err)

	_, err = snap.Provider("legacy")
	assert.True(t, errors.Is(err, errors.ErrNotFound))

	_, err = snap.Model("m3")
	assert.True(t, errors.Is(err, errors.ErrNotFound))
}

func TestNewSnapshotNarrowsModelCapabilities(t *testing.T) {
	snap, err := NewSnapshot(validProviders(), validModels(), nil)
	require.NoError(t, err)

	// anthropic entry has SupportsFiles disabled, so the model's flag drops
	m, err := snap.Model("m2")
	require.NoError(t, err)
	assert.True(t, m.SupportsVision)
	assert.False(t, m.SupportsFiles)
}

func TestNewSnapshotRejectsUnknownReferences(t *testing.T) {
	_, err := NewSnapshot(validProviders(), []Model{
		{ID: "mx", ProviderCode: "nope", ModelName: "x", Active: true},
	}, nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrInvalidConfig))

	_, err = NewSnapshot(validProviders(), validModels(), []Config{{
		ID: "ax", ModelID: "missing", PromptTemplate: "x", OutputDestination: DestinationChatter,
	}})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrInvalidConfig))
}

func TestNewSnapshotRejectsDuplicateProviders(t *testing.T) {
	_, err := NewSnapshot([]Provider{
		{Code: "openai", Active: true},
		{Code: "openai", Active: true},
	}, nil, nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrInvalidConfig))
}

func TestSnapshotResolve(t *testing.T) {
	snap, err := NewSnapshot(validProviders(), validModels(), validActions())
	require.NoError(t, err)

	cfg, model, provider, err := snap.Resolve("a1")
	require.NoError(t, err)
	assert.Equal(t, "a1", cfg.ID)
	assert.Equal(t, "gpt-4o", model.ModelName)
	assert.Equal(t, "openai", provider.Code)

	_, _, _, err = snap.Resolve("missing")
	assert.True(t, errors.Is(err, errors.ErrNotFound))
}

func TestConfigValidate(t *testing.T) {
	base := Config{
		ID: "a", ModelID: "m", PromptTemplate: "p",
		OutputDestination: DestinationChatter,
	}

	tests := []struct {
		name   string
		mutate func(*Config)
		ok     bool
	}{
		{"valid chatter", nil, true},
		{"valid field", func(c *Config) {
			c.OutputDestination = DestinationField
			c.OutputField = "summary"
		}, true},
		{"missing model", func(c *Config) { c.ModelID = "" }, false},
		{"missing template", func(c *Config) { c.PromptTemplate = "" }, false},
		{"field destination without field", func(c *Config) {
			c.OutputDestination = DestinationField
		}, false},
		{"chatter destination with field", func(c *Config) {
			c.OutputField = "summary"
		}, false},
		{"unknown destination", func(c *Config) { c.OutputDestination = "pigeon" }, false},
		{"unknown chatter mode", func(c *Config) { c.Chatter.Mode = "some" }, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base
			if tt.mutate != nil {
				tt.mutate(&cfg)
			}
			err := cfg.Validate()
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.True(t, errors.Is(err, errors.ErrInvalidConfig))
			}
		})
	}
}

func TestModelFormatAllowed(t *testing.T) {
	m := Model{AllowedFormats: []string{"application/pdf", "image/PNG"}}
	assert.True(t, m.FormatAllowed("application/pdf"))
	assert.True(t, m.FormatAllowed("image/png"))
	assert.False(t, m.FormatAllowed("video/mp4"))

	empty := Model{}
	assert.False(t, empty.FormatAllowed("application/pdf"))
}

func TestChatterFilterMatches(t *testing.T) {
	tests := []struct {
		name    string
		filter  ChatterFilter
		author  string
		msgType string
		want    bool
	}{
		{"none never matches", ChatterFilter{Mode: ChatterNone}, "a", "comment", false},
		{"all matches", ChatterFilter{Mode: ChatterAll}, "a", "comment", true},
		{"filtered empty matches nothing", ChatterFilter{Mode: ChatterFiltered}, "a", "comment", false},
		{"filtered by author", ChatterFilter{Mode: ChatterFiltered, Authors: []string{"Alice"}}, "alice", "comment", true},
		{"filtered wrong author", ChatterFilter{Mode: ChatterFiltered, Authors: []string{"Alice"}}, "Bob", "comment", false},
		{"filtered by type", ChatterFilter{Mode: ChatterFiltered, Types: []string{"note"}}, "anyone", "note", true},
		{"both lists must match", ChatterFilter{
			Mode: ChatterFiltered, Authors: []string{"Alice"}, Types: []string{"note"},
		}, "Alice", "comment", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.filter.Matches(tt.author, tt.msgType))
		})
	}
}
