package postgres

import (
	"context"

	"github.com/lib/pq"

	"hermes/internal/domain/action"
	"hermes/pkg/errors"
)

// ConfigSource loads providers, models and action configurations from
// Postgres and builds immutable snapshots. Each Snapshot call reads fresh
// rows; the snapshot itself is never refreshed in place.
type ConfigSource struct {
	db DBTX
}

// NewConfigSource creates a Postgres-backed configuration source.
func NewConfigSource(db DBTX) *ConfigSource {
	return &ConfigSource{db: db}
}

type providerRow struct {
	Code           string `db:"code"`
	Name           string `db:"name"`
	CredentialRef  string `db:"credential_ref"`
	SupportsVision bool   `db:"supports_vision"`
	SupportsFiles  bool   `db:"supports_files"`
	Sequence       int    `db:"sequence"`
	Active         bool   `db:"active"`
}

type modelRow struct {
	ID             string         `db:"id"`
	ProviderCode   string         `db:"provider_code"`
	Name           string         `db:"name"`
	ModelName      string         `db:"model_name"`
	MaxAttachments int            `db:"max_attachments"`
	AllowedFormats pq.StringArray `db:"allowed_formats"`
	SupportsVision bool           `db:"supports_vision"`
	SupportsFiles  bool           `db:"supports_files"`
	MaxTokens      int            `db:"max_tokens"`
	Active         bool           `db:"active"`
}

type actionRow struct {
	ID                    string         `db:"id"`
	Name                  string         `db:"name"`
	ModelID               string         `db:"model_id"`
	PromptTemplate        string         `db:"prompt_template"`
	IncludeReport         string         `db:"include_report"`
	IncludeAllAttachments bool           `db:"include_all_attachments"`
	ChatterMode           string         `db:"chatter_mode"`
	ChatterAuthors        pq.StringArray `db:"chatter_authors"`
	ChatterTypes          pq.StringArray `db:"chatter_types"`
	OutputDestination     string         `db:"output_destination"`
	OutputField           string         `db:"output_field"`
	NotifyUser            string         `db:"notify_user"`
}

// Snapshot reads the current configuration and builds an immutable view.
func (s *ConfigSource) Snapshot(ctx context.Context) (*action.Snapshot, error) {
	var provRows []providerRow
	err := s.db.SelectContext(ctx, &provRows, `
		SELECT code, name, credential_ref, supports_vision, supports_files, sequence, active
		FROM ai_providers
		ORDER BY sequence, code
	`)
	if err != nil {
		return nil, errors.Wrap(err, "load providers")
	}

	var modRows []modelRow
	err = s.db.SelectContext(ctx, &modRows, `
		SELECT id, provider_code, name, model_name, max_attachments,
		       allowed_formats, supports_vision, supports_files, max_tokens, active
		FROM ai_models
		ORDER BY id
	`)
	if err != nil {
		return nil, errors.Wrap(err, "load models")
	}

	var actRows []actionRow
	err = s.db.SelectContext(ctx, &actRows, `
		SELECT id, name, model_id, prompt_template,
		       COALESCE(include_report, '') AS include_report,
		       include_all_attachments,
		       chatter_mode, chatter_authors, chatter_types,
		       output_destination,
		       COALESCE(output_field, '') AS output_field,
		       COALESCE(notify_user, '') AS notify_user
		FROM ai_actions
		ORDER BY id
	`)
	if err != nil {
		return nil, errors.Wrap(err, "load actions")
	}

	providers := make([]action.Provider, 0, len(provRows))
	for _, r := range provRows {
		providers = append(providers, action.Provider{
			Code:           r.Code,
			Name:           r.Name,
			CredentialRef:  r.CredentialRef,
			SupportsVision: r.SupportsVision,
			SupportsFiles:  r.SupportsFiles,
			Sequence:       r.Sequence,
			Active:         r.Active,
		})
	}

	models := make([]action.Model, 0, len(modRows))
	for _, r := range modRows {
		models = append(models, action.Model{
			ID:             r.ID,
			ProviderCode:   r.ProviderCode,
			Name:           r.Name,
			ModelName:      r.ModelName,
			MaxAttachments: r.MaxAttachments,
			AllowedFormats: r.AllowedFormats,
			SupportsVision: r.SupportsVision,
			SupportsFiles:  r.SupportsFiles,
			MaxTokens:      r.MaxTokens,
			Active:         r.Active,
		})
	}

	actions := make([]action.Config, 0, len(actRows))
	for _, r := range actRows {
		actions = append(actions, action.Config{
			ID:                    r.ID,
			Name:                  r.Name,
			ModelID:               r.ModelID,
			PromptTemplate:        r.PromptTemplate,
			IncludeReport:         r.IncludeReport,
			IncludeAllAttachments: r.IncludeAllAttachments,
			Chatter: action.ChatterFilter{
				Mode:    action.ChatterMode(r.ChatterMode),
				Authors: r.ChatterAuthors,
				Types:   r.ChatterTypes,
			},
			OutputDestination: action.Destination(r.OutputDestination),
			OutputField:       r.OutputField,
			NotifyUser:        r.NotifyUser,
		})
	}

	return action.NewSnapshot(providers, models, actions)
}
