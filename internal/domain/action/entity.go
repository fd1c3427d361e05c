package action

import (
	"strings"

	"hermes/pkg/errors"
)

// Provider is an AI vendor configuration entry. Referenced by models,
// never mutated during a batch of invocations.
type Provider struct {
	Code           string // technical code, e.g. "openai", "anthropic"
	Name           string
	CredentialRef  string // opaque handle resolved through the credential source
	SupportsVision bool
	SupportsFiles  bool
	Sequence       int
	Active         bool
}

// Model is a specific vendor offering selected for an action.
// Capability flags can only narrow the owning provider's flags.
type Model struct {
	ID             string
	ProviderCode   string
	Name           string // human-readable
	ModelName      string // identifier in the provider's API
	MaxAttachments int
	AllowedFormats []string // mime types accepted as attachments
	SupportsVision bool
	SupportsFiles  bool
	MaxTokens      int // optional per-model output ceiling, 0 = provider default
	Active         bool
}

// Narrow clamps the model's capability flags to the provider's.
func (m Model) Narrow(p Provider) Model {
	m.SupportsVision = m.SupportsVision && p.SupportsVision
	m.SupportsFiles = m.SupportsFiles && p.SupportsFiles
	return m
}

// FormatAllowed reports whether a mime type is in the model's allowed set.
// An empty set allows nothing.
func (m Model) FormatAllowed(mime string) bool {
	for _, f := range m.AllowedFormats {
		if strings.EqualFold(f, mime) {
			return true
		}
	}
	return false
}

// Destination selects where the AI response is written.
type Destination string

const (
	DestinationChatter Destination = "chatter"
	DestinationField   Destination = "field"
)

// ChatterMode selects which conversation-log messages feed the prompt.
type ChatterMode string

const (
	ChatterNone     ChatterMode = "none"
	ChatterAll      ChatterMode = "all"
	ChatterFiltered ChatterMode = "filtered"
)

// ChatterFilter narrows conversation history by author or message type.
// Empty Authors/Types in filtered mode match nothing.
type ChatterFilter struct {
	Mode    ChatterMode
	Authors []string
	Types   []string
}

// Wants reports whether any history should be fetched at all.
func (f ChatterFilter) Wants() bool {
	return f.Mode == ChatterAll || f.Mode == ChatterFiltered
}

// Matches reports whether a message with the given author and type passes
// the filter. In filtered mode each non-empty list constrains; a filter
// with both lists empty matches nothing.
func (f ChatterFilter) Matches(author, msgType string) bool {
	switch f.Mode {
	case ChatterAll:
		return true
	case ChatterFiltered:
		if len(f.Authors) == 0 && len(f.Types) == 0 {
			return false
		}
		if len(f.Authors) > 0 && !containsFold(f.Authors, author) {
			return false
		}
		if len(f.Types) > 0 && !containsFold(f.Types, msgType) {
			return false
		}
		return true
	default:
		return false
	}
}

func containsFold(list []string, s string) bool {
	for _, v := range list {
		if strings.EqualFold(v, s) {
			return true
		}
	}
	return false
}

// Config is the per-trigger action configuration.
type Config struct {
	ID                    string
	Name                  string
	ModelID               string
	PromptTemplate        string
	IncludeReport         string // report reference, empty = none
	IncludeAllAttachments bool
	Chatter               ChatterFilter
	OutputDestination     Destination
	OutputField           string // required iff OutputDestination == field
	NotifyUser            string // completion notification target, empty = none
}

// Validate checks the configuration invariants.
func (c Config) Validate() error {
	if c.ModelID == "" {
		return errors.Wrap(errors.ErrInvalidConfig, "model reference is required")
	}
	if c.PromptTemplate == "" {
		return errors.Wrap(errors.ErrInvalidConfig, "prompt template is required")
	}

	switch c.OutputDestination {
	case DestinationChatter:
		if c.OutputField != "" {
			return errors.Wrap(errors.ErrInvalidConfig, "output field must be empty for chatter destination")
		}
	case DestinationField:
		if c.OutputField == "" {
			return errors.Wrap(errors.ErrInvalidConfig, "output field is required for field destination")
		}
	default:
		return errors.Wrapf(errors.ErrInvalidConfig, "unknown output destination %q", c.OutputDestination)
	}

	switch c.Chatter.Mode {
	case ChatterNone, ChatterAll, ChatterFiltered, "":
	default:
		return errors.Wrapf(errors.ErrInvalidConfig, "unknown chatter mode %q", c.Chatter.Mode)
	}

	return nil
}
