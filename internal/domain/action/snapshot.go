package action

import (
	"hermes/pkg/errors"
)

// Snapshot is an immutable view of providers, models and action
// configurations. Built once, read concurrently, never mutated.
type Snapshot struct {
	providers map[string]Provider
	models    map[string]Model
	actions   map[string]Config
}

// NewSnapshot builds a snapshot from configuration entities. Inactive
// providers and models are excluded. Model capability flags are narrowed
// to their provider's at build time.
func NewSnapshot(providers []Provider, models []Model, actions []Config) (*Snapshot, error) {
	s := &Snapshot{
		providers: make(map[string]Provider, len(providers)),
		models:    make(map[string]Model, len(models)),
		actions:   make(map[string]Config, len(actions)),
	}

	for _, p := range providers {
		if !p.Active {
			continue
		}
		if p.Code == "" {
			return nil, errors.Wrap(errors.ErrInvalidConfig, "provider code is empty")
		}
		if _, dup := s.providers[p.Code]; dup {
			return nil, errors.Wrapf(errors.ErrInvalidConfig, "duplicate provider code %q", p.Code)
		}
		s.providers[p.Code] = p
	}

	for _, m := range models {
		if !m.Active {
			continue
		}
		p, ok := s.providers[m.ProviderCode]
		if !ok {
			return nil, errors.Wrapf(errors.ErrInvalidConfig, "model %q references unknown provider %q", m.ID, m.ProviderCode)
		}
		s.models[m.ID] = m.Narrow(p)
	}

	for _, a := range actions {
		if err := a.Validate(); err != nil {
			return nil, errors.Wrapf(err, "action %q", a.ID)
		}
		if _, ok := s.models[a.ModelID]; !ok {
			return nil, errors.Wrapf(errors.ErrInvalidConfig, "action %q references unknown model %q", a.ID, a.ModelID)
		}
		s.actions[a.ID] = a
	}

	return s, nil
}

// Provider returns an active provider by code.
func (s *Snapshot) Provider(code string) (Provider, error) {
	p, ok := s.providers[code]
	if !ok {
		return Provider{}, errors.Wrapf(errors.ErrNotFound, "provider %q", code)
	}
	return p, nil
}

// Model returns an active model by ID with capability flags already narrowed.
func (s *Snapshot) Model(id string) (Model, error) {
	m, ok := s.models[id]
	if !ok {
		return Model{}, errors.Wrapf(errors.ErrNotFound, "model %q", id)
	}
	return m, nil
}

// Action returns an action configuration by ID.
func (s *Snapshot) Action(id string) (Config, error) {
	a, ok := s.actions[id]
	if !ok {
		return Config{}, errors.Wrapf(errors.ErrNotFound, "action %q", id)
	}
	return a, nil
}

// Resolve returns the action, its model and the model's provider in one step.
func (s *Snapshot) Resolve(actionID string) (Config, Model, Provider, error) {
	a, err := s.Action(actionID)
	if err != nil {
		return Config{}, Model{}, Provider{}, err
	}
	m, err := s.Model(a.ModelID)
	if err != nil {
		return Config{}, Model{}, Provider{}, err
	}
	p, err := s.Provider(m.ProviderCode)
	if err != nil {
		return Config{}, Model{}, Provider{}, err
	}
	return a, m, p, nil
}
