package testsupport

import (
	"context"
	"sync"

	"hermes/internal/domain/record"
	"hermes/pkg/errors"
)

// RecordGraph is an in-memory record graph for tests. Attributes must be
// declared per model; resolving an undeclared attribute fails with
// errors.ErrNotFound, a declared but unset one returns an empty value.
type RecordGraph struct {
	mu       sync.RWMutex
	declared map[string]map[string]bool               // model -> attribute set
	values   map[record.Ref]map[string]record.Value   // per-record attribute values
	files    map[record.Ref][]record.FileBlob         // per-record attachments
	messages map[record.Ref][]record.Message          // per-record conversation log
	notes    map[record.Ref][]string                  // posted HTML notes
	fields   map[record.Ref]map[string]string         // written field values
	kinds    map[string]map[string]record.FieldKind   // model -> field -> kind
}

// NewRecordGraph creates an empty graph.
func NewRecordGraph() *RecordGraph {
	return &RecordGraph{
		declared: make(map[string]map[string]bool),
		values:   make(map[record.Ref]map[string]record.Value),
		files:    make(map[record.Ref][]record.FileBlob),
		messages: make(map[record.Ref][]record.Message),
		notes:    make(map[record.Ref][]string),
		fields:   make(map[record.Ref]map[string]string),
		kinds:    make(map[string]map[string]record.FieldKind),
	}
}

// Declare registers attribute names on a model.
func (g *RecordGraph) Declare(model string, attrs ...string) *RecordGraph {
	g.mu.Lock()
	defer g.mu.Unlock()

	set, ok := g.declared[model]
	if !ok {
		set = make(map[string]bool)
		g.declared[model] = set
	}
	for _, a := range attrs {
		set[a] = true
	}
	return g
}

// Set assigns an attribute value on a record, declaring the attribute.
func (g *RecordGraph) Set(ref record.Ref, attr string, val record.Value) *RecordGraph {
	g.Declare(ref.Model, attr)

	g.mu.Lock()
	defer g.mu.Unlock()

	m, ok := g.values[ref]
	if !ok {
		m = make(map[string]record.Value)
		g.values[ref] = m
	}
	m[attr] = val
	return g
}

// SetScalar assigns a scalar attribute value.
func (g *RecordGraph) SetScalar(ref record.Ref, attr string, v interface{}) *RecordGraph {
	return g.Set(ref, attr, record.Value{Scalar: v})
}

// SetRelation assigns a many-to-one attribute value.
func (g *RecordGraph) SetRelation(ref record.Ref, attr string, target record.Ref) *RecordGraph {
	return g.Set(ref, attr, record.Value{Record: &target})
}

// SetRelations assigns a one-to-many attribute value.
func (g *RecordGraph) SetRelations(ref record.Ref, attr string, targets ...record.Ref) *RecordGraph {
	return g.Set(ref, attr, record.Value{Records: targets})
}

// AddFile appends an attachment to a record.
func (g *RecordGraph) AddFile(ref record.Ref, blob record.FileBlob) *RecordGraph {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.files[ref] = append(g.files[ref], blob)
	return g
}

// AddMessage appends a conversation log entry.
func (g *RecordGraph) AddMessage(ref record.Ref, msg record.Message) *RecordGraph {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.messages[ref] = append(g.messages[ref], msg)
	return g
}

// DeclareField registers a writable field with its kind.
func (g *RecordGraph) DeclareField(model, field string, kind record.FieldKind) *RecordGraph {
	g.mu.Lock()
	defer g.mu.Unlock()

	m, ok := g.kinds[model]
	if !ok {
		m = make(map[string]record.FieldKind)
		g.kinds[model] = m
	}
	m[field] = kind
	return g
}

// ResolveAttribute implements record.Resolver.
func (g *RecordGraph) ResolveAttribute(_ context.Context, ref record.Ref, name string) (record.Value, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	if !g.declared[ref.Model][name] {
		return record.Value{}, errors.Wrapf(errors.ErrNotFound, "attribute %q on model %s", name, ref.Model)
	}
	return g.values[ref][name], nil
}

// ListAttachments implements record.AttachmentStore.
func (g *RecordGraph) ListAttachments(_ context.Context, ref record.Ref) ([]record.FileBlob, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return append([]record.FileBlob(nil), g.files[ref]...), nil
}

// FetchMessages implements record.ConversationLog.
func (g *RecordGraph) FetchMessages(_ context.Context, ref record.Ref) ([]record.Message, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return append([]record.Message(nil), g.messages[ref]...), nil
}

// PostNote implements record.ConversationLog.
func (g *RecordGraph) PostNote(_ context.Context, ref record.Ref, html string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.notes[ref] = append(g.notes[ref], html)
	return nil
}

// Notes returns HTML notes posted to a record.
func (g *RecordGraph) Notes(ref record.Ref) []string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return append([]string(nil), g.notes[ref]...)
}

// FieldType implements record.Writer.
func (g *RecordGraph) FieldType(_ context.Context, ref record.Ref, field string) (record.FieldKind, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	kind, ok := g.kinds[ref.Model][field]
	if !ok {
		return "", errors.Wrapf(errors.ErrSchema, "field %q is not declared on model %s", field, ref.Model)
	}
	return kind, nil
}

// WriteField implements record.Writer.
func (g *RecordGraph) WriteField(_ context.Context, ref record.Ref, field string, value string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, ok := g.kinds[ref.Model][field]; !ok {
		return errors.Wrapf(errors.ErrSchema, "field %q is not declared on model %s", field, ref.Model)
	}

	m, ok := g.fields[ref]
	if !ok {
		m = make(map[string]string)
		g.fields[ref] = m
	}
	m[field] = value
	return nil
}

// Field returns the last value written to a field.
func (g *RecordGraph) Field(ref record.Ref, field string) string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.fields[ref][field]
}
