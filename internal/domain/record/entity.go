package record

import "time"

// Ref identifies a record in the external record graph.
type Ref struct {
	Model string
	ID    string
}

// IsZero reports whether the reference is empty.
func (r Ref) IsZero() bool {
	return r.Model == "" && r.ID == ""
}

// Value is the result of resolving an attribute on a record: a scalar,
// a single related record, or a list of related records.
// The zero Value represents an unset optional attribute.
type Value struct {
	Scalar  interface{}
	Record  *Ref
	Records []Ref
}

// IsEmpty reports whether the value carries no data.
func (v Value) IsEmpty() bool {
	return v.Scalar == nil && v.Record == nil && len(v.Records) == 0
}

// IsRelation reports whether the value points at one or more related records.
func (v Value) IsRelation() bool {
	return v.Record != nil || len(v.Records) > 0
}

// FileBlob is a file associated with a record through the attachment store.
type FileBlob struct {
	Filename string
	MimeType string
	Data     []byte
}

// Message is a single entry in a record's conversation log.
type Message struct {
	Author    string
	Type      string
	Timestamp time.Time
	Body      string
}

// FieldKind describes the declared type of a writable record field.
type FieldKind string

const (
	FieldKindText FieldKind = "text"
	FieldKindHTML FieldKind = "html"
	FieldKindChar FieldKind = "char"
)
