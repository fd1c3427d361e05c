package record

import "context"

// Resolver provides read-only access to the external record graph.
// Attribute names that are not declared on the record's model return
// errors.ErrNotFound; declared but unset optional attributes return an
// empty Value with no error.
type Resolver interface {
	ResolveAttribute(ctx context.Context, ref Ref, name string) (Value, error)
}

// AttachmentStore lists files already associated with a record,
// in the store's natural order.
type AttachmentStore interface {
	ListAttachments(ctx context.Context, ref Ref) ([]FileBlob, error)
}

// ConversationLog reads and writes a record's conversation history.
type ConversationLog interface {
	FetchMessages(ctx context.Context, ref Ref) ([]Message, error)

	// PostNote appends an HTML note to the record's conversation log.
	PostNote(ctx context.Context, ref Ref, html string) error
}

// Writer updates a single field on a record. Writes to an unknown field
// or with an incompatible value fail with errors.ErrSchema.
type Writer interface {
	FieldType(ctx context.Context, ref Ref, field string) (FieldKind, error)
	WriteField(ctx context.Context, ref Ref, field string, value string) error
}
