package action

import (
	"context"

	"hermes/internal/domain/record"
)

// ReportGenerator renders a stored report definition to PDF bytes for a record.
type ReportGenerator interface {
	RenderReport(ctx context.Context, reportID string, ref record.Ref) ([]byte, error)
}

// NotificationSink delivers a best-effort message to a user.
// Failures are non-fatal to the invocation.
type NotificationSink interface {
	Notify(ctx context.Context, user string, text string) error
}

// CredentialSource resolves a provider's secret. Secrets are injected into
// provider clients at construction and never logged.
type CredentialSource interface {
	GetSecret(ctx context.Context, providerCode string) (string, error)
}

// Source produces immutable configuration snapshots. A snapshot is captured
// once per invocation batch so concurrent edits never produce torn reads.
type Source interface {
	Snapshot(ctx context.Context) (*Snapshot, error)
}
