package outputs

import (
	"context"

	"hermes/internal/domain/action"
	"hermes/internal/domain/record"
	"hermes/pkg/errors"
	"hermes/pkg/logger"
	"hermes/pkg/markdown"
)

// Router delivers a generated response to its configured destination.
// Content kind is decided by inspecting the text itself, never by which
// provider produced it.
type Router struct {
	chatterLog record.ConversationLog
	writer     record.Writer
	notifier   action.NotificationSink
	log        *logger.Logger
}

// New creates a router. notifier may be nil when completion notifications
// are disabled.
func New(
	chatterLog record.ConversationLog,
	writer record.Writer,
	notifier action.NotificationSink,
	log *logger.Logger,
) *Router {
	return &Router{
		chatterLog: chatterLog,
		writer:     writer,
		notifier:   notifier,
		log:        log,
	}
}

// Route writes the response text to the action's destination and fires
// the completion notification. Notification failures are logged, never
// returned; delivery of the response is what decides success.
func (r *Router) Route(ctx context.Context, cfg action.Config, ref record.Ref, text string) error {
	var err error
	switch cfg.OutputDestination {
	case action.DestinationChatter:
		err = r.postToChatter(ctx, ref, text)
	case action.DestinationField:
		err = r.writeToField(ctx, ref, cfg.OutputField, text)
	default:
		err = errors.Newf(errors.ErrInvalidConfig, "unknown output destination %q", cfg.OutputDestination)
	}
	if err != nil {
		return err
	}

	r.notify(ctx, cfg, ref)
	return nil
}

// postToChatter posts the response as an HTML note.
func (r *Router) postToChatter(ctx context.Context, ref record.Ref, text string) error {
	html := r.toHTML(ref, text)
	if err := r.chatterLog.PostNote(ctx, ref, html); err != nil {
		return errors.Wrap(err, "failed to post response note")
	}
	return nil
}

// writeToField writes the response to a record field. HTML fields get the
// converted form; text and char fields get the raw response so field
// contents stay greppable.
func (r *Router) writeToField(ctx context.Context, ref record.Ref, field string, text string) error {
	kind, err := r.writer.FieldType(ctx, ref, field)
	if err != nil {
		return errors.Wrapf(err, "failed to inspect output field %s", field)
	}

	value := text
	if kind == record.FieldKindHTML {
		value = r.toHTML(ref, text)
	}

	if err := r.writer.WriteField(ctx, ref, field, value); err != nil {
		return errors.Wrapf(err, "failed to write output field %s", field)
	}
	return nil
}

// toHTML converts the response to safe HTML based on its structure.
// Conversion failures degrade to escaped raw text instead of failing the
// invocation.
func (r *Router) toHTML(ref record.Ref, text string) string {
	switch markdown.Classify(text) {
	case markdown.KindHTML:
		return markdown.Sanitize(text)
	case markdown.KindMarkdown:
		html, err := markdown.ToHTML(text)
		if err != nil {
			r.log.Warnw("markdown conversion failed, delivering raw text",
				"record", ref.Model+"/"+ref.ID,
				"error", err,
			)
			return markdown.EscapeToHTML(text)
		}
		return html
	default:
		return markdown.EscapeToHTML(text)
	}
}

// NotifyFailure sends a best-effort failure notification. The error text
// is the classified message only; never the prompt or any credentials.
func (r *Router) NotifyFailure(ctx context.Context, cfg action.Config, ref record.Ref, cause error) {
	if r.notifier == nil || cfg.NotifyUser == "" {
		return
	}

	msg := "AI action \"" + cfg.Name + "\" failed for " + ref.Model + "/" + ref.ID + ": " + cause.Error()
	if err := r.notifier.Notify(ctx, cfg.NotifyUser, msg); err != nil {
		r.log.Warnw("failure notification failed",
			"user", cfg.NotifyUser,
			"error", err,
		)
	}
}

func (r *Router) notify(ctx context.Context, cfg action.Config, ref record.Ref) {
	if r.notifier == nil || cfg.NotifyUser == "" {
		return
	}

	msg := "AI action \"" + cfg.Name + "\" finished for " + ref.Model + "/" + ref.ID
	if err := r.notifier.Notify(ctx, cfg.NotifyUser, msg); err != nil {
		r.log.Warnw("completion notification failed",
			"user", cfg.NotifyUser,
			"error", err,
		)
	}
}
