package assembler

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/dustin/go-humanize"

	"hermes/internal/adapters/ai"
	"hermes/internal/domain/action"
	"hermes/internal/domain/record"
	"hermes/pkg/errors"
	"hermes/pkg/logger"
	"hermes/pkg/markdown"
)

const pdfMimeType = "application/pdf"

// Result is everything the provider request needs beyond the prompt.
type Result struct {
	Files   []ai.File
	Chatter string
}

// Assembler collects the file payload and conversation history for one
// invocation: the rendered report first, stored attachments after it,
// both filtered by the model's declared capabilities.
type Assembler struct {
	reports     action.ReportGenerator
	attachments record.AttachmentStore
	chatterLog  record.ConversationLog
	maxMessages int
	maxChars    int
	log         *logger.Logger
}

// New creates an assembler. maxMessages and maxChars bound the chatter
// block; zero disables the respective bound.
func New(
	reports action.ReportGenerator,
	attachments record.AttachmentStore,
	chatterLog record.ConversationLog,
	maxMessages int,
	maxChars int,
	log *logger.Logger,
) *Assembler {
	return &Assembler{
		reports:     reports,
		attachments: attachments,
		chatterLog:  chatterLog,
		maxMessages: maxMessages,
		maxChars:    maxChars,
		log:         log,
	}
}

// Assemble builds the attachment list and chatter block for a record.
// The attachment count is checked against the model's limit before any
// provider call is made.
func (a *Assembler) Assemble(ctx context.Context, cfg action.Config, model action.Model, ref record.Ref) (*Result, error) {
	files, err := a.collectFiles(ctx, cfg, model, ref)
	if err != nil {
		return nil, err
	}

	if len(files) > model.MaxAttachments {
		return nil, errors.Newf(errors.ErrAttachmentLimit,
			"%d attachments selected, model %s allows at most %d",
			len(files), model.Name, model.MaxAttachments)
	}

	chatter, err := a.collectChatter(ctx, cfg.Chatter, ref)
	if err != nil {
		return nil, err
	}

	if len(files) > 0 {
		var total uint64
		for _, f := range files {
			total += uint64(len(f.Data))
		}
		a.log.Debugw("attachments assembled",
			"record", ref.Model+"/"+ref.ID,
			"files", len(files),
			"total_size", humanize.Bytes(total),
		)
	}

	return &Result{Files: files, Chatter: chatter}, nil
}

// collectFiles gathers the report PDF and stored attachments in a
// deterministic order: report first, then store order.
func (a *Assembler) collectFiles(ctx context.Context, cfg action.Config, model action.Model, ref record.Ref) ([]ai.File, error) {
	var files []ai.File

	if cfg.IncludeReport != "" && !a.accepts(model, pdfMimeType) {
		// The report degrades the payload, not the run, when the model
		// cannot take PDF attachments.
		a.log.Warnw("report skipped, model does not accept pdf attachments",
			"report", cfg.IncludeReport,
			"model", model.Name,
		)
	} else if cfg.IncludeReport != "" {
		data, err := a.reports.RenderReport(ctx, cfg.IncludeReport, ref)
		switch {
		case errors.Is(err, errors.ErrNotFound):
			// A deleted report definition degrades the payload, not the run.
			a.log.Warnw("report definition not found, continuing without it",
				"report", cfg.IncludeReport,
				"action", cfg.Name,
			)
		case err != nil:
			return nil, errors.Wrapf(errors.ErrReport, "failed to render report %s: %v", cfg.IncludeReport, err)
		default:
			files = append(files, ai.File{
				Filename: fmt.Sprintf("%s_%s.pdf", strings.ReplaceAll(ref.Model, ".", "_"), ref.ID),
				MimeType: pdfMimeType,
				Data:     data,
			})
		}
	}

	if cfg.IncludeAllAttachments {
		stored, err := a.attachments.ListAttachments(ctx, ref)
		if err != nil {
			return nil, errors.Wrap(err, "failed to list attachments")
		}

		for _, blob := range stored {
			if !a.accepts(model, blob.MimeType) {
				a.log.Debugw("attachment skipped",
					"filename", blob.Filename,
					"mimetype", blob.MimeType,
					"model", model.Name,
				)
				continue
			}
			files = append(files, ai.File{
				Filename: blob.Filename,
				MimeType: blob.MimeType,
				Data:     blob.Data,
			})
		}
	}

	return files, nil
}

// accepts applies the model's format whitelist plus the capability gate:
// images need vision support, everything else needs file support.
func (a *Assembler) accepts(model action.Model, mime string) bool {
	if !model.FormatAllowed(mime) {
		return false
	}
	if ai.IsImageMime(mime) {
		return model.SupportsVision
	}
	return model.SupportsFiles
}

// collectChatter fetches, filters and bounds the conversation history.
// When the bounds trim anything, the oldest messages are dropped so the
// block always ends with the most recent exchange, in chronological order.
func (a *Assembler) collectChatter(ctx context.Context, filter action.ChatterFilter, ref record.Ref) (string, error) {
	if !filter.Wants() {
		return "", nil
	}

	messages, err := a.chatterLog.FetchMessages(ctx, ref)
	if err != nil {
		return "", errors.Wrap(err, "failed to fetch conversation history")
	}

	var kept []record.Message
	for _, msg := range messages {
		if filter.Matches(msg.Author, msg.Type) {
			kept = append(kept, msg)
		}
	}

	if a.maxMessages > 0 && len(kept) > a.maxMessages {
		kept = kept[len(kept)-a.maxMessages:]
	}

	lines := make([]string, 0, len(kept))
	for _, msg := range kept {
		lines = append(lines, formatMessage(msg))
	}

	block := strings.Join(lines, "\n")
	if a.maxChars > 0 && len(block) > a.maxChars {
		block = trimOldest(lines, a.maxChars)
	}

	return block, nil
}

func formatMessage(msg record.Message) string {
	body := markdown.ToText(msg.Body)
	return fmt.Sprintf("[%s] %s (%s): %s",
		msg.Timestamp.Format("2006-01-02 15:04"), msg.Author, msg.Type, body)
}

// trimOldest drops whole lines from the front until the block fits.
// A single oversized line is cut mid-line as a last resort.
func trimOldest(lines []string, maxChars int) string {
	for len(lines) > 1 {
		lines = lines[1:]
		block := strings.Join(lines, "\n")
		if len(block) <= maxChars {
			return block
		}
	}

	block := lines[0]
	if len(block) > maxChars {
		cut := len(block) - maxChars
		for cut < len(block) && !utf8.RuneStart(block[cut]) {
			cut++
		}
		block = block[cut:]
	}
	return block
}
