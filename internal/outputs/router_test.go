package outputs

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hermes/internal/domain/action"
	"hermes/internal/domain/record"
	"hermes/internal/testsupport"
	"hermes/pkg/errors"
	"hermes/pkg/logger"
)

var ref = record.Ref{Model: "crm.lead", ID: "42"}

func newRouter(g *testsupport.RecordGraph, n action.NotificationSink) *Router {
	return New(g, g, n, logger.Get())
}

func TestRouteToChatterConvertsMarkdown(t *testing.T) {
	g := testsupport.NewRecordGraph()
	r := newRouter(g, nil)

	cfg := action.Config{Name: "summarize", OutputDestination: action.DestinationChatter}
	err := r.Route(context.Background(), cfg, ref, "# Summary\n\n- point one")
	require.NoError(t, err)

	notes := g.Notes(ref)
	require.Len(t, notes, 1)
	assert.Contains(t, notes[0], "<h1")
	assert.Contains(t, notes[0], "<li>point one</li>")
}

func TestRouteToChatterSanitizesHTML(t *testing.T) {
	g := testsupport.NewRecordGraph()
	r := newRouter(g, nil)

	cfg := action.Config{OutputDestination: action.DestinationChatter}
	err := r.Route(context.Background(), cfg, ref, `<p>ok</p><script>alert(1)</script>`)
	require.NoError(t, err)

	notes := g.Notes(ref)
	require.Len(t, notes, 1)
	assert.Contains(t, notes[0], "<p>ok</p>")
	assert.NotContains(t, notes[0], "script")
}

func TestRouteToChatterEscapesPlainText(t *testing.T) {
	g := testsupport.NewRecordGraph()
	r := newRouter(g, nil)

	cfg := action.Config{OutputDestination: action.DestinationChatter}
	err := r.Route(context.Background(), cfg, ref, "1 < 2 and 2 > 1")
	require.NoError(t, err)

	notes := g.Notes(ref)
	require.Len(t, notes, 1)
	assert.Contains(t, notes[0], "&lt;")
	assert.NotContains(t, notes[0], "<script")
}

func TestRouteToHTMLField(t *testing.T) {
	g := testsupport.NewRecordGraph()
	g.DeclareField("crm.lead", "description", record.FieldKindHTML)
	r := newRouter(g, nil)

	cfg := action.Config{OutputDestination: action.DestinationField, OutputField: "description"}
	err := r.Route(context.Background(), cfg, ref, "**bold** text")
	require.NoError(t, err)
	assert.Equal(t, "<strong>bold</strong> text", g.Field(ref, "description"))
}

func TestRouteToTextFieldKeepsRaw(t *testing.T) {
	g := testsupport.NewRecordGraph()
	g.DeclareField("crm.lead", "summary", record.FieldKindText)
	r := newRouter(g, nil)

	cfg := action.Config{OutputDestination: action.DestinationField, OutputField: "summary"}
	err := r.Route(context.Background(), cfg, ref, "**bold** text")
	require.NoError(t, err)
	assert.Equal(t, "**bold** text", g.Field(ref, "summary"))
}

func TestRouteToUnknownFieldFails(t *testing.T) {
	g := testsupport.NewRecordGraph()
	r := newRouter(g, nil)

	cfg := action.Config{OutputDestination: action.DestinationField, OutputField: "no_such"}
	err := r.Route(context.Background(), cfg, ref, "text")
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrSchema))
}

func TestRouteUnknownDestinationFails(t *testing.T) {
	g := testsupport.NewRecordGraph()
	r := newRouter(g, nil)

	err := r.Route(context.Background(), action.Config{OutputDestination: "carrier_pigeon"}, ref, "text")
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrInvalidConfig))
}

func TestRouteSendsCompletionNotification(t *testing.T) {
	g := testsupport.NewRecordGraph()
	notifier := &testsupport.FakeNotifier{}
	r := newRouter(g, notifier)

	cfg := action.Config{Name: "summarize", OutputDestination: action.DestinationChatter, NotifyUser: "u7"}
	require.NoError(t, r.Route(context.Background(), cfg, ref, "done"))

	require.Equal(t, 1, notifier.Count())
	assert.Equal(t, "u7", notifier.Users[0])
	assert.Contains(t, notifier.Messages[0], "summarize")
	assert.Contains(t, notifier.Messages[0], "crm.lead/42")
}

func TestRouteNotificationFailureIsNotFatal(t *testing.T) {
	g := testsupport.NewRecordGraph()
	notifier := &testsupport.FakeNotifier{Err: errors.New("channel down")}
	r := newRouter(g, notifier)

	cfg := action.Config{OutputDestination: action.DestinationChatter, NotifyUser: "u7"}
	err := r.Route(context.Background(), cfg, ref, "done")
	require.NoError(t, err)
	assert.Len(t, g.Notes(ref), 1)
}

func TestNotifyFailureOmitsPrompt(t *testing.T) {
	notifier := &testsupport.FakeNotifier{}
	r := newRouter(testsupport.NewRecordGraph(), notifier)

	cfg := action.Config{Name: "summarize", NotifyUser: "u7", PromptTemplate: "secret instructions"}
	cause := errors.Wrap(errors.ErrRateLimited, "provider rate limit hit")
	r.NotifyFailure(context.Background(), cfg, ref, cause)

	require.Equal(t, 1, notifier.Count())
	assert.Contains(t, notifier.Messages[0], "failed")
	assert.Contains(t, notifier.Messages[0], "rate limit")
	assert.NotContains(t, notifier.Messages[0], "secret instructions")
}

func TestNotifyFailureNoRecipientIsNoop(t *testing.T) {
	notifier := &testsupport.FakeNotifier{}
	r := newRouter(testsupport.NewRecordGraph(), notifier)

	r.NotifyFailure(context.Background(), action.Config{Name: "x"}, ref, errors.New("boom"))
	assert.Zero(t, notifier.Count())
}
