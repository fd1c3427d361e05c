package prompt

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hermes/internal/domain/record"
	"hermes/internal/testsupport"
	"hermes/pkg/errors"
)

func testGraph() (*testsupport.RecordGraph, record.Ref) {
	lead := record.Ref{Model: "crm.lead", ID: "1"}
	partner := record.Ref{Model: "res.partner", ID: "7"}
	country := record.Ref{Model: "res.country", ID: "3"}

	g := testsupport.NewRecordGraph()
	g.SetScalar(lead, "name", "Big Deal")
	g.SetScalar(lead, "expected_revenue", 15000)
	g.SetScalar(lead, "create_date", time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC))
	g.Declare("crm.lead", "description") // declared but never set
	g.SetRelation(lead, "partner_id", partner)

	g.SetScalar(partner, "display_name", "Acme Corp")
	g.SetScalar(partner, "email", "sales@acme.example")
	g.SetRelation(partner, "country_id", country)

	g.SetScalar(country, "display_name", "Belgium")
	g.SetScalar(country, "name", "Belgium")

	return g, lead
}

func render(t *testing.T, template string) (string, error) {
	t.Helper()
	g, lead := testGraph()
	r := New(g, 8)
	return r.Render(context.Background(), template, map[string]interface{}{"record": lead})
}

func TestRenderLiteralPassthrough(t *testing.T) {
	out, err := render(t, "Summarize this lead for the account team.")
	require.NoError(t, err)
	assert.Equal(t, "Summarize this lead for the account team.", out)
}

func TestRenderInterpolation(t *testing.T) {
	out, err := render(t, "Lead: {{ record.name }} ({{ record.expected_revenue }})")
	require.NoError(t, err)
	assert.Equal(t, "Lead: Big Deal (15000)", out)
}

func TestRenderRelationTraversal(t *testing.T) {
	out, err := render(t, "{{ record.partner_id.country_id.name }}")
	require.NoError(t, err)
	assert.Equal(t, "Belgium", out)
}

func TestRenderRelationStringifiesAsDisplayName(t *testing.T) {
	out, err := render(t, "{{ record.partner_id }}")
	require.NoError(t, err)
	assert.Equal(t, "Acme Corp", out)
}

func TestRenderDeterministic(t *testing.T) {
	template := "{{ record.name }} / {{ record.partner_id.email }} / {{ record.expected_revenue * 2 }}"
	first, err := render(t, template)
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		again, err := render(t, template)
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}

func TestRenderMissingOptionalIsEmpty(t *testing.T) {
	out, err := render(t, "[{{ record.description }}]")
	require.NoError(t, err)
	assert.Equal(t, "[]", out)
}

func TestRenderUndeclaredVariableFails(t *testing.T) {
	_, err := render(t, "{{ user.name }}")
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrTemplate))
}

func TestRenderUnknownAttributeFails(t *testing.T) {
	_, err := render(t, "{{ record.no_such_field }}")
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrTemplate))
}

func TestRenderNoPartialOutputOnError(t *testing.T) {
	out, err := render(t, "prefix {{ record.name }} {{ record.no_such_field }}")
	require.Error(t, err)
	assert.Empty(t, out)
}

func TestRenderSyntaxErrorBeforeResolution(t *testing.T) {
	cases := []string{
		"{{ record.name",     // unclosed
		"{{ }}",              // empty expression
		"{{ record..name }}", // malformed
		"text }} tail",       // unmatched close
	}
	for _, tpl := range cases {
		_, err := render(t, tpl)
		assert.True(t, errors.Is(err, errors.ErrTemplate), "template %q", tpl)
	}
}

func TestRenderDepthLimit(t *testing.T) {
	// a chain of self-referencing partners deeper than the hop budget
	g := testsupport.NewRecordGraph()
	root := record.Ref{Model: "res.partner", ID: "0"}
	g.SetScalar(root, "name", "p0")
	prev := root
	for i := 1; i <= 4; i++ {
		ref := record.Ref{Model: "res.partner", ID: string(rune('0' + i))}
		g.SetScalar(ref, "name", "p")
		g.SetRelation(prev, "parent_id", ref)
		prev = ref
	}

	r := New(g, 2)
	_, err := r.Render(context.Background(), "{{ record.parent_id.parent_id.parent_id.name }}",
		map[string]interface{}{"record": root})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrTemplate))
}

func TestRenderConditional(t *testing.T) {
	out, err := render(t, `{{ "hot" if record.expected_revenue > 10000 else "cold" }}`)
	require.NoError(t, err)
	assert.Equal(t, "hot", out)
}

func TestRenderArithmeticAndConcat(t *testing.T) {
	out, err := render(t, `{{ record.expected_revenue / 3 }} {{ "eur" ~ "o" }}`)
	require.NoError(t, err)
	assert.Equal(t, "5000 euro", out)
}

func TestRenderDivisionByZeroFails(t *testing.T) {
	_, err := render(t, "{{ record.expected_revenue / 0 }}")
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrEvaluation))
}

func TestRenderFilters(t *testing.T) {
	tests := []struct {
		name     string
		template string
		want     string
	}{
		{"default on empty", `{{ record.description | default("n/a") }}`, "n/a"},
		{"default passthrough", `{{ record.name | default("n/a") }}`, "Big Deal"},
		{"date", `{{ record.create_date | date("%d/%m/%Y") }}`, "14/03/2026"},
		{"date default format", `{{ record.create_date | date }}`, "2026-03-14"},
		{"truncate", `{{ record.name | truncate(3) }}`, "Big..."},
		{"upper", `{{ record.name | upper }}`, "BIG DEAL"},
		{"lower", `{{ record.name | lower }}`, "big deal"},
		{"trim", `{{ "  x  " | trim }}`, "x"},
		{"chained", `{{ record.description | default("n/a") | upper }}`, "N/A"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := render(t, tt.template)
			require.NoError(t, err)
			assert.Equal(t, tt.want, out)
		})
	}
}

func TestRenderUnknownFilterFails(t *testing.T) {
	_, err := render(t, "{{ record.name | shell }}")
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrTemplate))
}

func TestRenderJoinOverRelationList(t *testing.T) {
	g := testsupport.NewRecordGraph()
	order := record.Ref{Model: "sale.order", ID: "1"}
	l1 := record.Ref{Model: "sale.order.line", ID: "1"}
	l2 := record.Ref{Model: "sale.order.line", ID: "2"}
	g.SetRelations(order, "line_ids", l1, l2)
	g.SetScalar(l1, "display_name", "Widget")
	g.SetScalar(l2, "display_name", "Gadget")
	g.SetScalar(l1, "name", "Widget")
	g.SetScalar(l2, "name", "Gadget")

	r := New(g, 8)
	out, err := r.Render(context.Background(), `{{ record.line_ids.name | join(" + ") }}`,
		map[string]interface{}{"record": order})
	require.NoError(t, err)
	assert.Equal(t, "Widget + Gadget", out)
}

func TestRenderBooleanLogic(t *testing.T) {
	out, err := render(t, `{{ "yes" if record.name and not record.description else "no" }}`)
	require.NoError(t, err)
	assert.Equal(t, "yes", out)
}
