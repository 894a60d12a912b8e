package params

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vk/pipegrid/internal/config"
	"github.com/zclconf/go-cty/cty"
)

func testDefinition() *config.Definition {
	branch := cty.StringVal("main")
	return &config.Definition{
		Name: "build",
		Params: []*config.ParamSpec{
			{Name: "repo", Type: config.ParamString},
			{Name: "branch", Type: config.ParamString, Default: &branch},
			{Name: "targets", Type: config.ParamArray},
			{Name: "labels", Type: config.ParamObject},
		},
	}
}

func node(params map[string]cty.Value) *config.TaskNodeSpec {
	return &config.TaskNodeSpec{Name: "clone", Params: params}
}

func TestResolve(t *testing.T) {
	def := testDefinition()
	values := Values{
		"repo":    cty.StringVal("https://example.com/app.git"),
		"targets": cty.TupleVal([]cty.Value{cty.StringVal("a"), cty.StringVal("b")}),
		"labels":  cty.ObjectVal(map[string]cty.Value{"team": cty.StringVal("core")}),
	}
	r, err := NewResolver(def, values)
	require.NoError(t, err)

	t.Run("literal passes through", func(t *testing.T) {
		got, err := r.Resolve(node(map[string]cty.Value{
			"depth": cty.NumberIntVal(1),
			"note":  cty.StringVal("no references here"),
		}))
		require.NoError(t, err)
		assert.True(t, got["depth"].RawEquals(cty.NumberIntVal(1)))
		s, ok := got.String("note")
		require.True(t, ok)
		assert.Equal(t, "no references here", s)
	})

	t.Run("lone token keeps type", func(t *testing.T) {
		got, err := r.Resolve(node(map[string]cty.Value{"list": cty.StringVal("$(params.targets)")}))
		require.NoError(t, err)
		assert.True(t, got["list"].RawEquals(values["targets"]))
	})

	t.Run("embedded string tokens", func(t *testing.T) {
		got, err := r.Resolve(node(map[string]cty.Value{"url": cty.StringVal("$(params.repo)#$(params.branch)")}))
		require.NoError(t, err)
		s, _ := got.String("url")
		assert.Equal(t, "https://example.com/app.git#main", s)
	})

	t.Run("object key", func(t *testing.T) {
		got, err := r.Resolve(node(map[string]cty.Value{"team": cty.StringVal("team=$(params.labels.team)")}))
		require.NoError(t, err)
		s, _ := got.String("team")
		assert.Equal(t, "team=core", s)
	})

	t.Run("embedded non-string is a mismatch", func(t *testing.T) {
		_, err := r.Resolve(node(map[string]cty.Value{"x": cty.StringVal("targets: $(params.targets)")}))
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrTypeMismatch)
		assert.ErrorIs(t, err, config.ErrConfiguration)
		var perr *ParamError
		require.True(t, errors.As(err, &perr))
		assert.Equal(t, "clone", perr.Node)
		assert.Equal(t, "x", perr.Param)
	})

	t.Run("unknown object key", func(t *testing.T) {
		_, err := r.Resolve(node(map[string]cty.Value{"x": cty.StringVal("$(params.labels.owner)")}))
		assert.ErrorIs(t, err, ErrUnknownReference)
	})

	t.Run("unknown namespace", func(t *testing.T) {
		_, err := r.Resolve(node(map[string]cty.Value{"x": cty.StringVal("$(results.clone.sha)")}))
		assert.ErrorIs(t, err, ErrUnknownReference)
	})

	t.Run("context paths", func(t *testing.T) {
		rc := r.WithContext(Context{"context.run.id": cty.StringVal("run-1")})
		got, err := rc.Resolve(node(map[string]cty.Value{"id": cty.StringVal("id=$(context.run.id)")}))
		require.NoError(t, err)
		s, _ := got.String("id")
		assert.Equal(t, "id=run-1", s)

		_, err = r.Resolve(node(map[string]cty.Value{"id": cty.StringVal("$(context.run.id)")}))
		assert.ErrorIs(t, err, ErrUnknownReference, "the base resolver is not modified")
	})

	t.Run("single pass", func(t *testing.T) {
		tricky, err := NewResolver(def, Values{"repo": cty.StringVal("$(params.branch)")})
		require.NoError(t, err)
		got, err := tricky.Resolve(node(map[string]cty.Value{"x": cty.StringVal("$(params.repo)")}))
		require.NoError(t, err)
		s, _ := got.String("x")
		assert.Equal(t, "$(params.branch)", s)
	})
}

func TestResolveMissingParameter(t *testing.T) {
	r, err := NewResolver(testDefinition(), Values{})
	require.NoError(t, err)

	_, err = r.Resolve(node(map[string]cty.Value{"url": cty.StringVal("$(params.repo)")}))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMissingParameter)
	assert.Contains(t, err.Error(), "'repo'")

	got, err := r.Resolve(node(map[string]cty.Value{"b": cty.StringVal("$(params.branch)")}))
	require.NoError(t, err)
	s, _ := got.String("b")
	assert.Equal(t, "main", s, "declared default applies")
}

func TestResolveDeterministicError(t *testing.T) {
	r, err := NewResolver(testDefinition(), Values{})
	require.NoError(t, err)
	spec := node(map[string]cty.Value{
		"z": cty.StringVal("$(params.repo)"),
		"a": cty.StringVal("$(params.targets)"),
		"m": cty.StringVal("$(params.labels)"),
	})
	for i := 0; i < 20; i++ {
		_, err := r.Resolve(spec)
		var perr *ParamError
		require.True(t, errors.As(err, &perr))
		assert.Equal(t, "a", perr.Param)
	}
}

func TestValidate(t *testing.T) {
	def := testDefinition()

	t.Run("undeclared", func(t *testing.T) {
		_, err := NewResolver(def, Values{"nope": cty.StringVal("x")})
		assert.ErrorIs(t, err, ErrUndeclaredParameter)
	})

	t.Run("wrong type", func(t *testing.T) {
		_, err := NewResolver(def, Values{"targets": cty.StringVal("a,b")})
		assert.ErrorIs(t, err, ErrTypeMismatch)
		assert.Contains(t, err.Error(), "declared array")
	})

	t.Run("bad default", func(t *testing.T) {
		bad := cty.StringVal("x")
		d := &config.Definition{Params: []*config.ParamSpec{{Name: "o", Type: config.ParamObject, Default: &bad}}}
		_, err := NewResolver(d, nil)
		assert.ErrorIs(t, err, ErrTypeMismatch)
	})
}

func TestParseAssignments(t *testing.T) {
	def := testDefinition()
	vals, err := ParseAssignments(def, []string{
		"repo=42",
		`targets=["a","b"]`,
		`labels={"team":"core"}`,
		"extra=plain text",
	})
	require.NoError(t, err)
	assert.True(t, vals["repo"].RawEquals(cty.StringVal("42")), "string params are taken verbatim")
	assert.True(t, vals["targets"].Type().IsTupleType())
	assert.True(t, vals["labels"].Type().IsObjectType())
	assert.True(t, vals["extra"].RawEquals(cty.StringVal("plain text")))

	_, err = ParseAssignments(def, []string{"novalue"})
	assert.ErrorIs(t, err, config.ErrConfiguration)
}

func TestFromGoAndMerge(t *testing.T) {
	vals, err := FromGo(map[string]any{
		"repo":    "r",
		"targets": []any{"a"},
	})
	require.NoError(t, err)
	merged := Merge(vals, Values{"repo": cty.StringVal("override")})
	assert.True(t, merged["repo"].RawEquals(cty.StringVal("override")))
	assert.True(t, merged["targets"].Type().IsTupleType())
}
