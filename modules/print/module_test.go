package print

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vk/pipegrid/internal/config"
	"github.com/vk/pipegrid/internal/params"
	"github.com/vk/pipegrid/internal/registry"
	"github.com/vk/pipegrid/internal/task"
	"github.com/zclconf/go-cty/cty"
)

func TestPrint(t *testing.T) {
	var out bytes.Buffer
	m := &Module{Out: &out}
	spec := &config.TaskNodeSpec{Name: "exit", Ref: config.TaskRef{Name: "print"}}
	inv := task.NewInvocation("r", "p", spec, params.Resolved{
		"status":    cty.StringVal("Failed"),
		"platforms": cty.TupleVal([]cty.Value{cty.StringVal("x86_64")}),
	}, nil, nil)

	require.NoError(t, m.Run(context.Background(), inv))
	assert.Equal(t, "exit: platforms = [\"x86_64\"]\nexit: status = Failed\n", out.String())

	out.Reset()
	require.NoError(t, m.Run(context.Background(), task.NewInvocation("r", "p", spec, nil, nil, nil)))
	assert.Equal(t, "exit: (no parameters)\n", out.String())
}

func TestRegister(t *testing.T) {
	r := registry.New()
	(&Module{}).Register(r)
	_, v, err := r.Resolve(config.TaskRef{Name: "print", Version: "^1"})
	require.NoError(t, err)
	assert.Equal(t, "1.0.0", v.String())
}
