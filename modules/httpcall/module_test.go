package httpcall

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vk/pipegrid/internal/config"
	"github.com/vk/pipegrid/internal/params"
	"github.com/vk/pipegrid/internal/task"
	"github.com/zclconf/go-cty/cty"
)

func invocation(p params.Resolved, progress task.ProgressFunc) *task.Invocation {
	spec := &config.TaskNodeSpec{Name: "notify", Ref: config.TaskRef{Name: "http", Version: "1"}}
	return task.NewInvocation("run-3", "container-build", spec, p, nil, progress)
}

func TestRun(t *testing.T) {
	var gotMethod, gotBody, gotHeader, gotRun string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		gotMethod, gotBody = r.Method, string(b)
		gotHeader, gotRun = r.Header.Get("X-Token"), r.Header.Get("X-Pipegrid-Run")
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	var messages []string
	inv := invocation(params.Resolved{
		"url":     cty.StringVal(srv.URL),
		"method":  cty.StringVal("post"),
		"body":    cty.StringVal(`{"status":"Succeeded"}`),
		"headers": cty.ObjectVal(map[string]cty.Value{"X-Token": cty.StringVal("abc")}),
	}, func(_, msg string) { messages = append(messages, msg) })

	m := &Module{}
	require.NoError(t, m.run(context.Background(), inv))
	assert.Equal(t, http.MethodPost, gotMethod)
	assert.Equal(t, `{"status":"Succeeded"}`, gotBody)
	assert.Equal(t, "abc", gotHeader)
	assert.Equal(t, "run-3", gotRun)
	assert.Equal(t, []string{"POST " + srv.URL + " -> 202"}, messages)
}

func TestRun_Status(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusNotFound)
	}))
	defer srv.Close()
	m := &Module{Client: srv.Client()}

	err := m.run(context.Background(), invocation(params.Resolved{"url": cty.StringVal(srv.URL)}, nil))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "404 Not Found: nope")

	inv := invocation(params.Resolved{
		"url":    cty.StringVal(srv.URL),
		"expect": cty.TupleVal([]cty.Value{cty.NumberIntVal(404)}),
	}, nil)
	assert.NoError(t, m.run(context.Background(), inv))
}

func TestRun_Errors(t *testing.T) {
	m := &Module{}
	err := m.run(context.Background(), invocation(params.Resolved{}, nil))
	assert.ErrorContains(t, err, "missing url")

	err = m.run(context.Background(), invocation(params.Resolved{"verb": cty.StringVal("GET")}, nil))
	assert.ErrorContains(t, err, "unsupported parameter")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err = m.run(ctx, invocation(params.Resolved{"url": cty.StringVal("http://127.0.0.1:1")}, nil))
	assert.ErrorIs(t, err, context.Canceled)
}
