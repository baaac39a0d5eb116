package scripted_test

import (
	"context"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/devassist/engine/scripted"
	"github.com/effective-security/devassist/orchestrator"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	ctx := context.Background()
	conv := &orchestrator.Conversation{Goal: "x"}

	e := scripted.New(
		scripted.Call("search_repo", map[string]any{"keyword": "TODO"}),
		scripted.Answer("done"),
	)
	assert.Equal(t, scripted.DefaultName, e.Name())

	d, err := e.Decide(ctx, conv, nil)
	require.NoError(t, err)
	assert.False(t, d.IsFinal())
	assert.Equal(t, "search_repo", d.Intents[0].Name)

	d, err = e.Decide(ctx, conv, nil)
	require.NoError(t, err)
	assert.True(t, d.IsFinal())
	assert.Equal(t, "done", d.Answer)

	_, err = e.Decide(ctx, conv, nil)
	assert.True(t, errors.Is(err, scripted.ErrExhausted))
	assert.Equal(t, 3, e.Calls())
}

func TestNever(t *testing.T) {
	e := scripted.Never("run_tests", nil)
	assert.Equal(t, "never", e.Name())
	for i := 0; i < 5; i++ {
		d, err := e.Decide(context.Background(), &orchestrator.Conversation{}, nil)
		require.NoError(t, err)
		assert.False(t, d.IsFinal())
	}
	assert.Equal(t, 5, e.Calls())
}
