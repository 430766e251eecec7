package models

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTargetsFor(t *testing.T) {
	t.Run("keeps order and port", func(t *testing.T) {
		targets := TargetsFor([]string{"10.0.1.5", "10.0.1.6"}, 5432)
		require.Equal(t, []Target{
			{Addr: "10.0.1.5", Port: 5432},
			{Addr: "10.0.1.6", Port: 5432},
		}, targets)
	})
	t.Run("collapses duplicates", func(t *testing.T) {
		targets := TargetsFor([]string{"10.0.1.5", "10.0.1.6", "10.0.1.5"}, 3306)
		require.Equal(t, []Target{
			{Addr: "10.0.1.5", Port: 3306},
			{Addr: "10.0.1.6", Port: 3306},
		}, targets)
	})
	t.Run("empty", func(t *testing.T) {
		assert.Empty(t, TargetsFor(nil, 5432))
	})
}

func TestTargetString(t *testing.T) {
	assert.Equal(t, "10.0.1.5:5432", Target{Addr: "10.0.1.5", Port: 5432}.String())
	assert.Equal(t, "[fd00::5]:5432", Target{Addr: "fd00::5", Port: 5432}.String())
}

func TestRunIDContext(t *testing.T) {
	ctx := context.Background()
	assert.Empty(t, RunIDFromContext(ctx))

	ctx = ContextWithRunID(ctx, "run-1")
	assert.Equal(t, "run-1", RunIDFromContext(ctx))
}
