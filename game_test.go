package main

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"fdmheat/internal/fdm"
	"fdmheat/internal/field"
	"fdmheat/internal/palette"
)

func TestReload_KeepsSystemWhenLoadFails(t *testing.T) {
	dev := newTestExecutor(t)
	errGone := errors.New("input removed")
	var next func() (*field.Field, error)
	load := func() (*field.Field, error) { return next() }

	next = func() (*field.Field, error) { return field.Blank(6, 4) }
	g, err := newGame(context.Background(), dev, fdm.Options{}, load, palette.Default(), zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(g.close)
	first := g.sys

	tests := []struct {
		name string
		load func() (*field.Field, error)
	}{
		{name: "loader error", load: func() (*field.Field, error) { return nil, errGone }},
		{name: "invalid field", load: func() (*field.Field, error) {
			return &field.Field{Width: 3, Height: 3, Values: make([]float32, 2)}, nil
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			next = tt.load
			require.Error(t, g.reload())
			assert.Same(t, first, g.sys)
			assert.Equal(t, fdm.Running, first.State())
			assert.Equal(t, 6, g.width)
		})
	}

	next = func() (*field.Field, error) { return field.Blank(5, 5) }
	require.NoError(t, g.reload())
	assert.NotSame(t, first, g.sys)
	assert.Equal(t, fdm.Stopped, first.State())
	assert.Equal(t, fdm.Running, g.sys.State())
	assert.Equal(t, 5, g.width)
	assert.Len(t, g.pixels, 5*5*4)
}

func TestReload_WhilePaused(t *testing.T) {
	dev := newTestExecutor(t)
	load := func() (*field.Field, error) { return field.Blank(4, 4) }
	g, err := newGame(context.Background(), dev, fdm.Options{}, load, palette.Default(), zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(g.close)

	g.toggleSuspend()
	require.True(t, g.sys.IsSuspended())
	first := g.sys

	require.NoError(t, g.reload())
	assert.Equal(t, fdm.Stopped, first.State())
	assert.False(t, g.sys.IsSuspended())
}
