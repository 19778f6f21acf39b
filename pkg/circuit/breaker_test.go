package circuit

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errBoom = errors.New("boom")

func TestBreakerOpensAfterMaxFailures(t *testing.T) {
	b := NewBreaker(Config{Name: "dep", MaxFailures: 3, Timeout: time.Minute, HalfOpenMax: 1})
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		err := b.Execute(ctx, func() error { return errBoom })
		assert.ErrorIs(t, err, errBoom)
	}

	assert.Equal(t, StateOpen, b.State())

	err := b.Execute(ctx, func() error { return nil })
	assert.ErrorIs(t, err, ErrCircuitOpen)
}

func TestBreakerSuccessResetsFailures(t *testing.T) {
	b := NewBreaker(Config{Name: "dep", MaxFailures: 2, Timeout: time.Minute, HalfOpenMax: 1})
	ctx := context.Background()

	require.Error(t, b.Execute(ctx, func() error { return errBoom }))
	require.NoError(t, b.Execute(ctx, func() error { return nil }))
	require.Error(t, b.Execute(ctx, func() error { return errBoom }))

	assert.Equal(t, StateClosed, b.State())
}

func TestBreakerHalfOpenRecovery(t *testing.T) {
	b := NewBreaker(Config{Name: "dep", MaxFailures: 1, Timeout: 10 * time.Millisecond, HalfOpenMax: 1})
	ctx := context.Background()

	require.Error(t, b.Execute(ctx, func() error { return errBoom }))
	require.Equal(t, StateOpen, b.State())

	time.Sleep(20 * time.Millisecond)

	require.NoError(t, b.Execute(ctx, func() error { return nil }))
	assert.Equal(t, StateClosed, b.State())
}

func TestBreakerHalfOpenFailureReopens(t *testing.T) {
	b := NewBreaker(Config{Name: "dep", MaxFailures: 1, Timeout: 10 * time.Millisecond, HalfOpenMax: 1})
	ctx := context.Background()

	require.Error(t, b.Execute(ctx, func() error { return errBoom }))
	time.Sleep(20 * time.Millisecond)

	require.Error(t, b.Execute(ctx, func() error { return errBoom }))
	assert.Equal(t, StateOpen, b.State())
}

func TestBreakerStateChangeCallback(t *testing.T) {
	var transitions []string
	b := NewBreaker(Config{
		Name:        "dep",
		MaxFailures: 1,
		Timeout:     time.Minute,
		HalfOpenMax: 1,
		OnStateChange: func(from, to State) {
			transitions = append(transitions, from.String()+"->"+to.String())
		},
	})

	require.Error(t, b.Execute(context.Background(), func() error { return errBoom }))
	assert.Equal(t, []string{"closed->open"}, transitions)
}

func TestBreakerGroup(t *testing.T) {
	g := NewBreakerGroup(Config{MaxFailures: 1, Timeout: time.Minute, HalfOpenMax: 1})
	ctx := context.Background()

	require.Error(t, g.Execute(ctx, "search", func() error { return errBoom }))
	require.NoError(t, g.Execute(ctx, "notify", func() error { return nil }))

	states := g.States()
	assert.Equal(t, StateOpen, states["search"])
	assert.Equal(t, StateClosed, states["notify"])

	assert.Same(t, g.Get("search"), g.Get("search"))
}
