package driver

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestInterruptHandle_InterruptWithNothingTracked(t *testing.T) {
	var h InterruptHandle
	// Safe to call even though no statement is running.
	h.Interrupt()
	h.Interrupt()
}

func TestInterruptHandle_TrackThenInterrupt(t *testing.T) {
	var h InterruptHandle

	ctx, release := h.Track(context.Background())
	defer release()

	require.NoError(t, ctx.Err())

	h.Interrupt()
	require.Error(t, ctx.Err())
	require.ErrorIs(t, ctx.Err(), context.Canceled)
}

func TestInterruptHandle_ReleaseDoesNotCancelANewerTrack(t *testing.T) {
	var h InterruptHandle

	ctx1, release1 := h.Track(context.Background())
	release1()
	require.Error(t, ctx1.Err())

	ctx2, release2 := h.Track(context.Background())
	defer release2()

	// Releasing the first, already-finished statement must not cancel the
	// context of a second statement tracked after it.
	require.NoError(t, ctx2.Err())
}

func TestInterruptHandle_InterruptIdempotent(t *testing.T) {
	var h InterruptHandle

	ctx, release := h.Track(context.Background())
	defer release()

	h.Interrupt()
	h.Interrupt()
	require.Error(t, ctx.Err())
}
