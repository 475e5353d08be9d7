package ezerr

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAs(t *testing.T) {
	e, ok := As(NoSuchQuery("missing"))
	require.True(t, ok)
	require.Equal(t, KindNoSuchQuery, e.Kind)
	require.Equal(t, map[string]string{"name": "missing"}, e.Details)

	e, ok = As(fmt.Errorf("wrapped: %w", Busy))
	require.True(t, ok)
	require.Same(t, Busy, e)

	_, ok = As(fmt.Errorf("plain stdlib error"))
	require.False(t, ok)
}

func TestSentinelsAreStable(t *testing.T) {
	require.Equal(t, KindInterrupted, Interrupted.Kind)
	require.Equal(t, KindBusy, Busy.Kind)
	require.Equal(t, "interrupted", Interrupted.Error())
}

func TestUnknown(t *testing.T) {
	e := Unknown("engine exploded")
	require.Equal(t, KindUnknown, e.Kind)
	require.Equal(t, "engine exploded", e.Error())
	require.Nil(t, e.Details)
}
