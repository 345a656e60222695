package bridge

import (
	"testing"

	"github.com/stretchr/testify/require"

	"go-nonagon/engine"
	"go-nonagon/engine/enginetest"
)

// openRecorder wires a recording engine behind a real handle
func openRecorder(t *testing.T, aux int) (*engine.Handle, *enginetest.Recorder) {
	t.Helper()
	rec := enginetest.NewRecorder(aux)
	h, err := engine.Open(func() (engine.Engine, error) { return rec, nil })
	require.NoError(t, err)
	t.Cleanup(func() { _ = h.Close() })
	return h, rec
}

func closedHandle(t *testing.T) *engine.Handle {
	t.Helper()
	h, _ := openRecorder(t, 2)
	require.NoError(t, h.Close())
	return h
}
