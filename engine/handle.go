package engine

import (
	"fmt"
	"sync/atomic"
)

// slot boxes the interface so it can live behind an atomic.Pointer
type slot struct {
	e Engine
}

// Handle owns the engine for the life of the process. Components get a
// *Handle and call Engine() on every use; after Close it returns nil.
//
// Close must only be called once the audio path is stopped and no render
// call is in flight. Handle does not enforce that ordering.
type Handle struct {
	cur    atomic.Pointer[slot]
	closed atomic.Bool
}

// Open builds the engine with create and takes ownership of it
func Open(create func() (Engine, error)) (*Handle, error) {
	e, err := create()
	if err != nil {
		return nil, fmt.Errorf("create engine: %w", err)
	}
	if e == nil {
		return nil, fmt.Errorf("create engine: constructor returned nil")
	}
	h := &Handle{}
	h.cur.Store(&slot{e: e})
	return h, nil
}

// Engine returns the live engine, or nil when the handle is absent or
// closed. It costs one atomic load and never allocates.
func (h *Handle) Engine() Engine {
	if h == nil {
		return nil
	}
	s := h.cur.Load()
	if s == nil {
		return nil
	}
	return s.e
}

// Alive reports whether the engine is still there
func (h *Handle) Alive() bool {
	return h.Engine() != nil
}

// Close detaches and destroys the engine. Later calls are no-ops.
func (h *Handle) Close() error {
	if h == nil || !h.closed.CompareAndSwap(false, true) {
		return nil
	}
	s := h.cur.Swap(nil)
	if s == nil {
		return nil
	}
	if err := s.e.Close(); err != nil {
		return fmt.Errorf("destroy engine: %w", err)
	}
	return nil
}

// AuxCount returns how many auxiliary indicators the engine exposes, or
// fallback when it does not say
func (h *Handle) AuxCount(fallback int) int {
	if ac, ok := h.Engine().(AuxCounter); ok {
		return ac.AuxCount()
	}
	return fallback
}
