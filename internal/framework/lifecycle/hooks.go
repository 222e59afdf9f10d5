// Package lifecycle provides a small ordered-hook registry used by the
// orchestrator and stage scheduler to run setup/teardown steps around a
// simulation run without hard-wiring every caller together.
package lifecycle

import (
	"context"
	"fmt"
)

// Hook is a single lifecycle callback. Errors returned from a hook abort the
// remaining hooks in that phase.
type Hook func(ctx context.Context) error

type namedHook struct {
	name string
	fn   Hook
}

// Counts reports how many hooks are registered per phase.
type Counts struct {
	PreStart  int
	PostStart int
	PreStop   int
	PostStop  int
}

// Hooks is an ordered registry of pre/post start/stop callbacks.
//
// PreStart and PostStart run in registration order. PreStop also runs in
// registration order, but PostStop runs in LIFO order: the last thing
// started is the first thing torn down.
type Hooks struct {
	preStart  []namedHook
	postStart []namedHook
	preStop   []namedHook
	postStop  []namedHook
}

func NewHooks() *Hooks {
	return &Hooks{}
}

func (h *Hooks) OnPreStart(fn Hook) {
	h.preStart = append(h.preStart, namedHook{fn: fn})
}

func (h *Hooks) OnPreStartNamed(name string, fn Hook) {
	h.preStart = append(h.preStart, namedHook{name: name, fn: fn})
}

func (h *Hooks) OnPostStart(fn Hook) {
	h.postStart = append(h.postStart, namedHook{fn: fn})
}

func (h *Hooks) OnPostStartNamed(name string, fn Hook) {
	h.postStart = append(h.postStart, namedHook{name: name, fn: fn})
}

func (h *Hooks) OnPreStop(fn Hook) {
	h.preStop = append(h.preStop, namedHook{fn: fn})
}

func (h *Hooks) OnPreStopNamed(name string, fn Hook) {
	h.preStop = append(h.preStop, namedHook{name: name, fn: fn})
}

func (h *Hooks) OnPostStop(fn Hook) {
	h.postStop = append(h.postStop, namedHook{fn: fn})
}

func (h *Hooks) OnPostStopNamed(name string, fn Hook) {
	h.postStop = append(h.postStop, namedHook{name: name, fn: fn})
}

func (h *Hooks) RunPreStart(ctx context.Context) error {
	return runForward(ctx, h.preStart)
}

func (h *Hooks) RunPostStart(ctx context.Context) error {
	return runForward(ctx, h.postStart)
}

func (h *Hooks) RunPreStop(ctx context.Context) error {
	return runForward(ctx, h.preStop)
}

// RunPostStop runs post-stop hooks in LIFO order, so the most recently
// started subsystem is torn down first.
func (h *Hooks) RunPostStop(ctx context.Context) error {
	for i := len(h.postStop) - 1; i >= 0; i-- {
		if err := runOne(ctx, h.postStop[i]); err != nil {
			return err
		}
	}
	return nil
}

func runForward(ctx context.Context, hooks []namedHook) error {
	for _, nh := range hooks {
		if err := runOne(ctx, nh); err != nil {
			return err
		}
	}
	return nil
}

func runOne(ctx context.Context, nh namedHook) error {
	if nh.fn == nil {
		return nil
	}
	if err := nh.fn(ctx); err != nil {
		if nh.name != "" {
			return fmt.Errorf("hook %q: %w", nh.name, err)
		}
		return err
	}
	return nil
}

// Counts reports the number of hooks registered per phase.
func (h *Hooks) Counts() Counts {
	return Counts{
		PreStart:  len(h.preStart),
		PostStart: len(h.postStart),
		PreStop:   len(h.preStop),
		PostStop:  len(h.postStop),
	}
}

// Clear removes every registered hook from every phase.
func (h *Hooks) Clear() {
	h.preStart = nil
	h.postStart = nil
	h.preStop = nil
	h.postStop = nil
}
