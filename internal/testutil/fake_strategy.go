// Package testutil provides testing utilities for the resolution
// pipeline: scripted fake strategies with invocation tracking.
package testutil

import (
	"context"
	"sync"
	"time"

	"github.com/tunedeck/tunedeck/pkg/cache"
	"github.com/tunedeck/tunedeck/pkg/strategy"
)

// Step is one scripted resolution outcome. A fake strategy plays its
// steps in order and repeats the last one when the script runs out.
type Step struct {
	Payload []byte
	Err     error
	Delay   time.Duration
}

// FakeStrategy is a configurable strategy for pipeline tests. It is
// safe for concurrent use.
type FakeStrategy struct {
	name       string
	namespaces map[cache.Namespace]bool

	mu    sync.Mutex
	steps []Step
	calls int

	// LastRequest holds the most recent request seen by Resolve.
	LastRequest strategy.Request
}

// NewFakeStrategy creates a fake strategy serving the given
// namespaces. With no namespaces it serves all of them.
func NewFakeStrategy(name string, namespaces ...cache.Namespace) *FakeStrategy {
	f := &FakeStrategy{
		name:       name,
		namespaces: make(map[cache.Namespace]bool),
	}
	if len(namespaces) == 0 {
		namespaces = cache.Namespaces
	}
	for _, ns := range namespaces {
		f.namespaces[ns] = true
	}
	return f
}

// Script replaces the outcome script.
func (f *FakeStrategy) Script(steps ...Step) *FakeStrategy {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.steps = steps
	return f
}

// Succeed scripts a single success that repeats forever.
func (f *FakeStrategy) Succeed(payload []byte) *FakeStrategy {
	return f.Script(Step{Payload: payload})
}

// Fail scripts a single failure that repeats forever.
func (f *FakeStrategy) Fail(err error) *FakeStrategy {
	return f.Script(Step{Err: err})
}

// FailWith scripts a classified failure that repeats forever.
func (f *FakeStrategy) FailWith(class strategy.Class) *FakeStrategy {
	return f.Fail(&strategy.Error{Class: class, Message: "scripted failure"})
}

// Name implements strategy.Strategy.
func (f *FakeStrategy) Name() string { return f.name }

// Supports implements strategy.Strategy.
func (f *FakeStrategy) Supports(ns cache.Namespace) bool {
	return f.namespaces[ns]
}

// Resolve implements strategy.Strategy.
func (f *FakeStrategy) Resolve(ctx context.Context, req strategy.Request) ([]byte, error) {
	f.mu.Lock()
	idx := f.calls
	if idx >= len(f.steps) {
		idx = len(f.steps) - 1
	}
	f.calls++
	f.LastRequest = req

	var step Step
	if idx >= 0 {
		step = f.steps[idx]
	}
	f.mu.Unlock()

	if step.Delay > 0 {
		select {
		case <-time.After(step.Delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	if step.Err != nil {
		return nil, step.Err
	}
	return step.Payload, nil
}

// Calls returns how often Resolve ran.
func (f *FakeStrategy) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// Reset clears the call counter, keeping the script.
func (f *FakeStrategy) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = 0
	f.LastRequest = strategy.Request{}
}
