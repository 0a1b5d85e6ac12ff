package toolrunner

import (
	"context"
	"sync"
)

// FakeRunner records invocations and returns scripted outcomes. It lets
// pipeline tests run without BUSCO or DIAMOND installed.
type FakeRunner struct {
	mu sync.Mutex

	// Handler produces the outcome of each invocation. When nil, every
	// invocation succeeds with a zero Result.
	Handler func(inv Invocation) (Result, error)

	// Invocations holds every call in order
	Invocations []Invocation
}

// Run records the invocation and delegates to Handler
func (f *FakeRunner) Run(_ context.Context, inv Invocation) (Result, error) {
	f.mu.Lock()
	f.Invocations = append(f.Invocations, inv)
	f.mu.Unlock()

	if f.Handler == nil {
		return Result{StdoutPath: inv.StdoutPath, DeclaredOutput: inv.DeclaredOutput}, nil
	}
	return f.Handler(inv)
}

// Calls returns the recorded invocations for the given tool
func (f *FakeRunner) Calls(tool string) []Invocation {
	f.mu.Lock()
	defer f.mu.Unlock()

	var calls []Invocation
	for _, inv := range f.Invocations {
		if inv.Tool == tool {
			calls = append(calls, inv)
		}
	}
	return calls
}
