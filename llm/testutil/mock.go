// Package testutil provides test doubles for the llm package.
package testutil

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Step is one scripted model invocation outcome.
type Step struct {
	Text  string        // returned on success
	Err   error         // returned instead of Text when set
	Delay time.Duration // optional: block this long (or until ctx is done) first
}

// MockInvoker is a thread-safe scripted llm.Invoker. Each model name gets
// its own step sequence; steps are consumed in order and the final step
// repeats once the sequence is exhausted, so "always fails" is a single
// step. Invoking a model with no script is an error, which keeps tests
// loud about unexpected cascade behavior.
//
// Usage:
//
//	mock := testutil.NewMockInvoker()
//	mock.Script("gemini-flash",
//	    testutil.Step{Err: errors.New("timeout after 30s")},
//	    testutil.Step{Text: `{"destination": "Kyoto"}`},
//	)
type MockInvoker struct {
	mu      sync.Mutex
	scripts map[string][]Step
	index   map[string]int
	calls   []Call
}

// Call records one Invoke.
type Call struct {
	Model  string
	Prompt string
}

// NewMockInvoker creates an empty mock.
func NewMockInvoker() *MockInvoker {
	return &MockInvoker{
		scripts: make(map[string][]Step),
		index:   make(map[string]int),
	}
}

// Script sets the step sequence for a model, replacing any previous script.
func (m *MockInvoker) Script(model string, steps ...Step) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.scripts[model] = steps
	m.index[model] = 0
}

// Invoke implements llm.Invoker.
func (m *MockInvoker) Invoke(ctx context.Context, model, prompt string) (string, error) {
	m.mu.Lock()

	m.calls = append(m.calls, Call{Model: model, Prompt: prompt})

	steps, ok := m.scripts[model]
	if !ok || len(steps) == 0 {
		m.mu.Unlock()
		return "", fmt.Errorf("no scripted response for model %q", model)
	}

	i := m.index[model]
	if i >= len(steps) {
		i = len(steps) - 1
	}
	step := steps[i]
	m.index[model]++

	m.mu.Unlock()

	// Sleep outside the lock so concurrent invocations stay scripted.
	if step.Delay > 0 {
		select {
		case <-time.After(step.Delay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}

	if err := ctx.Err(); err != nil {
		return "", err
	}

	if step.Err != nil {
		return "", step.Err
	}

	return step.Text, nil
}

// Calls returns a copy of every recorded invocation, in order.
func (m *MockInvoker) Calls() []Call {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Call, len(m.calls))
	copy(out, m.calls)
	return out
}

// CallCount returns how many times the given model was invoked.
func (m *MockInvoker) CallCount(model string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, c := range m.calls {
		if c.Model == model {
			n++
		}
	}
	return n
}

// Reset clears recorded calls and rewinds every script.
func (m *MockInvoker) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = nil
	for model := range m.index {
		m.index[model] = 0
	}
}
