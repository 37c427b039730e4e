package llm

import (
	"context"
	"sync"
)

// Fake is a scripted Completer for tests. Responses are returned in order;
// when exhausted, the last response repeats. A nil Err flags success.
type Fake struct {
	mu        sync.Mutex
	Responses []string
	Err       error
	Calls     []FakeCall
}

// FakeCall records one Complete invocation.
type FakeCall struct {
	System string
	User   string
}

// NewFake creates a Fake that replays the given responses.
func NewFake(responses ...string) *Fake {
	return &Fake{Responses: responses}
}

func (f *Fake) Complete(_ context.Context, system, user string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Calls = append(f.Calls, FakeCall{System: system, User: user})
	if f.Err != nil {
		return "", f.Err
	}
	if len(f.Responses) == 0 {
		return "", nil
	}
	idx := len(f.Calls) - 1
	if idx >= len(f.Responses) {
		idx = len(f.Responses) - 1
	}
	return f.Responses[idx], nil
}

// CallCount returns the number of Complete invocations so far.
func (f *Fake) CallCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.Calls)
}
