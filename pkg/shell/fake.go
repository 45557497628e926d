package shell

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
)

// Call records one invocation made through a FakeRunner.
type Call struct {
	Name   string
	Args   []string
	Stream bool
}

// Line returns the call as a single command line.
func (c Call) Line() string {
	return CommandLine(append([]string{c.Name}, c.Args...))
}

// FakeResponse is what a FakeRunner returns for a matching command.
type FakeResponse struct {
	Stdout string
	Err    error
}

// FakeRunner is a Runner for tests. Responses are matched by command-line
// prefix; the longest matching prefix wins. Unmatched commands succeed
// with empty output.
type FakeRunner struct {
	mu        sync.Mutex
	responses map[string][]FakeResponse
	Calls     []Call
}

// NewFakeRunner creates an empty FakeRunner.
func NewFakeRunner() *FakeRunner {
	return &FakeRunner{responses: make(map[string][]FakeResponse)}
}

// On queues a response for commands starting with prefix. Queued responses
// are consumed in order; the last one is repeated.
func (f *FakeRunner) On(prefix string, resp FakeResponse) *FakeRunner {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.responses[prefix] = append(f.responses[prefix], resp)
	return f
}

// Output implements Runner.
func (f *FakeRunner) Output(_ context.Context, name string, args ...string) ([]byte, error) {
	resp := f.record(Call{Name: name, Args: args})
	return []byte(resp.Stdout), resp.Err
}

// Stream implements Runner.
func (f *FakeRunner) Stream(_ context.Context, stdout, _ io.Writer, name string, args ...string) error {
	resp := f.record(Call{Name: name, Args: args, Stream: true})
	if stdout != nil && resp.Stdout != "" {
		fmt.Fprint(stdout, resp.Stdout)
	}
	return resp.Err
}

// CallLines returns every recorded call as a command line.
func (f *FakeRunner) CallLines() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	lines := make([]string, len(f.Calls))
	for i, c := range f.Calls {
		lines[i] = c.Line()
	}
	return lines
}

func (f *FakeRunner) record(call Call) FakeResponse {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Calls = append(f.Calls, call)

	line := call.Line()
	best := ""
	for prefix := range f.responses {
		if strings.HasPrefix(line, prefix) && len(prefix) > len(best) {
			best = prefix
		}
	}
	if best == "" {
		return FakeResponse{}
	}
	queue := f.responses[best]
	resp := queue[0]
	if len(queue) > 1 {
		f.responses[best] = queue[1:]
	}
	return resp
}
