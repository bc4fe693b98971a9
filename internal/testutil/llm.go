package testutil

import (
	"context"
	"sync"

	"github.com/alexanderramin/smartplan/internal/llm"
)

// Reply is one scripted completion outcome.
type Reply struct {
	Content string
	Err     error
}

// FakeLLM is an llm.Client that answers per task from a script. The last
// reply for a task repeats once the script runs out.
type FakeLLM struct {
	mu       sync.Mutex
	replies  map[llm.TaskType][]Reply
	Requests []llm.CompletionRequest
	Down     bool
}

// NewFakeLLM returns a FakeLLM with no scripted replies.
func NewFakeLLM() *FakeLLM {
	return &FakeLLM{replies: make(map[llm.TaskType][]Reply)}
}

// On queues replies for task.
func (f *FakeLLM) On(task llm.TaskType, replies ...Reply) *FakeLLM {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.replies[task] = append(f.replies[task], replies...)
	return f
}

func (f *FakeLLM) Complete(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Requests = append(f.Requests, req)

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	queue := f.replies[req.Task]
	if len(queue) == 0 {
		return nil, llm.ErrUnavailable
	}
	r := queue[0]
	if len(queue) > 1 {
		f.replies[req.Task] = queue[1:]
	}
	if r.Err != nil {
		return nil, r.Err
	}
	return &llm.CompletionResponse{Content: r.Content, Model: "fake"}, nil
}

func (f *FakeLLM) Available(context.Context) bool {
	return !f.Down
}

// Calls returns the number of requests made for task.
func (f *FakeLLM) Calls(task llm.TaskType) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, r := range f.Requests {
		if r.Task == task {
			n++
		}
	}
	return n
}
