package engine

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/danghoangsqtt-sys/nana-app/internal/protocol"
)

// ToolHandler executes one remote tool invocation. The returned map becomes
// the structured response sent back to the model.
type ToolHandler func(ctx context.Context, args map[string]any) (map[string]any, error)

// ToolDispatcher routes remote tool requests to registered handlers.
type ToolDispatcher struct {
	mu       sync.RWMutex
	handlers map[string]ToolHandler
	decls    []protocol.ToolDecl
}

func NewToolDispatcher() *ToolDispatcher {
	return &ToolDispatcher{handlers: make(map[string]ToolHandler)}
}

// Register binds a handler to a tool name, replacing any previous binding.
func (d *ToolDispatcher) Register(name, description string, h ToolHandler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, exists := d.handlers[name]; !exists {
		d.decls = append(d.decls, protocol.ToolDecl{Name: name, Description: description})
	}
	d.handlers[name] = h
}

// Declarations returns the tool surface advertised at session setup.
func (d *ToolDispatcher) Declarations() []protocol.ToolDecl {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]protocol.ToolDecl, len(d.decls))
	copy(out, d.decls)
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Dispatch resolves every request in the batch and returns one result per
// request, in batch order. Handlers run concurrently; unknown names and
// handler panics become error results rather than failures of the batch.
func (d *ToolDispatcher) Dispatch(ctx context.Context, requests []protocol.ToolRequest) []protocol.ToolResult {
	results := make([]protocol.ToolResult, len(requests))

	var wg sync.WaitGroup
	for i, req := range requests {
		wg.Add(1)
		go func(i int, req protocol.ToolRequest) {
			defer wg.Done()
			results[i] = d.invoke(ctx, req)
		}(i, req)
	}
	wg.Wait()
	return results
}

func (d *ToolDispatcher) invoke(ctx context.Context, req protocol.ToolRequest) (result protocol.ToolResult) {
	result = protocol.ToolResult{ID: req.ID, Name: req.Name}
	defer func() {
		if r := recover(); r != nil {
			result.Response = nil
			result.Error = fmt.Sprintf("tool %q panicked: %v", req.Name, r)
		}
	}()

	d.mu.RLock()
	handler, ok := d.handlers[req.Name]
	d.mu.RUnlock()
	if !ok {
		result.Error = fmt.Sprintf("unknown tool %q", req.Name)
		return result
	}

	resp, err := handler(ctx, req.Args)
	if err != nil {
		result.Error = err.Error()
		return result
	}
	if resp == nil {
		resp = map[string]any{"result": "ok"}
	}
	result.Response = resp
	return result
}
