// Package assistant exposes ledger operations as named tools for the
// chat layer. Record creation goes through the same submission
// pipeline as the form, never around it.
package assistant

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"bujo/internal/services"
	"bujo/internal/storage"
	"bujo/internal/submit"
)

// ErrUnknownTool is returned when the requested tool name is not
// registered.
var ErrUnknownTool = errors.New("unknown tool")

// Result is what a tool hands back to the chat layer: a user-facing
// Korean message plus optional structured data.
type Result struct {
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

// Handler executes one tool against its raw JSON parameters.
type Handler func(ctx context.Context, params json.RawMessage) (*Result, error)

// Registry maps tool names to handlers.
type Registry struct {
	repo    *storage.SQLiteRepository
	records *services.RecordService
	caches  submit.Revalidator

	tools map[string]Handler
}

func NewRegistry(repo *storage.SQLiteRepository, records *services.RecordService, caches submit.Revalidator) *Registry {
	r := &Registry{
		repo:    repo,
		records: records,
		caches:  caches,
		tools:   make(map[string]Handler),
	}

	r.tools["create_friend"] = r.createFriend
	r.tools["create_event"] = r.createEvent
	r.tools["create_record"] = r.createRecord
	r.tools["get_event_summary"] = r.getEventSummary

	return r
}

// Names returns the registered tool names, sorted.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Invoke runs the named tool.
func (r *Registry) Invoke(ctx context.Context, name string, params json.RawMessage) (*Result, error) {
	handler, ok := r.tools[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownTool, name)
	}

	slog.InfoContext(ctx, "Invoking assistant tool", "tool", name)
	result, err := handler(ctx, params)
	if err != nil {
		slog.ErrorContext(ctx, "Assistant tool failed", "tool", name, "error", err)
		return nil, err
	}
	return result, nil
}
