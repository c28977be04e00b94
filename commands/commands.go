// Package commands is the boundary between the front-end and the ledger's
// storage. Each command is invoked by name with JSON arguments and produces
// either a result or an error message. Error values from lower layers are
// flattened to strings here and nowhere else.
package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"sort"
)

type Handler func(ctx context.Context, args json.RawMessage) (interface{}, error)

// Response is the serialized outcome of a command. Exactly one of Result and
// Error is meaningful; Error is empty on success.
type Response struct {
	Result interface{} `json:"result,omitempty"`
	Error  string      `json:"error,omitempty"`
}

func (r Response) OK() bool {
	return r.Error == ""
}

type Registry struct {
	handlers map[string]Handler
	logger   *slog.Logger
}

func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Registry{
		handlers: make(map[string]Handler),
		logger:   logger,
	}
}

// Register adds a handler. Registering the same name twice panics.
func (r *Registry) Register(name string, handler Handler) {
	if _, ok := r.handlers[name]; ok {
		panic(fmt.Sprintf("commands: %s registered twice", name))
	}
	r.handlers[name] = handler
}

func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.handlers))
	for name := range r.handlers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Invoke runs the named command and converts its outcome into a Response.
func (r *Registry) Invoke(ctx context.Context, name string, args json.RawMessage) Response {
	handler, ok := r.handlers[name]
	if !ok {
		r.logger.Warn("Unknown command", "command", name)
		return Response{Error: fmt.Sprintf("unknown command %q", name)}
	}

	result, err := handler(ctx, args)
	if err != nil {
		r.logger.Error("Command failed", "command", name, "error", err)
		return Response{Error: err.Error()}
	}
	r.logger.Debug("Command completed", "command", name)
	return Response{Result: result}
}

// decodeArgs unmarshals args into v. Missing or null args leave v untouched.
func decodeArgs(args json.RawMessage, v interface{}) error {
	if len(args) == 0 || string(args) == "null" {
		return nil
	}
	if err := json.Unmarshal(args, v); err != nil {
		return fmt.Errorf("invalid arguments: %w", err)
	}
	return nil
}
