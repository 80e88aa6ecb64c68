package talk

import (
	"context"
	"fmt"

	"github.com/google/jsonschema-go/jsonschema"

	"github.com/mirubo/pixpal/pkg/convo"
)

// InvokeFunc executes a reconstructed function call with its decoded
// argument value.
type InvokeFunc[T any] func(ctx context.Context, call *convo.FuncCall, arg T) (any, error)

// FuncTool declares a function the model may call. Argument is the
// JSON schema sent with the declaration.
type FuncTool struct {
	Name        string
	Description string
	Argument    *jsonschema.Schema

	Invoke InvokeFunc[string]
}

// NewFuncTool declares a tool whose argument schema is derived from
// ArgType. The invoke function receives the decoded arguments; a nil
// invoke yields a declaration-only tool.
func NewFuncTool[ArgType any](name, description string, invoke InvokeFunc[ArgType]) (*FuncTool, error) {
	arg, err := jsonschema.For[ArgType](&jsonschema.ForOptions{})
	if err != nil {
		return nil, fmt.Errorf("derive %s argument schema: %w", name, err)
	}
	tool := &FuncTool{
		Name:        name,
		Description: description,
		Argument:    arg,
	}
	if invoke != nil {
		tool.Invoke = func(ctx context.Context, call *convo.FuncCall, rawArgs string) (any, error) {
			var v ArgType
			if err := unmarshalArgs(rawArgs, &v); err != nil {
				return nil, fmt.Errorf("unmarshal %q error: %w", rawArgs, err)
			}
			return invoke(ctx, call, v)
		}
	}
	return tool, nil
}

// MustNewFuncTool is NewFuncTool that panics on schema errors.
func MustNewFuncTool[ArgType any](name, description string, invoke InvokeFunc[ArgType]) *FuncTool {
	tool, err := NewFuncTool(name, description, invoke)
	if err != nil {
		panic(err)
	}
	return tool
}

// Dispatch runs the reconstructed call against the engine's registered
// tools.
func (e *Engine) Dispatch(ctx context.Context, call *convo.FuncCall) (any, error) {
	if call == nil {
		return nil, fmt.Errorf("talk: dispatch of nil call")
	}
	for _, t := range e.tools {
		if t.Name != call.Name {
			continue
		}
		if t.Invoke == nil {
			return nil, fmt.Errorf("talk: tool %s is declaration-only", call.Name)
		}
		return t.Invoke(ctx, call, call.Arguments)
	}
	return nil, fmt.Errorf("talk: tool not found: %s", call.Name)
}
