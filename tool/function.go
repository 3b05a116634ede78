package tool

import (
	"context"
	"fmt"

	"github.com/stewardhq/steward/internal/util"
)

// FunctionTool adapts a plain Go function into a Tool. Arguments are
// validated against the declared schema before the function runs; failures
// are wrapped as *Error with stable codes:
//
//	VALIDATION_ERROR  schema / argument mismatch
//	EXECUTION_ERROR   underlying function returned a non-*Error error
//
// A FunctionTool has no mutable state after construction and is safe for
// concurrent use.
type FunctionTool struct {
	name        string
	description string
	parameters  map[string]any
	readOnly    bool
	fn          func(ctx context.Context, args map[string]any) (any, error)
}

// Option customizes FunctionTool construction.
type Option func(*FunctionTool)

// WithReadOnly marks the tool as side-effect free, allowing the execution
// runtime to parallelize it with other read-only calls.
func WithReadOnly() Option {
	return func(t *FunctionTool) { t.readOnly = true }
}

// NewFunctionTool constructs a FunctionTool from explicit schema and function.
func NewFunctionTool(
	name, description string,
	parameters map[string]any,
	fn func(ctx context.Context, args map[string]any) (any, error),
	opts ...Option,
) *FunctionTool {
	t := &FunctionTool{
		name:        name,
		description: description,
		parameters:  parameters,
		fn:          fn,
	}
	for _, o := range opts {
		o(t)
	}
	return t
}

// NewFunctionToolFromStruct derives the parameter schema from a struct using
// reflection, equivalent to util.CreateSchema(structType).
func NewFunctionToolFromStruct(
	name, description string,
	structType any,
	fn func(ctx context.Context, args map[string]any) (any, error),
	opts ...Option,
) *FunctionTool {
	return NewFunctionTool(name, description, util.CreateSchema(structType), fn, opts...)
}

// Name returns the unique tool name used in function call routing.
func (t *FunctionTool) Name() string { return t.name }

// Description returns the natural-language description exposed to models.
func (t *FunctionTool) Description() string { return t.description }

// Parameters returns the JSON schema describing expected arguments.
func (t *FunctionTool) Parameters() map[string]any { return t.parameters }

// ReadOnly implements the ReadOnly capability interface.
func (t *FunctionTool) ReadOnly() bool { return t.readOnly }

// Call validates args against the declared schema then invokes the wrapped
// function. A *Error returned by the function passes through unchanged.
func (t *FunctionTool) Call(ctx context.Context, args map[string]any) (any, error) {
	if err := util.ValidateParameters(args, t.parameters); err != nil {
		return nil, &Error{
			Tool:    t.name,
			Message: fmt.Sprintf("parameter validation failed: %v", err),
			Code:    "VALIDATION_ERROR",
			Details: err,
		}
	}

	result, err := t.fn(ctx, args)
	if err != nil {
		if toolErr, ok := err.(*Error); ok {
			return nil, toolErr
		}
		return nil, &Error{Tool: t.name, Message: err.Error(), Code: "EXECUTION_ERROR"}
	}
	return result, nil
}
