// Package tool implements the function-calling subsystem that lets execution
// agents invoke structured capabilities (mailbox operations, trigger CRUD)
// with schema-validated arguments and consistent error handling.
package tool

import (
	"context"
	"fmt"

	"github.com/stewardhq/steward/internal/util"
)

// Tool is a named capability exposed to a language model. Implementations
// must be safe for concurrent use; independent calls within one model turn
// may execute in parallel.
type Tool interface {
	// Name returns the unique identifier for this tool (snake_case).
	Name() string

	// Description is provided to the model to explain when to use the tool.
	Description() string

	// Parameters returns a minimal JSON schema for the expected arguments.
	Parameters() map[string]any

	// Call executes the tool with already-decoded arguments.
	Call(ctx context.Context, args map[string]any) (any, error)
}

// ReadOnly marks tools without side effects. The execution runtime runs
// read-only calls of one model turn concurrently; any turn containing a
// mutating call executes sequentially in request order.
type ReadOnly interface {
	ReadOnly() bool
}

// ValidationError re-exports the schema validation error type.
type ValidationError = util.ValidationError

// Error represents a failure during tool execution.
type Error struct {
	Tool    string `json:"tool"`
	Message string `json:"message"`
	Code    string `json:"code"`
	Details any    `json:"details,omitempty"`
}

func (e *Error) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("tool error [%s] in %s: %s", e.Code, e.Tool, e.Message)
	}
	return fmt.Sprintf("tool error in %s: %s", e.Tool, e.Message)
}

// NewError creates an Error with the given details.
func NewError(tool, message, code string) *Error {
	return &Error{Tool: tool, Message: message, Code: code}
}
