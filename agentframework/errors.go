// Copyright (c) Microsoft. All rights reserved.

package agentframework

import (
	"errors"
	"fmt"
)

// Sentinel errors for use with errors.Is.
var (
	// ErrAgent is the base error for agent-related failures.
	ErrAgent = errors.New("agent error")

	// ErrExecution indicates a runtime failure during agent execution.
	ErrExecution = fmt.Errorf("%w: execution", ErrAgent)

	// ErrInitialization indicates a configuration or setup failure, such as a
	// provider constructed without credentials.
	ErrInitialization = fmt.Errorf("%w: initialization", ErrAgent)

	// ErrSession indicates a session history failure.
	ErrSession = fmt.Errorf("%w: session", ErrAgent)

	// ErrService is the base error for model service failures. Every error a
	// provider surfaces from a request wraps it.
	ErrService = errors.New("model service error")

	// ErrContentFilter indicates the request was rejected by a content filter.
	ErrContentFilter = fmt.Errorf("%w: content filter", ErrService)

	// ErrInvalidRequest indicates the request was malformed or invalid.
	ErrInvalidRequest = fmt.Errorf("%w: invalid request", ErrService)

	// ErrInvalidResponse indicates the service returned an unexpected response.
	ErrInvalidResponse = fmt.Errorf("%w: invalid response", ErrService)

	// ErrAuth indicates an authentication or authorization failure.
	ErrAuth = fmt.Errorf("%w: authentication", ErrService)

	// ErrTool is the base error for tool-related failures.
	ErrTool = errors.New("tool error")

	// ErrToolExecution indicates a failure during tool invocation.
	ErrToolExecution = fmt.Errorf("%w: execution", ErrTool)
)

// ServiceError is the single typed error a provider returns for a failed
// request. Err is the category sentinel (ErrAuth, ErrContentFilter, ...)
// and Cause the original failure from the transport or library.
// Both are reachable through errors.Is and errors.As.
type ServiceError struct {
	StatusCode int
	Message    string
	Code       string
	Err        error
	Cause      error
}

func (e *ServiceError) Error() string {
	switch {
	case e.StatusCode == 0:
		return fmt.Sprintf("model service error: %s", e.Message)
	case e.Code != "":
		return fmt.Sprintf("model service error %d (%s): %s", e.StatusCode, e.Code, e.Message)
	default:
		return fmt.Sprintf("model service error %d: %s", e.StatusCode, e.Message)
	}
}

func (e *ServiceError) Unwrap() []error {
	errs := make([]error, 0, 2)
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	if e.Cause != nil {
		errs = append(errs, e.Cause)
	}
	return errs
}

// ToolError provides context for tool invocation failures.
type ToolError struct {
	ToolName string
	Message  string
	Err      error
}

func (e *ToolError) Error() string {
	return fmt.Sprintf("tool %q: %s", e.ToolName, e.Message)
}

func (e *ToolError) Unwrap() error { return e.Err }
