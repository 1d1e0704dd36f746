package tools

import "errors"

var (
	// ErrDuplicateToolName is returned when a tool name is already registered.
	ErrDuplicateToolName = errors.New("duplicate tool name")
	// ErrToolNotFound is returned for names that are not registered or not enabled.
	ErrToolNotFound = errors.New("tool not found")
	// ErrInvalidArguments is returned by ValidateArguments.
	ErrInvalidArguments = errors.New("invalid tool arguments")
)
