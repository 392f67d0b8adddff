package plugins

import (
	"errors"
	"fmt"
)

// Common error variables for plugin-related operations
var (
	// ErrPluginNotFound indicates that the plugin file or record does not exist.
	ErrPluginNotFound = errors.New("plugin not found")

	// ErrPluginNotLoaded indicates an operation on a plugin that is not loaded.
	ErrPluginNotLoaded = errors.New("plugin not loaded")

	// ErrSymbolNotFound indicates that a required exported symbol is missing
	// from the plugin library.
	ErrSymbolNotFound = errors.New("plugin symbol not found")

	// ErrInvalidDescriptor indicates a descriptor with an empty name or an
	// unparsable version.
	ErrInvalidDescriptor = errors.New("invalid plugin descriptor")

	// ErrLoadRejected indicates that the plugin's load hook reported failure.
	ErrLoadRejected = errors.New("plugin rejected load")

	// ErrMissingRequiredService indicates that a service the descriptor marks
	// as required is not available.
	ErrMissingRequiredService = errors.New("required service missing")

	// ErrPluginPanic indicates that a plugin hook panicked.
	ErrPluginPanic = errors.New("plugin panicked")

	// ErrPluginOperationTimeout indicates that a plugin hook exceeded its time limit.
	ErrPluginOperationTimeout = errors.New("plugin operation timeout")

	// ErrPluginOperationInProgress indicates that another load of the same
	// plugin has not finished yet.
	ErrPluginOperationInProgress = errors.New("plugin operation in progress")

	// ErrNilInstancePart indicates an attempt to build an instance from a nil
	// library, plugin or context.
	ErrNilInstancePart = errors.New("plugin instance part is nil")
)

// PluginError represents a detailed error that occurred during plugin operations
type PluginError struct {
	// PluginID identifies the plugin where the error occurred
	PluginID string

	// Operation describes the action that was being performed
	Operation string

	// Message provides a detailed description of the error
	Message string

	// Err is the underlying error that caused this PluginError
	Err error
}

// Error implements the error interface for PluginError
func (e *PluginError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("plugin %s: %s failed: %s (%v)", e.PluginID, e.Operation, e.Message, e.Err)
	}
	return fmt.Sprintf("plugin %s: %s failed: %s", e.PluginID, e.Operation, e.Message)
}

// Unwrap returns the underlying error for error chain handling
func (e *PluginError) Unwrap() error {
	return e.Err
}

// NewPluginError creates a new PluginError with the given details
func NewPluginError(pluginID, operation, message string, err error) *PluginError {
	return &PluginError{
		PluginID:  pluginID,
		Operation: operation,
		Message:   message,
		Err:       err,
	}
}
