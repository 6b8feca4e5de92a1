// Package scripting runs user-supplied JavaScript hooks with goja.
package scripting

import (
	"context"
)

// Engine executes scripts.
type Engine interface {
	// Execute runs a script and returns its completion value.
	Execute(ctx context.Context, script string) (interface{}, error)

	// Call invokes a global function defined by an earlier script.
	Call(ctx context.Context, name string, args ...interface{}) (interface{}, error)

	// RegisterHost exposes host services to scripts.
	RegisterHost(host Host) error
}

// Host is what a script can reach outside the runtime.
type Host interface {
	// Log records a message written with app.log or console.log.
	Log(message string)
}
