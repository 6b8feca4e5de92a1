package scripting

import (
	"context"
	"fmt"
	"sync"

	"github.com/dop251/goja"
)

// GojaEngine is an Engine backed by a single goja runtime. Calls are
// serialized since a runtime is not safe for concurrent use.
type GojaEngine struct {
	mu sync.Mutex
	vm *goja.Runtime
}

func NewEngine() *GojaEngine {
	vm := goja.New()
	vm.SetFieldNameMapper(goja.UncapFieldNameMapper())
	return &GojaEngine{vm: vm}
}

func (e *GojaEngine) Execute(ctx context.Context, script string) (interface{}, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	val, err := e.run(ctx, func() (goja.Value, error) {
		return e.vm.RunString(script)
	})
	if err != nil {
		return nil, err
	}
	return val.Export(), nil
}

func (e *GojaEngine) Call(ctx context.Context, name string, args ...interface{}) (interface{}, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	val, err := e.call(ctx, name, args...)
	if err != nil {
		return nil, err
	}
	return val.Export(), nil
}

func (e *GojaEngine) call(ctx context.Context, name string, args ...interface{}) (goja.Value, error) {
	fn, ok := goja.AssertFunction(e.vm.Get(name))
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFunction, name)
	}
	jsArgs := make([]goja.Value, len(args))
	for i, a := range args {
		jsArgs[i] = e.vm.ToValue(a)
	}
	return e.run(ctx, func() (goja.Value, error) {
		return fn(goja.Undefined(), jsArgs...)
	})
}

// run executes fn and interrupts the runtime when ctx is done.
func (e *GojaEngine) run(ctx context.Context, fn func() (goja.Value, error)) (goja.Value, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// The watcher must have exited before the interrupt flag is cleared, or
	// a late Interrupt would hit the next call.
	done := make(chan struct{})
	stopped := make(chan struct{})
	defer func() {
		close(done)
		<-stopped
		e.vm.ClearInterrupt()
	}()

	go func() {
		defer close(stopped)
		select {
		case <-ctx.Done():
			e.vm.Interrupt(ctx.Err())
		case <-done:
		}
	}()

	val, err := fn()
	if err != nil {
		if interruptedErr, ok := err.(*goja.InterruptedError); ok {
			if cause := interruptedErr.Unwrap(); cause != nil {
				return nil, cause
			}
			return nil, context.Canceled
		}
		return nil, err
	}
	return val, nil
}

// RegisterHost installs app.log and console.log.
func (e *GojaEngine) RegisterHost(host Host) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	logFn := func(call goja.FunctionCall) goja.Value {
		msg := ""
		for i, a := range call.Arguments {
			if i > 0 {
				msg += " "
			}
			msg += a.String()
		}
		host.Log(msg)
		return goja.Undefined()
	}
	appObj := e.vm.NewObject()
	if err := appObj.Set("log", logFn); err != nil {
		return err
	}
	if err := e.vm.Set("app", appObj); err != nil {
		return err
	}
	consoleObj := e.vm.NewObject()
	if err := consoleObj.Set("log", logFn); err != nil {
		return err
	}
	return e.vm.Set("console", consoleObj)
}
