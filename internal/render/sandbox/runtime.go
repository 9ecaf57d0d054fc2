package sandbox

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dop251/goja"

	"github.com/charlie-sans/netprop/internal/render"
)

var (
	errBlockTimeout = errors.New("execution timeout exceeded")
	errCancelled    = errors.New("request context done")
)

// Engine runs script blocks, one fresh goja runtime per call.
type Engine struct {
	config Config
}

var _ render.Engine = (*Engine)(nil)

// New creates a sandboxed engine
func New(config Config) *Engine {
	if config.Namespace == "" {
		config.Namespace = DefaultNamespace
	}
	if config.MaxCallStackSize <= 0 {
		config.MaxCallStackSize = DefaultConfig().MaxCallStackSize
	}
	return &Engine{config: config}
}

// Config returns the engine configuration.
func (e *Engine) Config() Config {
	return e.config
}

// Execute runs code with bridge bound under the namespace object.
func (e *Engine) Execute(ctx context.Context, code string, bridge *render.Bridge) (err error) {
	if err := ctx.Err(); err != nil {
		return contextError(err)
	}

	vm := goja.New()
	vm.SetMaxCallStackSize(e.config.MaxCallStackSize)

	defer func() {
		if r := recover(); r != nil {
			err = render.NewExecutionError(render.KindPanic, fmt.Errorf("%v", r))
		}
	}()

	if err := e.setupGlobals(vm, bridge); err != nil {
		return render.NewExecutionError(render.KindUnknown, err)
	}

	// Interrupt on timeout or context cancellation
	done := make(chan struct{})
	defer close(done)

	var timeout <-chan time.Time
	if e.config.Timeout > 0 {
		timer := time.NewTimer(e.config.Timeout)
		defer timer.Stop()
		timeout = timer.C
	}

	go func() {
		select {
		case <-timeout:
			vm.Interrupt(errBlockTimeout)
		case <-ctx.Done():
			vm.Interrupt(errCancelled)
		case <-done:
		}
	}()

	_, err = vm.RunString(code)
	if err != nil {
		return classify(ctx, err)
	}
	return nil
}

// setupGlobals configures global objects and security
func (e *Engine) setupGlobals(vm *goja.Runtime, bridge *render.Bridge) error {
	// Remove dangerous globals
	for _, name := range []string{"require", "process", "module", "exports"} {
		if err := vm.Set(name, goja.Undefined()); err != nil {
			return err
		}
	}

	// Timers are no-ops
	noop := func(goja.FunctionCall) goja.Value { return goja.Undefined() }
	for _, name := range []string{"setTimeout", "setInterval", "clearTimeout", "clearInterval"} {
		if err := vm.Set(name, noop); err != nil {
			return err
		}
	}

	ns := vm.NewObject()
	for _, c := range bridge.Capabilities() {
		if err := ns.Set(c.Name, bindCapability(vm, c)); err != nil {
			return err
		}
	}
	if err := vm.Set(e.config.Namespace, ns); err != nil {
		return err
	}

	if e.config.EnableConsole {
		console := vm.NewObject()
		logFn := consoleFunc(vm, bridge)
		for _, level := range []string{"log", "info", "warn", "error", "debug"} {
			if err := console.Set(level, logFn); err != nil {
				return err
			}
		}
		if err := vm.Set("console", console); err != nil {
			return err
		}
	}

	return nil
}

// bindCapability wraps a capability as a JS function. Host errors are
// thrown into the script.
func bindCapability(vm *goja.Runtime, c render.Capability) func(goja.FunctionCall) goja.Value {
	return func(call goja.FunctionCall) goja.Value {
		args := make([]string, len(call.Arguments))
		for i, arg := range call.Arguments {
			args[i] = arg.String()
		}

		out, err := c.Invoke(args)
		if err != nil {
			panic(vm.NewGoError(err))
		}
		if !c.Returns {
			return goja.Undefined()
		}
		return vm.ToValue(out)
	}
}

func consoleFunc(vm *goja.Runtime, bridge *render.Bridge) func(goja.FunctionCall) goja.Value {
	return func(call goja.FunctionCall) goja.Value {
		parts := make([]string, len(call.Arguments))
		for i, arg := range call.Arguments {
			parts[i] = arg.String()
		}
		if _, err := bridge.Call(render.CapLog, strings.Join(parts, " ")); err != nil {
			panic(vm.NewGoError(err))
		}
		return goja.Undefined()
	}
}

// classify maps a goja error to an execution error kind.
func classify(ctx context.Context, err error) *render.ExecutionError {
	var (
		interrupted *goja.InterruptedError
		syntaxErr   *goja.CompilerSyntaxError
		compileErr  *goja.CompilerReferenceError
		exception   *goja.Exception
	)

	switch {
	case errors.As(err, &interrupted):
		if interrupted.Value() == errCancelled {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return contextError(ctxErr)
			}
			return render.NewExecutionError(render.KindCancelled, err)
		}
		return render.NewExecutionError(render.KindTimeout, err)
	case errors.As(err, &syntaxErr), errors.As(err, &compileErr):
		return render.NewExecutionError(render.KindSyntax, err)
	case errors.As(err, &exception):
		return render.NewExecutionError(render.KindException, err)
	default:
		return render.NewExecutionError(render.KindUnknown, err)
	}
}

func contextError(err error) *render.ExecutionError {
	if errors.Is(err, context.DeadlineExceeded) {
		return render.NewExecutionError(render.KindTimeout, err)
	}
	return render.NewExecutionError(render.KindCancelled, err)
}
