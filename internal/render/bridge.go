package render

import (
	"errors"
	"fmt"

	"go.uber.org/zap"
)

// Errors returned by Bridge.Call.
var (
	ErrUnknownCapability = errors.New("unknown capability")
	ErrMissingArgument   = errors.New("missing argument")
)

// Capability names exposed to scripts.
const (
	CapLog       = "log"
	CapGreet     = "greet"
	CapAppend    = "appendToPage"
	CapBroadcast = "broadcast"
)

// HostFunc implements one capability. Arguments arrive already converted
// to strings.
type HostFunc func(args []string) (string, error)

// Capability is one entry of the bridge's registration table.
type Capability struct {
	Name    string
	Arity   int
	Returns bool
	Call    HostFunc
}

// Broadcaster delivers a text message to every connected peer.
type Broadcaster interface {
	Broadcast(message string)
}

// Bridge is the registration table of host functions callable from
// scripts, closed over exactly one render Context.
type Bridge struct {
	caps   []Capability
	byName map[string]int
}

// BridgeOption configures optional capabilities.
type BridgeOption func(*bridgeOptions)

type bridgeOptions struct {
	broadcaster Broadcaster
}

// WithBroadcaster registers the broadcast capability.
func WithBroadcaster(b Broadcaster) BridgeOption {
	return func(o *bridgeOptions) {
		o.broadcaster = b
	}
}

// NewBridge builds the capability table for rc.
func NewBridge(rc *Context, opts ...BridgeOption) *Bridge {
	var o bridgeOptions
	for _, opt := range opts {
		opt(&o)
	}

	scriptLog := rc.Logger().Named("script")

	b := &Bridge{byName: make(map[string]int)}
	b.register(Capability{
		Name:  CapLog,
		Arity: 1,
		Call: func(args []string) (string, error) {
			scriptLog.Info(args[0])
			return "", nil
		},
	})
	b.register(Capability{
		Name:    CapGreet,
		Arity:   1,
		Returns: true,
		Call: func(args []string) (string, error) {
			return Greeting(args[0]), nil
		},
	})
	b.register(Capability{
		Name:  CapAppend,
		Arity: 1,
		Call: func(args []string) (string, error) {
			rc.Append(args[0])
			return "", nil
		},
	})

	if o.broadcaster != nil {
		broadcaster := o.broadcaster
		b.register(Capability{
			Name:  CapBroadcast,
			Arity: 1,
			Call: func(args []string) (string, error) {
				broadcaster.Broadcast(args[0])
				scriptLog.Debug("Broadcast sent", zap.Int("bytes", len(args[0])))
				return "", nil
			},
		})
	}

	return b
}

// Greeting formats the greet capability's result.
func Greeting(name string) string {
	return "Hello, " + name
}

// Capabilities returns the registration table in registration order.
func (b *Bridge) Capabilities() []Capability {
	return append([]Capability(nil), b.caps...)
}

// Call invokes a capability by name, checking its arity.
func (b *Bridge) Call(name string, args ...string) (string, error) {
	i, ok := b.byName[name]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownCapability, name)
	}
	return b.caps[i].Invoke(args)
}

// Invoke calls the capability after checking its arity. Extra arguments
// are ignored.
func (c Capability) Invoke(args []string) (string, error) {
	if len(args) < c.Arity {
		return "", fmt.Errorf("%w: %s expects %d argument(s), got %d", ErrMissingArgument, c.Name, c.Arity, len(args))
	}
	return c.Call(args)
}

func (b *Bridge) register(c Capability) {
	b.byName[c.Name] = len(b.caps)
	b.caps = append(b.caps, c)
}
