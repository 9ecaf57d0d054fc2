package sandbox

import "time"

// DefaultNamespace is the global object scripts use to reach the bridge.
const DefaultNamespace = "JavaFunctions"

// Config defines sandbox configuration
type Config struct {
	Timeout          time.Duration // Per-block execution budget, 0 disables
	MaxCallStackSize int           // Maximum call stack depth
	Namespace        string        // Global name of the bridge object
	EnableConsole    bool          // Route console.* to the log capability
}

// DefaultConfig returns the default sandbox configuration
func DefaultConfig() Config {
	return Config{
		Timeout:          5 * time.Second,
		MaxCallStackSize: 1024,
		Namespace:        DefaultNamespace,
		EnableConsole:    true,
	}
}
