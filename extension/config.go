package extension

// Config holds the Bulkhead extension configuration.
// Fields can be set programmatically via Option functions or loaded from
// YAML configuration files (under "extensions.bulkhead" or "bulkhead" keys).
type Config struct {
	// DisableRoutes prevents HTTP route registration.
	DisableRoutes bool `json:"disable_routes" mapstructure:"disable_routes" yaml:"disable_routes"`

	// DisableMigrate prevents auto-migration on start.
	DisableMigrate bool `json:"disable_migrate" mapstructure:"disable_migrate" yaml:"disable_migrate"`

	// EnableSocket registers the websocket gateway alongside the HTTP
	// routes. It requires an authenticator (see WithAuthenticator).
	EnableSocket bool `json:"enable_socket" mapstructure:"enable_socket" yaml:"enable_socket"`

	// SocketPath is the websocket endpoint path (default: "/ws").
	SocketPath string `json:"socket_path" mapstructure:"socket_path" yaml:"socket_path"`

	// MaxSweepDepth caps how deep the outgoing-payload sweep descends.
	MaxSweepDepth int `json:"max_sweep_depth" mapstructure:"max_sweep_depth" yaml:"max_sweep_depth"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		SocketPath:    "/ws",
		MaxSweepDepth: 8,
	}
}
