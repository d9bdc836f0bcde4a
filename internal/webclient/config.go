package webclient

import "time"

type Backend string

const (
	BackendNetHTTP Backend = "nethttp"
)

// Config is the minimal configuration required for constructing a WebClient.
type Config struct {
	Backend Backend
	Timeout time.Duration
}

// DefaultConfig returns a Config populated with sensible development defaults.
func DefaultConfig() Config {
	return Config{
		Backend: BackendNetHTTP,
		Timeout: 30 * time.Second,
	}
}
