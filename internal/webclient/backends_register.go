package webclient

import "github.com/raysh454/redline/internal/interfaces"

func init() {
	RegisterBackend(string(BackendNetHTTP), func(cfg Config, logger interfaces.Logger) (interfaces.WebClient, error) {
		return NewNetHTTPClient(cfg, logger, nil)
	})
}
