package devserver

import "github.com/raysh454/redline/internal/logging"

// Config holds development server settings.
type Config struct {
	// ListenAddr is the address HTTPServer binds to.
	ListenAddr string `yaml:"listen_addr"`

	// DBPath is the SQLite database file. ":memory:" keeps everything
	// in-process, which is what the tests use.
	DBPath string `yaml:"db_path"`

	// SeedDemoData creates a demo account and report at startup.
	SeedDemoData bool `yaml:"seed_demo_data"`

	Logger logging.Logger `yaml:"-"`
}

func DefaultConfig() Config {
	return Config{
		ListenAddr:   ":8000",
		DBPath:       ":memory:",
		SeedDemoData: true,
	}
}
