// Command devserver starts the development report-editing service.
// Usage: go run ./cmd/devserver [-addr :8000] [-db path]
package main

import (
	"flag"
	"fmt"
	"log"

	"github.com/raysh454/redline/internal/devserver"
	"github.com/raysh454/redline/internal/logging"
)

func main() {
	cfg := devserver.DefaultConfig()
	flag.StringVar(&cfg.ListenAddr, "addr", cfg.ListenAddr, "listen address")
	flag.StringVar(&cfg.DBPath, "db", cfg.DBPath, "sqlite database path (:memory: for ephemeral)")
	flag.BoolVar(&cfg.SeedDemoData, "seed", cfg.SeedDemoData, "seed a demo account and report")
	flag.Parse()

	cfg.Logger = logging.NewStdoutLogger("DevServer")

	srv, err := devserver.NewServer(cfg)
	if err != nil {
		log.Fatalf("dev server: %v", err)
	}
	defer srv.Close()

	fmt.Printf("Development report-editing service on %s\n", cfg.ListenAddr)
	fmt.Printf("Swagger UI at http://localhost%s/swagger/index.html\n", cfg.ListenAddr)
	if cfg.SeedDemoData {
		fmt.Println("Demo credentials: demo / demo (report id 1)")
	}

	if err := srv.HTTPServer().ListenAndServe(); err != nil {
		log.Fatalf("server error: %v", err)
	}
}
