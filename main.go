package main

import (
	"context"
	"fmt"
	"log"
	"net/http/httptest"

	"github.com/raysh454/redline/internal/app"
	"github.com/raysh454/redline/internal/devserver"
	"github.com/raysh454/redline/internal/logging"
	"github.com/raysh454/redline/internal/selection"
)

// Demo run: start the development service in-process, open the seeded report
// and walk it through a full editing session.
func main() {
	logger := logging.NewStdoutLogger("Redline")

	srv, err := devserver.NewServer(devserver.DefaultConfig())
	if err != nil {
		log.Fatalf("dev server: %v", err)
	}
	defer srv.Close()

	ts := httptest.NewServer(srv)
	defer ts.Close()

	cfg := app.DefaultConfig()
	cfg.EditorCfg.BaseURL = ts.URL

	application, err := app.NewApplication(cfg, logger)
	if err != nil {
		log.Fatalf("application: %v", err)
	}
	defer application.Shutdown()

	ctx := context.Background()
	if _, err := application.Login(ctx, "demo", "demo"); err != nil {
		log.Fatalf("login: %v", err)
	}

	ctrl := application.OpenReport(1)
	if err := ctrl.Load(ctx); err != nil {
		log.Fatalf("load report: %v", err)
	}
	view := ctrl.View()
	fmt.Printf("opened report at version %d of %d\n", view.CurrentVersion, view.DocumentVersion)

	if _, err := ctrl.CaptureSelection(selection.RawSelection{
		Text:          "Первый раздел отчёта.",
		StartSelector: `p[data-paragraph-id="1"]`,
	}); err != nil {
		log.Fatalf("capture selection: %v", err)
	}

	res, err := ctrl.ExecuteCommand(ctx, "сделай этот раздел короче")
	if err != nil {
		log.Fatalf("execute command: %v", err)
	}
	fmt.Printf("command applied: %s\n", res.Message)

	if _, err := ctrl.RestoreVersion(ctx, 1); err != nil {
		log.Fatalf("restore: %v", err)
	}
	view = ctrl.View()
	fmt.Printf("restored version 1 as version %d\n", view.DocumentVersion)

	for i, v := range ctrl.AllVersions() {
		fmt.Printf("  %d. %s (%s)\n", i+1, v.Description, v.EditDescription)
	}

	for _, msg := range ctrl.Transcript().Messages() {
		fmt.Printf("[%s] %s\n", msg.Role, msg.Content)
	}
}
