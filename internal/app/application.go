// Package app wires the client stack together: webclient, session, typed
// service client, and the per-report controllers built on top of them.
package app

import (
	"context"
	"fmt"

	"github.com/raysh454/redline/internal/analysis"
	"github.com/raysh454/redline/internal/controller"
	"github.com/raysh454/redline/internal/editorapi"
	"github.com/raysh454/redline/internal/export"
	"github.com/raysh454/redline/internal/generation"
	"github.com/raysh454/redline/internal/interfaces"
	"github.com/raysh454/redline/internal/logging"
	"github.com/raysh454/redline/internal/model"
	"github.com/raysh454/redline/internal/session"
	"github.com/raysh454/redline/internal/webclient"
)

// Application is the runtime state container shared across modules. Pass it
// into components that need the global state rather than using package-level
// variables.
type Application struct {
	Config  *Config
	Logger  logging.Logger
	Session *session.Session
	Client  *editorapi.Client

	wc     interfaces.WebClient
	ctx    context.Context
	cancel context.CancelFunc
}

// NewApplication builds the shared stack from config. Nothing talks to the
// network until Login or a controller operation runs.
func NewApplication(cfg *Config, logger logging.Logger) (*Application, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}

	wc, err := webclient.New(cfg.WebClientCfg, logger)
	if err != nil {
		return nil, fmt.Errorf("create webclient: %w", err)
	}

	sess := session.New(logger)
	client, err := editorapi.NewClient(cfg.EditorCfg, wc, sess, logger)
	if err != nil {
		wc.Close()
		return nil, fmt.Errorf("create editor client: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Application{
		Config:  cfg,
		Logger:  logger,
		Session: sess,
		Client:  client,
		wc:      wc,
		ctx:     ctx,
		cancel:  cancel,
	}, nil
}

// Login authenticates against the editing service and primes the session.
func (a *Application) Login(ctx context.Context, username, password string) (*model.User, error) {
	return a.Client.Login(ctx, username, password)
}

// OpenReport returns a controller for one report. Each open report gets its
// own controller; they share the session and client.
func (a *Application) OpenReport(reportID int64) *controller.Controller {
	return controller.New(a.Client, reportID, a.Logger)
}

// AnalysisSession binds document analysis to a controller's chat, mirroring
// exchanges into its transcript.
func (a *Application) AnalysisSession(ctrl *controller.Controller) *analysis.Session {
	return analysis.NewSession(a.Client, ctrl.ChatID(), ctrl.Transcript(), a.Logger)
}

// GenerationPoller watches generation jobs with the configured cadence.
func (a *Application) GenerationPoller() *generation.Poller {
	return generation.NewPoller(a.Config.GenerationCfg, a.Client, a.Logger)
}

// PDFExporter renders report HTML to PDF.
func (a *Application) PDFExporter() *export.PDFExporter {
	return export.NewPDFExporter(a.Config.ExportCfg, a.Logger)
}

// Shutdown releases shared resources.
func (a *Application) Shutdown() {
	a.cancel()
	if a.wc != nil {
		a.wc.Close()
	}
	a.Logger.Info("application shut down")
}
