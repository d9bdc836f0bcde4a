// Package controller sequences every version and edit operation for one open
// report. It owns the ViewState and decides what is editable; all content
// mutations go through the editing service and are followed by a full history
// reload, because the service is the sole source of truth for version
// numbers.
package controller

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/raysh454/redline/internal/command"
	"github.com/raysh454/redline/internal/history"
	"github.com/raysh454/redline/internal/interfaces"
	"github.com/raysh454/redline/internal/logging"
	"github.com/raysh454/redline/internal/model"
	"github.com/raysh454/redline/internal/selection"
	"github.com/raysh454/redline/internal/transcript"
)

// State names the controller's lifecycle phase for one document.
type State string

const (
	StateIdle      State = "idle"
	StateLoading   State = "loading"
	StateViewing   State = "viewing"
	StateSwitching State = "switching_version"
	StateExecuting State = "executing_command"
	StateFailed    State = "failed"
)

// Invalid-state errors. These are raised synchronously, before any network
// call is attempted.
var (
	ErrNotLoaded           = errors.New("report is not loaded")
	ErrNotCurrentVersion   = errors.New("you may only edit the current version of the document")
	ErrAlreadyCurrent      = errors.New("version is already the current one")
	ErrMissingHistoryEntry = errors.New("version has no recorded history entry to restore from")
	ErrUnknownVersion      = errors.New("version number is out of range")
)

// Controller is safe for concurrent use: a single mutex serializes all
// operations for the document, preserving the exactly-one-mutation-in-flight
// invariant. Because every operation completes under the lock, a racing
// reload cannot clobber a newer view with a stale response.
type Controller struct {
	mu sync.Mutex

	svc    interfaces.EditorService
	store  *history.Store
	sel    *selection.Tracker
	tr     *transcript.Transcript
	logger logging.Logger

	reportID int64
	chatID   int64
	meta     *model.ReportMeta
	hist     *model.VersionHistory
	view     model.ViewState
	state    State
}

func New(svc interfaces.EditorService, reportID int64, logger logging.Logger) *Controller {
	scoped := logger.With(
		logging.Field{Key: "component", Value: "controller"},
		logging.Field{Key: "report_id", Value: reportID},
	)
	return &Controller{
		svc:      svc,
		store:    history.NewStore(svc, logger),
		sel:      selection.NewTracker(logger, nil),
		tr:       transcript.New(logger),
		logger:   scoped,
		reportID: reportID,
		state:    StateIdle,
	}
}

// ─── Accessors ─────────────────────────────────────────────────────────

// View returns the current view state.
func (c *Controller) View() model.ViewState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.view
}

// CurrentState returns the lifecycle phase.
func (c *Controller) CurrentState() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// ChatID returns the chat thread bound to the report (0 before Load).
func (c *Controller) ChatID() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.chatID
}

// AllVersions returns the dense [1, documentVersion] listing, ascending, with
// placeholders for versions missing from the recorded log.
func (c *Controller) AllVersions() []model.VersionEntry {
	c.mu.Lock()
	defer c.mu.Unlock()
	return history.DeriveAllVersions(c.hist)
}

// Selection returns a copy of the active selection, nil when none.
func (c *Controller) Selection() *model.Selection {
	return c.sel.Current()
}

// Transcript returns the chat transcript adapter.
func (c *Controller) Transcript() *transcript.Transcript {
	return c.tr
}

// ─── Selection operations ──────────────────────────────────────────────

// CaptureSelection records a text span from the rendered document. Capturing
// is only meaningful on the current version; browsing an old version is
// read-only.
func (c *Controller) CaptureSelection(raw selection.RawSelection) (*model.Selection, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == StateIdle || c.state == StateLoading {
		return nil, ErrNotLoaded
	}
	if !c.view.IsCurrentVersion() {
		return nil, ErrNotCurrentVersion
	}
	return c.sel.Capture(c.view.DocumentHTML, raw)
}

// ClearSelection discards the active selection.
func (c *Controller) ClearSelection() {
	c.sel.Clear()
}

// ─── Controller operations ─────────────────────────────────────────────

// Load fetches metadata, history, the chat binding and the current version's
// HTML. On failure the controller ends in StateFailed; the caller may invoke
// Load again, nothing is retried automatically.
func (c *Controller) Load(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.state = StateLoading

	meta, err := c.svc.ReportMeta(ctx, c.reportID)
	if err != nil {
		c.state = StateFailed
		return fmt.Errorf("load report %d: %w", c.reportID, err)
	}

	hist, err := c.store.Load(ctx, c.reportID)
	if err != nil {
		c.state = StateFailed
		return err
	}

	docVersion := hist.CurrentVersion
	if docVersion < 1 {
		docVersion = meta.DocumentVersion
	}
	if docVersion < 1 {
		docVersion = 1
	}

	chatID := meta.ChatID
	if chatID == 0 {
		chatID, err = c.svc.EnsureChat(ctx, c.reportID)
		if err != nil {
			c.state = StateFailed
			return fmt.Errorf("ensure chat for report %d: %w", c.reportID, err)
		}
	}

	html, err := c.svc.ReportHTML(ctx, c.reportID, docVersion)
	if err != nil {
		c.state = StateFailed
		return fmt.Errorf("fetch html for report %d: %w", c.reportID, err)
	}

	c.meta = meta
	c.hist = hist
	c.chatID = chatID
	c.view = model.ViewState{
		CurrentVersion:  docVersion,
		DocumentVersion: docVersion,
		DocumentHTML:    html,
	}
	c.state = StateViewing

	// The transcript is a best-effort read at load time; a failed chat fetch
	// does not fail the load.
	if chat, chatErr := c.svc.Chat(ctx, chatID); chatErr == nil {
		c.tr.Reconcile(chat.Messages)
	} else {
		c.logger.Warn("loading chat transcript",
			logging.Field{Key: "chat_id", Value: chatID},
			logging.Field{Key: "error", Value: chatErr.Error()})
	}

	c.logger.Info("report loaded",
		logging.Field{Key: "document_version", Value: docVersion},
		logging.Field{Key: "chat_id", Value: chatID})
	return nil
}

// SwitchToVersion renders version v. Switching to the already-viewed version
// is a no-op and issues no request. The HTML fetch does not depend on the
// history log, so versions missing from the log still render. A failed fetch
// leaves the prior view untouched. An actual switch invalidates the active
// selection.
func (c *Controller) SwitchToVersion(ctx context.Context, v int) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.requireLoadedLocked(); err != nil {
		return err
	}
	if v == c.view.CurrentVersion {
		return nil
	}
	if v < 1 || v > c.view.DocumentVersion {
		return fmt.Errorf("%w: %d", ErrUnknownVersion, v)
	}

	c.state = StateSwitching
	html, err := c.svc.ReportHTML(ctx, c.reportID, v)
	if err != nil {
		c.state = StateViewing
		return fmt.Errorf("switch to version %d: %w", v, err)
	}

	c.view.CurrentVersion = v
	c.view.DocumentHTML = html
	c.sel.Clear()
	c.state = StateViewing

	c.logger.Info("switched version",
		logging.Field{Key: "version", Value: v},
		logging.Field{Key: "is_current", Value: c.view.IsCurrentVersion()})
	return nil
}

// CreateVersion snapshots the current state as a new version, then reloads
// the authoritative history and jumps the view to the new current version.
// Allowed only while viewing the current version. Does not consume the
// selection.
func (c *Controller) CreateVersion(ctx context.Context, description string) (*model.MutationResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.requireLoadedLocked(); err != nil {
		return nil, err
	}
	if !c.view.IsCurrentVersion() {
		return nil, ErrNotCurrentVersion
	}

	c.state = StateExecuting
	res, err := c.svc.CreateVersion(ctx, c.reportID, description)
	if err != nil {
		c.state = StateViewing
		return nil, err
	}

	if err := c.reloadLocked(ctx); err != nil {
		return nil, err
	}
	c.logger.Info("created version",
		logging.Field{Key: "new_version", Value: c.view.DocumentVersion})
	return res, nil
}

// RestoreVersion asks the service to bring back version v's content as a new
// version (restore is additive, history is never truncated), then reloads and
// jumps to the new current version. A version without a recorded history
// entry cannot be restored: the service needs the logged snapshot.
func (c *Controller) RestoreVersion(ctx context.Context, v int) (*model.MutationResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.requireLoadedLocked(); err != nil {
		return nil, err
	}
	if v == c.view.DocumentVersion {
		return nil, ErrAlreadyCurrent
	}
	if v < 1 || v > c.view.DocumentVersion {
		return nil, fmt.Errorf("%w: %d", ErrUnknownVersion, v)
	}
	if _, ok := c.hist.Entry(v); !ok {
		return nil, fmt.Errorf("%w: %d", ErrMissingHistoryEntry, v)
	}

	c.state = StateExecuting
	res, err := c.svc.RestoreVersion(ctx, c.reportID, v)
	if err != nil {
		c.state = StateViewing
		return nil, err
	}

	if err := c.reloadLocked(ctx); err != nil {
		return nil, err
	}
	c.logger.Info("restored version",
		logging.Field{Key: "restored", Value: v},
		logging.Field{Key: "new_version", Value: c.view.DocumentVersion})
	return res, nil
}

// ExecuteCommand composes the pending instruction with the active selection
// and submits it to the editing service on the report's chat thread. Allowed
// only while viewing the current version; the check happens before any
// network call. On success the history is reloaded, the new current HTML
// fetched, the selection cleared and the transcript reconciled. On failure
// the selection and view are kept so the command can be retried without
// re-selecting.
func (c *Controller) ExecuteCommand(ctx context.Context, rawText string) (*model.MutationResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.requireLoadedLocked(); err != nil {
		return nil, err
	}
	if !c.view.IsCurrentVersion() {
		return nil, ErrNotCurrentVersion
	}

	cmd := command.Compose(rawText, c.sel.Current())

	// Echo only what the user typed; the selection context stays out of the
	// visible transcript.
	c.tr.AppendOptimistic(model.RoleUser, rawText)

	c.state = StateExecuting
	res, err := c.svc.ProcessCommand(ctx, c.reportID, c.chatID, cmd.ComposedText)
	if err != nil {
		c.state = StateViewing
		return nil, err
	}

	if err := c.reloadLocked(ctx); err != nil {
		return nil, err
	}
	c.sel.Clear()

	if res.Message != "" {
		c.tr.AppendOptimistic(model.RoleSystem, res.Message)
	}
	if chat, chatErr := c.svc.Chat(ctx, c.chatID); chatErr == nil {
		c.tr.Reconcile(chat.Messages)
	} else {
		c.logger.Warn("refreshing transcript after command",
			logging.Field{Key: "error", Value: chatErr.Error()})
	}

	c.logger.Info("command executed",
		logging.Field{Key: "new_version", Value: c.view.DocumentVersion})
	return res, nil
}

// RefreshTranscript replaces the transcript with the authoritative chat.
func (c *Controller) RefreshTranscript(ctx context.Context) error {
	c.mu.Lock()
	chatID := c.chatID
	c.mu.Unlock()
	if chatID == 0 {
		return ErrNotLoaded
	}
	chat, err := c.svc.Chat(ctx, chatID)
	if err != nil {
		return fmt.Errorf("refresh transcript: %w", err)
	}
	c.tr.Reconcile(chat.Messages)
	return nil
}

// ─── Internal helpers ──────────────────────────────────────────────────

func (c *Controller) requireLoadedLocked() error {
	switch c.state {
	case StateIdle, StateLoading, StateFailed:
		return ErrNotLoaded
	}
	return nil
}

// reloadLocked re-fetches the version history and the new current version's
// HTML after a successful mutation. Nothing is applied incrementally: the
// service's answer replaces local state wholesale.
func (c *Controller) reloadLocked(ctx context.Context) error {
	hist, err := c.store.Load(ctx, c.reportID)
	if err != nil {
		c.state = StateViewing
		return err
	}
	html, err := c.svc.ReportHTML(ctx, c.reportID, 0)
	if err != nil {
		c.state = StateViewing
		return fmt.Errorf("fetch html after mutation: %w", err)
	}

	c.hist = hist
	c.view = model.ViewState{
		CurrentVersion:  hist.CurrentVersion,
		DocumentVersion: hist.CurrentVersion,
		DocumentHTML:    html,
	}
	c.state = StateViewing
	return nil
}
