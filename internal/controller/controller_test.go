package controller_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/raysh454/redline/internal/controller"
	"github.com/raysh454/redline/internal/logging"
	"github.com/raysh454/redline/internal/model"
	"github.com/raysh454/redline/internal/selection"
)

// mockService is a scriptable in-memory editing service that counts calls.
type mockService struct {
	mu    sync.Mutex
	calls map[string]int

	meta model.ReportMeta
	hist model.VersionHistory
	html map[int]string
	chat model.Chat

	failProcess bool
	failHTML    bool
	lastCommand string
}

func newMockService() *mockService {
	m := &mockService{
		calls: make(map[string]int),
		meta:  model.ReportMeta{ID: 1, Title: "Отчёт", ChatID: 42, DocumentVersion: 3},
		hist: model.VersionHistory{
			CurrentVersion: 3,
			Entries: []model.VersionEntry{
				{Version: 1, Description: "Версия 1", ExistsInHistory: true},
				{Version: 2, Description: "Версия 2", ExistsInHistory: true},
				{Version: 3, Description: "Версия 3", ExistsInHistory: true},
			},
		},
		html: map[int]string{
			1: `<p data-paragraph-id="1">v1</p>`,
			2: `<p data-paragraph-id="1">v2</p>`,
			3: `<p data-paragraph-id="1">v3</p>`,
		},
		chat: model.Chat{ID: 42, Title: "Отчёт"},
	}
	return m
}

func (m *mockService) count(name string) {
	m.mu.Lock()
	m.calls[name]++
	m.mu.Unlock()
}

func (m *mockService) callCount(name string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[name]
}

func (m *mockService) bump(description, html string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	next := m.hist.CurrentVersion + 1
	m.hist.CurrentVersion = next
	m.hist.Entries = append(m.hist.Entries, model.VersionEntry{
		Version: next, Description: description, ExistsInHistory: true,
	})
	m.html[next] = html
	m.meta.DocumentVersion = next
	return next
}

func (m *mockService) ReportMeta(_ context.Context, _ int64) (*model.ReportMeta, error) {
	m.count("ReportMeta")
	m.mu.Lock()
	defer m.mu.Unlock()
	meta := m.meta
	return &meta, nil
}

func (m *mockService) VersionHistory(_ context.Context, _ int64) (*model.VersionHistory, error) {
	m.count("VersionHistory")
	m.mu.Lock()
	defer m.mu.Unlock()
	h := model.VersionHistory{CurrentVersion: m.hist.CurrentVersion}
	h.Entries = append(h.Entries, m.hist.Entries...)
	return &h, nil
}

func (m *mockService) ReportHTML(_ context.Context, _ int64, version int) (string, error) {
	m.count("ReportHTML")
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failHTML {
		return "", errors.New("service unavailable")
	}
	if version == 0 {
		version = m.hist.CurrentVersion
	}
	html, ok := m.html[version]
	if !ok {
		return "", fmt.Errorf("version %d not found", version)
	}
	return html, nil
}

func (m *mockService) CreateVersion(_ context.Context, _ int64, description string) (*model.MutationResult, error) {
	m.count("CreateVersion")
	m.mu.Lock()
	current := m.html[m.hist.CurrentVersion]
	m.mu.Unlock()
	next := m.bump(description, current)
	return &model.MutationResult{Success: true, Message: "Создана версия", NewVersion: next}, nil
}

func (m *mockService) RestoreVersion(_ context.Context, _ int64, version int) (*model.MutationResult, error) {
	m.count("RestoreVersion")
	m.mu.Lock()
	html, ok := m.html[version]
	m.mu.Unlock()
	if !ok {
		return nil, errors.New("version not found")
	}
	next := m.bump(fmt.Sprintf("Восстановлена версия %d", version), html)
	return &model.MutationResult{Success: true, Message: "Восстановлено", NewVersion: next}, nil
}

func (m *mockService) ProcessCommand(_ context.Context, _, _ int64, text string) (*model.MutationResult, error) {
	m.count("ProcessCommand")
	m.mu.Lock()
	fail := m.failProcess
	m.lastCommand = text
	current := m.html[m.hist.CurrentVersion]
	m.mu.Unlock()
	if fail {
		return nil, errors.New("command rejected")
	}
	next := m.bump("Автоматическая правка", current+`<p class="edit-note">done</p>`)
	m.mu.Lock()
	m.chat.Messages = append(m.chat.Messages,
		model.ChatMessage{ID: int64(len(m.chat.Messages) + 1), Role: model.RoleUser, Content: text, CreatedAt: time.Now()},
		model.ChatMessage{ID: int64(len(m.chat.Messages) + 2), Role: model.RoleAssistant, Content: "Готово", CreatedAt: time.Now()},
	)
	m.mu.Unlock()
	return &model.MutationResult{Success: true, Message: "Изменения применены", NewVersion: next}, nil
}

func (m *mockService) EnsureChat(_ context.Context, _ int64) (int64, error) {
	m.count("EnsureChat")
	return m.chat.ID, nil
}

func (m *mockService) Chat(_ context.Context, _ int64) (*model.Chat, error) {
	m.count("Chat")
	m.mu.Lock()
	defer m.mu.Unlock()
	c := model.Chat{ID: m.chat.ID, Title: m.chat.Title}
	c.Messages = append(c.Messages, m.chat.Messages...)
	return &c, nil
}

func (m *mockService) AddMessage(_ context.Context, _ int64, content string) ([]model.ChatMessage, error) {
	m.count("AddMessage")
	return []model.ChatMessage{{ID: 1, Role: model.RoleUser, Content: content}}, nil
}

func loadedController(t *testing.T, svc *mockService) *controller.Controller {
	t.Helper()
	ctrl := controller.New(svc, 1, logging.Nop{})
	if err := ctrl.Load(context.Background()); err != nil {
		t.Fatalf("Load: %v", err)
	}
	return ctrl
}

// ─── Loading ───────────────────────────────────────────────────────────

func TestOperationsBeforeLoad_FailWithoutNetwork(t *testing.T) {
	t.Parallel()
	svc := newMockService()
	ctrl := controller.New(svc, 1, logging.Nop{})

	if err := ctrl.SwitchToVersion(context.Background(), 2); !errors.Is(err, controller.ErrNotLoaded) {
		t.Errorf("SwitchToVersion: expected ErrNotLoaded, got %v", err)
	}
	if _, err := ctrl.ExecuteCommand(context.Background(), "x"); !errors.Is(err, controller.ErrNotLoaded) {
		t.Errorf("ExecuteCommand: expected ErrNotLoaded, got %v", err)
	}
	if svc.callCount("ReportHTML")+svc.callCount("ProcessCommand") != 0 {
		t.Error("unloaded controller must not touch the network")
	}
}

func TestLoad_ResolvesViewAndChat(t *testing.T) {
	t.Parallel()
	svc := newMockService()
	ctrl := loadedController(t, svc)

	view := ctrl.View()
	if view.CurrentVersion != 3 || view.DocumentVersion != 3 {
		t.Errorf("unexpected view: %+v", view)
	}
	if !view.IsCurrentVersion() {
		t.Error("freshly loaded view must be on the current version")
	}
	if ctrl.ChatID() != 42 {
		t.Errorf("expected chat 42, got %d", ctrl.ChatID())
	}
	if svc.callCount("EnsureChat") != 0 {
		t.Error("chat already linked in metadata, EnsureChat must not be called")
	}
}

func TestLoad_EnsuresChatWhenUnlinked(t *testing.T) {
	t.Parallel()
	svc := newMockService()
	svc.meta.ChatID = 0
	ctrl := loadedController(t, svc)

	if svc.callCount("EnsureChat") != 1 {
		t.Errorf("expected one EnsureChat call, got %d", svc.callCount("EnsureChat"))
	}
	if ctrl.ChatID() != 42 {
		t.Errorf("expected chat 42, got %d", ctrl.ChatID())
	}
}

// ─── Switching ─────────────────────────────────────────────────────────

func TestSwitchToVersion_SameVersion_IssuesNoRequests(t *testing.T) {
	t.Parallel()
	svc := newMockService()
	ctrl := loadedController(t, svc)
	before := svc.callCount("ReportHTML")

	if err := ctrl.SwitchToVersion(context.Background(), 3); err != nil {
		t.Fatalf("SwitchToVersion: %v", err)
	}
	if got := svc.callCount("ReportHTML"); got != before {
		t.Errorf("no-op switch issued %d requests", got-before)
	}
}

func TestSwitchToVersion_OlderVersion_ClearsSelection(t *testing.T) {
	t.Parallel()
	svc := newMockService()
	ctrl := loadedController(t, svc)

	if _, err := ctrl.CaptureSelection(selection.RawSelection{Text: "v3"}); err != nil {
		t.Fatalf("CaptureSelection: %v", err)
	}
	if err := ctrl.SwitchToVersion(context.Background(), 1); err != nil {
		t.Fatalf("SwitchToVersion: %v", err)
	}

	view := ctrl.View()
	if view.CurrentVersion != 1 || view.DocumentVersion != 3 {
		t.Errorf("unexpected view after switch: %+v", view)
	}
	if view.IsCurrentVersion() {
		t.Error("old version must be read-only")
	}
	if view.DocumentHTML != `<p data-paragraph-id="1">v1</p>` {
		t.Errorf("wrong html rendered: %q", view.DocumentHTML)
	}
	if ctrl.Selection() != nil {
		t.Error("switching versions must invalidate the selection")
	}
}

func TestSwitchToVersion_FetchFailure_KeepsPriorView(t *testing.T) {
	t.Parallel()
	svc := newMockService()
	ctrl := loadedController(t, svc)

	svc.mu.Lock()
	svc.failHTML = true
	svc.mu.Unlock()

	if err := ctrl.SwitchToVersion(context.Background(), 2); err == nil {
		t.Fatal("expected switch to fail")
	}
	view := ctrl.View()
	if view.CurrentVersion != 3 {
		t.Errorf("failed switch changed the view: %+v", view)
	}
	if ctrl.CurrentState() != controller.StateViewing {
		t.Errorf("expected StateViewing, got %s", ctrl.CurrentState())
	}
}

func TestSwitchToVersion_OutOfRange(t *testing.T) {
	t.Parallel()
	svc := newMockService()
	ctrl := loadedController(t, svc)
	before := svc.callCount("ReportHTML")

	if err := ctrl.SwitchToVersion(context.Background(), 99); !errors.Is(err, controller.ErrUnknownVersion) {
		t.Errorf("expected ErrUnknownVersion, got %v", err)
	}
	if svc.callCount("ReportHTML") != before {
		t.Error("out-of-range switch must not touch the network")
	}
}

// ─── Edit commands ─────────────────────────────────────────────────────

func TestExecuteCommand_OnOldVersion_RejectedBeforeNetwork(t *testing.T) {
	t.Parallel()
	svc := newMockService()
	ctrl := loadedController(t, svc)
	if err := ctrl.SwitchToVersion(context.Background(), 1); err != nil {
		t.Fatalf("SwitchToVersion: %v", err)
	}

	_, err := ctrl.ExecuteCommand(context.Background(), "поменяй заголовок")
	if !errors.Is(err, controller.ErrNotCurrentVersion) {
		t.Fatalf("expected ErrNotCurrentVersion, got %v", err)
	}
	if svc.callCount("ProcessCommand") != 0 {
		t.Error("rejected command must not reach the service")
	}
}

func TestExecuteCommand_ComposesSelectionAndReloads(t *testing.T) {
	t.Parallel()
	svc := newMockService()
	ctrl := loadedController(t, svc)

	if _, err := ctrl.CaptureSelection(selection.RawSelection{
		Text:          "v3",
		StartSelector: "p",
	}); err != nil {
		t.Fatalf("CaptureSelection: %v", err)
	}

	res, err := ctrl.ExecuteCommand(context.Background(), "сократи")
	if err != nil {
		t.Fatalf("ExecuteCommand: %v", err)
	}
	if !res.Success {
		t.Error("expected success result")
	}

	svc.mu.Lock()
	sent := svc.lastCommand
	svc.mu.Unlock()
	want := `[ВЫДЕЛЕННЫЙ ТЕКСТ: "v3" в параграфе 1] сократи`
	if sent != want {
		t.Errorf("composed command: expected %q, got %q", want, sent)
	}

	view := ctrl.View()
	if view.DocumentVersion != 4 || view.CurrentVersion != 4 {
		t.Errorf("view not advanced to new version: %+v", view)
	}
	if !strings.Contains(view.DocumentHTML, "edit-note") {
		t.Errorf("new html not fetched: %q", view.DocumentHTML)
	}
	if ctrl.Selection() != nil {
		t.Error("selection must be consumed by a successful command")
	}

	msgs := ctrl.Transcript().Messages()
	if len(msgs) != 2 {
		t.Fatalf("expected reconciled transcript with 2 messages, got %d", len(msgs))
	}
	if msgs[0].Content != want {
		t.Errorf("server transcript should carry the composed text, got %q", msgs[0].Content)
	}
}

func TestExecuteCommand_Failure_KeepsSelectionAndView(t *testing.T) {
	t.Parallel()
	svc := newMockService()
	ctrl := loadedController(t, svc)

	if _, err := ctrl.CaptureSelection(selection.RawSelection{Text: "v3"}); err != nil {
		t.Fatalf("CaptureSelection: %v", err)
	}
	svc.mu.Lock()
	svc.failProcess = true
	svc.mu.Unlock()

	if _, err := ctrl.ExecuteCommand(context.Background(), "сломайся"); err == nil {
		t.Fatal("expected command failure")
	}
	if ctrl.Selection() == nil {
		t.Error("failed command must preserve the selection for retry")
	}
	view := ctrl.View()
	if view.DocumentVersion != 3 || view.CurrentVersion != 3 {
		t.Errorf("failed command changed the view: %+v", view)
	}
}

func TestExecuteCommand_SequentialBumpsByOne(t *testing.T) {
	t.Parallel()
	svc := newMockService()
	ctrl := loadedController(t, svc)

	for i := 0; i < 3; i++ {
		if _, err := ctrl.ExecuteCommand(context.Background(), fmt.Sprintf("команда %d", i)); err != nil {
			t.Fatalf("ExecuteCommand %d: %v", i, err)
		}
	}
	if view := ctrl.View(); view.DocumentVersion != 6 {
		t.Errorf("expected version 6 after three commands, got %d", view.DocumentVersion)
	}
}

// ─── Create and restore ────────────────────────────────────────────────

func TestCreateVersion_OnOldVersion_Rejected(t *testing.T) {
	t.Parallel()
	svc := newMockService()
	ctrl := loadedController(t, svc)
	if err := ctrl.SwitchToVersion(context.Background(), 2); err != nil {
		t.Fatalf("SwitchToVersion: %v", err)
	}

	if _, err := ctrl.CreateVersion(context.Background(), "снимок"); !errors.Is(err, controller.ErrNotCurrentVersion) {
		t.Errorf("expected ErrNotCurrentVersion, got %v", err)
	}
	if svc.callCount("CreateVersion") != 0 {
		t.Error("rejected snapshot must not reach the service")
	}
}

func TestCreateVersion_JumpsToNewCurrent(t *testing.T) {
	t.Parallel()
	svc := newMockService()
	ctrl := loadedController(t, svc)

	res, err := ctrl.CreateVersion(context.Background(), "снимок")
	if err != nil {
		t.Fatalf("CreateVersion: %v", err)
	}
	if res.NewVersion != 4 {
		t.Errorf("expected new version 4, got %d", res.NewVersion)
	}
	if view := ctrl.View(); view.CurrentVersion != 4 || view.DocumentVersion != 4 {
		t.Errorf("view not on new current: %+v", view)
	}
}

func TestRestoreVersion_IsAdditive(t *testing.T) {
	t.Parallel()
	svc := newMockService()
	ctrl := loadedController(t, svc)

	res, err := ctrl.RestoreVersion(context.Background(), 1)
	if err != nil {
		t.Fatalf("RestoreVersion: %v", err)
	}
	if res.NewVersion != 4 {
		t.Errorf("restore must create a new version, got %d", res.NewVersion)
	}

	view := ctrl.View()
	if view.DocumentVersion != 4 {
		t.Errorf("counter not advanced: %+v", view)
	}
	if view.DocumentHTML != `<p data-paragraph-id="1">v1</p>` {
		t.Errorf("restored content mismatch: %q", view.DocumentHTML)
	}
	if len(ctrl.AllVersions()) != 4 {
		t.Error("history was truncated by restore")
	}
}

func TestRestoreVersion_CurrentVersion_Rejected(t *testing.T) {
	t.Parallel()
	svc := newMockService()
	ctrl := loadedController(t, svc)

	if _, err := ctrl.RestoreVersion(context.Background(), 3); !errors.Is(err, controller.ErrAlreadyCurrent) {
		t.Errorf("expected ErrAlreadyCurrent, got %v", err)
	}
	if svc.callCount("RestoreVersion") != 0 {
		t.Error("rejected restore must not reach the service")
	}
}

func TestRestoreVersion_MissingHistoryEntry_RejectedBeforeNetwork(t *testing.T) {
	t.Parallel()
	svc := newMockService()
	// Version 2 exists as a counter slot but has no recorded entry.
	svc.hist.Entries = []model.VersionEntry{
		{Version: 1, ExistsInHistory: true},
		{Version: 3, ExistsInHistory: true},
	}
	ctrl := loadedController(t, svc)

	if _, err := ctrl.RestoreVersion(context.Background(), 2); !errors.Is(err, controller.ErrMissingHistoryEntry) {
		t.Errorf("expected ErrMissingHistoryEntry, got %v", err)
	}
	if svc.callCount("RestoreVersion") != 0 {
		t.Error("missing-entry restore must not reach the service")
	}
}

// ─── Version derivation through the controller ─────────────────────────

func TestAllVersions_GapIsMarked(t *testing.T) {
	t.Parallel()
	svc := newMockService()
	svc.hist.Entries = []model.VersionEntry{
		{Version: 1, ExistsInHistory: true},
		{Version: 3, ExistsInHistory: true},
	}
	ctrl := loadedController(t, svc)

	all := ctrl.AllVersions()
	if len(all) != 3 {
		t.Fatalf("expected dense listing of 3, got %d", len(all))
	}
	if !all[0].ExistsInHistory || all[1].ExistsInHistory || !all[2].ExistsInHistory {
		t.Errorf("gap flags wrong: %v %v %v",
			all[0].ExistsInHistory, all[1].ExistsInHistory, all[2].ExistsInHistory)
	}
}
