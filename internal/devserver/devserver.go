// Package devserver is a self-contained report-editing service for local
// development and integration tests. It speaks the same HTTP/JSON surface the
// real service exposes, backed by SQLite, so the client stack can be driven
// end to end without external infrastructure.
package devserver

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/raysh454/redline/internal/logging"
	"github.com/raysh454/redline/internal/model"
)

// Event is pushed to websocket subscribers when a report mutates.
type Event struct {
	Type      string    `json:"type"`
	ReportID  int64     `json:"report_id"`
	Version   int       `json:"version,omitempty"`
	Message   string    `json:"message,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Server is the development report-editing service.
type Server struct {
	cfg      Config
	store    *Store
	router   chi.Router
	upgrader websocket.Upgrader
	logger   logging.Logger

	mu       sync.Mutex
	tokens   map[string]int64 // bearer token -> user id
	genReads map[int64]int    // report id -> status poll count
	subs     map[int64][]chan Event
}

func NewServer(cfg Config) (*Server, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = logging.NewStdoutLogger("DevServer")
	}
	if cfg.DBPath == "" {
		cfg.DBPath = DefaultConfig().DBPath
	}

	store, err := NewStore(cfg.DBPath, logger)
	if err != nil {
		return nil, err
	}

	s := &Server{
		cfg:    cfg,
		store:  store,
		router: chi.NewRouter(),
		logger: logger,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		tokens:   make(map[string]int64),
		genReads: make(map[int64]int),
		subs:     make(map[int64][]chan Event),
	}

	if cfg.SeedDemoData {
		if err := s.seed(); err != nil {
			store.Close()
			return nil, err
		}
	}

	s.routes()
	return s, nil
}

// Store exposes the backing store for tests and the debug surface.
func (s *Server) Store() *Store {
	return s.store
}

// Close releases the database.
func (s *Server) Close() {
	s.mu.Lock()
	for _, chans := range s.subs {
		for _, ch := range chans {
			close(ch)
		}
	}
	s.subs = make(map[int64][]chan Event)
	s.mu.Unlock()

	s.store.Close()
}

// HTTPServer creates an *http.Server ready to ListenAndServe.
func (s *Server) HTTPServer() *http.Server {
	return &http.Server{
		Addr:         s.cfg.ListenAddr,
		Handler:      s,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 0, // allow streaming
	}
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.logger.Debug("http_request",
		logging.Field{Key: "method", Value: r.Method},
		logging.Field{Key: "path", Value: r.URL.Path})
	s.router.ServeHTTP(w, r)
}

func (s *Server) seed() error {
	ctx := context.Background()
	user, err := s.store.CreateUser(ctx, "demo", "demo@example.com", "demo")
	if err != nil {
		return fmt.Errorf("seed demo user: %w", err)
	}
	const demoHTML = `<div class="report"><h1>Отчёт</h1><p data-paragraph-id="1">Первый раздел отчёта.</p><p data-paragraph-id="2">Второй раздел отчёта.</p></div>`
	report, err := s.store.CreateReport(ctx, user.ID, "Демонстрационный отчёт", demoHTML)
	if err != nil {
		return fmt.Errorf("seed demo report: %w", err)
	}
	s.logger.Info("seeded demo data",
		logging.Field{Key: "user", Value: user.Username},
		logging.Field{Key: "report_id", Value: report.ID})
	return nil
}

func (s *Server) routes() {
	r := s.router

	r.Use(s.corsMiddleware)

	r.Route("/api", func(api chi.Router) {
		api.Post("/users/register", s.handleRegister)
		api.Post("/users/login", s.handleLogin)

		api.Group(func(auth chi.Router) {
			auth.Use(s.authMiddleware)

			auth.Get("/users/me", s.handleCurrentUser)

			auth.Post("/reports", s.handleCreateReport)
			auth.Get("/reports/{reportID}", s.handleGetReport)
			auth.Get("/reports/{reportID}/status", s.handleGenerationStatus)
			auth.Post("/reports/{reportID}/generate-with-chat", s.handleEnsureChat)

			auth.Get("/report-editor/reports/{reportID}/versions", s.handleListVersions)
			auth.Post("/report-editor/reports/{reportID}/versions", s.handleCreateVersion)
			auth.Post("/report-editor/reports/{reportID}/versions/{version}/restore", s.handleRestoreVersion)
			auth.Get("/report-editor/reports/{reportID}/html", s.handleReportHTML)
			auth.Post("/report-editor/reports/{reportID}/chat/{chatID}/process-command", s.handleProcessCommand)
			auth.Post("/report-editor/reports/{reportID}/generate-with-chat", s.handleEnsureChat)

			auth.Get("/chats/{chatID}", s.handleGetChat)
			auth.Post("/chats/{chatID}/messages", s.handleAddMessage)
			auth.Post("/chats/{chatID}/analyze-document", s.handleAnalyzeDocument)

			auth.Post("/document-analysis/upload", s.handleUploadDocument)
			auth.Get("/document-analysis/chats/{chatID}/documents", s.handleListDocuments)

			// Debug surface: drop a history row to reproduce the degraded
			// log state where the counter runs ahead of recorded entries.
			auth.Delete("/debug/reports/{reportID}/versions/{version}", s.handleDeleteHistoryRow)
		})
	})

	r.Get("/ws/reports/{reportID}/events", s.handleEventsWS)

	s.mountSwagger(r)
}

func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || token == "" {
			writeError(w, http.StatusUnauthorized, "missing bearer token")
			return
		}
		s.mu.Lock()
		userID, valid := s.tokens[token]
		s.mu.Unlock()
		if !valid {
			writeError(w, http.StatusUnauthorized, "invalid or expired token")
			return
		}
		next.ServeHTTP(w, r.WithContext(withUserID(r.Context(), userID)))
	})
}

type ctxKey int

const userIDKey ctxKey = iota

func withUserID(ctx context.Context, id int64) context.Context {
	return context.WithValue(ctx, userIDKey, id)
}

func userIDFrom(ctx context.Context) int64 {
	id, _ := ctx.Value(userIDKey).(int64)
	return id
}

// ─── JSON helpers ──────────────────────────────────────────────────────

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		_ = json.NewEncoder(w).Encode(v)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"detail": msg})
}

func idParam(r *http.Request, name string) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, name), 10, 64)
}

// ─── Auth handlers ─────────────────────────────────────────────────────

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Username string `json:"username"`
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Username == "" || body.Password == "" {
		writeError(w, http.StatusBadRequest, "username and password are required")
		return
	}
	user, err := s.store.CreateUser(r.Context(), body.Username, body.Email, body.Password)
	if err != nil {
		writeError(w, http.StatusConflict, "username already taken")
		return
	}
	writeJSON(w, http.StatusCreated, user)
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	user, err := s.store.Authenticate(r.Context(), body.Username, body.Password)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "invalid username or password")
		return
	}

	token := uuid.New().String()
	s.mu.Lock()
	s.tokens[token] = user.ID
	s.mu.Unlock()

	s.logger.Info("user logged in", logging.Field{Key: "username", Value: user.Username})
	writeJSON(w, http.StatusOK, map[string]any{
		"access_token": token,
		"token_type":   "bearer",
		"user":         user,
	})
}

func (s *Server) handleCurrentUser(w http.ResponseWriter, r *http.Request) {
	user, err := s.store.UserByID(r.Context(), userIDFrom(r.Context()))
	if err != nil {
		writeError(w, http.StatusNotFound, "user not found")
		return
	}
	writeJSON(w, http.StatusOK, user)
}

// ─── Report handlers ───────────────────────────────────────────────────

func (s *Server) handleCreateReport(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Title string `json:"title"`
		HTML  string `json:"html"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Title == "" {
		writeError(w, http.StatusBadRequest, "title is required")
		return
	}
	if body.HTML == "" {
		body.HTML = fmt.Sprintf(`<div class="report"><h1>%s</h1><p data-paragraph-id="1"></p></div>`, body.Title)
	}
	report, err := s.store.CreateReport(r.Context(), userIDFrom(r.Context()), body.Title, body.HTML)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, report)
}

func (s *Server) handleGetReport(w http.ResponseWriter, r *http.Request) {
	reportID, err := idParam(r, "reportID")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid report id")
		return
	}
	report, err := s.store.Report(r.Context(), reportID)
	if err != nil {
		writeError(w, http.StatusNotFound, "report not found")
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// handleGenerationStatus advances the simulated generation job one step per
// poll: pending, then in_progress, then completed.
func (s *Server) handleGenerationStatus(w http.ResponseWriter, r *http.Request) {
	reportID, err := idParam(r, "reportID")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid report id")
		return
	}
	report, err := s.store.Report(r.Context(), reportID)
	if err != nil {
		writeError(w, http.StatusNotFound, "report not found")
		return
	}

	status := report.Status
	if !(model.GenerationStatus{Status: status}).Terminal() {
		s.mu.Lock()
		s.genReads[reportID]++
		reads := s.genReads[reportID]
		s.mu.Unlock()

		switch {
		case reads >= 3:
			status = model.StatusCompleted
		case reads >= 2:
			status = model.StatusInProgress
		default:
			status = model.StatusPending
		}
		if status != report.Status {
			if err := s.store.SetReportStatus(r.Context(), reportID, status); err != nil {
				writeError(w, http.StatusInternalServerError, err.Error())
				return
			}
		}
	}

	writeJSON(w, http.StatusOK, model.GenerationStatus{
		ReportID: reportID,
		Status:   status,
	})
}

func (s *Server) handleEnsureChat(w http.ResponseWriter, r *http.Request) {
	reportID, err := idParam(r, "reportID")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid report id")
		return
	}
	chatID, err := s.store.EnsureChat(r.Context(), reportID)
	if err != nil {
		writeError(w, http.StatusNotFound, "report not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"report_id": reportID,
		"chat_id":   chatID,
	})
}

// ─── Version handlers ──────────────────────────────────────────────────

func (s *Server) handleListVersions(w http.ResponseWriter, r *http.Request) {
	reportID, err := idParam(r, "reportID")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid report id")
		return
	}
	if err := s.store.EnsureHistory(r.Context(), reportID); err != nil {
		writeError(w, http.StatusNotFound, "report not found")
		return
	}
	current, entries, err := s.store.History(r.Context(), reportID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"current_version": current,
		"total_versions":  len(entries),
		"history":         entries,
	})
}

func (s *Server) handleReportHTML(w http.ResponseWriter, r *http.Request) {
	reportID, err := idParam(r, "reportID")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid report id")
		return
	}
	version := 0
	if vs := r.URL.Query().Get("version"); vs != "" {
		version, err = strconv.Atoi(vs)
		if err != nil || version < 1 {
			writeError(w, http.StatusBadRequest, "invalid version")
			return
		}
	}
	if err := s.store.EnsureHistory(r.Context(), reportID); err != nil {
		writeError(w, http.StatusNotFound, "report not found")
		return
	}
	html, resolved, err := s.store.VersionHTML(r.Context(), reportID, version)
	if err != nil {
		writeError(w, http.StatusNotFound, "version not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"html":    html,
		"version": resolved,
	})
}

func (s *Server) handleCreateVersion(w http.ResponseWriter, r *http.Request) {
	reportID, err := idParam(r, "reportID")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid report id")
		return
	}
	var body struct {
		Description string `json:"description"`
	}
	_ = json.NewDecoder(r.Body).Decode(&body)

	next, err := s.store.AppendVersion(r.Context(), reportID,
		descriptionOr(body.Description, "Сохранённая версия"), "", "")
	if err != nil {
		writeError(w, http.StatusNotFound, "report not found")
		return
	}
	_, entries, _ := s.store.History(r.Context(), reportID)

	s.broadcast(Event{Type: "version_created", ReportID: reportID, Version: next, Timestamp: time.Now().UTC()})
	writeJSON(w, http.StatusOK, map[string]any{
		"success":        true,
		"message":        fmt.Sprintf("Создана версия %d", next),
		"version":        next,
		"total_versions": len(entries),
	})
}

func (s *Server) handleRestoreVersion(w http.ResponseWriter, r *http.Request) {
	reportID, err := idParam(r, "reportID")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid report id")
		return
	}
	version, err := idParam(r, "version")
	if err != nil || version < 1 {
		writeError(w, http.StatusBadRequest, "invalid version")
		return
	}
	if err := s.store.EnsureHistory(r.Context(), reportID); err != nil {
		writeError(w, http.StatusNotFound, "report not found")
		return
	}

	next, err := s.store.RestoreVersion(r.Context(), reportID, int(version))
	if err != nil {
		writeJSON(w, http.StatusOK, map[string]any{
			"success": false,
			"message": fmt.Sprintf("Версия %d не найдена в истории", version),
		})
		return
	}

	s.broadcast(Event{Type: "version_restored", ReportID: reportID, Version: next, Timestamp: time.Now().UTC()})
	writeJSON(w, http.StatusOK, map[string]any{
		"success":     true,
		"message":     fmt.Sprintf("Восстановлена версия %d", version),
		"new_version": next,
	})
}

func (s *Server) handleDeleteHistoryRow(w http.ResponseWriter, r *http.Request) {
	reportID, err := idParam(r, "reportID")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid report id")
		return
	}
	version, err := idParam(r, "version")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid version")
		return
	}
	if err := s.store.DeleteHistoryRow(r.Context(), reportID, int(version)); err != nil {
		writeError(w, http.StatusNotFound, "version not found")
		return
	}
	writeJSON(w, http.StatusNoContent, nil)
}

// ─── Edit command handler ──────────────────────────────────────────────

func (s *Server) handleProcessCommand(w http.ResponseWriter, r *http.Request) {
	reportID, err := idParam(r, "reportID")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid report id")
		return
	}
	chatID, err := idParam(r, "chatID")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid chat id")
		return
	}
	var body struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || strings.TrimSpace(body.Text) == "" {
		writeError(w, http.StatusBadRequest, "text is required")
		return
	}

	ctx := r.Context()
	if err := s.store.EnsureHistory(ctx, reportID); err != nil {
		writeError(w, http.StatusNotFound, "report not found")
		return
	}
	owner, err := s.store.ReportByChat(ctx, chatID)
	if err != nil || owner.ID != reportID {
		writeError(w, http.StatusNotFound, "chat is not linked to this report")
		return
	}
	if _, err := s.store.AddMessage(ctx, chatID, model.RoleUser, body.Text); err != nil {
		writeError(w, http.StatusNotFound, "chat not found")
		return
	}

	// The real service runs the command through a language model. Here the
	// edit is a deterministic transform so tests can assert on content.
	html, _, err := s.store.VersionHTML(ctx, reportID, 0)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	next, err := s.store.AppendVersion(ctx, reportID,
		"Автоматическая правка", body.Text, applyCommand(html, body.Text))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	message := fmt.Sprintf("Изменения применены, создана версия %d", next)
	if _, err := s.store.AddMessage(ctx, chatID, model.RoleAssistant, message); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	s.broadcast(Event{Type: "command_processed", ReportID: reportID, Version: next, Message: message, Timestamp: time.Now().UTC()})
	writeJSON(w, http.StatusOK, map[string]any{
		"success":     true,
		"message":     message,
		"new_version": next,
	})
}

// applyCommand produces the edited document. The appended paragraph records
// the instruction verbatim, which is enough for the client stack to observe a
// real content change between versions.
func applyCommand(html, text string) string {
	note := fmt.Sprintf(`<p class="edit-note">Правка: %s</p>`, text)
	if idx := strings.LastIndex(html, "</div>"); idx >= 0 {
		return html[:idx] + note + html[idx:]
	}
	return html + note
}

func descriptionOr(desc, fallback string) string {
	if strings.TrimSpace(desc) != "" {
		return desc
	}
	return fallback
}

// ─── Chat handlers ─────────────────────────────────────────────────────

func (s *Server) handleGetChat(w http.ResponseWriter, r *http.Request) {
	chatID, err := idParam(r, "chatID")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid chat id")
		return
	}
	chat, err := s.store.Chat(r.Context(), chatID)
	if err != nil {
		writeError(w, http.StatusNotFound, "chat not found")
		return
	}
	writeJSON(w, http.StatusOK, chat)
}

func (s *Server) handleAddMessage(w http.ResponseWriter, r *http.Request) {
	chatID, err := idParam(r, "chatID")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid chat id")
		return
	}
	var body struct {
		Content string `json:"content"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || strings.TrimSpace(body.Content) == "" {
		writeError(w, http.StatusBadRequest, "content is required")
		return
	}

	userMsg, err := s.store.AddMessage(r.Context(), chatID, model.RoleUser, body.Content)
	if err != nil {
		writeError(w, http.StatusNotFound, "chat not found")
		return
	}
	reply, err := s.store.AddMessage(r.Context(), chatID, model.RoleAssistant,
		"Сообщение получено: "+body.Content)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, []model.ChatMessage{*userMsg, *reply})
}

// ─── Document analysis handlers ────────────────────────────────────────

func (s *Server) handleUploadDocument(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(16 << 20); err != nil {
		writeError(w, http.StatusBadRequest, "invalid multipart body")
		return
	}
	chatID, err := strconv.ParseInt(r.FormValue("chat_id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid chat id")
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "file is required")
		return
	}
	defer file.Close()

	content, err := io.ReadAll(file)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	fileType := strings.TrimPrefix(filepath.Ext(header.Filename), ".")

	doc, err := s.store.AddDocument(r.Context(), chatID, header.Filename, fileType, content)
	if err != nil {
		writeError(w, http.StatusNotFound, "chat not found")
		return
	}
	writeJSON(w, http.StatusCreated, doc)
}

func (s *Server) handleListDocuments(w http.ResponseWriter, r *http.Request) {
	chatID, err := idParam(r, "chatID")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid chat id")
		return
	}
	docs, err := s.store.Documents(r.Context(), chatID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, docs)
}

func (s *Server) handleAnalyzeDocument(w http.ResponseWriter, r *http.Request) {
	chatID, err := idParam(r, "chatID")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid chat id")
		return
	}
	var body struct {
		DocumentID int64  `json:"document_id"`
		Question   string `json:"question"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || strings.TrimSpace(body.Question) == "" {
		writeError(w, http.StatusBadRequest, "document_id and question are required")
		return
	}

	doc, err := s.store.Document(r.Context(), chatID, body.DocumentID)
	if err != nil {
		writeError(w, http.StatusNotFound, "document not found")
		return
	}

	answer := fmt.Sprintf("Ответ по документу %q: %s", doc.OriginalFilename, body.Question)
	if _, err := s.store.AddMessage(r.Context(), chatID, model.RoleUser,
		"[Вопрос по документу] "+body.Question); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if _, err := s.store.AddMessage(r.Context(), chatID, model.RoleAssistant, answer); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"content": answer})
}

// ─── WebSocket events ──────────────────────────────────────────────────

// broadcast delivers ev to every subscriber of the report. The sends happen
// under s.mu: unsubscribe and Close close subscriber channels under the same
// lock, so a send can never race a close. The sends are non-blocking, so
// holding the lock is cheap.
func (s *Server) broadcast(ev Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, ch := range s.subs[ev.ReportID] {
		select {
		case ch <- ev:
		default:
			// Slow subscriber; drop rather than block mutations.
		}
	}
}

func (s *Server) subscribe(reportID int64) chan Event {
	ch := make(chan Event, 16)
	s.mu.Lock()
	s.subs[reportID] = append(s.subs[reportID], ch)
	s.mu.Unlock()
	return ch
}

func (s *Server) unsubscribe(reportID int64, ch chan Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	chans := s.subs[reportID]
	for i, c := range chans {
		if c == ch {
			s.subs[reportID] = append(chans[:i], chans[i+1:]...)
			close(ch)
			return
		}
	}
}

func (s *Server) handleEventsWS(w http.ResponseWriter, r *http.Request) {
	reportID, err := idParam(r, "reportID")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid report id")
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("upgrading to websocket", logging.Field{Key: "error", Value: err.Error()})
		return
	}
	defer conn.Close()

	ch := s.subscribe(reportID)
	defer s.unsubscribe(reportID, ch)

	for {
		select {
		case <-r.Context().Done():
			return
		case ev, ok := <-ch:
			if !ok {
				return
			}
			if err := conn.WriteJSON(ev); err != nil {
				return
			}
		}
	}
}
