package devserver

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"embed"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/raysh454/redline/internal/logging"
	"github.com/raysh454/redline/internal/model"

	_ "modernc.org/sqlite" // SQLite driver
)

//go:embed schema.sql
var schemaFS embed.FS

var (
	ErrUserNotFound     = errors.New("user not found")
	ErrBadCredentials   = errors.New("invalid username or password")
	ErrReportNotFound   = errors.New("report not found")
	ErrChatNotFound     = errors.New("chat not found")
	ErrVersionNotFound  = errors.New("version not found")
	ErrDocumentNotFound = errors.New("document not found")
)

// Store persists the development service's state in SQLite.
type Store struct {
	db     *sql.DB
	logger logging.Logger
}

func NewStore(dbPath string, logger logging.Logger) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// In-memory databases disappear per-connection; a single connection keeps
	// one coherent database.
	db.SetMaxOpenConns(1)

	if err := applySchema(db); err != nil {
		db.Close()
		return nil, err
	}
	return &Store{db: db, logger: logger}, nil
}

func applySchema(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
		"PRAGMA busy_timeout=5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("set pragma %q: %w", pragma, err)
		}
	}

	schemaSQL, err := schemaFS.ReadFile("schema.sql")
	if err != nil {
		return fmt.Errorf("read schema.sql: %w", err)
	}
	if _, err := db.Exec(string(schemaSQL)); err != nil {
		return fmt.Errorf("execute schema: %w", err)
	}
	return nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func hashPassword(password string) string {
	sum := sha256.Sum256([]byte(password))
	return hex.EncodeToString(sum[:])
}

// ─── Users ─────────────────────────────────────────────────────────────

func (s *Store) CreateUser(ctx context.Context, username, email, password string) (*model.User, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO users (username, email, password_hash) VALUES (?, ?, ?)`,
		username, email, hashPassword(password))
	if err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}
	id, _ := res.LastInsertId()
	return &model.User{ID: id, Username: username, Email: email}, nil
}

func (s *Store) Authenticate(ctx context.Context, username, password string) (*model.User, error) {
	var u model.User
	var hash string
	err := s.db.QueryRowContext(ctx,
		`SELECT id, username, email, password_hash FROM users WHERE username = ?`, username).
		Scan(&u.ID, &u.Username, &u.Email, &hash)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrBadCredentials
	}
	if err != nil {
		return nil, fmt.Errorf("authenticate: %w", err)
	}
	if hash != hashPassword(password) {
		return nil, ErrBadCredentials
	}
	return &u, nil
}

func (s *Store) UserByID(ctx context.Context, id int64) (*model.User, error) {
	var u model.User
	err := s.db.QueryRowContext(ctx,
		`SELECT id, username, email FROM users WHERE id = ?`, id).
		Scan(&u.ID, &u.Username, &u.Email)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load user: %w", err)
	}
	return &u, nil
}

// ─── Reports ───────────────────────────────────────────────────────────

func (s *Store) CreateReport(ctx context.Context, userID int64, title, html string) (*model.ReportMeta, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO reports (user_id, title, document_version, status, current_html)
		 VALUES (?, ?, 1, ?, ?)`,
		userID, title, model.StatusPending, html)
	if err != nil {
		return nil, fmt.Errorf("create report: %w", err)
	}
	id, _ := res.LastInsertId()
	return s.Report(ctx, id)
}

func (s *Store) Report(ctx context.Context, id int64) (*model.ReportMeta, error) {
	var m model.ReportMeta
	var chatID sql.NullInt64
	err := s.db.QueryRowContext(ctx,
		`SELECT id, title, file_path, chat_id, document_version, status, created_at
		 FROM reports WHERE id = ?`, id).
		Scan(&m.ID, &m.Title, &m.FilePath, &chatID, &m.DocumentVersion, &m.Status, &m.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrReportNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load report: %w", err)
	}
	if chatID.Valid {
		m.ChatID = chatID.Int64
	}
	return &m, nil
}

func (s *Store) SetReportStatus(ctx context.Context, id int64, status string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE reports SET status = ? WHERE id = ?`, status, id)
	if err != nil {
		return fmt.Errorf("set report status: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrReportNotFound
	}
	return nil
}

// ─── Versions ──────────────────────────────────────────────────────────

// EnsureHistory seeds the version log with the initial entry when a report
// has none yet. The service does this lazily on first history read.
func (s *Store) EnsureHistory(ctx context.Context, reportID int64) error {
	m, err := s.Report(ctx, reportID)
	if err != nil {
		return err
	}
	var n int
	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM report_versions WHERE report_id = ?`, reportID).Scan(&n); err != nil {
		return fmt.Errorf("count versions: %w", err)
	}
	if n > 0 {
		return nil
	}
	var html string
	if err := s.db.QueryRowContext(ctx,
		`SELECT current_html FROM reports WHERE id = ?`, reportID).Scan(&html); err != nil {
		return fmt.Errorf("load current html: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO report_versions (report_id, version, description, edit_description, html)
		 VALUES (?, ?, ?, '', ?)`,
		reportID, m.DocumentVersion, fmt.Sprintf("Версия %d", m.DocumentVersion), html)
	if err != nil {
		return fmt.Errorf("seed history: %w", err)
	}
	return nil
}

// History returns the recorded version log, ascending, plus the authoritative
// current version.
func (s *Store) History(ctx context.Context, reportID int64) (current int, entries []model.VersionEntry, err error) {
	m, err := s.Report(ctx, reportID)
	if err != nil {
		return 0, nil, err
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT version, description, edit_description, created_at
		 FROM report_versions WHERE report_id = ? ORDER BY version ASC`, reportID)
	if err != nil {
		return 0, nil, fmt.Errorf("load history: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var e model.VersionEntry
		if err := rows.Scan(&e.Version, &e.Description, &e.EditDescription, &e.Timestamp); err != nil {
			return 0, nil, fmt.Errorf("scan history row: %w", err)
		}
		e.HasHTML = true
		e.ExistsInHistory = true
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return 0, nil, fmt.Errorf("load history: %w", err)
	}
	return m.DocumentVersion, entries, nil
}

// VersionHTML returns the rendered HTML of a version; version 0 means the
// current one. When the exact row is gone (degraded history) the nearest
// lower recorded version serves as fallback, then the current content, so
// old versions keep rendering.
func (s *Store) VersionHTML(ctx context.Context, reportID int64, version int) (string, int, error) {
	m, err := s.Report(ctx, reportID)
	if err != nil {
		return "", 0, err
	}
	if version == 0 {
		version = m.DocumentVersion
	}
	if version < 1 || version > m.DocumentVersion {
		return "", 0, ErrVersionNotFound
	}

	if version == m.DocumentVersion {
		var html string
		if err := s.db.QueryRowContext(ctx,
			`SELECT current_html FROM reports WHERE id = ?`, reportID).Scan(&html); err != nil {
			return "", 0, fmt.Errorf("load current html: %w", err)
		}
		return html, version, nil
	}

	var html string
	err = s.db.QueryRowContext(ctx,
		`SELECT html FROM report_versions
		 WHERE report_id = ? AND version <= ?
		 ORDER BY version DESC LIMIT 1`, reportID, version).Scan(&html)
	if errors.Is(err, sql.ErrNoRows) {
		// Nothing recorded at or below the gap; the current content is the
		// only snapshot left to show.
		if err := s.db.QueryRowContext(ctx,
			`SELECT current_html FROM reports WHERE id = ?`, reportID).Scan(&html); err != nil {
			return "", 0, fmt.Errorf("load current html: %w", err)
		}
		return html, version, nil
	}
	if err != nil {
		return "", 0, fmt.Errorf("load version html: %w", err)
	}
	return html, version, nil
}

// AppendVersion records the current document state as a new version and bumps
// the authoritative counter. newHTML, when non-empty, replaces the current
// content first (edit commands); otherwise the snapshot keeps the current
// content (manual save points).
func (s *Store) AppendVersion(ctx context.Context, reportID int64, description, editDescription, newHTML string) (int, error) {
	if err := s.EnsureHistory(ctx, reportID); err != nil {
		return 0, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	var current int
	var html string
	if err := tx.QueryRowContext(ctx,
		`SELECT document_version, current_html FROM reports WHERE id = ?`, reportID).
		Scan(&current, &html); err != nil {
		return 0, fmt.Errorf("load report: %w", err)
	}
	if newHTML != "" {
		html = newHTML
	}
	next := current + 1

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO report_versions (report_id, version, description, edit_description, html)
		 VALUES (?, ?, ?, ?, ?)`,
		reportID, next, description, editDescription, html); err != nil {
		return 0, fmt.Errorf("insert version: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE reports SET document_version = ?, current_html = ? WHERE id = ?`,
		next, html, reportID); err != nil {
		return 0, fmt.Errorf("update report: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return next, nil
}

// RestoreVersion copies an older version's content into a fresh version at
// the top of the log. The log is never truncated.
func (s *Store) RestoreVersion(ctx context.Context, reportID int64, version int) (int, error) {
	var html string
	err := s.db.QueryRowContext(ctx,
		`SELECT html FROM report_versions WHERE report_id = ? AND version = ?`,
		reportID, version).Scan(&html)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, ErrVersionNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("load version: %w", err)
	}
	return s.AppendVersion(ctx, reportID,
		fmt.Sprintf("Восстановлена версия %d", version), "", html)
}

// DeleteHistoryRow removes one recorded entry without touching the counter,
// producing the degraded history state (gap) on purpose.
func (s *Store) DeleteHistoryRow(ctx context.Context, reportID int64, version int) error {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM report_versions WHERE report_id = ? AND version = ?`, reportID, version)
	if err != nil {
		return fmt.Errorf("delete history row: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrVersionNotFound
	}
	return nil
}

// ─── Chats ─────────────────────────────────────────────────────────────

// EnsureChat returns the chat linked to a report, creating and linking one
// when the report has none.
func (s *Store) EnsureChat(ctx context.Context, reportID int64) (int64, error) {
	m, err := s.Report(ctx, reportID)
	if err != nil {
		return 0, err
	}
	if m.ChatID != 0 {
		return m.ChatID, nil
	}

	var userID int64
	if err := s.db.QueryRowContext(ctx,
		`SELECT user_id FROM reports WHERE id = ?`, reportID).Scan(&userID); err != nil {
		return 0, fmt.Errorf("load report owner: %w", err)
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO chats (user_id, title) VALUES (?, ?)`, userID, m.Title)
	if err != nil {
		return 0, fmt.Errorf("create chat: %w", err)
	}
	chatID, _ := res.LastInsertId()
	if _, err := s.db.ExecContext(ctx,
		`UPDATE reports SET chat_id = ? WHERE id = ?`, chatID, reportID); err != nil {
		return 0, fmt.Errorf("link chat: %w", err)
	}
	return chatID, nil
}

func (s *Store) Chat(ctx context.Context, chatID int64) (*model.Chat, error) {
	var c model.Chat
	err := s.db.QueryRowContext(ctx,
		`SELECT id, title FROM chats WHERE id = ?`, chatID).Scan(&c.ID, &c.Title)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrChatNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load chat: %w", err)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, role, content, created_at FROM chat_messages
		 WHERE chat_id = ? ORDER BY created_at ASC, id ASC`, chatID)
	if err != nil {
		return nil, fmt.Errorf("load messages: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var msg model.ChatMessage
		if err := rows.Scan(&msg.ID, &msg.Role, &msg.Content, &msg.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		c.Messages = append(c.Messages, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("load messages: %w", err)
	}
	return &c, nil
}

// ReportByChat resolves the report a chat is linked to.
func (s *Store) ReportByChat(ctx context.Context, chatID int64) (*model.ReportMeta, error) {
	var reportID int64
	err := s.db.QueryRowContext(ctx,
		`SELECT id FROM reports WHERE chat_id = ?`, chatID).Scan(&reportID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrReportNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("resolve report by chat: %w", err)
	}
	return s.Report(ctx, reportID)
}

func (s *Store) AddMessage(ctx context.Context, chatID int64, role, content string) (*model.ChatMessage, error) {
	if _, err := s.Chat(ctx, chatID); err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO chat_messages (chat_id, role, content, created_at) VALUES (?, ?, ?, ?)`,
		chatID, role, content, now)
	if err != nil {
		return nil, fmt.Errorf("add message: %w", err)
	}
	id, _ := res.LastInsertId()
	return &model.ChatMessage{ID: id, Role: role, Content: content, CreatedAt: now}, nil
}

// ─── Analysis documents ────────────────────────────────────────────────

func (s *Store) AddDocument(ctx context.Context, chatID int64, filename, fileType string, content []byte) (*model.AnalysisDocument, error) {
	if _, err := s.Chat(ctx, chatID); err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO analysis_documents (chat_id, original_filename, file_type, content, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		chatID, filename, fileType, content, now)
	if err != nil {
		return nil, fmt.Errorf("add document: %w", err)
	}
	id, _ := res.LastInsertId()
	return &model.AnalysisDocument{ID: id, OriginalFilename: filename, FileType: fileType, CreatedAt: now}, nil
}

func (s *Store) Documents(ctx context.Context, chatID int64) ([]model.AnalysisDocument, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, original_filename, file_type, created_at
		 FROM analysis_documents WHERE chat_id = ? ORDER BY id ASC`, chatID)
	if err != nil {
		return nil, fmt.Errorf("load documents: %w", err)
	}
	defer rows.Close()

	docs := make([]model.AnalysisDocument, 0)
	for rows.Next() {
		var d model.AnalysisDocument
		if err := rows.Scan(&d.ID, &d.OriginalFilename, &d.FileType, &d.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		docs = append(docs, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("load documents: %w", err)
	}
	return docs, nil
}

func (s *Store) Document(ctx context.Context, chatID, documentID int64) (*model.AnalysisDocument, error) {
	var d model.AnalysisDocument
	err := s.db.QueryRowContext(ctx,
		`SELECT id, original_filename, file_type, created_at
		 FROM analysis_documents WHERE id = ? AND chat_id = ?`, documentID, chatID).
		Scan(&d.ID, &d.OriginalFilename, &d.FileType, &d.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrDocumentNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load document: %w", err)
	}
	return &d, nil
}
