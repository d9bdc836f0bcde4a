// Package editorapi is the typed HTTP/JSON client for the report-editing
// service. Every endpoint decodes into a tagged response struct that is
// validated at the boundary, so the rest of the program never touches
// optimistic field access on loose maps.
package editorapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"

	"github.com/raysh454/redline/internal/interfaces"
	"github.com/raysh454/redline/internal/logging"
	"github.com/raysh454/redline/internal/model"
	"github.com/raysh454/redline/internal/session"
)

// Config holds client settings.
type Config struct {
	// BaseURL is the service root, without the /api prefix.
	BaseURL string `yaml:"base_url"`
}

// DefaultConfig returns a Config populated with sensible development defaults.
func DefaultConfig() Config {
	return Config{BaseURL: "http://localhost:8000"}
}

// Client implements interfaces.EditorService, interfaces.AnalysisService and
// interfaces.GenerationService over a webclient backend.
type Client struct {
	cfg    Config
	wc     interfaces.WebClient
	sess   *session.Session
	logger logging.Logger
}

// Compile-time contract checks.
var (
	_ interfaces.EditorService     = (*Client)(nil)
	_ interfaces.AnalysisService   = (*Client)(nil)
	_ interfaces.GenerationService = (*Client)(nil)
)

func NewClient(cfg Config, wc interfaces.WebClient, sess *session.Session, logger logging.Logger) (*Client, error) {
	if wc == nil {
		return nil, fmt.Errorf("nil webclient")
	}
	if sess == nil {
		return nil, fmt.Errorf("nil session")
	}
	if cfg.BaseURL == "" {
		cfg = DefaultConfig()
	}
	return &Client{
		cfg:    cfg,
		wc:     wc,
		sess:   sess,
		logger: logger.With(logging.Field{Key: "component", Value: "editorapi"}),
	}, nil
}

func (c *Client) endpoint(path string) string {
	return strings.TrimRight(c.cfg.BaseURL, "/") + "/api" + path
}

// do executes a request with session credentials applied and returns the raw
// response. Transport failures come back as *FetchError with Status 0.
func (c *Client) do(ctx context.Context, method, path string, body []byte) (*model.Response, error) {
	req := &model.Request{
		Method:  method,
		URL:     c.endpoint(path),
		Headers: http.Header{},
		Body:    body,
	}
	if len(body) > 0 {
		req.Headers.Set("Content-Type", "application/json")
	}
	c.sess.Apply(req)

	resp, err := c.wc.Do(ctx, req)
	if err != nil {
		return nil, &FetchError{Message: genericFetchMessage, Err: err}
	}
	if resp.StatusCode == http.StatusUnauthorized {
		c.sess.HandleUnauthorized()
	}
	return resp, nil
}

// get performs a read. Any non-2xx status maps to *FetchError.
func (c *Client) get(ctx context.Context, path string, out interface{}) error {
	resp, err := c.do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &FetchError{
			Status:  resp.StatusCode,
			Message: parseErrorMessage(resp.Body, genericFetchMessage),
		}
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(resp.Body, out); err != nil {
		return &FetchError{Status: resp.StatusCode, Message: "malformed service response", Err: err}
	}
	return nil
}

// post performs a mutation. Any non-2xx status maps to *MutationError.
func (c *Client) post(ctx context.Context, path string, payload, out interface{}) error {
	var body []byte
	if payload != nil {
		var err error
		body, err = json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
	}
	resp, err := c.do(ctx, http.MethodPost, path, body)
	if err != nil {
		return &MutationError{Message: genericMutationMessage, Err: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &MutationError{
			Status:  resp.StatusCode,
			Message: parseErrorMessage(resp.Body, genericMutationMessage),
		}
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(resp.Body, out); err != nil {
		return &MutationError{Status: resp.StatusCode, Message: "malformed service response", Err: err}
	}
	return nil
}

// ─── Auth ──────────────────────────────────────────────────────────────

type loginResponse struct {
	AccessToken string      `json:"access_token"`
	User        *model.User `json:"user"`
}

func (r *loginResponse) validate() error {
	if r.AccessToken == "" {
		return fmt.Errorf("login response missing access_token")
	}
	return nil
}

// Login authenticates and populates the session on success.
func (c *Client) Login(ctx context.Context, username, password string) (*model.User, error) {
	var out loginResponse
	err := c.post(ctx, "/users/login", map[string]string{
		"username": username,
		"password": password,
	}, &out)
	if err != nil {
		return nil, err
	}
	if err := out.validate(); err != nil {
		return nil, &MutationError{Message: "malformed service response", Err: err}
	}
	c.sess.Init(out.AccessToken, out.User)
	return out.User, nil
}

// CurrentUser fetches the authenticated account.
func (c *Client) CurrentUser(ctx context.Context) (*model.User, error) {
	var out model.User
	if err := c.get(ctx, "/users/me", &out); err != nil {
		return nil, err
	}
	if out.ID == 0 {
		return nil, &FetchError{Message: "malformed service response: user id missing"}
	}
	return &out, nil
}

// ─── Reports ───────────────────────────────────────────────────────────

func (c *Client) ReportMeta(ctx context.Context, reportID int64) (*model.ReportMeta, error) {
	var out model.ReportMeta
	if err := c.get(ctx, fmt.Sprintf("/reports/%d", reportID), &out); err != nil {
		return nil, err
	}
	if out.ID == 0 {
		return nil, &FetchError{Message: "malformed service response: report id missing"}
	}
	if out.DocumentVersion < 1 {
		// Reports created before versioning start at 1.
		out.DocumentVersion = 1
	}
	return &out, nil
}

type versionHistoryResponse struct {
	CurrentVersion *int                 `json:"current_version"`
	TotalVersions  int                  `json:"total_versions"`
	History        []model.VersionEntry `json:"history"`
}

func (r *versionHistoryResponse) validate() error {
	if r.CurrentVersion == nil || *r.CurrentVersion < 1 {
		return fmt.Errorf("version history missing current_version")
	}
	for _, e := range r.History {
		if e.Version < 1 {
			return fmt.Errorf("version history entry with invalid version %d", e.Version)
		}
	}
	return nil
}

func (c *Client) VersionHistory(ctx context.Context, reportID int64) (*model.VersionHistory, error) {
	var out versionHistoryResponse
	if err := c.get(ctx, fmt.Sprintf("/report-editor/reports/%d/versions", reportID), &out); err != nil {
		return nil, err
	}
	if err := out.validate(); err != nil {
		return nil, &FetchError{Message: "malformed service response", Err: err}
	}
	entries := make([]model.VersionEntry, len(out.History))
	for i, e := range out.History {
		e.ExistsInHistory = true
		entries[i] = e
	}
	return &model.VersionHistory{
		CurrentVersion: *out.CurrentVersion,
		Entries:        entries,
	}, nil
}

type htmlResponse struct {
	HTML    *string `json:"html"`
	Version int     `json:"version"`
}

func (c *Client) ReportHTML(ctx context.Context, reportID int64, version int) (string, error) {
	path := fmt.Sprintf("/report-editor/reports/%d/html", reportID)
	if version > 0 {
		path += "?version=" + url.QueryEscape(fmt.Sprint(version))
	}
	var out htmlResponse
	if err := c.get(ctx, path, &out); err != nil {
		return "", err
	}
	if out.HTML == nil {
		return "", &FetchError{Message: "malformed service response: html missing"}
	}
	return *out.HTML, nil
}

type createVersionResponse struct {
	Success       *bool  `json:"success"`
	Message       string `json:"message"`
	Version       int    `json:"version"`
	TotalVersions int    `json:"total_versions"`
}

func (c *Client) CreateVersion(ctx context.Context, reportID int64, description string) (*model.MutationResult, error) {
	var out createVersionResponse
	err := c.post(ctx, fmt.Sprintf("/report-editor/reports/%d/versions", reportID),
		map[string]string{"description": description}, &out)
	if err != nil {
		return nil, err
	}
	if out.Success == nil {
		return nil, &MutationError{Message: "malformed service response: success flag missing"}
	}
	if !*out.Success {
		return nil, &MutationError{Message: messageOr(out.Message, genericMutationMessage)}
	}
	return &model.MutationResult{Success: true, Message: out.Message, NewVersion: out.Version}, nil
}

type restoreResponse struct {
	Success    *bool  `json:"success"`
	Message    string `json:"message"`
	NewVersion int    `json:"new_version"`
}

func (c *Client) RestoreVersion(ctx context.Context, reportID int64, version int) (*model.MutationResult, error) {
	var out restoreResponse
	err := c.post(ctx, fmt.Sprintf("/report-editor/reports/%d/versions/%d/restore", reportID, version), nil, &out)
	if err != nil {
		return nil, err
	}
	if out.Success == nil {
		return nil, &MutationError{Message: "malformed service response: success flag missing"}
	}
	if !*out.Success {
		return nil, &MutationError{Message: messageOr(out.Message, genericMutationMessage)}
	}
	return &model.MutationResult{Success: true, Message: out.Message, NewVersion: out.NewVersion}, nil
}

type commandResponse struct {
	Success *bool  `json:"success"`
	Message string `json:"message"`
}

func (c *Client) ProcessCommand(ctx context.Context, reportID, chatID int64, text string) (*model.MutationResult, error) {
	var out commandResponse
	err := c.post(ctx, fmt.Sprintf("/report-editor/reports/%d/chat/%d/process-command", reportID, chatID),
		map[string]string{"text": text}, &out)
	if err != nil {
		return nil, err
	}
	if out.Success == nil {
		return nil, &MutationError{Message: "malformed service response: success flag missing"}
	}
	if !*out.Success {
		return nil, &MutationError{Message: messageOr(out.Message, genericMutationMessage)}
	}
	return &model.MutationResult{Success: true, Message: out.Message}, nil
}

type ensureChatResponse struct {
	ReportID int64 `json:"report_id"`
	ChatID   int64 `json:"chat_id"`
}

func (c *Client) EnsureChat(ctx context.Context, reportID int64) (int64, error) {
	var out ensureChatResponse
	err := c.post(ctx, fmt.Sprintf("/report-editor/reports/%d/generate-with-chat", reportID), nil, &out)
	if err != nil {
		return 0, err
	}
	if out.ChatID == 0 {
		return 0, &MutationError{Message: "malformed service response: chat_id missing"}
	}
	return out.ChatID, nil
}

// ─── Chat ──────────────────────────────────────────────────────────────

func (c *Client) Chat(ctx context.Context, chatID int64) (*model.Chat, error) {
	var out model.Chat
	if err := c.get(ctx, fmt.Sprintf("/chats/%d", chatID), &out); err != nil {
		return nil, err
	}
	if out.ID == 0 {
		return nil, &FetchError{Message: "malformed service response: chat id missing"}
	}
	return &out, nil
}

func (c *Client) AddMessage(ctx context.Context, chatID int64, content string) ([]model.ChatMessage, error) {
	var out []model.ChatMessage
	err := c.post(ctx, fmt.Sprintf("/chats/%d/messages", chatID),
		map[string]string{"content": content}, &out)
	if err != nil {
		return nil, err
	}
	return out, nil
}

// ─── Document analysis ─────────────────────────────────────────────────

func (c *Client) UploadDocument(ctx context.Context, chatID int64, filename string, content []byte) (*model.AnalysisDocument, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", filename)
	if err != nil {
		return nil, fmt.Errorf("build multipart body: %w", err)
	}
	if _, err := part.Write(content); err != nil {
		return nil, fmt.Errorf("build multipart body: %w", err)
	}
	if err := mw.WriteField("chat_id", fmt.Sprint(chatID)); err != nil {
		return nil, fmt.Errorf("build multipart body: %w", err)
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("build multipart body: %w", err)
	}

	req := &model.Request{
		Method:  http.MethodPost,
		URL:     c.endpoint("/document-analysis/upload"),
		Headers: http.Header{},
		Body:    buf.Bytes(),
	}
	req.Headers.Set("Content-Type", mw.FormDataContentType())
	c.sess.Apply(req)

	resp, err := c.wc.Do(ctx, req)
	if err != nil {
		return nil, &MutationError{Message: genericMutationMessage, Err: err}
	}
	if resp.StatusCode == http.StatusUnauthorized {
		c.sess.HandleUnauthorized()
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &MutationError{
			Status:  resp.StatusCode,
			Message: parseErrorMessage(resp.Body, genericMutationMessage),
		}
	}
	var out model.AnalysisDocument
	if err := json.Unmarshal(resp.Body, &out); err != nil {
		return nil, &MutationError{Message: "malformed service response", Err: err}
	}
	if out.ID == 0 {
		return nil, &MutationError{Message: "malformed service response: document id missing"}
	}
	return &out, nil
}

func (c *Client) ChatDocuments(ctx context.Context, chatID int64) ([]model.AnalysisDocument, error) {
	var out []model.AnalysisDocument
	if err := c.get(ctx, fmt.Sprintf("/document-analysis/chats/%d/documents", chatID), &out); err != nil {
		return nil, err
	}
	return out, nil
}

type analyzeResponse struct {
	Content *string `json:"content"`
}

func (c *Client) AnalyzeDocument(ctx context.Context, chatID, documentID int64, question string) (string, error) {
	var out analyzeResponse
	err := c.post(ctx, fmt.Sprintf("/chats/%d/analyze-document", chatID), map[string]interface{}{
		"document_id": documentID,
		"question":    question,
	}, &out)
	if err != nil {
		return "", err
	}
	if out.Content == nil {
		return "", &MutationError{Message: "malformed service response: content missing"}
	}
	return *out.Content, nil
}

// ─── Generation ────────────────────────────────────────────────────────

func (c *Client) GenerationStatus(ctx context.Context, reportID int64) (*model.GenerationStatus, error) {
	var out model.GenerationStatus
	if err := c.get(ctx, fmt.Sprintf("/reports/%d/status", reportID), &out); err != nil {
		return nil, err
	}
	if out.Status == "" {
		return nil, &FetchError{Message: "malformed service response: status missing"}
	}
	if out.ReportID == 0 {
		out.ReportID = reportID
	}
	return &out, nil
}

func messageOr(msg, fallback string) string {
	if msg != "" {
		return msg
	}
	return fallback
}
