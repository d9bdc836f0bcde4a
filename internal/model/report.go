package model

import "time"

// Report generation statuses as reported by the editing service.
const (
	StatusPending    = "pending"
	StatusInProgress = "in_progress"
	StatusCompleted  = "completed"
	StatusError      = "error"
)

// ReportMeta is the service's metadata record for one report.
type ReportMeta struct {
	ID              int64     `json:"id"`
	Title           string    `json:"title"`
	FilePath        string    `json:"file_path"`
	ChatID          int64     `json:"chat_id,omitempty"` // 0 when no chat linked yet
	DocumentVersion int       `json:"document_version"`
	Status          string    `json:"status,omitempty"`
	CreatedAt       time.Time `json:"created_at,omitzero"`
}

// VersionEntry is one row of a report's recorded version history.
//
// ExistsInHistory is false for entries synthesized to fill a gap between the
// recorded log and the authoritative document version. The authoritative
// counter MAY run ahead of the log; that is a valid degraded state, not an
// error.
type VersionEntry struct {
	Version         int       `json:"version"`
	Timestamp       time.Time `json:"timestamp,omitzero"` // zero for synthesized entries
	Description     string    `json:"description,omitempty"`
	EditDescription string    `json:"edit_description,omitempty"`
	HasHTML         bool      `json:"has_html,omitempty"`
	HasFile         bool      `json:"has_file,omitempty"`
	ExistsInHistory bool      `json:"exists_in_history"`
}

// VersionHistory is the authoritative history of one report as last fetched
// from the editing service. It is replaced wholesale after every mutation;
// version numbers are never incremented locally.
type VersionHistory struct {
	CurrentVersion int            `json:"current_version"`
	Entries        []VersionEntry `json:"history"`
}

// Entry returns the recorded entry for version, if the log has one.
func (h *VersionHistory) Entry(version int) (VersionEntry, bool) {
	if h == nil {
		return VersionEntry{}, false
	}
	for _, e := range h.Entries {
		if e.Version == version {
			return e, true
		}
	}
	return VersionEntry{}, false
}

// ViewState describes what is currently rendered.
type ViewState struct {
	// CurrentVersion is the version number being viewed; it may lag behind
	// DocumentVersion when browsing history read-only.
	CurrentVersion int

	// DocumentVersion is the authoritative latest version number.
	DocumentVersion int

	// DocumentHTML is the rendered HTML of CurrentVersion.
	DocumentHTML string
}

// IsCurrentVersion reports whether the viewed version is the authoritative
// latest one. Editing operations are permitted only when true.
func (v ViewState) IsCurrentVersion() bool {
	return v.CurrentVersion == v.DocumentVersion
}

// Selection is a captured span of document text plus an optional structural
// anchor used as edit-command context.
type Selection struct {
	// Text is the whitespace-normalized, trimmed selection content.
	Text string

	// ParagraphID is the nearest ancestor paragraph anchor, when one exists.
	ParagraphID *int
}

// EditCommand is a user instruction merged with its selection context.
type EditCommand struct {
	RawText      string
	ComposedText string
}

// Chat message roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
)

// ChatMessage is one transcript entry. Locally synthesized messages carry a
// temporary time-derived ID until the next authoritative fetch replaces them.
type ChatMessage struct {
	ID        int64     `json:"id"`
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// Chat is a chat thread with its messages.
type Chat struct {
	ID       int64         `json:"id"`
	Title    string        `json:"title"`
	Messages []ChatMessage `json:"messages"`
}

// AnalysisDocument is a document uploaded into a chat for Q&A.
type AnalysisDocument struct {
	ID               int64     `json:"id"`
	OriginalFilename string    `json:"original_filename"`
	FileType         string    `json:"file_type"`
	CreatedAt        time.Time `json:"created_at,omitzero"`
}

// GenerationStatus is one observation of a report-generation job.
type GenerationStatus struct {
	ReportID int64  `json:"report_id"`
	Status   string `json:"status"`
	Message  string `json:"message,omitempty"`
}

// Terminal reports whether no further status changes are expected.
func (g GenerationStatus) Terminal() bool {
	return g.Status == StatusCompleted || g.Status == StatusError
}

// User is the authenticated account returned by the service.
type User struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email,omitempty"`
}

// MutationResult is the service's acknowledgement of a mutating operation
// (create version, restore, edit command).
type MutationResult struct {
	Success    bool   `json:"success"`
	Message    string `json:"message"`
	NewVersion int    `json:"new_version,omitempty"`
}

// DiffChunk is a single change between two rendered versions.
type DiffChunk struct {
	Type    string `json:"type"` // "added" or "removed"
	Content string `json:"content,omitempty"`
}

// DiffResult summarizes differences between two versions of a report.
type DiffResult struct {
	BaseVersion int         `json:"base_version"`
	HeadVersion int         `json:"head_version"`
	Chunks      []DiffChunk `json:"chunks"`
}
