package interfaces

import (
	"context"

	"github.com/raysh454/redline/internal/model"
)

// EditorService is the cross-package contract for the external report-editing
// service. Implementations talk HTTP/JSON; callers only see checked structs.
type EditorService interface {
	// ReportMeta fetches the metadata record for one report.
	ReportMeta(ctx context.Context, reportID int64) (*model.ReportMeta, error)

	// VersionHistory fetches the authoritative version log and current
	// version counter for a report.
	VersionHistory(ctx context.Context, reportID int64) (*model.VersionHistory, error)

	// ReportHTML fetches the rendered HTML of a report.
	// version == 0 requests the current version.
	ReportHTML(ctx context.Context, reportID int64, version int) (string, error)

	// CreateVersion snapshots the current document state as a new version.
	CreateVersion(ctx context.Context, reportID int64, description string) (*model.MutationResult, error)

	// RestoreVersion creates a new version whose content equals an older one.
	// Restore is additive; history is never truncated.
	RestoreVersion(ctx context.Context, reportID int64, version int) (*model.MutationResult, error)

	// ProcessCommand submits a composed edit command bound to the report's
	// chat thread.
	ProcessCommand(ctx context.Context, reportID, chatID int64, text string) (*model.MutationResult, error)

	// EnsureChat returns the chat thread linked to a report, creating one if
	// the report has none.
	EnsureChat(ctx context.Context, reportID int64) (int64, error)

	// Chat fetches a chat thread with its messages.
	Chat(ctx context.Context, chatID int64) (*model.Chat, error)

	// AddMessage appends a plain (non-command) message to a chat and returns
	// the messages the service produced in response.
	AddMessage(ctx context.Context, chatID int64, content string) ([]model.ChatMessage, error)
}

// AnalysisService is the document question-answering surface of the editing
// service.
type AnalysisService interface {
	// UploadDocument attaches a document to a chat for analysis.
	UploadDocument(ctx context.Context, chatID int64, filename string, content []byte) (*model.AnalysisDocument, error)

	// ChatDocuments lists documents uploaded to a chat.
	ChatDocuments(ctx context.Context, chatID int64) ([]model.AnalysisDocument, error)

	// AnalyzeDocument asks a question about an uploaded document.
	AnalyzeDocument(ctx context.Context, chatID, documentID int64, question string) (string, error)
}

// GenerationService reports the state of report-generation jobs.
type GenerationService interface {
	GenerationStatus(ctx context.Context, reportID int64) (*model.GenerationStatus, error)
}
