// Package analysis drives the document question-answering flow: upload a
// document into a report's chat, list what was uploaded, ask questions. The
// Q&A exchange is mirrored into the transcript so it reads like the chat the
// service records.
package analysis

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/raysh454/redline/internal/interfaces"
	"github.com/raysh454/redline/internal/logging"
	"github.com/raysh454/redline/internal/model"
	"github.com/raysh454/redline/internal/transcript"
)

// Upload size and type limits mirror what the service enforces, so obviously
// bad uploads fail before the bytes leave the client.
const MaxUploadSize = 10 << 20

var allowedExtensions = map[string]bool{
	".pdf":  true,
	".docx": true,
	".doc":  true,
	".txt":  true,
}

var (
	ErrEmptyQuestion   = errors.New("question is empty")
	ErrFileTooLarge    = errors.New("file exceeds the upload size limit")
	ErrUnsupportedType = errors.New("unsupported document type")
)

type Session struct {
	svc    interfaces.AnalysisService
	tr     *transcript.Transcript
	logger logging.Logger
	chatID int64
}

// NewSession binds document analysis to one chat thread. tr may be nil when
// no transcript mirroring is wanted.
func NewSession(svc interfaces.AnalysisService, chatID int64, tr *transcript.Transcript, logger logging.Logger) *Session {
	return &Session{
		svc: svc,
		tr:  tr,
		logger: logger.With(
			logging.Field{Key: "component", Value: "analysis"},
			logging.Field{Key: "chat_id", Value: chatID},
		),
		chatID: chatID,
	}
}

// Upload validates and uploads a document into the chat.
func (s *Session) Upload(ctx context.Context, filename string, content []byte) (*model.AnalysisDocument, error) {
	if len(content) > MaxUploadSize {
		return nil, fmt.Errorf("%w: %d bytes", ErrFileTooLarge, len(content))
	}
	ext := strings.ToLower(filepath.Ext(filename))
	if !allowedExtensions[ext] {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedType, ext)
	}

	doc, err := s.svc.UploadDocument(ctx, s.chatID, filename, content)
	if err != nil {
		return nil, err
	}
	s.logger.Info("document uploaded",
		logging.Field{Key: "document_id", Value: doc.ID},
		logging.Field{Key: "filename", Value: doc.OriginalFilename})
	return doc, nil
}

// Documents lists the documents uploaded to the chat.
func (s *Session) Documents(ctx context.Context) ([]model.AnalysisDocument, error) {
	return s.svc.ChatDocuments(ctx, s.chatID)
}

// Ask submits a question about an uploaded document and mirrors the exchange
// into the transcript.
func (s *Session) Ask(ctx context.Context, documentID int64, question string) (string, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return "", ErrEmptyQuestion
	}

	answer, err := s.svc.AnalyzeDocument(ctx, s.chatID, documentID, question)
	if err != nil {
		return "", err
	}

	if s.tr != nil {
		s.tr.AppendExchange(question, answer)
	}
	s.logger.Info("document question answered",
		logging.Field{Key: "document_id", Value: documentID},
		logging.Field{Key: "answer_length", Value: len(answer)})
	return answer, nil
}
