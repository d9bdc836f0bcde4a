package analysis_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/raysh454/redline/internal/analysis"
	"github.com/raysh454/redline/internal/logging"
	"github.com/raysh454/redline/internal/model"
	"github.com/raysh454/redline/internal/transcript"
)

type stubAnalysis struct {
	uploads   int
	questions []string
}

func (s *stubAnalysis) UploadDocument(_ context.Context, _ int64, filename string, _ []byte) (*model.AnalysisDocument, error) {
	s.uploads++
	return &model.AnalysisDocument{ID: 1, OriginalFilename: filename, FileType: "pdf"}, nil
}

func (s *stubAnalysis) ChatDocuments(_ context.Context, _ int64) ([]model.AnalysisDocument, error) {
	return []model.AnalysisDocument{{ID: 1, OriginalFilename: "a.pdf"}}, nil
}

func (s *stubAnalysis) AnalyzeDocument(_ context.Context, _, _ int64, question string) (string, error) {
	s.questions = append(s.questions, question)
	return "ответ: " + question, nil
}

func TestUpload_RejectsUnsupportedType(t *testing.T) {
	t.Parallel()
	svc := &stubAnalysis{}
	s := analysis.NewSession(svc, 1, nil, logging.Nop{})

	_, err := s.Upload(context.Background(), "malware.exe", []byte("x"))
	if !errors.Is(err, analysis.ErrUnsupportedType) {
		t.Fatalf("expected ErrUnsupportedType, got %v", err)
	}
	if svc.uploads != 0 {
		t.Error("rejected upload must not reach the service")
	}
}

func TestUpload_RejectsOversizedFile(t *testing.T) {
	t.Parallel()
	svc := &stubAnalysis{}
	s := analysis.NewSession(svc, 1, nil, logging.Nop{})

	big := make([]byte, analysis.MaxUploadSize+1)
	if _, err := s.Upload(context.Background(), "big.pdf", big); !errors.Is(err, analysis.ErrFileTooLarge) {
		t.Fatalf("expected ErrFileTooLarge, got %v", err)
	}
}

func TestUpload_AcceptedTypesPassThrough(t *testing.T) {
	t.Parallel()
	svc := &stubAnalysis{}
	s := analysis.NewSession(svc, 1, nil, logging.Nop{})

	doc, err := s.Upload(context.Background(), "Договор.DOCX", []byte("content"))
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}
	if doc.ID != 1 {
		t.Errorf("unexpected document: %+v", doc)
	}
}

func TestAsk_EmptyQuestionRejected(t *testing.T) {
	t.Parallel()
	svc := &stubAnalysis{}
	s := analysis.NewSession(svc, 1, nil, logging.Nop{})

	if _, err := s.Ask(context.Background(), 1, "   "); !errors.Is(err, analysis.ErrEmptyQuestion) {
		t.Fatalf("expected ErrEmptyQuestion, got %v", err)
	}
	if len(svc.questions) != 0 {
		t.Error("empty question must not reach the service")
	}
}

func TestAsk_MirrorsExchangeIntoTranscript(t *testing.T) {
	t.Parallel()
	svc := &stubAnalysis{}
	tr := transcript.New(logging.Nop{})
	s := analysis.NewSession(svc, 1, tr, logging.Nop{})

	answer, err := s.Ask(context.Background(), 1, "о чём раздел 2?")
	if err != nil {
		t.Fatalf("Ask: %v", err)
	}
	if answer != "ответ: о чём раздел 2?" {
		t.Errorf("unexpected answer %q", answer)
	}

	msgs := tr.Messages()
	if len(msgs) != 2 {
		t.Fatalf("expected mirrored exchange, got %d messages", len(msgs))
	}
	if !strings.HasPrefix(msgs[0].Content, "[Вопрос по документу] ") {
		t.Errorf("question not prefixed: %q", msgs[0].Content)
	}
	if msgs[1].Role != model.RoleAssistant {
		t.Errorf("unexpected answer role %s", msgs[1].Role)
	}
}
