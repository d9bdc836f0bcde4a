package history

import (
	"context"
	"fmt"
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"

	"github.com/raysh454/redline/internal/logging"
	"github.com/raysh454/redline/internal/model"
)

// Compare fetches two versions' rendered HTML and returns the change chunks
// between them. The HTML fetch does not depend on the history log, so both
// ends of a gap are comparable.
func (s *Store) Compare(ctx context.Context, reportID int64, base, head int) (*model.DiffResult, error) {
	if base == head {
		return &model.DiffResult{BaseVersion: base, HeadVersion: head}, nil
	}
	baseHTML, err := s.svc.ReportHTML(ctx, reportID, base)
	if err != nil {
		return nil, fmt.Errorf("fetch base version %d: %w", base, err)
	}
	headHTML, err := s.svc.ReportHTML(ctx, reportID, head)
	if err != nil {
		return nil, fmt.Errorf("fetch head version %d: %w", head, err)
	}

	result := &model.DiffResult{
		BaseVersion: base,
		HeadVersion: head,
		Chunks:      diffChunks(baseHTML, headHTML),
	}
	s.logger.Debug("compared versions",
		logging.Field{Key: "report_id", Value: reportID},
		logging.Field{Key: "base", Value: base},
		logging.Field{Key: "head", Value: head},
		logging.Field{Key: "chunks", Value: len(result.Chunks)})
	return result, nil
}

// diffChunks computes a character-level diff and keeps only meaningful
// added/removed chunks. Semantic cleanup merges noisy micro-edits.
func diffChunks(base, head string) []model.DiffChunk {
	dmp := diffmatchpatch.New()
	diffs := dmp.DiffMain(base, head, true)
	diffs = dmp.DiffCleanupSemantic(diffs)

	chunks := make([]model.DiffChunk, 0)
	for _, d := range diffs {
		var chunkType string
		switch d.Type {
		case diffmatchpatch.DiffInsert:
			chunkType = "added"
		case diffmatchpatch.DiffDelete:
			chunkType = "removed"
		case diffmatchpatch.DiffEqual:
			continue
		}
		if strings.TrimSpace(d.Text) == "" {
			continue
		}
		chunks = append(chunks, model.DiffChunk{Type: chunkType, Content: d.Text})
	}
	return chunks
}
