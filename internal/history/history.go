// Package history is the read model for a report's version log. All
// mutations happen through the editing service followed by a full reload;
// the store never diverges from the server's authoritative log.
package history

import (
	"context"
	"fmt"
	"sort"

	"github.com/raysh454/redline/internal/interfaces"
	"github.com/raysh454/redline/internal/logging"
	"github.com/raysh454/redline/internal/model"
)

// Store fetches and derives version-history views.
type Store struct {
	svc    interfaces.EditorService
	logger logging.Logger
}

func NewStore(svc interfaces.EditorService, logger logging.Logger) *Store {
	return &Store{
		svc:    svc,
		logger: logger.With(logging.Field{Key: "component", Value: "history"}),
	}
}

// Load fetches the authoritative history and current version counter.
func (s *Store) Load(ctx context.Context, reportID int64) (*model.VersionHistory, error) {
	h, err := s.svc.VersionHistory(ctx, reportID)
	if err != nil {
		return nil, fmt.Errorf("load version history for report %d: %w", reportID, err)
	}
	s.logger.Debug("loaded version history",
		logging.Field{Key: "report_id", Value: reportID},
		logging.Field{Key: "current_version", Value: h.CurrentVersion},
		logging.Field{Key: "recorded_entries", Value: len(h.Entries)})
	return h, nil
}

// DeriveAllVersions builds the dense [1, CurrentVersion] view, ascending.
// Slots without a recorded log row get a synthesized placeholder entry with
// ExistsInHistory=false; the counter running ahead of the log is a valid
// state and must render.
func DeriveAllVersions(h *model.VersionHistory) []model.VersionEntry {
	if h == nil || h.CurrentVersion < 1 {
		return nil
	}
	all := make([]model.VersionEntry, 0, h.CurrentVersion)
	for v := 1; v <= h.CurrentVersion; v++ {
		entry, ok := h.Entry(v)
		if !ok {
			entry = model.VersionEntry{
				Version:     v,
				Description: fmt.Sprintf("Версия %d", v),
			}
			if v == h.CurrentVersion {
				entry.EditDescription = "Текущая версия"
			} else {
				entry.EditDescription = "Недостающая запись"
			}
		}
		entry.ExistsInHistory = ok
		all = append(all, entry)
	}
	return all
}

// DisplayOrder returns a copy sorted newest-first for version pickers.
func DisplayOrder(entries []model.VersionEntry) []model.VersionEntry {
	out := make([]model.VersionEntry, len(entries))
	copy(out, entries)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Version > out[j].Version
	})
	return out
}
