// Package transcript keeps the chat message list for one report chat. Local
// messages are appended optimistically with temporary time-derived IDs so the
// UI echoes input immediately; every authoritative fetch replaces the whole
// list, which supersedes the optimistic entries.
package transcript

import (
	"sort"
	"sync"
	"time"

	"github.com/raysh454/redline/internal/logging"
	"github.com/raysh454/redline/internal/model"
)

type Transcript struct {
	mu         sync.Mutex
	messages   []model.ChatMessage
	lastTempID int64
	now        func() time.Time
	logger     logging.Logger
}

func New(logger logging.Logger) *Transcript {
	return &Transcript{
		now:    time.Now,
		logger: logger.With(logging.Field{Key: "component", Value: "transcript"}),
	}
}

// AppendOptimistic inserts a locally-built message at the tail and returns
// it. The ID is derived from the current time; it is not guaranteed to match
// the server-assigned ID and is discarded on the next Reconcile.
func (t *Transcript) AppendOptimistic(role, content string) model.ChatMessage {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.appendLocked(role, content)
}

// AppendExchange appends a document-analysis question/answer pair, mirroring
// what the service will have recorded, without an extra round-trip.
func (t *Transcript) AppendExchange(question, answer string) (q, a model.ChatMessage) {
	t.mu.Lock()
	defer t.mu.Unlock()
	q = t.appendLocked(model.RoleUser, "[Вопрос по документу] "+question)
	a = t.appendLocked(model.RoleAssistant, answer)
	return q, a
}

func (t *Transcript) appendLocked(role, content string) model.ChatMessage {
	ts := t.now()
	id := ts.UnixMilli()
	if id <= t.lastTempID {
		// Two appends inside one millisecond still need distinct IDs.
		id = t.lastTempID + 1
	}
	t.lastTempID = id

	msg := model.ChatMessage{
		ID:        id,
		Role:      role,
		Content:   content,
		CreatedAt: ts,
	}
	t.messages = append(t.messages, msg)
	return msg
}

// Reconcile replaces the transcript with the server's authoritative list,
// ordered by creation time ascending. The authoritative list always wins;
// optimistic entries are dropped in favor of their confirmed counterparts.
func (t *Transcript) Reconcile(serverMessages []model.ChatMessage) {
	sorted := make([]model.ChatMessage, len(serverMessages))
	copy(sorted, serverMessages)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].CreatedAt.Before(sorted[j].CreatedAt)
	})

	t.mu.Lock()
	dropped := len(t.messages)
	t.messages = sorted
	t.mu.Unlock()

	t.logger.Debug("reconciled transcript",
		logging.Field{Key: "server_messages", Value: len(sorted)},
		logging.Field{Key: "replaced", Value: dropped})
}

// Messages returns a copy of the current transcript.
func (t *Transcript) Messages() []model.ChatMessage {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]model.ChatMessage, len(t.messages))
	copy(out, t.messages)
	return out
}

// Len returns the current message count.
func (t *Transcript) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.messages)
}
