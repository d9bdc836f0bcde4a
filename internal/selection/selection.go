// Package selection tracks the single active text span captured from the
// rendered document. Capture and Clear only touch in-memory state; clearing
// never modifies document content.
package selection

import (
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"

	"github.com/raysh454/redline/internal/logging"
	"github.com/raysh454/redline/internal/model"
)

// RawSelection is the selection event as reported by the UI layer.
type RawSelection struct {
	// Text is the raw selected text, possibly with ragged whitespace.
	Text string

	// StartSelector locates the element containing the selection's start
	// point (the UI resolves its range start to a CSS selector).
	StartSelector string
}

// Tracker holds the active Selection for one open document.
type Tracker struct {
	mu      sync.Mutex
	current *model.Selection
	logger  logging.Logger

	// onClear, when set, tells the UI to drop its native highlight.
	onClear func()
}

func NewTracker(logger logging.Logger, onClear func()) *Tracker {
	return &Tracker{
		logger:  logger.With(logging.Field{Key: "component", Value: "selection"}),
		onClear: onClear,
	}
}

// Capture normalizes the selected text and resolves its paragraph anchor
// against documentHTML. An empty selection (after trimming) is a no-op and
// returns nil, nil.
func (t *Tracker) Capture(documentHTML string, raw RawSelection) (*model.Selection, error) {
	text := Normalize(raw.Text)
	if text == "" {
		return nil, nil
	}

	sel := &model.Selection{Text: text}
	if raw.StartSelector != "" {
		anchor, err := resolveAnchor(documentHTML, raw.StartSelector)
		if err != nil {
			return nil, err
		}
		sel.ParagraphID = anchor
	}

	t.mu.Lock()
	t.current = sel
	t.mu.Unlock()

	t.logger.Debug("captured selection",
		logging.Field{Key: "length", Value: len(text)},
		logging.Field{Key: "has_anchor", Value: sel.ParagraphID != nil})
	return sel, nil
}

// Current returns a copy of the active selection, nil when none.
func (t *Tracker) Current() *model.Selection {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.current == nil {
		return nil
	}
	cp := *t.current
	if t.current.ParagraphID != nil {
		id := *t.current.ParagraphID
		cp.ParagraphID = &id
	}
	return &cp
}

// Clear discards the active selection and asks the UI to drop the native
// highlight.
func (t *Tracker) Clear() {
	t.mu.Lock()
	had := t.current != nil
	t.current = nil
	t.mu.Unlock()

	if had && t.onClear != nil {
		t.onClear()
	}
}

// Normalize collapses runs of whitespace to single spaces and trims the ends.
func Normalize(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// resolveAnchor finds the element matched by startSelector and walks up its
// ancestor chain until one carries a data-paragraph-id attribute. Returns nil
// when the selector matches nothing or no ancestor carries the attribute;
// an anchorless selection is still usable.
func resolveAnchor(documentHTML, startSelector string) (*int, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(documentHTML))
	if err != nil {
		return nil, fmt.Errorf("parse document: %w", err)
	}
	start := doc.Find(startSelector).First()
	if start.Length() == 0 {
		return nil, nil
	}
	for node := start.Nodes[0]; node != nil; node = node.Parent {
		if node.Type != html.ElementNode {
			continue
		}
		for _, attr := range node.Attr {
			if attr.Key != "data-paragraph-id" {
				continue
			}
			id, convErr := strconv.Atoi(strings.TrimSpace(attr.Val))
			if convErr != nil {
				continue
			}
			return &id, nil
		}
	}
	return nil, nil
}
