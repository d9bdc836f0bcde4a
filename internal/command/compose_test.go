package command_test

import (
	"testing"

	"github.com/raysh454/redline/internal/command"
	"github.com/raysh454/redline/internal/model"
)

func TestCompose_NoSelection_IsIdentity(t *testing.T) {
	t.Parallel()
	cmd := command.Compose("сделай текст короче", nil)
	if cmd.ComposedText != "сделай текст короче" {
		t.Errorf("expected identity, got %q", cmd.ComposedText)
	}
	if cmd.RawText != "сделай текст короче" {
		t.Errorf("raw text changed: %q", cmd.RawText)
	}
}

func TestCompose_EmptySelectionText_IsIdentity(t *testing.T) {
	t.Parallel()
	cmd := command.Compose("foo", &model.Selection{Text: ""})
	if cmd.ComposedText != "foo" {
		t.Errorf("expected identity for empty selection, got %q", cmd.ComposedText)
	}
}

func TestCompose_WithSelection_PrependsContext(t *testing.T) {
	t.Parallel()
	cmd := command.Compose("foo", &model.Selection{Text: "Hello world"})
	want := `[ВЫДЕЛЕННЫЙ ТЕКСТ: "Hello world"] foo`
	if cmd.ComposedText != want {
		t.Errorf("expected %q, got %q", want, cmd.ComposedText)
	}
}

func TestCompose_WithAnchor_AddsParagraphClause(t *testing.T) {
	t.Parallel()
	id := 7
	cmd := command.Compose("перепиши", &model.Selection{Text: "abc", ParagraphID: &id})
	want := `[ВЫДЕЛЕННЫЙ ТЕКСТ: "abc" в параграфе 7] перепиши`
	if cmd.ComposedText != want {
		t.Errorf("expected %q, got %q", want, cmd.ComposedText)
	}
}

func TestCompose_EscapesQuotes(t *testing.T) {
	t.Parallel()
	cmd := command.Compose("x", &model.Selection{Text: `he said "hi"`})
	want := `[ВЫДЕЛЕННЫЙ ТЕКСТ: "he said \"hi\""] x`
	if cmd.ComposedText != want {
		t.Errorf("expected %q, got %q", want, cmd.ComposedText)
	}
}

func TestCompose_Deterministic(t *testing.T) {
	t.Parallel()
	id := 3
	sel := &model.Selection{Text: "same", ParagraphID: &id}
	a := command.Compose("do it", sel)
	b := command.Compose("do it", sel)
	if a != b {
		t.Errorf("same inputs produced different commands: %q vs %q", a.ComposedText, b.ComposedText)
	}
}
