package selection_test

import (
	"testing"

	"github.com/raysh454/redline/internal/logging"
	"github.com/raysh454/redline/internal/selection"
)

const docHTML = `<div class="report">
	<div data-paragraph-id="4">
		<p><span id="start">Первый   раздел
отчёта.</span></p>
	</div>
	<p id="loose">Абзац без якоря.</p>
</div>`

func TestNormalize_CollapsesWhitespace(t *testing.T) {
	t.Parallel()
	got := selection.Normalize("  a\t b\n\nc  ")
	if got != "a b c" {
		t.Errorf("expected %q, got %q", "a b c", got)
	}
}

func TestCapture_EmptyAfterNormalize_IsNoOp(t *testing.T) {
	t.Parallel()
	tr := selection.NewTracker(logging.Nop{}, nil)
	sel, err := tr.Capture(docHTML, selection.RawSelection{Text: "  \n\t "})
	if err != nil {
		t.Fatalf("Capture: %v", err)
	}
	if sel != nil {
		t.Errorf("expected nil selection, got %+v", sel)
	}
	if tr.Current() != nil {
		t.Error("empty capture must not replace current selection")
	}
}

func TestCapture_ResolvesAncestorAnchor(t *testing.T) {
	t.Parallel()
	tr := selection.NewTracker(logging.Nop{}, nil)
	sel, err := tr.Capture(docHTML, selection.RawSelection{
		Text:          "Первый   раздел\nотчёта.",
		StartSelector: "#start",
	})
	if err != nil {
		t.Fatalf("Capture: %v", err)
	}
	if sel == nil {
		t.Fatal("expected a selection")
	}
	if sel.Text != "Первый раздел отчёта." {
		t.Errorf("text not normalized: %q", sel.Text)
	}
	if sel.ParagraphID == nil || *sel.ParagraphID != 4 {
		t.Errorf("expected paragraph anchor 4, got %v", sel.ParagraphID)
	}
}

func TestCapture_NoAnchorAncestor_KeepsSelection(t *testing.T) {
	t.Parallel()
	tr := selection.NewTracker(logging.Nop{}, nil)
	sel, err := tr.Capture(docHTML, selection.RawSelection{
		Text:          "Абзац без якоря.",
		StartSelector: "#loose",
	})
	if err != nil {
		t.Fatalf("Capture: %v", err)
	}
	if sel == nil {
		t.Fatal("expected a selection")
	}
	if sel.ParagraphID != nil {
		t.Errorf("expected no anchor, got %d", *sel.ParagraphID)
	}
}

func TestCapture_SelectorMatchesNothing_KeepsSelection(t *testing.T) {
	t.Parallel()
	tr := selection.NewTracker(logging.Nop{}, nil)
	sel, err := tr.Capture(docHTML, selection.RawSelection{
		Text:          "что-то",
		StartSelector: "#does-not-exist",
	})
	if err != nil {
		t.Fatalf("Capture: %v", err)
	}
	if sel == nil || sel.ParagraphID != nil {
		t.Errorf("expected anchorless selection, got %+v", sel)
	}
}

func TestCurrent_ReturnsCopy(t *testing.T) {
	t.Parallel()
	tr := selection.NewTracker(logging.Nop{}, nil)
	if _, err := tr.Capture(docHTML, selection.RawSelection{Text: "abc", StartSelector: "#start"}); err != nil {
		t.Fatalf("Capture: %v", err)
	}
	got := tr.Current()
	*got.ParagraphID = 99
	got.Text = "mutated"

	again := tr.Current()
	if again.Text != "abc" || *again.ParagraphID != 4 {
		t.Errorf("Current leaked internal state: %+v", again)
	}
}

func TestClear_FiresCallbackOnceWhenSelectionExisted(t *testing.T) {
	t.Parallel()
	calls := 0
	tr := selection.NewTracker(logging.Nop{}, func() { calls++ })

	tr.Clear()
	if calls != 0 {
		t.Error("clearing an empty tracker must not fire the callback")
	}

	if _, err := tr.Capture(docHTML, selection.RawSelection{Text: "abc"}); err != nil {
		t.Fatalf("Capture: %v", err)
	}
	tr.Clear()
	if calls != 1 {
		t.Errorf("expected one callback, got %d", calls)
	}
	if tr.Current() != nil {
		t.Error("selection survived Clear")
	}
}
