// Package command builds the text actually submitted to the editing service
// from a free-form instruction and the active selection.
package command

import (
	"fmt"
	"strings"

	"github.com/raysh454/redline/internal/model"
)

// Compose merges rawText with the selection context. With no selection the
// composed text equals rawText. Pure function; same inputs always produce the
// same output.
func Compose(rawText string, sel *model.Selection) model.EditCommand {
	cmd := model.EditCommand{RawText: rawText, ComposedText: rawText}
	if sel == nil || sel.Text == "" {
		return cmd
	}

	escaped := strings.ReplaceAll(sel.Text, `"`, `\"`)
	var b strings.Builder
	fmt.Fprintf(&b, `[ВЫДЕЛЕННЫЙ ТЕКСТ: "%s"`, escaped)
	if sel.ParagraphID != nil {
		fmt.Fprintf(&b, " в параграфе %d", *sel.ParagraphID)
	}
	b.WriteString("] ")
	b.WriteString(rawText)

	cmd.ComposedText = b.String()
	return cmd
}
