// Package prompt renders retrieved passages into generation instructions.
package prompt

import (
	"fmt"
	"strings"
)

var newlineCollapser = strings.NewReplacer("\r\n", " ", "\n", " ", "\r", " ")

// CollapseNewlines replaces every line break with a single space
func CollapseNewlines(s string) string {
	return newlineCollapser.Replace(s)
}

// Compose renders the prompt for task. It validates the task first and returns
// ErrInvalidParameter for unknown values.
func Compose(passage, topic string, task Task) (string, error) {
	task = Canonical(task)
	if task == nil {
		return "", fmt.Errorf("%w: task is required", ErrInvalidParameter)
	}
	if err := task.Validate(); err != nil {
		return "", err
	}
	return task.Prompt(CollapseNewlines(passage), CollapseNewlines(topic)), nil
}

var markupStripper = strings.NewReplacer("*", "", "~", "", "`", "")

// CleanNotes strips residual markdown emphasis and code markers from generated notes
func CleanNotes(text string) string {
	return markupStripper.Replace(text)
}
