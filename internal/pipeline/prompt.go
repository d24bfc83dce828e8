package pipeline

import (
	"regexp"
	"strings"
)

// taskPreambleRe matches embedded "- name:" preambles inside a multi-task
// comment; the upstream preprocessor trips over them.
var taskPreambleRe = regexp.MustCompile(`-\s*name:\s*`)

// IsMultiTaskPrompt reports whether the prompt is a multi-task comment: it
// begins, after leading whitespace, with "#" and enumerates tasks separated
// by "&".
func IsMultiTaskPrompt(prompt string) bool {
	return strings.HasPrefix(strings.TrimLeft(prompt, " \t\r\n"), "#")
}

// TaskCount returns the number of tasks the prompt asks for. Single-task
// prompts count as one.
func TaskCount(prompt string) int {
	if !IsMultiTaskPrompt(prompt) {
		return 1
	}
	return strings.Count(prompt, "&") + 1
}

// NormalizePrompt prepares a prompt for transmission: multi-task prompts
// lose their embedded "- name:" preambles, and the trailing
// whitespace/punctuation is unified to exactly one newline. Trailing ":"
// sequences are stripped because they would signal YAML block continuation
// to the model. The transformation is idempotent.
func NormalizePrompt(prompt string) string {
	if IsMultiTaskPrompt(prompt) {
		prompt = taskPreambleRe.ReplaceAllString(prompt, "")
	}
	return strings.TrimRight(prompt, " \t\r\n:") + "\n"
}
