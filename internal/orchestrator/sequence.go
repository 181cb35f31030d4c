package orchestrator

import (
	"fmt"
	"os"
	"strings"
)

// The hidden verbs this binary answers when git re-invokes it as an
// editor during a rebase, and the environment variables that carry the
// action and message. Values travel through the environment rather than
// argv so commit messages never need shell quoting.
const (
	SequenceEditVerb  = "internal-sequence-edit"
	CommitMessageVerb = "internal-commit-msg"

	EnvSequenceAction = "GIT_SURGEON_SEQUENCE_ACTION"
	EnvSequenceCommit = "GIT_SURGEON_SEQUENCE_COMMIT"
	EnvCommitMessage  = "GIT_SURGEON_COMMIT_MESSAGE"
)

// RewriteSequenceTodo edits a rebase todo file in place, replacing the
// "pick" of the line naming commit with action (reword, edit). Todo lines
// carry abbreviated SHAs, so matching is by prefix in either direction.
func RewriteSequenceTodo(path, action, commit string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading rebase todo: %w", err)
	}
	lines := strings.Split(string(data), "\n")
	for i, line := range lines {
		fields := strings.Fields(line)
		if len(fields) >= 2 && fields[0] == "pick" && shaMatches(fields[1], commit) {
			lines[i] = action + strings.TrimPrefix(line, "pick")
			return os.WriteFile(path, []byte(strings.Join(lines, "\n")), 0644)
		}
	}
	return fmt.Errorf("commit %s not found in rebase todo", commit)
}

// WriteCommitMessage overwrites the commit-message file git handed to its
// editor with the prepared message.
func WriteCommitMessage(path, message string) error {
	if !strings.HasSuffix(message, "\n") {
		message += "\n"
	}
	return os.WriteFile(path, []byte(message), 0644)
}

func shaMatches(a, b string) bool {
	return strings.HasPrefix(a, b) || strings.HasPrefix(b, a)
}
