package orchestrator

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeTodo(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "git-rebase-todo")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestRewriteSequenceTodoRewordsByShortSHA(t *testing.T) {
	todo := "pick 1234567 first commit\npick fedcba0 second commit\n\n# Rebase instructions\n"
	path := writeTodo(t, todo)

	if err := RewriteSequenceTodo(path, "reword", headSHA); err != nil {
		t.Fatalf("RewriteSequenceTodo failed: %v", err)
	}
	out, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	got := string(out)
	if !strings.Contains(got, "reword 1234567 first commit") {
		t.Errorf("matching pick line should be rewritten:\n%s", got)
	}
	if !strings.Contains(got, "pick fedcba0 second commit") {
		t.Errorf("other pick lines must stay untouched:\n%s", got)
	}
}

func TestRewriteSequenceTodoOnlyFirstMatch(t *testing.T) {
	todo := "pick 1234567 first\npick 1234567 duplicate\n"
	path := writeTodo(t, todo)

	if err := RewriteSequenceTodo(path, "edit", headSHA); err != nil {
		t.Fatalf("RewriteSequenceTodo failed: %v", err)
	}
	out, _ := os.ReadFile(path)
	if strings.Count(string(out), "edit 1234567") != 1 {
		t.Errorf("only the first matching line may be rewritten:\n%s", out)
	}
}

func TestRewriteSequenceTodoMissingCommit(t *testing.T) {
	path := writeTodo(t, "pick fedcba0 unrelated\n")
	if err := RewriteSequenceTodo(path, "reword", headSHA); err == nil {
		t.Fatal("a todo without the target commit must be an error")
	}
}

func TestWriteCommitMessageAddsTrailingNewline(t *testing.T) {
	path := filepath.Join(t.TempDir(), "COMMIT_EDITMSG")
	if err := os.WriteFile(path, []byte("old message\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := WriteCommitMessage(path, "subject\n\nbody"); err != nil {
		t.Fatalf("WriteCommitMessage failed: %v", err)
	}
	out, _ := os.ReadFile(path)
	if string(out) != "subject\n\nbody\n" {
		t.Errorf("message should replace the file and end with a newline, got %q", out)
	}
}
