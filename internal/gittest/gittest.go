// Package gittest builds throwaway git repositories for integration tests
// and asserts on their state with plain git commands, so every behavior the
// tool claims stays observable in the repository itself.
package gittest

import (
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"
)

// Repo is a temporary git repository rooted in a test-scoped directory.
type Repo struct {
	Dir  string
	repo *git.Repository
}

// NewRepo initializes an empty repository under t.TempDir. The directory
// is removed automatically when the test finishes.
func NewRepo(t *testing.T) *Repo {
	t.Helper()
	dir := t.TempDir()
	repo, err := git.PlainInit(dir, false)
	if err != nil {
		t.Fatal(err)
	}
	r := &Repo{Dir: dir, repo: repo}
	r.Git(t, "config", "user.name", "Test User")
	r.Git(t, "config", "user.email", "test@example.com")
	return r
}

// Git runs a git command in the repository and fails the test on error.
func (r *Repo) Git(t *testing.T, args ...string) string {
	t.Helper()
	out, err := r.TryGit(args...)
	if err != nil {
		t.Fatalf("git %s: %v\n%s", strings.Join(args, " "), err, out)
	}
	return out
}

// TryGit runs a git command and returns its combined output and error.
func (r *Repo) TryGit(args ...string) (string, error) {
	cmd := exec.Command("git", args...)
	cmd.Dir = r.Dir
	out, err := cmd.CombinedOutput()
	return string(out), err
}

// WriteFile writes a worktree file, creating parent directories as needed.
func (r *Repo) WriteFile(t *testing.T, name, content string) {
	t.Helper()
	path := filepath.Join(r.Dir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

// ReadFile reads a worktree file.
func (r *Repo) ReadFile(t *testing.T, name string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(r.Dir, name))
	if err != nil {
		t.Fatal(err)
	}
	return string(data)
}

// CommitFile writes a file and commits it with the given message.
func (r *Repo) CommitFile(t *testing.T, name, content, message string) {
	t.Helper()
	r.WriteFile(t, name, content)

	w, err := r.repo.Worktree()
	if err != nil {
		t.Fatal(err)
	}
	if _, err := w.Add(name); err != nil {
		t.Fatal(err)
	}
	_, err = w.Commit(message, &git.CommitOptions{
		Author: &object.Signature{
			Name:  "Test User",
			Email: "test@example.com",
			When:  time.Now(),
		},
	})
	if err != nil {
		t.Fatal(err)
	}
}

// WorktreeDiff returns git diff for the worktree.
func (r *Repo) WorktreeDiff(t *testing.T) string {
	t.Helper()
	return r.Git(t, "diff")
}

// StagedDiff returns git diff --cached.
func (r *Repo) StagedDiff(t *testing.T) string {
	t.Helper()
	return r.Git(t, "diff", "--cached")
}

// Head returns the current HEAD commit SHA.
func (r *Repo) Head(t *testing.T) string {
	t.Helper()
	return strings.TrimSpace(r.Git(t, "rev-parse", "HEAD"))
}

// AssertContains fails unless text contains every want string.
func AssertContains(t *testing.T, text string, want ...string) {
	t.Helper()
	for _, s := range want {
		if !strings.Contains(text, s) {
			t.Fatalf("output missing %q\n\nActual:\n%s", s, text)
		}
	}
}

// AssertNotContains fails if text contains any unwanted string.
func AssertNotContains(t *testing.T, text string, unwanted ...string) {
	t.Helper()
	for _, s := range unwanted {
		if strings.Contains(text, s) {
			t.Fatalf("output should not contain %q\n\nActual:\n%s", s, text)
		}
	}
}
