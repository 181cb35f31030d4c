// Package orchestrator composes the multi-step git sequences that must
// appear atomic to the user: stage-and-commit with rollback, fixup,
// reword, squash, and split. Preconditions are checked aggressively before
// any mutation; once a rebase has started, recovery is left to git's own
// autostash and rebase state rather than attempted here.
package orchestrator

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/git-surgeon/git-surgeon/internal/executor"
	"github.com/git-surgeon/git-surgeon/internal/gitproc"
	"github.com/git-surgeon/git-surgeon/internal/patchsynth"
	"github.com/git-surgeon/git-surgeon/internal/selection"
	"github.com/git-surgeon/git-surgeon/internal/surgeonerr"
)

// Orchestrator drives the history-rewriting verbs on top of the executor.
type Orchestrator struct {
	exec   *executor.Executor
	runner gitproc.Runner
	stderr io.Writer

	// shimPath is the path to the git-surgeon binary itself, re-invoked as
	// GIT_SEQUENCE_EDITOR/GIT_EDITOR during its own rebase calls.
	shimPath string
}

// New creates an Orchestrator. shimPath is the running binary's own path.
func New(exec *executor.Executor, stderr io.Writer, shimPath string) *Orchestrator {
	return &Orchestrator{exec: exec, runner: exec.Runner(), stderr: stderr, shimPath: shimPath}
}

// JoinMessages joins repeated -m values with a blank line, the way git
// commit itself composes them.
func JoinMessages(messages []string) string {
	return strings.Join(messages, "\n\n")
}

// Commit stages the selection and commits it in one step. The index must be
// empty beforehand; if git commit fails (a hook, say), the staged patch is
// reverse-applied so the index returns to its exact pre-call state.
func (o *Orchestrator) Commit(ctx context.Context, refs []selection.Ref, messages []string) error {
	staged, err := o.runner.Run(ctx, "diff", "--cached", "--name-only")
	if err != nil {
		return surgeonerr.GitCommandFailed("commit", gitproc.Stderr(err), err)
	}
	if len(bytes.TrimSpace(staged)) > 0 {
		return surgeonerr.Precondition("commit",
			"index already contains staged changes",
			"commit or unstage them first so the rollback guarantee holds")
	}

	files, listing, err := o.exec.LoadListing(ctx, executor.Source{Kind: executor.SourceWorktree}, "")
	if err != nil {
		return err
	}
	sel, err := selection.Resolve(listing, refs)
	if err != nil {
		return err
	}
	patch, err := patchsynth.Synthesize(files, sel, patchsynth.Forward)
	if err != nil {
		return err
	}
	ids := make([]string, 0, len(sel.Refs))
	for _, ref := range sel.Refs {
		ids = append(ids, ref.ID)
	}

	if err := o.exec.ApplyPatch(ctx, "commit", ids, patch, "apply", "--cached"); err != nil {
		return err
	}
	if _, err := o.runner.Run(ctx, "commit", "-m", JoinMessages(messages)); err != nil {
		// Return the index to its pre-call (empty) state before reporting.
		if _, revErr := o.runner.RunWithStdin(ctx, bytes.NewReader(patch), "apply", "--cached", "--reverse"); revErr != nil {
			return surgeonerr.Bug(fmt.Sprintf("commit failed and the index rollback also failed: %v (commit failure: %v)", revErr, err))
		}
		return surgeonerr.GitCommandFailed("commit", gitproc.Stderr(err), err)
	}
	for _, id := range ids {
		fmt.Fprintln(o.stderr, id)
	}
	return nil
}

// Fixup folds the currently staged changes into an earlier commit. HEAD is
// amended directly; anything older goes through a fixup commit and an
// autosquash rebase that accepts its generated todo list verbatim.
func (o *Orchestrator) Fixup(ctx context.Context, commit string) error {
	staged, err := o.runner.Run(ctx, "diff", "--cached", "--name-only")
	if err != nil {
		return surgeonerr.GitCommandFailed("fixup", gitproc.Stderr(err), err)
	}
	if len(bytes.TrimSpace(staged)) == 0 {
		return surgeonerr.Precondition("fixup",
			"no staged changes to fix up",
			"stage the hunks to fold in first ('git-surgeon stage <id>')")
	}

	sha, err := o.resolveCommit(ctx, commit)
	if err != nil {
		return err
	}
	head, err := o.headSHA(ctx)
	if err != nil {
		return err
	}
	if sha == head {
		if _, err := o.runner.Run(ctx, "commit", "--amend", "--no-edit"); err != nil {
			return surgeonerr.GitCommandFailed("fixup", gitproc.Stderr(err), err)
		}
		return nil
	}

	if _, err := o.runner.Run(ctx, "commit", "--fixup="+sha); err != nil {
		return surgeonerr.GitCommandFailed("fixup", gitproc.Stderr(err), err)
	}
	args := append([]string{"rebase", "--autostash", "--autosquash", "-i"}, o.rebaseOnto(ctx, sha))
	env := []string{"GIT_SEQUENCE_EDITOR=true"}
	if _, err := o.runner.RunWithEnv(ctx, env, args...); err != nil {
		return surgeonerr.RebaseConflict("fixup", gitproc.Stderr(err))
	}
	return nil
}

// Reword replaces a commit's message. HEAD is amended; older commits go
// through a rebase whose todo list is rewritten to "reword" by this binary
// re-invoked as the sequence editor, with the new message supplied through
// the commit-message shim.
func (o *Orchestrator) Reword(ctx context.Context, commit string, messages []string) error {
	msg := JoinMessages(messages)
	sha, err := o.resolveCommit(ctx, commit)
	if err != nil {
		return err
	}
	head, err := o.headSHA(ctx)
	if err != nil {
		return err
	}
	if sha == head {
		if _, err := o.runner.Run(ctx, "commit", "--amend", "-m", msg); err != nil {
			return surgeonerr.GitCommandFailed("reword", gitproc.Stderr(err), err)
		}
		return nil
	}

	env := []string{
		"GIT_SEQUENCE_EDITOR=" + o.shimCommand(SequenceEditVerb),
		"GIT_EDITOR=" + o.shimCommand(CommitMessageVerb),
		EnvSequenceAction + "=reword",
		EnvSequenceCommit + "=" + sha,
		EnvCommitMessage + "=" + msg,
	}
	args := append([]string{"rebase", "--autostash", "-i"}, o.rebaseOnto(ctx, sha))
	if _, err := o.runner.RunWithEnv(ctx, env, args...); err != nil {
		return surgeonerr.RebaseConflict("reword", gitproc.Stderr(err))
	}
	return nil
}

// shimCommand formats the editor override string git will pass to the
// shell: this binary's own path plus the hidden shim verb.
func (o *Orchestrator) shimCommand(verb string) string {
	return `"` + o.shimPath + `" ` + verb
}

// resolveCommit turns a user-supplied ref into a full commit SHA.
func (o *Orchestrator) resolveCommit(ctx context.Context, ref string) (string, error) {
	out, err := o.runner.Run(ctx, "rev-parse", "--verify", ref+"^{commit}")
	if err != nil {
		return "", surgeonerr.New(surgeonerr.CategoryResolution, fmt.Sprintf("commit %s not found", ref))
	}
	return strings.TrimSpace(string(out)), nil
}

// headSHA resolves the current HEAD commit.
func (o *Orchestrator) headSHA(ctx context.Context) (string, error) {
	out, err := o.runner.Run(ctx, "rev-parse", "HEAD")
	if err != nil {
		return "", surgeonerr.GitCommandFailed("rev-parse", gitproc.Stderr(err), err)
	}
	return strings.TrimSpace(string(out)), nil
}

// parentOf returns sha's first parent, or ok=false for a root commit.
func (o *Orchestrator) parentOf(ctx context.Context, sha string) (string, bool) {
	out, err := o.runner.Run(ctx, "rev-parse", "--verify", sha+"^^{commit}")
	if err != nil {
		return "", false
	}
	return strings.TrimSpace(string(out)), true
}

// rebaseOnto is the final rebase argument for rewriting sha: its parent,
// or --root when sha is the first commit.
func (o *Orchestrator) rebaseOnto(ctx context.Context, sha string) string {
	if _, ok := o.parentOf(ctx, sha); !ok {
		return "--root"
	}
	return sha + "^"
}

// worktreeDirty reports whether tracked files have uncommitted changes
// (staged or not). Untracked files never count.
func (o *Orchestrator) worktreeDirty(ctx context.Context) (bool, error) {
	out, err := o.runner.Run(ctx, "status", "--porcelain", "-uno")
	if err != nil {
		return false, surgeonerr.GitCommandFailed("status", gitproc.Stderr(err), err)
	}
	return len(bytes.TrimSpace(out)) > 0, nil
}
