package orchestrator

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/git-surgeon/git-surgeon/internal/gitproc"
	"github.com/git-surgeon/git-surgeon/internal/surgeonerr"
)

// Squash collapses target..HEAD into a single commit on top of target's
// parent. The target must be an ancestor of HEAD; merge commits in the
// range are refused unless force is set. With preserveAuthor, the new
// commit carries the target commit's author and author date.
func (o *Orchestrator) Squash(ctx context.Context, target string, messages []string, force, preserveAuthor bool) error {
	sha, err := o.resolveCommit(ctx, target)
	if err != nil {
		return err
	}
	head, err := o.headSHA(ctx)
	if err != nil {
		return err
	}
	if sha == head {
		return surgeonerr.Precondition("squash",
			"nothing to squash; target commit is HEAD",
			"name an earlier commit so the range target..HEAD is non-empty")
	}
	if _, err := o.runner.Run(ctx, "merge-base", "--is-ancestor", sha, "HEAD"); err != nil {
		return surgeonerr.Precondition("squash",
			fmt.Sprintf("commit %s is not an ancestor of HEAD", target),
			"squash only works on the current branch's own history")
	}
	parent, ok := o.parentOf(ctx, sha)
	if !ok {
		return surgeonerr.Precondition("squash",
			"cannot squash the root commit",
			"the root commit has no parent to rebuild the branch on")
	}
	merges, err := o.runner.Run(ctx, "rev-list", "--merges", parent+"..HEAD")
	if err != nil {
		return surgeonerr.GitCommandFailed("squash", gitproc.Stderr(err), err)
	}
	if len(bytes.TrimSpace(merges)) > 0 && !force {
		return surgeonerr.Precondition("squash",
			"the range contains merge commits",
			"re-run with --force to flatten them into the squashed commit")
	}

	commitArgs := []string{"commit", "-m", JoinMessages(messages)}
	var commitEnv []string
	if preserveAuthor {
		name, email, date, err := o.authorOf(ctx, sha)
		if err != nil {
			return err
		}
		commitArgs = append(commitArgs, "--author="+name+" <"+email+">")
		commitEnv = []string{"GIT_AUTHOR_DATE=" + date, "GIT_COMMITTER_DATE=" + date}
	}

	dirty, err := o.worktreeDirty(ctx)
	if err != nil {
		return err
	}
	if dirty {
		if _, err := o.runner.Run(ctx, "stash", "push", "-m", "git-surgeon squash autostash"); err != nil {
			return surgeonerr.GitCommandFailed("squash", gitproc.Stderr(err), err)
		}
	}

	if _, err := o.runner.Run(ctx, "reset", "--soft", parent); err != nil {
		o.restoreStash(ctx, dirty)
		return surgeonerr.GitCommandFailed("squash", gitproc.Stderr(err), err)
	}
	if _, err := o.runner.RunWithEnv(ctx, commitEnv, commitArgs...); err != nil {
		// Put the branch tip back where it was before surfacing the failure.
		if _, resetErr := o.runner.Run(ctx, "reset", "--soft", head); resetErr != nil {
			return surgeonerr.Bug(fmt.Sprintf("squash commit failed and restoring the branch tip also failed: %v (commit failure: %v)", resetErr, err))
		}
		o.restoreStash(ctx, dirty)
		return surgeonerr.GitCommandFailed("squash", gitproc.Stderr(err), err)
	}
	if dirty {
		if _, err := o.runner.Run(ctx, "stash", "pop"); err != nil {
			return surgeonerr.GitCommandFailed("squash", gitproc.Stderr(err), err)
		}
	}
	return nil
}

// authorOf reads a commit's author name, email, and author date.
func (o *Orchestrator) authorOf(ctx context.Context, sha string) (name, email, date string, err error) {
	out, err := o.runner.Run(ctx, "show", "-s", "--format=%an%x00%ae%x00%aD", sha)
	if err != nil {
		return "", "", "", surgeonerr.GitCommandFailed("squash", gitproc.Stderr(err), err)
	}
	parts := strings.SplitN(strings.TrimRight(string(out), "\n"), "\x00", 3)
	if len(parts) != 3 {
		return "", "", "", surgeonerr.Bug(fmt.Sprintf("unexpected author format for %s: %q", sha, out))
	}
	return parts[0], parts[1], parts[2], nil
}

// restoreStash pops the autostash created by Squash on the failure paths
// where the worktree should be handed back as found.
func (o *Orchestrator) restoreStash(ctx context.Context, stashed bool) {
	if stashed {
		_, _ = o.runner.Run(ctx, "stash", "pop")
	}
}
