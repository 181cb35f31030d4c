package orchestrator

import (
	"bytes"
	"context"
	"fmt"

	"github.com/git-surgeon/git-surgeon/internal/diffmodel"
	"github.com/git-surgeon/git-surgeon/internal/executor"
	"github.com/git-surgeon/git-surgeon/internal/gitproc"
	"github.com/git-surgeon/git-surgeon/internal/patchsynth"
	"github.com/git-surgeon/git-surgeon/internal/selection"
	"github.com/git-surgeon/git-surgeon/internal/surgeonerr"
)

// PickGroup is one --pick group of a split: the hunk references to stage
// together and the commit message for them.
type PickGroup struct {
	Refs     []selection.Ref
	Messages []string
}

// Split breaks a commit into one commit per pick group plus an implicit
// "rest" commit for whatever was not picked. HEAD is reset in place;
// older commits are reached by an interactive rebase stopped at the
// target. Once the reset has happened there is no compensating rollback:
// a mid-flight failure is surfaced and the partial state left for manual
// resolution.
func (o *Orchestrator) Split(ctx context.Context, commit string, groups []PickGroup, restMessages []string) error {
	dirty, err := o.worktreeDirty(ctx)
	if err != nil {
		return err
	}
	if dirty {
		return surgeonerr.Precondition("split",
			"working tree has uncommitted changes",
			"commit or stash them before splitting")
	}

	sha, err := o.resolveCommit(ctx, commit)
	if err != nil {
		return err
	}
	head, err := o.headSHA(ctx)
	if err != nil {
		return err
	}
	if _, ok := o.parentOf(ctx, sha); !ok {
		return surgeonerr.Precondition("split",
			"cannot split the root commit",
			"the root commit has no parent to rebuild the branch on")
	}

	// Resolve every referenced ID against the commit's diff before any
	// mutation. What each group keeps is remembered as change-line content,
	// not coordinates: committing one group shifts the hunk boundaries of
	// the next group's diff.
	_, listing, err := o.exec.LoadListing(ctx, executor.Source{Kind: executor.SourceCommit, Commit: sha}, "")
	if err != nil {
		return err
	}
	wants := make([]map[string][]wantLine, len(groups))
	groupIDs := make([][]string, len(groups))
	for i, g := range groups {
		sel, err := selection.Resolve(listing, g.Refs)
		if err != nil {
			return err
		}
		wants[i] = collectWants(sel)
		for _, ref := range sel.Refs {
			groupIDs[i] = append(groupIDs[i], ref.ID)
		}
	}

	restMsg := JoinMessages(restMessages)
	if restMsg == "" {
		out, err := o.runner.Run(ctx, "show", "-s", "--format=%B", sha)
		if err != nil {
			return surgeonerr.GitCommandFailed("split", gitproc.Stderr(err), err)
		}
		restMsg = string(bytes.TrimRight(out, "\n"))
	}

	isHead := sha == head
	if isHead {
		if _, err := o.runner.Run(ctx, "reset", "--mixed", "HEAD^"); err != nil {
			return surgeonerr.GitCommandFailed("split", gitproc.Stderr(err), err)
		}
	} else {
		env := []string{
			"GIT_SEQUENCE_EDITOR=" + o.shimCommand(SequenceEditVerb),
			EnvSequenceAction + "=edit",
			EnvSequenceCommit + "=" + sha,
		}
		if _, err := o.runner.RunWithEnv(ctx, env, "rebase", "--autostash", "-i", sha+"^"); err != nil {
			return surgeonerr.RebaseConflict("split", gitproc.Stderr(err))
		}
		if _, err := o.runner.Run(ctx, "reset", "--mixed", "HEAD^"); err != nil {
			return surgeonerr.GitCommandFailed("split", gitproc.Stderr(err), err)
		}
	}

	for i, g := range groups {
		files, _, err := o.exec.LoadListing(ctx, executor.Source{Kind: executor.SourceWorktree}, "")
		if err != nil {
			return err
		}
		sel, err := reanchor(files, wants[i])
		if err != nil {
			return err
		}
		patch, err := patchsynth.Synthesize(files, sel, patchsynth.Forward)
		if err != nil {
			return err
		}
		if err := o.exec.ApplyPatch(ctx, "split", groupIDs[i], patch, "apply", "--cached"); err != nil {
			return err
		}
		if _, err := o.runner.Run(ctx, "commit", "-m", JoinMessages(g.Messages)); err != nil {
			return surgeonerr.GitCommandFailed("split", gitproc.Stderr(err), err)
		}
		for _, id := range groupIDs[i] {
			fmt.Fprintln(o.stderr, id)
		}
	}

	remaining, err := o.runner.Run(ctx, "status", "--porcelain")
	if err != nil {
		return surgeonerr.GitCommandFailed("split", gitproc.Stderr(err), err)
	}
	if len(bytes.TrimSpace(remaining)) > 0 {
		if _, err := o.runner.Run(ctx, "add", "-A"); err != nil {
			return surgeonerr.GitCommandFailed("split", gitproc.Stderr(err), err)
		}
		if _, err := o.runner.Run(ctx, "commit", "-m", restMsg); err != nil {
			return surgeonerr.GitCommandFailed("split", gitproc.Stderr(err), err)
		}
	}

	if !isHead {
		if _, err := o.runner.RunWithEnv(ctx, []string{"GIT_EDITOR=true"}, "rebase", "--continue"); err != nil {
			return surgeonerr.RebaseConflict("split", gitproc.Stderr(err))
		}
	}
	return nil
}

// wantLine is one change line a pick group keeps, remembered by content.
type wantLine struct {
	kind    diffmodel.LineKind
	payload []byte
}

// collectWants flattens a resolved selection into the per-file ordered
// list of change lines it includes.
func collectWants(sel *diffmodel.Selection) map[string][]wantLine {
	wants := make(map[string][]wantLine)
	for _, ref := range sel.Refs {
		path := ref.Hunk.EffectivePath()
		for i, l := range ref.Hunk.Lines {
			if l.Kind == diffmodel.Context || !ref.InAnyRange(i+1) {
				continue
			}
			wants[path] = append(wants[path], wantLine{kind: l.Kind, payload: l.Payload})
		}
	}
	return wants
}

// reanchor maps wanted change lines onto a freshly parsed diff by in-order
// content matching within each file, producing a selection with line
// ranges over the fresh display numbering. Identical change lines match
// greedily first-to-first, which is deterministic and order-preserving.
func reanchor(files []*diffmodel.FilePatch, wants map[string][]wantLine) (*diffmodel.Selection, error) {
	sel := &diffmodel.Selection{}
	matched := make(map[string]int)
	for _, fp := range files {
		path := fp.EffectivePath()
		want := wants[path]
		if len(want) == 0 {
			continue
		}
		idx := matched[path]
		for _, h := range fp.Hunks {
			var ranges []diffmodel.LineRange
			for li, l := range h.Lines {
				if l.Kind == diffmodel.Context || idx >= len(want) {
					continue
				}
				if want[idx].kind == l.Kind && bytes.Equal(want[idx].payload, l.Payload) {
					ranges = appendLine(ranges, li+1)
					idx++
				}
			}
			if len(ranges) > 0 {
				sel.Refs = append(sel.Refs, &diffmodel.HunkRef{Hunk: h, Ranges: ranges})
			}
		}
		matched[path] = idx
	}
	for path, want := range wants {
		if matched[path] != len(want) {
			return nil, surgeonerr.Bug(fmt.Sprintf("picked changes for %s no longer match the working tree", path))
		}
	}
	if len(sel.Refs) == 0 {
		return nil, surgeonerr.EmptySelection()
	}
	return sel, nil
}

// appendLine grows the last range when the line is contiguous with it,
// otherwise starts a new one.
func appendLine(ranges []diffmodel.LineRange, line int) []diffmodel.LineRange {
	if n := len(ranges); n > 0 && ranges[n-1].End == line-1 {
		ranges[n-1].End = line
		return ranges
	}
	return append(ranges, diffmodel.LineRange{Start: line, End: line})
}
