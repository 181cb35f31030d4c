// Package executor binds verbs to source diffs and git apply calls: it
// acquires the diff for a verb's source, resolves hunk references, hands
// the selection to the patch synthesiser, and pipes the result to the
// right git apply variant.
package executor

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/git-surgeon/git-surgeon/internal/diffmodel"
	"github.com/git-surgeon/git-surgeon/internal/diffscan"
	"github.com/git-surgeon/git-surgeon/internal/gitproc"
	"github.com/git-surgeon/git-surgeon/internal/hunkid"
	"github.com/git-surgeon/git-surgeon/internal/patchsynth"
	"github.com/git-surgeon/git-surgeon/internal/selection"
	"github.com/git-surgeon/git-surgeon/internal/surgeonerr"
)

// SourceKind tells where a diff is obtained from.
type SourceKind int

const (
	// SourceWorktree reads git diff (worktree vs index).
	SourceWorktree SourceKind = iota
	// SourceIndex reads git diff --cached (index vs HEAD).
	SourceIndex
	// SourceCommit reads git show <commit> (commit vs its parent).
	SourceCommit
)

// Source is the diff a command reads from. Commit is set only for
// SourceCommit.
type Source struct {
	Kind   SourceKind
	Commit string
}

// diffFormatArgs pin the diff format so parsing is independent of the
// user's diff-related config.
var diffFormatArgs = []string{"--no-color", "--no-ext-diff", "--src-prefix=a/", "--dst-prefix=b/"}

// Executor runs the single-step verbs.
type Executor struct {
	runner gitproc.Runner
	stdout io.Writer
	stderr io.Writer
}

// New creates an Executor writing listings to stdout and progress echoes
// to stderr.
func New(runner gitproc.Runner, stdout, stderr io.Writer) *Executor {
	return &Executor{runner: runner, stdout: stdout, stderr: stderr}
}

// Runner exposes the underlying git runner for the orchestrator.
func (e *Executor) Runner() gitproc.Runner { return e.runner }

// AcquireDiff fetches the raw diff bytes for a source, optionally
// restricted to one path.
func (e *Executor) AcquireDiff(ctx context.Context, src Source, file string) ([]byte, error) {
	var args []string
	switch src.Kind {
	case SourceWorktree:
		args = append([]string{"diff"}, diffFormatArgs...)
	case SourceIndex:
		args = append([]string{"diff", "--cached"}, diffFormatArgs...)
	case SourceCommit:
		args = append([]string{"show", "--pretty="}, diffFormatArgs...)
		args = append(args, src.Commit)
	}
	if file != "" {
		args = append(args, "--", file)
	}
	out, err := e.runner.Run(ctx, args...)
	if err != nil {
		return nil, surgeonerr.GitCommandFailed("diff", gitproc.Stderr(err), err)
	}
	return out, nil
}

// LoadListing acquires, parses, and identifies a source diff in one step.
func (e *Executor) LoadListing(ctx context.Context, src Source, file string) ([]*diffmodel.FilePatch, *hunkid.Listing, error) {
	diff, err := e.AcquireDiff(ctx, src, file)
	if err != nil {
		return nil, nil, err
	}
	files, err := diffscan.Parse(diff)
	if err != nil {
		return nil, nil, err
	}
	return files, hunkid.Assign(files), nil
}

// Verb describes one of the single-step apply operations.
type Verb struct {
	Name      string
	Source    Source
	ApplyArgs []string
	Direction patchsynth.Direction
}

// The verb table from the operation-executor design: which diff each verb
// reads and which git apply variant consumes the synthesised patch.
var (
	VerbStage = Verb{
		Name:      "stage",
		Source:    Source{Kind: SourceWorktree},
		ApplyArgs: []string{"apply", "--cached"},
		Direction: patchsynth.Forward,
	}
	VerbUnstage = Verb{
		Name:      "unstage",
		Source:    Source{Kind: SourceIndex},
		ApplyArgs: []string{"apply", "--cached", "--reverse"},
		Direction: patchsynth.Reverse,
	}
	VerbDiscard = Verb{
		Name:      "discard",
		Source:    Source{Kind: SourceWorktree},
		ApplyArgs: []string{"apply", "--reverse"},
		Direction: patchsynth.Reverse,
	}
)

// verbUndo builds the undo verb for a specific commit.
func verbUndo(commit string) Verb {
	return Verb{
		Name:      "undo",
		Source:    Source{Kind: SourceCommit, Commit: commit},
		ApplyArgs: []string{"apply", "--reverse"},
		Direction: patchsynth.Reverse,
	}
}

// Apply resolves refs against the verb's source diff, synthesises the
// patch, and pipes it to the verb's git apply call. Each applied hunk ID
// is echoed to stderr.
func (e *Executor) Apply(ctx context.Context, verb Verb, refs []selection.Ref) error {
	files, listing, err := e.LoadListing(ctx, verb.Source, "")
	if err != nil {
		return err
	}
	sel, err := selection.Resolve(listing, refs)
	if err != nil {
		return err
	}
	patch, err := patchsynth.Synthesize(files, sel, verb.Direction)
	if err != nil {
		return err
	}
	ids := make([]string, 0, len(sel.Refs))
	for _, ref := range sel.Refs {
		ids = append(ids, ref.ID)
	}
	if err := e.applyPatch(ctx, verb, ids, patch); err != nil {
		return err
	}
	for _, id := range ids {
		fmt.Fprintln(e.stderr, id)
	}
	return nil
}

// Undo reverse-applies hunks from a commit to the worktree. A context
// mismatch fails cleanly with no partial application (git apply is
// atomic per invocation).
func (e *Executor) Undo(ctx context.Context, refs []selection.Ref, from string) error {
	return e.Apply(ctx, verbUndo(from), refs)
}

// UndoFiles reverse-applies every hunk of the named files from a commit.
// A file with no hunk in that commit's diff is a hard error naming it.
func (e *Executor) UndoFiles(ctx context.Context, paths []string, from string) error {
	verb := verbUndo(from)
	verb.Name = "undo-file"
	files, listing, err := e.LoadListing(ctx, verb.Source, "")
	if err != nil {
		return err
	}

	matched := make(map[string]bool)
	var refs []selection.Ref
	for _, entry := range listing.Entries {
		for _, p := range paths {
			if entry.Hunk.EffectivePath() == p {
				matched[p] = true
				refs = append(refs, selection.Ref{ID: entry.ID})
			}
		}
	}
	for _, p := range paths {
		if !matched[p] {
			return surgeonerr.New(surgeonerr.CategoryResolution,
				fmt.Sprintf("file %s not found in commit %s", p, from))
		}
	}

	sel, err := selection.Resolve(listing, refs)
	if err != nil {
		return err
	}
	patch, err := patchsynth.Synthesize(files, sel, verb.Direction)
	if err != nil {
		return err
	}
	if err := e.applyPatch(ctx, verb, paths, patch); err != nil {
		return err
	}
	for _, p := range paths {
		fmt.Fprintln(e.stderr, p)
	}
	return nil
}

// ApplyPatch pipes an already-synthesised patch to git apply with the
// given variant flags. Shared with the orchestrator's commit sequence.
func (e *Executor) ApplyPatch(ctx context.Context, verbName string, ids []string, patch []byte, applyArgs ...string) error {
	return e.applyPatch(ctx, Verb{Name: verbName, ApplyArgs: applyArgs}, ids, patch)
}

func (e *Executor) applyPatch(ctx context.Context, verb Verb, ids []string, patch []byte) error {
	if _, err := e.runner.RunWithStdin(ctx, bytes.NewReader(patch), verb.ApplyArgs...); err != nil {
		return surgeonerr.GitApplyFailed(verb.Name, ids, gitproc.Stderr(err), err)
	}
	return nil
}
