package executor

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/git-surgeon/git-surgeon/internal/blame"
	"github.com/git-surgeon/git-surgeon/internal/diffmodel"
	"github.com/git-surgeon/git-surgeon/internal/hunkid"
)

// maxPreviewLines caps how many preview lines a hunks listing shows per
// hunk before truncating with a summary. Without blame only changed lines
// are shown; with blame, context lines shown count against the cap too.
const maxPreviewLines = 4

// ListOptions configure the hunks verb.
type ListOptions struct {
	Source Source
	File   string
	// Full renders every line numbered, the way show renders one hunk.
	Full bool
	// Blame prefixes each line with the short SHA that introduced it.
	Blame bool
}

// ListHunks prints the identified hunks of a source diff: one title line
// per hunk, then a changed-line preview (or the full numbered/blamed body).
// No changes means no output.
func (e *Executor) ListHunks(ctx context.Context, opts ListOptions) error {
	_, listing, err := e.LoadListing(ctx, opts.Source, opts.File)
	if err != nil {
		return err
	}

	var annotator *blame.Annotator
	if opts.Blame {
		annotator = blame.New(e.runner)
	}
	for _, entry := range listing.Entries {
		h := entry.Hunk
		fmt.Fprintf(e.stdout, "%s %s%s (+%d -%d)\n",
			entry.ID, h.EffectivePath(), funcPart(h), h.Adds(), h.Dels())
		var hashes []string
		if opts.Blame {
			hashes = annotator.Annotate(ctx, h, opts.Source.Commit)
		}
		if opts.Full {
			e.writeNumbered(h, hashes)
		} else {
			e.writePreview(h, hashes)
		}
		fmt.Fprintln(e.stdout)
	}
	return nil
}

// Show prints one hunk in full: its original @@ header verbatim, then each
// line numbered by its display index. With commit == "" the hunk is looked
// up in the worktree diff first, then in the index.
func (e *Executor) Show(ctx context.Context, id, commit string, useBlame bool) error {
	var h *diffmodel.Hunk
	if commit != "" {
		_, listing, err := e.LoadListing(ctx, Source{Kind: SourceCommit, Commit: commit}, "")
		if err != nil {
			return err
		}
		if h, err = listing.Lookup(id); err != nil {
			return err
		}
	} else {
		var err error
		if h, err = e.findInWorktreeOrIndex(ctx, id); err != nil {
			return err
		}
	}

	fmt.Fprintln(e.stdout, rawHeaderLine(h))
	var hashes []string
	if useBlame {
		hashes = blame.New(e.runner).Annotate(ctx, h, commit)
	}
	e.writeNumbered(h, hashes)
	return nil
}

// findInWorktreeOrIndex resolves an ID against the worktree diff, falling
// back to the staged diff, so show works without a --staged flag.
func (e *Executor) findInWorktreeOrIndex(ctx context.Context, id string) (*diffmodel.Hunk, error) {
	_, listing, err := e.LoadListing(ctx, Source{Kind: SourceWorktree}, "")
	if err != nil {
		return nil, err
	}
	if h, err := listing.Lookup(id); err == nil {
		return h, nil
	}
	var staged *hunkid.Listing
	if _, staged, err = e.LoadListing(ctx, Source{Kind: SourceIndex}, ""); err != nil {
		return nil, err
	}
	return staged.Lookup(id)
}

// writePreview prints up to maxPreviewLines preview lines, two-space
// indented, with a truncation summary counting the changed lines that did
// not fit. Without blame hashes only changed lines appear. With hashes,
// context lines within the budget appear too, prefixed by the short SHA
// that introduced them; changed lines keep a blank hash column so the
// sigils stay aligned.
func (e *Executor) writePreview(h *diffmodel.Hunk, hashes []string) {
	shown, changesShown := 0, 0
	total := h.Adds() + h.Dels()
	for i, l := range h.Lines {
		if shown == maxPreviewLines {
			break
		}
		if l.Kind == diffmodel.Context {
			if hashes == nil {
				continue
			}
			fmt.Fprintf(e.stdout, "  %s %c%s\n", hashes[i], l.Kind.Sigil(), l.Payload)
			shown++
			continue
		}
		if hashes != nil {
			fmt.Fprintf(e.stdout, "  %7s %c%s\n", "", l.Kind.Sigil(), l.Payload)
		} else {
			fmt.Fprintf(e.stdout, "  %c%s\n", l.Kind.Sigil(), l.Payload)
		}
		shown++
		changesShown++
	}
	if changesShown < total {
		fmt.Fprintf(e.stdout, "  ... (+%d more lines)\n", total-changesShown)
	}
}

// writeNumbered prints every line of a hunk prefixed by its 1-based
// display number. No-newline markers are printed unnumbered so the
// numbering matches what line ranges address.
func (e *Executor) writeNumbered(h *diffmodel.Hunk, hashes []string) {
	width := len(fmt.Sprint(len(h.Lines)))
	for i, l := range h.Lines {
		if hashes != nil {
			fmt.Fprintf(e.stdout, "%*d:%s %c%s\n", width, i+1, hashes[i], l.Kind.Sigil(), l.Payload)
		} else {
			fmt.Fprintf(e.stdout, "%*d:%c%s\n", width, i+1, l.Kind.Sigil(), l.Payload)
		}
		if l.NoNewline {
			fmt.Fprintln(e.stdout, `\ No newline at end of file`)
		}
	}
}

// funcPart formats the optional function-context suffix for a title line.
func funcPart(h *diffmodel.Hunk) string {
	ctx := strings.TrimSpace(h.FuncContext)
	if ctx == "" {
		return ""
	}
	return " " + ctx
}

// rawHeaderLine returns the hunk's original @@ line exactly as parsed.
func rawHeaderLine(h *diffmodel.Hunk) string {
	if i := bytes.IndexByte(h.Raw, '\n'); i >= 0 {
		return string(h.Raw[:i])
	}
	return h.Header()
}
