// Package patchsynth reconstructs minimal, byte-exact sub-patches from a
// Selection. Whole-hunk selections re-emit the original bytes untouched;
// line-range selections rewrite the hunk body and recompute its header so
// the result is still a valid input to git apply and its --cached /
// --reverse variants.
package patchsynth

import (
	"bytes"

	"github.com/git-surgeon/git-surgeon/internal/diffmodel"
	"github.com/git-surgeon/git-surgeon/internal/surgeonerr"
)

// Direction distinguishes patches destined for forward application (stage,
// commit) from those fed to git apply --reverse (unstage, discard, undo).
// The exclusion rule mirrors between the two: a change line left out of a
// forward patch must keep the OLD text in both columns, one left out of a
// reverse patch must keep the NEW text, so the patch pre-image matches the
// tree it will be applied to.
type Direction int

const (
	// Forward patches are applied as-is (git apply / git apply --cached).
	Forward Direction = iota
	// Reverse patches are fed to git apply --reverse.
	Reverse
)

const noNewlineMarker = "\\ No newline at end of file\n"

// Synthesize builds one combined patch for the selection. Files keep their
// parse order; unselected hunks and files with no selected hunks are
// omitted. A selection whose ranges exclude every change line is an error.
func Synthesize(files []*diffmodel.FilePatch, sel *diffmodel.Selection, dir Direction) ([]byte, error) {
	refOf := make(map[*diffmodel.Hunk]*diffmodel.HunkRef, len(sel.Refs))
	for _, ref := range sel.Refs {
		refOf[ref.Hunk] = ref
	}

	var patch bytes.Buffer
	changes := 0
	for _, fp := range files {
		var body bytes.Buffer
		for _, h := range fp.Hunks {
			ref, ok := refOf[h]
			if !ok {
				continue
			}
			if len(ref.Ranges) == 0 {
				body.Write(h.Raw)
				changes += h.Adds() + h.Dels()
				continue
			}
			sliced := sliceHunk(h, ref, dir)
			n := sliced.Adds() + sliced.Dels()
			if n == 0 {
				continue
			}
			changes += n
			writeHunk(&body, sliced)
		}
		if body.Len() > 0 {
			patch.Write(fp.HeaderRaw)
			patch.Write(body.Bytes())
		}
	}
	if changes == 0 {
		return nil, surgeonerr.EmptySelection()
	}
	return patch.Bytes(), nil
}

// sliceHunk restricts a hunk to the ref's line ranges. Context lines are
// always kept. Excluded change lines are neutralized by direction: forward
// drops excluded adds and turns excluded dels into context; reverse is the
// mirror. A no-newline marker on a dropped line goes with it; on a
// neutralized line it stays.
func sliceHunk(h *diffmodel.Hunk, ref *diffmodel.HunkRef, dir Direction) *diffmodel.Hunk {
	out := &diffmodel.Hunk{
		OldStart:    h.OldStart,
		NewStart:    h.NewStart,
		FuncContext: h.FuncContext,
		OldPath:     h.OldPath,
		NewPath:     h.NewPath,
	}
	for i, l := range h.Lines {
		included := ref.InAnyRange(i + 1)
		switch l.Kind {
		case diffmodel.Add:
			switch {
			case included:
				out.Lines = append(out.Lines, l)
			case dir == Reverse:
				out.Lines = append(out.Lines, diffmodel.Line{Kind: diffmodel.Context, Payload: l.Payload, NoNewline: l.NoNewline})
			}
		case diffmodel.Del:
			switch {
			case included:
				out.Lines = append(out.Lines, l)
			case dir == Forward:
				out.Lines = append(out.Lines, diffmodel.Line{Kind: diffmodel.Context, Payload: l.Payload, NoNewline: l.NoNewline})
			}
		default:
			out.Lines = append(out.Lines, l)
		}
	}
	out.OldCount, out.NewCount = sideCounts(out.Lines)
	return out
}

func sideCounts(lines []diffmodel.Line) (oldCount, newCount int) {
	for _, l := range lines {
		switch l.Kind {
		case diffmodel.Context:
			oldCount++
			newCount++
		case diffmodel.Add:
			newCount++
		case diffmodel.Del:
			oldCount++
		}
	}
	return oldCount, newCount
}

// writeHunk serializes a rewritten hunk: recomputed header, then each line
// as sigil + payload + newline, with no-newline markers re-attached where
// their line survived.
func writeHunk(buf *bytes.Buffer, h *diffmodel.Hunk) {
	buf.WriteString(h.Header())
	buf.WriteByte('\n')
	for _, l := range h.Lines {
		buf.WriteByte(l.Kind.Sigil())
		buf.Write(l.Payload)
		buf.WriteByte('\n')
		if l.NoNewline {
			buf.WriteString(noNewlineMarker)
		}
	}
}
