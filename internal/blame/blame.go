// Package blame annotates hunk lines with the short SHA of the commit
// that introduced them, via git blame --line-porcelain. Blame failures
// degrade to the zero marker instead of failing the listing.
package blame

import (
	"context"
	"fmt"
	"strings"

	"github.com/git-surgeon/git-surgeon/internal/diffmodel"
	"github.com/git-surgeon/git-surgeon/internal/gitproc"
)

// Unknown is the marker used for lines with no blameable origin: added
// lines in a worktree or index diff, and lines whose blame call failed.
const Unknown = "0000000"

// Annotator resolves per-line blame for hunks.
type Annotator struct {
	runner gitproc.Runner
}

// New creates an Annotator on the given runner.
func New(runner gitproc.Runner) *Annotator {
	return &Annotator{runner: runner}
}

// Annotate returns one short SHA per display line of h. With commit == ""
// the hunk came from a worktree or index diff: context and del lines blame
// the old side at HEAD, add lines get Unknown. With a commit, context and
// add lines blame the new side at that commit and del lines blame the old
// side at its parent.
func (a *Annotator) Annotate(ctx context.Context, h *diffmodel.Hunk, commit string) []string {
	var oldHashes, newHashes []string
	if commit == "" {
		oldHashes = a.blameLines(ctx, h.OldPath, h.OldStart, h.OldCount, "HEAD")
	} else {
		newHashes = a.blameLines(ctx, h.NewPath, h.NewStart, h.NewCount, commit)
		oldHashes = a.blameLines(ctx, h.OldPath, h.OldStart, h.OldCount, commit+"^")
	}

	out := make([]string, 0, len(h.Lines))
	oldIdx, newIdx := 0, 0
	takeOld := func() string {
		if oldIdx < len(oldHashes) {
			hash := oldHashes[oldIdx]
			oldIdx++
			return hash
		}
		oldIdx++
		return Unknown
	}
	takeNew := func() string {
		if newIdx < len(newHashes) {
			hash := newHashes[newIdx]
			newIdx++
			return hash
		}
		newIdx++
		return Unknown
	}

	for _, l := range h.Lines {
		switch l.Kind {
		case diffmodel.Context:
			if commit == "" {
				out = append(out, takeOld())
			} else {
				oldIdx++
				out = append(out, takeNew())
			}
		case diffmodel.Del:
			out = append(out, takeOld())
		case diffmodel.Add:
			if commit == "" {
				out = append(out, Unknown)
			} else {
				out = append(out, takeNew())
			}
		}
	}
	return out
}

// blameLines blames count lines starting at start in path at rev,
// returning one 7-char hash per line, or nil when blame is impossible
// (nothing to blame, or git refused).
func (a *Annotator) blameLines(ctx context.Context, path string, start, count int, rev string) []string {
	if count == 0 || start == 0 || path == diffmodel.DevNull || path == "" {
		return nil
	}
	out, err := a.runner.Run(ctx, "blame", "--line-porcelain",
		"-L", fmt.Sprintf("%d,+%d", start, count), rev, "--", path)
	if err != nil {
		return nil
	}
	return ParsePorcelain(string(out))
}

// ParsePorcelain extracts one short hash per blamed line from
// --line-porcelain output. Content lines start with a tab and are skipped
// so file content that looks like a hash cannot confuse the scan; header
// lines start with the 40-hex commit, with a leading "^" for boundary
// commits.
func ParsePorcelain(out string) []string {
	var hashes []string
	for _, line := range strings.Split(out, "\n") {
		if strings.HasPrefix(line, "\t") {
			continue
		}
		token, _, _ := strings.Cut(line, " ")
		token = strings.TrimPrefix(token, "^")
		if len(token) >= 40 && isHex(token[:40]) {
			hashes = append(hashes, token[:7])
		}
	}
	return hashes
}

func isHex(s string) bool {
	for i := 0; i < len(s); i++ {
		c := s[i]
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') && (c < 'A' || c > 'F') {
			return false
		}
	}
	return true
}
