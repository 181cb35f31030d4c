package diffscan

import (
	"bytes"

	"github.com/bluekeyes/go-gitdiff/gitdiff"

	"github.com/git-surgeon/git-surgeon/internal/surgeonerr"
)

// classify runs go-gitdiff over the raw diff and rejects every file the
// patch engine does not support (renames, copies, binary content, mode-only
// changes) before the byte-exact scanner touches it. The scanner trusts
// this gate and only has to handle added/deleted/modified text files.
func classify(diff []byte) error {
	files, _, err := gitdiff.Parse(bytes.NewReader(diff))
	if err != nil {
		return surgeonerr.Wrap(surgeonerr.CategoryParse, "malformed diff", err)
	}

	for _, f := range files {
		name := f.NewName
		if name == "" {
			name = f.OldName
		}
		switch {
		case f.IsRename:
			return surgeonerr.UnsupportedMetadata(name, "rename")
		case f.IsCopy:
			return surgeonerr.UnsupportedMetadata(name, "copy")
		case f.IsBinary:
			return surgeonerr.UnsupportedMetadata(name, "binary content")
		// New and deleted files legitimately have one side's mode zero
		// and, when empty, no fragments; only a modification with mode
		// churn and no content is a mode-only change.
		case !f.IsNew && !f.IsDelete && len(f.TextFragments) == 0 && f.OldMode != f.NewMode:
			return surgeonerr.UnsupportedMetadata(name, "mode-only change")
		}
	}
	return nil
}
