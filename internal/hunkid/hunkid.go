// Package hunkid computes the 7-hex content fingerprints that are the
// external handles for hunks, and resolves user-supplied IDs against a
// listing. IDs hash the hunk's content rather than its position, so they
// survive unrelated edits elsewhere in the file.
package hunkid

import (
	"crypto/sha1"
	"encoding/hex"
	"fmt"

	"github.com/git-surgeon/git-surgeon/internal/diffmodel"
	"github.com/git-surgeon/git-surgeon/internal/surgeonerr"
)

// Identified pairs a hunk with its assigned ID.
type Identified struct {
	ID   string
	Hunk *diffmodel.Hunk
}

// Listing is the ordered ID assignment for one parsed diff. It is
// recomputed from scratch on every invocation; nothing is persisted.
type Listing struct {
	Entries []Identified
	byID    map[string]*diffmodel.Hunk
}

// Assign walks every hunk of the parsed files in listing order and gives
// each a fingerprint ID. The first occurrence of a fingerprint is bare;
// each later collision in the same listing gets a "-N" suffix with N
// starting at 2.
func Assign(files []*diffmodel.FilePatch) *Listing {
	l := &Listing{byID: make(map[string]*diffmodel.Hunk)}
	seen := make(map[string]int)
	for _, fp := range files {
		for _, h := range fp.Hunks {
			raw := Fingerprint(h)
			seen[raw]++
			id := raw
			if n := seen[raw]; n > 1 {
				id = fmt.Sprintf("%s-%d", raw, n)
			}
			l.Entries = append(l.Entries, Identified{ID: id, Hunk: h})
			l.byID[id] = h
		}
	}
	return l
}

// Fingerprint computes the raw 7-hex ID for a hunk: SHA-1 over the
// effective file path, a NUL separator, and every body line as its
// sigil + payload + newline. The "@@" header and function context are
// excluded so the ID survives line shifts above and below the hunk.
func Fingerprint(h *diffmodel.Hunk) string {
	hasher := sha1.New()
	hasher.Write([]byte(h.EffectivePath()))
	hasher.Write([]byte{0})
	for _, line := range h.Lines {
		hasher.Write([]byte{line.Kind.Sigil()})
		hasher.Write(line.Payload)
		hasher.Write([]byte{'\n'})
	}
	return hex.EncodeToString(hasher.Sum(nil)[:4])[:7]
}

// Lookup resolves a user-supplied ID to its hunk. A bare ID that also has
// "-N" siblings refers to the first occurrence.
func (l *Listing) Lookup(id string) (*diffmodel.Hunk, error) {
	if h, ok := l.byID[id]; ok {
		return h, nil
	}
	return nil, surgeonerr.HunkNotFound(id)
}

// IDOf returns the assigned ID for a hunk in this listing, or "" when the
// hunk is not part of it.
func (l *Listing) IDOf(h *diffmodel.Hunk) string {
	for _, e := range l.Entries {
		if e.Hunk == h {
			return e.ID
		}
	}
	return ""
}
