// Package selection parses user-supplied hunk references ("<id>" or
// "<id>:<start>-<end>[,<start>-<end>...]") and resolves them against an ID
// listing into the Selection a verb will act on.
package selection

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/git-surgeon/git-surgeon/internal/diffmodel"
	"github.com/git-surgeon/git-surgeon/internal/hunkid"
	"github.com/git-surgeon/git-surgeon/internal/surgeonerr"
)

// Ref is one unresolved hunk reference: an ID plus optional line ranges.
// Empty Ranges selects the whole hunk.
type Ref struct {
	ID     string
	Ranges []diffmodel.LineRange
}

// ParseRef parses "<id>" or "<id>:<range>[,<range>...]" where a range is
// "<start>-<end>" or a single line number "<n>".
func ParseRef(s string) (Ref, error) {
	id, rangePart, found := strings.Cut(s, ":")
	if id == "" {
		return Ref{}, badRef("empty hunk ID in %q", s)
	}
	ref := Ref{ID: id}
	if !found {
		return ref, nil
	}
	ranges, err := ParseRanges(rangePart)
	if err != nil {
		return Ref{}, err
	}
	ref.Ranges = ranges
	return ref, nil
}

// ParseRanges parses a comma-separated range list like "1-5,9,20-30".
// Empty elements are skipped; an entirely empty string yields no ranges.
func ParseRanges(s string) ([]diffmodel.LineRange, error) {
	var ranges []diffmodel.LineRange
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		r, err := parseRange(part)
		if err != nil {
			return nil, err
		}
		ranges = append(ranges, r)
	}
	return ranges, nil
}

func parseRange(s string) (diffmodel.LineRange, error) {
	var start, end int
	var err error
	if a, b, found := strings.Cut(s, "-"); found {
		if start, err = strconv.Atoi(a); err != nil {
			return diffmodel.LineRange{}, badRef("invalid start number in range %q", s)
		}
		if end, err = strconv.Atoi(b); err != nil {
			return diffmodel.LineRange{}, badRef("invalid end number in range %q", s)
		}
	} else {
		if start, err = strconv.Atoi(s); err != nil {
			return diffmodel.LineRange{}, badRef("invalid line number %q", s)
		}
		end = start
	}
	if start < 1 || end < 1 || start > end {
		return diffmodel.LineRange{}, badRef("range %q must be 1-based with start <= end", s)
	}
	return diffmodel.LineRange{Start: start, End: end}, nil
}

// Merge combines refs naming the same ID into one Ref per ID, preserving
// the order each ID first appeared and, within an ID, the order each range
// first appeared. This makes "--pick id:1-5,9" and "--pick id:1-5 id:9"
// equivalent spellings.
func Merge(refs []Ref) []Ref {
	var out []Ref
	index := make(map[string]int)
	for _, r := range refs {
		i, ok := index[r.ID]
		if !ok {
			index[r.ID] = len(out)
			out = append(out, Ref{ID: r.ID, Ranges: append([]diffmodel.LineRange(nil), r.Ranges...)})
			continue
		}
		out[i].Ranges = append(out[i].Ranges, r.Ranges...)
	}
	return out
}

// Resolve looks every ref up in the listing and validates its ranges
// against the hunk's display numbering. Duplicate IDs are merged first.
func Resolve(listing *hunkid.Listing, refs []Ref) (*diffmodel.Selection, error) {
	sel := &diffmodel.Selection{}
	for _, ref := range Merge(refs) {
		h, err := listing.Lookup(ref.ID)
		if err != nil {
			return nil, err
		}
		if err := validateRanges(ref.ID, ref.Ranges, h.DisplayCount()); err != nil {
			return nil, err
		}
		sel.Refs = append(sel.Refs, &diffmodel.HunkRef{ID: ref.ID, Hunk: h, Ranges: ref.Ranges})
	}
	if len(sel.Refs) == 0 {
		return nil, surgeonerr.EmptySelection()
	}
	return sel, nil
}

// validateRanges rejects out-of-bounds line numbers (naming the offending
// number) and overlapping ranges within one hunk.
func validateRanges(id string, ranges []diffmodel.LineRange, max int) error {
	for _, r := range ranges {
		if r.Start > max {
			return surgeonerr.LineOutOfRange(id, r.Start, max)
		}
		if r.End > max {
			return surgeonerr.LineOutOfRange(id, r.End, max)
		}
	}
	for i, a := range ranges {
		for _, b := range ranges[i+1:] {
			if a.Start <= b.End && b.Start <= a.End {
				return surgeonerr.OverlappingRanges(id)
			}
		}
	}
	return nil
}

func badRef(format string, args ...any) *surgeonerr.Error {
	return surgeonerr.New(surgeonerr.CategoryResolution, fmt.Sprintf(format, args...))
}
