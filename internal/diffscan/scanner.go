// Package diffscan parses the unified-diff bytes git produces into the
// diffmodel representation. The scanner slices the input buffer rather than
// re-encoding it, so concatenating a FilePatch's header bytes with its
// hunks' raw bytes reproduces the original file section byte-for-byte.
package diffscan

import (
	"bytes"
	"fmt"

	"github.com/git-surgeon/git-surgeon/internal/diffmodel"
	"github.com/git-surgeon/git-surgeon/internal/surgeonerr"
)

// Parse turns unified-diff bytes into an ordered sequence of FilePatches.
// Renames, copies, mode-only changes, and binary files are rejected with an
// error naming the file and the unsupported metadata.
func Parse(diff []byte) ([]*diffmodel.FilePatch, error) {
	if len(bytes.TrimSpace(diff)) == 0 {
		return nil, nil
	}
	if err := classify(diff); err != nil {
		return nil, err
	}
	s := &scanner{data: diff}
	return s.scan()
}

type scanner struct {
	data []byte
	off  int
}

// peek returns the next line including its trailing newline (if present)
// without consuming it, or nil at EOF.
func (s *scanner) peek() []byte {
	if s.off >= len(s.data) {
		return nil
	}
	rest := s.data[s.off:]
	if i := bytes.IndexByte(rest, '\n'); i >= 0 {
		return rest[:i+1]
	}
	return rest
}

func (s *scanner) next() []byte {
	line := s.peek()
	s.off += len(line)
	return line
}

func (s *scanner) scan() ([]*diffmodel.FilePatch, error) {
	var files []*diffmodel.FilePatch
	for {
		line := s.peek()
		if line == nil {
			return files, nil
		}
		if !hasPrefix(line, "diff --git ") {
			return nil, parseErr("expected 'diff --git' but found %q", chomp(line))
		}
		fp, err := s.scanFile()
		if err != nil {
			return nil, err
		}
		files = append(files, fp)
	}
}

// scanFile consumes one file section: the "diff --git" opener, its extended
// header lines, the "---"/"+++" pair, and every hunk up to the next file
// section or EOF.
func (s *scanner) scanFile() (*diffmodel.FilePatch, error) {
	sectionStart := s.off
	opener := s.next()
	displayName := pathFromOpener(opener)
	status := diffmodel.StatusModified

	// Extended header lines, up to the "---" line.
	for {
		line := s.peek()
		switch {
		case line == nil || hasPrefix(line, "diff --git "):
			// A section with no hunks and no ---/+++ pair: classify has
			// already rejected mode-only and binary files, so this is a
			// content-less entry (e.g. an empty file creation).
			return &diffmodel.FilePatch{
				OldPath:   displayName,
				NewPath:   displayName,
				Status:    status,
				HeaderRaw: s.data[sectionStart:s.off],
			}, nil
		case hasPrefix(line, "rename from ") || hasPrefix(line, "rename to "):
			return nil, surgeonerr.UnsupportedMetadata(displayName, "rename")
		case hasPrefix(line, "copy from ") || hasPrefix(line, "copy to "):
			return nil, surgeonerr.UnsupportedMetadata(displayName, "copy")
		case hasPrefix(line, "similarity index "):
			return nil, surgeonerr.UnsupportedMetadata(displayName, "rename")
		case hasPrefix(line, "Binary files ") || hasPrefix(line, "GIT binary patch"):
			return nil, surgeonerr.UnsupportedMetadata(displayName, "binary content")
		case hasPrefix(line, "new file mode "):
			status = diffmodel.StatusAdded
			s.next()
			continue
		case hasPrefix(line, "deleted file mode "):
			status = diffmodel.StatusDeleted
			s.next()
			continue
		case hasPrefix(line, "--- "):
			// fall through to the path pair below
		default:
			// index, old mode, new mode, dissimilarity: preserved verbatim
			// inside HeaderRaw, nothing to record.
			s.next()
			continue
		}
		break
	}

	oldPath := stripPathPrefix(chomp(s.next()), "--- ")
	plusLine := s.peek()
	if !hasPrefix(plusLine, "+++ ") {
		return nil, parseErr("expected '+++' line for %s", displayName)
	}
	newPath := stripPathPrefix(chomp(s.next()), "+++ ")
	headerEnd := s.off

	fp := &diffmodel.FilePatch{
		OldPath:   oldPath,
		NewPath:   newPath,
		Status:    status,
		HeaderRaw: s.data[sectionStart:headerEnd],
	}

	for hasPrefix(s.peek(), "@@ ") {
		h, err := s.scanHunk(fp)
		if err != nil {
			return nil, err
		}
		fp.Hunks = append(fp.Hunks, h)
	}
	if next := s.peek(); next != nil && !hasPrefix(next, "diff --git ") {
		return nil, parseErr("unexpected line in %s: %q", fp.EffectivePath(), chomp(next))
	}
	return fp, nil
}

// scanHunk consumes one "@@" region. The body is read until the header's
// old/new counts are both satisfied; running out of valid body lines first,
// or a count mismatch, is a parse error.
func (s *scanner) scanHunk(fp *diffmodel.FilePatch) (*diffmodel.Hunk, error) {
	hunkStart := s.off
	header := chomp(s.next())
	oldStart, oldCount, newStart, newCount, funcCtx, err := parseHunkHeader(header)
	if err != nil {
		return nil, err
	}

	h := &diffmodel.Hunk{
		OldStart: oldStart, OldCount: oldCount,
		NewStart: newStart, NewCount: newCount,
		FuncContext: funcCtx,
		OldPath:     fp.OldPath,
		NewPath:     fp.NewPath,
	}

	oldSeen, newSeen := 0, 0
	for oldSeen < oldCount || newSeen < newCount {
		raw := s.peek()
		if raw == nil {
			return nil, parseErr("hunk %q in %s ends before its header counts are satisfied", header, fp.EffectivePath())
		}
		line := chomp(raw)
		var kind diffmodel.LineKind
		var payload []byte
		switch {
		case len(line) == 0:
			// git never emits a fully empty body line, but diffs that
			// passed through other tools sometimes strip the context
			// space. Treat it as empty context.
			kind, payload = diffmodel.Context, []byte(line)
		case line[0] == ' ':
			kind, payload = diffmodel.Context, []byte(line[1:])
		case line[0] == '+':
			kind, payload = diffmodel.Add, []byte(line[1:])
		case line[0] == '-':
			kind, payload = diffmodel.Del, []byte(line[1:])
		default:
			return nil, parseErr("hunk %q in %s: header counts do not match body", header, fp.EffectivePath())
		}
		s.next()
		switch kind {
		case diffmodel.Context:
			oldSeen++
			newSeen++
		case diffmodel.Add:
			newSeen++
		case diffmodel.Del:
			oldSeen++
		}
		if oldSeen > oldCount || newSeen > newCount {
			return nil, parseErr("hunk %q in %s: header counts do not match body", header, fp.EffectivePath())
		}
		l := diffmodel.Line{Kind: kind, Payload: payload}
		if hasPrefix(s.peek(), `\`) {
			l.NoNewline = true
			s.next()
		}
		h.Lines = append(h.Lines, l)
	}
	h.Raw = s.data[hunkStart:s.off]
	return h, nil
}

// parseHunkHeader parses "@@ -a[,b] +c[,d] @@[ suffix]". Omitted counts
// mean 1. The suffix is returned verbatim including its leading space.
func parseHunkHeader(header string) (oldStart, oldCount, newStart, newCount int, funcCtx string, err error) {
	fail := func() (int, int, int, int, string, error) {
		return 0, 0, 0, 0, "", parseErr("malformed hunk header %q", header)
	}
	rest, ok := cutPrefix(header, "@@ -")
	if !ok {
		return fail()
	}
	end := indexOf(rest, " @@")
	if end < 0 {
		return fail()
	}
	funcCtx = rest[end+3:]
	ranges := rest[:end]
	sp := indexOf(ranges, " +")
	if sp < 0 {
		return fail()
	}
	if oldStart, oldCount, ok = parseRange(ranges[:sp]); !ok {
		return fail()
	}
	if newStart, newCount, ok = parseRange(ranges[sp+2:]); !ok {
		return fail()
	}
	return oldStart, oldCount, newStart, newCount, funcCtx, nil
}

func parseRange(s string) (start, count int, ok bool) {
	count = 1
	if c := indexOf(s, ","); c >= 0 {
		if count, ok = atoi(s[c+1:]); !ok {
			return 0, 0, false
		}
		s = s[:c]
	}
	start, ok = atoi(s)
	return start, count, ok
}

func atoi(s string) (int, bool) {
	if s == "" {
		return 0, false
	}
	n := 0
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return 0, false
		}
		n = n*10 + int(s[i]-'0')
	}
	return n, true
}

// pathFromOpener extracts the b-side path from a "diff --git a/X b/Y"
// line, for use in error messages before the "+++" line is reached.
func pathFromOpener(line []byte) string {
	fields := bytes.Fields(line)
	if len(fields) < 4 {
		return "?"
	}
	p := string(fields[len(fields)-1])
	return unquote(trimPrefix(p, "b/"))
}

// stripPathPrefix turns a "--- a/path" or "+++ b/path" line into the bare
// path. "/dev/null" passes through untouched.
func stripPathPrefix(line, marker string) string {
	p := trimPrefix(line, marker)
	p = unquote(p)
	if p == diffmodel.DevNull {
		return p
	}
	if rest, ok := cutPrefix(p, "a/"); ok {
		return rest
	}
	if rest, ok := cutPrefix(p, "b/"); ok {
		return rest
	}
	return p
}

func unquote(s string) string {
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		return s[1 : len(s)-1]
	}
	return s
}

func chomp(line []byte) string {
	return string(bytes.TrimSuffix(line, []byte("\n")))
}

func hasPrefix(line []byte, prefix string) bool {
	return line != nil && bytes.HasPrefix(line, []byte(prefix))
}

func trimPrefix(s, prefix string) string {
	if r, ok := cutPrefix(s, prefix); ok {
		return r
	}
	return s
}

func cutPrefix(s, prefix string) (string, bool) {
	if len(s) >= len(prefix) && s[:len(prefix)] == prefix {
		return s[len(prefix):], true
	}
	return s, false
}

func indexOf(s, sub string) int {
	return bytes.Index([]byte(s), []byte(sub))
}

func parseErr(format string, args ...any) *surgeonerr.Error {
	return surgeonerr.New(surgeonerr.CategoryParse, fmt.Sprintf(format, args...))
}
