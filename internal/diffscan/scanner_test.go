package diffscan

import (
	"bytes"
	"errors"
	"testing"

	"github.com/git-surgeon/git-surgeon/internal/diffmodel"
	"github.com/git-surgeon/git-surgeon/internal/surgeonerr"
)

const modifiedDiff = `diff --git a/foo.txt b/foo.txt
index 1234567..89abcde 100644
--- a/foo.txt
+++ b/foo.txt
@@ -1,3 +1,3 @@
 line1
-line2
+changed
 line3
`

const twoFileDiff = `diff --git a/a.txt b/a.txt
index 1111111..2222222 100644
--- a/a.txt
+++ b/a.txt
@@ -1 +1 @@
-aaa
+AAA
diff --git a/b.txt b/b.txt
index 3333333..4444444 100644
--- a/b.txt
+++ b/b.txt
@@ -1 +1 @@
-bbb
+BBB
`

const newFileDiff = `diff --git a/new.txt b/new.txt
new file mode 100644
index 0000000..257cc56
--- /dev/null
+++ b/new.txt
@@ -0,0 +1 @@
+foo
`

const deletedFileDiff = `diff --git a/gone.txt b/gone.txt
deleted file mode 100644
index 257cc56..0000000
--- a/gone.txt
+++ /dev/null
@@ -1 +0,0 @@
-foo
`

const noNewlineDiff = `diff --git a/n.txt b/n.txt
index 0000001..0000002 100644
--- a/n.txt
+++ b/n.txt
@@ -1 +1 @@
-old
\ No newline at end of file
+new
\ No newline at end of file
`

const funcContextDiff = `diff --git a/main.go b/main.go
index aaaaaaa..bbbbbbb 100644
--- a/main.go
+++ b/main.go
@@ -10,4 +10,5 @@ func main() {
 	x := 1
 	y := 2
+	z := 3
 	_ = x
 	_ = y
`

func TestParseModifiedFile(t *testing.T) {
	files, err := Parse([]byte(modifiedDiff))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if len(files) != 1 {
		t.Fatalf("expected 1 file, got %d", len(files))
	}
	fp := files[0]
	if fp.OldPath != "foo.txt" || fp.NewPath != "foo.txt" {
		t.Errorf("unexpected paths: old=%q new=%q", fp.OldPath, fp.NewPath)
	}
	if fp.Status != diffmodel.StatusModified {
		t.Errorf("expected StatusModified, got %v", fp.Status)
	}
	if len(fp.Hunks) != 1 {
		t.Fatalf("expected 1 hunk, got %d", len(fp.Hunks))
	}
	h := fp.Hunks[0]
	if h.OldStart != 1 || h.OldCount != 3 || h.NewStart != 1 || h.NewCount != 3 {
		t.Errorf("unexpected coordinates: -%d,%d +%d,%d", h.OldStart, h.OldCount, h.NewStart, h.NewCount)
	}
	wantKinds := []diffmodel.LineKind{diffmodel.Context, diffmodel.Del, diffmodel.Add, diffmodel.Context}
	if len(h.Lines) != len(wantKinds) {
		t.Fatalf("expected %d lines, got %d", len(wantKinds), len(h.Lines))
	}
	for i, k := range wantKinds {
		if h.Lines[i].Kind != k {
			t.Errorf("line %d: expected kind %v, got %v", i+1, k, h.Lines[i].Kind)
		}
	}
	if string(h.Lines[1].Payload) != "line2" {
		t.Errorf("expected del payload %q, got %q", "line2", h.Lines[1].Payload)
	}
}

func TestParseLossless(t *testing.T) {
	inputs := map[string]string{
		"modified":  modifiedDiff,
		"two files": twoFileDiff,
		"new file":  newFileDiff,
		"deleted":   deletedFileDiff,
		"noNewline": noNewlineDiff,
		"funcCtx":   funcContextDiff,
	}
	for name, input := range inputs {
		t.Run(name, func(t *testing.T) {
			files, err := Parse([]byte(input))
			if err != nil {
				t.Fatalf("Parse failed: %v", err)
			}
			var out bytes.Buffer
			for _, fp := range files {
				out.Write(fp.HeaderRaw)
				for _, h := range fp.Hunks {
					out.Write(h.Raw)
				}
			}
			if out.String() != input {
				t.Errorf("reserialized diff differs from input\ngot:\n%s\nwant:\n%s", out.String(), input)
			}
		})
	}
}

func TestParseNewFile(t *testing.T) {
	files, err := Parse([]byte(newFileDiff))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	fp := files[0]
	if fp.Status != diffmodel.StatusAdded {
		t.Errorf("expected StatusAdded, got %v", fp.Status)
	}
	if fp.OldPath != diffmodel.DevNull {
		t.Errorf("expected old path /dev/null, got %q", fp.OldPath)
	}
	if fp.EffectivePath() != "new.txt" {
		t.Errorf("expected effective path new.txt, got %q", fp.EffectivePath())
	}
}

// An empty file creation has a one-sided mode and no hunks; it must not be
// mistaken for a mode-only change.
func TestParseEmptyNewFile(t *testing.T) {
	diff := `diff --git a/empty.txt b/empty.txt
new file mode 100644
index 0000000..e69de29
`
	files, err := Parse([]byte(diff))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if len(files) != 1 {
		t.Fatalf("got %d files, want 1", len(files))
	}
	fp := files[0]
	if fp.Status != diffmodel.StatusAdded {
		t.Errorf("expected StatusAdded, got %v", fp.Status)
	}
	if len(fp.Hunks) != 0 {
		t.Errorf("expected no hunks, got %d", len(fp.Hunks))
	}
	if string(fp.HeaderRaw) != diff {
		t.Errorf("header bytes not sliced verbatim:\n%q", fp.HeaderRaw)
	}
}

func TestParseDeletedFile(t *testing.T) {
	files, err := Parse([]byte(deletedFileDiff))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	fp := files[0]
	if fp.Status != diffmodel.StatusDeleted {
		t.Errorf("expected StatusDeleted, got %v", fp.Status)
	}
	if fp.NewPath != diffmodel.DevNull {
		t.Errorf("expected new path /dev/null, got %q", fp.NewPath)
	}
	if fp.EffectivePath() != "gone.txt" {
		t.Errorf("expected effective path gone.txt, got %q", fp.EffectivePath())
	}
}

func TestParseNoNewlineMarkers(t *testing.T) {
	files, err := Parse([]byte(noNewlineDiff))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	h := files[0].Hunks[0]
	if len(h.Lines) != 2 {
		t.Fatalf("expected 2 lines (markers excluded), got %d", len(h.Lines))
	}
	if !h.Lines[0].NoNewline {
		t.Errorf("del line should carry the no-newline marker")
	}
	if !h.Lines[1].NoNewline {
		t.Errorf("add line should carry the no-newline marker")
	}
}

func TestParseFuncContext(t *testing.T) {
	files, err := Parse([]byte(funcContextDiff))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	h := files[0].Hunks[0]
	if h.FuncContext != " func main() {" {
		t.Errorf("expected function context %q, got %q", " func main() {", h.FuncContext)
	}
	if h.Header() != "@@ -10,4 +10,5 @@ func main() {" {
		t.Errorf("reconstructed header mismatch: %q", h.Header())
	}
}

func TestParseRejectsRename(t *testing.T) {
	diff := `diff --git a/old.txt b/renamed.txt
similarity index 100%
rename from old.txt
rename to renamed.txt
`
	_, err := Parse([]byte(diff))
	if err == nil {
		t.Fatal("expected rename to be rejected")
	}
	var se *surgeonerr.Error
	if !errors.As(err, &se) || se.Category != surgeonerr.CategoryParse {
		t.Fatalf("expected a parse-category error, got %v", err)
	}
	if !bytes.Contains([]byte(err.Error()), []byte("renamed.txt")) {
		t.Errorf("error should name the file: %v", err)
	}
}

func TestParseRejectsBinary(t *testing.T) {
	diff := `diff --git a/img.png b/img.png
index 1111111..2222222 100644
Binary files a/img.png and b/img.png differ
`
	_, err := Parse([]byte(diff))
	if err == nil {
		t.Fatal("expected binary file to be rejected")
	}
}

func TestParseCountMismatch(t *testing.T) {
	diff := `diff --git a/foo.txt b/foo.txt
index 1234567..89abcde 100644
--- a/foo.txt
+++ b/foo.txt
@@ -1,3 +1,3 @@
 line1
-line2
+changed
`
	_, err := Parse([]byte(diff))
	if err == nil {
		t.Fatal("expected count mismatch to be a parse error")
	}
	var se *surgeonerr.Error
	if !errors.As(err, &se) || se.Category != surgeonerr.CategoryParse {
		t.Fatalf("expected a parse-category error, got %v", err)
	}
}

func TestParseEmptyInput(t *testing.T) {
	files, err := Parse(nil)
	if err != nil {
		t.Fatalf("empty input should parse cleanly: %v", err)
	}
	if len(files) != 0 {
		t.Errorf("expected no files, got %d", len(files))
	}
}

func TestParseOmittedCounts(t *testing.T) {
	oldStart, oldCount, newStart, newCount, funcCtx, err := parseHunkHeader("@@ -5 +5 @@")
	if err != nil {
		t.Fatalf("parseHunkHeader failed: %v", err)
	}
	if oldStart != 5 || oldCount != 1 || newStart != 5 || newCount != 1 {
		t.Errorf("unexpected ranges: -%d,%d +%d,%d", oldStart, oldCount, newStart, newCount)
	}
	if funcCtx != "" {
		t.Errorf("expected empty function context, got %q", funcCtx)
	}
}
