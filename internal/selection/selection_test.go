package selection

import (
	"strings"
	"testing"

	"github.com/git-surgeon/git-surgeon/internal/diffmodel"
	"github.com/git-surgeon/git-surgeon/internal/diffscan"
	"github.com/git-surgeon/git-surgeon/internal/hunkid"
)

func TestParseRef(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantID  string
		want    []diffmodel.LineRange
		wantErr bool
	}{
		{name: "bare ID", input: "a1b2c3d", wantID: "a1b2c3d"},
		{name: "suffixed ID", input: "a1b2c3d-2", wantID: "a1b2c3d-2"},
		{
			name: "single range", input: "a1b2c3d:1-5", wantID: "a1b2c3d",
			want: []diffmodel.LineRange{{Start: 1, End: 5}},
		},
		{
			name: "single line", input: "a1b2c3d:7", wantID: "a1b2c3d",
			want: []diffmodel.LineRange{{Start: 7, End: 7}},
		},
		{
			name: "comma ranges", input: "a1b2c3d:1-5,9,20-30", wantID: "a1b2c3d",
			want: []diffmodel.LineRange{{Start: 1, End: 5}, {Start: 9, End: 9}, {Start: 20, End: 30}},
		},
		{name: "trailing colon", input: "a1b2c3d:", wantID: "a1b2c3d"},
		{name: "inverted range", input: "a1b2c3d:5-3", wantErr: true},
		{name: "zero line", input: "a1b2c3d:0-3", wantErr: true},
		{name: "garbage range", input: "a1b2c3d:x-y", wantErr: true},
		{name: "empty ID", input: ":1-5", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ref, err := ParseRef(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error for %q", tt.input)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseRef(%q) failed: %v", tt.input, err)
			}
			if ref.ID != tt.wantID {
				t.Errorf("ID = %q, want %q", ref.ID, tt.wantID)
			}
			if len(ref.Ranges) != len(tt.want) {
				t.Fatalf("got %d ranges, want %d", len(ref.Ranges), len(tt.want))
			}
			for i, r := range tt.want {
				if ref.Ranges[i] != r {
					t.Errorf("range %d = %v, want %v", i, ref.Ranges[i], r)
				}
			}
		})
	}
}

func TestMergeEquivalentSpellings(t *testing.T) {
	comma, err := ParseRef("a1b2c3d:1-11,20-30")
	if err != nil {
		t.Fatal(err)
	}
	first, err := ParseRef("a1b2c3d:1-11")
	if err != nil {
		t.Fatal(err)
	}
	second, err := ParseRef("a1b2c3d:20-30")
	if err != nil {
		t.Fatal(err)
	}

	m1 := Merge([]Ref{comma})
	m2 := Merge([]Ref{first, second})
	if len(m1) != 1 || len(m2) != 1 {
		t.Fatalf("both spellings should merge to one ref, got %d and %d", len(m1), len(m2))
	}
	if len(m1[0].Ranges) != 2 || len(m2[0].Ranges) != 2 {
		t.Fatalf("both spellings should carry two ranges")
	}
	for i := range m1[0].Ranges {
		if m1[0].Ranges[i] != m2[0].Ranges[i] {
			t.Errorf("range %d differs between spellings: %v vs %v", i, m1[0].Ranges[i], m2[0].Ranges[i])
		}
	}
}

const twoHunkDiff = `diff --git a/f.txt b/f.txt
index 1111111..2222222 100644
--- a/f.txt
+++ b/f.txt
@@ -1,3 +1,3 @@
-top
+top changed
 ctx
 ctx
@@ -20,2 +20,2 @@
 ctx
-bottom
+bottom changed
`

func listing(t *testing.T) *hunkid.Listing {
	t.Helper()
	files, err := diffscan.Parse([]byte(twoHunkDiff))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	return hunkid.Assign(files)
}

func TestResolveWholeHunks(t *testing.T) {
	l := listing(t)
	sel, err := Resolve(l, []Ref{{ID: l.Entries[1].ID}, {ID: l.Entries[0].ID}})
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if len(sel.Refs) != 2 {
		t.Fatalf("expected 2 refs, got %d", len(sel.Refs))
	}
	// User-given order is preserved.
	if sel.Refs[0].Hunk != l.Entries[1].Hunk || sel.Refs[1].Hunk != l.Entries[0].Hunk {
		t.Errorf("selection should preserve user-given order")
	}
}

func TestResolveDeduplicates(t *testing.T) {
	l := listing(t)
	id := l.Entries[0].ID
	sel, err := Resolve(l, []Ref{{ID: id}, {ID: id}})
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if len(sel.Refs) != 1 {
		t.Errorf("duplicate IDs should collapse to one ref, got %d", len(sel.Refs))
	}
}

func TestResolveUnknownID(t *testing.T) {
	if _, err := Resolve(listing(t), []Ref{{ID: "0000000"}}); err == nil {
		t.Fatal("expected unknown ID to fail")
	}
}

func TestResolveOutOfRangeLine(t *testing.T) {
	l := listing(t)
	_, err := Resolve(l, []Ref{{ID: l.Entries[0].ID, Ranges: []diffmodel.LineRange{{Start: 1, End: 99}}}})
	if err == nil {
		t.Fatal("expected out-of-range line to fail")
	}
	if want := "99"; !strings.Contains(err.Error(), want) {
		t.Errorf("error should name the offending line number: %v", err)
	}
}

func TestResolveOverlappingRanges(t *testing.T) {
	l := listing(t)
	_, err := Resolve(l, []Ref{{
		ID:     l.Entries[0].ID,
		Ranges: []diffmodel.LineRange{{Start: 1, End: 3}, {Start: 2, End: 4}},
	}})
	if err == nil {
		t.Fatal("expected overlapping ranges to fail")
	}
}
