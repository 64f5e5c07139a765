package indexer

import "testing"

func TestParseFolderYear(t *testing.T) {
	cases := []struct {
		in        string
		wantTitle string
		wantYear  *int32
	}{
		{"Discovery (2001)", "Discovery", i32(2001)},
		{"OK Computer [1997]", "OK Computer", i32(1997)},
		{"Untitled", "Untitled", nil},
		{"In Rainbows (in the box)", "In Rainbows (in the box)", nil},
	}
	for _, c := range cases {
		title, year := parseFolderYear(c.in)
		if title != c.wantTitle {
			t.Errorf("parseFolderYear(%q) title = %q, want %q", c.in, title, c.wantTitle)
		}
		if (year == nil) != (c.wantYear == nil) {
			t.Errorf("parseFolderYear(%q) year presence mismatch: got %v, want %v", c.in, year, c.wantYear)
			continue
		}
		if year != nil && *year != *c.wantYear {
			t.Errorf("parseFolderYear(%q) year = %d, want %d", c.in, *year, *c.wantYear)
		}
	}
}

func i32(v int32) *int32 { return &v }

func TestMergeGenresDedupesCaseInsensitivelyAndTrims(t *testing.T) {
	got := mergeGenres([]string{" Rock ", "Pop"}, []string{"rock", "Jazz", ""})
	want := []string{"Rock", "Pop", "Jazz"}
	if len(got) != len(want) {
		t.Fatalf("mergeGenres = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("mergeGenres = %v, want %v", got, want)
		}
	}
}

func TestMergeGenresEmptyInputsYieldNil(t *testing.T) {
	if got := mergeGenres(nil, []string{}); got != nil {
		t.Fatalf("expected nil for no genres, got %v", got)
	}
}
