package prefs

import (
	"fmt"
	"reflect"
	"strings"
	"testing"
)

func TestMergeCapped_DeduplicatesKeepingRecent(t *testing.T) {
	merged := mergeCapped([]string{"a", "b", "c"}, []string{"b", "d"}, 50)

	want := []string{"a", "c", "b", "d"}
	if !reflect.DeepEqual(merged, want) {
		t.Errorf("mergeCapped = %v, want %v", merged, want)
	}
}

func TestMergeCapped_TrimsToMostRecent(t *testing.T) {
	var existing []string
	for i := 0; i < 60; i++ {
		existing = append(existing, fmt.Sprintf("w%d", i))
	}
	merged := mergeCapped(existing, []string{"new"}, MaxRemovedWords)

	if len(merged) != MaxRemovedWords {
		t.Fatalf("len = %d, want %d", len(merged), MaxRemovedWords)
	}
	if merged[len(merged)-1] != "new" {
		t.Errorf("last = %q, want %q", merged[len(merged)-1], "new")
	}
	if merged[0] != "w11" {
		t.Errorf("first = %q, want %q (oldest entries trimmed)", merged[0], "w11")
	}
}

func TestMergeCapped_IgnoresBlankIncoming(t *testing.T) {
	merged := mergeCapped([]string{"a"}, []string{"", "  ", "b"}, 50)
	want := []string{"a", "b"}
	if !reflect.DeepEqual(merged, want) {
		t.Errorf("mergeCapped = %v, want %v", merged, want)
	}
}

func TestLastN(t *testing.T) {
	list := []string{"a", "b", "c", "d"}
	if got := lastN(list, 2); !reflect.DeepEqual(got, []string{"c", "d"}) {
		t.Errorf("lastN(2) = %v", got)
	}
	if got := lastN(list, 10); !reflect.DeepEqual(got, list) {
		t.Errorf("lastN(10) = %v", got)
	}
	if got := lastN(nil, 3); len(got) != 0 {
		t.Errorf("lastN(nil) = %v, want empty", got)
	}
}

func TestTruncateJobText(t *testing.T) {
	short := "Backend Engineer at Acme"
	if got := truncateJobText(short); got != short {
		t.Errorf("short text modified: %q", got)
	}

	long := strings.Repeat("x", 200)
	got := truncateJobText(long)
	if !strings.HasSuffix(got, "...") {
		t.Errorf("long text not marked truncated: %q", got)
	}
	if len([]rune(got)) != maxJobTextChars+3 {
		t.Errorf("truncated length = %d runes, want %d", len([]rune(got)), maxJobTextChars+3)
	}
}
