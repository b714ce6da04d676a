package itunes_test

import (
	"testing"

	"lauschr/internal/itunes"
)

func TestCanonical(t *testing.T) {
	tests := []struct {
		in   string
		want string
		ok   bool
	}{
		{"Technology", "Technology", true},
		{"technology", "Technology", true},
		{"Arts > Books", "Arts > Books", true},
		{"arts>books", "Arts > Books", true},
		{"  News  >  Tech News ", "News > Tech News", true},
		{"Technology > Gadgets", "", false},
		{"Cooking", "", false},
		{"", "", false},
	}
	for _, tt := range tests {
		got, ok := itunes.Canonical(tt.in)
		if got != tt.want || ok != tt.ok {
			t.Errorf("Canonical(%q) = %q, %v; want %q, %v", tt.in, got, ok, tt.want, tt.ok)
		}
	}
}

func TestCategoriesReturnsCopy(t *testing.T) {
	first := itunes.Categories()
	first[0].Name = "changed"
	first[0].Subcategories[0] = "changed"
	second := itunes.Categories()
	if second[0].Name != "Arts" || second[0].Subcategories[0] != "Books" {
		t.Fatalf("catalogue mutated through returned slice: %+v", second[0])
	}
}

func TestFlattenIncludesTopAndSub(t *testing.T) {
	all := itunes.Flatten()
	seen := map[string]bool{}
	for _, v := range all {
		seen[v] = true
	}
	for _, want := range []string{"True Crime", "Science > Physics", "TV & Film > After Shows"} {
		if !seen[want] {
			t.Errorf("Flatten missing %q", want)
		}
	}
}
