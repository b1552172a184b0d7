package main

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadCatalogEmbedded(t *testing.T) {
	catalog, err := loadCatalog("")
	if err != nil {
		t.Fatalf("loading embedded catalog: %v", err)
	}
	if catalog.Len() == 0 {
		t.Fatal("embedded catalog is empty")
	}
}

func TestLoadCatalogFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "spectrums.json")
	data := `[{"left":"Hot","right":"Cold"},{"left":"Big","right":"Small"}]`
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatalf("writing fixture: %v", err)
	}

	catalog, err := loadCatalog(path)
	if err != nil {
		t.Fatalf("loading catalog: %v", err)
	}
	if catalog.Len() != 2 {
		t.Fatalf("catalog has %d clues, want 2", catalog.Len())
	}
	if catalog.clues[0].Left != "Hot" || catalog.clues[1].Right != "Small" {
		t.Fatalf("unexpected catalog contents: %+v", catalog.clues)
	}
}

func TestLoadCatalogRejectsBadInput(t *testing.T) {
	cases := []struct {
		name string
		data string
	}{
		{"invalid json", `{"left":`},
		{"missing pole label", `[{"left":"Hot","right":""}]`},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "spectrums.json")
			if err := os.WriteFile(path, []byte(tc.data), 0o644); err != nil {
				t.Fatalf("writing fixture: %v", err)
			}
			if _, err := loadCatalog(path); err == nil {
				t.Fatal("expected an error, got nil")
			}
		})
	}
}

func TestLoadCatalogMissingFile(t *testing.T) {
	if _, err := loadCatalog(filepath.Join(t.TempDir(), "nope.json")); err == nil {
		t.Fatal("expected an error, got nil")
	}
}

func TestCatalogDealIsPermutation(t *testing.T) {
	catalog := &Catalog{clues: []Clue{
		{Left: "a", Right: "A"},
		{Left: "b", Right: "B"},
		{Left: "c", Right: "C"},
		{Left: "d", Right: "D"},
	}}

	dealt := catalog.Deal(4)
	if len(dealt) != 4 {
		t.Fatalf("dealt %d clues, want 4", len(dealt))
	}

	seen := make(map[string]bool)
	for _, c := range dealt {
		if seen[c.Left] {
			t.Fatalf("clue %q dealt twice", c.Left)
		}
		seen[c.Left] = true
	}
}

func TestCatalogDealCyclesWhenShort(t *testing.T) {
	catalog := &Catalog{clues: []Clue{
		{Left: "a", Right: "A"},
		{Left: "b", Right: "B"},
	}}

	dealt := catalog.Deal(5)
	if len(dealt) != 5 {
		t.Fatalf("dealt %d clues, want 5", len(dealt))
	}

	counts := make(map[string]int)
	for _, c := range dealt {
		counts[c.Left]++
	}
	if counts["a"]+counts["b"] != 5 {
		t.Fatalf("unexpected deal contents: %v", counts)
	}
	if counts["a"] < 2 || counts["b"] < 2 {
		t.Fatalf("deal did not cycle evenly: %v", counts)
	}
}

func TestCatalogRandomReturnsMember(t *testing.T) {
	catalog := &Catalog{clues: []Clue{
		{Left: "a", Right: "A"},
		{Left: "b", Right: "B"},
		{Left: "c", Right: "C"},
	}}

	for i := 0; i < 20; i++ {
		clue := catalog.Random()
		found := false
		for _, c := range catalog.clues {
			if c == clue {
				found = true
				break
			}
		}
		if !found {
			t.Fatalf("random clue %+v not in catalog", clue)
		}
	}
}

func TestRandomIndexBounds(t *testing.T) {
	for n := 1; n <= 10; n++ {
		for i := 0; i < 50; i++ {
			got := randomIndex(n)
			if got < 0 || got >= n {
				t.Fatalf("randomIndex(%d) = %d, out of range", n, got)
			}
		}
	}
}
