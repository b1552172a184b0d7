package main

import (
	"crypto/rand"
	_ "embed"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"os"
)

// Clue is one spectrum: a pair of opposing pole labels. Clues are immutable
// and shared read-only across all rooms.
type Clue struct {
	Left  string `json:"left"`
	Right string `json:"right"`
}

//go:embed spectrums.json
var defaultSpectrums []byte

// Catalog is the process-wide set of spectrum pairs, loaded once at startup.
type Catalog struct {
	clues []Clue
}

// loadCatalog reads spectrum pairs from path, or falls back to the embedded
// set when path is empty.
func loadCatalog(path string) (*Catalog, error) {
	data := defaultSpectrums

	if path != "" {
		var err error
		data, err = os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading spectrum file: %w", err)
		}
	}

	var clues []Clue
	if err := json.Unmarshal(data, &clues); err != nil {
		return nil, fmt.Errorf("parsing spectrum file: %w", err)
	}

	for i, c := range clues {
		if c.Left == "" || c.Right == "" {
			return nil, fmt.Errorf("spectrum %d is missing a pole label", i)
		}
	}

	return &Catalog{clues: clues}, nil
}

func (cat *Catalog) Len() int {
	return len(cat.clues)
}

// Random returns a uniformly chosen clue. The catalog must be non-empty.
func (cat *Catalog) Random() Clue {
	return cat.clues[randomIndex(len(cat.clues))]
}

// Deal returns n clues drawn from a fresh Fisher-Yates permutation of the
// catalog, cycling through the permutation again if n exceeds the catalog
// size. The catalog must be non-empty.
func (cat *Catalog) Deal(n int) []Clue {
	shuffled := make([]Clue, len(cat.clues))
	copy(shuffled, cat.clues)

	for i := len(shuffled) - 1; i > 0; i-- {
		j := randomIndex(i + 1)
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	}

	out := make([]Clue, n)
	for i := range out {
		out[i] = shuffled[i%len(shuffled)]
	}
	return out
}

// randomIndex returns a uniform value in [0, n) using crypto/rand with
// rejection sampling.
func randomIndex(n int) int {
	if n <= 1 {
		return 0
	}

	max := ^uint32(0) - (^uint32(0) % uint32(n))
	var buf [4]byte
	for {
		if _, err := rand.Read(buf[:]); err != nil {
			panic("crypto/rand failure: " + err.Error())
		}
		v := binary.BigEndian.Uint32(buf[:])
		if v < max {
			return int(v % uint32(n))
		}
	}
}
