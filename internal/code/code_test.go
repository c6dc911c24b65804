package code

import (
	"math/rand"
	"strings"
	"testing"
)

func TestRandomLength(t *testing.T) {
	rng := rand.New(rand.NewSource(1))

	for i := 0; i < 100; i++ {
		c := Random(rng)
		if len(c) != Length {
			t.Fatalf("Expected code of length %d, got %q", Length, c)
		}
	}
}

func TestRandomExcludesAmbiguousCharacters(t *testing.T) {
	rng := rand.New(rand.NewSource(42))

	for i := 0; i < 1000; i++ {
		c := Random(rng)
		if strings.ContainsAny(c, "0O1IL") {
			t.Fatalf("Code %q contains an ambiguous character", c)
		}
		for _, r := range c {
			if !strings.ContainsRune(Alphabet, r) {
				t.Fatalf("Code %q contains %q outside the alphabet", c, r)
			}
		}
	}
}

func TestAlphabetSize(t *testing.T) {
	// 26 letters and 10 digits minus the five ambiguous glyphs
	if len(Alphabet) != 31 {
		t.Errorf("Expected 31-character alphabet, got %d", len(Alphabet))
	}
}

func TestCanonical(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"ab23cd", "AB23CD"},
		{"  AB23CD  ", "AB23CD"},
		{"\tab23cd\n", "AB23CD"},
		{"AB23CD", "AB23CD"},
		{"", ""},
		{"   ", ""},
	}

	for _, tt := range tests {
		if got := Canonical(tt.in); got != tt.want {
			t.Errorf("Canonical(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
