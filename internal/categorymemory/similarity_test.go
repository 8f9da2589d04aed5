package categorymemory

import (
	"math"
	"strings"
	"testing"
)

func TestSimilarity(t *testing.T) {
	tests := []struct {
		name string
		a, b string
		want float64
	}{
		{"identical", "кофе", "кофе", 1},
		{"disjoint", "abc", "xyz", 0},
		{"empty left", "", "abc", 0},
		{"empty right", "abc", "", 0},
		{"both empty", "", "", 0},
		{"shifted", "abcd", "bcde", 0.75},
		{"insertion", "abxcd", "abcd", 8.0 / 9.0},
		{"order matters one way", "tide", "diet", 0.25},
		{"order matters other way", "diet", "tide", 0.5},
		{"cyrillic plural", "продукты в магазине", "продукты в магазинах", 36.0 / 39.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Similarity(tt.a, tt.b)
			if math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("Similarity(%q, %q) = %v, want %v", tt.a, tt.b, got, tt.want)
			}
		})
	}
}

func TestSimilarity_PopularElementsInLongInput(t *testing.T) {
	long := strings.Repeat("a", 200)

	if got := Similarity(long, long); got != 1 {
		t.Errorf("identical long strings = %v, want 1", got)
	}

	// 'a' makes up more than 1% of b, so it cannot seed a match; only the
	// single 'b' lines up.
	got := Similarity("b"+long, long+"b")
	if want := 2.0 / 402.0; math.Abs(got-want) > 1e-9 {
		t.Errorf("Similarity with popular elements = %v, want %v", got, want)
	}
}

func TestSimilarity_Range(t *testing.T) {
	pairs := [][2]string{
		{"такси домой", "такси на работу"},
		{"uber eats", "eats uber"},
		{"ресторан", "ресторан ресторан"},
	}
	for _, p := range pairs {
		got := Similarity(p[0], p[1])
		if got < 0 || got > 1 {
			t.Errorf("Similarity(%q, %q) = %v out of [0,1]", p[0], p[1], got)
		}
	}
}
