package citations

import (
	"reflect"
	"testing"
)

func TestExtract(t *testing.T) {
	tests := []struct {
		name       string
		text       string
		numSources int
		expected   []int
	}{
		{"basic", "The answer is 42 [1]. More detail [2].", 3, []int{1, 2}},
		{"out of range dropped", "... [1] ... [9] ...", 3, []int{1}},
		{"zero dropped", "bad marker [0] and good [2]", 3, []int{2}},
		{"duplicates collapse", "[2] then [1] then [2] again", 2, []int{1, 2}},
		{"sorted ascending", "[3] first, [1] later", 3, []int{1, 3}},
		{"no citations", "plain text without markers", 5, []int{}},
		{"non numeric brackets ignored", "[abc] [1a] [ 2 ]", 5, []int{}},
		{"no sources available", "[1] [2]", 0, []int{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Extract(tt.text, tt.numSources)
			if !reflect.DeepEqual(got, tt.expected) {
				t.Errorf("Extract(%q, %d) = %v; want %v", tt.text, tt.numSources, got, tt.expected)
			}
		})
	}
}

func TestMarkCited(t *testing.T) {
	flags := MarkCited([]int{1, 3}, 4)

	expected := []bool{true, false, true, false}
	if !reflect.DeepEqual(flags, expected) {
		t.Errorf("MarkCited = %v; want %v", flags, expected)
	}
}

func TestMarkCitedIgnoresOutOfRange(t *testing.T) {
	flags := MarkCited([]int{0, 5}, 2)

	if flags[0] || flags[1] {
		t.Errorf("out-of-range citations should not set flags, got %v", flags)
	}
}
