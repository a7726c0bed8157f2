package citations

import (
	"regexp"
	"sort"
	"strconv"
)

var citationPattern = regexp.MustCompile(`\[(\d+)\]`)

// Extract pulls bracketed source numbers like [1] out of generated text.
// Numbers outside [1, numSources] are hallucinated markers and are
// dropped silently. The result is deduplicated and sorted ascending.
func Extract(text string, numSources int) []int {
	seen := make(map[int]bool)
	for _, match := range citationPattern.FindAllStringSubmatch(text, -1) {
		n, err := strconv.Atoi(match[1])
		if err != nil {
			continue
		}
		if n < 1 || n > numSources {
			continue
		}
		seen[n] = true
	}

	cited := make([]int, 0, len(seen))
	for n := range seen {
		cited = append(cited, n)
	}
	sort.Ints(cited)
	return cited
}

// MarkCited returns a cited/not-cited flag per source number 1..numSources.
func MarkCited(cited []int, numSources int) []bool {
	flags := make([]bool, numSources)
	for _, n := range cited {
		if n >= 1 && n <= numSources {
			flags[n-1] = true
		}
	}
	return flags
}
