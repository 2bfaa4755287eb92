package bot

import (
	"sort"
	"strings"
)

// Model is a first-order Markov chain built from an immutable snapshot
// of recently accepted words. Successor choice is greedy and
// deterministic: highest observed frequency wins, ties broken
// lexicographically.
type Model struct {
	successors map[string]map[string]int
}

// BuildModel trains a model on the ordered word snapshot. Words are
// normalized (lower case, trailing punctuation stripped) before
// counting transitions.
func BuildModel(words []string) *Model {
	m := &Model{successors: make(map[string]map[string]int)}

	prev := ""
	for _, raw := range words {
		word := NormalizeWord(raw)
		if word == "" {
			continue
		}
		if prev != "" {
			if m.successors[prev] == nil {
				m.successors[prev] = make(map[string]int)
			}
			m.successors[prev][word]++
		}
		prev = word
	}

	return m
}

// Next returns the highest-frequency successor of word that is not in
// the skip set. The second return is false when the walk stalls.
func (m *Model) Next(word string, skip map[string]bool) (string, bool) {
	candidates := m.successors[NormalizeWord(word)]
	if len(candidates) == 0 {
		return "", false
	}

	keys := make([]string, 0, len(candidates))
	for k := range candidates {
		if !skip[k] {
			keys = append(keys, k)
		}
	}
	if len(keys) == 0 {
		return "", false
	}

	sort.Slice(keys, func(i, j int) bool {
		ci, cj := candidates[keys[i]], candidates[keys[j]]
		if ci != cj {
			return ci > cj
		}
		return keys[i] < keys[j]
	})

	return keys[0], true
}

// NormalizeWord lower-cases a word and strips surrounding punctuation
// so "Lighthouse." and "lighthouse" train the same state.
func NormalizeWord(word string) string {
	return strings.ToLower(strings.Trim(word, ".,!?;:'\"()"))
}
