package analysis

import (
	"sort"
	"strings"
)

// Summarizer picks the highest-scoring sentences by content-word frequency
// and returns them in their original order.
type Summarizer struct {
	Sentences int
}

func (s Summarizer) Summarize(text string) string {
	sents := sentences(text)
	if len(sents) == 0 {
		return ""
	}
	n := s.Sentences
	if n <= 0 {
		n = 2
	}
	if len(sents) <= n {
		return strings.Join(sents, " ")
	}

	freq := map[string]int{}
	for _, w := range words(text) {
		if !stopwords[w] {
			freq[w]++
		}
	}

	type scored struct {
		idx   int
		score float64
	}
	ranked := make([]scored, 0, len(sents))
	for i, sent := range sents {
		total, content := 0, 0
		for _, w := range words(sent) {
			if stopwords[w] {
				continue
			}
			total += freq[w]
			content++
		}
		if content == 0 {
			ranked = append(ranked, scored{idx: i})
			continue
		}
		ranked = append(ranked, scored{idx: i, score: float64(total) / float64(content)})
	}
	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].score > ranked[j].score })

	picked := ranked[:n]
	sort.Slice(picked, func(i, j int) bool { return picked[i].idx < picked[j].idx })

	parts := make([]string, 0, n)
	for _, p := range picked {
		parts = append(parts, sents[p.idx])
	}
	return strings.Join(parts, " ")
}
