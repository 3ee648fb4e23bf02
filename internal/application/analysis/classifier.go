package analysis

import (
	"context"

	"github.com/bryanwahyu/automaton-ingest/internal/domain/ai"
)

// UnknownGenre is reported when no rule matches.
const UnknownGenre = "Unknown"

type genreRule struct {
	genre    string
	theme    string
	keywords []string
}

// urutan penting: kalau skor sama, rule yang lebih awal menang
var genreRules = []genreRule{
	{genre: "Pop/Romance", theme: "Love", keywords: []string{"love", "heart", "baby", "kiss", "darling"}},
	{genre: "Dance/Electronic", theme: "Party", keywords: []string{"party", "dance", "night", "club", "floor"}},
	{genre: "Ballad", theme: "Heartbreak", keywords: []string{"pain", "tears", "cry", "alone", "lonely", "goodbye"}},
	{genre: "Gospel/Soul", theme: "Faith", keywords: []string{"god", "pray", "heaven", "soul", "lord"}},
	{genre: "Hip-Hop", theme: "Hustle", keywords: []string{"street", "money", "hustle", "gang", "grind"}},
	{genre: "Country", theme: "Home", keywords: []string{"road", "truck", "whiskey", "home", "town"}},
}

// KeywordClassifier is the default local classifier. It counts rule keywords
// and reports the best genre plus every theme that matched at all.
type KeywordClassifier struct{}

var _ ai.Classifier = KeywordClassifier{}

func (KeywordClassifier) Classify(_ context.Context, text string) (ai.Classification, error) {
	counts := make([]int, len(genreRules))
	for _, w := range words(text) {
		for i, rule := range genreRules {
			for _, kw := range rule.keywords {
				if w == kw {
					counts[i]++
				}
			}
		}
	}

	best := -1
	var themes []string
	for i, c := range counts {
		if c == 0 {
			continue
		}
		themes = append(themes, genreRules[i].theme)
		if best < 0 || c > counts[best] {
			best = i
		}
	}
	if best < 0 {
		return ai.Classification{Genre: UnknownGenre}, nil
	}
	return ai.Classification{Genre: genreRules[best].genre, Themes: themes}, nil
}
