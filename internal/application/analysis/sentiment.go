package analysis

import "github.com/bryanwahyu/automaton-ingest/internal/domain/items"

var (
	positiveWords = map[string]bool{
		"love": true, "happy": true, "joy": true, "smile": true, "sweet": true,
		"good": true, "beautiful": true, "shine": true, "light": true, "free": true,
		"heaven": true, "dream": true, "laugh": true, "kiss": true, "heart": true,
	}
	negativeWords = map[string]bool{
		"pain": true, "tears": true, "cry": true, "alone": true, "lonely": true,
		"hate": true, "sad": true, "dark": true, "broken": true, "goodbye": true,
		"hurt": true, "lost": true, "die": true, "cold": true, "fear": true,
	}
)

// Sentiment labels.
const (
	SentimentPositive = "positive"
	SentimentNegative = "negative"
	SentimentNeutral  = "neutral"
)

// ScoreSentiment is a lexicon score in [-1, 1].
func ScoreSentiment(text string) items.Sentiment {
	var pos, neg int
	for _, w := range words(text) {
		switch {
		case positiveWords[w]:
			pos++
		case negativeWords[w]:
			neg++
		}
	}
	if pos+neg == 0 {
		return items.Sentiment{Label: SentimentNeutral}
	}
	score := float64(pos-neg) / float64(pos+neg)
	label := SentimentNeutral
	switch {
	case score > 0.1:
		label = SentimentPositive
	case score < -0.1:
		label = SentimentNegative
	}
	return items.Sentiment{Label: label, Score: score}
}
