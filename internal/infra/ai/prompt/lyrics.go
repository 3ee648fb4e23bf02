package prompt

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/bryanwahyu/automaton-ingest/internal/domain/ai"
)

// maxPromptChars keeps long transcripts inside the model context.
const maxPromptChars = 8000

// GetSystemPrompt provides strict directions and schema for JSON output.
func GetSystemPrompt() string {
	return `You are a music librarian. You must produce one valid JSON object only (no markdown, no commentary) that follows the schema below. Do not include code fences.

Requirements:
- Output must be a single JSON object.
- genre is one short label such as "Pop/Romance", "Hip-Hop", "Ballad", "Country", "Gospel/Soul", "Dance/Electronic" or "Unknown".
- themes is an array of at most 5 single-word or two-word themes, capitalised.
- Judge only from the lyrics given. If they are empty or not lyrics, use "Unknown" and an empty themes array.

Schema (example with empty values):
{
  "genre": "<string>",
  "themes": ["<string>"]
}`
}

// GetUserPrompt wraps the transcript, truncated to maxPromptChars.
func GetUserPrompt(lyrics string) string {
	if len(lyrics) > maxPromptChars {
		lyrics = lyrics[:maxPromptChars]
	}
	return fmt.Sprintf("Classify these lyrics and respond with the JSON per schema.\n\nLyrics:\n%s", lyrics)
}

// ParseClassification decodes the model answer. Code fences are tolerated
// because some models add them anyway.
func ParseClassification(content string) (ai.Classification, error) {
	s := strings.TrimSpace(content)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```")
		s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	}

	var c ai.Classification
	if err := json.Unmarshal([]byte(s), &c); err != nil {
		return ai.Classification{}, fmt.Errorf("decode classification: %w", err)
	}
	c.Genre = strings.TrimSpace(c.Genre)
	if c.Genre == "" {
		c.Genre = "Unknown"
	}
	if len(c.Themes) > 5 {
		c.Themes = c.Themes[:5]
	}
	return c, nil
}
