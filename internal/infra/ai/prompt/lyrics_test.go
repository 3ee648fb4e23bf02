package prompt

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseClassification(t *testing.T) {
	c, err := ParseClassification(`{"genre":"Pop/Romance","themes":["Love"]}`)
	require.NoError(t, err)
	assert.Equal(t, "Pop/Romance", c.Genre)
	assert.Equal(t, []string{"Love"}, c.Themes)
}

func TestParseClassification_CodeFence(t *testing.T) {
	c, err := ParseClassification("```json\n{\"genre\":\"Ballad\",\"themes\":[]}\n```")
	require.NoError(t, err)
	assert.Equal(t, "Ballad", c.Genre)
}

func TestParseClassification_Defaults(t *testing.T) {
	c, err := ParseClassification(`{"genre":"  ","themes":["a","b","c","d","e","f"]}`)
	require.NoError(t, err)
	assert.Equal(t, "Unknown", c.Genre)
	assert.Len(t, c.Themes, 5)
}

func TestParseClassification_Invalid(t *testing.T) {
	_, err := ParseClassification("not json")
	assert.Error(t, err)
}

func TestGetUserPrompt_Truncates(t *testing.T) {
	p := GetUserPrompt(strings.Repeat("la ", 5000))
	assert.Less(t, len(p), maxPromptChars+200)
	assert.Contains(t, GetSystemPrompt(), `"genre"`)
}
