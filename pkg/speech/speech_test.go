package speech

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLanguageFamily(t *testing.T) {
	assert.Equal(t, LanguageFamily("en"), LanguageEnglishUS.Family())
	assert.Equal(t, LanguageFamily("ru"), Language("RU").Family())
	assert.Equal(t, LanguageFamily(""), LanguageAuto.Family())
	assert.True(t, LanguageAuto.IsAuto())
	assert.True(t, Language("auto").IsAuto())
	assert.False(t, LanguageRussian.IsAuto())
}

func TestTextContainsAlphaNum(t *testing.T) {
	assert.True(t, Text("hello").ContainsAlphaNum())
	assert.True(t, Text(" 42 ").ContainsAlphaNum())
	assert.False(t, Text(" - ... !").ContainsAlphaNum())
	assert.False(t, Text("").ContainsAlphaNum())
}
