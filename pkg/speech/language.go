package speech

import "strings"

type Language string

const (
	LanguageAuto      = Language("")
	LanguageEnglishUS = Language("en-US")
	LanguageRussian   = Language("ru-RU")
)

type LanguageFamily string

func (l Language) Family() LanguageFamily {
	words := strings.SplitN(string(l), "-", 2)
	return LanguageFamily(strings.ToLower(words[0]))
}

func (l Language) IsAuto() bool {
	return l == LanguageAuto || strings.EqualFold(string(l), "auto")
}
