package enums

import (
	"slices"
	"strings"
)

// Language is the customer-facing language an order is placed in.
type Language string

const (
	LanguageHebrew  Language = "he"
	LanguageEnglish Language = "en"
)

var validLanguages = []Language{
	LanguageHebrew,
	LanguageEnglish,
}

func (l Language) String() string {
	return string(l)
}

func (l Language) IsValid() bool {
	return slices.Contains(validLanguages, l)
}

// ParseLanguage accepts short codes and regional tags such as "en-US".
func ParseLanguage(value string) (Language, error) {
	normalized := strings.ToLower(strings.TrimSpace(value))
	if idx := strings.IndexAny(normalized, "-_"); idx > 0 {
		normalized = normalized[:idx]
	}
	return member(validLanguages, "language", value, normalized)
}
