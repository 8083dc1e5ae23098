package language

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

type entry struct {
	code       string // ISO 639-1
	display    string
	nativeName string
	words      []string
}

var languages = []entry{
	{"hi", "Hindi", "हिन्दी", []string{"hindi"}},
	{"bn", "Bengali", "বাংলা", []string{"bengali", "bangla"}},
	{"te", "Telugu", "తెలుగు", []string{"telugu"}},
	{"ta", "Tamil", "தமிழ்", []string{"tamil"}},
	{"mr", "Marathi", "मराठी", []string{"marathi"}},
	{"gu", "Gujarati", "ગુજરાતી", []string{"gujarati"}},
	{"kn", "Kannada", "ಕನ್ನಡ", []string{"kannada"}},
	{"ml", "Malayalam", "മലയാളം", []string{"malayalam"}},
	{"pa", "Punjabi", "ਪੰਜਾਬੀ", []string{"punjabi", "panjabi"}},
	{"or", "Odia", "ଓଡ଼ିଆ", []string{"odia", "oriya"}},
	{"as", "Assamese", "অসমীয়া", []string{"assamese"}},
	{"ur", "Urdu", "اردو", []string{"urdu"}},
	{"en", "English", "English", []string{"english"}},
}

var (
	byCode map[string]*entry
	byWord map[string]*entry
)

func init() {
	byCode = make(map[string]*entry, len(languages))
	byWord = make(map[string]*entry, len(languages))
	for i := range languages {
		e := &languages[i]
		byCode[e.code] = e
		for _, w := range e.words {
			byWord[w] = e
		}
	}
}

func lookup(code string) *entry {
	code = strings.ToLower(strings.TrimSpace(code))
	if code == "" {
		return nil
	}
	if e, ok := byCode[code]; ok {
		return e
	}
	if e, ok := byWord[code]; ok {
		return e
	}
	return nil
}

// Normalize converts a language code, BCP 47 tag, or full language name to
// the canonical lowercase ISO 639-1 code. Returns empty string for input no
// parser recognizes.
func Normalize(code string) string {
	trimmed := strings.TrimSpace(code)
	if trimmed == "" {
		return ""
	}
	if e := lookup(trimmed); e != nil {
		return e.code
	}
	// Fall back to BCP 47 parsing so region-qualified tags like "hi-IN"
	// reduce to their base language.
	tag, err := language.Parse(trimmed)
	if err != nil {
		return ""
	}
	base, conf := tag.Base()
	if conf == language.No {
		return ""
	}
	normalized := strings.ToLower(base.String())
	if _, ok := byCode[normalized]; ok {
		return normalized
	}
	if len(normalized) == 2 {
		return normalized
	}
	return ""
}

// IsValid reports whether the input resolves to a usable language code.
func IsValid(code string) bool {
	return Normalize(code) != ""
}

// DisplayName returns a human-readable language name for any recognized
// code. Unrecognized codes are title-cased rather than echoed raw.
func DisplayName(code string) string {
	trimmed := strings.TrimSpace(code)
	if trimmed == "" {
		return "Unknown"
	}
	if e := lookup(trimmed); e != nil {
		return e.display
	}
	if normalized := Normalize(trimmed); normalized != "" {
		if e, ok := byCode[normalized]; ok {
			return e.display
		}
	}
	return cases.Title(language.English).String(strings.ToLower(trimmed))
}

// NativeName returns the language's endonym, falling back to DisplayName.
func NativeName(code string) string {
	if e := lookup(code); e != nil {
		return e.nativeName
	}
	if normalized := Normalize(code); normalized != "" {
		if e, ok := byCode[normalized]; ok {
			return e.nativeName
		}
	}
	return DisplayName(code)
}

// Known returns the canonical codes of every language in the table.
func Known() []string {
	codes := make([]string, 0, len(languages))
	for i := range languages {
		codes = append(codes, languages[i].code)
	}
	return codes
}
