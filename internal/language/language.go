// Package language normalizes area language codes and checks question text
// against them.
package language

import (
	"strings"
	"unicode"

	"github.com/abadojack/whatlanggo"
	xlanguage "golang.org/x/text/language"
	"golang.org/x/text/language/display"
)

// Default is the language of a freshly enabled area.
const Default = "deu"

var iso6391To3 = map[string]string{
	"de": "deu",
	"en": "eng",
	"fr": "fra",
	"es": "spa",
	"it": "ita",
	"nl": "nld",
	"pl": "pol",
	"pt": "por",
	"ru": "rus",
	"tr": "tur",
	"sv": "swe",
	"da": "dan",
	"fi": "fin",
	"cs": "ces",
	"uk": "ukr",
	"ja": "jpn",
	"ko": "kor",
	"zh": "cmn",
}

var iso6393To1 = func() map[string]string {
	m := make(map[string]string, len(iso6391To3))
	for two, three := range iso6391To3 {
		m[three] = two
	}
	m["ger"] = "de"
	m["zho"] = "zh"
	return m
}()

// NormalizeLanguageCode normalizes an ISO language code to ISO 639-3 when possible.
func NormalizeLanguageCode(code string) string {
	code = strings.TrimSpace(strings.ToLower(code))
	if code == "" {
		return ""
	}
	code = strings.Split(code, "-")[0]
	code = strings.Split(code, "_")[0]
	if len(code) == 2 {
		if mapped, ok := iso6391To3[code]; ok {
			return mapped
		}
	}
	if code == "ger" {
		return "deu"
	}
	return code
}

// ShortCode returns the two letter code used for question bank file names.
// Unknown codes are returned unchanged.
func ShortCode(code string) string {
	normalized := NormalizeLanguageCode(code)
	if short, ok := iso6393To1[normalized]; ok {
		return short
	}
	return normalized
}

// IsSupported reports whether code maps to a known language.
func IsSupported(code string) bool {
	_, ok := iso6393To1[NormalizeLanguageCode(code)]
	return ok
}

// DisplayName returns the language name in the language itself, e.g. "Deutsch".
func DisplayName(code string) string {
	tag, err := xlanguage.Parse(ShortCode(code))
	if err != nil {
		return code
	}
	if name := display.Self.Name(tag); name != "" {
		return name
	}
	return code
}

// DetectLanguageCode returns the ISO 639-3 code of text.
// Returns "und" when detection is not trustworthy.
func DetectLanguageCode(text string) string {
	if strings.TrimSpace(text) == "" {
		return ""
	}

	info := whatlanggo.Detect(text)
	code := info.Lang.Iso6393()
	if code == "" {
		return "und"
	}

	if info.IsReliable() || info.Confidence >= 0.3 {
		return code
	}
	if hasNonASCIILetter(text) {
		return code
	}
	return "und"
}

// Mismatch reports whether text is reliably detected as a language other than want.
// Short or ambiguous text never counts as a mismatch.
func Mismatch(text, want string) (string, bool) {
	want = NormalizeLanguageCode(want)
	if want == "" || len(strings.Fields(text)) < 4 {
		return "", false
	}

	info := whatlanggo.Detect(text)
	if !info.IsReliable() {
		return "", false
	}
	got := NormalizeLanguageCode(info.Lang.Iso6393())
	if got == "" || got == want {
		return got, false
	}
	return got, true
}

func hasNonASCIILetter(text string) bool {
	for _, r := range text {
		if unicode.IsLetter(r) && r > unicode.MaxASCII {
			return true
		}
	}
	return false
}
