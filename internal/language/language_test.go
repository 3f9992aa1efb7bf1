package language

import "testing"

func TestNormalizeLanguageCode(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{input: "de", want: "deu"},
		{input: "DE-at", want: "deu"},
		{input: "en_US", want: "eng"},
		{input: "ger", want: "deu"},
		{input: "deu", want: "deu"},
		{input: "  ", want: ""},
	}

	for _, tc := range tests {
		if got := NormalizeLanguageCode(tc.input); got != tc.want {
			t.Fatalf("NormalizeLanguageCode(%q) = %q, want %q", tc.input, got, tc.want)
		}
	}
}

func TestShortCode(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{input: "deu", want: "de"},
		{input: "eng", want: "en"},
		{input: "fr", want: "fr"},
		{input: "xyz", want: "xyz"},
	}

	for _, tc := range tests {
		if got := ShortCode(tc.input); got != tc.want {
			t.Fatalf("ShortCode(%q) = %q, want %q", tc.input, got, tc.want)
		}
	}
}

func TestIsSupported(t *testing.T) {
	if !IsSupported("de") || !IsSupported("eng") {
		t.Fatalf("expected de and eng to be supported")
	}
	if IsSupported("klingon") {
		t.Fatalf("unexpected support for unknown code")
	}
}

func TestDisplayName(t *testing.T) {
	if got := DisplayName("deu"); got != "Deutsch" {
		t.Fatalf("DisplayName(deu) = %q, want %q", got, "Deutsch")
	}
}

func TestMismatchIgnoresShortText(t *testing.T) {
	if _, mismatch := Mismatch("Ragnaros", "eng"); mismatch {
		t.Fatalf("single word should never be reported as mismatch")
	}
}

func TestMismatchDetectsOtherLanguage(t *testing.T) {
	text := "Welche Einheit hat die meisten Lebenspunkte und wie viel Schaden verursacht sie im Kampf gegen andere Truppen"
	got, mismatch := Mismatch(text, "eng")
	if !mismatch {
		t.Fatalf("expected mismatch for German text against eng, detected %q", got)
	}
	if _, mismatch := Mismatch(text, "de"); mismatch {
		t.Fatalf("German text should match deu")
	}
}

func TestDetectLanguageCodeEmpty(t *testing.T) {
	if got := DetectLanguageCode("   "); got != "" {
		t.Fatalf("DetectLanguageCode(blank) = %q, want empty", got)
	}
}
