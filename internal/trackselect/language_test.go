package trackselect

import "testing"

func TestPrimaryLanguageAliases(t *testing.T) {
	cases := map[string]string{
		"en-US":   "en",
		"eng":     "en",
		"English": "en",
		"fr-CA":   "fr",
	}
	for in, want := range cases {
		if got := PrimaryLanguage(in); got != want {
			t.Errorf("PrimaryLanguage(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestLanguagesMatch(t *testing.T) {
	if !LanguagesMatch("en-US", "eng") {
		t.Error("expected en-US and eng to match via primary-language aliasing")
	}
	if LanguagesMatch("en", "fr") {
		t.Error("expected en and fr not to match")
	}
}
