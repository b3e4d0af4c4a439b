// Package trackselect implements the TrackSet sort and select operations of
// §4.2: add, sort_videos, sort_audios, sort_subtitles, select_videos,
// select_videos_multi, select_audios, select_subtitles, select_by_language.
//
// Grounded on mohaanymo/veld's internal/engine/selector.go, generalized from
// its string-expression DSL into the spec's structured per-operation
// functions.
package trackselect

import "strings"

// langAliases maps common ISO 639-2/B and plain-English spellings to their
// ISO 639-1 primary-language code, so "eng"/"english"/"en" all compare
// equal under BCP-47 primary-language equality.
var langAliases = map[string]string{
	"eng": "en", "english": "en",
	"ara": "ar", "arb": "ar", "arabic": "ar",
	"jpn": "ja", "japanese": "ja",
	"zho": "zh", "chi": "zh", "chinese": "zh", "cmn": "zh",
	"spa": "es", "spanish": "es",
	"fra": "fr", "fre": "fr", "french": "fr",
	"deu": "de", "ger": "de", "german": "de",
	"por": "pt", "portuguese": "pt",
	"rus": "ru", "russian": "ru",
	"kor": "ko", "korean": "ko",
	"ita": "it", "italian": "it",
	"tur": "tr", "turkish": "tr",
	"hin": "hi", "hindi": "hi",
	"nld": "nl", "dut": "nl", "dutch": "nl",
	"pol": "pl", "polish": "pl",
	"vie": "vi", "vietnamese": "vi",
	"tha": "th", "thai": "th",
	"ind": "id", "indonesian": "id",
	"heb": "he", "hebrew": "he",
	"ell": "el", "gre": "el", "greek": "el",
	"ces": "cs", "cze": "cs", "czech": "cs",
	"ron": "ro", "rum": "ro", "romanian": "ro",
	"hun": "hu", "hungarian": "hu",
	"swe": "sv", "swedish": "sv",
	"dan": "da", "danish": "da",
	"fin": "fi", "finnish": "fi",
	"nor": "no", "norwegian": "no", "nob": "no", "nno": "no",
	"ukr": "uk", "ukrainian": "uk",
	"msa": "ms", "may": "ms", "malay": "ms",
	"fil": "tl", "tgl": "tl", "tagalog": "tl", "filipino": "tl",
	"fas": "fa", "per": "fa", "persian": "fa", "farsi": "fa",
}

// PrimaryLanguage returns lang's BCP-47 primary subtag, resolving the
// common ISO 639-2/B and English-name aliases to their ISO 639-1 form.
func PrimaryLanguage(lang string) string {
	lang = strings.ToLower(strings.TrimSpace(lang))
	if idx := strings.IndexAny(lang, "-_"); idx != -1 {
		lang = lang[:idx]
	}
	if normalized, ok := langAliases[lang]; ok {
		return normalized
	}
	return lang
}

// LanguagesMatch reports whether a and b share the same BCP-47 primary
// language subtag ("close match" per §4.2).
func LanguagesMatch(a, b string) bool {
	return PrimaryLanguage(a) == PrimaryLanguage(b)
}
