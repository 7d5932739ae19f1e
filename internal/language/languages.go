package language

import (
	"sort"
	"strings"
)

// PriorityCodes are listed first when languages are shown to the user
var PriorityCodes = []string{"zh-hant", "zh-hans", "ja", "ko", "en"}

var languages = map[string]string{
	"en":      "english",
	"zh-hans": "simplified chinese",
	"zh-hant": "traditional chinese",
	"zh":      "chinese",
	"de":      "german",
	"es":      "spanish",
	"ru":      "russian",
	"ko":      "korean",
	"fr":      "french",
	"ja":      "japanese",
	"pt":      "portuguese",
	"tr":      "turkish",
	"pl":      "polish",
	"ca":      "catalan",
	"nl":      "dutch",
	"ar":      "arabic",
	"sv":      "swedish",
	"it":      "italian",
	"id":      "indonesian",
	"hi":      "hindi",
	"fi":      "finnish",
	"vi":      "vietnamese",
	"he":      "hebrew",
	"uk":      "ukrainian",
	"el":      "greek",
	"ms":      "malay",
	"cs":      "czech",
	"ro":      "romanian",
	"da":      "danish",
	"hu":      "hungarian",
	"ta":      "tamil",
	"no":      "norwegian",
	"th":      "thai",
	"ur":      "urdu",
	"hr":      "croatian",
	"bg":      "bulgarian",
	"lt":      "lithuanian",
	"la":      "latin",
	"mi":      "maori",
	"ml":      "malayalam",
	"cy":      "welsh",
	"sk":      "slovak",
	"te":      "telugu",
	"fa":      "persian",
	"lv":      "latvian",
	"bn":      "bengali",
	"sr":      "serbian",
	"az":      "azerbaijani",
	"sl":      "slovenian",
	"kn":      "kannada",
	"et":      "estonian",
	"mk":      "macedonian",
	"br":      "breton",
	"eu":      "basque",
	"is":      "icelandic",
	"hy":      "armenian",
	"ne":      "nepali",
	"mn":      "mongolian",
	"bs":      "bosnian",
	"kk":      "kazakh",
	"sq":      "albanian",
	"sw":      "swahili",
	"gl":      "galician",
	"mr":      "marathi",
	"pa":      "punjabi",
	"si":      "sinhala",
	"km":      "khmer",
	"sn":      "shona",
	"yo":      "yoruba",
	"so":      "somali",
	"af":      "afrikaans",
	"oc":      "occitan",
	"ka":      "georgian",
	"be":      "belarusian",
	"tg":      "tajik",
	"sd":      "sindhi",
	"gu":      "gujarati",
	"am":      "amharic",
	"yi":      "yiddish",
	"lo":      "lao",
	"uz":      "uzbek",
	"fo":      "faroese",
	"ht":      "haitian creole",
	"ps":      "pashto",
	"tk":      "turkmen",
	"nn":      "nynorsk",
	"mt":      "maltese",
	"sa":      "sanskrit",
	"lb":      "luxembourgish",
	"my":      "myanmar",
	"bo":      "tibetan",
	"tl":      "tagalog",
	"mg":      "malagasy",
	"as":      "assamese",
	"tt":      "tatar",
	"haw":     "hawaiian",
	"ln":      "lingala",
	"ha":      "hausa",
	"ba":      "bashkir",
	"jw":      "javanese",
	"su":      "sundanese",
}

var aliases = map[string]string{
	"zh-cn":     "zh-hans",
	"zh-sg":     "zh-hans",
	"zh-tw":     "zh-hant",
	"zh-hk":     "zh-hant",
	"zh-mo":     "zh-hant",
	"pt-br":     "pt",
	"pt-pt":     "pt",
	"en-us":     "en",
	"en-gb":     "en",
	"iw":        "he",
	"burmese":   "my",
	"castilian": "es",
	"flemish":   "nl",
	"valencian": "ca",
	"pushto":    "ps",
	"moldavian": "ro",
	"moldovan":  "ro",
	"sinhalese": "si",
	"mandarin":  "zh",
}

// Normalize maps a code, alias, or English language name to a table code.
// It returns an empty string when the input is not recognized.
func Normalize(raw string) string {
	value := strings.ToLower(strings.TrimSpace(raw))
	value = strings.ReplaceAll(value, "_", "-")
	if value == "" {
		return ""
	}
	if _, ok := languages[value]; ok {
		return value
	}
	if code, ok := aliases[value]; ok {
		return code
	}
	for code, name := range languages {
		if name == value {
			return code
		}
	}
	// en-au, fr-ca and friends fall back to their primary subtag
	if dash := strings.IndexByte(value, '-'); dash > 0 {
		if _, ok := languages[value[:dash]]; ok {
			return value[:dash]
		}
	}
	return ""
}

// IsSupported reports whether raw resolves to a recognized language
func IsSupported(raw string) bool {
	return Normalize(raw) != ""
}

// Name returns the English name for a code, or the input when unknown
func Name(code string) string {
	if name, ok := languages[Normalize(code)]; ok {
		return name
	}
	return code
}

// Codes returns all codes with PriorityCodes first and the rest sorted
func Codes() []string {
	priority := make(map[string]struct{}, len(PriorityCodes))
	codes := make([]string, 0, len(languages))
	for _, code := range PriorityCodes {
		priority[code] = struct{}{}
		codes = append(codes, code)
	}

	rest := make([]string, 0, len(languages))
	for code := range languages {
		if _, ok := priority[code]; !ok {
			rest = append(rest, code)
		}
	}
	sort.Strings(rest)
	return append(codes, rest...)
}
