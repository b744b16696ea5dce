// Package langhint provides coarse script and language detection for short comments.
// It is only strong enough to decide "is this English" for sentiment scoring
package langhint

import (
	"strings"
	"unicode"
)

type script struct {
	name  string
	table *unicode.RangeTable
	lang  string // set only where the script maps to one language with low ambiguity
}

// checked in order; specific scripts win ties over Latin
var scripts = []script{
	{"Hiragana", unicode.Hiragana, "ja"},
	{"Katakana", unicode.Katakana, "ja"},
	{"Hangul", unicode.Hangul, "ko"},
	{"Han", unicode.Han, ""},
	{"Arabic", unicode.Arabic, "ar"},
	{"Hebrew", unicode.Hebrew, "he"},
	{"Thai", unicode.Thai, "th"},
	{"Greek", unicode.Greek, "el"},
	{"Cyrillic", unicode.Cyrillic, ""},
	{"Georgian", unicode.Georgian, "ka"},
	{"Armenian", unicode.Armenian, "hy"},
	{"Devanagari", unicode.Devanagari, ""},
	{"Latin", unicode.Latin, ""},
}

// Script returns the predominant script name of s, or "" when s has no letters
func Script(s string) string {
	name, _ := predominant(s)
	return name
}

func predominant(s string) (string, int) {
	counts := make([]int, len(scripts))
	for _, r := range s {
		if !unicode.IsLetter(r) {
			continue
		}
		for i, sc := range scripts {
			if unicode.Is(sc.table, r) {
				counts[i]++
				break
			}
		}
	}
	best := -1
	for i, c := range counts {
		if c > 0 && (best < 0 || c > counts[best]) {
			best = i
		}
	}
	if best < 0 {
		return "", 0
	}
	return scripts[best].name, best
}

// Detect returns a best-effort BCP-47 code for s.
// Latin text is only ever reported as "en", and only when English words clearly outnumber
// foreign markers; everything ambiguous returns ""
func Detect(s string) string {
	name, idx := predominant(s)
	switch name {
	case "":
		return ""
	case "Latin":
		if englishLike(s) {
			return "en"
		}
		return ""
	}
	if name == "Han" && strings.ContainsFunc(s, isKana) {
		return "ja"
	}
	return scripts[idx].lang
}

// IsEnglish is Detect(s) == "en"
func IsEnglish(s string) bool { return Detect(s) == "en" }

func isKana(r rune) bool { return unicode.In(r, unicode.Hiragana, unicode.Katakana) }

func englishLike(s string) bool {
	var en, foreign, words int
	for _, w := range strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && r != '\'' && r != '’'
	}) {
		w = strings.NewReplacer("'", "", "’", "").Replace(w)
		if w == "" {
			continue
		}
		words++
		switch {
		case hasNonASCII(w):
			foreign++
		case englishWords[w]:
			en++
		case foreignWords[w]:
			foreign++
		}
	}
	if words == 0 || en <= 2*foreign {
		return false
	}
	// short comments ("love it", "so good") pass on any English hit
	if words <= 3 {
		return true
	}
	return en*4 >= words
}

func hasNonASCII(w string) bool {
	for _, r := range w {
		if r > unicode.MaxASCII {
			return true
		}
	}
	return false
}
