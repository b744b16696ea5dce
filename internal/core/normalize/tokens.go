package normalize

import (
	"regexp"
	"strings"
	"unicode"
)

var urlRe = regexp.MustCompile(`(?i)\b(?:https?://|www\.)\S+|\b[a-z0-9][a-z0-9-]*\.(?:com|net|org|io|ly|me|co|xyz|link|info|biz|site|shop|gg|tv)\b(?:/\S*)?`)

// HasURL reports whether s carries something that looks like a link
func HasURL(s string) bool { return urlRe.MatchString(s) }

// StripURLs replaces every link in s with a space
func StripURLs(s string) string { return urlRe.ReplaceAllString(s, " ") }

func isApostrophe(r rune) bool { return r == '\'' || r == '’' }

// Tokens normalizes s, drops links and splits it into word tokens.
// Apostrophes inside words are dropped so "don't" becomes "dont"
func Tokens(s string) []string {
	s = Text(StripURLs(s))
	if s == "" {
		return nil
	}
	var (
		out []string
		cur strings.Builder
	)
	flush := func() {
		if cur.Len() > 0 {
			out = append(out, cur.String())
			cur.Reset()
		}
	}
	for _, r := range s {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			cur.WriteRune(r)
		case isApostrophe(r) && cur.Len() > 0:
			// swallowed; the next letter continues the word
		default:
			flush()
		}
	}
	flush()
	return out
}

// Sentences splits raw text on terminal punctuation and line breaks.
// Sentences keep their punctuation and original casing; fragments without letters are dropped
func Sentences(s string) []string {
	var (
		out []string
		cur strings.Builder
	)
	emit := func() {
		sent := strings.Join(strings.Fields(cur.String()), " ")
		cur.Reset()
		if strings.IndexFunc(sent, unicode.IsLetter) >= 0 {
			out = append(out, sent)
		}
	}
	rs := []rune(s)
	for i, r := range rs {
		if r == '\n' || r == '\r' {
			emit()
			continue
		}
		cur.WriteRune(r)
		if r == '.' || r == '!' || r == '?' {
			// keep runs like "?!" and "..." together
			if i+1 < len(rs) && (rs[i+1] == '.' || rs[i+1] == '!' || rs[i+1] == '?') {
				continue
			}
			// decimals and abbreviations without a following space stay joined
			if i+1 < len(rs) && !unicode.IsSpace(rs[i+1]) {
				continue
			}
			emit()
		}
	}
	emit()
	return out
}
