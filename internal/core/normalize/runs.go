package normalize

import "unicode"

// Skeleton reduces a normalized string to letters and digits with every run squashed to one rune,
// so "great video!!!" and "greaaaat   video" share the skeleton "great video"
func Skeleton(s string) string {
	if s == "" {
		return s
	}
	out := make([]rune, 0, len(s))
	space := false
	for _, r := range SquashRuns(s, 1) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			if space && len(out) > 0 {
				out = append(out, ' ')
			}
			space = false
			out = append(out, r)
		default:
			space = true
		}
	}
	return string(out)
}

// SquashRuns keeps at most max consecutive copies of any rune
func SquashRuns(s string, max int) string {
	if s == "" || max < 1 {
		return s
	}
	out := make([]rune, 0, len(s))
	var prev rune
	count := 0
	for _, r := range s {
		if r == prev {
			count++
			if count <= max {
				out = append(out, r)
			}
			continue
		}
		prev = r
		count = 1
		out = append(out, r)
	}
	return string(out)
}

// LongestRun is the length of the longest run of one repeated non-space rune
func LongestRun(s string) int {
	best, count := 0, 0
	var prev rune
	for _, r := range s {
		if r == prev && !unicode.IsSpace(r) {
			count++
		} else {
			prev = r
			count = 1
		}
		if count > best && !unicode.IsSpace(r) {
			best = count
		}
	}
	return best
}
