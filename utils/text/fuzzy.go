package text

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// Levenshtein computes the edit distance between two strings using the
// classic dynamic-programming algorithm over characters.
func Levenshtein(s1, s2 string) int {
	r1 := []rune(s1)
	r2 := []rune(s2)
	if len(r1) < len(r2) {
		r1, r2 = r2, r1
	}
	if len(r2) == 0 {
		return len(r1)
	}

	previous := make([]int, len(r2)+1)
	current := make([]int, len(r2)+1)
	for j := range previous {
		previous[j] = j
	}

	for i, c1 := range r1 {
		current[0] = i + 1
		for j, c2 := range r2 {
			cost := 1
			if c1 == c2 {
				cost = 0
			}
			current[j+1] = min3(previous[j+1]+1, current[j]+1, previous[j]+cost)
		}
		previous, current = current, previous
	}
	return previous[len(r2)]
}

// FuzzyMatch reports whether target approximately occurs in text. An exact
// substring match short-circuits to true; otherwise a window of
// len(target words) slides across the words of text and each window is
// compared to target by normalized edit distance. An empty target always
// matches.
func FuzzyMatch(text, target string, threshold float64) bool {
	text = strings.ToLower(strings.TrimSpace(text))
	target = strings.ToLower(strings.TrimSpace(target))

	if strings.Contains(text, target) {
		return true
	}

	words := strings.Fields(text)
	targetWords := strings.Fields(target)
	for i := 0; i+len(targetWords) <= len(words); i++ {
		phrase := strings.Join(words[i:i+len(targetWords)], " ")
		// Same character units as the edit distance.
		longest := max2(utf8.RuneCountInString(phrase), utf8.RuneCountInString(target))
		if longest == 0 {
			return true
		}
		similarity := 1 - float64(Levenshtein(phrase, target))/float64(longest)
		if similarity >= threshold {
			return true
		}
	}
	return false
}

// StripPhrases removes every occurrence of the given phrases from text at
// word boundaries, case-insensitively, and trims the result.
func StripPhrases(text string, phrases []string) string {
	for _, phrase := range phrases {
		re, err := regexp.Compile(`(?i)\b` + regexp.QuoteMeta(phrase) + `\b`)
		if err != nil {
			continue
		}
		text = re.ReplaceAllString(text, "")
	}
	return strings.TrimSpace(strings.Join(strings.Fields(text), " "))
}

func min3(a, b, c int) int {
	if b < a {
		a = b
	}
	if c < a {
		a = c
	}
	return a
}

func max2(a, b int) int {
	if b > a {
		return b
	}
	return a
}
