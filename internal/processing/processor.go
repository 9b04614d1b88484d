// Package processing normalizes admin-entered news text before it is stored.
package processing

import (
	"html"
	"regexp"
	"sort"
	"strings"
	"unicode"
)

var urlRegex = regexp.MustCompile(`https?://[^\s]+`)

var (
	whitespace  = regexp.MustCompile(`\s+`)
	punctuation = regexp.MustCompile(`[^\p{L}\p{N}\s]+`)
)

var stopwords = map[string]struct{}{
	"a": {}, "an": {}, "the": {}, "to": {}, "in": {}, "for": {}, "of": {},
	"and": {}, "with": {}, "from": {}, "on": {}, "at": {}, "has": {}, "have": {},
	"his": {}, "her": {}, "will": {}, "is": {}, "are": {}, "was": {}, "been": {},
	"deal": {}, "transfer": {}, "club": {}, "player": {},
}

// RemoveURLs removes all URLs from the input text.
func RemoveURLs(input string) string {
	return urlRegex.ReplaceAllString(input, " ")
}

// CleanText strips HTML entities, punctuation, squeezes whitespace, and removes URLs.
func CleanText(input string) string {
	if input == "" {
		return ""
	}
	decoded := html.UnescapeString(input)
	decoded = RemoveURLs(decoded)
	decoded = punctuation.ReplaceAllString(decoded, " ")
	decoded = whitespace.ReplaceAllString(decoded, " ")
	decoded = strings.TrimSpace(decoded)
	return decoded
}

// NormalizeName trims a player or club name and squeezes inner whitespace.
// Punctuation is kept: "Paris Saint-Germain" stays as typed.
func NormalizeName(input string) string {
	return strings.TrimSpace(whitespace.ReplaceAllString(html.UnescapeString(input), " "))
}

// NormalizeSummary unescapes entities and squeezes whitespace while keeping line breaks.
func NormalizeSummary(input string) string {
	lines := strings.Split(html.UnescapeString(input), "\n")
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		line = strings.TrimSpace(strings.Join(strings.Fields(line), " "))
		if line != "" {
			out = append(out, line)
		}
	}
	return strings.Join(out, "\n")
}

// ExtractKeywords returns the most frequent words that are not stop-words.
func ExtractKeywords(text string, limit, minLen int) []string {
	clean := strings.ToLower(CleanText(text))
	if clean == "" {
		return nil
	}

	freq := make(map[string]int)
	for _, token := range strings.Fields(clean) {
		token = strings.TrimFunc(token, func(r rune) bool {
			return !unicode.IsLetter(r) && !unicode.IsNumber(r)
		})
		if len([]rune(token)) < minLen {
			continue
		}
		if _, skip := stopwords[token]; skip {
			continue
		}
		freq[token]++
	}

	if len(freq) == 0 {
		return nil
	}

	type kv struct {
		word  string
		count int
	}

	pairs := make([]kv, 0, len(freq))
	for word, count := range freq {
		pairs = append(pairs, kv{word: word, count: count})
	}

	sort.Slice(pairs, func(i, j int) bool {
		if pairs[i].count == pairs[j].count {
			return pairs[i].word < pairs[j].word
		}
		return pairs[i].count > pairs[j].count
	})

	max := limit
	if max <= 0 || max > len(pairs) {
		max = len(pairs)
	}

	keywords := make([]string, 0, max)
	for i := 0; i < max; i++ {
		keywords = append(keywords, pairs[i].word)
	}

	return keywords
}
