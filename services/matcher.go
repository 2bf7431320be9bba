// services/matcher.go
package services

import (
	"regexp"
	"strings"
	"sync"
	"unicode"
	"unicode/utf8"
)

var (
	patternMu    sync.RWMutex
	patternCache = map[string]*regexp.Regexp{}
)

// wholeWord returns the cached case-insensitive whole-word pattern for phrase
func wholeWord(phrase string) *regexp.Regexp {
	patternMu.RLock()
	re, ok := patternCache[phrase]
	patternMu.RUnlock()
	if ok {
		return re
	}

	re = regexp.MustCompile(`(?i)` + boundary(phrase, true) + regexp.QuoteMeta(phrase) + boundary(phrase, false))
	patternMu.Lock()
	patternCache[phrase] = re
	patternMu.Unlock()
	return re
}

const (
	wordClass    = `[\p{L}\p{N}_]`
	nonWordClass = `[^\p{L}\p{N}_]`
)

func isWordRune(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsNumber(r)
}

// boundary builds a word boundary that counts accented letters as word
// characters. RE2's \b is ASCII only. A phrase edge that is itself a word
// character needs a non-word neighbour, and a non-word edge needs a word neighbour.
func boundary(phrase string, leading bool) string {
	var r rune
	if leading {
		r, _ = utf8.DecodeRuneInString(phrase)
	} else {
		r, _ = utf8.DecodeLastRuneInString(phrase)
	}
	switch {
	case isWordRune(r) && leading:
		return `(?:^|` + nonWordClass + `)`
	case isWordRune(r):
		return `(?:$|` + nonWordClass + `)`
	default:
		return wordClass
	}
}

// MatchPhrases flags each phrase 1 when it occurs in text as a whole word, else 0.
// Blank phrases never match.
func MatchPhrases(text string, phrases []string) map[string]int {
	matches := make(map[string]int, len(phrases))
	for _, phrase := range phrases {
		matches[phrase] = 0
		if strings.TrimSpace(phrase) == "" || text == "" {
			continue
		}
		if wholeWord(phrase).MatchString(text) {
			matches[phrase] = 1
		}
	}
	return matches
}

// AnyMatch reports whether any flag is set
func AnyMatch(matches map[string]int) bool {
	for _, v := range matches {
		if v > 0 {
			return true
		}
	}
	return false
}

// ResolveRank returns the 1-based position of the first organization whose
// case-folded name contains any alias, or nil.
func ResolveRank(organizations []string, aliases []string) *int {
	folded := foldAliases(aliases)
	for i, org := range organizations {
		if containsAny(strings.ToLower(org), folded) {
			rank := i + 1
			return &rank
		}
	}
	return nil
}

// ResolveSentiment returns the score of the first entry naming the target, or nil.
// Scores outside [-1, 1] are clamped.
func ResolveSentiment(sentiments []OrgSentiment, aliases []string) *float64 {
	folded := foldAliases(aliases)
	for _, s := range sentiments {
		if containsAny(strings.ToLower(s.Organization), folded) {
			score := s.SentimentScore
			if score > 1 {
				score = 1
			} else if score < -1 {
				score = -1
			}
			return &score
		}
	}
	return nil
}

func foldAliases(aliases []string) []string {
	folded := make([]string, 0, len(aliases))
	for _, a := range aliases {
		a = strings.ToLower(strings.TrimSpace(a))
		if a != "" {
			folded = append(folded, a)
		}
	}
	return folded
}

func containsAny(s string, subs []string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
