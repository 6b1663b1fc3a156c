// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package textfeat

import (
	"strings"
	"unicode"
	"unicode/utf8"

	porterstemmer "github.com/blevesearch/go-porterstemmer"
)

// minTokenLen is the shortest token kept, in runes.
const minTokenLen = 3

// generalStopWords is a compact English stop list.
var generalStopWords = []string{
	"about", "above", "after", "again", "against", "all", "also", "although", "among", "and",
	"any", "are", "because", "been", "before", "being", "below", "between", "both", "but",
	"can", "could", "did", "does", "doing", "down", "during", "each", "either", "few",
	"for", "from", "further", "had", "has", "have", "having", "her", "here", "hers",
	"him", "his", "how", "however", "into", "its", "itself", "just", "may", "might",
	"more", "most", "much", "must", "nor", "not", "now", "off", "once", "only",
	"other", "our", "ours", "out", "over", "own", "same", "shall", "she", "should",
	"since", "some", "such", "than", "that", "the", "their", "theirs", "them", "then",
	"there", "these", "they", "this", "those", "through", "thus", "too", "under", "until",
	"upon", "very", "was", "were", "what", "when", "where", "whether", "which", "while",
	"who", "whom", "why", "will", "with", "within", "without", "would", "yet", "you",
	"your", "via", "per", "whose", "onto", "across", "along", "around", "toward", "towards",
}

// domainStopWords are terms ubiquitous in scholarly abstracts that carry no
// topical signal.
var domainStopWords = []string{
	"abstract", "analysis", "analyses", "analyzed", "approach", "approaches", "article", "based",
	"conclusion", "conclusions", "data", "evidence", "finding", "findings", "effect", "effects",
	"elsevier", "examine", "examined", "examines", "identify", "identified", "impact",
	"implication", "implications", "investigate", "investigated", "literature", "method", "methods",
	"model", "models", "new", "paper", "present", "propose", "proposed", "provide", "provides",
	"research", "result", "results", "review", "reserved", "rights", "show", "shows", "shown",
	"significant", "significantly", "studies", "study", "suggest", "suggests", "use", "used",
	"using", "well", "work", "copyright", "journal", "author", "authors", "published", "ltd",
}

// StopList is a set of lower-cased words removed before stemming.
type StopList map[string]struct{}

// NewStopList returns the general and domain lists plus extra.
func NewStopList(extra ...string) StopList {
	s := make(StopList, len(generalStopWords)+len(domainStopWords)+len(extra))
	for _, list := range [][]string{generalStopWords, domainStopWords, extra} {
		for _, w := range list {
			s[strings.ToLower(strings.TrimSpace(w))] = struct{}{}
		}
	}
	return s
}

// Contains reports whether w is a stop word.
func (s StopList) Contains(w string) bool {
	_, ok := s[w]
	return ok
}

// Token is a stemmed term together with the surface form it came from.
type Token struct {
	Stem    string
	Surface string
}

// Tokenizer lower-cases, splits on non-alphanumeric runes, removes stop
// words and stems what remains.
type Tokenizer struct {
	stops StopList
}

// NewTokenizer returns a tokenizer using stops.
func NewTokenizer(stops StopList) *Tokenizer {
	return &Tokenizer{stops: stops}
}

// Tokenize returns the tokens of text in order.
func (t *Tokenizer) Tokenize(text string) []Token {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	out := make([]Token, 0, len(fields))
	for _, f := range fields {
		if utf8.RuneCountInString(f) < minTokenLen || isNumber(f) || t.stops.Contains(f) {
			continue
		}
		stem := porterstemmer.StemString(f)
		if utf8.RuneCountInString(stem) < minTokenLen || t.stops.Contains(stem) {
			continue
		}
		out = append(out, Token{Stem: stem, Surface: f})
	}
	return out
}

func isNumber(s string) bool {
	for _, r := range s {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}
