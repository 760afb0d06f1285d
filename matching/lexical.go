package matching

import (
	"regexp"
	"strconv"
	"strings"
)

var wordPattern = regexp.MustCompile(`[\p{L}\p{N}_]+`)

// Tokenize lower-cases text and splits it into word tokens.
func Tokenize(text string) []string {
	if text == "" {
		return nil
	}
	return wordPattern.FindAllString(strings.ToLower(text), -1)
}

func countTokens(tokens []string) map[string]int {
	counts := make(map[string]int, len(tokens))
	for _, t := range tokens {
		counts[t]++
	}
	return counts
}

// Lexical scores two biographies by their shared words.
//
// The overlap is a multiset intersection (a word repeated in both bios counts
// as many times as its smaller count) while the denominator is the number of
// distinct words across both bios. The mix is intentional and must stay: a
// plain Jaccard index ranks candidates differently.
type Lexical struct{}

// Score implements Scorer.
func (Lexical) Score(a, b Profile) float64 {
	return LexicalScore(a.Bio, b.Bio)
}

// LexicalScore is the lexical affinity of two biography texts, rounded to two
// decimals.
func LexicalScore(bioA, bioB string) float64 {
	countsA := countTokens(Tokenize(bioA))
	countsB := countTokens(Tokenize(bioB))

	overlap := 0
	for t, ca := range countsA {
		if cb, ok := countsB[t]; ok {
			overlap += min(ca, cb)
		}
	}

	union := len(countsA)
	for t := range countsB {
		if _, ok := countsA[t]; !ok {
			union++
		}
	}
	if union == 0 {
		return 0
	}
	return round2(float64(overlap) / float64(union) * 100)
}

// round2 rounds the exact binary value of v to two decimals, ties to even,
// so 3.125 becomes 3.12.
func round2(v float64) float64 {
	r, _ := strconv.ParseFloat(strconv.FormatFloat(v, 'f', 2, 64), 64)
	return r
}
