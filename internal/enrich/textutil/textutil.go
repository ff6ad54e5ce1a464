// Package textutil holds the small lexical helpers shared by the enrichment
// stages: sentence/paragraph tokenization, word counting and term hygiene.
package textutil

import (
	"regexp"
	"strings"
	"unicode"
)

// Sentence is one tokenized sentence with its span in the source text.
type Sentence struct {
	Text  string
	Start int
	End   int
}

var abbreviations = map[string]bool{
	"mr": true, "mrs": true, "ms": true, "dr": true, "prof": true,
	"e.g": true, "i.e": true, "etc": true, "vs": true, "fig": true,
	"eq": true, "al": true, "no": true, "st": true, "approx": true,
}

// SplitSentences tokenizes text into sentences, keeping byte spans. Sentence
// terminators are . ! ? followed by whitespace + an uppercase/opening rune;
// common abbreviations do not terminate.
func SplitSentences(text string) []Sentence {
	var out []Sentence
	runes := []rune(text)
	n := len(runes)
	// Operate on rune indices, then map back to byte offsets once at the end.
	byteOff := make([]int, n+1)
	off := 0
	for i, r := range runes {
		byteOff[i] = off
		off += len(string(r))
	}
	byteOff[n] = off

	start := 0
	i := 0
	flush := func(end int) {
		raw := strings.TrimSpace(string(runes[start:end]))
		if raw != "" {
			s := start
			for s < end && unicode.IsSpace(runes[s]) {
				s++
			}
			e := end
			for e > s && unicode.IsSpace(runes[e-1]) {
				e--
			}
			out = append(out, Sentence{Text: raw, Start: byteOff[s], End: byteOff[e]})
		}
		start = end
	}

	for i < n {
		r := runes[i]
		if r == '\n' && i+1 < n && runes[i+1] == '\n' {
			flush(i)
			for i < n && unicode.IsSpace(runes[i]) {
				i++
			}
			start = i
			continue
		}
		if r == '.' || r == '!' || r == '?' {
			if r == '.' && endsWithAbbreviation(runes[start:i]) {
				i++
				continue
			}
			// Consume trailing closers like quotes and parens.
			j := i + 1
			for j < n && (runes[j] == '"' || runes[j] == '\'' || runes[j] == ')' || runes[j] == ']') {
				j++
			}
			if j >= n {
				flush(j)
				i = j
				continue
			}
			if unicode.IsSpace(runes[j]) {
				k := j
				for k < n && unicode.IsSpace(runes[k]) {
					k++
				}
				if k >= n || unicode.IsUpper(runes[k]) || unicode.IsDigit(runes[k]) || runes[k] == '#' || runes[k] == '-' || runes[k] == '"' {
					flush(j)
					i = k
					start = k
					continue
				}
			}
		}
		i++
	}
	flush(n)
	return out
}

func endsWithAbbreviation(runes []rune) bool {
	s := strings.ToLower(strings.TrimSpace(string(runes)))
	idx := strings.LastIndexFunc(s, func(r rune) bool { return unicode.IsSpace(r) })
	last := s
	if idx >= 0 {
		last = s[idx+1:]
	}
	last = strings.TrimSuffix(last, ".")
	if len(last) == 1 {
		return true // single initials like "J." rarely end sentences
	}
	return abbreviations[last]
}

// SplitParagraphs splits on blank lines.
func SplitParagraphs(text string) []string {
	parts := regexp.MustCompile(`\n\s*\n`).Split(text, -1)
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

var wordRe = regexp.MustCompile(`[\p{L}\p{N}]+(?:['-][\p{L}\p{N}]+)*`)

// Words returns the lexical words of text, lowercased.
func Words(text string) []string {
	raw := wordRe.FindAllString(text, -1)
	for i := range raw {
		raw[i] = strings.ToLower(raw[i])
	}
	return raw
}

func WordCount(text string) int {
	return len(wordRe.FindAllString(text, -1))
}

// NormalizeTerm canonicalizes a concept/glossary term for dedup keys.
func NormalizeTerm(term string) string {
	term = strings.ToLower(strings.TrimSpace(term))
	term = strings.Trim(term, `"'.,;:()[]`)
	return strings.Join(strings.Fields(term), " ")
}

// JaccardSimilarity measures the set overlap of two word lists in [0,1].
func JaccardSimilarity(wa, wb []string) float64 {
	if len(wa) == 0 && len(wb) == 0 {
		return 1
	}
	if len(wa) == 0 || len(wb) == 0 {
		return 0
	}
	setA := make(map[string]bool, len(wa))
	for _, w := range wa {
		setA[w] = true
	}
	setB := make(map[string]bool, len(wb))
	for _, w := range wb {
		setB[w] = true
	}
	inter := 0
	for w := range setA {
		if setB[w] {
			inter++
		}
	}
	union := len(setA) + len(setB) - inter
	if union == 0 {
		return 0
	}
	return float64(inter) / float64(union)
}

// CountSyllables approximates English syllable count by vowel groups.
func CountSyllables(word string) int {
	word = strings.ToLower(strings.TrimSpace(word))
	if word == "" {
		return 0
	}
	count := 0
	prevVowel := false
	for _, r := range word {
		isVowel := strings.ContainsRune("aeiouy", r)
		if isVowel && !prevVowel {
			count++
		}
		prevVowel = isVowel
	}
	if strings.HasSuffix(word, "e") && count > 1 && !strings.HasSuffix(word, "le") {
		count--
	}
	if count < 1 {
		count = 1
	}
	return count
}
