package analyzer

import (
	"math"
	"regexp"
	"strings"

	"github.com/yungbote/curricula-backend/internal/enrich/textutil"
)

type textStats struct {
	Words      int
	Sentences  int
	Paragraphs int
	Syllables  int
	HardWords  int
	CharCount  int
}

func computeStats(text string) textStats {
	st := textStats{}
	st.Paragraphs = len(textutil.SplitParagraphs(text))
	st.Sentences = len(textutil.SplitSentences(text))
	words := textutil.Words(text)
	st.Words = len(words)
	for _, w := range words {
		syl := textutil.CountSyllables(w)
		st.Syllables += syl
		if syl >= 3 {
			st.HardWords++
		}
		st.CharCount += len(w)
	}
	if st.Sentences == 0 && st.Words > 0 {
		st.Sentences = 1
	}
	if st.Paragraphs == 0 && st.Words > 0 {
		st.Paragraphs = 1
	}
	return st
}

// fleschKincaidGrade estimates the US grade level needed to read the text.
func fleschKincaidGrade(st textStats) float64 {
	if st.Words == 0 || st.Sentences == 0 {
		return 0
	}
	wps := float64(st.Words) / float64(st.Sentences)
	spw := float64(st.Syllables) / float64(st.Words)
	g := 0.39*wps + 11.8*spw - 15.59
	return round2(math.Max(0, g))
}

// fleschReadingEase is the classic 0-100 ease score (higher = easier).
func fleschReadingEase(st textStats) float64 {
	if st.Words == 0 || st.Sentences == 0 {
		return 0
	}
	wps := float64(st.Words) / float64(st.Sentences)
	spw := float64(st.Syllables) / float64(st.Words)
	e := 206.835 - 1.015*wps - 84.6*spw
	return round2(math.Max(0, math.Min(100, e)))
}

// vocabularyDifficulty is the fraction of polysyllabic words, a cheap
// Dale-Chall-style proxy that needs no word list at runtime.
func vocabularyDifficulty(st textStats) float64 {
	if st.Words == 0 {
		return 0
	}
	return round2(float64(st.HardWords) / float64(st.Words))
}

func round2(f float64) float64 {
	return math.Round(f*100) / 100
}

var (
	headingRe  = regexp.MustCompile(`(?m)^\s{0,3}(#{1,6}\s+\S|\d+(\.\d+)*\s+[A-Z]|[A-Z][A-Z0-9 ,:'-]{3,}$)`)
	listRe     = regexp.MustCompile(`(?m)^\s*([-*+•]|\d+[.)])\s+\S`)
	codeRe     = regexp.MustCompile("(?m)(```|^\\t|^ {4,}\\S|;\\s*$|\\bdef\\b|\\bfunc\\b|[{};]\\s*$)")
	equationRe = regexp.MustCompile(`(\$[^$\n]+\$|\\begin\{|[=<>≤≥≠]\s*[-\d(a-z]|\b\d+\s*[+\-*/^]\s*\d+\b)`)
	citationRe = regexp.MustCompile(`(\[\d+\]|\(\w+,?\s+\d{4}\)|\bet al\.|\bibid\.)`)
)

func presenceFlags(text string) (headings, lists, code, equations, citations bool) {
	return headingRe.MatchString(text),
		listRe.MatchString(text),
		codeRe.MatchString(text),
		equationRe.MatchString(text),
		citationRe.MatchString(text)
}

// domainKeywords is the rule-based classifier taxonomy used when the
// generative classifier is unavailable.
var domainKeywords = map[string][]string{
	"mathematics":      {"theorem", "proof", "equation", "integral", "derivative", "matrix", "vector", "algebra", "geometry", "polynomial"},
	"computer_science": {"algorithm", "function", "compiler", "variable", "runtime", "database", "recursion", "software", "binary", "queue"},
	"physics":          {"velocity", "momentum", "quantum", "particle", "energy", "force", "relativity", "thermodynamics", "wavelength"},
	"chemistry":        {"molecule", "reaction", "compound", "electron", "acid", "ion", "bond", "solution", "catalyst"},
	"biology":          {"cell", "organism", "protein", "dna", "evolution", "species", "enzyme", "membrane", "gene"},
	"history":          {"century", "empire", "revolution", "dynasty", "treaty", "war", "colonial", "medieval"},
	"economics":        {"market", "supply", "demand", "inflation", "capital", "trade", "monetary", "fiscal", "gdp"},
	"language_arts":    {"metaphor", "narrative", "rhetoric", "grammar", "syntax", "prose", "poetry", "literary"},
}

func classifyDomainByRules(text string) string {
	words := textutil.Words(text)
	freq := make(map[string]int, len(words))
	for _, w := range words {
		freq[w]++
	}
	best := "general"
	bestScore := 0
	for dom, kws := range domainKeywords {
		score := 0
		for _, kw := range kws {
			score += freq[kw]
		}
		if score > bestScore {
			bestScore = score
			best = dom
		}
	}
	if bestScore < 3 {
		return "general"
	}
	return best
}

var informalMarkers = []string{"you'll", "we're", "let's", "gonna", "stuff", "okay", "pretty much", "don't worry", "!"}

func classifyFormalityByRules(text string) string {
	lower := strings.ToLower(text)
	hits := 0
	for _, m := range informalMarkers {
		hits += strings.Count(lower, m)
	}
	words := textutil.WordCount(text)
	if words == 0 {
		return "neutral"
	}
	rate := float64(hits) / float64(words) * 1000
	switch {
	case rate > 8:
		return "informal"
	case rate < 2:
		return "formal"
	default:
		return "neutral"
	}
}

// recommendChunkSize maps grade level to a target segment word count:
// denser material gets shorter turns.
func recommendChunkSize(grade float64, defaultTarget int) int {
	if defaultTarget <= 0 {
		defaultTarget = 150
	}
	switch {
	case grade >= 14:
		return defaultTarget * 2 / 3
	case grade >= 10:
		return defaultTarget * 5 / 6
	case grade <= 5:
		return defaultTarget * 4 / 3
	default:
		return defaultTarget
	}
}
