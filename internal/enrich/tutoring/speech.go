package tutoring

import (
	"fmt"
	"os"
	"regexp"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/yungbote/curricula-backend/internal/enrich/textutil"
)

// SymbolTable maps written symbols and abbreviations to their spoken forms.
// The built-in table covers general prose; a domain YAML file can extend or
// override it (math reads "=" as "equals", chemistry reads "->" as "yields").
type SymbolTable struct {
	Symbols       map[string]string `yaml:"symbols"`
	Abbreviations map[string]string `yaml:"abbreviations"`
}

func defaultSymbolTable() SymbolTable {
	return SymbolTable{
		Symbols: map[string]string{
			"=":  "equals",
			"+":  "plus",
			"%":  "percent",
			"&":  "and",
			"<":  "less than",
			">":  "greater than",
			"->": "leads to",
			"°C": "degrees Celsius",
			"°F": "degrees Fahrenheit",
			"~":  "approximately",
		},
		Abbreviations: map[string]string{
			"e.g.":    "for example",
			"i.e.":    "that is",
			"etc.":    "and so on",
			"vs.":     "versus",
			"cf.":     "compare",
			"Dr.":     "Doctor",
			"Fig.":    "Figure",
			"Eq.":     "Equation",
			"No.":     "Number",
			"approx.": "approximately",
		},
	}
}

// LoadSymbolTable merges a YAML table over the defaults.
func LoadSymbolTable(path string) (SymbolTable, error) {
	base := defaultSymbolTable()
	raw, err := os.ReadFile(path)
	if err != nil {
		return base, fmt.Errorf("tutoring: read symbol table: %w", err)
	}
	var ext SymbolTable
	if err := yaml.Unmarshal(raw, &ext); err != nil {
		return base, fmt.Errorf("tutoring: parse symbol table: %w", err)
	}
	for k, v := range ext.Symbols {
		base.Symbols[k] = v
	}
	for k, v := range ext.Abbreviations {
		base.Abbreviations[k] = v
	}
	return base, nil
}

// PauseMarker is the cue the playback layer turns into a brief silence.
const PauseMarker = "<pause/>"

var (
	parenRe     = regexp.MustCompile(`\s*\(([^()]{1,80})\)`)
	paraBreakRe = regexp.MustCompile(`\n\s*\n`)
)

// spokenText rewrites written prose for text-to-speech: abbreviations and
// symbols are expanded, parentheticals become comma asides, and pause markers
// land on paragraph breaks and before definitions.
func spokenText(text string, table SymbolTable) string {
	out := text

	for abbr, spoken := range table.Abbreviations {
		out = strings.ReplaceAll(out, abbr, spoken)
	}
	// Longest symbols first so "->" wins over ">".
	symbols := make([]string, 0, len(table.Symbols))
	for s := range table.Symbols {
		symbols = append(symbols, s)
	}
	sort.Slice(symbols, func(i, j int) bool {
		if len(symbols[i]) != len(symbols[j]) {
			return len(symbols[i]) > len(symbols[j])
		}
		return symbols[i] < symbols[j]
	})
	for _, s := range symbols {
		out = strings.ReplaceAll(out, s, " "+table.Symbols[s]+" ")
	}

	// "(a parenthetical)" reads better as ", a parenthetical,".
	out = parenRe.ReplaceAllString(out, ", $1,")

	// Paragraph breaks become explicit pauses.
	out = paraBreakRe.ReplaceAllString(out, " "+PauseMarker+" ")
	out = strings.Join(strings.Fields(out), " ")

	// A pause before a definition gives the listener time to reset.
	for _, cue := range []string{"is defined as", "refers to"} {
		out = strings.ReplaceAll(out, cue, PauseMarker+" "+cue)
	}
	return strings.TrimSpace(out)
}

// pronunciationHint builds a rough syllable spelling for an unfamiliar term.
func pronunciationHint(term string) string {
	words := textutil.Words(term)
	if len(words) == 0 {
		return ""
	}
	parts := make([]string, 0, len(words))
	for _, w := range words {
		parts = append(parts, syllableSpread(w))
	}
	return strings.Join(parts, " ")
}

var vowels = "aeiouy"

// syllableSpread inserts hyphens at rough syllable boundaries
// ("photosynthesis" -> "pho-to-syn-the-sis" style output, approximately).
func syllableSpread(word string) string {
	if len(word) <= 4 {
		return word
	}
	var b strings.Builder
	prevVowel := false
	sinceBreak := 0
	for i, r := range word {
		isVowel := strings.ContainsRune(vowels, r)
		if i > 0 && prevVowel && !isVowel && sinceBreak >= 2 && i < len(word)-1 {
			b.WriteByte('-')
			sinceBreak = 0
		}
		b.WriteRune(r)
		sinceBreak++
		prevVowel = isVowel
	}
	return b.String()
}
