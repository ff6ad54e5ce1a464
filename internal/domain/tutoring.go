package domain

// SpokenVariant is the speech-normalized rendering of a segment.
type SpokenVariant struct {
	SegmentID string `json:"segment_id"`
	Text      string `json:"text"`
}

// AlternativeExplanation is one rephrasing of a definition/explanation segment.
type AlternativeExplanation struct {
	SegmentID string `json:"segment_id"`
	Style     string `json:"style"` // "simpler" | "technical" | "analogy"
	Text      string `json:"text"`
}

type GlossaryEntry struct {
	Term          string   `json:"term"`
	Definition    string   `json:"definition"`
	Pronunciation string   `json:"pronunciation,omitempty"`
	RelatedTerms  []string `json:"related_terms,omitempty"`
	SegmentIDs    []string `json:"segment_ids,omitempty"`
}

type Misconception struct {
	ConceptID      string   `json:"concept_id"`
	Description    string   `json:"description"`
	TriggerPhrases []string `json:"trigger_phrases,omitempty"`
	Remediation    string   `json:"remediation"`
}

// TutoringEnhancements is the enhancer stage output.
type TutoringEnhancements struct {
	Spoken         []SpokenVariant          `json:"spoken,omitempty"`
	Alternatives   []AlternativeExplanation `json:"alternatives,omitempty"`
	Glossary       []GlossaryEntry          `json:"glossary,omitempty"`
	Misconceptions []Misconception          `json:"misconceptions,omitempty"`
}
